package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/apperr"
)

func (h HandlerSet) ImportStudents(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		fail(c, apperr.Validation("Workbook file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		fail(c, apperr.Internal("failed to read workbook", err))
		return
	}
	defer file.Close()

	report, err := h.imports.ImportStudents(c.Request.Context(), file)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, report, "Students imported")
}
