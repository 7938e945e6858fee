package handlers

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/apperr"
)

type envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < 400,
	})
}

// fail hands err to the error middleware, which writes the failure envelope.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// bindObject decodes a JSON object body. An empty body is an empty object.
func bindObject(c *gin.Context) (map[string]any, error) {
	input := map[string]any{}
	if err := c.ShouldBindJSON(&input); err != nil {
		if errors.Is(err, io.EOF) {
			return input, nil
		}
		return nil, apperr.Validation("Request body must be a JSON object")
	}
	return input, nil
}

func bindJSON(c *gin.Context, out any) error {
	if err := c.ShouldBindJSON(out); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Validation("Request body must be a JSON object")
	}
	return nil
}
