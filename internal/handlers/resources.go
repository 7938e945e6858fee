package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/resource"
)

// resourceHandlers exposes one engine as a REST collection.
type resourceHandlers struct {
	engine *resource.Engine
}

func (r resourceHandlers) label() string {
	return r.engine.Schema().Label
}

func (r resourceHandlers) plural() string {
	if r.engine.Schema().Name == resource.CollectionAttendance {
		return "Attendance records"
	}
	return r.label() + "s"
}

func (r resourceHandlers) register(group *gin.RouterGroup) {
	group.POST("", r.create)
	group.GET("", r.list)
	group.GET("/count", r.count)
	group.GET("/:id", r.get)
	group.PATCH("/:id", r.update)
	group.DELETE("/:id", r.delete)
}

func (r resourceHandlers) create(c *gin.Context) {
	input, err := bindObject(c)
	if err != nil {
		fail(c, err)
		return
	}
	doc, err := r.engine.Create(c.Request.Context(), input)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, doc, r.label()+" created successfully")
}

func (r resourceHandlers) list(c *gin.Context) {
	docs, err := r.engine.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, docs, r.plural()+" fetched successfully")
}

func (r resourceHandlers) count(c *gin.Context) {
	n, err := r.engine.Count(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, n, r.label()+" count fetched successfully")
}

func (r resourceHandlers) get(c *gin.Context) {
	doc, err := r.engine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, doc, r.label()+" fetched successfully")
}

func (r resourceHandlers) update(c *gin.Context) {
	input, err := bindObject(c)
	if err != nil {
		fail(c, err)
		return
	}
	doc, err := r.engine.Update(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, doc, r.label()+" updated successfully")
}

func (r resourceHandlers) delete(c *gin.Context) {
	doc, err := r.engine.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, doc, r.label()+" deleted successfully")
}
