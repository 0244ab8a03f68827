package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/lectern-backend/internal/http/response"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
	"github.com/yungbote/lectern-backend/internal/services"
)

type CourseHandler struct {
	log           *logger.Logger
	courseService services.CourseService
}

func NewCourseHandler(log *logger.Logger, courseService services.CourseService) *CourseHandler {
	return &CourseHandler{
		log:           log.With("handler", "CourseHandler"),
		courseService: courseService,
	}
}

type courseRequest struct {
	Name        *string `json:"name"`
	Date        *string `json:"date"`
	Description *string `json:"description"`
}

// GET /api/courses
func (h *CourseHandler) List(c *gin.Context) {
	courses, err := h.courseService.List(c.Request.Context())
	if err != nil {
		h.log.Error("List courses failed", "error", err)
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"courses": courses})
}

// POST /api/courses
func (h *CourseHandler) Create(c *gin.Context) {
	var req courseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	in := services.CourseInput{}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.Date != nil {
		d, err := parseDate(*req.Date)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_date", err)
			return
		}
		in.Date = d
	}
	course, err := h.courseService.Create(c.Request.Context(), in)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"course": course})
}

// GET /api/courses/:id
func (h *CourseHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	course, err := h.courseService.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"course": course})
}

// PATCH /api/courses/:id
func (h *CourseHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req courseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	in := services.CourseUpdate{Name: req.Name, Description: req.Description}
	if req.Date != nil {
		d, err := parseDate(*req.Date)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_date", err)
			return
		}
		in.Date = &d
	}
	course, err := h.courseService.Update(c.Request.Context(), id, in)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"course": course})
}

// DELETE /api/courses/:id
func (h *CourseHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.courseService.Delete(c.Request.Context(), id); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
