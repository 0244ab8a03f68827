package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/lectern-backend/internal/http/response"
	"github.com/yungbote/lectern-backend/internal/platform/ctxutil"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
	"github.com/yungbote/lectern-backend/internal/services"
)

type ReportHandler struct {
	log     *logger.Logger
	reports services.ReportService
}

func NewReportHandler(log *logger.Logger, reports services.ReportService) *ReportHandler {
	return &ReportHandler{log: log.With("handler", "ReportHandler"), reports: reports}
}

func callerID(c *gin.Context) (uuid.UUID, bool) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return uuid.Nil, false
	}
	return rd.UserID, true
}

// GET /api/me/report
func (h *ReportHandler) MyReport(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	r, err := h.reports.StudentProgress(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, r)
}

// GET /api/me/report/chart.png
func (h *ReportHandler) MyChart(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	png, err := h.reports.ProgressChart(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// GET /api/students
func (h *ReportHandler) Students(c *gin.Context) {
	students, err := h.reports.Students(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"students": students})
}

// GET /api/students/:id/report
func (h *ReportHandler) StudentReport(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	r, err := h.reports.StudentProgress(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, r)
}

// GET /api/analytics
func (h *ReportHandler) Analytics(c *gin.Context) {
	a, err := h.reports.ClassAnalytics(c.Request.Context())
	if err != nil {
		h.log.Error("Class analytics failed", "error", err)
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, a)
}
