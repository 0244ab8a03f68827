package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/lectern-backend/internal/data/repos"
	"github.com/yungbote/lectern-backend/internal/http/response"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
	"github.com/yungbote/lectern-backend/internal/services"
)

const maxFinalizeBody = 64 << 10

type LectureHandler struct {
	log        *logger.Logger
	lectures   services.LectureService
	generation services.GenerationService
}

func NewLectureHandler(log *logger.Logger, lectures services.LectureService, generation services.GenerationService) *LectureHandler {
	return &LectureHandler{
		log:        log.With("handler", "LectureHandler"),
		lectures:   lectures,
		generation: generation,
	}
}

// POST /api/courses/:id/lectures (multipart: title, date, audio, num_mcq, num_tf)
func (h *LectureHandler) Upload(c *gin.Context) {
	courseID, ok := pathID(c, "id")
	if !ok {
		return
	}
	fh, err := c.FormFile("audio")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_audio", err)
		return
	}
	date, err := parseDate(c.PostForm("date"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_date", err)
		return
	}
	counts, err := formCounts(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_counts", err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_audio", err)
		return
	}
	defer f.Close()

	lecture, run, err := h.lectures.UploadForCourse(c.Request.Context(), courseID, services.UploadInput{
		Title:    c.PostForm("title"),
		Date:     date,
		Filename: fh.Filename,
		Audio:    f,
		Counts:   counts,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"lecture": lecture, "run": run})
}

// GET /api/lectures?course_id=&q=
func (h *LectureHandler) List(c *gin.Context) {
	filter := repos.LectureFilter{Title: c.Query("q")}
	if raw := strings.TrimSpace(c.Query("course_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
			return
		}
		filter.CourseID = &id
	}
	lectures, err := h.lectures.List(c.Request.Context(), filter)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"lectures": lectures})
}

// GET /api/lectures/:id
func (h *LectureHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	detail, err := h.lectures.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, detail)
}

// DELETE /api/lectures/:id
func (h *LectureHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.lectures.Delete(c.Request.Context(), id); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

// PATCH /api/lectures/:id/title
func (h *LectureHandler) UpdateTitle(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	lecture, err := h.lectures.UpdateTitle(c.Request.Context(), id, req.Title)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"lecture": lecture})
}

// PATCH /api/lectures/:id/summary
func (h *LectureHandler) UpdateSummary(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Summary string `json:"summary"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	lecture, err := h.lectures.UpdateSummary(c.Request.Context(), id, req.Summary)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"lecture": lecture})
}

// POST /api/lectures/live-chunk (multipart: course_id, lecture_title, audio_chunk)
func (h *LectureHandler) LiveChunk(c *gin.Context) {
	courseID, err := uuid.Parse(strings.TrimSpace(c.PostForm("course_id")))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_fields", err)
		return
	}
	fh, err := c.FormFile("audio_chunk")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_fields", err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_audio", err)
		return
	}
	defer f.Close()

	res, err := h.lectures.AppendLiveChunk(c.Request.Context(), services.LiveChunkInput{
		CourseID: courseID,
		Title:    c.PostForm("lecture_title"),
		Filename: fh.Filename,
		Audio:    f,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/lectures/:id/finalize
//
// The body is {"num_mcq": n, "num_tf": n}; anything unreadable falls back to
// the default counts.
func (h *LectureHandler) Finalize(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxFinalizeBody))
	if err != nil {
		h.log.Warn("Finalize body unreadable, using defaults", "lecture_id", id.String(), "error", err.Error())
		body = nil
	}
	run, err := h.lectures.Finalize(c.Request.Context(), id, services.ParseQuizCounts(body))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run": run})
}

// GET /api/lectures/:id/runs/latest
func (h *LectureHandler) LatestRun(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	run, err := h.generation.LatestRun(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"run": run})
}
