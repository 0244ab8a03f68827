package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/lectern-backend/internal/http/response"
	"github.com/yungbote/lectern-backend/internal/services"
)

type QuizHandler struct {
	quiz services.QuizService
}

func NewQuizHandler(quiz services.QuizService) *QuizHandler {
	return &QuizHandler{quiz: quiz}
}

// GET /api/lectures/:id/quiz
func (h *QuizHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := h.quiz.QuestionsForStudent(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, view)
}

// POST /api/lectures/:id/quiz with {"answers": {"<question id>": "A"}}
func (h *QuizHandler) Submit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Answers map[string]string `json:"answers"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	answers := make(map[uuid.UUID]string, len(req.Answers))
	for k, v := range req.Answers {
		qid, err := uuid.Parse(k)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_question_id", err)
			return
		}
		answers[qid] = v
	}
	res, err := h.quiz.Submit(c.Request.Context(), id, answers)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/lectures/:id/result
func (h *QuizHandler) Result(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.quiz.Result(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, res)
}
