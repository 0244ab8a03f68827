package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/lectern-backend/internal/http/response"
	"github.com/yungbote/lectern-backend/internal/services"
)

const dateLayout = "2006-01-02"

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_"+name, err)
		return uuid.Nil, false
	}
	return id, true
}

// parseDate accepts YYYY-MM-DD or RFC 3339; empty means zero time.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// formCounts reads num_mcq and num_tf from a multipart form. Absent fields
// keep their defaults; non-numeric ones are rejected.
func formCounts(c *gin.Context) (services.QuizCounts, error) {
	out := services.DefaultQuizCounts()
	for key, dst := range map[string]*int{"num_mcq": &out.NumMCQ, "num_tf": &out.NumTF} {
		raw, ok := c.GetPostForm(key)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return out, err
		}
		*dst = n
	}
	return out, nil
}
