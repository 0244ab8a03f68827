package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/lectern-backend/internal/platform/apierr"
)

func TestRespondServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err     error
		status  int
		code    string
		message string
	}{
		{apierr.Conflict("already_submitted", "quiz already submitted"), http.StatusConflict, "already_submitted", "quiz already submitted: conflict"},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, "internal_error", "internal server error"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		RespondServiceError(c, tc.err)

		if rec.Code != tc.status {
			t.Fatalf("status = %d, want %d", rec.Code, tc.status)
		}
		var env ErrorEnvelope
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if env.Error.Code != tc.code || env.Error.Message != tc.message {
			t.Fatalf("envelope = %+v", env.Error)
		}
	}
}
