package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/lectern-backend/internal/platform/apierr"
	"github.com/yungbote/lectern-backend/internal/platform/ctxutil"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

type staticTokens map[string]*ctxutil.RequestData

func (s staticTokens) SetContextFromToken(ctx context.Context, tok string) (context.Context, error) {
	rd, ok := s[tok]
	if !ok {
		return ctx, apierr.Unauthorized("invalid_token", "invalid access token")
	}
	return ctxutil.WithRequestData(ctx, rd), nil
}

func TestRequireAuthAndRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := staticTokens{
		"teacher-token": {UserID: uuid.New(), Role: "teacher"},
		"student-token": {UserID: uuid.New(), Role: "student"},
		"nil-user":      {Role: "student"},
	}
	am := NewAuthMiddleware(logger.Nop(), tokens)

	r := gin.New()
	r.Use(am.RequireAuth())
	r.GET("/me", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/analytics", am.RequireRole("teacher"), func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := []struct {
		name   string
		path   string
		header string
		query  string
		want   int
	}{
		{"no token", "/me", "", "", http.StatusUnauthorized},
		{"bad token", "/me", "Bearer nope", "", http.StatusUnauthorized},
		{"student", "/me", "Bearer student-token", "", http.StatusOK},
		{"query token", "/me", "", "?token=student-token", http.StatusOK},
		{"missing user", "/me", "Bearer nil-user", "", http.StatusForbidden},
		{"student on teacher route", "/analytics", "Bearer student-token", "", http.StatusForbidden},
		{"teacher on teacher route", "/analytics", "bearer teacher-token", "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}
