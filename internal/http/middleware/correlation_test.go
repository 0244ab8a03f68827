package middleware

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/yungbote/lectern-backend/internal/platform/ctxutil"
)

var hexTraceID = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestCorrelateRequestIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Correlate())
	var seen *ctxutil.TraceData
	r.GET("/x", func(c *gin.Context) {
		seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	cases := []struct {
		name      string
		requestID string
		keep      bool
	}{
		{"well formed", "req-1", true},
		{"missing", "", false},
		{"log injection", "abc\nlevel=error", false},
		{"too long", strings.Repeat("a", 65), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.requestID != "" {
				req.Header.Set("X-Request-Id", tc.requestID)
			}
			req.Header.Set("X-Trace-Id", "client-chosen")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if seen == nil || seen.RequestID == "" {
				t.Fatalf("trace data missing: %+v", seen)
			}
			if got := seen.RequestID == tc.requestID; got != tc.keep {
				t.Fatalf("request id %q kept=%v, want %v", seen.RequestID, got, tc.keep)
			}
			if !hexTraceID.MatchString(seen.TraceID) {
				t.Fatalf("trace id should be server generated, got %q", seen.TraceID)
			}
			if rec.Header().Get("X-Request-Id") != seen.RequestID || rec.Header().Get("X-Trace-Id") != seen.TraceID {
				t.Fatalf("ids not echoed: %v", rec.Header())
			}
		})
	}
}

func TestCorrelateUsesServerSpan(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx, span := tp.Tracer("test").Start(c.Request.Context(), "request")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		span.End()
	})
	r.Use(Correlate())
	var traceID string
	r.GET("/api/lectures/:id", func(c *gin.Context) {
		traceID = ctxutil.GetTraceData(c.Request.Context()).TraceID
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/lectures/lec-42", nil)
	req.Header.Set("X-Request-Id", "req-7")
	r.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected one span, got %d", len(spans))
	}
	if want := spans[0].SpanContext().TraceID().String(); traceID != want {
		t.Fatalf("trace id = %q, want span trace id %q", traceID, want)
	}
	attrs := map[attribute.Key]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value.AsString()
	}
	if attrs["http.request_id"] != "req-7" || attrs["lectern.route_id"] != "lec-42" {
		t.Fatalf("span attributes = %v", attrs)
	}
}
