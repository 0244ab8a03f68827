package middleware

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/lectern-backend/internal/platform/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
)

// Client request ids end up in logs and span attributes.
var requestIDRe = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,64}$`)

// Correlate gives every request a request id and a trace id, stores them in
// the request context for logging and echoes them back as headers. A client
// X-Request-Id is kept when it is well formed. The trace id always comes from
// the server span; clients cannot pick it. Without an active span a random
// 32-hex id stands in. Route ids (course or lecture) are tagged on the span.
func Correlate() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if !requestIDRe.MatchString(reqID) {
			reqID = uuid.NewString()
		}

		span := trace.SpanFromContext(c.Request.Context())
		traceID := ""
		if sc := span.SpanContext(); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		} else {
			traceID = strings.ReplaceAll(uuid.NewString(), "-", "")
		}
		attrs := []attribute.KeyValue{attribute.String("http.request_id", reqID)}
		if id := c.Param("id"); id != "" {
			attrs = append(attrs, attribute.String("lectern.route_id", id))
		}
		span.SetAttributes(attrs...)

		ctx := ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{
			TraceID:   traceID,
			RequestID: reqID,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(headerTraceID, traceID)
		c.Writer.Header().Set(headerRequestID, reqID)
		c.Next()
	}
}
