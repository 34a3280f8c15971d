package middleware

import (
	"time"

	"camrelay/pkg/logger"
	"camrelay/pkg/tracing"
	"camrelay/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const requestIDHeader = "X-Request-ID"

// HTTPRecorder is the subset of the Prometheus collector the request
// middleware feeds.
type HTTPRecorder interface {
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}

// TracingMiddleware adds tracing to HTTP requests
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := tracing.TraceHTTPRequest(c.Request.Context(), c.Request.Method, route)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.host", c.Request.Host),
			attribute.String("http.user_agent", c.Request.UserAgent()),
			attribute.String("http.remote_addr", c.ClientIP()),
		)

		if sc := span.SpanContext(); sc.HasTraceID() {
			ctx = logger.WithValue(ctx, logger.TraceIDKey, sc.TraceID().String())
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if userID, ok := CurrentUser(c); ok {
			span.SetAttributes(tracing.UserIDKey.String(string(userID)))
		}
		if cameraID := c.Param("cameraId"); cameraID != "" {
			span.SetAttributes(tracing.CameraIDKey.String(cameraID))
		}
		if sessionID := c.Param("sessionId"); sessionID != "" {
			span.SetAttributes(tracing.SessionIDKey.String(sessionID))
		}
		span.SetAttributes(
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int64("http.response_size", int64(c.Writer.Size())),
		)

		if c.Writer.Status() >= 500 {
			span.SetStatus(codes.Error, c.Errors.String())
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// RequestLoggingMiddleware assigns a request id, logs every completed request
// and records it on rec when rec is non-nil.
func RequestLoggingMiddleware(cl *logger.ContextLogger, rec HTTPRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = utils.GenerateRequestID()
		}
		c.Header(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(logger.WithValue(c.Request.Context(), logger.RequestIDKey, requestID))

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		cl.LogRequest(c.Request.Context(), c.Request.Method, c.Request.URL.Path, c.Writer.Status(), duration.Milliseconds())
		if rec != nil {
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			rec.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), duration)
		}
	}
}
