package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/YOGESHBOTCHA965/W/internal/infra/logger"
)

const (
	// TraceIDHeader echoes the correlation id back to the caller.
	TraceIDHeader = "X-Trace-ID"
	// RequestIDHeader carries the per-hop request id.
	RequestIDHeader = "X-Request-ID"
	// TraceIDKey is the gin context key for the trace id.
	TraceIDKey = "trace_id"
	// UserIDKey is the gin context key for the authenticated user id.
	UserIDKey = "user_id"
	// IdentityKey is the gin context key for the authenticated domain.Identity.
	IdentityKey = "identity"

	requestContextKey = "request_context"

	maxCorrelationIDLength = 128
)

// RequestContext holds request-scoped information
type RequestContext struct {
	TraceID   string
	RequestID string
	UserID    string
	IP        string
	UserAgent string
}

// EnrichContext assigns a trace id to every request. An active OpenTelemetry span wins,
// then a well-formed inbound X-Trace-ID, then a fresh UUID.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := ""
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}
		if traceID == "" {
			traceID = inboundID(c, TraceIDHeader)
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		c.Set(requestContextKey, &RequestContext{
			TraceID:   traceID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})

		c.Next()
	}
}

// RequestID echoes or mints X-Request-ID and stores it on the request context where
// logger.ContextFields can find it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := inboundID(c, RequestIDHeader)

		c.Header(RequestIDHeader, reqID)
		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey{}, reqID)
		c.Request = c.Request.WithContext(ctx)
		GetRequestContext(c).RequestID = reqID

		c.Next()
	}
}

// inboundID returns the header value when it is a plausible correlation id, otherwise a
// new UUID. Anything else would be copied verbatim into logs and response headers.
func inboundID(c *gin.Context, header string) string {
	id := c.GetHeader(header)
	if id == "" || len(id) > maxCorrelationIDLength {
		return uuid.NewString()
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return uuid.NewString()
		}
	}
	return id
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}

// GetRequestContext returns the request's RequestContext, creating and storing an empty
// one when EnrichContext did not run.
func GetRequestContext(c *gin.Context) *RequestContext {
	if ctx, exists := c.Get(requestContextKey); exists {
		if reqCtx, ok := ctx.(*RequestContext); ok {
			return reqCtx
		}
	}
	reqCtx := &RequestContext{}
	c.Set(requestContextKey, reqCtx)
	return reqCtx
}
