package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appLogger "github.com/YOGESHBOTCHA965/W/internal/infra/logger"
)

// Logger emits one access log line per request. Client IPs are masked and bodies are
// never logged, so credentials cannot leak through it.
func Logger(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		reqCtx := GetRequestContext(c)
		if reqCtx.IP == "" {
			reqCtx.IP = c.ClientIP()
		}

		fields := []zap.Field{
			zap.String("trace_id", reqCtx.TraceID),
			zap.String("request_id", reqCtx.RequestID),
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", appLogger.MaskIP(reqCtx.IP)),
		}

		if reqCtx.UserID != "" {
			fields = append(fields, zap.String("user_id", reqCtx.UserID))
		}
		if reqCtx.UserAgent != "" {
			fields = append(fields, zap.String("user_agent", reqCtx.UserAgent))
		}

		switch {
		case len(c.Errors) > 0:
			log.Error("request failed", append(fields, zap.String("errors", c.Errors.String()))...)
		case status >= 500:
			log.Error("request completed", fields...)
		case status >= 400:
			log.Warn("request completed", fields...)
		default:
			log.Info("request completed", fields...)
		}
	}
}
