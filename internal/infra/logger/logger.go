package logger

import (
	"context"
	"net/netip"
	"regexp"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	lg   *zap.Logger
	once sync.Once
)

// New returns the process-wide zap.Logger tagged with service and env.
// Production uses the JSON encoder; every other environment gets colored console output.
func New(service, env string) (*zap.Logger, error) {
	var err error
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		if env != "production" {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}

		var built *zap.Logger
		built, err = cfg.Build()
		if err != nil {
			return
		}
		lg = built.With(zap.String("service", service), zap.String("env", env))
	})

	return lg, err
}

// RequestIDKey is used to store a request identifier on the context.
type RequestIDKey struct{}

// RequestIDFromContext returns the correlation id stored by the request id middleware.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if val, ok := ctx.Value(RequestIDKey{}).(string); ok {
		return val
	}
	return ""
}

// ContextFields returns the correlation fields carried by ctx: the request id and,
// when a span is active, its trace id.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	var fields []zap.Field
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	return fields
}

var emailRegex = regexp.MustCompile(`^([^@]{1,3})[^@]*(@.+)$`)

// MaskEmail masks email addresses, showing first 3 characters and domain
// Example: john.doe@example.com -> joh***@example.com
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	matches := emailRegex.FindStringSubmatch(email)
	if len(matches) == 3 {
		return matches[1] + "***" + matches[2]
	}

	parts := strings.SplitN(email, "@", 2)
	if len(parts) == 2 {
		return "***@" + parts[1]
	}

	return "***"
}

// MaskIP keeps the first two IPv4 octets or the first four IPv6 groups. IPv4-mapped
// IPv6 addresses are masked as IPv4.
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "***"
	}
	addr = addr.Unmap()

	if addr.Is4() {
		parts := strings.Split(addr.String(), ".")
		return parts[0] + "." + parts[1] + ".*.*"
	}

	groups := strings.Split(addr.WithZone("").StringExpanded(), ":")
	return strings.Join(groups[:4], ":") + ":*:*:*:*"
}
