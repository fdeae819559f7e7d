package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const defaultTracingService = "wow-auth"

// TracingOptions configures the server span middleware.
type TracingOptions struct {
	ServiceName    string
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
	Additional     []otelgin.Option
}

// Tracing starts a server span per request through otelgin, continuing any W3C trace
// context the caller sent. A nil provider falls back to the global one, which is a
// no-op until tracing is configured.
func Tracing(opts TracingOptions) gin.HandlerFunc {
	service := opts.ServiceName
	if service == "" {
		service = defaultTracingService
	}

	propagators := opts.Propagators
	if propagators == nil {
		propagators = propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	}

	options := make([]otelgin.Option, 0, len(opts.Additional)+2)
	if opts.TracerProvider != nil {
		options = append(options, otelgin.WithTracerProvider(opts.TracerProvider))
	}
	options = append(options, otelgin.WithPropagators(propagators))
	options = append(options, opts.Additional...)

	return otelgin.Middleware(service, options...)
}
