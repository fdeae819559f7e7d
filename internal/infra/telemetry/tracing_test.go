package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestStartSpanRecordsOutcome(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := newProvider(resource.Empty(), sdktrace.WithSyncer(exporter), 1)

	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	_, ok := StartSpan(context.Background(), "AuthService.Login", attribute.String("outcome", "ok"))
	ok.End(nil)

	ctx, failed := StartSpan(context.Background(), "TokenService.Rotate")
	if !trace.SpanContextFromContext(ctx).IsValid() {
		t.Fatal("expected the returned context to carry the span")
	}
	failed.End(errors.New("reuse detected"))

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name != "AuthService.Login" || spans[0].Status.Code != codes.Unset {
		t.Fatalf("unexpected first span %s %v", spans[0].Name, spans[0].Status)
	}
	if spans[1].Status.Code != codes.Error || len(spans[1].Events) == 0 {
		t.Fatalf("expected error status and event, got %v with %d events", spans[1].Status, len(spans[1].Events))
	}
}

func TestNewProviderFollowsParentSamplingDecision(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := newProvider(resource.Empty(), sdktrace.WithSyncer(exporter), 0)

	_, root := tp.Tracer("test").Start(context.Background(), "root")
	root.End()
	if got := len(exporter.GetSpans()); got != 0 {
		t.Fatalf("expected root span to be dropped at rate 0, got %d", got)
	}

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), parent)

	_, child := tp.Tracer("test").Start(ctx, "child")
	child.End()
	if got := len(exporter.GetSpans()); got != 1 {
		t.Fatalf("expected sampled parent to be honoured, got %d spans", got)
	}
}
