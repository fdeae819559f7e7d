package logger

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"":                     "",
		"john.doe@example.com": "joh***@example.com",
		"al@wow.in":            "al***@wow.in",
		"not-an-email":         "***",
	}

	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskIP(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "192.168.1.100", want: "192.168.*.*"},
		{in: "::ffff:203.0.113.7", want: "203.0.*.*"},
		{in: "2001:db8:85a3::8a2e:370:7334", want: "2001:0db8:85a3:0000:*:*:*:*"},
		{in: "::1", want: "0000:0000:0000:0000:*:*:*:*"},
		{in: "localhost", want: "***"},
		{in: "", want: ""},
	}

	for _, tc := range cases {
		if got := MaskIP(tc.in); got != tc.want {
			t.Fatalf("MaskIP(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRequestIDFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), RequestIDKey{}, "req-1")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}
}

func TestContextFields(t *testing.T) {
	if fields := ContextFields(context.Background()); len(fields) != 0 {
		t.Fatalf("expected no fields, got %d", len(fields))
	}

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})

	ctx := context.WithValue(context.Background(), RequestIDKey{}, "req-2")
	ctx = trace.ContextWithSpanContext(ctx, sc)

	fields := ContextFields(ctx)
	if len(fields) != 2 {
		t.Fatalf("expected request and trace fields, got %d", len(fields))
	}
	if fields[0].Key != "request_id" || fields[0].String != "req-2" {
		t.Fatalf("unexpected request field %+v", fields[0])
	}
	if fields[1].Key != "trace_id" || fields[1].String != traceID.String() {
		t.Fatalf("unexpected trace field %+v", fields[1])
	}
}
