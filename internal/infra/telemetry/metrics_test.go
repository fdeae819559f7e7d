package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAuthMetricsCountsOutcomes(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewAuthMetrics(registry)
	if err != nil {
		t.Fatalf("NewAuthMetrics returned error: %v", err)
	}

	metrics.LoginAttempt("success")
	metrics.LoginAttempt("success")
	metrics.TokenRefresh("reuse_detected")
	metrics.PasswordReset("verify_otp", "failed")

	if got := testutil.ToFloat64(metrics.logins.WithLabelValues("success")); got != 2 {
		t.Fatalf("expected 2 successful logins, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.refreshes.WithLabelValues("reuse_detected")); got != 1 {
		t.Fatalf("expected 1 reuse, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.passwordReset.WithLabelValues("verify_otp", "failed")); got != 1 {
		t.Fatalf("expected 1 failed otp verification, got %f", got)
	}
}

func TestNewAuthMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewAuthMetrics(registry)
	if err != nil {
		t.Fatalf("NewAuthMetrics returned error: %v", err)
	}
	second, err := NewAuthMetrics(registry)
	if err != nil {
		t.Fatalf("second NewAuthMetrics returned error: %v", err)
	}

	first.LoginAttempt("locked")
	if got := testutil.ToFloat64(second.logins.WithLabelValues("locked")); got != 1 {
		t.Fatalf("expected shared collector, got %f", got)
	}
}
