package telemetry

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/YOGESHBOTCHA965/W/internal/core/port"
)

// AuthMetrics counts authentication outcomes in Prometheus.
type AuthMetrics struct {
	logins        *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	passwordReset *prometheus.CounterVec
}

// NewAuthMetrics registers the auth counters with reg, reusing collectors that are
// already registered. A nil reg selects the default registerer.
func NewAuthMetrics(reg prometheus.Registerer) (*AuthMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	logins, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: "wow",
		Subsystem: "auth",
		Name:      "login_attempts_total",
		Help:      "Login attempts partitioned by outcome.",
	}, "outcome")
	if err != nil {
		return nil, err
	}

	refreshes, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: "wow",
		Subsystem: "auth",
		Name:      "token_refresh_total",
		Help:      "Refresh token rotations partitioned by outcome.",
	}, "outcome")
	if err != nil {
		return nil, err
	}

	resets, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: "wow",
		Subsystem: "auth",
		Name:      "password_reset_total",
		Help:      "Password reset steps partitioned by stage and outcome.",
	}, "stage", "outcome")
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{logins: logins, refreshes: refreshes, passwordReset: resets}, nil
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels ...string) (*prometheus.CounterVec, error) {
	return RegisterOrReuse(reg, opts.Name, prometheus.NewCounterVec(opts, labels))
}

// RegisterOrReuse registers c with reg. When an equal collector is already registered
// that one is returned instead, so constructors can run more than once per process.
func RegisterOrReuse[C prometheus.Collector](reg prometheus.Registerer, name string, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return c, fmt.Errorf("register %s collector: %w", name, err)
		}
		existing, ok := already.ExistingCollector.(C)
		if !ok {
			return c, fmt.Errorf("existing %s collector has unexpected type %T", name, already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

func (m *AuthMetrics) LoginAttempt(outcome string) {
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *AuthMetrics) TokenRefresh(outcome string) {
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *AuthMetrics) PasswordReset(stage, outcome string) {
	m.passwordReset.WithLabelValues(stage, outcome).Inc()
}

var _ port.AuthMetrics = (*AuthMetrics)(nil)
