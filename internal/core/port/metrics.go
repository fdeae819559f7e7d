package port

// AuthMetrics records authentication outcomes.
type AuthMetrics interface {
	LoginAttempt(outcome string)
	TokenRefresh(outcome string)
	PasswordReset(stage string, outcome string)
}

// NopAuthMetrics discards every observation.
type NopAuthMetrics struct{}

func (NopAuthMetrics) LoginAttempt(string)          {}
func (NopAuthMetrics) TokenRefresh(string)          {}
func (NopAuthMetrics) PasswordReset(string, string) {}
