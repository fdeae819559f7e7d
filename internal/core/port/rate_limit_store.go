package port

import (
	"context"
	"time"
)

// RateLimitStore keeps per-identifier attempt timestamps for sliding-window limits.
// Identifiers are already scoped by rule name (e.g. "auth:203.0.113.7").
type RateLimitStore interface {
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}
