package usecase

import (
	"math"
	"time"

	"github.com/YOGESHBOTCHA965/W/internal/core/domain"
)

const (
	defaultMaxLoginAttempts = 5
	defaultLockDuration     = 30 * time.Minute
)

// LockoutPolicy decides whether a user may attempt a login. Locks expire lazily:
// nothing sweeps them, IsLocked simply stops reporting them once lockUntil has passed.
type LockoutPolicy struct {
	rule domain.LockoutRule
}

// NewLockoutPolicy falls back to five attempts and thirty minutes for non-positive values.
func NewLockoutPolicy(maxAttempts int, lockFor time.Duration) LockoutPolicy {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxLoginAttempts
	}
	if lockFor <= 0 {
		lockFor = defaultLockDuration
	}
	return LockoutPolicy{rule: domain.LockoutRule{MaxAttempts: maxAttempts, LockFor: lockFor}}
}

// Rule is handed to UserRepository.RecordFailedLogin.
func (p LockoutPolicy) Rule() domain.LockoutRule {
	return p.rule
}

func (p LockoutPolicy) IsLocked(user domain.User, now time.Time) bool {
	return user.LockUntil != nil && user.LockUntil.After(now)
}

// MinutesRemaining rounds up, so a lock with seconds left still reports one minute.
func (p LockoutPolicy) MinutesRemaining(user domain.User, now time.Time) int {
	if !p.IsLocked(user, now) {
		return 0
	}
	return int(math.Ceil(user.LockUntil.Sub(now).Minutes()))
}

// LockedError builds the error returned to a caller hitting an active lock.
func (p LockoutPolicy) LockedError(user domain.User, now time.Time) *AccountLockedError {
	return &AccountLockedError{Minutes: p.MinutesRemaining(user, now), Until: *user.LockUntil}
}
