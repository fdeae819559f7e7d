package port

import (
	"context"
	"time"

	"github.com/YOGESHBOTCHA965/W/internal/core/domain"
)

// UserRepository exposes persistence behavior for users.
//
// Every mutating method is a single atomic operation against the backing store.
// Implementations return repository.ErrNotFound for unknown users,
// repository.ErrDuplicate for an already registered email and
// repository.ErrConflict when a compare-and-swap precondition no longer holds.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	RecordFailedLogin(ctx context.Context, id string, now time.Time, rule domain.LockoutRule) (domain.LockoutState, error)
	RecordSuccessfulLogin(ctx context.Context, id string, refreshHash string, now time.Time) error

	SwapRefreshTokenHash(ctx context.Context, id string, expected string, next string, now time.Time) error
	ClearRefreshTokenHash(ctx context.Context, id string, now time.Time) error

	SetResetOTP(ctx context.Context, id string, hash string, expiresAt time.Time, now time.Time) error
	// ConsumeResetOTP takes the pending code off the user and returns it; nil when none is pending.
	ConsumeResetOTP(ctx context.Context, id string, now time.Time) (*domain.PendingOTP, error)

	// ResetPassword stores the new hash and clears the refresh hash and any pending OTP.
	ResetPassword(ctx context.Context, id string, passwordHash string, now time.Time) error
}
