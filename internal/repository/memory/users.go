package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/YOGESHBOTCHA965/W/internal/core/domain"
	"github.com/YOGESHBOTCHA965/W/internal/core/port"
	"github.com/YOGESHBOTCHA965/W/internal/repository"
)

// UserRepository keeps users in process memory. Every method holds the lock for the
// whole read-modify-write, which gives it the same atomicity as the database stores.
type UserRepository struct {
	mu      sync.Mutex
	byID    map[string]*domain.User
	byEmail map[string]string
}

var _ port.UserRepository = (*UserRepository)(nil)

// NewUserRepository returns an empty store.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
	}
}

func (r *UserRepository) Create(_ context.Context, user domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, exists := r.byEmail[key]; exists {
		return nil, repository.ErrDuplicate
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	stored := cloneUser(user)
	r.byID[user.ID] = &stored
	r.byEmail[key] = user.ID

	out := cloneUser(stored)
	return &out, nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneUser(*user)
	return &out, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneUser(*r.byID[id])
	return &out, nil
}

func (r *UserRepository) RecordFailedLogin(_ context.Context, id string, now time.Time, rule domain.LockoutRule) (domain.LockoutState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return domain.LockoutState{}, repository.ErrNotFound
	}

	lockExpired := user.LockUntil != nil && !user.LockUntil.After(now)
	if lockExpired {
		user.LoginAttempts = 1
		user.LockUntil = nil
	} else {
		user.LoginAttempts++
	}
	lockActive := user.LockUntil != nil && user.LockUntil.After(now)
	if !lockActive && user.LoginAttempts >= rule.MaxAttempts {
		until := now.Add(rule.LockFor)
		user.LockUntil = &until
	}
	user.UpdatedAt = now

	return domain.LockoutState{LoginAttempts: user.LoginAttempts, LockUntil: cloneTime(user.LockUntil)}, nil
}

func (r *UserRepository) RecordSuccessfulLogin(_ context.Context, id string, refreshHash string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.LoginAttempts = 0
	user.LockUntil = nil
	user.RefreshTokenHash = &refreshHash
	user.UpdatedAt = now
	return nil
}

func (r *UserRepository) SwapRefreshTokenHash(_ context.Context, id string, expected string, next string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if user.RefreshTokenHash == nil || *user.RefreshTokenHash != expected {
		return repository.ErrConflict
	}
	user.RefreshTokenHash = &next
	user.UpdatedAt = now
	return nil
}

func (r *UserRepository) ClearRefreshTokenHash(_ context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.RefreshTokenHash = nil
	user.UpdatedAt = now
	return nil
}

func (r *UserRepository) SetResetOTP(_ context.Context, id string, hash string, expiresAt time.Time, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.ResetOTPHash = &hash
	user.ResetOTPExpiry = &expiresAt
	user.UpdatedAt = now
	return nil
}

func (r *UserRepository) ConsumeResetOTP(_ context.Context, id string, now time.Time) (*domain.PendingOTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if user.ResetOTPHash == nil {
		return nil, nil
	}

	pending := &domain.PendingOTP{Hash: *user.ResetOTPHash}
	if user.ResetOTPExpiry != nil {
		pending.ExpiresAt = *user.ResetOTPExpiry
	}
	user.ResetOTPHash = nil
	user.ResetOTPExpiry = nil
	user.UpdatedAt = now
	return pending, nil
}

func (r *UserRepository) ResetPassword(_ context.Context, id string, passwordHash string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.RefreshTokenHash = nil
	user.ResetOTPHash = nil
	user.ResetOTPExpiry = nil
	user.UpdatedAt = now
	return nil
}

func cloneUser(u domain.User) domain.User {
	u.LockUntil = cloneTime(u.LockUntil)
	u.ResetOTPExpiry = cloneTime(u.ResetOTPExpiry)
	u.RefreshTokenHash = cloneString(u.RefreshTokenHash)
	u.ResetOTPHash = cloneString(u.ResetOTPHash)
	return u
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
