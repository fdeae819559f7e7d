package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/YOGESHBOTCHA965/W/internal/core/domain"
	"github.com/YOGESHBOTCHA965/W/internal/core/port"
	"github.com/YOGESHBOTCHA965/W/internal/infra/logger"
	"github.com/YOGESHBOTCHA965/W/internal/infra/security"
	"github.com/YOGESHBOTCHA965/W/internal/infra/telemetry"
	"github.com/YOGESHBOTCHA965/W/internal/repository"
)

type loginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type refreshInput struct {
	RefreshToken string `validate:"required"`
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Tokens TokenPair
	User   domain.PublicUser
}

// AuthService handles sessions: login with lockout, refresh, logout and resolving the
// caller of an authenticated request.
type AuthService struct {
	users       port.UserRepository
	credentials *CredentialService
	tokens      *TokenService
	lockout     LockoutPolicy
	validator   *InputValidator
	events      port.EventPublisher
	metrics     port.AuthMetrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(
	users port.UserRepository,
	credentials *CredentialService,
	tokens *TokenService,
	lockout LockoutPolicy,
	validator *InputValidator,
	events port.EventPublisher,
	metrics port.AuthMetrics,
	log *zap.Logger,
) *AuthService {
	if validator == nil {
		validator = NewInputValidator(nil)
	}
	if metrics == nil {
		metrics = port.NopAuthMetrics{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		users:       users,
		credentials: credentials,
		tokens:      tokens,
		lockout:     lockout,
		validator:   validator,
		events:      events,
		metrics:     metrics,
		logger:      log,
		now:         time.Now,
	}
}

// WithClock overrides the time source (primarily for tests).
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	if now != nil {
		s.now = now
	}
	return s
}

// Login checks the password, applies the lockout policy and opens a session. An
// active lock is reported before the password is checked and does not count as an
// attempt.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "AuthService.Login")
	res, err := s.login(ctx, email, password)
	span.End(err)
	return res, err
}

func (s *AuthService) login(ctx context.Context, email, password string) (LoginResult, error) {
	in := loginInput{Email: NormalizeEmail(email), Password: password}
	if err := s.validator.Struct(in); err != nil {
		return LoginResult{}, err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.credentials.BurnComparison(in.Password)
			s.metrics.LoginAttempt("unknown_email")
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("lookup user by email: %w", err)
	}

	now := s.now().UTC()
	if s.lockout.IsLocked(*user, now) {
		s.metrics.LoginAttempt("locked")
		return LoginResult{}, s.lockout.LockedError(*user, now)
	}

	if !s.credentials.VerifyPassword(*user, in.Password) {
		return LoginResult{}, s.failedLogin(ctx, *user, now)
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.users.RecordSuccessfulLogin(ctx, user.ID, security.HashToken(pair.RefreshToken), now); err != nil {
		return LoginResult{}, fmt.Errorf("record successful login: %w", err)
	}

	s.metrics.LoginAttempt("success")
	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.String("email", logger.MaskEmail(user.Email)))

	return LoginResult{Tokens: pair, User: user.Public()}, nil
}

func (s *AuthService) failedLogin(ctx context.Context, user domain.User, now time.Time) error {
	state, err := s.users.RecordFailedLogin(ctx, user.ID, now, s.lockout.Rule())
	if err != nil {
		return fmt.Errorf("record failed login: %w", err)
	}

	if state.LockUntil == nil || !state.LockUntil.After(now) {
		s.metrics.LoginAttempt("invalid_password")
		return ErrInvalidCredentials
	}

	s.metrics.LoginAttempt("locked_now")
	s.logger.With(logger.ContextFields(ctx)...).Warn("account locked after failed logins",
		zap.String("user_id", user.ID),
		zap.Int("attempts", state.LoginAttempts),
		zap.Time("lock_until", *state.LockUntil),
	)

	if s.events != nil {
		event := domain.AccountLockedEvent{
			EventID:     uuid.NewString(),
			UserID:      user.ID,
			Attempts:    state.LoginAttempts,
			LockedAt:    now,
			LockedUntil: *state.LockUntil,
		}
		if err := s.events.PublishAccountLocked(ctx, event); err != nil {
			s.logger.Warn("publish account locked event failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	// The attempt that trips the lock still reads as a bad password; the lock is
	// reported from the next attempt on.
	return ErrInvalidCredentials
}

// Refresh rotates a refresh token into a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	in := refreshInput{RefreshToken: strings.TrimSpace(refreshToken)}
	if err := s.validator.Struct(in); err != nil {
		return TokenPair{}, err
	}
	return s.tokens.Rotate(ctx, in.RefreshToken)
}

// Logout revokes the caller's refresh token. Access tokens already issued stay valid
// until they expire.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	err := s.tokens.Revoke(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err == nil {
		s.logger.Info("user logged out", zap.String("user_id", userID))
	}
	return err
}

// Me returns the public profile of the caller.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.PublicUser, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	public := user.Public()
	return &public, nil
}

// Authenticate resolves a bearer access token to the identity of a user that still
// exists.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (domain.Identity, error) {
	if strings.TrimSpace(accessToken) == "" {
		return domain.Identity{}, ErrUnauthenticated
	}

	userID, err := s.tokens.VerifyAccessToken(accessToken)
	if err != nil {
		return domain.Identity{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Identity{}, ErrUnauthenticated
		}
		return domain.Identity{}, fmt.Errorf("load user: %w", err)
	}
	return user.Identity(), nil
}
