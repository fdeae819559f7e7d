package usecase

import (
	"context"
	"errors"
	"fmt"
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

// TokenPair is an access token issued together with its refresh token.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenService issues, rotates and revokes session tokens. Only the SHA-256 of the
// current refresh token is persisted, on the user record, so each user has at most
// one live refresh token: the newest login wins.
type TokenService struct {
	jwt     *security.JWTManager
	users   port.UserRepository
	events  port.EventPublisher
	metrics port.AuthMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewTokenService constructs a TokenService.
func NewTokenService(jwt *security.JWTManager, users port.UserRepository, events port.EventPublisher, metrics port.AuthMetrics, logger *zap.Logger) *TokenService {
	if metrics == nil {
		metrics = port.NopAuthMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenService{
		jwt:     jwt,
		users:   users,
		events:  events,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the time source used for store timestamps (primarily for tests).
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *TokenService) IssueAccessToken(userID string) (string, error) {
	token, _, err := s.jwt.Issue(security.TokenKindAccess, userID)
	return token, err
}

func (s *TokenService) IssueRefreshToken(userID string) (string, error) {
	token, _, err := s.jwt.Issue(security.TokenKindRefresh, userID)
	return token, err
}

// IssuePair signs a fresh access and refresh token. The caller persists
// security.HashToken(pair.RefreshToken) on the user.
func (s *TokenService) IssuePair(userID string) (TokenPair, error) {
	access, accessExp, err := s.jwt.Issue(security.TokenKindAccess, userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshExp, err := s.jwt.Issue(security.TokenKindRefresh, userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// VerifyAccessToken returns the user id carried by a valid access token.
func (s *TokenService) VerifyAccessToken(token string) (string, error) {
	claims, err := s.jwt.Parse(security.TokenKindAccess, token)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}
	return claims.UserID, nil
}

// Rotate exchanges a current refresh token for a new pair. A token that verifies but
// is not the stored one, or that loses a concurrent rotation, is treated as stolen:
// the stored hash is cleared and the user must log in again.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string) (TokenPair, error) {
	ctx, span := telemetry.StartSpan(ctx, "TokenService.Rotate")
	pair, err := s.rotate(ctx, refreshToken)
	span.End(err)
	return pair, err
}

func (s *TokenService) rotate(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.jwt.Parse(security.TokenKindRefresh, refreshToken)
	if err != nil {
		s.metrics.TokenRefresh("invalid")
		return TokenPair{}, ErrTokenInvalid
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.TokenRefresh("invalid")
			return TokenPair{}, ErrTokenInvalid
		}
		return TokenPair{}, fmt.Errorf("load user for refresh: %w", err)
	}

	presented := security.HashToken(refreshToken)
	if user.RefreshTokenHash == nil || !security.TokenHashesEqual(presented, *user.RefreshTokenHash) {
		return TokenPair{}, s.reuseDetected(ctx, user.ID, "hash_mismatch")
	}

	pair, err := s.IssuePair(user.ID)
	if err != nil {
		return TokenPair{}, err
	}

	err = s.users.SwapRefreshTokenHash(ctx, user.ID, presented, security.HashToken(pair.RefreshToken), s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return TokenPair{}, s.reuseDetected(ctx, user.ID, "concurrent_rotation")
		}
		return TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	s.metrics.TokenRefresh("success")
	return pair, nil
}

// Revoke clears the stored refresh hash so no refresh token of the user works any more.
func (s *TokenService) Revoke(ctx context.Context, userID string) error {
	if err := s.users.ClearRefreshTokenHash(ctx, userID, s.now().UTC()); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// IssueResetToken signs a password-reset capability for userID.
func (s *TokenService) IssueResetToken(userID string) (string, error) {
	token, _, err := s.jwt.Issue(security.TokenKindReset, userID)
	if err != nil {
		return "", fmt.Errorf("issue reset token: %w", err)
	}
	return token, nil
}

// VerifyResetToken returns the user id of a valid reset capability.
func (s *TokenService) VerifyResetToken(token string) (string, error) {
	claims, err := s.jwt.Parse(security.TokenKindReset, token)
	if err != nil {
		return "", ErrResetTokenInvalid
	}
	return claims.UserID, nil
}

func (s *TokenService) reuseDetected(ctx context.Context, userID, reason string) error {
	s.metrics.TokenRefresh("reuse_detected")
	s.logger.With(logger.ContextFields(ctx)...).Warn("refresh token reuse detected", zap.String("user_id", userID), zap.String("reason", reason))

	now := s.now().UTC()
	if err := s.users.ClearRefreshTokenHash(ctx, userID, now); err != nil {
		return fmt.Errorf("invalidate session after reuse: %w", err)
	}

	if s.events != nil {
		event := domain.RefreshReuseDetectedEvent{
			EventID:    uuid.NewString(),
			UserID:     userID,
			DetectedAt: now,
			Metadata:   map[string]any{"reason": reason},
		}
		if err := s.events.PublishRefreshReuseDetected(ctx, event); err != nil {
			s.logger.Warn("publish refresh reuse event failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	return ErrRefreshReuseDetected
}
