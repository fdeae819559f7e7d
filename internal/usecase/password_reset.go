package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/YOGESHBOTCHA965/W/internal/core/domain"
	"github.com/YOGESHBOTCHA965/W/internal/core/port"
	"github.com/YOGESHBOTCHA965/W/internal/infra/logger"
	"github.com/YOGESHBOTCHA965/W/internal/infra/telemetry"
	"github.com/YOGESHBOTCHA965/W/internal/repository"
)

const resetDeliveryEmail = "email"

// ForgotPasswordResult is identical in shape whether or not the account exists.
type ForgotPasswordResult struct {
	HasSecurityQuestion bool
	SecurityQuestion    *string
}

type emailInput struct {
	Email string `validate:"required,email"`
}

type verifyOTPInput struct {
	Email string `validate:"required,email"`
	OTP   string `validate:"required,len=6,digits"`
}

type verifyIdentityInput struct {
	Email          string `validate:"required,email"`
	SecurityAnswer string `validate:"required"`
	DOB            string `validate:"required,isodate"`
}

type resetPasswordInput struct {
	Email       string `validate:"required,email"`
	NewPassword string `validate:"required,password"`
	ResetToken  string `validate:"required"`
}

// PasswordResetService drives forgot-password: a challenge (emailed OTP, or security
// answer plus date of birth) yields a five-minute reset token that authorizes one
// password change.
type PasswordResetService struct {
	users       port.UserRepository
	credentials *CredentialService
	otp         *OTPService
	tokens      *TokenService
	hasher      port.SecretHasher
	validator   *InputValidator
	events      port.EventPublisher
	metrics     port.AuthMetrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewPasswordResetService constructs a PasswordResetService.
func NewPasswordResetService(
	users port.UserRepository,
	credentials *CredentialService,
	otp *OTPService,
	tokens *TokenService,
	hasher port.SecretHasher,
	validator *InputValidator,
	events port.EventPublisher,
	metrics port.AuthMetrics,
	log *zap.Logger,
) *PasswordResetService {
	if validator == nil {
		validator = NewInputValidator(nil)
	}
	if metrics == nil {
		metrics = port.NopAuthMetrics{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PasswordResetService{
		users:       users,
		credentials: credentials,
		otp:         otp,
		tokens:      tokens,
		hasher:      hasher,
		validator:   validator,
		events:      events,
		metrics:     metrics,
		logger:      log,
		now:         time.Now,
	}
}

// WithClock overrides the time source (primarily for tests).
func (s *PasswordResetService) WithClock(now func() time.Time) *PasswordResetService {
	if now != nil {
		s.now = now
	}
	return s
}

// BeginReset sends a reset code when the account exists. The result always reports
// success; only the security question fields differ.
func (s *PasswordResetService) BeginReset(ctx context.Context, email string) (ForgotPasswordResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "PasswordResetService.BeginReset")
	res, err := s.beginReset(ctx, email)
	span.End(err)
	return res, err
}

func (s *PasswordResetService) beginReset(ctx context.Context, email string) (ForgotPasswordResult, error) {
	email = NormalizeEmail(email)
	if err := s.validator.Struct(emailInput{Email: email}); err != nil {
		return ForgotPasswordResult{}, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.PasswordReset("request", "unknown_account")
			return ForgotPasswordResult{}, nil
		}
		return ForgotPasswordResult{}, fmt.Errorf("lookup user by email: %w", err)
	}

	_, expiresAt, err := s.otp.IssueFor(ctx, *user)
	if err != nil {
		// The response must not reveal that the account exists, so delivery
		// failures are only logged.
		s.metrics.PasswordReset("request", "delivery_failed")
		s.logger.Error("issue reset otp failed", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		s.metrics.PasswordReset("request", "sent")
		s.publishRequested(ctx, *user, expiresAt)
	}

	return questionResult(user), nil
}

// SecurityQuestion returns the account's question, or nil when no account matches.
func (s *PasswordResetService) SecurityQuestion(ctx context.Context, email string) (*string, error) {
	email = NormalizeEmail(email)
	if err := s.validator.Struct(emailInput{Email: email}); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup user by email: %w", err)
	}
	return questionResult(user).SecurityQuestion, nil
}

// CompleteViaOTP checks the emailed code and returns a reset token.
func (s *PasswordResetService) CompleteViaOTP(ctx context.Context, email, code string) (string, error) {
	in := verifyOTPInput{Email: NormalizeEmail(email), OTP: strings.TrimSpace(code)}
	if err := s.validator.Struct(in); err != nil {
		return "", err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.PasswordReset("verify_otp", "failed")
			return "", ErrNoPendingOTP
		}
		return "", fmt.Errorf("lookup user by email: %w", err)
	}

	if err := s.otp.Verify(ctx, *user, in.OTP); err != nil {
		s.metrics.PasswordReset("verify_otp", "failed")
		return "", err
	}

	s.metrics.PasswordReset("verify_otp", "success")
	return s.tokens.IssueResetToken(user.ID)
}

// CompleteViaSecurityAnswer requires both the stored date of birth and the security
// answer to match. Both are always checked and a failure never says which one was wrong.
func (s *PasswordResetService) CompleteViaSecurityAnswer(ctx context.Context, email, answer, dob string) (string, error) {
	in := verifyIdentityInput{Email: NormalizeEmail(email), SecurityAnswer: strings.TrimSpace(answer), DOB: dob}
	if err := s.validator.Struct(in); err != nil {
		return "", err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.credentials.BurnComparison(in.SecurityAnswer)
			s.metrics.PasswordReset("verify_identity", "failed")
			return "", ErrVerificationFailed
		}
		return "", fmt.Errorf("lookup user by email: %w", err)
	}

	dobMatches := subtle.ConstantTimeCompare([]byte(user.DOB), []byte(in.DOB)) == 1
	answerMatches := s.credentials.VerifySecurityAnswer(*user, in.SecurityAnswer)
	if !dobMatches || !answerMatches {
		s.metrics.PasswordReset("verify_identity", "failed")
		s.logger.Info("identity verification failed", zap.String("user_id", user.ID))
		return "", ErrVerificationFailed
	}

	s.metrics.PasswordReset("verify_identity", "success")
	return s.tokens.IssueResetToken(user.ID)
}

// ApplyNewPassword checks the reset token against the submitted email, stores the new
// password hash and clears the refresh hash and any pending code in one update, which
// signs the user out everywhere.
func (s *PasswordResetService) ApplyNewPassword(ctx context.Context, email, newPassword, resetToken string) error {
	ctx, span := telemetry.StartSpan(ctx, "PasswordResetService.ApplyNewPassword")
	err := s.applyNewPassword(ctx, email, newPassword, resetToken)
	span.End(err)
	return err
}

func (s *PasswordResetService) applyNewPassword(ctx context.Context, email, newPassword, resetToken string) error {
	in := resetPasswordInput{Email: NormalizeEmail(email), NewPassword: newPassword, ResetToken: strings.TrimSpace(resetToken)}
	if err := s.validator.Struct(in); err != nil {
		return err
	}

	userID, err := s.tokens.VerifyResetToken(in.ResetToken)
	if err != nil {
		s.metrics.PasswordReset("apply", "invalid_token")
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.PasswordReset("apply", "invalid_token")
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("load user for reset: %w", err)
	}
	if user.Email != in.Email {
		s.metrics.PasswordReset("apply", "invalid_token")
		s.logger.With(logger.ContextFields(ctx)...).Warn("reset token presented for another email",
			zap.String("user_id", user.ID),
			zap.String("email", logger.MaskEmail(in.Email)),
		)
		return ErrResetTokenInvalid
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	if err := s.users.ResetPassword(ctx, user.ID, hash, now); err != nil {
		return fmt.Errorf("store new password: %w", err)
	}

	s.metrics.PasswordReset("apply", "success")
	s.logger.Info("password reset completed", zap.String("user_id", user.ID))

	if s.events != nil {
		event := domain.PasswordResetCompletedEvent{
			EventID:     uuid.NewString(),
			UserID:      user.ID,
			CompletedAt: now,
		}
		if err := s.events.PublishPasswordResetCompleted(ctx, event); err != nil {
			s.logger.Warn("publish password reset completed event failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	return nil
}

func (s *PasswordResetService) publishRequested(ctx context.Context, user domain.User, expiresAt time.Time) {
	if s.events == nil {
		return
	}
	event := domain.PasswordResetRequestedEvent{
		EventID:           uuid.NewString(),
		UserID:            user.ID,
		RequestedAt:       s.now().UTC(),
		DeliveryMethod:    resetDeliveryEmail,
		MaskedDestination: logger.MaskEmail(user.Email),
		ExpiresAt:         expiresAt,
	}
	if err := s.events.PublishPasswordResetRequested(ctx, event); err != nil {
		s.logger.Warn("publish password reset requested event failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func questionResult(user *domain.User) ForgotPasswordResult {
	if user == nil || user.SecurityQuestion == "" {
		return ForgotPasswordResult{}
	}
	question := user.SecurityQuestion
	return ForgotPasswordResult{HasSecurityQuestion: true, SecurityQuestion: &question}
}
