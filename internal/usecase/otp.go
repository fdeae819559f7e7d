package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/YOGESHBOTCHA965/W/internal/core/domain"
	"github.com/YOGESHBOTCHA965/W/internal/core/port"
	"github.com/YOGESHBOTCHA965/W/internal/infra/security"
)

const defaultOTPExpiry = 10 * time.Minute

// OTPService issues and checks password-reset codes. Only a hash of the pending code
// is stored; issuing a new code replaces the previous one.
type OTPService struct {
	users     port.UserRepository
	hasher    port.SecretHasher
	generator *security.OTPGenerator
	mailer    port.OTPMailer
	expiry    time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewOTPService constructs an OTPService. hasher may be cheaper than the password
// hasher: codes live for minutes and are burned on the first guess.
func NewOTPService(users port.UserRepository, hasher port.SecretHasher, mailer port.OTPMailer, expiry time.Duration, logger *zap.Logger) *OTPService {
	if expiry <= 0 {
		expiry = defaultOTPExpiry
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OTPService{
		users:     users,
		hasher:    hasher,
		generator: security.NewOTPGenerator(),
		mailer:    mailer,
		expiry:    expiry,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the time source (primarily for tests).
func (s *OTPService) WithClock(now func() time.Time) *OTPService {
	if now != nil {
		s.now = now
	}
	return s
}

// Expiry is how long an issued code stays valid.
func (s *OTPService) Expiry() time.Duration {
	return s.expiry
}

// Generate returns a fresh six-digit code.
func (s *OTPService) Generate() (string, error) {
	return s.generator.Generate()
}

// IssueFor stores the hash of a new code on the user, replacing any pending one, and
// hands the plaintext to the mailer. The code is stored before it is sent so a delivered
// code is always verifiable. It returns the code and its expiry.
func (s *OTPService) IssueFor(ctx context.Context, user domain.User) (string, time.Time, error) {
	code, err := s.Generate()
	if err != nil {
		return "", time.Time{}, err
	}
	hash, err := s.hasher.Hash(code)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("hash otp: %w", err)
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.expiry)
	if err := s.users.SetResetOTP(ctx, user.ID, hash, expiresAt, now); err != nil {
		return "", time.Time{}, fmt.Errorf("store otp: %w", err)
	}

	msg := port.OTPMessage{
		To:            user.Email,
		Name:          user.FirstName,
		Code:          code,
		ExpiryMinutes: int(s.expiry / time.Minute),
	}
	if err := s.mailer.SendResetOTP(ctx, msg); err != nil {
		return code, expiresAt, fmt.Errorf("send otp: %w", err)
	}

	return code, expiresAt, nil
}

// Verify takes the pending code off the user and compares it. Every call consumes the
// code, whatever the outcome, so a code can be guessed at most once.
func (s *OTPService) Verify(ctx context.Context, user domain.User, candidate string) error {
	now := s.now().UTC()
	pending, err := s.users.ConsumeResetOTP(ctx, user.ID, now)
	if err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	if pending == nil {
		return ErrNoPendingOTP
	}
	if !pending.ExpiresAt.After(now) {
		return ErrOTPExpired
	}

	ok, err := s.hasher.Verify(candidate, pending.Hash)
	if err != nil {
		return fmt.Errorf("verify otp: %w", err)
	}
	if !ok {
		return ErrOTPMismatch
	}
	return nil
}
