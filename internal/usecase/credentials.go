package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/YOGESHBOTCHA965/W/internal/core/domain"
	"github.com/YOGESHBOTCHA965/W/internal/core/port"
	"github.com/YOGESHBOTCHA965/W/internal/infra/logger"
	"github.com/YOGESHBOTCHA965/W/internal/repository"
)

// timingDecoy is hashed once and compared against when no account matches, so an
// unknown email costs the same hash work as a wrong password.
const timingDecoy = "wow-timing-decoy"

// RegistrationInput is the profile submitted at sign-up.
type RegistrationInput struct {
	FirstName        string `validate:"required,max=50,alphaspace"`
	LastName         string `validate:"required,max=50,alphaspace"`
	DOB              string `validate:"required,isodate"`
	Gender           string `validate:"required,oneof=Male Female Other"`
	ContactNo        string `validate:"required,len=10,digits"`
	Email            string `validate:"required,email"`
	Password         string `validate:"password"`
	SecurityQuestion string `validate:"required"`
	SecurityAnswer   string `validate:"required,max=100,answer"`
}

func (in *RegistrationInput) normalize() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.ContactNo = strings.TrimSpace(in.ContactNo)
	in.Email = NormalizeEmail(in.Email)
	in.SecurityQuestion = strings.TrimSpace(in.SecurityQuestion)
	in.SecurityAnswer = strings.TrimSpace(in.SecurityAnswer)
}

// CredentialService owns password and security-answer hashing for user accounts.
type CredentialService struct {
	users     port.UserRepository
	hasher    port.SecretHasher
	validator *InputValidator
	events    port.EventPublisher
	logger    *zap.Logger
	now       func() time.Time

	decoyOnce sync.Once
	decoyHash string
}

// NewCredentialService constructs a CredentialService.
func NewCredentialService(users port.UserRepository, hasher port.SecretHasher, validator *InputValidator, events port.EventPublisher, log *zap.Logger) *CredentialService {
	if validator == nil {
		validator = NewInputValidator(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CredentialService{
		users:     users,
		hasher:    hasher,
		validator: validator,
		events:    events,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the time source (primarily for tests).
func (s *CredentialService) WithClock(now func() time.Time) *CredentialService {
	if now != nil {
		s.now = now
	}
	return s
}

// Register validates the profile, hashes the password and the normalized security
// answer and stores the new account.
func (s *CredentialService) Register(ctx context.Context, in RegistrationInput) (*domain.PublicUser, error) {
	in.normalize()
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup user by email: %w", err)
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	answerHash, err := s.hasher.Hash(normalizeAnswer(in.SecurityAnswer))
	if err != nil {
		return nil, fmt.Errorf("hash security answer: %w", err)
	}

	now := s.now().UTC()
	created, err := s.users.Create(ctx, domain.User{
		FirstName:          in.FirstName,
		LastName:           in.LastName,
		DOB:                in.DOB,
		Gender:             domain.Gender(in.Gender),
		ContactNo:          in.ContactNo,
		Email:              in.Email,
		PasswordHash:       passwordHash,
		SecurityQuestion:   in.SecurityQuestion,
		SecurityAnswerHash: answerHash,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered",
		zap.String("user_id", created.ID),
		zap.String("email", logger.MaskEmail(created.Email)),
	)

	if s.events != nil {
		event := domain.UserRegisteredEvent{
			EventID:      uuid.NewString(),
			UserID:       created.ID,
			Email:        created.Email,
			RegisteredAt: now,
		}
		if err := s.events.PublishUserRegistered(ctx, event); err != nil {
			s.logger.Warn("publish user registered event failed", zap.String("user_id", created.ID), zap.Error(err))
		}
	}

	public := created.Public()
	return &public, nil
}

// VerifyPassword compares candidate against the stored hash using the algorithm's own comparison.
func (s *CredentialService) VerifyPassword(user domain.User, candidate string) bool {
	return s.verify(candidate, user.PasswordHash, user.ID, "password")
}

// VerifySecurityAnswer normalizes candidate the same way registration did before comparing.
func (s *CredentialService) VerifySecurityAnswer(user domain.User, candidate string) bool {
	return s.verify(normalizeAnswer(candidate), user.SecurityAnswerHash, user.ID, "security answer")
}

// BurnComparison spends one hash comparison on a decoy.
func (s *CredentialService) BurnComparison(candidate string) {
	s.decoyOnce.Do(func() {
		hash, err := s.hasher.Hash(timingDecoy)
		if err != nil {
			s.logger.Warn("build timing decoy hash failed", zap.Error(err))
			return
		}
		s.decoyHash = hash
	})
	if s.decoyHash != "" {
		_, _ = s.hasher.Verify(candidate, s.decoyHash)
	}
}

func (s *CredentialService) verify(candidate, encoded, userID, what string) bool {
	if encoded == "" {
		return false
	}
	ok, err := s.hasher.Verify(candidate, encoded)
	if err != nil {
		s.logger.Error("verify "+what+" failed", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	return ok
}

func normalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}
