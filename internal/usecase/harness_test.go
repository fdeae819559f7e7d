package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/YOGESHBOTCHA965/W/internal/core/domain"
	"github.com/YOGESHBOTCHA965/W/internal/core/port"
	"github.com/YOGESHBOTCHA965/W/internal/infra/security"
	"github.com/YOGESHBOTCHA965/W/internal/repository/memory"
)

const testPassword = "Passw0rd!"

type captureMailer struct {
	mu       sync.Mutex
	messages []port.OTPMessage
	err      error
}

func (m *captureMailer) SendResetOTP(_ context.Context, msg port.OTPMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return m.err
}

func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		t.Fatal("expected an otp to be mailed")
	}
	return m.messages[len(m.messages)-1].Code
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []string
}

func (p *recordingPublisher) record(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, name)
	return nil
}

func (p *recordingPublisher) PublishUserRegistered(context.Context, domain.UserRegisteredEvent) error {
	return p.record("user_registered")
}

func (p *recordingPublisher) PublishAccountLocked(context.Context, domain.AccountLockedEvent) error {
	return p.record("account_locked")
}

func (p *recordingPublisher) PublishRefreshReuseDetected(context.Context, domain.RefreshReuseDetectedEvent) error {
	return p.record("refresh_reuse_detected")
}

func (p *recordingPublisher) PublishPasswordResetRequested(context.Context, domain.PasswordResetRequestedEvent) error {
	return p.record("password_reset_requested")
}

func (p *recordingPublisher) PublishPasswordResetCompleted(context.Context, domain.PasswordResetCompletedEvent) error {
	return p.record("password_reset_completed")
}

func (p *recordingPublisher) has(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, got := range p.published {
		if got == name {
			return true
		}
	}
	return false
}

// testEnv wires every service against the in-memory store with a shared, movable clock.
type testEnv struct {
	now       time.Time
	users     *memory.UserRepository
	mailer    *captureMailer
	events    *recordingPublisher
	jwt       *security.JWTManager
	creds     *CredentialService
	tokens    *TokenService
	otp       *OTPService
	auth      *AuthService
	reset     *PasswordResetService
	validator *InputValidator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		now:    time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
		users:  memory.NewUserRepository(),
		mailer: &captureMailer{},
		events: &recordingPublisher{},
	}
	clock := func() time.Time { return env.now }

	hasher, err := security.NewBcryptHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcryptHasher returned error: %v", err)
	}
	jwtManager, err := security.NewJWTManager(security.JWTOptions{
		Issuer:        "wow-test",
		AccessSecret:  "access-secret-0123456789",
		RefreshSecret: "refresh-secret-0123456789",
	})
	if err != nil {
		t.Fatalf("NewJWTManager returned error: %v", err)
	}
	env.jwt = jwtManager.WithClock(clock)

	env.validator = NewInputValidator(nil)
	env.creds = NewCredentialService(env.users, hasher, env.validator, env.events, nil).WithClock(clock)
	env.tokens = NewTokenService(env.jwt, env.users, env.events, nil, nil).WithClock(clock)
	env.otp = NewOTPService(env.users, hasher, env.mailer, 10*time.Minute, nil).WithClock(clock)
	env.auth = NewAuthService(env.users, env.creds, env.tokens, NewLockoutPolicy(5, 30*time.Minute), env.validator, env.events, nil, nil).WithClock(clock)
	env.reset = NewPasswordResetService(env.users, env.creds, env.otp, env.tokens, hasher, env.validator, env.events, nil, nil).WithClock(clock)
	return env
}

func validRegistration() RegistrationInput {
	return RegistrationInput{
		FirstName:        "Asha",
		LastName:         "Rao",
		DOB:              "1994-07-21",
		Gender:           "Female",
		ContactNo:        "9876543210",
		Email:            "a@x.com",
		Password:         testPassword,
		SecurityQuestion: "What was the name of your first pet?",
		SecurityAnswer:   "Bruno",
	}
}

func (env *testEnv) register(t *testing.T) *domain.PublicUser {
	t.Helper()
	user, err := env.creds.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	return user
}

func (env *testEnv) login(t *testing.T) LoginResult {
	t.Helper()
	res, err := env.auth.Login(context.Background(), "a@x.com", testPassword)
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	return res
}

func expectValidation(t *testing.T, err error, message string) {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if verr.Message != message {
		t.Fatalf("expected message %q, got %q", message, verr.Message)
	}
}
