package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRegisterStoresHashesAndReturnsPublicUser(t *testing.T) {
	env := newTestEnv(t)

	in := validRegistration()
	in.Email = "  A@X.com "
	user, err := env.creds.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.Email != "a@x.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}

	stored, err := env.users.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if stored.PasswordHash == "" || stored.PasswordHash == testPassword {
		t.Fatal("password was not hashed")
	}
	if !env.creds.VerifyPassword(*stored, testPassword) {
		t.Fatal("expected stored password hash to verify")
	}
	if !env.creds.VerifySecurityAnswer(*stored, "  bRUNO ") {
		t.Fatal("expected security answer to compare case-insensitively")
	}
	if env.creds.VerifySecurityAnswer(*stored, "Rex") {
		t.Fatal("wrong security answer verified")
	}
	if !env.events.has("user_registered") {
		t.Fatal("expected user registered event")
	}
}

func TestRegisterRejectsDuplicateEmailCaseInsensitively(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)

	in := validRegistration()
	in.Email = "A@X.COM"
	if _, err := env.creds.Register(context.Background(), in); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestRegisterReportsFirstViolation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*RegistrationInput)
		message string
	}{
		{"missing first name", func(in *RegistrationInput) { in.FirstName = "" }, "First name is required."},
		{"digits in name", func(in *RegistrationInput) { in.FirstName = "Asha2" }, "First name: letters only."},
		{"bad date", func(in *RegistrationInput) { in.DOB = "21/07/1994" }, "Invalid date format."},
		{"bad gender", func(in *RegistrationInput) { in.Gender = "Robot" }, "Invalid gender value."},
		{"short contact", func(in *RegistrationInput) { in.ContactNo = "12345" }, "Contact must be exactly 10 digits."},
		{"bad email", func(in *RegistrationInput) { in.Email = "not-an-email" }, "Invalid email address."},
		{"short password", func(in *RegistrationInput) { in.Password = "Pa0!" }, "Password must be at least 8 characters."},
		{"no uppercase", func(in *RegistrationInput) { in.Password = "passw0rd!" }, "Password must contain an uppercase letter."},
		{"no lowercase", func(in *RegistrationInput) { in.Password = "PASSW0RD!" }, "Password must contain a lowercase letter."},
		{"no digit", func(in *RegistrationInput) { in.Password = "Password!" }, "Password must contain a number."},
		{"no special", func(in *RegistrationInput) { in.Password = "Passw0rdd" }, "Password must contain a special character."},
		{"password over 72 bytes", func(in *RegistrationInput) { in.Password = "Passw0rd!" + strings.Repeat("x", 64) }, "Password must be at most 72 bytes."},
		{"answer over 72 bytes", func(in *RegistrationInput) { in.SecurityAnswer = strings.Repeat("b", 80) }, "Security answer is too long."},
		{"multibyte answer over 72 bytes", func(in *RegistrationInput) { in.SecurityAnswer = strings.Repeat("é", 40) }, "Security answer is too long."},
		{"first field wins", func(in *RegistrationInput) {
			in.LastName = ""
			in.Password = ""
		}, "Last name is required."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			in := validRegistration()
			tc.mutate(&in)

			_, err := env.creds.Register(context.Background(), in)
			if !errors.Is(err, ErrValidationFailed) {
				t.Fatalf("expected ErrValidationFailed, got %v", err)
			}
			expectValidation(t, err, tc.message)
		})
	}
}

func TestRegisterAcceptsSecretsAtTheByteLimit(t *testing.T) {
	env := newTestEnv(t)
	in := validRegistration()
	in.Password = "Passw0rd!" + strings.Repeat("x", 63)
	in.SecurityAnswer = strings.Repeat("b", 72)

	if _, err := env.creds.Register(context.Background(), in); err != nil {
		t.Fatalf("Register returned error for 72-byte secrets: %v", err)
	}
	if _, err := env.auth.Login(context.Background(), in.Email, in.Password); err != nil {
		t.Fatalf("Login with a 72-byte password returned error: %v", err)
	}
}

func TestBurnComparisonToleratesRepeatedCalls(t *testing.T) {
	env := newTestEnv(t)
	env.creds.BurnComparison("anything")
	env.creds.BurnComparison("anything else")
	if env.creds.decoyHash == "" {
		t.Fatal("expected decoy hash to be built")
	}
}
