package usecase

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestBeginResetIsUniformForUnknownEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)
	ctx := context.Background()

	known, err := env.reset.BeginReset(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("BeginReset returned error: %v", err)
	}
	unknown, err := env.reset.BeginReset(ctx, "nobody@x.com")
	if err != nil {
		t.Fatalf("BeginReset returned error for unknown email: %v", err)
	}

	if reflect.TypeOf(known) != reflect.TypeOf(unknown) {
		t.Fatal("result shapes differ")
	}
	if !known.HasSecurityQuestion || known.SecurityQuestion == nil {
		t.Fatalf("expected security question for known account, got %+v", known)
	}
	if unknown.HasSecurityQuestion || unknown.SecurityQuestion != nil {
		t.Fatalf("expected empty result for unknown account, got %+v", unknown)
	}
	if env.mailer.count() != 1 {
		t.Fatalf("expected exactly one mailed otp, got %d", env.mailer.count())
	}
	if !env.events.has("password_reset_requested") {
		t.Fatal("expected reset requested event")
	}
}

func TestBeginResetHidesDeliveryFailure(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)
	env.mailer.err = errors.New("smtp down")

	res, err := env.reset.BeginReset(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("expected delivery failure to be hidden, got %v", err)
	}
	if !res.HasSecurityQuestion {
		t.Fatal("expected security question in result")
	}
}

func TestOTPIsConsumedOnFirstUse(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)
	ctx := context.Background()

	if _, err := env.reset.BeginReset(ctx, "a@x.com"); err != nil {
		t.Fatalf("BeginReset returned error: %v", err)
	}
	code := env.mailer.lastCode(t)
	if len(code) != 6 {
		t.Fatalf("expected six digit code, got %q", code)
	}

	token, err := env.reset.CompleteViaOTP(ctx, "a@x.com", code)
	if err != nil || token == "" {
		t.Fatalf("CompleteViaOTP returned %q, %v", token, err)
	}
	if _, err := env.reset.CompleteViaOTP(ctx, "a@x.com", code); !errors.Is(err, ErrNoPendingOTP) {
		t.Fatalf("expected ErrNoPendingOTP on second use, got %v", err)
	}
}

func TestWrongOTPBurnsTheCode(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)
	ctx := context.Background()

	if _, err := env.reset.BeginReset(ctx, "a@x.com"); err != nil {
		t.Fatalf("BeginReset returned error: %v", err)
	}
	code := env.mailer.lastCode(t)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	if _, err := env.reset.CompleteViaOTP(ctx, "a@x.com", wrong); !errors.Is(err, ErrOTPMismatch) {
		t.Fatalf("expected ErrOTPMismatch, got %v", err)
	}
	if _, err := env.reset.CompleteViaOTP(ctx, "a@x.com", code); !errors.Is(err, ErrNoPendingOTP) {
		t.Fatalf("expected correct code to be burned, got %v", err)
	}
}

func TestOTPExpiresAndReissueOverwrites(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)
	ctx := context.Background()

	if _, err := env.reset.BeginReset(ctx, "a@x.com"); err != nil {
		t.Fatalf("BeginReset returned error: %v", err)
	}
	first := env.mailer.lastCode(t)
	if _, err := env.reset.BeginReset(ctx, "a@x.com"); err != nil {
		t.Fatalf("BeginReset returned error: %v", err)
	}
	second := env.mailer.lastCode(t)

	if first != second {
		if _, err := env.reset.CompleteViaOTP(ctx, "a@x.com", first); !errors.Is(err, ErrOTPMismatch) {
			t.Fatalf("expected superseded code to mismatch, got %v", err)
		}
		if _, err := env.reset.BeginReset(ctx, "a@x.com"); err != nil {
			t.Fatalf("BeginReset returned error: %v", err)
		}
	}

	env.now = env.now.Add(10 * time.Minute)
	if _, err := env.reset.CompleteViaOTP(ctx, "a@x.com", env.mailer.lastCode(t)); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired, got %v", err)
	}
}

func TestCompleteViaOTPValidatesInput(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.reset.CompleteViaOTP(context.Background(), "a@x.com", "12345")
	expectValidation(t, err, "OTP must be 6 digits.")

	_, err = env.reset.CompleteViaOTP(context.Background(), "a@x.com", "12a456")
	expectValidation(t, err, "OTP must contain only digits.")

	if _, err := env.reset.CompleteViaOTP(context.Background(), "nobody@x.com", "123456"); !errors.Is(err, ErrNoPendingOTP) {
		t.Fatalf("expected ErrNoPendingOTP for unknown email, got %v", err)
	}
}

func TestCompleteViaSecurityAnswerRequiresBothFactors(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		email  string
		answer string
		dob    string
	}{
		{"wrong answer", "a@x.com", "Rex", "1994-07-21"},
		{"wrong dob", "a@x.com", "Bruno", "1994-07-22"},
		{"both wrong", "a@x.com", "Rex", "1990-01-01"},
		{"unknown email", "nobody@x.com", "Bruno", "1994-07-21"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.reset.CompleteViaSecurityAnswer(ctx, tc.email, tc.answer, tc.dob); !errors.Is(err, ErrVerificationFailed) {
				t.Fatalf("expected ErrVerificationFailed, got %v", err)
			}
		})
	}

	token, err := env.reset.CompleteViaSecurityAnswer(ctx, "A@X.com", " BRUNO ", "1994-07-21")
	if err != nil || token == "" {
		t.Fatalf("CompleteViaSecurityAnswer returned %q, %v", token, err)
	}
}

func TestSecurityQuestionLookup(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)

	question, err := env.reset.SecurityQuestion(context.Background(), "a@x.com")
	if err != nil || question == nil || *question != "What was the name of your first pet?" {
		t.Fatalf("unexpected question %v, %v", question, err)
	}
	question, err = env.reset.SecurityQuestion(context.Background(), "nobody@x.com")
	if err != nil || question != nil {
		t.Fatalf("expected nil question for unknown email, got %v, %v", question, err)
	}
}

func TestApplyNewPasswordEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)
	session := env.login(t)
	ctx := context.Background()

	if _, err := env.reset.BeginReset(ctx, "a@x.com"); err != nil {
		t.Fatalf("BeginReset returned error: %v", err)
	}
	resetToken, err := env.reset.CompleteViaOTP(ctx, "a@x.com", env.mailer.lastCode(t))
	if err != nil {
		t.Fatalf("CompleteViaOTP returned error: %v", err)
	}

	rejected := []struct {
		password string
		message  string
	}{
		{"weak", "Password must be at least 8 characters."},
		{"N3w-Passw0rd" + strings.Repeat("x", 61), "Password must be at most 72 bytes."},
		{"n3w-passw0rd", "Password must contain an uppercase letter."},
		{"N3W-PASSW0RD", "Password must contain a lowercase letter."},
		{"New-Password", "Password must contain a number."},
		{"N3wPassw0rdd", "Password must contain a special character."},
	}
	for _, tc := range rejected {
		err := env.reset.ApplyNewPassword(ctx, "a@x.com", tc.password, resetToken)
		if !errors.Is(err, ErrValidationFailed) {
			t.Fatalf("password %q: expected ErrValidationFailed, got %v", tc.password, err)
		}
		expectValidation(t, err, tc.message)
	}

	if err := env.reset.ApplyNewPassword(ctx, "a@x.com", "N3w-Passw0rd", resetToken); err != nil {
		t.Fatalf("ApplyNewPassword returned error: %v", err)
	}
	if !env.events.has("password_reset_completed") {
		t.Fatal("expected reset completed event")
	}

	if _, err := env.auth.Refresh(ctx, session.Tokens.RefreshToken); !errors.Is(err, ErrRefreshReuseDetected) {
		t.Fatalf("expected old refresh token to stop working, got %v", err)
	}
	if _, err := env.auth.Login(ctx, "a@x.com", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password to fail, got %v", err)
	}
	if _, err := env.auth.Login(ctx, "a@x.com", "N3w-Passw0rd"); err != nil {
		t.Fatalf("expected new password to work, got %v", err)
	}
}

func TestApplyNewPasswordRejectsForeignOrBadTokens(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t)
	other := validRegistration()
	other.Email = "b@x.com"
	if _, err := env.creds.Register(context.Background(), other); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	ctx := context.Background()

	token, err := env.tokens.IssueResetToken(user.ID)
	if err != nil {
		t.Fatalf("IssueResetToken returned error: %v", err)
	}
	if err := env.reset.ApplyNewPassword(ctx, "b@x.com", "N3w-Passw0rd", token); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected token for another email to fail, got %v", err)
	}

	access, _ := env.tokens.IssueAccessToken(user.ID)
	if err := env.reset.ApplyNewPassword(ctx, "a@x.com", "N3w-Passw0rd", access); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected access token to be rejected, got %v", err)
	}

	env.now = env.now.Add(6 * time.Minute)
	if err := env.reset.ApplyNewPassword(ctx, "a@x.com", "N3w-Passw0rd", token); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected expired reset token to fail, got %v", err)
	}
}
