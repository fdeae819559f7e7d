package usecase

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoginIssuesPairAndStoresRefreshHash(t *testing.T) {
	env := newTestEnv(t)
	registered := env.register(t)

	res, err := env.auth.Login(context.Background(), " A@x.com", testPassword)
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if res.Tokens.AccessToken == "" || res.Tokens.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if res.User.ID != registered.ID {
		t.Fatalf("expected user %s, got %s", registered.ID, res.User.ID)
	}

	stored, _ := env.users.GetByID(context.Background(), registered.ID)
	if stored.RefreshTokenHash == nil {
		t.Fatal("expected refresh hash to be stored")
	}
	if *stored.RefreshTokenHash == res.Tokens.RefreshToken {
		t.Fatal("refresh token stored in plaintext")
	}
}

func TestLoginUnknownEmailAndWrongPasswordLookAlike(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)

	_, unknown := env.auth.Login(context.Background(), "nobody@x.com", testPassword)
	_, wrong := env.auth.Login(context.Background(), "a@x.com", "Wrong0rd!")
	if !errors.Is(unknown, ErrInvalidCredentials) || !errors.Is(wrong, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v and %v", unknown, wrong)
	}
}

func TestLoginLockoutSequence(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if _, err := env.auth.Login(ctx, "a@x.com", "Wrong0rd!"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	if !env.events.has("account_locked") {
		t.Fatal("expected account locked event")
	}

	env.now = env.now.Add(10*time.Minute + 30*time.Second)
	_, err := env.auth.Login(ctx, "a@x.com", testPassword)
	var locked *AccountLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected *AccountLockedError, got %v", err)
	}
	if locked.Minutes != 20 {
		t.Fatalf("expected 20 minutes remaining, got %d", locked.Minutes)
	}
	if want := "Account locked due to too many failed attempts. Try again in 20 minute(s)."; locked.Error() != want {
		t.Fatalf("unexpected message %q", locked.Error())
	}

	stored, _ := env.users.GetByID(ctx, user.ID)
	if stored.LoginAttempts != 5 {
		t.Fatalf("locked attempt consumed a slot: %d attempts", stored.LoginAttempts)
	}

	env.now = env.now.Add(20 * time.Minute)
	if _, err := env.auth.Login(ctx, "a@x.com", "Wrong0rd!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials after expiry, got %v", err)
	}
	stored, _ = env.users.GetByID(ctx, user.ID)
	if stored.LoginAttempts != 1 || stored.LockUntil != nil {
		t.Fatalf("expected counter reset to 1 and lock cleared, got %d %v", stored.LoginAttempts, stored.LockUntil)
	}

	env.login(t)
	stored, _ = env.users.GetByID(ctx, user.ID)
	if stored.LoginAttempts != 0 {
		t.Fatalf("expected counter reset on success, got %d", stored.LoginAttempts)
	}
}

func TestLoginValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.auth.Login(context.Background(), "", testPassword)
	expectValidation(t, err, "Email is required.")

	_, err = env.auth.Login(context.Background(), "a@x.com", "")
	expectValidation(t, err, "Password is required.")
}

func TestAuthenticateDistinguishesExpiredTokens(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t)
	res := env.login(t)
	ctx := context.Background()

	identity, err := env.auth.Authenticate(ctx, res.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if identity.ID != user.ID || identity.Email != "a@x.com" || identity.Name != "Asha Rao" {
		t.Fatalf("unexpected identity %+v", identity)
	}

	if _, err := env.auth.Authenticate(ctx, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := env.auth.Authenticate(ctx, "garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if _, err := env.auth.Authenticate(ctx, res.Tokens.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("refresh token accepted as access token: %v", err)
	}

	env.now = env.now.Add(16 * time.Minute)
	if _, err := env.auth.Authenticate(ctx, res.Tokens.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestAuthenticateRejectsTokenOfMissingUser(t *testing.T) {
	env := newTestEnv(t)
	token, err := env.tokens.IssueAccessToken("00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("IssueAccessToken returned error: %v", err)
	}
	if _, err := env.auth.Authenticate(context.Background(), token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestLogoutRevokesRefresh(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t)
	res := env.login(t)
	ctx := context.Background()

	if err := env.auth.Logout(ctx, user.ID); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if _, err := env.auth.Refresh(ctx, res.Tokens.RefreshToken); !errors.Is(err, ErrRefreshReuseDetected) {
		t.Fatalf("expected refresh after logout to fail, got %v", err)
	}
}

func TestMeReturnsProfile(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t)

	me, err := env.auth.Me(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Me returned error: %v", err)
	}
	if me.FirstName != "Asha" || me.SecurityQuestion == "" {
		t.Fatalf("unexpected profile %+v", me)
	}
	if _, err := env.auth.Me(context.Background(), "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
