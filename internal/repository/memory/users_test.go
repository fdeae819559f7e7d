package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/YOGESHBOTCHA965/W/internal/core/domain"
	"github.com/YOGESHBOTCHA965/W/internal/repository"
)

var testRule = domain.LockoutRule{MaxAttempts: 5, LockFor: 30 * time.Minute}

func seedUser(t *testing.T, repo *UserRepository) *domain.User {
	t.Helper()
	user, err := repo.Create(context.Background(), domain.User{Email: "asha@example.com", FirstName: "Asha"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	return user
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	repo := NewUserRepository()
	seedUser(t, repo)

	_, err := repo.Create(context.Background(), domain.User{Email: "ASHA@example.com"})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestGetReturnsCopies(t *testing.T) {
	repo := NewUserRepository()
	user := seedUser(t, repo)

	now := time.Now()
	if err := repo.RecordSuccessfulLogin(context.Background(), user.ID, "hash-1", now); err != nil {
		t.Fatalf("RecordSuccessfulLogin returned error: %v", err)
	}

	got, _ := repo.GetByID(context.Background(), user.ID)
	*got.RefreshTokenHash = "tampered"

	again, _ := repo.GetByEmail(context.Background(), "asha@example.com")
	if *again.RefreshTokenHash != "hash-1" {
		t.Fatalf("stored user mutated through returned copy")
	}

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordFailedLoginLocksAndResetsAfterExpiry(t *testing.T) {
	repo := NewUserRepository()
	user := seedUser(t, repo)
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	var state domain.LockoutState
	for i := 1; i <= 5; i++ {
		var err error
		state, err = repo.RecordFailedLogin(context.Background(), user.ID, now, testRule)
		if err != nil {
			t.Fatalf("RecordFailedLogin returned error: %v", err)
		}
		if state.LoginAttempts != i {
			t.Fatalf("expected %d attempts, got %d", i, state.LoginAttempts)
		}
		if i < 5 && state.LockUntil != nil {
			t.Fatalf("locked too early at attempt %d", i)
		}
	}
	if state.LockUntil == nil || !state.LockUntil.Equal(now.Add(30*time.Minute)) {
		t.Fatalf("expected lock until %v, got %v", now.Add(30*time.Minute), state.LockUntil)
	}

	later := now.Add(31 * time.Minute)
	state, err := repo.RecordFailedLogin(context.Background(), user.ID, later, testRule)
	if err != nil {
		t.Fatalf("RecordFailedLogin returned error: %v", err)
	}
	if state.LoginAttempts != 1 || state.LockUntil != nil {
		t.Fatalf("expected counter restarted at 1 without lock, got %+v", state)
	}
}

func TestRecordFailedLoginKeepsRunningLock(t *testing.T) {
	repo := NewUserRepository()
	user := seedUser(t, repo)
	lockedAt := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if _, err := repo.RecordFailedLogin(context.Background(), user.ID, lockedAt, testRule); err != nil {
			t.Fatalf("RecordFailedLogin returned error: %v", err)
		}
	}

	// A failure that raced past the lock check lands while the lock is running.
	state, err := repo.RecordFailedLogin(context.Background(), user.ID, lockedAt.Add(10*time.Minute), testRule)
	if err != nil {
		t.Fatalf("RecordFailedLogin returned error: %v", err)
	}
	if state.LoginAttempts != 6 {
		t.Fatalf("expected 6 attempts, got %d", state.LoginAttempts)
	}
	if want := lockedAt.Add(30 * time.Minute); state.LockUntil == nil || !state.LockUntil.Equal(want) {
		t.Fatalf("expected lock to stay at %v, got %v", want, state.LockUntil)
	}
}

func TestSwapRefreshTokenHashSingleWinner(t *testing.T) {
	repo := NewUserRepository()
	user := seedUser(t, repo)
	now := time.Now()
	_ = repo.RecordSuccessfulLogin(context.Background(), user.ID, "old", now)

	const contenders = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.SwapRefreshTokenHash(context.Background(), user.ID, "old", "next", now)
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
				return
			}
			if !errors.Is(err, repository.ErrConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestConsumeResetOTPTakesCodeOnce(t *testing.T) {
	repo := NewUserRepository()
	user := seedUser(t, repo)
	now := time.Now()
	expiry := now.Add(10 * time.Minute)

	if err := repo.SetResetOTP(context.Background(), user.ID, "otp-hash", expiry, now); err != nil {
		t.Fatalf("SetResetOTP returned error: %v", err)
	}

	pending, err := repo.ConsumeResetOTP(context.Background(), user.ID, now)
	if err != nil {
		t.Fatalf("ConsumeResetOTP returned error: %v", err)
	}
	if pending == nil || pending.Hash != "otp-hash" || !pending.ExpiresAt.Equal(expiry) {
		t.Fatalf("unexpected pending otp: %+v", pending)
	}

	pending, err = repo.ConsumeResetOTP(context.Background(), user.ID, now)
	if err != nil || pending != nil {
		t.Fatalf("expected nothing pending on second consume, got %+v, %v", pending, err)
	}
}

func TestResetPasswordClearsRefreshAndOTP(t *testing.T) {
	repo := NewUserRepository()
	user := seedUser(t, repo)
	now := time.Now()
	_ = repo.RecordSuccessfulLogin(context.Background(), user.ID, "refresh", now)
	_ = repo.SetResetOTP(context.Background(), user.ID, "otp", now.Add(time.Minute), now)

	if err := repo.ResetPassword(context.Background(), user.ID, "new-hash", now); err != nil {
		t.Fatalf("ResetPassword returned error: %v", err)
	}

	got, _ := repo.GetByID(context.Background(), user.ID)
	if got.PasswordHash != "new-hash" || got.RefreshTokenHash != nil || got.ResetOTPHash != nil || got.ResetOTPExpiry != nil {
		t.Fatalf("unexpected user after reset: %+v", got)
	}
}

func TestRecordFailedLoginCountsConcurrentFailures(t *testing.T) {
	repo := NewUserRepository()
	user := seedUser(t, repo)
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	rule := domain.LockoutRule{MaxAttempts: 100, LockFor: 30 * time.Minute}

	const failures = 20
	var wg sync.WaitGroup
	for i := 0; i < failures; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.RecordFailedLogin(context.Background(), user.ID, now, rule); err != nil {
				t.Errorf("RecordFailedLogin returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := repo.GetByID(context.Background(), user.ID)
	if got.LoginAttempts != failures {
		t.Fatalf("expected %d attempts, got %d", failures, got.LoginAttempts)
	}
}
