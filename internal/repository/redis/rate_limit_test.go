package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestRateLimitRepository_CountsSameInstantAttempts(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{KeyPrefix: "wow:rate-limit", TTL: 15 * time.Minute})

	ctx := context.Background()
	at := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := repo.RecordAttempt(ctx, "auth:203.0.113.7", at); err != nil {
			t.Fatalf("RecordAttempt returned error: %v", err)
		}
	}

	count, err := repo.CountAttempts(ctx, "auth:203.0.113.7", 15*time.Minute, at)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 attempts, got %d", count)
	}

	if ttl := server.TTL("wow:rate-limit:auth:203.0.113.7"); ttl <= 0 || ttl > 15*time.Minute {
		t.Fatalf("expected ttl within (0, 15m], got %v", ttl)
	}
}

func TestRateLimitRepository_TrimAndOldest(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{})

	ctx := context.Background()
	window := 15 * time.Minute
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	_ = repo.RecordAttempt(ctx, "global:198.51.100.1", base)
	_ = repo.RecordAttempt(ctx, "global:198.51.100.1", base.Add(10*time.Minute))
	_ = repo.RecordAttempt(ctx, "global:198.51.100.1", base.Add(20*time.Minute))

	now := base.Add(21 * time.Minute)
	if err := repo.TrimWindow(ctx, "global:198.51.100.1", window, now); err != nil {
		t.Fatalf("TrimWindow returned error: %v", err)
	}

	count, err := repo.CountAttempts(ctx, "global:198.51.100.1", window, now)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 attempts inside window, got %d", count)
	}

	oldest, ok, err := repo.OldestAttempt(ctx, "global:198.51.100.1", window, now)
	if err != nil || !ok {
		t.Fatalf("OldestAttempt returned %v, %v", ok, err)
	}
	if diff := oldest.Sub(base.Add(10 * time.Minute)); diff < -time.Microsecond || diff > time.Microsecond {
		t.Fatalf("expected oldest near %v, got %v", base.Add(10*time.Minute), oldest)
	}
}

func TestRateLimitRepository_RejectsNonPositiveWindow(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{})

	if _, err := repo.CountAttempts(context.Background(), "x", 0, time.Now()); err == nil {
		t.Fatal("expected error for zero window")
	}
}
