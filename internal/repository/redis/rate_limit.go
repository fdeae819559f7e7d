package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/YOGESHBOTCHA965/W/internal/core/port"
)

var errWindowNotPositive = errors.New("window must be positive")

// SlidingWindowConfig defines configuration for the sliding window limiter.
type SlidingWindowConfig struct {
	KeyPrefix string
	TTL       time.Duration
}

// RateLimitRepository persists per-IP request timestamps in Redis sorted sets.
// Scores are Unix nanoseconds; members carry a random suffix so that two
// requests landing in the same nanosecond are both counted.
type RateLimitRepository struct {
	client redis.UniversalClient
	cfg    SlidingWindowConfig
}

var _ port.RateLimitStore = (*RateLimitRepository)(nil)

// NewRateLimitRepository constructs a repository using the provided Redis client and config.
func NewRateLimitRepository(client redis.UniversalClient, cfg SlidingWindowConfig) *RateLimitRepository {
	return &RateLimitRepository{client: client, cfg: cfg}
}

// RecordAttempt stores the timestamp and refreshes the key TTL in one round trip.
func (r *RateLimitRepository) RecordAttempt(ctx context.Context, identifier string, at time.Time) error {
	key := r.key(identifier)
	member := redis.Z{
		Score:  float64(at.UnixNano()),
		Member: strconv.FormatInt(at.UnixNano(), 10) + "-" + uuid.NewString(),
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, member)
		if r.cfg.TTL > 0 {
			pipe.Expire(ctx, key, r.cfg.TTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis record attempt: %w", err)
	}

	return nil
}

// CountAttempts returns how many attempts occurred within the window ending at reference time.
func (r *RateLimitRepository) CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	if window <= 0 {
		return 0, errWindowNotPositive
	}

	min, max := windowBounds(window, reference)
	count, err := r.client.ZCount(ctx, r.key(identifier), min, max).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcount: %w", err)
	}

	return int(count), nil
}

// TrimWindow removes attempts older than the window relative to reference time.
func (r *RateLimitRepository) TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error {
	if window <= 0 {
		return errWindowNotPositive
	}

	threshold := "(" + strconv.FormatInt(reference.Add(-window).UnixNano(), 10)
	if err := r.client.ZRemRangeByScore(ctx, r.key(identifier), "-inf", threshold).Err(); err != nil {
		return fmt.Errorf("redis zremrangebyscore: %w", err)
	}

	return nil
}

// OldestAttempt returns the oldest attempt remaining inside the active window.
func (r *RateLimitRepository) OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	if window <= 0 {
		return time.Time{}, false, errWindowNotPositive
	}

	min, max := windowBounds(window, reference)
	values, err := r.client.ZRangeByScoreWithScores(ctx, r.key(identifier), &redis.ZRangeBy{
		Min:   min,
		Max:   max,
		Count: 1,
	}).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis zrangebyscore: %w", err)
	}

	if len(values) == 0 {
		return time.Time{}, false, nil
	}

	return time.Unix(0, int64(values[0].Score)), true, nil
}

// Ping reports whether Redis answers.
func (r *RateLimitRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RateLimitRepository) key(identifier string) string {
	if r.cfg.KeyPrefix == "" {
		return identifier
	}
	return fmt.Sprintf("%s:%s", r.cfg.KeyPrefix, identifier)
}

func windowBounds(window time.Duration, reference time.Time) (string, string) {
	return strconv.FormatInt(reference.Add(-window).UnixNano(), 10),
		strconv.FormatInt(reference.UnixNano(), 10)
}
