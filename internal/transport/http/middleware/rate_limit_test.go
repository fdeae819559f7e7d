package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/YOGESHBOTCHA965/W/internal/repository/memory"
)

// scriptedStore answers from fixed values and counts recorded attempts.
type scriptedStore struct {
	count   int
	oldest  time.Time
	failing error
	records int
}

func (s *scriptedStore) TrimWindow(context.Context, string, time.Duration, time.Time) error {
	return s.failing
}

func (s *scriptedStore) CountAttempts(context.Context, string, time.Duration, time.Time) (int, error) {
	return s.count, nil
}

func (s *scriptedStore) RecordAttempt(context.Context, string, time.Time) error {
	s.records++
	return nil
}

func (s *scriptedStore) OldestAttempt(context.Context, string, time.Duration, time.Time) (time.Time, bool, error) {
	return s.oldest, !s.oldest.IsZero(), nil
}

func TestRateLimiterWithScriptedStore(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	oldest := now.Add(-30 * time.Second)

	cases := []struct {
		name          string
		store         *scriptedStore
		message       string
		wantStatus    int
		wantRecords   int
		wantRemaining string
		wantRetry     string
	}{
		{
			name:          "below limit",
			store:         &scriptedStore{count: 2, oldest: oldest},
			wantStatus:    http.StatusOK,
			wantRecords:   1,
			wantRemaining: "2",
		},
		{
			name:          "window full",
			store:         &scriptedStore{count: 5, oldest: oldest},
			message:       "Too many login attempts.",
			wantStatus:    http.StatusTooManyRequests,
			wantRemaining: "0",
			wantRetry:     "30",
		},
		{
			name:       "store unavailable",
			store:      &scriptedStore{failing: errors.New("redis down")},
			wantStatus: http.StatusOK,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			limiter := NewRateLimiter(tc.store, zaptest.NewLogger(t)).WithClock(func() time.Time { return now })

			router := gin.New()
			router.Use(limiter.RateLimit(RateLimitRule{
				Name:       "login",
				Limit:      5,
				Window:     time.Minute,
				Identifier: func(*gin.Context) (string, bool) { return "192.0.2.1", true },
				Message:    tc.message,
			}))
			router.POST("/login", func(c *gin.Context) { c.Status(http.StatusOK) })

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rr.Code)
			}
			if tc.store.records != tc.wantRecords {
				t.Fatalf("expected %d recorded attempts, got %d", tc.wantRecords, tc.store.records)
			}
			if got := rr.Header().Get("X-RateLimit-Remaining"); got != tc.wantRemaining {
				t.Fatalf("expected remaining %q, got %q", tc.wantRemaining, got)
			}
			if got := rr.Header().Get("Retry-After"); got != tc.wantRetry {
				t.Fatalf("expected retry-after %q, got %q", tc.wantRetry, got)
			}
			if tc.wantRemaining != "" {
				wantReset := strconv.FormatInt(oldest.Add(time.Minute).Unix(), 10)
				if got := rr.Header().Get("X-RateLimit-Reset"); got != wantReset {
					t.Fatalf("expected reset %s, got %q", wantReset, got)
				}
			}

			if tc.wantStatus != http.StatusTooManyRequests {
				return
			}
			var body ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Success || body.Code != CodeRateLimited || body.Message != tc.message || body.RetryAfter != 30 {
				t.Fatalf("unexpected envelope %+v", body)
			}
		})
	}
}

func TestRateLimiterSlidingWindowWithMemoryStore(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(memory.NewRateLimitStore(), zaptest.NewLogger(t)).WithClock(func() time.Time { return now })

	router := gin.New()
	router.Use(limiter.RateLimit(RateLimitRule{
		Name:       "auth",
		Limit:      3,
		Window:     15 * time.Minute,
		Identifier: ClientIPIdentifier(),
	}))
	router.POST("/login", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "198.51.100.7:4100"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 3; i++ {
		if rr := send(); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rr.Code)
		}
		now = now.Add(time.Minute)
	}

	rr := send()
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the window is full, got %d", rr.Code)
	}
	// The first attempt leaves the window 15 minutes after it was made.
	if got := rr.Header().Get("Retry-After"); got != "720" {
		t.Fatalf("expected retry-after 720, got %q", got)
	}

	var body ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Message != defaultRateLimitMessage {
		t.Fatalf("expected default message, got %q", body.Message)
	}

	now = now.Add(12*time.Minute + time.Second)
	if rr := send(); rr.Code != http.StatusOK {
		t.Fatalf("expected the oldest attempt to slide out, got %d", rr.Code)
	}
}

func TestRateLimiterAdvertisesTightestRule(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(memory.NewRateLimitStore(), zaptest.NewLogger(t)).WithClock(func() time.Time { return now })

	router := gin.New()
	router.Use(limiter.RateLimit(
		RateLimitRule{Name: "global_ip", Limit: 100, Window: 15 * time.Minute, Identifier: ClientIPIdentifier()},
		RateLimitRule{Name: "auth_ip", Limit: 2, Window: 15 * time.Minute, Identifier: ClientIPIdentifier(), Message: "slow down"},
	))
	router.POST("/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "203.0.113.9:5000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	rr := send()
	if got := rr.Header().Get("X-RateLimit-Limit"); got != "2" {
		t.Fatalf("expected the auth rule to be advertised, got limit %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "1" {
		t.Fatalf("expected 1 remaining, got %q", got)
	}

	send()
	rr = send()
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 from the auth rule, got %d", rr.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Message != "slow down" || body.RetryAfter != 900 {
		t.Fatalf("unexpected envelope %+v", body)
	}
}
