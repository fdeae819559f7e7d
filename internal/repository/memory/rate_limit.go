package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/YOGESHBOTCHA965/W/internal/core/port"
)

// RateLimitStore is the single-instance fallback used when Redis is disabled.
type RateLimitStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

var _ port.RateLimitStore = (*RateLimitStore)(nil)

func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{attempts: make(map[string][]time.Time)}
}

func (s *RateLimitStore) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	if window <= 0 {
		return errors.New("window must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := reference.Add(-window)
	kept := s.attempts[identifier][:0]
	for _, at := range s.attempts[identifier] {
		if !at.Before(cutoff) {
			kept = append(kept, at)
		}
	}
	if len(kept) == 0 {
		delete(s.attempts, identifier)
		return nil
	}
	s.attempts[identifier] = kept
	return nil
}

func (s *RateLimitStore) CountAttempts(_ context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, at := range s.attempts[identifier] {
		if inWindow(at, window, reference) {
			count++
		}
	}
	return count, nil
}

func (s *RateLimitStore) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append(s.attempts[identifier], at)
	sort.Slice(list, func(i, j int) bool { return list[i].Before(list[j]) })
	s.attempts[identifier] = list
	return nil
}

func (s *RateLimitStore) OldestAttempt(_ context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	if window <= 0 {
		return time.Time{}, false, errors.New("window must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, at := range s.attempts[identifier] {
		if inWindow(at, window, reference) {
			return at, true, nil
		}
	}
	return time.Time{}, false, nil
}

func inWindow(at time.Time, window time.Duration, reference time.Time) bool {
	return !at.Before(reference.Add(-window)) && !at.After(reference)
}
