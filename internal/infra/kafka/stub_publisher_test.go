package kafka

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/YOGESHBOTCHA965/W/internal/core/domain"
)

func TestStubPublisherLogsEventType(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	publisher := NewStubPublisher(zap.New(core))

	event := domain.AccountLockedEvent{
		UserID:      "user-1",
		Attempts:    5,
		LockedAt:    time.Date(2026, 2, 14, 8, 0, 0, 0, time.UTC),
		LockedUntil: time.Date(2026, 2, 14, 8, 30, 0, 0, time.UTC),
	}
	if err := publisher.PublishAccountLocked(context.Background(), event); err != nil {
		t.Fatalf("PublishAccountLocked returned error: %v", err)
	}

	entries := logs.FilterField(zap.String("event_type", EventAccountLocked)).All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["user_id"]; got != "user-1" {
		t.Fatalf("unexpected user_id: %v", got)
	}
}
