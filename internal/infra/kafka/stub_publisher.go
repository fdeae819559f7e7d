package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/YOGESHBOTCHA965/W/internal/core/domain"
	"github.com/YOGESHBOTCHA965/W/internal/core/port"
	"github.com/YOGESHBOTCHA965/W/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	base := []zap.Field{
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
	}
	p.logger.Info("Stub event published", append(base, fields...)...)
}

func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.logEvent(EventUserRegistered, event.UserID, event.RegisteredAt, zap.String("email", logger.MaskEmail(event.Email)))
	return nil
}

func (p *StubPublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	p.logEvent(EventAccountLocked, event.UserID, event.LockedAt,
		zap.Int("attempts", event.Attempts),
		zap.Time("locked_until", event.LockedUntil),
	)
	return nil
}

func (p *StubPublisher) PublishRefreshReuseDetected(_ context.Context, event domain.RefreshReuseDetectedEvent) error {
	p.logEvent(EventRefreshReuseDetected, event.UserID, event.DetectedAt, zap.Any("metadata", event.Metadata))
	return nil
}

func (p *StubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	p.logEvent(EventPasswordResetRequested, event.UserID, event.RequestedAt,
		zap.String("delivery_method", event.DeliveryMethod),
		zap.String("masked_destination", event.MaskedDestination),
		zap.Time("expires_at", event.ExpiresAt),
	)
	return nil
}

func (p *StubPublisher) PublishPasswordResetCompleted(_ context.Context, event domain.PasswordResetCompletedEvent) error {
	p.logEvent(EventPasswordResetCompleted, event.UserID, event.CompletedAt)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
