package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/YOGESHBOTCHA965/W/internal/core/domain"
	"github.com/YOGESHBOTCHA965/W/internal/core/port"
	"github.com/YOGESHBOTCHA965/W/internal/infra/config"
	"github.com/YOGESHBOTCHA965/W/internal/infra/logger"
)

const schemaVersion = "1.0"

// Event types, published under the configured topic prefix.
const (
	EventUserRegistered         = "auth.user.registered"
	EventAccountLocked          = "auth.account.locked"
	EventRefreshReuseDetected   = "auth.refresh.reuse_detected"
	EventPasswordResetRequested = "auth.password.reset_requested"
	EventPasswordResetCompleted = "auth.password.reset_completed"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, log *zap.Logger) *EventPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: log}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	return p.producer.Send(ctx, eventType, userID, bytes)
}

// PublishUserRegistered publishes auth.user.registered events. Only the masked email
// leaves the service.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		UserID       string         `json:"user_id"`
		Email        string         `json:"email"`
		RegisteredAt time.Time      `json:"registered_at"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		UserID:       event.UserID,
		Email:        logger.MaskEmail(event.Email),
		RegisteredAt: event.RegisteredAt.UTC(),
		Metadata:     event.Metadata,
	}

	return p.publish(ctx, event.EventID, EventUserRegistered, event.UserID, event.RegisteredAt, payload)
}

// PublishAccountLocked publishes auth.account.locked events.
func (p *EventPublisher) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	payload := struct {
		UserID      string         `json:"user_id"`
		Attempts    int            `json:"attempts"`
		LockedAt    time.Time      `json:"locked_at"`
		LockedUntil time.Time      `json:"locked_until"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		UserID:      event.UserID,
		Attempts:    event.Attempts,
		LockedAt:    event.LockedAt.UTC(),
		LockedUntil: event.LockedUntil.UTC(),
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, EventAccountLocked, event.UserID, event.LockedAt, payload)
}

// PublishRefreshReuseDetected publishes auth.refresh.reuse_detected events.
func (p *EventPublisher) PublishRefreshReuseDetected(ctx context.Context, event domain.RefreshReuseDetectedEvent) error {
	payload := struct {
		UserID     string         `json:"user_id"`
		DetectedAt time.Time      `json:"detected_at"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}{
		UserID:     event.UserID,
		DetectedAt: event.DetectedAt.UTC(),
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, EventRefreshReuseDetected, event.UserID, event.DetectedAt, payload)
}

// PublishPasswordResetRequested publishes auth.password.reset_requested events.
func (p *EventPublisher) PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := struct {
		UserID            string         `json:"user_id"`
		RequestedAt       time.Time      `json:"requested_at"`
		DeliveryMethod    string         `json:"delivery_method"`
		MaskedDestination string         `json:"masked_destination,omitempty"`
		ExpiresAt         time.Time      `json:"expires_at"`
		Metadata          map[string]any `json:"metadata,omitempty"`
	}{
		UserID:            event.UserID,
		RequestedAt:       event.RequestedAt.UTC(),
		DeliveryMethod:    event.DeliveryMethod,
		MaskedDestination: event.MaskedDestination,
		ExpiresAt:         event.ExpiresAt.UTC(),
		Metadata:          event.Metadata,
	}

	timestamp := event.RequestedAt
	if timestamp.IsZero() {
		timestamp = event.ExpiresAt
	}

	return p.publish(ctx, event.EventID, EventPasswordResetRequested, event.UserID, timestamp, payload)
}

// PublishPasswordResetCompleted publishes auth.password.reset_completed events.
func (p *EventPublisher) PublishPasswordResetCompleted(ctx context.Context, event domain.PasswordResetCompletedEvent) error {
	payload := struct {
		UserID          string         `json:"user_id"`
		CompletedAt     time.Time      `json:"completed_at"`
		SessionsRevoked bool           `json:"sessions_revoked"`
		Metadata        map[string]any `json:"metadata,omitempty"`
	}{
		UserID:          event.UserID,
		CompletedAt:     event.CompletedAt.UTC(),
		SessionsRevoked: true,
		Metadata:        event.Metadata,
	}

	return p.publish(ctx, event.EventID, EventPasswordResetCompleted, event.UserID, event.CompletedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
