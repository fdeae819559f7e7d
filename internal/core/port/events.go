package port

import (
	"context"

	"github.com/YOGESHBOTCHA965/W/internal/core/domain"
)

// EventPublisher publishes security events to the message bus.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error
	PublishRefreshReuseDetected(ctx context.Context, event domain.RefreshReuseDetectedEvent) error
	PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error
	PublishPasswordResetCompleted(ctx context.Context, event domain.PasswordResetCompletedEvent) error
}
