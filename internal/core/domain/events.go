package domain

import "time"

// UserRegisteredEvent represents the payload for wow.auth.user.registered messages.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Email        string
	RegisteredAt time.Time
	Metadata     map[string]any
}

// AccountLockedEvent is emitted when the failed-login counter reaches the lock threshold.
type AccountLockedEvent struct {
	EventID     string
	UserID      string
	Attempts    int
	LockedAt    time.Time
	LockedUntil time.Time
	Metadata    map[string]any
}

// RefreshReuseDetectedEvent is emitted when a refresh token that is no longer current is presented.
type RefreshReuseDetectedEvent struct {
	EventID    string
	UserID     string
	DetectedAt time.Time
	Metadata   map[string]any
}

// PasswordResetRequestedEvent represents the payload for wow.auth.password.reset_requested messages.
type PasswordResetRequestedEvent struct {
	EventID           string
	UserID            string
	RequestedAt       time.Time
	DeliveryMethod    string
	MaskedDestination string
	ExpiresAt         time.Time
	Metadata          map[string]any
}

// PasswordResetCompletedEvent is emitted after a new password has been applied through the reset flow.
// The user's refresh token hash has already been cleared when it is published.
type PasswordResetCompletedEvent struct {
	EventID     string
	UserID      string
	CompletedAt time.Time
	Metadata    map[string]any
}
