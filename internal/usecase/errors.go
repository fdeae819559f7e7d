package usecase

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidationFailed is wrapped by every *ValidationError.
	ErrValidationFailed = errors.New("validation failed")
	// ErrDuplicateEmail indicates an account already uses the email, compared case-insensitively.
	ErrDuplicateEmail = errors.New("an account with this email already exists")
	// ErrInvalidCredentials never says whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrAccountLocked is wrapped by every *AccountLockedError.
	ErrAccountLocked = errors.New("account locked")
	// ErrTokenExpired indicates a correctly signed access token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers malformed, forged and wrong-kind tokens.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrRefreshReuseDetected indicates a refresh token that is no longer current; the session was revoked.
	ErrRefreshReuseDetected = errors.New("refresh token reuse detected")
	// ErrUnauthenticated indicates a missing bearer token or a user that no longer exists.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUserNotFound is returned by profile lookups for an authenticated caller.
	ErrUserNotFound = errors.New("user not found")
	// ErrVerificationFailed is the single outcome of a failed security-answer check.
	ErrVerificationFailed = errors.New("verification failed")
	// ErrNoPendingOTP indicates no reset code is outstanding for the account.
	ErrNoPendingOTP = errors.New("no otp request found")
	// ErrOTPExpired indicates the pending code was past its expiry; it has been cleared.
	ErrOTPExpired = errors.New("otp expired")
	// ErrOTPMismatch indicates a wrong code; the pending code has been cleared.
	ErrOTPMismatch = errors.New("invalid otp")
	// ErrResetTokenInvalid covers expired, forged, wrong-purpose and mismatched reset tokens.
	ErrResetTokenInvalid = errors.New("invalid or expired reset token")
)

// ValidationError reports the first input rule an operation rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// AccountLockedError carries the whole minutes left on a lock, rounded up.
type AccountLockedError struct {
	Minutes int
	Until   time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("Account locked due to too many failed attempts. Try again in %d minute(s).", e.Minutes)
}

func (e *AccountLockedError) Unwrap() error {
	return ErrAccountLocked
}
