package handlers

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/YOGESHBOTCHA965/W/internal/core/domain"
	"github.com/YOGESHBOTCHA965/W/internal/transport/http/middleware"
)

// ErrorResponse is the failure envelope: {success:false, message, code?, traceId?}.
type ErrorResponse = middleware.ErrorResponse

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, message, code string) ErrorResponse {
	return middleware.NewErrorResponse(c, message, code)
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// emailFields accepts the address as emailId or, for older clients, email.
type emailFields struct {
	EmailID string `json:"emailId"`
	Email   string `json:"email"`
}

func (f emailFields) address() string {
	if strings.TrimSpace(f.EmailID) != "" {
		return f.EmailID
	}
	return f.Email
}

// RegisterRequest is the sign-up payload.
type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	DOB       string `json:"dob"`
	Gender    string `json:"gender"`
	ContactNo string `json:"contactNo"`
	emailFields
	Password         string `json:"password"`
	SecurityQuestion string `json:"securityQuestion"`
	SecurityAnswer   string `json:"securityAnswer"`
}

// RegisterResponse echoes the created account without secrets.
type RegisterResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	User    domain.PublicUser `json:"user"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	emailFields
	Password string `json:"password"`
}

// LoginResponse carries the new token pair and the signed-in user.
type LoginResponse struct {
	Success      bool              `json:"success"`
	Message      string            `json:"message"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
	User         domain.PublicUser `json:"user"`
}

// RefreshRequest carries the refresh token to rotate.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse carries the rotated pair.
type RefreshResponse struct {
	Success      bool   `json:"success"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// UserResponse wraps the caller's profile.
type UserResponse struct {
	Success bool              `json:"success"`
	User    domain.PublicUser `json:"user"`
}

// ForgotPasswordRequest starts a reset.
type ForgotPasswordRequest struct {
	emailFields
}

// ForgotPasswordResponse has the same shape whether or not the account exists.
type ForgotPasswordResponse struct {
	Success             bool    `json:"success"`
	Message             string  `json:"message"`
	HasSecurityQuestion bool    `json:"hasSecurityQuestion"`
	SecurityQuestion    *string `json:"securityQuestion"`
}

// SecurityQuestionResponse carries the question, or null for unknown accounts.
type SecurityQuestionResponse struct {
	Success          bool    `json:"success"`
	SecurityQuestion *string `json:"securityQuestion"`
}

// VerifyOTPRequest exchanges an emailed code for a reset token.
type VerifyOTPRequest struct {
	emailFields
	OTP string `json:"otp"`
}

// VerifyIdentityRequest exchanges the security answer and date of birth for a reset token.
type VerifyIdentityRequest struct {
	emailFields
	SecurityAnswer string `json:"securityAnswer"`
	DOB            string `json:"dob"`
}

// ResetTokenResponse returns the short-lived reset token.
type ResetTokenResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	ResetToken string `json:"resetToken"`
}

// ResetPasswordRequest sets a new password using a reset token.
type ResetPasswordRequest struct {
	emailFields
	NewPassword string `json:"newPassword"`
	ResetToken  string `json:"resetToken"`
}

// HealthResponse is returned by /api/health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// LivenessResponse is returned by /healthz.
type LivenessResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
}

// ReadinessResponse reports each dependency check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
