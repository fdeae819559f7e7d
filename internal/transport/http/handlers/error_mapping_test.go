package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/YOGESHBOTCHA965/W/internal/usecase"
)

func respondWith(t *testing.T, responder *ErrorResponder, err error, cases ...ErrorCase) (int, ErrorResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)

	responder.Respond(c, err, cases...)

	var body ErrorResponse
	if decodeErr := json.Unmarshal(rec.Body.Bytes(), &body); decodeErr != nil {
		t.Fatalf("failed to decode response: %v", decodeErr)
	}
	return rec.Code, body
}

func TestRespondMapsDomainErrors(t *testing.T) {
	responder := NewErrorResponder(nil, true)

	tests := []struct {
		name    string
		err     error
		status  int
		message string
		code    string
	}{
		{
			name:    "validation",
			err:     &usecase.ValidationError{Field: "email", Message: "Valid email is required."},
			status:  http.StatusBadRequest,
			message: "Valid email is required.",
			code:    CodeValidationFailed,
		},
		{
			name:    "locked",
			err:     &usecase.AccountLockedError{Minutes: 12, Until: time.Now().Add(12 * time.Minute)},
			status:  http.StatusLocked,
			message: "Account locked due to too many failed attempts. Try again in 12 minute(s).",
			code:    CodeAccountLocked,
		},
		{
			name:    "wrapped duplicate",
			err:     fmt.Errorf("register: %w", usecase.ErrDuplicateEmail),
			status:  http.StatusConflict,
			message: "An account with this email already exists.",
			code:    CodeDuplicateEmail,
		},
		{
			name:    "reuse",
			err:     usecase.ErrRefreshReuseDetected,
			status:  http.StatusUnauthorized,
			message: "Refresh token reuse detected. All sessions invalidated.",
			code:    CodeRefreshReuse,
		},
		{
			name:    "otp expired",
			err:     usecase.ErrOTPExpired,
			status:  http.StatusBadRequest,
			message: "OTP has expired. Please request a new one.",
			code:    CodeOTPExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := respondWith(t, responder, tt.err)
			if status != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, status)
			}
			if body.Success || body.Message != tt.message || body.Code != tt.code {
				t.Fatalf("unexpected envelope %+v", body)
			}
		})
	}
}

func TestRespondPrefersCallerCases(t *testing.T) {
	status, body := respondWith(t, NewErrorResponder(nil, true), usecase.ErrTokenInvalid, ErrorCase{
		Err:     usecase.ErrTokenInvalid,
		Status:  http.StatusUnauthorized,
		Message: "Invalid token.",
		Code:    "TOKEN_INVALID",
	})
	if status != http.StatusUnauthorized || body.Message != "Invalid token." {
		t.Fatalf("expected override, got %d %+v", status, body)
	}
}

func TestServerErrorHidesDetailsInProduction(t *testing.T) {
	cause := errors.New("pq: connection reset by peer")

	core, logs := observer.New(zap.ErrorLevel)
	status, body := respondWith(t, NewErrorResponder(zap.New(core), true), cause)
	if status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}
	if body.Message != productionServerMessage {
		t.Fatalf("expected generic message, got %q", body.Message)
	}
	if logs.FilterMessage("request failed").Len() != 1 {
		t.Fatal("expected the cause to be logged")
	}

	_, body = respondWith(t, NewErrorResponder(nil, false), cause)
	if body.Message != cause.Error() {
		t.Fatalf("expected cause outside production, got %q", body.Message)
	}
}
