package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	appLogger "github.com/YOGESHBOTCHA965/W/internal/infra/logger"
	"github.com/YOGESHBOTCHA965/W/internal/repository"
	"github.com/YOGESHBOTCHA965/W/internal/transport/http/middleware"
	"github.com/YOGESHBOTCHA965/W/internal/usecase"
)

const (
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeDuplicateEmail     = "DUPLICATE_EMAIL"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountLocked      = "ACCOUNT_LOCKED"
	CodeRefreshReuse       = "REFRESH_REUSE"
	CodeVerificationFailed = "VERIFICATION_FAILED"
	CodeOTPNotFound        = "OTP_NOT_FOUND"
	CodeOTPExpired         = "OTP_EXPIRED"
	CodeOTPInvalid         = "OTP_INVALID"
	CodeResetTokenInvalid  = "RESET_TOKEN_INVALID"
	CodeNotFound           = "NOT_FOUND"
)

const productionServerMessage = "Something went wrong."

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
	Code    string
}

var defaultErrorCases = []ErrorCase{
	{Err: usecase.ErrDuplicateEmail, Status: http.StatusConflict, Message: "An account with this email already exists.", Code: CodeDuplicateEmail},
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "Invalid email or password.", Code: CodeInvalidCredentials},
	{Err: usecase.ErrTokenExpired, Status: http.StatusUnauthorized, Message: "Token expired. Please refresh.", Code: middleware.CodeTokenExpired},
	{Err: usecase.ErrRefreshReuseDetected, Status: http.StatusUnauthorized, Message: "Refresh token reuse detected. All sessions invalidated.", Code: CodeRefreshReuse},
	{Err: usecase.ErrTokenInvalid, Status: http.StatusUnauthorized, Message: "Invalid or expired refresh token.", Code: middleware.CodeTokenInvalid},
	{Err: usecase.ErrUnauthenticated, Status: http.StatusUnauthorized, Message: "Not authorized.", Code: middleware.CodeUnauthenticated},
	{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "User not found.", Code: CodeNotFound},
	{Err: usecase.ErrVerificationFailed, Status: http.StatusBadRequest, Message: "Verification failed.", Code: CodeVerificationFailed},
	{Err: usecase.ErrNoPendingOTP, Status: http.StatusBadRequest, Message: "No OTP request found. Please request a new OTP.", Code: CodeOTPNotFound},
	{Err: usecase.ErrOTPExpired, Status: http.StatusBadRequest, Message: "OTP has expired. Please request a new one.", Code: CodeOTPExpired},
	{Err: usecase.ErrOTPMismatch, Status: http.StatusBadRequest, Message: "Invalid OTP.", Code: CodeOTPInvalid},
	{Err: usecase.ErrResetTokenInvalid, Status: http.StatusBadRequest, Message: "Invalid or expired reset token. Please start over.", Code: CodeResetTokenInvalid},
	{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "Not found.", Code: CodeNotFound},
}

// ErrorResponder turns usecase errors into envelopes. Unmapped errors are logged and
// answered with 500; in production their text never reaches the client.
type ErrorResponder struct {
	logger     *zap.Logger
	production bool
}

func NewErrorResponder(log *zap.Logger, production bool) *ErrorResponder {
	if log == nil {
		log = zap.NewNop()
	}
	return &ErrorResponder{logger: log, production: production}
}

// Respond writes the envelope for err. Cases passed in take precedence over the defaults.
func (r *ErrorResponder) Respond(c *gin.Context, err error, cases ...ErrorCase) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	var validationErr *usecase.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, validationErr.Message, CodeValidationFailed))
		return
	}

	var lockedErr *usecase.AccountLockedError
	if errors.As(err, &lockedErr) {
		c.JSON(http.StatusLocked, NewErrorResponse(c, lockedErr.Error(), CodeAccountLocked))
		return
	}

	for _, list := range [][]ErrorCase{cases, defaultErrorCases} {
		for _, cs := range list {
			if cs.Err != nil && errors.Is(err, cs.Err) {
				c.JSON(cs.Status, NewErrorResponse(c, cs.Message, cs.Code))
				return
			}
		}
	}

	r.ServerError(c, err)
}

// ServerError logs err with the request's correlation ids and answers 500.
func (r *ErrorResponder) ServerError(c *gin.Context, err error) {
	_ = c.Error(err)
	ctx := c.Request.Context()
	fields := appLogger.ContextFields(ctx)
	if !trace.SpanContextFromContext(ctx).HasTraceID() {
		fields = append(fields, zap.String("trace_id", middleware.GetTraceID(c)))
	}
	fields = append(fields, zap.String("path", c.Request.URL.Path), zap.Error(err))
	r.logger.Error("request failed", fields...)

	message := productionServerMessage
	if !r.production {
		message = err.Error()
	}
	c.JSON(http.StatusInternalServerError, NewErrorResponse(c, message, middleware.CodeServerError))
}

// bindJSON decodes the request body, answering 400 (or 413) itself when it cannot.
func (r *ErrorResponder) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if middleware.IsBodyTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, NewErrorResponse(c, "Request body too large.", middleware.CodePayloadTooLarge))
			return false
		}
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Invalid request body.", CodeValidationFailed))
		return false
	}
	return true
}
