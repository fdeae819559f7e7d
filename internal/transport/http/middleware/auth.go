package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/YOGESHBOTCHA965/W/internal/core/domain"
	"github.com/YOGESHBOTCHA965/W/internal/usecase"
)

// Error codes shared with the handlers package. Clients branch on CodeTokenExpired to
// decide whether to refresh.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeTokenExpired    = "TOKEN_EXPIRED"
	CodeTokenInvalid    = "TOKEN_INVALID"
	CodeRateLimited     = "RATE_LIMITED"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	CodeServerError     = "SERVER_ERROR"
)

// ErrorResponse is the failure envelope every endpoint returns.
type ErrorResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
	TraceID    string `json:"traceId,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// NewErrorResponse builds a failure envelope carrying the request's trace id.
func NewErrorResponse(c *gin.Context, message, code string) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Message: message,
		Code:    code,
		TraceID: GetTraceID(c),
	}
}

// Authenticator resolves a bearer token into the caller's identity.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (domain.Identity, error)
}

// RequireAuth rejects requests without a valid access token and stores the caller's
// identity for downstream handlers.
func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				NewErrorResponse(c, "Not authorized. No token provided.", CodeUnauthenticated))
			return
		}

		identity, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrTokenExpired):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					NewErrorResponse(c, "Token expired. Please refresh.", CodeTokenExpired))
			case errors.Is(err, usecase.ErrTokenInvalid):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					NewErrorResponse(c, "Invalid token.", CodeTokenInvalid))
			case errors.Is(err, usecase.ErrUnauthenticated):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					NewErrorResponse(c, "User no longer exists.", CodeUnauthenticated))
			default:
				_ = c.Error(err)
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					NewErrorResponse(c, "Authentication error.", CodeServerError))
			}
			return
		}

		c.Set(UserIDKey, identity.ID)
		c.Set(IdentityKey, identity)
		GetRequestContext(c).UserID = identity.ID

		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// GetAuthenticatedUserID retrieves the user ID from context (helper for handlers)
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}

	if id, ok := userID.(string); ok && id != "" {
		return id, true
	}

	return "", false
}

// GetIdentity returns the identity stored by RequireAuth.
func GetIdentity(c *gin.Context) (domain.Identity, bool) {
	val, exists := c.Get(IdentityKey)
	if !exists {
		return domain.Identity{}, false
	}
	identity, ok := val.(domain.Identity)
	return identity, ok
}
