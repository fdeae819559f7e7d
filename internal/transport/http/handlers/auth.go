package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/YOGESHBOTCHA965/W/internal/transport/http/middleware"
	"github.com/YOGESHBOTCHA965/W/internal/usecase"
)

// AuthHandler exposes registration, login and session endpoints.
type AuthHandler struct {
	auth        *usecase.AuthService
	credentials *usecase.CredentialService
	errors      *ErrorResponder
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, credentials *usecase.CredentialService, errs *ErrorResponder) *AuthHandler {
	if errs == nil {
		errs = NewErrorResponder(nil, true)
	}
	return &AuthHandler{auth: auth, credentials: credentials, errors: errs}
}

// RegisterRoutes binds the routes on r. limited runs ahead of the credential endpoints
// (register and login); requireAuth guards the session endpoints.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, requireAuth gin.HandlerFunc, limited ...gin.HandlerFunc) {
	r.POST("/register", chain(limited, h.register)...)
	r.POST("/login", chain(limited, h.login)...)
	r.POST("/refresh", h.refresh)
	r.POST("/logout", requireAuth, h.logout)
	r.GET("/me", requireAuth, h.me)
}

// Register godoc
// @Summary Register a new account
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration payload"
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/auth/register [post]
func (h *AuthHandler) register(c *gin.Context) {
	var req RegisterRequest
	if !h.errors.bindJSON(c, &req) {
		return
	}

	user, err := h.credentials.Register(c.Request.Context(), usecase.RegistrationInput{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		DOB:              req.DOB,
		Gender:           req.Gender,
		ContactNo:        req.ContactNo,
		Email:            req.address(),
		Password:         req.Password,
		SecurityQuestion: req.SecurityQuestion,
		SecurityAnswer:   req.SecurityAnswer,
	})
	if err != nil {
		h.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		Success: true,
		Message: "Registered successfully!",
		User:    *user,
	})
}

// Login godoc
// @Summary Authenticate with email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 401 {object} ErrorResponse
// @Failure 423 {object} ErrorResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if !h.errors.bindJSON(c, &req) {
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.address(), req.Password)
	if err != nil {
		h.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Success:      true,
		Message:      "Login successful!",
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		User:         result.User,
	})
}

// Refresh godoc
// @Summary Rotate the refresh token
// @Description Any failure is a 401; presenting a retired token also revokes the session.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token"
// @Success 200 {object} RefreshResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/auth/refresh [post]
func (h *AuthHandler) refresh(c *gin.Context) {
	var req RefreshRequest
	if !h.errors.bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "Refresh token required.", middleware.CodeUnauthenticated))
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, RefreshResponse{
		Success:      true,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *AuthHandler) logout(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		h.errors.Respond(c, usecase.ErrUnauthenticated)
		return
	}

	if err := h.auth.Logout(c.Request.Context(), userID); err != nil {
		h.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "Logged out successfully."})
}

func (h *AuthHandler) me(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		h.errors.Respond(c, usecase.ErrUnauthenticated)
		return
	}

	user, err := h.auth.Me(c.Request.Context(), userID)
	if err != nil {
		h.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, UserResponse{Success: true, User: *user})
}

func chain(before []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(before)+1)
	out = append(out, before...)
	return append(out, handler)
}
