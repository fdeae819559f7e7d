package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/YOGESHBOTCHA965/W/internal/usecase"
)

const forgotPasswordMessage = "If an account exists with this email, an OTP has been sent."

// PasswordHandler exposes the two password-reset paths: an emailed OTP, or the security
// answer together with the date of birth. Both end in a reset token.
type PasswordHandler struct {
	reset  *usecase.PasswordResetService
	errors *ErrorResponder
}

func NewPasswordHandler(reset *usecase.PasswordResetService, errs *ErrorResponder) *PasswordHandler {
	if errs == nil {
		errs = NewErrorResponder(nil, true)
	}
	return &PasswordHandler{reset: reset, errors: errs}
}

// RegisterRoutes binds the reset routes on r. limited runs ahead of every endpoint that
// sends mail or checks a secret.
func (h *PasswordHandler) RegisterRoutes(r *gin.RouterGroup, limited ...gin.HandlerFunc) {
	r.POST("/forgot-password", chain(limited, h.forgotPassword)...)
	r.GET("/security-question", h.securityQuestion)
	r.POST("/verify-otp", chain(limited, h.verifyOTP)...)
	r.POST("/verify-identity", chain(limited, h.verifyIdentity)...)
	r.POST("/reset-password", chain(limited, h.resetPassword)...)
}

// ForgotPassword godoc
// @Summary Email a reset code
// @Description The response is the same whether or not the account exists.
// @Tags Password
// @Accept json
// @Produce json
// @Param request body ForgotPasswordRequest true "Account email"
// @Success 200 {object} ForgotPasswordResponse
// @Router /api/auth/forgot-password [post]
func (h *PasswordHandler) forgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if !h.errors.bindJSON(c, &req) {
		return
	}

	result, err := h.reset.BeginReset(c.Request.Context(), req.address())
	if err != nil {
		h.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, ForgotPasswordResponse{
		Success:             true,
		Message:             forgotPasswordMessage,
		HasSecurityQuestion: result.HasSecurityQuestion,
		SecurityQuestion:    result.SecurityQuestion,
	})
}

func (h *PasswordHandler) securityQuestion(c *gin.Context) {
	question, err := h.reset.SecurityQuestion(c.Request.Context(), c.Query("email"))
	if err != nil {
		h.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, SecurityQuestionResponse{Success: true, SecurityQuestion: question})
}

// VerifyOTP godoc
// @Summary Exchange an emailed code for a reset token
// @Description Every attempt consumes the pending code, right or wrong.
// @Tags Password
// @Accept json
// @Produce json
// @Param request body VerifyOTPRequest true "Email and code"
// @Success 200 {object} ResetTokenResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/auth/verify-otp [post]
func (h *PasswordHandler) verifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if !h.errors.bindJSON(c, &req) {
		return
	}

	token, err := h.reset.CompleteViaOTP(c.Request.Context(), req.address(), req.OTP)
	if err != nil {
		h.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, ResetTokenResponse{Success: true, Message: "OTP verified successfully.", ResetToken: token})
}

// VerifyIdentity godoc
// @Summary Exchange the security answer and date of birth for a reset token
// @Tags Password
// @Accept json
// @Produce json
// @Param request body VerifyIdentityRequest true "Identity proof"
// @Success 200 {object} ResetTokenResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/auth/verify-identity [post]
func (h *PasswordHandler) verifyIdentity(c *gin.Context) {
	var req VerifyIdentityRequest
	if !h.errors.bindJSON(c, &req) {
		return
	}

	token, err := h.reset.CompleteViaSecurityAnswer(c.Request.Context(), req.address(), req.SecurityAnswer, req.DOB)
	if err != nil {
		h.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, ResetTokenResponse{Success: true, Message: "Identity verified successfully.", ResetToken: token})
}

// ResetPassword godoc
// @Summary Set a new password
// @Description Signs the account out everywhere. The lockout state is left as it was.
// @Tags Password
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "New password and reset token"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/auth/reset-password [post]
func (h *PasswordHandler) resetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !h.errors.bindJSON(c, &req) {
		return
	}

	if err := h.reset.ApplyNewPassword(c.Request.Context(), req.address(), req.NewPassword, req.ResetToken); err != nil {
		h.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{
		Success: true,
		Message: "Password reset successfully! Please login with your new password.",
	})
}
