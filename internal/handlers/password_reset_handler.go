package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cleancharcoal/internal/models"
	"cleancharcoal/internal/services"
)

// Response texts. The leader text is matched by clients.
const (
	MsgCodeSent       = "OTP sent to your email."
	MsgPasswordReset  = "Password reset successful."
	MsgUserNotFound   = "No account found with this email address."
	MsgLeaderAccount  = "Leaders cannot reset their password through this system."
	MsgThrottled      = "Please wait before requesting a new code."
	MsgMismatch       = "Passwords do not match."
	MsgInvalidOTP     = "Invalid OTP."
	MsgExpiredOTP     = "OTP expired."
	MsgTooManyTries   = "Too many attempts. Please request a new code."
	MsgEmailRequired  = "Email is required."
	MsgFieldsRequired = "Email, OTP and both passwords are required."
)

var resetErrors = []errorMapping{
	{services.ErrEmailRequired, http.StatusBadRequest, MsgEmailRequired},
	{services.ErrPasswordRequired, http.StatusBadRequest, MsgFieldsRequired},
	{services.ErrUserNotFound, http.StatusNotFound, MsgUserNotFound},
	{services.ErrLeaderAccount, http.StatusForbidden, MsgLeaderAccount},
	{services.ErrResendThrottled, http.StatusTooManyRequests, MsgThrottled},
	{services.ErrPasswordMismatch, http.StatusBadRequest, MsgMismatch},
	{services.ErrCodeInvalid, http.StatusBadRequest, MsgInvalidOTP},
	{services.ErrCodeExpired, http.StatusBadRequest, MsgExpiredOTP},
	{services.ErrTooManyAttempts, http.StatusBadRequest, MsgTooManyTries},
}

type PasswordResetHandler struct {
	Service services.PasswordResetService
}

func NewPasswordResetHandler(s services.PasswordResetService) *PasswordResetHandler {
	return &PasswordResetHandler{Service: s}
}

const forgotPage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Forgot password | cleancharcoal</title></head>
<body>
<h1>Reset your password</h1>
<p>Use the forgot-password client to request a verification code.</p>
</body>
</html>
`

// Page serves the forgot-password page. Its only job for API clients is to
// hand out the CSRF cookie, which the route's middleware does.
func (h *PasswordResetHandler) Page(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(forgotPage))
}

// Forgot handles POST /api/password/forgot/.
func (h *PasswordResetHandler) Forgot(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if !bindJSON(c, &req, MsgEmailRequired) {
		return
	}
	if err := h.Service.RequestReset(c.Request.Context(), req.Email); err != nil {
		writeError(c, err, resetErrors, "Failed to send verification code.")
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: MsgCodeSent})
}

// Reset handles POST /api/password/reset/.
func (h *PasswordResetHandler) Reset(c *gin.Context) {
	var req models.ResetPasswordRequest
	if !bindJSON(c, &req, MsgFieldsRequired) {
		return
	}
	if err := h.Service.ResetPassword(c.Request.Context(), req); err != nil {
		writeError(c, err, resetErrors, "Failed to reset password.")
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: MsgPasswordReset})
}
