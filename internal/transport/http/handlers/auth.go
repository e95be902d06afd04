package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dreamwise/dreamwise-api/internal/transport/http/middleware"
	"github.com/dreamwise/dreamwise-api/internal/usecase"
)

// AuthHandler exposes authentication and token lifecycle endpoints.
type AuthHandler struct {
	auth      *usecase.AuthService
	responder *Responder
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, responder *Responder) *AuthHandler {
	return &AuthHandler{auth: auth, responder: responder}
}

// Register godoc
// @Summary Register a new user account
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration payload"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} middleware.RateLimitResponse
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := bindJSON(c, &req); err != nil {
		h.responder.Error(c, err)
		return
	}

	result, err := h.auth.Register(c.Request.Context(), usecase.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		h.responder.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, AuthResponse{
		TokenResponse: toTokenResponse(result.Token),
		User:          toUserResponse(result.User),
	})
}

// Login godoc
// @Summary Authenticate with username or email
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} AuthResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} middleware.RateLimitResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := bindJSON(c, &req); err != nil {
		h.responder.Error(c, err)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.identifier(), req.Password)
	if err != nil {
		h.responder.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, AuthResponse{
		TokenResponse: toTokenResponse(result.Token),
		User:          toUserResponse(result.User),
	})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)
	user, err := h.auth.Me(c.Request.Context(), principal)
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

// Refresh revokes the presented token and issues a new one.
func (h *AuthHandler) Refresh(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		h.responder.Error(c, usecase.ErrUnauthenticated)
		return
	}
	token, err := h.auth.Refresh(c.Request.Context(), claims)
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toTokenResponse(token))
}

// Logout revokes the presented token.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		h.responder.Error(c, usecase.ErrUnauthenticated)
		return
	}
	if err := h.auth.Logout(c.Request.Context(), claims); err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req VerifyEmailRequest
	if err := bindJSON(c, &req); err != nil {
		h.responder.Error(c, err)
		return
	}
	principal, _ := middleware.PrincipalFrom(c)
	user, err := h.auth.VerifyEmail(c.Request.Context(), principal, req.Code)
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

func (h *AuthHandler) ResendVerification(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)
	if err := h.auth.ResendVerification(c.Request.Context(), principal); err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "verification email sent"})
}

// ForgotPassword always answers 200 so callers cannot probe for accounts.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	_ = c.ShouldBindJSON(&req)
	h.auth.ForgotPassword(c.Request.Context(), req.Email)
	c.JSON(http.StatusOK, MessageResponse{Message: "if the email is registered, a reset code has been sent"})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		h.responder.Error(c, err)
		return
	}
	if err := h.auth.ResetPassword(c.Request.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "password has been reset"})
}

// ChangePassword returns a replacement token since the presented one stops
// working.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := bindJSON(c, &req); err != nil {
		h.responder.Error(c, err)
		return
	}
	principal, _ := middleware.PrincipalFrom(c)
	claims, _ := middleware.ClaimsFrom(c)

	token, err := h.auth.ChangePassword(c.Request.Context(), principal, claims, req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toTokenResponse(token))
}
