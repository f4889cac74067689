package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"books4all-auth/internal/metrics"
	"books4all-auth/internal/service"
)

const invalidOTPBody = "Invalid OTP"

// AuthHandler mantiene dependencias para los endpoints de autenticacion.
type AuthHandler struct {
	logger   *zap.Logger
	users    *service.UserService
	sessions *service.SessionService
	metrics  *metrics.Metrics
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, users *service.UserService, sessions *service.SessionService, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		users:    users,
		sessions: sessions,
		metrics:  m,
	}
}

// SendOTP maneja POST /api/auth/sendotp.
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid otp request", zap.Error(err))
		h.metrics.OTPResult("invalid_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err := h.users.IssueOTP(c.Request.Context(), req.Email)
	if err != nil {
		switch {
		case service.IsValidation(err):
			h.metrics.OTPResult("invalid_request")
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		case errors.Is(err, service.ErrEmailSendFailure):
			h.metrics.OTPResult("delivery_failure")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "email delivery unavailable"})
		default:
			h.logger.Error("send otp failed", zap.Error(err))
			h.metrics.OTPResult("storage_failure")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send otp"})
		}
		return
	}

	h.metrics.OTPResult("sent")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Register maneja POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		OTP      string `json:"otp" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		h.metrics.RegisterResult("invalid_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err := h.users.Register(c.Request.Context(), req.Email, req.OTP, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOTPInvalid), errors.Is(err, service.ErrOTPExpired):
			h.metrics.RegisterResult("invalid_otp")
			c.String(http.StatusBadRequest, invalidOTPBody)
		case errors.Is(err, service.ErrWeakPassword):
			h.metrics.RegisterResult("invalid_request")
			c.JSON(http.StatusBadRequest, gin.H{"error": "password too short"})
		case service.IsValidation(err):
			h.metrics.RegisterResult("invalid_request")
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		default:
			h.logger.Error("register failed", zap.Error(err))
			h.metrics.RegisterResult("storage_failure")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not complete registration"})
		}
		return
	}

	h.metrics.RegisterResult("verified")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Login maneja POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	session, err := h.sessions.SignInWithCredentials(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotVerified):
			h.metrics.SignInResult(string(service.StrategyCredentials), "not_verified")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		case errors.Is(err, service.ErrInvalidCredentials), service.IsValidation(err):
			h.metrics.SignInResult(string(service.StrategyCredentials), "invalid_credentials")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		default:
			h.logger.Error("login failed", zap.Error(err))
			h.metrics.SignInResult(string(service.StrategyCredentials), "error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not login"})
		}
		return
	}

	h.metrics.SignInResult(string(service.StrategyCredentials), "ok")
	c.JSON(http.StatusOK, session)
}

// RefreshToken maneja POST /api/auth/refresh.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid refresh request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	tokens, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// Logout maneja POST /api/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid logout request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := h.sessions.SignOut(c.Request.Context(), req.RefreshToken); err != nil {
		h.logger.Debug("logout with unknown token", zap.Error(err))
	}
	c.Status(http.StatusNoContent)
}

// Session maneja GET /api/auth/session; requiere JWTAuthMiddleware.
func (h *AuthHandler) Session(c *gin.Context) {
	principal, ok := GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	resp := gin.H{"user": principal}
	if claims, ok := GetAuthClaims(c); ok && claims.ExpiresAt != nil {
		resp["expires"] = claims.ExpiresAt.Time
	}
	c.JSON(http.StatusOK, resp)
}
