package http

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"books4all-auth/internal/service"
)

const (
	oauthStateCookie = "b4a_oauth_state"
	oauthStateMaxAge = 600
	oauthCookiePath  = "/api/auth"
)

// OAuthSignIn maneja GET /api/auth/signin/:provider y redirige al proveedor.
func (h *AuthHandler) OAuthSignIn(c *gin.Context) {
	strategy, err := h.sessions.OAuth(c.Param("provider"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return
	}

	state, err := newOAuthState()
	if err != nil {
		h.logger.Error("oauth state generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start sign in"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, oauthStateMaxAge, oauthCookiePath, "", c.Request.TLS != nil, true)
	c.Redirect(http.StatusFound, strategy.AuthCodeURL(state))
}

// OAuthCallback maneja GET /api/auth/callback/:provider.
func (h *AuthHandler) OAuthCallback(c *gin.Context) {
	provider := c.Param("provider")
	strategyName := string(service.StrategyOAuth)

	if providerErr := c.Query("error"); providerErr != "" {
		h.logger.Warn("oauth provider returned error", zap.String("provider", provider), zap.String("error", providerErr))
		h.metrics.SignInResult(strategyName, "provider_error")
		c.JSON(http.StatusBadRequest, gin.H{"error": "sign in was not completed"})
		return
	}

	cookieState, err := c.Cookie(oauthStateCookie)
	queryState := c.Query("state")
	if err != nil || queryState == "" || subtle.ConstantTimeCompare([]byte(cookieState), []byte(queryState)) != 1 {
		h.metrics.SignInResult(strategyName, "invalid_state")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
		return
	}
	c.SetCookie(oauthStateCookie, "", -1, oauthCookiePath, "", c.Request.TLS != nil, true)

	session, err := h.sessions.SignInWithOAuth(c.Request.Context(), provider, c.Query("code"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOAuthDisabled):
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		case errors.Is(err, service.ErrOAuthInvalid):
			h.logger.Warn("oauth sign in rejected", zap.String("provider", provider), zap.Error(err))
			h.metrics.SignInResult(strategyName, "rejected")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "sign in failed"})
		case errors.Is(err, service.ErrOAuthUnavailable):
			h.logger.Error("oauth provider unavailable", zap.String("provider", provider), zap.Error(err))
			h.metrics.SignInResult(strategyName, "provider_unavailable")
			c.JSON(http.StatusBadGateway, gin.H{"error": "sign in provider unavailable"})
		default:
			h.logger.Error("oauth sign in failed", zap.String("provider", provider), zap.Error(err))
			h.metrics.SignInResult(strategyName, "error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not complete sign in"})
		}
		return
	}

	h.metrics.SignInResult(strategyName, "ok")
	c.JSON(http.StatusOK, session)
}

func newOAuthState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
