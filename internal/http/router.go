package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"books4all-auth/internal/metrics"
	"books4all-auth/internal/service"
)

// PingFunc verifica que la base de datos responda.
type PingFunc func(ctx context.Context) error

const healthTimeout = 2 * time.Second

// NewRouter configura el router de Gin con middlewares y rutas de auth.
func NewRouter(
	logger *zap.Logger,
	m *metrics.Metrics,
	authH *AuthHandler,
	jwtSvc *service.JWTService,
	ping PingFunc,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y metricas.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), metricsMiddleware(m))

	auth := r.Group("/api/auth")
	auth.POST("/sendotp", authH.SendOTP)
	auth.POST("/register", authH.Register)
	auth.POST("/login", authH.Login)
	auth.POST("/refresh", authH.RefreshToken)
	auth.POST("/logout", authH.Logout)
	auth.GET("/signin/:provider", authH.OAuthSignIn)
	auth.GET("/callback/:provider", authH.OAuthCallback)
	auth.GET("/session", JWTAuthMiddleware(jwtSvc), authH.Session)

	r.GET("/healthz", healthHandler(logger, ping))
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// metricsMiddleware registra latencia y status por ruta registrada.
func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

func healthHandler(logger *zap.Logger, ping PingFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			defer cancel()
			if err := ping(ctx); err != nil {
				logger.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
