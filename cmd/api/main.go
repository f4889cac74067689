package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"books4all-auth/internal/config"
	"books4all-auth/internal/db"
	"books4all-auth/internal/email"
	apihttp "books4all-auth/internal/http"
	"books4all-auth/internal/metrics"
	"books4all-auth/internal/repository"
	"books4all-auth/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	var (
		userRepo repository.UserRepository
		ping     apihttp.PingFunc
		closers  []func(context.Context)
	)
	switch cfg.DBDriver {
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		closers = append(closers, func(context.Context) { pool.Close() })
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
		userRepo = repository.NewPgUserRepository(pool)
		ping = func(ctx context.Context) error { return db.Ping(ctx, pool) }
	default:
		client, err := db.NewMongoClient(ctx, cfg)
		if err != nil {
			logger.Fatal("mongo connect", zap.Error(err))
		}
		closers = append(closers, func(ctx context.Context) { _ = client.Disconnect(ctx) })
		repo, err := repository.NewMongoUserRepository(ctx, client.Database(cfg.MongoDB))
		if err != nil {
			logger.Fatal("mongo user repository", zap.Error(err))
		}
		userRepo = repo
		ping = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	}

	otpTTL := time.Duration(cfg.OTPTTLMinutes) * time.Minute
	emailSender := newEmailSender(logger, cfg, otpTTL)

	var tokenStore service.RefreshTokenStore
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory refresh store", zap.Error(err))
			_ = redisClient.Close()
		} else {
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
			closers = append(closers, func(context.Context) { _ = redisClient.Close() })
		}
		cancel()
	}
	jwtSvc := service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	userSvc := service.NewUserService(logger, userRepo, emailSender, service.UserServiceOptions{
		OTPTTL:            otpTTL,
		PasswordMinLength: cfg.PasswordMinLength,
	})

	strategies := []service.Strategy{service.NewCredentialStrategy(userSvc)}
	if cfg.GoogleOAuthEnabled() {
		strategies = append(strategies, service.NewOAuthStrategy(
			service.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthRedirectURL),
		))
	} else {
		logger.Info("google oauth disabled")
	}
	sessionSvc := service.NewSessionService(jwtSvc, strategies...)

	m := metrics.New()
	authHandler := apihttp.NewAuthHandler(logger, userSvc, sessionSvc, m)
	router := apihttp.NewRouter(logger, m, authHandler, jwtSvc, ping)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("db_driver", cfg.DBDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctxShut, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShut); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i](ctxShut)
	}
	logger.Info("shutdown complete")
}

// newEmailSender elige el proveedor de correo segun MAIL_PROVIDER.
func newEmailSender(logger *zap.Logger, cfg *config.Config, otpTTL time.Duration) email.Sender {
	switch cfg.MailProvider {
	case config.MailProviderSMTP:
		if cfg.SMTPHost == "" {
			break
		}
		sender, err := email.NewSMTPSender(logger, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom, cfg.MailFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
			break
		}
		sender.SetOTPTTL(otpTTL)
		return sender
	default:
		if cfg.MailAPIKey == "" {
			break
		}
		sender, err := email.NewAPISender(logger, cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailFrom, cfg.MailFromName)
		if err != nil {
			logger.Warn("mail api sender init failed", zap.Error(err))
			break
		}
		sender.SetOTPTTL(otpTTL)
		return sender
	}
	logger.Warn("email sender not configured", zap.String("provider", cfg.MailProvider))
	return email.NewDisabledSender("email sender not configured")
}
