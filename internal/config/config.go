package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v10"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"

	MailProviderAPI  = "api"
	MailProviderSMTP = "smtp"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`

	DBDriver    string `env:"DB_DRIVER" envDefault:"mongo"`
	MongoURI    string `env:"MONGO_URI"`
	MongoDB     string `env:"MONGO_DB" envDefault:"Books4All"`
	DatabaseURL string `env:"DATABASE_URL"`

	MailProvider string `env:"MAIL_PROVIDER" envDefault:"api"`
	MailAPIKey   string `env:"MAIL_API_KEY"`
	MailAPIURL   string `env:"MAIL_API_URL" envDefault:"https://api.brevo.com/v3/smtp/email"`
	MailFrom     string `env:"MAIL_FROM"`
	MailFromName string `env:"MAIL_FROM_NAME" envDefault:"Books4All"`
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	OAuthRedirectURL   string `env:"OAUTH_REDIRECT_URL" envDefault:"http://localhost:8080/api/auth/callback/google"`

	JWTSecret            string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// 0 desactiva la expiracion del OTP.
	OTPTTLMinutes     int `env:"OTP_TTL_MINUTES" envDefault:"0"`
	PasswordMinLength int `env:"PASSWORD_MIN_LENGTH" envDefault:"8"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate revisa las combinaciones que env no puede expresar con tags.
func (c *Config) Validate() error {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.MailProvider = strings.ToLower(strings.TrimSpace(c.MailProvider))

	switch c.DBDriver {
	case DriverMongo:
		if strings.TrimSpace(c.MongoURI) == "" {
			return errors.New("MONGO_URI is required when DB_DRIVER=mongo")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	switch c.MailProvider {
	case MailProviderAPI, MailProviderSMTP:
	default:
		return fmt.Errorf("unsupported MAIL_PROVIDER %q", c.MailProvider)
	}

	if c.OTPTTLMinutes < 0 {
		return errors.New("OTP_TTL_MINUTES must not be negative")
	}
	if c.PasswordMinLength < 0 {
		return errors.New("PASSWORD_MIN_LENGTH must not be negative")
	}
	return nil
}

// GoogleOAuthEnabled indica si hay credenciales de Google configuradas.
func (c *Config) GoogleOAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}
