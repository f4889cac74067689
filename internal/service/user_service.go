package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"books4all-auth/internal/domain"
	"books4all-auth/internal/email"
	"books4all-auth/internal/repository"
)

// PasswordHashCost es el costo bcrypt usado al finalizar el registro.
const PasswordHashCost = 10

// inputValidator aplica las mismas reglas que binding:"email" en gin.
var inputValidator = validator.New()

// UserServiceOptions ajusta las reglas de OTP y password.
type UserServiceOptions struct {
	// OTPTTL en cero significa que el codigo no expira.
	OTPTTL            time.Duration
	PasswordMinLength int
}

// UserService coordina emision de OTP, registro y login por credenciales.
type UserService struct {
	logger      *zap.Logger
	users       repository.UserRepository
	emailSender email.Sender
	opts        UserServiceOptions
	now         func() time.Time
}

func NewUserService(logger *zap.Logger, users repository.UserRepository, emailSender email.Sender, opts UserServiceOptions) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		logger:      logger,
		users:       users,
		emailSender: emailSender,
		opts:        opts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// IssueOTP genera un codigo nuevo, lo persiste y lo envia por correo.
// Se persiste antes de enviar: si el envio falla el codigo guardado nunca
// llego al usuario y el siguiente pedido lo reemplaza.
func (s *UserService) IssueOTP(ctx context.Context, emailAddr string) error {
	if s.users == nil {
		return errors.New("user service not configured")
	}

	emailAddr, err := validateEmail(emailAddr)
	if err != nil {
		return err
	}

	code, err := generateOTP()
	if err != nil {
		return err
	}

	var expiresAt *time.Time
	if s.opts.OTPTTL > 0 {
		exp := s.now().Add(s.opts.OTPTTL)
		expiresAt = &exp
	}

	if _, err := s.users.UpsertOTP(ctx, emailAddr, code, expiresAt); err != nil {
		s.logger.Error("persist otp failed", zap.Error(err), zap.String("email", emailAddr))
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if s.emailSender == nil {
		return ErrEmailSendFailure
	}
	if err := s.emailSender.SendVerificationOTP(ctx, emailAddr, code); err != nil {
		s.logger.Warn("send verification otp failed",
			zap.Error(err),
			zap.String("email", emailAddr),
			zap.String("kind", string(email.KindOf(err))),
		)
		return ErrEmailSendFailure
	}

	return nil
}

// Register valida el OTP y, si coincide, fija el password y marca la cuenta verificada.
func (s *UserService) Register(ctx context.Context, emailAddr, code, password string) error {
	if s.users == nil {
		return errors.New("user service not configured")
	}

	emailAddr, err := validateEmail(emailAddr)
	if err != nil {
		return err
	}
	if code == "" || password == "" {
		return ErrValidation
	}
	if utf8.RuneCountInString(password) < s.opts.PasswordMinLength {
		return ErrWeakPassword
	}

	user, err := s.users.FindByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOTPInvalid
		}
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if !otpMatches(user.OTP, code) {
		return ErrOTPInvalid
	}
	if user.OTPExpiresAt != nil && s.now().After(*user.OTPExpiresAt) {
		return ErrOTPExpired
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordHashCost)
	if err != nil {
		return err
	}

	if err := s.users.FinalizeRegistration(ctx, user.ID, string(hash)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOTPInvalid
		}
		s.logger.Error("finalize registration failed", zap.Error(err), zap.String("user_id", user.ID))
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

// Authenticate es el predicado de login por credenciales.
func (s *UserService) Authenticate(ctx context.Context, emailAddr, password string) (domain.Principal, error) {
	if s.users == nil {
		return domain.Principal{}, errors.New("user service not configured")
	}

	emailAddr, err := validateEmail(emailAddr)
	if err != nil {
		return domain.Principal{}, err
	}

	user, err := s.users.FindByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Principal{}, ErrUserNotVerified
		}
		return domain.Principal{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if !user.Verified {
		return domain.Principal{}, ErrUserNotVerified
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return domain.Principal{}, err
	}
	return user.Principal(), nil
}

// VerifyPassword compara el password contra el hash bcrypt guardado.
func VerifyPassword(hash, password string) error {
	if hash == "" || password == "" {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(raw string) (string, error) {
	emailAddr := normalizeEmail(raw)
	if emailAddr == "" {
		return "", ErrInvalidEmail
	}
	if err := inputValidator.Var(emailAddr, "required,email"); err != nil {
		return "", ErrInvalidEmail
	}
	return emailAddr, nil
}
