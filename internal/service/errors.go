package service

import "errors"

var (
	// Validacion de entrada, antes de tocar storage o el proveedor de correo.
	ErrValidation   = errors.New("invalid request")
	ErrInvalidEmail = errors.New("invalid email")
	ErrWeakPassword = errors.New("password too short")

	ErrUserNotVerified    = errors.New("user not found or not verified")
	ErrOTPInvalid         = errors.New("invalid otp")
	ErrOTPExpired         = errors.New("otp expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailSendFailure   = errors.New("email send failed")
	ErrStorage            = errors.New("storage failure")
	ErrOAuthInvalid       = errors.New("oauth data invalid")
	ErrOAuthDisabled      = errors.New("oauth provider not configured")
	ErrOAuthUnavailable   = errors.New("oauth provider unavailable")
)

// IsValidation agrupa los errores que el cliente puede corregir.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidEmail) || errors.Is(err, ErrWeakPassword)
}
