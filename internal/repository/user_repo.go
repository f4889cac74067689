package repository

import (
	"context"
	"errors"
	"time"

	"books4all-auth/internal/domain"
)

// ErrNotFound se devuelve cuando no existe registro para la clave buscada.
var ErrNotFound = errors.New("record not found")

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	// UpsertOTP sobrescribe el otp del registro o crea uno nuevo con email y otp.
	UpsertOTP(ctx context.Context, email, otp string, expiresAt *time.Time) (domain.User, error)
	FinalizeRegistration(ctx context.Context, id, passwordHash string) error
}
