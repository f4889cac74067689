package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"books4all-auth/internal/domain"
)

const userColumns = `id::text, email, display_name, password_hash, otp, otp_expires_at, verified, provider, created_at, updated_at`

// upsertOTPQuery solo pisa otp, expiracion y updated_at en un registro existente;
// verified y password_hash quedan como estaban.
const upsertOTPQuery = `
	INSERT INTO users (id, email, otp, otp_expires_at, verified, provider, created_at, updated_at)
	VALUES ($1, $2, $3, $4, false, $5, $6, $6)
	ON CONFLICT (email) DO UPDATE
	SET otp = EXCLUDED.otp,
	    otp_expires_at = EXCLUDED.otp_expires_at,
	    updated_at = EXCLUDED.updated_at
	RETURNING ` + userColumns

const finalizeRegistrationQuery = `
	UPDATE users
	SET password_hash = $2, verified = true, otp = '', otp_expires_at = NULL, updated_at = $3
	WHERE id = $1
`

// pgQuerier es el subconjunto de pgxpool.Pool que usa el repositorio.
type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	db  pgQuerier
	now func() time.Time
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return newPgUserRepository(pool)
}

func newPgUserRepository(db pgQuerier) *PgUserRepository {
	return &PgUserRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *PgUserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	return u, err
}

func (r *PgUserRepository) UpsertOTP(ctx context.Context, email, otp string, expiresAt *time.Time) (domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, upsertOTPQuery, upsertOTPArgs(uuid.NewString(), email, otp, expiresAt, r.now())...))
}

func (r *PgUserRepository) FinalizeRegistration(ctx context.Context, id, passwordHash string) error {
	tag, err := r.db.Exec(ctx, finalizeRegistrationQuery, id, passwordHash, r.now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func upsertOTPArgs(id, email, otp string, expiresAt *time.Time, now time.Time) []any {
	return []any{id, email, otp, expiresAt, domain.ProviderCredentials, now}
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&u.PasswordHash,
		&u.OTP,
		&u.OTPExpiresAt,
		&u.Verified,
		&u.Provider,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}
