package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"books4all-auth/internal/domain"
)

// StrategyKind identifica la variante de autenticacion que emitio una sesion.
type StrategyKind string

const (
	StrategyCredentials StrategyKind = "credentials"
	StrategyOAuth       StrategyKind = "oauth"
)

// Strategy es la union cerrada {CredentialStrategy, OAuthStrategy}.
type Strategy interface {
	Kind() StrategyKind
	isStrategy()
}

type credentialAuthenticator interface {
	Authenticate(ctx context.Context, emailAddr, password string) (domain.Principal, error)
}

// CredentialStrategy autoriza email/password contra el registro local.
type CredentialStrategy struct {
	users credentialAuthenticator
}

func NewCredentialStrategy(users credentialAuthenticator) *CredentialStrategy {
	return &CredentialStrategy{users: users}
}

func (*CredentialStrategy) Kind() StrategyKind { return StrategyCredentials }
func (*CredentialStrategy) isStrategy()        {}

func (s *CredentialStrategy) Authorize(ctx context.Context, emailAddr, password string) (domain.Principal, error) {
	if s == nil || s.users == nil {
		return domain.Principal{}, errors.New("credential strategy not configured")
	}
	return s.users.Authenticate(ctx, emailAddr, password)
}

// OAuthIdentity son los claims de identidad devueltos por el proveedor.
type OAuthIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// OAuthProvider encapsula el handshake con un proveedor de identidad externo.
type OAuthProvider interface {
	Name() string
	AuthCodeURL(state string) string
	Identity(ctx context.Context, code string) (OAuthIdentity, error)
}

// OAuthStrategy emite la identidad directamente desde el proveedor.
// No consulta password, otp ni verified del registro local.
type OAuthStrategy struct {
	provider OAuthProvider
}

func NewOAuthStrategy(provider OAuthProvider) *OAuthStrategy {
	return &OAuthStrategy{provider: provider}
}

func (*OAuthStrategy) Kind() StrategyKind { return StrategyOAuth }
func (*OAuthStrategy) isStrategy()        {}

func (s *OAuthStrategy) Provider() string {
	return s.provider.Name()
}

func (s *OAuthStrategy) AuthCodeURL(state string) string {
	return s.provider.AuthCodeURL(state)
}

func (s *OAuthStrategy) Authorize(ctx context.Context, code string) (domain.Principal, error) {
	if strings.TrimSpace(code) == "" {
		return domain.Principal{}, ErrOAuthInvalid
	}
	identity, err := s.provider.Identity(ctx, code)
	if err != nil {
		if errors.Is(err, ErrOAuthInvalid) {
			return domain.Principal{}, err
		}
		return domain.Principal{}, fmt.Errorf("%w: %w", ErrOAuthUnavailable, err)
	}
	subject := strings.TrimSpace(identity.Subject)
	if subject == "" {
		return domain.Principal{}, ErrOAuthInvalid
	}

	provider := s.provider.Name()
	emailAddr := normalizeEmail(identity.Email)
	return domain.Principal{
		ID:       provider + ":" + subject,
		Email:    emailAddr,
		Name:     domain.NameOrLocalPart(identity.Name, emailAddr),
		Provider: provider,
		Verified: identity.EmailVerified,
	}, nil
}
