package service

import (
	"context"
	"errors"

	"books4all-auth/internal/domain"
)

// Session es el resultado de un inicio de sesion exitoso.
type Session struct {
	User     domain.Principal `json:"user"`
	Tokens   TokenPair        `json:"tokens"`
	Strategy StrategyKind     `json:"strategy"`
}

// SessionService compone las estrategias de autenticacion con la emision de JWT.
type SessionService struct {
	tokens      *JWTService
	credentials *CredentialStrategy
	oauth       map[string]*OAuthStrategy
}

func NewSessionService(tokens *JWTService, strategies ...Strategy) *SessionService {
	s := &SessionService{
		tokens: tokens,
		oauth:  make(map[string]*OAuthStrategy),
	}
	for _, strategy := range strategies {
		switch st := strategy.(type) {
		case *CredentialStrategy:
			s.credentials = st
		case *OAuthStrategy:
			s.oauth[st.Provider()] = st
		}
	}
	return s
}

func (s *SessionService) SignInWithCredentials(ctx context.Context, emailAddr, password string) (Session, error) {
	if s.credentials == nil {
		return Session{}, errors.New("credential sign-in not configured")
	}
	principal, err := s.credentials.Authorize(ctx, emailAddr, password)
	if err != nil {
		return Session{}, err
	}
	return s.issue(ctx, principal, StrategyCredentials)
}

// OAuth devuelve la estrategia registrada para el proveedor.
func (s *SessionService) OAuth(provider string) (*OAuthStrategy, error) {
	st, ok := s.oauth[provider]
	if !ok {
		return nil, ErrOAuthDisabled
	}
	return st, nil
}

func (s *SessionService) SignInWithOAuth(ctx context.Context, provider, code string) (Session, error) {
	st, err := s.OAuth(provider)
	if err != nil {
		return Session{}, err
	}
	principal, err := st.Authorize(ctx, code)
	if err != nil {
		return Session{}, err
	}
	return s.issue(ctx, principal, StrategyOAuth)
}

func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if s.tokens == nil {
		return TokenPair{}, ErrJWTInvalid
	}
	return s.tokens.RefreshPair(ctx, refreshToken)
}

func (s *SessionService) SignOut(ctx context.Context, refreshToken string) error {
	if s.tokens == nil {
		return ErrJWTInvalid
	}
	return s.tokens.RevokeRefresh(ctx, refreshToken)
}

func (s *SessionService) issue(ctx context.Context, principal domain.Principal, kind StrategyKind) (Session, error) {
	if s.tokens == nil {
		return Session{}, errors.New("jwt not configured")
	}
	tokens, err := s.tokens.GeneratePair(ctx, principal)
	if err != nil {
		return Session{}, err
	}
	return Session{User: principal, Tokens: tokens, Strategy: kind}, nil
}
