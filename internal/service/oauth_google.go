package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	GoogleProviderName = "google"
	googleUserInfoURL  = "https://openidconnect.googleapis.com/v1/userinfo"
)

// GoogleProvider implementa OAuthProvider con el flujo authorization code de Google.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return newGoogleProvider(&oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"openid", "email", "profile"},
	}, googleUserInfoURL)
}

func newGoogleProvider(cfg *oauth2.Config, userInfoURL string) *GoogleProvider {
	return &GoogleProvider{config: cfg, userInfoURL: userInfoURL}
}

func (p *GoogleProvider) Name() string { return GoogleProviderName }

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

func (p *GoogleProvider) Identity(ctx context.Context, code string) (OAuthIdentity, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && !isServerStatus(retrieveErr.Response) {
			return OAuthIdentity{}, fmt.Errorf("%w: exchange code: %w", ErrOAuthInvalid, err)
		}
		return OAuthIdentity{}, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return OAuthIdentity{}, err
	}
	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return OAuthIdentity{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if isServerStatus(resp) {
			return OAuthIdentity{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
		}
		return OAuthIdentity{}, fmt.Errorf("%w: userinfo status %d", ErrOAuthInvalid, resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return OAuthIdentity{}, fmt.Errorf("decode userinfo: %w", err)
	}
	return OAuthIdentity{
		Subject:       info.Sub,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          info.Name,
	}, nil
}

// isServerStatus marca las respuestas 5xx como caida del proveedor y no como datos invalidos.
func isServerStatus(resp *http.Response) bool {
	return resp != nil && resp.StatusCode >= http.StatusInternalServerError
}
