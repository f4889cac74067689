package domain

import (
	"strings"
	"time"
)

const ProviderCredentials = "credentials"

// User es el registro persistido por email.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"display_name,omitempty"`
	PasswordHash string     `json:"-"`
	OTP          string     `json:"-"`
	OTPExpiresAt *time.Time `json:"-"`
	Verified     bool       `json:"verified"`
	Provider     string     `json:"provider"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Principal es la identidad que se entrega a la capa de sesion.
type Principal struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Verified bool   `json:"verified"`
}

// Principal construye la identidad de sesion del usuario.
func (u User) Principal() Principal {
	provider := u.Provider
	if provider == "" {
		provider = ProviderCredentials
	}
	return Principal{
		ID:       u.ID,
		Email:    u.Email,
		Name:     NameOrLocalPart(u.DisplayName, u.Email),
		Provider: provider,
		Verified: u.Verified,
	}
}

// NameOrLocalPart devuelve name, o la parte local del email si name esta vacio.
func NameOrLocalPart(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}
