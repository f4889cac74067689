package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"books4all-auth/internal/domain"
	"books4all-auth/internal/metrics"
	"books4all-auth/internal/repository"
	"books4all-auth/internal/service"
)

type mockUserRepo struct {
	usersByEmail map[string]domain.User
	nextID       int
	upsertErr    error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{usersByEmail: make(map[string]domain.User)}
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (domain.User, error) {
	user, ok := m.usersByEmail[email]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (m *mockUserRepo) UpsertOTP(_ context.Context, email, otp string, expiresAt *time.Time) (domain.User, error) {
	if m.upsertErr != nil {
		return domain.User{}, m.upsertErr
	}
	user, ok := m.usersByEmail[email]
	if !ok {
		m.nextID++
		user = domain.User{ID: "u" + strconv.Itoa(m.nextID), Email: email, Provider: domain.ProviderCredentials}
	}
	user.OTP = otp
	user.OTPExpiresAt = expiresAt
	m.usersByEmail[email] = user
	return user, nil
}

func (m *mockUserRepo) FinalizeRegistration(_ context.Context, id, passwordHash string) error {
	for email, user := range m.usersByEmail {
		if user.ID != id {
			continue
		}
		user.PasswordHash = passwordHash
		user.Verified = true
		user.OTP = ""
		user.OTPExpiresAt = nil
		m.usersByEmail[email] = user
		return nil
	}
	return repository.ErrNotFound
}

type mockEmailSender struct {
	lastTo   string
	lastCode string
	err      error
}

func (m *mockEmailSender) SendVerificationOTP(_ context.Context, toEmail string, code string) error {
	m.lastTo = toEmail
	m.lastCode = code
	return m.err
}

type stubOAuthProvider struct {
	identity service.OAuthIdentity
	err      error
}

func (s *stubOAuthProvider) Name() string { return service.GoogleProviderName }

func (s *stubOAuthProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + state
}

func (s *stubOAuthProvider) Identity(_ context.Context, _ string) (service.OAuthIdentity, error) {
	return s.identity, s.err
}

type testEnv struct {
	router *gin.Engine
	repo   *mockUserRepo
	sender *mockEmailSender
	oauth  *stubOAuthProvider
	jwt    *service.JWTService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	oauth := &stubOAuthProvider{}
	logger := zap.NewNop()

	users := service.NewUserService(logger, repo, sender, service.UserServiceOptions{PasswordMinLength: 8})
	jwtSvc := service.NewJWTServiceWithStore("secret", 15*time.Minute, time.Hour, service.NewMemoryRefreshTokenStore())
	sessions := service.NewSessionService(jwtSvc, service.NewCredentialStrategy(users), service.NewOAuthStrategy(oauth))
	m := metrics.New()

	h := NewAuthHandler(logger, users, sessions, m)
	router := NewRouter(logger, m, h, jwtSvc, func(context.Context) error { return nil })
	return &testEnv{router: router, repo: repo, sender: sender, oauth: oauth, jwt: jwtSvc}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestAuthFlow_SendOTPRegisterLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postJSON(t, "/api/auth/sendotp", map[string]string{"email": "reader@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("sendotp: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"success":true`) {
		t.Fatalf("sendotp: unexpected body %s", rec.Body.String())
	}
	code := env.sender.lastCode
	if len(code) != 6 || env.sender.lastTo != "reader@example.com" {
		t.Fatalf("expected 6 digit code sent to reader, got %q to %q", code, env.sender.lastTo)
	}

	rec = env.postJSON(t, "/api/auth/login", map[string]string{"email": "reader@example.com", "password": "Secret123"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("login before register: expected 401, got %d", rec.Code)
	}

	rec = env.postJSON(t, "/api/auth/register", map[string]string{"email": "reader@example.com", "otp": code, "password": "Secret123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("register: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	user := env.repo.usersByEmail["reader@example.com"]
	if !user.Verified || user.OTP != "" || user.PasswordHash == "" {
		t.Fatalf("expected verified user with cleared otp, got %+v", user)
	}

	rec = env.postJSON(t, "/api/auth/login", map[string]string{"email": "reader@example.com", "password": "Secret123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var session service.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.User.Email != "reader@example.com" || session.User.Name != "reader" {
		t.Fatalf("unexpected principal %+v", session.User)
	}
	if session.Strategy != service.StrategyCredentials || session.Tokens.AccessToken == "" {
		t.Fatalf("expected credential session with tokens, got %+v", session)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.Header.Set("Authorization", "Bearer "+session.Tokens.AccessToken)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "reader@example.com") {
		t.Fatalf("session: expected 200 with principal, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = env.postJSON(t, "/api/auth/logout", map[string]string{"refresh_token": session.Tokens.RefreshToken})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", rec.Code)
	}
	rec = env.postJSON(t, "/api/auth/refresh", map[string]string{"refresh_token": session.Tokens.RefreshToken})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: expected 401, got %d", rec.Code)
	}
}

func TestRegister_WrongOTPReturnsInvalidOTP(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.postJSON(t, "/api/auth/sendotp", map[string]string{"email": "reader@example.com"}); rec.Code != http.StatusOK {
		t.Fatalf("sendotp: expected 200, got %d", rec.Code)
	}
	wrong := "100000"
	if env.sender.lastCode == wrong {
		wrong = "100001"
	}

	rec := env.postJSON(t, "/api/auth/register", map[string]string{"email": "reader@example.com", "otp": wrong, "password": "Secret123"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec.Body.String() != "Invalid OTP" {
		t.Fatalf("expected Invalid OTP body, got %q", rec.Body.String())
	}
	if env.repo.usersByEmail["reader@example.com"].Verified {
		t.Fatalf("expected user to stay unverified")
	}
}

func TestRegister_UnknownEmailReturnsInvalidOTP(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postJSON(t, "/api/auth/register", map[string]string{"email": "ghost@example.com", "otp": "123456", "password": "Secret123"})
	if rec.Code != http.StatusBadRequest || rec.Body.String() != "Invalid OTP" {
		t.Fatalf("expected 400 Invalid OTP, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(env.repo.usersByEmail) != 0 {
		t.Fatalf("expected no record to be created")
	}
}

func TestRegister_ShortPasswordRejected(t *testing.T) {
	env := newTestEnv(t)
	env.postJSON(t, "/api/auth/sendotp", map[string]string{"email": "reader@example.com"})

	rec := env.postJSON(t, "/api/auth/register", map[string]string{"email": "reader@example.com", "otp": env.sender.lastCode, "password": "short"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if env.repo.usersByEmail["reader@example.com"].Verified {
		t.Fatalf("expected user to stay unverified")
	}
}

func TestSendOTP_InvalidEmail(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postJSON(t, "/api/auth/sendotp", map[string]string{"email": "not-an-email"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if env.sender.lastTo != "" {
		t.Fatalf("expected no email to be sent")
	}
}

func TestSendOTP_DeliveryFailure(t *testing.T) {
	env := newTestEnv(t)
	env.sender.err = errors.New("provider down")

	rec := env.postJSON(t, "/api/auth/sendotp", map[string]string{"email": "reader@example.com"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestSendOTP_StorageFailure(t *testing.T) {
	env := newTestEnv(t)
	env.repo.upsertErr = errors.New("connection reset")

	rec := env.postJSON(t, "/api/auth/sendotp", map[string]string{"email": "reader@example.com"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if env.sender.lastTo != "" {
		t.Fatalf("expected no email when persistence fails")
	}
}

func TestLogin_WrongPasswordIsGeneric(t *testing.T) {
	env := newTestEnv(t)
	env.postJSON(t, "/api/auth/sendotp", map[string]string{"email": "reader@example.com"})
	env.postJSON(t, "/api/auth/register", map[string]string{"email": "reader@example.com", "otp": env.sender.lastCode, "password": "Secret123"})

	wrong := env.postJSON(t, "/api/auth/login", map[string]string{"email": "reader@example.com", "password": "Wrong1234"})
	missing := env.postJSON(t, "/api/auth/login", map[string]string{"email": "nobody@example.com", "password": "Secret123"})
	if wrong.Code != http.StatusUnauthorized || missing.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for both, got %d and %d", wrong.Code, missing.Code)
	}
	if wrong.Body.String() != missing.Body.String() {
		t.Fatalf("expected identical bodies, got %s and %s", wrong.Body.String(), missing.Body.String())
	}
}

func TestOAuthSignIn_RedirectsWithState(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/signin/google", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != oauthStateCookie || cookies[0].Value == "" {
		t.Fatalf("expected state cookie, got %+v", cookies)
	}
	if !strings.HasSuffix(rec.Header().Get("Location"), "state="+cookies[0].Value) {
		t.Fatalf("expected redirect to carry state, got %s", rec.Header().Get("Location"))
	}
}

func TestOAuthSignIn_UnknownProvider(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/signin/github", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestOAuthCallback_IssuesSessionWithoutUserRecord(t *testing.T) {
	env := newTestEnv(t)
	env.oauth.identity = service.OAuthIdentity{Subject: "g-123", Email: "reader@gmail.com", EmailVerified: true, Name: "Reader"}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback/google?state=abc&code=xyz", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "abc"})
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var session service.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.User.ID != "google:g-123" || session.Strategy != service.StrategyOAuth {
		t.Fatalf("unexpected oauth session %+v", session)
	}
	if len(env.repo.usersByEmail) != 0 {
		t.Fatalf("expected oauth sign in to leave the user store untouched")
	}
}

func TestOAuthCallback_StateMismatch(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback/google?state=abc&code=xyz", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "other"})
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestOAuthCallback_ProviderRejects(t *testing.T) {
	env := newTestEnv(t)
	env.oauth.err = service.ErrOAuthInvalid

	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback/google?state=abc&code=xyz", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "abc"})
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestOAuthCallback_ProviderOutage(t *testing.T) {
	env := newTestEnv(t)
	env.oauth.err = errors.New("dial tcp: connection refused")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback/google?state=abc&code=xyz", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "abc"})
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	h := NewAuthHandler(logger, nil, nil, nil)

	healthy := NewRouter(logger, nil, h, nil, func(context.Context) error { return nil })
	rec := httptest.NewRecorder()
	healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	down := NewRouter(logger, nil, h, nil, func(context.Context) error { return errors.New("db down") })
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.postJSON(t, "/api/auth/sendotp", map[string]string{"email": "reader@example.com"})

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/api/auth/sendotp") {
		t.Fatalf("expected request metrics for sendotp route")
	}
}
