package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const DefaultAPIURL = "https://api.brevo.com/v3/smtp/email"

// APISender envia correos a traves de la API HTTP de un proveedor transaccional.
type APISender struct {
	logger     *zap.Logger
	apiURL     string
	apiKey     string
	from       string
	fromName   string
	httpClient *http.Client
	otpTTL     time.Duration
}

func NewAPISender(logger *zap.Logger, apiURL, apiKey, from, fromName string) (*APISender, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("mail api key is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, errors.New("mail from is required")
	}
	if strings.TrimSpace(apiURL) == "" {
		apiURL = DefaultAPIURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APISender{
		logger:     logger,
		apiURL:     apiURL,
		apiKey:     apiKey,
		from:       from,
		fromName:   fromName,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// SetOTPTTL ajusta la vigencia que se informa en el correo.
func (s *APISender) SetOTPTTL(ttl time.Duration) {
	s.otpTTL = ttl
}

type apiAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type apiSendRequest struct {
	Sender      apiAddress   `json:"sender"`
	To          []apiAddress `json:"to"`
	Subject     string       `json:"subject"`
	HTMLContent string       `json:"htmlContent"`
	TextContent string       `json:"textContent"`
}

type apiSendResponse struct {
	MessageID string `json:"messageId"`
}

func (s *APISender) SendVerificationOTP(ctx context.Context, toEmail string, code string) error {
	if strings.TrimSpace(toEmail) == "" {
		return &DeliveryError{Kind: KindMalformed, Err: errors.New("to email is required")}
	}

	msg, err := RenderOTP(code, s.otpTTL)
	if err != nil {
		return fmt.Errorf("render otp email: %w", err)
	}

	body, err := json.Marshal(apiSendRequest{
		Sender:      apiAddress{Email: s.from, Name: s.fromName},
		To:          []apiAddress{{Email: toEmail}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
		TextContent: msg.Text,
	})
	if err != nil {
		return fmt.Errorf("marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		derr := &DeliveryError{Kind: KindConnection, Err: err}
		logDeliveryFailure(s.logger, derr, toEmail)
		return derr
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		derr := &DeliveryError{
			Kind:   classifyStatus(resp.StatusCode),
			Status: resp.StatusCode,
			Err:    fmt.Errorf("provider response: %s", strings.TrimSpace(string(detail))),
		}
		logDeliveryFailure(s.logger, derr, toEmail)
		return derr
	}

	var out apiSendResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	s.logger.Info("otp email sent", zap.String("to", toEmail), zap.String("message_id", out.MessageID))
	return nil
}

func classifyStatus(status int) DeliveryErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuth
	case status == http.StatusForbidden:
		return KindPermission
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return KindMalformed
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= 500:
		return KindProvider
	default:
		return KindUnknown
	}
}

func logDeliveryFailure(logger *zap.Logger, err *DeliveryError, toEmail string) {
	fields := []zap.Field{
		zap.String("to", toEmail),
		zap.String("kind", string(err.Kind)),
		zap.Int("status", err.Status),
		zap.Error(err.Err),
	}
	switch err.Kind {
	case KindConnection:
		logger.Error("connection to mail provider failed, check network and provider endpoint", fields...)
	case KindAuth:
		logger.Error("mail provider authentication failed, check api key or smtp credentials", fields...)
	case KindPermission:
		logger.Error("mail provider denied permission, check sender identity and account scopes", fields...)
	case KindMalformed:
		logger.Error("mail provider rejected request as malformed", fields...)
	case KindRecipient:
		logger.Error("recipient address rejected by mail server", fields...)
	case KindRateLimit:
		logger.Error("mail provider rate limit exceeded", fields...)
	case KindProvider:
		logger.Error("mail provider server error", fields...)
	default:
		logger.Error("mail delivery failed", fields...)
	}
}
