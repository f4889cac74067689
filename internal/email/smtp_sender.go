package email

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SMTPSender envia correos via SMTP.
type SMTPSender struct {
	logger   *zap.Logger
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
	useTLS   bool
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	otpTTL   time.Duration
}

func NewSMTPSender(logger *zap.Logger, host string, port int, username, password, from, fromName string, useTLS bool) (*SMTPSender, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("smtp from is required")
	}
	if port == 0 {
		port = 587
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPSender{
		logger:   logger,
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		fromName: fromName,
		useTLS:   useTLS,
		sendMail: smtp.SendMail,
	}, nil
}

// SetOTPTTL ajusta la vigencia que se informa en el correo.
func (s *SMTPSender) SetOTPTTL(ttl time.Duration) {
	s.otpTTL = ttl
}

func (s *SMTPSender) SendVerificationOTP(_ context.Context, toEmail string, code string) error {
	if strings.TrimSpace(toEmail) == "" {
		return &DeliveryError{Kind: KindMalformed, Err: errors.New("to email is required")}
	}

	rendered, err := RenderOTP(code, s.otpTTL)
	if err != nil {
		return fmt.Errorf("render otp email: %w", err)
	}
	msg, err := buildMessage(s.from, s.fromName, toEmail, rendered)
	if err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if s.useTLS {
		err = s.sendTLS(addr, auth, toEmail, msg)
	} else {
		err = s.sendMail(addr, auth, s.from, []string{toEmail}, msg)
	}
	if err != nil {
		derr := classifySMTPError(err)
		logDeliveryFailure(s.logger, derr, toEmail)
		return derr
	}
	s.logger.Info("otp email sent", zap.String("to", toEmail))
	return nil
}

func (s *SMTPSender) sendTLS(addr string, auth smtp.Auth, toEmail string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{
		ServerName: s.host,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return err
	}
	defer client.Quit()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(s.from); err != nil {
		return err
	}
	if err := client.Rcpt(toEmail); err != nil {
		return err
	}
	writer, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := writer.Write(msg); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

func classifySMTPError(err error) *DeliveryError {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		kind := KindUnknown
		switch {
		case protoErr.Code == 535 || protoErr.Code == 534 || protoErr.Code == 530:
			kind = KindAuth
		case protoErr.Code == 550 || protoErr.Code == 553:
			kind = KindRecipient
		case protoErr.Code == 421 || protoErr.Code == 451 || protoErr.Code == 452:
			kind = KindRateLimit
		case protoErr.Code == 501 || protoErr.Code == 555:
			kind = KindMalformed
		case protoErr.Code >= 500:
			kind = KindProvider
		}
		return &DeliveryError{Kind: kind, Status: protoErr.Code, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &DeliveryError{Kind: KindConnection, Err: err}
	}
	return &DeliveryError{Kind: KindUnknown, Err: err}
}

func buildMessage(from, fromName, to string, msg Message) ([]byte, error) {
	fromHeader := from
	if strings.TrimSpace(fromName) != "" {
		fromHeader = fmt.Sprintf("%q <%s>", fromName, from)
	}

	boundary, err := newBoundary()
	if err != nil {
		return nil, err
	}

	headers := []string{
		fmt.Sprintf("From: %s", fromHeader),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", msg.Subject),
		"MIME-Version: 1.0",
		fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q", boundary),
	}

	var b strings.Builder
	b.WriteString(strings.Join(headers, "\r\n"))
	b.WriteString("\r\n\r\n")
	writePart(&b, boundary, "text/plain", msg.Text)
	writePart(&b, boundary, "text/html", msg.HTML)
	b.WriteString("--" + boundary + "--\r\n")
	return []byte(b.String()), nil
}

func writePart(b *strings.Builder, boundary, contentType, body string) {
	b.WriteString("--" + boundary + "\r\n")
	b.WriteString(fmt.Sprintf("Content-Type: %s; charset=\"UTF-8\"\r\n", contentType))
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
}

func newBoundary() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "b4a-" + hex.EncodeToString(buf), nil
}
