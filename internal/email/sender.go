package email

import (
	"context"
	"errors"
	"fmt"
)

// Sender define la interfaz para envio de correos de verificacion.
type Sender interface {
	SendVerificationOTP(ctx context.Context, toEmail string, code string) error
}

// DeliveryErrorKind clasifica por que el proveedor rechazo el envio.
type DeliveryErrorKind string

const (
	KindConnection DeliveryErrorKind = "connection"
	KindAuth       DeliveryErrorKind = "auth"
	KindPermission DeliveryErrorKind = "permission"
	KindMalformed  DeliveryErrorKind = "malformed"
	KindRecipient  DeliveryErrorKind = "recipient_rejected"
	KindRateLimit  DeliveryErrorKind = "rate_limited"
	KindProvider   DeliveryErrorKind = "provider"
	KindUnknown    DeliveryErrorKind = "unknown"
)

// DeliveryError envuelve un fallo del proveedor de correo.
type DeliveryError struct {
	Kind   DeliveryErrorKind
	Status int
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("email delivery failed (%s, status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("email delivery failed (%s): %v", e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// KindOf devuelve el tipo de fallo de entrega, o KindUnknown.
func KindOf(err error) DeliveryErrorKind {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendVerificationOTP(_ context.Context, _ string, _ string) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
