package mailer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/noah-isme/dont-forgetter-api/pkg/config"
)

// ErrNotConfigured is returned when no SMTP relay host is set.
var ErrNotConfigured = errors.New("smtp relay not configured")

// Dialer opens an SMTP session. *gomail.Dialer satisfies it.
type Dialer interface {
	Dial() (gomail.SendCloser, error)
}

// Mailer delivers plain-text mail through an SMTP relay.
type Mailer struct {
	dialer Dialer
	from   string
	host   string
	logger *zap.Logger
}

// New builds a Mailer from SMTP settings.
func New(cfg config.SMTPConfig, logger *zap.Logger) *Mailer {
	return NewWithDialer(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.Host, cfg.From, logger)
}

// NewWithDialer builds a Mailer around a custom dialer.
func NewWithDialer(dialer Dialer, host, from string, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{dialer: dialer, from: from, host: host, logger: logger}
}

// Send delivers one message. A relay that refuses the message yields (false, nil);
// configuration and connection failures are returned as errors.
func (m *Mailer) Send(ctx context.Context, subject, body, to string) (bool, error) {
	if m.host == "" || m.dialer == nil {
		return false, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if to == "" {
		m.logger.Warn("mail skipped, empty recipient", zap.String("subject", subject))
		return false, nil
	}

	session, err := m.dialer.Dial()
	if err != nil {
		return false, fmt.Errorf("dial smtp %s: %w", m.host, err)
	}
	defer session.Close() //nolint:errcheck

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := gomail.Send(session, msg); err != nil {
		m.logger.Warn("mail rejected", zap.String("to", to), zap.Error(err))
		return false, nil
	}
	return true, nil
}
