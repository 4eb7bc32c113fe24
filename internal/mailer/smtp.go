package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jordan-wright/email"
)

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	SSL  bool
}

// SMTP delivers messages over an authenticated SMTP relay.
type SMTP struct {
	cfg SMTPConfig

	// deliver is replaced in tests.
	deliver func(cfg SMTPConfig, e *email.Email) error
}

func NewSMTP(cfg SMTPConfig) *SMTP {
	return &SMTP{cfg: cfg, deliver: deliverSMTP}
}

// Send implements Sender. The returned id is the Message-Id header set on
// the outgoing mail; the relay does not report one of its own.
func (s *SMTP) Send(ctx context.Context, msg *Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := fmt.Sprintf("<%s@%s>", uuid.NewString(), messageIDDomain(msg.From, s.cfg.Host))

	e := email.NewEmail()
	e.From = msg.From
	e.To = msg.To
	e.Bcc = msg.Bcc
	e.Subject = msg.Subject
	e.Text = []byte(msg.Text)
	if msg.ReplyTo != "" {
		e.ReplyTo = []string{msg.ReplyTo}
	}
	e.Headers.Set("Message-Id", id)

	if err := s.deliver(s.cfg, e); err != nil {
		return "", errors.Join(ErrSendFailed, fmt.Errorf("smtp: %w", err))
	}
	return id, nil
}

func deliverSMTP(cfg SMTPConfig, e *email.Email) error {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	auth := smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)

	if cfg.SSL {
		return e.SendWithTLS(addr, auth, &tls.Config{ServerName: cfg.Host})
	}
	return e.Send(addr, auth)
}

// messageIDDomain takes the domain of the sender address, which may be in
// "Name <addr>" form.
func messageIDDomain(from, fallback string) string {
	addr := from
	if i := strings.LastIndex(addr, "<"); i >= 0 {
		addr = strings.TrimSuffix(addr[i+1:], ">")
	}
	if _, domain, ok := strings.Cut(addr, "@"); ok && domain != "" {
		return domain
	}
	return fallback
}

var _ Sender = (*SMTP)(nil)
