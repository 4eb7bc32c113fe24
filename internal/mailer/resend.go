package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v3"
)

// Resend implements Sender using the Resend API.
type Resend struct {
	client *resend.Client
}

// NewResend creates a sender authenticated with apiKey.
func NewResend(apiKey string) *Resend {
	return NewResendWithClient(resend.NewClient(apiKey))
}

// NewResendWithClient wraps a preconfigured client (custom base URL, HTTP client).
func NewResendWithClient(client *resend.Client) *Resend {
	return &Resend{client: client}
}

// Send implements Sender.
func (s *Resend) Send(ctx context.Context, msg *Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	req := &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Bcc:     msg.Bcc,
		Subject: msg.Subject,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
	}

	resp, err := s.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return "", errors.Join(ErrSendFailed, fmt.Errorf("resend: %w", err))
	}

	return resp.Id, nil
}

var _ Sender = (*Resend)(nil)
