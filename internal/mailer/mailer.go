// Package mailer hands finished messages to an email-delivery provider.
//
// Senders are non-retrying: one Send is one provider call, and any error is
// returned to the caller as is.
package mailer

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNoSender    = errors.New("mailer: message must have a sender")
	ErrNoRecipient = errors.New("mailer: message must have at least one recipient")
	ErrNoSubject   = errors.New("mailer: message must have a subject")
	ErrNoContent   = errors.New("mailer: message must have a text body")
	ErrSendFailed  = errors.New("mailer: failed to send email")
	ErrSendTimeout = errors.New("mailer: send timed out")
)

// Message is a plain-text transactional email.
type Message struct {
	From    string
	ReplyTo string
	Subject string
	Text    string
	To      []string
	Bcc     []string
}

func (m *Message) Validate() error {
	switch {
	case m.From == "":
		return ErrNoSender
	case len(m.To) == 0:
		return ErrNoRecipient
	case m.Subject == "":
		return ErrNoSubject
	case m.Text == "":
		return ErrNoContent
	}
	return nil
}

// Sender delivers a message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, msg *Message) (string, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg *Message) (string, error)

func (f SenderFunc) Send(ctx context.Context, msg *Message) (string, error) {
	return f(ctx, msg)
}

type sendResult struct {
	id  string
	err error
}

type timeoutSender struct {
	next    Sender
	timeout time.Duration
}

// WithTimeout bounds every Send on next by d, including senders that do not
// observe context cancellation. A non-positive d returns next unchanged.
func WithTimeout(next Sender, d time.Duration) Sender {
	if d <= 0 {
		return next
	}
	return &timeoutSender{next: next, timeout: d}
}

func (s *timeoutSender) Send(ctx context.Context, msg *Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan sendResult, 1)
	go func() {
		id, err := s.next.Send(ctx, msg)
		done <- sendResult{id: id, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", errors.Join(ErrSendTimeout, res.err)
		}
		return res.id, res.err
	case <-ctx.Done():
		return "", errors.Join(ErrSendTimeout, ctx.Err())
	}
}
