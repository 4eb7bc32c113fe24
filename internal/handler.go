package form_courier

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/icodewithai/form-courier/internal/mailer"
	"github.com/icodewithai/form-courier/internal/ratelimit"
	"github.com/icodewithai/form-courier/internal/submission"
)

const (
	ContactSuccessMessage  = "Your message has been sent successfully!"
	ReminderSuccessMessage = "Your reminder has been set successfully!"

	defaultMaxBodyBytes int64 = 64 << 10
)

// Form names the submission a Handler accepts.
type Form string

const (
	FormContact  Form = "contact"
	FormReminder Form = "reminder"
)

// composeFunc decodes and validates one form's payload and builds its email.
type composeFunc func(body io.Reader, meta submission.Meta) (*mailer.Message, error)

// Handler serves a single form endpoint: gate, rate limit, validate, notify.
// It keeps no state of its own between requests; the limiter holds the only
// cross-request state.
type Handler struct {
	form           Form
	successMessage string
	compose        composeFunc

	limiter  ratelimit.Limiter
	sender   mailer.Sender
	ipHeader string
	maxBody  int64
	now      func() time.Time
}

type Option func(*Handler)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// WithIPHeader sets the header trusted for the caller's direct address.
func WithIPHeader(name string) Option {
	return func(h *Handler) { h.ipHeader = name }
}

// WithMaxBodyBytes caps the request body. Non-positive values keep the default.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

func newHandler(form Form, limiter ratelimit.Limiter, sender mailer.Sender, opts []Option) *Handler {
	h := &Handler{
		form:     form,
		limiter:  limiter,
		sender:   sender,
		ipHeader: ratelimit.DefaultIPHeader,
		maxBody:  defaultMaxBodyBytes,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewContactHandler accepts contact form submissions and forwards them to the
// operator inbox configured on the composer.
func NewContactHandler(limiter ratelimit.Limiter, sender mailer.Sender, composer submission.Composer, opts ...Option) *Handler {
	h := newHandler(FormContact, limiter, sender, opts)
	h.successMessage = ContactSuccessMessage
	h.compose = func(body io.Reader, meta submission.Meta) (*mailer.Message, error) {
		var p submission.Contact
		if err := decodeAndValidate(body, &p); err != nil {
			return nil, err
		}
		return composer.Contact(&p, meta), nil
	}
	return h
}

// NewReminderHandler accepts reminder sign-ups and confirms them to the
// submitter, blind-copying the admin inbox configured on the composer.
func NewReminderHandler(limiter ratelimit.Limiter, sender mailer.Sender, composer submission.Composer, opts ...Option) *Handler {
	h := newHandler(FormReminder, limiter, sender, opts)
	h.successMessage = ReminderSuccessMessage
	h.compose = func(body io.Reader, meta submission.Meta) (*mailer.Message, error) {
		var p submission.Reminder
		if err := decodeAndValidate(body, &p); err != nil {
			return nil, err
		}
		return composer.Reminder(&p, meta), nil
	}
	return h
}

func (h *Handler) Form() Form { return h.form }

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w.Header())
	log := LoggerFromContext(r.Context()).With("form", string(h.form))

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		writeError(w, log, &ClientError{Status: http.StatusMethodNotAllowed, Message: msgMethodNotAllowed})
		return
	}

	id, err := h.Process(r)
	if err != nil {
		writeError(w, log, err)
		return
	}

	log.Info("email sent", "message_id", id)
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: h.successMessage})
}

// Process runs a POST through the limiter, validator and notifier and returns
// the provider's message id. Every failure comes back as one of
// *ClientError, *RateLimitedError, *DependencyError or *UnexpectedError; a
// panic anywhere below is recovered into *UnexpectedError.
func (h *Handler) Process(r *http.Request) (id string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			id = ""
			err = &UnexpectedError{Err: fmt.Errorf("panic: %v", rec), Stack: debug.Stack()}
		}
	}()

	ctx := r.Context()
	log := LoggerFromContext(ctx)
	now := h.now()
	identity := ratelimit.Identity(r, h.ipHeader)

	decision, err := h.limiter.Check(ctx, identity, now)
	switch {
	case err != nil:
		// a broken limiter must not take the forms down with it
		log.Warn("rate limiter unavailable, allowing request", "identity", identity, "err", err)
	case !decision.Allowed:
		return "", &RateLimitedError{Identity: identity, Decision: decision, RetryAfter: decision.RetryAfter(now)}
	}

	body := http.MaxBytesReader(nil, r.Body, h.maxBody)
	defer body.Close()

	msg, err := h.compose(body, submission.Meta{
		IP:          identity,
		UserAgent:   r.UserAgent(),
		SubmittedAt: now,
	})
	if err != nil {
		return "", classify(err)
	}

	id, err = h.sender.Send(ctx, msg)
	if err != nil {
		return "", &DependencyError{Err: err}
	}
	return id, nil
}

func decodeAndValidate(body io.Reader, dst any) error {
	if err := submission.Decode(body, dst); err != nil {
		return err
	}
	return submission.Validate(dst)
}

// classify turns validation failures into client errors. Anything else,
// including a body that does not decode (submission.ErrMalformedBody) or
// exceeds the size cap, is unexpected and gets the generic 500.
func classify(err error) error {
	var verr *submission.ValidationError
	if errors.As(err, &verr) {
		return &ClientError{Status: http.StatusBadRequest, Message: verr.Error(), Err: err}
	}
	return &UnexpectedError{Err: err}
}
