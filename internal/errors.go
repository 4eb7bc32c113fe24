package form_courier

import (
	"fmt"
	"time"

	"github.com/icodewithai/form-courier/internal/ratelimit"
)

// User-facing messages. Provider and internal details never reach the caller.
const (
	msgMethodNotAllowed = "Method not allowed"
	msgRateLimited      = "Too many requests. Please wait before submitting again."
	msgSendFailed       = "Failed to send email. Please try again later."
	msgInternal         = "Internal server error"
)

// ClientError is a defect in the request itself: wrong method, missing
// fields, malformed email.
type ClientError struct {
	Status  int
	Message string
	Err     error
}

func (e *ClientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *ClientError) Unwrap() error { return e.Err }

// RateLimitedError means the caller exhausted its window.
type RateLimitedError struct {
	Identity   string
	Decision   ratelimit.Decision
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: %s made %d of %d requests, retry after %s",
		e.Identity, e.Decision.Count, e.Decision.Limit, e.RetryAfter)
}

// DependencyError wraps a failure of the email provider. It is not retried.
type DependencyError struct {
	Err error
}

func (e *DependencyError) Error() string { return "email provider: " + e.Err.Error() }

func (e *DependencyError) Unwrap() error { return e.Err }

// UnexpectedError is anything the pipeline did not anticipate: bodies that do
// not decode, oversized bodies, panics.
type UnexpectedError struct {
	Err   error
	Stack []byte
}

func (e *UnexpectedError) Error() string { return "unexpected: " + e.Err.Error() }

func (e *UnexpectedError) Unwrap() error { return e.Err }
