// Package ratelimit implements the per-caller fixed-window limiter that guards
// the form endpoints.
//
// A window opens on a caller's first request and admits at most Limit
// requests until Window has elapsed from its start; the next request after
// that opens a fresh window. Rejected requests never touch the window.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultWindow      = time.Hour
	DefaultMaxRequests = 5
)

var ErrEmptyIdentity = errors.New("ratelimit: empty caller identity")

// Decision is the outcome of a single Check.
type Decision struct {
	Allowed     bool
	Count       int // requests counted in the current window, including this one when allowed
	Limit       int
	WindowStart time.Time
	ResetAt     time.Time
}

// RetryAfter reports how long the caller should wait before the window resets.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed || d.ResetAt.IsZero() {
		return 0
	}
	return max(d.ResetAt.Sub(now), 0)
}

// Limiter decides whether a caller may proceed.
// Implementations must treat the read-decide-write on one identity as atomic.
type Limiter interface {
	Check(ctx context.Context, identity string, now time.Time) (Decision, error)
}

// Config holds the window parameters shared by every backend.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRequests <= 0 {
		c.MaxRequests = DefaultMaxRequests
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	return c
}
