package ratelimit

import (
	"context"
	"sync"
	"time"
)

// window is one caller's counter. It lives as long as the process.
type window struct {
	count int
	start time.Time
}

// Memory is a process-local registry of windows.
// Counts reset on restart and are not shared between instances.
type Memory struct {
	mu      sync.Mutex
	windows map[string]*window
	cfg     Config
}

func NewMemory(cfg Config) *Memory {
	return &Memory{
		windows: make(map[string]*window),
		cfg:     cfg.withDefaults(),
	}
}

func (m *Memory) Check(_ context.Context, identity string, now time.Time) (Decision, error) {
	if identity == "" {
		return Decision{}, ErrEmptyIdentity
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[identity]
	switch {
	case !ok:
		w = &window{count: 1, start: now}
		m.windows[identity] = w
	case now.Sub(w.start) >= m.cfg.Window:
		// reset regardless of the previous count
		w.count = 1
		w.start = now
	case w.count < m.cfg.MaxRequests:
		w.count++
	default:
		return m.decision(w, false), nil
	}

	return m.decision(w, true), nil
}

func (m *Memory) decision(w *window, allowed bool) Decision {
	return Decision{
		Allowed:     allowed,
		Count:       w.count,
		Limit:       m.cfg.MaxRequests,
		WindowStart: w.start,
		ResetAt:     w.start.Add(m.cfg.Window),
	}
}

// Len reports how many identities have been seen.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

var _ Limiter = (*Memory)(nil)
