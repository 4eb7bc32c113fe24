package ratelimit_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icodewithai/form-courier/internal/ratelimit"
)

func newMemory() *ratelimit.Memory {
	return ratelimit.NewMemory(ratelimit.Config{MaxRequests: 5, Window: time.Hour})
}

func TestMemory_Check(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("allows five requests then rejects the sixth", func(t *testing.T) {
		t.Parallel()

		l := newMemory()
		for i := 1; i <= 5; i++ {
			d, err := l.Check(ctx, "1.2.3.4", start.Add(time.Duration(i)*time.Minute))
			require.NoError(t, err)
			require.True(t, d.Allowed, "request %d", i)
			assert.Equal(t, i, d.Count)
		}

		d, err := l.Check(ctx, "1.2.3.4", start.Add(10*time.Minute))
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, 5, d.Count)
		assert.Equal(t, start.Add(time.Minute), d.WindowStart)
		assert.Equal(t, start.Add(time.Minute+time.Hour), d.ResetAt)
	})

	t.Run("first request opens a window at now", func(t *testing.T) {
		t.Parallel()

		l := newMemory()
		d, err := l.Check(ctx, "fresh", start)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 1, d.Count)
		assert.Equal(t, 5, d.Limit)
		assert.Equal(t, start, d.WindowStart)
		assert.Equal(t, 1, l.Len())
	})

	t.Run("window boundary resets the count", func(t *testing.T) {
		t.Parallel()

		l := newMemory()
		for range 6 {
			_, err := l.Check(ctx, "caller", start)
			require.NoError(t, err)
		}

		// exactly one window later counts as elapsed
		d, err := l.Check(ctx, "caller", start.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 1, d.Count)
		assert.Equal(t, start.Add(time.Hour), d.WindowStart)
	})

	t.Run("just inside the window is still rejected", func(t *testing.T) {
		t.Parallel()

		l := newMemory()
		for range 5 {
			_, err := l.Check(ctx, "caller", start)
			require.NoError(t, err)
		}

		d, err := l.Check(ctx, "caller", start.Add(time.Hour-time.Millisecond))
		require.NoError(t, err)
		assert.False(t, d.Allowed)
	})

	t.Run("rejected attempts do not extend or count toward the window", func(t *testing.T) {
		t.Parallel()

		l := newMemory()
		for range 5 {
			_, err := l.Check(ctx, "caller", start)
			require.NoError(t, err)
		}
		for range 10 {
			d, err := l.Check(ctx, "caller", start.Add(30*time.Minute))
			require.NoError(t, err)
			require.False(t, d.Allowed)
			require.Equal(t, 5, d.Count)
			require.Equal(t, start, d.WindowStart)
		}

		d, err := l.Check(ctx, "caller", start.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 1, d.Count)
	})

	t.Run("identities are counted separately", func(t *testing.T) {
		t.Parallel()

		l := newMemory()
		for range 5 {
			_, err := l.Check(ctx, "a", start)
			require.NoError(t, err)
		}

		d, err := l.Check(ctx, "b", start)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2, l.Len())
	})

	t.Run("empty identity is an error", func(t *testing.T) {
		t.Parallel()

		_, err := newMemory().Check(ctx, "", start)
		require.ErrorIs(t, err, ratelimit.ErrEmptyIdentity)
	})

	t.Run("zero config falls back to defaults", func(t *testing.T) {
		t.Parallel()

		l := ratelimit.NewMemory(ratelimit.Config{})
		d, err := l.Check(ctx, "caller", start)
		require.NoError(t, err)
		assert.Equal(t, ratelimit.DefaultMaxRequests, d.Limit)
		assert.Equal(t, start.Add(ratelimit.DefaultWindow), d.ResetAt)
	})
}

func TestMemory_ConcurrentCallersShareOneCount(t *testing.T) {
	t.Parallel()

	l := newMemory()
	now := time.Now()

	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Check(context.Background(), "same-caller", now)
			if err == nil && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), allowed.Load())
}

func TestDecision_RetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	rejected := ratelimit.Decision{Allowed: false, ResetAt: now.Add(90 * time.Second)}
	assert.Equal(t, 90*time.Second, rejected.RetryAfter(now))
	assert.Equal(t, time.Duration(0), rejected.RetryAfter(now.Add(time.Hour)))

	allowed := ratelimit.Decision{Allowed: true, ResetAt: now.Add(time.Hour)}
	assert.Equal(t, time.Duration(0), allowed.RetryAfter(now))
}
