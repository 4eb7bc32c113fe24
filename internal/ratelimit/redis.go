package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrEmptyRedisURL        = errors.New("ratelimit: empty redis URL")
	ErrRedisConnection      = errors.New("ratelimit: failed to connect to redis")
	ErrUnexpectedRedisReply = errors.New("ratelimit: unexpected redis reply")
)

const DefaultRedisPrefix = "form-courier:ratelimit"

// fixedWindowScript runs the whole read-decide-write server side so that
// concurrent callers on different instances share one counter.
// KEYS[1] window hash; ARGV now_ms, window_ms, max.
// Returns {allowed, count, start_ms}.
var fixedWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local fields = redis.call('HMGET', KEYS[1], 'count', 'start')
local count = tonumber(fields[1])
local start = tonumber(fields[2])
if count == nil or start == nil or now - start >= window then
  redis.call('HSET', KEYS[1], 'count', 1, 'start', now)
  redis.call('PEXPIRE', KEYS[1], window)
  return {1, 1, now}
end
if count < limit then
  count = redis.call('HINCRBY', KEYS[1], 'count', 1)
  return {1, count, start}
end
return {0, count, start}
`)

// Redis keeps windows in a shared Redis instance. Keys expire with their
// window, so idle callers cost nothing.
type Redis struct {
	client redis.UniversalClient
	prefix string
	cfg    Config
}

func NewRedis(client redis.UniversalClient, prefix string, cfg Config) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{
		client: client,
		prefix: strings.TrimSuffix(prefix, ":"),
		cfg:    cfg.withDefaults(),
	}
}

func (r *Redis) Check(ctx context.Context, identity string, now time.Time) (Decision, error) {
	if identity == "" {
		return Decision{}, ErrEmptyIdentity
	}

	res, err := fixedWindowScript.Run(ctx, r.client,
		[]string{r.key(identity)},
		now.UnixMilli(), r.cfg.Window.Milliseconds(), r.cfg.MaxRequests,
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis check: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("%w: %v", ErrUnexpectedRedisReply, res)
	}

	start := time.UnixMilli(res[2])
	return Decision{
		Allowed:     res[0] == 1,
		Count:       int(res[1]),
		Limit:       r.cfg.MaxRequests,
		WindowStart: start,
		ResetAt:     start.Add(r.cfg.Window),
	}, nil
}

func (r *Redis) key(identity string) string {
	return r.prefix + ":" + identity
}

// Ping is used by the health endpoint.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

var _ Limiter = (*Redis)(nil)

// OpenRedis parses a redis:// or rediss:// URL and returns a client that has
// answered a PING, retrying with a linear backoff.
func OpenRedis(ctx context.Context, url string, attempts int, interval time.Duration) (redis.UniversalClient, error) {
	if url == "" {
		return nil, ErrEmptyRedisURL
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Join(ErrRedisConnection, err)
	}

	attempts = max(attempts, 1)
	var lastErr error
	for i := range attempts {
		client := redis.NewClient(opts)
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
		_ = client.Close()

		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisConnection, ctx.Err())
		case <-time.After(time.Duration(i+1) * interval):
		}
	}

	return nil, errors.Join(ErrRedisConnection, lastErr)
}
