package form_courier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/icodewithai/form-courier/internal/mailer"
	"github.com/icodewithai/form-courier/internal/ratelimit"
)

const (
	redisConnectAttempts = 5
	redisConnectInterval = time.Second
)

// App holds the wired form handlers and the resources they share.
type App struct {
	Contact  *Handler
	Reminder *Handler

	checks  map[string]HealthCheck
	closers []func() error
}

// NewApp builds the limiters, senders and handlers described by cfg. Each
// form gets its own limiter so the two endpoints are counted independently.
func NewApp(ctx context.Context, cfg *Config) (*App, error) {
	app := &App{checks: map[string]HealthCheck{}}

	limiters, err := app.openLimiters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var smtpSender *mailer.SMTP
	if cfg.EmailProvider == ProviderSMTP {
		smtpSender = mailer.NewSMTP(cfg.SMTP)
	}
	senderFor := func(f FormCfg) mailer.Sender {
		var s mailer.Sender
		if smtpSender != nil {
			s = smtpSender
		} else {
			s = mailer.NewResend(f.ResendAPIKey)
		}
		return mailer.WithTimeout(s, cfg.SendTimeout)
	}

	opts := []Option{
		WithIPHeader(cfg.RateLimit.IPHeader),
		WithMaxBodyBytes(cfg.MaxBodyBytes()),
	}
	app.Contact = NewContactHandler(limiters[FormContact], senderFor(cfg.Contact), cfg.Composer(cfg.Contact), opts...)
	app.Reminder = NewReminderHandler(limiters[FormReminder], senderFor(cfg.Reminder), cfg.Composer(cfg.Reminder), opts...)

	return app, nil
}

func (a *App) openLimiters(ctx context.Context, cfg *Config) (map[Form]ratelimit.Limiter, error) {
	rl := ratelimit.Config{MaxRequests: cfg.RateLimit.MaxRequests, Window: cfg.RateLimit.Window}
	forms := []Form{FormContact, FormReminder}
	out := make(map[Form]ratelimit.Limiter, len(forms))

	switch cfg.RateLimit.Backend {
	case BackendRedis:
		client, err := ratelimit.OpenRedis(ctx, cfg.RateLimit.RedisURL, redisConnectAttempts, redisConnectInterval)
		if err != nil {
			return nil, fmt.Errorf("open rate limit store: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		for _, f := range forms {
			limiter := ratelimit.NewRedis(client, cfg.RateLimit.Prefix+":"+string(f), rl)
			out[f] = limiter
			a.checks["redis"] = limiter.Ping
		}
	default:
		for _, f := range forms {
			out[f] = ratelimit.NewMemory(rl)
		}
	}
	return out, nil
}

// Close releases shared resources such as the Redis client.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Routes mounts the form endpoints and the health check.
func (a *App) Routes(logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(
		func(next http.Handler) http.Handler { return loggingMiddleware(logger, next) },
		secHeaders,
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found"})
	})

	r.Get("/health", HandleHealth(a.checks))
	r.Head("/health", HandleHealth(a.checks))

	// the handlers do their own method gating
	r.Handle("/v1/contact", a.Contact)
	r.Handle("/v1/reminder", a.Reminder)

	return r
}

func secHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "0")
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(baseLogger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestLogger, requestID := RequestLogger(baseLogger, r)
		w.Header().Set(RequestIDHeader, requestID)

		ctx := ContextWithLogger(r.Context(), requestLogger)
		r = r.WithContext(ctx)

		lrw := &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if rec := recover(); rec != nil {
				requestLogger.Error("panic recovered",
					"err", rec,
					"type", fmt.Sprintf("%T", rec),
					"stack", string(debug.Stack()),
				)
				if !lrw.wrote {
					setCORSHeaders(lrw.Header())
					writeJSON(lrw, http.StatusInternalServerError, errorResponse{Error: msgInternal})
				}
			}
			level := slog.LevelInfo
			switch {
			case lrw.status >= 500:
				level = slog.LevelError
			case lrw.status >= 400 && lrw.status != http.StatusTooManyRequests:
				level = slog.LevelWarn
			}
			requestLogger.Log(ctx, level, "request completed",
				"status", lrw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"bytes", lrw.length,
			)
		}()

		next.ServeHTTP(lrw, r)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	length int
	wrote  bool
}

func (lrw *loggingResponseWriter) WriteHeader(status int) {
	if !lrw.wrote {
		lrw.ResponseWriter.WriteHeader(status)
		lrw.wrote = true
		lrw.status = status
	}
}

func (lrw *loggingResponseWriter) Write(p []byte) (int, error) {
	if !lrw.wrote {
		lrw.WriteHeader(http.StatusOK)
	}
	n, err := lrw.ResponseWriter.Write(p)
	lrw.length += n
	return n, err
}
