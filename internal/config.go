package form_courier

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/icodewithai/form-courier/env"
	"github.com/icodewithai/form-courier/internal/mailer"
	"github.com/icodewithai/form-courier/internal/ratelimit"
	"github.com/icodewithai/form-courier/internal/submission"
)

/*
ENV-ONLY CONFIG (a .env file in the working directory is loaded first, if present):
  Optional global:
    LISTEN_ADDR (default ":3000")
    MAX_BODY_KB (default 64)
    LOG_LEVEL (debug|info|warn|error, default info)
    LOG_FORMAT (text|json, default text)
    SENTRY_DSN, SENTRY_ENVIRONMENT (default "production")
    SEND_TIMEOUT (default 10s; bare numbers are seconds)
    TIMEZONE (default "America/New_York")

  Rate limiting:
    RATE_LIMIT_MAX_REQUESTS (default 5)
    RATE_LIMIT_WINDOW (default 1h)
    RATE_LIMIT_IP_HEADER (default "X-Real-IP")
    RATE_LIMIT_BACKEND (memory|redis, default memory)
    REDIS_URL (required for the redis backend)
    RATE_LIMIT_PREFIX (default "form-courier:ratelimit")

  Email provider:
    EMAIL_PROVIDER (resend|smtp, default resend)
    SMTP_HOST, SMTP_PORT, SMTP_USER, SMTP_PASS (required for smtp), SMTP_SSL (true/false)

  Per form, prefixed CONTACT_ or REMINDER_:
    <FORM>_RESEND_API_KEY (required for resend; each form reads its own key)
    <FORM>_FROM_EMAIL
    CONTACT_TO_EMAIL (required)      operator inbox
    REMINDER_ADMIN_EMAIL (required)  blind copy of every reminder
*/

const (
	ProviderResend = "resend"
	ProviderSMTP   = "smtp"

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// FormCfg is the per-form slice of the configuration.
type FormCfg struct {
	Form         Form
	FromAddr     string
	Recipient    string // contact: operator inbox; reminder: admin blind copy
	ResendAPIKey string
}

type RateLimitCfg struct {
	Backend     string
	MaxRequests int
	Window      time.Duration
	IPHeader    string
	RedisURL    string
	Prefix      string
}

type Config struct {
	ListenAddr    string
	MaxBodyKB     int
	SendTimeout   time.Duration
	Location      *time.Location
	EmailProvider string
	SMTP          mailer.SMTPConfig
	RateLimit     RateLimitCfg
	Log           LogConfig
	Contact       FormCfg
	Reminder      FormCfg
}

// LoadConfig reads the environment. It reports every missing or malformed
// key at once rather than stopping at the first.
func LoadConfig() (*Config, error) {
	var p parser

	cfg := &Config{
		ListenAddr:    env.Env("LISTEN_ADDR", ":3000"),
		MaxBodyKB:     p.intVar("MAX_BODY_KB", 64),
		SendTimeout:   p.durationVar("SEND_TIMEOUT", 10*time.Second),
		EmailProvider: strings.ToLower(env.Env("EMAIL_PROVIDER", ProviderResend)),
		Log: LogConfig{
			Level:             env.Env("LOG_LEVEL", "info"),
			Format:            env.Env("LOG_FORMAT", "text"),
			SentryDSN:         env.Env("SENTRY_DSN", ""),
			SentryEnvironment: env.Env("SENTRY_ENVIRONMENT", "production"),
		},
		RateLimit: RateLimitCfg{
			Backend:     strings.ToLower(env.Env("RATE_LIMIT_BACKEND", BackendMemory)),
			MaxRequests: p.intVar("RATE_LIMIT_MAX_REQUESTS", ratelimit.DefaultMaxRequests),
			Window:      p.durationVar("RATE_LIMIT_WINDOW", ratelimit.DefaultWindow),
			IPHeader:    env.Env("RATE_LIMIT_IP_HEADER", ratelimit.DefaultIPHeader),
			RedisURL:    env.Env("REDIS_URL", ""),
			Prefix:      env.Env("RATE_LIMIT_PREFIX", ratelimit.DefaultRedisPrefix),
		},
	}

	tz := env.Env("TIMEZONE", "America/New_York")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		p.invalid("TIMEZONE", err)
		loc = time.UTC
	}
	cfg.Location = loc

	if cfg.MaxBodyKB <= 0 {
		p.invalid("MAX_BODY_KB", errors.New("must be positive"))
	}
	if cfg.RateLimit.MaxRequests <= 0 {
		p.invalid("RATE_LIMIT_MAX_REQUESTS", errors.New("must be positive"))
	}
	if cfg.RateLimit.Window <= 0 {
		p.invalid("RATE_LIMIT_WINDOW", errors.New("must be positive"))
	}

	switch cfg.RateLimit.Backend {
	case BackendMemory:
	case BackendRedis:
		p.require("REDIS_URL", cfg.RateLimit.RedisURL)
	default:
		p.invalid("RATE_LIMIT_BACKEND", fmt.Errorf("unknown backend %q", cfg.RateLimit.Backend))
	}

	cfg.Contact = p.form(FormContact, "TO_EMAIL", "iCodeWith.ai Contact Form <contact@icodewith.ai>")
	cfg.Reminder = p.form(FormReminder, "ADMIN_EMAIL", "iCodeWith.ai <reminders@icodewith.ai>")

	switch cfg.EmailProvider {
	case ProviderResend:
		for _, f := range []FormCfg{cfg.Contact, cfg.Reminder} {
			p.require(formKey(f.Form, "RESEND_API_KEY"), f.ResendAPIKey)
		}
	case ProviderSMTP:
		cfg.SMTP = mailer.SMTPConfig{
			Host: p.required("SMTP_HOST"),
			Port: p.intVar("SMTP_PORT", 0),
			User: p.required("SMTP_USER"),
			Pass: p.required("SMTP_PASS"),
			SSL:  p.boolVar("SMTP_SSL", false),
		}
		if cfg.SMTP.Port <= 0 {
			p.invalid("SMTP_PORT", errors.New("must be a positive port number"))
		}
	default:
		p.invalid("EMAIL_PROVIDER", fmt.Errorf("unknown provider %q", cfg.EmailProvider))
	}

	if err := p.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MaxBodyBytes is MaxBodyKB in bytes.
func (c *Config) MaxBodyBytes() int64 { return int64(c.MaxBodyKB) << 10 }

// Composer builds the message composer for one form.
func (c *Config) Composer(f FormCfg) submission.Composer {
	return submission.Composer{From: f.FromAddr, To: f.Recipient, Location: c.Location}
}

func formKey(form Form, suffix string) string {
	return env.ToEnvKey(string(form)) + "_" + suffix
}

// parser accumulates problems so LoadConfig can report them together.
type parser struct {
	missing []string
	errs    []error
}

func (p *parser) required(k string) string {
	v := env.Env(k, "")
	p.require(k, v)
	return v
}

func (p *parser) require(k, v string) {
	if v == "" {
		p.missing = append(p.missing, k)
	}
}

func (p *parser) invalid(k string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s: %w", k, err))
}

func (p *parser) intVar(k string, d int) int {
	v, err := env.EnvInt(k, d)
	if err != nil {
		p.errs = append(p.errs, err)
	}
	return v
}

func (p *parser) boolVar(k string, d bool) bool {
	v, err := env.EnvBool(k, d)
	if err != nil {
		p.errs = append(p.errs, err)
	}
	return v
}

func (p *parser) durationVar(k string, d time.Duration) time.Duration {
	v, err := env.EnvDuration(k, d)
	if err != nil {
		p.errs = append(p.errs, err)
	}
	return v
}

func (p *parser) form(form Form, recipientKey, defaultFrom string) FormCfg {
	f := FormCfg{
		Form:         form,
		FromAddr:     env.Env(formKey(form, "FROM_EMAIL"), defaultFrom),
		Recipient:    p.required(formKey(form, recipientKey)),
		ResendAPIKey: env.Env(formKey(form, "RESEND_API_KEY"), ""),
	}
	if f.Recipient != "" && !submission.IsValidEmail(f.Recipient) {
		p.invalid(formKey(form, recipientKey), fmt.Errorf("%q is not an email address", f.Recipient))
	}
	return f
}

func (p *parser) err() error {
	errs := make([]error, 0, len(p.errs)+1)
	if len(p.missing) > 0 {
		errs = append(errs, fmt.Errorf("missing required environment variables: %s", strings.Join(p.missing, ", ")))
	}
	errs = append(errs, p.errs...)
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
