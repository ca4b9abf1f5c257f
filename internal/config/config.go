// Package config loads process configuration from LIFEDASH_-prefixed
// environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the configuration shared by the API service and the sync
// worker. Environment variables are parsed from the LIFEDASH_ prefix,
// e.g. LIFEDASH_DATABASE_URL, LIFEDASH_HTTP_PORT.
type Config struct {
	// DatabaseURL selects the driver by scheme: postgres:// / postgresql://
	// use pgx, anything else is treated as a sqlite file path.
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// TokenEncryptionKey is the operator secret the vault key is derived from.
	TokenEncryptionKey string `envconfig:"TOKEN_ENCRYPTION_KEY" required:"true"`

	// BackendSecret must match the X-Backend-Token request header.
	BackendSecret string `envconfig:"BACKEND_SECRET" required:"true"`

	// AllowedEmails is the comma-separated two-user allow-list.
	AllowedEmails []string `envconfig:"ALLOWED_EMAILS" required:"true"`

	// Google OAuth client.
	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID" required:"true"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET" required:"true"`
	GoogleRedirectURI  string `envconfig:"GOOGLE_REDIRECT_URI" required:"true"`

	// UserCalendars maps user email to a comma-free calendar id. Users
	// without an entry sync against "primary".
	UserCalendars map[string]string `envconfig:"USER_CALENDARS"`

	// DefaultTimezone is used when the calendar timezone lookup fails.
	DefaultTimezone string `envconfig:"DEFAULT_TIMEZONE" default:"America/Sao_Paulo"`

	// ICSFallbackURL, when set, is read instead of the Google API for users
	// without a stored OAuth token.
	ICSFallbackURL string `envconfig:"ICS_FALLBACK_URL"`

	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Worker cadence.
	OutboxIntervalSeconds int `envconfig:"OUTBOX_INTERVAL_SECONDS" default:"5"`
	PullIntervalSeconds   int `envconfig:"PULL_INTERVAL_SECONDS" default:"300"`
	OutboxBatchSize       int `envconfig:"OUTBOX_BATCH_SIZE" default:"20"`
}

// New parses the environment and validates required values. Missing required
// configuration is a startup error, not a runtime one.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("LIFEDASH", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	if len(c.AllowedEmails) == 0 || len(c.AllowedEmails) > 2 {
		return fmt.Errorf("ALLOWED_EMAILS must list one or two emails, got %d", len(c.AllowedEmails))
	}
	for i, e := range c.AllowedEmails {
		c.AllowedEmails[i] = strings.ToLower(strings.TrimSpace(e))
		if c.AllowedEmails[i] == "" {
			return fmt.Errorf("ALLOWED_EMAILS contains an empty entry")
		}
	}
	if c.OutboxBatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive, got %d", c.OutboxBatchSize)
	}
	return nil
}

// IsAllowed reports whether email is on the allow-list.
func (c *Config) IsAllowed(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range c.AllowedEmails {
		if e == email {
			return true
		}
	}
	return false
}

// PartnerOf returns the other allow-listed user, or "" for a single-user
// deployment.
func (c *Config) PartnerOf(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range c.AllowedEmails {
		if e != email {
			return e
		}
	}
	return ""
}

// CalendarFor returns the calendar id the user syncs against.
func (c *Config) CalendarFor(email string) string {
	if id, ok := c.UserCalendars[strings.ToLower(email)]; ok && id != "" {
		return id
	}
	return "primary"
}

// GetHTTPAddr returns the HTTP listen address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// IsPostgres reports whether DatabaseURL points at Postgres.
func (c *Config) IsPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") ||
		strings.HasPrefix(c.DatabaseURL, "postgresql://")
}
