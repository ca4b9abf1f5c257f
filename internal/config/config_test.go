package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresDatabaseURL(t *testing.T) {
	t.Setenv("LIFEDASH_TOKEN_ENCRYPTION_KEY", "k")
	t.Setenv("LIFEDASH_BACKEND_SECRET", "s")
	t.Setenv("LIFEDASH_ALLOWED_EMAILS", "a@example.com")
	t.Setenv("LIFEDASH_GOOGLE_CLIENT_ID", "id")
	t.Setenv("LIFEDASH_GOOGLE_CLIENT_SECRET", "secret")
	t.Setenv("LIFEDASH_GOOGLE_REDIRECT_URI", "http://localhost/cb")

	_, err := New()
	require.Error(t, err)
}

func TestNewParsesAndNormalizes(t *testing.T) {
	t.Setenv("LIFEDASH_DATABASE_URL", "postgres://u:p@localhost/db")
	t.Setenv("LIFEDASH_TOKEN_ENCRYPTION_KEY", "k")
	t.Setenv("LIFEDASH_BACKEND_SECRET", "s")
	t.Setenv("LIFEDASH_ALLOWED_EMAILS", "Ana@Example.com, bob@example.com")
	t.Setenv("LIFEDASH_GOOGLE_CLIENT_ID", "id")
	t.Setenv("LIFEDASH_GOOGLE_CLIENT_SECRET", "secret")
	t.Setenv("LIFEDASH_GOOGLE_REDIRECT_URI", "http://localhost/cb")
	t.Setenv("LIFEDASH_USER_CALENDARS", "ana@example.com:work@group.calendar.google.com")

	cfg, err := New()
	require.NoError(t, err)

	assert.True(t, cfg.IsPostgres())
	assert.True(t, cfg.IsAllowed("ana@example.com"))
	assert.True(t, cfg.IsAllowed("ANA@example.com"))
	assert.False(t, cfg.IsAllowed("eve@example.com"))
	assert.Equal(t, "bob@example.com", cfg.PartnerOf("ana@example.com"))
	assert.Equal(t, "ana@example.com", cfg.PartnerOf("bob@example.com"))
	assert.Equal(t, "work@group.calendar.google.com", cfg.CalendarFor("ana@example.com"))
	assert.Equal(t, "primary", cfg.CalendarFor("bob@example.com"))
	assert.Equal(t, "America/Sao_Paulo", cfg.DefaultTimezone)
	assert.Equal(t, ":8080", cfg.GetHTTPAddr())
}

func TestValidateRejectsThreeUsers(t *testing.T) {
	cfg := &Config{
		AllowedEmails:   []string{"a@x.com", "b@x.com", "c@x.com"},
		OutboxBatchSize: 10,
	}
	require.Error(t, cfg.Validate())
}
