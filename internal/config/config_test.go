package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_DSN", "APP_TIMEZONE", "REMINDER_CONCURRENCY", "STOCK_DECREMENT_ONCE", "WEBHOOK_TIMEOUT"} {
		t.Setenv(k, "")
	}
	t.Setenv("PORT", "8080")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "* * * * *", cfg.Reminders.ReminderSchedule)
	assert.Equal(t, "0 * * * *", cfg.Reminders.MissedDoseSchedule)
	assert.False(t, cfg.Reminders.StockDecrementOnce)
	assert.Equal(t, 100, cfg.RateLimit.Burst)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("APP_TIMEZONE", "UTC")
	t.Setenv("REMINDER_CONCURRENCY", "8")
	t.Setenv("STOCK_DECREMENT_ONCE", "true")
	t.Setenv("WEBHOOK_TIMEOUT", "2s")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, 8, cfg.Reminders.Concurrency)
	assert.True(t, cfg.Reminders.StockDecrementOnce)
	assert.Equal(t, 2*time.Second, cfg.WebhookTimeout)
	assert.Equal(t, "json", cfg.Log.Format)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("APP_TIMEZONE", "Mars/Olympus_Mons")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("APP_TIMEZONE", "UTC")
	t.Setenv("REMINDER_CONCURRENCY", "0")
	_, err = Load()
	assert.Error(t, err)
}
