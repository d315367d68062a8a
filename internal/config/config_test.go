package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "incident-service", cfg.App.Name)
	assert.Equal(t, 24*time.Hour, cfg.Escalation.DwellByLevel[1])
	assert.Equal(t, 48*time.Hour, cfg.Escalation.DwellByLevel[2])
	assert.Equal(t, 72*time.Hour, cfg.Escalation.DwellByLevel[3])
	assert.Equal(t, AgeSinceCreation, cfg.Escalation.AgeMode)
	assert.Equal(t, 3, cfg.Escalation.RecurrenceMinOccurs)
	assert.Equal(t, 30*24*time.Hour, cfg.Escalation.RecurrenceWindow())
	assert.Equal(t, 0, cfg.Assignment.MaxActiveByLevel[1])
	assert.Equal(t, 5*time.Minute, cfg.Sweep.Interval())
	assert.Equal(t, time.UTC, cfg.SLA.Location())
	assert.Equal(t, 256, cfg.Notification.QueueSize)
	assert.Equal(t, 5*time.Second, cfg.Notification.DeliveryTimeout())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ESCALATION_LEVEL1_DWELL_HOURS", "4")
	t.Setenv("ESCALATION_AGE_MODE", "SINCE_LAST_ESCALATION")
	t.Setenv("ESCALATION_RECURRENCE_WINDOW_DAYS", "0")
	t.Setenv("SWEEP_INTERVAL_SECONDS", "60")
	t.Setenv("SWEEP_LOCK_TTL_SECONDS", "0")
	t.Setenv("ASSIGNMENT_LEVEL2_MAX_ACTIVE", "7")
	t.Setenv("SENTRY_DSN", "https://key@sentry.example.com/1")
	t.Setenv("SENTRY_ENVIRONMENT", "staging")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4*time.Hour, cfg.Escalation.DwellByLevel[1])
	assert.Equal(t, AgeSinceLastEscalation, cfg.Escalation.AgeMode)
	assert.Equal(t, time.Duration(0), cfg.Escalation.RecurrenceWindow())
	assert.Equal(t, time.Minute, cfg.Sweep.Interval())
	assert.Equal(t, time.Minute, cfg.Sweep.LockTTL())
	assert.Equal(t, 7, cfg.Assignment.MaxActiveByLevel[2])
	assert.Equal(t, SentryConfig{DSN: "https://key@sentry.example.com/1", Environment: "staging"}, cfg.Sentry)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("age mode", func(t *testing.T) {
		t.Setenv("ESCALATION_AGE_MODE", "whenever")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("time zone", func(t *testing.T) {
		t.Setenv("SLA_TIMEZONE", "Mars/Olympus")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("redis db", func(t *testing.T) {
		t.Setenv("REDIS_DB", "zero")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestAddrAndTimeout(t *testing.T) {
	app := AppConfig{Host: "127.0.0.1", Port: "9000", RequestTimeoutSeconds: 0}
	assert.Equal(t, "127.0.0.1:9000", app.Addr())
	assert.Equal(t, time.Duration(0), app.RequestTimeout())
}
