package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/mediwork")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, int32(10), cfg.DBMaxConns)
	assert.Equal(t, "audit.events", cfg.AuditQueue)
	assert.Equal(t, 256, cfg.AuditBuffer)
	assert.Equal(t, 20, cfg.RateLimitRPS)
	assert.Equal(t, 10*time.Minute, cfg.ReclaimInterval)
	assert.Equal(t, 2*time.Hour, cfg.LockGracePeriod)
	assert.Equal(t, 5*time.Minute, cfg.ClockSkewTolerance)
	assert.False(t, cfg.IsProduction())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/mediwork")
	t.Setenv("ENV", "production")
	t.Setenv("DB_MAX_CONNS", "25")
	t.Setenv("LOCK_GRACE_PERIOD", "90m")
	t.Setenv("TIMEZONE", "Europe/Paris")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, int32(25), cfg.DBMaxConns)
	assert.Equal(t, 90*time.Minute, cfg.LockGracePeriod)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", loc.String())
}

func TestFromEnvMalformed(t *testing.T) {
	t.Setenv("AUDIT_BUFFER", "lots")
	t.Setenv("RECLAIM_INTERVAL", "often")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUDIT_BUFFER")
	assert.Contains(t, err.Error(), "RECLAIM_INTERVAL")
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		DBMaxConns:      0,
		AuditBuffer:     1,
		ReclaimInterval: time.Minute,
		LockGracePeriod: -time.Hour,
		Timezone:        "Mars/Olympus",
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DSN")
	assert.Contains(t, err.Error(), "DB_MAX_CONNS")
	assert.Contains(t, err.Error(), "LOCK_GRACE_PERIOD")
	assert.Contains(t, err.Error(), "TIMEZONE")
}
