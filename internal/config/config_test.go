package config

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("SQLITE_PATH", "test.db")
	t.Setenv("JWT_SECRET", "jwt-secret")
	t.Setenv("ID_TOKEN_SECRET", "id-secret")
}

func TestLoadFromDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10*time.Minute, cfg.OnHoldTTL)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, "accepted", cfg.OutOfSlotOverlap)
	assert.Equal(t, 60, cfg.RateLimit.Capacity)
	assert.True(t, cfg.Cache.Methods["GET"])
	assert.Empty(t, cfg.Redis.Addr)

	iso, err := cfg.Isolation()
	require.NoError(t, err)
	assert.Equal(t, sql.LevelDefault, iso)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ON_HOLD_TTL", "90s")
	t.Setenv("DB_ISOLATION", "serializable")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("AGENCY_ENDPOINTS", "ica=http://ica.local/hook, mom=http://mom.local")

	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.OnHoldTTL)
	assert.Equal(t, 5, cfg.RateLimit.Capacity)
	assert.Equal(t, 1, cfg.RateLimit.RefillTokens)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, 10*time.Minute, cfg.RateLimit.TTL)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)

	iso, err := cfg.Isolation()
	require.NoError(t, err)
	assert.Equal(t, sql.LevelSerializable, iso)

	agencies, err := cfg.Agencies()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"ica": "http://ica.local/hook",
		"mom": "http://mom.local",
	}, agencies)
}

func TestLoadFromMissingRequired(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_HOST", "db")

	_, err := LoadFrom(viper.New())
	require.Error(t, err)
	for _, key := range []string{"DB_USER", "DB_NAME", "JWT_SECRET", "ID_TOKEN_SECRET"} {
		assert.True(t, strings.Contains(err.Error(), key), "missing %s in %q", key, err)
	}
}

func TestLoadFromRejectsBadValues(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_ISOLATION", "chaos")
	_, err := LoadFrom(viper.New())
	assert.ErrorContains(t, err, "DB_ISOLATION")

	t.Setenv("DB_ISOLATION", "")
	t.Setenv("AGENCY_ENDPOINTS", "ica")
	_, err = LoadFrom(viper.New())
	assert.ErrorContains(t, err, "AGENCY_ENDPOINTS")
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger("production", "debug")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(-1))

	log, err = NewLogger("development", "nonsense")
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(-1))
}

func TestNewRedisClientUnconfigured(t *testing.T) {
	assert.Nil(t, NewRedisClient(RedisConfig{}))
}
