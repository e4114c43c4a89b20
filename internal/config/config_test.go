package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "memory", cfg.RateLimitBackend)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.False(t, cfg.IsProduction())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("DB_DRIVER", "pgx")
	t.Setenv("ACCESS_TTL", "1h")
	t.Setenv("RATE_LIMIT_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, "pgx", cfg.DBDriver)
	assert.Equal(t, time.Hour, cfg.AccessTTL)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestParseRejects(t *testing.T) {
	cases := map[string]map[string]string{
		"redis without addr": {"RATE_LIMIT_BACKEND": "redis"},
		"unknown backend":    {"RATE_LIMIT_BACKEND": "memcached"},
		"zero rate":          {"RATE_LIMIT_PER_MIN": "0"},
		"bad duration":       {"ACCESS_TTL": "soon"},
		"prod dev secrets":   {"APP_ENV": "production"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := Parse()
			assert.Error(t, err)
		})
	}
}

func TestLocationUnknown(t *testing.T) {
	_, err := App{Timezone: "Mars/Olympus_Mons"}.Location()
	assert.Error(t, err)
}
