package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardwalk-dev/boardwalk/pkg/observability"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "roles.yaml", cfg.Authz.RoleTablePath)
	assert.True(t, cfg.Authz.WatchRoleTable)
	assert.Equal(t, 5*time.Minute, cfg.Authz.CacheTTL)
	assert.Equal(t, 4096, cfg.Authz.CacheSize)
	assert.Empty(t, cfg.Authz.RedisURL)
	assert.Equal(t, 1024, cfg.Authz.EventBufferSize)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("BOARDWALK_PORT", "9090")
	t.Setenv("BOARDWALK_ROLE_TABLE", "/etc/boardwalk/roles.yaml")
	t.Setenv("BOARDWALK_WATCH_ROLE_TABLE", "false")
	t.Setenv("BOARDWALK_CACHE_TTL", "30s")
	t.Setenv("BOARDWALK_CACHE_SIZE", "128")
	t.Setenv("BOARDWALK_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("BOARDWALK_EVENT_BUFFER", "256")
	t.Setenv("BOARDWALK_LOG_LEVEL", "DEBUG")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "/etc/boardwalk/roles.yaml", cfg.Authz.RoleTablePath)
	assert.False(t, cfg.Authz.WatchRoleTable)
	assert.Equal(t, 30*time.Second, cfg.Authz.CacheTTL)
	assert.Equal(t, 128, cfg.Authz.CacheSize)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Authz.RedisURL)
	assert.Equal(t, 256, cfg.Authz.EventBufferSize)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
}

func TestLoadConfigIgnoresUnparseableValues(t *testing.T) {
	t.Setenv("BOARDWALK_CACHE_TTL", "soon")
	t.Setenv("BOARDWALK_CACHE_SIZE", "lots")
	t.Setenv("BOARDWALK_METRICS_ENABLED", "yep")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Authz.CacheTTL)
	assert.Equal(t, 4096, cfg.Authz.CacheSize)
	assert.True(t, cfg.Observability.MetricsEnabled)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Port: "8080"},
			Authz: AuthzConfig{
				RoleTablePath:   "roles.yaml",
				CacheTTL:        time.Minute,
				CacheSize:       16,
				EventBufferSize: 8,
			},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }},
		{"empty role table path", func(c *Config) { c.Authz.RoleTablePath = "" }},
		{"negative cache TTL", func(c *Config) { c.Authz.CacheTTL = -time.Second }},
		{"zero cache size", func(c *Config) { c.Authz.CacheSize = 0 }},
		{"zero event buffer", func(c *Config) { c.Authz.EventBufferSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
