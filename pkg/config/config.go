package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/boardwalk-dev/boardwalk/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Authorization engine configuration
	Authz AuthzConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// AuthzConfig holds authorization engine settings
type AuthzConfig struct {
	// RoleTablePath is the YAML role table loaded at startup.
	RoleTablePath string

	// WatchRoleTable enables fsnotify-driven hot reload of the role table.
	WatchRoleTable bool

	// CacheTTL bounds how long a revoked role may keep granting stale
	// access. Zero disables the in-memory cache.
	CacheTTL time.Duration

	// CacheSize is the max number of users in the in-memory cache.
	CacheSize int

	// RedisURL enables the shared Redis cache tier when non-empty.
	RedisURL string

	// EventBufferSize is the decision-event channel capacity.
	EventBufferSize int

	// AuditLogPath, when non-empty, appends decision events to a JSONL
	// file in addition to the structured log.
	AuditLogPath string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Authz:         loadAuthzConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("BOARDWALK_HOST", "0.0.0.0"),
		Port:            getEnv("BOARDWALK_PORT", "8080"),
		ReadTimeout:     getEnvDuration("BOARDWALK_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("BOARDWALK_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("BOARDWALK_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("BOARDWALK_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// loadAuthzConfig loads engine configuration from environment
func loadAuthzConfig() AuthzConfig {
	return AuthzConfig{
		RoleTablePath:   getEnv("BOARDWALK_ROLE_TABLE", "roles.yaml"),
		WatchRoleTable:  getEnvBool("BOARDWALK_WATCH_ROLE_TABLE", true),
		CacheTTL:        getEnvDuration("BOARDWALK_CACHE_TTL", 5*time.Minute),
		CacheSize:       getEnvInt("BOARDWALK_CACHE_SIZE", 4096),
		RedisURL:        getEnv("BOARDWALK_REDIS_URL", ""),
		EventBufferSize: getEnvInt("BOARDWALK_EVENT_BUFFER", 1024),
		AuditLogPath:    getEnv("BOARDWALK_AUDIT_LOG", ""),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLogLevel(getEnv("BOARDWALK_LOG_LEVEL", "INFO")),
		MetricsEnabled: getEnvBool("BOARDWALK_METRICS_ENABLED", true),
	}
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port must not be empty")
	}
	if c.Authz.RoleTablePath == "" {
		return fmt.Errorf("role table path must not be empty")
	}
	if c.Authz.CacheTTL < 0 {
		return fmt.Errorf("cache TTL must not be negative")
	}
	if c.Authz.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive")
	}
	if c.Authz.EventBufferSize <= 0 {
		return fmt.Errorf("event buffer size must be positive")
	}
	return nil
}

// getEnv returns an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
