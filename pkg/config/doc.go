// Package config loads application configuration from BOARDWALK_* environment
// variables with sensible defaults and validates it at startup.
package config
