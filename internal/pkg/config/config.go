// Package config reads service settings from a YAML file, a .env file and
// environment variables.
package config

import (
	"io"
	"time"
)

// Config is the read-only view of the settings the service consults.
//
// Missing keys read as the zero value; callers that need a fallback use
// SecondsOr and IntOr.
type Config interface {
	io.Closer

	GetBool(key string) bool
	GetString(key string) string
	GetInt(key string) int
	GetInt32(key string) int32
	GetFloat64(key string) float64

	// GetSecond reads an integer number of seconds, e.g. modules.otp.validity_seconds.
	GetSecond(key string) time.Duration

	// GetArray reads a YAML sequence or a comma-separated string. Elements are
	// trimmed and empty ones dropped, so "a, b," yields [a b].
	GetArray(key string) []string
}

// SecondsOr returns the duration at key, or def when it is unset or not positive.
func SecondsOr(c Config, key string, def time.Duration) time.Duration {
	if d := c.GetSecond(key); d > 0 {
		return d
	}
	return def
}

// IntOr returns the int at key, or def when it is unset or not positive.
func IntOr(c Config, key string, def int) int {
	if n := c.GetInt(key); n > 0 {
		return n
	}
	return def
}
