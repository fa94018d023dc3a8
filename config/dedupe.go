package config

import (
	"strings"
	"time"
)

// DedupeConfig controls Redis-backed trigger deduplication. When disabled,
// triggers with idempotency keys fire unconditionally.
type DedupeConfig struct {
	Enabled       bool          `env:"ENABLED"        envDefault:"false"`
	RedisAddr     string        `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int           `env:"REDIS_DB"       envDefault:"0"`
	TTL           time.Duration `env:"TTL"            envDefault:"24h"`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *DedupeConfig) Sanitize() {
	c.RedisAddr = strings.TrimSpace(c.RedisAddr)
	if c.RedisAddr == "" {
		c.Enabled = false
	}
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
}

// IsEnabled returns true when trigger deduplication is active after sanitisation.
func (c *DedupeConfig) IsEnabled() bool {
	return c.Enabled && c.RedisAddr != ""
}
