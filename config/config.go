package config

// EnvPrefix is prepended to every environment variable read by this package.
// Bootstrap passes it to env.ParseWithOptions so the structs below declare
// names without it (e.g. REMOTE_API_BASE_URL reads FLOWPULSE_REMOTE_API_BASE_URL).
const EnvPrefix = "FLOWPULSE_"

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - remote.go: remote automation service connection and auth
//   - tracker.go: polling cadence, retry and circuit breaker tuning
//   - dedupe.go: Redis-backed trigger deduplication
//   - observability.go: metrics emission
type AppConfig struct {
	// Logging configuration
	Logging LoggingConfig `envPrefix:"LOG_"`

	// Remote automation service configuration
	Remote RemoteConfig `envPrefix:"REMOTE_"`

	// Execution tracking configuration
	Tracker TrackerConfig `envPrefix:"TRACKER_"`

	// Trigger deduplication configuration
	Dedupe DedupeConfig `envPrefix:"DEDUPE_"`

	// Observability configuration
	Observability ObservabilityConfig `envPrefix:"OBSERVABILITY_"`
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Remote.Sanitize()
	c.Tracker.Sanitize()
	c.Dedupe.Sanitize()
	c.Observability.Sanitize()
}
