package config

import "log/slog"

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	// Level is the minimum slog level emitted: debug, info, warn, error.
	Level slog.Level `env:"LEVEL" envDefault:"info"`
}
