package config

import (
	"fmt"

	"github.com/rs/zerolog"
)

// LoggingConfig controls the global log level. Output format follows the
// APP_ENV environment variable (console in dev, JSON otherwise).
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `json:"level"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks that the level is known.
func (c LoggingConfig) Validate() error {
	if _, err := zerolog.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("unknown log level %q", c.Level)
	}
	return nil
}

// Apply sets the global zerolog level.
func (c LoggingConfig) Apply() {
	lvl, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
