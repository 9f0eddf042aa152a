package store

import (
	"log/slog"
	"time"
)

type config struct {
	name   string
	logger *slog.Logger
	clock  func() time.Time
}

// Option configures a Store.
type Option func(*config)

// WithName sets the display name used by the devtool bridge and logs.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithLogger configures a logger for dispatch diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source used for record timestamps.
func WithClock(clock func() time.Time) Option {
	return func(c *config) {
		if clock != nil {
			c.clock = clock
		}
	}
}
