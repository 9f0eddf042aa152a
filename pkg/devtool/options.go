package devtool

import (
	"log/slog"
	"time"
)

// Mode selects which directions a bridge synchronizes.
type Mode int

const (
	// ModeTwoWay forwards records and applies inspector commands.
	ModeTwoWay Mode = iota
	// ModeOneWay only forwards records.
	ModeOneWay
)

func (m Mode) String() string {
	if m == ModeOneWay {
		return "one-way"
	}
	return "two-way"
}

// ParseMode maps "one-way" and "two-way" to a Mode. Anything else is two-way.
func ParseMode(s string) Mode {
	if s == "one-way" {
		return ModeOneWay
	}
	return ModeTwoWay
}

// DefaultMaxAge is the number of forwarded records kept for replay.
const DefaultMaxAge = 50

type config struct {
	mode           Mode
	enabled        bool
	logger         *slog.Logger
	connectTimeout time.Duration
	instanceName   string
	maxAge         int
}

// Option configures a Bridge.
type Option func(*config)

// WithMode sets the synchronization mode.
func WithMode(mode Mode) Option {
	return func(c *config) {
		c.mode = mode
	}
}

// WithEnabled turns the bridge on or off. A disabled bridge ignores Attach,
// which is how production builds keep the inspector out.
func WithEnabled(enabled bool) Option {
	return func(c *config) {
		c.enabled = enabled
	}
}

// WithLogger configures a logger for bridge diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithConnectTimeout bounds Extension.Connect.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.connectTimeout = d
		}
	}
}

// WithInstanceName overrides the name shown by the inspector.
// By default the store name is used.
func WithInstanceName(name string) Option {
	return func(c *config) {
		c.instanceName = name
	}
}

// WithMaxAge sets how many forwarded records each store keeps for replay.
func WithMaxAge(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxAge = n
		}
	}
}
