package inference

import (
	"log/slog"
)

// Config holds adapter configuration.
type Config struct {
	// Resolution is the side of the square model input and pupil map.
	Resolution int

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring the adapter.
type Option func(*Config)

// WithResolution sets the model grid resolution.
func WithResolution(res int) Option {
	return func(c *Config) { c.Resolution = res }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns defaults matching the bundled pupil model.
func DefaultConfig() *Config {
	return &Config{
		Resolution: 128,
		Logger:     slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
