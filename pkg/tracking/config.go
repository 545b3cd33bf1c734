// Package tracking keeps the region of interest centred on the pupil.
//
// Each detected centroid pulls the ROI towards the pupil. The pull is damped
// twice: first by the blink probability (a closing eyelid makes the model's
// centroid unreliable), then by a fixed-ratio exponential smoothing pass
// that removes frame-to-frame jitter.
package tracking

import (
	"errors"
	"fmt"
)

// Config holds the tunable parameters of the tracking controller
type Config struct {
	// ModelResolution is the side of the square model input grid.
	ModelResolution int

	// Smoothing is the exponential smoothing factor (0-1, higher = more new data).
	Smoothing float64
}

// DefaultConfig returns the configuration used for live tracking
func DefaultConfig() Config {
	return Config{
		ModelResolution: 128,
		Smoothing:       0.8, // 80% new, 20% old
	}
}

// SlowConfig trades responsiveness for a steadier ROI
func SlowConfig() Config {
	cfg := DefaultConfig()
	cfg.Smoothing = 0.5
	return cfg
}

// AggressiveConfig follows fast eye movements closely
func AggressiveConfig() Config {
	cfg := DefaultConfig()
	cfg.Smoothing = 0.95
	return cfg
}

// Validate checks the configuration is usable
func (c Config) Validate() error {
	if c.ModelResolution <= 0 {
		return fmt.Errorf("tracking: model resolution must be positive, got %d", c.ModelResolution)
	}
	if c.Smoothing <= 0 || c.Smoothing > 1 {
		return errors.New("tracking: smoothing must be in (0, 1]")
	}
	return nil
}
