// Package camera provides frame sources backed by OpenCV video capture.
package camera

import (
	"os"
	"strconv"
)

// Config holds capture settings.
type Config struct {
	Device int     `json:"device"` // Capture device index, used when File is empty
	File   string  `json:"file"`   // Video file path
	Width  int     `json:"width"`  // Requested frame width (devices only)
	Height int     `json:"height"` // Requested frame height (devices only)
	FPS    float64 `json:"fps"`    // Playback rate for files; 0 uses the file's own rate
	Loop   bool    `json:"loop"`   // Rewind files at the end instead of pausing
}

// Limits for requested capture sizes.
const (
	MinWidth  = 160
	MinHeight = 120
	MaxWidth  = 4096
	MaxHeight = 2160
	MaxFPS    = 240
)

// DefaultConfig returns the first capture device at 640x480.
func DefaultConfig() Config {
	return Config{
		Device: 0,
		Width:  640,
		Height: 480,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.File != "" {
		if _, err := os.Stat(c.File); err != nil {
			errors = append(errors, "file: "+err.Error())
		}
	} else if c.Device < 0 {
		errors = append(errors, "device must not be negative")
	}

	if c.Width != 0 && (c.Width < MinWidth || c.Width > MaxWidth) {
		errors = append(errors, "width must be 0 (native) or between 160 and 4096")
	}
	if c.Height != 0 && (c.Height < MinHeight || c.Height > MaxHeight) {
		errors = append(errors, "height must be 0 (native) or between 120 and 2160")
	}
	if c.FPS < 0 || c.FPS > MaxFPS {
		errors = append(errors, "fps must be between 0 and 240")
	}

	return errors
}

// Source describes where frames come from, for logs.
func (c *Config) Source() string {
	if c.File != "" {
		return c.File
	}
	return "device " + strconv.Itoa(c.Device)
}
