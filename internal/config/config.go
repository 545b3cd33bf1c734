// Package config loads go-pupil configuration from TOML with environment
// overrides.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Session is the per-session input. It is immutable once tracking starts.
type Session struct {
	Threshold float64 `toml:"threshold" json:"threshold"`   // Pupil map binarization threshold
	InitialX  float64 `toml:"initial_rx" json:"initial_rx"` // Initial ROI left edge
	InitialY  float64 `toml:"initial_ry" json:"initial_ry"` // Initial ROI top edge
	ROISize   int     `toml:"roi_size" json:"roi_size"`     // ROI side in frame pixels
	Model     string  `toml:"model" json:"model"`           // Model path or URL
}

// Tracking contains controller tuning.
type Tracking struct {
	Preset     string  `toml:"preset"`     // default, slow or aggressive
	Resolution int     `toml:"resolution"` // Model grid side
	Smoothing  float64 `toml:"smoothing"`  // Overrides the preset when > 0
}

// Schedule contains loop timing.
type Schedule struct {
	RefreshHz        float64 `toml:"refresh_hz"`
	SampleIntervalMS int     `toml:"sample_interval_ms"`
}

// Camera contains frame source settings.
type Camera struct {
	Device int    `toml:"device"`
	File   string `toml:"file"` // Video file; takes precedence over Device
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Loop   bool   `toml:"loop"` // Rewind files at the end instead of pausing
}

// Dashboard contains the live dashboard settings.
type Dashboard struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// MQTT contains the sample publisher settings.
type MQTT struct {
	Enabled     bool   `toml:"enabled"`
	Broker      string `toml:"broker"`
	ClientID    string `toml:"client_id"`
	TopicPrefix string `toml:"topic_prefix"`
	QoS         int    `toml:"qos"`
}

// Logging contains log output settings.
type Logging struct {
	Level string `toml:"level"`
}

// Config encapsulates all configuration values for go-pupil.
type Config struct {
	Session   Session   `toml:"session"`
	Tracking  Tracking  `toml:"tracking"`
	Schedule  Schedule  `toml:"schedule"`
	Camera    Camera    `toml:"camera"`
	Dashboard Dashboard `toml:"dashboard"`
	MQTT      MQTT      `toml:"mqtt"`
	Logging   Logging   `toml:"logging"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Session: Session{
			Threshold: 0.5,
			ROISize:   128,
			Model:     "models/pupil.onnx",
		},
		Tracking: Tracking{
			Preset:     "default",
			Resolution: 128,
		},
		Schedule: Schedule{
			RefreshHz:        60,
			SampleIntervalMS: 100,
		},
		Camera: Camera{
			Width:  640,
			Height: 480,
		},
		Dashboard: Dashboard{
			Addr: ":8181",
		},
		MQTT: MQTT{
			Broker:      "tcp://localhost:1883",
			ClientID:    "go-pupil",
			TopicPrefix: "pupil",
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Load parses path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("open config: %w", err)
		default:
			defer file.Close()
			if err := toml.NewDecoder(file).DisallowUnknownFields().Decode(&cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse decodes TOML bytes over the defaults without environment overrides.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Sample returns the commented sample configuration.
func Sample() string {
	return sampleConfig
}

// RefreshInterval returns the tracking loop period.
func (s Schedule) RefreshInterval() time.Duration {
	return time.Duration(float64(time.Second) / s.RefreshHz)
}

// SampleInterval returns the sampling loop period.
func (s Schedule) SampleInterval() time.Duration {
	return time.Duration(s.SampleIntervalMS) * time.Millisecond
}
