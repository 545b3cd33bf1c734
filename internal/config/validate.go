package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/teslashibe/go-pupil/pkg/tracking"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.Session.Validate(); err != nil {
		return err
	}
	if _, err := c.TrackingConfig(); err != nil {
		return err
	}
	if c.Schedule.RefreshHz <= 0 {
		return errors.New("schedule.refresh_hz must be positive")
	}
	if c.Schedule.SampleIntervalMS <= 0 {
		return errors.New("schedule.sample_interval_ms must be positive")
	}
	if c.Camera.Device < 0 {
		return errors.New("camera.device must not be negative")
	}
	if c.Dashboard.Enabled && strings.TrimSpace(c.Dashboard.Addr) == "" {
		return errors.New("dashboard.addr must be set when the dashboard is enabled")
	}
	if c.MQTT.Enabled {
		if strings.TrimSpace(c.MQTT.Broker) == "" {
			return errors.New("mqtt.broker must be set when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
		}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

// Validate checks a session config on its own.
func (s Session) Validate() error {
	if s.Threshold < 0 || s.Threshold > 1 {
		return errors.New("session.threshold must be between 0 and 1")
	}
	if s.ROISize <= 0 {
		return fmt.Errorf("session.roi_size must be positive, got %d", s.ROISize)
	}
	if strings.TrimSpace(s.Model) == "" {
		return errors.New("session.model must be set")
	}
	return nil
}

// TrackingConfig resolves the preset and overrides into a controller config.
func (c *Config) TrackingConfig() (tracking.Config, error) {
	var tc tracking.Config
	switch c.Tracking.Preset {
	case "", "default":
		tc = tracking.DefaultConfig()
	case "slow":
		tc = tracking.SlowConfig()
	case "aggressive":
		tc = tracking.AggressiveConfig()
	default:
		return tc, fmt.Errorf("tracking.preset %q is not one of default, slow, aggressive", c.Tracking.Preset)
	}
	if c.Tracking.Resolution > 0 {
		tc.ModelResolution = c.Tracking.Resolution
	}
	if c.Tracking.Smoothing > 0 {
		tc.Smoothing = c.Tracking.Smoothing
	}
	if err := tc.Validate(); err != nil {
		return tc, err
	}
	return tc, nil
}
