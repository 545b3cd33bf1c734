package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variables that override the file.
const (
	EnvModel     = "PUPIL_MODEL"
	EnvThreshold = "PUPIL_THRESHOLD"
	EnvLogLevel  = "PUPIL_LOG_LEVEL"
	EnvBroker    = "PUPIL_MQTT_BROKER"
)

// Getenv returns the value of key, or def when unset or empty.
func Getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (c *Config) applyEnv() error {
	c.Session.Model = Getenv(EnvModel, c.Session.Model)
	c.Logging.Level = Getenv(EnvLogLevel, c.Logging.Level)
	c.MQTT.Broker = Getenv(EnvBroker, c.MQTT.Broker)

	if v := os.Getenv(EnvThreshold); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvThreshold, err)
		}
		c.Session.Threshold = t
	}
	return nil
}
