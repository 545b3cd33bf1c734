package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestSample_ParsesToDefaults(t *testing.T) {
	cfg, err := Parse([]byte(Sample()))
	if err != nil {
		t.Fatalf("sample config: %v", err)
	}
	def := Default()
	if cfg.Session != def.Session {
		t.Errorf("session = %+v, want %+v", cfg.Session, def.Session)
	}
	if cfg.Schedule != def.Schedule {
		t.Errorf("schedule = %+v, want %+v", cfg.Schedule, def.Schedule)
	}
	if cfg.MQTT != def.MQTT {
		t.Errorf("mqtt = %+v, want %+v", cfg.MQTT, def.MQTT)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv(EnvModel, "")
	t.Setenv(EnvThreshold, "")
	t.Setenv(EnvLogLevel, "")

	path := filepath.Join(t.TempDir(), "pupil.toml")
	data := `
[session]
threshold = 0.35
initial_rx = 200
initial_ry = 120
roi_size = 160
model = "https://example.com/pupil.onnx"

[tracking]
preset = "slow"

[schedule]
sample_interval_ms = 250
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Session{Threshold: 0.35, InitialX: 200, InitialY: 120, ROISize: 160, Model: "https://example.com/pupil.onnx"}
	if cfg.Session != want {
		t.Errorf("session = %+v, want %+v", cfg.Session, want)
	}
	if cfg.Schedule.SampleInterval() != 250*time.Millisecond {
		t.Errorf("sample interval = %v", cfg.Schedule.SampleInterval())
	}
	if cfg.Schedule.RefreshHz != 60 {
		t.Errorf("unset keys should keep defaults, refresh_hz = %v", cfg.Schedule.RefreshHz)
	}
	tc, err := cfg.TrackingConfig()
	if err != nil {
		t.Fatal(err)
	}
	if tc.Smoothing != 0.5 {
		t.Errorf("slow preset smoothing = %v", tc.Smoothing)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.Session.ROISize != 128 {
		t.Errorf("roi_size = %d", cfg.Session.ROISize)
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pupil.toml")
	if err := os.WriteFile(path, []byte("[session]\nthreshhold = 0.4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for misspelled key")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvModel, "/opt/models/v2.onnx")
	t.Setenv(EnvThreshold, "0.65")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.Model != "/opt/models/v2.onnx" {
		t.Errorf("model = %q", cfg.Session.Model)
	}
	if cfg.Session.Threshold != 0.65 {
		t.Errorf("threshold = %v", cfg.Session.Threshold)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
}

func TestLoad_BadEnvThreshold(t *testing.T) {
	t.Setenv(EnvThreshold, "half")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), EnvThreshold) {
		t.Errorf("Expected %s parse error, got %v", EnvThreshold, err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"threshold above one", func(c *Config) { c.Session.Threshold = 1.5 }, "session.threshold"},
		{"zero roi", func(c *Config) { c.Session.ROISize = 0 }, "session.roi_size"},
		{"no model", func(c *Config) { c.Session.Model = " " }, "session.model"},
		{"unknown preset", func(c *Config) { c.Tracking.Preset = "jumpy" }, "tracking.preset"},
		{"smoothing above one", func(c *Config) { c.Tracking.Smoothing = 2 }, "smoothing"},
		{"zero refresh", func(c *Config) { c.Schedule.RefreshHz = 0 }, "refresh_hz"},
		{"zero sample interval", func(c *Config) { c.Schedule.SampleIntervalMS = 0 }, "sample_interval_ms"},
		{"mqtt without broker", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.Broker = "" }, "mqtt.broker"},
		{"bad qos", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestGetenv(t *testing.T) {
	t.Setenv("PUPIL_TEST_VAR", "")
	if got := Getenv("PUPIL_TEST_VAR", "fallback"); got != "fallback" {
		t.Errorf("got %q", got)
	}
	t.Setenv("PUPIL_TEST_VAR", "set")
	if got := Getenv("PUPIL_TEST_VAR", "fallback"); got != "set" {
		t.Errorf("got %q", got)
	}
}
