package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-pupil/internal/config"
	"github.com/teslashibe/go-pupil/pkg/session"
	"github.com/teslashibe/go-pupil/pkg/tracking"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func requireContains(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Fatalf("output missing %q:\n%s", want, out)
	}
}

func TestConfigSample(t *testing.T) {
	out, err := runCLI(t, "config", "sample")
	if err != nil {
		t.Fatalf("config sample: %v", err)
	}
	requireContains(t, out, "[session]")
	requireContains(t, out, "sample_interval_ms")
}

func TestConfigInitAndValidate(t *testing.T) {
	target := filepath.Join(t.TempDir(), "conf", "pupil.toml")

	out, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config exists without --overwrite")
	}
	if _, err := runCLI(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, err = runCLI(t, "--config", target, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "models/pupil.onnx")
	requireContains(t, out, "100ms")
}

func TestConfigValidate_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[session]\nthreshold = 1.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := runCLI(t, "--config", path, "config", "validate")
	if err == nil || !strings.Contains(err.Error(), "session.threshold") {
		t.Fatalf("expected threshold error, got %v", err)
	}
}

func TestAnalyze_RequiresImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none.toml")
	if _, err := runCLI(t, "--config", path, "analyze"); err == nil {
		t.Fatal("expected error without an image argument")
	}
}

func TestSummaryRows(t *testing.T) {
	samples := []session.Sample{
		{Seq: 0, PupilDiameter: 20},
		{Seq: 1, PupilDiameter: 0},
		{Seq: 2, PupilDiameter: 30},
	}
	rows := summaryRows("abc", session.Stopped, tracking.ROI{X: 10, Y: 20, Size: 128},
		session.Stats{Passes: 42, Absences: 1}, samples, 1500*time.Millisecond)

	got := map[string]string{}
	for _, r := range rows {
		got[r[0]] = r[1]
	}

	tests := []struct {
		key  string
		want string
	}{
		{"Session", "abc"},
		{"State", "stopped"},
		{"Elapsed", "1.5s"},
		{"Passes", "42"},
		{"Samples", "3"},
		{"Absences", "1"},
		{"Mean diameter", "25.00 px"},
	}
	for _, tc := range tests {
		if got[tc.key] != tc.want {
			t.Errorf("%s = %q, want %q", tc.key, got[tc.key], tc.want)
		}
	}
}

func TestSummaryRows_NoPupil(t *testing.T) {
	rows := summaryRows("x", session.Stopped, tracking.ROI{}, session.Stats{}, nil, 0)
	last := rows[len(rows)-1]
	if last[0] != "Mean diameter" || last[1] != "-" {
		t.Errorf("last row = %v", last)
	}
}

func TestSampleRows(t *testing.T) {
	samples := make([]session.Sample, 5)
	for i := range samples {
		samples[i] = session.Sample{Seq: i, Timecode: float64(i) * 100, PupilDiameter: 12.5, BlinkProb: 0.02}
	}

	rows := sampleRows(samples, 2)
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	want := []string{"4", "400.000", "12.50", "0.020"}
	for i, v := range want {
		if rows[1][i] != v {
			t.Errorf("column %d = %q, want %q", i, rows[1][i], v)
		}
	}

	if len(sampleRows(samples, 0)) != 5 {
		t.Error("limit 0 should keep all rows")
	}
}

func TestSessionFlags(t *testing.T) {
	changed := func(names ...string) func(string) bool {
		return func(name string) bool {
			for _, n := range names {
				if n == name {
					return true
				}
			}
			return false
		}
	}

	base := config.Default().Session
	f := sessionFlags{model: "other.onnx", threshold: 0.3, rx: 5, roiSize: 64}

	got, err := f.apply(base, changed("threshold", "rx"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Model != "other.onnx" || got.Threshold != 0.3 || got.InitialX != 5 {
		t.Errorf("got %+v", got)
	}
	if got.ROISize != base.ROISize {
		t.Errorf("roi size changed without the flag: %d", got.ROISize)
	}

	f.threshold = 2
	if _, err := f.apply(base, changed("threshold")); err == nil {
		t.Error("expected validation error for threshold 2")
	}
}
