package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/teslashibe/go-pupil/internal/config"
	"github.com/teslashibe/go-pupil/internal/log"
	"github.com/teslashibe/go-pupil/pkg/inference/onnx"
	"github.com/teslashibe/go-pupil/pkg/session"
	"github.com/teslashibe/go-pupil/pkg/tracking"
)

// sessionFlags override the [session] section from the command line.
type sessionFlags struct {
	model     string
	threshold float64
	rx, ry    float64
	roiSize   int
}

func (f sessionFlags) apply(s config.Session, changed func(string) bool) (config.Session, error) {
	if f.model != "" {
		s.Model = f.model
	}
	if changed("threshold") {
		s.Threshold = f.threshold
	}
	if changed("rx") {
		s.InitialX = f.rx
	}
	if changed("ry") {
		s.InitialY = f.ry
	}
	if changed("roi-size") {
		s.ROISize = f.roiSize
	}
	return s, s.Validate()
}

// newSession builds a session over src from cfg.
func newSession(cfg *config.Config, sc config.Session, src session.FrameSource, opts ...session.Option) (*session.Session, error) {
	tc, err := cfg.TrackingConfig()
	if err != nil {
		return nil, err
	}

	base := []session.Option{
		session.WithRefreshInterval(cfg.Schedule.RefreshInterval()),
		session.WithSampleInterval(cfg.Schedule.SampleInterval()),
		session.WithTracking(tc),
		session.WithLogger(log.Component("session")),
	}
	return session.New(sc, src, onnx.Loader(onnx.DefaultConfig()), append(base, opts...)...), nil
}

func summaryRows(id string, state session.State, roi tracking.ROI, stats session.Stats, samples []session.Sample, elapsed time.Duration) [][]string {
	rows := [][]string{
		{"Session", id},
		{"State", state.String()},
		{"Elapsed", elapsed.Round(time.Millisecond).String()},
		{"Final ROI", roi.String()},
		{"Passes", strconv.Itoa(stats.Passes)},
		{"Samples", strconv.Itoa(len(samples))},
		{"Skipped ticks", strconv.Itoa(stats.SkippedTicks)},
		{"Absences", strconv.Itoa(stats.Absences)},
		{"Inference errors", strconv.Itoa(stats.InferenceErrors)},
		{"Frame errors", strconv.Itoa(stats.FrameErrors)},
		{"Discarded", strconv.Itoa(stats.Discarded)},
	}

	var sum float64
	var n int
	for _, s := range samples {
		if s.PupilDiameter > 0 {
			sum += s.PupilDiameter
			n++
		}
	}
	mean := "-"
	if n > 0 {
		mean = fmt.Sprintf("%.2f px", sum/float64(n))
	}
	rows = append(rows, []string{"Mean diameter", mean})
	return rows
}

// sampleRows formats the last limit samples. limit <= 0 keeps all.
func sampleRows(samples []session.Sample, limit int) [][]string {
	if limit > 0 && len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}
	rows := make([][]string, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, []string{
			strconv.Itoa(s.Seq),
			strconv.FormatFloat(s.Timecode, 'f', 3, 64),
			strconv.FormatFloat(s.PupilDiameter, 'f', 2, 64),
			strconv.FormatFloat(s.BlinkProb, 'f', 3, 64),
		})
	}
	return rows
}

var sampleHeaders = []string{"Seq", "Timecode (ms)", "Diameter (px)", "Blink"}
var sampleAligns = []columnAlignment{alignRight, alignRight, alignRight, alignRight}

func writeSamples(path string, samples []session.Sample) error {
	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return fmt.Errorf("encode samples: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write samples: %w", err)
	}
	return nil
}
