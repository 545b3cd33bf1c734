package session

import (
	"image"
	"time"

	"github.com/teslashibe/go-pupil/pkg/tracking"
)

// FrameSource supplies video frames.
type FrameSource interface {
	// Frame returns the current frame.
	Frame() (image.Image, error)

	// Size returns the native frame width and height.
	Size() (w, h int)

	// Paused reports whether the source is paused.
	Paused() bool
}

// Sample is one sampling-loop record. Records are never modified once
// appended.
type Sample struct {
	SessionID     string  `json:"session_id"`
	Seq           int     `json:"seq"`
	PupilDiameter float64 `json:"pupil_diameter"` // Frame pixels, 2 dp
	BlinkProb     float64 `json:"blink_prob"`     // 3 dp
	Timecode      float64 `json:"timecode"`       // ms since the first sample, 3 dp
	Threshold     float64 `json:"threshold"`
}

// Observation is the result of one pipeline pass.
type Observation struct {
	Timestamp time.Time `json:"timestamp"`
	Timecode  float64   `json:"timecode"` // ms since tracking started
	PupilArea int       `json:"pupil_area"`
	BlinkProb float64   `json:"blink_prob"`
	CentroidX float64   `json:"centroid_x"`
	CentroidY float64   `json:"centroid_y"`
	Detected  bool      `json:"detected"`
	Sampled   bool      `json:"sampled"`
}

// Stats counts what the loops have done.
type Stats struct {
	Passes          int `json:"passes"`
	Samples         int `json:"samples"`
	SkippedTicks    int `json:"skipped_ticks"`
	Absences        int `json:"absences"`
	InferenceErrors int `json:"inference_errors"`
	FrameErrors     int `json:"frame_errors"`
	Discarded       int `json:"discarded"`
}

// SampleSink receives each sample after it is recorded.
type SampleSink interface {
	OnSample(Sample)
}

// TrackSink receives each committed pass and the ROI it produced.
type TrackSink interface {
	OnTrack(Observation, tracking.ROI)
}

// SampleFunc adapts a function to SampleSink.
type SampleFunc func(Sample)

// OnSample calls f.
func (f SampleFunc) OnSample(s Sample) { f(s) }

// TrackFunc adapts a function to TrackSink.
type TrackFunc func(Observation, tracking.ROI)

// OnTrack calls f.
func (f TrackFunc) OnTrack(o Observation, r tracking.ROI) { f(o, r) }
