package session

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-pupil/internal/log"
	"github.com/teslashibe/go-pupil/pkg/preprocess"
	"github.com/teslashibe/go-pupil/pkg/tracking"
)

// Options holds scheduler configuration.
type Options struct {
	// Loop timing
	RefreshInterval time.Duration
	SampleInterval  time.Duration

	Tracking tracking.Config
	Weights  preprocess.Weights

	// ID names the session in samples. Defaults to a random UUID.
	ID string

	// Clock returns the current time. Tests replace it.
	Clock func() time.Time

	Logger      *slog.Logger
	SampleSinks []SampleSink
	TrackSinks  []TrackSink
}

// Option is a functional option for configuring a session.
type Option func(*Options)

// DefaultOptions returns display-refresh tracking and 100 ms sampling.
func DefaultOptions() Options {
	return Options{
		RefreshInterval: time.Second / 60,
		SampleInterval:  100 * time.Millisecond,
		Tracking:        tracking.DefaultConfig(),
		Weights:         preprocess.DefaultWeights,
		Clock:           time.Now,
	}
}

// WithRefreshInterval sets the tracking loop period.
func WithRefreshInterval(d time.Duration) Option {
	return func(o *Options) { o.RefreshInterval = d }
}

// WithSampleInterval sets the sampling loop period.
func WithSampleInterval(d time.Duration) Option {
	return func(o *Options) { o.SampleInterval = d }
}

// WithTracking sets the controller config, including the model resolution.
func WithTracking(c tracking.Config) Option {
	return func(o *Options) { o.Tracking = c }
}

// WithWeights sets the channel weights used to build the model input.
func WithWeights(w preprocess.Weights) Option {
	return func(o *Options) { o.Weights = w }
}

// WithID sets the session id.
func WithID(id string) Option {
	return func(o *Options) { o.ID = id }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Clock = now }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithSampleSink registers a sample observer.
func WithSampleSink(s SampleSink) Option {
	return func(o *Options) { o.SampleSinks = append(o.SampleSinks, s) }
}

// WithTrackSink registers a pass observer.
func WithTrackSink(s TrackSink) Option {
	return func(o *Options) { o.TrackSinks = append(o.TrackSinks, s) }
}

func (o *Options) fill() {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Logger == nil {
		o.Logger = log.Component("session")
	}
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = time.Second / 60
	}
	if o.SampleInterval <= 0 {
		o.SampleInterval = 100 * time.Millisecond
	}
}
