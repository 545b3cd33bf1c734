// Package session runs a pupil tracking session.
//
// A Session owns the ROI, the model adapter and the recorded samples. Once
// started it drives two loops over the same pipeline pass:
//
//   - the tracking loop ticks at display refresh rate and keeps the ROI on
//     the pupil; a tick that finds a pass already running is skipped
//   - the sampling loop ticks at a fixed interval and records a Sample;
//     a tick that finds a pass running waits for it, and tracking ticks
//     are skipped until the sample pass has the token
//
// At most one pass, and so at most one model call, runs at a time.
//
// Example usage:
//
//	s := session.New(cfg.Session, cam, onnx.Load,
//	    session.WithSampleInterval(100*time.Millisecond))
//	if err := s.Setup(ctx); err != nil {
//	    return err
//	}
//	if err := s.Start(ctx); err != nil {
//	    return err
//	}
//	...
//	samples := s.Stop()
//	s.Close()
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-pupil/internal/config"
	"github.com/teslashibe/go-pupil/pkg/inference"
	"github.com/teslashibe/go-pupil/pkg/mask"
	"github.com/teslashibe/go-pupil/pkg/preprocess"
	"github.com/teslashibe/go-pupil/pkg/tracking"
)

// ErrSetupFailed is returned by Setup when the model cannot be loaded or
// warmed up.
var ErrSetupFailed = inference.ErrSetupFailed

// Session is one tracking session.
type Session struct {
	cfg    config.Session
	src    FrameSource
	loader inference.Loader
	opts   Options
	logger *slog.Logger

	adapter *inference.Adapter
	pre     *preprocess.Preprocessor // Only used while holding token
	ctrl    *tracking.Controller

	token         chan struct{} // Single-flight: one pipeline pass at a time
	samplePending atomic.Bool   // A sample tick is waiting for the token

	mu        sync.Mutex
	state     State
	roi       tracking.ROI
	samples   []Sample
	origin    float64
	hasOrigin bool
	lastTC    float64
	start     time.Time
	stats     Stats

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an idle session. cfg is copied and not changed afterwards.
func New(cfg config.Session, src FrameSource, loader inference.Loader, opts ...Option) *Session {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.fill()

	res := o.Tracking.ModelResolution
	logger := o.Logger.With("session", o.ID)

	return &Session{
		cfg:    cfg,
		src:    src,
		loader: loader,
		opts:   o,
		logger: logger,
		adapter: inference.NewAdapter(
			inference.WithResolution(res),
			inference.WithLogger(logger),
		),
		pre:   preprocess.New(res, o.Weights),
		ctrl:  tracking.NewController(o.Tracking),
		token: make(chan struct{}, 1),
		roi: tracking.ROI{
			X:         cfg.InitialX,
			Y:         cfg.InitialY,
			Size:      cfg.ROISize,
			Threshold: cfg.Threshold,
		},
	}
}

// ID returns the session id carried by every sample.
func (s *Session) ID() string {
	return s.opts.ID
}

// Config returns the session config.
func (s *Session) Config() config.Session {
	return s.cfg
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ROI returns the current region of interest.
func (s *Session) ROI() tracking.ROI {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roi
}

// Samples returns a copy of the samples recorded so far.
func (s *Session) Samples() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

// Stats returns loop counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// SetThreshold changes the binarization threshold. It applies from the
// next pass.
func (s *Session) SetThreshold(t float64) error {
	if t < 0 || t > 1 {
		return fmt.Errorf("session: threshold %v out of range [0, 1]", t)
	}
	s.mu.Lock()
	s.roi.Threshold = t
	s.mu.Unlock()
	s.logger.Info("threshold changed", "threshold", t)
	return nil
}

// Setup loads the model and runs one warm-up pass on a blank tile. On
// failure the session returns to Idle and the error matches
// ErrSetupFailed. Setup is not retried.
func (s *Session) Setup(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Idle {
		st := s.state
		s.mu.Unlock()
		return invalid("set up", st)
	}
	s.state = Loading
	s.mu.Unlock()

	start := time.Now()
	err := s.adapter.Load(ctx, s.loader, s.cfg.Model)
	if err == nil {
		res := s.adapter.Resolution()
		if _, werr := s.adapter.Infer(ctx, mask.NewGrid(res, res)); werr != nil {
			s.adapter.Close()
			err = &inference.SetupError{Ref: s.cfg.Model, Err: fmt.Errorf("warm-up: %w", werr)}
		}
	}

	s.mu.Lock()
	stopped := s.state != Loading
	switch {
	case stopped:
	case err != nil:
		s.state = Idle
	default:
		s.state = Ready
	}
	s.mu.Unlock()

	if stopped {
		s.adapter.Close()
		return invalid("finish setup", Stopped)
	}
	if err != nil {
		s.logger.Error("setup failed", "model", s.cfg.Model, "error", err)
		return err
	}

	s.logger.Info("session ready", "model", s.cfg.Model, "elapsed", time.Since(start))
	return nil
}

// Start begins tracking. The initial ROI is clamped to the frame. The loops
// run until Stop is called or ctx ends.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Ready {
		return invalid("start", s.state)
	}

	w, h := s.src.Size()
	s.roi = s.roi.Clamp(w, h)
	s.start = s.opts.Clock()
	s.state = Tracking

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go s.trackLoop(loopCtx)
	go s.sampleLoop(loopCtx)

	s.logger.Info("tracking started",
		"roi", s.roi.String(),
		"frame", fmt.Sprintf("%dx%d", w, h),
		"refresh", s.opts.RefreshInterval,
		"sample_interval", s.opts.SampleInterval)
	return nil
}

// Stop ends the session. No tick fires after Stop returns, and a pass
// still waiting on the model is discarded when it completes. It returns a
// copy of the recorded samples and may be called more than once.
func (s *Session) Stop() []Sample {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	if s.state != Stopped {
		s.state = Stopped
		s.logger.Info("session stopped", "samples", len(s.samples), "passes", s.stats.Passes)
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	return s.Samples()
}

// Close stops the session if needed and releases the model. It waits for a
// model call that is still running.
func (s *Session) Close() error {
	s.Stop()
	return s.adapter.Close()
}

// Run sets up the session if it is idle, tracks until ctx ends, then stops
// and returns the samples.
func (s *Session) Run(ctx context.Context) ([]Sample, error) {
	if s.State() == Idle {
		if err := s.Setup(ctx); err != nil {
			return nil, err
		}
	}
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	<-ctx.Done()
	return s.Stop(), nil
}
