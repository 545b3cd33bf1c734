package session

import (
	"context"
	"time"

	"github.com/teslashibe/go-pupil/pkg/diameter"
	"github.com/teslashibe/go-pupil/pkg/mask"
	"github.com/teslashibe/go-pupil/pkg/tracking"
)

// trackLoop runs a pass every refresh tick unless the source is paused, a
// pass is already running or a sample pass is waiting.
func (s *Session) trackLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if s.src.Paused() || s.samplePending.Load() {
				s.skip()
				continue
			}
			select {
			case s.token <- struct{}{}:
			default:
				s.skip()
				continue
			}
			s.runPass(ctx, false)
			<-s.token
		}
	}
}

// sampleLoop runs a recorded pass every sample tick, waiting for any pass
// already running.
func (s *Session) sampleLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			s.samplePending.Store(true)
			select {
			case s.token <- struct{}{}:
				s.samplePending.Store(false)
			case <-ctx.Done():
				s.samplePending.Store(false)
				return
			}
			s.runPass(ctx, true)
			<-s.token
		}
	}
}

func (s *Session) skip() {
	s.mu.Lock()
	s.stats.SkippedTicks++
	s.mu.Unlock()
}

// runPass is one pipeline pass: read the ROI, preprocess, infer, analyze,
// then commit. The caller holds the token.
func (s *Session) runPass(ctx context.Context, sampled bool) {
	s.mu.Lock()
	roi := s.roi
	s.mu.Unlock()

	now := s.opts.Clock()
	obs := Observation{
		Timestamp: now,
		Timecode:  millis(now.Sub(s.start)),
		Sampled:   sampled,
	}

	var frameErr, inferErr error
	frame, err := s.src.Frame()
	if err != nil {
		frameErr = err
	} else {
		tile := s.pre.Tile(frame, roi)
		out, err := s.adapter.Infer(ctx, tile)
		switch {
		case ctx.Err() != nil:
			s.mu.Lock()
			s.stats.Discarded++
			s.mu.Unlock()
			return
		case err != nil:
			inferErr = err
		default:
			r := mask.Analyze(out.Pupil, roi.Threshold)
			obs.PupilArea = r.Area
			obs.BlinkProb = out.Blink
			obs.CentroidX = r.Centroid.X
			obs.CentroidY = r.Centroid.Y
			obs.Detected = r.Detected
		}
	}

	w, h := s.src.Size()
	s.commit(ctx, roi, obs, w, h, frameErr, inferErr)
}

// commit applies a pass result if the session is still tracking. The ROI
// is written at most once and sinks are notified after the lock is
// released.
func (s *Session) commit(ctx context.Context, roi tracking.ROI, obs Observation, frameW, frameH int, frameErr, inferErr error) {
	s.mu.Lock()
	if s.state != Tracking || ctx.Err() != nil {
		s.stats.Discarded++
		s.mu.Unlock()
		return
	}

	s.stats.Passes++
	var errCount int
	switch {
	case frameErr != nil:
		s.stats.FrameErrors++
		errCount = s.stats.FrameErrors
	case inferErr != nil:
		s.stats.InferenceErrors++
		errCount = s.stats.InferenceErrors
	}

	if obs.Detected {
		centroid := mask.Point{X: obs.CentroidX, Y: obs.CentroidY}
		next := s.ctrl.Update(roi, centroid, obs.BlinkProb, frameW, frameH)
		next.Threshold = s.roi.Threshold
		s.roi = next
	} else {
		s.stats.Absences++
	}
	current := s.roi

	var sample Sample
	if obs.Sampled {
		sample = s.record(roi, obs)
	}
	s.mu.Unlock()

	if errCount == 1 || errCount%100 == 0 {
		if frameErr != nil {
			s.logger.Warn("frame read failed", "error", frameErr, "count", errCount)
		}
		if inferErr != nil {
			s.logger.Warn("inference failed", "error", inferErr, "count", errCount)
		}
	}

	for _, sink := range s.opts.TrackSinks {
		sink.OnTrack(obs, current)
	}
	if obs.Sampled {
		for _, sink := range s.opts.SampleSinks {
			sink.OnSample(sample)
		}
	}
}

// record appends a sample. The first sample's timecode becomes the origin.
// Must be called with s.mu held.
func (s *Session) record(roi tracking.ROI, obs Observation) Sample {
	if !s.hasOrigin {
		s.origin = obs.Timecode
		s.hasOrigin = true
	}
	tc := diameter.Round(obs.Timecode-s.origin, 3)
	if tc < s.lastTC {
		tc = s.lastTC
	}
	s.lastTC = tc

	var d float64
	if obs.Detected {
		d = diameter.Round(diameter.Estimate(obs.PupilArea, roi.Size, s.pre.Resolution()), 2)
	}

	sample := Sample{
		SessionID:     s.opts.ID,
		Seq:           len(s.samples),
		PupilDiameter: d,
		BlinkProb:     diameter.Round(obs.BlinkProb, 3),
		Timecode:      tc,
		Threshold:     roi.Threshold,
	}
	s.samples = append(s.samples, sample)
	s.stats.Samples++
	return sample
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
