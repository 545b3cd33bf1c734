package session

import "fmt"

// TuningParams holds the parameters that can be changed while tracking.
type TuningParams struct {
	Threshold float64 `json:"threshold"` // Pupil map binarization threshold
	Smoothing float64 `json:"smoothing"` // ROI exponential smoothing (0.5=steady, 0.95=responsive)
}

// Tuning returns the current tuning parameters.
func (s *Session) Tuning() TuningParams {
	return TuningParams{
		Threshold: s.ROI().Threshold,
		Smoothing: s.ctrl.Smoothing(),
	}
}

// SetTuning updates tuning parameters at runtime.
// Only non-zero values are applied.
func (s *Session) SetTuning(p TuningParams) error {
	if p.Smoothing < 0 || p.Smoothing > 1 {
		return fmt.Errorf("session: smoothing %v out of range (0, 1]", p.Smoothing)
	}
	if p.Threshold > 0 {
		if err := s.SetThreshold(p.Threshold); err != nil {
			return err
		}
	}
	if p.Smoothing > 0 {
		s.ctrl.SetSmoothing(p.Smoothing)
		s.logger.Info("smoothing changed", "smoothing", p.Smoothing)
	}
	return nil
}
