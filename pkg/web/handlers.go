package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-pupil/pkg/hub"
	"github.com/teslashibe/go-pupil/pkg/session"
	"github.com/teslashibe/go-pupil/pkg/tracking"
)

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	SessionID string               `json:"session_id"`
	State     session.State        `json:"state"`
	ROI       tracking.ROI         `json:"roi"`
	Stats     session.Stats        `json:"stats"`
	Tuning    session.TuningParams `json:"tuning"`
	Samples   int                  `json:"samples"`
	Clients   map[string]int       `json:"clients"`
}

// ThresholdRequest is the body of POST /api/threshold.
type ThresholdRequest struct {
	Threshold *float64 `json:"threshold"`
}

func noSession(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": "no session attached",
	})
}

// handleStatus returns the session's current state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	ctrl := s.controller()
	if ctrl == nil {
		return noSession(c)
	}
	return c.JSON(StatusResponse{
		SessionID: ctrl.ID(),
		State:     ctrl.State(),
		ROI:       ctrl.ROI(),
		Stats:     ctrl.Stats(),
		Tuning:    ctrl.Tuning(),
		Samples:   len(ctrl.Samples()),
		Clients: map[string]int{
			"samples": s.sampleHub.ClientCount(),
			"track":   s.trackHub.ClientCount(),
		},
	})
}

// handleSamples returns recorded samples, optionally from ?since=<seq>
func (s *Server) handleSamples(c *fiber.Ctx) error {
	ctrl := s.controller()
	if ctrl == nil {
		return noSession(c)
	}
	since := c.QueryInt("since", 0)
	if since < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "since must not be negative",
		})
	}
	samples := ctrl.Samples()
	if since > len(samples) {
		since = len(samples)
	}
	return c.JSON(samples[since:])
}

// handleROI returns the current region of interest
func (s *Server) handleROI(c *fiber.Ctx) error {
	ctrl := s.controller()
	if ctrl == nil {
		return noSession(c)
	}
	return c.JSON(ctrl.ROI())
}

// handleThreshold changes the binarization threshold
func (s *Server) handleThreshold(c *fiber.Ctx) error {
	ctrl := s.controller()
	if ctrl == nil {
		return noSession(c)
	}

	var req ThresholdRequest
	if err := c.BodyParser(&req); err != nil || req.Threshold == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "body must be {\"threshold\": <0-1>}",
		})
	}
	if err := ctrl.SetThreshold(*req.Threshold); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"threshold": *req.Threshold})
}

// handleGetTuning returns the runtime tuning parameters
func (s *Server) handleGetTuning(c *fiber.Ctx) error {
	ctrl := s.controller()
	if ctrl == nil {
		return noSession(c)
	}
	return c.JSON(ctrl.Tuning())
}

// handleSetTuning applies non-zero tuning parameters
func (s *Server) handleSetTuning(c *fiber.Ctx) error {
	ctrl := s.controller()
	if ctrl == nil {
		return noSession(c)
	}

	var req session.TuningParams
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if err := ctrl.SetTuning(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(ctrl.Tuning())
}

// handleStop ends the session
func (s *Server) handleStop(c *fiber.Ctx) error {
	ctrl := s.controller()
	if ctrl == nil {
		return noSession(c)
	}

	samples := ctrl.Stop()
	s.logger.Info("session stopped from dashboard", "samples", len(samples))
	if s.OnStop != nil {
		s.OnStop()
	}
	return c.JSON(fiber.Map{
		"session_id": ctrl.ID(),
		"state":      ctrl.State(),
		"samples":    len(samples),
	})
}

// handleSamplesWS joins the live stream first, then sends the recorded
// samples ahead of it. A sample recorded in between is queued on the live
// side, and may also be in the backlog; clients dedupe on seq.
func (s *Server) handleSamplesWS(c *websocket.Conn) {
	client := hub.NewClient(s.sampleHub, c)

	var backlog []hub.Message
	if ctrl := s.controller(); ctrl != nil {
		for _, smp := range ctrl.Samples() {
			msg, err := hub.NewMessage(hub.KindSample, smp)
			if err != nil {
				s.logger.Warn("encode sample", "seq", smp.Seq, "error", err)
				continue
			}
			backlog = append(backlog, msg)
		}
	}
	client.Run(backlog...)
}

// handleTrackWS streams per-pass tracking updates.
func (s *Server) handleTrackWS(c *websocket.Conn) {
	hub.NewClient(s.trackHub, c).Run()
}
