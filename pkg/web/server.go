// Package web serves the live pupillometry dashboard API.
package web

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-pupil/pkg/hub"
	"github.com/teslashibe/go-pupil/pkg/session"
	"github.com/teslashibe/go-pupil/pkg/tracking"
)

// Controller is the part of a session the dashboard reads and drives.
// *session.Session implements it.
type Controller interface {
	ID() string
	State() session.State
	ROI() tracking.ROI
	Samples() []session.Sample
	Stats() session.Stats
	Tuning() session.TuningParams
	SetTuning(session.TuningParams) error
	SetThreshold(float64) error
	Stop() []session.Sample
}

// TrackUpdate is broadcast on /ws/track for every committed pass.
type TrackUpdate struct {
	Observation session.Observation `json:"observation"`
	ROI         tracking.ROI        `json:"roi"`
}

// Server is the web dashboard server
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	mu   sync.RWMutex
	ctrl Controller

	// Hubs for websocket broadcast
	sampleHub *hub.Hub
	trackHub  *hub.Hub

	// OnStop is called after a stop request has stopped the session.
	OnStop func()
}

// NewServer creates a dashboard listening on addr. Attach a session
// before serving requests that need one.
func NewServer(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:      addr,
		logger:    logger.With("component", "web"),
		sampleHub: hub.New("samples", logger),
		trackHub:  hub.New("track", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-pupil dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/samples", s.handleSamples)
	api.Get("/roi", s.handleROI)
	api.Post("/threshold", s.handleThreshold)
	api.Get("/tuning", s.handleGetTuning)
	api.Post("/tuning", s.handleSetTuning)
	api.Post("/stop", s.handleStop)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/samples", websocket.New(s.handleSamplesWS))
	app.Get("/ws/track", websocket.New(s.handleTrackWS))

	s.app = app
	return s
}

// Attach sets the session the dashboard serves.
func (s *Server) Attach(ctrl Controller) {
	s.mu.Lock()
	s.ctrl = ctrl
	s.mu.Unlock()
}

func (s *Server) controller() Controller {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctrl
}

// App returns the fiber app, for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// OnSample broadcasts a sample to /ws/samples clients.
func (s *Server) OnSample(smp session.Sample) {
	if err := s.sampleHub.Publish(hub.KindSample, smp); err != nil {
		s.logger.Warn("encode sample", "error", err)
	}
}

// OnTrack broadcasts a pass result to /ws/track clients.
func (s *Server) OnTrack(obs session.Observation, roi tracking.ROI) {
	if err := s.trackHub.Publish(hub.KindTrack, TrackUpdate{Observation: obs, ROI: roi}); err != nil {
		s.logger.Warn("encode track update", "error", err)
	}
}

// Start runs the hubs and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	go s.sampleHub.Run(ctx)
	go s.trackHub.Run(ctx)

	go func() {
		<-ctx.Done()
		if err := s.app.Shutdown(); err != nil {
			s.logger.Warn("dashboard shutdown", "error", err)
		}
	}()

	s.logger.Info("dashboard listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("dashboard stopped", "error", err)
		}
	}()
}
