// Package web serves the capture page and the describe API.
//
// Each user action maps to one handler call: uploading a photo runs the
// pipeline once, "Speak again" replays the stored result. Pipeline progress
// is streamed to browsers over /ws/events.
package web

import (
	"context"
	"html/template"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/vision-assistant/internal/log"
	"github.com/teslashibe/vision-assistant/pkg/assistant"
	"github.com/teslashibe/vision-assistant/pkg/hub"
)

// Describer runs and replays descriptions. *assistant.Pipeline implements it.
type Describer interface {
	Describe(ctx context.Context, image []byte) (*assistant.Result, error)
	Replay(id string) (*assistant.Result, error)
	Recent(n int) []*assistant.Result
}

// HealthChecker reports provider health. *models.Registry implements it.
type HealthChecker interface {
	Health(ctx context.Context) map[string]error
}

// Config configures the HTTP server.
type Config struct {
	Addr        string
	BodyLimit   int
	ReadTimeout time.Duration

	// Debug enables per-request access logs.
	Debug bool

	// HealthTimeout bounds provider health checks.
	HealthTimeout time.Duration
}

// DefaultConfig returns a server listening on :8080.
func DefaultConfig() Config {
	return Config{
		Addr:          ":8080",
		BodyLimit:     12 * 1024 * 1024,
		ReadTimeout:   2 * time.Minute,
		HealthTimeout: 10 * time.Second,
	}
}

// Server is the vision assistant web server.
type Server struct {
	app       *fiber.App
	cfg       Config
	describer Describer
	health    HealthChecker
	events    *hub.Hub
	page      *template.Template
	logger    *slog.Logger
}

// NewServer wires routes. events may be nil, which disables /ws/events.
func NewServer(cfg Config, describer Describer, health HealthChecker, events *hub.Hub) *Server {
	s := &Server{
		cfg:       cfg,
		describer: describer,
		health:    health,
		events:    events,
		page:      pageTemplate,
		logger:    log.Component("web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Vision Assistant",
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimit,
		ReadTimeout:           cfg.ReadTimeout,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	if cfg.Debug {
		app.Use(logger.New())
	}

	// Pages
	app.Get("/", s.handleIndex)
	app.Post("/describe", s.handleDescribePage)
	app.Get("/results/:id", s.handleReplayPage)
	app.Get("/health", s.handleHealth)

	// API routes
	api := app.Group("/api")
	api.Post("/describe", s.handleDescribeAPI)
	api.Get("/results", s.handleResults)
	api.Get("/results/:id", s.handleResult)
	api.Get("/results/:id/audio", s.handleAudio)

	if events != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws/events", websocket.New(s.handleEventsWS))
	}

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s.events != nil {
		// No-op when the caller already runs the hub.
		go s.events.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web server listening", "addr", s.cfg.Addr)
		errCh <- s.app.Listen(s.cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down web server")
		if err := s.app.ShutdownWithTimeout(10 * time.Second); err != nil {
			return err
		}
		return <-errCh
	}
}

// Shutdown stops the server immediately.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// EventObserver broadcasts pipeline events to hub subscribers as JSON.
func EventObserver(h *hub.Hub) assistant.Observer {
	return func(e assistant.Event) {
		if err := h.BroadcastJSON(e); err != nil {
			log.Component("web").Warn("encode event", "error", err)
		}
	}
}
