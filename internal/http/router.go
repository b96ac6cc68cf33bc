package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"

	"pairwatch/internal/browser"
	"pairwatch/internal/config"
	"pairwatch/internal/metrics"
	"pairwatch/internal/notify"
	"pairwatch/internal/status"
)

const statusPath = "/api/qr-status"

type Server struct {
	app      *fiber.App
	config   *config.Config
	store    *status.Store
	notifier *notify.Publisher
	logger   *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	opener browser.Opener
}

// WithOpener replaces the browser opener used by /api/open-dashboard.
func WithOpener(open browser.Opener) ServerOption {
	return func(o *serverOptions) {
		o.opener = open
	}
}

// NewServer builds the status API over st. notifier may be nil.
func NewServer(cfg *config.Config, st *status.Store, notifier *notify.Publisher, logger *slog.Logger, opts ...ServerOption) *Server {
	options := serverOptions{opener: browser.Open}
	for _, opt := range opts {
		opt(&options)
	}

	app := fiber.New(fiber.Config{
		AppName:               "pairwatch",
		DisableStartupMessage: true,
	})

	// Request logging + metrics middleware
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		// Ensure a request ID exists
		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)
		c.Set("X-Request-Id", reqID)

		err := c.Next()

		latency := time.Since(start)
		code := c.Response().StatusCode()
		// Method and Path alias fasthttp buffers that are reused after the
		// request; copy them before they become map keys.
		method := utils.CopyString(c.Method())
		path := utils.CopyString(c.Path())

		metrics.RecordRequest(method, path, code, latency.Milliseconds())

		if logger != nil {
			// The page polls the status every 2s; keep those quiet.
			level := slog.LevelInfo
			if path == statusPath && code < fiber.StatusBadRequest {
				level = slog.LevelDebug
			}
			logger.Log(c.UserContext(), level, "request",
				"request_id", reqID,
				"method", method,
				"path", path,
				"status", code,
				"latency_ms", latency.Milliseconds(),
			)
		}

		return err
	})

	// Health endpoints
	app.Get("/healthz", func(c *fiber.Ctx) error {
		// Shallow health: process is up
		if c.Query("deep") != "true" {
			return c.JSON(fiber.Map{"status": "ok"})
		}

		// Deep health: report the client phase and notifier connectivity.
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		phase := st.Snapshot().Phase

		notifierStatus := "disabled"
		if notifier.Enabled() {
			if err := notifier.Ping(ctx); err != nil {
				notifierStatus = "error"
			} else {
				notifierStatus = "ok"
			}
		}

		overall := "ok"
		if phase == status.PhaseFailed || notifierStatus == "error" {
			overall = "error"
		}

		return c.JSON(fiber.Map{
			"status":   overall,
			"client":   string(phase),
			"notifier": notifierStatus,
		})
	})

	// Prometheus-style metrics endpoint
	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Type("text/plain")
		return c.SendString(metrics.Export())
	})

	api := app.Group("/api")
	api.Get("/qr-status", qrStatusHandler(st))
	api.Get("/open-dashboard", openDashboardHandler(cfg.Dashboard.URL(), options.opener, logger))

	registerWebUIRoutes(app, cfg.Dashboard.URL())

	return &Server{
		app:      app,
		config:   cfg,
		store:    st,
		notifier: notifier,
		logger:   logger,
	}
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
}

// URL is the local address of the status page.
func (s *Server) URL() string {
	return fmt.Sprintf("http://localhost:%d", s.config.Server.Port)
}

func (s *Server) Listen() error {
	return s.app.Listen(s.Addr())
}

// Shutdown stops accepting requests and waits up to timeout for in-flight
// ones.
func (s *Server) Shutdown(timeout time.Duration) error {
	return s.app.ShutdownWithTimeout(timeout)
}
