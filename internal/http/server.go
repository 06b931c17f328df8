// Package http provides the HTTP API for eternal.
package http

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/eternal/internal/archive"
	"github.com/fyrsmithlabs/eternal/internal/enrich"
	"github.com/fyrsmithlabs/eternal/internal/logging"
	"github.com/fyrsmithlabs/eternal/internal/orchestrator"
)

//go:embed static/placeholder_graph.png
var placeholderGraph []byte

// Handler answers generate requests.
type Handler interface {
	Handle(ctx context.Context, req orchestrator.Request) (orchestrator.Response, error)
}

// ArchiveAdmin exposes archive statistics and integrity checks.
type ArchiveAdmin interface {
	Stats(ctx context.Context) (archive.Stats, error)
	Verify(ctx context.Context) (archive.VerifyReport, error)
}

// Server provides HTTP endpoints for eternal.
type Server struct {
	echo    *echo.Echo
	handler Handler
	admin   ArchiveAdmin
	logger  *logging.Logger
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// StaticDir overrides the built-in placeholder graph when it holds a
	// file of the same name.
	StaticDir string
}

// NewServer creates a new HTTP server.
func NewServer(handler Handler, admin ArchiveAdmin, logger *logging.Logger, cfg *Config) (*Server, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}
	if admin == nil {
		return nil, fmt.Errorf("archive admin cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 5000,
		}
	}
	logger = logger.Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.WithRequestID(c.Request().Context(), requestID)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)

			logger.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	})

	s := &Server{
		echo:    e,
		handler: handler,
		admin:   admin,
		logger:  logger,
		config:  cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleIndex)
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")
	api.POST("/generate", s.handleGenerate)
	api.GET("/static/"+enrich.PlaceholderGraphFile, s.handlePlaceholderGraph)

	v1 := api.Group("/v1")
	v1.POST("/generate", s.handleGenerate)
	v1.GET("/archive/stats", s.handleArchiveStats)
	v1.GET("/archive/verify", s.handleArchiveVerify)
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleIndex(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusMessage{
		Status:  StatusSuccess,
		Message: "Welcome to the Integrated Intelligence Platform API!",
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleGenerate(c echo.Context) error {
	var req GenerateRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid generate request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, StatusMessage{Status: StatusError, Message: "Invalid JSON in request body"})
	}
	if req.Prompt == nil || *req.Prompt == "" {
		return c.JSON(http.StatusBadRequest, StatusMessage{Status: StatusError, Message: missingPrompt})
	}

	resp, err := s.handler.Handle(c.Request().Context(), orchestrator.Request{
		Prompt:       *req.Prompt,
		Mode:         orchestrator.ParseMode(req.Mode),
		Preferences:  req.Preferences,
		CustomAPIKey: req.CustomAPIKey,
	})
	if errors.Is(err, orchestrator.ErrEmptyPrompt) {
		return c.JSON(http.StatusBadRequest, StatusMessage{Status: StatusError, Message: missingPrompt})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, StatusMessage{
			Status:  StatusError,
			Message: "The archive could not be updated.",
			Error:   err.Error(),
		})
	}

	return c.JSON(http.StatusOK, GenerateResponse{
		Status:           StatusSuccess,
		Response:         resp.Answer,
		ModelUsed:        resp.ModelUsed,
		DiagnosticReport: resp.DiagnosticReport,
	})
}

func (s *Server) handleArchiveStats(c echo.Context) error {
	stats, err := s.admin.Stats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, StatusMessage{Status: StatusError, Error: err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleArchiveVerify(c echo.Context) error {
	report, err := s.admin.Verify(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, StatusMessage{Status: StatusError, Error: err.Error()})
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handlePlaceholderGraph(c echo.Context) error {
	if s.config.StaticDir != "" {
		path := filepath.Join(s.config.StaticDir, enrich.PlaceholderGraphFile)
		if _, err := os.Stat(path); err == nil {
			return c.File(path)
		}
	}
	return c.Blob(http.StatusOK, "image/png", placeholderGraph)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
