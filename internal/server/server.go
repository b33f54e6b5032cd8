// Package server exposes the form core over HTTP: definition listing, form
// derivation and rendering, configuration validation, and reference
// extraction for the builder.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/moogar0880/problems"

	"github.com/goliatone/go-pipeform/pkg/orchestrator"
	"github.com/goliatone/go-pipeform/pkg/render"
	"github.com/goliatone/go-pipeform/pkg/render/markdown"
)

const (
	shutdownTimeout  = 5 * time.Second
	problemMediaType = "application/problem+json"
)

// Option customises a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRenderers replaces the default registry (json and markdown).
func WithRenderers(registry *render.Registry) Option {
	return func(s *Server) {
		if registry != nil {
			s.renderers = registry
		}
	}
}

// Server wires an Orchestrator to echo routes.
type Server struct {
	echo      *echo.Echo
	orch      *orchestrator.Orchestrator
	renderers *render.Registry
	metrics   *Metrics
	logger    *slog.Logger
}

// New builds the server and registers its routes.
func New(orch *orchestrator.Orchestrator, opts ...Option) *Server {
	s := &Server{orch: orch, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("module", "server")
	if s.orch == nil {
		s.orch = orchestrator.New(orchestrator.WithLogger(s.logger))
	}
	if s.renderers == nil {
		s.renderers = DefaultRenderers()
	}
	s.metrics = newMetrics()
	s.echo = s.build()
	return s
}

// DefaultRenderers returns a registry holding the json and markdown
// renderers.
func DefaultRenderers() *render.Registry {
	registry := render.NewRegistry()
	registry.MustRegister(render.NewJSONRenderer())
	registry.MustRegister(markdown.New())
	return registry
}

func (s *Server) build() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.HTTPErrorHandler = s.handleError

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(s.metrics.observe)

	// logging for server-side latency.
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			begin := time.Now()
			err := next(c)
			s.logger.Debug("request served",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"elapsed", time.Since(begin),
			)
			return err
		}
	})

	e.GET("/healthz", Health(s.orch))
	e.GET("/metrics", s.metrics.handler())
	e.GET("/definitions", ListDefinitions(s.orch))
	e.GET("/definitions/:id", GetDefinition(s.orch))
	e.POST("/definitions/:id/form", RenderForm(s.orch, s.renderers, s.metrics))
	e.POST("/definitions/:id/validate", ValidateConfiguration(s.orch, s.metrics))
	e.POST("/references", ExtractReferences())
	e.POST("/recipes/edges", RecipeEdges(s.logger))
	e.POST("/triggers/form", TriggerForm(s.orch, s.renderers, s.metrics))
	return e
}

// handleError writes errors as RFC 7807 problem documents. Details of
// internal errors are logged, never returned.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	detail := http.StatusText(status)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if status < http.StatusInternalServerError {
			detail = fmt.Sprint(he.Message)
		}
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	} else {
		s.logger.Debug("request rejected", "path", c.Path(), "status", status, "error", err)
	}

	problem := problems.NewStatusProblem(status).
		WithInstance(c.Request().URL.Path).
		WithType(problemType(status)).
		WithDetail(detail)
	body, merr := json.Marshal(problem)
	if merr != nil {
		s.logger.Error("encode problem", "error", merr)
		_ = c.NoContent(status)
		return
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	if werr := c.Blob(status, problemMediaType, body); werr != nil {
		s.logger.Error("write problem", "error", werr)
	}
}

func problemType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "validation_error"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		return "unprocessable"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")
	}
}

// Handler returns the http.Handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Metrics returns the collectors served at /metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() {
		errc <- s.echo.Start(addr)
	}()
	s.logger.Info("server listening", "addr", addr)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("server shutting down")
		return s.echo.Shutdown(shutdownCtx)
	}
}
