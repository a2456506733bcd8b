// Package http holds the Echo server, JSON envelope helpers and the
// upstream REST client shared by the engine's HTTP surfaces.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"LiqSweep/pkg/http/middleware"
	applogger "LiqSweep/pkg/logger"
)

// Handler registers a route group on the server.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

type ServerOption func(*Server)

func WithPort(port int) ServerOption {
	return func(s *Server) { s.addr = fmt.Sprintf(":%d", port) }
}

func WithTimeouts(read, write, shutdown time.Duration) ServerOption {
	return func(s *Server) {
		s.echo.Server.ReadTimeout = read
		s.echo.Server.WriteTimeout = write
		s.shutdown = shutdown
	}
}

func WithLogger(l *applogger.Logger) ServerOption {
	return func(s *Server) { s.log = l }
}

// WithMetricsPath mounts the Prometheus handler; empty disables it.
func WithMetricsPath(path string) ServerOption {
	return func(s *Server) { s.metricsPath = path }
}

// Server runs Echo with recovery, request logging, metrics and CORS for
// read-only dashboards.
type Server struct {
	echo        *echo.Echo
	addr        string
	shutdown    time.Duration
	metricsPath string
	log         *applogger.Logger
}

func NewServer(handler Handler, opts ...ServerOption) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	s := &Server{echo: e, addr: ":8080", shutdown: 10 * time.Second, metricsPath: "/metrics", log: applogger.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	e.Use(middleware.Recover(s.log))
	e.Use(middleware.RequestLogging(s.log))
	e.Use(middleware.Metrics(s.log, 500*time.Millisecond))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))

	if handler != nil {
		handler.RegisterRoutes(e)
	}
	if s.metricsPath != "" {
		e.GET(s.metricsPath, echo.WrapHandler(promhttp.Handler()))
	}
	return s
}

// Start listens in the background.
func (s *Server) Start() error {
	go func() {
		s.log.Info("http server listening", applogger.String("addr", s.addr))
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", applogger.Error(err))
		}
	}()
	return nil
}

// Stop drains in-flight requests, bounded by the shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.shutdown)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

func (s *Server) Echo() *echo.Echo { return s.echo }
