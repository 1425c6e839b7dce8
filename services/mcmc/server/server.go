// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes a running chain over HTTP.
//
// Endpoints:
//
//	GET /health           - Liveness.
//	GET /v1/chain/status  - Snapshot of the chain (counters, likelihoods, proposers).
//	GET /v1/chain/stream  - WebSocket pushing snapshots until the chain stops.
//	GET /metrics          - Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianMCMC/services/mcmc/chain"
)

// ServiceVersion is reported by /health.
const ServiceVersion = "1.0.0"

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 5 * time.Second

// DefaultStreamInterval is the default push period of the status stream.
const DefaultStreamInterval = time.Second

// StatusProvider reports the state of a chain. *chain.Manager implements it.
type StatusProvider interface {
	Status() chain.Status
}

// Config configures the HTTP server.
type Config struct {
	// Addr is the listen address, e.g. ":12230".
	Addr string

	// ServiceName names the otelgin spans.
	ServiceName string

	// Debug enables gin debug mode and request logging.
	Debug bool

	// StreamInterval is the push period of /v1/chain/stream. Zero selects
	// DefaultStreamInterval.
	StreamInterval time.Duration

	// MetricsHandler serves /metrics. Nil selects the default Prometheus
	// registry.
	MetricsHandler http.Handler
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server serves chain status and metrics.
//
// Thread Safety:
//
//	Handlers only read through StatusProvider, which must be safe for
//	concurrent use.
type Server struct {
	cfg    Config
	status StatusProvider
	router *gin.Engine
	logger *slog.Logger
}

// New creates a server.
//
// Inputs:
//
//	cfg - Server configuration.
//	status - Source of chain snapshots. May be nil; /v1/chain/status then
//	  returns 503.
//	logger - Logger. If nil, uses slog.Default().
func New(cfg Config, status StatusProvider, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "aleutian-mcmc"
	}
	if cfg.StreamInterval <= 0 {
		cfg.StreamInterval = DefaultStreamInterval
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.Handler()
	}
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	if cfg.Debug {
		router.Use(gin.Logger())
	}

	s := &Server{cfg: cfg, status: status, router: router, logger: logger}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(s.cfg.MetricsHandler))

	v1 := s.router.Group("/v1")
	v1.GET("/chain/status", s.handleStatus)
	v1.GET("/chain/stream", s.handleStream)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth handles GET /health. Always 200 while the process is up.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Version: ServiceVersion})
}

// handleStatus handles GET /v1/chain/status.
//
// Response:
//
//	200 OK: chain.Status
//	503 Service Unavailable: ErrorResponse when no chain is attached
func (s *Server) handleStatus(c *gin.Context) {
	if s.status == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "no chain attached"})
		return
	}
	c.JSON(http.StatusOK, s.status.Status())
}

// Run listens on cfg.Addr and serves until ctx is cancelled.
//
// Outputs:
//
//	error - nil after a clean shutdown, otherwise the listen or serve error.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
// The listener is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// Hijacked stream connections outlive Shutdown; they watch this context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("status server listening", slog.String("address", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("status server stopped")
	return nil
}
