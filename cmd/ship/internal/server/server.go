// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package server runs the build observation endpoint.

While a build runs, ship listens on a local port so dashboards and
scripts can watch without tailing the log file:

  - GET /healthz: liveness, always 200 while the process runs
  - GET /api/v1/build: the current build snapshot as JSON
  - GET /ws/logs: a websocket streaming stage events and log lines
  - GET /metrics: Prometheus metrics (stage durations, results)

The server is observation only. Nothing on it mutates the build, so
there is no auth story beyond binding to localhost by default.
*/
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/history"
)

// DefaultAddr binds the observation server to localhost on an
// ephemeral port.
const DefaultAddr = "127.0.0.1:0"

// Config configures the observation server.
type Config struct {
	// Addr is the listen address. Default: DefaultAddr.
	Addr string

	// Version is the ship version reported by /healthz.
	Version string

	// Logger receives server lifecycle events.
	// Default: slog.Default()
	Logger *slog.Logger
}

// Server is the embedded observation endpoint for one ship process.
//
// # Description
//
// Owns the build state snapshot, the websocket hub, and the HTTP
// listener. The pipeline reports progress through BeginBuild,
// StageStarted, StageFinished, FinishBuild, and LogWriter; every
// report fans out to the JSON snapshot, the websocket subscribers, and
// the Prometheus metrics in one call.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Server struct {
	config     Config
	router     *gin.Engine
	httpServer *http.Server
	state      *BuildState
	hub        *LogHub
}

// New assembles the router and handlers without binding the port.
func New(config Config) *Server {
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("ship"))

	s := &Server{
		config: config,
		router: router,
		state:  NewBuildState(),
		hub:    NewLogHub(config.Logger),
	}
	s.setupRoutes()
	setBuildInfo(config.Version)
	return s
}

// setupRoutes registers every endpoint.
func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealthz)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/ws/logs", s.hub.HandleWebSocket())

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/build", s.handleBuild)
	}
}

// Start binds the listener and serves in the background.
//
// # Description
//
// Resolves the configured address (supporting :0 for an ephemeral
// port) and returns the bound address. Serve errors after a clean bind
// are logged, not returned; the build does not fail because the
// observation socket died.
//
// # Outputs
//
//   - string: The bound address, e.g. "127.0.0.1:43817"
//   - error: Non-nil if the address cannot be bound
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return "", fmt.Errorf("failed to bind status server to %s: %w", s.config.Addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	addr := listener.Addr().String()
	s.config.Logger.Info("status server listening", slog.String("addr", addr))

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.config.Logger.Warn("status server stopped", slog.String("error", err.Error()))
		}
	}()

	return addr, nil
}

// Shutdown stops the listener and closes every websocket.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// -----------------------------------------------------------------------------
// HTTP Handlers
// -----------------------------------------------------------------------------

// handleHealthz reports liveness.
func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "ship",
		"version": s.config.Version,
	})
}

// handleBuild renders the current build snapshot.
func (s *Server) handleBuild(c *gin.Context) {
	snapshot := s.state.Snapshot()
	if snapshot.BuildNumber == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no build running"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// -----------------------------------------------------------------------------
// Pipeline Reporting
// -----------------------------------------------------------------------------

// BeginBuild resets the snapshot for a new build and announces it.
func (s *Server) BeginBuild(buildNumber int, params history.BuildParams) {
	s.state.BeginBuild(buildNumber, params)
	s.hub.Publish(LogEvent{
		Type:  EventBuildStarted,
		Build: buildNumber,
		Time:  time.Now(),
	})
}

// StageStarted marks a stage as running.
func (s *Server) StageStarted(name string) {
	s.state.StageStarted(name)
	s.hub.Publish(LogEvent{
		Type:  EventStageStarted,
		Stage: name,
		Time:  time.Now(),
	})
}

// StageFinished records a stage outcome.
func (s *Server) StageFinished(record history.StageRecord) {
	s.state.StageFinished(record)
	observeStage(record)
	s.hub.Publish(LogEvent{
		Type:   EventStageFinished,
		Stage:  record.Name,
		Status: string(record.Status),
		Detail: record.Error,
		Time:   time.Now(),
	})
}

// FinishBuild seals the snapshot and announces the outcome.
func (s *Server) FinishBuild(status history.BuildStatus) {
	s.state.FinishBuild(status)
	observeBuild(status)
	s.hub.Publish(LogEvent{
		Type:   EventBuildFinished,
		Status: string(status),
		Time:   time.Now(),
	})
}

// LogWriter returns a writer that streams each written line to the
// websocket subscribers, tagged with the stage name. Safe to tee with
// the build log writer.
func (s *Server) LogWriter(stage string) *LineWriter {
	return NewLineWriter(func(line string) {
		s.hub.Publish(LogEvent{
			Type:  EventLogLine,
			Stage: stage,
			Line:  line,
			Time:  time.Now(),
		})
	})
}
