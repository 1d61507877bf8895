// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

/*
Observation server tests.

# Testing Strategy

 1. HTTP endpoints run against the gin handler via httptest, no real
    port except for the websocket test, which needs a live listener to
    dial.
 2. The websocket test covers the replay-then-live contract with read
    deadlines instead of sleeps.
 3. Hub backpressure: a subscriber that stops draining is dropped
    without blocking Publish.
*/

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/history"
)

// newTestServer builds a quiet server.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(Config{
		Version: "test",
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

// get performs one request against the handler.
func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// -----------------------------------------------------------------------------
// HTTP Endpoints
// -----------------------------------------------------------------------------

// TestHealthz verifies the liveness endpoint shape.
func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := get(t, s, "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ship", body["service"])
	assert.Equal(t, "test", body["version"])
}

// TestBuildEndpointWithoutBuild verifies 404 before any build starts.
func TestBuildEndpointWithoutBuild(t *testing.T) {
	s := newTestServer(t)
	rec := get(t, s, "/api/v1/build")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestBuildEndpointSnapshot verifies the snapshot mid-build and sealed.
func TestBuildEndpointSnapshot(t *testing.T) {
	s := newTestServer(t)
	s.BeginBuild(7, history.BuildParams{
		GitRepoURL: "https://git.example.com/gig/gig_router.git",
		GitBranch:  "main",
	})
	s.StageStarted("Checkout")
	s.StageFinished(history.StageRecord{
		Name:     "Checkout",
		Status:   history.StagePassed,
		Duration: 3 * time.Second,
	})
	s.StageStarted("Build")

	rec := get(t, s, "/api/v1/build")
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot BuildSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, 7, snapshot.BuildNumber)
	assert.Equal(t, statusRunning, snapshot.Status, "build is still mid-flight")
	assert.Equal(t, "Build", snapshot.CurrentStage)
	require.Len(t, snapshot.Stages, 1)
	assert.Equal(t, "Checkout", snapshot.Stages[0].Name)
	assert.Equal(t, "main", snapshot.Params.GitBranch)

	s.FinishBuild(history.StatusSuccess)
	rec = get(t, s, "/api/v1/build")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, string(history.StatusSuccess), snapshot.Status)
	assert.NotNil(t, snapshot.FinishedAt, "sealed snapshot should carry FinishedAt")
	assert.Empty(t, snapshot.CurrentStage, "sealed snapshot has no current stage")
}

// TestMetricsEndpoint verifies the prometheus families are exported.
func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.StageFinished(history.StageRecord{
		Name:     "Unit Tests",
		Status:   history.StagePassed,
		Duration: 42 * time.Second,
	})
	s.FinishBuild(history.StatusSuccess)

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, metric := range []string{
		"ship_stage_duration_seconds",
		"ship_stage_results_total",
		"ship_builds_total",
		"ship_build_info",
	} {
		assert.Contains(t, body, metric)
	}
}

// -----------------------------------------------------------------------------
// WebSocket
// -----------------------------------------------------------------------------

// dialLogs connects a websocket client to a live test server.
func dialLogs(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/logs"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "websocket dial")
	return ws
}

// readEvent reads one frame under a deadline.
func readEvent(t *testing.T, ws *websocket.Conn) LogEvent {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var event LogEvent
	require.NoError(t, ws.ReadJSON(&event))
	return event
}

// TestWebSocketReplaysThenStreams verifies a late subscriber first receives
// the buffered history, then live events on the same connection.
func TestWebSocketReplaysThenStreams(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	// Events before the client connects land in the replay buffer.
	s.BeginBuild(7, history.BuildParams{GitBranch: "main"})
	s.StageStarted("Checkout")

	ws := dialLogs(t, ts)
	defer ws.Close()

	first := readEvent(t, ws)
	assert.Equal(t, EventBuildStarted, first.Type)
	assert.Equal(t, 7, first.Build)

	second := readEvent(t, ws)
	assert.Equal(t, EventStageStarted, second.Type)
	assert.Equal(t, "Checkout", second.Stage)

	// A live event follows the replay on the same connection.
	s.StageFinished(history.StageRecord{
		Name:   "Checkout",
		Status: history.StagePassed,
	})
	live := readEvent(t, ws)
	assert.Equal(t, EventStageFinished, live.Type)
	assert.Equal(t, string(history.StagePassed), live.Status)
}

// TestWebSocketStreamsLogLines verifies stage output reaches subscribers
// line by line.
func TestWebSocketStreamsLogLines(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ws := dialLogs(t, ts)
	defer ws.Close()

	w := s.LogWriter("Unit Tests")
	_, err := w.Write([]byte("collected 125 items\n"))
	require.NoError(t, err)

	event := readEvent(t, ws)
	assert.Equal(t, EventLogLine, event.Type)
	assert.Equal(t, "Unit Tests", event.Stage)
	assert.Equal(t, "collected 125 items", event.Line)
}

// -----------------------------------------------------------------------------
// LogHub
// -----------------------------------------------------------------------------

// TestLogHubDropsSlowConsumer verifies backpressure never blocks Publish.
func TestLogHubDropsSlowConsumer(t *testing.T) {
	hub := NewLogHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, _ = hub.subscribe()
	require.Equal(t, 1, hub.SubscriberCount())

	// Never drained: the channel fills, then the subscriber is dropped.
	for i := 0; i <= subscriberBuffer; i++ {
		hub.Publish(LogEvent{Type: EventLogLine, Line: "x"})
	}
	assert.Equal(t, 0, hub.SubscriberCount(), "slow subscriber should be dropped")
}

// TestLogHubCloseDisconnectsAll verifies Close is terminal and safe.
func TestLogHubCloseDisconnectsAll(t *testing.T) {
	hub := NewLogHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ch, _ := hub.subscribe()

	hub.Close()
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")

	refused, _ := hub.subscribe()
	assert.Nil(t, refused, "subscribe after Close should refuse")

	// Publish after Close must not panic.
	hub.Publish(LogEvent{Type: EventLogLine})
}

// -----------------------------------------------------------------------------
// LineWriter
// -----------------------------------------------------------------------------

// TestLineWriterSplitsAndBuffersPartials verifies newline framing and Flush.
func TestLineWriterSplitsAndBuffersPartials(t *testing.T) {
	var lines []string
	w := NewLineWriter(func(line string) { lines = append(lines, line) })

	_, err := w.Write([]byte("first\nsec"))
	require.NoError(t, err)
	_, err = w.Write([]byte("ond\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("trailing"))
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, lines, "partial line stays buffered")
	w.Flush()
	assert.Equal(t, []string{"first", "second", "trailing"}, lines)
	w.Flush()
	assert.Len(t, lines, 3, "empty flush should emit nothing")
}

// -----------------------------------------------------------------------------
// BuildState
// -----------------------------------------------------------------------------

// TestBuildStateSnapshotIsACopy verifies callers cannot mutate shared state.
func TestBuildStateSnapshotIsACopy(t *testing.T) {
	state := NewBuildState()
	state.BeginBuild(3, history.BuildParams{})
	state.StageFinished(history.StageRecord{Name: "Checkout", Status: history.StagePassed})

	snapshot := state.Snapshot()
	snapshot.Stages[0].Name = "mutated"

	assert.Equal(t, "Checkout", state.Snapshot().Stages[0].Name,
		"snapshot mutation must not leak into state")
}

// TestServerStartAndShutdown verifies the loopback listener lifecycle.
func TestServerStartAndShutdown(t *testing.T) {
	s := newTestServer(t)
	addr, err := s.Start()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(addr, "127.0.0.1:"), "bound addr = %q", addr)

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))
}
