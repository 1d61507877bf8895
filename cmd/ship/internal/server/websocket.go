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

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/util"
)

// EventType tags one websocket event.
type EventType string

const (
	// EventBuildStarted opens a build.
	EventBuildStarted EventType = "build_started"

	// EventStageStarted marks a stage beginning.
	EventStageStarted EventType = "stage_started"

	// EventStageFinished marks a stage outcome.
	EventStageFinished EventType = "stage_finished"

	// EventBuildFinished seals the build.
	EventBuildFinished EventType = "build_finished"

	// EventLogLine carries one line of stage output.
	EventLogLine EventType = "log_line"
)

// LogEvent is the JSON frame sent to /ws/logs subscribers.
type LogEvent struct {
	Type   EventType `json:"type"`
	Build  int       `json:"build,omitempty"`
	Stage  string    `json:"stage,omitempty"`
	Status string    `json:"status,omitempty"`
	Line   string    `json:"line,omitempty"`
	Detail string    `json:"detail,omitempty"`
	Time   time.Time `json:"time"`
}

// replayCapacity bounds the recent-event buffer replayed to clients
// that connect mid-build.
const replayCapacity = 500

// subscriberBuffer is the per-client channel depth. A client that
// cannot drain this many events gets dropped rather than blocking the
// build.
const subscriberBuffer = 256

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Observation only, localhost bind; any origin may watch.
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 32 * 1024,
}

// sendJSON writes one frame, logging write failures at debug since a
// vanished client is routine.
func sendJSON(ws *websocket.Conn, v any) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Debug("failed to write websocket JSON", "error", err)
	}
	return err
}

// -----------------------------------------------------------------------------
// LogHub
// -----------------------------------------------------------------------------

// LogHub fans build events out to websocket subscribers.
//
// # Description
//
// Publish never blocks: each subscriber has a bounded channel and a
// subscriber that stops draining is disconnected. A ring buffer of
// recent events is replayed to late joiners so connecting mid-build
// still shows how the build got here.
//
// # Thread Safety
//
// LogHub is safe for concurrent use.
type LogHub struct {
	logger *slog.Logger

	mu          sync.Mutex
	subscribers map[chan LogEvent]struct{}
	replay      *util.RingBuffer[LogEvent]
	closed      bool
}

// NewLogHub creates an empty hub.
func NewLogHub(logger *slog.Logger) *LogHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogHub{
		logger:      logger,
		subscribers: make(map[chan LogEvent]struct{}),
		replay:      util.NewRingBuffer[LogEvent](replayCapacity),
	}
}

// Publish buffers the event and offers it to every subscriber.
func (h *LogHub) Publish(event LogEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	h.replay.Push(event)
	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			// Slow consumer; drop it so the build never waits.
			delete(h.subscribers, ch)
			close(ch)
		}
	}
}

// subscribe registers a channel and returns it with the replay events.
func (h *LogHub) subscribe() (chan LogEvent, []LogEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, nil
	}

	ch := make(chan LogEvent, subscriberBuffer)
	h.subscribers[ch] = struct{}{}
	return ch, h.replay.ToSlice()
}

// unsubscribe removes a channel if still registered.
func (h *LogHub) unsubscribe(ch chan LogEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[ch]; ok {
		delete(h.subscribers, ch)
		close(ch)
	}
}

// Close disconnects every subscriber and refuses new ones.
func (h *LogHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subscribers {
		delete(h.subscribers, ch)
		close(ch)
	}
}

// SubscriberCount reports the live subscriber count.
func (h *LogHub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// HandleWebSocket upgrades the connection and streams events.
//
// # Description
//
// On connect the client receives the buffered recent events, then live
// events as they happen. Client frames are read and discarded only to
// learn about disconnects; the stream is one-way.
func (h *LogHub) HandleWebSocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.logger.Warn("failed to upgrade the websocket", slog.String("error", err.Error()))
			return
		}
		defer ws.Close()

		ch, backlog := h.subscribe()
		if ch == nil {
			return
		}
		defer h.unsubscribe(ch)
		h.logger.Debug("websocket client connected")

		for _, event := range backlog {
			if err := sendJSON(ws, event); err != nil {
				return
			}
		}

		// Reader goroutine: detect the client going away.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case event, ok := <-ch:
				if !ok {
					return
				}
				if err := sendJSON(ws, event); err != nil {
					return
				}
			case <-done:
				h.logger.Debug("websocket client disconnected")
				return
			}
		}
	}
}

// -----------------------------------------------------------------------------
// LineWriter
// -----------------------------------------------------------------------------

// LineWriter is an io.Writer splitting writes into lines for a
// callback. Partial lines are held until their newline arrives; Flush
// emits any remainder.
//
// # Thread Safety
//
// LineWriter is safe for concurrent use.
type LineWriter struct {
	emit func(line string)

	mu      sync.Mutex
	partial strings.Builder
}

// NewLineWriter creates a writer feeding complete lines to emit.
func NewLineWriter(emit func(line string)) *LineWriter {
	return &LineWriter{emit: emit}
}

// Write implements io.Writer. Never returns an error; a log streaming
// failure must not fail the command producing the output.
func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, b := range p {
		if b == '\n' {
			w.emit(w.partial.String())
			w.partial.Reset()
			continue
		}
		w.partial.WriteByte(b)
	}
	return len(p), nil
}

// Flush emits any buffered partial line.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.partial.Len() > 0 {
		w.emit(w.partial.String())
		w.partial.Reset()
	}
}
