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
	"sync"
	"time"

	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/history"
)

// BuildSnapshot is the JSON shape served by /api/v1/build.
type BuildSnapshot struct {
	// BuildNumber is zero when no build has started.
	BuildNumber int `json:"build_number"`

	// Status is RUNNING until FinishBuild seals the outcome.
	Status string `json:"status"`

	// Params echoes the build parameters, secrets excluded by type.
	Params history.BuildParams `json:"params"`

	// StartedAt is when the build began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is set once the build is sealed.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CurrentStage is the running stage name, empty between stages.
	CurrentStage string `json:"current_stage,omitempty"`

	// Stages lists completed stages in execution order.
	Stages []history.StageRecord `json:"stages"`
}

// statusRunning is the snapshot status before the build is sealed.
// Deliberately distinct from the stored history statuses: a snapshot
// can be observed mid-build, a history record cannot.
const statusRunning = "RUNNING"

// BuildState is the mutable snapshot behind /api/v1/build.
//
// # Thread Safety
//
// BuildState is safe for concurrent use. The pipeline writes from its
// goroutine while HTTP handlers read from theirs.
type BuildState struct {
	mu       sync.RWMutex
	snapshot BuildSnapshot
}

// NewBuildState creates an empty state. Snapshot returns a zero build
// number until BeginBuild.
func NewBuildState() *BuildState {
	return &BuildState{}
}

// BeginBuild resets the state for one build.
func (b *BuildState) BeginBuild(buildNumber int, params history.BuildParams) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot = BuildSnapshot{
		BuildNumber: buildNumber,
		Status:      statusRunning,
		Params:      params,
		StartedAt:   time.Now(),
		Stages:      []history.StageRecord{},
	}
}

// StageStarted marks the named stage as the one running.
func (b *BuildState) StageStarted(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot.CurrentStage = name
}

// StageFinished appends a completed stage and clears the running
// marker.
func (b *BuildState) StageFinished(record history.StageRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot.Stages = append(b.snapshot.Stages, record)
	b.snapshot.CurrentStage = ""
}

// FinishBuild seals the outcome.
func (b *BuildState) FinishBuild(status history.BuildStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	b.snapshot.Status = string(status)
	b.snapshot.FinishedAt = &now
	b.snapshot.CurrentStage = ""
}

// Snapshot returns a copy safe to serialize outside the lock.
func (b *BuildState) Snapshot() BuildSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snapshot := b.snapshot
	snapshot.Stages = make([]history.StageRecord, len(b.snapshot.Stages))
	copy(snapshot.Stages, b.snapshot.Stages)
	return snapshot
}
