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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/history"
)

// Build metrics, exposed on /metrics via the default registry.
// Buckets run from "fast stage" (checkout on a warm clone) to "slow
// stage" (a full docker build pulling base layers).
var (
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ship_stage_duration_seconds",
		Help:    "Wall time per pipeline stage",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"stage", "status"})

	stageResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ship_stage_results_total",
		Help: "Stage outcomes by status",
	}, []string{"stage", "status"})

	buildResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ship_builds_total",
		Help: "Build outcomes by status",
	}, []string{"status"})

	buildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ship_build_info",
		Help: "Constant gauge carrying the ship version label",
	}, []string{"version"})
)

// observeStage records one completed stage. Skipped stages carry no
// duration worth observing but still count.
func observeStage(record history.StageRecord) {
	status := string(record.Status)
	stageResults.WithLabelValues(record.Name, status).Inc()
	if record.Status != history.StageSkipped {
		stageDuration.WithLabelValues(record.Name, status).Observe(record.Duration.Seconds())
	}
}

// observeBuild records one sealed build outcome.
func observeBuild(status history.BuildStatus) {
	buildResults.WithLabelValues(string(status)).Inc()
}

// setBuildInfo pins the version label gauge.
func setBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
