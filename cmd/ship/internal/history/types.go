// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"time"
)

// BuildStatus is the overall outcome of one pipeline run.
type BuildStatus string

const (
	// StatusSuccess means every stage passed.
	StatusSuccess BuildStatus = "SUCCESS"

	// StatusUnstable means the build succeeded but a best-effort stage
	// reported problems (failed scans, red quality gate).
	StatusUnstable BuildStatus = "UNSTABLE"

	// StatusFailed means a fatal stage failed and the run stopped.
	StatusFailed BuildStatus = "FAILED"
)

// StageStatus is the outcome of one pipeline stage.
type StageStatus string

const (
	// StagePassed means the stage completed cleanly.
	StagePassed StageStatus = "PASSED"

	// StageUnstable means the stage completed but reported problems.
	StageUnstable StageStatus = "UNSTABLE"

	// StageFailed means the stage failed.
	StageFailed StageStatus = "FAILED"

	// StageSkipped means the stage did not run (parameter skip or an
	// earlier fatal failure).
	StageSkipped StageStatus = "SKIPPED"
)

// BuildParams records the parameters one run started with.
type BuildParams struct {
	// GitRepoURL is the repository that was built, credentials stripped.
	GitRepoURL string `json:"git_repo_url"`

	// GitBranch is the branch that was built.
	GitBranch string `json:"git_branch"`

	// SkipTests records whether the test stage was skipped by request.
	SkipTests bool `json:"skip_tests"`

	// SkipSonarQube records whether analysis was skipped by request.
	SkipSonarQube bool `json:"skip_sonarqube"`
}

// StageRecord is the stored outcome of one stage.
type StageRecord struct {
	// Name is the stage display name ("Unit Tests").
	Name string `json:"name"`

	// Status is the stage outcome.
	Status StageStatus `json:"status"`

	// Duration is the stage wall time.
	Duration time.Duration `json:"duration"`

	// Error carries the failure or warning message, empty on success.
	Error string `json:"error,omitempty"`
}

// TestSummary is the stored pytest outcome.
type TestSummary struct {
	Total    int           `json:"total"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Errors   int           `json:"errors"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// ScanRecord is the stored outcome of one scanner.
type ScanRecord struct {
	// Tool is the scanner name ("bandit", "safety", "trivy").
	Tool string `json:"tool"`

	// Findings is the total finding count.
	Findings int `json:"findings"`

	// BySeverity counts findings per severity label.
	BySeverity map[string]int `json:"by_severity,omitempty"`
}

// ArtifactRecord is the stored packaging outcome.
type ArtifactRecord struct {
	// Path is the archive location at build time.
	Path string `json:"path"`

	// SHA256 is the archive digest.
	SHA256 string `json:"sha256"`

	// Size is the archive size in bytes.
	Size int64 `json:"size"`

	// Uploads names the stores the archive was pushed to.
	Uploads []string `json:"uploads,omitempty"`
}

// BuildRecord is one pipeline run as stored in the history database.
//
// Records are JSON values keyed by zero-padded build number, so the
// on-disk schema is what these json tags say. Fields only ever get
// added; SchemaVersion marks the shape for future readers.
type BuildRecord struct {
	// SchemaVersion marks the record shape. Currently 1.
	SchemaVersion int `json:"schema_version"`

	// BuildNumber is the monotonic run number.
	BuildNumber int `json:"build_number"`

	// Status is the overall outcome.
	Status BuildStatus `json:"status"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Params are the parameters the run started with.
	Params BuildParams `json:"params"`

	// Commit is the head commit the build checked out, empty when the
	// checkout never completed.
	Commit string `json:"commit,omitempty"`

	// Stages lists every stage outcome in execution order.
	Stages []StageRecord `json:"stages"`

	// Tests is the pytest outcome, nil when tests were skipped.
	Tests *TestSummary `json:"tests,omitempty"`

	// QualityGate is the sonar gate verdict ("OK", "ERROR"), empty when
	// analysis was skipped.
	QualityGate string `json:"quality_gate,omitempty"`

	// Scans lists scanner outcomes for the scans that ran.
	Scans []ScanRecord `json:"scans,omitempty"`

	// Artifact describes the packaged archive, nil when packaging was
	// skipped or failed.
	Artifact *ArtifactRecord `json:"artifact,omitempty"`

	// ImageTags lists the docker tags that were built.
	ImageTags []string `json:"image_tags,omitempty"`
}

// Duration returns the run wall time.
func (r *BuildRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailedStages returns the stages that failed, in execution order.
func (r *BuildRecord) FailedStages() []StageRecord {
	var failed []StageRecord
	for _, stage := range r.Stages {
		if stage.Status == StageFailed {
			failed = append(failed, stage)
		}
	}
	return failed
}
