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
Package pipeline sequences build stages under the two-tier error
policy.

Fatal stages stop the run; best-effort stages degrade it to UNSTABLE
and the run continues. Cleanup actions registered on the runner always
execute, on a fresh context, no matter how the stages went. This is
deliberately not a saga: nothing is compensated or rolled back, because
a failed build must leave its reports and logs in place for diagnosis
while the ephemeral infrastructure still gets torn down.
*/
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/history"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/util"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrNoStages is returned when Execute is called on an empty runner.
	ErrNoStages = errors.New("pipeline has no stages")

	// ErrInvalidStage is returned for stages missing a name or run function.
	ErrInvalidStage = errors.New("invalid pipeline stage")
)

// Compile-time checks that errors implement error interface.
var (
	_ error = ErrNoStages
	_ error = ErrInvalidStage
)

// =============================================================================
// Stage Types
// =============================================================================

// StagePolicy decides what a stage failure does to the run.
type StagePolicy string

const (
	// PolicyFatal stops the run. Remaining stages are skipped and the
	// build is FAILED.
	PolicyFatal StagePolicy = "fatal"

	// PolicyBestEffort records the failure, degrades the build to
	// UNSTABLE, and lets the run continue.
	PolicyBestEffort StagePolicy = "best-effort"
)

// Stage is one unit of pipeline work.
//
// # Description
//
// A stage couples a run function with its error policy. The optional
// Skip predicate is evaluated just before the stage would run, so a
// skip decision can depend on what earlier stages produced.
//
// # Example
//
//	runner.AddStage(pipeline.Stage{
//	    Name:   "Unit Tests",
//	    Policy: pipeline.PolicyFatal,
//	    Skip: func() (bool, string) {
//	        return params.SkipTests, "SKIP_TESTS parameter"
//	    },
//	    Run: func(ctx context.Context) error {
//	        _, err := toolchain.RunPytest(ctx, pytestOpts)
//	        return err
//	    },
//	})
//
// # Assumptions
//
//   - Run respects context cancellation
//   - Skip is fast and side-effect free
type Stage struct {
	// Name identifies the stage in logs, results, and history.
	Name string

	// Policy decides whether a failure is fatal or best-effort.
	Policy StagePolicy

	// Run performs the stage work.
	Run func(ctx context.Context) error

	// Skip, when non-nil and returning true, records the stage as
	// SKIPPED with the given reason instead of running it.
	Skip func() (bool, string)

	// Timeout overrides the runner's default stage timeout.
	Timeout time.Duration
}

// StageResult is the outcome of one stage.
type StageResult struct {
	// Name is the stage name.
	Name string

	// Status is PASSED, UNSTABLE, FAILED, or SKIPPED.
	Status history.StageStatus

	// Duration is the stage wall time (zero for skipped stages).
	Duration time.Duration

	// Err is the stage error for FAILED and UNSTABLE stages.
	Err error

	// SkipReason explains a SKIPPED status.
	SkipReason string
}

// Result is the outcome of one pipeline run.
type Result struct {
	// Status is the overall build outcome.
	Status history.BuildStatus

	// Stages holds one result per configured stage, in order.
	Stages []StageResult

	// Duration is the total run time including cleanup.
	Duration time.Duration

	// FirstFailure is the error that stopped the run, nil unless FAILED.
	FirstFailure error

	// CleanupErrors collects cleanup failures. They never change Status.
	CleanupErrors []string
}

// ExitCode maps the build status to a process exit code. UNSTABLE is a
// shipping build with warnings, so it exits zero like SUCCESS.
func (r *Result) ExitCode() int {
	if r.Status == history.StatusFailed {
		return 1
	}
	return 0
}

// StageRecords converts the stage results to their stored form.
func (r *Result) StageRecords() []history.StageRecord {
	records := make([]history.StageRecord, 0, len(r.Stages))
	for _, stage := range r.Stages {
		record := history.StageRecord{
			Name:     stage.Name,
			Status:   stage.Status,
			Duration: stage.Duration,
		}
		switch {
		case stage.Err != nil:
			record.Error = stage.Err.Error()
		case stage.SkipReason != "":
			record.Error = stage.SkipReason
		}
		records = append(records, record)
	}
	return records
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures runner behavior.
type Config struct {
	// StageTimeout is the default timeout per stage.
	// Default: util.DefaultStageTimeout
	StageTimeout time.Duration

	// CleanupTimeout bounds each cleanup action.
	// Default: 5 minutes
	CleanupTimeout time.Duration

	// Logger receives stage lifecycle events.
	// Default: slog.Default()
	Logger *slog.Logger

	// OnStageStart is called before each stage runs.
	OnStageStart func(stage Stage)

	// OnStageComplete is called after each stage resolves, including
	// skips.
	OnStageComplete func(result StageResult)
}

// =============================================================================
// Executor Interface
// =============================================================================

// Executor runs a configured sequence of stages.
//
// # Thread Safety
//
// Implementations serialize Execute; concurrent calls on the same
// instance block until the preceding run completes.
type Executor interface {
	// AddStage appends a stage. Stages run in the order added.
	AddStage(stage Stage) error

	// AddCleanup registers an always-run cleanup action. Cleanup runs
	// in registration order after the stages, regardless of outcome.
	AddCleanup(name string, fn func(ctx context.Context) error)

	// Execute runs the stages under the error policy and then cleanup.
	Execute(ctx context.Context) (*Result, error)
}

// =============================================================================
// Runner
// =============================================================================

// cleanupAction is one registered cleanup step.
type cleanupAction struct {
	name string
	fn   func(ctx context.Context) error
}

// Runner is the production implementation of Executor.
type Runner struct {
	config  Config
	stages  []Stage
	cleanup []cleanupAction
	mu      sync.Mutex
}

// Compile-time check that Runner implements Executor.
var _ Executor = (*Runner)(nil)

// NewRunner creates an empty runner. Zero config values get defaults.
func NewRunner(config Config) *Runner {
	if config.StageTimeout <= 0 {
		config.StageTimeout = util.DefaultStageTimeout
	}
	if config.CleanupTimeout <= 0 {
		config.CleanupTimeout = 5 * time.Minute
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Runner{config: config}
}

// AddStage implements Executor.
func (r *Runner) AddStage(stage Stage) error {
	if stage.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidStage)
	}
	if stage.Run == nil {
		return fmt.Errorf("%w: %s has no run function", ErrInvalidStage, stage.Name)
	}
	if stage.Policy == "" {
		stage.Policy = PolicyFatal
	}
	if stage.Policy != PolicyFatal && stage.Policy != PolicyBestEffort {
		return fmt.Errorf("%w: %s has unknown policy %q", ErrInvalidStage, stage.Name, stage.Policy)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
	return nil
}

// AddCleanup implements Executor.
func (r *Runner) AddCleanup(name string, fn func(ctx context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanup = append(r.cleanup, cleanupAction{name: name, fn: fn})
}

// Execute implements Executor.
//
// # Description
//
// Runs each stage in order. A fatal failure marks the remaining stages
// SKIPPED and the build FAILED; best-effort failures mark their stage
// UNSTABLE and degrade a would-be SUCCESS to UNSTABLE. Cleanup actions
// then run on a fresh background context so a cancelled build still
// tears down its infrastructure; their failures land in
// Result.CleanupErrors and never change the build status.
//
// # Outputs
//
//   - *Result: Always non-nil, one entry per stage.
//   - error: The fatal failure for FAILED runs, nil otherwise.
func (r *Runner) Execute(ctx context.Context) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.stages) == 0 {
		return nil, ErrNoStages
	}

	start := time.Now()
	result := &Result{
		Status: history.StatusSuccess,
		Stages: make([]StageResult, 0, len(r.stages)),
	}

	for _, stage := range r.stages {
		if err := ctx.Err(); err != nil {
			if result.FirstFailure == nil {
				result.Status = history.StatusFailed
				result.FirstFailure = fmt.Errorf("pipeline cancelled: %w", err)
			}
			r.recordSkip(result, stage, "pipeline cancelled")
			continue
		}
		if result.FirstFailure != nil {
			r.recordSkip(result, stage, "earlier stage failed")
			continue
		}
		if stage.Skip != nil {
			if skip, reason := stage.Skip(); skip {
				r.recordSkip(result, stage, reason)
				continue
			}
		}

		stageResult := r.executeStage(ctx, stage)
		result.Stages = append(result.Stages, stageResult)
		if r.config.OnStageComplete != nil {
			r.config.OnStageComplete(stageResult)
		}

		if stageResult.Err == nil {
			continue
		}
		switch stage.Policy {
		case PolicyBestEffort:
			if result.Status == history.StatusSuccess {
				result.Status = history.StatusUnstable
			}
		default:
			result.Status = history.StatusFailed
			result.FirstFailure = fmt.Errorf("stage %q failed: %w", stage.Name, stageResult.Err)
		}
	}

	result.CleanupErrors = r.runCleanup()
	result.Duration = time.Since(start)

	r.config.Logger.Info("pipeline finished",
		slog.String("status", string(result.Status)),
		slog.Duration("duration", result.Duration))

	return result, result.FirstFailure
}

// executeStage runs one stage under its timeout.
//
// # Description
//
// The stage function runs in a goroutine so a stage that ignores its
// context still cannot hold the pipeline past the timeout; such a
// stage leaks its goroutine, which is the lesser evil against a hung
// build.
func (r *Runner) executeStage(ctx context.Context, stage Stage) StageResult {
	if r.config.OnStageStart != nil {
		r.config.OnStageStart(stage)
	}

	timeout := stage.Timeout
	if timeout <= 0 {
		timeout = r.config.StageTimeout
	}

	r.config.Logger.Info("stage starting",
		slog.String("stage", stage.Name),
		slog.String("policy", string(stage.Policy)))
	start := time.Now()

	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- stage.Run(stageCtx)
	}()

	var err error
	select {
	case err = <-done:
	case <-stageCtx.Done():
		err = fmt.Errorf("stage timed out after %v", timeout)
	}

	result := StageResult{
		Name:     stage.Name,
		Duration: time.Since(start),
		Err:      err,
	}
	switch {
	case err == nil:
		result.Status = history.StagePassed
		r.config.Logger.Info("stage passed",
			slog.String("stage", stage.Name),
			slog.Duration("duration", result.Duration))
	case stage.Policy == PolicyBestEffort:
		result.Status = history.StageUnstable
		r.config.Logger.Warn("stage unstable",
			slog.String("stage", stage.Name),
			slog.Duration("duration", result.Duration),
			slog.String("error", err.Error()))
	default:
		result.Status = history.StageFailed
		r.config.Logger.Error("stage failed",
			slog.String("stage", stage.Name),
			slog.Duration("duration", result.Duration),
			slog.String("error", err.Error()))
	}
	return result
}

// recordSkip appends a SKIPPED result without running the stage.
func (r *Runner) recordSkip(result *Result, stage Stage, reason string) {
	skipped := StageResult{
		Name:       stage.Name,
		Status:     history.StageSkipped,
		SkipReason: reason,
	}
	result.Stages = append(result.Stages, skipped)
	r.config.Logger.Info("stage skipped",
		slog.String("stage", stage.Name),
		slog.String("reason", reason))
	if r.config.OnStageComplete != nil {
		r.config.OnStageComplete(skipped)
	}
}

// runCleanup executes every cleanup action on a fresh context.
//
// # Description
//
// Cleanup must run even when the build context is cancelled, so each
// action gets its own timeout off context.Background(). Failures are
// logged and collected; a cleanup failure never fails the build.
func (r *Runner) runCleanup() []string {
	if len(r.cleanup) == 0 {
		return nil
	}

	var failures []string
	for _, action := range r.cleanup {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), r.config.CleanupTimeout)
		err := action.fn(cleanupCtx)
		cancel()

		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", action.name, err))
			r.config.Logger.Warn("cleanup action failed",
				slog.String("action", action.name),
				slog.String("error", err.Error()))
			continue
		}
		r.config.Logger.Debug("cleanup action completed", slog.String("action", action.name))
	}
	return failures
}
