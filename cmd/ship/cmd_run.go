// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianShip/cmd/ship/config"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/history"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/infra/process"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/server"
	"github.com/AleutianAI/AleutianShip/pkg/ux"
	"github.com/AleutianAI/AleutianShip/pkg/validation"
)

// Environment fallbacks, named exactly as the Jenkins job exports them
// so the binary drops into an existing agent unchanged.
const (
	envRepoURL       = "GIT_REPO_URL"
	envBranch        = "GIT_BRANCH"
	envSkipTests     = "SKIP_TESTS"
	envSkipSonarQube = "SKIP_SONARQUBE"
	envBuildNumber   = "BUILD_NUMBER"
)

// serverShutdownTimeout bounds the observation server drain after the
// build finishes.
const serverShutdownTimeout = 5 * time.Second

// runPipelineCommand executes the run command.
//
// # Description
//
// Resolves the build parameters from flags and environment, allocates a
// build number, takes the per-build lock, optionally starts the
// observation server, and hands the run to the pipeline manager. The
// process exit code is 0 for SUCCESS and UNSTABLE builds and 1 for
// FAILED ones, matching the Jenkins job this binary replaces.
func runPipelineCommand(cmd *cobra.Command, args []string) {
	os.Exit(executeRun())
}

// executeRun is the run command body. It returns the process exit code
// instead of calling os.Exit so the deferred cleanup (lock release,
// store close, server drain) actually runs.
func executeRun() int {
	opts, explicit, err := resolveRunParameters()
	if err != nil {
		ux.Error(err.Error())
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, storeErr := OpenHistoryStore()
	if storeErr != nil {
		if explicit == 0 {
			ux.Error(fmt.Sprintf("cannot allocate a build number: %v", storeErr))
			return 1
		}
		ux.Warning(fmt.Sprintf("history store unavailable, build will not be recorded: %v", storeErr))
		store = nil
	} else {
		defer store.Close()
	}

	buildNumber, err := allocateBuildNumber(ctx, store, explicit)
	if err != nil {
		ux.Error(err.Error())
		return 1
	}

	lockConfig := process.DefaultBuildLockConfig()
	lockConfig.LockName = process.BuildLockName(buildNumber)
	lock := process.NewBuildLock(lockConfig)
	if err := lock.Acquire(); err != nil {
		ux.Error(err.Error())
		return 1
	}
	defer lock.Release()

	run := RunEnvironment{
		BuildNumber: buildNumber,
		CLIVersion:  cliVersion,
		History:     store,
	}

	if statusAddr != "" {
		srv := server.New(server.Config{Addr: statusAddr, Version: cliVersion})
		addr, err := srv.Start()
		if err != nil {
			ux.Warning(fmt.Sprintf("observation server did not start: %v", err))
		} else {
			ux.Muted(fmt.Sprintf("observing on http://%s/api/v1/build", addr))
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			run.Reporter = &statusReporter{server: srv}
		}
	}

	printRunHeader(buildNumber, opts)

	record, runErr := startPipeline(ctx, NewDefaultPipelineFactory(), run, opts)
	if record != nil {
		fmt.Print(formatBuildSummary(record))
	}
	if runErr != nil {
		ux.Error(runErr.Error())
	}
	if record == nil {
		return 1
	}
	return exitCodeFor(record.Status)
}

// startPipeline assembles the manager for one run and executes it.
func startPipeline(ctx context.Context, factory PipelineFactory, run RunEnvironment, opts RunOptions) (*history.BuildRecord, error) {
	mgr, err := factory.CreatePipelineManager(ctx, &config.Global, run)
	if err != nil {
		return nil, fmt.Errorf("assembling the pipeline: %w", err)
	}
	return mgr.Run(ctx, opts)
}

// resolveRunParameters merges the run flags with their environment
// fallbacks.
//
// # Description
//
// Flags win over environment variables; empty strings and false
// booleans fall through. Repository and branch left empty by both
// sources stay empty here and resolve against the configuration inside
// the manager.
//
// # Outputs
//
//   - RunOptions: Repository, branch, and skip switches for the run.
//   - int: The explicit build number, 0 when neither source supplies
//     one (the caller then allocates from the history sequence).
//   - error: Non-nil when BUILD_NUMBER is not an integer or the
//     resolved number is negative.
func resolveRunParameters() (RunOptions, int, error) {
	opts := RunOptions{
		RepoURL:       runRepoURL,
		Branch:        runBranch,
		SkipTests:     runSkipTests || envBool(envSkipTests),
		SkipSonarQube: runSkipSonarQube || envBool(envSkipSonarQube),
	}
	if opts.RepoURL == "" {
		opts.RepoURL = os.Getenv(envRepoURL)
	}
	if opts.Branch == "" {
		opts.Branch = os.Getenv(envBranch)
	}
	if opts.Branch != "" {
		branch, err := validation.SanitizeBranch(opts.Branch)
		if err != nil {
			return RunOptions{}, 0, err
		}
		opts.Branch = branch
	}

	buildNumber := runBuildNumber
	if buildNumber == 0 {
		if raw := os.Getenv(envBuildNumber); raw != "" {
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return RunOptions{}, 0, fmt.Errorf("%s must be an integer, got %q", envBuildNumber, raw)
			}
			buildNumber = n
		}
	}
	if buildNumber < 0 {
		return RunOptions{}, 0, fmt.Errorf("build number must be positive, got %d", buildNumber)
	}
	return opts, buildNumber, nil
}

// allocateBuildNumber returns the explicit number when one was given,
// otherwise draws the next number from the history sequence.
func allocateBuildNumber(ctx context.Context, store history.Store, explicit int) (int, error) {
	if explicit > 0 {
		return explicit, nil
	}
	if store == nil {
		return 0, fmt.Errorf("no build number given and no history store to allocate one from")
	}
	n, err := store.NextBuildNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("allocating build number: %w", err)
	}
	return n, nil
}

// envBool reads a boolean environment variable the way Jenkins writes
// them: "true", "1", and "yes" count as true in any case.
func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// exitCodeFor maps the final build status to the process exit code.
// UNSTABLE exits 0: the Jenkins job never failed a build on scan
// findings, and callers gate on the status string instead.
func exitCodeFor(status history.BuildStatus) int {
	if status == history.StatusFailed {
		return 1
	}
	return 0
}

// printRunHeader announces the run before the first stage banner.
func printRunHeader(buildNumber int, opts RunOptions) {
	repo := opts.RepoURL
	if repo == "" {
		repo = config.Global.Pipeline.RepoURL
	}
	branch := opts.Branch
	if branch == "" {
		branch = config.Global.Pipeline.GetBranch()
	}

	ux.Title(fmt.Sprintf("%s %s build #%d", ux.IconShip.Render(),
		config.Global.Pipeline.GetAppName(), buildNumber))
	if repo != "" {
		ux.Muted(fmt.Sprintf("%s @ %s", repo, branch))
	}
	fmt.Println()
}

// formatBuildSummary renders the end-of-run stage table.
//
// The manager already printed per-stage progress while running; this is
// the recap a human scans after the fact, with the same status words
// the history records use.
func formatBuildSummary(record *history.BuildRecord) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Build #%d: %s in %v\n",
		record.BuildNumber,
		ux.StatusLabel(string(record.Status)),
		record.Duration().Round(time.Millisecond)))
	writeRecordBody(&b, record)

	return b.String()
}

// writeRecordBody appends the stage table and the report sections, the
// part of a record the run summary and `history show` render the same
// way.
func writeRecordBody(b *strings.Builder, record *history.BuildRecord) {
	for _, stage := range record.Stages {
		b.WriteString(fmt.Sprintf("  %s %-28s %10v\n",
			ux.StatusIcon(string(stage.Status)),
			stage.Name,
			stage.Duration.Round(time.Millisecond)))
		if stage.Error != "" {
			b.WriteString(fmt.Sprintf("      %s\n", stage.Error))
		}
	}

	if record.Commit != "" {
		b.WriteString(fmt.Sprintf("  commit:       %s\n", record.Commit))
	}
	if record.Tests != nil {
		b.WriteString(fmt.Sprintf("  tests:        %d total, %d passed, %d failed, %d errors, %d skipped\n",
			record.Tests.Total, record.Tests.Passed, record.Tests.Failed,
			record.Tests.Errors, record.Tests.Skipped))
	}
	if record.QualityGate != "" {
		b.WriteString(fmt.Sprintf("  quality gate: %s\n", record.QualityGate))
	}
	for _, scan := range record.Scans {
		b.WriteString(fmt.Sprintf("  %s findings: %d\n", scan.Tool, scan.Findings))
	}
	if record.Artifact != nil {
		b.WriteString(fmt.Sprintf("  artifact:     %s (%s)\n",
			record.Artifact.Path, record.Artifact.SHA256))
	}
	if len(record.ImageTags) > 0 {
		b.WriteString(fmt.Sprintf("  images:       %s\n", strings.Join(record.ImageTags, ", ")))
	}
}

// =============================================================================
// Status Reporter Adapter
// =============================================================================

// statusReporter adapts the observation server to the BuildReporter
// surface. The indirection exists because the server's LogWriter
// returns its concrete *server.LineWriter and the reporter contract
// wants io.Writer.
type statusReporter struct {
	server *server.Server
}

// Compile-time check that statusReporter implements BuildReporter.
var _ BuildReporter = (*statusReporter)(nil)

// BeginBuild implements BuildReporter.
func (r *statusReporter) BeginBuild(buildNumber int, params history.BuildParams) {
	r.server.BeginBuild(buildNumber, params)
}

// StageStarted implements BuildReporter.
func (r *statusReporter) StageStarted(name string) {
	r.server.StageStarted(name)
}

// StageFinished implements BuildReporter.
func (r *statusReporter) StageFinished(record history.StageRecord) {
	r.server.StageFinished(record)
}

// FinishBuild implements BuildReporter.
func (r *statusReporter) FinishBuild(status history.BuildStatus) {
	r.server.FinishBuild(status)
}

// LogWriter implements BuildReporter.
func (r *statusReporter) LogWriter(stage string) io.Writer {
	return r.server.LogWriter(stage)
}
