// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sonar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/infra/process"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/util"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrScannerNotFound is returned when the sonar-scanner binary is
	// missing.
	ErrScannerNotFound = errors.New("sonar-scanner not found")

	// ErrInvalidOptions is returned for invalid configuration or
	// analysis options.
	ErrInvalidOptions = errors.New("invalid sonar options")

	// ErrNoReportTask is returned when the scanner finished without
	// leaving a report-task.txt.
	ErrNoReportTask = errors.New("report task file not found")
)

// Compile-time checks that errors implement error interface.
var (
	_ error = ErrScannerNotFound
	_ error = ErrInvalidOptions
	_ error = ErrNoReportTask
)

// reportTaskRelPath is where the CLI scanner writes its task handle,
// relative to the analyzed directory.
const reportTaskRelPath = ".scannerwork/report-task.txt"

// projectKeyRegex screens project keys before they land on the command
// line. SonarQube permits letters, digits, and -_.: with at least one
// non-digit; the non-digit rule is the server's to enforce.
var projectKeyRegex = regexp.MustCompile(`^[A-Za-z0-9:_.-]+$`)

// =============================================================================
// Types
// =============================================================================

// RunnerConfig configures a DefaultRunner.
type RunnerConfig struct {
	// WorkspaceDir is the absolute path of the source tree to analyze.
	WorkspaceDir string

	// HostURL is the SonarQube base URL.
	HostURL string

	// Token authenticates the scanner. Travels through the process
	// environment (SONAR_TOKEN), never through arguments.
	Token string

	// Timeout bounds the scanner run.
	// Defaults to util.DefaultStageTimeout.
	Timeout time.Duration
}

// AnalyzeOptions configures one analysis submission.
type AnalyzeOptions struct {
	// ProjectKey identifies the project on the server. Required.
	ProjectKey string

	// ProjectVersion tags the analysis, typically the build number.
	ProjectVersion string

	// Sources is the source root relative to the workspace.
	// Defaults to ".".
	Sources string

	// CoverageReport is the coverage XML handed to
	// sonar.python.coverage.reportPaths. Empty skips it.
	CoverageReport string

	// JUnitReport is the test report handed to
	// sonar.python.xunit.reportPath. Empty skips it.
	JUnitReport string

	// Exclusions are glob patterns for sonar.exclusions.
	Exclusions []string
}

// AnalyzeResult describes a submitted analysis.
type AnalyzeResult struct {
	// Task is the parsed report-task.txt handle for gate polling.
	Task ReportTask

	// Duration is the scanner wall time.
	Duration time.Duration
}

// =============================================================================
// Runner Interface
// =============================================================================

// Runner submits a workspace to SonarQube for analysis.
type Runner interface {
	// Analyze runs sonar-scanner over the workspace, streaming scanner
	// output to w, and returns the compute-engine task handle.
	Analyze(ctx context.Context, w io.Writer, opts AnalyzeOptions) (*AnalyzeResult, error)
}

// =============================================================================
// Default Implementation
// =============================================================================

// DefaultRunner implements Runner with the sonar-scanner CLI.
type DefaultRunner struct {
	proc      process.Manager
	workspace string
	hostURL   string
	token     string
	timeout   time.Duration
}

// NewDefaultRunner creates a scanner runner.
//
// # Inputs
//
//   - config: Workspace, server, and credential settings.
//   - proc: Process manager used to execute the scanner. Required.
//
// # Outputs
//
//   - *DefaultRunner: Ready-to-use runner.
//   - error: Non-nil if the configuration is invalid.
func NewDefaultRunner(config RunnerConfig, proc process.Manager) (*DefaultRunner, error) {
	if proc == nil {
		return nil, fmt.Errorf("%w: process manager is required", ErrInvalidOptions)
	}
	if config.WorkspaceDir == "" {
		return nil, fmt.Errorf("%w: workspace directory is required", ErrInvalidOptions)
	}
	if !filepath.IsAbs(config.WorkspaceDir) {
		return nil, fmt.Errorf("%w: workspace directory must be absolute: %s", ErrInvalidOptions, config.WorkspaceDir)
	}
	if err := validateHostURL(config.HostURL); err != nil {
		return nil, err
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = util.DefaultStageTimeout
	}

	return &DefaultRunner{
		proc:      proc,
		workspace: config.WorkspaceDir,
		hostURL:   strings.TrimRight(config.HostURL, "/"),
		token:     config.Token,
		timeout:   timeout,
	}, nil
}

// Compile-time check that DefaultRunner implements Runner.
var _ Runner = (*DefaultRunner)(nil)

// Analyze implements Runner.
//
// # Description
//
// Builds the -D property arguments, streams the scanner run, then
// parses the report-task.txt the scanner leaves under .scannerwork.
// The token rides the SONAR_TOKEN environment variable so credentials
// never appear in the command line.
func (r *DefaultRunner) Analyze(ctx context.Context, w io.Writer, opts AnalyzeOptions) (*AnalyzeResult, error) {
	args, err := r.analyzeArgs(opts)
	if err != nil {
		return nil, err
	}

	var env []string
	if r.token != "" {
		env = append(os.Environ(), "SONAR_TOKEN="+r.token)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	exit, err := r.proc.RunStreamingInDir(runCtx, r.workspace, env, w, "sonar-scanner", args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("sonar-scanner: timeout after %v", r.timeout)
		}
		if strings.Contains(err.Error(), "executable file not found") {
			return nil, fmt.Errorf("%w: %v", ErrScannerNotFound, err)
		}
		return nil, fmt.Errorf("sonar-scanner: %w", err)
	}
	if exit != 0 {
		return nil, util.NewCommandError("sonar-scanner "+strings.Join(args, " "), exit, "", nil)
	}

	task, err := ParseReportTaskFile(filepath.Join(r.workspace, filepath.FromSlash(reportTaskRelPath)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: scanner succeeded but left no %s", ErrNoReportTask, reportTaskRelPath)
		}
		return nil, err
	}
	if task.CeTaskID == "" {
		return nil, fmt.Errorf("%w: report task carries no ceTaskId", ErrNoReportTask)
	}

	return &AnalyzeResult{Task: *task, Duration: time.Since(start)}, nil
}

// analyzeArgs renders the scanner property arguments.
func (r *DefaultRunner) analyzeArgs(opts AnalyzeOptions) ([]string, error) {
	if opts.ProjectKey == "" {
		return nil, fmt.Errorf("%w: project key is required", ErrInvalidOptions)
	}
	if !projectKeyRegex.MatchString(opts.ProjectKey) {
		return nil, fmt.Errorf("%w: invalid project key %q", ErrInvalidOptions, opts.ProjectKey)
	}

	sources := opts.Sources
	if sources == "" {
		sources = "."
	}

	args := []string{
		"-Dsonar.projectKey=" + opts.ProjectKey,
		"-Dsonar.host.url=" + r.hostURL,
		"-Dsonar.sources=" + sources,
	}
	if opts.ProjectVersion != "" {
		args = append(args, "-Dsonar.projectVersion="+opts.ProjectVersion)
	}
	if opts.CoverageReport != "" {
		args = append(args, "-Dsonar.python.coverage.reportPaths="+opts.CoverageReport)
	}
	if opts.JUnitReport != "" {
		args = append(args, "-Dsonar.python.xunit.reportPath="+opts.JUnitReport)
	}
	if len(opts.Exclusions) > 0 {
		args = append(args, "-Dsonar.exclusions="+strings.Join(opts.Exclusions, ","))
	}
	return args, nil
}

// validateHostURL requires an absolute http(s) URL.
func validateHostURL(hostURL string) error {
	if hostURL == "" {
		return fmt.Errorf("%w: host URL is required", ErrInvalidOptions)
	}
	u, err := url.Parse(hostURL)
	if err != nil {
		return fmt.Errorf("%w: invalid host URL: %v", ErrInvalidOptions, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: host URL must be http or https, got %q", ErrInvalidOptions, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host URL has no host", ErrInvalidOptions)
	}
	return nil
}

// =============================================================================
// Mock Implementation
// =============================================================================

// MockRunner is a test double for Runner.
//
// # Description
//
// Unconfigured, Analyze returns a plausible task handle. Calls are
// recorded; the runner's token never appears in AnalyzeOptions, so
// records are secret-free by construction.
type MockRunner struct {
	AnalyzeFunc func(context.Context, io.Writer, AnalyzeOptions) (*AnalyzeResult, error)

	AnalyzeCalls []AnalyzeOptions
	mu           sync.Mutex
}

// Compile-time check that MockRunner implements Runner.
var _ Runner = (*MockRunner)(nil)

// Analyze implements Runner.
func (m *MockRunner) Analyze(ctx context.Context, w io.Writer, opts AnalyzeOptions) (*AnalyzeResult, error) {
	m.mu.Lock()
	m.AnalyzeCalls = append(m.AnalyzeCalls, opts)
	m.mu.Unlock()

	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, w, opts)
	}
	return &AnalyzeResult{
		Task: ReportTask{
			CeTaskID:   "AYxT5mock0001",
			ProjectKey: opts.ProjectKey,
			ServerURL:  "http://localhost:9000",
			CeTaskURL:  "http://localhost:9000/api/ce/task?id=AYxT5mock0001",
		},
	}, nil
}

// GetAnalyzeCalls returns a copy of recorded calls.
func (m *MockRunner) GetAnalyzeCalls() []AnalyzeOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]AnalyzeOptions, len(m.AnalyzeCalls))
	copy(calls, m.AnalyzeCalls)
	return calls
}
