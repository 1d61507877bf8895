package trivy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
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
	// ErrTrivyNotFound is returned when the trivy binary is not available.
	ErrTrivyNotFound = errors.New("trivy not found")

	// ErrInvalidOptions is returned for invalid scan options.
	ErrInvalidOptions = errors.New("invalid trivy options")
)

// Compile-time checks that errors implement error interface.
var (
	_ error = ErrTrivyNotFound
	_ error = ErrInvalidOptions
)

// DefaultScanTimeout bounds one image scan. The first run downloads the
// vulnerability database, which dominates the scan time.
const DefaultScanTimeout = 10 * time.Minute

// =============================================================================
// Types
// =============================================================================

// ScanOptions configures one image scan.
type ScanOptions struct {
	// Image is the full image reference to scan. Required.
	Image string

	// ReportPath receives the JSON report. Required.
	ReportPath string

	// Severity limits findings to the given levels ("HIGH", "CRITICAL").
	// Empty means all levels.
	Severity []string

	// SkipDBUpdate scans with the cached vulnerability database.
	// Maps to: --skip-db-update
	SkipDBUpdate bool

	// Timeout is the maximum scan time. Zero means DefaultScanTimeout.
	Timeout time.Duration
}

// ScanResult describes a completed scan.
type ScanResult struct {
	// Image is the reference that was scanned.
	Image string

	// ReportPath is where the JSON report landed.
	ReportPath string

	// ExitCode is the trivy exit code.
	ExitCode int

	// Duration is the scan wall time.
	Duration time.Duration

	// Command is the command that was executed.
	Command string
}

// =============================================================================
// Interface Definition
// =============================================================================

// Scanner runs image vulnerability scans.
//
// # Description
//
// Wraps the trivy CLI the way the docker engine wraps docker: every
// invocation goes through a process.Manager so pipeline stages stay
// free of exec calls and tests substitute MockScanner. The scanner
// produces the JSON report; reading findings out of it is the report
// layer's job.
type Scanner interface {
	// ScanImage scans one image and writes the JSON report.
	//
	// # Description
	//
	// Executes `trivy image -f json -o <report> <image>`, streaming
	// progress output to the writer. Trivy exits zero even when it
	// finds vulnerabilities (no --exit-code is passed), so a nonzero
	// exit means the scan itself broke and comes back as an error.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation and timeout
	//   - opts: Scan options (Image and ReportPath required)
	//   - w: Writer for streaming scanner progress
	//
	// # Outputs
	//
	//   - *ScanResult: Exit code, report location, duration
	//   - error: ErrInvalidOptions, ErrTrivyNotFound, or scan failure
	//
	// # Example
	//
	//	result, err := scanner.ScanImage(ctx, trivy.ScanOptions{
	//	    Image:      "registry.local/gig-router:7",
	//	    ReportPath: layout.TrivyJSON(),
	//	}, logWriter)
	//
	// # Assumptions
	//
	//   - The image exists locally or is pullable by the daemon trivy
	//     talks to
	ScanImage(ctx context.Context, opts ScanOptions, w io.Writer) (*ScanResult, error)
}

// =============================================================================
// Default Implementation
// =============================================================================

// DefaultScanner is the production implementation of Scanner.
type DefaultScanner struct {
	proc process.Manager
}

// Compile-time check that DefaultScanner implements Scanner.
var _ Scanner = (*DefaultScanner)(nil)

// NewDefaultScanner creates a scanner backed by the given process manager.
func NewDefaultScanner(proc process.Manager) (*DefaultScanner, error) {
	if proc == nil {
		return nil, fmt.Errorf("%w: process manager is required", ErrInvalidOptions)
	}
	return &DefaultScanner{proc: proc}, nil
}

// ScanImage implements Scanner.
func (s *DefaultScanner) ScanImage(ctx context.Context, opts ScanOptions, w io.Writer) (*ScanResult, error) {
	if err := validateScanOptions(opts); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(opts.ReportPath), 0o755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}

	args := []string{"image", "-f", "json", "-o", opts.ReportPath}
	if len(opts.Severity) > 0 {
		args = append(args, "--severity", strings.Join(opts.Severity, ","))
	}
	if opts.SkipDBUpdate {
		args = append(args, "--skip-db-update")
	}
	args = append(args, opts.Image)

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultScanTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	command := "trivy " + strings.Join(args, " ")

	exitCode, err := s.proc.RunStreamingInDir(execCtx, "", nil, w, "trivy", args...)
	result := &ScanResult{
		Image:      opts.Image,
		ReportPath: opts.ReportPath,
		ExitCode:   exitCode,
		Duration:   time.Since(start),
		Command:    command,
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return result, fmt.Errorf("trivy: timeout after %v", timeout)
		}
		if strings.Contains(err.Error(), "executable file not found") ||
			strings.Contains(err.Error(), "no such file or directory") {
			return result, fmt.Errorf("%w: %v", ErrTrivyNotFound, err)
		}
		return result, fmt.Errorf("trivy image scan: %w", err)
	}
	if exitCode != 0 {
		return result, util.NewCommandError(command, exitCode, "", nil)
	}
	return result, nil
}

// validateScanOptions checks ScanOptions for required fields.
func validateScanOptions(opts ScanOptions) error {
	if opts.Image == "" {
		return fmt.Errorf("%w: image reference is required", ErrInvalidOptions)
	}
	if strings.HasPrefix(opts.Image, "-") {
		return fmt.Errorf("%w: image reference must not start with a dash: %s", ErrInvalidOptions, opts.Image)
	}
	if opts.ReportPath == "" {
		return fmt.Errorf("%w: report path is required", ErrInvalidOptions)
	}
	for _, severity := range opts.Severity {
		if strings.ContainsAny(severity, " ,") || severity == "" {
			return fmt.Errorf("%w: invalid severity %q", ErrInvalidOptions, severity)
		}
	}
	return nil
}

// =============================================================================
// Mock Implementation
// =============================================================================

// ScanCall records one ScanImage invocation.
type ScanCall struct {
	Image      string
	ReportPath string
	Severity   []string
}

// MockScanner is a test double for Scanner.
type MockScanner struct {
	ScanImageFunc func(context.Context, ScanOptions, io.Writer) (*ScanResult, error)

	ScanImageCalls []ScanCall
	mu             sync.Mutex
}

// Compile-time check that MockScanner implements Scanner.
var _ Scanner = (*MockScanner)(nil)

// ScanImage implements Scanner.
func (m *MockScanner) ScanImage(ctx context.Context, opts ScanOptions, w io.Writer) (*ScanResult, error) {
	m.mu.Lock()
	m.ScanImageCalls = append(m.ScanImageCalls, ScanCall{
		Image:      opts.Image,
		ReportPath: opts.ReportPath,
		Severity:   append([]string(nil), opts.Severity...),
	})
	m.mu.Unlock()

	if m.ScanImageFunc != nil {
		return m.ScanImageFunc(ctx, opts, w)
	}
	return &ScanResult{
		Image:      opts.Image,
		ReportPath: opts.ReportPath,
		ExitCode:   0,
	}, nil
}

// GetScanImageCalls returns a copy of recorded calls.
func (m *MockScanner) GetScanImageCalls() []ScanCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]ScanCall, len(m.ScanImageCalls))
	copy(calls, m.ScanImageCalls)
	return calls
}
