// Package pybuild drives the Python side of the pipeline: virtualenv
// bootstrap, dependency install, Django migrations, pytest, and the
// flake8/bandit/safety analysis tools. Every tool runs out of the build
// workspace's own virtualenv through a process.Manager; findings never
// surface as errors, only genuine tool failures do.
package pybuild

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/infra/process"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/util"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrInvalidConfig is returned when the toolchain Config is invalid.
	ErrInvalidConfig = errors.New("invalid toolchain configuration")

	// ErrToolNotFound is returned when an interpreter or virtualenv tool
	// binary is missing.
	ErrToolNotFound = errors.New("python tool not found")

	// ErrNoMigrations is returned when the migration table exists but
	// records no applied migrations.
	ErrNoMigrations = errors.New("no applied migrations recorded")

	// ErrInvalidArgument is returned when a caller-supplied value could
	// be parsed as a flag by the underlying tool.
	ErrInvalidArgument = errors.New("invalid tool argument")
)

// Compile-time checks that errors implement error interface.
var (
	_ error = ErrInvalidConfig
	_ error = ErrToolNotFound
	_ error = ErrNoMigrations
	_ error = ErrInvalidArgument
)

// PytestExitNoTests is pytest's exit code when no tests were collected.
// The pipeline treats it as success.
const PytestExitNoTests = 5

// verifyTimeout bounds the migration verification query.
const verifyTimeout = 30 * time.Second

// =============================================================================
// Types
// =============================================================================

// Config configures a DefaultToolchain.
type Config struct {
	// WorkspaceDir is the absolute path of the checked-out source tree.
	WorkspaceDir string

	// VenvDir is the virtualenv location. Relative paths are resolved
	// against WorkspaceDir. Defaults to ".venv".
	VenvDir string

	// Python is the interpreter used to bootstrap the virtualenv.
	// Defaults to "python3".
	Python string

	// Timeout bounds each tool invocation.
	// Defaults to util.DefaultStageTimeout.
	Timeout time.Duration
}

// PytestOptions configures a test run.
type PytestOptions struct {
	// JUnitXML is the JUnit report target (--junitxml). Empty skips it.
	JUnitXML string

	// CoverageXML is the XML coverage report target. Empty skips it.
	CoverageXML string

	// CoverageHTML is the HTML coverage report directory. Empty skips it.
	CoverageHTML string

	// Env is additional environment for the test process
	// (DATABASE_URL, REDIS_URL, SECRET_KEY, ...).
	Env []string
}

// Flake8Options configures a lint run.
type Flake8Options struct {
	// ReportPath receives the findings. Defaults to "reports/flake8.txt".
	ReportPath string

	// Exclude lists extra patterns for flake8's --exclude. The
	// virtualenv directory is always excluded.
	Exclude []string
}

// BanditOptions configures a bandit scan.
type BanditOptions struct {
	// ReportPath receives the JSON report. Defaults to
	// "reports/bandit.json".
	ReportPath string

	// Exclude lists extra paths for bandit's -x. The virtualenv
	// directory is always excluded.
	Exclude []string
}

// TestResult describes a completed pytest run.
type TestResult struct {
	// ExitCode is pytest's exit code (0, or PytestExitNoTests).
	ExitCode int

	// NoTestsCollected is true when pytest exited with
	// PytestExitNoTests.
	NoTestsCollected bool

	// Duration is the test run wall time.
	Duration time.Duration

	// Command is the executed command line.
	Command string
}

// LintResult describes a completed flake8 run.
type LintResult struct {
	// ExitCode is flake8's exit code (0 under --exit-zero unless the
	// tool itself broke).
	ExitCode int

	// ReportPath is where the findings were written.
	ReportPath string

	// Duration is the lint run wall time.
	Duration time.Duration
}

// ScanResult describes a completed bandit or safety run.
type ScanResult struct {
	// Tool is "bandit" or "safety".
	Tool string

	// ExitCode is the tool's exit code.
	ExitCode int

	// IssuesFound is true when the tool reported findings. Findings are
	// a result, not an error.
	IssuesFound bool

	// ReportPath is where the JSON report was written.
	ReportPath string

	// Duration is the scan wall time.
	Duration time.Duration
}

// MigrationCountFunc counts applied migrations for a database.
type MigrationCountFunc func(ctx context.Context, dsn string) (int, error)

// =============================================================================
// Toolchain Interface
// =============================================================================

// Toolchain runs the Python build and analysis tools for a workspace.
//
// # Description
//
// One method per pipeline operation. Streaming methods write interleaved
// tool output to the supplied writer as it is produced; on failure the
// returned error carries the command and exit code while the diagnostic
// detail lives in the streamed output.
type Toolchain interface {
	// CreateVenv bootstraps the workspace virtualenv.
	CreateVenv(ctx context.Context) error

	// UpgradePip upgrades pip inside the virtualenv.
	UpgradePip(ctx context.Context, w io.Writer) error

	// InstallRequirements installs a requirements file into the
	// virtualenv.
	InstallRequirements(ctx context.Context, w io.Writer, requirementsFile string) error

	// InstallPackages installs named packages into the virtualenv.
	InstallPackages(ctx context.Context, w io.Writer, packages ...string) error

	// Migrate applies Django migrations with the given extra environment.
	Migrate(ctx context.Context, w io.Writer, extraEnv []string) error

	// VerifyMigrations checks that applied migrations are recorded in
	// django_migrations and returns their count.
	VerifyMigrations(ctx context.Context, dsn string) (int, error)

	// RunPytest executes the test suite. Exit code PytestExitNoTests is
	// success; any other non-zero exit is an error.
	RunPytest(ctx context.Context, w io.Writer, opts PytestOptions) (*TestResult, error)

	// RunFlake8 lints the source tree under --exit-zero.
	RunFlake8(ctx context.Context, opts Flake8Options) (*LintResult, error)

	// RunBandit scans the source tree for security issues.
	RunBandit(ctx context.Context, opts BanditOptions) (*ScanResult, error)

	// RunSafety checks the virtualenv's installed packages for known
	// vulnerabilities.
	RunSafety(ctx context.Context, reportPath string) (*ScanResult, error)
}

// =============================================================================
// Default Implementation
// =============================================================================

// DefaultToolchain implements Toolchain against a real workspace.
//
// # Description
//
// Holds no mutable state after construction; all methods are safe for
// concurrent use, though the pipeline runs them sequentially.
type DefaultToolchain struct {
	proc            process.Manager
	workspace       string
	venvDir         string
	python          string
	timeout         time.Duration
	countMigrations MigrationCountFunc
}

// NewDefaultToolchain creates a toolchain for a workspace.
//
// # Inputs
//
//   - config: Toolchain configuration. See Config for defaults.
//   - proc: Process manager used to execute tools. Required.
//
// # Outputs
//
//   - *DefaultToolchain: Ready-to-use toolchain.
//   - error: Non-nil if the configuration is invalid.
func NewDefaultToolchain(config Config, proc process.Manager) (*DefaultToolchain, error) {
	return NewDefaultToolchainWithMigrationCount(config, proc, defaultCountMigrations)
}

// NewDefaultToolchainWithMigrationCount creates a toolchain with a custom
// migration counter. Tests inject a counter to avoid needing a live
// Postgres.
func NewDefaultToolchainWithMigrationCount(config Config, proc process.Manager, count MigrationCountFunc) (*DefaultToolchain, error) {
	if proc == nil {
		return nil, fmt.Errorf("%w: process manager is required", ErrInvalidConfig)
	}
	if count == nil {
		return nil, fmt.Errorf("%w: migration counter is required", ErrInvalidConfig)
	}
	if config.WorkspaceDir == "" {
		return nil, fmt.Errorf("%w: workspace directory is required", ErrInvalidConfig)
	}
	if !filepath.IsAbs(config.WorkspaceDir) {
		return nil, fmt.Errorf("%w: workspace directory must be absolute: %s", ErrInvalidConfig, config.WorkspaceDir)
	}

	python := config.Python
	if python == "" {
		python = "python3"
	}
	if strings.HasPrefix(python, "-") {
		return nil, fmt.Errorf("%w: interpreter must not start with a dash", ErrInvalidConfig)
	}

	venvDir := config.VenvDir
	if venvDir == "" {
		venvDir = ".venv"
	}
	if !filepath.IsAbs(venvDir) {
		venvDir = filepath.Join(config.WorkspaceDir, venvDir)
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = util.DefaultStageTimeout
	}

	return &DefaultToolchain{
		proc:            proc,
		workspace:       config.WorkspaceDir,
		venvDir:         venvDir,
		python:          python,
		timeout:         timeout,
		countMigrations: count,
	}, nil
}

// Compile-time check that DefaultToolchain implements Toolchain.
var _ Toolchain = (*DefaultToolchain)(nil)

// VenvDir returns the resolved virtualenv directory.
func (tc *DefaultToolchain) VenvDir() string {
	return tc.venvDir
}

// CreateVenv bootstraps the workspace virtualenv.
//
// Re-running against an existing virtualenv is harmless; python -m venv
// repairs rather than recreates.
func (tc *DefaultToolchain) CreateVenv(ctx context.Context) error {
	_, stderr, exit, err := tc.exec(ctx, nil, tc.python, "-m", "venv", tc.venvDir)
	if err != nil {
		return err
	}
	if exit != 0 {
		return util.NewCommandError(commandString(tc.python, "-m", "venv", tc.venvDir), exit, strings.TrimSpace(stderr), nil)
	}
	return nil
}

// UpgradePip upgrades pip inside the virtualenv.
func (tc *DefaultToolchain) UpgradePip(ctx context.Context, w io.Writer) error {
	return tc.streamPip(ctx, w, "install", "--upgrade", "pip")
}

// InstallRequirements installs a requirements file into the virtualenv.
func (tc *DefaultToolchain) InstallRequirements(ctx context.Context, w io.Writer, requirementsFile string) error {
	if requirementsFile == "" {
		requirementsFile = "requirements.txt"
	}
	if strings.HasPrefix(requirementsFile, "-") {
		return fmt.Errorf("%w: requirements file must not start with a dash", ErrInvalidArgument)
	}
	return tc.streamPip(ctx, w, "install", "-r", requirementsFile)
}

// InstallPackages installs named packages into the virtualenv.
func (tc *DefaultToolchain) InstallPackages(ctx context.Context, w io.Writer, packages ...string) error {
	if len(packages) == 0 {
		return fmt.Errorf("%w: at least one package is required", ErrInvalidArgument)
	}
	for _, pkg := range packages {
		if pkg == "" || strings.HasPrefix(pkg, "-") {
			return fmt.Errorf("%w: package name %q is not allowed", ErrInvalidArgument, pkg)
		}
	}
	return tc.streamPip(ctx, w, append([]string{"install"}, packages...)...)
}

// streamPip runs `python -m pip` with the given arguments.
func (tc *DefaultToolchain) streamPip(ctx context.Context, w io.Writer, pipArgs ...string) error {
	python := tc.venvBin("python")
	args := append([]string{"-m", "pip"}, pipArgs...)

	exit, err := tc.execStream(ctx, nil, w, python, args...)
	if err != nil {
		return err
	}
	if exit != 0 {
		return util.NewCommandError(commandString(python, args...), exit, "", nil)
	}
	return nil
}

// Migrate applies Django migrations with the given extra environment.
func (tc *DefaultToolchain) Migrate(ctx context.Context, w io.Writer, extraEnv []string) error {
	python := tc.venvBin("python")
	args := []string{"manage.py", "migrate", "--noinput"}

	exit, err := tc.execStream(ctx, extraEnv, w, python, args...)
	if err != nil {
		return err
	}
	if exit != 0 {
		return util.NewCommandError(commandString(python, args...), exit, "", nil)
	}
	return nil
}

// VerifyMigrations checks that applied migrations are recorded in
// django_migrations and returns their count.
//
// # Description
//
// Queries the ephemeral database directly rather than trusting
// manage.py's exit code; a migrate that silently connected to the wrong
// database would otherwise pass. The DSN must carry any required
// parameters (the ephemeral Postgres needs sslmode=disable).
func (tc *DefaultToolchain) VerifyMigrations(ctx context.Context, dsn string) (int, error) {
	if dsn == "" {
		return 0, fmt.Errorf("%w: database DSN is required", ErrInvalidArgument)
	}

	queryCtx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	count, err := tc.countMigrations(queryCtx, dsn)
	if err != nil {
		return 0, fmt.Errorf("django_migrations check: %w", err)
	}
	if count == 0 {
		return 0, fmt.Errorf("%w: django_migrations is empty", ErrNoMigrations)
	}
	return count, nil
}

// defaultCountMigrations queries django_migrations over lib/pq.
func defaultCountMigrations(ctx context.Context, dsn string) (int, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return 0, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return 0, fmt.Errorf("ping database: %w", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM django_migrations").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// RunPytest executes the test suite.
//
// # Description
//
// Streams pytest output to w while writing JUnit and coverage reports to
// the configured paths. Exit code PytestExitNoTests ("no tests
// collected") is success per the pipeline contract; any other non-zero
// exit returns both the result and an error so the caller can record the
// exit code while failing the stage.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - w: Writer receiving live test output.
//   - opts: Report targets and extra environment.
//
// # Outputs
//
//   - *TestResult: Always non-nil when the process ran.
//   - error: Non-nil for unhandled exit codes or execution failures.
func (tc *DefaultToolchain) RunPytest(ctx context.Context, w io.Writer, opts PytestOptions) (*TestResult, error) {
	pytest := tc.venvBin("pytest")
	args := []string{"-v"}
	if opts.JUnitXML != "" {
		args = append(args, "--junitxml="+opts.JUnitXML)
	}
	if opts.CoverageXML != "" || opts.CoverageHTML != "" {
		args = append(args, "--cov=.")
	}
	if opts.CoverageXML != "" {
		args = append(args, "--cov-report=xml:"+opts.CoverageXML)
	}
	if opts.CoverageHTML != "" {
		args = append(args, "--cov-report=html:"+opts.CoverageHTML)
	}

	if err := tc.ensureReportDirs(opts.JUnitXML, opts.CoverageXML, opts.CoverageHTML); err != nil {
		return nil, err
	}

	start := time.Now()
	exit, err := tc.execStream(ctx, opts.Env, w, pytest, args...)
	if err != nil {
		return nil, err
	}

	result := &TestResult{
		ExitCode: exit,
		Duration: time.Since(start),
		Command:  commandString(pytest, args...),
	}

	switch exit {
	case 0:
		return result, nil
	case PytestExitNoTests:
		result.NoTestsCollected = true
		return result, nil
	default:
		return result, util.NewCommandError(result.Command, exit, "", nil)
	}
}

// RunFlake8 lints the source tree under --exit-zero.
//
// Findings land in the report file; with --exit-zero a non-zero exit
// means the tool itself broke.
func (tc *DefaultToolchain) RunFlake8(ctx context.Context, opts Flake8Options) (*LintResult, error) {
	reportPath := opts.ReportPath
	if reportPath == "" {
		reportPath = "reports/flake8.txt"
	}
	if err := tc.ensureReportDirs(reportPath); err != nil {
		return nil, err
	}

	flake8 := tc.venvBin("flake8")
	args := []string{"--exit-zero", "--output-file=" + reportPath}
	if excludes := tc.excludePatterns(opts.Exclude); len(excludes) > 0 {
		args = append(args, "--exclude="+strings.Join(excludes, ","))
	}
	args = append(args, ".")

	start := time.Now()
	_, stderr, exit, err := tc.exec(ctx, nil, flake8, args...)
	if err != nil {
		return nil, err
	}
	if exit != 0 {
		return nil, util.NewCommandError(commandString(flake8, args...), exit, strings.TrimSpace(stderr), nil)
	}

	return &LintResult{
		ExitCode:   exit,
		ReportPath: reportPath,
		Duration:   time.Since(start),
	}, nil
}

// RunBandit scans the source tree for security issues.
//
// Bandit exits 1 when it finds issues; that is a result, not a failure.
// Exit codes above 1 mean the scan itself broke.
func (tc *DefaultToolchain) RunBandit(ctx context.Context, opts BanditOptions) (*ScanResult, error) {
	reportPath := opts.ReportPath
	if reportPath == "" {
		reportPath = "reports/bandit.json"
	}
	if err := tc.ensureReportDirs(reportPath); err != nil {
		return nil, err
	}

	bandit := tc.venvBin("bandit")
	args := []string{"-r", ".", "-f", "json", "-o", reportPath}
	if excludes := tc.excludePatterns(opts.Exclude); len(excludes) > 0 {
		prefixed := make([]string, len(excludes))
		for i, e := range excludes {
			prefixed[i] = "./" + e
		}
		args = append(args, "-x", strings.Join(prefixed, ","))
	}

	start := time.Now()
	_, stderr, exit, err := tc.exec(ctx, nil, bandit, args...)
	if err != nil {
		return nil, err
	}
	if exit > 1 || exit < 0 {
		return nil, util.NewCommandError(commandString(bandit, args...), exit, strings.TrimSpace(stderr), nil)
	}

	return &ScanResult{
		Tool:        "bandit",
		ExitCode:    exit,
		IssuesFound: exit == 1,
		ReportPath:  reportPath,
		Duration:    time.Since(start),
	}, nil
}

// RunSafety checks the virtualenv's installed packages for known
// vulnerabilities.
//
// Safety prints its JSON report to stdout and signals findings through a
// version-dependent non-zero exit, so the report file is written here
// from captured stdout and any non-zero exit that still produced a
// report counts as findings rather than failure.
func (tc *DefaultToolchain) RunSafety(ctx context.Context, reportPath string) (*ScanResult, error) {
	if reportPath == "" {
		reportPath = "reports/safety.json"
	}
	if err := tc.ensureReportDirs(reportPath); err != nil {
		return nil, err
	}

	safety := tc.venvBin("safety")
	args := []string{"check", "--json"}

	start := time.Now()
	stdout, stderr, exit, err := tc.exec(ctx, nil, safety, args...)
	if err != nil {
		return nil, err
	}
	if exit != 0 && strings.TrimSpace(stdout) == "" {
		return nil, util.NewCommandError(commandString(safety, args...), exit, strings.TrimSpace(stderr), nil)
	}

	if err := os.WriteFile(tc.pathInWorkspace(reportPath), []byte(stdout), 0o644); err != nil {
		return nil, fmt.Errorf("write safety report: %w", err)
	}

	return &ScanResult{
		Tool:        "safety",
		ExitCode:    exit,
		IssuesFound: exit != 0,
		ReportPath:  reportPath,
		Duration:    time.Since(start),
	}, nil
}

// =============================================================================
// Execution Internals
// =============================================================================

// exec runs one tool with captured output.
func (tc *DefaultToolchain) exec(ctx context.Context, extraEnv []string, name string, args ...string) (string, string, int, error) {
	execCtx, cancel := context.WithTimeout(ctx, tc.timeout)
	defer cancel()

	stdout, stderr, exit, err := tc.proc.RunInDir(execCtx, tc.workspace, tc.buildEnv(extraEnv), name, args...)
	if err != nil {
		return stdout, stderr, exit, tc.mapExecError(name, err)
	}
	return stdout, stderr, exit, nil
}

// execStream runs one tool with live output.
func (tc *DefaultToolchain) execStream(ctx context.Context, extraEnv []string, w io.Writer, name string, args ...string) (int, error) {
	execCtx, cancel := context.WithTimeout(ctx, tc.timeout)
	defer cancel()

	exit, err := tc.proc.RunStreamingInDir(execCtx, tc.workspace, tc.buildEnv(extraEnv), w, name, args...)
	if err != nil {
		return exit, tc.mapExecError(name, err)
	}
	return exit, nil
}

// mapExecError normalizes could-not-run failures.
func (tc *DefaultToolchain) mapExecError(name string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: timeout after %v", filepath.Base(name), tc.timeout)
	}
	msg := err.Error()
	if strings.Contains(msg, "executable file not found") || strings.Contains(msg, "no such file or directory") {
		return fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return fmt.Errorf("%s: %w", filepath.Base(name), err)
}

// buildEnv merges the parent environment with virtualenv activation and
// caller extras. os/exec resolves duplicate keys to the last entry, so
// extras override everything.
func (tc *DefaultToolchain) buildEnv(extra []string) []string {
	venvBinDir := filepath.Join(tc.venvDir, "bin")
	env := append(os.Environ(),
		"VIRTUAL_ENV="+tc.venvDir,
		"PATH="+venvBinDir+string(os.PathListSeparator)+os.Getenv("PATH"),
	)
	return append(env, extra...)
}

// venvBin returns the path of a tool inside the virtualenv.
func (tc *DefaultToolchain) venvBin(tool string) string {
	return filepath.Join(tc.venvDir, "bin", tool)
}

// excludePatterns returns the virtualenv-relative exclude plus extras.
// A virtualenv outside the workspace is invisible to tree scans and
// needs no exclude.
func (tc *DefaultToolchain) excludePatterns(extra []string) []string {
	patterns := []string{}
	rel, err := filepath.Rel(tc.workspace, tc.venvDir)
	if err == nil && !strings.HasPrefix(rel, "..") {
		patterns = append(patterns, rel)
	}
	return append(patterns, extra...)
}

// ensureReportDirs creates the parent directories of report targets.
func (tc *DefaultToolchain) ensureReportDirs(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		dir := filepath.Dir(tc.pathInWorkspace(p))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory %s: %w", dir, err)
		}
	}
	return nil
}

// pathInWorkspace resolves a possibly relative path against the
// workspace.
func (tc *DefaultToolchain) pathInWorkspace(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(tc.workspace, p)
}

// commandString renders an argv for error messages.
func commandString(name string, args ...string) string {
	return name + " " + strings.Join(args, " ")
}

// =============================================================================
// Mock Implementation
// =============================================================================

// MockToolchain is a test double for Toolchain.
//
// # Description
//
// Provides a configurable mock implementation for testing. Each method
// can be configured with a custom function; unconfigured methods return
// success values. Calls are tracked for verification. Environment
// values are never recorded, only their keys.
type MockToolchain struct {
	CreateVenvFunc          func(context.Context) error
	UpgradePipFunc          func(context.Context, io.Writer) error
	InstallRequirementsFunc func(context.Context, io.Writer, string) error
	InstallPackagesFunc     func(context.Context, io.Writer, ...string) error
	MigrateFunc             func(context.Context, io.Writer, []string) error
	VerifyMigrationsFunc    func(context.Context, string) (int, error)
	RunPytestFunc           func(context.Context, io.Writer, PytestOptions) (*TestResult, error)
	RunFlake8Func           func(context.Context, Flake8Options) (*LintResult, error)
	RunBanditFunc           func(context.Context, BanditOptions) (*ScanResult, error)
	RunSafetyFunc           func(context.Context, string) (*ScanResult, error)

	CreateVenvCalls          int
	UpgradePipCalls          int
	InstallRequirementsCalls []string
	InstallPackagesCalls     [][]string
	MigrateCalls             [][]string
	VerifyMigrationsCalls    []string
	RunPytestCalls           []PytestCall
	RunFlake8Calls           []Flake8Options
	RunBanditCalls           []BanditOptions
	RunSafetyCalls           []string
	mu                       sync.Mutex
}

// PytestCall records one RunPytest invocation with environment keys only.
type PytestCall struct {
	JUnitXML     string
	CoverageXML  string
	CoverageHTML string
	EnvKeys      []string
}

// envKeys extracts the key of each KEY=VALUE entry.
func envKeys(env []string) []string {
	keys := make([]string, 0, len(env))
	for _, entry := range env {
		if i := strings.IndexByte(entry, '='); i >= 0 {
			keys = append(keys, entry[:i])
		} else {
			keys = append(keys, entry)
		}
	}
	return keys
}

// Compile-time check that MockToolchain implements Toolchain.
var _ Toolchain = (*MockToolchain)(nil)

// CreateVenv implements Toolchain.
func (m *MockToolchain) CreateVenv(ctx context.Context) error {
	m.mu.Lock()
	m.CreateVenvCalls++
	m.mu.Unlock()

	if m.CreateVenvFunc != nil {
		return m.CreateVenvFunc(ctx)
	}
	return nil
}

// UpgradePip implements Toolchain.
func (m *MockToolchain) UpgradePip(ctx context.Context, w io.Writer) error {
	m.mu.Lock()
	m.UpgradePipCalls++
	m.mu.Unlock()

	if m.UpgradePipFunc != nil {
		return m.UpgradePipFunc(ctx, w)
	}
	return nil
}

// InstallRequirements implements Toolchain.
func (m *MockToolchain) InstallRequirements(ctx context.Context, w io.Writer, requirementsFile string) error {
	m.mu.Lock()
	m.InstallRequirementsCalls = append(m.InstallRequirementsCalls, requirementsFile)
	m.mu.Unlock()

	if m.InstallRequirementsFunc != nil {
		return m.InstallRequirementsFunc(ctx, w, requirementsFile)
	}
	return nil
}

// InstallPackages implements Toolchain.
func (m *MockToolchain) InstallPackages(ctx context.Context, w io.Writer, packages ...string) error {
	m.mu.Lock()
	recorded := make([]string, len(packages))
	copy(recorded, packages)
	m.InstallPackagesCalls = append(m.InstallPackagesCalls, recorded)
	m.mu.Unlock()

	if m.InstallPackagesFunc != nil {
		return m.InstallPackagesFunc(ctx, w, packages...)
	}
	return nil
}

// Migrate implements Toolchain.
func (m *MockToolchain) Migrate(ctx context.Context, w io.Writer, extraEnv []string) error {
	m.mu.Lock()
	m.MigrateCalls = append(m.MigrateCalls, envKeys(extraEnv))
	m.mu.Unlock()

	if m.MigrateFunc != nil {
		return m.MigrateFunc(ctx, w, extraEnv)
	}
	return nil
}

// VerifyMigrations implements Toolchain.
func (m *MockToolchain) VerifyMigrations(ctx context.Context, dsn string) (int, error) {
	m.mu.Lock()
	m.VerifyMigrationsCalls = append(m.VerifyMigrationsCalls, dsn)
	m.mu.Unlock()

	if m.VerifyMigrationsFunc != nil {
		return m.VerifyMigrationsFunc(ctx, dsn)
	}
	return 18, nil
}

// RunPytest implements Toolchain.
func (m *MockToolchain) RunPytest(ctx context.Context, w io.Writer, opts PytestOptions) (*TestResult, error) {
	m.mu.Lock()
	m.RunPytestCalls = append(m.RunPytestCalls, PytestCall{
		JUnitXML:     opts.JUnitXML,
		CoverageXML:  opts.CoverageXML,
		CoverageHTML: opts.CoverageHTML,
		EnvKeys:      envKeys(opts.Env),
	})
	m.mu.Unlock()

	if m.RunPytestFunc != nil {
		return m.RunPytestFunc(ctx, w, opts)
	}
	return &TestResult{ExitCode: 0}, nil
}

// RunFlake8 implements Toolchain.
func (m *MockToolchain) RunFlake8(ctx context.Context, opts Flake8Options) (*LintResult, error) {
	m.mu.Lock()
	m.RunFlake8Calls = append(m.RunFlake8Calls, opts)
	m.mu.Unlock()

	if m.RunFlake8Func != nil {
		return m.RunFlake8Func(ctx, opts)
	}
	reportPath := opts.ReportPath
	if reportPath == "" {
		reportPath = "reports/flake8.txt"
	}
	return &LintResult{ExitCode: 0, ReportPath: reportPath}, nil
}

// RunBandit implements Toolchain.
func (m *MockToolchain) RunBandit(ctx context.Context, opts BanditOptions) (*ScanResult, error) {
	m.mu.Lock()
	m.RunBanditCalls = append(m.RunBanditCalls, opts)
	m.mu.Unlock()

	if m.RunBanditFunc != nil {
		return m.RunBanditFunc(ctx, opts)
	}
	reportPath := opts.ReportPath
	if reportPath == "" {
		reportPath = "reports/bandit.json"
	}
	return &ScanResult{Tool: "bandit", ExitCode: 0, ReportPath: reportPath}, nil
}

// RunSafety implements Toolchain.
func (m *MockToolchain) RunSafety(ctx context.Context, reportPath string) (*ScanResult, error) {
	m.mu.Lock()
	m.RunSafetyCalls = append(m.RunSafetyCalls, reportPath)
	m.mu.Unlock()

	if m.RunSafetyFunc != nil {
		return m.RunSafetyFunc(ctx, reportPath)
	}
	if reportPath == "" {
		reportPath = "reports/safety.json"
	}
	return &ScanResult{Tool: "safety", ExitCode: 0, ReportPath: reportPath}, nil
}
