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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/AleutianAI/AleutianShip/cmd/ship/config"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/artifact"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/diagnostics"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/history"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/infra/docker"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/infra/health"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/infra/process"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/infra/trivy"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/pybuild"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/scm"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/sonar"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/util"
)

// =============================================================================
// Run Environment
// =============================================================================

// RunEnvironment carries the per-run state a factory cannot derive from
// configuration.
//
// The build number is allocated by the caller before the manager exists
// because container names, host ports, and artifact names all derive
// from it, and because `ship history` needs the store without building
// a manager at all. The same store handle is passed through here so the
// run that allocated the number records into the store it came from.
type RunEnvironment struct {
	// BuildNumber is the monotonic build identity. Required, positive.
	BuildNumber int

	// CLIVersion stamps diagnostics bundles for correlation with
	// known issues.
	CLIVersion string

	// History receives the completed build record. Optional; nil
	// disables history persistence for this run.
	History history.Store

	// Reporter receives build lifecycle events for the status page.
	// Optional.
	Reporter BuildReporter
}

// =============================================================================
// PipelineFactory Interface
// =============================================================================

// PipelineFactory creates PipelineManager instances with all required
// dependencies.
//
// This interface enables dependency injection for testing - production
// code uses DefaultPipelineFactory, while tests can provide mock
// implementations.
type PipelineFactory interface {
	// CreatePipelineManager builds a fully configured PipelineManager.
	//
	// # Description
	//
	// Wires together every component a build run needs: the process
	// manager, the git client, the docker engine scoped to this build
	// number, the readiness checker, the Python toolchain, the
	// SonarQube runner and client, the artifact packager and
	// uploaders, the image scanner, the credentials manager, the
	// diagnostics collector, and the tracer.
	//
	// Optional components follow the configuration: the SonarQube pair
	// is omitted when no token credential is configured, uploaders are
	// created only for enabled destinations, the image scanner and
	// the tracer follow their feature flags.
	//
	// # Inputs
	//
	//   - ctx: Governs credential resolution and remote client setup
	//     (GCS, OTLP) during wiring.
	//   - cfg: The ship configuration. Nil uses the built-in defaults.
	//   - run: Per-run state: build number, CLI version, history
	//     store, status reporter.
	//
	// # Outputs
	//
	//   - PipelineManager: Ready-to-use manager scoped to the run's
	//     build number.
	//   - error: Non-nil if any dependency creation fails.
	CreatePipelineManager(ctx context.Context, cfg *config.ShipConfig, run RunEnvironment) (PipelineManager, error)
}

// =============================================================================
// Default Implementation
// =============================================================================

// DefaultPipelineFactory is the production implementation of
// PipelineFactory.
//
// It creates real implementations of every PipelineManager dependency:
// git via the system binary, docker via the docker CLI, readiness
// probes over TCP/SQL/Redis, the Python toolchain, SonarQube clients,
// tar.gz packaging with Nexus/GCS uploads, trivy, and OTLP tracing.
type DefaultPipelineFactory struct{}

// Compile-time check that DefaultPipelineFactory implements
// PipelineFactory.
var _ PipelineFactory = (*DefaultPipelineFactory)(nil)

// NewDefaultPipelineFactory creates a new DefaultPipelineFactory
// instance.
//
// # Description
//
// Returns a factory that produces PipelineManagers with real production
// dependencies. Use this in production code; use MockPipelineFactory in
// tests.
//
// # Inputs
//
// None.
//
// # Outputs
//
//   - *DefaultPipelineFactory: A factory instance ready to create
//     PipelineManagers.
//
// # Examples
//
//	factory := NewDefaultPipelineFactory()
//	mgr, err := factory.CreatePipelineManager(ctx, &config.Global, run)
func NewDefaultPipelineFactory() *DefaultPipelineFactory {
	return &DefaultPipelineFactory{}
}

// CreatePipelineManager builds a fully configured PipelineManager with
// production dependencies.
//
// # Description
//
// This method wires together all components required by
// PipelineManager in dependency order:
//
//	ProcessManager -> CredentialsManager -> GitClient -> DockerEngine ->
//	HealthChecker -> PythonToolchain -> Packager -> Sonar ->
//	Uploaders -> ImageScanner -> DiagnosticsCollector -> Tracer ->
//	PipelineManager
//
// The docker engine and the manager's build configuration are resolved
// from the same configuration getters, so the host ports and database
// identity the stages export match the containers the engine starts.
//
// # Inputs
//
//   - ctx: Governs credential resolution and remote client setup
//     during wiring. Not retained by the returned manager.
//   - cfg: The ship configuration. Nil uses the built-in defaults.
//   - run: Per-run state. BuildNumber must be positive.
//
// # Outputs
//
//   - PipelineManager: Ready-to-use manager.
//   - error: Non-nil if any dependency creation fails, with wrapped
//     context.
//
// # Examples
//
//	factory := NewDefaultPipelineFactory()
//	mgr, err := factory.CreatePipelineManager(ctx, &config.Global, RunEnvironment{
//	    BuildNumber: buildNumber,
//	    CLIVersion:  "0.2.0",
//	    History:     store,
//	})
//	if err != nil {
//	    log.Fatalf("Failed to create pipeline manager: %v", err)
//	}
//	record, err := mgr.Run(ctx, opts)
//
// # Limitations
//
//   - Creates all enabled dependencies even if the run later skips
//     their stages.
//   - Not suitable for unit tests; use mock implementations instead.
//   - The SonarQube pair is only created when the sonar token
//     credential resolves.
//
// # Assumptions
//
//   - Config is valid and loaded.
//   - The git and docker binaries are installed and on PATH.
func (f *DefaultPipelineFactory) CreatePipelineManager(ctx context.Context, cfg *config.ShipConfig, run RunEnvironment) (PipelineManager, error) {
	if cfg == nil {
		defaults := config.DefaultConfig()
		cfg = &defaults
	}
	if run.BuildNumber <= 0 {
		return nil, fmt.Errorf("%w: build number must be positive, got %d",
			ErrInvalidBuildConfig, run.BuildNumber)
	}

	proc := f.createProcessManager()
	credentials := f.createCredentialsManager()
	workspaceDir := f.resolveWorkspaceDir(cfg)

	gitClient, err := f.createGitClient(proc)
	if err != nil {
		return nil, fmt.Errorf("failed to create git client: %w", err)
	}

	engine, err := f.createDockerEngine(cfg, run.BuildNumber, proc)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker engine: %w", err)
	}

	checker := f.createHealthChecker()

	toolchain, err := f.createPythonToolchain(cfg, workspaceDir, proc)
	if err != nil {
		return nil, fmt.Errorf("failed to create python toolchain: %w", err)
	}

	packager := f.createPackager()

	sonarRunner, sonarClient, err := f.createSonar(ctx, cfg, credentials, workspaceDir, proc)
	if err != nil {
		return nil, fmt.Errorf("failed to create sonarqube clients: %w", err)
	}

	uploaders, err := f.createUploaders(ctx, cfg, credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact uploaders: %w", err)
	}

	scanner, err := f.createImageScanner(cfg, proc)
	if err != nil {
		return nil, fmt.Errorf("failed to create image scanner: %w", err)
	}

	collector, err := f.createDiagnosticsCollector(run.CLIVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to create diagnostics collector: %w", err)
	}

	tracer, err := f.createTracer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	manager, err := NewDefaultPipelineManager(Dependencies{
		Git:         gitClient,
		Engine:      engine,
		Health:      checker,
		Python:      toolchain,
		Packager:    packager,
		Credentials: credentials,
		SonarRunner: sonarRunner,
		SonarClient: sonarClient,
		Uploaders:   uploaders,
		Trivy:       scanner,
		History:     run.History,
		Diagnostics: collector,
		Tracer:      tracer,
		Reporter:    run.Reporter,
	}, BuildConfig{
		BuildNumber:        run.BuildNumber,
		RepoURL:            cfg.Pipeline.RepoURL,
		Branch:             cfg.Pipeline.GetBranch(),
		AppName:            cfg.Pipeline.GetAppName(),
		WorkspaceDir:       workspaceDir,
		PostgresBasePort:   cfg.Infra.GetPostgresBasePort(),
		RedisBasePort:      cfg.Infra.GetRedisBasePort(),
		SonarProjectKey:    cfg.Sonar.GetProjectKey(),
		RegistryURL:        cfg.Registry.URL,
		ImageRepository:    cfg.Registry.Repository(),
		GitCredentialID:    cfg.Credentials.GetGitID(),
		DockerCredentialID: cfg.Credentials.GetDockerID(),
		SafetyEnabled:      cfg.Features.SafetyScan,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline manager: %w", err)
	}

	return manager, nil
}

// =============================================================================
// Dependency Construction
// =============================================================================

// resolveWorkspaceDir returns the checkout directory for this app:
// <workspace root>/<app name>. Every run of the same app reuses the
// directory; the git client fetches into an existing clone.
func (f *DefaultPipelineFactory) resolveWorkspaceDir(cfg *config.ShipConfig) string {
	return filepath.Join(cfg.Pipeline.GetWorkspaceRoot(), cfg.Pipeline.GetAppName())
}

// createProcessManager creates the ProcessManager for command
// execution.
//
// # Description
//
// Creates the foundation component for all external command execution.
// The git client, the docker engine, the Python toolchain, the sonar
// scanner, and trivy all run their binaries through it.
//
// # Outputs
//
//   - process.Manager: Ready-to-use process manager.
func (f *DefaultPipelineFactory) createProcessManager() process.Manager {
	return process.NewDefaultManager()
}

// createCredentialsManager creates the CredentialsManager for
// stage-time credential resolution.
//
// # Description
//
// Creates a manager backed by the environment and the credentials file.
// Audit events go to the default slog logger; secrets never appear in
// them.
//
// # Outputs
//
//   - CredentialsManager: Ready-to-use credentials manager.
func (f *DefaultPipelineFactory) createCredentialsManager() CredentialsManager {
	return NewDefaultCredentialsManager(slog.Default())
}

// createGitClient creates the git client for the checkout stage.
//
// # Description
//
// Creates a client that shells out to the system git binary. Each git
// invocation is bounded by the stage timeout; the checkout stage
// applies the same bound, so the stage limit is the effective one.
//
// # Inputs
//
//   - proc: Process manager for running git.
//
// # Outputs
//
//   - scm.Client: Ready-to-use git client.
//   - error: Non-nil if the client rejects its configuration.
func (f *DefaultPipelineFactory) createGitClient(proc process.Manager) (scm.Client, error) {
	return scm.NewDefaultClient(proc, util.DefaultStageTimeout)
}

// createDockerEngine creates the docker engine scoped to this build
// number.
//
// # Description
//
// Creates the engine that starts the ephemeral Postgres and Redis
// containers, builds the application image, and pushes it. Container
// names and host ports derive from the build number, so concurrent
// builds do not collide.
//
// The database name, user, and password stay at the package defaults;
// BuildConfig applies the same defaults, so the connection strings the
// stages export match the containers the engine starts.
//
// # Inputs
//
//   - cfg: Supplies the container images and base ports.
//   - buildNumber: The build this engine is scoped to.
//   - proc: Process manager for running docker.
//
// # Outputs
//
//   - docker.Engine: Ready-to-use engine.
//   - error: Non-nil if the engine rejects its configuration.
func (f *DefaultPipelineFactory) createDockerEngine(cfg *config.ShipConfig, buildNumber int, proc process.Manager) (docker.Engine, error) {
	return docker.NewDefaultEngine(docker.Config{
		BuildNumber:      buildNumber,
		PostgresImage:    cfg.Infra.GetPostgresImage(),
		RedisImage:       cfg.Infra.GetRedisImage(),
		PostgresBasePort: cfg.Infra.GetPostgresBasePort(),
		RedisBasePort:    cfg.Infra.GetRedisBasePort(),
	}, proc)
}

// createHealthChecker creates the readiness checker for the test
// containers.
//
// # Description
//
// Creates a checker that probes Postgres with real SQL pings and Redis
// with protocol pings until both accept connections or the readiness
// timeout expires.
//
// # Outputs
//
//   - health.Checker: Ready-to-use checker with default probe
//     timeouts.
func (f *DefaultPipelineFactory) createHealthChecker() health.Checker {
	return health.NewDefaultChecker(health.DefaultCheckerConfig())
}

// createPythonToolchain creates the Python toolchain for the build,
// migration, test, and scan stages.
//
// # Description
//
// Creates a toolchain rooted at the checkout directory. The virtualenv
// lives inside it, and every python tool (pip, Django, pytest, flake8,
// bandit, safety) runs from that virtualenv.
//
// # Inputs
//
//   - cfg: Supplies the python interpreter name.
//   - workspaceDir: The checkout directory the toolchain operates in.
//   - proc: Process manager for running python tools.
//
// # Outputs
//
//   - pybuild.Toolchain: Ready-to-use toolchain.
//   - error: Non-nil if the toolchain rejects its configuration.
func (f *DefaultPipelineFactory) createPythonToolchain(cfg *config.ShipConfig, workspaceDir string, proc process.Manager) (pybuild.Toolchain, error) {
	return pybuild.NewDefaultToolchain(pybuild.Config{
		WorkspaceDir: workspaceDir,
		Python:       cfg.Pipeline.GetPythonBin(),
	}, proc)
}

// createPackager creates the artifact packager.
//
// # Outputs
//
//   - artifact.Packager: Packager producing the tar.gz + sha256 pair.
func (f *DefaultPipelineFactory) createPackager() artifact.Packager {
	return artifact.NewDefaultPackager()
}

// createSonar creates the SonarQube scanner runner and web API client.
//
// # Description
//
// Resolves the sonar token credential first. When the credential is
// not configured, both components are nil and the manager skips the
// SonarQube stages with a "not configured" reason; a misconfigured
// credential backend is still an error. The token reaches the scanner
// through its environment, never through argv.
//
// # Inputs
//
//   - ctx: Governs credential resolution.
//   - cfg: Supplies the host URL and the credential ID.
//   - credentials: Resolves the token.
//   - workspaceDir: The checkout directory the scanner analyzes.
//   - proc: Process manager for running sonar-scanner.
//
// # Outputs
//
//   - sonar.Runner: Scanner runner, or nil when sonar is not
//     configured.
//   - sonar.Client: Quality gate client, nil exactly when the runner
//     is nil.
//   - error: Non-nil if credential resolution fails for a reason other
//     than absence, or if either component rejects its configuration.
func (f *DefaultPipelineFactory) createSonar(ctx context.Context, cfg *config.ShipConfig, credentials CredentialsManager, workspaceDir string, proc process.Manager) (sonar.Runner, sonar.Client, error) {
	token, err := credentials.GetToken(ctx, cfg.Credentials.GetSonarID())
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	runner, err := sonar.NewDefaultRunner(sonar.RunnerConfig{
		WorkspaceDir: workspaceDir,
		HostURL:      cfg.Sonar.GetHostURL(),
		Token:        token,
	}, proc)
	if err != nil {
		return nil, nil, err
	}

	client, err := sonar.NewDefaultClient(sonar.ClientConfig{
		BaseURL: cfg.Sonar.GetHostURL(),
		Token:   token,
	})
	if err != nil {
		return nil, nil, err
	}

	return runner, client, nil
}

// createUploaders creates the artifact uploaders for the enabled
// destinations.
//
// # Description
//
// Builds one uploader per enabled destination, in upload order. Nexus
// uses the nexus credential when one is configured and uploads
// anonymously otherwise. GCS authenticates through Application Default
// Credentials.
//
// # Inputs
//
//   - ctx: Governs credential resolution and GCS client setup.
//   - cfg: Supplies the destination settings.
//   - credentials: Resolves the optional nexus credential.
//
// # Outputs
//
//   - []artifact.Uploader: Zero or more uploaders; empty disables the
//     upload step of the packaging stage.
//   - error: Non-nil if an enabled destination cannot be constructed.
func (f *DefaultPipelineFactory) createUploaders(ctx context.Context, cfg *config.ShipConfig, credentials CredentialsManager) ([]artifact.Uploader, error) {
	var uploaders []artifact.Uploader

	if cfg.Nexus.Enabled() {
		nexusCfg := artifact.NexusConfig{
			BaseURL:    cfg.Nexus.URL,
			Repository: cfg.Nexus.Repository,
		}
		credential, err := credentials.GetOptionalCredential(ctx, cfg.Credentials.GetNexusID())
		if err != nil {
			return nil, fmt.Errorf("nexus credential %q: %w", cfg.Credentials.GetNexusID(), err)
		}
		if credential != nil {
			nexusCfg.Username = credential.Username
			nexusCfg.Password = credential.Secret
		}
		uploader, err := artifact.NewNexusUploader(nexusCfg)
		if err != nil {
			return nil, fmt.Errorf("nexus uploader: %w", err)
		}
		uploaders = append(uploaders, uploader)
	}

	if cfg.Storage.Enabled() {
		uploader, err := artifact.NewGCSUploader(ctx, artifact.GCSConfig{
			Bucket: cfg.Storage.GCSBucket,
			Prefix: cfg.Storage.GCSPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs uploader: %w", err)
		}
		uploaders = append(uploaders, uploader)
	}

	return uploaders, nil
}

// createImageScanner creates the trivy scanner when the feature is
// enabled.
//
// # Inputs
//
//   - cfg: Supplies the trivy feature flag.
//   - proc: Process manager for running trivy.
//
// # Outputs
//
//   - trivy.Scanner: Ready-to-use scanner, or nil when the trivy scan
//     is disabled; the manager then skips the stage.
//   - error: Non-nil if the scanner rejects its configuration.
func (f *DefaultPipelineFactory) createImageScanner(cfg *config.ShipConfig, proc process.Manager) (trivy.Scanner, error) {
	if !cfg.Features.TrivyScan {
		return nil, nil
	}
	return trivy.NewDefaultScanner(proc)
}

// createDiagnosticsCollector creates the DiagnosticsCollector for
// failure bundles.
//
// # Description
//
// Creates a collector that captures system state, container logs, and
// the failing stage's context into a bundle under the diagnostics
// directory when a fatal stage fails. The CLI version is included for
// correlation with known issues.
//
// # Inputs
//
//   - cliVersion: CLI version string for diagnostics correlation.
//
// # Outputs
//
//   - diagnostics.Collector: Ready-to-use collector.
//   - error: Non-nil if the collector cannot set up its storage.
func (f *DefaultPipelineFactory) createDiagnosticsCollector(cliVersion string) (diagnostics.Collector, error) {
	return diagnostics.NewDefaultCollector(cliVersion)
}

// createTracer creates the tracer for the run and stage spans.
//
// # Description
//
// When observability is enabled, picks the tracer from the
// environment: OTLP export when OTEL_EXPORTER_OTLP_ENDPOINT is set,
// no-op otherwise. When observability is disabled, returns nil and the
// manager substitutes its own no-op.
//
// # Inputs
//
//   - ctx: Governs OTLP exporter setup.
//   - cfg: Supplies the observability feature flag.
//
// # Outputs
//
//   - diagnostics.Tracer: Tracer, or nil when observability is
//     disabled.
//   - error: Non-nil if the OTLP exporter cannot be created.
func (f *DefaultPipelineFactory) createTracer(ctx context.Context, cfg *config.ShipConfig) (diagnostics.Tracer, error) {
	if !cfg.Features.Observability {
		return nil, nil
	}
	return diagnostics.NewDefaultTracer(ctx, "ship")
}

// =============================================================================
// History Store
// =============================================================================

// defaultHistoryDir resolves ~/.aleutianship/history.
func defaultHistoryDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".aleutianship", "history")
	}
	return filepath.Join(home, ".aleutianship", "history")
}

// OpenHistoryStore opens the build history store at its default
// location.
//
// # Description
//
// Opens (creating if absent) the Badger-backed store under
// ~/.aleutianship/history. The store is shared state: the run command
// allocates build numbers from it and records completed builds into
// it, and the history command reads it. Only one process can hold it
// open at a time.
//
// # Outputs
//
//   - history.Store: Open store. The caller owns Close.
//   - error: Non-nil if the store cannot be opened, including when
//     another ship process holds it.
func OpenHistoryStore() (history.Store, error) {
	dir := defaultHistoryDir()
	store, err := history.Open(history.DefaultConfig(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to open build history at %s: %w", dir, err)
	}
	return store, nil
}

// =============================================================================
// Package-Level Factory Function
// =============================================================================

// CreateProductionPipelineManager creates a PipelineManager with all
// production dependencies.
//
// # Description
//
// Convenience function equivalent to creating a DefaultPipelineFactory
// and calling CreatePipelineManager on it. This is the entry point the
// run command uses.
//
// # Inputs
//
//   - ctx: Governs credential resolution and remote client setup
//     during wiring.
//   - cfg: The ship configuration. Nil uses the built-in defaults.
//   - run: Per-run state: build number, CLI version, history store,
//     status reporter.
//
// # Outputs
//
//   - PipelineManager: Ready-to-use manager.
//   - error: Non-nil if any dependency creation fails.
//
// # Examples
//
//	mgr, err := CreateProductionPipelineManager(ctx, &config.Global, RunEnvironment{
//	    BuildNumber: buildNumber,
//	    CLIVersion:  cliVersion,
//	    History:     store,
//	})
func CreateProductionPipelineManager(ctx context.Context, cfg *config.ShipConfig, run RunEnvironment) (PipelineManager, error) {
	factory := NewDefaultPipelineFactory()
	return factory.CreatePipelineManager(ctx, cfg, run)
}

// =============================================================================
// Mock Implementation
// =============================================================================

// MockPipelineFactory is a test double for PipelineFactory.
//
// The zero value returns a MockPipelineManager from every call. Set
// CreateFunc to override, or Manager/Err for fixed results.
type MockPipelineFactory struct {
	// CreateFunc overrides CreatePipelineManager when set.
	CreateFunc func(ctx context.Context, cfg *config.ShipConfig, run RunEnvironment) (PipelineManager, error)

	// Manager is returned when CreateFunc is nil. Nil defaults to a
	// fresh MockPipelineManager.
	Manager PipelineManager

	// Err is returned when CreateFunc is nil.
	Err error

	// CreateCalls records the run environment of each call.
	CreateCalls []RunEnvironment
}

// Compile-time check that MockPipelineFactory implements
// PipelineFactory.
var _ PipelineFactory = (*MockPipelineFactory)(nil)

// CreatePipelineManager records the call and returns the configured
// result.
func (m *MockPipelineFactory) CreatePipelineManager(ctx context.Context, cfg *config.ShipConfig, run RunEnvironment) (PipelineManager, error) {
	m.CreateCalls = append(m.CreateCalls, run)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, cfg, run)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Manager != nil {
		return m.Manager, nil
	}
	return &MockPipelineManager{}, nil
}
