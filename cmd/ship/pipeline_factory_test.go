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
PipelineFactory tests.

# Testing Strategy

The factory wires real production components, so these tests pin the
process environment first: HOME points at a test temp dir (the
credentials file, the diagnostics directory, and the default workspace
all resolve under it), the sonar credential variables are cleared, and
no OTLP endpoint is set. Under that environment, full wiring runs
without touching the network.

 1. End-to-end wiring: CreateProductionPipelineManager builds a
    manager; the test reaches into it and checks every collaborator,
    the optional components against their feature flags and
    credentials, and the resolved build configuration.
 2. Per-method construction: each create method returns a working
    component; conditional ones (sonar, uploaders, scanner, tracer)
    are driven through both branches with MockCredentialsManager.
    GCS wiring is exercised only for the disabled branch because
    constructing a real client requires application credentials.
 3. OpenHistoryStore round-trips against a real Badger store under
    the test home directory.
*/
package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianShip/cmd/ship/config"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/diagnostics"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/history"
)

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

// scrubFactoryEnv pins the environment the factory reads: a home
// directory under the test temp dir, no sonar credential, and no OTLP
// endpoint. Returns the home directory.
func scrubFactoryEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SONAR", "")
	t.Setenv("SONAR_USR", "")
	t.Setenv("SONAR_PSW", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	return home
}

// factoryConfig returns the default configuration with the workspace
// root moved into the test temp dir.
func factoryConfig(t *testing.T) *config.ShipConfig {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Pipeline.WorkspaceRoot = t.TempDir()
	return &cfg
}

// ----------------------------------------------------------------------------
// End-to-end wiring
// ----------------------------------------------------------------------------

func TestNewDefaultPipelineFactory(t *testing.T) {
	if NewDefaultPipelineFactory() == nil {
		t.Fatal("NewDefaultPipelineFactory returned nil")
	}
}

// TestCreateProductionPipelineManager_WiresEverything builds a manager
// with every optional component enabled and inspects the wiring.
func TestCreateProductionPipelineManager_WiresEverything(t *testing.T) {
	scrubFactoryEnv(t)
	t.Setenv("SONAR", "squ_0123456789abcdef")

	cfg := factoryConfig(t)
	store, err := history.Open(history.InMemoryConfig())
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	defer store.Close()
	reporter := &recordingReporter{}

	mgr, err := CreateProductionPipelineManager(context.Background(), cfg, RunEnvironment{
		BuildNumber: 7,
		CLIVersion:  "0.2.0-test",
		History:     store,
		Reporter:    reporter,
	})
	if err != nil {
		t.Fatalf("CreateProductionPipelineManager failed: %v", err)
	}

	impl, ok := mgr.(*DefaultPipelineManager)
	if !ok {
		t.Fatalf("expected *DefaultPipelineManager, got %T", mgr)
	}

	if impl.git == nil || impl.engine == nil || impl.health == nil ||
		impl.python == nil || impl.packager == nil || impl.credentials == nil {
		t.Error("a required collaborator is nil")
	}
	if impl.sonarRunner == nil || impl.sonarClient == nil {
		t.Error("sonar pair should be wired when the token credential resolves")
	}
	if impl.trivy == nil {
		t.Error("trivy scanner should be wired when the scan is enabled")
	}
	if impl.diagnostics == nil {
		t.Error("diagnostics collector should be wired")
	}
	if impl.tracer == nil {
		t.Error("tracer should never be nil on a constructed manager")
	}
	if impl.store != store {
		t.Error("history store should be the injected handle")
	}
	if impl.reporter != reporter {
		t.Error("reporter should be the injected handle")
	}
	if len(impl.uploaders) != 0 {
		t.Errorf("no upload destinations are enabled, got %d uploaders", len(impl.uploaders))
	}

	if impl.config.BuildNumber != 7 {
		t.Errorf("BuildNumber = %d, want 7", impl.config.BuildNumber)
	}
	wantWorkspace := filepath.Join(cfg.Pipeline.WorkspaceRoot, "gig-router")
	if impl.config.WorkspaceDir != wantWorkspace {
		t.Errorf("WorkspaceDir = %q, want %q", impl.config.WorkspaceDir, wantWorkspace)
	}
	if impl.config.AppName != "gig-router" {
		t.Errorf("AppName = %q, want gig-router", impl.config.AppName)
	}
	if impl.config.ImageRepository != "gig-router" {
		t.Errorf("ImageRepository = %q, want gig-router", impl.config.ImageRepository)
	}
	if impl.config.PostgresBasePort != 5432 || impl.config.RedisBasePort != 6379 {
		t.Errorf("base ports = %d/%d, want 5432/6379",
			impl.config.PostgresBasePort, impl.config.RedisBasePort)
	}
	if !impl.config.SafetyEnabled {
		t.Error("SafetyEnabled should follow the enabled feature flag")
	}
}

// TestCreateProductionPipelineManager_NoSonarCredential verifies that
// a missing sonar token leaves the pair nil so the manager skips the
// SonarQube stages instead of failing.
func TestCreateProductionPipelineManager_NoSonarCredential(t *testing.T) {
	scrubFactoryEnv(t)

	mgr, err := CreateProductionPipelineManager(context.Background(), factoryConfig(t), RunEnvironment{
		BuildNumber: 1,
	})
	if err != nil {
		t.Fatalf("CreateProductionPipelineManager failed: %v", err)
	}

	impl := mgr.(*DefaultPipelineManager)
	if impl.sonarRunner != nil || impl.sonarClient != nil {
		t.Error("sonar pair should be nil without a token credential")
	}
}

// TestCreateProductionPipelineManager_DisabledFeatures verifies the
// feature flags reach the wiring.
func TestCreateProductionPipelineManager_DisabledFeatures(t *testing.T) {
	scrubFactoryEnv(t)

	cfg := factoryConfig(t)
	cfg.Features.TrivyScan = false
	cfg.Features.SafetyScan = false
	cfg.Features.Observability = false

	mgr, err := CreateProductionPipelineManager(context.Background(), cfg, RunEnvironment{
		BuildNumber: 2,
	})
	if err != nil {
		t.Fatalf("CreateProductionPipelineManager failed: %v", err)
	}

	impl := mgr.(*DefaultPipelineManager)
	if impl.trivy != nil {
		t.Error("trivy scanner should be nil when the scan is disabled")
	}
	if impl.config.SafetyEnabled {
		t.Error("SafetyEnabled should follow the disabled feature flag")
	}
	if _, ok := impl.tracer.(*diagnostics.NoOpTracer); !ok {
		t.Errorf("expected the no-op tracer when observability is disabled, got %T", impl.tracer)
	}
}

// TestCreateProductionPipelineManager_RequiresBuildNumber rejects a
// run environment without an allocated build number.
func TestCreateProductionPipelineManager_RequiresBuildNumber(t *testing.T) {
	scrubFactoryEnv(t)

	_, err := CreateProductionPipelineManager(context.Background(), factoryConfig(t), RunEnvironment{})
	if !errors.Is(err, ErrInvalidBuildConfig) {
		t.Fatalf("expected ErrInvalidBuildConfig, got %v", err)
	}
}

// TestCreateProductionPipelineManager_NilConfigUsesDefaults builds a
// manager from the built-in defaults alone.
func TestCreateProductionPipelineManager_NilConfigUsesDefaults(t *testing.T) {
	home := scrubFactoryEnv(t)

	mgr, err := CreateProductionPipelineManager(context.Background(), nil, RunEnvironment{
		BuildNumber: 3,
	})
	if err != nil {
		t.Fatalf("CreateProductionPipelineManager failed: %v", err)
	}

	impl := mgr.(*DefaultPipelineManager)
	wantWorkspace := filepath.Join(home, ".aleutianship", "workspace", "gig-router")
	if impl.config.WorkspaceDir != wantWorkspace {
		t.Errorf("WorkspaceDir = %q, want %q", impl.config.WorkspaceDir, wantWorkspace)
	}
}

// TestCreateProductionPipelineManager_RelativeWorkspaceRejected
// verifies that a component constructor failure surfaces with the
// component named.
func TestCreateProductionPipelineManager_RelativeWorkspaceRejected(t *testing.T) {
	scrubFactoryEnv(t)

	cfg := factoryConfig(t)
	cfg.Pipeline.WorkspaceRoot = "relative/workspace"

	_, err := CreateProductionPipelineManager(context.Background(), cfg, RunEnvironment{
		BuildNumber: 1,
	})
	if err == nil {
		t.Fatal("expected an error for a relative workspace root")
	}
	if !strings.Contains(err.Error(), "python toolchain") {
		t.Errorf("error should name the failing component, got %v", err)
	}
}

// ----------------------------------------------------------------------------
// Individual factory methods
// ----------------------------------------------------------------------------

func TestDefaultPipelineFactory_createProcessManager(t *testing.T) {
	factory := NewDefaultPipelineFactory()
	if factory.createProcessManager() == nil {
		t.Fatal("createProcessManager returned nil")
	}
}

func TestDefaultPipelineFactory_createCredentialsManager(t *testing.T) {
	factory := NewDefaultPipelineFactory()
	if factory.createCredentialsManager() == nil {
		t.Fatal("createCredentialsManager returned nil")
	}
}

func TestDefaultPipelineFactory_createGitClient(t *testing.T) {
	factory := NewDefaultPipelineFactory()
	client, err := factory.createGitClient(factory.createProcessManager())
	if err != nil {
		t.Fatalf("createGitClient failed: %v", err)
	}
	if client == nil {
		t.Fatal("createGitClient returned nil")
	}
}

func TestDefaultPipelineFactory_createDockerEngine(t *testing.T) {
	factory := NewDefaultPipelineFactory()
	cfg := config.DefaultConfig()

	engine, err := factory.createDockerEngine(&cfg, 7, factory.createProcessManager())
	if err != nil {
		t.Fatalf("createDockerEngine failed: %v", err)
	}
	if engine == nil {
		t.Fatal("createDockerEngine returned nil")
	}
}

func TestDefaultPipelineFactory_createHealthChecker(t *testing.T) {
	factory := NewDefaultPipelineFactory()
	if factory.createHealthChecker() == nil {
		t.Fatal("createHealthChecker returned nil")
	}
}

func TestDefaultPipelineFactory_createPythonToolchain(t *testing.T) {
	factory := NewDefaultPipelineFactory()
	cfg := config.DefaultConfig()

	toolchain, err := factory.createPythonToolchain(&cfg, t.TempDir(), factory.createProcessManager())
	if err != nil {
		t.Fatalf("createPythonToolchain failed: %v", err)
	}
	if toolchain == nil {
		t.Fatal("createPythonToolchain returned nil")
	}
}

func TestDefaultPipelineFactory_createPackager(t *testing.T) {
	factory := NewDefaultPipelineFactory()
	if factory.createPackager() == nil {
		t.Fatal("createPackager returned nil")
	}
}

func TestDefaultPipelineFactory_resolveWorkspaceDir(t *testing.T) {
	factory := NewDefaultPipelineFactory()
	cfg := config.DefaultConfig()
	cfg.Pipeline.WorkspaceRoot = "/srv/ci"
	cfg.Pipeline.AppName = "orders"

	got := factory.resolveWorkspaceDir(&cfg)
	want := filepath.Join("/srv/ci", "orders")
	if got != want {
		t.Errorf("resolveWorkspaceDir = %q, want %q", got, want)
	}
}

func TestDefaultPipelineFactory_createSonar(t *testing.T) {
	factory := NewDefaultPipelineFactory()
	cfg := config.DefaultConfig()
	proc := factory.createProcessManager()
	ctx := context.Background()

	t.Run("token resolves", func(t *testing.T) {
		credentials := NewMockCredentialsManager()
		credentials.AddToken("sonar", "squ_0123456789abcdef")

		runner, client, err := factory.createSonar(ctx, &cfg, credentials, t.TempDir(), proc)
		if err != nil {
			t.Fatalf("createSonar failed: %v", err)
		}
		if runner == nil || client == nil {
			t.Fatal("expected both sonar components")
		}
	})

	t.Run("credential missing", func(t *testing.T) {
		runner, client, err := factory.createSonar(ctx, &cfg, NewMockCredentialsManager(), t.TempDir(), proc)
		if err != nil {
			t.Fatalf("a missing credential should not be an error, got %v", err)
		}
		if runner != nil || client != nil {
			t.Fatal("expected a nil sonar pair without a credential")
		}
	})

	t.Run("backend failure propagates", func(t *testing.T) {
		credentials := NewMockCredentialsManager()
		credentials.ForceError = errors.New("keyring locked")

		_, _, err := factory.createSonar(ctx, &cfg, credentials, t.TempDir(), proc)
		if err == nil || !strings.Contains(err.Error(), "keyring locked") {
			t.Fatalf("expected the backend failure, got %v", err)
		}
	})
}

func TestDefaultPipelineFactory_createUploaders(t *testing.T) {
	factory := NewDefaultPipelineFactory()
	ctx := context.Background()

	t.Run("no destinations", func(t *testing.T) {
		cfg := config.DefaultConfig()
		uploaders, err := factory.createUploaders(ctx, &cfg, NewMockCredentialsManager())
		if err != nil {
			t.Fatalf("createUploaders failed: %v", err)
		}
		if len(uploaders) != 0 {
			t.Fatalf("expected no uploaders, got %d", len(uploaders))
		}
	})

	t.Run("nexus with credential", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Nexus.URL = "https://nexus.example.com"
		cfg.Nexus.Repository = "gig-router-artifacts"
		credentials := NewMockCredentialsManager()
		credentials.AddUserPass("nexus-maven-creds", "deploy", "s3cr3t")

		uploaders, err := factory.createUploaders(ctx, &cfg, credentials)
		if err != nil {
			t.Fatalf("createUploaders failed: %v", err)
		}
		if len(uploaders) != 1 {
			t.Fatalf("expected one uploader, got %d", len(uploaders))
		}
		if uploaders[0].Name() != "nexus" {
			t.Errorf("uploader name = %q, want nexus", uploaders[0].Name())
		}
	})

	t.Run("nexus anonymous", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Nexus.URL = "https://nexus.example.com"
		cfg.Nexus.Repository = "gig-router-artifacts"

		uploaders, err := factory.createUploaders(ctx, &cfg, NewMockCredentialsManager())
		if err != nil {
			t.Fatalf("an absent nexus credential should fall back to anonymous, got %v", err)
		}
		if len(uploaders) != 1 {
			t.Fatalf("expected one uploader, got %d", len(uploaders))
		}
	})

	t.Run("nexus invalid url", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Nexus.URL = "not-a-url"
		cfg.Nexus.Repository = "gig-router-artifacts"

		_, err := factory.createUploaders(ctx, &cfg, NewMockCredentialsManager())
		if err == nil || !strings.Contains(err.Error(), "nexus uploader") {
			t.Fatalf("expected a nexus uploader error, got %v", err)
		}
	})

	t.Run("credential backend failure", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Nexus.URL = "https://nexus.example.com"
		cfg.Nexus.Repository = "gig-router-artifacts"
		credentials := NewMockCredentialsManager()
		credentials.ForceError = errors.New("keyring locked")

		_, err := factory.createUploaders(ctx, &cfg, credentials)
		if err == nil || !strings.Contains(err.Error(), "nexus-maven-creds") {
			t.Fatalf("expected the credential failure to name the ID, got %v", err)
		}
	})
}

func TestDefaultPipelineFactory_createImageScanner(t *testing.T) {
	factory := NewDefaultPipelineFactory()
	proc := factory.createProcessManager()

	cfg := config.DefaultConfig()
	scanner, err := factory.createImageScanner(&cfg, proc)
	if err != nil {
		t.Fatalf("createImageScanner failed: %v", err)
	}
	if scanner == nil {
		t.Fatal("expected a scanner when the trivy scan is enabled")
	}

	cfg.Features.TrivyScan = false
	scanner, err = factory.createImageScanner(&cfg, proc)
	if err != nil {
		t.Fatalf("createImageScanner failed: %v", err)
	}
	if scanner != nil {
		t.Fatal("expected no scanner when the trivy scan is disabled")
	}
}

func TestDefaultPipelineFactory_createDiagnosticsCollector(t *testing.T) {
	scrubFactoryEnv(t)

	factory := NewDefaultPipelineFactory()
	collector, err := factory.createDiagnosticsCollector("0.2.0-test")
	if err != nil {
		t.Fatalf("createDiagnosticsCollector failed: %v", err)
	}
	if collector == nil {
		t.Fatal("createDiagnosticsCollector returned nil")
	}
}

func TestDefaultPipelineFactory_createTracer(t *testing.T) {
	scrubFactoryEnv(t)

	factory := NewDefaultPipelineFactory()
	ctx := context.Background()

	cfg := config.DefaultConfig()
	tracer, err := factory.createTracer(ctx, &cfg)
	if err != nil {
		t.Fatalf("createTracer failed: %v", err)
	}
	if tracer == nil {
		t.Fatal("expected a tracer when observability is enabled")
	}

	cfg.Features.Observability = false
	tracer, err = factory.createTracer(ctx, &cfg)
	if err != nil {
		t.Fatalf("createTracer failed: %v", err)
	}
	if tracer != nil {
		t.Fatal("expected no tracer when observability is disabled")
	}
}

// ----------------------------------------------------------------------------
// History store
// ----------------------------------------------------------------------------

// TestOpenHistoryStore opens the default store under the test home
// directory and allocates the first build number.
func TestOpenHistoryStore(t *testing.T) {
	home := scrubFactoryEnv(t)

	store, err := OpenHistoryStore()
	if err != nil {
		t.Fatalf("OpenHistoryStore failed: %v", err)
	}
	defer store.Close()

	n, err := store.NextBuildNumber(context.Background())
	if err != nil {
		t.Fatalf("NextBuildNumber failed: %v", err)
	}
	if n != 1 {
		t.Errorf("first build number = %d, want 1", n)
	}

	dir := filepath.Join(home, ".aleutianship", "history")
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("history directory not created: %v", err)
	}
}

// ----------------------------------------------------------------------------
// Mock
// ----------------------------------------------------------------------------

func TestMockPipelineFactory_Defaults(t *testing.T) {
	mock := &MockPipelineFactory{}

	mgr, err := mock.CreatePipelineManager(context.Background(), nil, RunEnvironment{BuildNumber: 4})
	if err != nil {
		t.Fatalf("CreatePipelineManager failed: %v", err)
	}
	if _, ok := mgr.(*MockPipelineManager); !ok {
		t.Fatalf("expected a MockPipelineManager, got %T", mgr)
	}
	if len(mock.CreateCalls) != 1 || mock.CreateCalls[0].BuildNumber != 4 {
		t.Errorf("CreateCalls = %+v, want one call for build 4", mock.CreateCalls)
	}
}

func TestMockPipelineFactory_Err(t *testing.T) {
	wantErr := errors.New("wiring failed")
	mock := &MockPipelineFactory{Err: wantErr}

	_, err := mock.CreatePipelineManager(context.Background(), nil, RunEnvironment{BuildNumber: 1})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected the configured error, got %v", err)
	}
}

func TestMockPipelineFactory_CreateFunc(t *testing.T) {
	manager := &MockPipelineManager{}
	mock := &MockPipelineFactory{
		CreateFunc: func(_ context.Context, _ *config.ShipConfig, _ RunEnvironment) (PipelineManager, error) {
			return manager, nil
		},
	}

	got, err := mock.CreatePipelineManager(context.Background(), nil, RunEnvironment{BuildNumber: 9})
	if err != nil {
		t.Fatalf("CreatePipelineManager failed: %v", err)
	}
	if got != manager {
		t.Error("CreateFunc result should be returned unchanged")
	}
}
