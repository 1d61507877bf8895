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
Package config contains unit tests for configuration types.

# Testing Strategy

These tests verify:
  - Default values are correctly applied
  - Getter methods fall back to defaults for zero values
  - ConfigMeta is properly initialized
  - Struct-tag validation accepts the defaults and rejects bad values
*/
package config

import (
	"strings"
	"testing"
	"time"
)

// -----------------------------------------------------------------------------
// ConfigMeta Tests
// -----------------------------------------------------------------------------

// TestNewConfigMeta verifies metadata initialization.
func TestNewConfigMeta(t *testing.T) {
	before := time.Now().UnixMilli()
	meta := newConfigMeta()
	after := time.Now().UnixMilli()

	// Check version
	if meta.Version != CurrentConfigVersion {
		t.Errorf("Version = %q, want %q", meta.Version, CurrentConfigVersion)
	}

	// Check ModifiedBy
	if meta.ModifiedBy != "ship-cli" {
		t.Errorf("ModifiedBy = %q, want %q", meta.ModifiedBy, "ship-cli")
	}

	// Verify timestamps are within bounds
	if meta.CreatedAt < before || meta.CreatedAt > after {
		t.Errorf("CreatedAt %d not between %d and %d", meta.CreatedAt, before, after)
	}

	if meta.ModifiedAt < before || meta.ModifiedAt > after {
		t.Errorf("ModifiedAt %d not between %d and %d", meta.ModifiedAt, before, after)
	}

	// CreatedAt and ModifiedAt should be equal for new config
	if meta.CreatedAt != meta.ModifiedAt {
		t.Errorf("CreatedAt (%d) != ModifiedAt (%d) for new config",
			meta.CreatedAt, meta.ModifiedAt)
	}
}

// TestConfigMeta_TimeConversion verifies timestamp helper methods.
func TestConfigMeta_TimeConversion(t *testing.T) {
	now := time.Now()
	meta := ConfigMeta{
		CreatedAt:  now.UnixMilli(),
		ModifiedAt: now.UnixMilli(),
	}

	createdTime := meta.CreatedAtTime()
	modifiedTime := meta.ModifiedAtTime()

	// Allow 1ms tolerance due to conversion precision
	if createdTime.Sub(now).Abs() > time.Millisecond {
		t.Errorf("CreatedAtTime() differs by more than 1ms from original")
	}

	if modifiedTime.Sub(now).Abs() > time.Millisecond {
		t.Errorf("ModifiedAtTime() differs by more than 1ms from original")
	}
}

// -----------------------------------------------------------------------------
// PipelineConfig Tests
// -----------------------------------------------------------------------------

// TestPipelineConfig_GetBranch verifies default fallback.
func TestPipelineConfig_GetBranch(t *testing.T) {
	tests := []struct {
		name     string
		config   PipelineConfig
		expected string
	}{
		{
			name:     "returns configured value",
			config:   PipelineConfig{Branch: "release/1.4"},
			expected: "release/1.4",
		},
		{
			name:     "returns default when empty",
			config:   PipelineConfig{Branch: ""},
			expected: DefaultBranch,
		},
		{
			name:     "returns default for zero value",
			config:   PipelineConfig{},
			expected: DefaultBranch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.GetBranch(); got != tt.expected {
				t.Errorf("GetBranch() = %q, want %q", got, tt.expected)
			}
		})
	}
}

// TestPipelineConfig_GetPythonBin verifies default fallback.
func TestPipelineConfig_GetPythonBin(t *testing.T) {
	tests := []struct {
		name     string
		config   PipelineConfig
		expected string
	}{
		{
			name:     "returns configured value",
			config:   PipelineConfig{PythonBin: "python3.12"},
			expected: "python3.12",
		},
		{
			name:     "returns default when empty",
			config:   PipelineConfig{PythonBin: ""},
			expected: DefaultPythonBin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.GetPythonBin(); got != tt.expected {
				t.Errorf("GetPythonBin() = %q, want %q", got, tt.expected)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// InfraConfig Tests
// -----------------------------------------------------------------------------

// TestInfraConfig_GetPostgresImage verifies default fallback.
func TestInfraConfig_GetPostgresImage(t *testing.T) {
	tests := []struct {
		name     string
		config   InfraConfig
		expected string
	}{
		{
			name:     "returns configured value",
			config:   InfraConfig{PostgresImage: "postgres:16"},
			expected: "postgres:16",
		},
		{
			name:     "returns default when empty",
			config:   InfraConfig{PostgresImage: ""},
			expected: DefaultPostgresImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.GetPostgresImage(); got != tt.expected {
				t.Errorf("GetPostgresImage() = %q, want %q", got, tt.expected)
			}
		})
	}
}

// TestInfraConfig_GetPostgresBasePort verifies default fallback.
func TestInfraConfig_GetPostgresBasePort(t *testing.T) {
	tests := []struct {
		name     string
		config   InfraConfig
		expected int
	}{
		{
			name:     "returns configured value",
			config:   InfraConfig{PostgresBasePort: 15432},
			expected: 15432,
		},
		{
			name:     "returns default when zero",
			config:   InfraConfig{PostgresBasePort: 0},
			expected: DefaultPostgresBasePort,
		},
		{
			name:     "returns default when negative",
			config:   InfraConfig{PostgresBasePort: -10},
			expected: DefaultPostgresBasePort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.GetPostgresBasePort(); got != tt.expected {
				t.Errorf("GetPostgresBasePort() = %d, want %d", got, tt.expected)
			}
		})
	}
}

// TestInfraConfig_GetRedisBasePort verifies default fallback.
func TestInfraConfig_GetRedisBasePort(t *testing.T) {
	tests := []struct {
		name     string
		config   InfraConfig
		expected int
	}{
		{
			name:     "returns configured value",
			config:   InfraConfig{RedisBasePort: 16379},
			expected: 16379,
		},
		{
			name:     "returns default when zero",
			config:   InfraConfig{RedisBasePort: 0},
			expected: DefaultRedisBasePort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.GetRedisBasePort(); got != tt.expected {
				t.Errorf("GetRedisBasePort() = %d, want %d", got, tt.expected)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// RegistryConfig Tests
// -----------------------------------------------------------------------------

// TestRegistryConfig_Repository verifies push target assembly.
func TestRegistryConfig_Repository(t *testing.T) {
	tests := []struct {
		name     string
		config   RegistryConfig
		expected string
	}{
		{
			name:     "docker hub when no registry url",
			config:   RegistryConfig{Image: "acme/gig-router"},
			expected: "acme/gig-router",
		},
		{
			name:     "private registry prefixes image",
			config:   RegistryConfig{URL: "registry.example.com:5000", Image: "ci/gig-router"},
			expected: "registry.example.com:5000/ci/gig-router",
		},
		{
			name:     "trailing slash on url is trimmed",
			config:   RegistryConfig{URL: "registry.example.com/", Image: "gig-router"},
			expected: "registry.example.com/gig-router",
		},
		{
			name:     "empty image falls back to app name",
			config:   RegistryConfig{},
			expected: DefaultAppName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.Repository(); got != tt.expected {
				t.Errorf("Repository() = %q, want %q", got, tt.expected)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Enablement Tests
// -----------------------------------------------------------------------------

// TestNexusConfig_Enabled verifies uploads stay off until a URL is set.
func TestNexusConfig_Enabled(t *testing.T) {
	if (NexusConfig{}).Enabled() {
		t.Error("Enabled() should be false with no URL")
	}

	cfg := NexusConfig{URL: "https://nexus.example.com", Repository: "raw-artifacts"}
	if !cfg.Enabled() {
		t.Error("Enabled() should be true once a URL is configured")
	}
}

// TestStorageConfig_Enabled verifies uploads stay off until a bucket is set.
func TestStorageConfig_Enabled(t *testing.T) {
	if (StorageConfig{}).Enabled() {
		t.Error("Enabled() should be false with no bucket")
	}

	cfg := StorageConfig{GCSBucket: "ship-artifacts", GCSPrefix: "gig-router"}
	if !cfg.Enabled() {
		t.Error("Enabled() should be true once a bucket is configured")
	}
}

// -----------------------------------------------------------------------------
// CredentialConfig Tests
// -----------------------------------------------------------------------------

// TestCredentialConfig_Getters verifies the well-known ID fallbacks.
func TestCredentialConfig_Getters(t *testing.T) {
	var empty CredentialConfig

	if got := empty.GetGitID(); got != DefaultGitCredentialID {
		t.Errorf("GetGitID() = %q, want %q", got, DefaultGitCredentialID)
	}
	if got := empty.GetSonarID(); got != DefaultSonarCredentialID {
		t.Errorf("GetSonarID() = %q, want %q", got, DefaultSonarCredentialID)
	}
	if got := empty.GetNexusID(); got != DefaultNexusCredentialID {
		t.Errorf("GetNexusID() = %q, want %q", got, DefaultNexusCredentialID)
	}
	if got := empty.GetDockerID(); got != DefaultDockerCredentialID {
		t.Errorf("GetDockerID() = %q, want %q", got, DefaultDockerCredentialID)
	}

	custom := CredentialConfig{
		GitID:    "github-deploy-key",
		SonarID:  "sonar-prod",
		NexusID:  "nexus-ci",
		DockerID: "harbor-robot",
	}

	if got := custom.GetGitID(); got != "github-deploy-key" {
		t.Errorf("GetGitID() = %q, want %q", got, "github-deploy-key")
	}
	if got := custom.GetDockerID(); got != "harbor-robot" {
		t.Errorf("GetDockerID() = %q, want %q", got, "harbor-robot")
	}
}

// -----------------------------------------------------------------------------
// DefaultConfig Tests
// -----------------------------------------------------------------------------

// TestDefaultConfig_HasMeta verifies metadata is included.
func TestDefaultConfig_HasMeta(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Meta.Version == "" {
		t.Error("Meta.Version should not be empty")
	}

	if cfg.Meta.CreatedAt == 0 {
		t.Error("Meta.CreatedAt should not be zero")
	}

	if cfg.Meta.ModifiedAt == 0 {
		t.Error("Meta.ModifiedAt should not be zero")
	}

	if cfg.Meta.ModifiedBy == "" {
		t.Error("Meta.ModifiedBy should not be empty")
	}
}

// TestDefaultConfig_PipelineDefaults verifies pipeline configuration.
func TestDefaultConfig_PipelineDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Pipeline.Branch != DefaultBranch {
		t.Errorf("Pipeline.Branch = %q, want %q", cfg.Pipeline.Branch, DefaultBranch)
	}

	if cfg.Pipeline.AppName != DefaultAppName {
		t.Errorf("Pipeline.AppName = %q, want %q", cfg.Pipeline.AppName, DefaultAppName)
	}

	if cfg.Pipeline.PythonBin != DefaultPythonBin {
		t.Errorf("Pipeline.PythonBin = %q, want %q", cfg.Pipeline.PythonBin, DefaultPythonBin)
	}

	if cfg.Pipeline.WorkspaceRoot == "" {
		t.Error("Pipeline.WorkspaceRoot should not be empty")
	}
}

// TestDefaultConfig_InfraDefaults verifies test infrastructure configuration.
func TestDefaultConfig_InfraDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Infra.PostgresImage != DefaultPostgresImage {
		t.Errorf("Infra.PostgresImage = %q, want %q",
			cfg.Infra.PostgresImage, DefaultPostgresImage)
	}

	if cfg.Infra.RedisImage != DefaultRedisImage {
		t.Errorf("Infra.RedisImage = %q, want %q",
			cfg.Infra.RedisImage, DefaultRedisImage)
	}

	if cfg.Infra.PostgresBasePort != 5432 {
		t.Errorf("Infra.PostgresBasePort = %d, want %d", cfg.Infra.PostgresBasePort, 5432)
	}

	if cfg.Infra.RedisBasePort != 6379 {
		t.Errorf("Infra.RedisBasePort = %d, want %d", cfg.Infra.RedisBasePort, 6379)
	}
}

// TestDefaultConfig_CredentialDefaults verifies the well-known credential IDs.
func TestDefaultConfig_CredentialDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Credentials.GitID != "git-creds" {
		t.Errorf("Credentials.GitID = %q, want %q", cfg.Credentials.GitID, "git-creds")
	}

	if cfg.Credentials.SonarID != "sonar" {
		t.Errorf("Credentials.SonarID = %q, want %q", cfg.Credentials.SonarID, "sonar")
	}

	if cfg.Credentials.NexusID != "nexus-maven-creds" {
		t.Errorf("Credentials.NexusID = %q, want %q",
			cfg.Credentials.NexusID, "nexus-maven-creds")
	}

	if cfg.Credentials.DockerID != "docker-creds-id" {
		t.Errorf("Credentials.DockerID = %q, want %q",
			cfg.Credentials.DockerID, "docker-creds-id")
	}
}

// TestDefaultConfig_FeatureDefaults verifies feature toggles.
func TestDefaultConfig_FeatureDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Features.TrivyScan {
		t.Error("Features.TrivyScan should be true by default")
	}

	if !cfg.Features.SafetyScan {
		t.Error("Features.SafetyScan should be true by default")
	}

	if !cfg.Features.Observability {
		t.Error("Features.Observability should be true by default")
	}
}

// TestDefaultConfig_UploadsDisabled verifies Nexus and GCS start off.
func TestDefaultConfig_UploadsDisabled(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Nexus.Enabled() {
		t.Error("Nexus uploads should be disabled by default")
	}

	if cfg.Storage.Enabled() {
		t.Error("GCS uploads should be disabled by default")
	}
}

// -----------------------------------------------------------------------------
// Validation Tests
// -----------------------------------------------------------------------------

// TestShipConfig_Validate_Defaults verifies the shipped defaults pass.
func TestShipConfig_Validate_Defaults(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on DefaultConfig failed: %v", err)
	}
}

// TestShipConfig_Validate_RejectsBadValues verifies tag enforcement.
func TestShipConfig_Validate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ShipConfig)
	}{
		{
			name: "repo url must be a url",
			mutate: func(c *ShipConfig) {
				c.Pipeline.RepoURL = "not a url"
			},
		},
		{
			name: "sonar host url must be a url",
			mutate: func(c *ShipConfig) {
				c.Sonar.HostURL = "::::"
			},
		},
		{
			name: "postgres base port must fit in 16 bits",
			mutate: func(c *ShipConfig) {
				c.Infra.PostgresBasePort = 70000
			},
		},
		{
			name: "image repository must be lowercase",
			mutate: func(c *ShipConfig) {
				c.Registry.Image = "Acme/GigRouter"
			},
		},
		{
			name: "image repository must not contain spaces",
			mutate: func(c *ShipConfig) {
				c.Registry.Image = "gig router"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should have failed")
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Constants Tests
// -----------------------------------------------------------------------------

// TestConstants verifies constant values are as expected.
func TestConstants(t *testing.T) {
	if DefaultPostgresImage != "postgres:15-alpine" {
		t.Errorf("DefaultPostgresImage = %q, want %q",
			DefaultPostgresImage, "postgres:15-alpine")
	}

	if DefaultRedisImage != "redis:7-alpine" {
		t.Errorf("DefaultRedisImage = %q, want %q", DefaultRedisImage, "redis:7-alpine")
	}

	if DefaultPostgresBasePort != 5432 {
		t.Errorf("DefaultPostgresBasePort = %d, want %d", DefaultPostgresBasePort, 5432)
	}

	if DefaultRedisBasePort != 6379 {
		t.Errorf("DefaultRedisBasePort = %d, want %d", DefaultRedisBasePort, 6379)
	}

	if DefaultSonarProjectKey != "gig_router" {
		t.Errorf("DefaultSonarProjectKey = %q, want %q",
			DefaultSonarProjectKey, "gig_router")
	}

	if CurrentConfigVersion != "1.0.0" {
		t.Errorf("CurrentConfigVersion = %q, want %q",
			CurrentConfigVersion, "1.0.0")
	}

	// The credential IDs are contract values shared with existing CI setups;
	// renaming them breaks every agent that already stores secrets under them.
	if DefaultGitCredentialID != "git-creds" {
		t.Errorf("DefaultGitCredentialID = %q, want %q", DefaultGitCredentialID, "git-creds")
	}

	if DefaultSonarCredentialID != "sonar" {
		t.Errorf("DefaultSonarCredentialID = %q, want %q", DefaultSonarCredentialID, "sonar")
	}

	if DefaultNexusCredentialID != "nexus-maven-creds" {
		t.Errorf("DefaultNexusCredentialID = %q, want %q",
			DefaultNexusCredentialID, "nexus-maven-creds")
	}

	if DefaultDockerCredentialID != "docker-creds-id" {
		t.Errorf("DefaultDockerCredentialID = %q, want %q",
			DefaultDockerCredentialID, "docker-creds-id")
	}
}

// -----------------------------------------------------------------------------
// Workspace Tests
// -----------------------------------------------------------------------------

// TestBuildDefaultWorkspace verifies the fallback checkout root.
func TestBuildDefaultWorkspace(t *testing.T) {
	workspace := buildDefaultWorkspace()

	if workspace == "" {
		t.Fatal("buildDefaultWorkspace() returned empty string")
	}

	if !strings.Contains(workspace, "workspace") {
		t.Errorf("workspace %q should end in a workspace directory", workspace)
	}
}
