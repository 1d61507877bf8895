// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const (
	// CurrentConfigVersion is stamped into Meta on every freshly created config.
	CurrentConfigVersion = "1.0.0"

	DefaultBranch    = "main"
	DefaultAppName   = "gig-router"
	DefaultPythonBin = "python3"

	DefaultPostgresImage    = "postgres:15-alpine"
	DefaultRedisImage       = "redis:7-alpine"
	DefaultPostgresBasePort = 5432
	DefaultRedisBasePort    = 6379

	DefaultSonarHostURL    = "http://localhost:9000"
	DefaultSonarProjectKey = "gig_router"

	DefaultGitCredentialID    = "git-creds"
	DefaultSonarCredentialID  = "sonar"
	DefaultNexusCredentialID  = "nexus-maven-creds"
	DefaultDockerCredentialID = "docker-creds-id"
)

// shipValidate is the validator instance for config types.
// Initialized in init() with custom validators.
var shipValidate *validator.Validate

func init() {
	shipValidate = validator.New()

	// Docker rejects repository names with uppercase letters or spaces.
	_ = shipValidate.RegisterValidation("imagerepo", validateImageRepo)
}

// validateImageRepo rejects image repository names docker would refuse.
func validateImageRepo(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	for _, r := range name {
		if unicode.IsUpper(r) || unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// ConfigMeta records provenance for the on-disk config file.
type ConfigMeta struct {
	Version    string `yaml:"version"`
	CreatedAt  int64  `yaml:"created_at"`  // unix milliseconds
	ModifiedAt int64  `yaml:"modified_at"` // unix milliseconds
	ModifiedBy string `yaml:"modified_by"`
}

func newConfigMeta() ConfigMeta {
	now := time.Now().UnixMilli()
	return ConfigMeta{
		Version:    CurrentConfigVersion,
		CreatedAt:  now,
		ModifiedAt: now,
		ModifiedBy: "ship-cli",
	}
}

// CreatedAtTime returns CreatedAt as a time.Time.
func (m ConfigMeta) CreatedAtTime() time.Time {
	return time.UnixMilli(m.CreatedAt)
}

// ModifiedAtTime returns ModifiedAt as a time.Time.
func (m ConfigMeta) ModifiedAtTime() time.Time {
	return time.UnixMilli(m.ModifiedAt)
}

type ShipConfig struct {
	// Meta: File provenance, written once on first run
	Meta ConfigMeta `yaml:"meta"`

	// Pipeline: Per-job defaults for ship run
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Infra: Ephemeral test container images and base ports
	Infra InfraConfig `yaml:"test_infra"`

	// Sonar: Quality server endpoint and project identity
	Sonar SonarConfig `yaml:"sonarqube"`

	// Registry: Where built images are pushed
	Registry RegistryConfig `yaml:"registry"`

	// Nexus: Optional raw-repository artifact upload, off until a URL is set
	Nexus NexusConfig `yaml:"nexus"`

	// Storage: Optional GCS archive upload, off until a bucket is set
	Storage StorageConfig `yaml:"storage"`

	// Credentials: IDs resolved through the credentials manager at stage time
	Credentials CredentialConfig `yaml:"credentials"`

	// Features: Toggles for the best-effort scan stages
	Features FeatureConfig `yaml:"features"`
}

// Validate checks the config against its struct tags.
func (c *ShipConfig) Validate() error {
	return shipValidate.Struct(c)
}

type PipelineConfig struct {
	RepoURL       string `yaml:"repo_url" validate:"omitempty,url"`
	Branch        string `yaml:"branch"`
	AppName       string `yaml:"app_name"`
	PythonBin     string `yaml:"python_bin"`
	WorkspaceRoot string `yaml:"workspace_root"`
}

func (p PipelineConfig) GetBranch() string {
	if p.Branch == "" {
		return DefaultBranch
	}
	return p.Branch
}

func (p PipelineConfig) GetAppName() string {
	if p.AppName == "" {
		return DefaultAppName
	}
	return p.AppName
}

func (p PipelineConfig) GetPythonBin() string {
	if p.PythonBin == "" {
		return DefaultPythonBin
	}
	return p.PythonBin
}

func (p PipelineConfig) GetWorkspaceRoot() string {
	if p.WorkspaceRoot == "" {
		return buildDefaultWorkspace()
	}
	return p.WorkspaceRoot
}

type InfraConfig struct {
	PostgresImage    string `yaml:"postgres_image"`
	RedisImage       string `yaml:"redis_image"`
	PostgresBasePort int    `yaml:"postgres_base_port" validate:"gte=0,lte=65535"`
	RedisBasePort    int    `yaml:"redis_base_port" validate:"gte=0,lte=65535"`
}

func (i InfraConfig) GetPostgresImage() string {
	if i.PostgresImage == "" {
		return DefaultPostgresImage
	}
	return i.PostgresImage
}

func (i InfraConfig) GetRedisImage() string {
	if i.RedisImage == "" {
		return DefaultRedisImage
	}
	return i.RedisImage
}

func (i InfraConfig) GetPostgresBasePort() int {
	if i.PostgresBasePort <= 0 {
		return DefaultPostgresBasePort
	}
	return i.PostgresBasePort
}

func (i InfraConfig) GetRedisBasePort() int {
	if i.RedisBasePort <= 0 {
		return DefaultRedisBasePort
	}
	return i.RedisBasePort
}

type SonarConfig struct {
	HostURL    string `yaml:"host_url" validate:"omitempty,url"`
	ProjectKey string `yaml:"project_key"`
}

func (s SonarConfig) GetHostURL() string {
	if s.HostURL == "" {
		return DefaultSonarHostURL
	}
	return s.HostURL
}

func (s SonarConfig) GetProjectKey() string {
	if s.ProjectKey == "" {
		return DefaultSonarProjectKey
	}
	return s.ProjectKey
}

type RegistryConfig struct {
	// URL: Registry host, empty means Docker Hub
	URL string `yaml:"url"`

	// Image: Repository name for built images, lowercase per docker rules
	Image string `yaml:"image" validate:"omitempty,imagerepo"`
}

func (r RegistryConfig) GetImage() string {
	if r.Image == "" {
		return DefaultAppName
	}
	return r.Image
}

// Repository returns the full push target without a tag.
func (r RegistryConfig) Repository() string {
	image := r.GetImage()
	if r.URL == "" {
		return image
	}
	return strings.TrimSuffix(r.URL, "/") + "/" + image
}

type NexusConfig struct {
	URL        string `yaml:"url" validate:"omitempty,url"`
	Repository string `yaml:"repository"`
}

// Enabled reports whether artifact uploads to Nexus are configured.
func (n NexusConfig) Enabled() bool {
	return n.URL != ""
}

type StorageConfig struct {
	GCSBucket string `yaml:"gcs_bucket"`
	GCSPrefix string `yaml:"gcs_prefix"`
}

// Enabled reports whether artifact uploads to GCS are configured.
func (s StorageConfig) Enabled() bool {
	return s.GCSBucket != ""
}

type CredentialConfig struct {
	GitID    string `yaml:"git"`
	SonarID  string `yaml:"sonar"`
	NexusID  string `yaml:"nexus"`
	DockerID string `yaml:"docker"`
}

func (c CredentialConfig) GetGitID() string {
	if c.GitID == "" {
		return DefaultGitCredentialID
	}
	return c.GitID
}

func (c CredentialConfig) GetSonarID() string {
	if c.SonarID == "" {
		return DefaultSonarCredentialID
	}
	return c.SonarID
}

func (c CredentialConfig) GetNexusID() string {
	if c.NexusID == "" {
		return DefaultNexusCredentialID
	}
	return c.NexusID
}

func (c CredentialConfig) GetDockerID() string {
	if c.DockerID == "" {
		return DefaultDockerCredentialID
	}
	return c.DockerID
}

type FeatureConfig struct {
	TrivyScan     bool `yaml:"trivy_scan"`
	SafetyScan    bool `yaml:"safety_scan"`
	Observability bool `yaml:"observability"`
}

// buildDefaultWorkspace resolves the out-of-tree checkout root.
func buildDefaultWorkspace() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "workspace")
	}
	return filepath.Join(home, ".aleutianship", "workspace")
}

func DefaultConfig() ShipConfig {
	return ShipConfig{
		Meta: newConfigMeta(),
		Pipeline: PipelineConfig{
			Branch:        DefaultBranch,
			AppName:       DefaultAppName,
			PythonBin:     DefaultPythonBin,
			WorkspaceRoot: buildDefaultWorkspace(),
		},
		Infra: InfraConfig{
			PostgresImage:    DefaultPostgresImage,
			RedisImage:       DefaultRedisImage,
			PostgresBasePort: DefaultPostgresBasePort,
			RedisBasePort:    DefaultRedisBasePort,
		},
		Sonar: SonarConfig{
			HostURL:    DefaultSonarHostURL,
			ProjectKey: DefaultSonarProjectKey,
		},
		Registry: RegistryConfig{
			Image: DefaultAppName,
		},
		Credentials: CredentialConfig{
			GitID:    DefaultGitCredentialID,
			SonarID:  DefaultSonarCredentialID,
			NexusID:  DefaultNexusCredentialID,
			DockerID: DefaultDockerCredentialID,
		},
		Features: FeatureConfig{
			TrivyScan:     true,
			SafetyScan:    true,
			Observability: true,
		},
	}
}
