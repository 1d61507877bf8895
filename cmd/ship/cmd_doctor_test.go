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

/*
Doctor command tests.

# Testing Strategy

The doctor handler calls os.Exit, so tests exercise the probes beneath
it: version extraction and comparison, tool grading against a scripted
process.MockManager, credential presence against the mock credentials
manager, and workspace checks against t.TempDir. Credential probes are
asserted by ID only; no test ever inspects a secret value.
*/

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianShip/cmd/ship/config"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/infra/process"
)

// ----------------------------------------------------------------------------
// Version extraction
// ----------------------------------------------------------------------------

func TestExtractVersion(t *testing.T) {
	cases := []struct {
		name   string
		output string
		want   string
	}{
		{"git", "git version 2.39.2", "2.39.2"},
		{"docker", "Docker version 24.0.5, build ca3bcf2", "24.0.5"},
		{"python", "Python 3.11.4", "3.11.4"},
		{"trivy", "Version: 0.44.0", "0.44.0"},
		{"sonar scanner multi line", "INFO: Scanner configuration file: /opt/sonar/conf/sonar-scanner.properties\nINFO: SonarScanner 4.8.0.2856\nINFO: Java 17.0.7", "4.8.0"},
		{"two part version", "tool 2.39", "2.39"},
		{"no version", "command not found", ""},
		{"empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractVersion(tc.output); got != tc.want {
				t.Errorf("extractVersion(%q) = %q, want %q", tc.output, got, tc.want)
			}
		})
	}
}

func TestVersionAtLeast(t *testing.T) {
	cases := []struct {
		version string
		min     string
		want    bool
	}{
		{"2.39.2", "2.0", true},
		{"1.9", "2.0", false},
		{"3.10", "3.10", true},
		{"24.0.5", "20.0", true},
		{"0.39", "0.40", false},
		{"0.44.0", "0.40", true},
		{"3.9.18", "3.10", false},
		{"garbage", "2.0", false},
	}

	for _, tc := range cases {
		if got := versionAtLeast(tc.version, tc.min); got != tc.want {
			t.Errorf("versionAtLeast(%q, %q) = %v, want %v", tc.version, tc.min, got, tc.want)
		}
	}
}

// ----------------------------------------------------------------------------
// Tool probes
// ----------------------------------------------------------------------------

func TestCheckTool_Found(t *testing.T) {
	proc := &process.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("git version 2.39.2"), nil
		},
	}
	req := toolRequirement{Binary: "git", Args: []string{"--version"}, MinVersion: "2.0", Required: true, Stage: "Checkout"}

	check := checkTool(context.Background(), proc, req)

	if check.Status != checkOK {
		t.Fatalf("Status = %q, want %q (detail: %s)", check.Status, checkOK, check.Detail)
	}
	if check.Detail != "2.39.2" {
		t.Errorf("Detail = %q, want the version", check.Detail)
	}
	if len(proc.Calls) != 1 || proc.Calls[0].Name != "git" {
		t.Fatalf("expected one probe of git, got %+v", proc.Calls)
	}
	if len(proc.Calls[0].Args) != 1 || proc.Calls[0].Args[0] != "--version" {
		t.Errorf("probe args = %v, want [--version]", proc.Calls[0].Args)
	}
}

func TestCheckTool_NotFoundRequired(t *testing.T) {
	proc := &process.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, errors.New(`exec: "docker": executable file not found in $PATH`)
		},
	}
	req := toolRequirement{Binary: "docker", Args: []string{"--version"}, Required: true, Stage: "Setup Test Infrastructure"}

	check := checkTool(context.Background(), proc, req)

	if check.Status != checkFail {
		t.Fatalf("Status = %q, want %q", check.Status, checkFail)
	}
	if !strings.Contains(check.Detail, "not found") || !strings.Contains(check.Detail, "Setup Test Infrastructure") {
		t.Errorf("Detail = %q, want the stage named", check.Detail)
	}
}

func TestCheckTool_NotFoundOptional(t *testing.T) {
	proc := &process.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, errors.New("executable file not found")
		},
	}
	req := toolRequirement{Binary: "trivy", Args: []string{"--version"}, Stage: "Image Security Scan"}

	check := checkTool(context.Background(), proc, req)

	if check.Status != checkWarn {
		t.Fatalf("Status = %q, want %q", check.Status, checkWarn)
	}
	if !strings.Contains(check.Detail, "degrades") {
		t.Errorf("Detail = %q, want a degradation note", check.Detail)
	}
}

func TestCheckTool_BelowMinimumRequired(t *testing.T) {
	proc := &process.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("git version 1.8.3"), nil
		},
	}
	req := toolRequirement{Binary: "git", Args: []string{"--version"}, MinVersion: "2.0", Required: true, Stage: "Checkout"}

	check := checkTool(context.Background(), proc, req)

	if check.Status != checkFail {
		t.Fatalf("Status = %q, want %q", check.Status, checkFail)
	}
	if !strings.Contains(check.Detail, "found 1.8.3") || !strings.Contains(check.Detail, ">= 2.0") {
		t.Errorf("Detail = %q, want both versions named", check.Detail)
	}
}

func TestCheckTool_BelowMinimumOptional(t *testing.T) {
	proc := &process.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("Version: 0.39.1"), nil
		},
	}
	req := toolRequirement{Binary: "trivy", Args: []string{"--version"}, MinVersion: "0.40", Stage: "Image Security Scan"}

	check := checkTool(context.Background(), proc, req)

	if check.Status != checkWarn {
		t.Fatalf("Status = %q, want %q", check.Status, checkWarn)
	}
}

func TestCheckTool_UnparseableVersion(t *testing.T) {
	proc := &process.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("no digits in this output"), nil
		},
	}
	req := toolRequirement{Binary: "git", Args: []string{"--version"}, MinVersion: "2.0", Required: true}

	check := checkTool(context.Background(), proc, req)

	if check.Status != checkWarn {
		t.Fatalf("Status = %q, want %q", check.Status, checkWarn)
	}
	if !strings.Contains(check.Detail, "could not parse") {
		t.Errorf("Detail = %q", check.Detail)
	}
}

func TestCheckTool_NoMinimumAcceptsAnyVersion(t *testing.T) {
	proc := &process.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("INFO: SonarScanner 4.8.0.2856"), nil
		},
	}
	req := toolRequirement{Binary: "sonar-scanner", Args: []string{"--version"}, Stage: "SonarQube Analysis"}

	check := checkTool(context.Background(), proc, req)

	if check.Status != checkOK {
		t.Fatalf("Status = %q, want %q (detail: %s)", check.Status, checkOK, check.Detail)
	}
}

func TestPipelineTools_RequiredSet(t *testing.T) {
	required := map[string]bool{}
	for _, req := range pipelineTools() {
		required[req.Binary] = req.Required
	}

	for _, binary := range []string{"git", "docker", "python3"} {
		if !required[binary] {
			t.Errorf("%s should be a required tool", binary)
		}
	}
	for _, binary := range []string{"trivy", "sonar-scanner"} {
		if required[binary] {
			t.Errorf("%s should be optional", binary)
		}
	}
}

// ----------------------------------------------------------------------------
// Credential audits
// ----------------------------------------------------------------------------

func TestCredentialChecks_PresenceByID(t *testing.T) {
	creds := NewMockCredentialsManager()
	creds.AddUserPass("git-creds", "ci", "secret")
	creds.AddToken("sonar", "token")

	cfg := &config.ShipConfig{}
	checks := credentialChecks(context.Background(), creds, cfg)

	if len(checks) != 4 {
		t.Fatalf("expected 4 credential checks, got %d", len(checks))
	}

	byName := map[string]doctorCheck{}
	for _, check := range checks {
		byName[check.Name] = check
	}

	if got := byName["credential git-creds"]; got.Status != checkOK || got.Detail != "configured" {
		t.Errorf("git-creds = %+v, want ok/configured", got)
	}
	if got := byName["credential sonar"]; got.Status != checkOK {
		t.Errorf("sonar = %+v, want ok", got)
	}
	if got := byName["credential nexus-maven-creds"]; got.Status != checkWarn {
		t.Errorf("nexus-maven-creds = %+v, want warn", got)
	}
	got := byName["credential docker-creds-id"]
	if got.Status != checkWarn || !strings.Contains(got.Detail, "Push to Registry") {
		t.Errorf("docker-creds-id = %+v, want warn naming the push stage", got)
	}
}

func TestCredentialChecks_NeverExposesValues(t *testing.T) {
	creds := NewMockCredentialsManager()
	creds.AddToken("sonar", "hunter2-super-secret")

	checks := credentialChecks(context.Background(), creds, &config.ShipConfig{})

	for _, check := range checks {
		if strings.Contains(check.Detail, "hunter2") || strings.Contains(check.Name, "hunter2") {
			t.Fatalf("credential value leaked into the report: %+v", check)
		}
	}
}

func TestCredentialChecks_BackendError(t *testing.T) {
	creds := NewMockCredentialsManager()
	creds.ForceError = errors.New("vault sealed")

	checks := credentialChecks(context.Background(), creds, &config.ShipConfig{})

	for _, check := range checks {
		if check.Status != checkWarn {
			t.Errorf("%s = %q, want warn on backend error", check.Name, check.Status)
		}
	}
}

func TestCredentialChecks_ConfiguredIDs(t *testing.T) {
	creds := NewMockCredentialsManager()
	cfg := &config.ShipConfig{
		Credentials: config.CredentialConfig{GitID: "corp-git", DockerID: "corp-docker"},
	}

	checks := credentialChecks(context.Background(), creds, cfg)

	names := make([]string, 0, len(checks))
	for _, check := range checks {
		names = append(names, check.Name)
	}
	joined := strings.Join(names, " ")
	if !strings.Contains(joined, "corp-git") || !strings.Contains(joined, "corp-docker") {
		t.Errorf("configured IDs not audited: %v", names)
	}
}

// ----------------------------------------------------------------------------
// Workspace
// ----------------------------------------------------------------------------

func TestWorkspaceCheck_Writable(t *testing.T) {
	cfg := &config.ShipConfig{}
	cfg.Pipeline.WorkspaceRoot = t.TempDir()

	check := workspaceCheck(cfg)

	if check.Status != checkOK {
		t.Fatalf("Status = %q, want ok (detail: %s)", check.Status, check.Detail)
	}
	if !check.Required {
		t.Error("workspace check should be required")
	}
}

func TestWorkspaceCheck_CreatesMissingRoot(t *testing.T) {
	cfg := &config.ShipConfig{}
	cfg.Pipeline.WorkspaceRoot = filepath.Join(t.TempDir(), "nested", "workspace")

	check := workspaceCheck(cfg)

	if check.Status != checkOK {
		t.Fatalf("Status = %q, want ok (detail: %s)", check.Status, check.Detail)
	}
}

// ----------------------------------------------------------------------------
// Assembly and verdict
// ----------------------------------------------------------------------------

func TestRunDoctorChecks_FullReport(t *testing.T) {
	proc := &process.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			switch name {
			case "git":
				return []byte("git version 2.39.2"), nil
			case "docker":
				return []byte("Docker version 24.0.5, build ca3bcf2"), nil
			case "python3":
				return []byte("Python 3.11.4"), nil
			default:
				return nil, fmt.Errorf("%s: executable file not found", name)
			}
		},
	}
	creds := NewMockCredentialsManager()
	cfg := &config.ShipConfig{}
	cfg.Pipeline.WorkspaceRoot = t.TempDir()

	checks := runDoctorChecks(context.Background(), proc, creds, cfg)

	// 5 tools + 4 credentials + workspace.
	if len(checks) != 10 {
		t.Fatalf("expected 10 checks, got %d: %+v", len(checks), checks)
	}

	failed, warned := countChecks(checks)
	if failed != 0 {
		t.Errorf("failed = %d, want 0 (required tools all present)", failed)
	}
	// trivy, sonar-scanner, 4 absent credentials.
	if warned != 6 {
		t.Errorf("warned = %d, want 6", warned)
	}
	if code := doctorExitCode(checks); code != 0 {
		t.Errorf("exit code = %d, want 0 when only warnings remain", code)
	}
}

func TestDoctorExitCode(t *testing.T) {
	allOK := []doctorCheck{{Status: checkOK}, {Status: checkOK}}
	if code := doctorExitCode(allOK); code != 0 {
		t.Errorf("all ok: exit = %d, want 0", code)
	}

	withWarn := []doctorCheck{{Status: checkOK}, {Status: checkWarn}}
	if code := doctorExitCode(withWarn); code != 0 {
		t.Errorf("warnings only: exit = %d, want 0", code)
	}

	withFail := []doctorCheck{{Status: checkOK}, {Status: checkFail}}
	if code := doctorExitCode(withFail); code != 1 {
		t.Errorf("with failure: exit = %d, want 1", code)
	}
}

func TestFormatDoctorReport(t *testing.T) {
	quietUX(t)

	checks := []doctorCheck{
		{Name: "git", Status: checkOK, Detail: "2.39.2"},
		{Name: "trivy", Status: checkWarn, Detail: "not found (Image Security Scan degrades)"},
		{Name: "workspace /tmp/ship", Status: checkFail, Detail: "not writable: permission denied"},
	}

	report := formatDoctorReport(checks)

	for _, want := range []string{"git", "2.39.2", "trivy", "not found", "workspace /tmp/ship", "not writable"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
	if lines := strings.Count(report, "\n"); lines != 3 {
		t.Errorf("expected 3 lines, got %d:\n%s", lines, report)
	}
}

// ----------------------------------------------------------------------------
// Command wiring
// ----------------------------------------------------------------------------

func TestDoctorCommandFlags(t *testing.T) {
	flag := doctorCmd.Flags().Lookup("json")
	if flag == nil {
		t.Fatal("doctor should expose --json")
	}
	if flag.DefValue != "false" {
		t.Errorf("--json default = %q, want false", flag.DefValue)
	}
}

func TestDoctorCommand_InterfaceCompliance(t *testing.T) {
	if doctorCmd.Use != "doctor" {
		t.Errorf("Use = %q, want doctor", doctorCmd.Use)
	}
	if doctorCmd.Run == nil {
		t.Error("doctor has no Run handler")
	}
}
