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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/AleutianAI/AleutianShip/cmd/ship/config"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/infra/process"
	"github.com/AleutianAI/AleutianShip/pkg/ux"
)

// Check grades. A fail on a required check is the only thing that makes
// doctor exit non-zero; warnings cover tools and credentials whose
// absence merely degrades a best-effort stage.
const (
	checkOK   = "ok"
	checkWarn = "warn"
	checkFail = "fail"
)

// doctorCheck is one row of the preflight report.
type doctorCheck struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Required bool   `json:"required"`
}

// toolRequirement describes one binary the pipeline shells out to.
type toolRequirement struct {
	Binary     string
	Args       []string
	MinVersion string // empty accepts any version
	Required   bool
	Stage      string // the stage that fails or degrades without it
}

// pipelineTools returns the binaries the stages invoke directly. The
// python tooling beyond the interpreter (pytest, flake8, bandit,
// safety) installs into the build virtualenv, so the interpreter is
// the only python binary worth probing here.
func pipelineTools() []toolRequirement {
	return []toolRequirement{
		{Binary: "git", Args: []string{"--version"}, MinVersion: "2.0", Required: true, Stage: "Checkout"},
		{Binary: "docker", Args: []string{"--version"}, MinVersion: "20.0", Required: true, Stage: "Setup Test Infrastructure"},
		{Binary: "python3", Args: []string{"--version"}, MinVersion: "3.10", Required: true, Stage: "Build"},
		{Binary: "trivy", Args: []string{"--version"}, MinVersion: "0.40", Stage: "Image Security Scan"},
		{Binary: "sonar-scanner", Args: []string{"--version"}, Stage: "SonarQube Analysis"},
	}
}

// runDoctor executes the doctor command.
//
// # Description
//
// Probes every binary the stages shell out to, audits the configured
// credential IDs (presence only, values are never resolved), and
// verifies the workspace root is writable. Exit code 1 only when a
// required check fails; a missing optional tool or credential is a
// warning because the affected stage degrades under the error policy
// instead of blocking the build.
func runDoctor(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	checks := runDoctorChecks(ctx, process.NewDefaultManager(),
		NewDefaultCredentialsManager(slog.Default()), &config.Global)

	if doctorJSONOutput {
		encoded, err := json.MarshalIndent(checks, "", "  ")
		if err != nil {
			ux.Error(err.Error())
			os.Exit(1)
		}
		fmt.Println(string(encoded))
	} else {
		fmt.Print(formatDoctorReport(checks))
		fmt.Println()
		failed, warned := countChecks(checks)
		switch {
		case failed > 0:
			ux.Error(fmt.Sprintf("%d required check(s) failed", failed))
		case warned > 0:
			ux.Warning(fmt.Sprintf("ready, with %d warning(s)", warned))
		default:
			ux.Success("all checks passed")
		}
	}
	os.Exit(doctorExitCode(checks))
}

// runDoctorChecks runs every probe and collects the report rows.
func runDoctorChecks(ctx context.Context, proc process.Manager, creds CredentialsManager, cfg *config.ShipConfig) []doctorCheck {
	var checks []doctorCheck
	for _, req := range pipelineTools() {
		checks = append(checks, checkTool(ctx, proc, req))
	}
	checks = append(checks, credentialChecks(ctx, creds, cfg)...)
	checks = append(checks, workspaceCheck(cfg))
	return checks
}

// checkTool probes one binary and grades the result.
func checkTool(ctx context.Context, proc process.Manager, req toolRequirement) doctorCheck {
	check := doctorCheck{Name: req.Binary, Required: req.Required}

	out, err := proc.Run(ctx, req.Binary, req.Args...)
	if err != nil {
		if req.Required {
			check.Status = checkFail
			check.Detail = fmt.Sprintf("not found (%s is fatal without it)", req.Stage)
		} else {
			check.Status = checkWarn
			check.Detail = fmt.Sprintf("not found (%s degrades)", req.Stage)
		}
		return check
	}

	version := extractVersion(string(out))
	if version == "" {
		check.Status = checkWarn
		check.Detail = "could not parse a version from the tool output"
		return check
	}
	if req.MinVersion != "" && !versionAtLeast(version, req.MinVersion) {
		if req.Required {
			check.Status = checkFail
		} else {
			check.Status = checkWarn
		}
		check.Detail = fmt.Sprintf("found %s, need >= %s", version, req.MinVersion)
		return check
	}

	check.Status = checkOK
	check.Detail = version
	return check
}

// versionPattern matches the first dotted version in tool output,
// tolerating the decorations each tool adds ("git version 2.39.2",
// "Docker version 24.0.5, build ced0996", "Python 3.11.4",
// "INFO: SonarScanner 4.8.0.2856").
var versionPattern = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?`)

// extractVersion pulls the first dotted version number out of tool
// output. Returns "" when no version is recognizable.
func extractVersion(output string) string {
	return versionPattern.FindString(output)
}

// versionAtLeast reports whether version is at least min. Both sides
// tolerate a missing patch component.
func versionAtLeast(version, min string) bool {
	v := "v" + strings.TrimPrefix(version, "v")
	m := "v" + strings.TrimPrefix(min, "v")
	if !semver.IsValid(v) || !semver.IsValid(m) {
		return false
	}
	return semver.Compare(v, m) >= 0
}

// credentialChecks audits the configured credential IDs. Presence
// only: values are neither resolved nor logged here.
func credentialChecks(ctx context.Context, creds CredentialsManager, cfg *config.ShipConfig) []doctorCheck {
	audits := []struct {
		id    string
		stage string
	}{
		{cfg.Credentials.GetGitID(), "Checkout"},
		{cfg.Credentials.GetSonarID(), "SonarQube Analysis"},
		{cfg.Credentials.GetNexusID(), "Package Artifact"},
		{cfg.Credentials.GetDockerID(), "Push to Registry"},
	}

	checks := make([]doctorCheck, 0, len(audits))
	for _, audit := range audits {
		check := doctorCheck{Name: "credential " + audit.id}
		ok, err := creds.HasCredential(ctx, audit.id)
		switch {
		case err != nil:
			check.Status = checkWarn
			check.Detail = err.Error()
		case ok:
			check.Status = checkOK
			check.Detail = "configured"
		default:
			check.Status = checkWarn
			check.Detail = fmt.Sprintf("not configured (%s degrades or fails at run time)", audit.stage)
		}
		checks = append(checks, check)
	}
	return checks
}

// workspaceCheck verifies the workspace root exists and is writable.
func workspaceCheck(cfg *config.ShipConfig) doctorCheck {
	root := cfg.Pipeline.GetWorkspaceRoot()
	check := doctorCheck{Name: "workspace " + root, Required: true}

	if err := os.MkdirAll(root, 0o755); err != nil {
		check.Status = checkFail
		check.Detail = err.Error()
		return check
	}
	probe, err := os.CreateTemp(root, ".doctor-*")
	if err != nil {
		check.Status = checkFail
		check.Detail = fmt.Sprintf("not writable: %v", err)
		return check
	}
	probe.Close()
	os.Remove(probe.Name())

	check.Status = checkOK
	check.Detail = "writable"
	return check
}

// formatDoctorReport renders one line per check. The icon carries the
// grade; the detail column explains it.
func formatDoctorReport(checks []doctorCheck) string {
	var b strings.Builder
	for _, check := range checks {
		var icon string
		switch check.Status {
		case checkOK:
			icon = ux.IconSuccess.Render()
		case checkWarn:
			icon = ux.IconWarning.Render()
		default:
			icon = ux.IconError.Render()
		}
		fmt.Fprintf(&b, "%s %-34s %s\n", icon, check.Name, check.Detail)
	}
	return b.String()
}

// countChecks tallies failures and warnings for the verdict line.
func countChecks(checks []doctorCheck) (failed, warned int) {
	for _, check := range checks {
		switch check.Status {
		case checkFail:
			failed++
		case checkWarn:
			warned++
		}
	}
	return failed, warned
}

// doctorExitCode is 1 only when a check failed outright.
func doctorExitCode(checks []doctorCheck) int {
	for _, check := range checks {
		if check.Status == checkFail {
			return 1
		}
	}
	return 0
}
