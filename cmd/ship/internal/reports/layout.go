// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reports owns the report tree a build leaves behind and the
// parsers that turn tool output into loggable summaries.
package reports

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace-relative report locations. Tools run with the workspace as
// their working directory and receive these as-is.
const (
	RelDir          = "reports"
	RelJUnitXML     = "reports/junit.xml"
	RelCoverageXML  = "reports/coverage.xml"
	RelCoverageHTML = "reports/htmlcov"
	RelFlake8       = "reports/flake8.txt"
	RelBanditJSON   = "reports/bandit.json"
	RelSafetyJSON   = "reports/safety.json"
	RelTrivyJSON    = "reports/trivy.json"
)

// Layout resolves the report locations of one workspace to absolute
// paths.
type Layout struct {
	workspace string
}

// NewLayout creates a Layout rooted at an absolute workspace path.
func NewLayout(workspace string) (Layout, error) {
	if workspace == "" {
		return Layout{}, fmt.Errorf("workspace is required")
	}
	if !filepath.IsAbs(workspace) {
		return Layout{}, fmt.Errorf("workspace must be absolute: %s", workspace)
	}
	return Layout{workspace: workspace}, nil
}

// Workspace returns the workspace root.
func (l Layout) Workspace() string {
	return l.workspace
}

// Dir returns the absolute report directory.
func (l Layout) Dir() string {
	return l.abs(RelDir)
}

// JUnitXML returns the absolute JUnit report path.
func (l Layout) JUnitXML() string {
	return l.abs(RelJUnitXML)
}

// CoverageXML returns the absolute XML coverage report path.
func (l Layout) CoverageXML() string {
	return l.abs(RelCoverageXML)
}

// CoverageHTML returns the absolute HTML coverage directory.
func (l Layout) CoverageHTML() string {
	return l.abs(RelCoverageHTML)
}

// Flake8 returns the absolute flake8 report path.
func (l Layout) Flake8() string {
	return l.abs(RelFlake8)
}

// BanditJSON returns the absolute bandit report path.
func (l Layout) BanditJSON() string {
	return l.abs(RelBanditJSON)
}

// SafetyJSON returns the absolute safety report path.
func (l Layout) SafetyJSON() string {
	return l.abs(RelSafetyJSON)
}

// TrivyJSON returns the absolute trivy report path.
func (l Layout) TrivyJSON() string {
	return l.abs(RelTrivyJSON)
}

// EnsureDir creates the report directory if missing.
func (l Layout) EnsureDir() error {
	if err := os.MkdirAll(l.Dir(), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	return nil
}

func (l Layout) abs(rel string) string {
	return filepath.Join(l.workspace, filepath.FromSlash(rel))
}
