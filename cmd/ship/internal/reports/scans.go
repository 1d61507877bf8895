// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reports

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"
)

// =============================================================================
// Severity Model
// =============================================================================

// Severity is a normalized finding severity across scanners.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityUnknown  Severity = "UNKNOWN"
)

// severityOrder lists severities from most to least severe.
var severityOrder = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityUnknown,
}

func (s Severity) rank() int {
	for i, sev := range severityOrder {
		if sev == s {
			return len(severityOrder) - i
		}
	}
	return 0
}

// normalizeSeverity maps scanner-specific severity strings onto the
// shared scale.
func normalizeSeverity(raw string) Severity {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "CRITICAL":
		return SeverityCritical
	case "HIGH":
		return SeverityHigh
	case "MEDIUM", "MODERATE":
		return SeverityMedium
	case "LOW":
		return SeverityLow
	default:
		return SeverityUnknown
	}
}

// maxFindings caps the findings kept on a summary. Totals stay accurate
// regardless.
const maxFindings = 25

// =============================================================================
// Summary Types
// =============================================================================

// Finding is one normalized scanner finding.
type Finding struct {
	// RuleID is the scanner's rule or vulnerability identifier.
	RuleID string `json:"rule_id,omitempty"`

	// Title is a short human-readable description.
	Title string `json:"title"`

	// Severity is the normalized severity.
	Severity Severity `json:"severity"`

	// File is the affected source file, when the scanner reports one.
	File string `json:"file,omitempty"`

	// Line is the affected line, when the scanner reports one.
	Line int `json:"line,omitempty"`

	// Package is the affected dependency, when the scanner reports one.
	Package string `json:"package,omitempty"`
}

// ScanSummary aggregates one scanner's report by severity.
type ScanSummary struct {
	// Tool is the scanner name ("bandit", "safety", "trivy").
	Tool string `json:"tool"`

	// Total is the full finding count.
	Total int `json:"total"`

	// BySeverity counts findings per normalized severity.
	BySeverity map[Severity]int `json:"by_severity,omitempty"`

	// Findings holds up to maxFindings findings, most severe first.
	Findings []Finding `json:"findings,omitempty"`
}

// String renders the summary the way build logs report it.
func (s ScanSummary) String() string {
	if s.Total == 0 {
		return fmt.Sprintf("%s: no findings", s.Tool)
	}
	parts := make([]string, 0, len(severityOrder))
	for _, sev := range severityOrder {
		if n := s.BySeverity[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	return fmt.Sprintf("%s: %d findings (%s)", s.Tool, s.Total, strings.Join(parts, ", "))
}

// newSummary builds a summary from raw findings.
func newSummary(tool string, findings []Finding) *ScanSummary {
	summary := &ScanSummary{
		Tool:       tool,
		Total:      len(findings),
		BySeverity: map[Severity]int{},
	}
	for _, f := range findings {
		summary.BySeverity[f.Severity]++
	}
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Severity.rank() != findings[j].Severity.rank() {
			return findings[i].Severity.rank() > findings[j].Severity.rank()
		}
		if findings[i].File != findings[j].File {
			return findings[i].File < findings[j].File
		}
		return findings[i].Line < findings[j].Line
	})
	if len(findings) > maxFindings {
		findings = findings[:maxFindings]
	}
	summary.Findings = findings
	return summary
}

// =============================================================================
// Bandit
// =============================================================================

type banditReport struct {
	Results []banditIssue `json:"results"`
}

type banditIssue struct {
	TestID        string `json:"test_id"`
	TestName      string `json:"test_name"`
	Filename      string `json:"filename"`
	LineNumber    int    `json:"line_number"`
	IssueText     string `json:"issue_text"`
	IssueSeverity string `json:"issue_severity"`
}

// ParseBandit parses a bandit JSON report into a severity summary.
func ParseBandit(data []byte) (*ScanSummary, error) {
	var report banditReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("invalid bandit json: %w", err)
	}

	findings := make([]Finding, 0, len(report.Results))
	for _, r := range report.Results {
		title := r.TestName
		if title == "" {
			title = r.IssueText
		}
		findings = append(findings, Finding{
			RuleID:   r.TestID,
			Title:    title,
			Severity: normalizeSeverity(r.IssueSeverity),
			File:     r.Filename,
			Line:     r.LineNumber,
		})
	}
	return newSummary("bandit", findings), nil
}

// =============================================================================
// Safety
// =============================================================================

type safetyReport struct {
	Vulnerabilities []safetyVulnerability `json:"vulnerabilities"`
}

type safetyVulnerability struct {
	PackageName     string `json:"package_name"`
	VulnerabilityID string `json:"vulnerability_id"`
	Advisory        string `json:"advisory"`
	Severity        string `json:"severity"`
	AnalyzedVersion string `json:"analyzed_version"`
}

// ParseSafety parses a safety JSON report into a severity summary.
//
// # Description
//
// Safety 2.x writes an object with a "vulnerabilities" array; 1.x wrote
// a bare array of rows. Both shapes are accepted. The free
// vulnerability database usually omits severities, so safety findings
// commonly land in UNKNOWN.
func ParseSafety(data []byte) (*ScanSummary, error) {
	var report safetyReport
	if err := json.Unmarshal(data, &report); err == nil {
		findings := make([]Finding, 0, len(report.Vulnerabilities))
		for _, v := range report.Vulnerabilities {
			findings = append(findings, Finding{
				RuleID:   v.VulnerabilityID,
				Title:    firstLine(v.Advisory),
				Severity: normalizeSeverity(v.Severity),
				Package:  v.PackageName,
			})
		}
		return newSummary("safety", findings), nil
	}

	var legacy [][]json.RawMessage
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("invalid safety json: %w", err)
	}

	findings := make([]Finding, 0, len(legacy))
	for _, row := range legacy {
		// Legacy rows: [package, affected, installed, advisory, id, ...]
		findings = append(findings, Finding{
			RuleID:   rawString(row, 4),
			Title:    firstLine(rawString(row, 3)),
			Severity: SeverityUnknown,
			Package:  rawString(row, 0),
		})
	}
	return newSummary("safety", findings), nil
}

// rawString decodes row[i] as a string, or returns "".
func rawString(row []json.RawMessage, i int) string {
	if i >= len(row) {
		return ""
	}
	var s string
	if err := json.Unmarshal(row[i], &s); err != nil {
		return ""
	}
	return s
}

// firstLine truncates multi-line advisories for display.
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}

// =============================================================================
// Trivy
// =============================================================================

type trivyReport struct {
	Results []trivyResult `json:"Results"`
}

type trivyResult struct {
	Target          string               `json:"Target"`
	Vulnerabilities []trivyVulnerability `json:"Vulnerabilities"`
}

type trivyVulnerability struct {
	VulnerabilityID  string `json:"VulnerabilityID"`
	PkgName          string `json:"PkgName"`
	InstalledVersion string `json:"InstalledVersion"`
	FixedVersion     string `json:"FixedVersion"`
	Severity         string `json:"Severity"`
	Title            string `json:"Title"`
}

// ParseTrivy parses a trivy image-scan JSON report into a severity
// summary. Result entries without vulnerabilities are normal (trivy
// emits one per scanned layer or lockfile).
func ParseTrivy(data []byte) (*ScanSummary, error) {
	var report trivyReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("invalid trivy json: %w", err)
	}

	var findings []Finding
	for _, result := range report.Results {
		for _, v := range result.Vulnerabilities {
			title := v.Title
			if title == "" {
				title = fmt.Sprintf("%s in %s", v.VulnerabilityID, v.PkgName)
			}
			findings = append(findings, Finding{
				RuleID:   v.VulnerabilityID,
				Title:    title,
				Severity: normalizeSeverity(v.Severity),
				Package:  v.PkgName,
			})
		}
	}
	return newSummary("trivy", findings), nil
}

// =============================================================================
// Flake8
// =============================================================================

// LintSummary aggregates a flake8 text report.
type LintSummary struct {
	// Total is the finding count.
	Total int `json:"total"`

	// ByCode counts findings per flake8 code (E501, F401, ...).
	ByCode map[string]int `json:"by_code,omitempty"`
}

// String renders the summary with its most frequent codes.
func (s LintSummary) String() string {
	if s.Total == 0 {
		return "flake8: no findings"
	}

	type codeCount struct {
		code  string
		count int
	}
	counts := make([]codeCount, 0, len(s.ByCode))
	for code, n := range s.ByCode {
		counts = append(counts, codeCount{code, n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].code < counts[j].code
	})
	if len(counts) > 3 {
		counts = counts[:3]
	}

	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = fmt.Sprintf("%s x%d", c.code, c.count)
	}
	return fmt.Sprintf("flake8: %d findings (top: %s)", s.Total, strings.Join(parts, ", "))
}

// flake8LineRegex matches "path:row:col: CODE message" report lines.
var flake8LineRegex = regexp.MustCompile(`^.+?:\d+:\d+:\s+([A-Z]+\d+)\b`)

// ParseFlake8 parses a flake8 text report.
func ParseFlake8(data []byte) (*LintSummary, error) {
	summary := &LintSummary{ByCode: map[string]int{}}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		summary.Total++
		if m := flake8LineRegex.FindStringSubmatch(line); m != nil {
			summary.ByCode[m[1]]++
		}
	}
	return summary, nil
}

// ParseFlake8File reads and parses a flake8 report.
func ParseFlake8File(path string) (*LintSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flake8 report: %w", err)
	}
	return ParseFlake8(data)
}

// =============================================================================
// Collection
// =============================================================================

// CollectScans parses whichever of the bandit, safety, and trivy
// reports exist under the layout.
//
// # Description
//
// Missing reports are normal (skipped stages write nothing) and are
// silently skipped. Unreadable or malformed reports come back as
// problems so the caller can log them; a broken report never fails a
// build.
func CollectScans(layout Layout) ([]ScanSummary, []error) {
	sources := []struct {
		tool  string
		path  string
		parse func([]byte) (*ScanSummary, error)
	}{
		{"bandit", layout.BanditJSON(), ParseBandit},
		{"safety", layout.SafetyJSON(), ParseSafety},
		{"trivy", layout.TrivyJSON(), ParseTrivy},
	}

	var summaries []ScanSummary
	var problems []error
	for _, src := range sources {
		data, err := os.ReadFile(src.path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			problems = append(problems, fmt.Errorf("%s report: %w", src.tool, err))
			continue
		}
		summary, err := src.parse(data)
		if err != nil {
			problems = append(problems, fmt.Errorf("%s report: %w", src.tool, err))
			continue
		}
		summaries = append(summaries, *summary)
	}
	return summaries, problems
}
