// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diagnostics

import "time"

// =============================================================================
// Constants
// =============================================================================

// BundleVersion is the schema version written into every bundle header.
// Bump when the bundle layout changes incompatibly.
const BundleVersion = "1.0"

// DefaultRetentionDays is how long stored bundles survive before Prune
// removes them.
const DefaultRetentionDays = 30

// DefaultContainerLogLines caps the log tail captured per container.
const DefaultContainerLogLines = 200

// Severity classifies why a bundle was collected.
type Severity string

const (
	// SeverityError marks bundles collected for a failed build.
	SeverityError Severity = "error"

	// SeverityWarning marks bundles collected for a degraded build.
	SeverityWarning Severity = "warning"

	// SeverityInfo marks bundles collected on request, not on failure.
	SeverityInfo Severity = "info"
)

// =============================================================================
// Collection Options
// =============================================================================

// CollectOptions controls what one collection gathers.
type CollectOptions struct {
	// Reason is a short machine-friendly cause, e.g. "stage_failure".
	// Used in the stored filename. Required.
	Reason string

	// Details is a human-readable elaboration, e.g. the failing error.
	Details string

	// Severity classifies the collection. Default: SeverityError.
	Severity Severity

	// BuildNumber scopes container discovery to one build when positive.
	// Zero collects every test container on the host.
	BuildNumber int

	// FailedStage names the stage that triggered collection, if any.
	FailedStage string

	// IncludeContainerLogs captures a log tail per test container.
	IncludeContainerLogs bool

	// ContainerLogLines caps the tail per container.
	// Default: DefaultContainerLogLines.
	ContainerLogLines int

	// WorkspaceDir is the directory whose filesystem gets a disk usage
	// probe. Empty skips the probe.
	WorkspaceDir string
}

// WithDefaults fills unset option fields.
func (o CollectOptions) WithDefaults() CollectOptions {
	if o.Reason == "" {
		o.Reason = "manual"
	}
	if o.Severity == "" {
		o.Severity = SeverityError
	}
	if o.ContainerLogLines <= 0 {
		o.ContainerLogLines = DefaultContainerLogLines
	}
	return o
}

// =============================================================================
// Bundle Structure
// =============================================================================

// Bundle is the full diagnostic snapshot written to storage.
type Bundle struct {
	Header        Header         `json:"header"`
	System        SystemInfo     `json:"system"`
	Tools         []ToolVersion  `json:"tools"`
	Docker        DockerInfo     `json:"docker"`
	ContainerLogs []ContainerLog `json:"container_logs,omitempty"`
	Disk          *DiskUsage     `json:"disk,omitempty"`
}

// Header identifies and explains one bundle.
type Header struct {
	// Version is the bundle schema version.
	Version string `json:"version"`

	// BundleID is a UUID naming this bundle across log lines and
	// support requests.
	BundleID string `json:"bundle_id"`

	// TraceID correlates the bundle with the build's trace.
	TraceID string `json:"trace_id,omitempty"`

	// SpanID is the collection span within the trace.
	SpanID string `json:"span_id,omitempty"`

	// TimestampMs is when collection started, Unix milliseconds.
	TimestampMs int64 `json:"timestamp_ms"`

	// DurationMs is how long collection took.
	DurationMs int64 `json:"duration_ms"`

	// Reason, Details, and Severity echo the collection options.
	Reason   string   `json:"reason"`
	Details  string   `json:"details,omitempty"`
	Severity Severity `json:"severity"`

	// BuildNumber is the build the bundle belongs to, zero if none.
	BuildNumber int `json:"build_number,omitempty"`

	// FailedStage names the stage that triggered collection, if any.
	FailedStage string `json:"failed_stage,omitempty"`
}

// SystemInfo is the static host snapshot.
type SystemInfo struct {
	OS          string `json:"os"`
	Arch        string `json:"arch"`
	GoVersion   string `json:"go_version"`
	NumCPU      int    `json:"num_cpu"`
	Hostname    string `json:"hostname"`
	ShipVersion string `json:"ship_version"`
}

// ToolVersion records one external tool probe.
type ToolVersion struct {
	// Tool is the binary name, e.g. "git".
	Tool string `json:"tool"`

	// Available reports whether the probe succeeded.
	Available bool `json:"available"`

	// Version is the first line of the tool's version output.
	Version string `json:"version,omitempty"`

	// Error carries the probe failure when Available is false.
	Error string `json:"error,omitempty"`
}

// DockerInfo captures engine reachability and the test containers.
type DockerInfo struct {
	// Available reports whether the docker CLI answered.
	Available bool `json:"available"`

	// Version is the client version when available.
	Version string `json:"version,omitempty"`

	// Error carries the probe failure when Available is false.
	Error string `json:"error,omitempty"`

	// Containers lists every matching test container, running or not.
	Containers []ContainerState `json:"containers,omitempty"`
}

// ContainerState is one row from container enumeration.
type ContainerState struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Image  string `json:"image"`
	Status string `json:"status"`
	Ports  string `json:"ports,omitempty"`
}

// ContainerLog is a captured log tail for one container.
type ContainerLog struct {
	// Container is the container name.
	Container string `json:"container"`

	// Lines is how many lines the tail holds.
	Lines int `json:"lines"`

	// Content is the raw tail, stdout and stderr interleaved.
	Content string `json:"content"`

	// Error carries the capture failure, if any.
	Error string `json:"error,omitempty"`
}

// DiskUsage is a filesystem capacity probe for the workspace.
type DiskUsage struct {
	Path        string  `json:"path"`
	TotalBytes  uint64  `json:"total_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// =============================================================================
// Collection Result
// =============================================================================

// Result summarizes one completed collection.
type Result struct {
	// Location is where the bundle was stored, an absolute file path
	// for file storage.
	Location string `json:"location"`

	// BundleID is the UUID from the bundle header.
	BundleID string `json:"bundle_id"`

	// TraceID and SpanID correlate the bundle with the build trace.
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`

	// SizeBytes is the stored bundle size.
	SizeBytes int64 `json:"size_bytes"`

	// DurationMs is how long collection took.
	DurationMs int64 `json:"duration_ms"`

	// CollectedAt is when collection started.
	CollectedAt time.Time `json:"collected_at"`
}

// StorageMetadata carries filename hints into the storage backend.
type StorageMetadata struct {
	// FilenameHint is sanitized and embedded in the stored name.
	FilenameHint string

	// ContentType describes the stored bytes.
	ContentType string
}
