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

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/infra/process"
)

// probedTools are the external binaries every bundle checks, in
// display order. Each is probed with its version flag.
var probedTools = []struct {
	tool string
	args []string
}{
	{"git", []string{"--version"}},
	{"docker", []string{"--version"}},
	{"python3", []string{"--version"}},
	{"trivy", []string{"--version"}},
	{"sonar-scanner", []string{"--version"}},
}

// toolProbeTimeout bounds each individual version probe so one hung
// binary cannot stall the whole collection.
const toolProbeTimeout = 10 * time.Second

// -----------------------------------------------------------------------------
// Collector Interface
// -----------------------------------------------------------------------------

// Collector captures diagnostic bundles.
//
// # Description
//
// Invoked by the pipeline when a fatal stage fails, and by `ship
// doctor --collect` on demand. Collection is best-effort throughout:
// an unreachable docker daemon or a missing tool becomes a field in
// the bundle, not a collection error. Only a storage failure fails
// Collect.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Collector interface {
	// Collect gathers one bundle and stores it.
	Collect(ctx context.Context, opts CollectOptions) (*Result, error)

	// LastResult returns the most recent collection result, nil if
	// nothing was collected yet.
	LastResult() *Result
}

// -----------------------------------------------------------------------------
// DefaultCollector Implementation
// -----------------------------------------------------------------------------

// DefaultCollector is the production collector.
//
// # Description
//
// Snapshots the host around a failed build: ship and tool versions,
// every test container the build (or any build) left behind with a log
// tail each, and how full the workspace filesystem is. The snapshot is
// exactly what a maintainer asks for first when a CI box starts
// failing builds, gathered while the evidence still exists.
//
// # Thread Safety
//
// DefaultCollector is safe for concurrent use.
type DefaultCollector struct {
	proc        process.Manager
	storage     Storage
	tracer      Tracer
	shipVersion string

	// statfsFunc is swappable for tests.
	statfsFunc func(path string, stat *unix.Statfs_t) error

	lastResult *Result
	mu         sync.RWMutex
}

// NewDefaultCollector creates a collector with production defaults:
// the real process manager, file storage under
// ~/.aleutianship/diagnostics, and the no-op tracer.
//
// # Inputs
//
//   - version: ship version string recorded in every bundle
//
// # Outputs
//
//   - *DefaultCollector: Ready-to-use collector
//   - error: Non-nil if storage initialization fails
func NewDefaultCollector(version string) (*DefaultCollector, error) {
	storage, err := NewFileStorage("")
	if err != nil {
		return nil, fmt.Errorf("failed to create diagnostics storage: %w", err)
	}

	return NewCollectorWithDeps(process.NewDefaultManager(), storage, NewNoOpTracer(), version), nil
}

// NewCollectorWithDeps creates a collector with injected dependencies.
//
// # Inputs
//
//   - proc: Process manager for tool and docker probes
//   - storage: Bundle persistence backend
//   - tracer: Build tracer for span correlation
//   - version: ship version string
func NewCollectorWithDeps(proc process.Manager, storage Storage, tracer Tracer, version string) *DefaultCollector {
	return &DefaultCollector{
		proc:        proc,
		storage:     storage,
		tracer:      tracer,
		shipVersion: version,
		statfsFunc:  unix.Statfs,
	}
}

// Collect implements Collector.
//
// # Description
//
// Opens a collection span, assembles the bundle, and stores it as
// JSON. The returned result carries the bundle UUID and trace IDs so
// the caller can print one line pointing at the evidence.
//
// # Inputs
//
//   - ctx: Context for cancellation; probes inherit it
//   - opts: What to gather and why
//
// # Outputs
//
//   - *Result: Location, bundle ID, and timing
//   - error: Non-nil only when marshalling or storage fails
func (c *DefaultCollector) Collect(ctx context.Context, opts CollectOptions) (*Result, error) {
	startTime := time.Now()
	opts = opts.WithDefaults()

	ctx, finish := c.tracer.StartSpan(ctx, "diagnostics.collect", map[string]string{
		"reason":   opts.Reason,
		"severity": string(opts.Severity),
	})

	bundle := c.buildBundle(ctx, opts, startTime)
	bundle.Header.DurationMs = time.Since(startTime).Milliseconds()

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		finish(err)
		return nil, fmt.Errorf("failed to encode bundle: %w", err)
	}

	hint := opts.Reason
	if opts.BuildNumber > 0 {
		hint = fmt.Sprintf("build%d-%s", opts.BuildNumber, opts.Reason)
	}
	location, err := c.storage.Store(ctx, data, StorageMetadata{
		FilenameHint: hint,
		ContentType:  "application/json",
	})
	if err != nil {
		finish(err)
		return nil, fmt.Errorf("failed to store bundle: %w", err)
	}
	finish(nil)

	result := &Result{
		Location:    location,
		BundleID:    bundle.Header.BundleID,
		TraceID:     bundle.Header.TraceID,
		SpanID:      bundle.Header.SpanID,
		SizeBytes:   int64(len(data)),
		DurationMs:  bundle.Header.DurationMs,
		CollectedAt: startTime,
	}

	c.mu.Lock()
	c.lastResult = result
	c.mu.Unlock()

	return result, nil
}

// LastResult implements Collector.
func (c *DefaultCollector) LastResult() *Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastResult
}

// -----------------------------------------------------------------------------
// Bundle Assembly
// -----------------------------------------------------------------------------

// buildBundle assembles every bundle section under the options.
func (c *DefaultCollector) buildBundle(ctx context.Context, opts CollectOptions, startTime time.Time) *Bundle {
	bundle := &Bundle{
		Header: Header{
			Version:     BundleVersion,
			BundleID:    uuid.NewString(),
			TraceID:     c.tracer.TraceID(ctx),
			SpanID:      c.tracer.SpanID(ctx),
			TimestampMs: startTime.UnixMilli(),
			Reason:      opts.Reason,
			Details:     opts.Details,
			Severity:    opts.Severity,
			BuildNumber: opts.BuildNumber,
			FailedStage: opts.FailedStage,
		},
	}

	bundle.System = c.collectSystemInfo()
	bundle.Tools = c.collectToolVersions(ctx)
	bundle.Docker = c.collectDockerInfo(ctx, opts.BuildNumber)

	if opts.IncludeContainerLogs && bundle.Docker.Available {
		bundle.ContainerLogs = c.collectContainerLogs(ctx, bundle.Docker.Containers, opts.ContainerLogLines)
	}
	if opts.WorkspaceDir != "" {
		bundle.Disk = c.collectDiskUsage(opts.WorkspaceDir)
	}

	return bundle
}

// collectSystemInfo gathers the static host snapshot. No external
// commands involved.
func (c *DefaultCollector) collectSystemInfo() SystemInfo {
	hostname, _ := os.Hostname()
	return SystemInfo{
		OS:          runtime.GOOS,
		Arch:        runtime.GOARCH,
		GoVersion:   runtime.Version(),
		NumCPU:      runtime.NumCPU(),
		Hostname:    hostname,
		ShipVersion: c.shipVersion,
	}
}

// collectToolVersions probes every pipeline tool.
func (c *DefaultCollector) collectToolVersions(ctx context.Context) []ToolVersion {
	versions := make([]ToolVersion, 0, len(probedTools))
	for _, probe := range probedTools {
		versions = append(versions, c.probeTool(ctx, probe.tool, probe.args...))
	}
	return versions
}

// probeTool runs one version command under its own timeout.
func (c *DefaultCollector) probeTool(ctx context.Context, tool string, args ...string) ToolVersion {
	probeCtx, cancel := context.WithTimeout(ctx, toolProbeTimeout)
	defer cancel()

	output, err := c.proc.Run(probeCtx, tool, args...)
	if err != nil {
		return ToolVersion{Tool: tool, Available: false, Error: err.Error()}
	}
	return ToolVersion{
		Tool:      tool,
		Available: true,
		Version:   firstLine(string(output)),
	}
}

// collectDockerInfo probes the engine and enumerates test containers.
//
// # Description
//
// Containers are matched by the `-test-` name fragment so leftovers
// from other builds show up too; that is usually the finding. With a
// positive build number the list is additionally filtered down to the
// build's own label.
func (c *DefaultCollector) collectDockerInfo(ctx context.Context, buildNumber int) DockerInfo {
	info := DockerInfo{}

	versionOut, err := c.proc.Run(ctx, "docker", "version", "--format", "{{.Client.Version}}")
	if err != nil {
		info.Available = false
		info.Error = err.Error()
		return info
	}
	info.Available = true
	info.Version = strings.TrimSpace(string(versionOut))

	args := []string{
		"ps", "-a",
		"--filter", "name=-test-",
		"--format", "{{json .}}",
	}
	if buildNumber > 0 {
		args = append(args, "--filter", fmt.Sprintf("label=ship.build=%d", buildNumber))
	}

	psOut, err := c.proc.Run(ctx, "docker", args...)
	if err != nil {
		info.Error = fmt.Sprintf("container listing failed: %v", err)
		return info
	}

	info.Containers = parseContainerRows(string(psOut))
	return info
}

// parseContainerRows decodes docker ps line-delimited JSON. Rows that
// fail to decode are dropped rather than failing the whole bundle.
func parseContainerRows(output string) []ContainerState {
	var containers []ContainerState
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var row struct {
			ID     string `json:"ID"`
			Names  string `json:"Names"`
			Image  string `json:"Image"`
			Status string `json:"Status"`
			Ports  string `json:"Ports"`
		}
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			continue
		}
		containers = append(containers, ContainerState{
			ID:     shortenContainerID(row.ID),
			Name:   row.Names,
			Image:  row.Image,
			Status: row.Status,
			Ports:  row.Ports,
		})
	}
	return containers
}

// collectContainerLogs tails each discovered container.
func (c *DefaultCollector) collectContainerLogs(ctx context.Context, containers []ContainerState, lines int) []ContainerLog {
	logs := make([]ContainerLog, 0, len(containers))
	for _, container := range containers {
		logs = append(logs, c.tailContainer(ctx, container.Name, lines))
	}
	return logs
}

// tailContainer captures one container's log tail. docker logs writes
// container stderr to its own stderr, so both streams are requested
// and joined.
func (c *DefaultCollector) tailContainer(ctx context.Context, name string, lines int) ContainerLog {
	entry := ContainerLog{Container: name, Lines: lines}

	output, err := c.proc.Run(ctx, "docker", "logs", "--tail", fmt.Sprintf("%d", lines), name)
	if err != nil {
		entry.Error = err.Error()
		return entry
	}
	entry.Content = string(output)
	return entry
}

// collectDiskUsage probes the workspace filesystem. A probe failure
// returns nil; the bundle just omits the section.
func (c *DefaultCollector) collectDiskUsage(path string) *DiskUsage {
	var stat unix.Statfs_t
	if err := c.statfsFunc(path, &stat); err != nil {
		return nil
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	usage := &DiskUsage{
		Path:       path,
		TotalBytes: total,
		FreeBytes:  free,
	}
	if total > 0 {
		usage.UsedPercent = float64(total-free) / float64(total) * 100
	}
	return usage
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// firstLine returns the first non-empty line, trimmed.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// shortenContainerID truncates an ID to the familiar 12 characters.
func shortenContainerID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// -----------------------------------------------------------------------------
// MockCollector Implementation
// -----------------------------------------------------------------------------

// MockCollector is a test double recording collection calls.
type MockCollector struct {
	// CollectFunc overrides Collect when set.
	CollectFunc func(ctx context.Context, opts CollectOptions) (*Result, error)

	// CollectCalls records every invocation.
	CollectCalls []CollectOptions

	mu sync.Mutex
}

// Collect implements Collector.
func (m *MockCollector) Collect(ctx context.Context, opts CollectOptions) (*Result, error) {
	m.mu.Lock()
	m.CollectCalls = append(m.CollectCalls, opts)
	m.mu.Unlock()

	if m.CollectFunc != nil {
		return m.CollectFunc(ctx, opts)
	}
	return &Result{
		Location: "/tmp/diag-mock.json",
		BundleID: "00000000-0000-0000-0000-000000000000",
	}, nil
}

// LastResult implements Collector.
func (m *MockCollector) LastResult() *Result {
	return nil
}

// GetCollectCalls returns a copy of the recorded calls.
func (m *MockCollector) GetCollectCalls() []CollectOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]CollectOptions, len(m.CollectCalls))
	copy(calls, m.CollectCalls)
	return calls
}

// Compile-time interface compliance checks.
var _ Collector = (*DefaultCollector)(nil)
var _ Collector = (*MockCollector)(nil)
