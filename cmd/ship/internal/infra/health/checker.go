// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package health

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// INTERFACES
// =============================================================================

// Checker verifies target readiness (binary ready/not-ready).
//
// # Description
//
// This interface provides readiness probing for pipeline startup
// sequencing: the Setup Test Infrastructure stage blocks on
// WaitUntilReady before Build runs a single pip command, and the doctor
// command uses single probes for its report.
//
// # Examples
//
//	checker := health.NewDefaultChecker(health.DefaultCheckerConfig())
//
//	result, err := checker.WaitUntilReady(ctx, targets, health.DefaultWaitOptions())
//	if !result.Success {
//	    for _, name := range result.FailedCritical {
//	        fmt.Printf("not ready: %s\n", name)
//	    }
//	}
//
// # Limitations
//
//   - Binary readiness only; no degraded state
//   - A ready result is point-in-time; the target may fail afterwards
//
// # Assumptions
//
//   - Targets are reachable from this host (the pipeline publishes
//     container ports on localhost)
type Checker interface {
	// WaitUntilReady blocks until all critical targets are ready or the
	// budget runs out.
	//
	// # Description
	//
	// Probes targets in rounds with exponential backoff until every
	// critical target has been ready at least once, the timeout
	// expires, or the context is cancelled. Non-critical targets are
	// probed and reported but never block.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation. Cancellation stops waiting
	//     immediately.
	//   - targets: Targets to probe. Order does not affect behavior.
	//   - opts: Timeout, backoff, and failure mode configuration.
	//
	// # Outputs
	//
	//   - *WaitResult: Success flag, duration, per-target statuses.
	//   - error: Non-nil if critical targets failed or the context was
	//     cancelled.
	//
	// # Examples
	//
	//	result, err := checker.WaitUntilReady(ctx, targets, opts)
	//	if err != nil {
	//	    log.Error("infra wait failed", "duration", result.Duration, "err", err)
	//	}
	//
	// # Limitations
	//
	//   - Backoff applies globally, not per-target
	//   - Cannot distinguish "still starting" from "crashed"
	//
	// # Assumptions
	//
	//   - Targets list is non-empty
	//   - opts.Timeout is greater than opts.InitialInterval
	WaitUntilReady(ctx context.Context, targets []Target, opts WaitOptions) (*WaitResult, error)

	// Probe performs a single readiness probe on one target.
	//
	// # Description
	//
	// One attempt, no retries. Returns immediately with the current
	// state.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation and timeout.
	//   - target: The target to probe.
	//
	// # Outputs
	//
	//   - *Status: Current state with latency.
	//   - error: Non-nil only if the target definition is invalid; an
	//     unreachable target is a Status, not an error.
	//
	// # Examples
	//
	//	status, err := checker.Probe(ctx, health.RedisTarget(6386))
	//	fmt.Printf("%s: %s (%v)\n", status.Name, status.State, status.Latency)
	Probe(ctx context.Context, target Target) (*Status, error)

	// ProbeAll probes multiple targets concurrently.
	//
	// # Description
	//
	// Runs one probe per target in parallel, bounded by the checker's
	// MaxParallel. Results preserve input order.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation.
	//   - targets: Targets to probe.
	//
	// # Outputs
	//
	//   - []Status: Status per target, in input order.
	//   - error: Non-nil only if probing infrastructure failed.
	//
	// # Examples
	//
	//	statuses, _ := checker.ProbeAll(ctx, targets)
	//	for _, s := range statuses {
	//	    fmt.Printf("%s: %s\n", s.Name, s.State)
	//	}
	ProbeAll(ctx context.Context, targets []Target) ([]Status, error)
}

// HTTPDoer abstracts the HTTP client for ProbeHTTP targets.
//
// # Description
//
// Matches http.Client's Do method so tests can script responses without
// a listener.
//
// # Assumptions
//
//   - Caller closes the response body
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// =============================================================================
// ERROR VARIABLES
// =============================================================================

// ErrWaitTimeout is returned when WaitUntilReady exhausts its budget.
var ErrWaitTimeout = fmt.Errorf("readiness wait timed out")

// ErrCriticalNotReady is returned when FailFast trips on a critical target.
var ErrCriticalNotReady = fmt.Errorf("critical target not ready")

// =============================================================================
// STRUCTS
// =============================================================================

// DefaultChecker implements Checker against real endpoints.
//
// # Description
//
// Production implementation supporting SQL, Redis, TCP, and HTTP
// probes. Stateless; safe for concurrent use.
//
// # Examples
//
//	checker := health.NewDefaultChecker(health.DefaultCheckerConfig())
type DefaultChecker struct {
	config     CheckerConfig
	httpClient HTTPDoer
	pingSQL    func(ctx context.Context, dsn string) error
	pingRedis  func(ctx context.Context, redisURL string) error
}

// ProbeOverrides injects probe implementations for testing.
//
// # Description
//
// Nil fields keep the production implementation. Used by
// NewDefaultCheckerWithProbes; production code should call
// NewDefaultChecker.
type ProbeOverrides struct {
	HTTPClient HTTPDoer
	SQL        func(ctx context.Context, dsn string) error
	Redis      func(ctx context.Context, redisURL string) error
}

// Compile-time check that DefaultChecker implements Checker.
var _ Checker = (*DefaultChecker)(nil)

// =============================================================================
// CONSTRUCTOR FUNCTIONS
// =============================================================================

// NewDefaultChecker creates a production readiness checker.
//
// # Description
//
// Wires the real probe implementations: lib/pq for SQL, go-redis for
// Redis, net.Dialer for TCP, and an http.Client with keep-alives
// disabled for HTTP (each probe should exercise a fresh connection).
//
// # Inputs
//
//   - config: Timeouts and defaults. Zero fields take defaults.
//
// # Outputs
//
//   - *DefaultChecker: Ready for use.
//
// # Examples
//
//	checker := health.NewDefaultChecker(health.DefaultCheckerConfig())
func NewDefaultChecker(config CheckerConfig) *DefaultChecker {
	config = applyCheckerConfigDefaults(config)
	return &DefaultChecker{
		config: config,
		httpClient: &http.Client{
			Timeout: config.ProbeTimeout,
			Transport: &http.Transport{
				DisableKeepAlives: true,
			},
		},
		pingSQL:   defaultSQLPing,
		pingRedis: defaultRedisPing,
	}
}

// NewDefaultCheckerWithProbes creates a checker with injected probes.
//
// # Description
//
// Test seam: unit tests script the SQL probe (no throwaway Postgres in
// a unit test run) while Redis tests run the real probe against
// miniredis.
//
// # Inputs
//
//   - config: Timeouts and defaults.
//   - overrides: Probe implementations to replace. Nil fields keep the
//     production implementation.
//
// # Outputs
//
//   - *DefaultChecker: Configured checker.
//
// # Examples
//
//	checker := health.NewDefaultCheckerWithProbes(config, health.ProbeOverrides{
//	    SQL: func(ctx context.Context, dsn string) error { return nil },
//	})
func NewDefaultCheckerWithProbes(config CheckerConfig, overrides ProbeOverrides) *DefaultChecker {
	checker := NewDefaultChecker(config)
	if overrides.HTTPClient != nil {
		checker.httpClient = overrides.HTTPClient
	}
	if overrides.SQL != nil {
		checker.pingSQL = overrides.SQL
	}
	if overrides.Redis != nil {
		checker.pingRedis = overrides.Redis
	}
	return checker
}

// applyCheckerConfigDefaults fills zero config fields.
func applyCheckerConfigDefaults(config CheckerConfig) CheckerConfig {
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 5 * time.Second
	}
	if config.ExpectedHTTPStatus <= 0 {
		config.ExpectedHTTPStatus = 200
	}
	if config.MaxParallel <= 0 {
		config.MaxParallel = 4
	}
	return config
}

// =============================================================================
// DEFAULT PROBE IMPLEMENTATIONS
// =============================================================================

// defaultSQLPing verifies a Postgres server is accepting SQL.
//
// # Description
//
// Opens a fresh connection pool, completes the handshake with
// PingContext, and runs SELECT 1. The round-trip matters: during
// initdb, Postgres accepts TCP and then resets, and briefly answers
// connections with "the database system is starting up". Both surface
// here as errors.
//
// # Inputs
//
//   - ctx: Context carrying the probe timeout
//   - dsn: Postgres DSN
//
// # Outputs
//
//   - error: Non-nil until the server answers SQL
func defaultSQLPing(ctx context.Context, dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return err
	}

	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return err
	}
	return nil
}

// defaultRedisPing verifies a Redis server answers PING.
//
// # Inputs
//
//   - ctx: Context carrying the probe timeout
//   - redisURL: redis:// URL including database number
//
// # Outputs
//
//   - error: Non-nil until the server answers PONG
func defaultRedisPing(ctx context.Context, redisURL string) error {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return err
	}

	client := redis.NewClient(opts)
	defer client.Close()

	reply, err := client.Ping(ctx).Result()
	if err != nil {
		return err
	}
	if reply != "PONG" {
		return fmt.Errorf("unexpected ping reply %q", reply)
	}
	return nil
}

// =============================================================================
// DefaultChecker METHODS
// =============================================================================

// WaitUntilReady implements Checker.
//
// # Description
//
// Probes targets in rounds with exponential backoff until all critical
// targets have been ready at least once or the budget runs out. A
// target that reports ready once stays counted even if a later round
// misses it; startup sequencing needs "came up", not "stayed up".
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - targets: Targets to probe.
//   - opts: Timeout and backoff configuration.
//
// # Outputs
//
//   - *WaitResult: Complete result with per-target statuses.
//   - error: ErrWaitTimeout, ErrCriticalNotReady, or cancellation.
//
// # Examples
//
//	result, err := checker.WaitUntilReady(ctx, targets, health.DefaultWaitOptions())
//	log.Info("infra wait done", "duration", result.Duration, "success", result.Success)
func (c *DefaultChecker) WaitUntilReady(ctx context.Context, targets []Target, opts WaitOptions) (*WaitResult, error) {
	startTime := time.Now()
	result := &WaitResult{
		StartedAt: startTime,
		Statuses:  make([]Status, 0, len(targets)),
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	probeTargets := c.filterTargetsForWait(targets, opts, result)
	ready := make(map[string]bool)
	var latestStatuses []Status
	interval := opts.InitialInterval

	for {
		if c.isContextDone(timeoutCtx) {
			return c.buildTimeoutResult(result, latestStatuses, probeTargets, ready, startTime, ctx)
		}

		statuses, err := c.ProbeAll(timeoutCtx, probeTargets)
		if err != nil {
			c.sleepWithContext(timeoutCtx, c.applyJitter(interval, opts.Jitter))
			interval = c.nextInterval(interval, opts.MaxInterval, opts.Multiplier)
			continue
		}

		latestStatuses = statuses
		c.updateReadyTargets(statuses, ready)

		if c.allCriticalReady(probeTargets, ready) {
			return c.buildSuccessResult(result, statuses, startTime), nil
		}

		if opts.FailFast {
			if failed := c.findNotReadyCritical(probeTargets, ready); failed != "" {
				return c.buildFailFastResult(result, statuses, failed, startTime)
			}
		}

		c.sleepWithContext(timeoutCtx, c.applyJitter(interval, opts.Jitter))
		interval = c.nextInterval(interval, opts.MaxInterval, opts.Multiplier)
	}
}

// Probe implements Checker.
//
// # Description
//
// Dispatches to the probe implementation for the target's kind and
// measures latency. The context passed to the probe carries the
// per-target timeout.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - target: The target to probe.
//
// # Outputs
//
//   - *Status: Probe outcome.
//   - error: Non-nil for invalid definitions (unknown kind, missing
//     endpoint); unreachable targets return a Status with nil error.
func (c *DefaultChecker) Probe(ctx context.Context, target Target) (*Status, error) {
	startTime := time.Now()
	status := &Status{
		Name:        target.Name,
		LastChecked: startTime,
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeoutFor(target))
	defer cancel()

	var err error
	switch target.Probe {
	case ProbeSQL:
		err = c.probeSQL(probeCtx, target, status)
	case ProbeRedis:
		err = c.probeRedis(probeCtx, target, status)
	case ProbeTCP:
		err = c.probeTCP(probeCtx, target, status)
	case ProbeHTTP:
		err = c.probeHTTP(probeCtx, target, status)
	default:
		status.State = StateNotReady
		status.Message = fmt.Sprintf("unknown probe kind: %s", target.Probe)
		return status, fmt.Errorf("unknown probe kind: %s", target.Probe)
	}

	status.Latency = time.Since(startTime)
	status.LastChecked = time.Now()

	return status, err
}

// ProbeAll implements Checker.
//
// # Description
//
// Probes every target concurrently, bounded by MaxParallel, and
// preserves input order in the results.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - targets: Targets to probe.
//
// # Outputs
//
//   - []Status: One status per target, input order.
//   - error: Non-nil only if probing infrastructure failed.
func (c *DefaultChecker) ProbeAll(ctx context.Context, targets []Target) ([]Status, error) {
	if len(targets) == 0 {
		return []Status{}, nil
	}

	results := make([]Status, len(targets))
	g, probeCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.MaxParallel)

	for i, target := range targets {
		g.Go(func() error {
			status, _ := c.Probe(probeCtx, target)
			if status != nil {
				results[i] = *status
			} else {
				results[i] = c.buildUnreachableStatus(target)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// =============================================================================
// DefaultChecker PROBE METHODS
// =============================================================================

// probeSQL runs the Postgres readiness probe.
//
// # Inputs
//
//   - ctx: Context carrying the probe timeout.
//   - target: Target with a Postgres DSN endpoint.
//   - status: Status to populate.
//
// # Outputs
//
//   - error: Non-nil only for invalid definitions.
func (c *DefaultChecker) probeSQL(ctx context.Context, target Target, status *Status) error {
	if target.Endpoint == "" {
		status.State = StateNotReady
		status.Message = "no DSN configured for SQL probe"
		return fmt.Errorf("no DSN configured for SQL probe")
	}

	if err := c.pingSQL(ctx, target.Endpoint); err != nil {
		status.State = StateUnreachable
		status.Message = fmt.Sprintf("SQL ping failed: %v", err)
		return nil
	}

	status.State = StateReady
	status.Message = "accepting SQL"
	return nil
}

// probeRedis runs the Redis readiness probe.
//
// # Inputs
//
//   - ctx: Context carrying the probe timeout.
//   - target: Target with a redis:// URL endpoint.
//   - status: Status to populate.
//
// # Outputs
//
//   - error: Non-nil only for invalid definitions.
func (c *DefaultChecker) probeRedis(ctx context.Context, target Target, status *Status) error {
	if target.Endpoint == "" {
		status.State = StateNotReady
		status.Message = "no URL configured for Redis probe"
		return fmt.Errorf("no URL configured for Redis probe")
	}

	if err := c.pingRedis(ctx, target.Endpoint); err != nil {
		status.State = StateUnreachable
		status.Message = fmt.Sprintf("redis ping failed: %v", err)
		return nil
	}

	status.State = StateReady
	status.Message = "answering PING"
	return nil
}

// probeTCP runs the raw TCP contact probe.
//
// # Description
//
// Attempts a TCP connection to the endpoint's host:port. Scheme
// prefixes are tolerated so a URL-shaped endpoint still works.
//
// # Inputs
//
//   - ctx: Context carrying the probe timeout.
//   - target: Target with a host:port endpoint.
//   - status: Status to populate.
//
// # Outputs
//
//   - error: Non-nil only for invalid definitions.
//
// # Limitations
//
//   - Only checks the port is open; no protocol validation
func (c *DefaultChecker) probeTCP(ctx context.Context, target Target, status *Status) error {
	if target.Endpoint == "" {
		status.State = StateNotReady
		status.Message = "no address configured for TCP probe"
		return fmt.Errorf("no address configured for TCP probe")
	}

	addr := strings.TrimPrefix(target.Endpoint, "tcp://")
	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimPrefix(addr, "https://")

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		status.State = StateUnreachable
		status.Message = fmt.Sprintf("TCP connection failed: %v", err)
		return nil
	}
	defer conn.Close()

	status.State = StateReady
	status.Message = "TCP port open"
	return nil
}

// probeHTTP runs the HTTP status probe.
//
// # Inputs
//
//   - ctx: Context carrying the probe timeout.
//   - target: Target with a URL endpoint.
//   - status: Status to populate.
//
// # Outputs
//
//   - error: Non-nil only for invalid definitions.
//
// # Limitations
//
//   - GET only; response body is not inspected
func (c *DefaultChecker) probeHTTP(ctx context.Context, target Target, status *Status) error {
	if target.Endpoint == "" {
		status.State = StateNotReady
		status.Message = "no URL configured for HTTP probe"
		return fmt.Errorf("no URL configured for HTTP probe")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.Endpoint, nil)
	if err != nil {
		status.State = StateUnreachable
		status.Message = fmt.Sprintf("failed to create request: %v", err)
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		status.State = StateUnreachable
		status.Message = fmt.Sprintf("request failed: %v", err)
		return nil
	}
	defer resp.Body.Close()

	status.HTTPStatus = resp.StatusCode

	expected := c.config.ExpectedHTTPStatus
	if target.ExpectedStatus > 0 {
		expected = target.ExpectedStatus
	}

	if resp.StatusCode == expected {
		status.State = StateReady
		status.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
	} else {
		status.State = StateNotReady
		status.Message = fmt.Sprintf("HTTP %d (expected %d)", resp.StatusCode, expected)
	}

	return nil
}

// =============================================================================
// DefaultChecker PRIVATE HELPER METHODS
// =============================================================================

// filterTargetsForWait drops optional targets when SkipOptional is set.
//
// # Inputs
//
//   - targets: All candidate targets.
//   - opts: Wait options with SkipOptional flag.
//   - result: WaitResult whose Skipped field is populated.
//
// # Outputs
//
//   - []Target: Targets to actually probe.
func (c *DefaultChecker) filterTargetsForWait(targets []Target, opts WaitOptions, result *WaitResult) []Target {
	if !opts.SkipOptional {
		return targets
	}

	filtered := make([]Target, 0)
	for _, target := range targets {
		if target.Critical {
			filtered = append(filtered, target)
		} else {
			result.Skipped = append(result.Skipped, target.Name)
		}
	}
	return filtered
}

// isContextDone is a non-blocking check of context state.
func (c *DefaultChecker) isContextDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// buildTimeoutResult constructs the WaitResult for the timeout case.
//
// # Inputs
//
//   - result: Partially populated result.
//   - statuses: Latest probe statuses.
//   - targets: Targets being probed.
//   - ready: Names that have reported ready.
//   - startTime: When the wait began.
//   - ctx: Original caller context, for cancellation detection.
//
// # Outputs
//
//   - *WaitResult: Complete failure result.
//   - error: Timeout or cancellation error.
func (c *DefaultChecker) buildTimeoutResult(result *WaitResult, statuses []Status, targets []Target, ready map[string]bool, startTime time.Time, ctx context.Context) (*WaitResult, error) {
	result.Duration = time.Since(startTime)
	result.CompletedAt = time.Now()
	result.Statuses = statuses
	result.Success = false

	for _, target := range targets {
		if target.Critical && !ready[target.Name] {
			result.FailedCritical = append(result.FailedCritical, target.Name)
		}
	}

	if ctx.Err() != nil {
		return result, fmt.Errorf("context cancelled: %w", ctx.Err())
	}
	return result, ErrWaitTimeout
}

// buildSuccessResult constructs the WaitResult for the success case.
func (c *DefaultChecker) buildSuccessResult(result *WaitResult, statuses []Status, startTime time.Time) *WaitResult {
	result.Duration = time.Since(startTime)
	result.CompletedAt = time.Now()
	result.Statuses = statuses
	result.Success = true
	return result
}

// buildFailFastResult constructs the WaitResult for the FailFast case.
//
// # Inputs
//
//   - result: Partially populated result.
//   - statuses: Current probe statuses.
//   - failed: Name of the not-ready critical target.
//   - startTime: When the wait began.
//
// # Outputs
//
//   - *WaitResult: Complete failure result.
//   - error: ErrCriticalNotReady with the target's message.
func (c *DefaultChecker) buildFailFastResult(result *WaitResult, statuses []Status, failed string, startTime time.Time) (*WaitResult, error) {
	result.Duration = time.Since(startTime)
	result.CompletedAt = time.Now()
	result.Statuses = statuses
	result.FailedCritical = []string{failed}
	result.Success = false

	var message string
	for _, status := range statuses {
		if status.Name == failed {
			message = status.Message
			break
		}
	}
	return result, fmt.Errorf("%w: %s: %s", ErrCriticalNotReady, failed, message)
}

// updateReadyTargets marks targets that reported ready.
//
// Only marks ready; never unmarks. Startup sequencing cares about
// "came up", not "stayed up".
func (c *DefaultChecker) updateReadyTargets(statuses []Status, ready map[string]bool) {
	for _, status := range statuses {
		if status.State == StateReady {
			ready[status.Name] = true
		}
	}
}

// allCriticalReady reports whether every critical target has been ready.
func (c *DefaultChecker) allCriticalReady(targets []Target, ready map[string]bool) bool {
	for _, target := range targets {
		if target.Critical && !ready[target.Name] {
			return false
		}
	}
	return true
}

// findNotReadyCritical returns the first critical target that has not
// reported ready, or an empty string.
func (c *DefaultChecker) findNotReadyCritical(targets []Target, ready map[string]bool) string {
	for _, target := range targets {
		if target.Critical && !ready[target.Name] {
			return target.Name
		}
	}
	return ""
}

// probeTimeoutFor returns the per-probe timeout for a target.
func (c *DefaultChecker) probeTimeoutFor(target Target) time.Duration {
	if target.Timeout > 0 {
		return target.Timeout
	}
	return c.config.ProbeTimeout
}

// buildUnreachableStatus creates a status for a target that could not
// be probed at all.
func (c *DefaultChecker) buildUnreachableStatus(target Target) Status {
	return Status{
		Name:        target.Name,
		State:       StateUnreachable,
		Message:     "probe failed",
		LastChecked: time.Now(),
	}
}

// applyJitter randomizes an interval within [1-jitter, 1+jitter].
func (c *DefaultChecker) applyJitter(interval time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return interval
	}
	factor := 1.0 + (rand.Float64()*2-1)*jitter
	return time.Duration(float64(interval) * factor)
}

// nextInterval grows the backoff interval, capped at max.
func (c *DefaultChecker) nextInterval(current, max time.Duration, multiplier float64) time.Duration {
	next := time.Duration(float64(current) * multiplier)
	if next > max {
		return max
	}
	return next
}

// sleepWithContext sleeps for the duration or until the context is done.
func (c *DefaultChecker) sleepWithContext(ctx context.Context, duration time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(duration):
	}
}

// =============================================================================
// MockChecker
// =============================================================================

// MockChecker is a configurable mock for testing.
//
// # Description
//
// All methods can be configured via function fields; unset methods
// return ready defaults. Calls are recorded for assertion.
//
// # Examples
//
//	mock := &health.MockChecker{
//	    WaitUntilReadyFunc: func(ctx context.Context, targets []health.Target, opts health.WaitOptions) (*health.WaitResult, error) {
//	        return &health.WaitResult{Success: false}, health.ErrWaitTimeout
//	    },
//	}
type MockChecker struct {
	WaitUntilReadyFunc func(ctx context.Context, targets []Target, opts WaitOptions) (*WaitResult, error)
	ProbeFunc          func(ctx context.Context, target Target) (*Status, error)
	ProbeAllFunc       func(ctx context.Context, targets []Target) ([]Status, error)

	WaitUntilReadyCalls []WaitUntilReadyCall
	ProbeCalls          []Target
	ProbeAllCalls       [][]Target
	mu                  sync.Mutex
}

// WaitUntilReadyCall records a call to WaitUntilReady.
type WaitUntilReadyCall struct {
	Targets []Target
	Options WaitOptions
}

// Compile-time check that MockChecker implements Checker.
var _ Checker = (*MockChecker)(nil)

// WaitUntilReady implements Checker for MockChecker.
func (m *MockChecker) WaitUntilReady(ctx context.Context, targets []Target, opts WaitOptions) (*WaitResult, error) {
	m.mu.Lock()
	m.WaitUntilReadyCalls = append(m.WaitUntilReadyCalls, WaitUntilReadyCall{Targets: targets, Options: opts})
	m.mu.Unlock()

	if m.WaitUntilReadyFunc != nil {
		return m.WaitUntilReadyFunc(ctx, targets, opts)
	}
	return &WaitResult{Success: true, CompletedAt: time.Now()}, nil
}

// Probe implements Checker for MockChecker.
func (m *MockChecker) Probe(ctx context.Context, target Target) (*Status, error) {
	m.mu.Lock()
	m.ProbeCalls = append(m.ProbeCalls, target)
	m.mu.Unlock()

	if m.ProbeFunc != nil {
		return m.ProbeFunc(ctx, target)
	}
	return &Status{Name: target.Name, State: StateReady, LastChecked: time.Now()}, nil
}

// ProbeAll implements Checker for MockChecker.
func (m *MockChecker) ProbeAll(ctx context.Context, targets []Target) ([]Status, error) {
	m.mu.Lock()
	m.ProbeAllCalls = append(m.ProbeAllCalls, targets)
	m.mu.Unlock()

	if m.ProbeAllFunc != nil {
		return m.ProbeAllFunc(ctx, targets)
	}
	statuses := make([]Status, len(targets))
	for i, target := range targets {
		statuses[i] = Status{Name: target.Name, State: StateReady, LastChecked: time.Now()}
	}
	return statuses, nil
}
