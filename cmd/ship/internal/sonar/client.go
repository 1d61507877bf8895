// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sonar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/util"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrGateTimeout is returned when the quality gate verdict does not
	// arrive within the wait budget.
	ErrGateTimeout = errors.New("quality gate wait timed out")

	// ErrTaskFailed is returned when the compute-engine task ends in
	// FAILED or CANCELED.
	ErrTaskFailed = errors.New("compute engine task did not succeed")
)

// Compile-time checks that errors implement error interface.
var (
	_ error = ErrGateTimeout
	_ error = ErrTaskFailed
)

// maxResponseBytes bounds how much of a server response is read.
const maxResponseBytes = 1 << 20

// defaultPollInterval spaces compute-engine task polls.
const defaultPollInterval = 5 * time.Second

// =============================================================================
// Types
// =============================================================================

// TaskState is a compute-engine task lifecycle state.
type TaskState string

const (
	TaskPending    TaskState = "PENDING"
	TaskInProgress TaskState = "IN_PROGRESS"
	TaskSuccess    TaskState = "SUCCESS"
	TaskFailed     TaskState = "FAILED"
	TaskCanceled   TaskState = "CANCELED"
)

// Terminal reports whether the state is final.
func (s TaskState) Terminal() bool {
	return s == TaskSuccess || s == TaskFailed || s == TaskCanceled
}

// TaskStatus is the server's view of a compute-engine task.
type TaskStatus struct {
	ID           string    `json:"id"`
	Status       TaskState `json:"status"`
	ComponentKey string    `json:"componentKey"`
	AnalysisID   string    `json:"analysisId"`
	ErrorMessage string    `json:"errorMessage"`
}

// GateStatus is a quality gate verdict.
type GateStatus string

const (
	GateOK    GateStatus = "OK"
	GateWarn  GateStatus = "WARN"
	GateError GateStatus = "ERROR"
	GateNone  GateStatus = "NONE"
)

// GateCondition is one evaluated gate condition.
type GateCondition struct {
	MetricKey      string     `json:"metricKey"`
	Status         GateStatus `json:"status"`
	Comparator     string     `json:"comparator"`
	ErrorThreshold string     `json:"errorThreshold"`
	ActualValue    string     `json:"actualValue"`
}

// GateResult is the quality gate verdict for an analysis.
type GateResult struct {
	// Status is the overall verdict.
	Status GateStatus

	// Conditions are the evaluated conditions.
	Conditions []GateCondition

	// AnalysisID is the analysis the verdict belongs to.
	AnalysisID string
}

// Failed reports whether the gate is RED.
func (g *GateResult) Failed() bool {
	return g.Status == GateError
}

// FailingConditions returns the conditions in ERROR state.
func (g *GateResult) FailingConditions() []GateCondition {
	var failing []GateCondition
	for _, c := range g.Conditions {
		if c.Status == GateError {
			failing = append(failing, c)
		}
	}
	return failing
}

// String renders the verdict the way build logs report it.
func (g *GateResult) String() string {
	failing := g.FailingConditions()
	if len(failing) == 0 {
		return string(g.Status)
	}
	parts := make([]string, len(failing))
	for i, c := range failing {
		parts[i] = fmt.Sprintf("%s %s %s (actual %s)", c.MetricKey, c.Comparator, c.ErrorThreshold, c.ActualValue)
	}
	return fmt.Sprintf("%s: %s", g.Status, strings.Join(parts, "; "))
}

// HTTPDoer abstracts the HTTP client so tests can script responses.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig configures a DefaultClient.
type ClientConfig struct {
	// BaseURL is the SonarQube server. Required.
	BaseURL string

	// Token authenticates API calls. Sent as a bearer header, never
	// logged.
	Token string

	// GateTimeout bounds WaitForQualityGate.
	// Defaults to util.DefaultQualityGateTimeout.
	GateTimeout time.Duration

	// PollInterval spaces task polls. Defaults to 5s.
	PollInterval time.Duration

	// HTTPClient overrides the default client. Nil uses an http.Client
	// with util.DefaultHTTPTimeout.
	HTTPClient HTTPDoer
}

// =============================================================================
// Client Interface
// =============================================================================

// Client reads analysis state from a SonarQube server.
type Client interface {
	// TaskStatus fetches the state of one compute-engine task.
	TaskStatus(ctx context.Context, taskID string) (*TaskStatus, error)

	// QualityGate fetches the gate verdict for a processed analysis.
	QualityGate(ctx context.Context, analysisID string) (*GateResult, error)

	// WaitForQualityGate polls the task to completion, then fetches the
	// verdict. Honors the configured gate timeout.
	WaitForQualityGate(ctx context.Context, taskID string) (*GateResult, error)
}

// =============================================================================
// Default Implementation
// =============================================================================

// DefaultClient implements Client over the SonarQube web API.
type DefaultClient struct {
	baseURL      string
	token        string
	httpClient   HTTPDoer
	gateTimeout  time.Duration
	pollInterval time.Duration
}

// NewDefaultClient creates a SonarQube API client.
func NewDefaultClient(config ClientConfig) (*DefaultClient, error) {
	if err := validateHostURL(config.BaseURL); err != nil {
		return nil, err
	}

	gateTimeout := config.GateTimeout
	if gateTimeout <= 0 {
		gateTimeout = util.DefaultQualityGateTimeout
	}
	pollInterval := config.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: util.DefaultHTTPTimeout}
	}

	return &DefaultClient{
		baseURL:      strings.TrimRight(config.BaseURL, "/"),
		token:        config.Token,
		httpClient:   httpClient,
		gateTimeout:  gateTimeout,
		pollInterval: pollInterval,
	}, nil
}

// Compile-time check that DefaultClient implements Client.
var _ Client = (*DefaultClient)(nil)

// TaskStatus implements Client.
func (c *DefaultClient) TaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	if taskID == "" {
		return nil, fmt.Errorf("%w: task id is required", ErrInvalidOptions)
	}

	var response struct {
		Task TaskStatus `json:"task"`
	}
	query := url.Values{"id": {taskID}}
	if err := c.getJSON(ctx, "/api/ce/task", query, &response); err != nil {
		return nil, err
	}
	return &response.Task, nil
}

// QualityGate implements Client.
func (c *DefaultClient) QualityGate(ctx context.Context, analysisID string) (*GateResult, error) {
	if analysisID == "" {
		return nil, fmt.Errorf("%w: analysis id is required", ErrInvalidOptions)
	}

	var response struct {
		ProjectStatus struct {
			Status     GateStatus      `json:"status"`
			Conditions []GateCondition `json:"conditions"`
		} `json:"projectStatus"`
	}
	query := url.Values{"analysisId": {analysisID}}
	if err := c.getJSON(ctx, "/api/qualitygates/project_status", query, &response); err != nil {
		return nil, err
	}
	return &GateResult{
		Status:     response.ProjectStatus.Status,
		Conditions: response.ProjectStatus.Conditions,
		AnalysisID: analysisID,
	}, nil
}

// WaitForQualityGate implements Client.
//
// # Description
//
// Polls the compute-engine task until it reaches a terminal state,
// then fetches the gate for the task's analysis. The wait is bounded
// by the configured gate timeout; running out is ErrGateTimeout, which
// callers treat as a warning rather than a build failure.
func (c *DefaultClient) WaitForQualityGate(ctx context.Context, taskID string) (*GateResult, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.gateTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.TaskStatus(waitCtx, taskID)
		if err != nil {
			if errors.Is(waitCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, fmt.Errorf("%w after %v", ErrGateTimeout, c.gateTimeout)
			}
			return nil, err
		}

		switch status.Status {
		case TaskSuccess:
			if status.AnalysisID == "" {
				return nil, fmt.Errorf("%w: task %s succeeded without an analysis id", ErrTaskFailed, taskID)
			}
			return c.QualityGate(waitCtx, status.AnalysisID)
		case TaskFailed, TaskCanceled:
			msg := status.ErrorMessage
			if msg == "" {
				msg = string(status.Status)
			}
			return nil, fmt.Errorf("%w: task %s: %s", ErrTaskFailed, taskID, msg)
		}

		select {
		case <-waitCtx.Done():
			if errors.Is(waitCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, fmt.Errorf("%w after %v", ErrGateTimeout, c.gateTimeout)
			}
			return nil, waitCtx.Err()
		case <-ticker.C:
		}
	}
}

// getJSON performs an authenticated GET and decodes the response.
func (c *DefaultClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("GET %s: read response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, truncateBody(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("GET %s: parse response: %w", path, err)
	}
	return nil
}

// truncateBody keeps error messages readable when the server returns a
// page of HTML.
func truncateBody(body []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

// =============================================================================
// Mock Implementation
// =============================================================================

// MockClient is a test double for Client.
//
// # Description
//
// Unconfigured methods report a processed task and a green gate. Calls
// are tracked for verification.
type MockClient struct {
	TaskStatusFunc         func(context.Context, string) (*TaskStatus, error)
	QualityGateFunc        func(context.Context, string) (*GateResult, error)
	WaitForQualityGateFunc func(context.Context, string) (*GateResult, error)

	TaskStatusCalls         []string
	QualityGateCalls        []string
	WaitForQualityGateCalls []string
	mu                      sync.Mutex
}

// Compile-time check that MockClient implements Client.
var _ Client = (*MockClient)(nil)

// TaskStatus implements Client.
func (m *MockClient) TaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	m.mu.Lock()
	m.TaskStatusCalls = append(m.TaskStatusCalls, taskID)
	m.mu.Unlock()

	if m.TaskStatusFunc != nil {
		return m.TaskStatusFunc(ctx, taskID)
	}
	return &TaskStatus{ID: taskID, Status: TaskSuccess, AnalysisID: "AY-analysis-0001"}, nil
}

// QualityGate implements Client.
func (m *MockClient) QualityGate(ctx context.Context, analysisID string) (*GateResult, error) {
	m.mu.Lock()
	m.QualityGateCalls = append(m.QualityGateCalls, analysisID)
	m.mu.Unlock()

	if m.QualityGateFunc != nil {
		return m.QualityGateFunc(ctx, analysisID)
	}
	return &GateResult{Status: GateOK, AnalysisID: analysisID}, nil
}

// WaitForQualityGate implements Client.
func (m *MockClient) WaitForQualityGate(ctx context.Context, taskID string) (*GateResult, error) {
	m.mu.Lock()
	m.WaitForQualityGateCalls = append(m.WaitForQualityGateCalls, taskID)
	m.mu.Unlock()

	if m.WaitForQualityGateFunc != nil {
		return m.WaitForQualityGateFunc(ctx, taskID)
	}
	return &GateResult{Status: GateOK, AnalysisID: "AY-analysis-0001"}, nil
}
