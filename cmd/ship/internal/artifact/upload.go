// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/util"
)

// =============================================================================
// Uploader Interface
// =============================================================================

// Uploader pushes a local file to an artifact store.
type Uploader interface {
	// Upload stores localPath at remotePath. remotePath is a forward
	// slash path relative to the store root ("gig-router/7/x.tar.gz").
	Upload(ctx context.Context, localPath, remotePath string) error

	// Name identifies the backend in logs ("nexus", "gcs").
	Name() string
}

// =============================================================================
// Nexus Uploader
// =============================================================================

// HTTPDoer executes HTTP requests. *http.Client satisfies this.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NexusConfig configures a Nexus raw-repository uploader.
type NexusConfig struct {
	// BaseURL is the Nexus server root ("https://nexus.example.com").
	BaseURL string

	// Repository is the raw repository name.
	Repository string

	// Username and Password authenticate the PUT. They ride the
	// Authorization header only and never appear in URLs or errors.
	Username string
	Password string

	// HTTPClient defaults to a client with util.DefaultHTTPTimeout.
	// Large archives against slow links may need a longer one.
	HTTPClient HTTPDoer
}

// NexusUploader implements Uploader against a Nexus raw repository.
//
// # Description
//
// Raw repositories accept plain HTTP PUT at
// <base>/repository/<repo>/<path>, which is how the checksum sidecar
// and the archive land next to each other without any Maven
// coordinate ceremony.
type NexusUploader struct {
	baseURL    string
	repository string
	username   string
	password   string
	httpClient HTTPDoer
}

// NewNexusUploader validates config and creates an uploader.
func NewNexusUploader(config NexusConfig) (*NexusUploader, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("%w: nexus base URL is required", ErrInvalidOptions)
	}
	parsed, err := url.Parse(config.BaseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: invalid nexus base URL: %s", ErrInvalidOptions, config.BaseURL)
	}
	if config.Repository == "" {
		return nil, fmt.Errorf("%w: nexus repository is required", ErrInvalidOptions)
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: util.DefaultHTTPTimeout}
	}
	return &NexusUploader{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		repository: config.Repository,
		username:   config.Username,
		password:   config.Password,
		httpClient: httpClient,
	}, nil
}

// Compile-time check that NexusUploader implements Uploader.
var _ Uploader = (*NexusUploader)(nil)

// Name implements Uploader.
func (n *NexusUploader) Name() string {
	return "nexus"
}

// Upload implements Uploader.
func (n *NexusUploader) Upload(ctx context.Context, localPath, remotePath string) error {
	cleaned, err := cleanRemotePath(remotePath)
	if err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}

	target := fmt.Sprintf("%s/repository/%s/%s", n.baseURL, n.repository, cleaned)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, f)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")
	if n.username != "" {
		req.SetBasicAuth(n.username, n.password)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload to nexus: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("upload %s to nexus repository %s: status %d: %s",
			path.Base(cleaned), n.repository, resp.StatusCode, truncateBody(body))
	}
	return nil
}

// cleanRemotePath rejects traversal and normalizes the remote path.
// Dot-dot segments are rejected before cleaning; a rooted Clean would
// silently swallow them instead.
func cleanRemotePath(remotePath string) (string, error) {
	for _, segment := range strings.Split(remotePath, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: remote path escapes repository: %s", ErrInvalidOptions, remotePath)
		}
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+remotePath), "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("%w: remote path is required", ErrInvalidOptions)
	}
	return cleaned, nil
}

// truncateBody keeps error messages readable on verbose servers.
func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 256 {
		return s[:256] + "..."
	}
	return s
}

// =============================================================================
// Mock Implementation
// =============================================================================

// UploadCall records one Upload invocation.
type UploadCall struct {
	LocalPath  string
	RemotePath string
}

// MockUploader is a test double for Uploader.
type MockUploader struct {
	UploadFunc func(context.Context, string, string) error
	NameValue  string

	UploadCalls []UploadCall
	mu          sync.Mutex
}

// Compile-time check that MockUploader implements Uploader.
var _ Uploader = (*MockUploader)(nil)

// Upload implements Uploader.
func (m *MockUploader) Upload(ctx context.Context, localPath, remotePath string) error {
	m.mu.Lock()
	m.UploadCalls = append(m.UploadCalls, UploadCall{LocalPath: localPath, RemotePath: remotePath})
	m.mu.Unlock()

	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, localPath, remotePath)
	}
	return nil
}

// Name implements Uploader.
func (m *MockUploader) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return "mock"
}

// GetUploadCalls returns a copy of recorded calls.
func (m *MockUploader) GetUploadCalls() []UploadCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]UploadCall, len(m.UploadCalls))
	copy(calls, m.UploadCalls)
	return calls
}
