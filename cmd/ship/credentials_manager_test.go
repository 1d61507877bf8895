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
Credentials manager tests.

# Testing Strategy

 1. Backends are exercised through an injected envFunc and a temp-dir
    credentials file, never the real process environment or home
    directory.
 2. The audit-log tests assert the property that matters: IDs appear in
    log output, secret values never do.
 3. MockCredentialsManager lives here for the pipeline manager tests; it
    is scripted the same way the process and docker mocks are.
*/

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// -----------------------------------------------------------------------------
// Mock Implementation
// -----------------------------------------------------------------------------

// MockCredentialsManager is a scripted CredentialsManager for testing.
//
// Lookups hit the Credentials map; ForceError short-circuits every method.
// Calls records the IDs requested, in order. Not thread-safe; use in
// single-goroutine tests only.
type MockCredentialsManager struct {
	// Credentials maps IDs to resolved credentials.
	Credentials map[string]*Credential

	// ForceError causes all methods to return this error.
	ForceError error

	// Calls records every requested ID in order.
	Calls []string
}

// NewMockCredentialsManager creates a mock with an empty credential map.
func NewMockCredentialsManager() *MockCredentialsManager {
	return &MockCredentialsManager{
		Credentials: make(map[string]*Credential),
	}
}

// AddUserPass registers a username/secret credential under an ID.
func (m *MockCredentialsManager) AddUserPass(id, username, secret string) {
	m.Credentials[id] = &Credential{
		ID:       id,
		Username: username,
		Secret:   secret,
		Backend:  CredentialBackendMock,
	}
}

// AddToken registers a token credential under an ID.
func (m *MockCredentialsManager) AddToken(id, token string) {
	m.Credentials[id] = &Credential{
		ID:      id,
		Secret:  token,
		Backend: CredentialBackendMock,
	}
}

func (m *MockCredentialsManager) GetCredential(_ context.Context, id string) (*Credential, error) {
	m.Calls = append(m.Calls, id)
	if m.ForceError != nil {
		return nil, m.ForceError
	}
	cred, ok := m.Credentials[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCredentialNotFound, id)
	}
	return cred, nil
}

func (m *MockCredentialsManager) GetOptionalCredential(ctx context.Context, id string) (*Credential, error) {
	cred, err := m.GetCredential(ctx, id)
	if errors.Is(err, ErrCredentialNotFound) {
		return nil, nil
	}
	return cred, err
}

func (m *MockCredentialsManager) GetToken(ctx context.Context, id string) (string, error) {
	cred, err := m.GetCredential(ctx, id)
	if err != nil {
		return "", err
	}
	return cred.Secret, nil
}

func (m *MockCredentialsManager) HasCredential(_ context.Context, id string) (bool, error) {
	if m.ForceError != nil {
		return false, m.ForceError
	}
	_, ok := m.Credentials[id]
	return ok, nil
}

func (m *MockCredentialsManager) ValidateCredential(_ context.Context, id string) (*CredentialValidation, error) {
	if m.ForceError != nil {
		return nil, m.ForceError
	}
	_, ok := m.Credentials[id]
	return &CredentialValidation{ID: id, Exists: ok, Valid: ok}, nil
}

func (m *MockCredentialsManager) ListCredentialIDs(_ context.Context) ([]string, error) {
	if m.ForceError != nil {
		return nil, m.ForceError
	}
	var ids []string
	for id := range m.Credentials {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MockCredentialsManager) GetBackendTypes() []string {
	return []string{CredentialBackendMock}
}

func (m *MockCredentialsManager) GetSetupInstructions(id string) string {
	return "mock setup instructions for " + id
}

func (m *MockCredentialsManager) IsConfigured() bool {
	return true
}

var _ CredentialsManager = (*MockCredentialsManager)(nil)

// -----------------------------------------------------------------------------
// Test Helpers
// -----------------------------------------------------------------------------

// newTestCredsManager builds a manager with a fake environment and a file
// path under the test temp dir.
func newTestCredsManager(t *testing.T, env map[string]string, filePath string) *DefaultCredentialsManager {
	t.Helper()
	if filePath == "" {
		filePath = filepath.Join(t.TempDir(), "credentials.yaml")
	}
	return &DefaultCredentialsManager{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		envFunc: func(key string) string {
			return env[key]
		},
		filePath: filePath,
	}
}

// writeCredsFile writes a credentials.yaml and returns its path.
func writeCredsFile(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("writing credentials file: %v", err)
	}
	return path
}

// -----------------------------------------------------------------------------
// Environment Backend
// -----------------------------------------------------------------------------

func TestEnvBackendUsernamePair(t *testing.T) {
	m := newTestCredsManager(t, map[string]string{
		"GIT_CREDS_USR": "ci-bot",
		"GIT_CREDS_PSW": "hunter2",
	}, "")

	cred, err := m.GetCredential(context.Background(), "git-creds")
	if err != nil {
		t.Fatalf("GetCredential failed: %v", err)
	}
	if cred.Username != "ci-bot" || cred.Secret != "hunter2" {
		t.Errorf("credential = %+v", cred)
	}
	if cred.Backend != CredentialBackendEnv {
		t.Errorf("backend = %q", cred.Backend)
	}
	if !cred.HasUsername() {
		t.Error("HasUsername should be true")
	}
}

func TestEnvBackendTokenForm(t *testing.T) {
	m := newTestCredsManager(t, map[string]string{
		"SONAR": "squ_0123456789abcdef",
	}, "")

	cred, err := m.GetCredential(context.Background(), "sonar")
	if err != nil {
		t.Fatalf("GetCredential failed: %v", err)
	}
	if cred.Username != "" || cred.Secret != "squ_0123456789abcdef" {
		t.Errorf("credential = %+v", cred)
	}
	if cred.HasUsername() {
		t.Error("token credential should report no username")
	}
}

func TestEnvBackendPasswordOnlyForm(t *testing.T) {
	m := newTestCredsManager(t, map[string]string{
		"DOCKER_CREDS_ID_PSW": "registry-token",
	}, "")

	cred, err := m.GetCredential(context.Background(), "docker-creds-id")
	if err != nil {
		t.Fatalf("GetCredential failed: %v", err)
	}
	if cred.Secret != "registry-token" {
		t.Errorf("secret not carried: %+v", cred)
	}
}

func TestEnvBackendUsernameWithoutSecret(t *testing.T) {
	m := newTestCredsManager(t, map[string]string{
		"GIT_CREDS_USR": "ci-bot",
	}, "")

	_, err := m.GetCredential(context.Background(), "git-creds")
	if !errors.Is(err, ErrCredentialIncomplete) {
		t.Errorf("err = %v, want ErrCredentialIncomplete", err)
	}
}

// -----------------------------------------------------------------------------
// File Backend
// -----------------------------------------------------------------------------

func TestFileBackendUsernamePair(t *testing.T) {
	path := writeCredsFile(t, `
credentials:
  nexus-maven-creds:
    username: deployer
    password: s3cret
`, 0o600)
	m := newTestCredsManager(t, nil, path)

	cred, err := m.GetCredential(context.Background(), "nexus-maven-creds")
	if err != nil {
		t.Fatalf("GetCredential failed: %v", err)
	}
	if cred.Username != "deployer" || cred.Secret != "s3cret" {
		t.Errorf("credential = %+v", cred)
	}
	if cred.Backend != CredentialBackendFile {
		t.Errorf("backend = %q", cred.Backend)
	}
}

func TestFileBackendTokenWinsOverPassword(t *testing.T) {
	path := writeCredsFile(t, `
credentials:
  sonar:
    password: stale
    token: squ_fresh
`, 0o600)
	m := newTestCredsManager(t, nil, path)

	cred, err := m.GetCredential(context.Background(), "sonar")
	if err != nil {
		t.Fatalf("GetCredential failed: %v", err)
	}
	if cred.Secret != "squ_fresh" {
		t.Errorf("secret = %q, want the token", cred.Secret)
	}
}

func TestFileBackendMissingFileIsNotFound(t *testing.T) {
	m := newTestCredsManager(t, nil, filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := m.GetCredential(context.Background(), "git-creds")
	if !errors.Is(err, ErrCredentialNotFound) {
		t.Errorf("err = %v, want ErrCredentialNotFound", err)
	}
}

func TestFileBackendMalformedFile(t *testing.T) {
	path := writeCredsFile(t, "credentials: [not a map", 0o600)
	m := newTestCredsManager(t, nil, path)

	_, err := m.GetCredential(context.Background(), "git-creds")
	if !errors.Is(err, ErrCredentialBackendUnavailable) {
		t.Errorf("err = %v, want ErrCredentialBackendUnavailable", err)
	}
}

func TestFileBackendEmptyEntryIsIncomplete(t *testing.T) {
	path := writeCredsFile(t, `
credentials:
  git-creds:
    username: lonely
`, 0o600)
	m := newTestCredsManager(t, nil, path)

	_, err := m.GetCredential(context.Background(), "git-creds")
	if !errors.Is(err, ErrCredentialIncomplete) {
		t.Errorf("err = %v, want ErrCredentialIncomplete", err)
	}
}

func TestEnvBackendBeatsFileBackend(t *testing.T) {
	path := writeCredsFile(t, `
credentials:
  git-creds:
    username: from-file
    password: file-pass
`, 0o600)
	m := newTestCredsManager(t, map[string]string{
		"GIT_CREDS_USR": "from-env",
		"GIT_CREDS_PSW": "env-pass",
	}, path)

	cred, err := m.GetCredential(context.Background(), "git-creds")
	if err != nil {
		t.Fatalf("GetCredential failed: %v", err)
	}
	if cred.Username != "from-env" || cred.Backend != CredentialBackendEnv {
		t.Errorf("env should win: %+v", cred)
	}
}

// -----------------------------------------------------------------------------
// Derived Operations
// -----------------------------------------------------------------------------

func TestGetOptionalCredential(t *testing.T) {
	path := writeCredsFile(t, `
credentials:
  git-creds:
    username: ci-bot
    password: pw
`, 0o600)
	m := newTestCredsManager(t, nil, path)
	ctx := context.Background()

	cred, err := m.GetOptionalCredential(ctx, "git-creds")
	if err != nil || cred == nil {
		t.Fatalf("present credential: cred=%v err=%v", cred, err)
	}

	cred, err = m.GetOptionalCredential(ctx, "docker-creds-id")
	if err != nil {
		t.Fatalf("absent credential should not error: %v", err)
	}
	if cred != nil {
		t.Errorf("absent credential should be nil, got %+v", cred)
	}
}

func TestGetToken(t *testing.T) {
	m := newTestCredsManager(t, map[string]string{"SONAR": "squ_tok"}, "")

	token, err := m.GetToken(context.Background(), "sonar")
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if token != "squ_tok" {
		t.Errorf("token = %q", token)
	}
}

func TestHasCredential(t *testing.T) {
	m := newTestCredsManager(t, map[string]string{
		"SONAR":         "squ_tok",
		"GIT_CREDS_USR": "half-configured",
	}, "")
	ctx := context.Background()

	if ok, err := m.HasCredential(ctx, "sonar"); err != nil || !ok {
		t.Errorf("sonar: ok=%v err=%v", ok, err)
	}
	if ok, err := m.HasCredential(ctx, "docker-creds-id"); err != nil || ok {
		t.Errorf("absent: ok=%v err=%v", ok, err)
	}
	// Incomplete counts as not present for existence checks.
	if ok, err := m.HasCredential(ctx, "git-creds"); err != nil || ok {
		t.Errorf("incomplete: ok=%v err=%v", ok, err)
	}
}

func TestListCredentialIDs(t *testing.T) {
	m := newTestCredsManager(t, map[string]string{
		"SONAR":         "squ_tok",
		"GIT_CREDS_USR": "ci-bot",
		"GIT_CREDS_PSW": "pw",
	}, "")

	ids, err := m.ListCredentialIDs(context.Background())
	if err != nil {
		t.Fatalf("ListCredentialIDs failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "git-creds" || ids[1] != "sonar" {
		t.Errorf("ids = %v", ids)
	}
}

func TestGetCredentialCancelledContext(t *testing.T) {
	m := newTestCredsManager(t, map[string]string{"SONAR": "squ_tok"}, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.GetCredential(ctx, "sonar"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// -----------------------------------------------------------------------------
// Validation
// -----------------------------------------------------------------------------

func TestValidateSonarToken(t *testing.T) {
	tests := []struct {
		name         string
		token        string
		wantWarnings int
	}{
		{"modern user token", "squ_1234567890", 0},
		{"analysis token", "sqa_1234567890", 0},
		{"legacy 40-char hex", strings.Repeat("a", 40), 0},
		{"unrecognized shape", "not-a-token", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestCredsManager(t, map[string]string{"SONAR": tt.token}, "")
			result, err := m.ValidateCredential(context.Background(), "sonar")
			if err != nil {
				t.Fatalf("ValidateCredential failed: %v", err)
			}
			if !result.Exists || !result.Valid {
				t.Errorf("result = %+v", result)
			}
			if len(result.Warnings) != tt.wantWarnings {
				t.Errorf("warnings = %v, want %d", result.Warnings, tt.wantWarnings)
			}
		})
	}
}

func TestValidateMissingCredential(t *testing.T) {
	m := newTestCredsManager(t, nil, "")
	result, err := m.ValidateCredential(context.Background(), "git-creds")
	if err != nil {
		t.Fatalf("ValidateCredential failed: %v", err)
	}
	if result.Exists || result.Valid || result.Reason == "" {
		t.Errorf("result = %+v", result)
	}
}

func TestValidateTokenAsUserPairWarns(t *testing.T) {
	m := newTestCredsManager(t, map[string]string{"DOCKER_CREDS_ID": "bare-token"}, "")
	result, err := m.ValidateCredential(context.Background(), "docker-creds-id")
	if err != nil {
		t.Fatalf("ValidateCredential failed: %v", err)
	}
	if !result.Valid || len(result.Warnings) != 1 {
		t.Errorf("result = %+v", result)
	}
}

// -----------------------------------------------------------------------------
// Audit Log Hygiene
// -----------------------------------------------------------------------------

func TestAuditLogNeverContainsSecretValues(t *testing.T) {
	var buf bytes.Buffer
	m := newTestCredsManager(t, map[string]string{
		"GIT_CREDS_USR": "ci-bot",
		"GIT_CREDS_PSW": "super-secret-value",
	}, "")
	m.logger = slog.New(slog.NewTextHandler(&buf, nil))

	if _, err := m.GetCredential(context.Background(), "git-creds"); err != nil {
		t.Fatalf("GetCredential failed: %v", err)
	}
	if _, err := m.GetCredential(context.Background(), "docker-creds-id"); !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	logged := buf.String()
	if !strings.Contains(logged, "git-creds") {
		t.Error("audit log should carry the credential ID")
	}
	if !strings.Contains(logged, "docker-creds-id") {
		t.Error("audit log should record the failed resolution")
	}
	if strings.Contains(logged, "super-secret-value") {
		t.Error("audit log leaked a secret value")
	}
}

func TestWorldReadableFileWarnsOnce(t *testing.T) {
	path := writeCredsFile(t, `
credentials:
  git-creds:
    username: ci-bot
    password: pw
`, 0o644)
	var buf bytes.Buffer
	m := newTestCredsManager(t, nil, path)
	m.logger = slog.New(slog.NewTextHandler(&buf, nil))

	ctx := context.Background()
	if _, err := m.GetCredential(ctx, "git-creds"); err != nil {
		t.Fatalf("GetCredential failed: %v", err)
	}
	if _, err := m.GetCredential(ctx, "git-creds"); err != nil {
		t.Fatalf("GetCredential failed: %v", err)
	}

	warnings := strings.Count(buf.String(), "chmod 600")
	if warnings != 1 {
		t.Errorf("permission warning logged %d times, want once", warnings)
	}
}

func TestTightPermissionsDoNotWarn(t *testing.T) {
	path := writeCredsFile(t, `
credentials:
  git-creds:
    username: ci-bot
    password: pw
`, 0o600)
	var buf bytes.Buffer
	m := newTestCredsManager(t, nil, path)
	m.logger = slog.New(slog.NewTextHandler(&buf, nil))

	if _, err := m.GetCredential(context.Background(), "git-creds"); err != nil {
		t.Fatalf("GetCredential failed: %v", err)
	}
	if strings.Contains(buf.String(), "chmod 600") {
		t.Error("0600 file should not trigger the permission warning")
	}
}

// -----------------------------------------------------------------------------
// Setup Instructions and Naming
// -----------------------------------------------------------------------------

func TestGetSetupInstructions(t *testing.T) {
	m := newTestCredsManager(t, nil, "/home/ci/.aleutianship/credentials.yaml")

	got := m.GetSetupInstructions("git-creds")
	for _, want := range []string{"GIT_CREDS_USR", "GIT_CREDS_PSW", "credentials.yaml", "git-creds:"} {
		if !strings.Contains(got, want) {
			t.Errorf("instructions missing %q:\n%s", want, got)
		}
	}

	got = m.GetSetupInstructions("sonar")
	if !strings.Contains(got, "export SONAR=") {
		t.Errorf("token credential should show the secret-only form:\n%s", got)
	}
	if !strings.Contains(got, "squ_") {
		t.Errorf("sonar instructions should hint at the token format:\n%s", got)
	}
}

func TestEnvVarBase(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"git-creds", "GIT_CREDS"},
		{"docker-creds-id", "DOCKER_CREDS_ID"},
		{"sonar", "SONAR"},
		{"my.weird id", "MY_WEIRD_ID"},
		{"9lives", "_9LIVES"},
	}
	for _, tt := range tests {
		if got := envVarBase(tt.id); got != tt.want {
			t.Errorf("envVarBase(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestRedactedNeverShowsSecret(t *testing.T) {
	cred := &Credential{ID: "git-creds", Username: "ci-bot", Secret: "hunter2", Backend: CredentialBackendEnv}
	if s := cred.Redacted(); strings.Contains(s, "hunter2") {
		t.Errorf("Redacted leaked the secret: %q", s)
	}
	token := &Credential{ID: "sonar", Secret: "squ_tok", Backend: CredentialBackendFile}
	if s := token.Redacted(); strings.Contains(s, "squ_tok") || !strings.Contains(s, "token") {
		t.Errorf("Redacted = %q", s)
	}
}

func TestBackendTypesOrder(t *testing.T) {
	m := newTestCredsManager(t, nil, "")
	types := m.GetBackendTypes()
	if len(types) != 2 || types[0] != CredentialBackendEnv || types[1] != CredentialBackendFile {
		t.Errorf("backend order = %v", types)
	}
	if !m.IsConfigured() {
		t.Error("default manager should report configured")
	}
}

// -----------------------------------------------------------------------------
// Mock Behavior
// -----------------------------------------------------------------------------

func TestMockCredentialsManager(t *testing.T) {
	mock := NewMockCredentialsManager()
	mock.AddUserPass("git-creds", "ci-bot", "pw")
	mock.AddToken("sonar", "squ_tok")
	ctx := context.Background()

	cred, err := mock.GetCredential(ctx, "git-creds")
	if err != nil || cred.Username != "ci-bot" {
		t.Errorf("cred=%v err=%v", cred, err)
	}
	if token, _ := mock.GetToken(ctx, "sonar"); token != "squ_tok" {
		t.Errorf("token = %q", token)
	}
	if _, err := mock.GetCredential(ctx, "missing"); !errors.Is(err, ErrCredentialNotFound) {
		t.Errorf("err = %v", err)
	}
	if cred, err := mock.GetOptionalCredential(ctx, "missing"); cred != nil || err != nil {
		t.Errorf("optional missing: cred=%v err=%v", cred, err)
	}
	if len(mock.Calls) != 4 {
		t.Errorf("calls = %v", mock.Calls)
	}

	mock.ForceError = errors.New("backend down")
	if _, err := mock.GetCredential(ctx, "git-creds"); err == nil {
		t.Error("ForceError should propagate")
	}
}
