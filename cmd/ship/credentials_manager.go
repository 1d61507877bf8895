// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package main provides CredentialsManager for pipeline credential resolution.

CredentialsManager resolves the credentials a build consumes (Git host login,
SonarQube token, Nexus login, registry login) by their stable IDs. Stages ask
for an ID like "git-creds" and receive a username/secret pair without knowing
where it came from.

# Security Context

This is a CRITICAL-RISK component because it handles authentication material
for every external system the pipeline touches. Improper handling could leak
registry or Git host credentials into logs or build records.

# Security Features

  - Zero Value Logging: Credential values are NEVER logged (even at debug level)
  - Audit Trail: Every resolution is logged with the credential ID and backend
    only, never the value
  - Fail-Secure: A missing credential is a clear error with setup help; stages
    decide whether that is fatal under their own policy
  - Values travel to subprocesses via stdin or environment, never argv

# Backend Priority

Backends are tried in order until the ID resolves:
 1. Environment variables (always enabled)
 2. Credentials file ~/.aleutianship/credentials.yaml (if present)

# Environment Naming

An ID maps to environment variables by uppercasing and replacing every
non-alphanumeric rune with an underscore. For "git-creds":

	GIT_CREDS_USR  username
	GIT_CREDS_PSW  password or token
	GIT_CREDS      secret-only form (token credentials like "sonar")
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianShip/cmd/ship/config"
)

// -----------------------------------------------------------------------------
// Error Sentinel Values
// -----------------------------------------------------------------------------

// ErrCredentialNotFound is returned when an ID resolves in no backend.
var ErrCredentialNotFound = errors.New("credential not found")

// ErrCredentialIncomplete is returned when a backend has the ID but the
// entry is unusable (username without a secret, or an empty secret).
var ErrCredentialIncomplete = errors.New("credential incomplete")

// ErrCredentialBackendUnavailable is returned when a backend exists but
// cannot be read (unreadable or malformed credentials file).
var ErrCredentialBackendUnavailable = errors.New("credential backend unavailable")

// -----------------------------------------------------------------------------
// Backend Constants
// -----------------------------------------------------------------------------

const (
	// CredentialBackendEnv is the environment variable backend type.
	CredentialBackendEnv = "env"

	// CredentialBackendFile is the credentials.yaml backend type.
	CredentialBackendFile = "file"

	// CredentialBackendMock is the mock backend for testing.
	CredentialBackendMock = "mock"
)

// credentialsFileName is the per-user credentials file under ~/.aleutianship.
const credentialsFileName = "credentials.yaml"

// KnownCredentialIDs lists the credential IDs the pipeline consumes.
// Used for doctor checks, documentation, and ListCredentialIDs filtering.
var KnownCredentialIDs = []string{
	config.DefaultGitCredentialID,
	config.DefaultSonarCredentialID,
	config.DefaultNexusCredentialID,
	config.DefaultDockerCredentialID,
}

// -----------------------------------------------------------------------------
// Credential Type
// -----------------------------------------------------------------------------

// Credential is a resolved credential.
//
// # Description
//
// Carries the username/secret pair for an ID. Token credentials (SonarQube)
// have an empty Username and the token in Secret.
//
// # Security
//
// Secret must never be logged or embedded in command argv. Pass it to
// subprocesses via stdin (docker login --password-stdin) or the process
// environment (git credential helper, sonar-scanner).
//
// # Thread Safety
//
// Credential is immutable after creation.
type Credential struct {
	// ID is the credential ID this was resolved for.
	ID string

	// Username is the login name. Empty for token credentials.
	Username string

	// Secret is the password or token. Sensitive.
	Secret string

	// Backend identifies which backend resolved this credential.
	Backend string
}

// HasUsername reports whether this is a username/secret pair rather than
// a bare token.
func (c *Credential) HasUsername() bool {
	return c.Username != ""
}

// Redacted returns a log-safe description of the credential.
//
// # Description
//
// Returns the ID and backend only. The secret never appears; the username
// is included because it identifies the account in audit logs, the same
// way the docker CLI echoes the login user.
//
// # Outputs
//
//   - string: e.g. "git-creds (user ci-bot, via env)"
func (c *Credential) Redacted() string {
	if c.Username == "" {
		return fmt.Sprintf("%s (token, via %s)", c.ID, c.Backend)
	}
	return fmt.Sprintf("%s (user %s, via %s)", c.ID, c.Username, c.Backend)
}

// CredentialValidation is the result of validating a credential.
//
// # Description
//
// Contains the outcome of format validation for a resolved credential.
// Validation is advisory: the pipeline proceeds on warnings and only the
// consuming stage discovers a truly dead credential.
type CredentialValidation struct {
	// ID is the credential ID that was validated.
	ID string

	// Exists is true if the ID resolved in some backend.
	Exists bool

	// Valid is true if the credential passed all checks.
	Valid bool

	// Reason explains why validation failed (empty if Valid).
	Reason string

	// Warnings lists non-fatal issues (e.g., unusual token format).
	Warnings []string
}

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// CredentialsManager resolves pipeline credentials by ID.
//
// # Description
//
// This interface abstracts credential retrieval from the underlying storage.
// Implementations may read from environment variables, a credentials file,
// or an external secret manager.
//
// # Security
//
//   - Credential values are NEVER logged (even at debug level)
//   - All access is audit-logged (credential ID and backend only, not value)
//   - Missing credentials result in clear errors (fail-secure)
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type CredentialsManager interface {
	// GetCredential resolves a credential by its ID.
	//
	// # Description
	//
	// Looks up an ID across backends in priority order and returns the
	// resolved credential. Records the access to the audit log.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation
	//   - id: Credential ID (e.g., "git-creds")
	//
	// # Outputs
	//
	//   - *Credential: The resolved credential (never nil on success)
	//   - error: ErrCredentialNotFound, ErrCredentialIncomplete, context
	//     errors, or backend errors
	//
	// # Examples
	//
	//	creds, err := manager.GetCredential(ctx, cfg.Credentials.GetGitID())
	//	if errors.Is(err, ErrCredentialNotFound) {
	//	    fmt.Println(manager.GetSetupInstructions(cfg.Credentials.GetGitID()))
	//	    return err
	//	}
	//
	// # Limitations
	//
	//   - Does not cache; each call re-reads the backends
	//
	// # Assumptions
	//
	//   - IDs are lowercase kebab-case (the Jenkins credential ID style)
	GetCredential(ctx context.Context, id string) (*Credential, error)

	// GetOptionalCredential resolves a credential, tolerating absence.
	//
	// # Description
	//
	// Like GetCredential but returns (nil, nil) when the ID is not found.
	// Used for stages that degrade gracefully: checkout of a public repo
	// works without "git-creds".
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation
	//   - id: Credential ID
	//
	// # Outputs
	//
	//   - *Credential: The resolved credential, or nil when not found
	//   - error: Backend errors only (NOT ErrCredentialNotFound)
	GetOptionalCredential(ctx context.Context, id string) (*Credential, error)

	// GetToken resolves a credential and returns its secret text.
	//
	// # Description
	//
	// Convenience for token credentials like "sonar" where only the secret
	// matters. Username, if present, is ignored.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation
	//   - id: Credential ID
	//
	// # Outputs
	//
	//   - string: The secret value (never empty on success)
	//   - error: Same contract as GetCredential
	GetToken(ctx context.Context, id string) (string, error)

	// HasCredential checks whether an ID resolves without using it.
	//
	// # Description
	//
	// Existence check for conditional behavior (doctor output, stage skip
	// decisions). Does not write to the audit log.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation
	//   - id: Credential ID
	//
	// # Outputs
	//
	//   - bool: True if the ID resolves to a usable credential
	//   - error: Backend errors only
	HasCredential(ctx context.Context, id string) (bool, error)

	// ValidateCredential checks a credential against format rules.
	//
	// # Description
	//
	// Validates that a credential exists and matches the expected shape for
	// its ID (e.g., SonarQube tokens start with "squ_"). Does not call the
	// remote service.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation
	//   - id: Credential ID
	//
	// # Outputs
	//
	//   - *CredentialValidation: Validation result (never nil)
	//   - error: Backend errors only (validation failures are in the result)
	ValidateCredential(ctx context.Context, id string) (*CredentialValidation, error)

	// ListCredentialIDs returns the known IDs that currently resolve.
	//
	// # Description
	//
	// Checks every ID in KnownCredentialIDs against the backends. Used by
	// ship doctor to report which credentials are configured.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation
	//
	// # Outputs
	//
	//   - []string: Sorted list of resolvable IDs (never values)
	//   - error: Backend errors
	ListCredentialIDs(ctx context.Context) ([]string, error)

	// GetBackendTypes returns the backends in resolution order.
	//
	// # Outputs
	//
	//   - []string: Backend identifiers, highest priority first
	GetBackendTypes() []string

	// GetSetupInstructions returns setup help for a missing credential.
	//
	// # Description
	//
	// When a credential is not found, this returns instructions for
	// configuring it through each available backend.
	//
	// # Inputs
	//
	//   - id: The credential ID that was not found
	//
	// # Outputs
	//
	//   - string: Human-readable setup instructions
	GetSetupInstructions(id string) string

	// IsConfigured returns true if at least one backend is usable.
	IsConfigured() bool
}

// -----------------------------------------------------------------------------
// Implementation Struct
// -----------------------------------------------------------------------------

// DefaultCredentialsManager implements CredentialsManager with env and file
// backends.
//
// # Description
//
// The production implementation. Environment variables are checked first so
// CI runners can inject credentials without touching disk; the credentials
// file is the fallback for developer workstations.
//
// # Thread Safety
//
// DefaultCredentialsManager is safe for concurrent use.
type DefaultCredentialsManager struct {
	logger   *slog.Logger
	envFunc  func(string) string
	filePath string

	// permWarned dedupes the world-readable file warning.
	permWarned bool
	mu         sync.Mutex
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

// NewDefaultCredentialsManager creates a credentials manager.
//
// # Description
//
// Creates a manager with the env backend always enabled and the file backend
// pointed at ~/.aleutianship/credentials.yaml. A missing file is not an
// error; the file backend simply reports not-found.
//
// # Inputs
//
//   - logger: Audit log destination (nil uses slog.Default)
//
// # Outputs
//
//   - *DefaultCredentialsManager: Ready-to-use manager
//
// # Examples
//
//	manager := NewDefaultCredentialsManager(logger)
//	creds, err := manager.GetCredential(ctx, "docker-creds-id")
func NewDefaultCredentialsManager(logger *slog.Logger) *DefaultCredentialsManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultCredentialsManager{
		logger:   logger,
		envFunc:  os.Getenv,
		filePath: defaultCredentialsPath(),
	}
}

// defaultCredentialsPath resolves ~/.aleutianship/credentials.yaml.
func defaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".aleutianship", credentialsFileName)
	}
	return filepath.Join(home, ".aleutianship", credentialsFileName)
}

// -----------------------------------------------------------------------------
// Interface Implementation Methods
// -----------------------------------------------------------------------------

// GetCredential resolves a credential by its ID.
//
// # Description
//
// Tries the environment backend, then the credentials file. Records the
// outcome to the audit log with the ID and backend only.
//
// # Inputs
//
//   - ctx: Context for cancellation
//   - id: Credential ID (e.g., "git-creds")
//
// # Outputs
//
//   - *Credential: The resolved credential
//   - error: ErrCredentialNotFound, ErrCredentialIncomplete, context errors,
//     or ErrCredentialBackendUnavailable
func (m *DefaultCredentialsManager) GetCredential(ctx context.Context, id string) (*Credential, error) {
	if id == "" {
		return nil, fmt.Errorf("credential ID cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cred, err := m.tryAllBackends(id)
	if err != nil {
		m.recordAccess(id, false, "")
		return nil, err
	}

	m.recordAccess(id, true, cred.Backend)
	return cred, nil
}

// GetOptionalCredential resolves a credential, tolerating absence.
//
// # Description
//
// Like GetCredential but returns (nil, nil) when the ID does not resolve.
// Incomplete entries are still errors: a half-configured credential is a
// mistake worth surfacing, not an absence.
func (m *DefaultCredentialsManager) GetOptionalCredential(ctx context.Context, id string) (*Credential, error) {
	cred, err := m.GetCredential(ctx, id)
	if errors.Is(err, ErrCredentialNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cred, nil
}

// GetToken resolves a credential and returns its secret text.
func (m *DefaultCredentialsManager) GetToken(ctx context.Context, id string) (string, error) {
	cred, err := m.GetCredential(ctx, id)
	if err != nil {
		return "", err
	}
	return cred.Secret, nil
}

// HasCredential checks whether an ID resolves without using it.
//
// # Description
//
// Existence check that bypasses the audit log. Incomplete entries count as
// not present.
func (m *DefaultCredentialsManager) HasCredential(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := m.tryAllBackends(id)
	if errors.Is(err, ErrCredentialNotFound) || errors.Is(err, ErrCredentialIncomplete) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ValidateCredential checks a credential against format rules.
//
// # Description
//
// Resolves the ID and applies per-ID shape checks. SonarQube token prefixes
// are warnings, not failures: pre-9.x servers issued bare hex tokens.
func (m *DefaultCredentialsManager) ValidateCredential(ctx context.Context, id string) (*CredentialValidation, error) {
	result := &CredentialValidation{
		ID:       id,
		Warnings: []string{},
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cred, err := m.tryAllBackends(id)
	if errors.Is(err, ErrCredentialNotFound) {
		result.Reason = "credential not found"
		return result, nil
	}
	if errors.Is(err, ErrCredentialIncomplete) {
		result.Exists = true
		result.Reason = "credential entry is incomplete"
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	result.Exists = true
	m.applyValidationRules(result, id, cred)
	return result, nil
}

// ListCredentialIDs returns the known IDs that currently resolve.
func (m *DefaultCredentialsManager) ListCredentialIDs(ctx context.Context) ([]string, error) {
	var found []string
	for _, id := range KnownCredentialIDs {
		exists, err := m.HasCredential(ctx, id)
		if err != nil {
			return nil, err
		}
		if exists {
			found = append(found, id)
		}
	}
	sort.Strings(found)
	return found, nil
}

// GetBackendTypes returns the backends in resolution order.
func (m *DefaultCredentialsManager) GetBackendTypes() []string {
	return []string{CredentialBackendEnv, CredentialBackendFile}
}

// GetSetupInstructions returns setup help for a missing credential.
//
// # Description
//
// Builds a message covering both backends: the exported env variable names
// for CI runners and a credentials.yaml stanza for workstations, plus a
// format hint for IDs with a known token shape.
func (m *DefaultCredentialsManager) GetSetupInstructions(id string) string {
	var sb strings.Builder
	base := envVarBase(id)

	sb.WriteString(fmt.Sprintf("Credential %q not found.\n\n", id))
	sb.WriteString("To configure this credential, choose one of these options:\n\n")

	sb.WriteString("Option 1: Environment Variables (for CI runners)\n")
	if isTokenCredential(id) {
		sb.WriteString(fmt.Sprintf("  export %s=\"your-token\"\n\n", base))
	} else {
		sb.WriteString(fmt.Sprintf("  export %s_USR=\"your-username\"\n", base))
		sb.WriteString(fmt.Sprintf("  export %s_PSW=\"your-password\"\n\n", base))
	}

	sb.WriteString(fmt.Sprintf("Option 2: Credentials File (%s, chmod 600)\n", m.filePath))
	sb.WriteString("  credentials:\n")
	sb.WriteString(fmt.Sprintf("    %s:\n", id))
	if isTokenCredential(id) {
		sb.WriteString("      token: \"your-token\"\n")
	} else {
		sb.WriteString("      username: \"your-username\"\n")
		sb.WriteString("      password: \"your-password\"\n")
	}

	m.appendFormatHint(&sb, id)
	return sb.String()
}

// IsConfigured returns true if at least one backend is usable.
//
// # Description
//
// The env backend is always present, so this only reports false when the
// process environment itself is unreadable, which cannot happen. Kept on
// the interface so alternative implementations can report honestly.
func (m *DefaultCredentialsManager) IsConfigured() bool {
	return true
}

// -----------------------------------------------------------------------------
// Private Helper Methods
// -----------------------------------------------------------------------------

// tryAllBackends attempts resolution in priority order.
func (m *DefaultCredentialsManager) tryAllBackends(id string) (*Credential, error) {
	cred, err := m.tryEnv(id)
	if err == nil {
		return cred, nil
	}
	if errors.Is(err, ErrCredentialIncomplete) {
		return nil, fmt.Errorf("%w: %s in environment", ErrCredentialIncomplete, id)
	}

	cred, err = m.tryFile(id)
	if err == nil {
		return cred, nil
	}
	if errors.Is(err, ErrCredentialIncomplete) {
		return nil, fmt.Errorf("%w: %s in %s", ErrCredentialIncomplete, id, m.filePath)
	}
	if errors.Is(err, ErrCredentialBackendUnavailable) {
		return nil, err
	}

	return nil, fmt.Errorf("%w: %s", ErrCredentialNotFound, id)
}

// tryEnv resolves an ID from environment variables.
//
// Accepted forms, first match wins:
//
//	BASE_USR + BASE_PSW   username/secret pair
//	BASE                  secret-only (token)
//	BASE_PSW              secret-only
func (m *DefaultCredentialsManager) tryEnv(id string) (*Credential, error) {
	base := envVarBase(id)
	user := m.envFunc(base + "_USR")
	pass := m.envFunc(base + "_PSW")

	if user != "" {
		if pass == "" {
			return nil, ErrCredentialIncomplete
		}
		return &Credential{ID: id, Username: user, Secret: pass, Backend: CredentialBackendEnv}, nil
	}
	if token := m.envFunc(base); token != "" {
		return &Credential{ID: id, Secret: token, Backend: CredentialBackendEnv}, nil
	}
	if pass != "" {
		return &Credential{ID: id, Secret: pass, Backend: CredentialBackendEnv}, nil
	}
	return nil, ErrCredentialNotFound
}

// credentialsFile is the on-disk credentials.yaml schema.
type credentialsFile struct {
	Credentials map[string]credentialsFileEntry `yaml:"credentials"`
}

// credentialsFileEntry is one credential stanza. Token and password are
// alternatives; token wins when both are set.
type credentialsFileEntry struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Token    string `yaml:"token"`
}

// tryFile resolves an ID from the credentials file.
func (m *DefaultCredentialsManager) tryFile(id string) (*Credential, error) {
	data, err := os.ReadFile(m.filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("%w: reading %s: %v", ErrCredentialBackendUnavailable, m.filePath, err)
	}

	m.warnIfWorldReadable()

	var file credentialsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrCredentialBackendUnavailable, m.filePath, err)
	}

	entry, ok := file.Credentials[id]
	if !ok {
		return nil, ErrCredentialNotFound
	}

	secret := entry.Token
	if secret == "" {
		secret = entry.Password
	}
	if secret == "" {
		return nil, ErrCredentialIncomplete
	}

	return &Credential{
		ID:       id,
		Username: entry.Username,
		Secret:   secret,
		Backend:  CredentialBackendFile,
	}, nil
}

// warnIfWorldReadable logs once when the credentials file is readable by
// group or other.
func (m *DefaultCredentialsManager) warnIfWorldReadable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.permWarned {
		return
	}
	info, err := os.Stat(m.filePath)
	if err != nil {
		return
	}
	if info.Mode().Perm()&0o077 != 0 {
		m.logger.Warn("credentials file is readable by other users, chmod 600 recommended",
			"path", m.filePath,
			"mode", fmt.Sprintf("%04o", info.Mode().Perm()))
		m.permWarned = true
	}
}

// recordAccess writes a resolution event to the audit log. IDs only,
// never values.
func (m *DefaultCredentialsManager) recordAccess(id string, found bool, backend string) {
	if found {
		m.logger.Info("credential resolved", "credential_id", id, "backend", backend)
		return
	}
	m.logger.Warn("credential resolution failed", "credential_id", id)
}

// applyValidationRules applies per-ID shape checks to a resolved credential.
func (m *DefaultCredentialsManager) applyValidationRules(result *CredentialValidation, id string, cred *Credential) {
	if strings.TrimSpace(cred.Secret) != cred.Secret {
		result.Warnings = append(result.Warnings, "secret has leading or trailing whitespace")
	}

	switch id {
	case config.DefaultSonarCredentialID:
		m.validateSonarToken(result, cred)
	case config.DefaultGitCredentialID, config.DefaultNexusCredentialID, config.DefaultDockerCredentialID:
		m.validateUsernamePair(result, cred)
	default:
		result.Valid = true
	}
}

// validateSonarToken checks the SonarQube token shape.
//
// Tokens from 9.x onward carry a squ_/sqa_/sqp_ prefix; older servers
// issued bare 40-char hex. Unknown shapes warn rather than fail.
func (m *DefaultCredentialsManager) validateSonarToken(result *CredentialValidation, cred *Credential) {
	token := cred.Secret
	prefixed := strings.HasPrefix(token, "squ_") ||
		strings.HasPrefix(token, "sqa_") ||
		strings.HasPrefix(token, "sqp_")
	if !prefixed && len(token) != 40 {
		result.Warnings = append(result.Warnings,
			"token does not look like a SonarQube token (expected squ_/sqa_/sqp_ prefix or 40-char legacy form)")
	}
	result.Valid = true
}

// validateUsernamePair checks credentials that should be username/secret
// pairs.
func (m *DefaultCredentialsManager) validateUsernamePair(result *CredentialValidation, cred *Credential) {
	if !cred.HasUsername() {
		result.Warnings = append(result.Warnings,
			"credential has no username; some consumers treat the secret as a token")
	}
	result.Valid = true
}

// appendFormatHint adds format hints for IDs with a known token shape.
func (m *DefaultCredentialsManager) appendFormatHint(sb *strings.Builder, id string) {
	if id == config.DefaultSonarCredentialID {
		sb.WriteString("\nNote: SonarQube user tokens start with 'squ_'\n")
	}
}

// isTokenCredential reports whether an ID conventionally holds a bare token.
func isTokenCredential(id string) bool {
	return id == config.DefaultSonarCredentialID
}

// envVarBase converts a credential ID to its environment variable base name.
// "docker-creds-id" becomes "DOCKER_CREDS_ID".
func envVarBase(id string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - ('a' - 'A')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, id)
	if mapped != "" && mapped[0] >= '0' && mapped[0] <= '9' {
		mapped = "_" + mapped
	}
	return mapped
}

// -----------------------------------------------------------------------------
// Compile-time Interface Check
// -----------------------------------------------------------------------------

var _ CredentialsManager = (*DefaultCredentialsManager)(nil)
