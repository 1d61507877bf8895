// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scm checks pipeline sources out of Git.
//
// The checkout stage is the only writer: it clones the repository on the
// first build and fast-forwards the workspace on subsequent builds, then
// records the head commit for build history. Credentials travel through
// the process environment via a git credential helper, never through
// command-line arguments, so recorded commands and error messages stay
// free of secret material.
package scm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/infra/process"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/util"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrGitNotFound is returned when the git binary is not available.
	ErrGitNotFound = errors.New("git not found")

	// ErrInvalidOptions is returned when checkout options fail validation.
	ErrInvalidOptions = errors.New("invalid checkout options")

	// ErrRemoteMismatch is returned when an existing workspace tracks a
	// different repository than the one requested.
	ErrRemoteMismatch = errors.New("workspace tracks a different remote")

	// ErrWorkspaceConflict is returned when the workspace directory exists
	// but cannot be cloned into or updated.
	ErrWorkspaceConflict = errors.New("workspace directory conflict")
)

// Compile-time checks that errors implement error interface.
var (
	_ error = ErrGitNotFound
	_ error = ErrInvalidOptions
	_ error = ErrRemoteMismatch
	_ error = ErrWorkspaceConflict
)

// branchNameRegex validates branch names handed to git as positional
// arguments. The first character must not be a dash so a branch can never
// be parsed as a flag.
var branchNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/-]*$`)

// =============================================================================
// Credential Plumbing
// =============================================================================

// Environment variable names read by the inline credential helper.
const (
	credentialUserEnv = "SHIP_GIT_USERNAME"
	credentialPassEnv = "SHIP_GIT_PASSWORD"
)

// credentialHelper is an inline git credential helper that answers every
// credential prompt from the process environment. The helper text itself
// contains only variable names, so it is safe to log.
const credentialHelper = `!f() { echo "username=${SHIP_GIT_USERNAME}"; echo "password=${SHIP_GIT_PASSWORD}"; }; f`

// withCredentialArgs prefixes git arguments with the credential helper
// configuration when credentials are present. The first empty helper
// clears any helpers inherited from user or system configuration.
func withCredentialArgs(creds *Credentials, args ...string) []string {
	if creds == nil {
		return args
	}
	full := make([]string, 0, len(args)+4)
	full = append(full, "-c", "credential.helper=", "-c", "credential.helper="+credentialHelper)
	full = append(full, args...)
	return full
}

// credentialEnv returns the environment entries carrying credential
// values, or nil when no credentials are configured.
func credentialEnv(creds *Credentials) []string {
	if creds == nil {
		return nil
	}
	return []string{
		credentialUserEnv + "=" + creds.Username,
		credentialPassEnv + "=" + creds.Password,
	}
}

// =============================================================================
// Types
// =============================================================================

// Credentials authenticate against the Git host.
//
// # Description
//
// Username and password (or personal access token) for HTTP(S) remotes.
// Values are injected into git through the process environment and are
// never placed on the command line or recorded in call logs.
type Credentials struct {
	// Username is the Git host login or token username.
	Username string

	// Password is the password or personal access token. Sensitive.
	Password string
}

// CheckoutOptions configures a source checkout.
type CheckoutOptions struct {
	// RepoURL is the clone URL. It must not embed userinfo; use
	// Credentials for authentication.
	RepoURL string

	// Branch is the branch to check out.
	Branch string

	// Dir is the absolute workspace directory.
	Dir string

	// Credentials authenticate against the Git host (optional).
	Credentials *Credentials

	// Depth limits history when positive (shallow clone/fetch).
	// Zero fetches full history.
	Depth int

	// Clean removes untracked files after updating an existing
	// workspace, leaving a tree that matches the branch head exactly.
	Clean bool
}

// CheckoutResult describes a completed checkout.
type CheckoutResult struct {
	// Commit is the full head commit hash after checkout.
	Commit string

	// Branch is the branch that was checked out.
	Branch string

	// Cloned is true for a fresh clone, false when an existing
	// workspace was updated.
	Cloned bool

	// Duration is the total checkout wall time.
	Duration time.Duration
}

// ShortCommit returns the abbreviated head commit hash.
func (r *CheckoutResult) ShortCommit() string {
	if len(r.Commit) <= 12 {
		return r.Commit
	}
	return r.Commit[:12]
}

// =============================================================================
// Client Interface
// =============================================================================

// Client performs Git operations for the pipeline.
//
// # Description
//
// Defines the source-control surface the checkout stage depends on.
// Implementations must be safe for concurrent use.
type Client interface {
	// Checkout brings the workspace to the head of the requested branch,
	// cloning the repository if the workspace does not hold one yet.
	Checkout(ctx context.Context, opts CheckoutOptions) (*CheckoutResult, error)

	// HeadCommit resolves the current HEAD commit hash in dir.
	HeadCommit(ctx context.Context, dir string) (string, error)

	// IsRepository reports whether dir is the root of a git worktree.
	IsRepository(ctx context.Context, dir string) bool

	// Version returns the installed git version string.
	Version(ctx context.Context) (string, error)
}

// =============================================================================
// Default Implementation
// =============================================================================

// DefaultClient implements Client using the git command line.
//
// # Description
//
// Executes git through a process.Manager with a per-operation timeout.
// The client holds no mutable state after construction.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type DefaultClient struct {
	proc    process.Manager
	timeout time.Duration
}

// NewDefaultClient creates a git client backed by the given process manager.
//
// # Description
//
// Each git invocation runs under its own timeout context derived from
// the caller's context.
//
// # Inputs
//
//   - proc: Process manager used to execute git. Required.
//   - timeout: Maximum duration for each git operation. Non-positive
//     values fall back to util.DefaultProcessTimeout.
//
// # Outputs
//
//   - *DefaultClient: Ready-to-use client.
//   - error: Non-nil if proc is nil.
func NewDefaultClient(proc process.Manager, timeout time.Duration) (*DefaultClient, error) {
	if proc == nil {
		return nil, fmt.Errorf("%w: process manager is required", ErrInvalidOptions)
	}
	if timeout <= 0 {
		timeout = util.DefaultProcessTimeout
	}
	return &DefaultClient{
		proc:    proc,
		timeout: timeout,
	}, nil
}

// Compile-time check that DefaultClient implements Client.
var _ Client = (*DefaultClient)(nil)

// Checkout brings the workspace to the head of the requested branch.
//
// # Description
//
// When the workspace already holds a repository, verifies that its
// origin matches opts.RepoURL, force-fetches the branch, and resets the
// local branch onto the remote head. Otherwise clones the repository,
// refusing to clone into a non-empty directory that is not a repository.
// The head commit is resolved afterwards in both paths.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - opts: Checkout configuration. See CheckoutOptions.
//
// # Outputs
//
//   - *CheckoutResult: Head commit, branch, and clone/update indicator.
//   - error: Non-nil on validation failure or any failed git operation.
//
// # Example
//
//	result, err := client.Checkout(ctx, scm.CheckoutOptions{
//	    RepoURL: "https://git.example.com/gig/gig_router.git",
//	    Branch:  "main",
//	    Dir:     "/var/lib/ship/workspace/gig_router",
//	})
func (c *DefaultClient) Checkout(ctx context.Context, opts CheckoutOptions) (*CheckoutResult, error) {
	if err := validateCheckoutOptions(opts); err != nil {
		return nil, err
	}

	start := time.Now()
	extraEnv := credentialEnv(opts.Credentials)

	result := &CheckoutResult{Branch: opts.Branch}

	if c.IsRepository(ctx, opts.Dir) {
		if err := c.syncExisting(ctx, opts, extraEnv); err != nil {
			return nil, fmt.Errorf("update %s: %w", redactURL(opts.RepoURL), err)
		}
	} else {
		if err := ensureCloneTarget(opts.Dir); err != nil {
			return nil, err
		}
		if err := c.clone(ctx, opts, extraEnv); err != nil {
			return nil, fmt.Errorf("clone %s: %w", redactURL(opts.RepoURL), err)
		}
		result.Cloned = true
	}

	commit, err := c.HeadCommit(ctx, opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD in %s: %w", opts.Dir, err)
	}

	result.Commit = commit
	result.Duration = time.Since(start)
	return result, nil
}

// HeadCommit resolves the current HEAD commit hash in dir.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - dir: Repository directory.
//
// # Outputs
//
//   - string: Full commit hash, whitespace trimmed.
//   - error: Non-nil if HEAD cannot be resolved.
func (c *DefaultClient) HeadCommit(ctx context.Context, dir string) (string, error) {
	return c.runGit(ctx, dir, nil, "rev-parse", "HEAD")
}

// IsRepository reports whether dir is the root of a git worktree.
//
// # Description
//
// Checks for a .git entry directly under dir. A nested workspace inside
// some unrelated repository is deliberately not treated as a repository,
// so a stale or foreign parent checkout can never absorb a fetch meant
// for the pipeline workspace.
func (c *DefaultClient) IsRepository(ctx context.Context, dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// Version returns the installed git version string.
//
// # Outputs
//
//   - string: Output of `git --version`, whitespace trimmed.
//   - error: ErrGitNotFound if the binary is missing.
func (c *DefaultClient) Version(ctx context.Context) (string, error) {
	execCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	output, err := c.proc.Run(execCtx, "git", "--version")
	if err != nil {
		if strings.Contains(err.Error(), "executable file not found") {
			return "", fmt.Errorf("%w: install git or add it to PATH", ErrGitNotFound)
		}
		return "", fmt.Errorf("git --version: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// =============================================================================
// Checkout Internals
// =============================================================================

// clone performs a fresh single-branch clone into opts.Dir.
func (c *DefaultClient) clone(ctx context.Context, opts CheckoutOptions, extraEnv []string) error {
	args := []string{"clone", "--branch", opts.Branch, "--single-branch"}
	if opts.Depth > 0 {
		args = append(args, "--depth", strconv.Itoa(opts.Depth))
	}
	args = append(args, opts.RepoURL, opts.Dir)

	_, err := c.runGit(ctx, "", extraEnv, withCredentialArgs(opts.Credentials, args...)...)
	return err
}

// syncExisting updates a workspace that already holds a repository.
//
// The fetch uses an explicit force refspec because a single-branch clone
// restricts the configured refspec to the branch it was cloned with; a
// later build may request a different branch.
func (c *DefaultClient) syncExisting(ctx context.Context, opts CheckoutOptions, extraEnv []string) error {
	current, err := c.remoteURL(ctx, opts.Dir)
	if err != nil {
		return err
	}
	if !sameRemote(current, opts.RepoURL) {
		return fmt.Errorf("%w: workspace %s tracks %s, want %s",
			ErrRemoteMismatch, opts.Dir, redactURL(current), redactURL(opts.RepoURL))
	}

	fetchArgs := []string{"fetch", "--prune"}
	if opts.Depth > 0 {
		fetchArgs = append(fetchArgs, "--depth", strconv.Itoa(opts.Depth))
	}
	refspec := fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", opts.Branch, opts.Branch)
	fetchArgs = append(fetchArgs, "origin", refspec)

	if _, err := c.runGit(ctx, opts.Dir, extraEnv, withCredentialArgs(opts.Credentials, fetchArgs...)...); err != nil {
		return err
	}

	if _, err := c.runGit(ctx, opts.Dir, nil, "checkout", "-f", "-B", opts.Branch, "origin/"+opts.Branch); err != nil {
		return err
	}

	if opts.Clean {
		if _, err := c.runGit(ctx, opts.Dir, nil, "clean", "-ffdx"); err != nil {
			return err
		}
	}
	return nil
}

// remoteURL returns the origin URL of the repository in dir.
func (c *DefaultClient) remoteURL(ctx context.Context, dir string) (string, error) {
	return c.runGit(ctx, dir, nil, "remote", "get-url", "origin")
}

// runGit executes one git command and returns trimmed stdout.
//
// # Description
//
// Runs git through the process manager with the client timeout and the
// terminal prompt disabled, so a missing or wrong credential fails fast
// instead of hanging on an interactive prompt. A non-zero exit becomes a
// util.CommandError carrying the exit code and trimmed stderr.
func (c *DefaultClient) runGit(ctx context.Context, dir string, extraEnv []string, args ...string) (string, error) {
	execCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	env := append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	env = append(env, extraEnv...)

	stdout, stderr, exitCode, err := c.proc.RunInDir(execCtx, dir, env, "git", args...)
	if err != nil {
		verb := gitVerb(args)
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("git %s: timeout after %v", verb, c.timeout)
		}
		if strings.Contains(err.Error(), "executable file not found") {
			return "", fmt.Errorf("%w: install git or add it to PATH", ErrGitNotFound)
		}
		return "", fmt.Errorf("git %s: %w", verb, err)
	}
	if exitCode != 0 {
		cmdStr := fmt.Sprintf("git %s", strings.Join(args, " "))
		return "", util.NewCommandError(cmdStr, exitCode, strings.TrimSpace(stderr), nil)
	}
	return strings.TrimSpace(stdout), nil
}

// =============================================================================
// Validation and Helpers
// =============================================================================

// validateCheckoutOptions rejects malformed options before any process
// is started.
func validateCheckoutOptions(opts CheckoutOptions) error {
	if opts.RepoURL == "" {
		return fmt.Errorf("%w: repo URL is required", ErrInvalidOptions)
	}
	if strings.HasPrefix(opts.RepoURL, "-") {
		return fmt.Errorf("%w: repo URL must not start with a dash", ErrInvalidOptions)
	}
	if hasEmbeddedUserinfo(opts.RepoURL) {
		return fmt.Errorf("%w: repo URL must not embed credentials", ErrInvalidOptions)
	}
	if opts.Branch == "" {
		return fmt.Errorf("%w: branch is required", ErrInvalidOptions)
	}
	if !branchNameRegex.MatchString(opts.Branch) || strings.Contains(opts.Branch, "..") {
		return fmt.Errorf("%w: branch name %q is not allowed", ErrInvalidOptions, opts.Branch)
	}
	if opts.Dir == "" {
		return fmt.Errorf("%w: workspace directory is required", ErrInvalidOptions)
	}
	if !filepath.IsAbs(opts.Dir) {
		return fmt.Errorf("%w: workspace directory must be absolute: %s", ErrInvalidOptions, opts.Dir)
	}
	if opts.Depth < 0 {
		return fmt.Errorf("%w: depth must not be negative: %d", ErrInvalidOptions, opts.Depth)
	}
	if opts.Credentials != nil {
		if opts.Credentials.Username == "" {
			return fmt.Errorf("%w: credential username is required", ErrInvalidOptions)
		}
		if opts.Credentials.Password == "" {
			return fmt.Errorf("%w: credential password is required", ErrInvalidOptions)
		}
	}
	return nil
}

// ensureCloneTarget verifies the clone destination is usable.
//
// A missing directory is fine because git creates it. An existing empty
// directory is fine. Anything else would make git clone fail, so the
// conflict is reported before a process is started.
func ensureCloneTarget(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: stat %s: %v", ErrWorkspaceConflict, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrWorkspaceConflict, dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrWorkspaceConflict, dir, err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("%w: %s is not empty and not a git repository", ErrWorkspaceConflict, dir)
	}
	return nil
}

// hasEmbeddedUserinfo reports whether a URL carries userinfo. Scp-style
// addresses (git@host:path) have no URL userinfo and pass through.
func hasEmbeddedUserinfo(raw string) bool {
	if !strings.Contains(raw, "://") {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.User != nil
}

// redactURL masks userinfo in a URL for error messages and logs.
func redactURL(raw string) string {
	if !strings.Contains(raw, "://") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User("***")
	return u.String()
}

// sameRemote compares two remote URLs ignoring a trailing slash or .git
// suffix.
func sameRemote(a, b string) bool {
	return normalizeRemote(a) == normalizeRemote(b)
}

func normalizeRemote(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")
	return s
}

// gitVerb returns the git subcommand from an argument list, skipping
// global -c options.
func gitVerb(args []string) string {
	for i := 0; i < len(args); i++ {
		if args[i] == "-c" {
			i++
			continue
		}
		if strings.HasPrefix(args[i], "-") {
			continue
		}
		return args[i]
	}
	return "git"
}

// =============================================================================
// Mock Implementation
// =============================================================================

// MockClient is a test double for Client.
//
// # Description
//
// Provides a configurable mock implementation for testing. Each method
// can be configured with a custom function; unconfigured methods return
// success values. Calls are tracked for verification. Credential values
// are never recorded.
//
// # Example
//
//	mock := &MockClient{
//	    CheckoutFunc: func(ctx context.Context, opts scm.CheckoutOptions) (*scm.CheckoutResult, error) {
//	        return nil, errors.New("authentication failed")
//	    },
//	}
//	_, err := mock.Checkout(ctx, opts)
type MockClient struct {
	CheckoutFunc     func(context.Context, CheckoutOptions) (*CheckoutResult, error)
	HeadCommitFunc   func(context.Context, string) (string, error)
	IsRepositoryFunc func(context.Context, string) bool
	VersionFunc      func(context.Context) (string, error)

	CheckoutCalls     []CheckoutCall
	HeadCommitCalls   []string
	IsRepositoryCalls []string
	VersionCalls      int
	mu                sync.Mutex
}

// CheckoutCall records one Checkout invocation. The credential password
// is deliberately dropped; only the username survives for assertions.
type CheckoutCall struct {
	RepoURL        string
	Branch         string
	Dir            string
	Depth          int
	Clean          bool
	HasCredentials bool
	Username       string
}

// mockHeadCommit is the commit hash unconfigured mocks report.
const mockHeadCommit = "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0"

// Compile-time check that MockClient implements Client.
var _ Client = (*MockClient)(nil)

// Checkout implements Client.
func (m *MockClient) Checkout(ctx context.Context, opts CheckoutOptions) (*CheckoutResult, error) {
	m.mu.Lock()
	call := CheckoutCall{
		RepoURL: opts.RepoURL,
		Branch:  opts.Branch,
		Dir:     opts.Dir,
		Depth:   opts.Depth,
		Clean:   opts.Clean,
	}
	if opts.Credentials != nil {
		call.HasCredentials = true
		call.Username = opts.Credentials.Username
	}
	m.CheckoutCalls = append(m.CheckoutCalls, call)
	m.mu.Unlock()

	if m.CheckoutFunc != nil {
		return m.CheckoutFunc(ctx, opts)
	}
	return &CheckoutResult{
		Commit: mockHeadCommit,
		Branch: opts.Branch,
		Cloned: true,
	}, nil
}

// HeadCommit implements Client.
func (m *MockClient) HeadCommit(ctx context.Context, dir string) (string, error) {
	m.mu.Lock()
	m.HeadCommitCalls = append(m.HeadCommitCalls, dir)
	m.mu.Unlock()

	if m.HeadCommitFunc != nil {
		return m.HeadCommitFunc(ctx, dir)
	}
	return mockHeadCommit, nil
}

// IsRepository implements Client.
func (m *MockClient) IsRepository(ctx context.Context, dir string) bool {
	m.mu.Lock()
	m.IsRepositoryCalls = append(m.IsRepositoryCalls, dir)
	m.mu.Unlock()

	if m.IsRepositoryFunc != nil {
		return m.IsRepositoryFunc(ctx, dir)
	}
	return true
}

// Version implements Client.
func (m *MockClient) Version(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.VersionCalls++
	m.mu.Unlock()

	if m.VersionFunc != nil {
		return m.VersionFunc(ctx)
	}
	return "git version 2.43.0", nil
}

// GetCheckoutCalls returns a copy of recorded Checkout calls.
func (m *MockClient) GetCheckoutCalls() []CheckoutCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]CheckoutCall, len(m.CheckoutCalls))
	copy(calls, m.CheckoutCalls)
	return calls
}
