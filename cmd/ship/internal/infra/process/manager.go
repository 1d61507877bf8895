// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// Manager handles external process operations.
//
// This interface abstracts all interaction with the operating system's process
// management, enabling testable code that doesn't require real process execution.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use from multiple goroutines.
//
// # Context Handling
//
// All methods accept a context.Context for cancellation and timeout support.
// Long-running processes should respect context cancellation.
type Manager interface {
	// Run executes a command synchronously and returns its output.
	//
	// # Description
	//
	// Executes the specified command with arguments and waits for completion.
	// Returns the stdout output on success.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation/timeout
	//   - name: The executable name or path
	//   - args: Command arguments (variadic)
	//
	// # Outputs
	//
	//   - []byte: Stdout output
	//   - error: Non-nil if command fails or is cancelled
	//
	// # Examples
	//
	//   output, err := pm.Run(ctx, "docker", "ps", "--format", "{{.Names}}")
	//   if err != nil {
	//       return fmt.Errorf("failed to list containers: %w", err)
	//   }
	//
	// # Limitations
	//
	//   - Stderr is captured but not returned separately
	//   - Large output may consume significant memory
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// RunWithInput executes a command with data piped to stdin.
	//
	// # Description
	//
	// Executes the specified command and pipes the input data to the process's
	// stdin. Useful for commands that read from stdin (e.g., docker login
	// --password-stdin).
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation/timeout
	//   - name: The executable name or path
	//   - input: Data to write to stdin
	//   - args: Command arguments (variadic)
	//
	// # Outputs
	//
	//   - []byte: Stdout output
	//   - error: Non-nil if command fails, stdin write fails, or cancelled
	//
	// # Examples
	//
	//   password := []byte(cred.Password)
	//   _, err := pm.RunWithInput(ctx, "docker", password,
	//       "login", "--username", cred.Username, "--password-stdin")
	//   if err != nil {
	//       return fmt.Errorf("registry login failed: %w", err)
	//   }
	//
	// # Limitations
	//
	//   - Input is fully buffered in memory before being written
	RunWithInput(ctx context.Context, name string, input []byte, args ...string) ([]byte, error)

	// RunInDir executes a command in a directory with an explicit environment.
	//
	// # Description
	//
	// Executes the specified command with its working directory set and the
	// full environment replaced by env. Returns stdout and stderr separately
	// along with the process exit code. A non-zero exit is reported through
	// the exit code, not the error; the error is reserved for failures to run
	// at all (missing binary, cancelled context).
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation/timeout
	//   - dir: Working directory ("" inherits the current directory)
	//   - env: Complete environment for the child (nil inherits the parent's)
	//   - name: The executable name or path
	//   - args: Command arguments (variadic)
	//
	// # Outputs
	//
	//   - string: Stdout output
	//   - string: Stderr output
	//   - int: Exit code (0 on success, -1 if the process never ran)
	//   - error: Non-nil only when the command could not be executed
	//
	// # Examples
	//
	//   stdout, stderr, code, err := pm.RunInDir(ctx, workspace, buildEnv,
	//       "python3", "manage.py", "migrate", "--noinput")
	//   if err != nil {
	//       return fmt.Errorf("migration did not run: %w", err)
	//   }
	//   if code != 0 {
	//       return fmt.Errorf("migration exited with code %d: %s", code, stderr)
	//   }
	//
	// # Limitations
	//
	//   - Captures all output in memory (use RunStreaming for long output)
	RunInDir(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error)

	// RunStreaming executes a command and streams its output to a writer.
	//
	// # Description
	//
	// Runs the command with stdout and stderr attached to the writer. Used
	// for tools whose output should reach the console or log stream live
	// (pip installs, pytest runs, image builds).
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation (terminates the process)
	//   - dir: Working directory ("" inherits the current directory)
	//   - w: Writer receiving interleaved stdout and stderr
	//   - name: The executable name or path
	//   - args: Command arguments (variadic)
	//
	// # Outputs
	//
	//   - error: Non-nil if the command fails to start or exits non-zero
	//
	// # Examples
	//
	//   err := pm.RunStreaming(ctx, workspace, logWriter,
	//       "docker", "build", "-t", tag, ".")
	//
	// # Limitations
	//
	//   - Output is not captured; inspect the writer's sink instead
	//   - Stdout and stderr interleaving order is not guaranteed
	RunStreaming(ctx context.Context, dir string, w io.Writer, name string, args ...string) error

	// RunStreamingInDir streams a command's output with an explicit environment.
	//
	// # Description
	//
	// Combines RunStreaming's live output with RunInDir's environment
	// replacement and exit-code-as-result contract. Exists for tools whose
	// exit code is a result rather than a failure (pytest reports "no tests
	// collected" as exit 5) and which need injected build environments.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation (terminates the process)
	//   - dir: Working directory ("" inherits the current directory)
	//   - env: Complete environment for the child (nil inherits the parent's)
	//   - w: Writer receiving interleaved stdout and stderr
	//   - name: The executable name or path
	//   - args: Command arguments (variadic)
	//
	// # Outputs
	//
	//   - int: Exit code (0 on success, -1 if the process never ran)
	//   - error: Non-nil only when the command could not be executed
	//
	// # Examples
	//
	//   code, err := pm.RunStreamingInDir(ctx, workspace, testEnv, logWriter,
	//       ".venv/bin/pytest", "--junitxml=reports/junit.xml")
	RunStreamingInDir(ctx context.Context, dir string, env []string, w io.Writer, name string, args ...string) (int, error)

	// Start launches a background process and returns immediately.
	//
	// # Description
	//
	// Starts a process in the background without waiting for completion.
	// Returns the process ID (PID) for tracking.
	//
	// # Inputs
	//
	//   - ctx: Context (not used for cancellation, but for future extensions)
	//   - name: The executable name or path
	//   - args: Command arguments (variadic)
	//
	// # Outputs
	//
	//   - int: Process ID of the started process
	//   - error: Non-nil if process fails to start
	//
	// # Examples
	//
	//   pid, err := pm.Start(ctx, "docker", "logs", "-f", containerName)
	//   if err != nil {
	//       return fmt.Errorf("failed to tail container logs: %w", err)
	//   }
	//
	// # Limitations
	//
	//   - Process output is discarded (not captured)
	//   - No automatic cleanup when parent process exits
	//   - Context cancellation does not kill started process
	Start(ctx context.Context, name string, args ...string) (int, error)

	// IsRunning checks if a process matching the pattern exists.
	//
	// # Description
	//
	// Searches for running processes whose command line matches the given pattern.
	// Uses pgrep on Unix systems for process detection.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation/timeout
	//   - pattern: String pattern to match against process command lines
	//
	// # Outputs
	//
	//   - bool: True if at least one matching process is running
	//   - int: PID of first matching process (0 if not found)
	//   - error: Non-nil if process detection fails (not for "not found")
	//
	// # Examples
	//
	//   running, pid, err := pm.IsRunning(ctx, "sonar-scanner")
	//   if err != nil {
	//       return fmt.Errorf("failed to check process: %w", err)
	//   }
	//   if running {
	//       fmt.Printf("scanner still running (PID %d)\n", pid)
	//   }
	//
	// # Limitations
	//
	//   - Pattern matching behavior depends on the platform's pgrep
	//   - Only returns first matching PID, not all matches
	//
	// # Assumptions
	//
	//   - pgrep is available on the system (standard on macOS/Linux)
	IsRunning(ctx context.Context, pattern string) (bool, int, error)
}

// -----------------------------------------------------------------------------
// Implementation
// -----------------------------------------------------------------------------

// DefaultManager implements Manager using os/exec.
//
// This is the production implementation that executes real processes on the
// system. Use MockManager in tests instead.
type DefaultManager struct{}

// NewDefaultManager creates a new DefaultManager.
//
// # Description
//
// Creates a Manager that executes real processes using os/exec.
// This should be used in production code.
//
// # Outputs
//
//   - *DefaultManager: Ready-to-use process manager
//
// # Examples
//
//	pm := process.NewDefaultManager()
//	output, err := pm.Run(ctx, "git", "--version")
func NewDefaultManager() *DefaultManager {
	return &DefaultManager{}
}

// Run executes a command synchronously and returns its output.
func (pm *DefaultManager) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Include stderr in error for debugging
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, err
	}

	return stdout.Bytes(), nil
}

// RunWithInput executes a command with data piped to stdin.
func (pm *DefaultManager) RunWithInput(ctx context.Context, name string, input []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, err
	}

	return stdout.Bytes(), nil
}

// RunInDir executes a command in a directory with an explicit environment.
func (pm *DefaultManager) RunInDir(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	if env != nil {
		cmd.Env = env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Cancellation and timeouts surface as the context's error so
		// callers can distinguish them from a tool failure.
		if ctx.Err() != nil {
			return stdout.String(), stderr.String(), -1, ctx.Err()
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), stderr.String(), exitErr.ExitCode(), nil
		}

		return stdout.String(), stderr.String(), -1, err
	}

	return stdout.String(), stderr.String(), 0, nil
}

// RunStreaming executes a command and streams its output to a writer.
func (pm *DefaultManager) RunStreaming(ctx context.Context, dir string, w io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Stdout = w
	cmd.Stderr = w

	return cmd.Run()
}

// RunStreamingInDir streams a command's output with an explicit environment.
func (pm *DefaultManager) RunStreamingInDir(ctx context.Context, dir string, env []string, w io.Writer, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	if env != nil {
		cmd.Env = env
	}
	cmd.Stdout = w
	cmd.Stderr = w

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return -1, ctx.Err()
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}

		return -1, err
	}

	return 0, nil
}

// Start launches a background process and returns immediately.
func (pm *DefaultManager) Start(ctx context.Context, name string, args ...string) (int, error) {
	cmd := exec.Command(name, args...)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start %s: %w", name, err)
	}

	return cmd.Process.Pid, nil
}

// IsRunning checks if a process matching the pattern exists.
func (pm *DefaultManager) IsRunning(ctx context.Context, pattern string) (bool, int, error) {
	cmd := exec.CommandContext(ctx, "pgrep", "-f", pattern)
	output, err := cmd.Output()

	if err != nil {
		// pgrep returns exit code 1 when no processes found - this is not an error
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("pgrep failed: %w", err)
	}

	// Parse the first PID from output
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) > 0 && lines[0] != "" {
		pid, err := strconv.Atoi(lines[0])
		if err != nil {
			return true, 0, nil // Process found but PID parse failed
		}
		return true, pid, nil
	}

	return false, 0, nil
}

// -----------------------------------------------------------------------------
// Mock Implementation for Testing
// -----------------------------------------------------------------------------

// MockManager is a test double for Manager.
//
// Configure the mock by setting function fields before use. If a function
// field is nil and the corresponding method is called, it will panic.
//
// # Examples
//
//	mock := &MockManager{
//	    RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
//	        if name == "docker" && args[0] == "version" {
//	            return []byte("Docker version 27.0.3"), nil
//	        }
//	        return nil, fmt.Errorf("unexpected command: %s", name)
//	    },
//	}
type MockManager struct {
	// RunFunc is called when Run is invoked
	RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

	// RunWithInputFunc is called when RunWithInput is invoked
	RunWithInputFunc func(ctx context.Context, name string, input []byte, args ...string) ([]byte, error)

	// RunInDirFunc is called when RunInDir is invoked
	RunInDirFunc func(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error)

	// RunStreamingFunc is called when RunStreaming is invoked
	RunStreamingFunc func(ctx context.Context, dir string, w io.Writer, name string, args ...string) error

	// RunStreamingInDirFunc is called when RunStreamingInDir is invoked
	RunStreamingInDirFunc func(ctx context.Context, dir string, env []string, w io.Writer, name string, args ...string) (int, error)

	// StartFunc is called when Start is invoked
	StartFunc func(ctx context.Context, name string, args ...string) (int, error)

	// IsRunningFunc is called when IsRunning is invoked
	IsRunningFunc func(ctx context.Context, pattern string) (bool, int, error)

	// Calls records all method invocations for verification
	Calls []ManagerCall

	// mu protects Calls for concurrent access
	mu sync.Mutex
}

// ManagerCall records a single method invocation.
type ManagerCall struct {
	Method string
	Name   string
	Args   []string
	Dir    string
	Input  []byte
}

// Run delegates to RunFunc and records the call.
func (m *MockManager) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, ManagerCall{
		Method: "Run",
		Name:   name,
		Args:   args,
	})
	if m.RunFunc == nil {
		panic("MockManager.RunFunc not set")
	}
	return m.RunFunc(ctx, name, args...)
}

// RunWithInput delegates to RunWithInputFunc and records the call.
func (m *MockManager) RunWithInput(ctx context.Context, name string, input []byte, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, ManagerCall{
		Method: "RunWithInput",
		Name:   name,
		Args:   args,
		Input:  input,
	})
	if m.RunWithInputFunc == nil {
		panic("MockManager.RunWithInputFunc not set")
	}
	return m.RunWithInputFunc(ctx, name, input, args...)
}

// RunInDir delegates to RunInDirFunc and records the call.
func (m *MockManager) RunInDir(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, ManagerCall{
		Method: "RunInDir",
		Name:   name,
		Args:   args,
		Dir:    dir,
	})
	if m.RunInDirFunc == nil {
		panic("MockManager.RunInDirFunc not set")
	}
	return m.RunInDirFunc(ctx, dir, env, name, args...)
}

// RunStreaming delegates to RunStreamingFunc and records the call.
func (m *MockManager) RunStreaming(ctx context.Context, dir string, w io.Writer, name string, args ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, ManagerCall{
		Method: "RunStreaming",
		Name:   name,
		Args:   args,
		Dir:    dir,
	})
	if m.RunStreamingFunc == nil {
		panic("MockManager.RunStreamingFunc not set")
	}
	return m.RunStreamingFunc(ctx, dir, w, name, args...)
}

// RunStreamingInDir delegates to RunStreamingInDirFunc and records the call.
func (m *MockManager) RunStreamingInDir(ctx context.Context, dir string, env []string, w io.Writer, name string, args ...string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, ManagerCall{
		Method: "RunStreamingInDir",
		Name:   name,
		Args:   args,
		Dir:    dir,
	})
	if m.RunStreamingInDirFunc == nil {
		panic("MockManager.RunStreamingInDirFunc not set")
	}
	return m.RunStreamingInDirFunc(ctx, dir, env, w, name, args...)
}

// Start delegates to StartFunc and records the call.
func (m *MockManager) Start(ctx context.Context, name string, args ...string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, ManagerCall{
		Method: "Start",
		Name:   name,
		Args:   args,
	})
	if m.StartFunc == nil {
		panic("MockManager.StartFunc not set")
	}
	return m.StartFunc(ctx, name, args...)
}

// IsRunning delegates to IsRunningFunc and records the call.
func (m *MockManager) IsRunning(ctx context.Context, pattern string) (bool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, ManagerCall{
		Method: "IsRunning",
		Name:   pattern,
	})
	if m.IsRunningFunc == nil {
		panic("MockManager.IsRunningFunc not set")
	}
	return m.IsRunningFunc(ctx, pattern)
}

// Reset clears all recorded calls.
func (m *MockManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

// GetCalls returns a copy of all recorded calls.
func (m *MockManager) GetCalls() []ManagerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]ManagerCall, len(m.Calls))
	copy(result, m.Calls)
	return result
}

// Compile-time interface compliance check.
var (
	_ Manager = (*DefaultManager)(nil)
	_ Manager = (*MockManager)(nil)
)
