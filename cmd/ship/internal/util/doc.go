// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package util provides foundational utilities for the ship CLI.
//
// This package contains low-level utilities that have no dependencies on
// other internal packages. All utilities depend only on the Go standard
// library, making this a leaf package in the dependency graph.
//
// # Overview
//
// The util package provides six categories of utilities:
//
//   - Timeout Management: Enforce minimum and default timeouts to prevent hangs
//   - Environment Variables: Type-safe environment variable handling with validation
//   - Command Errors: Rich error wrapping for build tool execution failures
//   - Ring Buffer: Thread-safe circular buffer for bounded log collection
//   - Progress Indicators: CLI spinners for long-running stages
//   - Goroutine Safety: Panic recovery for background goroutines
//
// # Thread Safety
//
// All types in this package are safe for concurrent use from multiple
// goroutines unless their documentation explicitly states otherwise.
// Specifically:
//
//   - [RingBuffer] is fully thread-safe (protected by mutex)
//   - [Spinner] is thread-safe for Start/Stop/SetMessage
//   - [EnvVars] is NOT thread-safe (do not modify concurrently)
//
// # Key Types
//
// Timeout utilities:
//
//	cfg := util.NewTimeoutConfig()
//	timeout := util.EnforceMinTimeout(requested, util.MinHTTPTimeout)
//
// Environment variables:
//
//	envs, err := util.NewEnvVars(
//	    util.EnvVar{Key: "SECRET_KEY", Value: "test-secret", Sensitive: true},
//	)
//	fmt.Println(envs.RedactedSlice()) // Safe for logging
//
// Command errors:
//
//	err := util.NewCommandError("git clone", 128, stderr, originalErr)
//	if cmdErr, ok := err.(*util.CommandError); ok {
//	    fmt.Println(cmdErr.Stderr)
//	}
//
// Ring buffer:
//
//	buffer := util.NewRingBuffer[string](1000)
//	buffer.Push("pytest output line")
//	items := buffer.Drain()
//
// Progress spinner:
//
//	spinner := util.NewSpinner(util.SpinnerConfig{Message: "Waiting for postgres..."})
//	spinner.Start()
//	defer spinner.Stop()
//
// Safe goroutines:
//
//	util.SafeGo(func() {
//	    broadcastLogs()
//	}, func(r util.SafeGoResult) {
//	    log.Printf("Panic recovered: %v\n%s", r.PanicValue, r.Stack)
//	})
//
// # Design Principles
//
// All utilities in this package follow these principles:
//
//  1. Single Responsibility: Each type/function does one thing well
//  2. Interface First: Interfaces defined before implementations
//  3. Defensive Defaults: Safe defaults that prevent common mistakes
//  4. Explicit Over Implicit: No hidden behavior or magic
//  5. Testable: All functionality is easily unit testable
//
// # Security Considerations
//
//   - [EnvVar] supports sensitivity marking so database URLs, Django secret
//     keys and registry passwords never reach logs in the clear
//   - [CommandError] captures stderr without exposing it to end users
//   - [SafeGoResult] captures full stack traces for debugging
//
// # Performance Considerations
//
//   - [RingBuffer] pre-allocates memory to avoid runtime allocations
//   - [Spinner] uses efficient ticker-based animation
package util
