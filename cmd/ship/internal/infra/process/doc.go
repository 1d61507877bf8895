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
Package process provides abstractions for external process execution and
inter-process synchronization.

# Overview

This package contains two main components:

  - Manager: Abstracts external process execution for testability
  - BuildLocker: File-based locking to prevent two processes running the
    same build number

# Manager

Manager enables testable interaction with the operating system's process
management capabilities. Every external tool the pipeline touches (git,
docker, python, pytest, flake8, bandit, safety, trivy, sonar-scanner) is
invoked through this interface so stage logic can be unit tested without
a toolchain installed.

	pm := process.NewDefaultManager()
	output, err := pm.Run(ctx, "docker", "ps", "--format", "{{.Names}}")
	if err != nil {
	    return fmt.Errorf("failed to list containers: %w", err)
	}

For testing, use MockManager:

	mock := &process.MockManager{
	    RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
	        return []byte("mock output"), nil
	    },
	}

# BuildLocker

BuildLocker prevents two ship processes from executing the same build number
at once. The ephemeral containers and host ports are derived from the build
number, so a duplicate build would collide on both. Uses flock(2) system
call for advisory file locking.

	lock := process.NewBuildLock(process.BuildLockConfig{
	    LockName: process.BuildLockName(buildNumber),
	})
	if err := lock.Acquire(); err != nil {
	    fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	    os.Exit(1)
	}
	defer lock.Release()

# Thread Safety

  - Manager implementations are safe for concurrent use
  - BuildLocker is NOT safe for concurrent use from multiple goroutines

# Limitations

  - BuildLocker uses advisory locks - other processes can ignore if not checking
  - BuildLocker requires OS support for flock(2)
*/
package process
