// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that are passed
// to subprocess calls (git, docker). Using these validators prevents argument
// injection (a branch named "-c" becoming a git option) and malformed
// references reaching the container registry.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// maxRefLength caps both branch names and image references. Git and the
// registry protocol both tolerate longer names, but nothing the pipeline
// builds legitimately approaches this.
const maxRefLength = 255

// branchPattern matches safe git branch names.
// Allows: alphanumerics, dots, underscores, slashes (feature/x), hyphens.
// First character must be alphanumeric, which excludes anything git or a
// shell would read as an option.
var branchPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/\-]*$`)

// ValidateBranch validates a git branch name before it is used as a
// subprocess argument.
//
// Valid branch names:
//   - 1-255 characters
//   - Letters, digits, dots, underscores, hyphens
//   - Slashes for hierarchical names like feature/payments
//   - First character alphanumeric (never a hyphen)
//
// Returns an error if the branch name is invalid.
//
// Example:
//
//	if err := validation.ValidateBranch(branch); err != nil {
//	    return fmt.Errorf("invalid branch: %w", err)
//	}
//	// Safe to pass to git clone -b
func ValidateBranch(branch string) error {
	if branch == "" {
		return fmt.Errorf("branch name cannot be empty")
	}
	if len(branch) > maxRefLength {
		return fmt.Errorf("branch name too long: %d characters (max %d)", len(branch), maxRefLength)
	}
	if !branchPattern.MatchString(branch) {
		return fmt.Errorf("invalid branch name: %q (must be alphanumerics, dots, underscores, slashes, or hyphens, starting with an alphanumeric)", branch)
	}
	// Git refname rules: ".." is reserved, ".lock" and a trailing slash
	// are rejected by git itself.
	if strings.Contains(branch, "..") {
		return fmt.Errorf("invalid branch name: %q (\"..\" is not allowed)", branch)
	}
	if strings.HasSuffix(branch, ".lock") || strings.HasSuffix(branch, "/") || strings.HasSuffix(branch, ".") {
		return fmt.Errorf("invalid branch name: %q (reserved suffix)", branch)
	}
	return nil
}

// SanitizeBranch normalizes and validates a branch name.
// Returns the trimmed branch if valid, or an error if invalid.
//
// Use this on flag and environment input:
//
//	branch, err := validation.SanitizeBranch(userInput)
//	if err != nil {
//	    return err
//	}
//	// branch is trimmed and validated
func SanitizeBranch(branch string) (string, error) {
	normalized := strings.TrimSpace(branch)
	if err := ValidateBranch(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// repositoryPattern matches the repository part of an image reference,
// including an optional registry host with port (registry:5000/app).
var repositoryPattern = regexp.MustCompile(`^[a-z0-9]+(?:[._:\-/][a-z0-9]+)*$`)

// tagPattern matches a docker image tag per the registry grammar:
// up to 128 characters, alphanumerics, dots, underscores, hyphens,
// not starting with a dot or hyphen.
var tagPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._\-]{0,127}$`)

// ValidateImageRef validates a docker image reference ("repo",
// "repo:tag", or "host:port/repo:tag") before it is passed to docker
// build, push, or trivy.
//
// Returns an error if the reference is invalid.
func ValidateImageRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("image reference cannot be empty")
	}
	if len(ref) > maxRefLength {
		return fmt.Errorf("image reference too long: %d characters (max %d)", len(ref), maxRefLength)
	}

	// The tag is everything after the last colon, unless that colon
	// belongs to a registry port (a slash follows it).
	repo, tag := ref, ""
	if i := strings.LastIndex(ref, ":"); i > strings.LastIndex(ref, "/") {
		repo, tag = ref[:i], ref[i+1:]
	}

	if !repositoryPattern.MatchString(repo) {
		return fmt.Errorf("invalid image repository: %q (must be lowercase alphanumerics with ., _, -, / separators)", repo)
	}
	if tag != "" && !tagPattern.MatchString(tag) {
		return fmt.Errorf("invalid image tag: %q", tag)
	}
	return nil
}

// ValidateImageRefs validates multiple image references.
// Returns an error listing all invalid references if any fail validation.
func ValidateImageRefs(refs []string) error {
	var invalid []string
	for _, ref := range refs {
		if err := ValidateImageRef(ref); err != nil {
			invalid = append(invalid, ref)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid image references: %v", invalid)
	}
	return nil
}
