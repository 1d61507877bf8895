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
Package artifact packages a built workspace into a distributable
archive and pushes it to artifact stores.

The archive is the workspace source tree as a tar.gz, minus the build
droppings (virtualenv, git metadata, caches, the dist directory
itself), accompanied by a sha256sum-compatible checksum file. Uploads
go through a small Uploader interface with Nexus raw-repository and
GCS backends.
*/
package artifact

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrInvalidOptions is returned for invalid packaging options.
	ErrInvalidOptions = errors.New("invalid artifact options")
)

// Compile-time check that errors implement error interface.
var (
	_ error = ErrInvalidOptions
)

// artifactNameRegex screens archive base names.
var artifactNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// DefaultExcludes returns the tree entries left out of every archive.
// The dist directory is always excluded on top of these so the archive
// never tries to swallow itself.
func DefaultExcludes() []string {
	return []string{
		".git",
		".venv",
		"venv",
		".scannerwork",
		".pytest_cache",
		".mypy_cache",
		"__pycache__",
		"*.pyc",
		"node_modules",
	}
}

// =============================================================================
// Types
// =============================================================================

// PackageOptions configures one packaging run.
type PackageOptions struct {
	// WorkspaceDir is the absolute path of the tree to package.
	WorkspaceDir string

	// Name is the artifact base name ("gig-router"). Required.
	Name string

	// BuildNumber lands in the archive file name.
	BuildNumber int

	// DistDir receives the archive. Relative paths resolve against the
	// workspace. Defaults to "dist".
	DistDir string

	// Excludes replaces DefaultExcludes when non-nil.
	Excludes []string
}

// Archive describes a packaged artifact.
type Archive struct {
	// Path is the archive location.
	Path string

	// ChecksumPath is the sha256 file location.
	ChecksumPath string

	// SHA256 is the archive digest, hex encoded.
	SHA256 string

	// Size is the archive size in bytes.
	Size int64

	// FileCount is the number of regular files archived.
	FileCount int

	// Duration is the packaging wall time.
	Duration time.Duration
}

// =============================================================================
// Packager Interface
// =============================================================================

// Packager turns a workspace into a distributable archive.
type Packager interface {
	// Package writes <name>-<build>.tar.gz and its .sha256 companion
	// into the dist directory.
	Package(ctx context.Context, opts PackageOptions) (*Archive, error)
}

// =============================================================================
// Default Implementation
// =============================================================================

// DefaultPackager implements Packager with archive/tar. Stateless;
// safe for concurrent use.
type DefaultPackager struct{}

// NewDefaultPackager creates a packager.
func NewDefaultPackager() *DefaultPackager {
	return &DefaultPackager{}
}

// Compile-time check that DefaultPackager implements Packager.
var _ Packager = (*DefaultPackager)(nil)

// Package implements Packager.
//
// # Description
//
// Walks the workspace writing regular files, directories, and symlinks
// into a gzip-compressed tar stream. The sha256 digest is computed
// over the compressed bytes as they are written, so the checksum file
// covers exactly what lands on disk. A failed run removes the partial
// archive.
//
// # Outputs
//
//   - *Archive: Paths, digest, and counts for the written archive.
//   - error: Non-nil on validation or I/O failure.
func (p *DefaultPackager) Package(ctx context.Context, opts PackageOptions) (*Archive, error) {
	if err := validatePackageOptions(&opts); err != nil {
		return nil, err
	}

	distDir := opts.DistDir
	if !filepath.IsAbs(distDir) {
		distDir = filepath.Join(opts.WorkspaceDir, distDir)
	}
	if err := os.MkdirAll(distDir, 0o755); err != nil {
		return nil, fmt.Errorf("create dist directory: %w", err)
	}

	excludes := opts.Excludes
	if excludes == nil {
		excludes = DefaultExcludes()
	}
	// The dist tree must never archive itself.
	if rel, err := filepath.Rel(opts.WorkspaceDir, distDir); err == nil && !strings.HasPrefix(rel, "..") {
		excludes = append(excludes, filepath.ToSlash(rel))
	}

	archivePath := filepath.Join(distDir, fmt.Sprintf("%s-%d.tar.gz", opts.Name, opts.BuildNumber))

	start := time.Now()
	fileCount, digest, err := writeArchive(ctx, opts.WorkspaceDir, archivePath, excludes)
	if err != nil {
		os.Remove(archivePath)
		return nil, err
	}

	checksumPath := archivePath + ".sha256"
	checksumLine := fmt.Sprintf("%s  %s\n", digest, filepath.Base(archivePath))
	if err := os.WriteFile(checksumPath, []byte(checksumLine), 0o644); err != nil {
		return nil, fmt.Errorf("write checksum file: %w", err)
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	return &Archive{
		Path:         archivePath,
		ChecksumPath: checksumPath,
		SHA256:       digest,
		Size:         info.Size(),
		FileCount:    fileCount,
		Duration:     time.Since(start),
	}, nil
}

// writeArchive streams the workspace into archivePath and returns the
// regular-file count and the archive digest.
func writeArchive(ctx context.Context, workspace, archivePath string, excludes []string) (int, string, error) {
	f, err := os.Create(archivePath)
	if err != nil {
		return 0, "", fmt.Errorf("create archive: %w", err)
	}

	hasher := sha256.New()
	gz := gzip.NewWriter(io.MultiWriter(f, hasher))
	tw := tar.NewWriter(gz)

	fileCount := 0
	walkErr := filepath.WalkDir(workspace, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(workspace, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if isExcluded(rel, d.Name(), excludes) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		link := ""
		switch {
		case info.Mode()&fs.ModeSymlink != 0:
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		case !info.Mode().IsRegular() && !info.IsDir():
			// Sockets and fifos have no place in a source archive.
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		if info.Mode().IsRegular() {
			src, err := os.Open(path)
			if err != nil {
				return err
			}
			_, copyErr := io.Copy(tw, src)
			src.Close()
			if copyErr != nil {
				return copyErr
			}
			fileCount++
		}
		return nil
	})

	if walkErr != nil {
		tw.Close()
		gz.Close()
		f.Close()
		return 0, "", fmt.Errorf("archive %s: %w", workspace, walkErr)
	}

	// Close order matters: tar flushes into gzip, gzip flushes into the
	// file and the hasher.
	if err := tw.Close(); err != nil {
		f.Close()
		return 0, "", fmt.Errorf("finalize tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		f.Close()
		return 0, "", fmt.Errorf("finalize gzip stream: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, "", fmt.Errorf("close archive: %w", err)
	}

	return fileCount, hex.EncodeToString(hasher.Sum(nil)), nil
}

// isExcluded matches a tree entry against the exclude patterns. A
// pattern matches the entry name (glob), the exact relative path, or a
// leading path segment.
func isExcluded(rel, name string, excludes []string) bool {
	slashRel := filepath.ToSlash(rel)
	for _, pattern := range excludes {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
		if slashRel == pattern || strings.HasPrefix(slashRel, pattern+"/") {
			return true
		}
	}
	return false
}

// validatePackageOptions validates and applies defaults in place.
func validatePackageOptions(opts *PackageOptions) error {
	if opts.WorkspaceDir == "" {
		return fmt.Errorf("%w: workspace directory is required", ErrInvalidOptions)
	}
	if !filepath.IsAbs(opts.WorkspaceDir) {
		return fmt.Errorf("%w: workspace directory must be absolute: %s", ErrInvalidOptions, opts.WorkspaceDir)
	}
	if info, err := os.Stat(opts.WorkspaceDir); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: workspace is not a directory: %s", ErrInvalidOptions, opts.WorkspaceDir)
	}
	if opts.Name == "" {
		return fmt.Errorf("%w: artifact name is required", ErrInvalidOptions)
	}
	if !artifactNameRegex.MatchString(opts.Name) {
		return fmt.Errorf("%w: invalid artifact name %q", ErrInvalidOptions, opts.Name)
	}
	if opts.BuildNumber < 0 {
		return fmt.Errorf("%w: build number must not be negative", ErrInvalidOptions)
	}
	if opts.DistDir == "" {
		opts.DistDir = "dist"
	}
	return nil
}

// =============================================================================
// Mock Implementation
// =============================================================================

// MockPackager is a test double for Packager.
type MockPackager struct {
	PackageFunc func(context.Context, PackageOptions) (*Archive, error)

	PackageCalls []PackageOptions
	mu           sync.Mutex
}

// Compile-time check that MockPackager implements Packager.
var _ Packager = (*MockPackager)(nil)

// Package implements Packager.
func (m *MockPackager) Package(ctx context.Context, opts PackageOptions) (*Archive, error) {
	m.mu.Lock()
	m.PackageCalls = append(m.PackageCalls, opts)
	m.mu.Unlock()

	if m.PackageFunc != nil {
		return m.PackageFunc(ctx, opts)
	}

	distDir := opts.DistDir
	if distDir == "" {
		distDir = "dist"
	}
	if !filepath.IsAbs(distDir) {
		distDir = filepath.Join(opts.WorkspaceDir, distDir)
	}
	path := filepath.Join(distDir, fmt.Sprintf("%s-%d.tar.gz", opts.Name, opts.BuildNumber))
	return &Archive{
		Path:         path,
		ChecksumPath: path + ".sha256",
		SHA256:       strings.Repeat("ab", 32),
		Size:         4096,
		FileCount:    12,
	}, nil
}

// GetPackageCalls returns a copy of recorded calls.
func (m *MockPackager) GetPackageCalls() []PackageOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]PackageOptions, len(m.PackageCalls))
	copy(calls, m.PackageCalls)
	return calls
}
