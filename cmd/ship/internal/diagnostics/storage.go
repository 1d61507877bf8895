// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// -----------------------------------------------------------------------------
// Storage Interface
// -----------------------------------------------------------------------------

// Storage persists diagnostic bundles.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Storage interface {
	// Store persists raw bundle bytes and returns their location.
	Store(ctx context.Context, data []byte, metadata StorageMetadata) (string, error)

	// Load retrieves previously stored bytes by location.
	Load(ctx context.Context, location string) ([]byte, error)

	// List returns stored locations, newest first, capped at limit
	// (zero or negative for all).
	List(ctx context.Context, limit int) ([]string, error)

	// Prune deletes bundles past the retention window and reports how
	// many were removed.
	Prune(ctx context.Context) (int, error)
}

// -----------------------------------------------------------------------------
// FileStorage Implementation
// -----------------------------------------------------------------------------

// FileStorage writes bundles to a local directory.
//
// # Description
//
// The default backend. Bundles are timestamped JSON files under
// ~/.aleutianship/diagnostics/, written atomically (temp file then
// rename) so a crash mid-write never leaves a half bundle. Retention
// pruning keeps the directory from growing without bound on a box that
// runs many builds.
//
// # Thread Safety
//
// FileStorage serializes mutations behind a mutex.
type FileStorage struct {
	baseDir       string
	retentionDays int
	filePrefix    string
	fileExtension string
	mu            sync.RWMutex
}

// NewFileStorage creates the directory-backed storage.
//
// # Inputs
//
//   - baseDir: Target directory. Empty uses ~/.aleutianship/diagnostics.
//
// # Outputs
//
//   - *FileStorage: Ready-to-use backend
//   - error: Non-nil if the directory cannot be created
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".aleutianship", "diagnostics")
	}

	if err := os.MkdirAll(baseDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create diagnostics directory %s: %w", baseDir, err)
	}

	return &FileStorage{
		baseDir:       baseDir,
		retentionDays: DefaultRetentionDays,
		filePrefix:    "diag",
		fileExtension: ".json",
	}, nil
}

// Store implements Storage with an atomic write.
func (s *FileStorage) Store(ctx context.Context, data []byte, metadata StorageMetadata) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	filename := s.generateFilename(metadata)
	filePath := filepath.Join(s.baseDir, filename)

	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0640); err != nil {
		return "", fmt.Errorf("failed to write diagnostic file: %w", err)
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("failed to finalize diagnostic file: %w", err)
	}

	return filePath, nil
}

// Load implements Storage. Refuses paths outside the base directory.
func (s *FileStorage) Load(ctx context.Context, location string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Clean(location))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return nil, fmt.Errorf("path outside storage directory: %s", location)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read diagnostic file: %w", err)
	}
	return data, nil
}

// List implements Storage, newest first by modification time.
func (s *FileStorage) List(ctx context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list diagnostics directory: %w", err)
	}

	type fileWithTime struct {
		path    string
		modTime time.Time
	}

	var files []fileWithTime
	for _, entry := range entries {
		if entry.IsDir() || !s.ownsFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, fileWithTime{
			path:    filepath.Join(s.baseDir, entry.Name()),
			modTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}

// Prune implements Storage.
//
// # Limitations
//
//   - Stops on the first deletion error; earlier deletions stand
func (s *FileStorage) Prune(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return 0, fmt.Errorf("failed to list diagnostics directory: %w", err)
	}

	var deleted int
	for _, entry := range entries {
		if entry.IsDir() || !s.ownsFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			filePath := filepath.Join(s.baseDir, entry.Name())
			if err := os.Remove(filePath); err != nil {
				return deleted, fmt.Errorf("failed to delete %s: %w", entry.Name(), err)
			}
			deleted++
		}
	}

	return deleted, nil
}

// SetRetentionDays changes the prune window. Non-positive values are
// ignored.
func (s *FileStorage) SetRetentionDays(days int) {
	if days <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retentionDays = days
}

// BaseDir returns the storage directory.
func (s *FileStorage) BaseDir() string {
	return s.baseDir
}

// ownsFile reports whether a directory entry is one of ours.
func (s *FileStorage) ownsFile(name string) bool {
	return strings.HasPrefix(name, s.filePrefix) && strings.HasSuffix(name, s.fileExtension)
}

// generateFilename builds a unique timestamped name. Nanoseconds keep
// two bundles in the same second from colliding.
func (s *FileStorage) generateFilename(metadata StorageMetadata) string {
	now := time.Now()
	timestamp := now.Format("20060102-150405")
	nanos := now.Nanosecond()

	hint := sanitizeFilenameHint(metadata.FilenameHint)
	if hint != "" {
		return fmt.Sprintf("%s-%s-%09d-%s%s", s.filePrefix, timestamp, nanos, hint, s.fileExtension)
	}
	return fmt.Sprintf("%s-%s-%09d%s", s.filePrefix, timestamp, nanos, s.fileExtension)
}

// sanitizeFilenameHint strips everything but [A-Za-z0-9_-] and caps
// the length.
func sanitizeFilenameHint(hint string) string {
	if hint == "" {
		return ""
	}

	var result strings.Builder
	for _, r := range hint {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result.WriteRune(r)
		case r == '-' || r == '_':
			result.WriteRune(r)
		default:
			result.WriteRune('_')
		}
	}

	out := result.String()
	if len(out) > 50 {
		out = out[:50]
	}
	return out
}

// ParseBundleFile loads and decodes one stored bundle.
func ParseBundleFile(path string) (*Bundle, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var bundle Bundle
	if err := json.Unmarshal(content, &bundle); err != nil {
		return nil, fmt.Errorf("failed to parse bundle: %w", err)
	}
	return &bundle, nil
}

// Compile-time interface compliance check.
var _ Storage = (*FileStorage)(nil)
