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

/*
File storage tests.

# Testing Strategy

 1. Store/Load round trips against real temp directories, with the
    path traversal guard exercised from outside the base dir.
 2. List ordering and Prune cutoffs are made deterministic with
    os.Chtimes rather than sleeps.
*/

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// newTestStorage builds a FileStorage rooted in a temp dir.
func newTestStorage(t *testing.T) *FileStorage {
	t.Helper()
	storage, err := NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStorage failed: %v", err)
	}
	return storage
}

// storeBundle stores data and returns its location.
func storeBundle(t *testing.T, storage *FileStorage, data string, hint string) string {
	t.Helper()
	location, err := storage.Store(context.Background(), []byte(data), StorageMetadata{
		FilenameHint: hint,
		ContentType:  "application/json",
	})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	return location
}

func TestFileStorageStoreAndLoad(t *testing.T) {
	storage := newTestStorage(t)
	location := storeBundle(t, storage, `{"header":{}}`, "stage_failure")

	if !strings.HasPrefix(filepath.Base(location), "diag-") {
		t.Errorf("stored filename %q should start with diag-", filepath.Base(location))
	}
	if !strings.HasSuffix(location, ".json") {
		t.Errorf("stored filename %q should end in .json", location)
	}
	if !strings.Contains(location, "stage_failure") {
		t.Errorf("stored filename %q should carry the hint", location)
	}

	data, err := storage.Load(context.Background(), location)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(data) != `{"header":{}}` {
		t.Errorf("round trip corrupted data: %q", data)
	}

	// No temp file left behind.
	entries, err := os.ReadDir(storage.BaseDir())
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Errorf("temp file %q survived the atomic write", entry.Name())
		}
	}
}

func TestFileStorageLoadRejectsOutsidePath(t *testing.T) {
	storage := newTestStorage(t)

	outside := filepath.Join(t.TempDir(), "secrets.json")
	if err := os.WriteFile(outside, []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := storage.Load(context.Background(), outside); err == nil {
		t.Error("Load should refuse paths outside the base directory")
	}
	traversal := filepath.Join(storage.BaseDir(), "..", filepath.Base(outside))
	if _, err := storage.Load(context.Background(), traversal); err == nil {
		t.Error("Load should refuse .. traversal")
	}
}

func TestFileStorageListNewestFirst(t *testing.T) {
	storage := newTestStorage(t)
	older := storeBundle(t, storage, "a", "older")
	newer := storeBundle(t, storage, "b", "newer")

	base := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, base, base); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}
	if err := os.Chtimes(newer, base.Add(time.Minute), base.Add(time.Minute)); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	paths, err := storage.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 bundles, got %d", len(paths))
	}
	if paths[0] != newer || paths[1] != older {
		t.Errorf("List order = %v, want newest first", paths)
	}

	limited, err := storage.List(context.Background(), 1)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(limited) != 1 || limited[0] != newer {
		t.Errorf("List(1) = %v, want just the newest", limited)
	}
}

func TestFileStoragePruneRemovesOnlyExpired(t *testing.T) {
	storage := newTestStorage(t)
	storage.SetRetentionDays(7)

	expired := storeBundle(t, storage, "old", "expired")
	kept := storeBundle(t, storage, "new", "kept")

	past := time.Now().AddDate(0, 0, -8)
	if err := os.Chtimes(expired, past, past); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	deleted, err := storage.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if _, err := os.Stat(expired); !os.IsNotExist(err) {
		t.Error("expired bundle should be gone")
	}
	if _, err := os.Stat(kept); err != nil {
		t.Errorf("kept bundle should survive: %v", err)
	}
}

func TestFileStoragePruneIgnoresForeignFiles(t *testing.T) {
	storage := newTestStorage(t)

	foreign := filepath.Join(storage.BaseDir(), "notes.txt")
	if err := os.WriteFile(foreign, []byte("keep me"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	past := time.Now().AddDate(0, 0, -90)
	if err := os.Chtimes(foreign, past, past); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	deleted, err := storage.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Errorf("foreign file should survive pruning: %v", err)
	}
}

func TestSanitizeFilenameHint(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"stage_failure", "stage_failure"},
		{"build 7/unit tests", "build_7_unit_tests"},
		{"", ""},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}
	for _, tt := range tests {
		if got := sanitizeFilenameHint(tt.in); got != tt.want {
			t.Errorf("sanitizeFilenameHint(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseBundleFile(t *testing.T) {
	storage := newTestStorage(t)
	location := storeBundle(t, storage,
		`{"header":{"version":"1.0","bundle_id":"abc","reason":"stage_failure","severity":"error"},"system":{"os":"linux"}}`,
		"parse")

	bundle, err := ParseBundleFile(location)
	if err != nil {
		t.Fatalf("ParseBundleFile failed: %v", err)
	}
	if bundle.Header.BundleID != "abc" {
		t.Errorf("bundle ID = %q", bundle.Header.BundleID)
	}
	if bundle.Header.Reason != "stage_failure" {
		t.Errorf("reason = %q", bundle.Header.Reason)
	}
	if bundle.System.OS != "linux" {
		t.Errorf("system os = %q", bundle.System.OS)
	}
}

func TestParseBundleFileRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := ParseBundleFile(path); err == nil {
		t.Error("expected a parse error")
	}
}
