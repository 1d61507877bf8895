// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history persists build records in embedded BadgerDB storage.
//
// Every pipeline run allocates a monotonic build number here and writes
// one BuildRecord when it finishes. Records are JSON values under
// zero-padded keys, so a prefix scan in reverse yields the most recent
// builds first without any secondary index.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
// This package follows Apache 2.0 guidelines for attribution and usage.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrNotFound is returned when no record exists for a build number.
	ErrNotFound = errors.New("build record not found")

	// ErrInvalidRecord is returned for records that cannot be stored.
	ErrInvalidRecord = errors.New("invalid build record")

	// ErrInvalidConfig is returned when the store Config is invalid.
	ErrInvalidConfig = errors.New("invalid history configuration")
)

// Compile-time checks that errors implement error interface.
var (
	_ error = ErrNotFound
	_ error = ErrInvalidRecord
	_ error = ErrInvalidConfig
)

// Key layout. Record keys zero-pad the build number to sixteen digits
// so lexicographic order is numeric order.
const (
	recordKeyPrefix  = "build:"
	recordKeyFormat  = "build:%016d"
	lastBuildMetaKey = "meta:last_build"
)

// conflictRetries bounds the retry loop around counter transactions.
// Badger detects write conflicts at commit; the loser retries.
const conflictRetries = 32

// =============================================================================
// Configuration
// =============================================================================

// Config holds configuration for the history store.
type Config struct {
	// Dir is the directory for database files.
	// Required unless InMemory is true.
	Dir string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives badger's internal log output.
	// If nil, badger's internal logging is disabled.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Default: 5 minutes. Set negative to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	// Default: 0.5.
	GCDiscardRatio float64
}

// DefaultConfig returns production defaults for a persistent store.
//
// Description:
//
//	Durability over speed: synchronous writes, GC every five minutes
//	at a 50% discard threshold. The caller supplies Dir.
//
// Outputs:
//
//	Config - Ready-to-use production configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:            dir,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns configuration optimized for testing.
//
// Description:
//
//	In-memory mode with synchronous writes and GC disabled. Data is
//	lost on Close.
//
// Outputs:
//
//	Config - Ready-to-use test configuration.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		GCInterval: -1,
	}
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// =============================================================================
// Store Interface
// =============================================================================

// Store persists and retrieves build records.
//
// Thread Safety: Implementations are safe for concurrent use.
type Store interface {
	// NextBuildNumber allocates the next build number.
	//
	// Description:
	//
	//	Numbers are monotonic, gapless, and survive restarts. Importing
	//	a record with a higher number moves the counter past it, so
	//	allocated numbers are always unused.
	NextBuildNumber(ctx context.Context) (int, error)

	// Put stores one build record, overwriting any same-numbered record.
	Put(ctx context.Context, record *BuildRecord) error

	// Get returns the record for a build number, or ErrNotFound.
	Get(ctx context.Context, buildNumber int) (*BuildRecord, error)

	// Latest returns the highest-numbered record, or ErrNotFound when
	// the store is empty.
	Latest(ctx context.Context) (*BuildRecord, error)

	// List returns up to limit records, newest first. A non-positive
	// limit returns everything.
	List(ctx context.Context, limit int) ([]*BuildRecord, error)

	// Prune removes the oldest records beyond keep and returns how many
	// were removed.
	Prune(ctx context.Context, keep int) (int, error)

	// Close stops garbage collection and closes the database.
	Close() error
}

// =============================================================================
// Badger Implementation
// =============================================================================

// BadgerStore implements Store on embedded BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger

	gcStop chan struct{}
	gcDone chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// Compile-time check that BadgerStore implements Store.
var _ Store = (*BadgerStore)(nil)

// Open opens a history store with the given configuration.
//
// Description:
//
//	Opens BadgerDB at the configured directory (created if missing),
//	or in memory. Starts the value log GC loop for persistent stores
//	unless GCInterval is negative.
//
// Inputs:
//
//	cfg - Store configuration. Dir is required unless InMemory is true.
//
// Outputs:
//
//	*BadgerStore - The opened store. Caller must call Close when done.
//	error - Non-nil if the configuration is invalid or the database
//	cannot be opened.
//
// Thread Safety: The returned store is safe for concurrent use.
func Open(cfg Config) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, fmt.Errorf("%w: directory is required for a persistent store", ErrInvalidConfig)
	}
	if cfg.GCDiscardRatio < 0 || cfg.GCDiscardRatio > 1 {
		return nil, fmt.Errorf("%w: GC discard ratio %v out of range", ErrInvalidConfig, cfg.GCDiscardRatio)
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create history directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	store := &BadgerStore{
		db:     db,
		logger: cfg.Logger,
	}

	interval := cfg.GCInterval
	if interval == 0 {
		interval = 5 * time.Minute
	}
	ratio := cfg.GCDiscardRatio
	if ratio == 0 {
		ratio = 0.5
	}
	if interval > 0 && !cfg.InMemory {
		store.gcStop = make(chan struct{})
		store.gcDone = make(chan struct{})
		go store.runGC(interval, ratio)
	}

	return store, nil
}

// NextBuildNumber implements Store.
//
// Description:
//
//	Read-modify-write on the counter key inside one transaction.
//	Badger detects concurrent writers at commit time; the loser gets
//	ErrConflict and retries, so parallel callers never share a number.
func (s *BadgerStore) NextBuildNumber(ctx context.Context) (int, error) {
	var next int
	err := s.retryOnConflict(ctx, func(txn *badger.Txn) error {
		last, err := readCounter(txn)
		if err != nil {
			return err
		}
		next = last + 1
		return txn.Set([]byte(lastBuildMetaKey), []byte(strconv.Itoa(next)))
	})
	if err != nil {
		return 0, fmt.Errorf("allocate build number: %w", err)
	}
	return next, nil
}

// Put implements Store.
func (s *BadgerStore) Put(ctx context.Context, record *BuildRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}
	if record.BuildNumber <= 0 {
		return fmt.Errorf("%w: build number must be positive, got %d", ErrInvalidRecord, record.BuildNumber)
	}

	stored := *record
	if stored.SchemaVersion == 0 {
		stored.SchemaVersion = 1
	}
	value, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("encode build record %d: %w", record.BuildNumber, err)
	}

	key := []byte(fmt.Sprintf(recordKeyFormat, record.BuildNumber))
	err = s.retryOnConflict(ctx, func(txn *badger.Txn) error {
		if err := txn.Set(key, value); err != nil {
			return err
		}
		// Imported records must not let the counter hand out their
		// number again.
		last, err := readCounter(txn)
		if err != nil {
			return err
		}
		if record.BuildNumber > last {
			return txn.Set([]byte(lastBuildMetaKey), []byte(strconv.Itoa(record.BuildNumber)))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store build record %d: %w", record.BuildNumber, err)
	}
	return nil
}

// Get implements Store.
func (s *BadgerStore) Get(ctx context.Context, buildNumber int) (*BuildRecord, error) {
	if buildNumber <= 0 {
		return nil, fmt.Errorf("%w: build number must be positive, got %d", ErrInvalidRecord, buildNumber)
	}

	var record *BuildRecord
	key := []byte(fmt.Sprintf(recordKeyFormat, buildNumber))
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: build %d", ErrNotFound, buildNumber)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			record = new(BuildRecord)
			if err := json.Unmarshal(val, record); err != nil {
				return fmt.Errorf("decode build record %d: %w", buildNumber, err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Latest implements Store.
func (s *BadgerStore) Latest(ctx context.Context) (*BuildRecord, error) {
	records, err := s.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

// List implements Store.
//
// Description:
//
//	Reverse prefix scan over the record keyspace. Zero-padded keys
//	make lexicographic reverse order numeric descending, so the
//	iterator yields newest builds first and stops at limit.
func (s *BadgerStore) List(ctx context.Context, limit int) ([]*BuildRecord, error) {
	records := []*BuildRecord{}
	prefix := []byte(recordKeyPrefix)

	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts past the last record key.
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if limit > 0 && len(records) >= limit {
				return nil
			}
			err := it.Item().Value(func(val []byte) error {
				record := new(BuildRecord)
				if err := json.Unmarshal(val, record); err != nil {
					return fmt.Errorf("decode build record at %s: %w", it.Item().Key(), err)
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Prune implements Store.
func (s *BadgerStore) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("%w: keep must not be negative, got %d", ErrInvalidRecord, keep)
	}

	// Collect record keys oldest-first, then delete the overflow.
	var keys [][]byte
	prefix := []byte(recordKeyPrefix)
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(keys) <= keep {
		return 0, nil
	}
	doomed := keys[:len(keys)-keep]

	err = s.retryOnConflict(ctx, func(txn *badger.Txn) error {
		for _, key := range doomed {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("pruned build history",
			slog.Int("removed", len(doomed)),
			slog.Int("kept", keep))
	}
	return len(doomed), nil
}

// Close implements Store.
//
// Description:
//
//	Stops the GC loop and closes the database. Safe to call multiple
//	times; subsequent calls return the first result.
func (s *BadgerStore) Close() error {
	s.closeOnce.Do(func() {
		if s.gcStop != nil {
			close(s.gcStop)
			<-s.gcDone
		}
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

// =============================================================================
// Internal Helpers
// =============================================================================

// readCounter reads the last-issued build number inside a transaction.
func readCounter(txn *badger.Txn) (int, error) {
	item, err := txn.Get([]byte(lastBuildMetaKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var last int
	err = item.Value(func(val []byte) error {
		parsed, parseErr := strconv.Atoi(string(val))
		if parseErr != nil {
			return fmt.Errorf("corrupt build counter %q: %w", val, parseErr)
		}
		last = parsed
		return nil
	})
	return last, err
}

// retryOnConflict runs fn in a read-write transaction, retrying commit
// conflicts. Conflicts only arise between concurrent writers and
// resolve within a retry or two.
func (s *BadgerStore) retryOnConflict(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for attempt := 0; attempt < conflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.withTxn(fn)
		if err == nil || !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("transaction conflict persisted after %d attempts", conflictRetries)
}

// withTxn executes fn in a read-write transaction and commits.
func (s *BadgerStore) withTxn(fn func(txn *badger.Txn) error) error {
	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// withReadTxn executes fn in a read-only transaction.
func (s *BadgerStore) withReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	return fn(txn)
}

// runGC periodically triggers value log garbage collection.
func (s *BadgerStore) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			// ErrNoRewrite means nothing to collect, not a failure.
			err := s.db.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				if s.logger != nil {
					s.logger.Warn("history value log GC error", slog.String("error", err.Error()))
				}
			}
		}
	}
}

// =============================================================================
// Mock Implementation
// =============================================================================

// MockStore is a test double for Store.
type MockStore struct {
	NextBuildNumberFunc func(context.Context) (int, error)
	PutFunc             func(context.Context, *BuildRecord) error
	GetFunc             func(context.Context, int) (*BuildRecord, error)
	LatestFunc          func(context.Context) (*BuildRecord, error)
	ListFunc            func(context.Context, int) ([]*BuildRecord, error)
	PruneFunc           func(context.Context, int) (int, error)
	CloseFunc           func() error

	NextBuildNumberCalls int
	PutCalls             []*BuildRecord
	GetCalls             []int
	ListCalls            []int
	PruneCalls           []int
	CloseCalls           int

	counter int
	mu      sync.Mutex
}

// Compile-time check that MockStore implements Store.
var _ Store = (*MockStore)(nil)

// NextBuildNumber implements Store. The default hands out 1, 2, 3, ...
func (m *MockStore) NextBuildNumber(ctx context.Context) (int, error) {
	m.mu.Lock()
	m.NextBuildNumberCalls++
	m.counter++
	next := m.counter
	m.mu.Unlock()

	if m.NextBuildNumberFunc != nil {
		return m.NextBuildNumberFunc(ctx)
	}
	return next, nil
}

// Put implements Store.
func (m *MockStore) Put(ctx context.Context, record *BuildRecord) error {
	m.mu.Lock()
	m.PutCalls = append(m.PutCalls, record)
	m.mu.Unlock()

	if m.PutFunc != nil {
		return m.PutFunc(ctx, record)
	}
	return nil
}

// Get implements Store.
func (m *MockStore) Get(ctx context.Context, buildNumber int) (*BuildRecord, error) {
	m.mu.Lock()
	m.GetCalls = append(m.GetCalls, buildNumber)
	m.mu.Unlock()

	if m.GetFunc != nil {
		return m.GetFunc(ctx, buildNumber)
	}
	return &BuildRecord{
		SchemaVersion: 1,
		BuildNumber:   buildNumber,
		Status:        StatusSuccess,
	}, nil
}

// Latest implements Store.
func (m *MockStore) Latest(ctx context.Context) (*BuildRecord, error) {
	if m.LatestFunc != nil {
		return m.LatestFunc(ctx)
	}
	return &BuildRecord{SchemaVersion: 1, BuildNumber: 1, Status: StatusSuccess}, nil
}

// List implements Store.
func (m *MockStore) List(ctx context.Context, limit int) ([]*BuildRecord, error) {
	m.mu.Lock()
	m.ListCalls = append(m.ListCalls, limit)
	m.mu.Unlock()

	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit)
	}
	return []*BuildRecord{}, nil
}

// Prune implements Store.
func (m *MockStore) Prune(ctx context.Context, keep int) (int, error) {
	m.mu.Lock()
	m.PruneCalls = append(m.PruneCalls, keep)
	m.mu.Unlock()

	if m.PruneFunc != nil {
		return m.PruneFunc(ctx, keep)
	}
	return 0, nil
}

// Close implements Store.
func (m *MockStore) Close() error {
	m.mu.Lock()
	m.CloseCalls++
	m.mu.Unlock()

	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// GetPutCalls returns a copy of recorded Put calls.
func (m *MockStore) GetPutCalls() []*BuildRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]*BuildRecord, len(m.PutCalls))
	copy(calls, m.PutCalls)
	return calls
}
