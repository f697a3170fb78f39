// Copyright 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: journal/journal.go
// Summary: SQLite journal of corrections applied across daemon runs.
//
// Corrections arrive on the event path, so writes are queued and
// batched by a background goroutine; queries go straight to the
// database.

// Package journal persists correction history so operators can inspect
// what spacepatch did long after the log rotated away.
package journal

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/spacepatch/spacepatch/engine"
	"github.com/spacepatch/spacepatch/wm"
)

// Record is one persisted correction.
type Record struct {
	ID     int64
	RunID  string
	Kind   string
	Window wm.WindowID
	Space  wm.SpaceID
	App    string
	Detail string
	At     time.Time
}

// Store is the journal surface used by the daemon and the CLI.
type Store interface {
	// Append queues a record for persistence. It never blocks the
	// caller; when the queue is full the record is dropped.
	Append(rec Record)

	// Recent returns up to limit records, newest first.
	Recent(limit int) ([]Record, error)

	// ForWindow returns up to limit records for one window, newest first.
	ForWindow(window wm.WindowID, limit int) ([]Record, error)

	// CountByKind aggregates the stored records per correction kind.
	CountByKind() (map[string]int64, error)

	// Flush blocks until all queued records are written.
	Flush() error

	// Close flushes pending writes and closes the database.
	Close() error
}

// Config holds configuration for the journal store.
type Config struct {
	// Path is the SQLite database file.
	Path string

	// BatchSize is the number of records to accumulate before flushing.
	// Default: 32
	BatchSize int

	// BatchTimeout is how long to wait before flushing a partial batch.
	// Default: 2s
	BatchTimeout time.Duration

	// ChannelBuffer is the size of the async write queue.
	// Default: 256
	ChannelBuffer int
}

// DefaultConfig returns sensible defaults for the given database path.
func DefaultConfig(path string) Config {
	return Config{
		Path:          path,
		BatchSize:     32,
		BatchTimeout:  2 * time.Second,
		ChannelBuffer: 256,
	}
}

// Current schema version - bump when the table layout changes.
const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS corrections (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    window INTEGER NOT NULL,
    space INTEGER NOT NULL,
    app TEXT NOT NULL DEFAULT '',
    detail TEXT NOT NULL DEFAULT '',
    at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_corrections_at ON corrections(at);
CREATE INDEX IF NOT EXISTS idx_corrections_window ON corrections(window);
`

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	config Config
	db     *sql.DB

	// Async batching
	batchChan chan Record
	stopCh    chan struct{}
	doneCh    chan struct{}
	flushCh   chan chan struct{}

	mu sync.RWMutex
}

// Open creates or opens the journal at path with default settings.
func Open(path string) (*SQLiteStore, error) {
	return OpenWithConfig(DefaultConfig(path))
}

// OpenWithConfig creates or opens a journal with custom configuration.
func OpenWithConfig(config Config) (*SQLiteStore, error) {
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Open database with pragmas for performance and concurrency
	dsn := config.Path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=cache_size(-8000)" + // 8MB cache
		"&_pragma=temp_store(MEMORY)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if err := checkSchemaVersion(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{
		config:    config,
		db:        db,
		batchChan: make(chan Record, config.ChannelBuffer),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		flushCh:   make(chan chan struct{}),
	}

	go s.batchWriter()

	return s, nil
}

// checkSchemaVersion stamps fresh databases and refuses ones written by
// a newer build.
func checkSchemaVersion(db *sql.DB) error {
	var current int
	err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&current)
	if err == sql.ErrNoRows {
		current = 0
	} else if err != nil {
		current = 0
	}

	if current > schemaVersion {
		return fmt.Errorf("journal: database schema version %d is newer than supported %d", current, schemaVersion)
	}
	if current == schemaVersion {
		return nil
	}

	if current != 0 {
		log.Printf("Journal: migrating schema from version %d to %d", current, schemaVersion)
	}
	if _, err := db.Exec("INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("journal: failed to update schema version: %w", err)
	}
	return nil
}

// batchWriter runs in a background goroutine, batching records and
// flushing periodically.
func (s *SQLiteStore) batchWriter() {
	defer close(s.doneCh)

	batch := make([]Record, 0, s.config.BatchSize)
	timer := time.NewTimer(s.config.BatchTimeout)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		s.flushBatch(batch)
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-s.batchChan:
			batch = append(batch, rec)
			if len(batch) >= s.config.BatchSize {
				flush()
				timer.Reset(s.config.BatchTimeout)
			}

		case <-timer.C:
			flush()
			timer.Reset(s.config.BatchTimeout)

		case done := <-s.flushCh:
			// Manual flush request - drain the queue first
			draining := true
			for draining {
				select {
				case rec := <-s.batchChan:
					batch = append(batch, rec)
				default:
					draining = false
				}
			}
			flush()
			close(done)

		case <-s.stopCh:
			// Drain the queue and flush before exit
			for {
				select {
				case rec := <-s.batchChan:
					batch = append(batch, rec)
				default:
					flush()
					return
				}
			}
		}
	}
}

// flushBatch writes a batch in a single transaction.
func (s *SQLiteStore) flushBatch(batch []Record) {
	if len(batch) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		log.Printf("Journal: failed to begin transaction: %v", err)
		return
	}

	stmt, err := tx.Prepare("INSERT INTO corrections (run_id, kind, window, space, app, detail, at) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		log.Printf("Journal: failed to prepare statement: %v", err)
		tx.Rollback()
		return
	}
	defer stmt.Close()

	for _, rec := range batch {
		if _, err := stmt.Exec(rec.RunID, rec.Kind, uint32(rec.Window), uint32(rec.Space), rec.App, rec.Detail, rec.At.UnixNano()); err != nil {
			log.Printf("Journal: failed to insert record for window %d: %v", rec.Window, err)
			tx.Rollback()
			return
		}
	}

	if err := tx.Commit(); err != nil {
		log.Printf("Journal: failed to commit batch: %v", err)
	}
}

// Append queues a record. When the queue is full the record is dropped
// rather than stalling the event path.
func (s *SQLiteStore) Append(rec Record) {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	select {
	case s.batchChan <- rec:
	default:
		log.Printf("Journal: queue full, dropping %s record for window %d", rec.Kind, rec.Window)
	}
}

func (s *SQLiteStore) Recent(limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, run_id, kind, window, space, app, detail, at
		FROM corrections
		ORDER BY at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query failed: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (s *SQLiteStore) ForWindow(window wm.WindowID, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, run_id, kind, window, space, app, detail, at
		FROM corrections
		WHERE window = ?
		ORDER BY at DESC, id DESC
		LIMIT ?
	`, uint32(window), limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query failed: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (s *SQLiteStore) CountByKind() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT kind, COUNT(*) FROM corrections GROUP BY kind")
	if err != nil {
		return nil, fmt.Errorf("journal: query failed: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			continue
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record

	for rows.Next() {
		var rec Record
		var window, space uint32
		var tsNano int64

		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Kind, &window, &space, &rec.App, &rec.Detail, &tsNano); err != nil {
			continue // Skip malformed rows
		}

		rec.Window = wm.WindowID(window)
		rec.Space = wm.SpaceID(space)
		rec.At = time.Unix(0, tsNano)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Flush blocks until all queued records are written.
func (s *SQLiteStore) Flush() error {
	done := make(chan struct{})
	select {
	case s.flushCh <- done:
		<-done
	case <-s.stopCh:
		// Already stopped
	}
	return nil
}

// Close flushes pending writes and closes the database.
func (s *SQLiteStore) Close() error {
	close(s.stopCh)
	<-s.doneCh

	return s.db.Close()
}

// Compile-time interface check
var _ Store = (*SQLiteStore)(nil)

// CorrectionWriter forwards engine correction events into a Store.
type CorrectionWriter struct {
	store Store
	runID string
}

// NewCorrectionWriter builds a listener persisting events under runID.
func NewCorrectionWriter(store Store, runID string) *CorrectionWriter {
	return &CorrectionWriter{store: store, runID: runID}
}

func (w *CorrectionWriter) OnCorrection(event engine.CorrectionEvent) {
	if w == nil || w.store == nil {
		return
	}
	w.store.Append(Record{
		RunID:  w.runID,
		Kind:   event.Type.String(),
		Window: event.Window,
		Space:  event.Space,
		App:    event.App,
		Detail: event.Detail,
		At:     event.At,
	})
}

var _ engine.Listener = (*CorrectionWriter)(nil)
