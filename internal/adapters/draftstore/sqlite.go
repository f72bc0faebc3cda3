// Package draftstore keeps a local SQLite cache of saved analyzer
// snapshots so drafts can be inspected and exported offline.
package draftstore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/legaldb/caseanalyzer/internal/core"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// Entry is one cached snapshot.
type Entry struct {
	DraftID       int64                       `json:"draft_id" yaml:"draft_id"`
	CorrelationID string                      `json:"correlation_id" yaml:"correlation_id"`
	Jurisdiction  string                      `json:"jurisdiction,omitempty" yaml:"jurisdiction,omitempty"`
	ResultCount   int                         `json:"result_count" yaml:"result_count"`
	UpdatedAt     time.Time                   `json:"updated_at" yaml:"updated_at"`
	Snapshot      core.StoredAnalyzerSnapshot `json:"snapshot" yaml:"snapshot"`
}

// SQLiteStore implements the snapshot cache with SQLite storage.
type SQLiteStore struct {
	dbPath string
	db     *sql.DB // Write connection
	readDB *sql.DB // Read-only connection
	mu     sync.RWMutex

	maxRetries    int
	baseRetryWait time.Duration
	now           func() time.Time
}

// Option configures the store.
type Option func(*SQLiteStore)

// WithRetry sets the busy retry policy.
func WithRetry(maxRetries int, baseWait time.Duration) Option {
	return func(s *SQLiteStore) {
		s.maxRetries = maxRetries
		s.baseRetryWait = baseWait
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) { s.now = now }
}

// NewSQLiteStore opens or creates the cache at dbPath.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		dbPath:        dbPath,
		maxRetries:    5,
		baseRetryWait: 100 * time.Millisecond,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating draft cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening write database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	s.db = db

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	// The read connection is opened after migrations so the file exists.
	readDB, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&mode=ro&_pragma=busy_timeout(1000)")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening read database: %w", err)
	}
	readDB.SetMaxOpenConns(10)
	readDB.SetMaxIdleConns(5)
	readDB.SetConnMaxLifetime(5 * time.Minute)
	s.readDB = readDB

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS draft_schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM draft_schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("checking schema version: %w", err)
	}

	migrations := []string{migrationV1}
	for i, migration := range migrations {
		version := i + 1
		if version <= currentVersion {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration transaction: %w", err)
		}
		for _, stmt := range splitStatements(migration) {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("executing migration v%d: %w", version, err)
			}
		}
		if _, err := tx.Exec(
			"INSERT INTO draft_schema_migrations (version, applied_at) VALUES (?, ?)",
			version, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration v%d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration v%d: %w", version, err)
		}
	}
	return nil
}

// splitStatements splits a SQL script into statements, dropping comment
// lines.
func splitStatements(script string) []string {
	var statements []string
	for _, stmt := range strings.Split(script, ";") {
		var sqlLines []string
		for _, line := range strings.Split(stmt, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" && !strings.HasPrefix(trimmed, "--") {
				sqlLines = append(sqlLines, line)
			}
		}
		if len(sqlLines) > 0 {
			statements = append(statements, strings.Join(sqlLines, "\n"))
		}
	}
	return statements
}

// Put stores snap as the latest snapshot of its draft and appends it to
// the draft's history.
func (s *SQLiteStore) Put(ctx context.Context, snap core.StoredAnalyzerSnapshot) error {
	if snap.DraftID <= 0 {
		return core.ErrValidation(core.CodeMissingDraftID, "snapshot has no draft id")
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	jurisdiction := ""
	if snap.Jurisdiction != nil {
		jurisdiction = snap.Jurisdiction.PreciseJurisdiction
	}
	ts := s.now().UTC().Format(time.RFC3339Nano)

	return s.retryWrite(ctx, "Put", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO drafts (draft_id, correlation_id, jurisdiction, snapshot, result_count, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(draft_id) DO UPDATE SET
				correlation_id = excluded.correlation_id,
				jurisdiction = excluded.jurisdiction,
				snapshot = excluded.snapshot,
				result_count = excluded.result_count,
				updated_at = excluded.updated_at
		`, snap.DraftID, snap.CorrelationID, jurisdiction, string(raw), len(snap.AnalysisResults), ts)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO draft_history (draft_id, correlation_id, snapshot, saved_at)
			VALUES (?, ?, ?, ?)
		`, snap.DraftID, snap.CorrelationID, string(raw), ts)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// Get returns the latest cached snapshot for draftID.
func (s *SQLiteStore) Get(ctx context.Context, draftID int64) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.readDB.QueryRowContext(ctx, `
		SELECT draft_id, correlation_id, jurisdiction, snapshot, result_count, updated_at
		FROM drafts WHERE draft_id = ?
	`, draftID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound("draft", fmt.Sprint(draftID))
	}
	if err != nil {
		return nil, fmt.Errorf("scanning draft: %w", err)
	}
	return entry, nil
}

// List returns every cached draft, most recently saved first.
func (s *SQLiteStore) List(ctx context.Context) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.readDB.QueryContext(ctx, `
		SELECT draft_id, correlation_id, jurisdiction, snapshot, result_count, updated_at
		FROM drafts
		ORDER BY updated_at DESC, draft_id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying drafts: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning draft: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// History returns the number of snapshots saved for draftID.
func (s *SQLiteStore) History(ctx context.Context, draftID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.readDB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM draft_history WHERE draft_id = ?", draftID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting history: %w", err)
	}
	return n, nil
}

// Delete removes a draft and its history.
func (s *SQLiteStore) Delete(ctx context.Context, draftID int64) error {
	return s.retryWrite(ctx, "Delete", func() error {
		_, err := s.db.ExecContext(ctx, "DELETE FROM drafts WHERE draft_id = ?", draftID)
		return err
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		entry        Entry
		jurisdiction sql.NullString
		snapshot     string
		updatedAt    string
	)
	if err := row.Scan(&entry.DraftID, &entry.CorrelationID, &jurisdiction, &snapshot, &entry.ResultCount, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(snapshot), &entry.Snapshot); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	entry.Jurisdiction = jurisdiction.String
	entry.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &entry, nil
}

// retryWrite executes a write operation with retry logic.
func (s *SQLiteStore) retryWrite(ctx context.Context, operation string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := fn(); err != nil {
			if isSQLiteBusy(err) {
				lastErr = err
				wait := s.baseRetryWait * time.Duration(1<<attempt)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(wait):
					continue
				}
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("%s failed after %d retries: %w", operation, s.maxRetries, lastErr)
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED")
}

// Close closes both database connections.
func (s *SQLiteStore) Close() error {
	var errs []error
	if s.readDB != nil {
		if err := s.readDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing read connection: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing write connection: %w", err))
		}
	}
	return errors.Join(errs...)
}
