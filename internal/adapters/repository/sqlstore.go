package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/roster/internal/domain/model"
	"github.com/okian/roster/pkg/metrics"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS mappings (
	kind       TEXT NOT NULL,
	source_id  TEXT NOT NULL,
	target_id  TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (kind, source_id),
	UNIQUE (kind, target_id)
);
`

// SQLStore implements Store over a single SQLite file. WAL mode keeps each
// Record commit durable without batching, which is what makes interrupted
// runs safely resumable.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// Option applies a configuration option to the SQLStore.
type Option func(*SQLStore)

// WithClock overrides the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *SQLStore) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens the mapping database at path, creating file and schema when
// missing.
func Open(path string, opts ...Option) (*SQLStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("mapping db path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create mapping db dir: %w", err)
		}
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mapping db: %w", err)
	}
	// A single writer is assumed; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mapping db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply mapping schema: %w", err)
	}

	s := &SQLStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Lookup implements Store.
func (s *SQLStore) Lookup(ctx context.Context, kind model.MappingKind, sourceID string) (string, error) {
	var targetID string
	err := s.db.QueryRowContext(ctx,
		`SELECT target_id FROM mappings WHERE kind = ? AND source_id = ?`,
		string(kind), sourceID,
	).Scan(&targetID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup mapping: %w", err)
	}
	return targetID, nil
}

// Record implements Store. Conflict checks run inside the insert
// transaction; the schema's uniqueness constraints back them up.
func (s *SQLStore) Record(ctx context.Context, kind model.MappingKind, sourceID, targetID string) error {
	if sourceID == "" || targetID == "" {
		return fmt.Errorf("%w: empty id", ErrConflict)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mapping tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existingTarget string
	err = tx.QueryRowContext(ctx,
		`SELECT target_id FROM mappings WHERE kind = ? AND source_id = ?`,
		string(kind), sourceID,
	).Scan(&existingTarget)
	switch {
	case err == nil && existingTarget == targetID:
		return nil // append-or-noop: identical pair already recorded
	case err == nil:
		metrics.RecordMappingConflict()
		return fmt.Errorf("%w: source %s already mapped to %s", ErrConflict, sourceID, existingTarget)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check source mapping: %w", err)
	}

	var existingSource string
	err = tx.QueryRowContext(ctx,
		`SELECT source_id FROM mappings WHERE kind = ? AND target_id = ?`,
		string(kind), targetID,
	).Scan(&existingSource)
	switch {
	case err == nil:
		metrics.RecordMappingConflict()
		return fmt.Errorf("%w: target %s already claimed by %s", ErrConflict, targetID, existingSource)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check target mapping: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO mappings (kind, source_id, target_id, created_at) VALUES (?, ?, ?, ?)`,
		string(kind), sourceID, targetID, s.now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("insert mapping: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mapping: %w", err)
	}
	return nil
}

// Count implements Store.
func (s *SQLStore) Count(ctx context.Context, kind model.MappingKind) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mappings WHERE kind = ?`, string(kind),
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count mappings: %w", err)
	}
	return n, nil
}

// Flush implements Store by checkpointing the WAL.
func (s *SQLStore) Flush(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("checkpoint mapping db: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
