// Package store keeps a history of parse runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jcs090218/tree-sitter-actionscript/pkg/types"
)

// SchemaVersion is incremented when the schema changes incompatibly.
const SchemaVersion = 1

// Store records parse reports keyed by file path and content hash.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// New creates a store. Call Init before use.
func New() *Store {
	return &Store{now: time.Now}
}

// Init opens (creating if needed) the database at path.
func (s *Store) Init(path string) error {
	s.path = path

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// WAL mode for concurrent reads, busy_timeout to wait for locks instead of failing immediately
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	s.db = db

	if err := s.createSchema(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	version, err := s.metadata("schema_version")
	switch {
	case errors.Is(err, types.ErrNotFound):
		if err := s.setMetadata("schema_version", strconv.Itoa(SchemaVersion)); err != nil {
			return err
		}
	case err != nil:
		return err
	case version != strconv.Itoa(SchemaVersion):
		return fmt.Errorf("%w: schema version %s, want %d", types.ErrStoreFailed, version, SchemaVersion)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS parses (
			id TEXT PRIMARY KEY,
			file_path TEXT NOT NULL,
			language TEXT NOT NULL,
			hash TEXT NOT NULL,
			bytes INTEGER NOT NULL,
			duration_ns INTEGER NOT NULL,
			incremental INTEGER NOT NULL,
			nodes INTEGER NOT NULL,
			errors INTEGER NOT NULL,
			missing INTEGER NOT NULL,
			reused_nodes INTEGER NOT NULL,
			reused_bytes INTEGER NOT NULL,
			tokens INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_parses_file_path ON parses(file_path, created_at)`)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) metadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", types.ErrNotFound
	}
	return value, err
}

func (s *Store) setMetadata(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)`, key, value)
	return err
}

// RecordParse stores a parse report and returns the stored record.
func (s *Store) RecordParse(ctx context.Context, report *types.ParseReport) (*types.ParseRecord, error) {
	rec := &types.ParseRecord{
		ID:          uuid.NewString(),
		CreatedAt:   s.now().UTC(),
		ParseReport: *report,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO parses
		(id, file_path, language, hash, bytes, duration_ns, incremental, nodes, errors, missing,
		 reused_nodes, reused_bytes, tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Path, rec.Language, rec.Hash, rec.Bytes, int64(rec.Duration), rec.Incremental,
		rec.Nodes, rec.Errors, rec.Missing, rec.ReusedNodes, rec.ReusedBytes, rec.Tokens,
		rec.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("%w: record parse: %w", types.ErrStoreFailed, err)
	}
	return rec, nil
}

// History returns the most recent parse records of path, newest first.
// A non-positive limit returns every record.
func (s *Store) History(ctx context.Context, path string, limit int) ([]*types.ParseRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_path, language, hash, bytes, duration_ns, incremental, nodes, errors, missing,
		       reused_nodes, reused_bytes, tokens, created_at
		FROM parses
		WHERE file_path = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, path, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: history: %w", types.ErrStoreFailed, err)
	}
	defer rows.Close()

	var out []*types.ParseRecord
	for rows.Next() {
		var (
			rec      types.ParseRecord
			duration int64
			created  int64
		)
		if err := rows.Scan(&rec.ID, &rec.Path, &rec.Language, &rec.Hash, &rec.Bytes, &duration,
			&rec.Incremental, &rec.Nodes, &rec.Errors, &rec.Missing, &rec.ReusedNodes,
			&rec.ReusedBytes, &rec.Tokens, &created); err != nil {
			return nil, fmt.Errorf("%w: history: %w", types.ErrStoreFailed, err)
		}
		rec.Duration = time.Duration(duration)
		rec.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// LatestHash returns the content hash of the most recent parse of path.
func (s *Store) LatestHash(ctx context.Context, path string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `
		SELECT hash FROM parses WHERE file_path = ? ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: no parse of %s", types.ErrNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("%w: latest hash: %w", types.ErrStoreFailed, err)
	}
	return hash, nil
}

// Stats returns store statistics.
func (s *Store) Stats(ctx context.Context) (*types.StoreStats, error) {
	stats := &types.StoreStats{}
	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT file_path),
		       COALESCE(SUM(CASE WHEN errors > 0 OR missing > 0 THEN 1 ELSE 0 END), 0),
		       MAX(created_at)
		FROM parses
	`).Scan(&stats.Records, &stats.Files, &stats.ErrorParses, &last)
	if err != nil {
		return nil, fmt.Errorf("%w: stats: %w", types.ErrStoreFailed, err)
	}
	if last.Valid {
		stats.LastParsed = time.Unix(0, last.Int64).UTC()
	}

	// Get DB file size
	if info, err := os.Stat(s.path); err == nil {
		stats.DBSizeBytes = info.Size()
	}
	return stats, nil
}

// DeleteFile removes every record of path and returns how many were removed.
func (s *Store) DeleteFile(ctx context.Context, path string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM parses WHERE file_path = ?", path)
	if err != nil {
		return 0, fmt.Errorf("%w: delete: %w", types.ErrStoreFailed, err)
	}
	return res.RowsAffected()
}
