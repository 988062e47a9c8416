package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_meta (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	model_id TEXT NOT NULL,
	catalog_hash TEXT NOT NULL,
	dimensions INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS embeddings (
	slug TEXT PRIMARY KEY,
	vector BLOB NOT NULL
);`

// SQLiteStore keeps the snapshot in a SQLite database. Each Save runs in a single
// transaction, which gives the atomic replace the Store contract asks for.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load reads the persisted snapshot.
func (s *SQLiteStore) Load(ctx context.Context) (*Snapshot, error) {
	var modelID, catalogHash string
	var dimensions int
	err := s.db.QueryRowContext(ctx,
		`SELECT model_id, catalog_hash, dimensions FROM cache_meta WHERE id = 1`,
	).Scan(&modelID, &catalogHash, &dimensions)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cache meta: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT slug, vector FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("read embeddings: %w", err)
	}
	defer rows.Close()

	snap := NewSnapshot(modelID, catalogHash, dimensions)
	for rows.Next() {
		var slug string
		var blob []byte
		if err := rows.Scan(&slug, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decode embedding %s: %w", slug, err)
		}
		snap.store[slug] = vec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read embeddings: %w", err)
	}
	return snap, nil
}

// Save replaces the persisted snapshot in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap *Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings`); err != nil {
		return fmt.Errorf("clear embeddings: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_meta (id, model_id, catalog_hash, dimensions) VALUES (1, ?, ?, ?)`,
		snap.ModelID, snap.CatalogHash, snap.Dimensions,
	); err != nil {
		return fmt.Errorf("write cache meta: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO embeddings (slug, vector) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, slug := range snap.Slugs() {
		vec, _ := snap.Get(slug)
		if _, err := stmt.ExecContext(ctx, slug, encodeVector(vec)); err != nil {
			return fmt.Errorf("insert embedding %s: %w", slug, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
