// Package store keeps named model snapshots in a sqlite database so a
// model can be saved, listed and loaded back later.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"platesim/internal/persistence/snapshot"
)

var ErrNotFound = errors.New("model not found")

type Store struct {
	db *sqlx.DB
}

// Entry describes one stored model without its blob.
type Entry struct {
	ID        string `db:"id" json:"id"`
	Step      uint64 `db:"step" json:"step"`
	Plates    int    `db:"plates" json:"plates"`
	Fields    int    `db:"fields" json:"fields"`
	Bytes     int64  `db:"bytes" json:"bytes"`
	CreatedAt string `db:"created_at" json:"created_at"`
}

// Size renders Bytes for humans, e.g. "1.2 MB".
func (e Entry) Size() string { return humanize.Bytes(uint64(e.Bytes)) }

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store pragmas: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS models (
		id TEXT PRIMARY KEY,
		step INTEGER NOT NULL,
		plates INTEGER NOT NULL,
		fields INTEGER NOT NULL,
		bytes INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		blob BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_models_created ON models(created_at);
	`)
	return err
}

// Put stores snap under a fresh id. The snapshot header's ModelID is
// rewritten to that id before encoding.
func (s *Store) Put(ctx context.Context, snap snapshot.SnapshotV1) (string, error) {
	id := uuid.NewString()
	snap.Header.ModelID = id
	blob, err := snapshot.Marshal(snap)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO models(id, step, plates, fields, bytes, created_at, blob) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, int64(snap.Header.Step), len(snap.Plates), snap.FieldCount(), len(blob),
		time.Now().UTC().Format(time.RFC3339Nano), blob)
	if err != nil {
		return "", fmt.Errorf("insert model: %w", err)
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, id string) (snapshot.SnapshotV1, error) {
	if _, err := uuid.Parse(id); err != nil {
		return snapshot.SnapshotV1{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	var blob []byte
	err := s.db.GetContext(ctx, &blob, `SELECT blob FROM models WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return snapshot.SnapshotV1{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return snapshot.SnapshotV1{}, err
	}
	return snapshot.Unmarshal(blob)
}

// List returns the newest entries first. limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	var out []Entry
	err := s.db.SelectContext(ctx, &out,
		`SELECT id, step, plates, fields, bytes, created_at FROM models ORDER BY created_at DESC, id LIMIT ?`, limit)
	return out, err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM models WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
