package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSink keeps the snapshot in a row of a local SQLite database.
type SQLiteSink struct {
	db  *sql.DB
	key string
}

// OpenSQLiteSink opens (or creates) the database at path.
func OpenSQLiteSink(ctx context.Context, path, key string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("account: mkdir %s: %w", filepath.Dir(path), err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("account: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS snapshots (
		key        TEXT PRIMARY KEY,
		data       BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("account: init sqlite schema: %w", err)
	}
	return &SQLiteSink{db: db, key: key}, nil
}

func (s *SQLiteSink) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE key = ?`, s.key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("account: sqlite load: %w", err)
	}
	return data, nil
}

func (s *SQLiteSink) Save(ctx context.Context, data []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO snapshots (key, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		s.key, data, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("account: sqlite save: %w", err)
	}
	return nil
}

func (s *SQLiteSink) Close() error { return s.db.Close() }
