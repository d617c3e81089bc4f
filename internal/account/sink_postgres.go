package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink keeps the snapshot in a row shared by every replica.
type PostgresSink struct {
	pool  *pgxpool.Pool
	key   string
	owned bool
}

// OpenPostgresSink connects to databaseURL and ensures the table exists.
func OpenPostgresSink(ctx context.Context, databaseURL, key string) (*PostgresSink, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse store DSN: %w", err)
	}
	config.MaxConns = 4
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s, err := NewPostgresSink(ctx, pool, key)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewPostgresSink uses an existing pool. Close leaves the pool open.
func NewPostgresSink(ctx context.Context, pool *pgxpool.Pool, key string) (*PostgresSink, error) {
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS snapshots (
		key        TEXT PRIMARY KEY,
		data       BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return nil, fmt.Errorf("account: init postgres schema: %w", err)
	}
	return &PostgresSink{pool: pool, key: key}, nil
}

func (p *PostgresSink) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT data FROM snapshots WHERE key = $1`, p.key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("account: postgres load: %w", err)
	}
	return data, nil
}

func (p *PostgresSink) Save(ctx context.Context, data []byte) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO snapshots (key, data, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`, p.key, data)
	if err != nil {
		return fmt.Errorf("account: postgres save: %w", err)
	}
	return nil
}

func (p *PostgresSink) Close() error {
	if p.owned {
		p.pool.Close()
	}
	return nil
}
