// internal/database/database.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the process-wide Postgres pool. It stays nil when DATABASE_URL is unset.
var DB *pgxpool.Pool

// ConnectDB opens a pool against url, pings it and stores it in DB.
func ConnectDB(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	DB = pool
	return pool, nil
}

// RoomsSchema creates the rooms table used by the Postgres room store.
const RoomsSchema = `
CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	version    INTEGER NOT NULL DEFAULT 0,
	player1    TEXT,
	player2    TEXT,
	turn       INTEGER NOT NULL DEFAULT 1,
	state      JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Migrate applies the schema. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, RoomsSchema); err != nil {
		return fmt.Errorf("migrate rooms: %w", err)
	}
	return nil
}
