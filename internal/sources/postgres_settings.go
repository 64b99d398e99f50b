package sources

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the Postgres store needs; pgxmock
// implements it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	createSettingsTable = `CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	selectSetting = `SELECT value FROM settings WHERE key = $1`
	upsertSetting = `INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
)

// PostgresSettings stores keys in a settings table.
type PostgresSettings struct {
	db DB
}

// NewPostgresSettings returns a store using db. Call Migrate once before use.
func NewPostgresSettings(db DB) *PostgresSettings {
	return &PostgresSettings{db: db}
}

// Migrate creates the settings table if it does not exist.
func (s *PostgresSettings) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createSettingsTable); err != nil {
		return fmt.Errorf("create settings table: %w", err)
	}
	return nil
}

// Get implements Settings.Get.
func (s *PostgresSettings) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(ctx, selectSetting, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select setting %s: %w", key, err)
	}
	return value, true, nil
}

// Set implements Settings.Set.
func (s *PostgresSettings) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.Exec(ctx, upsertSetting, key, value); err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}
