package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
	id BIGSERIAL PRIMARY KEY,
	identity TEXT NOT NULL,
	identity_key TEXT NOT NULL UNIQUE,
	secret_hash TEXT NOT NULL,
	role TEXT NOT NULL,
	office TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE TABLE IF NOT EXISTS ledger_records (
	id BIGSERIAL PRIMARY KEY,
	kind TEXT NOT NULL,
	counterparty TEXT NOT NULL DEFAULT '',
	amount NUMERIC(18,2) NOT NULL CHECK (amount >= 0),
	currency TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pendiente',
	office TEXT NOT NULL,
	actor TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_records_office_created ON ledger_records (office, created_at DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS idempotency_keys (
	key TEXT NOT NULL,
	scope TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (key, scope)
)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
	id BIGSERIAL PRIMARY KEY,
	actor TEXT NOT NULL DEFAULT '',
	office TEXT NOT NULL,
	action TEXT NOT NULL,
	entity TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	meta JSONB,
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE INDEX IF NOT EXISTS audit_logs_office_time_idx ON audit_logs (office, occurred_at DESC, id DESC)`,
}

// Migrate creates the tables used by the ledger when they are missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("platform/db: migrate step %d: %w", i, err)
		}
	}
	return nil
}
