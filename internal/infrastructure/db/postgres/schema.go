package postgres

import (
	"context"
	"database/sql"
)

// schemaStatements is the idempotent DDL for the world store. The service
// owns its schema and applies it at boot; every statement tolerates reruns.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS locations (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  terrain TEXT NOT NULL,
  tags TEXT[] NOT NULL DEFAULT '{}',
  pending JSONB NOT NULL DEFAULT '{}',
  version INT NOT NULL DEFAULT 1,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,

	// to_location_id is deliberately not a foreign key: an exit may point at
	// a stub that lands with a later batch, and that dangling window is a
	// designed state, not corruption.
	`CREATE TABLE IF NOT EXISTS location_exits (
  seq BIGSERIAL PRIMARY KEY,
  location_id TEXT NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
  direction TEXT NOT NULL,
  to_location_id TEXT NOT NULL,
  travel_duration_ms BIGINT NOT NULL DEFAULT 0,
  UNIQUE (location_id, direction)
)`,

	`CREATE TABLE IF NOT EXISTS description_layers (
  id TEXT PRIMARY KEY,
  location_id TEXT NOT NULL,
  layer_type TEXT NOT NULL,
  content TEXT NOT NULL,
  priority INT NOT NULL DEFAULT 0,
  authored_at TIMESTAMPTZ NOT NULL,
  attributes JSONB NOT NULL DEFAULT '{}'
)`,

	`CREATE INDEX IF NOT EXISTS idx_description_layers_active
  ON description_layers (location_id, layer_type, priority DESC, authored_at DESC)`,

	`CREATE TABLE IF NOT EXISTS realms (
  key TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  realm_type TEXT NOT NULL,
  scope TEXT NOT NULL DEFAULT ''
)`,

	`CREATE TABLE IF NOT EXISTS processed_events (
  idempotency_key TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  processed_at TIMESTAMPTZ NOT NULL
)`,

	`CREATE TABLE IF NOT EXISTS dead_letters (
  id TEXT PRIMARY KEY,
  body BYTEA NOT NULL,
  event_id TEXT NOT NULL DEFAULT '',
  event_type TEXT NOT NULL DEFAULT '',
  error_code TEXT NOT NULL,
  failure_reason TEXT NOT NULL,
  correlation_id TEXT NOT NULL DEFAULT '',
  retry_count INT NOT NULL DEFAULT 0,
  first_attempt_at TIMESTAMPTZ NOT NULL,
  dead_lettered_at TIMESTAMPTZ NOT NULL
)`,

	`CREATE INDEX IF NOT EXISTS idx_dead_letters_time
  ON dead_letters (dead_lettered_at, id)`,
}

// EnsureSchema creates missing tables and indexes. Safe to run on every
// boot.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
