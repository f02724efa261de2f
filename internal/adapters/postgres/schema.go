package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently on startup. The embedding column is
// dimensionless so the configured embedding model decides the width; the
// ivfflat index requires a fixed dimension and is created operationally
// once the model is known.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,

	`CREATE TABLE IF NOT EXISTS cogito_memory (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL,
		utterance       TEXT NOT NULL,
		reply           TEXT NOT NULL DEFAULT '',
		tool_name       TEXT NOT NULL DEFAULT '',
		success         BOOLEAN NOT NULL DEFAULT FALSE,
		embeddings      vector,
		embeddings_info JSONB,
		cluster_id      TEXT NOT NULL DEFAULT '',
		importance      REAL NOT NULL DEFAULT 0.2,
		pinned          BOOLEAN NOT NULL DEFAULT FALSE,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS cogito_memory_user_created
		ON cogito_memory (user_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS cogito_turns (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		utterance    TEXT NOT NULL,
		reply        TEXT NOT NULL DEFAULT '',
		success      BOOLEAN NOT NULL DEFAULT FALSE,
		plan         JSONB,
		wall         JSONB,
		result       JSONB,
		verdict      JSONB,
		created_at   TIMESTAMPTZ NOT NULL,
		committed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS cogito_turns_user_created
		ON cogito_turns (user_id, created_at DESC)`,
}

// EnsureSchema creates the tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
