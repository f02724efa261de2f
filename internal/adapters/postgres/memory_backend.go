package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/longregen/cogito/internal/domain"
	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/ports"
)

const defaultQueryTimeout = 30 * time.Second

// withTimeout caps queries that arrive without a deadline.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// MemoryBackend stores memory records in Postgres with pgvector
// nearest-neighbor search. It implements ports.MemoryBackend.
type MemoryBackend struct {
	pool *pgxpool.Pool
}

func NewMemoryBackend(pool *pgxpool.Pool) *MemoryBackend {
	return &MemoryBackend{pool: pool}
}

const memoryColumns = `id, user_id, utterance, reply, tool_name, success,
		embeddings, embeddings_info, cluster_id, importance, pinned, created_at`

// Put inserts one record. Records are immutable, so a replayed insert (WAL
// drain after a partial failure) is a no-op rather than an error.
func (b *MemoryBackend) Put(ctx context.Context, rec *models.MemoryRecord) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var info []byte
	if rec.EmbeddingsInfo != nil {
		var err error
		if info, err = json.Marshal(rec.EmbeddingsInfo); err != nil {
			return err
		}
	}

	var embeddings *pgvector.Vector
	if rec.HasEmbeddings() {
		v := pgvector.NewVector(rec.Embeddings)
		embeddings = &v
	}

	query := `
		INSERT INTO cogito_memory (` + memoryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`

	_, err := conn(ctx, b.pool).Exec(ctx, query,
		rec.ID,
		rec.UserID,
		rec.Utterance,
		rec.Reply,
		rec.ToolName,
		rec.Success,
		embeddings,
		info,
		rec.ClusterID,
		rec.Importance,
		rec.Pinned,
		rec.CreatedAt,
	)
	return err
}

func (b *MemoryBackend) GetByID(ctx context.Context, id string) (*models.MemoryRecord, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + memoryColumns + ` FROM cogito_memory WHERE id = $1`
	rec, err := scanMemoryRecord(conn(ctx, b.pool).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewDomainError(domain.ErrMemoryNotFound, id)
	}
	return rec, err
}

// ListByUser returns the user's records newest first. limit <= 0 means all.
func (b *MemoryBackend) ListByUser(ctx context.Context, userID string, limit int) ([]*models.MemoryRecord, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + memoryColumns + `
		FROM cogito_memory
		WHERE user_id = $1
		ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := conn(ctx, b.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.MemoryRecord
	for rows.Next() {
		rec, err := scanMemoryRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// VectorQuery returns the k nearest records by cosine similarity.
func (b *MemoryBackend) VectorQuery(ctx context.Context, userID string, vector []float32, k int) ([]ports.VectorMatch, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if len(vector) == 0 {
		return nil, domain.NewDomainError(domain.ErrInvalidInput, "query vector is empty")
	}
	if k <= 0 {
		k = 10
	}

	query := `
		SELECT id, 1 - (embeddings <=> $2) AS similarity
		FROM cogito_memory
		WHERE user_id = $1 AND embeddings IS NOT NULL
		ORDER BY embeddings <=> $2
		LIMIT $3`

	rows, err := conn(ctx, b.pool).Query(ctx, query, userID, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []ports.VectorMatch
	for rows.Next() {
		var m ports.VectorMatch
		if err := rows.Scan(&m.ID, &m.Similarity); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// DeleteByID removes a record outright. Forget is wholesale, not soft.
func (b *MemoryBackend) DeleteByID(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := conn(ctx, b.pool).Exec(ctx, `DELETE FROM cogito_memory WHERE id = $1`, id)
	return err
}

func scanMemoryRecord(row pgx.Row) (*models.MemoryRecord, error) {
	var rec models.MemoryRecord
	var embeddings *pgvector.Vector
	var info []byte

	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Utterance,
		&rec.Reply,
		&rec.ToolName,
		&rec.Success,
		&embeddings,
		&info,
		&rec.ClusterID,
		&rec.Importance,
		&rec.Pinned,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if embeddings != nil {
		rec.Embeddings = embeddings.Slice()
	}
	if len(info) > 0 {
		var ei models.EmbeddingsInfo
		if err := json.Unmarshal(info, &ei); err != nil {
			return nil, err
		}
		rec.EmbeddingsInfo = &ei
	}
	return &rec, nil
}
