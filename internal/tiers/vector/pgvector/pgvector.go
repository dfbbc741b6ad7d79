// Package pgvector is a VectorIndex backed by Postgres + the pgvector
// extension, using pgxpool for connection pooling in the teacher's
// direct-SQL style (no ORM) and the pgvector-go client library to encode
// embeddings as the `vector` column type.
package pgvector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"nexusmind-core/internal/apperrors"
	"nexusmind-core/internal/domain/chunk"
	"nexusmind-core/internal/domain/shared"
	"nexusmind-core/internal/tiers"
)

// Index is a Postgres/pgvector-backed VectorIndex. Callers are
// responsible for creating the backing table and its ivfflat/hnsw index
// ahead of time; Index only issues DML.
type Index struct {
	pool  *pgxpool.Pool
	table string
}

// New opens a pooled connection to connString and wraps table, which must
// have columns (id text primary key, embedding vector).
func New(ctx context.Context, connString, table string) (*Index, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Index{pool: pool, table: table}, nil
}

// Upsert writes or replaces c's embedding row.
func (idx *Index) Upsert(ctx context.Context, c *chunk.Chunk) error {
	sql := fmt.Sprintf(`
		INSERT INTO %s (id, embedding) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding`, idx.table)
	vec := toPgvector(c.Embedding)
	if _, err := idx.pool.Exec(ctx, sql, string(c.ID), vec); err != nil {
		return apperrors.New(apperrors.TierUnavailable, "VECTOR_UPSERT_FAILED", "pgvector upsert failed").
			WithResource("vector").WithCause(err).Build()
	}
	return nil
}

// Delete removes a chunk's row.
func (idx *Index) Delete(ctx context.Context, id shared.NodeID) error {
	sql := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, idx.table)
	if _, err := idx.pool.Exec(ctx, sql, string(id)); err != nil {
		return apperrors.New(apperrors.TierUnavailable, "VECTOR_DELETE_FAILED", "pgvector delete failed").
			WithResource("vector").WithCause(err).Build()
	}
	return nil
}

// Search runs an ORDER BY embedding <=> $1 LIMIT $2 nearest-neighbor
// query and converts pgvector's cosine distance back to a similarity
// score in [-1, 1] (1 - distance) so callers compare scores the same way
// regardless of which VectorIndex they are talking to.
func (idx *Index) Search(ctx context.Context, query shared.Embedding, topK int) ([]tiers.VectorMatch, error) {
	sql := fmt.Sprintf(`
		SELECT id, embedding <=> $1 AS distance
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`, idx.table)
	rows, err := idx.pool.Query(ctx, sql, toPgvector(query), topK)
	if err != nil {
		return nil, apperrors.New(apperrors.TierUnavailable, "VECTOR_SEARCH_FAILED", "pgvector search failed").
			WithResource("vector").WithCause(err).Build()
	}
	defer rows.Close()

	var matches []tiers.VectorMatch
	for rows.Next() {
		var id string
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, apperrors.New(apperrors.TierUnavailable, "VECTOR_SEARCH_FAILED", "pgvector row scan failed").
				WithResource("vector").WithCause(err).Build()
		}
		matches = append(matches, tiers.VectorMatch{ChunkID: shared.NodeID(id), Score: 1 - distance})
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.New(apperrors.TierUnavailable, "VECTOR_SEARCH_FAILED", "pgvector row iteration failed").
			WithResource("vector").WithCause(err).Build()
	}
	return matches, nil
}

// Close releases the underlying connection pool.
func (idx *Index) Close() { idx.pool.Close() }

func toPgvector(v shared.Embedding) pgv.Vector {
	return pgv.NewVector([]float32(v))
}
