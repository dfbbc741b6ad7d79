// Package redisvector is a VectorIndex (tiers.VectorIndex) backed by
// Redis: each chunk's id and embedding are stored as a JSON blob
// under a chunk-id key, and Search scores candidates client-side with
// cosine similarity. This trades the throughput of a native ANN index
// (RediSearch's vector field type) for a small, dependency-light
// reference adapter in the teacher's direct-go-redis style (spec §6,
// SPEC_FULL.md §11).
package redisvector

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"nexusmind-core/internal/apperrors"
	"nexusmind-core/internal/domain/chunk"
	"nexusmind-core/internal/domain/shared"
	"nexusmind-core/internal/tiers"
)

const keyPrefix = "nexus:chunk:"

// Index is a Redis-backed VectorIndex.
type Index struct {
	client *redis.Client
}

// New connects to the Redis instance described by url (e.g.
// "redis://localhost:6379/0") and pings it to fail fast on a bad
// connection string.
func New(url string) (*Index, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Index{client: client}, nil
}

type storedChunk struct {
	ID        string            `json:"id"`
	Embedding shared.Embedding  `json:"embedding"`
}

// Upsert writes c's embedding and id under its chunk key.
func (idx *Index) Upsert(ctx context.Context, c *chunk.Chunk) error {
	data, err := json.Marshal(storedChunk{ID: string(c.ID), Embedding: c.Embedding})
	if err != nil {
		return fmt.Errorf("marshal chunk: %w", err)
	}
	if err := idx.client.Set(ctx, keyPrefix+string(c.ID), data, 0).Err(); err != nil {
		return apperrors.New(apperrors.TierUnavailable, "VECTOR_UPSERT_FAILED", "redis upsert failed").
			WithResource("vector").WithCause(err).Build()
	}
	return nil
}

// Delete removes a chunk's stored embedding.
func (idx *Index) Delete(ctx context.Context, id shared.NodeID) error {
	if err := idx.client.Del(ctx, keyPrefix+string(id)).Err(); err != nil {
		return apperrors.New(apperrors.TierUnavailable, "VECTOR_DELETE_FAILED", "redis delete failed").
			WithResource("vector").WithCause(err).Build()
	}
	return nil
}

// Search scans every stored chunk and returns the topK by cosine
// similarity to query, descending. This is O(N) per query: acceptable
// for the reference adapter's target scale, not a substitute for a real
// ANN index at production scale (RediSearch's native vector field type
// is not used).
func (idx *Index) Search(ctx context.Context, query shared.Embedding, topK int) ([]tiers.VectorMatch, error) {
	var cursor uint64
	var matches []tiers.VectorMatch
	for {
		keys, next, err := idx.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, apperrors.New(apperrors.TierUnavailable, "VECTOR_SEARCH_FAILED", "redis scan failed").
				WithResource("vector").WithCause(err).Build()
		}
		if len(keys) > 0 {
			vals, err := idx.client.MGet(ctx, keys...).Result()
			if err != nil {
				return nil, apperrors.New(apperrors.TierUnavailable, "VECTOR_SEARCH_FAILED", "redis mget failed").
					WithResource("vector").WithCause(err).Build()
			}
			for _, v := range vals {
				s, ok := v.(string)
				if !ok {
					continue
				}
				var sc storedChunk
				if err := json.Unmarshal([]byte(s), &sc); err != nil {
					continue
				}
				score := shared.CosineSimilarity(query, sc.Embedding)
				matches = append(matches, tiers.VectorMatch{ChunkID: shared.NodeID(sc.ID), Score: score})
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Close releases the underlying Redis connection.
func (idx *Index) Close() error { return idx.client.Close() }
