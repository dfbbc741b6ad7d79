// Package tiers defines the external interfaces the Nexus Processor fans
// out to: entity extraction, embedding, vector search, the HippoRAG graph
// tier, the probabilistic tier, and durable graph storage. Every tier is
// consumed through a small, context-first interface so the pipeline never
// depends on a concrete backend (spec §6).
package tiers

import (
	"context"

	"nexusmind-core/internal/domain/chunk"
	"nexusmind-core/internal/domain/entity"
	"nexusmind-core/internal/domain/shared"
)

// ExtractedEntity is one surface form an EntityExtractor found in a span
// of text, along with its position for provenance.
type ExtractedEntity struct {
	Surface string
	Kind    entity.Type
	Start   int
	End     int
}

// EntityExtractor pulls named entities out of raw text ahead of indexing
// or query-time entity linking.
type EntityExtractor interface {
	Extract(ctx context.Context, text string) ([]ExtractedEntity, error)
}

// Embedder turns text into a fixed-dimension vector embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) (shared.Embedding, error)
	Dim() int
}

// VectorMatch is one nearest-neighbor hit from a VectorIndex search.
type VectorMatch struct {
	ChunkID shared.NodeID
	Score   float64
}

// VectorIndex is the C5 tier: nearest-neighbor search over chunk
// embeddings. Implementations own their own persistence (Redis, pgvector,
// or any other ANN backend) and are expected to be safe for concurrent
// use.
type VectorIndex interface {
	Upsert(ctx context.Context, c *chunk.Chunk) error
	Delete(ctx context.Context, id shared.NodeID) error
	Search(ctx context.Context, query shared.Embedding, topK int) ([]VectorMatch, error)
}

// ProbabilisticMatch is one candidate returned by the probabilistic tier,
// with the confidence the tier itself assigned.
type ProbabilisticMatch struct {
	ChunkID    shared.NodeID
	Confidence float64
}

// ProbabilisticEngine is the C6 tier: a best-effort, latency-bounded
// supplementary recall source (e.g. a learned ranker or fuzzy matcher).
// Callers apply spec §6's default 1s deadline; a Timeout from this
// interface degrades the tier to an empty result rather than failing the
// whole query (spec §7).
type ProbabilisticEngine interface {
	Query(ctx context.Context, text string, topK int) ([]ProbabilisticMatch, error)
}

// GraphStore persists the knowledge graph's entities, chunks, and edges
// across process restarts. It is the durability boundary beneath
// internal/graph's in-memory KnowledgeGraph.
type GraphStore interface {
	SaveEntity(ctx context.Context, e *entity.Entity) error
	SaveChunk(ctx context.Context, c *chunk.Chunk) error
	SaveEdge(ctx context.Context, src, dst shared.NodeID, edgeType string, weight, confidence float64) error
	LoadAll(ctx context.Context) (entities []*entity.Entity, chunks []*chunk.Chunk, edges []EdgeRecord, err error)
}

// EdgeRecord is one persisted edge returned by GraphStore.LoadAll.
type EdgeRecord struct {
	Src        shared.NodeID
	Dst        shared.NodeID
	Type       string
	Weight     float64
	Confidence float64
}
