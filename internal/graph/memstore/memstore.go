// Package memstore is a minimal in-memory store for the knowledge graph's
// node and edge tables: Save records entities, chunks and edges, and Load
// rebuilds a *graph.KnowledgeGraph from them. Save/Load is this package's
// own API; Store does not implement the tiers.GraphStore interface
// (SaveEntity/SaveChunk/SaveEdge/LoadAll). It exists so the knowledge graph is usable and testable
// standalone, the way the teacher ships an in-memory operation store
// (infrastructure/persistence/memory) alongside its DynamoDB repository.
package memstore

import (
	"sync"

	"nexusmind-core/internal/domain/chunk"
	"nexusmind-core/internal/domain/entity"
	"nexusmind-core/internal/domain/shared"
	"nexusmind-core/internal/graph"
)

// EdgeRecord is the on-the-wire shape persisted for one edge.
type EdgeRecord struct {
	Src, Dst   shared.NodeID
	Type       graph.EdgeType
	Weight     float64
	Confidence float64
}

// Store holds a serialized snapshot of entities, chunks, and edges. It is
// safe for concurrent Save/Load from multiple goroutines, though the
// core itself only ever has one writer per spec §5.
type Store struct {
	mu       sync.RWMutex
	entities map[shared.NodeID]*entity.Entity
	chunks   map[shared.NodeID]*chunk.Chunk
	edges    []EdgeRecord
}

// New returns an empty store.
func New() *Store {
	return &Store{
		entities: make(map[shared.NodeID]*entity.Entity),
		chunks:   make(map[shared.NodeID]*chunk.Chunk),
	}
}

// Save upserts the given entities and chunks by id and replaces the
// stored edge table with edges. It stores exactly what the caller passes
// in and does not read a live graph.
func (s *Store) Save(entities []*entity.Entity, chunks []*chunk.Chunk, edges []EdgeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entities {
		s.entities[e.ID] = e
	}
	for _, c := range chunks {
		s.chunks[c.ID] = c
	}
	s.edges = append([]EdgeRecord{}, edges...)
}

// Load rebuilds a fresh *graph.KnowledgeGraph from the persisted tables.
func (s *Store) Load() (*graph.KnowledgeGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g := graph.New()
	for _, e := range s.entities {
		if _, err := g.AddEntity(e); err != nil {
			return nil, err
		}
	}
	for _, c := range s.chunks {
		if _, err := g.AddChunkNode(c); err != nil {
			return nil, err
		}
	}
	for _, rec := range s.edges {
		if err := g.AddEdge(rec.Src, rec.Dst, rec.Type, rec.Weight, rec.Confidence); err != nil {
			return nil, err
		}
	}
	return g, nil
}
