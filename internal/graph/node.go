// Package graph implements the Knowledge Graph (C2): a directed graph of
// entity and chunk nodes connected by typed, weighted edges, exposing the
// traversal/neighbor/snapshot handles the Graph Query Engine (C3) needs.
package graph

import (
	"nexusmind-core/internal/domain/chunk"
	"nexusmind-core/internal/domain/entity"
	"nexusmind-core/internal/domain/shared"
)

// NodeKind tags a graph node as carrying either entity or chunk
// attributes. Spec §3 requires a fixed tagged record per kind rather
// than a free-form attribute dictionary, eliminating a class of
// attribute-absence bugs the teacher's duck-typed node attributes had.
type NodeKind string

const (
	KindEntity NodeKind = "entity"
	KindChunk  NodeKind = "chunk"
)

// Node is the tagged union of entity and chunk graph nodes. Exactly one
// of Entity/Chunk is non-nil, selected by Kind.
type Node struct {
	ID     shared.NodeID
	Kind   NodeKind
	Entity *entity.Entity
	Chunk  *chunk.Chunk
}

func entityNode(e *entity.Entity) Node {
	return Node{ID: e.ID, Kind: KindEntity, Entity: e}
}

func chunkNode(c *chunk.Chunk) Node {
	return Node{ID: c.ID, Kind: KindChunk, Chunk: c}
}
