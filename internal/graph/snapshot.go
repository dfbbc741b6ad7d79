package graph

import (
	"sort"

	"nexusmind-core/internal/domain/entity"
	"nexusmind-core/internal/domain/shared"
)

// Snapshot is a read-only handle over one immutable graph state. C3
// (the graph query engine) takes a Snapshot once per query and runs its
// entire traversal/PPR pass against it, so a concurrent write never
// perturbs an in-flight query (spec §5).
type Snapshot struct {
	s *state
}

// Epoch identifies which graph version this snapshot pins, recorded in
// the query trace so replay (§6) can detect a changed store.
func (h *Snapshot) Epoch() uint64 { return h.s.epoch }

// Has reports whether id exists in this snapshot.
func (h *Snapshot) Has(id shared.NodeID) bool {
	_, ok := h.s.nodes[id]
	return ok
}

// Kind returns the node's kind, or "" if absent.
func (h *Snapshot) Kind(id shared.NodeID) NodeKind {
	n, ok := h.s.nodes[id]
	if !ok {
		return ""
	}
	return n.Kind
}

// EntityNode returns the entity at id, if any.
func (h *Snapshot) EntityNode(id shared.NodeID) (*entity.Entity, bool) {
	n, ok := h.s.nodes[id]
	if !ok || n.Kind != KindEntity {
		return nil, false
	}
	return n.Entity, true
}

// EntityNodeIDs returns every entity node id in a stable, deterministic
// order (sorted by id), satisfying the fixed-iteration-order requirement
// PPR depends on for reproducible results (spec §5).
func (h *Snapshot) EntityNodeIDs() []shared.NodeID {
	ids := make([]shared.NodeID, 0, len(h.s.nodes))
	for id, n := range h.s.nodes {
		if n.Kind == KindEntity {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// OutgoingEntityEdges returns id's outgoing entity-to-entity edges
// (related_to, similar_to, references), sorted by destination id for
// determinism, optionally filtered to one type.
func (h *Snapshot) OutgoingEntityEdges(id shared.NodeID, typeFilter *EdgeType) []Edge {
	byType, ok := h.s.out[id]
	if !ok {
		return nil
	}
	var edges []Edge
	if typeFilter != nil {
		edges = append(edges, byType[*typeFilter]...)
	} else {
		for t, es := range byType {
			if t == Mentions {
				continue
			}
			edges = append(edges, es...)
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].Dst < edges[j].Dst })
	return edges
}

// MentionedChunks returns the chunk ids id (an entity) has a `mentions`
// edge to, sorted for determinism.
func (h *Snapshot) MentionedChunks(id shared.NodeID) []shared.NodeID {
	byType, ok := h.s.out[id]
	if !ok {
		return nil
	}
	ids := make([]shared.NodeID, 0, len(byType[Mentions]))
	for _, e := range byType[Mentions] {
		ids = append(ids, e.Dst)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Mentioners returns the entity ids with a `mentions` edge into chunkID,
// sorted for determinism.
func (h *Snapshot) Mentioners(chunkID shared.NodeID) []shared.NodeID {
	ids := append([]shared.NodeID{}, h.s.mentionedBy[chunkID]...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
