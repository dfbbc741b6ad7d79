package graph

import (
	"sync"
	"sync/atomic"

	"nexusmind-core/internal/apperrors"
	"nexusmind-core/internal/domain/chunk"
	"nexusmind-core/internal/domain/entity"
	"nexusmind-core/internal/domain/shared"
)

// state is the immutable value behind each snapshot. A write builds a new
// state from the previous one (copying only the top-level maps, not
// every edge slice) and swaps it in atomically, so readers holding an
// older *state never observe a torn graph and never block the writer —
// the copy-on-write handoff spec §5 asks for, in place of the teacher's
// single in-process graph library with reference-semantics nodes.
type state struct {
	epoch uint64
	nodes map[shared.NodeID]Node
	// out[src][type] holds outgoing edges of that type from src.
	out map[shared.NodeID]map[EdgeType][]Edge
	// mentionedBy[chunkID] holds entity ids with a `mentions` edge to chunkID.
	mentionedBy map[shared.NodeID][]shared.NodeID
}

func newState() *state {
	return &state{
		nodes:       make(map[shared.NodeID]Node),
		out:         make(map[shared.NodeID]map[EdgeType][]Edge),
		mentionedBy: make(map[shared.NodeID][]shared.NodeID),
	}
}

func (s *state) clone() *state {
	ns := &state{
		epoch:       s.epoch,
		nodes:       make(map[shared.NodeID]Node, len(s.nodes)),
		out:         make(map[shared.NodeID]map[EdgeType][]Edge, len(s.out)),
		mentionedBy: make(map[shared.NodeID][]shared.NodeID, len(s.mentionedBy)),
	}
	for k, v := range s.nodes {
		ns.nodes[k] = v
	}
	for k, v := range s.out {
		inner := make(map[EdgeType][]Edge, len(v))
		for t, edges := range v {
			inner[t] = edges
		}
		ns.out[k] = inner
	}
	for k, v := range s.mentionedBy {
		ns.mentionedBy[k] = v
	}
	return ns
}

// KnowledgeGraph is C2. Single writer, many readers, per spec §5: writes
// serialize on mu; reads go through Snapshot and never take mu.
type KnowledgeGraph struct {
	mu  sync.Mutex
	cur atomic.Pointer[state]
}

// New constructs an empty knowledge graph.
func New() *KnowledgeGraph {
	g := &KnowledgeGraph{}
	g.cur.Store(newState())
	return g
}

// AddEntity inserts an entity node. Returns true if the node
// was newly created, false if it already existed (and was left alone —
// entity frequency bookkeeping lives on the caller's *entity.Entity).
func (g *KnowledgeGraph) AddEntity(e *entity.Entity) (bool, error) {
	if e == nil {
		return false, apperrors.New(apperrors.InvalidInput, "GRAPH_NIL_ENTITY", "entity must not be nil").Build()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.cur.Load()
	if existing, ok := s.nodes[e.ID]; ok && existing.Kind == KindEntity {
		return false, nil
	}
	if err := g.checkNamespaceCollision(s, e.ID, KindEntity); err != nil {
		return false, err
	}
	ns := s.clone()
	ns.nodes[e.ID] = entityNode(e)
	ns.epoch++
	g.cur.Store(ns)
	return true, nil
}

// AddChunkNode inserts a chunk node. Returns true if the node was newly
// created, false if a chunk node with that id already existed (and was
// left alone). Chunk-kind nodes carry no
// outgoing edges of their own (spec §3); they only receive `mentions`
// edges from entities.
func (g *KnowledgeGraph) AddChunkNode(c *chunk.Chunk) (bool, error) {
	if c == nil {
		return false, apperrors.New(apperrors.InvalidInput, "GRAPH_NIL_CHUNK", "chunk must not be nil").Build()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.cur.Load()
	if existing, ok := s.nodes[c.ID]; ok && existing.Kind == KindChunk {
		return false, nil
	}
	if err := g.checkNamespaceCollision(s, c.ID, KindChunk); err != nil {
		return false, err
	}
	ns := s.clone()
	ns.nodes[c.ID] = chunkNode(c)
	ns.epoch++
	g.cur.Store(ns)
	return true, nil
}

// checkNamespaceCollision enforces that chunk ids and entity ids share one
// namespace and must never collide (spec §3 invariant). Must be called
// with mu held.
func (g *KnowledgeGraph) checkNamespaceCollision(s *state, id shared.NodeID, kind NodeKind) error {
	if existing, ok := s.nodes[id]; ok && existing.Kind != kind {
		return apperrors.New(apperrors.InvalidInput, "GRAPH_ID_COLLISION",
			"node id already used by a node of a different kind").
			WithDetail("id", string(id)).Build()
	}
	return nil
}

// AddEdge inserts or, if (src, dst, type) already exists, updates the
// weight/confidence of a directed typed edge (idempotent on the key per
// spec §4.2). Unknown edge types are rejected loudly with
// InvalidEdgeType — the spec's mandated fix for the teacher's silent
// drop-and-log bug (spec §9).
func (g *KnowledgeGraph) AddEdge(src, dst shared.NodeID, t EdgeType, weight, confidence float64) error {
	if !validEdgeType(t) {
		return apperrors.New(apperrors.InvalidEdgeType, "GRAPH_UNKNOWN_EDGE_TYPE",
			"unknown edge type").WithDetail("type", string(t)).Build()
	}
	if weight < 0 || weight > 1 || confidence < 0 || confidence > 1 {
		return apperrors.New(apperrors.InvalidInput, "GRAPH_EDGE_WEIGHT_RANGE",
			"weight and confidence must be in [0,1]").Build()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.cur.Load()
	if _, ok := s.nodes[src]; !ok {
		return apperrors.New(apperrors.InvalidInput, "GRAPH_SRC_NOT_FOUND", "source node does not exist").
			WithDetail("src", string(src)).Build()
	}
	if _, ok := s.nodes[dst]; !ok {
		return apperrors.New(apperrors.InvalidInput, "GRAPH_DST_NOT_FOUND", "destination node does not exist").
			WithDetail("dst", string(dst)).Build()
	}

	ns := s.clone()
	bucket := ns.out[src]
	if bucket == nil {
		bucket = make(map[EdgeType][]Edge)
	} else {
		inner := make(map[EdgeType][]Edge, len(bucket))
		for k, v := range bucket {
			inner[k] = v
		}
		bucket = inner
	}
	edges := bucket[t]
	updated := false
	for i, e := range edges {
		if e.Dst == dst {
			edges = append([]Edge{}, edges...)
			edges[i] = Edge{Src: src, Dst: dst, Type: t, Weight: weight, Confidence: confidence}
			updated = true
			break
		}
	}
	if !updated {
		edges = append(append([]Edge{}, edges...), Edge{Src: src, Dst: dst, Type: t, Weight: weight, Confidence: confidence})
	}
	bucket[t] = edges
	ns.out[src] = bucket

	if t == Mentions {
		if !updated {
			ns.mentionedBy[dst] = append(append([]shared.NodeID{}, ns.mentionedBy[dst]...), src)
		}
	}
	ns.epoch++
	g.cur.Store(ns)
	return nil
}

// RemoveNode removes a node and every edge incident to it — incoming or
// outgoing — in one atomic step, satisfying the no-dangling-edges
// invariant (spec §4.2).
func (g *KnowledgeGraph) RemoveNode(id shared.NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.cur.Load()
	if _, ok := s.nodes[id]; !ok {
		return apperrors.New(apperrors.NotFound, "GRAPH_NODE_NOT_FOUND", "node not found").
			WithDetail("id", string(id)).Build()
	}

	ns := s.clone()
	delete(ns.nodes, id)
	delete(ns.out, id)
	delete(ns.mentionedBy, id)
	for src, byType := range ns.out {
		changed := false
		inner := make(map[EdgeType][]Edge, len(byType))
		for t, edges := range byType {
			filtered := edges
			for i, e := range edges {
				if e.Dst == id {
					filtered = append(append([]Edge{}, edges[:i]...), edges[i+1:]...)
					changed = true
					break
				}
			}
			inner[t] = filtered
		}
		if changed {
			ns.out[src] = inner
		}
	}
	for c, mentioners := range ns.mentionedBy {
		for i, m := range mentioners {
			if m == id {
				ns.mentionedBy[c] = append(append([]shared.NodeID{}, mentioners[:i]...), mentioners[i+1:]...)
				break
			}
		}
	}
	ns.epoch++
	g.cur.Store(ns)
	return nil
}

// MergeEntities redirects every edge of dup to canonical, then removes
// dup (spec §3's "entity consolidation" lifecycle note; SPEC_FULL.md
// §12.1). Idempotent: merging the same pair twice after the first is a
// no-op because dup no longer exists.
func (g *KnowledgeGraph) MergeEntities(dup, canonical shared.NodeID) error {
	if dup == canonical {
		return apperrors.New(apperrors.InvalidInput, "GRAPH_MERGE_SELF", "cannot merge an entity into itself").Build()
	}
	g.mu.Lock()
	s := g.cur.Load()
	dupNode, dupOK := s.nodes[dup]
	canonNode, canonOK := s.nodes[canonical]
	if !dupOK || !canonOK || dupNode.Kind != KindEntity || canonNode.Kind != KindEntity {
		g.mu.Unlock()
		if !dupOK {
			// Already merged (or never existed): idempotent no-op.
			return nil
		}
		return apperrors.New(apperrors.InvalidInput, "GRAPH_MERGE_NOT_ENTITY", "merge requires two entity nodes").Build()
	}
	outgoing := s.out[dup]
	g.mu.Unlock()

	for t, edges := range outgoing {
		for _, e := range edges {
			dst := e.Dst
			if dst == canonical {
				continue
			}
			if err := g.AddEdge(canonical, dst, t, e.Weight, e.Confidence); err != nil {
				return err
			}
		}
	}

	g.mu.Lock()
	s = g.cur.Load()
	for src, byType := range s.out {
		if src == dup {
			continue
		}
		for t, edges := range byType {
			for _, e := range edges {
				if e.Dst == dup {
					g.mu.Unlock()
					if err := g.AddEdge(src, canonical, t, e.Weight, e.Confidence); err != nil {
						return err
					}
					g.mu.Lock()
				}
			}
		}
	}
	g.mu.Unlock()

	return g.RemoveNode(dup)
}

// Neighbors returns the outgoing (node, edge) pairs from node, optionally
// filtered to one edge type.
func (g *KnowledgeGraph) Neighbors(id shared.NodeID, typeFilter *EdgeType) []Edge {
	s := g.cur.Load()
	byType, ok := s.out[id]
	if !ok {
		return nil
	}
	if typeFilter != nil {
		return append([]Edge{}, byType[*typeFilter]...)
	}
	var all []Edge
	for _, edges := range byType {
		all = append(all, edges...)
	}
	return all
}

// Node looks up a node by id.
func (g *KnowledgeGraph) Node(id shared.NodeID) (Node, bool) {
	s := g.cur.Load()
	n, ok := s.nodes[id]
	return n, ok
}

// Mentioners returns the entity ids with a `mentions` edge into chunkID.
func (g *KnowledgeGraph) Mentioners(chunkID shared.NodeID) []shared.NodeID {
	s := g.cur.Load()
	return append([]shared.NodeID{}, s.mentionedBy[chunkID]...)
}

// Chunks returns every chunk-kind node's *chunk.Chunk, for the lifecycle
// sweep (spec §4.1 "on periodic sweep") to re-classify.
func (g *KnowledgeGraph) Chunks() []*chunk.Chunk {
	s := g.cur.Load()
	out := make([]*chunk.Chunk, 0, len(s.nodes))
	for _, n := range s.nodes {
		if n.Kind == KindChunk {
			out = append(out, n.Chunk)
		}
	}
	return out
}

// TransitionChunk moves a chunk node to a new lifecycle stage, rejecting
// transitions that violate the monotone invariant (spec §3). Like
// AddEntity, it clones the node map and swaps a new *chunk.Chunk in
// rather than mutating the existing one in place, so a Snapshot taken
// mid-query never observes a chunk's stage change underneath it (spec
// §5).
func (g *KnowledgeGraph) TransitionChunk(id shared.NodeID, to chunk.Stage) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.cur.Load()
	n, ok := s.nodes[id]
	if !ok || n.Kind != KindChunk {
		return apperrors.New(apperrors.NotFound, "GRAPH_CHUNK_NOT_FOUND", "chunk node not found").
			WithDetail("id", string(id)).Build()
	}
	updated := *n.Chunk
	if err := updated.TransitionTo(to); err != nil {
		return err
	}
	ns := s.clone()
	ns.nodes[id] = chunkNode(&updated)
	ns.epoch++
	g.cur.Store(ns)
	return nil
}

// Snapshot returns a read-only handle over the graph's current state,
// used by C3 to run PPR without holding any lock for the duration of the
// algorithm (spec §5).
func (g *KnowledgeGraph) Snapshot() *Snapshot {
	return &Snapshot{s: g.cur.Load()}
}
