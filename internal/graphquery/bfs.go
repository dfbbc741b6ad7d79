package graphquery

import (
	"sort"

	"nexusmind-core/internal/domain/shared"
	"nexusmind-core/internal/graph"
)

// HopResult records how a BFS reached one entity node: its hop distance,
// one shortest path (the first discovered in BFS order, per the spec's
// deterministic tie-break), and the edges traversed along that path.
type HopResult struct {
	NodeID   shared.NodeID
	Distance int
	Path     []shared.NodeID
	Edges    []graph.Edge
}

// MultiHopSearch breadth-first searches the entity subgraph from start,
// up to maxHops, optionally filtered to one edge type, and returns every
// distinct entity reached (spec §4.3.b). A visited set guarantees
// termination on cyclic graphs in O(V+E); ties among equal-length paths
// keep the first one discovered rather than enumerating all of them.
func MultiHopSearch(snap *graph.Snapshot, start []shared.NodeID, maxHops int, typeFilter *graph.EdgeType) map[shared.NodeID]*HopResult {
	results := make(map[shared.NodeID]*HopResult)
	if maxHops < 0 {
		return results
	}

	sortedStart := append([]shared.NodeID{}, start...)
	sort.Slice(sortedStart, func(i, j int) bool { return sortedStart[i] < sortedStart[j] })

	visited := make(map[shared.NodeID]bool, len(sortedStart))
	type queueItem struct {
		id   shared.NodeID
		hop  int
		path []shared.NodeID
		edges []graph.Edge
	}
	var queue []queueItem
	for _, id := range sortedStart {
		if !snap.Has(id) || snap.Kind(id) != graph.KindEntity {
			continue
		}
		if visited[id] {
			continue
		}
		visited[id] = true
		item := queueItem{id: id, hop: 0, path: []shared.NodeID{id}}
		queue = append(queue, item)
		results[id] = &HopResult{NodeID: id, Distance: 0, Path: item.path}
	}

	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		if cur.hop >= maxHops {
			continue
		}
		for _, e := range snap.OutgoingEntityEdges(cur.id, typeFilter) {
			if visited[e.Dst] {
				continue
			}
			visited[e.Dst] = true
			path := append(append([]shared.NodeID{}, cur.path...), e.Dst)
			edges := append(append([]graph.Edge{}, cur.edges...), e)
			results[e.Dst] = &HopResult{NodeID: e.Dst, Distance: cur.hop + 1, Path: path, Edges: edges}
			queue = append(queue, queueItem{id: e.Dst, hop: cur.hop + 1, path: path, edges: edges})
		}
	}

	return results
}
