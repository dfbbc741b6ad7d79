package graphquery

import (
	"sort"

	"nexusmind-core/internal/domain/shared"
	"nexusmind-core/internal/graph"
)

// ExpandSynonyms walks `similar_to` edges up to one hop from each entity
// in ids, capped at maxExpand reached entities per source, and returns
// the union of ids and everything reached — the "USA <-> United States"
// recall lever (spec §4.3.d). The result stays a plain set fed back into
// PPR's uniform personalization, so expansion does not bias the query
// toward synonyms over the original terms.
func ExpandSynonyms(snap *graph.Snapshot, ids []shared.NodeID, maxExpand int) []shared.NodeID {
	similarTo := graph.SimilarTo
	seen := make(map[shared.NodeID]bool, len(ids))
	ordered := make([]shared.NodeID, 0, len(ids))
	add := func(id shared.NodeID) {
		if !seen[id] {
			seen[id] = true
			ordered = append(ordered, id)
		}
	}

	sorted := append([]shared.NodeID{}, ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, id := range sorted {
		add(id)
	}

	for _, id := range sorted {
		edges := snap.OutgoingEntityEdges(id, &similarTo)
		if maxExpand >= 0 && len(edges) > maxExpand {
			edges = edges[:maxExpand]
		}
		for _, e := range edges {
			add(e.Dst)
		}
	}
	return ordered
}
