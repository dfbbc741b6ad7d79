package graphquery

import (
	"sort"

	"nexusmind-core/internal/domain/shared"
	"nexusmind-core/internal/graph"
)

// RankedChunk is one chunk's aggregated PPR mass.
type RankedChunk struct {
	ChunkID shared.NodeID
	Score   float64
}

// RankChunksByPPR scores each chunk mentioned by a scored entity as the
// sum (not average) of PPR(e) over every entity e that mentions it —
// mass aggregation, so higher-degree chunks accrue more signal by design
// (spec §4.3.c). Results sort descending by score, ties broken by chunk
// id ascending for determinism.
func RankChunksByPPR(snap *graph.Snapshot, pprScores map[shared.NodeID]float64) []RankedChunk {
	entityIDs := make([]shared.NodeID, 0, len(pprScores))
	for id := range pprScores {
		entityIDs = append(entityIDs, id)
	}
	sort.Slice(entityIDs, func(i, j int) bool { return entityIDs[i] < entityIDs[j] })

	totals := make(map[shared.NodeID]float64)
	for _, eid := range entityIDs {
		score := pprScores[eid]
		if score <= 0 {
			continue
		}
		for _, cid := range snap.MentionedChunks(eid) {
			totals[cid] += score
		}
	}

	ranked := make([]RankedChunk, 0, len(totals))
	for cid, score := range totals {
		ranked = append(ranked, RankedChunk{ChunkID: cid, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ChunkID < ranked[j].ChunkID
	})
	return ranked
}
