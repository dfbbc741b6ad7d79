// Package nexus implements the Nexus Processor (C8): the five-stage
// fusion pipeline that turns a query into a curated, token-budgeted
// context by coordinating the vector, HippoRAG, and probabilistic tiers
// (spec §4.8).
package nexus

import "nexusmind-core/internal/domain/shared"

// Candidate is one chunk's accumulated signal across tiers, threaded
// through all five stages. A zero score for a tier means that tier did
// not surface the chunk at all, not that it scored it zero (spec §4.8
// Stage 4).
type Candidate struct {
	ChunkID           shared.NodeID
	Text              string
	Embedding         shared.Embedding
	VectorScore       float64
	HippoRAGScore     float64
	ProbabilisticScore float64
	HasVector         bool
	HasHippoRAG       bool
	HasProbabilistic  bool
	FusedScore        float64
}

// bestTierScore is the provisional single-number score used to break
// ties during deduplication (Stage 3), before fusion (Stage 4) has run.
// Using the best individual-tier score rather than waiting for fusion
// keeps Stage 3 a pure function of Stage 1/2 output, matching the
// spec's stage ordering (dedup strictly precedes rank).
func (c Candidate) bestTierScore() float64 {
	best := c.VectorScore
	if c.HippoRAGScore > best {
		best = c.HippoRAGScore
	}
	if c.ProbabilisticScore > best {
		best = c.ProbabilisticScore
	}
	return best
}
