// Package lifecycle implements the Lifecycle Classifier (C1): a pure
// function of chunk metadata that assigns a Stage, plus the indexing
// strategy each stage implies for the tiers.
package lifecycle

import (
	"time"

	"nexusmind-core/internal/domain/chunk"
)

// Meta is the subset of chunk metadata classify() reasons over. It is
// passed by value rather than *chunk.Chunk so the classifier stays a
// pure function with no dependency on the chunk package's mutators.
type Meta struct {
	CreatedAt      time.Time
	LastAccessAt   time.Time
	AccessCount    int
	AccessPerWeek  float64
	ManualRehydrate bool
	MissingTimestamps bool
}

// IndexStrategy says which tiers a stage's chunks remain eligible for
// (spec §4.1).
type IndexStrategy struct {
	Vector     bool
	Graph      bool
	Relational bool
}

var strategies = map[chunk.Stage]IndexStrategy{
	chunk.Active:       {Vector: true, Graph: true, Relational: true},
	chunk.Demoted:      {Vector: true},
	chunk.Archived:     {},
	chunk.Rehydratable: {},
}

// IndexingStrategy returns the tier eligibility for a stage.
func IndexingStrategy(s chunk.Stage) IndexStrategy {
	return strategies[s]
}

// Classify assigns a stage from age and access counters, pure per the
// spec's contract. On missing timestamps it fails open to Active so
// availability is preferred over staleness (spec §4.1).
func Classify(m Meta, now time.Time) chunk.Stage {
	if m.MissingTimestamps {
		return chunk.Active
	}
	if m.ManualRehydrate {
		return chunk.Rehydratable
	}

	age := now.Sub(m.CreatedAt)
	const week = 7 * 24 * time.Hour
	const month = 30 * 24 * time.Hour
	switch {
	case age < week && m.AccessPerWeek >= 3:
		return chunk.Active
	case age > month && m.AccessPerWeek < 1:
		return chunk.Archived
	default:
		// covers the 7-30d band and the <3/week-but-not-archived remainder
		return chunk.Demoted
	}
}
