// Package chunk implements the Chunk entity (spec §3): an immutable-once-
// indexed piece of ingested text, its lifecycle bookkeeping, and the
// Stage state machine C1 classifies it into.
package chunk

import (
	"time"

	"nexusmind-core/internal/apperrors"
	"nexusmind-core/internal/domain/shared"
)

// Stage is the lifecycle stage a chunk occupies (spec §3, §4.1).
type Stage string

const (
	Active        Stage = "active"
	Demoted       Stage = "demoted"
	Archived      Stage = "archived"
	Rehydratable  Stage = "rehydratable"
)

// order gives Stage its monotone position so transitions can be checked
// against the invariant "Active -> Demoted -> Archived -> Rehydratable,
// with Rehydratable able to jump back to Active only" (spec §3).
var order = map[Stage]int{Active: 0, Demoted: 1, Archived: 2, Rehydratable: 3}

// CanTransition reports whether moving from `from` to `to` respects the
// monotone lifecycle invariant: forward transitions must strictly
// increase stage order by exactly one step (no skipping), and the only
// backward transition allowed is Rehydratable -> Active.
func CanTransition(from, to Stage) bool {
	if from == to {
		return true
	}
	if from == Rehydratable && to == Active {
		return true
	}
	return order[to] == order[from]+1
}

// Tag is the chunk's retention policy hint (spec §3).
type Tag string

const (
	Permanent Tag = "permanent"
	Temporary Tag = "temporary"
	Ephemeral Tag = "ephemeral"
)

// Chunk is immutable once indexed: every field below is set at
// construction or through the narrow mutators this package exposes
// (RecordAccess, TransitionTo), never by direct field assignment from
// outside the package.
type Chunk struct {
	ID           shared.NodeID
	Text         string
	SourcePath   string
	ChunkIndex   int
	Embedding    shared.Embedding
	CreatedAt    time.Time
	LastAccessAt time.Time
	AccessCount  int
	Stage        Stage
	Verified     bool
	LifecycleTag Tag
}

// New constructs a chunk arriving Active with verified=false, per the
// lifecycle described in spec §3.
func New(id shared.NodeID, text, sourcePath string, chunkIndex int, embedding shared.Embedding, dim int, tag Tag) (*Chunk, error) {
	if text == "" {
		return nil, apperrors.New(apperrors.InvalidInput, "CHUNK_EMPTY_TEXT", "chunk text cannot be empty").
			WithResource("chunk").Build()
	}
	if err := shared.ValidateDim(embedding, dim); err != nil {
		return nil, err
	}
	now := time.Now()
	return &Chunk{
		ID:           id,
		Text:         text,
		SourcePath:   sourcePath,
		ChunkIndex:   chunkIndex,
		Embedding:    embedding,
		CreatedAt:    now,
		LastAccessAt: now,
		AccessCount:  0,
		Stage:        Active,
		Verified:     false,
		LifecycleTag: tag,
	}, nil
}

// RecordAccess bumps the access counter and timestamp; C1 reads these on
// its next classify() call.
func (c *Chunk) RecordAccess(at time.Time) {
	c.AccessCount++
	c.LastAccessAt = at
}

// TransitionTo moves the chunk to a new stage, rejecting any transition
// that violates the monotone lifecycle invariant.
func (c *Chunk) TransitionTo(to Stage) error {
	if !CanTransition(c.Stage, to) {
		return apperrors.New(apperrors.InvalidInput, "CHUNK_ILLEGAL_TRANSITION",
			"illegal lifecycle transition").
			WithResource("chunk").
			WithDetail("from", string(c.Stage)).
			WithDetail("to", string(to)).
			Build()
	}
	c.Stage = to
	return nil
}
