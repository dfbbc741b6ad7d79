package lifecycle

import (
	"context"
	"time"

	"nexusmind-core/internal/domain/chunk"
	"nexusmind-core/internal/domain/shared"
	"nexusmind-core/internal/ingestqueue"
	"nexusmind-core/internal/obslog"
)

// ChunkStore is the narrow slice of graph.KnowledgeGraph a sweep needs:
// enumerate chunks and apply a stage transition to one. Kept as an
// interface so lifecycle does not import internal/graph directly and a
// test can sweep over an in-memory fake.
type ChunkStore interface {
	Chunks() []*chunk.Chunk
	TransitionChunk(id shared.NodeID, to chunk.Stage) error
}

// AccessStats supplies the per-chunk access counters Classify needs
// beyond what *chunk.Chunk itself carries (accesses/week is a derived,
// windowed statistic the chunk doesn't store directly).
type AccessStats interface {
	AccessPerWeek(id shared.NodeID) float64
	ManualRehydrate(id shared.NodeID) bool
}

// Publisher is the subset of ingestqueue.Producer a sweep depends on.
type Publisher interface {
	Publish(ctx context.Context, ev ingestqueue.StageTransitionEvent) error
}

// forwardOrder is the lifecycle's monotone sequence (spec §3): Classify
// reasons only about age/access bands and can name a stage more than one
// step ahead of a chunk's current one (e.g. a never-reclassified chunk
// that is both >30 days old and cold goes straight from Active to
// Archived). chunk.CanTransition only allows single-step moves, so a
// sweep walks the intermediate stages one at a time rather than handing
// Classify's answer straight to TransitionChunk.
var forwardOrder = []chunk.Stage{chunk.Active, chunk.Demoted, chunk.Archived, chunk.Rehydratable}

// stepsTo returns the stages a chunk currently at from must pass through,
// in order, to reach to. The Rehydratable -> Active rehydration is the
// one legal backward move and is returned as a single hop.
func stepsTo(from, to chunk.Stage) []chunk.Stage {
	if from == chunk.Rehydratable && to == chunk.Active {
		return []chunk.Stage{chunk.Active}
	}
	fi, ti := indexOfStage(from), indexOfStage(to)
	if ti <= fi {
		return []chunk.Stage{to}
	}
	return append([]chunk.Stage{}, forwardOrder[fi+1:ti+1]...)
}

func indexOfStage(s chunk.Stage) int {
	for i, o := range forwardOrder {
		if o == s {
			return i
		}
	}
	return -1
}

// Sweep re-evaluates every chunk's stage (spec §4.1 "on periodic
// sweep"), applies any resulting transition — one monotone hop at a time
// when Classify's verdict is more than one stage ahead — and publishes a
// StageTransitionEvent per hop so downstream indexers can react.
func Sweep(ctx context.Context, store ChunkStore, stats AccessStats, pub Publisher, now time.Time, log *obslog.Logger) (transitioned int, err error) {
	if log == nil {
		log = obslog.New(nil)
	}
	for _, c := range store.Chunks() {
		meta := Meta{
			CreatedAt:         c.CreatedAt,
			LastAccessAt:      c.LastAccessAt,
			AccessCount:       c.AccessCount,
			AccessPerWeek:     stats.AccessPerWeek(c.ID),
			ManualRehydrate:   stats.ManualRehydrate(c.ID),
			MissingTimestamps: c.CreatedAt.IsZero(),
		}
		next := Classify(meta, now)
		if next == c.Stage {
			continue
		}
		from := c.Stage
		for _, hop := range stepsTo(from, next) {
			if terr := store.TransitionChunk(c.ID, hop); terr != nil {
				return transitioned, terr
			}
			transitioned++
			if perr := pub.Publish(ctx, ingestqueue.StageTransitionEvent{
				ChunkID: c.ID, From: from, To: hop, Timestamp: now,
			}); perr != nil {
				log.Warn("publishing stage transition event failed")
			}
			from = hop
		}
	}
	return transitioned, nil
}
