// Package trace implements Query Trace + Error Attribution (C9): an
// append-only record of every query's routing, tier performance, and
// stage cardinalities, plus the deterministic failure classifier that
// reads one back (spec §4.9).
package trace

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"nexusmind-core/internal/apperrors"
	"nexusmind-core/internal/domain/shared"
	"nexusmind-core/internal/router"
)

// TierStat is one tier's contribution to a query: how long it took and
// how many candidates it returned.
type TierStat struct {
	Tier      router.Tier
	LatencyMS int64
	Candidates int
	Absent    bool
}

// CoreEntry is one chunk in the final core, with the fused score it was
// ranked by — kept in the trace so explain() can show why it was chosen.
type CoreEntry struct {
	ChunkID shared.NodeID
	Score   float64
}

// Trace is the full record of one query (spec §4.9).
type Trace struct {
	ID          string
	QueryText   string
	Mode        string
	Plan        router.TierPlan
	GraphEpoch  uint64
	TierStats   []TierStat
	StageCounts map[string]int
	Core        []CoreEntry
	Extended    []CoreEntry
	Warnings    []string
	DeadlineExceeded bool
	CreatedAt   time.Time

	// QuerySurfaces, QueryEmbedding, TopK and TokenBudget are the inputs
	// needed to re-derive the answer (spec §6's "for replayability, the
	// inputs needed to re-derive the answer"); replay() reruns the query
	// with these plus the stored Plan rather than re-deriving them from
	// QueryText, so a replay exercises the exact same tier plan even if
	// entity extraction or mode detection would now behave differently.
	QuerySurfaces  []string
	QueryEmbedding shared.Embedding
	TopK           int
	TokenBudget    int

	// Err is set when the query failed outright (a PipelineError); a
	// partial trace is still persisted up to the point of failure (spec
	// §4.8 "a partial trace is still persisted").
	Err *apperrors.Error
}

// New allocates a fresh trace id, used by the memory facade before a
// query begins so every stage can record into the same trace.
func New(queryText, mode string) *Trace {
	return &Trace{
		ID:          uuid.NewString(),
		QueryText:   queryText,
		Mode:        mode,
		StageCounts: make(map[string]int),
		CreatedAt:   time.Now(),
	}
}

// Store is the append-only trace store (spec §5: "one writer per trace
// id; readers may follow"). The in-memory map is the reference
// implementation; a durable store would persist the same records keyed
// the same way.
type Store struct {
	mu     sync.RWMutex
	traces map[string]*Trace
}

// NewStore builds an empty trace store.
func NewStore() *Store {
	return &Store{traces: make(map[string]*Trace)}
}

// Put writes (or overwrites) a trace.
func (s *Store) Put(t *Trace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces[t.ID] = t
}

// Get retrieves a trace by id.
func (s *Store) Get(id string) (*Trace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.traces[id]
	return t, ok
}
