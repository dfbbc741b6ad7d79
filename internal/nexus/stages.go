package nexus

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"nexusmind-core/internal/domain/shared"
	"nexusmind-core/internal/graphquery"
	"nexusmind-core/internal/router"
	"nexusmind-core/internal/tiers"
	"nexusmind-core/internal/tiers/hipporag"
	"nexusmind-core/internal/tiers/probabilistic"
)

// recallInput bundles what Stage 1 needs from each tier adapter. Any
// field may be nil; a nil adapter for a tier the plan asked for is
// recorded as `tier_absent:<tier>` rather than treated as an error
// (spec §7, SPEC_FULL.md §12.4).
type recallInput struct {
	Plan           router.TierPlan
	QueryText      string
	QueryEmbedding shared.Embedding
	QuerySurfaces  []string
	NRecall        int

	VectorIndex   tiers.VectorIndex
	HippoRAG      *hipporag.Tier
	Probabilistic *probabilistic.Tier
	// TierDeadline is this query's remaining deadline divided by the
	// number of active tiers (spec §5); zero means no per-tier budget is
	// imposed beyond ctx's own deadline.
	TierDeadline time.Duration
	ProbDeadline time.Duration
	MultiHop     bool
	MaxHops      int
	Synonymy     bool
	SynonymyMax  int
	Alpha, Tol   float64
	MaxIter      int
}

// recallOutput is Stage 1's result: a partial candidate set keyed by
// chunk id plus the warnings any absent/cut-short tier produced.
type recallOutput struct {
	candidates map[shared.NodeID]*Candidate
	warnings   []string
	tierCounts map[router.Tier]int
}

// runRecall invokes every tier in the plan concurrently via errgroup.
// Vector and HippoRAG each get their own sub-context bounded by
// in.TierDeadline (the overall deadline sliced by active tier count,
// spec §5); Probabilistic additionally caps that share at its own
// default budget (in.ProbDeadline), since it is documented as a
// best-effort supplementary tier and should never be handed more time
// than its own contract promises. A tier error, a deadline cut included,
// is absorbed as an empty contribution with a warning rather than failing
// the query; no branch returns an error, so one tier's failure never
// cancels the others.
func runRecall(ctx context.Context, in recallInput) recallOutput {
	out := recallOutput{
		candidates: make(map[shared.NodeID]*Candidate),
		tierCounts: make(map[router.Tier]int),
	}
	var mu lockedWarnings

	g, gctx := errgroup.WithContext(ctx)

	if in.Plan.Has(router.Vector) {
		if in.VectorIndex == nil {
			mu.add(&out, "tier_absent:vector")
		} else {
			g.Go(func() error {
				vctx, cancel := withTierDeadline(gctx, in.TierDeadline)
				defer cancel()
				matches, err := in.VectorIndex.Search(vctx, in.QueryEmbedding, in.NRecall)
				if err != nil {
					mu.add(&out, "tier_absent:vector")
					return nil
				}
				mu.mergeVector(&out, matches)
				return nil
			})
		}
	}

	if in.Plan.Has(router.HippoRAG) {
		if in.HippoRAG == nil {
			mu.add(&out, "tier_absent:hipporag")
		} else {
			g.Go(func() error {
				hctx, cancel := withTierDeadline(gctx, in.TierDeadline)
				defer cancel()
				res, err := in.HippoRAG.Query(hctx, in.QuerySurfaces, hipporag.Options{
					TopK: in.NRecall, MultiHop: in.MultiHop, MaxHops: in.MaxHops,
					Synonymy: in.Synonymy, SynonymyMax: in.SynonymyMax,
					Alpha: in.Alpha, Tolerance: in.Tol, MaxIterations: in.MaxIter,
				})
				if err != nil {
					mu.add(&out, "tier_absent:hipporag")
					return nil
				}
				mu.mergeHippoRAG(&out, res.Chunks)
				if res.DeadlineExceeded {
					mu.add(&out, "deadline_exceeded")
				} else if !res.Converged {
					mu.add(&out, "non_convergence")
				}
				return nil
			})
		}
	}

	if in.Plan.Has(router.Probabilistic) {
		if in.Probabilistic == nil {
			mu.add(&out, "tier_absent:probabilistic")
		} else {
			g.Go(func() error {
				budget := in.ProbDeadline
				if in.TierDeadline > 0 && in.TierDeadline < budget {
					budget = in.TierDeadline
				}
				pctx, cancel := context.WithTimeout(gctx, budget)
				defer cancel()
				outcome, err := in.Probabilistic.Query(pctx, in.QueryText, in.NRecall)
				if err != nil {
					mu.add(&out, "tier_absent:probabilistic")
					return nil
				}
				if outcome.DeadlineExceeded {
					mu.add(&out, "deadline_exceeded")
					return nil
				}
				mu.mergeProbabilistic(&out, outcome.Matches)
				return nil
			})
		}
	}

	_ = g.Wait() // every branch already absorbs its own errors
	return out
}

// withTierDeadline bounds ctx by d when d is set, otherwise returns ctx
// unchanged with a no-op cancel.
func withTierDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// lockedWarnings is a tiny helper keeping Stage 1's concurrent
// contributions race-free without pulling in a separate synchronization
// type for what is, in practice, one mutex guarding a handful of map
// writes.
type lockedWarnings struct{ mu sync.Mutex }

func (l *lockedWarnings) add(out *recallOutput, w string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out.warnings = append(out.warnings, w)
}

func (l *lockedWarnings) mergeVector(out *recallOutput, matches []tiers.VectorMatch) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out.tierCounts[router.Vector] = len(matches)
	for _, m := range matches {
		c := out.candidates[m.ChunkID]
		if c == nil {
			c = &Candidate{ChunkID: m.ChunkID}
			out.candidates[m.ChunkID] = c
		}
		c.VectorScore = m.Score
		c.HasVector = true
	}
}

func (l *lockedWarnings) mergeHippoRAG(out *recallOutput, ranked []graphquery.RankedChunk) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out.tierCounts[router.HippoRAG] = len(ranked)
	for _, r := range ranked {
		c := out.candidates[r.ChunkID]
		if c == nil {
			c = &Candidate{ChunkID: r.ChunkID}
			out.candidates[r.ChunkID] = c
		}
		c.HippoRAGScore = r.Score
		c.HasHippoRAG = true
	}
}

func (l *lockedWarnings) mergeProbabilistic(out *recallOutput, matches []tiers.ProbabilisticMatch) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out.tierCounts[router.Probabilistic] = len(matches)
	for _, m := range matches {
		c := out.candidates[m.ChunkID]
		if c == nil {
			c = &Candidate{ChunkID: m.ChunkID}
			out.candidates[m.ChunkID] = c
		}
		c.ProbabilisticScore = m.Confidence
		c.HasProbabilistic = true
	}
}

// FilterFloors is Stage 2's per-tier score floor configuration.
type FilterFloors struct {
	Vector        float64
	HippoRAG      float64
	Probabilistic float64
}

// applyFilter drops any candidate whose every present tier score falls
// below that tier's floor (spec §4.8 Stage 2). A candidate surviving on
// even one tier's strength is kept; floors only ever remove, never add,
// signal.
func applyFilter(candidates map[shared.NodeID]*Candidate, floors FilterFloors) []*Candidate {
	var survivors []*Candidate
	for _, c := range candidates {
		ok := false
		if c.HasVector && c.VectorScore >= floors.Vector {
			ok = true
		}
		if c.HasHippoRAG && c.HippoRAGScore >= floors.HippoRAG {
			ok = true
		}
		if c.HasProbabilistic && c.ProbabilisticScore >= floors.Probabilistic {
			ok = true
		}
		if ok {
			survivors = append(survivors, c)
		}
	}
	sort.Slice(survivors, func(i, j int) bool { return survivors[i].ChunkID < survivors[j].ChunkID })
	return survivors
}

// RankWeights configures Stage 4's score fusion.
type RankWeights struct {
	Vector, HippoRAG, Probabilistic float64
}

// applyRank computes each candidate's fused score and sorts descending,
// tie-breaking by chunk id for determinism (spec §4.8 Stage 4).
func applyRank(candidates []*Candidate, w RankWeights) []*Candidate {
	for _, c := range candidates {
		c.FusedScore = w.Vector*c.VectorScore + w.HippoRAG*c.HippoRAGScore + w.Probabilistic*c.ProbabilisticScore
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].FusedScore != candidates[j].FusedScore {
			return candidates[i].FusedScore > candidates[j].FusedScore
		}
		return candidates[i].ChunkID < candidates[j].ChunkID
	})
	return candidates
}
