// Package hipporag implements the HippoRAG Tier (C4): it ties external
// query-entity extraction to the knowledge graph and graph query engine —
// matching entities to nodes, optionally expanding by synonymy or
// multi-hop BFS, running Personalized PageRank, and returning ranked
// chunks with provenance (spec §4.4).
package hipporag

import (
	"context"
	"runtime"
	"sort"

	"github.com/antzucaro/matchr"
	"golang.org/x/sync/errgroup"

	"nexusmind-core/internal/apperrors"
	"nexusmind-core/internal/domain/shared"
	"nexusmind-core/internal/graph"
	"nexusmind-core/internal/graphquery"
	"nexusmind-core/internal/tiers"
)

// MatchThreshold is the minimum cosine similarity for a fuzzy entity
// match (spec §4.4 step 2).
const MatchThreshold = 0.85

// FuzzyPrefilterThreshold is the minimum Jaro-Winkler string similarity a
// candidate entity's display form must clear before it is worth the cost
// of an embedding cosine comparison. This is a recall-preserving
// prefilter, not part of the spec's matching contract: it is set low
// enough that it should never reject a pair the cosine check would have
// accepted, while still pruning the embedding comparisons against
// obviously unrelated entities on large graphs.
const FuzzyPrefilterThreshold = 0.6

// Options configures one HippoRAG query.
type Options struct {
	TopK          int
	MultiHop      bool
	MaxHops       int
	Synonymy      bool
	SynonymyMax   int
	Alpha         float64
	Tolerance     float64
	MaxIterations int
}

// Result is C4's output: ranked chunks plus the provenance the caller
// needs to explain why each one was retrieved.
type Result struct {
	Chunks     []graphquery.RankedChunk
	Matched    []shared.NodeID // entities matched in step 2
	Expanded   []shared.NodeID // entities added by synonymy/multi-hop
	Converged  bool
	Iterations int
	// DeadlineExceeded reports that PPR was cut short by ctx rather than
	// by reaching its iteration cap (spec §5, §8 scenario 5); chunks are
	// still ranked from whatever PPR mass had accumulated so far.
	DeadlineExceeded bool
}

// Tier runs HippoRAG queries against one knowledge graph, using an
// Embedder for the fuzzy fallback in entity matching.
type Tier struct {
	graph    *graph.KnowledgeGraph
	embedder tiers.Embedder
}

// New builds a HippoRAG tier over g, using embedder for fuzzy entity
// matching. embedder may be nil if callers only ever supply query
// surfaces that match graph node ids exactly.
func New(g *graph.KnowledgeGraph, embedder tiers.Embedder) *Tier {
	return &Tier{graph: g, embedder: embedder}
}

// Query runs the full C4 pipeline: normalize and match surfaces to nodes,
// optionally expand Q by synonymy and/or multi-hop BFS, run PPR, and rank
// chunks by aggregated mass.
func (t *Tier) Query(ctx context.Context, surfaces []string, opt Options) (Result, error) {
	if opt.TopK <= 0 {
		return Result{}, apperrors.New(apperrors.InvalidInput, "HIPPORAG_BAD_TOPK", "top_k must be positive").Build()
	}
	snap := t.graph.Snapshot()

	matched, err := t.matchEntities(ctx, snap, surfaces)
	if err != nil {
		return Result{}, err
	}
	if len(matched) == 0 {
		return Result{Matched: nil, Expanded: nil}, nil
	}

	q := append([]shared.NodeID{}, matched...)
	var expanded []shared.NodeID

	if opt.MultiHop {
		hops := opt.MaxHops
		if hops <= 0 || hops > 3 {
			hops = 3
		}
		hopResults := graphquery.MultiHopSearch(snap, matched, hops, nil)
		ids := make([]shared.NodeID, 0, len(hopResults))
		for id := range hopResults {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		q = unionSorted(q, ids)
	}

	if opt.Synonymy {
		max := opt.SynonymyMax
		if max <= 0 {
			max = 5
		}
		synExpanded := graphquery.ExpandSynonyms(snap, q, max)
		q = unionSorted(q, synExpanded)
	}

	for _, id := range q {
		if !contains(matched, id) {
			expanded = append(expanded, id)
		}
	}

	alpha, tol, maxIter := opt.Alpha, opt.Tolerance, opt.MaxIterations
	if alpha <= 0 {
		alpha = 0.85
	}
	if tol <= 0 {
		tol = 1e-6
	}
	if maxIter <= 0 {
		maxIter = 100
	}

	ppr := graphquery.PersonalizedPageRankContext(ctx, snap, q, alpha, tol, maxIter)
	ranked := graphquery.RankChunksByPPR(snap, ppr.Scores)
	if len(ranked) > opt.TopK {
		ranked = ranked[:opt.TopK]
	}

	return Result{
		Chunks:           ranked,
		Matched:          matched,
		Expanded:         expanded,
		Converged:        ppr.Converged,
		Iterations:       ppr.Iterations,
		DeadlineExceeded: ppr.Cancelled,
	}, nil
}

// matchEntities normalizes each surface to a candidate graph id (exact
// match) and falls back to fuzzy matching via embedding cosine similarity
// when no exact match exists (spec §4.4 step 2).
func (t *Tier) matchEntities(ctx context.Context, snap *graph.Snapshot, surfaces []string) ([]shared.NodeID, error) {
	seen := make(map[shared.NodeID]bool, len(surfaces))
	var matched []shared.NodeID
	add := func(id shared.NodeID) {
		if !seen[id] {
			seen[id] = true
			matched = append(matched, id)
		}
	}

	for _, surface := range surfaces {
		id := shared.NodeID(shared.NormalizeEntity(surface))
		if id == "" {
			continue
		}
		if snap.Has(id) && snap.Kind(id) == graph.KindEntity {
			add(id)
			continue
		}
		if t.embedder == nil {
			continue
		}
		fuzzyID, ok, err := t.fuzzyMatch(ctx, snap, surface)
		if err != nil {
			return nil, err
		}
		if ok {
			add(fuzzyID)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i] < matched[j] })
	return matched, nil
}

// parallelScanThreshold is the entity-node count at or above which fuzzyMatch
// splits its scan across workers instead of running it on the calling
// goroutine. Below this, goroutine setup costs more than the scan itself
// saves. This generalizes the teacher's environment-sized worker pool
// (internal/infrastructure/concurrency.AdaptiveWorkerPool) — sized here
// by entity count rather than deployment environment, since that is
// what actually drives this scan's cost.
const parallelScanThreshold = 2000

func (t *Tier) fuzzyMatch(ctx context.Context, snap *graph.Snapshot, surface string) (shared.NodeID, bool, error) {
	queryVec, err := t.embedder.Embed(ctx, surface)
	if err != nil {
		return "", false, apperrors.New(apperrors.PipelineError, "HIPPORAG_EMBED_FAILED", "embedding the query surface failed").
			WithCause(err).WithStage("entity_match").Build()
	}

	ids := snap.EntityNodeIDs()
	var best shared.NodeID
	var bestScore float64
	if len(ids) >= parallelScanThreshold {
		best, bestScore = scanEntitiesParallel(snap, surface, queryVec, ids)
	} else {
		best, bestScore = scanEntities(snap, surface, queryVec, ids)
	}
	if bestScore >= MatchThreshold {
		return best, true, nil
	}
	return "", false, nil
}

// scanEntities is the sequential fuzzy-match scan over ids.
func scanEntities(snap *graph.Snapshot, surface string, queryVec shared.Embedding, ids []shared.NodeID) (shared.NodeID, float64) {
	var best shared.NodeID
	var bestScore float64
	for _, id := range ids {
		e, ok := snap.EntityNode(id)
		if !ok || len(e.Embedding) == 0 {
			continue
		}
		if matchr.JaroWinkler(surface, e.Display, false) < FuzzyPrefilterThreshold {
			continue
		}
		score := shared.CosineSimilarity(queryVec, e.Embedding)
		if score > bestScore {
			bestScore = score
			best = id
		}
	}
	return best, bestScore
}

// scanEntitiesParallel is scanEntities split across a bounded number of
// workers, one chunk of ids each, reduced to a single best match. Used
// only at or above parallelScanThreshold, where the scan itself dominates
// goroutine setup cost.
func scanEntitiesParallel(snap *graph.Snapshot, surface string, queryVec shared.Embedding, ids []shared.NodeID) (shared.NodeID, float64) {
	workers := runtime.GOMAXPROCS(0)
	if workers > len(ids) {
		workers = len(ids)
	}
	if workers < 1 {
		workers = 1
	}
	chunkSize := (len(ids) + workers - 1) / workers

	type partial struct {
		id    shared.NodeID
		score float64
	}
	results := make([]partial, workers)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		start := w * chunkSize
		if start >= len(ids) {
			continue
		}
		end := start + chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		g.Go(func() error {
			id, score := scanEntities(snap, surface, queryVec, ids[start:end])
			results[w] = partial{id: id, score: score}
			return nil
		})
	}
	_ = g.Wait()

	var best shared.NodeID
	var bestScore float64
	for _, r := range results {
		if r.score > bestScore {
			bestScore = r.score
			best = r.id
		}
	}
	return best, bestScore
}

func unionSorted(a, b []shared.NodeID) []shared.NodeID {
	set := make(map[shared.NodeID]bool, len(a)+len(b))
	var out []shared.NodeID
	for _, id := range a {
		if !set[id] {
			set[id] = true
			out = append(out, id)
		}
	}
	for _, id := range b {
		if !set[id] {
			set[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func contains(ids []shared.NodeID, target shared.NodeID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
