// Package memorycore is the exposed contract (spec §6): query, explain,
// replay, and classify_failure, wired on top of C1-C9. It is the only
// package a hosting application imports to talk to the core.
package memorycore

import (
	"context"
	"time"

	"nexusmind-core/internal/apperrors"
	"nexusmind-core/internal/config"
	"nexusmind-core/internal/domain/shared"
	"nexusmind-core/internal/graph"
	"nexusmind-core/internal/nexus"
	"nexusmind-core/internal/obslog"
	"nexusmind-core/internal/obsmetrics"
	"nexusmind-core/internal/router"
	"nexusmind-core/internal/tiers"
	"nexusmind-core/internal/tiers/hipporag"
	"nexusmind-core/internal/tiers/probabilistic"
	"nexusmind-core/internal/trace"
)

// Chunk is one retrieved passage in a QueryResult, the external-facing
// shape of a nexus.Candidate.
type Chunk struct {
	ChunkID shared.NodeID
	Text    string
	Score   float64
}

// QueryResult is query()'s return shape (spec §6).
type QueryResult struct {
	Core     []Chunk
	Extended []Chunk
	TraceID  string
	Warnings []string
}

// Options overrides query()'s defaults for one call (spec §6: top_k,
// mode override, tier overrides, deadline_ms, token_budget).
type Options struct {
	TopK          int
	Mode          router.Mode // zero value means auto-detect
	TierOverride  *router.TierPlan
	DeadlineMS    int
	TokenBudget   int
}

// Diff is replay()'s comparison between a fresh run and the trace it
// replayed (spec §6).
type Diff struct {
	CoreChanged      bool
	ExtendedChanged  bool
	WarningsChanged  bool
	NonDeterministic bool // graph epoch moved since the original trace
}

// Deps are every external collaborator the service needs, matching §6's
// "explicitly out of scope" boundary: callers own entity extraction,
// embedding, the vector index, the probabilistic engine, and the graph
// store; this package only orchestrates them.
type Deps struct {
	Graph         *graph.KnowledgeGraph
	Extractor     tiers.EntityExtractor
	Embedder      tiers.Embedder
	VectorIndex   tiers.VectorIndex
	HippoRAG      *hipporag.Tier
	Probabilistic *probabilistic.Tier
}

// Service ties the query router, the five-stage pipeline, and the trace
// store into the four operations a hosting application calls (spec §6).
type Service struct {
	cfg     *config.Config
	deps    Deps
	pipe    *nexus.Pipeline
	traces  *trace.Store
	log     *obslog.Logger
	metrics *obsmetrics.Registry
}

// New builds a Service. cfg must already have passed Validate().
func New(cfg *config.Config, deps Deps, log *obslog.Logger, metrics *obsmetrics.Registry) *Service {
	if log == nil {
		log = obslog.New(nil)
	}
	pipe := nexus.New(nexus.Deps{
		VectorIndex:   deps.VectorIndex,
		HippoRAG:      deps.HippoRAG,
		Probabilistic: deps.Probabilistic,
		Graph:         deps.Graph,
	}, log, metrics)
	return &Service{cfg: cfg, deps: deps, pipe: pipe, traces: trace.NewStore(), log: log, metrics: metrics}
}

// Query runs the full query(text, options) contract (spec §6): extract
// entities, embed the query, route it to a tier plan, run the five-stage
// pipeline under the query deadline, and persist a trace.
func (s *Service) Query(ctx context.Context, text string, opt Options) (QueryResult, error) {
	if text == "" {
		return QueryResult{}, apperrors.New(apperrors.InvalidInput, "MEMORYCORE_EMPTY_QUERY", "query text must not be empty").Build()
	}

	mode := opt.Mode
	if mode == "" {
		mode = router.DetectMode(text)
	}

	plan := router.Route(text, mode)
	if opt.TierOverride != nil {
		plan = *opt.TierOverride
	}

	t := trace.New(text, string(mode))
	t.Plan = plan

	topK := opt.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	tokenBudget := opt.TokenBudget
	if tokenBudget <= 0 {
		tokenBudget = s.cfg.Pipeline.TokenBudget
	}
	deadline := s.cfg.Deadlines.Query()
	if opt.DeadlineMS > 0 {
		deadline = time.Duration(opt.DeadlineMS) * time.Millisecond
	}

	qctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	if s.deps.Graph != nil {
		t.GraphEpoch = s.deps.Graph.Snapshot().Epoch()
	}

	if plan.OutOfScope && !plan.Has(router.Vector) && !plan.Has(router.HippoRAG) && !plan.Has(router.Probabilistic) {
		t.Warnings = append(t.Warnings, "out_of_scope: "+plan.Annotation)
		s.traces.Put(t)
		return QueryResult{TraceID: t.ID, Warnings: t.Warnings}, nil
	}

	var surfaces []string
	if s.deps.Extractor != nil && plan.Has(router.HippoRAG) {
		extracted, err := s.deps.Extractor.Extract(qctx, text)
		if err != nil {
			t.Warnings = append(t.Warnings, "tier_absent:hipporag")
		} else {
			for _, e := range extracted {
				surfaces = append(surfaces, e.Surface)
			}
		}
	}

	var embedding shared.Embedding
	if s.deps.Embedder != nil && plan.Has(router.Vector) {
		emb, err := s.deps.Embedder.Embed(qctx, text)
		if err != nil {
			t.Warnings = append(t.Warnings, "tier_absent:vector")
		} else {
			embedding = emb
		}
	}

	if mode == router.Execution && router.MatchesProbabilisticPattern(text) && !plan.Has(router.Probabilistic) {
		t.Warnings = append(t.Warnings, "prob_skipped_by_mode")
	}

	t.QuerySurfaces = surfaces
	t.QueryEmbedding = embedding
	t.TopK = topK
	t.TokenBudget = tokenBudget

	maxHops := plan.MaxHops
	if maxHops <= 0 {
		maxHops = s.cfg.MultiHop.MaxHops
	}

	settings := nexus.Settings{
		NRecall: s.cfg.Pipeline.NRecall,
		Floors: nexus.FilterFloors{
			Vector:        s.cfg.Pipeline.FilterFloorVector,
			HippoRAG:      s.cfg.Pipeline.FilterFloorHippoRAG,
			Probabilistic: s.cfg.Pipeline.FilterFloorProbabilistic,
		},
		Weights: nexus.RankWeights{
			Vector:        s.cfg.Pipeline.RankWeightVector,
			HippoRAG:      s.cfg.Pipeline.RankWeightHippoRAG,
			Probabilistic: s.cfg.Pipeline.RankWeightProbabilistic,
		},
		DedupThreshold: s.cfg.Pipeline.DedupThreshold,
		TokenBudget:    tokenBudget,
		TopK:           topK,
		Mode:           string(mode),
		Alpha:          s.cfg.PPR.Alpha,
		Tol:            s.cfg.PPR.Tol,
		MaxIter:        s.cfg.PPR.MaxIter,
		MultiHop:       plan.MaxHops > 0,
		MaxHops:        maxHops,
		Synonymy:       true,
		SynonymyMax:    s.cfg.Synonymy.MaxExpand,
		ProbDeadline:   s.cfg.Deadlines.Prob(),
	}

	result, report, err := s.pipe.Run(qctx, nexus.Request{
		QueryText:      text,
		QuerySurfaces:  surfaces,
		QueryEmbedding: embedding,
		Plan:           plan,
	}, settings)
	if err != nil {
		t.Err = asAppError(err)
		t.Warnings = append(t.Warnings, report.Warnings...)
		s.traces.Put(t)
		return QueryResult{TraceID: t.ID}, err
	}

	t.Warnings = append(t.Warnings, report.Warnings...)
	t.DeadlineExceeded = contains(t.Warnings, "deadline_exceeded")
	t.StageCounts = map[string]int{
		"recall":         report.Stage1Recall,
		"filter":         report.Stage2Filtered,
		"dedup":          report.Stage3Deduped,
		"rank":           report.Stage4Ranked,
		"compress_core":  report.Stage5CoreSize,
		"compress_ext":   report.Stage5Extended,
	}
	for tier, n := range report.TierCandidates {
		t.TierStats = append(t.TierStats, trace.TierStat{Tier: tier, Candidates: n})
	}
	t.Core = toCoreEntries(result.Core)
	t.Extended = toCoreEntries(result.Extended)
	s.traces.Put(t)

	return QueryResult{
		Core:     toChunks(result.Core),
		Extended: toChunks(result.Extended),
		TraceID:  t.ID,
		Warnings: t.Warnings,
	}, nil
}

// Explain returns the stored trace for a prior query (spec §6).
func (s *Service) Explain(traceID string) (*trace.Trace, error) {
	t, ok := s.traces.Get(traceID)
	if !ok {
		return nil, apperrors.New(apperrors.NotFound, "MEMORYCORE_TRACE_NOT_FOUND", "no trace with that id").
			WithResource(traceID).Build()
	}
	return t, nil
}

// Replay re-runs a prior query using its stored plan and inputs, and
// diffs the fresh result against the original (spec §6). The
// deterministic-replay property holds only when the graph epoch has not
// moved since the original trace; otherwise the diff is marked
// NonDeterministic and the replay still succeeds.
func (s *Service) Replay(ctx context.Context, traceID string) (QueryResult, Diff, error) {
	original, ok := s.traces.Get(traceID)
	if !ok {
		return QueryResult{}, Diff{}, apperrors.New(apperrors.NotFound, "MEMORYCORE_TRACE_NOT_FOUND", "no trace with that id").
			WithResource(traceID).Build()
	}

	plan := original.Plan
	settings := nexus.Settings{
		NRecall: s.cfg.Pipeline.NRecall,
		Floors: nexus.FilterFloors{
			Vector:        s.cfg.Pipeline.FilterFloorVector,
			HippoRAG:      s.cfg.Pipeline.FilterFloorHippoRAG,
			Probabilistic: s.cfg.Pipeline.FilterFloorProbabilistic,
		},
		Weights: nexus.RankWeights{
			Vector:        s.cfg.Pipeline.RankWeightVector,
			HippoRAG:      s.cfg.Pipeline.RankWeightHippoRAG,
			Probabilistic: s.cfg.Pipeline.RankWeightProbabilistic,
		},
		DedupThreshold: s.cfg.Pipeline.DedupThreshold,
		TokenBudget:    original.TokenBudget,
		TopK:           original.TopK,
		Mode:           original.Mode,
		Alpha:          s.cfg.PPR.Alpha,
		Tol:            s.cfg.PPR.Tol,
		MaxIter:        s.cfg.PPR.MaxIter,
		MultiHop:       plan.MaxHops > 0,
		MaxHops:        plan.MaxHops,
		Synonymy:       true,
		SynonymyMax:    s.cfg.Synonymy.MaxExpand,
		ProbDeadline:   s.cfg.Deadlines.Prob(),
	}

	qctx, cancel := context.WithTimeout(ctx, s.cfg.Deadlines.Query())
	defer cancel()

	result, report, err := s.pipe.Run(qctx, nexus.Request{
		QueryText:      original.QueryText,
		QuerySurfaces:  original.QuerySurfaces,
		QueryEmbedding: original.QueryEmbedding,
		Plan:           plan,
	}, settings)
	if err != nil {
		return QueryResult{}, Diff{}, err
	}

	replayed := trace.New(original.QueryText, original.Mode)
	replayed.Plan = plan
	replayed.Warnings = report.Warnings
	replayed.Core = toCoreEntries(result.Core)
	replayed.Extended = toCoreEntries(result.Extended)
	if s.deps.Graph != nil {
		replayed.GraphEpoch = s.deps.Graph.Snapshot().Epoch()
	}
	s.traces.Put(replayed)

	diff := Diff{
		CoreChanged:      !sameEntries(original.Core, replayed.Core),
		ExtendedChanged:  !sameEntries(original.Extended, replayed.Extended),
		WarningsChanged:  !sameStrings(original.Warnings, replayed.Warnings),
		NonDeterministic: s.deps.Graph != nil && replayed.GraphEpoch != original.GraphEpoch,
	}

	return QueryResult{
		Core:     toChunks(result.Core),
		Extended: toChunks(result.Extended),
		TraceID:  replayed.ID,
		Warnings: replayed.Warnings,
	}, diff, nil
}

// ClassifyFailure delegates to the C9 classifier (spec §6).
func (s *Service) ClassifyFailure(traceID string, outcome trace.OutcomeLabel) (trace.Classification, error) {
	t, ok := s.traces.Get(traceID)
	if !ok {
		return trace.Classification{}, apperrors.New(apperrors.NotFound, "MEMORYCORE_TRACE_NOT_FOUND", "no trace with that id").
			WithResource(traceID).Build()
	}
	return trace.Classify(t, outcome), nil
}

func asAppError(err error) *apperrors.Error {
	var e *apperrors.Error
	if ae, ok := err.(*apperrors.Error); ok {
		e = ae
	}
	return e
}

func toChunks(cands []*nexus.Candidate) []Chunk {
	out := make([]Chunk, 0, len(cands))
	for _, c := range cands {
		out = append(out, Chunk{ChunkID: c.ChunkID, Text: c.Text, Score: c.FusedScore})
	}
	return out
}

func toCoreEntries(cands []*nexus.Candidate) []trace.CoreEntry {
	out := make([]trace.CoreEntry, 0, len(cands))
	for _, c := range cands {
		out = append(out, trace.CoreEntry{ChunkID: c.ChunkID, Score: c.FusedScore})
	}
	return out
}

func sameEntries(a, b []trace.CoreEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ChunkID != b[i].ChunkID || a[i].Score != b[i].Score {
			return false
		}
	}
	return true
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func contains(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}
