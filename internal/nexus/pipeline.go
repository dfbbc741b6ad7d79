package nexus

import (
	"context"
	"strconv"
	"time"

	"nexusmind-core/internal/apperrors"
	"nexusmind-core/internal/domain/shared"
	"nexusmind-core/internal/graph"
	"nexusmind-core/internal/obslog"
	"nexusmind-core/internal/obsmetrics"
	"nexusmind-core/internal/router"
	"nexusmind-core/internal/tiers"
	"nexusmind-core/internal/tiers/hipporag"
	"nexusmind-core/internal/tiers/probabilistic"
)

// Deps are the tier adapters the pipeline fans out to in Stage 1. Any
// field may be left nil if the hosting application does not wire that
// tier; the plan simply records it absent (spec §7).
type Deps struct {
	VectorIndex   tiers.VectorIndex
	HippoRAG      *hipporag.Tier
	Probabilistic *probabilistic.Tier
	Graph         *graph.KnowledgeGraph
}

// Settings are the resolved, already-validated tunables for one run
// (spec §6's configuration surface, after the caller has merged request
// options over defaults).
type Settings struct {
	NRecall        int
	Floors         FilterFloors
	Weights        RankWeights
	DedupThreshold float64
	TokenBudget    int
	TopK           int
	Mode           string
	Alpha, Tol     float64
	MaxIter        int
	MultiHop       bool
	MaxHops        int
	Synonymy       bool
	SynonymyMax    int
	ProbDeadline   time.Duration
}

// Request is one query's resolved input: the routed tier plan plus the
// query's text, entity surfaces (for HippoRAG), and embedding (for
// Vector).
type Request struct {
	QueryText      string
	QuerySurfaces  []string
	QueryEmbedding shared.Embedding
	Plan           router.TierPlan
}

// Report carries every stage's cardinality and warnings, the raw
// material C9's trace is built from (spec §4.9).
type Report struct {
	Stage1Recall     int
	Stage2Filtered   int
	Stage3Deduped    int
	Stage3Removed    int
	Stage4Ranked     int
	Stage5CoreSize   int
	Stage5Extended   int
	Warnings         []string
	TierCandidates   map[router.Tier]int
}

// Result is the pipeline's output context.
type Result struct {
	Core     []*Candidate
	Extended []*Candidate
}

// Pipeline runs the five-stage fusion (spec §4.8).
type Pipeline struct {
	deps    Deps
	log     *obslog.Logger
	metrics *obsmetrics.Registry
}

// New builds a Pipeline over deps.
func New(deps Deps, log *obslog.Logger, metrics *obsmetrics.Registry) *Pipeline {
	if log == nil {
		log = obslog.New(nil)
	}
	return &Pipeline{deps: deps, log: log, metrics: metrics}
}

// Run executes Stage 1 through Stage 5 and returns the curated result
// plus a full stage report. ctx should already carry the query's overall
// deadline (spec §5); Stage 1 is the only stage that performs I/O and is
// the only one that observes cancellation mid-flight.
func (p *Pipeline) Run(ctx context.Context, req Request, s Settings) (result Result, report Report, err error) {
	report = Report{TierCandidates: make(map[router.Tier]int)}

	// Stages 2-5 are pure and should not fail except on programmer error
	// (spec §4.8); a panic there aborts the query as a PipelineError
	// naming the offending stage rather than crashing the caller, while
	// the partial report built so far is still returned for the trace.
	currentStage := "recall"
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.New(apperrors.PipelineError, "NEXUS_STAGE_PANIC", "pipeline stage panicked").
				WithStage(currentStage).WithDetail("panic", r).Build()
			result = Result{}
		}
	}()

	activeTiers := 0
	for _, t := range []router.Tier{router.Vector, router.HippoRAG, router.Probabilistic} {
		if req.Plan.Has(t) {
			activeTiers++
		}
	}
	if activeTiers == 0 {
		return Result{}, report, nil
	}

	// Each active tier gets an equal slice of whatever deadline remains
	// on ctx (spec §5); a ctx with no deadline leaves tiers unbounded
	// here, relying on their own default budgets instead.
	var tierDeadline time.Duration
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining > 0 {
			tierDeadline = remaining / time.Duration(activeTiers)
		}
	}

	recallOut := runRecall(ctx, recallInput{
		Plan:           req.Plan,
		QueryText:      req.QueryText,
		QueryEmbedding: req.QueryEmbedding,
		QuerySurfaces:  req.QuerySurfaces,
		NRecall:        s.NRecall,
		VectorIndex:    p.deps.VectorIndex,
		HippoRAG:       p.deps.HippoRAG,
		Probabilistic:  p.deps.Probabilistic,
		TierDeadline:   tierDeadline,
		ProbDeadline:   s.ProbDeadline,
		MultiHop:       s.MultiHop,
		MaxHops:        s.MaxHops,
		Synonymy:       s.Synonymy,
		SynonymyMax:    s.SynonymyMax,
		Alpha:          s.Alpha,
		Tol:            s.Tol,
		MaxIter:        s.MaxIter,
	})
	report.Stage1Recall = len(recallOut.candidates)
	report.TierCandidates = recallOut.tierCounts
	report.Warnings = append(report.Warnings, recallOut.warnings...)

	currentStage = "hydrate"
	p.hydrate(recallOut.candidates)

	currentStage = "filter"
	filtered := applyFilter(recallOut.candidates, s.Floors)
	report.Stage2Filtered = len(filtered)
	if len(filtered) == 0 {
		report.Warnings = append(report.Warnings, "all_filtered")
		return Result{}, report, nil
	}

	currentStage = "dedup"
	deduped, removed := applyDedup(filtered, s.DedupThreshold)
	report.Stage3Deduped = len(deduped)
	report.Stage3Removed = removed
	if removed > 0 {
		report.Warnings = append(report.Warnings, "dedup_removed:"+strconv.Itoa(removed))
	}

	currentStage = "rank"
	ranked := applyRank(deduped, s.Weights)
	report.Stage4Ranked = len(ranked)

	currentStage = "compress"
	compressed := applyCompress(ranked, s.Mode, s.TopK, s.TokenBudget)
	report.Stage5CoreSize = len(compressed.Core)
	report.Stage5Extended = len(compressed.Extended)
	report.Warnings = append(report.Warnings, compressed.Warnings...)

	return Result{Core: compressed.Core, Extended: compressed.Extended}, report, nil
}

// hydrate fills in each candidate's text/embedding from the knowledge
// graph's chunk nodes, needed for Stage 3's cosine comparison and Stage
// 5's token accounting. A candidate whose chunk node has since been
// removed from the graph is left with empty text/embedding, which Stage
// 3 already treats as "skip dedup comparison" and Stage 5 counts as zero
// tokens.
func (p *Pipeline) hydrate(candidates map[shared.NodeID]*Candidate) {
	if p.deps.Graph == nil {
		return
	}
	for _, c := range candidates {
		node, ok := p.deps.Graph.Node(c.ChunkID)
		if !ok || node.Chunk == nil {
			continue
		}
		c.Text = node.Chunk.Text
		c.Embedding = node.Chunk.Embedding
	}
}
