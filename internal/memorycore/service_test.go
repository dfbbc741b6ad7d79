package memorycore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexusmind-core/internal/apperrors"
	"nexusmind-core/internal/config"
	"nexusmind-core/internal/domain/chunk"
	"nexusmind-core/internal/domain/entity"
	"nexusmind-core/internal/domain/shared"
	"nexusmind-core/internal/graph"
	"nexusmind-core/internal/memorycore"
	"nexusmind-core/internal/tiers"
	"nexusmind-core/internal/trace"
)

type fakeVectorIndex struct {
	matches []tiers.VectorMatch
}

func (f *fakeVectorIndex) Upsert(ctx context.Context, c *chunk.Chunk) error   { return nil }
func (f *fakeVectorIndex) Delete(ctx context.Context, id shared.NodeID) error { return nil }
func (f *fakeVectorIndex) Search(ctx context.Context, query shared.Embedding, topK int) ([]tiers.VectorMatch, error) {
	return f.matches, nil
}

type fakeEmbedder struct{ vec shared.Embedding }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) (shared.Embedding, error) {
	return f.vec, nil
}
func (f *fakeEmbedder) Dim() int { return len(f.vec) }

func newService(t *testing.T, g *graph.KnowledgeGraph, vi tiers.VectorIndex) *memorycore.Service {
	t.Helper()
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	return memorycore.New(cfg, memorycore.Deps{
		Graph:       g,
		Embedder:    &fakeEmbedder{vec: shared.Embedding{1, 0}},
		VectorIndex: vi,
	}, nil, nil)
}

func addChunk(t *testing.T, g *graph.KnowledgeGraph, id, text string, embedding shared.Embedding) {
	t.Helper()
	c, err := chunk.New(shared.NodeID(id), text, "n.md", 0, embedding, len(embedding), chunk.Permanent)
	require.NoError(t, err)
	_, err = g.AddChunkNode(c)
	require.NoError(t, err)
}

func TestQueryEmptyTextIsInvalidInput(t *testing.T) {
	svc := newService(t, graph.New(), &fakeVectorIndex{})
	_, err := svc.Query(context.Background(), "", memorycore.Options{})
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidInput(err))
}

func TestQueryOutOfScopeAnnotatesAndSkipsPipeline(t *testing.T) {
	svc := newService(t, graph.New(), &fakeVectorIndex{})
	res, err := svc.Query(context.Background(), "what's my favorite color", memorycore.Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Core)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "out_of_scope")
}

func TestQueryVectorTierReturnsCoreAndTrace(t *testing.T) {
	g := graph.New()
	addChunk(t, g, "c1", "Elon Musk runs Tesla.", shared.Embedding{1, 0})
	vi := &fakeVectorIndex{matches: []tiers.VectorMatch{{ChunkID: shared.NodeID("c1"), Score: 0.9}}}
	svc := newService(t, g, vi)

	res, err := svc.Query(context.Background(), "what about Tesla and SpaceX", memorycore.Options{})
	require.NoError(t, err)
	require.Len(t, res.Core, 1)
	assert.Equal(t, shared.NodeID("c1"), res.Core[0].ChunkID)
	assert.NotEmpty(t, res.TraceID)

	explained, err := svc.Explain(res.TraceID)
	require.NoError(t, err)
	assert.Equal(t, "what about Tesla and SpaceX", explained.QueryText)
}

func TestQueryExecutionModeSkipsProbabilisticPattern(t *testing.T) {
	svc := newService(t, graph.New(), &fakeVectorIndex{})
	res, err := svc.Query(context.Background(), "run the likelihood check now", memorycore.Options{Mode: "execution"})
	require.NoError(t, err)
	assert.Contains(t, res.Warnings, "prob_skipped_by_mode")
}

func TestExplainUnknownTraceIsNotFound(t *testing.T) {
	svc := newService(t, graph.New(), &fakeVectorIndex{})
	_, err := svc.Explain("does-not-exist")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestReplayUnchangedGraphIsDeterministic(t *testing.T) {
	g := graph.New()
	addChunk(t, g, "c1", "Elon Musk runs Tesla.", shared.Embedding{1, 0})
	vi := &fakeVectorIndex{matches: []tiers.VectorMatch{{ChunkID: shared.NodeID("c1"), Score: 0.9}}}
	svc := newService(t, g, vi)

	original, err := svc.Query(context.Background(), "what about Tesla", memorycore.Options{})
	require.NoError(t, err)

	replayed, diff, err := svc.Replay(context.Background(), original.TraceID)
	require.NoError(t, err)
	assert.False(t, diff.NonDeterministic)
	assert.False(t, diff.CoreChanged)
	assert.Equal(t, original.Core, replayed.Core)
}

func TestReplayAfterGraphChangeIsMarkedNonDeterministic(t *testing.T) {
	g := graph.New()
	addChunk(t, g, "c1", "Elon Musk runs Tesla.", shared.Embedding{1, 0})
	vi := &fakeVectorIndex{matches: []tiers.VectorMatch{{ChunkID: shared.NodeID("c1"), Score: 0.9}}}
	svc := newService(t, g, vi)

	original, err := svc.Query(context.Background(), "what about Tesla", memorycore.Options{})
	require.NoError(t, err)

	e, err := entity.New("SpaceX", entity.Org)
	require.NoError(t, err)
	_, err = g.AddEntity(e)
	require.NoError(t, err)

	_, diff, err := svc.Replay(context.Background(), original.TraceID)
	require.NoError(t, err)
	assert.True(t, diff.NonDeterministic)
}

func TestClassifyFailureDelegatesToTraceClassifier(t *testing.T) {
	g := graph.New()
	addChunk(t, g, "c1", "Elon Musk runs Tesla.", shared.Embedding{1, 0})
	vi := &fakeVectorIndex{matches: []tiers.VectorMatch{{ChunkID: shared.NodeID("c1"), Score: 0.9}}}
	svc := newService(t, g, vi)

	res, err := svc.Query(context.Background(), "what about Tesla", memorycore.Options{})
	require.NoError(t, err)

	classification, err := svc.ClassifyFailure(res.TraceID, trace.OutcomeBad)
	require.NoError(t, err)
	assert.Equal(t, trace.ModelBug, classification.Kind)

	clean, err := svc.ClassifyFailure(res.TraceID, trace.OutcomeGood)
	require.NoError(t, err)
	assert.Equal(t, trace.NoFailure, clean.Kind)
}

func TestQueryRespectsNonDefaultTopK(t *testing.T) {
	g := graph.New()
	addChunk(t, g, "c1", "Elon Musk runs Tesla.", shared.Embedding{1, 0})
	addChunk(t, g, "c2", "SpaceX launches rockets.", shared.Embedding{0, 1})
	addChunk(t, g, "c3", "Tesla builds batteries.", shared.Embedding{0.7, 0.7})
	vi := &fakeVectorIndex{matches: []tiers.VectorMatch{
		{ChunkID: shared.NodeID("c1"), Score: 0.9},
		{ChunkID: shared.NodeID("c2"), Score: 0.8},
		{ChunkID: shared.NodeID("c3"), Score: 0.7},
	}}
	svc := newService(t, g, vi)

	res, err := svc.Query(context.Background(), "what about Tesla", memorycore.Options{TopK: 2})
	require.NoError(t, err)
	assert.Len(t, res.Core, 2)

	explained, err := svc.Explain(res.TraceID)
	require.NoError(t, err)
	assert.Equal(t, 2, explained.TopK)
}
