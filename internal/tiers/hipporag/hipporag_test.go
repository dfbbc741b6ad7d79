package hipporag_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexusmind-core/internal/domain/chunk"
	"nexusmind-core/internal/domain/entity"
	"nexusmind-core/internal/domain/shared"
	"nexusmind-core/internal/graph"
	"nexusmind-core/internal/tiers/hipporag"
)

// stubEmbedder returns a fixed vector per surface string, set up by tests
// to control which fuzzy matches succeed.
type stubEmbedder struct {
	vectors map[string]shared.Embedding
	dim     int
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) (shared.Embedding, error) {
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return make(shared.Embedding, s.dim), nil
}

func (s *stubEmbedder) Dim() int { return s.dim }

func buildGraph(t *testing.T) (*graph.KnowledgeGraph, *entity.Entity, *entity.Entity, *chunk.Chunk) {
	t.Helper()
	g := graph.New()
	tesla, err := entity.New("Tesla", entity.Org)
	require.NoError(t, err)
	tesla.SetEmbedding(shared.Embedding{1, 0})
	elon, err := entity.New("Elon Musk", entity.Person)
	require.NoError(t, err)
	elon.SetEmbedding(shared.Embedding{0, 1})
	_, err = g.AddEntity(tesla)
	require.NoError(t, err)
	_, err = g.AddEntity(elon)
	require.NoError(t, err)

	c1, err := chunk.New(shared.NodeID("c1"), "Elon Musk runs Tesla.", "n.md", 0, shared.Embedding{1}, 1, chunk.Permanent)
	require.NoError(t, err)
	_, err = g.AddChunkNode(c1)
	require.NoError(t, err)
	require.NoError(t, g.AddEdge(tesla.ID, c1.ID, graph.Mentions, 1, 1))
	require.NoError(t, g.AddEdge(elon.ID, c1.ID, graph.Mentions, 1, 1))

	return g, tesla, elon, c1
}

func TestQueryExactMatchReturnsChunk(t *testing.T) {
	g, _, _, c1 := buildGraph(t)
	tier := hipporag.New(g, nil)

	res, err := tier.Query(context.Background(), []string{"Tesla", "Elon Musk"}, hipporag.Options{TopK: 5})
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, c1.ID, res.Chunks[0].ChunkID)
	assert.Len(t, res.Matched, 2)
	assert.Empty(t, res.Expanded)
}

func TestQueryFuzzyMatchViaEmbeddingCosine(t *testing.T) {
	g, tesla, _, _ := buildGraph(t)
	embedder := &stubEmbedder{dim: 2, vectors: map[string]shared.Embedding{
		"Tessla": {1, 0}, // misspelling, close enough string-wise and vector-wise
	}}
	tier := hipporag.New(g, embedder)

	res, err := tier.Query(context.Background(), []string{"Tessla"}, hipporag.Options{TopK: 5})
	require.NoError(t, err)
	require.Len(t, res.Matched, 1)
	assert.Equal(t, tesla.ID, res.Matched[0])
}

func TestQueryNoMatchReturnsEmptyResult(t *testing.T) {
	g, _, _, _ := buildGraph(t)
	tier := hipporag.New(g, nil)

	res, err := tier.Query(context.Background(), []string{"nonexistent corp"}, hipporag.Options{TopK: 5})
	require.NoError(t, err)
	assert.Empty(t, res.Chunks)
	assert.Empty(t, res.Matched)
}

func TestQueryRejectsNonPositiveTopK(t *testing.T) {
	g, _, _, _ := buildGraph(t)
	tier := hipporag.New(g, nil)

	_, err := tier.Query(context.Background(), []string{"Tesla"}, hipporag.Options{TopK: 0})
	require.Error(t, err)
}

func TestQuerySynonymyExpandsProvenance(t *testing.T) {
	g, tesla, _, _ := buildGraph(t)
	car, err := entity.New("automobile company", entity.Org)
	require.NoError(t, err)
	_, err = g.AddEntity(car)
	require.NoError(t, err)
	require.NoError(t, g.AddEdge(tesla.ID, car.ID, graph.SimilarTo, 0.9, 0.9))

	tier := hipporag.New(g, nil)
	res, err := tier.Query(context.Background(), []string{"Tesla"}, hipporag.Options{TopK: 5, Synonymy: true, SynonymyMax: 5})
	require.NoError(t, err)
	assert.Contains(t, res.Expanded, car.ID)
}
