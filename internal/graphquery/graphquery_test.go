package graphquery_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexusmind-core/internal/domain/chunk"
	"nexusmind-core/internal/domain/entity"
	"nexusmind-core/internal/domain/shared"
	"nexusmind-core/internal/graph"
	"nexusmind-core/internal/graphquery"
)

func newEntity(t *testing.T, surface string) *entity.Entity {
	t.Helper()
	e, err := entity.New(surface, entity.Concept)
	require.NoError(t, err)
	return e
}

func TestPPREmptyQueryReturnsEmptyMap(t *testing.T) {
	g := graph.New()
	e := newEntity(t, "alone")
	g.AddEntity(e)
	snap := g.Snapshot()

	res := graphquery.PersonalizedPageRank(snap, nil, 0.85, 1e-6, 100)
	assert.Empty(t, res.Scores)

	res = graphquery.PersonalizedPageRank(snap, []shared.NodeID{"missing"}, 0.85, 1e-6, 100)
	assert.Empty(t, res.Scores)
}

func TestPPRSumsToOneAndNonNegative(t *testing.T) {
	g := graph.New()
	a, b, c := newEntity(t, "a"), newEntity(t, "b"), newEntity(t, "c")
	g.AddEntity(a)
	g.AddEntity(b)
	g.AddEntity(c)
	require.NoError(t, g.AddEdge(a.ID, b.ID, graph.RelatedTo, 1, 1))
	require.NoError(t, g.AddEdge(b.ID, c.ID, graph.RelatedTo, 1, 1))
	require.NoError(t, g.AddEdge(c.ID, a.ID, graph.RelatedTo, 1, 1))

	res := graphquery.PersonalizedPageRank(g.Snapshot(), []shared.NodeID{a.ID}, 0.85, 1e-9, 200)
	var sum float64
	for _, s := range res.Scores {
		assert.GreaterOrEqual(t, s, 0.0)
		sum += s
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
	assert.True(t, res.Converged)
}

func TestPPRAllDanglingCollapsesToPersonalizationAtAlphaOne(t *testing.T) {
	g := graph.New()
	a, b := newEntity(t, "a"), newEntity(t, "b")
	g.AddEntity(a)
	g.AddEntity(b)
	// no edges at all: both nodes are dangling, so every iterate equals
	// the personalization vector regardless of alpha; pin alpha=1 per
	// the documented sanity check.
	res := graphquery.PersonalizedPageRank(g.Snapshot(), []shared.NodeID{a.ID}, 1.0, 1e-9, 10)
	assert.InDelta(t, 1.0, res.Scores[a.ID], 1e-9)
	assert.InDelta(t, 0.0, res.Scores[b.ID], 1e-9)
}

func TestPPRUniformPersonalizationMatchesStandardPageRankFixedPoint(t *testing.T) {
	g := graph.New()
	a, b, c := newEntity(t, "a"), newEntity(t, "b"), newEntity(t, "c")
	g.AddEntity(a)
	g.AddEntity(b)
	g.AddEntity(c)
	require.NoError(t, g.AddEdge(a.ID, b.ID, graph.RelatedTo, 1, 1))
	require.NoError(t, g.AddEdge(b.ID, c.ID, graph.RelatedTo, 1, 1))
	require.NoError(t, g.AddEdge(c.ID, a.ID, graph.RelatedTo, 1, 1))

	snap := g.Snapshot()
	res := graphquery.PersonalizedPageRank(snap, []shared.NodeID{a.ID, b.ID, c.ID}, 0.85, 1e-9, 500)
	require.True(t, res.Converged)
	// on a uniform 3-cycle, the standard PageRank fixed point is uniform.
	for _, s := range res.Scores {
		assert.InDelta(t, 1.0/3.0, s, 1e-3)
	}
}

func TestBFSCycleSafetyTerminatesAndVisitsOnce(t *testing.T) {
	g := graph.New()
	a, b, c := newEntity(t, "a"), newEntity(t, "b"), newEntity(t, "c")
	g.AddEntity(a)
	g.AddEntity(b)
	g.AddEntity(c)
	require.NoError(t, g.AddEdge(a.ID, b.ID, graph.RelatedTo, 1, 1))
	require.NoError(t, g.AddEdge(b.ID, c.ID, graph.RelatedTo, 1, 1))
	require.NoError(t, g.AddEdge(c.ID, a.ID, graph.RelatedTo, 1, 1))

	res := graphquery.MultiHopSearch(g.Snapshot(), []shared.NodeID{a.ID}, 10, nil)
	require.Len(t, res, 3)
	assert.Equal(t, 0, res[a.ID].Distance)
	assert.Equal(t, 1, res[b.ID].Distance)
	assert.Equal(t, 2, res[c.ID].Distance)
}

func TestBFSTieBreakKeepsFirstDiscoveredPath(t *testing.T) {
	g := graph.New()
	start, mid1, mid2, target := newEntity(t, "start"), newEntity(t, "mid1"), newEntity(t, "mid2"), newEntity(t, "target")
	for _, e := range []*entity.Entity{start, mid1, mid2, target} {
		g.AddEntity(e)
	}
	require.NoError(t, g.AddEdge(start.ID, mid1.ID, graph.RelatedTo, 1, 1))
	require.NoError(t, g.AddEdge(start.ID, mid2.ID, graph.RelatedTo, 1, 1))
	require.NoError(t, g.AddEdge(mid1.ID, target.ID, graph.RelatedTo, 1, 1))
	require.NoError(t, g.AddEdge(mid2.ID, target.ID, graph.RelatedTo, 1, 1))

	res := graphquery.MultiHopSearch(g.Snapshot(), []shared.NodeID{start.ID}, 3, nil)
	require.Contains(t, res, target.ID)
	assert.Equal(t, 2, res[target.ID].Distance)
	assert.Len(t, res[target.ID].Path, 3)
	assert.Equal(t, start.ID, res[target.ID].Path[0])
}

func TestRankChunksByPPRMassAggregationAndTieBreak(t *testing.T) {
	g := graph.New()
	tesla := newEntity(t, "tesla")
	elon := newEntity(t, "elon")
	g.AddEntity(tesla)
	g.AddEntity(elon)

	c1, err := chunk.New(shared.NodeID("c1"), "text1", "n.md", 0, shared.Embedding{1}, 1, chunk.Permanent)
	require.NoError(t, err)
	c2, err := chunk.New(shared.NodeID("c2"), "text2", "n.md", 1, shared.Embedding{1}, 1, chunk.Permanent)
	require.NoError(t, err)
	g.AddChunkNode(c1)
	g.AddChunkNode(c2)

	require.NoError(t, g.AddEdge(tesla.ID, c1.ID, graph.Mentions, 1, 1))
	require.NoError(t, g.AddEdge(elon.ID, c1.ID, graph.Mentions, 1, 1))
	require.NoError(t, g.AddEdge(tesla.ID, c2.ID, graph.Mentions, 1, 1))

	scores := map[shared.NodeID]float64{tesla.ID: 0.3, elon.ID: 0.3}
	ranked := graphquery.RankChunksByPPR(g.Snapshot(), scores)
	require.Len(t, ranked, 2)
	assert.Equal(t, c1.ID, ranked[0].ChunkID) // mentioned by both entities: mass aggregation wins
	assert.InDelta(t, 0.6, ranked[0].Score, 1e-9)
	assert.Equal(t, c2.ID, ranked[1].ChunkID)
	assert.InDelta(t, 0.3, ranked[1].Score, 1e-9)
}

func TestExpandSynonymsRespectsFanOut(t *testing.T) {
	g := graph.New()
	usa := newEntity(t, "usa")
	g.AddEntity(usa)
	var syns []*entity.Entity
	for i := 0; i < 8; i++ {
		syns = append(syns, newEntity(t, string(rune('a'+i))+"-synonym"))
	}
	for _, s := range syns {
		g.AddEntity(s)
		require.NoError(t, g.AddEdge(usa.ID, s.ID, graph.SimilarTo, 0.9, 0.9))
	}

	expanded := graphquery.ExpandSynonyms(g.Snapshot(), []shared.NodeID{usa.ID}, 5)
	// usa itself + at most 5 synonyms
	assert.Len(t, expanded, 6)
}
