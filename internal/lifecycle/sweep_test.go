package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexusmind-core/internal/domain/chunk"
	"nexusmind-core/internal/domain/shared"
	"nexusmind-core/internal/ingestqueue"
	"nexusmind-core/internal/lifecycle"
)

type fakeChunkStore struct {
	chunks []*chunk.Chunk
}

func (f *fakeChunkStore) Chunks() []*chunk.Chunk { return f.chunks }

func (f *fakeChunkStore) TransitionChunk(id shared.NodeID, to chunk.Stage) error {
	for _, c := range f.chunks {
		if c.ID == id {
			return c.TransitionTo(to)
		}
	}
	return nil
}

type fakeStats struct {
	accessPerWeek map[shared.NodeID]float64
}

func (f *fakeStats) AccessPerWeek(id shared.NodeID) float64 { return f.accessPerWeek[id] }
func (f *fakeStats) ManualRehydrate(id shared.NodeID) bool  { return false }

type fakePublisher struct {
	events []ingestqueue.StageTransitionEvent
}

func (f *fakePublisher) Publish(ctx context.Context, ev ingestqueue.StageTransitionEvent) error {
	f.events = append(f.events, ev)
	return nil
}

func TestSweepTransitionsColdChunkAndPublishesEvent(t *testing.T) {
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	c, err := chunk.New(shared.NodeID("c1"), "text", "n.md", 0, shared.Embedding{1}, 1, chunk.Permanent)
	require.NoError(t, err)
	c.CreatedAt = now.Add(-60 * 24 * time.Hour)

	store := &fakeChunkStore{chunks: []*chunk.Chunk{c}}
	stats := &fakeStats{accessPerWeek: map[shared.NodeID]float64{"c1": 0.1}}
	pub := &fakePublisher{}

	n, err := lifecycle.Sweep(context.Background(), store, stats, pub, now, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n) // Active -> Demoted -> Archived, one monotone hop at a time
	assert.Equal(t, chunk.Archived, c.Stage)
	require.Len(t, pub.events, 2)
	assert.Equal(t, chunk.Active, pub.events[0].From)
	assert.Equal(t, chunk.Demoted, pub.events[0].To)
	assert.Equal(t, chunk.Demoted, pub.events[1].From)
	assert.Equal(t, chunk.Archived, pub.events[1].To)
}

func TestSweepLeavesUnchangedChunksAlone(t *testing.T) {
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	c, err := chunk.New(shared.NodeID("c1"), "text", "n.md", 0, shared.Embedding{1}, 1, chunk.Permanent)
	require.NoError(t, err)
	c.CreatedAt = now.Add(-2 * 24 * time.Hour)

	store := &fakeChunkStore{chunks: []*chunk.Chunk{c}}
	stats := &fakeStats{accessPerWeek: map[shared.NodeID]float64{"c1": 5}}
	pub := &fakePublisher{}

	n, err := lifecycle.Sweep(context.Background(), store, stats, pub, now, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, pub.events)
	assert.Equal(t, chunk.Active, c.Stage)
}
