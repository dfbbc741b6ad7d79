package chunk_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexusmind-core/internal/apperrors"
	"nexusmind-core/internal/domain/chunk"
	"nexusmind-core/internal/domain/shared"
)

func validEmbedding(d int) shared.Embedding {
	v := make(shared.Embedding, d)
	v[0] = 1.0
	return v
}

func TestNewRejectsEmptyText(t *testing.T) {
	_, err := chunk.New(shared.NewChunkID(), "", "notes.md", 0, validEmbedding(4), 4, chunk.Permanent)
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidInput(err))
}

func TestNewRejectsDimMismatch(t *testing.T) {
	_, err := chunk.New(shared.NewChunkID(), "hello", "notes.md", 0, validEmbedding(3), 4, chunk.Permanent)
	require.Error(t, err)
}

func TestTransitionMonotone(t *testing.T) {
	c, err := chunk.New(shared.NewChunkID(), "hello", "notes.md", 0, validEmbedding(4), 4, chunk.Permanent)
	require.NoError(t, err)

	require.NoError(t, c.TransitionTo(chunk.Demoted))
	require.NoError(t, c.TransitionTo(chunk.Archived))
	require.NoError(t, c.TransitionTo(chunk.Rehydratable))
	require.NoError(t, c.TransitionTo(chunk.Active))

	// cannot skip forward from Active straight to Archived
	require.Error(t, c.TransitionTo(chunk.Archived))
}

func TestCanTransitionTable(t *testing.T) {
	tests := []struct {
		from, to chunk.Stage
		want     bool
	}{
		{chunk.Active, chunk.Demoted, true},
		{chunk.Demoted, chunk.Archived, true},
		{chunk.Active, chunk.Archived, false},
		{chunk.Archived, chunk.Rehydratable, true},
		{chunk.Rehydratable, chunk.Active, true},
		{chunk.Rehydratable, chunk.Demoted, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, chunk.CanTransition(tt.from, tt.to))
	}
}
