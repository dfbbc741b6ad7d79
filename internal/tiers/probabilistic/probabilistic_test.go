package probabilistic_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexusmind-core/internal/apperrors"
	"nexusmind-core/internal/domain/shared"
	"nexusmind-core/internal/tiers"
	"nexusmind-core/internal/tiers/probabilistic"
)

type fakeEngine struct {
	matches []tiers.ProbabilisticMatch
	err     error
	delay   time.Duration
}

func (f *fakeEngine) Query(ctx context.Context, text string, topK int) ([]tiers.ProbabilisticMatch, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.matches, f.err
}

func TestQueryReturnsMatchesOnSuccess(t *testing.T) {
	engine := &fakeEngine{matches: []tiers.ProbabilisticMatch{{ChunkID: shared.NodeID("c1"), Confidence: 0.7}}}
	tier := probabilistic.New(engine, time.Second)

	out, err := tier.Query(context.Background(), "query", 5)
	require.NoError(t, err)
	assert.False(t, out.DeadlineExceeded)
	require.Len(t, out.Matches, 1)
}

func TestQueryDegradesOnDeadlineExceeded(t *testing.T) {
	engine := &fakeEngine{delay: 50 * time.Millisecond}
	tier := probabilistic.New(engine, 5*time.Millisecond)

	out, err := tier.Query(context.Background(), "query", 5)
	require.NoError(t, err)
	assert.True(t, out.DeadlineExceeded)
	assert.Empty(t, out.Matches)
}

func TestQueryReturnsErrorForOtherFailures(t *testing.T) {
	engine := &fakeEngine{err: errors.New("engine exploded")}
	tier := probabilistic.New(engine, time.Second)

	_, err := tier.Query(context.Background(), "query", 5)
	require.Error(t, err)
	assert.True(t, apperrors.IsPipelineError(err))
}

func TestQueryWithoutEngineConfiguredIsTierUnavailable(t *testing.T) {
	tier := probabilistic.New(nil, time.Second)
	_, err := tier.Query(context.Background(), "query", 5)
	require.Error(t, err)
	assert.True(t, apperrors.IsTierUnavailable(err))
}
