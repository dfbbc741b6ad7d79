package lifecycle_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"nexusmind-core/internal/domain/chunk"
	"nexusmind-core/internal/lifecycle"
)

func TestClassify(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		meta lifecycle.Meta
		want chunk.Stage
	}{
		{
			name: "fresh and frequently accessed stays active",
			meta: lifecycle.Meta{CreatedAt: now.Add(-2 * 24 * time.Hour), AccessPerWeek: 5},
			want: chunk.Active,
		},
		{
			name: "fresh but rarely accessed is demoted",
			meta: lifecycle.Meta{CreatedAt: now.Add(-2 * 24 * time.Hour), AccessPerWeek: 1},
			want: chunk.Demoted,
		},
		{
			name: "mid-age is demoted",
			meta: lifecycle.Meta{CreatedAt: now.Add(-20 * 24 * time.Hour), AccessPerWeek: 5},
			want: chunk.Demoted,
		},
		{
			name: "old and cold is archived",
			meta: lifecycle.Meta{CreatedAt: now.Add(-60 * 24 * time.Hour), AccessPerWeek: 0.5},
			want: chunk.Archived,
		},
		{
			name: "old but still read stays demoted",
			meta: lifecycle.Meta{CreatedAt: now.Add(-60 * 24 * time.Hour), AccessPerWeek: 2},
			want: chunk.Demoted,
		},
		{
			name: "manual rehydrate mark wins",
			meta: lifecycle.Meta{CreatedAt: now.Add(-60 * 24 * time.Hour), AccessPerWeek: 0, ManualRehydrate: true},
			want: chunk.Rehydratable,
		},
		{
			name: "missing timestamps fail open to active",
			meta: lifecycle.Meta{MissingTimestamps: true},
			want: chunk.Active,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lifecycle.Classify(tt.meta, now))
		})
	}
}

func TestIndexingStrategy(t *testing.T) {
	assert.Equal(t, lifecycle.IndexStrategy{Vector: true, Graph: true, Relational: true}, lifecycle.IndexingStrategy(chunk.Active))
	assert.Equal(t, lifecycle.IndexStrategy{Vector: true}, lifecycle.IndexingStrategy(chunk.Demoted))
	assert.Equal(t, lifecycle.IndexStrategy{}, lifecycle.IndexingStrategy(chunk.Archived))
	assert.Equal(t, lifecycle.IndexStrategy{}, lifecycle.IndexingStrategy(chunk.Rehydratable))
}
