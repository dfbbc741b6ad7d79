package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexusmind-core/internal/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 10000, cfg.Pipeline.TokenBudget)
	assert.Equal(t, 0.95, cfg.Pipeline.DedupThreshold)
}

func TestLoadConfigEnvOverlay(t *testing.T) {
	os.Setenv("NEXUS_TOP_K", "8")
	os.Setenv("NEXUS_TOKEN_BUDGET", "20000")
	defer os.Unsetenv("NEXUS_TOP_K")
	defer os.Unsetenv("NEXUS_TOKEN_BUDGET")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.TopK)
	assert.Equal(t, 20000, cfg.Pipeline.TokenBudget)
}

func TestValidateRejectsBadRankWeights(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.RankWeightVector = 0.9
	cfg.Pipeline.RankWeightHippoRAG = 0.9
	cfg.Pipeline.RankWeightProbabilistic = 0.9
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestLoadConfigIngestQueueEnvOverlay(t *testing.T) {
	os.Setenv("NEXUS_INGESTQUEUE_BROKERS", "localhost:9092")
	defer os.Unsetenv("NEXUS_INGESTQUEUE_BROKERS")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "localhost:9092", cfg.IngestQueue.Brokers)
	assert.Equal(t, "nexus.lifecycle.transitions", cfg.IngestQueue.Topic)
}

func TestValidateRejectsMissingRequired(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.TokenBudget = 0
	err := cfg.Validate()
	assert.Error(t, err)
}
