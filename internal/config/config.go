// Package config provides configuration for the nexus memory core,
// grounded on the teacher's internal/config: a nested struct with
// validator/v10 struct tags, environment-variable loading with sensible
// defaults, and an explicit Validate step.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration surface of spec.md §6's table.
type Config struct {
	TopK     int    `yaml:"top_k" validate:"required,gt=0"`
	Mode     string `yaml:"mode" validate:"omitempty,oneof=auto execution planning brainstorming"`
	Pipeline Pipeline `yaml:"pipeline" validate:"required"`
	PPR      PPR      `yaml:"ppr" validate:"required"`
	MultiHop MultiHop `yaml:"multi_hop" validate:"required"`
	Synonymy Synonymy `yaml:"synonymy" validate:"required"`
	Deadlines Deadlines `yaml:"deadlines" validate:"required"`
	IngestQueue IngestQueue `yaml:"ingest_queue"`
}

// IngestQueue configures the optional Kafka producer C1's lifecycle
// sweep publishes stage-transition events to (SPEC_FULL.md §11). Brokers
// empty means the queue is disabled; no validation tag requires it.
type IngestQueue struct {
	Brokers string `yaml:"brokers"`
	Topic   string `yaml:"topic"`
}

// Pipeline groups the Nexus Processor's tunables (C8).
type Pipeline struct {
	TokenBudget    int     `yaml:"token_budget" validate:"required,gt=0"`
	DedupThreshold float64 `yaml:"dedup_threshold" validate:"required,gt=0,lte=1"`
	FilterFloorVector      float64 `yaml:"filter_floor_vector" validate:"gte=0,lte=1"`
	FilterFloorHippoRAG    float64 `yaml:"filter_floor_hipporag" validate:"gte=0,lte=1"`
	FilterFloorProbabilistic float64 `yaml:"filter_floor_bayes" validate:"gte=0,lte=1"`
	RankWeightVector       float64 `yaml:"rank_weight_vector" validate:"gte=0,lte=1"`
	RankWeightHippoRAG     float64 `yaml:"rank_weight_hipporag" validate:"gte=0,lte=1"`
	RankWeightProbabilistic float64 `yaml:"rank_weight_bayes" validate:"gte=0,lte=1"`
	NRecall int `yaml:"n_recall" validate:"required,gt=0"`
}

// PPR groups the Graph Query Engine's Personalized PageRank tunables (C3a).
type PPR struct {
	Alpha   float64 `yaml:"alpha" validate:"gt=0,lt=1"`
	MaxIter int     `yaml:"max_iter" validate:"required,gt=0"`
	Tol     float64 `yaml:"tol" validate:"required,gt=0"`
}

// MultiHop groups the BFS tunables (C3b).
type MultiHop struct {
	MaxHops int `yaml:"max_hops" validate:"required,gt=0"`
}

// Synonymy groups the synonymy-expansion tunables (C3d).
type Synonymy struct {
	MaxExpand int `yaml:"max_expand" validate:"required,gt=0"`
}

// Deadlines groups the query and per-tier deadlines (§5).
type Deadlines struct {
	QueryMS int `yaml:"query_ms" validate:"required,gt=0"`
	ProbMS  int `yaml:"prob_ms" validate:"required,gt=0"`
}

func (d Deadlines) Query() time.Duration { return time.Duration(d.QueryMS) * time.Millisecond }
func (d Deadlines) Prob() time.Duration  { return time.Duration(d.ProbMS) * time.Millisecond }

// Default returns the configuration spec.md §6 lists as defaults.
func Default() *Config {
	return &Config{
		TopK: 5,
		Mode: "auto",
		Pipeline: Pipeline{
			TokenBudget:              10000,
			DedupThreshold:           0.95,
			FilterFloorVector:        0.3,
			FilterFloorHippoRAG:      0.3,
			FilterFloorProbabilistic: 0.2,
			RankWeightVector:         0.4,
			RankWeightHippoRAG:       0.4,
			RankWeightProbabilistic:  0.2,
			NRecall:                  50,
		},
		PPR: PPR{Alpha: 0.85, MaxIter: 100, Tol: 1e-6},
		MultiHop: MultiHop{MaxHops: 3},
		Synonymy: Synonymy{MaxExpand: 5},
		Deadlines: Deadlines{QueryMS: 650, ProbMS: 1000},
		IngestQueue: IngestQueue{Topic: "nexus.lifecycle.transitions"},
	}
}

var validate = validator.New()

// Validate checks struct tags and the cross-field invariant that
// rank weights sum to approximately 1 (spec SPEC_FULL.md §12.3).
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	sum := c.Pipeline.RankWeightVector + c.Pipeline.RankWeightHippoRAG + c.Pipeline.RankWeightProbabilistic
	if sum < 0.98 || sum > 1.02 {
		return fmt.Errorf("rank_weights must sum to ~1, got %.4f", sum)
	}
	return nil
}

// LoadConfig starts from Default() and overlays environment variables,
// mirroring the teacher's env-first LoadConfig.
func LoadConfig() (*Config, error) {
	cfg := Default()
	overlayEnvInt(&cfg.TopK, "NEXUS_TOP_K")
	overlayEnvString(&cfg.Mode, "NEXUS_MODE")
	overlayEnvInt(&cfg.Pipeline.TokenBudget, "NEXUS_TOKEN_BUDGET")
	overlayEnvFloat(&cfg.Pipeline.DedupThreshold, "NEXUS_DEDUP_THRESHOLD")
	overlayEnvInt(&cfg.Deadlines.QueryMS, "NEXUS_DEADLINE_QUERY_MS")
	overlayEnvInt(&cfg.Deadlines.ProbMS, "NEXUS_DEADLINE_PROB_MS")
	overlayEnvString(&cfg.IngestQueue.Brokers, "NEXUS_INGESTQUEUE_BROKERS")
	overlayEnvString(&cfg.IngestQueue.Topic, "NEXUS_INGESTQUEUE_TOPIC")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFile overlays a YAML file on top of Default(), for hosts that
// prefer a config file over (or in addition to) environment variables.
func LoadConfigFile(path string) (*Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overlayEnvString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func overlayEnvInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func overlayEnvFloat(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
