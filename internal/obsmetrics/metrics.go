// Package obsmetrics exposes the counters and histograms a hosting
// application may scrape (spec SPEC_FULL.md §11). It is entirely
// optional: Registry is nil-safe so the core has no mandatory runtime
// dependency on a metrics server, matching the teacher's pattern of
// constructing a prometheus registry behind an interface in
// infrastructure/di rather than using prometheus's global registry.
package obsmetrics

import "github.com/prometheus/client_golang/prometheus"

// Registry holds the tier-latency, stage-cardinality and PPR metrics and
// their recording methods. nexus.Pipeline and memorycore.Service accept a
// *Registry, but no package in this core calls the recording methods.
// A nil *Registry is valid and every method becomes a no-op.
type Registry struct {
	TierLatency      *prometheus.HistogramVec
	StageCardinality *prometheus.GaugeVec
	PPRIterations    prometheus.Histogram
	PPRConverged     *prometheus.CounterVec
}

// NewRegistry builds and registers the metrics against reg. Pass
// prometheus.NewRegistry() for an isolated test registry, or nil to get
// a Registry whose recording methods are no-ops.
func NewRegistry(reg prometheus.Registerer) *Registry {
	if reg == nil {
		return nil
	}
	r := &Registry{
		TierLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nexusmind",
			Subsystem: "tier",
			Name:      "latency_seconds",
			Help:      "Per-tier recall latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tier"}),
		StageCardinality: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nexusmind",
			Subsystem: "pipeline",
			Name:      "stage_candidates",
			Help:      "Candidate count surviving each pipeline stage.",
		}, []string{"stage"}),
		PPRIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nexusmind",
			Subsystem: "ppr",
			Name:      "iterations",
			Help:      "Iterations consumed before PPR converged or hit the cap.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		PPRConverged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexusmind",
			Subsystem: "ppr",
			Name:      "converged_total",
			Help:      "PPR runs by convergence outcome.",
		}, []string{"converged"}),
	}
	reg.MustRegister(r.TierLatency, r.StageCardinality, r.PPRIterations, r.PPRConverged)
	return r
}

func (r *Registry) ObserveTierLatency(tier string, seconds float64) {
	if r == nil {
		return
	}
	r.TierLatency.WithLabelValues(tier).Observe(seconds)
}

func (r *Registry) SetStageCardinality(stage string, n int) {
	if r == nil {
		return
	}
	r.StageCardinality.WithLabelValues(stage).Set(float64(n))
}

func (r *Registry) ObservePPR(iterations int, converged bool) {
	if r == nil {
		return
	}
	r.PPRIterations.Observe(float64(iterations))
	r.PPRConverged.WithLabelValues(boolLabel(converged)).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
