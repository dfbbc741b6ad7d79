package router

import (
	"regexp"
)

// Tier names the retrieval engines a TierPlan can include.
type Tier string

const (
	Vector        Tier = "vector"
	HippoRAG      Tier = "hipporag"
	Probabilistic Tier = "probabilistic"
)

// TierPlan is the routed set of tiers for one query, plus the multi-hop
// depth HippoRAG should use if it is included.
type TierPlan struct {
	Tiers      map[Tier]bool
	MaxHops    int // HippoRAG multi-hop depth, 0 if not applicable
	OutOfScope bool
	Annotation string
}

// Has reports whether t is part of the plan.
func (p TierPlan) Has(t Tier) bool { return p.Tiers[t] }

type rule struct {
	pattern *regexp.Regexp
	build   func() TierPlan
}

// rules are evaluated in order; the first match wins (spec §4.7).
var rules = []rule{
	{
		pattern: regexp.MustCompile(`(?i)what(?:'s| is) my\s+\w+`),
		build: func() TierPlan {
			return TierPlan{OutOfScope: true, Annotation: "preferences/KV lookup is outside this core's scope"}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)what\s+(client|project)\s+\w+`),
		build: func() TierPlan {
			return TierPlan{
				Tiers:      map[Tier]bool{Vector: true},
				OutOfScope: true,
				Annotation: "structured lookup is outside this core's scope; vector tier still contributes",
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)what about\s+\w+`),
		build: func() TierPlan {
			return TierPlan{Tiers: map[Tier]bool{Vector: true, HippoRAG: true}}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)(what led to|how did .* happen)`),
		build: func() TierPlan {
			return TierPlan{Tiers: map[Tier]bool{HippoRAG: true}, MaxHops: 3}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)what happened on\s+`),
		build: func() TierPlan {
			return TierPlan{OutOfScope: true, Annotation: "event-log lookup is outside this core's scope"}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)(P\(\s*\w+\s*\|\s*\w+\s*\)|likelihood)`),
		build: func() TierPlan {
			return TierPlan{Tiers: map[Tier]bool{Vector: true, HippoRAG: true, Probabilistic: true}}
		},
	},
}

// probabilisticPattern is the same pattern the probabilistic rule above
// matches on, exported so callers can tell whether execution mode
// actually suppressed a probabilistic-style query (spec §4.7's override)
// rather than the query simply never asking for that tier.
var probabilisticPattern = regexp.MustCompile(`(?i)(P\(\s*\w+\s*\|\s*\w+\s*\)|likelihood)`)

// MatchesProbabilisticPattern reports whether query looks like a
// probabilistic-style query ("P(X|Y)", "likelihood"), independent of mode.
func MatchesProbabilisticPattern(query string) bool {
	return probabilisticPattern.MatchString(query)
}

// defaultPlan is returned when no rule matches (spec §4.7).
func defaultPlan() TierPlan {
	return TierPlan{Tiers: map[Tier]bool{Vector: true, HippoRAG: true}}
}

// Route classifies query into a TierPlan. When mode is Execution, the
// Probabilistic tier is dropped even if a pattern requested it — the
// latency guard spec §4.7 mandates for fast-path queries.
func Route(query string, mode Mode) TierPlan {
	plan := defaultPlan()
	for _, r := range rules {
		if r.pattern.MatchString(query) {
			plan = r.build()
			break
		}
	}
	if mode == Execution && plan.Tiers[Probabilistic] {
		tiers := make(map[Tier]bool, len(plan.Tiers))
		for t, v := range plan.Tiers {
			if t != Probabilistic {
				tiers[t] = v
			}
		}
		plan.Tiers = tiers
	}
	return plan
}
