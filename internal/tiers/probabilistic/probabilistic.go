// Package probabilistic implements the C6 tier contract: a best-effort
// supplementary recall source bounded by a default 1s deadline. A
// timeout degrades the tier to an empty result with a trace warning
// rather than failing the query (spec §6, §7).
package probabilistic

import (
	"context"
	"errors"
	"time"

	"nexusmind-core/internal/apperrors"
	"nexusmind-core/internal/obslog"
	"nexusmind-core/internal/tiers"
	"nexusmind-core/internal/tiers/breaker"
)

// DefaultDeadline is the tier's default query budget (spec §6).
const DefaultDeadline = time.Second

// Outcome is the tier's result, including whether it ran to completion
// or was cut short by its deadline.
type Outcome struct {
	Matches          []tiers.ProbabilisticMatch
	DeadlineExceeded bool
}

// Tier wraps a tiers.ProbabilisticEngine with deadline enforcement and a
// circuit breaker: a supplementary tier that starts failing repeatedly
// is shed instead of holding up every query behind a doomed call (spec
// §6's TierUnavailable contract).
type Tier struct {
	engine   tiers.ProbabilisticEngine
	deadline time.Duration
	cb       *breaker.Breaker
}

// New builds a Tier. A zero deadline falls back to DefaultDeadline. The
// breaker trips after 5 consecutive failures and stays open for 30s
// before allowing a trial request through.
func New(engine tiers.ProbabilisticEngine, deadline time.Duration) *Tier {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	cb := breaker.New(breaker.Config{
		Name:                "probabilistic",
		ConsecutiveFailures: 5,
		Timeout:             30 * time.Second,
	}, obslog.New(nil))
	return &Tier{engine: engine, deadline: deadline, cb: cb}
}

// Query runs the engine under the tier's deadline and behind the
// breaker. A context deadline exceeded (or the tier's own budget,
// whichever is tighter) is reported as Outcome.DeadlineExceeded=true
// with no error — spec §7's documented degrade-not-fail behavior for
// this tier alone; any other engine error, including an open circuit, is
// still returned so the pipeline can attribute the failure correctly.
func (t *Tier) Query(ctx context.Context, text string, topK int) (Outcome, error) {
	if t.engine == nil {
		return Outcome{}, apperrors.New(apperrors.TierUnavailable, "PROBABILISTIC_NOT_CONFIGURED",
			"probabilistic engine not configured").WithResource("probabilistic").Build()
	}

	qctx, cancel := context.WithTimeout(ctx, t.deadline)
	defer cancel()

	result, err := t.cb.Run(qctx, func(ctx context.Context) (any, error) {
		return t.engine.Query(ctx, text, topK)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Outcome{DeadlineExceeded: true}, nil
		}
		if apperrors.IsTierUnavailable(err) {
			return Outcome{}, err
		}
		return Outcome{}, apperrors.New(apperrors.PipelineError, "PROBABILISTIC_QUERY_FAILED", "probabilistic tier query failed").
			WithResource("probabilistic").WithCause(err).Build()
	}
	matches, _ := result.([]tiers.ProbabilisticMatch)
	return Outcome{Matches: matches}, nil
}
