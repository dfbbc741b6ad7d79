// Package breaker wraps a tier adapter (C5 vector search, C6 probabilistic
// recall) with a sony/gobreaker circuit breaker, so a tier that starts
// failing gets shed quickly instead of holding up every query behind it
// (spec §6's TierUnavailable contract).
package breaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"nexusmind-core/internal/apperrors"
	"nexusmind-core/internal/obslog"
)

// Config tunes the underlying gobreaker.CircuitBreaker. Zero-value fields
// fall back to gobreaker's own defaults except Name, which callers should
// always set to the tier being wrapped.
type Config struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration

	// ConsecutiveFailures trips the breaker open once this many calls in
	// a row have failed. Zero leaves tripping to gobreaker's default
	// condition, which trips once more than 5 calls in a row have failed.
	ConsecutiveFailures uint32
}

// Breaker guards a single tier resource behind gobreaker, translating an
// open-circuit rejection into apperrors.TierUnavailable so pipeline
// stages can treat it the same as any other degraded-tier outcome.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker
	name string
	log  *obslog.Logger
}

// New builds a Breaker for one tier resource.
func New(cfg Config, log *obslog.Logger) *Breaker {
	if log == nil {
		log = obslog.New(nil)
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("tier circuit breaker state change",
				zap.String("tier", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	if cfg.ConsecutiveFailures > 0 {
		threshold := cfg.ConsecutiveFailures
		settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		}
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings), name: cfg.Name, log: log}
}

// Run executes fn through the breaker. An open circuit is surfaced as
// apperrors.TierUnavailable naming the tier in its Resource field; any
// other error from fn passes through unwrapped so callers can still
// inspect the original cause.
func (b *Breaker) Run(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err == nil {
		return result, nil
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, apperrors.New(apperrors.TierUnavailable, "TIER_CIRCUIT_OPEN", "tier circuit breaker is open").
			WithResource(b.name).
			WithCause(err).
			Build()
	}
	return nil, err
}

// State reports the breaker's current gobreaker state name, useful for
// health endpoints and tracing.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
