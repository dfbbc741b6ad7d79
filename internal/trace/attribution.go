package trace

import (
	"regexp"
	"strings"

	"nexusmind-core/internal/router"
)

// ErrorKind is the top-level failure classification (spec §4.9).
type ErrorKind string

const (
	ContextBug  ErrorKind = "context_bug"
	ModelBug    ErrorKind = "model_bug"
	SystemError ErrorKind = "system_error"
	// NoFailure means the trace shows no context mismatch, no system
	// error, and the outcome label itself reports the query as good —
	// spec §4.9 only defines the three failure kinds above, so a clean
	// trace with a good outcome is not one of them.
	NoFailure ErrorKind = "no_failure"
)

// ContextBugReason subdivides ContextBug.
type ContextBugReason string

const (
	WrongStore    ContextBugReason = "wrong_store"
	WrongMode     ContextBugReason = "wrong_mode"
	WrongLifecycle ContextBugReason = "wrong_lifecycle"
	WrongRanking  ContextBugReason = "wrong_ranking"
)

// OutcomeLabel is the external judgment about a query's answer, fed in
// by the caller (user feedback or a graded-answer probe) for model-bug
// detection; the classifier never computes this itself.
type OutcomeLabel string

const (
	OutcomeGood OutcomeLabel = "good"
	OutcomeBad  OutcomeLabel = "bad"
)

// Classification is the classifier's full verdict.
type Classification struct {
	Kind   ErrorKind
	Reason ContextBugReason // only meaningful when Kind == ContextBug
}

var kvLookupPattern = regexp.MustCompile(`(?i)what(?:'s| is) my\s+\w+`)

// Classify is the deterministic function spec §4.9 describes: it reads
// the stored trace and an outcome label and returns an ErrorKind,
// without calling any tier. System errors take priority (they are
// detectable directly from the trace), then context-shape mismatches,
// then — only if the trace looks otherwise correct — a model bug.
func Classify(t *Trace, outcome OutcomeLabel) Classification {
	if t.Err != nil || t.DeadlineExceeded {
		return Classification{Kind: SystemError}
	}

	if reason, mismatched := detectContextMismatch(t); mismatched {
		return Classification{Kind: ContextBug, Reason: reason}
	}

	if outcome == OutcomeBad {
		return Classification{Kind: ModelBug}
	}

	return Classification{Kind: NoFailure}
}

// detectContextMismatch applies the pattern-based rules spec §4.9 gives
// as an example ("what's my X" + TierPlan lacking KV lookup = wrong
// store) and generalizes them to the other three subreasons.
func detectContextMismatch(t *Trace) (ContextBugReason, bool) {
	q := strings.ToLower(t.QueryText)

	if kvLookupPattern.MatchString(q) && !t.Plan.OutOfScope {
		return WrongStore, true
	}

	if t.Plan.Has(router.Probabilistic) && t.Mode == "execution" {
		// The router is required to drop Probabilistic under execution
		// mode (spec §4.7); a trace that shows otherwise means mode
		// detection or override application went wrong upstream.
		return WrongMode, true
	}

	if stageCount, ok := t.StageCounts["recall"]; ok && stageCount > 0 {
		if coreCount, ok := t.StageCounts["compress_core"]; ok && coreCount == 0 {
			return WrongLifecycle, true
		}
	}

	if !sortedByScoreDescending(t.Core) {
		return WrongRanking, true
	}

	return "", false
}

func sortedByScoreDescending(core []CoreEntry) bool {
	for i := 1; i < len(core); i++ {
		if core[i].Score > core[i-1].Score {
			return false
		}
	}
	return true
}
