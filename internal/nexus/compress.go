package nexus

import "nexusmind-core/pkg/tokenest"

// compressResult is Stage 5's output: the curated core, the extended
// tail, and any warnings the truncation logic had to raise.
type compressResult struct {
	Core     []*Candidate
	Extended []*Candidate
	Warnings []string
}

// modeSlice returns how many ranked candidates belong in the core and
// how many (beyond the core) belong in the extended tail, per mode
// (spec §4.8 Stage 5). The core is capped at topK (spec §6 "Final core
// size cap", §8 "|core| <= top_k") in every mode.
func modeSlice(mode string, topK int) (coreSize, extendedSize int) {
	switch mode {
	case "planning":
		return topK, 15
	case "brainstorming":
		return topK, 25
	default: // execution and any unrecognized mode fall back to the fast path
		return topK, 0
	}
}

// applyCompress slices ranked candidates into core/extended by mode, then
// enforces the hard token budget: the core is kept whole unless it alone
// exceeds the budget (an exceptional state, flagged with a warning);
// otherwise the extended tail is trimmed from the end until the total
// fits (spec §4.8 Stage 5).
func applyCompress(ranked []*Candidate, mode string, topK, tokenBudget int) compressResult {
	coreSize, extendedSize := modeSlice(mode, topK)
	if coreSize > len(ranked) {
		coreSize = len(ranked)
	}
	core := ranked[:coreSize]
	rest := ranked[coreSize:]
	if extendedSize > len(rest) {
		extendedSize = len(rest)
	}
	extended := rest[:extendedSize]

	var result compressResult
	coreTokens := sumTokens(core)
	if coreTokens > tokenBudget {
		result.Core = truncateToBudget(core, tokenBudget)
		result.Extended = nil
		result.Warnings = append(result.Warnings, "core_truncated")
		return result
	}

	result.Core = core
	remaining := tokenBudget - coreTokens
	result.Extended = truncateToBudget(extended, remaining)
	return result
}

func sumTokens(cs []*Candidate) int {
	total := 0
	for _, c := range cs {
		total += tokenest.Estimate(c.Text)
	}
	return total
}

// truncateToBudget keeps candidates from the front until adding the next
// one would exceed budget, dropping the rest from the tail.
func truncateToBudget(cs []*Candidate, budget int) []*Candidate {
	var kept []*Candidate
	used := 0
	for _, c := range cs {
		t := tokenest.Estimate(c.Text)
		if used+t > budget {
			break
		}
		kept = append(kept, c)
		used += t
	}
	return kept
}
