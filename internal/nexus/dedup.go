package nexus

import "nexusmind-core/internal/domain/shared"

// applyDedup drops the lower-scored of any pair of surviving candidates
// whose embeddings are near-duplicates (cosine similarity >= threshold),
// using each candidate's best individual tier score as the tie-break
// since fusion (Stage 4) has not run yet (spec §4.8 Stage 3).
//
// This is the natural O(M^2) pairwise implementation, acceptable up to
// the M<=150 candidate sets spec §5's memory budget implies (N_recall x
// tier count); a production deployment expecting larger M should bucket
// candidates on a locality-sensitive hash of the embedding first and
// only compare within a bucket, but that optimization is not exercised
// here since default-configuration M never approaches the point where it
// would matter.
func applyDedup(candidates []*Candidate, threshold float64) ([]*Candidate, int) {
	dropped := make([]bool, len(candidates))
	removed := 0
	for i := 0; i < len(candidates); i++ {
		if dropped[i] {
			continue
		}
		for j := i + 1; j < len(candidates); j++ {
			if dropped[j] {
				continue
			}
			if len(candidates[i].Embedding) == 0 || len(candidates[j].Embedding) == 0 {
				continue
			}
			sim := shared.CosineSimilarity(candidates[i].Embedding, candidates[j].Embedding)
			if sim < threshold {
				continue
			}
			if candidates[i].bestTierScore() >= candidates[j].bestTierScore() {
				dropped[j] = true
			} else {
				dropped[i] = true
			}
			removed++
			if dropped[i] {
				break
			}
		}
	}

	survivors := make([]*Candidate, 0, len(candidates)-removed)
	for i, c := range candidates {
		if !dropped[i] {
			survivors = append(survivors, c)
		}
	}
	return survivors, removed
}
