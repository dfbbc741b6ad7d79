package shared

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"nexusmind-core/internal/apperrors"
)

// Embedding is a fixed-dimension, L2-normalized vector (spec §3, §6).
type Embedding []float32

// ValidateDim fails loudly when vec does not match the system-wide
// embedding dimension D, per the §3 invariant that all embeddings share
// one dimension.
func ValidateDim(vec Embedding, d int) error {
	if len(vec) != d {
		return apperrors.New(apperrors.InvalidInput, "EMBEDDING_DIM_MISMATCH",
			"embedding dimension mismatch").
			WithDetail("expected", d).
			WithDetail("got", len(vec)).
			Build()
	}
	for _, f := range vec {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return apperrors.New(apperrors.InvalidInput, "EMBEDDING_NON_FINITE",
				"embedding contains a non-finite value").Build()
		}
	}
	return nil
}

// CosineSimilarity returns the cosine similarity of a and b in [-1, 1].
// Both vectors are assumed to already be validated for dimension; a
// length mismatch returns 0 rather than panicking, since deduplication
// (C8 Stage 3) calls this defensively across heterogeneous tiers.
func CosineSimilarity(a, b Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	fa := toFloat64(a)
	fb := toFloat64(b)
	na := floats.Norm(fa, 2)
	nb := floats.Norm(fb, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	dot := floats.Dot(fa, fb)
	sim := dot / (na * nb)
	// numerical error can push a near-parallel pair a hair outside [-1, 1].
	return math.Max(-1, math.Min(1, sim))
}

func toFloat64(v Embedding) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
