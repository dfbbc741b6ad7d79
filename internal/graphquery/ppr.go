// Package graphquery is the Graph Query Engine (C3): Personalized
// PageRank, cycle-safe BFS multi-hop search, synonymy expansion, and
// chunk ranking by aggregated PPR mass.
package graphquery

import (
	"context"

	"nexusmind-core/internal/domain/shared"
	"nexusmind-core/internal/graph"
)

// PPRResult is the outcome of one PersonalizedPageRank call.
type PPRResult struct {
	Scores     map[shared.NodeID]float64
	Converged  bool
	Iterations int
	// Cancelled reports that the run was cut short by a context deadline
	// rather than by reaching maxIter — the query-deadline analogue of
	// Converged=false (spec §5 "deadline cut"), distinct from ordinary
	// non-convergence.
	Cancelled bool
}

// PersonalizedPageRank runs the standard PPR recurrence over the entity
// subgraph of snap, personalized uniformly over q (spec §4.3.a).
//
// Dangling nodes (no outgoing entity-to-entity edges) redistribute their
// probability mass to the personalization vector rather than uniformly
// over all nodes — the spec's deliberate departure from the teacher
// corpus's typical library default (spec §9 Open Question).
//
// If q is empty or none of its ids are present in the graph, PPR returns
// an empty map; callers degrade gracefully rather than treating this as
// an error (spec §4.3.a, §7).
func PersonalizedPageRank(snap *graph.Snapshot, q []shared.NodeID, alpha, tol float64, maxIter int) PPRResult {
	return pprRun(context.Background(), snap, q, alpha, tol, maxIter)
}

// PersonalizedPageRankContext is PersonalizedPageRank with cooperative
// cancellation: ctx is checked once per iteration, so a query-level
// deadline (spec §5) cuts a slow-converging run short instead of running
// it to maxIter regardless of wall time. A cancelled run returns its
// last iterate with Cancelled=true rather than an error — graph tiers
// treat this the same as the probabilistic tier's own deadline cut
// (spec §7, §8 scenario 5).
func PersonalizedPageRankContext(ctx context.Context, snap *graph.Snapshot, q []shared.NodeID, alpha, tol float64, maxIter int) PPRResult {
	return pprRun(ctx, snap, q, alpha, tol, maxIter)
}

func pprRun(ctx context.Context, snap *graph.Snapshot, q []shared.NodeID, alpha, tol float64, maxIter int) PPRResult {
	nodes := snap.EntityNodeIDs()
	index := make(map[shared.NodeID]int, len(nodes))
	for i, id := range nodes {
		index[id] = i
	}

	var qPresent []shared.NodeID
	for _, id := range q {
		if _, ok := index[id]; ok {
			qPresent = append(qPresent, id)
		}
	}
	if len(nodes) == 0 || len(qPresent) == 0 {
		return PPRResult{Scores: map[shared.NodeID]float64{}}
	}

	n := len(nodes)
	personalization := make([]float64, n)
	mass := 1.0 / float64(len(qPresent))
	for _, id := range qPresent {
		personalization[index[id]] = mass
	}

	// transitions[i] holds (destIndex, probability) pairs: id[i]'s
	// outgoing effective weight normalized to sum to 1, or nil if i is
	// dangling (no outgoing entity-to-entity edges).
	transitions := make([][]weightedEdge, n)
	for i, id := range nodes {
		edges := snap.OutgoingEntityEdges(id, nil)
		var total float64
		var row []weightedEdge
		for _, e := range edges {
			if j, ok := index[e.Dst]; ok {
				w := e.EffectiveWeight()
				if w <= 0 {
					continue
				}
				row = append(row, weightedEdge{to: j, weight: w})
				total += w
			}
		}
		if total > 0 {
			for k := range row {
				row[k].weight /= total
			}
			transitions[i] = row
		}
	}

	x := append([]float64{}, personalization...)
	next := make([]float64, n)
	converged := false
	cancelled := false
	iterations := 0

	for iter := 0; iter < maxIter; iter++ {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		iterations = iter + 1
		for i := range next {
			next[i] = 0
		}
		var danglingMass float64
		for i, row := range transitions {
			if row == nil {
				danglingMass += x[i]
				continue
			}
			for _, e := range row {
				next[e.to] += alpha * x[i] * e.weight
			}
		}
		teleport := alpha*danglingMass + (1 - alpha)
		for i := range next {
			next[i] += teleport * personalization[i]
		}

		delta := l1Distance(x, next)
		x, next = next, x
		if delta < tol {
			converged = true
			break
		}
	}

	scores := make(map[shared.NodeID]float64, n)
	for i, id := range nodes {
		scores[id] = x[i]
	}
	return PPRResult{Scores: scores, Converged: converged, Iterations: iterations, Cancelled: cancelled}
}

type weightedEdge struct {
	to     int
	weight float64
}

func l1Distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum
}
