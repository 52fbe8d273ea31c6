// Package cluster partitions records into candidate individuals with
// threshold-gated union-find.
//
// The union-find arena is plain integer indexes with path compression,
// fully decoupled from persistence. Pairs are applied in a canonical sorted
// order, so the final partition never depends on the order pairs arrived.
package cluster

import (
	"sort"

	"resolute/internal/resolution/models"
	id "resolute/pkg/domain"
	dErrors "resolute/pkg/errors"
)

// Config carries the confidence thresholds for an engagement.
type Config struct {
	// Reject is the floor of the human-confirmation band. Pairs below it
	// stay separate individuals.
	Reject float64
	// Accept is the auto-accept threshold. Pairs at or above it union
	// immediately.
	Accept float64
}

// DefaultConfig returns the standard 0.60 / 0.80 bands.
func DefaultConfig() Config { return Config{Reject: 0.60, Accept: 0.80} }

// NewConfig validates threshold overrides. The bands must be monotonic:
// 0 < reject < accept <= 1.
func NewConfig(reject, accept float64) (Config, error) {
	if reject <= 0 || accept > 1 || reject >= accept {
		return Config{}, dErrors.Newf(dErrors.CodeInvalidInput,
			"thresholds must satisfy 0 < reject (%.2f) < accept (%.2f) <= 1", reject, accept)
	}
	return Config{Reject: reject, Accept: accept}, nil
}

// Cluster is one candidate individual: its member records and the minimum
// confidence across the edges that hold it together. Singletons carry 1.0.
type Cluster struct {
	Records       []id.RecordID // sorted
	MinConfidence float64

	acceptedEdges []models.CandidatePair
}

// Edges returns the accepted edges spanning the cluster.
func (c Cluster) Edges() []models.CandidatePair { return c.acceptedEdges }

// PendingEdge is a review-band pair whose endpoints ended up in different
// clusters. The workflow engine turns these into pending merge links.
type PendingEdge struct {
	Pair models.CandidatePair
}

// Result is the deterministic outcome of partitioning one batch.
type Result struct {
	Clusters []Cluster
	Pending  []PendingEdge
}

// Engine applies scored pairs to a union-find partition. Not safe for
// concurrent use; one batch owns one Engine (single-writer discipline).
type Engine struct {
	cfg Config
}

// New builds an Engine with the given thresholds.
func New(cfg Config) *Engine { return &Engine{cfg: cfg} }

// Partition groups records into clusters. Pairs at or above the accept
// threshold union immediately; pairs in the review band become pending
// edges between the final clusters; pairs below the reject threshold and
// pairs previously rejected by a reviewer are discarded. The rejected set
// is keyed by stable pair identity so a human rejection survives re-runs.
func (e *Engine) Partition(
	records []id.RecordID,
	pairs []models.CandidatePair,
	rejected map[id.PairKey]bool,
) Result {
	index := make(map[id.RecordID]int, len(records))
	ordered := append([]id.RecordID(nil), records...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })
	for i, rid := range ordered {
		index[rid] = i
	}

	// Canonical pair order: endpoints sorted within each pair, pairs sorted
	// by (A, B). This is what makes the partition order-independent.
	canonical := make([]models.CandidatePair, 0, len(pairs))
	for _, p := range pairs {
		if p.A > p.B {
			p.A, p.B = p.B, p.A
		}
		canonical = append(canonical, p)
	}
	sort.Slice(canonical, func(i, j int) bool {
		if canonical[i].A != canonical[j].A {
			return canonical[i].A < canonical[j].A
		}
		return canonical[i].B < canonical[j].B
	})

	uf := newUnionFind(len(ordered))
	accepted := make([]models.CandidatePair, 0, len(canonical))
	review := make([]models.CandidatePair, 0)

	for _, p := range canonical {
		ia, okA := index[p.A]
		ib, okB := index[p.B]
		if !okA || !okB || p.A == p.B {
			continue
		}
		if rejected[p.Key()] {
			continue
		}
		switch {
		case p.Confidence >= e.cfg.Accept:
			uf.union(ia, ib)
			accepted = append(accepted, p)
		case p.Confidence >= e.cfg.Reject:
			review = append(review, p)
		}
	}

	// Collect members by root, keyed by the smallest member index so
	// cluster identity is deterministic.
	members := make(map[int][]int)
	for i := range ordered {
		root := uf.find(i)
		members[root] = append(members[root], i)
	}

	clusterOf := make(map[id.RecordID]int, len(ordered))
	roots := make([]int, 0, len(members))
	for root := range members {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	clusters := make([]Cluster, 0, len(roots))
	for _, root := range roots {
		c := Cluster{MinConfidence: 1.0}
		for _, i := range members[root] {
			c.Records = append(c.Records, ordered[i])
			clusterOf[ordered[i]] = len(clusters)
		}
		clusters = append(clusters, c)
	}

	// Merge-confidence is the minimum over the spanning edges, which
	// surfaces any weak transitive link.
	for _, p := range accepted {
		ci := clusterOf[p.A]
		if p.Confidence < clusters[ci].MinConfidence {
			clusters[ci].MinConfidence = p.Confidence
		}
		clusters[ci].acceptedEdges = append(clusters[ci].acceptedEdges, p)
	}

	// Review-band edges whose endpoints landed in the same cluster are
	// already covered by stronger evidence; the rest become pending edges,
	// one per cluster pair, keeping the least certain edge so reviewers see
	// the conservative number.
	type clusterPair struct{ a, b int }
	pendingByPair := make(map[clusterPair]models.CandidatePair)
	for _, p := range review {
		ca, cb := clusterOf[p.A], clusterOf[p.B]
		if ca == cb {
			continue
		}
		if ca > cb {
			ca, cb = cb, ca
		}
		key := clusterPair{ca, cb}
		if cur, ok := pendingByPair[key]; !ok || p.Confidence < cur.Confidence {
			pendingByPair[key] = p
		}
	}

	keys := make([]clusterPair, 0, len(pendingByPair))
	for k := range pendingByPair {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].a != keys[j].a {
			return keys[i].a < keys[j].a
		}
		return keys[i].b < keys[j].b
	})

	pending := make([]PendingEdge, 0, len(keys))
	for _, k := range keys {
		pending = append(pending, PendingEdge{Pair: pendingByPair[k]})
	}

	return Result{Clusters: clusters, Pending: pending}
}

// unionFind is a path-compressed disjoint-set arena over integer indexes.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]] // path halving
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.rank[ra] < uf.rank[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	if uf.rank[ra] == uf.rank[rb] {
		uf.rank[ra]++
	}
}
