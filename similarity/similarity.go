// Package similarity partitions a fingerprint index into duplicate groups
// using single-link clustering under a strict distance threshold.
//
// Every pair is compared, so grouping costs O(N²) distance evaluations.
// That is fine for hundreds to low thousands of images; a prefix-bucketed
// candidate generator could replace Edges without changing Components.
package similarity

import (
	"imagededup/logging"
	"imagededup/types"
)

// Edge is a pair of index positions closer than the threshold, i < j
type Edge struct {
	I, J     int
	Distance int
}

// Grouper computes duplicate groups for a threshold
type Grouper struct {
	Threshold int
	// OnCompare, when set, is called once per evaluated pair (for progress)
	OnCompare func()
}

// NewGrouper creates a grouper for threshold; distances < threshold are edges
func NewGrouper(threshold int) *Grouper {
	return &Grouper{Threshold: threshold}
}

// Edges returns every pair with distance strictly below the threshold, in
// scan order of (I, J). Incomparable fingerprints never form an edge.
func (g *Grouper) Edges(index *types.FingerprintIndex) []Edge {
	var edges []Edge
	n := index.Len()
	for i := 0; i < n; i++ {
		a := index.Entry(i)
		for j := i + 1; j < n; j++ {
			b := index.Entry(j)
			if g.OnCompare != nil {
				g.OnCompare()
			}
			distance, err := a.Fingerprint.Distance(b.Fingerprint)
			if err != nil {
				logging.LogWarning("cannot compare %s and %s: %v", a.Path, b.Path, err)
				continue
			}
			if distance < g.Threshold {
				edges = append(edges, Edge{I: i, J: j, Distance: distance})
			}
		}
	}
	return edges
}

// Group returns the connected components of size >= 2, ordered by their
// first member's scan position, with members in scan order
func (g *Grouper) Group(index *types.FingerprintIndex) []types.DuplicateGroup {
	return Components(index, g.Edges(index))
}

// Components builds groups from a precomputed edge list
func Components(index *types.FingerprintIndex, edges []Edge) []types.DuplicateGroup {
	n := index.Len()
	sets := newDisjointSet(n)
	for _, edge := range edges {
		sets.union(edge.I, edge.J)
	}

	// Roots are always the smallest position in their set, so walking
	// positions in order discovers groups in order of their first member.
	members := make(map[int][]int)
	var roots []int
	for i := 0; i < n; i++ {
		root := sets.find(i)
		if _, seen := members[root]; !seen {
			roots = append(roots, root)
		}
		members[root] = append(members[root], i)
	}

	var groups []types.DuplicateGroup
	for _, root := range roots {
		positions := members[root]
		if len(positions) < 2 {
			continue
		}
		group := types.DuplicateGroup{Members: make([]types.ImageRef, len(positions))}
		for k, pos := range positions {
			group.Members[k] = index.Entry(pos).Path
		}
		groups = append(groups, group)
	}
	return groups
}

// disjointSet is a union-find whose root is the minimum element
type disjointSet struct {
	parent []int
}

func newDisjointSet(n int) *disjointSet {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &disjointSet{parent: parent}
}

func (s *disjointSet) find(x int) int {
	for s.parent[x] != x {
		s.parent[x] = s.parent[s.parent[x]]
		x = s.parent[x]
	}
	return x
}

func (s *disjointSet) union(a, b int) {
	ra, rb := s.find(a), s.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	s.parent[rb] = ra
}
