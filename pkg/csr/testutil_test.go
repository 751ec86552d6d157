package csr

import (
	"io"
	"iter"
	"log/slog"
	"math/rand"
	"slices"
	"testing"
)

// exampleEdges is the five-edge graph used throughout the tests.
func exampleEdges[T NodeID]() EdgeSlice[T] {
	return EdgeSlice[T]{{0, 1}, {0, 2}, {1, 5}, {1, 2}, {4, 7}}
}

func quietOptions() Options {
	opts := DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return opts
}

// withMinChunk lowers the chunking threshold so small inputs are split
// across workers.
func withMinChunk(t *testing.T, n int) {
	t.Helper()
	old := minChunk
	minChunk = n
	t.Cleanup(func() { minChunk = old })
}

// randomSorted returns edges sorted by source over n vertices, with a few
// heavy vertices so that groups straddle chunk boundaries.
func randomSorted(seed int64, n, edges int) EdgeSlice[uint32] {
	rng := rand.New(rand.NewSource(seed))
	out := make(EdgeSlice[uint32], 0, edges)
	for len(out) < edges {
		src := uint32(rng.Intn(n))
		deg := 1 + rng.Intn(8)
		if rng.Intn(50) == 0 {
			deg = 500 + rng.Intn(1500)
		}
		for i := 0; i < deg && len(out) < edges; i++ {
			out = append(out, Edge[uint32]{Source: src, Target: uint32(rng.Intn(n))})
		}
	}
	slices.SortStableFunc(out, func(a, b Edge[uint32]) int {
		return int(a.Source) - int(b.Source)
	})
	return out
}

// rawDegrees counts out-degrees straight from the input.
func rawDegrees[T NodeID](edges []Edge[T], n uint64) []uint64 {
	deg := make([]uint64, n)
	for _, e := range edges {
		deg[e.Source]++
	}
	return deg
}

// adjacency copies every neighbour list, sorted, for comparisons that
// ignore the order within a vertex group.
func adjacency[T NodeID](g *Graph[T]) [][]T {
	out := make([][]T, 0, g.VertexCount())
	for _, nbrs := range g.All() {
		c := slices.Clone(nbrs)
		slices.Sort(c)
		out = append(out, c)
	}
	return out
}

// scanCounter wraps a source and counts how many scans were started.
type scanCounter[T NodeID] struct {
	src   EdgeSource[T]
	scans int
	// onScan may replace the sequence for a given scan number (1-based).
	onScan func(scan int, seq iter.Seq2[Edge[T], error]) iter.Seq2[Edge[T], error]
}

func (s *scanCounter[T]) Edges() iter.Seq2[Edge[T], error] {
	s.scans++
	seq := s.src.Edges()
	if s.onScan != nil {
		return s.onScan(s.scans, seq)
	}
	return seq
}
