// Package csr builds and reads directed graphs in Compressed Sparse Row form.
//
// A graph is built once from an edge stream sorted by source and stored in
// two memory-mapped regions: an offsets array of length N+1 and a targets
// array of length E. Vertex v's neighbours are targets[offsets[v]:offsets[v+1]].
// Persisted graphs are reopened by mapping the regions again, without
// touching the original input.
//
// Basic usage:
//
//	g, err := csr.Build[uint32](ctx, csr.EdgeSlice[uint32](edges), "./graph", csr.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer g.Close()
//
//	for v, nbrs := range g.All() {
//	    fmt.Println(v, nbrs)
//	}
//
// Building runs four phases in strict order: validate, count, offsets and
// place. Each phase may use several workers, and the next phase starts
// only after every worker of the previous one has returned.
//
// A Graph is immutable. File-backed graphs are mapped read-only once built,
// so the slices handed out by Neighbors, Offsets and Targets must not be
// written. Any number of goroutines may read a Graph concurrently.
package csr

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/sanonone/csrgraph/pkg/metrics"
	"github.com/sanonone/csrgraph/pkg/storage/mmap"
)

const (
	// OffsetsFile is the name of the offsets region inside a graph directory.
	OffsetsFile = "offsets.csr"
	// TargetsFile is the name of the targets region inside a graph directory.
	TargetsFile = "targets.csr"
)

// Graph is a read-only CSR graph.
type Graph[T NodeID] struct {
	offsets *mmap.Array[T]
	targets *mmap.Array[T]

	// Cached views of the two arrays.
	off []T
	tgt []T

	vertices uint64
	edges    uint64
	buildID  uuid.UUID
	dir      string
	closed   bool
}

func newGraph[T NodeID](offsets, targets *mmap.Array[T], sh shape, buildID uuid.UUID, dir string) *Graph[T] {
	return &Graph[T]{
		offsets:  offsets,
		targets:  targets,
		off:      offsets.Slice(),
		tgt:      targets.Slice(),
		vertices: sh.vertices,
		edges:    sh.edges,
		buildID:  buildID,
		dir:      dir,
	}
}

// VertexCount returns N.
func (g *Graph[T]) VertexCount() uint64 { return g.vertices }

// EdgeCount returns E.
func (g *Graph[T]) EdgeCount() uint64 { return g.edges }

// Width returns the byte width of the vertex ids.
func (g *Graph[T]) Width() int { return Width[T]() }

// BuildID identifies the build that produced the graph. Both regions of a
// persisted graph carry it.
func (g *Graph[T]) BuildID() uuid.UUID { return g.buildID }

// Dir returns the directory holding the graph's regions, or "" for a graph
// that lives only in memory.
func (g *Graph[T]) Dir() string { return g.dir }

// Neighbors returns the targets of v's outgoing edges without copying.
// v must be below VertexCount; the order within the slice is unspecified.
func (g *Graph[T]) Neighbors(v T) []T {
	return g.tgt[g.off[v]:g.off[uint64(v)+1]]
}

// Degree returns the out-degree of v. v must be below VertexCount.
func (g *Graph[T]) Degree(v T) uint64 {
	return uint64(g.off[uint64(v)+1] - g.off[v])
}

// NeighborsChecked is Neighbors with argument and state checks.
func (g *Graph[T]) NeighborsChecked(v uint64) ([]T, error) {
	if g.closed {
		return nil, ErrClosed
	}
	if v >= g.vertices {
		return nil, fmt.Errorf("%w: vertex %d, graph has %d", ErrOutOfRange, v, g.vertices)
	}
	return g.Neighbors(T(v)), nil
}

// All enumerates (vertex, neighbours) pairs in ascending vertex order.
// Every call starts a fresh enumeration.
func (g *Graph[T]) All() iter.Seq2[T, []T] {
	return func(yield func(T, []T) bool) {
		off, tgt := g.off, g.tgt
		for v := uint64(0); v < g.vertices; v++ {
			if !yield(T(v), tgt[off[v]:off[v+1]]) {
				return
			}
		}
	}
}

// Offsets returns the offsets array (length N+1) without copying.
func (g *Graph[T]) Offsets() []T { return g.off }

// Targets returns the targets array (length E) without copying.
func (g *Graph[T]) Targets() []T { return g.tgt }

// Close releases both regions. The files stay on disk. Slices obtained
// from the graph must not be used afterwards.
func (g *Graph[T]) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true
	g.off, g.tgt = nil, nil
	return errors.Join(g.offsets.Close(), g.targets.Close())
}

// Persist writes the graph to dir. A graph that lived only in memory is
// switched over to the new file-backed regions; a graph that is already
// file-backed keeps its current regions and dir receives a copy.
//
// Persisting a file-backed graph to the files it already maps is a no-op,
// whether dir names its own directory directly or through a symlink, a
// hard link or a mount alias. A dir that aliases only one of the two
// mapped regions is rejected.
func (g *Graph[T]) Persist(dir string) error {
	if g.closed {
		return ErrClosed
	}
	if g.dir != "" {
		same, err := g.holdsRegions(dir)
		if err != nil || same {
			return err
		}
	}
	offsets, targets, err := writeRegions(dir, g.off, g.tgt, g.meta())
	if err != nil {
		return err
	}

	if g.offsets.Mapped() {
		return errors.Join(offsets.Close(), targets.Close())
	}

	_ = g.offsets.Close()
	_ = g.targets.Close()
	g.offsets, g.targets = offsets, targets
	g.off, g.tgt = offsets.Slice(), targets.Slice()
	g.dir = dir
	return nil
}

// holdsRegions reports whether the region files under dir are the files g
// currently maps. Creating regions there would truncate the live mapping.
func (g *Graph[T]) holdsRegions(dir string) (bool, error) {
	if sameFile(g.dir, dir) {
		return true, nil
	}
	sameOffsets := sameFile(g.offsets.Path(), filepath.Join(dir, OffsetsFile))
	sameTargets := sameFile(g.targets.Path(), filepath.Join(dir, TargetsFile))
	switch {
	case sameOffsets && sameTargets:
		return true, nil
	case sameOffsets || sameTargets:
		return false, fmt.Errorf("%w: %s shares a region file with the graph in %s", ErrIO, dir, g.dir)
	}
	return false, nil
}

// sameFile reports whether a and b resolve to the same file or directory.
// Paths that do not exist are never the same.
func sameFile(a, b string) bool {
	infoA, err := os.Stat(a)
	if err != nil {
		return false
	}
	infoB, err := os.Stat(b)
	if err != nil {
		return false
	}
	if os.SameFile(infoA, infoB) {
		return true
	}
	realA, errA := filepath.EvalSymlinks(a)
	realB, errB := filepath.EvalSymlinks(b)
	return errA == nil && errB == nil && realA == realB
}

func (g *Graph[T]) meta() mmap.Meta {
	return mmap.Meta{Vertices: g.vertices, Edges: g.edges, BuildID: g.buildID}
}

// writeRegions creates both region files under dir, copies the arrays in
// and seals them.
func writeRegions[T NodeID](dir string, off, tgt []T, meta mmap.Meta) (*mmap.Array[T], *mmap.Array[T], error) {
	offMeta, tgtMeta := meta, meta
	offMeta.Kind, tgtMeta.Kind = mmap.KindOffsets, mmap.KindTargets

	offsets, err := mmap.Create[T](filepath.Join(dir, OffsetsFile), len(off), offMeta)
	if err != nil {
		return nil, nil, err
	}
	targets, err := mmap.Create[T](filepath.Join(dir, TargetsFile), len(tgt), tgtMeta)
	if err != nil {
		offsets.Close()
		return nil, nil, err
	}

	copy(offsets.Slice(), off)
	copy(targets.Slice(), tgt)

	if err := errors.Join(offsets.Seal(), targets.Seal()); err != nil {
		offsets.Close()
		targets.Close()
		return nil, nil, err
	}
	return offsets, targets, nil
}

// Open maps a graph persisted under dir. Both headers are checked against
// each other and against T, then the offsets are verified to be a valid
// prefix sum ending at E and every target to be below N. A graph returned
// by Open therefore never fails lazily during traversal.
func Open[T NodeID](ctx context.Context, dir string, opts Options) (g *Graph[T], err error) {
	opts = opts.withDefaults()
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.GraphsOpened.WithLabelValues(outcome).Inc()
	}()

	offsets, err := mmap.OpenReadOnly[T](filepath.Join(dir, OffsetsFile))
	if err != nil {
		return nil, err
	}
	targets, err := mmap.OpenReadOnly[T](filepath.Join(dir, TargetsFile))
	if err != nil {
		offsets.Close()
		return nil, err
	}

	g, err = checkRegions(ctx, offsets, targets, opts.Workers, dir)
	if err != nil {
		offsets.Close()
		targets.Close()
		return nil, err
	}

	opts.Logger.Info("[CSR] Graph opened",
		"dir", dir,
		"vertices", g.vertices,
		"edges", g.edges,
		"width", g.Width(),
		"build_id", g.buildID,
		"duration", time.Since(start))
	return g, nil
}

func checkRegions[T NodeID](ctx context.Context, offsets, targets *mmap.Array[T], workers int, dir string) (*Graph[T], error) {
	oh, th := offsets.Header(), targets.Header()

	switch {
	case oh.Kind != mmap.KindOffsets:
		return nil, fmt.Errorf("%w: %s holds %s, not offsets", ErrFormat, offsets.Path(), oh.Kind)
	case th.Kind != mmap.KindTargets:
		return nil, fmt.Errorf("%w: %s holds %s, not targets", ErrFormat, targets.Path(), th.Kind)
	case oh.Vertices != th.Vertices || oh.Edges != th.Edges || oh.BuildID != th.BuildID:
		return nil, fmt.Errorf("%w: regions in %s belong to different builds", ErrFormat, dir)
	case oh.Length == 0 || oh.Length != oh.Vertices+1:
		return nil, fmt.Errorf("%w: offsets length %d for %d vertices", ErrFormat, oh.Length, oh.Vertices)
	case th.Length != th.Edges:
		return nil, fmt.Errorf("%w: targets length %d for %d edges", ErrFormat, th.Length, th.Edges)
	}

	sh := shape{vertices: oh.Vertices, edges: oh.Edges}
	if err := verifyOffsets(ctx, offsets.Slice(), sh.edges, workers); err != nil {
		return nil, err
	}
	if err := verifyTargets(ctx, targets.Slice(), sh.vertices, workers); err != nil {
		return nil, err
	}
	return newGraph(offsets, targets, sh, oh.BuildID, dir), nil
}

// verifyOffsets checks offsets[0] = 0, offsets[N] = E and that the array
// never decreases. Each chunk also compares its first element with the
// last element of the previous chunk.
func verifyOffsets[T NodeID](ctx context.Context, off []T, edges uint64, workers int) error {
	if off[0] != 0 {
		return fmt.Errorf("%w: offsets[0] = %d", ErrFormat, off[0])
	}
	if last := uint64(off[len(off)-1]); last != edges {
		return fmt.Errorf("%w: offsets end at %d, expected %d edges", ErrFormat, last, edges)
	}
	return runSpans(ctx, split(len(off)-1, workers), func(ctx context.Context, _ int, s span) error {
		for i := s.lo; i < s.hi; i++ {
			if err := cancelled(ctx, i-s.lo); err != nil {
				return err
			}
			if off[i+1] < off[i] {
				return fmt.Errorf("%w: offsets decrease at vertex %d", ErrFormat, i)
			}
		}
		return nil
	})
}

// verifyTargets checks that every target is a valid vertex id.
func verifyTargets[T NodeID](ctx context.Context, tgt []T, vertices uint64, workers int) error {
	return runSpans(ctx, split(len(tgt), workers), func(ctx context.Context, _ int, s span) error {
		for i := s.lo; i < s.hi; i++ {
			if err := cancelled(ctx, i-s.lo); err != nil {
				return err
			}
			if uint64(tgt[i]) >= vertices {
				return fmt.Errorf("%w: target %d at edge %d, graph has %d vertices", ErrFormat, tgt[i], i, vertices)
			}
		}
		return nil
	})
}
