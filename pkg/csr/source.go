package csr

import (
	"iter"

	"github.com/sanonone/csrgraph/pkg/storage/mmap"
)

// NodeID is the set of unsigned integer types usable as vertex identifiers.
// The same type is used for offsets, so it must also be wide enough to hold
// the edge count.
type NodeID interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Width returns the byte width of T.
func Width[T NodeID]() int { return mmap.Width[T]() }

func maxID[T NodeID]() uint64 { return uint64(^T(0)) }

// Edge is a directed edge.
type Edge[T NodeID] struct {
	Source T
	Target T
}

// EdgeSource is a restartable edge sequence sorted by ascending source.
//
// Every call to Edges must start from the first edge and yield the same
// edges in the same order; the builder scans the source once per phase.
// A non-nil error ends the scan and aborts the build.
type EdgeSource[T NodeID] interface {
	Edges() iter.Seq2[Edge[T], error]
}

// IndexedSource is an EdgeSource with random access. Sources implementing
// it are validated, counted and placed by several workers in parallel.
//
// At must return the same edge for a given index for the whole build and be
// safe for concurrent calls. Placement reports ErrSourceChanged when an
// edge would land outside its vertex's counted range, but edges that move
// between vertices with room left are not detected.
type IndexedSource[T NodeID] interface {
	EdgeSource[T]
	Len() int
	At(i int) Edge[T]
}

// EdgeSlice is an in-memory IndexedSource.
type EdgeSlice[T NodeID] []Edge[T]

func (s EdgeSlice[T]) Edges() iter.Seq2[Edge[T], error] {
	return func(yield func(Edge[T], error) bool) {
		for _, e := range s {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (s EdgeSlice[T]) Len() int { return len(s) }

func (s EdgeSlice[T]) At(i int) Edge[T] { return s[i] }

// EdgeFunc adapts a function returning a fresh iterator to EdgeSource.
type EdgeFunc[T NodeID] func() iter.Seq2[Edge[T], error]

func (f EdgeFunc[T]) Edges() iter.Seq2[Edge[T], error] { return f() }
