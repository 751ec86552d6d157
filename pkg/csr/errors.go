package csr

import (
	"errors"
	"fmt"

	"github.com/sanonone/csrgraph/pkg/storage/mmap"
)

// Sentinel errors. Storage failures come from pkg/storage/mmap and are
// re-exported here so callers only need one package for errors.Is.
var (
	// ErrFormat indicates a persisted region that is malformed, inconsistent
	// with its header, or inconsistent with its sibling region.
	ErrFormat = mmap.ErrFormat
	// ErrIO indicates a filesystem or mapping failure.
	ErrIO = mmap.ErrIO
	// ErrCapacity indicates that the NodeID width cannot represent the
	// vertex or edge count, or that a region is not addressable.
	ErrCapacity = mmap.ErrCapacity

	// ErrUnsortedInput matches *UnsortedInputError.
	ErrUnsortedInput = errors.New("csr: edges not sorted by source")
	// ErrOutOfRange matches *OutOfRangeError and out-of-range vertex lookups.
	ErrOutOfRange = errors.New("csr: vertex id out of range")
	// ErrSourceChanged indicates an edge source that yielded different
	// edges on a later scan than on the validation scan.
	ErrSourceChanged = errors.New("csr: edge source changed between scans")
	// ErrClosed indicates use of a graph after Close.
	ErrClosed = errors.New("csr: graph is closed")
)

// UnsortedInputError reports the first edge whose source is smaller than
// the source of the edge before it.
type UnsortedInputError struct {
	Position uint64 // zero-based index of the offending edge
	Source   uint64
	Previous uint64
}

func (e *UnsortedInputError) Error() string {
	return fmt.Sprintf("csr: edge %d has source %d after source %d", e.Position, e.Source, e.Previous)
}

// Is makes errors.Is(err, ErrUnsortedInput) work.
func (e *UnsortedInputError) Is(target error) bool { return target == ErrUnsortedInput }

// OutOfRangeError reports an edge referencing a vertex outside [0, Vertices).
type OutOfRangeError struct {
	Position uint64
	Source   uint64
	Target   uint64
	Vertices uint64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("csr: edge %d (%d -> %d) outside declared vertex count %d",
		e.Position, e.Source, e.Target, e.Vertices)
}

// Is makes errors.Is(err, ErrOutOfRange) work.
func (e *OutOfRangeError) Is(target error) bool { return target == ErrOutOfRange }
