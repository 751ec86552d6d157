package csr

import (
	"context"
	"fmt"
	"math"
)

// shape is what validation learns about an edge stream.
type shape struct {
	vertices uint64
	edges    uint64
}

// violation is the first bad edge a validation worker saw.
type violation struct {
	pos uint64
	err error
}

// edgeChecker applies the per-edge checks shared by the sequential and the
// parallel validator.
type edgeChecker[T NodeID] struct {
	declared uint64
}

func (c edgeChecker[T]) check(pos uint64, prev, e Edge[T], first bool) error {
	if !first && e.Source < prev.Source {
		return &UnsortedInputError{Position: pos, Source: uint64(e.Source), Previous: uint64(prev.Source)}
	}
	if c.declared > 0 && (uint64(e.Source) >= c.declared || uint64(e.Target) >= c.declared) {
		return &OutOfRangeError{Position: pos, Source: uint64(e.Source), Target: uint64(e.Target), Vertices: c.declared}
	}
	return nil
}

// validate scans src once, enforcing source order and the declared vertex
// range, and returns the vertex and edge counts.
func validate[T NodeID](ctx context.Context, src EdgeSource[T], declared uint64, workers int) (shape, error) {
	if declared > 0 && declared-1 > maxID[T]() {
		return shape{}, fmt.Errorf("%w: %d vertices do not fit %d-byte ids", ErrCapacity, declared, Width[T]())
	}

	var (
		maxSeen uint64
		edges   uint64
		empty   bool
		err     error
	)
	if idx, ok := src.(IndexedSource[T]); ok && workers > 1 {
		maxSeen, edges, empty, err = validateIndexed(ctx, idx, declared, workers)
	} else {
		maxSeen, edges, empty, err = validateStream(ctx, src, declared)
	}
	if err != nil {
		return shape{}, err
	}

	s := shape{vertices: declared, edges: edges}
	if declared == 0 && !empty {
		if maxSeen == math.MaxUint64 {
			return shape{}, fmt.Errorf("%w: vertex id %d leaves no room for a vertex count", ErrCapacity, maxSeen)
		}
		s.vertices = maxSeen + 1
	}
	if s.edges > maxID[T]() {
		return shape{}, fmt.Errorf("%w: %d edges do not fit %d-byte offsets", ErrCapacity, s.edges, Width[T]())
	}
	return s, nil
}

func validateStream[T NodeID](ctx context.Context, src EdgeSource[T], declared uint64) (maxSeen, edges uint64, empty bool, err error) {
	check := edgeChecker[T]{declared: declared}
	var prev Edge[T]

	for e, srcErr := range src.Edges() {
		if srcErr != nil {
			return 0, 0, false, fmt.Errorf("edge source failed at edge %d: %w", edges, srcErr)
		}
		if err := cancelled(ctx, int(edges)); err != nil {
			return 0, 0, false, err
		}
		if err := check.check(edges, prev, e, edges == 0); err != nil {
			return 0, 0, false, err
		}
		maxSeen = max(maxSeen, uint64(e.Source), uint64(e.Target))
		prev = e
		edges++
	}
	return maxSeen, edges, edges == 0, nil
}

// validateIndexed checks contiguous chunks in parallel. Each worker also
// compares its first edge with the last edge of the previous chunk, and the
// violation with the smallest position wins, so the reported error is the
// one a sequential scan would have hit.
func validateIndexed[T NodeID](ctx context.Context, src IndexedSource[T], declared uint64, workers int) (maxSeen, edges uint64, empty bool, err error) {
	n := src.Len()
	spans := split(n, workers)
	check := edgeChecker[T]{declared: declared}
	maxima := make([]uint64, len(spans))
	found := make([]*violation, len(spans))

	err = runSpans(ctx, spans, func(ctx context.Context, w int, s span) error {
		var prev Edge[T]
		if s.lo > 0 {
			prev = src.At(s.lo - 1)
		}
		var local uint64
		for i := s.lo; i < s.hi; i++ {
			if err := cancelled(ctx, i-s.lo); err != nil {
				return err
			}
			e := src.At(i)
			if err := check.check(uint64(i), prev, e, i == 0); err != nil {
				found[w] = &violation{pos: uint64(i), err: err}
				return nil
			}
			local = max(local, uint64(e.Source), uint64(e.Target))
			prev = e
		}
		maxima[w] = local
		return nil
	})
	if err != nil {
		return 0, 0, false, err
	}

	var first *violation
	for _, v := range found {
		if v != nil && (first == nil || v.pos < first.pos) {
			first = v
		}
	}
	if first != nil {
		return 0, 0, false, first.err
	}

	for _, m := range maxima {
		maxSeen = max(maxSeen, m)
	}
	return maxSeen, uint64(n), n == 0, nil
}
