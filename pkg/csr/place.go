package csr

import (
	"context"
	"fmt"
	"sync/atomic"
)

// placeEdges writes every edge target into targets[offsets[v]:offsets[v+1]]
// of its source v. offsets must be final.
func placeEdges[T NodeID](ctx context.Context, src EdgeSource[T], offsets, targets []T, workers int) error {
	if idx, ok := src.(IndexedSource[T]); ok && workers > 1 {
		if spans := split(idx.Len(), workers); len(spans) > 1 {
			return placeIndexed(ctx, idx, spans, offsets, targets)
		}
	}
	return placeStream(ctx, src, offsets, targets)
}

// placeStream rescans a sorted stream with a single cursor that jumps to
// offsets[v] whenever the source changes. Anything that would write
// outside a vertex's range means the stream differs from the one that was
// validated and counted.
func placeStream[T NodeID](ctx context.Context, src EdgeSource[T], offsets, targets []T) error {
	n := uint64(len(offsets) - 1)
	var (
		placed   uint64
		current  uint64
		cur, end uint64
	)

	for e, err := range src.Edges() {
		if err != nil {
			return fmt.Errorf("edge source failed at edge %d: %w", placed, err)
		}
		if err := cancelled(ctx, int(placed)); err != nil {
			return err
		}

		s, t := uint64(e.Source), uint64(e.Target)
		if s >= n || t >= n {
			return fmt.Errorf("%w: edge %d (%d -> %d)", ErrSourceChanged, placed, s, t)
		}
		if placed == 0 || s != current {
			if placed > 0 && s < current {
				return fmt.Errorf("%w: edge %d out of order", ErrSourceChanged, placed)
			}
			current = s
			cur, end = uint64(offsets[s]), uint64(offsets[s+1])
		}
		if cur >= end {
			return fmt.Errorf("%w: vertex %d has more edges than counted", ErrSourceChanged, s)
		}
		targets[cur] = e.Target
		cur++
		placed++
	}

	if placed != uint64(len(targets)) {
		return fmt.Errorf("%w: placed %d edges, counted %d", ErrSourceChanged, placed, len(targets))
	}
	return nil
}

// placeIndexed places contiguous edge chunks in parallel.
//
// Every vertex gets a write cursor starting at offsets[v]. Ranges of
// distinct vertices are disjoint, so a vertex whose edges all fall inside
// one chunk is advanced with plain increments by that chunk's worker
// alone. A vertex whose group straddles a chunk boundary is shared by
// neighbouring workers and advances an atomic cursor instead.
func placeIndexed[T NodeID](ctx context.Context, src IndexedSource[T], spans []span, offsets, targets []T) error {
	n := len(offsets) - 1
	cursor := make([]T, n)
	copy(cursor, offsets[:n])

	shared := make(map[T]*atomic.Uint64)
	for _, s := range spans[1:] {
		v := src.At(s.lo).Source
		if uint64(v) < uint64(n) && src.At(s.lo-1).Source == v {
			if _, ok := shared[v]; !ok {
				c := new(atomic.Uint64)
				c.Store(uint64(offsets[v]))
				shared[v] = c
			}
		}
	}

	return runSpans(ctx, spans, func(ctx context.Context, _ int, s span) error {
		// Only the chunk's first and last source can be shared.
		first, last := src.At(s.lo).Source, src.At(s.hi-1).Source
		firstShared, lastShared := shared[first], shared[last]

		for i := s.lo; i < s.hi; i++ {
			if err := cancelled(ctx, i-s.lo); err != nil {
				return err
			}
			e := src.At(i)
			v := uint64(e.Source)
			if v >= uint64(n) || uint64(e.Target) >= uint64(n) {
				return fmt.Errorf("%w: edge %d (%d -> %d)", ErrSourceChanged, i, v, uint64(e.Target))
			}

			var c *atomic.Uint64
			switch e.Source {
			case first:
				c = firstShared
			case last:
				c = lastShared
			}

			var slot uint64
			if c != nil {
				slot = c.Add(1) - 1
			} else {
				slot = uint64(cursor[v])
				cursor[v]++
			}
			if slot >= uint64(offsets[v+1]) {
				return fmt.Errorf("%w: vertex %d has more edges than counted", ErrSourceChanged, v)
			}
			targets[slot] = e.Target
		}
		return nil
	})
}
