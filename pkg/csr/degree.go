package csr

import (
	"context"
	"fmt"
	"sync/atomic"
)

// countDegrees stores the out-degree of every vertex v at offsets[v+1].
// offsets must be zeroed and have length N+1.
func countDegrees[T NodeID](ctx context.Context, src EdgeSource[T], offsets []T, sh shape, strategy CountStrategy, workers int) error {
	idx, indexed := src.(IndexedSource[T])
	switch strategy {
	case CountAuto:
		switch {
		case !indexed || workers == 1 || idx.Len() < 2*minChunk:
			strategy = CountSequential
		case sh.vertices <= atomicVertexLimit:
			strategy = CountAtomic
		default:
			strategy = CountHistogram
		}
	case CountHistogram, CountAtomic:
		// Both need random access; a plain stream falls back to one pass.
		if !indexed {
			strategy = CountSequential
		}
	}

	switch strategy {
	case CountHistogram:
		return countHistogram(ctx, idx, offsets, workers)
	case CountAtomic:
		return countAtomic(ctx, idx, offsets, workers)
	default:
		return countSequential(ctx, src, offsets, sh)
	}
}

func countSequential[T NodeID](ctx context.Context, src EdgeSource[T], offsets []T, sh shape) error {
	n := uint64(len(offsets) - 1)
	var seen uint64
	for e, err := range src.Edges() {
		if err != nil {
			return fmt.Errorf("edge source failed at edge %d: %w", seen, err)
		}
		if err := cancelled(ctx, int(seen)); err != nil {
			return err
		}
		if uint64(e.Source) >= n || seen >= sh.edges {
			return fmt.Errorf("%w: edge %d", ErrSourceChanged, seen)
		}
		offsets[uint64(e.Source)+1]++
		seen++
	}
	if seen != sh.edges {
		return fmt.Errorf("%w: counted %d edges, validated %d", ErrSourceChanged, seen, sh.edges)
	}
	return nil
}

// countHistogram gives every worker a private histogram over a contiguous
// edge chunk. Because sources are sorted, a chunk only touches the vertex
// range between its first and last source, so each histogram is sized to
// that range. Merging runs in parallel over disjoint vertex ranges, so
// every output slot has exactly one writer.
func countHistogram[T NodeID](ctx context.Context, src IndexedSource[T], offsets []T, workers int) error {
	spans := split(src.Len(), workers)
	type histogram struct {
		base   int
		counts []T
	}
	locals := make([]histogram, len(spans))

	err := runSpans(ctx, spans, func(ctx context.Context, w int, s span) error {
		base := int(src.At(s.lo).Source)
		last := int(src.At(s.hi - 1).Source)
		counts := make([]T, last-base+1)
		for i := s.lo; i < s.hi; i++ {
			if err := cancelled(ctx, i-s.lo); err != nil {
				return err
			}
			counts[int(src.At(i).Source)-base]++
		}
		locals[w] = histogram{base: base, counts: counts}
		return nil
	})
	if err != nil {
		return err
	}

	n := len(offsets) - 1
	return runSpans(ctx, split(n, workers), func(ctx context.Context, _ int, vs span) error {
		for _, h := range locals {
			lo := max(vs.lo, h.base)
			hi := min(vs.hi, h.base+len(h.counts))
			for v := lo; v < hi; v++ {
				offsets[v+1] += h.counts[v-h.base]
			}
		}
		return ctx.Err()
	})
}

// countAtomic shares one counter per vertex between all workers.
func countAtomic[T NodeID](ctx context.Context, src IndexedSource[T], offsets []T, workers int) error {
	n := len(offsets) - 1
	counters := make([]atomic.Uint64, n)

	err := runSpans(ctx, split(src.Len(), workers), func(ctx context.Context, _ int, s span) error {
		for i := s.lo; i < s.hi; i++ {
			if err := cancelled(ctx, i-s.lo); err != nil {
				return err
			}
			counters[src.At(i).Source].Add(1)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return runSpans(ctx, split(n, workers), func(ctx context.Context, _ int, vs span) error {
		for v := vs.lo; v < vs.hi; v++ {
			offsets[v+1] = T(counters[v].Load())
		}
		return ctx.Err()
	})
}

// buildOffsets turns degrees stored at offsets[v+1] into the exclusive
// prefix sum offsets[v] = sum of degrees of vertices below v. offsets[0]
// must be zero.
//
// With several workers it runs the usual two-pass scan: every chunk sums
// its degrees, the chunk totals are scanned sequentially into bases, then
// every chunk scans itself again starting from its base.
func buildOffsets[T NodeID](ctx context.Context, offsets []T, workers int) error {
	degrees := offsets[1:]
	spans := split(len(degrees), workers)
	if len(spans) <= 1 {
		var sum T
		for i := range degrees {
			sum += degrees[i]
			degrees[i] = sum
		}
		return nil
	}

	totals := make([]T, len(spans))
	err := runSpans(ctx, spans, func(ctx context.Context, w int, s span) error {
		var sum T
		for _, d := range degrees[s.lo:s.hi] {
			sum += d
		}
		totals[w] = sum
		return ctx.Err()
	})
	if err != nil {
		return err
	}

	bases := make([]T, len(spans))
	var running T
	for w, t := range totals {
		bases[w] = running
		running += t
	}

	return runSpans(ctx, spans, func(ctx context.Context, w int, s span) error {
		sum := bases[w]
		for i := s.lo; i < s.hi; i++ {
			sum += degrees[i]
			degrees[i] = sum
		}
		return ctx.Err()
	})
}
