package csr

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// checkEvery is how many loop iterations pass between context checks in
// long scans. Must be a power of two.
const checkEvery = 1 << 16

// minChunk is the smallest chunk worth handing to a separate worker.
// Tests lower it to split small inputs.
var minChunk = 4096

// span is the half-open index range [lo, hi).
type span struct {
	lo, hi int
}

// split cuts [0, n) into at most parts contiguous spans of near-equal size,
// none smaller than minChunk unless n itself is. No span is empty.
func split(n, parts int) []span {
	if n <= 0 {
		return nil
	}
	if most := (n + minChunk - 1) / minChunk; parts > most {
		parts = most
	}
	if parts < 1 {
		parts = 1
	}

	spans := make([]span, 0, parts)
	size, extra := n/parts, n%parts
	lo := 0
	for i := 0; i < parts; i++ {
		hi := lo + size
		if i < extra {
			hi++
		}
		spans = append(spans, span{lo, hi})
		lo = hi
	}
	return spans
}

// runSpans runs fn for every span on its own goroutine and waits for all of
// them. The first error cancels the context seen by the others and is
// returned once everyone has joined, so on return no worker is running.
func runSpans(ctx context.Context, spans []span, fn func(ctx context.Context, w int, s span) error) error {
	if len(spans) == 1 {
		return fn(ctx, 0, spans[0])
	}
	g, ctx := errgroup.WithContext(ctx)
	for w, s := range spans {
		g.Go(func() error { return fn(ctx, w, s) })
	}
	return g.Wait()
}

// cancelled returns ctx.Err() every checkEvery iterations.
func cancelled(ctx context.Context, i int) error {
	if i&(checkEvery-1) != 0 {
		return nil
	}
	return ctx.Err()
}
