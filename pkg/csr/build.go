package csr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/sanonone/csrgraph/pkg/metrics"
	"github.com/sanonone/csrgraph/pkg/storage/mmap"
)

// Build phase names, as reported in logs and metrics.
const (
	PhaseValidate = "validate"
	PhaseCount    = "count"
	PhaseOffsets  = "offsets"
	PhasePlace    = "place"
	PhasePersist  = "persist"
)

// Build constructs the CSR form of src and persists it under dir, creating
// the directory if needed. src must be sorted by source; Build never sorts.
//
// The regions are filled in place through writable mappings unless
// opts.InMemory is set, in which case they are built in RAM and written
// out at the end. If a phase fails, Build returns its error and leaves
// whatever it already wrote in dir; removing it is up to the caller.
//
// Region files are created only after validation succeeds. A build that
// fails validation leaves dir untouched, so a graph persisted there
// earlier still opens. A mapped build that fails in a later phase has
// already replaced those files with unsealed regions that Open rejects;
// with opts.InMemory nothing is written until every phase has succeeded.
func Build[T NodeID](ctx context.Context, src EdgeSource[T], dir string, opts Options) (*Graph[T], error) {
	if dir == "" {
		return nil, fmt.Errorf("csr: empty destination directory")
	}
	return build(ctx, src, dir, opts)
}

// BuildInMemory constructs the CSR form of src in RAM. The result can be
// written to disk later with Persist.
func BuildInMemory[T NodeID](ctx context.Context, src EdgeSource[T], opts Options) (*Graph[T], error) {
	opts.InMemory = true
	return build(ctx, src, "", opts)
}

type builder[T NodeID] struct {
	opts    Options
	log     *slog.Logger
	buildID uuid.UUID
}

func build[T NodeID](ctx context.Context, src EdgeSource[T], dir string, opts Options) (g *Graph[T], err error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	b := &builder[T]{
		opts:    opts,
		buildID: uuid.New(),
	}
	b.log = opts.Logger.With("build_id", b.buildID)

	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			b.log.Warn("[CSR] Build failed", "dir", dir, "error", err)
		}
		metrics.BuildsTotal.WithLabelValues(outcome).Inc()
	}()

	var sh shape
	if err := b.phase(PhaseValidate, func() (err error) {
		sh, err = validate(ctx, src, opts.Vertices, opts.Workers)
		return err
	}); err != nil {
		return nil, err
	}

	offsets, targets, err := b.allocate(dir, sh)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			offsets.Close()
			targets.Close()
		}
	}()

	off, tgt := offsets.Slice(), targets.Slice()

	if err := b.phase(PhaseCount, func() error {
		return countDegrees(ctx, src, off, sh, opts.Counting, opts.Workers)
	}); err != nil {
		return nil, err
	}

	if err := b.phase(PhaseOffsets, func() error {
		if err := buildOffsets(ctx, off, opts.Workers); err != nil {
			return err
		}
		if uint64(off[len(off)-1]) != sh.edges {
			return fmt.Errorf("%w: degrees sum to %d, validated %d edges", ErrSourceChanged, off[len(off)-1], sh.edges)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := b.phase(PhasePlace, func() error {
		return placeEdges(ctx, src, off, tgt, opts.Workers)
	}); err != nil {
		return nil, err
	}
	metrics.EdgesPlaced.Add(float64(sh.edges))

	g = newGraph(offsets, targets, sh, b.buildID, "")
	if offsets.Mapped() {
		if err := b.phase(PhasePersist, func() error {
			if err := offsets.Seal(); err != nil {
				return err
			}
			return targets.Seal()
		}); err != nil {
			return nil, err
		}
		g.dir = dir
	} else if dir != "" {
		if err := b.phase(PhasePersist, func() error { return g.Persist(dir) }); err != nil {
			return nil, err
		}
	} else if err := errors.Join(offsets.Seal(), targets.Seal()); err != nil {
		return nil, err
	}

	b.log.Info("[CSR] Graph built",
		"dir", dir,
		"vertices", sh.vertices,
		"edges", sh.edges,
		"width", Width[T](),
		"workers", opts.Workers,
		"duration", time.Since(start))
	return g, nil
}

// allocate creates zeroed offsets and targets arrays sized for sh, either
// as writable mappings under dir or in RAM.
func (b *builder[T]) allocate(dir string, sh shape) (*mmap.Array[T], *mmap.Array[T], error) {
	if sh.vertices >= math.MaxInt || sh.edges > math.MaxInt {
		return nil, nil, fmt.Errorf("%w: %d vertices, %d edges", ErrCapacity, sh.vertices, sh.edges)
	}
	nOff, nTgt := int(sh.vertices)+1, int(sh.edges)

	meta := mmap.Meta{Vertices: sh.vertices, Edges: sh.edges, BuildID: b.buildID}
	offMeta, tgtMeta := meta, meta
	offMeta.Kind, tgtMeta.Kind = mmap.KindOffsets, mmap.KindTargets

	if b.opts.InMemory || dir == "" {
		offsets, err := mmap.NewInMemory[T](nOff, offMeta)
		if err != nil {
			return nil, nil, err
		}
		targets, err := mmap.NewInMemory[T](nTgt, tgtMeta)
		if err != nil {
			return nil, nil, err
		}
		return offsets, targets, nil
	}

	offsets, err := mmap.Create[T](filepath.Join(dir, OffsetsFile), nOff, offMeta)
	if err != nil {
		return nil, nil, err
	}
	targets, err := mmap.Create[T](filepath.Join(dir, TargetsFile), nTgt, tgtMeta)
	if err != nil {
		offsets.Close()
		return nil, nil, err
	}
	return offsets, targets, nil
}

// phase runs fn as one build phase. fn only returns after all of its
// workers have joined, which is the barrier between phases.
func (b *builder[T]) phase(name string, fn func() error) error {
	start := time.Now()
	if err := fn(); err != nil {
		return fmt.Errorf("csr: %s phase: %w", name, err)
	}
	elapsed := time.Since(start)
	metrics.BuildPhaseDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	b.log.Debug("[CSR] Phase complete", "phase", name, "duration", elapsed)
	return nil
}
