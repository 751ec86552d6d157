package csr

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/klauspost/cpuid/v2"
	"gopkg.in/yaml.v3"
)

// CountStrategy selects how out-degrees are counted.
type CountStrategy string

const (
	// CountAuto picks sequential counting for one worker or non-indexed
	// sources, atomic counters for small vertex counts and per-worker
	// histograms otherwise.
	CountAuto CountStrategy = "auto"
	// CountSequential counts in a single pass on the calling goroutine.
	CountSequential CountStrategy = "sequential"
	// CountHistogram gives each worker a private histogram over its edge
	// chunk and merges them element-wise.
	CountHistogram CountStrategy = "histogram"
	// CountAtomic shares one array of atomic counters between workers.
	CountAtomic CountStrategy = "atomic"
)

// atomicVertexLimit is the largest vertex count for which CountAuto
// prefers shared atomic counters over histograms.
const atomicVertexLimit = 1 << 16

// Options configures Build, BuildInMemory and Open.
type Options struct {
	// Workers is the number of goroutines used inside each phase.
	// Zero means one per logical core.
	Workers int `yaml:"workers"`

	// Vertices declares the vertex count N. Every edge endpoint must be
	// below it. Zero infers N as the largest endpoint plus one.
	Vertices uint64 `yaml:"vertices"`

	// Counting selects the degree counting strategy (default "auto").
	Counting CountStrategy `yaml:"counting"`

	// InMemory builds both arrays in RAM and writes them to disk only once
	// the build has succeeded. Suited to graphs that fit in memory.
	InMemory bool `yaml:"in_memory"`

	// Logger receives build and open events. Nil means slog.Default().
	Logger *slog.Logger `yaml:"-"`
}

// DefaultOptions returns options that infer N and use every logical core.
func DefaultOptions() Options {
	return Options{
		Workers:  defaultWorkers(),
		Counting: CountAuto,
	}
}

// LoadOptions reads YAML options from path on top of DefaultOptions.
// Unknown keys are rejected. An empty path returns the defaults.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()

	if path == "" {
		return opts, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return opts, fmt.Errorf("failed to open csr options: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	if err := decoder.Decode(&opts); err != nil {
		return opts, fmt.Errorf("YAML syntax error in csr options: %w", err)
	}

	if err := opts.validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = defaultWorkers()
	}
	if o.Counting == "" {
		o.Counting = CountAuto
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func (o Options) validate() error {
	switch o.Counting {
	case "", CountAuto, CountSequential, CountHistogram, CountAtomic:
	default:
		return fmt.Errorf("csr: unknown counting strategy %q", o.Counting)
	}
	if o.Workers < 0 {
		return fmt.Errorf("csr: workers must be >= 0, got %d", o.Workers)
	}
	return nil
}

func defaultWorkers() int {
	n := runtime.GOMAXPROCS(0)
	if cores := cpuid.CPU.LogicalCores; cores > 0 && cores < n {
		n = cores
	}
	return n
}
