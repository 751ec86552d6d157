package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors are registered on the default registry through promauto.

var (
	// BuildPhaseDuration measures each construction phase (validate, count,
	// offsets, place, persist).
	BuildPhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "csrgraph_build_phase_duration_seconds",
			Help:    "Duration of CSR build phases in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms .. ~4min
		},
		[]string{"phase"},
	)

	// BuildsTotal counts finished builds by outcome ("ok" or "error").
	BuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csrgraph_builds_total",
			Help: "Total number of CSR builds by outcome",
		},
		[]string{"outcome"},
	)

	// EdgesPlaced counts edges written into target arrays.
	EdgesPlaced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "csrgraph_edges_placed_total",
			Help: "Total number of edges placed by CSR builds",
		},
	)

	// GraphsOpened counts Open calls by outcome ("ok" or "error").
	GraphsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csrgraph_graphs_opened_total",
			Help: "Total number of persisted graphs opened",
		},
		[]string{"outcome"},
	)
)
