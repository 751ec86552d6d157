package gonumcsr

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/sanonone/csrgraph/pkg/csr"
)

func exampleGraph(t *testing.T) *Directed[uint32] {
	t.Helper()
	opts := csr.DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	opts.Vertices = 8

	edges := csr.EdgeSlice[uint32]{{Source: 0, Target: 1}, {Source: 0, Target: 2}, {Source: 1, Target: 5}, {Source: 1, Target: 2}, {Source: 4, Target: 7}}
	g, err := csr.Build[uint32](context.Background(), edges, t.TempDir(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	return New(g)
}

func ids(nodes graph.Nodes) []int64 {
	var out []int64
	for nodes.Next() {
		out = append(out, nodes.Node().ID())
	}
	return out
}

func TestDirected_Nodes(t *testing.T) {
	d := exampleGraph(t)

	nodes := d.Nodes()
	require.Equal(t, 8, nodes.Len())
	require.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7}, ids(nodes))

	require.NotNil(t, d.Node(7))
	require.Nil(t, d.Node(8))
	require.Nil(t, d.Node(-1))
}

func TestDirected_FromAndTo(t *testing.T) {
	d := exampleGraph(t)

	from := d.From(1)
	require.Equal(t, 2, from.Len())
	require.Equal(t, []int64{5, 2}, ids(from))
	require.Zero(t, from.Len())
	from.Reset()
	require.Equal(t, []int64{5, 2}, ids(from), "Reset restarts the iteration")

	require.Empty(t, ids(d.From(3)))
	require.Empty(t, ids(d.From(100)))

	require.Equal(t, []int64{0, 1}, ids(d.To(2)))
	require.Empty(t, ids(d.To(0)))
}

func TestDirected_Edges(t *testing.T) {
	d := exampleGraph(t)

	require.True(t, d.HasEdgeFromTo(4, 7))
	require.False(t, d.HasEdgeFromTo(7, 4))
	require.True(t, d.HasEdgeBetween(7, 4))
	require.False(t, d.HasEdgeBetween(3, 6))
	require.False(t, d.HasEdgeFromTo(0, 99))

	e := d.Edge(0, 2)
	require.NotNil(t, e)
	require.Equal(t, int64(0), e.From().ID())
	require.Equal(t, int64(2), e.To().ID())
	require.Nil(t, d.Edge(2, 0))
}

func TestDirected_Algorithms(t *testing.T) {
	d := exampleGraph(t)

	var visited []int64
	var bfs traverse.BreadthFirst
	bfs.Walk(d, d.Node(0), func(n graph.Node, _ int) bool {
		visited = append(visited, n.ID())
		return false
	})
	require.ElementsMatch(t, []int64{0, 1, 2, 5}, visited)

	shortest := path.DijkstraFrom(d.Node(0), d)
	route, weight := shortest.To(5)
	require.Equal(t, 2.0, weight)
	require.Equal(t, []int64{0, 1, 5}, ids(iterator.NewOrderedNodes(route)))

	_, weight = shortest.To(7)
	require.True(t, math.IsInf(weight, 1), "vertex 7 is unreachable from 0")
}
