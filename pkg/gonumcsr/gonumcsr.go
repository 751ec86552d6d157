// Package gonumcsr exposes a CSR graph through gonum's graph.Directed
// interface so the algorithms under gonum.org/v1/gonum/graph (traversal,
// shortest paths, centrality) run directly over the mapped arrays.
//
// Vertex v of the CSR graph is the gonum node with ID int64(v). Parallel
// edges in the CSR graph make From report the same node more than once.
package gonumcsr

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/sanonone/csrgraph/pkg/csr"
)

// Directed adapts a *csr.Graph to graph.Directed. It holds no state of its
// own and is safe for concurrent use while the underlying graph is open.
type Directed[T csr.NodeID] struct {
	g *csr.Graph[T]
}

var _ graph.Directed = (*Directed[uint32])(nil)

// New wraps g. The adapter must not be used after g is closed.
func New[T csr.NodeID](g *csr.Graph[T]) *Directed[T] {
	return &Directed[T]{g: g}
}

// Graph returns the wrapped CSR graph.
func (d *Directed[T]) Graph() *csr.Graph[T] { return d.g }

func (d *Directed[T]) vertex(id int64) (T, bool) {
	if id < 0 || uint64(id) >= d.g.VertexCount() {
		return 0, false
	}
	return T(id), true
}

// Node returns the node with the given ID, or nil if it does not exist.
func (d *Directed[T]) Node(id int64) graph.Node {
	if _, ok := d.vertex(id); !ok {
		return nil
	}
	return simple.Node(id)
}

// Nodes returns every vertex in ascending ID order.
func (d *Directed[T]) Nodes() graph.Nodes {
	n := d.g.VertexCount()
	if n == 0 {
		return graph.Empty
	}
	if n > math.MaxInt {
		n = math.MaxInt
	}
	return iterator.NewImplicitNodes(0, int(n), func(id int) graph.Node { return simple.Node(id) })
}

// From returns the out-neighbours of id in stored order.
func (d *Directed[T]) From(id int64) graph.Nodes {
	v, ok := d.vertex(id)
	if !ok {
		return graph.Empty
	}
	nbrs := d.g.Neighbors(v)
	if len(nbrs) == 0 {
		return graph.Empty
	}
	return newNeighbors(nbrs)
}

// To returns the in-neighbours of id. CSR stores only outgoing edges, so
// this scans the whole targets array.
func (d *Directed[T]) To(id int64) graph.Nodes {
	target, ok := d.vertex(id)
	if !ok {
		return graph.Empty
	}
	var from []graph.Node
	for u, nbrs := range d.g.All() {
		if slices.Contains(nbrs, target) {
			from = append(from, simple.Node(int64(u)))
		}
	}
	if len(from) == 0 {
		return graph.Empty
	}
	return iterator.NewOrderedNodes(from)
}

// HasEdgeFromTo reports whether the edge uid -> vid exists.
func (d *Directed[T]) HasEdgeFromTo(uid, vid int64) bool {
	u, ok := d.vertex(uid)
	if !ok {
		return false
	}
	v, ok := d.vertex(vid)
	if !ok {
		return false
	}
	return slices.Contains(d.g.Neighbors(u), v)
}

// HasEdgeBetween reports whether an edge exists in either direction.
func (d *Directed[T]) HasEdgeBetween(xid, yid int64) bool {
	return d.HasEdgeFromTo(xid, yid) || d.HasEdgeFromTo(yid, xid)
}

// Edge returns the edge uid -> vid, or nil if it does not exist.
func (d *Directed[T]) Edge(uid, vid int64) graph.Edge {
	if !d.HasEdgeFromTo(uid, vid) {
		return nil
	}
	return simple.Edge{F: simple.Node(uid), T: simple.Node(vid)}
}

// neighbors iterates a neighbour slice without copying it.
type neighbors[T csr.NodeID] struct {
	ids []T
	idx int
}

func newNeighbors[T csr.NodeID](ids []T) *neighbors[T] {
	return &neighbors[T]{ids: ids, idx: -1}
}

func (n *neighbors[T]) Len() int {
	if n.idx >= len(n.ids) {
		return 0
	}
	return len(n.ids) - n.idx - 1
}

func (n *neighbors[T]) Next() bool {
	if n.idx < len(n.ids) {
		n.idx++
	}
	return n.idx < len(n.ids)
}

func (n *neighbors[T]) Node() graph.Node {
	if n.idx < 0 || n.idx >= len(n.ids) {
		return nil
	}
	return simple.Node(int64(n.ids[n.idx]))
}

func (n *neighbors[T]) Reset() { n.idx = -1 }
