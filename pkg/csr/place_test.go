package csr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// exampleOffsets returns the final offsets of exampleEdges over 8 vertices.
func exampleOffsets() []uint32 {
	return []uint32{0, 2, 4, 4, 4, 5, 5, 5, 5}
}

func TestPlaceIndexed_Example(t *testing.T) {
	withMinChunk(t, 1)
	targets := make([]uint32, 5)
	spans := split(5, 2)
	require.Len(t, spans, 2)

	require.NoError(t, placeIndexed(context.Background(), exampleEdges[uint32](), spans, exampleOffsets(), targets))
	require.ElementsMatch(t, []uint32{1, 2}, targets[0:2])
	require.ElementsMatch(t, []uint32{5, 2}, targets[2:4])
	require.Equal(t, uint32(7), targets[4])
}

// Each source below differs from exampleEdges, which the offsets were
// counted from. Placement must fail instead of writing out of bounds.
func TestPlaceIndexed_SourceChanged(t *testing.T) {
	withMinChunk(t, 1)

	tests := []struct {
		name  string
		edges EdgeSlice[uint32]
	}{
		{"source beyond vertex count", EdgeSlice[uint32]{{0, 1}, {0, 2}, {1, 5}, {1, 2}, {9, 7}}},
		{"target beyond vertex count", EdgeSlice[uint32]{{0, 1}, {0, 2}, {1, 5}, {1, 2}, {4, 70}}},
		{"extra edge on a shared vertex", EdgeSlice[uint32]{{0, 1}, {0, 2}, {1, 5}, {1, 2}, {1, 7}}},
		{"extra edge on a private vertex", EdgeSlice[uint32]{{0, 1}, {0, 2}, {1, 5}, {4, 2}, {4, 7}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			targets := make([]uint32, 5)
			err := placeIndexed(context.Background(), tc.edges, split(5, 2), exampleOffsets(), targets)
			require.ErrorIs(t, err, ErrSourceChanged)
		})
	}
}
