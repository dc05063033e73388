package adjacency

import (
	"fmt"
	"math"

	"github.com/gilchrisn/graph-partitioning-service/pkg/models"
)

// Graph is a CSR-like adjacency structure over a slice of edges.
// Every vertex owns a contiguous range of one shared arena; entries are
// indices into the edge slice the graph was built from. Ranges only shrink
// after a build.
type Graph struct {
	NumVertices uint32
	arena       []uint32 // edge indices, grouped by vertex
	start       []uint64 // start[v] = offset of v's range in arena
	length      []uint32 // length[v] = live entries of v
}

// New creates an empty graph over numVertices vertices
func New(numVertices uint32) *Graph {
	return &Graph{
		NumVertices: numVertices,
		start:       make([]uint64, numVertices),
		length:      make([]uint32, numVertices),
	}
}

// Build groups edge indices by source vertex
func (g *Graph) Build(edges []models.Edge) error {
	return g.build(edges, func(e models.Edge) models.VertexID { return e.From })
}

// BuildReverse groups edge indices by destination vertex
func (g *Graph) BuildReverse(edges []models.Edge) error {
	return g.build(edges, func(e models.Edge) models.VertexID { return e.To })
}

func (g *Graph) build(edges []models.Edge, key func(models.Edge) models.VertexID) error {
	if uint64(len(edges)) > math.MaxUint32 {
		return fmt.Errorf("adjacency: %d edges exceed the arena index range", len(edges))
	}

	// Count per vertex
	for v := range g.length {
		g.length[v] = 0
	}
	for _, e := range edges {
		v := key(e)
		if v >= g.NumVertices {
			return fmt.Errorf("adjacency: vertex %d out of range (num_vertices=%d)", v, g.NumVertices)
		}
		g.length[v]++
	}

	// Prefix sum into start offsets
	var offset uint64
	for v := range g.start {
		g.start[v] = offset
		offset += uint64(g.length[v])
		g.length[v] = 0
	}

	if cap(g.arena) >= len(edges) {
		g.arena = g.arena[:len(edges)]
	} else {
		g.arena = make([]uint32, len(edges))
	}

	for i, e := range edges {
		v := key(e)
		g.arena[g.start[v]+uint64(g.length[v])] = uint32(i)
		g.length[v]++
	}
	return nil
}

// NumEntries returns the number of live entries over all vertices
func (g *Graph) NumEntries() uint64 {
	var n uint64
	for _, l := range g.length {
		n += uint64(l)
	}
	return n
}

// Len returns the number of live entries of v
func (g *Graph) Len(v models.VertexID) int {
	return int(g.length[v])
}

// At returns the i-th entry of v
func (g *Graph) At(v models.VertexID, i int) uint32 {
	return g.arena[g.start[v]+uint64(i)]
}

// Entries returns a view of v's live entries. The view is invalidated by any
// removal on v and must not be written to.
func (g *Graph) Entries(v models.VertexID) []uint32 {
	s := g.start[v]
	return g.arena[s : s+uint64(g.length[v])]
}

// RemoveAt drops the i-th entry of v by swapping in the last one
func (g *Graph) RemoveAt(v models.VertexID, i int) {
	s := g.start[v]
	last := uint64(g.length[v]) - 1
	g.arena[s+uint64(i)] = g.arena[s+last]
	g.length[v]--
}

// EraseOne removes exactly one occurrence of idx from v's range.
// It reports false when idx is not present.
func (g *Graph) EraseOne(v models.VertexID, idx uint32) bool {
	entries := g.Entries(v)
	for i, x := range entries {
		if x == idx {
			g.RemoveAt(v, i)
			return true
		}
	}
	return false
}

// Erase removes every occurrence of idx from v's range and returns how many
// were removed
func (g *Graph) Erase(v models.VertexID, idx uint32) int {
	removed := 0
	for i := 0; i < g.Len(v); {
		if g.At(v, i) == idx {
			g.RemoveAt(v, i)
			removed++
		} else {
			i++
		}
	}
	return removed
}

// Clear empties v's range
func (g *Graph) Clear(v models.VertexID) {
	g.length[v] = 0
}

// Validate checks that every live entry points into an edge slice of size n
// and that every range stays within the arena
func (g *Graph) Validate(n int) error {
	for v := uint32(0); v < g.NumVertices; v++ {
		end := g.start[v] + uint64(g.length[v])
		if end > uint64(len(g.arena)) {
			return fmt.Errorf("range of vertex %d overflows the arena", v)
		}
		for _, idx := range g.Entries(v) {
			if int(idx) >= n {
				return fmt.Errorf("vertex %d references edge %d beyond %d edges", v, idx, n)
			}
		}
	}
	return nil
}
