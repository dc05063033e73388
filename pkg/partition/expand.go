package partition

import (
	"github.com/gilchrisn/graph-partitioning-service/pkg/adjacency"
	"github.com/gilchrisn/graph-partitioning-service/pkg/models"
)

// residual is the number of unassigned sampled edges touching v
func (e *Engine) residual(v models.VertexID) uint32 {
	return uint32(e.adjOut.Len(v) + e.adjIn.Len(v))
}

// expand grows the current bucket from low residual-degree vertices until it
// reaches the round capacity or runs out of candidates
func (e *Engine) expand() {
	if len(e.sample) == 0 {
		e.round.StopReason = models.StopEmptySample
		return
	}

	for e.occupied[e.bucket] < e.localCapacity {
		d, v, ok := e.minHeap.Min()
		if ok {
			e.minHeap.Remove(v)
			if r := e.residual(v); d != r {
				invariantf("heap holds %d for vertex %d with residual %d", d, v, r)
			}
		} else {
			v, ok = e.freeVertex()
			if !ok {
				e.round.StopReason = models.StopNoFreeVertex
				e.logger.Info().
					Int("bucket", e.bucket).
					Uint64("occupied", e.occupied[e.bucket]).
					Msg("Bucket stopped: no free vertices")
				return
			}
			e.round.FreeVertexPicks++
			d = e.residual(v)
		}
		e.occupy(v, d)
	}
	e.round.StopReason = models.StopCapacity
}

// freeVertex scans once around the vertex space from a random start for a
// vertex that can seed a new core
func (e *Engine) freeVertex() (models.VertexID, bool) {
	if e.numVertices == 0 {
		return 0, false
	}
	hubLimit := e.config.HubFactor() * e.localAverageDegree
	start := models.VertexID(e.rng.Int63n(int64(e.numVertices)))
	v := start
	for i := uint32(0); i < e.numVertices; i++ {
		if e.coreOf[v] == models.NoPartition {
			if r := e.residual(v); r > 0 && float64(r) <= hubLimit {
				return v, true
			}
		}
		v++
		if v == e.numVertices {
			v = 0
		}
	}
	return 0, false
}

// occupy makes v core of the current bucket and pulls its neighbours into
// the boundary while the round has room
func (e *Engine) occupy(v models.VertexID, d uint32) {
	if owner := e.coreOf[v]; owner != models.NoPartition {
		invariantf("vertex %d already core of bucket %d, cannot join bucket %d", v, owner, e.bucket)
	}
	e.cores[e.bucket].Set(v)
	e.coreOf[v] = int32(e.bucket)
	if d == 0 {
		return
	}

	e.addBoundary(v)
	e.pushNeighbours(v, e.adjOut)
	e.pushNeighbours(v, e.adjIn)
	e.adjOut.Clear(v)
	e.adjIn.Clear(v)
}

func (e *Engine) pushNeighbours(v models.VertexID, adj *adjacency.Graph) {
	for _, idx := range adj.Entries(v) {
		if e.occupied[e.bucket] >= e.localCapacity {
			return
		}
		if !e.valid[idx] {
			continue
		}
		e.addBoundary(e.sample[idx].Other(v))
	}
}

// addBoundary puts x on the boundary of the current bucket and assigns every
// pending edge between x and the bucket's cores and boundary
func (e *Engine) addBoundary(x models.VertexID) {
	boundary := e.boundaries[e.bucket]
	if boundary.Test(x) {
		return
	}
	boundary.Set(x)

	if e.coreOf[x] == models.NoPartition {
		e.minHeap.Insert(e.residual(x), x)
	}
	e.attach(x, e.adjOut, e.adjIn)
	e.attach(x, e.adjIn, e.adjOut)
}

// attach walks one direction of x's entries. reverse holds the same edges
// keyed by the other endpoint.
func (e *Engine) attach(x models.VertexID, adj, reverse *adjacency.Graph) {
	core, boundary := e.cores[e.bucket], e.boundaries[e.bucket]
	for i := 0; i < adj.Len(x); {
		idx := adj.At(x, i)
		u := e.sample[idx].Other(x)

		switch {
		case core.Test(u):
			// u's own entries are dropped wholesale when u finishes occupying
			e.assign(idx)
			adj.RemoveAt(x, i)
			e.decrease(x)
		case boundary.Test(u) && e.occupied[e.bucket] < e.localCapacity:
			e.assign(idx)
			adj.RemoveAt(x, i)
			e.decrease(x)
			if !reverse.EraseOne(u, idx) {
				invariantf("edge %s missing from the reverse list of %d", e.sample[idx], u)
			}
			e.decrease(u)
		default:
			i++
		}
	}
}

func (e *Engine) decrease(v models.VertexID) {
	if !e.minHeap.Contains(v) {
		return
	}
	if err := e.minHeap.DecreaseKey(v, 1); err != nil {
		invariantf("decreasing vertex %d: %v", v, err)
	}
}

// drain resets per-round state and compacts the sample to its pending edges
func (e *Engine) drain() {
	e.minHeap.Clear()
	kept := 0
	for i, edge := range e.sample {
		if e.valid[i] {
			e.sample[kept] = edge
			e.valid[kept] = true
			kept++
		}
	}
	e.sample = e.sample[:kept]
	e.valid = e.valid[:kept]
}
