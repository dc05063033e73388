package partition

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/gilchrisn/graph-partitioning-service/pkg/bitset"
	"github.com/gilchrisn/graph-partitioning-service/pkg/models"
)

// finalBucket hands the last bucket every pending sample edge and every edge
// still unread. Unread edges may still go to an earlier bucket that has room.
func (e *Engine) finalBucket(ctx context.Context) error {
	last := e.p - 1
	e.round = models.RoundStats{Bucket: last, SampleEdges: uint64(len(e.sample)), StopReason: models.StopFinal}
	e.localCapacity = e.capacity
	e.round.LocalCapacity = e.capacity
	boundary := e.boundaries[last]

	computeStart := time.Now()
	for i, edge := range e.sample {
		if !e.valid[i] {
			continue
		}
		e.valid[i] = false
		boundary.Set(edge.From)
		boundary.Set(edge.To)
		e.assignEdge(last, edge)
	}
	e.sample, e.valid = nil, nil
	computeMS := time.Since(computeStart).Milliseconds()

	readStart := time.Now()
	if e.src.Remaining() > 0 {
		if e.readBuf == nil {
			e.readBuf = make([]models.Edge, e.readBatchSize())
			e.classes = make([]int32, len(e.readBuf))
		}
		for e.src.Remaining() > 0 {
			n, err := e.src.ReadBatch(e.readBuf)
			if err != nil {
				return errors.Wrap(err, "reading remaining edges")
			}
			if n == 0 {
				return errors.Errorf("edge source stalled with %d edges remaining", e.src.Remaining())
			}
			batch, classes := e.readBuf[:n], e.classes[:n]
			for _, edge := range batch {
				if err := e.validateEdge(edge); err != nil {
					return err
				}
			}
			if err := e.classifyBatch(ctx, batch, classes, last); err != nil {
				return err
			}
			for i, edge := range batch {
				if e.applyClass(edge, classes[i], last) != unclassified {
					e.round.ImmediateAssigned++
					continue
				}
				boundary.Set(edge.From)
				boundary.Set(edge.To)
				e.assignEdge(last, edge)
			}
		}
	}
	e.round.ReadMS = time.Since(readStart).Milliseconds()

	computeStart = time.Now()
	e.resolveFinalCores()
	e.round.ComputeMS = computeMS + time.Since(computeStart).Milliseconds()

	if err := e.sink.Err(); err != nil {
		return errors.Wrap(err, "writing partition output for the final bucket")
	}
	return e.finishRound()
}

// resolveFinalCores makes every final-bucket boundary vertex core there
// unless an earlier bucket already owns it
func (e *Engine) resolveFinalCores() {
	last := e.p - 1
	it := e.boundaries[last].Iter()
	for v, ok := it.Next(); ok; v, ok = it.Next() {
		if e.coreOf[v] != models.NoPartition {
			continue
		}
		e.cores[last].Set(v)
		e.coreOf[v] = int32(last)
	}
}

// assignMasters gives each vertex with a boundary copy one master among the
// partitions holding it. Partitions are drawn in proportion to their unused
// quota and each hands out its next unmastered boundary vertex.
func (e *Engine) assignMasters() []uint64 {
	counts := make([]uint64, e.p)

	replicated := bitset.New(e.numVertices)
	for _, b := range e.boundaries {
		it := b.Iter()
		for v, ok := it.Next(); ok; v, ok = it.Next() {
			replicated.Set(v)
		}
	}
	target := replicated.Count()

	quota := make([]int64, e.p)
	iters := make([]*bitset.Iterator, e.p)
	var total int64
	for k := range quota {
		quota[k] = int64(e.numVertices)
		total += quota[k]
		iters[k] = e.boundaries[k].Iter()
	}

	var assigned uint64
	for assigned < target {
		if total <= 0 {
			invariantf("master quota exhausted with %d of %d vertices assigned", assigned, target)
		}
		draw := e.rng.Int63n(total)
		k := 0
		for ; k < e.p; k++ {
			if draw < quota[k] {
				break
			}
			draw -= quota[k]
		}

		v, ok := iters[k].Next()
		for ok && e.masters[v] != models.NoPartition {
			v, ok = iters[k].Next()
		}
		if !ok {
			total -= quota[k]
			quota[k] = 0
			continue
		}

		e.masters[v] = int32(k)
		e.sink.SaveVertex(v, uint16(k))
		counts[k]++
		quota[k]--
		total--
		assigned++
	}
	return counts
}

// verify checks the end-of-run integrity conditions
func (e *Engine) verify() {
	if e.assignedEdges != e.numEdges {
		invariantf("assigned %d edges, input has %d", e.assignedEdges, e.numEdges)
	}
	var occupied uint64
	for _, o := range e.occupied {
		occupied += o
	}
	if occupied != e.numEdges {
		invariantf("buckets hold %d edges, input has %d", occupied, e.numEdges)
	}
	if r := e.src.Remaining(); r != 0 {
		invariantf("%d edges left unread", r)
	}

	for b, cores := range e.cores {
		it := cores.Iter()
		for v, ok := it.Next(); ok; v, ok = it.Next() {
			if e.coreOf[v] != int32(b) {
				invariantf("vertex %d is core of buckets %d and %d", v, e.coreOf[v], b)
			}
			if !e.boundaries[b].Test(v) {
				invariantf("core vertex %d missing from boundary of bucket %d", v, b)
			}
		}
	}

	for v, m := range e.masters {
		if m != models.NoPartition && !e.boundaries[m].Test(uint32(v)) {
			invariantf("vertex %d mastered by bucket %d without a copy there", v, m)
		}
	}
}
