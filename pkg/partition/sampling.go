package partition

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/gilchrisn/graph-partitioning-service/pkg/models"
)

const unclassified = -1

// loadAll reads the whole stream into the sample
func (e *Engine) loadAll() error {
	e.sample = make([]models.Edge, 0, e.numEdges)
	buf := make([]models.Edge, e.readBatchSize())
	for e.src.Remaining() > 0 {
		n, err := e.src.ReadBatch(buf)
		if err != nil {
			return errors.Wrap(err, "loading edges")
		}
		if n == 0 {
			return errors.Errorf("edge source stalled with %d edges remaining", e.src.Remaining())
		}
		for _, edge := range buf[:n] {
			if err := e.validateEdge(edge); err != nil {
				return err
			}
		}
		e.sample = append(e.sample, buf[:n]...)
	}
	e.valid = make([]bool, len(e.sample))
	for i := range e.valid {
		e.valid[i] = true
	}
	return nil
}

func (e *Engine) readBatchSize() int {
	n := e.config.ReadBatch()
	if uint64(n) > e.numEdges && e.numEdges > 0 {
		n = int(e.numEdges)
	}
	if n < 1 {
		n = 1
	}
	return n
}

// readMore tops the sample up to its budget. Edges that an earlier bucket can
// already take are assigned there and never enter the sample.
func (e *Engine) readMore(ctx context.Context) error {
	if e.readBuf == nil {
		e.readBuf = make([]models.Edge, e.readBatchSize())
		e.classes = make([]int32, len(e.readBuf))
	}

	for uint64(len(e.sample)) < e.maxSampleSize && e.src.Remaining() > 0 {
		want := e.maxSampleSize - uint64(len(e.sample))
		if want > uint64(len(e.readBuf)) {
			want = uint64(len(e.readBuf))
		}
		batch := e.readBuf[:want]
		n, err := e.src.ReadBatch(batch)
		if err != nil {
			return errors.Wrapf(err, "reading edges for bucket %d", e.bucket)
		}
		if n == 0 {
			return errors.Errorf("edge source stalled with %d edges remaining", e.src.Remaining())
		}
		batch = batch[:n]
		for _, edge := range batch {
			if err := e.validateEdge(edge); err != nil {
				return err
			}
		}

		classes := e.classes[:n]
		if err := e.classifyBatch(ctx, batch, classes, e.bucket); err != nil {
			return err
		}
		for i, edge := range batch {
			if b := e.applyClass(edge, classes[i], e.bucket); b == unclassified {
				e.sample = append(e.sample, edge)
				e.valid = append(e.valid, true)
			} else {
				e.round.ImmediateAssigned++
			}
		}
	}
	return nil
}

// classifyBatch finds for every edge the earlier bucket that can take it.
// Workers only read engine state; results land in classes.
func (e *Engine) classifyBatch(ctx context.Context, batch []models.Edge, classes []int32, limit int) error {
	if limit == 0 {
		for i := range classes {
			classes[i] = unclassified
		}
		return nil
	}

	chunk := e.config.ChunkSize()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.NumWorkers())
	for start := 0; start < len(batch); start += chunk {
		lo, hi := start, start+chunk
		if hi > len(batch) {
			hi = len(batch)
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				classes[i] = e.classify(batch[i], limit)
			}
			return nil
		})
	}
	return g.Wait()
}

// classify returns the first bucket below limit that can take edge, or
// unclassified. A bucket with both endpoints on its boundary wins over a
// bucket holding one endpoint as core. Attaching to a core is refused when
// the other endpoint has above-average remaining degree.
func (e *Engine) classify(edge models.Edge, limit int) int32 {
	for b := 0; b < limit; b++ {
		if e.occupied[b] < e.capacity &&
			e.boundaries[b].Test(edge.From) && e.boundaries[b].Test(edge.To) {
			return int32(b)
		}
	}
	for b := 0; b < limit; b++ {
		if e.occupied[b] >= e.capacity {
			continue
		}
		fromCore, toCore := e.cores[b].Test(edge.From), e.cores[b].Test(edge.To)
		if !fromCore && !toCore {
			continue
		}
		if fromCore && float64(e.degrees[edge.To]) > e.averageDegree {
			continue
		}
		if toCore && float64(e.degrees[edge.From]) > e.averageDegree {
			continue
		}
		return int32(b)
	}
	return unclassified
}

// applyClass performs the assignment chosen by classify. Earlier edges of the
// same batch may have filled the chosen bucket, in which case the edge is
// classified again against the current state.
func (e *Engine) applyClass(edge models.Edge, class int32, limit int) int32 {
	if class != unclassified && e.occupied[class] >= e.capacity {
		class = e.classify(edge, limit)
	}
	if class == unclassified {
		return unclassified
	}
	e.boundaries[class].Set(edge.From)
	e.boundaries[class].Set(edge.To)
	e.assignEdge(int(class), edge)
	return class
}
