package partition

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/gilchrisn/graph-partitioning-service/pkg/adjacency"
	"github.com/gilchrisn/graph-partitioning-service/pkg/bitset"
	"github.com/gilchrisn/graph-partitioning-service/pkg/heap"
	"github.com/gilchrisn/graph-partitioning-service/pkg/models"
	"github.com/gilchrisn/graph-partitioning-service/pkg/utils"
)

// AlgorithmName labels this engine's rounds in tracking output
const AlgorithmName = "ne"

// Working-set estimate used by the in-memory decision and the sample cap
const (
	bytesPerSampleEdge = 8 + 1 + 4 + 4 // edge, validity flag, out and in arena slots
	bytesPerVertex     = 36            // degrees, adjacency ranges, core owner, master, heap slot
)

// Engine runs neighbour-expansion edge partitioning over one edge stream.
// An Engine is single use.
type Engine struct {
	src     EdgeSource
	sink    Sink
	config  *Config
	logger  zerolog.Logger
	tracker *utils.RoundTracker

	numVertices uint32
	numEdges    uint64
	p           int
	bucket      int

	averageDegree      float64
	localAverageDegree float64
	inMemory           bool
	maxSampleSize      uint64
	capacity           uint64
	localCapacity      uint64
	assignedEdges      uint64

	degrees    []uint32
	occupied   []uint64
	cores      []*bitset.BitSet
	boundaries []*bitset.BitSet
	coreOf     []int32
	masters    []int32

	sample  []models.Edge
	valid   []bool
	adjOut  *adjacency.Graph
	adjIn   *adjacency.Graph
	minHeap *heap.IndexedMinHeap[uint32, models.VertexID]
	rng     *rand.Rand

	readBuf []models.Edge
	classes []int32

	round  models.RoundStats
	rounds []models.RoundStats
	used   bool
}

// NewEngine prepares a run over src. degrees must hold the full undirected
// degree of every vertex and is copied, since the engine consumes it.
func NewEngine(src EdgeSource, degrees []uint32, config *Config, sink Sink, logger zerolog.Logger) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	header := src.Header()
	if uint64(len(degrees)) != uint64(header.NumVertices) {
		return nil, errors.Errorf("degree array has %d entries, header declares %d vertices",
			len(degrees), header.NumVertices)
	}
	if sink == nil {
		sink = DiscardSink{}
	}

	p := config.NumPartitions()
	e := &Engine{
		src:           src,
		sink:          sink,
		config:        config,
		logger:        logger,
		numVertices:   header.NumVertices,
		numEdges:      header.NumEdges,
		p:             p,
		averageDegree: header.AverageDegree(),
		degrees:       append([]uint32(nil), degrees...),
		occupied:      make([]uint64, p),
		cores:         make([]*bitset.BitSet, p),
		boundaries:    make([]*bitset.BitSet, p),
		coreOf:        make([]int32, header.NumVertices),
		masters:       make([]int32, header.NumVertices),
		adjOut:        adjacency.New(header.NumVertices),
		adjIn:         adjacency.New(header.NumVertices),
		minHeap:       heap.New[uint32, models.VertexID](0),
		rng:           rand.New(rand.NewSource(config.RandomSeed())),
	}
	for b := 0; b < p; b++ {
		e.cores[b] = bitset.New(header.NumVertices)
		e.boundaries[b] = bitset.New(header.NumVertices)
	}
	for v := range e.coreOf {
		e.coreOf[v] = models.NoPartition
		e.masters[v] = models.NoPartition
	}

	e.capacity = Capacity(header.NumEdges, p, config.BalanceRatio())
	e.decideMemoryMode()
	return e, nil
}

// SetTracker attaches a round tracker. A nil tracker disables tracking.
func (e *Engine) SetTracker(t *utils.RoundTracker) { e.tracker = t }

// Capacity is the per-bucket edge cap: the slack-scaled even share, never
// below the ceiling of the even share so that p buckets always hold E edges
func Capacity(numEdges uint64, p int, balanceRatio float64) uint64 {
	if p <= 0 {
		return 0
	}
	scaled := uint64(math.Floor(float64(numEdges) * balanceRatio / float64(p)))
	even := (numEdges + uint64(p) - 1) / uint64(p)
	if scaled < even {
		return even
	}
	return scaled
}

func (e *Engine) decideMemoryMode() {
	budget := uint64(e.config.MemoryBudgetMB()) << 20
	fixed := uint64(e.numVertices) * uint64(bytesPerVertex+e.p/4)
	full := e.numEdges*bytesPerSampleEdge + fixed

	switch e.config.InMemoryMode() {
	case "true":
		e.inMemory = true
	case "false":
		e.inMemory = false
	default:
		e.inMemory = full <= budget
	}

	if e.inMemory {
		e.maxSampleSize = e.numEdges
		return
	}
	e.maxSampleSize = uint64(e.config.SampleRatio() * float64(e.numVertices))
	if budget > fixed {
		if byBudget := (budget - fixed) / bytesPerSampleEdge; byBudget < e.maxSampleSize {
			e.maxSampleSize = byBudget
		}
	}
	if e.maxSampleSize == 0 {
		e.maxSampleSize = 1
	}
}

// InMemory reports whether the whole graph is held as one sample
func (e *Engine) InMemory() bool { return e.inMemory }

// MaxSampleSize returns the sample budget in edges
func (e *Engine) MaxSampleSize() uint64 { return e.maxSampleSize }

// Run partitions every edge of the source. An invariant violation inside the
// algorithm is returned as *InvariantError, and input found inconsistent
// mid-run as *InputError. Neither yields a result.
func (e *Engine) Run(ctx context.Context) (result *Result, err error) {
	if e.used {
		return nil, errors.New("engine already ran")
	}
	e.used = true

	defer func() {
		if r := recover(); r != nil {
			switch r := r.(type) {
			case *InvariantError:
				result, err = nil, r
			case *InputError:
				result, err = nil, r
			default:
				panic(r)
			}
			e.logger.Error().Err(err).Int("bucket", e.bucket).Msg("Partitioning aborted")
		}
	}()

	startTime := time.Now()
	e.logger.Info().
		Uint32("vertices", e.numVertices).
		Uint64("edges", e.numEdges).
		Int("partitions", e.p).
		Uint64("capacity", e.capacity).
		Bool("in_memory", e.inMemory).
		Uint64("max_sample_size", e.maxSampleSize).
		Msg("Starting edge partitioning")

	if e.inMemory {
		if err := e.loadAll(); err != nil {
			return nil, err
		}
	}

	e.minHeap.Reset(min(int(e.numVertices), 1<<16))
	for e.bucket = 0; e.bucket < e.p-1; e.bucket++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := e.runBucket(ctx); err != nil {
			return nil, err
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	e.bucket = e.p - 1
	if err := e.finalBucket(ctx); err != nil {
		return nil, err
	}
	masterCounts := e.assignMasters()
	e.verify()

	if err := e.sink.Err(); err != nil {
		return nil, errors.Wrap(err, "writing partition output")
	}

	result = e.buildResult(startTime, masterCounts)
	e.logger.Info().
		Float64("balance", result.Report.EdgeBalance).
		Float64("replication_factor", result.Report.ReplicationFactor).
		Int64("runtime_ms", result.Statistics.RuntimeMS).
		Msg("Edge partitioning completed")
	return result, nil
}

func (e *Engine) runBucket(ctx context.Context) error {
	e.round = models.RoundStats{Bucket: e.bucket}

	readStart := time.Now()
	if !e.inMemory {
		if err := e.readMore(ctx); err != nil {
			return err
		}
	}
	e.round.ReadMS = time.Since(readStart).Milliseconds()

	computeStart := time.Now()
	if err := e.adjOut.Build(e.sample); err != nil {
		return errors.Wrapf(err, "building adjacency for bucket %d", e.bucket)
	}
	if err := e.adjIn.BuildReverse(e.sample); err != nil {
		return errors.Wrapf(err, "building adjacency for bucket %d", e.bucket)
	}
	for _, adj := range []*adjacency.Graph{e.adjOut, e.adjIn} {
		if err := adj.Validate(len(e.sample)); err != nil {
			invariantf("bucket %d adjacency: %v", e.bucket, err)
		}
	}
	e.round.SampleEdges = uint64(len(e.sample))
	e.localAverageDegree = 2 * float64(len(e.sample)) / float64(e.numVertices)
	e.localCapacity = e.roundCapacity()
	e.round.LocalCapacity = e.localCapacity

	e.expand()
	e.drain()
	e.round.ComputeMS = time.Since(computeStart).Milliseconds()

	if err := e.sink.Err(); err != nil {
		return errors.Wrapf(err, "writing partition output for bucket %d", e.bucket)
	}
	return e.finishRound()
}

func (e *Engine) roundCapacity() uint64 {
	if e.inMemory {
		return e.capacity
	}
	local := uint64(len(e.sample)) / uint64(e.p-e.bucket)
	if local == 0 && len(e.sample) > 0 {
		local = 1
	}
	if local > e.capacity {
		local = e.capacity
	}
	return local
}

func (e *Engine) finishRound() error {
	e.round.Occupied = e.occupied[e.bucket]
	e.round.CoreVertices = e.cores[e.bucket].Count()
	e.round.BoundaryVertices = e.boundaries[e.bucket].Count()
	e.rounds = append(e.rounds, e.round)

	ev := e.logger.Debug()
	if e.config.EnableProgress() {
		ev = e.logger.Info()
	}
	ev.Int("bucket", e.round.Bucket).
		Uint64("sample", e.round.SampleEdges).
		Uint64("occupied", e.round.Occupied).
		Uint64("local_capacity", e.round.LocalCapacity).
		Uint64("immediate", e.round.ImmediateAssigned).
		Str("stop", e.round.StopReason).
		Int64("read_ms", e.round.ReadMS).
		Int64("compute_ms", e.round.ComputeMS).
		Msg("Bucket round finished")

	if err := e.tracker.LogRound(e.round); err != nil {
		return errors.Wrap(err, "tracking round")
	}
	return nil
}

func (e *Engine) validateEdge(edge models.Edge) error {
	if edge.From >= e.numVertices || edge.To >= e.numVertices {
		return errors.Errorf("edge %s out of range (num_vertices=%d)", edge, e.numVertices)
	}
	if edge.From == edge.To {
		return errors.Errorf("self-loop %s in input", edge)
	}
	return nil
}

// assignEdge records edge as owned by bucket. The degree file is not trusted:
// an endpoint whose residual degree is already zero means it undercounts.
func (e *Engine) assignEdge(bucket int, edge models.Edge) {
	if e.degrees[edge.From] == 0 || e.degrees[edge.To] == 0 {
		inputf("degree file undercounts the endpoints of %s (bucket %d)", edge, bucket)
	}
	e.sink.SaveEdge(edge.From, edge.To, uint16(bucket))
	e.assignedEdges++
	e.occupied[bucket]++
	e.degrees[edge.From]--
	e.degrees[edge.To]--
}

// assign consumes sample edge idx into the current bucket
func (e *Engine) assign(idx uint32) {
	if !e.valid[idx] {
		invariantf("edge %s assigned twice", e.sample[idx])
	}
	e.valid[idx] = false
	e.assignEdge(e.bucket, e.sample[idx])
}

func (e *Engine) String() string {
	return fmt.Sprintf("Engine{V=%d E=%d p=%d bucket=%d assigned=%d}",
		e.numVertices, e.numEdges, e.p, e.bucket, e.assignedEdges)
}
