package partition

import (
	"runtime"
	"time"

	"github.com/gilchrisn/graph-partitioning-service/pkg/bitset"
	"github.com/gilchrisn/graph-partitioning-service/pkg/metrics"
	"github.com/gilchrisn/graph-partitioning-service/pkg/models"
)

// Result holds the final partition state of a run
type Result struct {
	NumVertices   uint32              `json:"num_vertices"`
	NumEdges      uint64              `json:"num_edges"`
	NumPartitions int                 `json:"num_partitions"`
	Capacity      uint64              `json:"capacity"`
	InMemory      bool                `json:"in_memory"`
	Occupied      []uint64            `json:"occupied"`
	Masters       []int32             `json:"masters"` // vertex -> partition, NoPartition when the vertex has no copy
	CoreOf        []int32             `json:"core_of"`
	Cores         []*bitset.BitSet    `json:"-"`
	Boundaries    []*bitset.BitSet    `json:"-"`
	Rounds        []models.RoundStats `json:"rounds"`
	Statistics    Statistics          `json:"statistics"`
	Report        metrics.Report      `json:"report"`
}

// Statistics contains run performance counters
type Statistics struct {
	RuntimeMS         int64  `json:"runtime_ms"`
	ReadMS            int64  `json:"read_ms"`
	ComputeMS         int64  `json:"compute_ms"`
	MemoryPeakMB      int64  `json:"memory_peak_mb"`
	ImmediateAssigned uint64 `json:"immediate_assigned"`
	FreeVertexPicks   uint64 `json:"free_vertex_picks"`
	EarlyStops        int    `json:"early_stops"`
}

// Replicas returns the partitions holding a copy of v
func (r *Result) Replicas(v models.VertexID) []int {
	var parts []int
	for b, boundary := range r.Boundaries {
		if boundary.Test(v) {
			parts = append(parts, b)
		}
	}
	return parts
}

func (e *Engine) buildResult(startTime time.Time, masterCounts []uint64) *Result {
	result := &Result{
		NumVertices:   e.numVertices,
		NumEdges:      e.numEdges,
		NumPartitions: e.p,
		Capacity:      e.capacity,
		InMemory:      e.inMemory,
		Occupied:      append([]uint64(nil), e.occupied...),
		Masters:       e.masters,
		CoreOf:        e.coreOf,
		Cores:         e.cores,
		Boundaries:    e.boundaries,
		Rounds:        e.rounds,
	}

	boundarySizes := make([]uint64, e.p)
	for b, boundary := range e.boundaries {
		boundarySizes[b] = boundary.Count()
	}
	for _, round := range e.rounds {
		result.Statistics.ReadMS += round.ReadMS
		result.Statistics.ComputeMS += round.ComputeMS
		result.Statistics.ImmediateAssigned += round.ImmediateAssigned
		result.Statistics.FreeVertexPicks += round.FreeVertexPicks
		if round.StopReason == models.StopNoFreeVertex {
			result.Statistics.EarlyStops++
		}
	}

	result.Report = metrics.Compute(e.numVertices, e.numEdges, e.occupied, boundarySizes, masterCounts)
	result.Statistics.RuntimeMS = time.Since(startTime).Milliseconds()
	result.Statistics.MemoryPeakMB = getMemoryUsage()
	return result
}

// getMemoryUsage returns current memory usage in MB
func getMemoryUsage() int64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return int64(m.Alloc / 1024 / 1024)
}
