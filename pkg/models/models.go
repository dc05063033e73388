package models

import "fmt"

// VertexID is a dense vertex id in [0, num_vertices)
type VertexID = uint32

// NoPartition is the master value of a vertex that has no master
const NoPartition int32 = -1

// Edge is one record of the canonical binary edge file
type Edge struct {
	From VertexID `json:"from"`
	To   VertexID `json:"to"`
}

// Other returns the endpoint of e that is not v
func (e Edge) Other(v VertexID) VertexID {
	if e.From == v {
		return e.To
	}
	return e.From
}

func (e Edge) String() string {
	return fmt.Sprintf("(%d,%d)", e.From, e.To)
}

// GraphHeader is the header of the canonical binary edge file
type GraphHeader struct {
	NumVertices uint32 `json:"num_vertices"`
	NumEdges    uint64 `json:"num_edges"`
}

// AverageDegree returns 2E/V, the mean undirected degree
func (h GraphHeader) AverageDegree() float64 {
	if h.NumVertices == 0 {
		return 0
	}
	return float64(h.NumEdges) * 2 / float64(h.NumVertices)
}

// EdgeAssignment is one decoded edge record of the partition output stream
type EdgeAssignment struct {
	From      VertexID `json:"from" parquet:"from"`
	To        VertexID `json:"to" parquet:"to"`
	Partition uint16   `json:"partition" parquet:"partition"`
}

// MasterAssignment is one decoded vertex record of the partition output stream
type MasterAssignment struct {
	Vertex    VertexID `json:"vertex" parquet:"vertex"`
	Partition uint16   `json:"partition" parquet:"partition"`
}

// Round stop reasons
const (
	StopCapacity     = "capacity"
	StopNoFreeVertex = "no_free_vertex"
	StopEmptySample  = "empty_sample"
	StopFinal        = "final"
)

// RoundStats describes one bucket round of the partitioner
type RoundStats struct {
	Bucket            int    `json:"bucket"`
	SampleEdges       uint64 `json:"sample_edges"`
	ImmediateAssigned uint64 `json:"immediate_assigned"`
	LocalCapacity     uint64 `json:"local_capacity"`
	Occupied          uint64 `json:"occupied"`
	CoreVertices      uint64 `json:"core_vertices"`
	BoundaryVertices  uint64 `json:"boundary_vertices"`
	FreeVertexPicks   uint64 `json:"free_vertex_picks"`
	StopReason        string `json:"stop_reason"`
	ReadMS            int64  `json:"read_ms"`
	ComputeMS         int64  `json:"compute_ms"`
}
