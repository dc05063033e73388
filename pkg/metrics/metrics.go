package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Report summarizes the quality of an edge partitioning
type Report struct {
	NumPartitions      int       `json:"num_partitions"`
	NumVertices        uint32    `json:"num_vertices"`
	NumEdges           uint64    `json:"num_edges"`
	ExpectedEdges      float64   `json:"expected_edges"`
	Occupied           []uint64  `json:"occupied"`
	MaxOccupied        uint64    `json:"max_occupied"`
	OccupiedMean       float64   `json:"occupied_mean"`
	OccupiedStdDev     float64   `json:"occupied_stddev"`
	EdgeBalance        float64   `json:"edge_balance"`
	TotalMirrors       uint64    `json:"total_mirrors"`
	ReplicationFactor  float64   `json:"replication_factor"`
	MasterCounts       []uint64  `json:"master_counts"`
	MasterBalance      float64   `json:"master_balance"`
	UnmasteredVertices uint64    `json:"unmastered_vertices"`
	BoundarySizes      []uint64  `json:"boundary_sizes"`
	BoundaryShare      []float64 `json:"boundary_share"`
}

func toFloats(xs []uint64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}

// Compute derives the balance and replication metrics.
// occupied, boundarySizes and masterCounts are indexed by partition.
func Compute(numVertices uint32, numEdges uint64, occupied, boundarySizes, masterCounts []uint64) Report {
	p := len(occupied)
	r := Report{
		NumPartitions: p,
		NumVertices:   numVertices,
		NumEdges:      numEdges,
		Occupied:      append([]uint64(nil), occupied...),
		MasterCounts:  append([]uint64(nil), masterCounts...),
		BoundarySizes: append([]uint64(nil), boundarySizes...),
	}
	if p == 0 {
		return r
	}

	occ := toFloats(occupied)
	r.MaxOccupied = uint64(floats.Max(occ))
	if p > 1 {
		r.OccupiedMean, r.OccupiedStdDev = stat.MeanStdDev(occ, nil)
	} else {
		r.OccupiedMean = occ[0]
	}
	r.ExpectedEdges = float64(numEdges) / float64(p)
	if numEdges > 0 {
		r.EdgeBalance = float64(r.MaxOccupied) / r.ExpectedEdges
	}

	for _, b := range boundarySizes {
		r.TotalMirrors += b
	}
	if numVertices > 0 {
		r.ReplicationFactor = float64(r.TotalMirrors) / float64(numVertices)
	}
	if r.TotalMirrors > 0 {
		r.BoundaryShare = toFloats(boundarySizes)
		floats.Scale(1/float64(r.TotalMirrors), r.BoundaryShare)
	}

	var mastered uint64
	for _, m := range masterCounts {
		mastered += m
	}
	if uint64(numVertices) > mastered {
		r.UnmasteredVertices = uint64(numVertices) - mastered
	}
	if numVertices > 0 && len(masterCounts) > 0 {
		r.MasterBalance = floats.Max(toFloats(masterCounts)) / (float64(numVertices) / float64(p))
	}
	return r
}

// Log writes the report the way the partitioner reports its final state
func (r Report) Log(logger zerolog.Logger) {
	logger.Info().
		Float64("expected_edges", r.ExpectedEdges).
		Uint64("max_occupied", r.MaxOccupied).
		Float64("balance", r.EdgeBalance).
		Msg("Edge balance")
	for i, o := range r.Occupied {
		logger.Debug().Int("partition", i).Uint64("edges", o).Msg("Edges in partition")
	}
	logger.Info().
		Uint64("total_mirrors", r.TotalMirrors).
		Float64("replication_factor", r.ReplicationFactor).
		Msg("Replication")
	logger.Info().
		Float64("master_balance", r.MasterBalance).
		Uint64("unmastered", r.UnmasteredVertices).
		Msg("Master balance")
}

// Registry builds a Prometheus registry holding the report as gauges
func (r Report) Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()

	gauge := func(name, help string, value float64) {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "edgepart",
			Name:      name,
			Help:      help,
		})
		g.Set(value)
		reg.MustRegister(g)
	}
	gauge("edge_balance", "Largest partition edge count over the even share.", r.EdgeBalance)
	gauge("replication_factor", "Boundary vertex copies per vertex.", r.ReplicationFactor)
	gauge("master_balance", "Largest partition master count over the even share.", r.MasterBalance)
	gauge("total_mirrors", "Sum of boundary set sizes over all partitions.", float64(r.TotalMirrors))
	gauge("edges_total", "Number of edges partitioned.", float64(r.NumEdges))
	gauge("vertices_total", "Number of vertices.", float64(r.NumVertices))

	perPartition := func(name, help string, values []uint64) {
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "edgepart",
			Name:      name,
			Help:      help,
		}, []string{"partition"})
		for i, v := range values {
			vec.WithLabelValues(strconv.Itoa(i)).Set(float64(v))
		}
		reg.MustRegister(vec)
	}
	perPartition("partition_edges", "Edges assigned to the partition.", r.Occupied)
	perPartition("partition_boundary_vertices", "Boundary vertices of the partition.", r.BoundarySizes)
	perPartition("partition_masters", "Vertices mastered by the partition.", r.MasterCounts)

	return reg
}

// WriteTextfile writes the report in the Prometheus text exposition format,
// ready for a node exporter textfile collector
func (r Report) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry())
}
