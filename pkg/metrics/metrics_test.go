package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeCycleSplit(t *testing.T) {
	// 4-cycle cut into two paths of two edges
	r := Compute(4, 4, []uint64{2, 2}, []uint64{3, 3}, []uint64{2, 2})

	assert.Equal(t, 2.0, r.ExpectedEdges)
	assert.Equal(t, uint64(2), r.MaxOccupied)
	assert.InDelta(t, 1.0, r.EdgeBalance, 1e-12)
	assert.InDelta(t, 0.0, r.OccupiedStdDev, 1e-12)
	assert.Equal(t, uint64(6), r.TotalMirrors)
	assert.InDelta(t, 1.5, r.ReplicationFactor, 1e-12)
	assert.InDelta(t, 1.0, r.MasterBalance, 1e-12)
	assert.Equal(t, uint64(0), r.UnmasteredVertices)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, r.BoundaryShare, 1e-12)
}

func TestComputeSkewed(t *testing.T) {
	r := Compute(10, 10, []uint64{10, 0, 0, 0, 0}, []uint64{8, 0, 0, 0, 0}, []uint64{8, 0, 0, 0, 0})
	assert.InDelta(t, 5.0, r.EdgeBalance, 1e-12)
	assert.Equal(t, uint64(2), r.UnmasteredVertices)
	assert.InDelta(t, 4.0, r.MasterBalance, 1e-12)
	assert.Greater(t, r.OccupiedStdDev, 0.0)
}

func TestComputeEmpty(t *testing.T) {
	r := Compute(0, 0, []uint64{0}, []uint64{0}, []uint64{0})
	assert.Equal(t, 0.0, r.EdgeBalance)
	assert.Equal(t, 0.0, r.ReplicationFactor)
	assert.Nil(t, r.BoundaryShare)
}

func TestWriteTextfile(t *testing.T) {
	r := Compute(4, 4, []uint64{2, 2}, []uint64{3, 3}, []uint64{2, 2})
	path := filepath.Join(t.TempDir(), "edgepart.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "edgepart_replication_factor 1.5")
	assert.Contains(t, text, `edgepart_partition_edges{partition="1"} 2`)
}
