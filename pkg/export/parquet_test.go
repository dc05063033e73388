package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/graph-partitioning-service/pkg/models"
)

func TestParquetSinkRoundTrip(t *testing.T) {
	base := filepath.Join(t.TempDir(), "graph")
	sink, err := NewParquetSink(base)
	require.NoError(t, err)
	sink.batchSize = 3 // force several row groups worth of writes

	var wantEdges []models.EdgeAssignment
	for i := uint32(0); i < 10; i++ {
		sink.SaveEdge(i, i+1, uint16(i%4))
		wantEdges = append(wantEdges, models.EdgeAssignment{From: i, To: i + 1, Partition: uint16(i % 4)})
	}
	sink.SaveVertex(7, 2)
	sink.SaveVertex(3, 65535)
	require.NoError(t, sink.Err())
	require.NoError(t, sink.Close())

	edges, err := ReadEdges(EdgesName(base))
	require.NoError(t, err)
	assert.Equal(t, wantEdges, edges)

	masters, err := ReadMasters(MastersName(base))
	require.NoError(t, err)
	assert.Equal(t, []models.MasterAssignment{{Vertex: 7, Partition: 2}, {Vertex: 3, Partition: 65535}}, masters)
}

func TestParquetSinkBadDirectory(t *testing.T) {
	_, err := NewParquetSink(filepath.Join(t.TempDir(), "missing", "graph"))
	assert.Error(t, err)
}

func TestReadMissingFile(t *testing.T) {
	_, err := ReadEdges(filepath.Join(t.TempDir(), "nope.parquet"))
	assert.Error(t, err)
}
