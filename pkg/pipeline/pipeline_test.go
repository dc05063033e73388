package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/graph-partitioning-service/pkg/edgefile"
	"github.com/gilchrisn/graph-partitioning-service/pkg/edgepart"
	"github.com/gilchrisn/graph-partitioning-service/pkg/export"
	"github.com/gilchrisn/graph-partitioning-service/pkg/models"
	"github.com/gilchrisn/graph-partitioning-service/pkg/partition"
)

// gridGraph builds a rows x cols grid with right and down edges
func gridGraph(rows, cols uint32) (uint32, []models.Edge) {
	var edges []models.Edge
	id := func(r, c uint32) uint32 { return r*cols + c }
	for r := uint32(0); r < rows; r++ {
		for c := uint32(0); c < cols; c++ {
			if c+1 < cols {
				edges = append(edges, models.Edge{From: id(r, c), To: id(r, c+1)})
			}
			if r+1 < rows {
				edges = append(edges, models.Edge{From: id(r, c), To: id(r+1, c)})
			}
		}
	}
	return rows * cols, edges
}

func newTestPipeline(t *testing.T, p int) *Pipeline {
	t.Helper()
	config := partition.NewConfig()
	config.Set("partition.count", p)
	config.Set("algorithm.random_seed", 7)
	config.Set("performance.num_workers", 2)
	pl := New(config)
	pl.Logger = zerolog.Nop()
	return pl
}

func TestPipelineWritesAllOutputs(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "grid")
	numVertices, edges := gridGraph(10, 10)
	require.NoError(t, edgefile.WriteGraph(base, numVertices, edges))

	outDir := filepath.Join(dir, "out")
	pl := newTestPipeline(t, 4)
	pl.Config.Set("output.dir", outDir)
	pl.Config.Set("output.parquet", true)
	pl.Config.Set("output.metrics_textfile", filepath.Join(dir, "edgepart.prom"))
	pl.Config.Set("analysis.track_rounds", true)

	result, err := pl.Run(context.Background(), base)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(outDir, "grid.edgepart"), result.OutputFile)
	assert.Equal(t, filepath.Join(outDir, "rounds.jsonl"), result.RoundsFile)
	for _, path := range []string{result.OutputFile, result.SummaryFile, result.MetricsFile, result.RoundsFile} {
		assert.FileExists(t, path)
	}

	// Decoded stream agrees with the in-memory result
	file, err := os.Open(result.OutputFile)
	require.NoError(t, err)
	defer file.Close()
	gotEdges, gotMasters, err := edgepart.ReadAll(file)
	require.NoError(t, err)
	assert.Len(t, gotEdges, len(edges))
	assert.Len(t, gotMasters, int(numVertices))

	counts := make([]uint64, 4)
	for _, a := range gotEdges {
		counts[a.Partition]++
	}
	assert.Equal(t, result.Partition.Occupied, counts)
	for _, m := range gotMasters {
		assert.Equal(t, int32(m.Partition), result.Partition.Masters[m.Vertex])
	}

	parquetEdges, err := export.ReadEdges(export.EdgesName(result.ParquetBase))
	require.NoError(t, err)
	assert.Equal(t, gotEdges, parquetEdges)
	parquetMasters, err := export.ReadMasters(export.MastersName(result.ParquetBase))
	require.NoError(t, err)
	assert.Equal(t, gotMasters, parquetMasters)

	// One round line per bucket, labelled with the engine's algorithm
	rounds, err := os.Open(result.RoundsFile)
	require.NoError(t, err)
	defer rounds.Close()
	lines := 0
	scanner := bufio.NewScanner(rounds)
	for scanner.Scan() {
		var event struct {
			Algorithm string `json:"algorithm"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event))
		assert.Equal(t, "ne", event.Algorithm)
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, 4, lines)
}

func TestPipelineStreamingProfile(t *testing.T) {
	base := filepath.Join(t.TempDir(), "grid")
	numVertices, edges := gridGraph(20, 20)
	require.NoError(t, edgefile.WriteGraph(base, numVertices, edges))

	pl := newTestPipeline(t, 3)
	pl.ConfigureForLargeGraphs()
	pl.Config.Set("performance.read_batch", 100)

	result, err := pl.Run(context.Background(), base)
	require.NoError(t, err)
	assert.False(t, result.Partition.InMemory)

	var total uint64
	for _, o := range result.Partition.Occupied {
		total += o
	}
	assert.Equal(t, uint64(len(edges)), total)
	assert.Equal(t, base+".edgepart", result.OutputFile)
}

func TestPipelineMissingInput(t *testing.T) {
	pl := newTestPipeline(t, 2)
	_, err := pl.Run(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Equal(t, ErrMissingInput, errors.Cause(err))
}

func TestPipelineTruncatedInput(t *testing.T) {
	base := filepath.Join(t.TempDir(), "bad")
	numVertices, edges := gridGraph(3, 3)
	require.NoError(t, edgefile.WriteGraph(base, numVertices, edges))

	// Chop the last edge record off
	data, err := os.ReadFile(edgefile.BinEdgeListName(base))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(edgefile.BinEdgeListName(base), data[:len(data)-edgefile.EdgeSize], 0o644))

	_, err = newTestPipeline(t, 2).Run(context.Background(), base)
	require.Error(t, err)
}

func TestPipelineSkipsAssignmentsWhenDisabled(t *testing.T) {
	base := filepath.Join(t.TempDir(), "grid")
	numVertices, edges := gridGraph(4, 4)
	require.NoError(t, edgefile.WriteGraph(base, numVertices, edges))

	pl := newTestPipeline(t, 2)
	pl.Config.Set("output.write_assignments", false)
	result, err := pl.Run(context.Background(), base)
	require.NoError(t, err)
	assert.Empty(t, result.OutputFile)
	assert.NoFileExists(t, base+".edgepart")
}
