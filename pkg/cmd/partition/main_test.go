package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/graph-partitioning-service/pkg/edgefile"
	"github.com/gilchrisn/graph-partitioning-service/pkg/edgepart"
	"github.com/gilchrisn/graph-partitioning-service/pkg/models"
)

func writeTestGraph(t *testing.T) string {
	t.Helper()
	base := filepath.Join(t.TempDir(), "ring")
	var edges []models.Edge
	for i := uint32(0); i < 30; i++ {
		edges = append(edges, models.Edge{From: i, To: (i + 1) % 30})
	}
	require.NoError(t, edgefile.WriteGraph(base, 30, edges))
	return base
}

func TestRootCommandPartitions(t *testing.T) {
	base := writeTestGraph(t)

	cmd := newRootCmd()
	cmd.SetArgs([]string{base, "-p", "3", "--seed", "5", "--log-level", "error", "--in-memory", "false"})
	require.NoError(t, cmd.Execute())

	file, err := os.Open(base + ".edgepart")
	require.NoError(t, err)
	defer file.Close()
	edges, masters, err := edgepart.ReadAll(file)
	require.NoError(t, err)
	assert.Len(t, edges, 30)
	assert.Len(t, masters, 30)
	for _, e := range edges {
		assert.Less(t, e.Partition, uint16(3))
	}
}

func TestRootCommandConfigFile(t *testing.T) {
	base := writeTestGraph(t)
	configPath := filepath.Join(t.TempDir(), "edgepart.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("partition:\n  count: 2\nlogging:\n  level: error\n"), 0o644))

	cmd := newRootCmd()
	cmd.SetArgs([]string{base, "--config", configPath, "--write-assignments=false", "--metrics-textfile", base + ".prom"})
	require.NoError(t, cmd.Execute())

	assert.NoFileExists(t, base+".edgepart")
	data, err := os.ReadFile(base + ".prom")
	require.NoError(t, err)
	assert.Contains(t, string(data), `edgepart_partition_edges{partition="1"}`)
	assert.NotContains(t, string(data), `edgepart_partition_edges{partition="2"}`)
}

func TestRootCommandRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing files", []string{filepath.Join(t.TempDir(), "absent"), "--log-level", "error"}},
		{"bad profile", []string{writeTestGraph(t), "--profile", "turbo", "--log-level", "error"}},
		{"bad partitions", []string{writeTestGraph(t), "-p", "0"}},
		{"no input", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			cmd.SetArgs(tt.args)
			assert.Error(t, cmd.Execute())
		})
	}
}
