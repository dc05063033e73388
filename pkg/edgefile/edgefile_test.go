package edgefile

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/graph-partitioning-service/pkg/models"
)

func cycle(n uint32) []models.Edge {
	edges := make([]models.Edge, 0, n)
	for i := uint32(0); i < n; i++ {
		edges = append(edges, models.Edge{From: i, To: (i + 1) % n})
	}
	return edges
}

func TestWriteOpenRead(t *testing.T) {
	base := filepath.Join(t.TempDir(), "ring")
	edges := cycle(10)
	require.NoError(t, WriteGraph(base, 10, edges))

	info, err := os.Stat(BinEdgeListName(base))
	require.NoError(t, err)
	assert.Equal(t, int64(HeaderSize+len(edges)*EdgeSize), info.Size())

	r, err := Open(BinEdgeListName(base))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, models.GraphHeader{NumVertices: 10, NumEdges: 10}, r.Header())

	batch := make([]models.Edge, 4)
	var got []models.Edge
	for {
		n, err := r.ReadBatch(batch)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		got = append(got, batch[:n]...)
	}
	assert.Equal(t, edges, got)
	assert.Equal(t, uint64(0), r.Remaining())

	r.Rewind()
	all, err := r.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, edges, all)

	degrees, err := ReadDegrees(DegreeName(base), 10)
	require.NoError(t, err)
	for _, d := range degrees {
		assert.Equal(t, uint32(2), d)
	}
}

func TestOpenRejectsSizeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.binedgelist")
	require.NoError(t, Write(path, 4, cycle(4)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// one trailing byte too many
	require.NoError(t, os.WriteFile(path, append(data, 0), 0o644))
	_, err = Open(path)
	assert.True(t, errors.Is(err, ErrSizeMismatch), "got %v", err)

	// last record cut short
	require.NoError(t, os.WriteFile(path, data[:len(data)-3], 0o644))
	_, err = Open(path)
	assert.True(t, errors.Is(err, ErrTruncated), "got %v", err)

	// not even a header
	require.NoError(t, os.WriteFile(path, data[:5], 0o644))
	_, err = Open(path)
	assert.True(t, errors.Is(err, ErrTruncated), "got %v", err)

	// bare header declaring 2^61 edges, where 12 + 8E wraps to 12
	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], 4)
	binary.LittleEndian.PutUint64(header[4:12], 1<<61)
	require.NoError(t, os.WriteFile(path, header, 0o644))
	_, err = Open(path)
	assert.True(t, errors.Is(err, ErrTruncated), "got %v", err)

	// same header followed by one record
	require.NoError(t, os.WriteFile(path, append(header, make([]byte, EdgeSize)...), 0o644))
	_, err = Open(path)
	assert.True(t, errors.Is(err, ErrTruncated), "got %v", err)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestReadDegreesSizeCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g.degree")
	require.NoError(t, WriteDegrees(path, []uint32{1, 2, 3}))

	_, err := ReadDegrees(path, 4)
	assert.True(t, errors.Is(err, ErrTruncated))
	_, err = ReadDegrees(path, 2)
	assert.True(t, errors.Is(err, ErrSizeMismatch))

	d, err := ReadDegrees(path, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2, 3}, d)
}

func TestWriteRejectsOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oob")
	err := Write(path, 2, []models.Edge{{From: 0, To: 2}})
	assert.Error(t, err)
}
