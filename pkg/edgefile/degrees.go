package edgefile

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"

	"github.com/gilchrisn/graph-partitioning-service/pkg/models"
)

// ReadDegrees loads a degree file of numVertices little-endian u32 values
func ReadDegrees(path string, numVertices uint32) ([]uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read degree file %s", path)
	}
	expected := uint64(numVertices) * 4
	if uint64(len(data)) < expected {
		return nil, errors.Wrapf(ErrTruncated, "%s: %d bytes, %d vertices need %d", path, len(data), numVertices, expected)
	}
	if uint64(len(data)) != expected {
		return nil, errors.Wrapf(ErrSizeMismatch, "%s: %d bytes, expected %d", path, len(data), expected)
	}

	degrees := make([]uint32, numVertices)
	for v := range degrees {
		degrees[v] = binary.LittleEndian.Uint32(data[v*4:])
	}
	return degrees, nil
}

// WriteDegrees writes one little-endian u32 per vertex
func WriteDegrees(path string, degrees []uint32) error {
	buf := make([]byte, len(degrees)*4)
	for v, d := range degrees {
		binary.LittleEndian.PutUint32(buf[v*4:], d)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return errors.Wrapf(err, "write degree file %s", path)
	}
	return nil
}

// ComputeDegrees counts the undirected degree of every vertex
func ComputeDegrees(numVertices uint32, edges []models.Edge) []uint32 {
	degrees := make([]uint32, numVertices)
	for _, e := range edges {
		degrees[e.From]++
		degrees[e.To]++
	}
	return degrees
}

// WriteGraph writes both <base>.binedgelist and <base>.degree
func WriteGraph(base string, numVertices uint32, edges []models.Edge) error {
	if err := Write(BinEdgeListName(base), numVertices, edges); err != nil {
		return err
	}
	return WriteDegrees(DegreeName(base), ComputeDegrees(numVertices, edges))
}
