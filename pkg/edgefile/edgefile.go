package edgefile

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"

	"github.com/gilchrisn/graph-partitioning-service/pkg/models"
)

const (
	// HeaderSize is [vertex_count: u32][edge_count: u64]
	HeaderSize = 4 + 8
	// EdgeSize is [from: u32][to: u32]
	EdgeSize = 4 + 4
)

var (
	// ErrTruncated means the file is shorter than its header requires
	ErrTruncated = errors.New("edge file truncated")
	// ErrSizeMismatch means the file size disagrees with the header counts
	ErrSizeMismatch = errors.New("edge file size mismatch")
)

// BinEdgeListName returns the canonical edge file name for a base file name
func BinEdgeListName(base string) string { return base + ".binedgelist" }

// DegreeName returns the degree file name for a base file name
func DegreeName(base string) string { return base + ".degree" }

// PartitionedName returns the partition output file name for a base file name
func PartitionedName(base string) string { return base + ".edgepart" }

// Reader is a read-only, memory-mapped view of a canonical binary edge file.
// Edges are consumed sequentially; Rewind starts over.
type Reader struct {
	path   string
	ra     *mmap.ReaderAt
	header models.GraphHeader
	next   uint64
	buf    []byte
}

// Open maps path and validates its size against the header
func Open(path string) (*Reader, error) {
	ra, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open edge file %s", path)
	}

	r := &Reader{path: path, ra: ra}
	if err := r.readHeader(); err != nil {
		ra.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) readHeader() error {
	size := uint64(r.ra.Len())
	if size < HeaderSize {
		return errors.Wrapf(ErrTruncated, "%s: %d bytes, header needs %d", r.path, size, HeaderSize)
	}

	var hdr [HeaderSize]byte
	if _, err := r.ra.ReadAt(hdr[:], 0); err != nil {
		return errors.Wrapf(err, "read header of %s", r.path)
	}
	r.header = models.GraphHeader{
		NumVertices: binary.LittleEndian.Uint32(hdr[0:4]),
		NumEdges:    binary.LittleEndian.Uint64(hdr[4:12]),
	}

	// Count whole records instead of multiplying the header count, which
	// wraps for absurd edge counts
	body := size - HeaderSize
	records, partial := body/EdgeSize, body%EdgeSize
	switch {
	case records < r.header.NumEdges:
		return errors.Wrapf(ErrTruncated, "%s: %d bytes hold %d edge records, header declares %d",
			r.path, size, records, r.header.NumEdges)
	case records != r.header.NumEdges || partial != 0:
		return errors.Wrapf(ErrSizeMismatch, "%s: %d bytes, header declares %d edges",
			r.path, size, r.header.NumEdges)
	}
	return nil
}

// Header returns the vertex and edge counts
func (r *Reader) Header() models.GraphHeader { return r.header }

// Remaining returns the number of edges not read yet
func (r *Reader) Remaining() uint64 { return r.header.NumEdges - r.next }

// ReadBatch fills dst with the next edges and returns how many were read.
// It returns 0 once the file is exhausted.
func (r *Reader) ReadBatch(dst []models.Edge) (int, error) {
	n := uint64(len(dst))
	if rem := r.Remaining(); n > rem {
		n = rem
	}
	if n == 0 {
		return 0, nil
	}

	need := int(n * EdgeSize)
	if cap(r.buf) < need {
		r.buf = make([]byte, need)
	}
	buf := r.buf[:need]
	off := int64(HeaderSize + r.next*EdgeSize)
	if _, err := r.ra.ReadAt(buf, off); err != nil {
		return 0, errors.Wrapf(err, "read edges at offset %d of %s", off, r.path)
	}

	for i := uint64(0); i < n; i++ {
		rec := buf[i*EdgeSize:]
		dst[i] = models.Edge{
			From: binary.LittleEndian.Uint32(rec[0:4]),
			To:   binary.LittleEndian.Uint32(rec[4:8]),
		}
	}
	r.next += n
	return int(n), nil
}

// ReadAll returns every remaining edge
func (r *Reader) ReadAll() ([]models.Edge, error) {
	edges := make([]models.Edge, r.Remaining())
	n, err := r.ReadBatch(edges)
	if err != nil {
		return nil, err
	}
	return edges[:n], nil
}

// Rewind restarts reading at the first edge
func (r *Reader) Rewind() { r.next = 0 }

// Close unmaps the file
func (r *Reader) Close() error {
	return r.ra.Close()
}

// Write creates a canonical binary edge file
func Write(path string, numVertices uint32, edges []models.Edge) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create edge file %s", path)
	}
	defer f.Close()

	buf := make([]byte, HeaderSize+len(edges)*EdgeSize)
	binary.LittleEndian.PutUint32(buf[0:4], numVertices)
	binary.LittleEndian.PutUint64(buf[4:12], uint64(len(edges)))
	for i, e := range edges {
		if e.From >= numVertices || e.To >= numVertices {
			return fmt.Errorf("edge %d %s out of range for %d vertices", i, e, numVertices)
		}
		rec := buf[HeaderSize+i*EdgeSize:]
		binary.LittleEndian.PutUint32(rec[0:4], e.From)
		binary.LittleEndian.PutUint32(rec[4:8], e.To)
	}
	if _, err := f.Write(buf); err != nil {
		return errors.Wrapf(err, "write edge file %s", path)
	}
	return f.Close()
}
