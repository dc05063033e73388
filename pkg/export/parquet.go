package export

import (
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"

	"github.com/gilchrisn/graph-partitioning-service/pkg/models"
)

const defaultBatchSize = 8192

// EdgesName and MastersName return the Parquet file names for a base name
func EdgesName(base string) string   { return base + ".edges.parquet" }
func MastersName(base string) string { return base + ".masters.parquet" }

// ParquetSink writes edge and master assignments to two Zstd-compressed
// Parquet files. Rows are buffered and flushed in batches; the first error
// sticks and later records are dropped.
type ParquetSink struct {
	edgeFile   *os.File
	masterFile *os.File
	edges      *parquet.GenericWriter[models.EdgeAssignment]
	masters    *parquet.GenericWriter[models.MasterAssignment]

	edgeBuf   []models.EdgeAssignment
	masterBuf []models.MasterAssignment
	batchSize int
	err       error
}

// NewParquetSink creates <base>.edges.parquet and <base>.masters.parquet
func NewParquetSink(base string) (*ParquetSink, error) {
	edgeFile, err := os.Create(EdgesName(base))
	if err != nil {
		return nil, errors.Wrap(err, "creating edge parquet file")
	}
	masterFile, err := os.Create(MastersName(base))
	if err != nil {
		edgeFile.Close()
		return nil, errors.Wrap(err, "creating master parquet file")
	}

	return &ParquetSink{
		edgeFile:   edgeFile,
		masterFile: masterFile,
		edges:      parquet.NewGenericWriter[models.EdgeAssignment](edgeFile, parquet.Compression(&parquet.Zstd)),
		masters:    parquet.NewGenericWriter[models.MasterAssignment](masterFile, parquet.Compression(&parquet.Zstd)),
		edgeBuf:    make([]models.EdgeAssignment, 0, defaultBatchSize),
		masterBuf:  make([]models.MasterAssignment, 0, defaultBatchSize),
		batchSize:  defaultBatchSize,
	}, nil
}

func (s *ParquetSink) SaveEdge(from, to models.VertexID, partition uint16) {
	if s.err != nil {
		return
	}
	s.edgeBuf = append(s.edgeBuf, models.EdgeAssignment{From: from, To: to, Partition: partition})
	if len(s.edgeBuf) >= s.batchSize {
		s.flushEdges()
	}
}

func (s *ParquetSink) SaveVertex(v models.VertexID, partition uint16) {
	if s.err != nil {
		return
	}
	s.masterBuf = append(s.masterBuf, models.MasterAssignment{Vertex: v, Partition: partition})
	if len(s.masterBuf) >= s.batchSize {
		s.flushMasters()
	}
}

func (s *ParquetSink) flushEdges() {
	if len(s.edgeBuf) == 0 || s.err != nil {
		return
	}
	if _, err := s.edges.Write(s.edgeBuf); err != nil {
		s.err = errors.Wrap(err, "writing edge rows")
	}
	s.edgeBuf = s.edgeBuf[:0]
}

func (s *ParquetSink) flushMasters() {
	if len(s.masterBuf) == 0 || s.err != nil {
		return
	}
	if _, err := s.masters.Write(s.masterBuf); err != nil {
		s.err = errors.Wrap(err, "writing master rows")
	}
	s.masterBuf = s.masterBuf[:0]
}

func (s *ParquetSink) Err() error { return s.err }

// Close flushes buffered rows and closes both files
func (s *ParquetSink) Close() error {
	s.flushEdges()
	s.flushMasters()

	closers := []func() error{s.edges.Close, s.masters.Close, s.edgeFile.Close, s.masterFile.Close}
	for _, c := range closers {
		if err := c(); err != nil && s.err == nil {
			s.err = errors.Wrap(err, "closing parquet output")
		}
	}
	return s.err
}

// ReadEdges loads every edge assignment from a Parquet file
func ReadEdges(path string) ([]models.EdgeAssignment, error) {
	rows, err := parquet.ReadFile[models.EdgeAssignment](path)
	return rows, errors.Wrapf(err, "reading %s", path)
}

// ReadMasters loads every master assignment from a Parquet file
func ReadMasters(path string) ([]models.MasterAssignment, error) {
	rows, err := parquet.ReadFile[models.MasterAssignment](path)
	return rows, errors.Wrapf(err, "reading %s", path)
}
