package partition

import (
	"fmt"

	"github.com/gilchrisn/graph-partitioning-service/pkg/models"
)

// InvariantError reports a broken algorithm invariant. It signals a defect,
// never a property of the input, and a run that raises one has no result.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "partition invariant violated: " + e.Msg
}

func invariantf(format string, args ...interface{}) {
	panic(&InvariantError{Msg: fmt.Sprintf(format, args...)})
}

// InputError reports input that contradicts itself in a way only visible
// mid-run, such as a degree file that undercounts the edge file
type InputError struct {
	Msg string
}

func (e *InputError) Error() string {
	return "inconsistent input: " + e.Msg
}

func inputf(format string, args ...interface{}) {
	panic(&InputError{Msg: fmt.Sprintf(format, args...)})
}

// EdgeSource streams the canonical edge input.
// edgefile.Reader implements it.
type EdgeSource interface {
	Header() models.GraphHeader
	ReadBatch(dst []models.Edge) (int, error)
	Remaining() uint64
}

// SliceSource serves edges from memory
type SliceSource struct {
	header models.GraphHeader
	edges  []models.Edge
	next   int
}

// NewSliceSource wraps edges over numVertices vertices
func NewSliceSource(numVertices uint32, edges []models.Edge) *SliceSource {
	return &SliceSource{
		header: models.GraphHeader{NumVertices: numVertices, NumEdges: uint64(len(edges))},
		edges:  edges,
	}
}

func (s *SliceSource) Header() models.GraphHeader { return s.header }

func (s *SliceSource) Remaining() uint64 { return uint64(len(s.edges) - s.next) }

func (s *SliceSource) ReadBatch(dst []models.Edge) (int, error) {
	n := copy(dst, s.edges[s.next:])
	s.next += n
	return n, nil
}

// Sink receives the partitioning output. Implementations keep their first
// error and report it through Err.
type Sink interface {
	SaveEdge(from, to models.VertexID, partition uint16)
	SaveVertex(v models.VertexID, partition uint16)
	Err() error
}

// DiscardSink drops every record
type DiscardSink struct{}

func (DiscardSink) SaveEdge(models.VertexID, models.VertexID, uint16) {}
func (DiscardSink) SaveVertex(models.VertexID, uint16)                {}
func (DiscardSink) Err() error                                        { return nil }

// MultiSink fans records out to several sinks
type MultiSink []Sink

func (m MultiSink) SaveEdge(from, to models.VertexID, partition uint16) {
	for _, s := range m {
		s.SaveEdge(from, to, partition)
	}
}

func (m MultiSink) SaveVertex(v models.VertexID, partition uint16) {
	for _, s := range m {
		s.SaveVertex(v, partition)
	}
}

func (m MultiSink) Err() error {
	for _, s := range m {
		if err := s.Err(); err != nil {
			return err
		}
	}
	return nil
}

// MemorySink records everything it receives
type MemorySink struct {
	Edges   []models.EdgeAssignment
	Masters []models.MasterAssignment
}

func (m *MemorySink) SaveEdge(from, to models.VertexID, partition uint16) {
	m.Edges = append(m.Edges, models.EdgeAssignment{From: from, To: to, Partition: partition})
}

func (m *MemorySink) SaveVertex(v models.VertexID, partition uint16) {
	m.Masters = append(m.Masters, models.MasterAssignment{Vertex: v, Partition: partition})
}

func (m *MemorySink) Err() error { return nil }
