package edgepart

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/gilchrisn/graph-partitioning-service/pkg/models"
)

// Record tags
const (
	TagVertex byte = 0
	TagEdge   byte = 1
)

const (
	escapeByte  = 0xFF
	escapedFF   = 0x01
	escapedLF   = 0x00
	newline     = '\n'
	vertexBytes = 1 + 4 + 2
	edgeBytes   = 1 + 4 + 4 + 2
)

var (
	// ErrBadEscape means an escape byte was followed by an unknown code
	ErrBadEscape = errors.New("edgepart: invalid escape sequence")
	// ErrBadRecord means a record has an unknown tag or the wrong length
	ErrBadRecord = errors.New("edgepart: malformed record")
)

// Escape replaces 0xFF with 0xFF 0x01 and '\n' with 0xFF 0x00, appending to dst
func Escape(dst, src []byte) []byte {
	for _, b := range src {
		switch b {
		case escapeByte:
			dst = append(dst, escapeByte, escapedFF)
		case newline:
			dst = append(dst, escapeByte, escapedLF)
		default:
			dst = append(dst, b)
		}
	}
	return dst
}

// Unescape reverses Escape, appending to dst
func Unescape(dst, src []byte) ([]byte, error) {
	for i := 0; i < len(src); i++ {
		if src[i] != escapeByte {
			dst = append(dst, src[i])
			continue
		}
		if i+1 >= len(src) {
			return dst, ErrBadEscape
		}
		i++
		switch src[i] {
		case escapedFF:
			dst = append(dst, escapeByte)
		case escapedLF:
			dst = append(dst, newline)
		default:
			return dst, ErrBadEscape
		}
	}
	return dst, nil
}

// Writer encodes master and edge records as newline-terminated escaped lines.
// The first write error is kept and reported by Err and Close.
type Writer struct {
	w       *bufio.Writer
	closer  io.Closer
	raw     [edgeBytes]byte
	line    []byte
	err     error
	Edges   uint64
	Masters uint64
}

// NewWriter wraps w. If w is an io.Closer, Close closes it after flushing.
func NewWriter(w io.Writer) *Writer {
	wr := &Writer{
		w:    bufio.NewWriterSize(w, 1<<20),
		line: make([]byte, 0, 2*edgeBytes+1),
	}
	if c, ok := w.(io.Closer); ok {
		wr.closer = c
	}
	return wr
}

func (w *Writer) emit(raw []byte) {
	if w.err != nil {
		return
	}
	w.line = Escape(w.line[:0], raw)
	w.line = append(w.line, newline)
	_, w.err = w.w.Write(w.line)
}

// SaveVertex writes a master record
func (w *Writer) SaveVertex(v models.VertexID, partition uint16) {
	w.raw[0] = TagVertex
	binary.LittleEndian.PutUint32(w.raw[1:5], v)
	binary.LittleEndian.PutUint16(w.raw[5:7], partition)
	w.emit(w.raw[:vertexBytes])
	w.Masters++
}

// SaveEdge writes an edge-assignment record
func (w *Writer) SaveEdge(from, to models.VertexID, partition uint16) {
	w.raw[0] = TagEdge
	binary.LittleEndian.PutUint32(w.raw[1:5], from)
	binary.LittleEndian.PutUint32(w.raw[5:9], to)
	binary.LittleEndian.PutUint16(w.raw[9:11], partition)
	w.emit(w.raw[:edgeBytes])
	w.Edges++
}

// Err returns the first write error
func (w *Writer) Err() error { return w.err }

// Flush writes buffered records to the underlying writer
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	w.err = w.w.Flush()
	return w.err
}

// Close flushes and closes the underlying writer when it is closable
func (w *Writer) Close() error {
	err := w.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Record is one decoded line of the stream. Exactly one of Edge / Master is set.
type Record struct {
	Tag    byte
	Edge   models.EdgeAssignment
	Master models.MasterAssignment
}

// Reader decodes a partition output stream
type Reader struct {
	r   *bufio.Reader
	buf []byte
}

// NewReader wraps r
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 1<<20)}
}

// Next returns the next record, or io.EOF at the end of the stream
func (r *Reader) Next() (Record, error) {
	line, err := r.r.ReadSlice(newline)
	if err == io.EOF && len(line) == 0 {
		return Record{}, io.EOF
	}
	if err != nil {
		if err == io.EOF {
			return Record{}, errors.Wrap(ErrBadRecord, "missing record terminator")
		}
		return Record{}, errors.Wrap(err, "read partition record")
	}

	r.buf, err = Unescape(r.buf[:0], line[:len(line)-1])
	if err != nil {
		return Record{}, err
	}
	return decode(r.buf)
}

func decode(raw []byte) (Record, error) {
	if len(raw) == 0 {
		return Record{}, ErrBadRecord
	}
	switch raw[0] {
	case TagVertex:
		if len(raw) != vertexBytes {
			return Record{}, errors.Wrapf(ErrBadRecord, "vertex record of %d bytes", len(raw))
		}
		return Record{Tag: TagVertex, Master: models.MasterAssignment{
			Vertex:    binary.LittleEndian.Uint32(raw[1:5]),
			Partition: binary.LittleEndian.Uint16(raw[5:7]),
		}}, nil
	case TagEdge:
		if len(raw) != edgeBytes {
			return Record{}, errors.Wrapf(ErrBadRecord, "edge record of %d bytes", len(raw))
		}
		return Record{Tag: TagEdge, Edge: models.EdgeAssignment{
			From:      binary.LittleEndian.Uint32(raw[1:5]),
			To:        binary.LittleEndian.Uint32(raw[5:9]),
			Partition: binary.LittleEndian.Uint16(raw[9:11]),
		}}, nil
	}
	return Record{}, errors.Wrapf(ErrBadRecord, "unknown tag %d", raw[0])
}

// ReadAll decodes a whole stream into edge and master assignments
func ReadAll(r io.Reader) ([]models.EdgeAssignment, []models.MasterAssignment, error) {
	rd := NewReader(r)
	var edges []models.EdgeAssignment
	var masters []models.MasterAssignment
	for {
		rec, err := rd.Next()
		if err == io.EOF {
			return edges, masters, nil
		}
		if err != nil {
			return nil, nil, err
		}
		if rec.Tag == TagEdge {
			edges = append(edges, rec.Edge)
		} else {
			masters = append(masters, rec.Master)
		}
	}
}
