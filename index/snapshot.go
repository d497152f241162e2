package index

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/viant/vecindex/vector"
)

const (
	snapshotMagic   = "VIX1"
	snapshotVersion = uint32(1)
	maxStringLen    = 1 << 20
)

// MaxDimension is the largest vector dimension a snapshot may declare.
const MaxDimension = 1 << 16

// ErrCorruptSnapshot is returned when snapshot bytes cannot be decoded.
var ErrCorruptSnapshot = errors.New("index: corrupt snapshot")

// Header describes a persisted vector index.
type Header struct {
	Name      string
	Kind      string
	Metric    vector.Metric
	Embedder  string
	Dimension int
	CreatedAt time.Time
	Count     int
}

// Snapshot is the serialized form of a vector index: a header, the entries
// ordered by (ID, Key) and an optional structure blob for Structured indexes.
type Snapshot struct {
	Header
	Entries   []Entry
	Structure []byte
}

// WriteSnapshot encodes s to w. Layout (little-endian):
//
//	magic "VIX1" | version u32 | dim u32 | metric str | embedder str | name str |
//	kind str | created-at unix-nano i64 | count u32 |
//	count x (id str | key str | parent str | dim x f32) | structure len u32 | structure
//
// where str is a u32 length followed by the bytes. Entries are written in
// (ID, Key) order regardless of their order in s.
func WriteSnapshot(w io.Writer, s *Snapshot) error {
	entries := append([]Entry(nil), s.Entries...)
	SortEntries(entries)
	for _, e := range entries {
		if len(e.Vector) != s.Dimension {
			return vector.DimensionError(len(e.Vector), s.Dimension)
		}
	}

	bw := bufio.NewWriter(w)
	sw := &snapWriter{w: bw}
	sw.bytes([]byte(snapshotMagic))
	sw.u32(snapshotVersion)
	sw.u32(uint32(s.Dimension))
	sw.str(string(s.Metric))
	sw.str(s.Embedder)
	sw.str(s.Name)
	sw.str(s.Kind)
	var created int64
	if !s.CreatedAt.IsZero() {
		created = s.CreatedAt.UnixNano()
	}
	sw.u64(uint64(created))
	sw.u32(uint32(len(entries)))
	for _, e := range entries {
		sw.str(e.ID)
		sw.str(e.Key)
		sw.str(e.Parent)
		sw.scratch = vector.AppendEmbedding(sw.scratch[:0], e.Vector)
		sw.bytes(sw.scratch)
	}
	sw.u32(uint32(len(s.Structure)))
	sw.bytes(s.Structure)
	if sw.err != nil {
		return sw.err
	}
	return bw.Flush()
}

// ReadSnapshot decodes a snapshot written by WriteSnapshot. Every length
// read from the input is checked against the bytes that remain before
// anything is allocated.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	sr := &snapReader{data: data}
	magic := sr.bytes(len(snapshotMagic))
	if sr.err == nil && string(magic) != snapshotMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptSnapshot, magic)
	}
	if v := sr.u32(); sr.err == nil && v != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptSnapshot, v)
	}
	s := &Snapshot{}
	dim := sr.u32()
	s.Metric = vector.Metric(sr.str())
	s.Embedder = sr.str()
	s.Name = sr.str()
	s.Kind = sr.str()
	if created := int64(sr.u64()); created != 0 {
		s.CreatedAt = time.Unix(0, created).UTC()
	}
	count := sr.u32()
	if sr.err != nil {
		return nil, sr.err
	}
	if err := s.Metric.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if dim > MaxDimension {
		return nil, fmt.Errorf("%w: dimension %d exceeds %d", ErrCorruptSnapshot, dim, MaxDimension)
	}
	if count > 0 && dim == 0 {
		return nil, fmt.Errorf("%w: %d entries without a dimension", ErrCorruptSnapshot, count)
	}
	// each entry holds three length prefixes and dim floats at least
	if need := uint64(count) * (12 + 4*uint64(dim)); need > uint64(sr.remaining()) {
		return nil, fmt.Errorf("%w: %d entries of dimension %d need %d bytes, %d left", ErrCorruptSnapshot, count, dim, need, sr.remaining())
	}
	s.Dimension = int(dim)
	s.Count = int(count)
	s.Entries = make([]Entry, 0, s.Count)
	for i := 0; i < s.Count; i++ {
		e := Entry{ID: sr.str(), Key: sr.str(), Parent: sr.str()}
		if sr.err != nil {
			return nil, sr.err
		}
		if sr.remaining() < 4*s.Dimension {
			return nil, fmt.Errorf("%w: truncated", ErrCorruptSnapshot)
		}
		e.Vector = make([]float32, s.Dimension)
		for j := range e.Vector {
			e.Vector[j] = math.Float32frombits(sr.u32())
		}
		s.Entries = append(s.Entries, e)
	}
	if n := sr.u32(); n > 0 {
		s.Structure = sr.bytes(int(n))
	}
	if sr.err != nil {
		return nil, sr.err
	}
	if sr.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptSnapshot, sr.remaining())
	}
	return s, nil
}

type snapWriter struct {
	w       io.Writer
	buf     [8]byte
	scratch []byte
	err     error
}

func (s *snapWriter) bytes(b []byte) {
	if s.err != nil {
		return
	}
	_, s.err = s.w.Write(b)
}

func (s *snapWriter) u32(v uint32) {
	binary.LittleEndian.PutUint32(s.buf[:4], v)
	s.bytes(s.buf[:4])
}

func (s *snapWriter) u64(v uint64) {
	binary.LittleEndian.PutUint64(s.buf[:8], v)
	s.bytes(s.buf[:8])
}

func (s *snapWriter) str(v string) {
	s.u32(uint32(len(v)))
	s.bytes([]byte(v))
}

type snapReader struct {
	data []byte
	off  int
	err  error
}

func (s *snapReader) remaining() int { return len(s.data) - s.off }

// bytes returns the next n bytes without copying, or records a truncation.
func (s *snapReader) bytes(n int) []byte {
	if s.err != nil {
		return nil
	}
	if n < 0 || n > s.remaining() {
		s.err = fmt.Errorf("%w: truncated", ErrCorruptSnapshot)
		return nil
	}
	b := s.data[s.off : s.off+n]
	s.off += n
	return b
}

func (s *snapReader) u32() uint32 {
	b := s.bytes(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (s *snapReader) u64() uint64 {
	b := s.bytes(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (s *snapReader) str() string {
	n := s.u32()
	if s.err != nil {
		return ""
	}
	if n > maxStringLen {
		s.err = fmt.Errorf("%w: string length %d", ErrCorruptSnapshot, n)
		return ""
	}
	return string(s.bytes(int(n)))
}
