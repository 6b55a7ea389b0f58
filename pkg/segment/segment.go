package segment

import (
	"context"
	"fmt"
	"sort"
)

// Range is an inclusive [First, Last] span of nanosecond timestamps.
type Range struct {
	First int64 `json:"first" yaml:"first"`
	Last  int64 `json:"last" yaml:"last"`
}

// Contains reports whether ts falls inside the range
func (r Range) Contains(ts int64) bool {
	return ts >= r.First && ts <= r.Last
}

// Intersect returns the overlap of two ranges, or false when disjoint
func (r Range) Intersect(other Range) (Range, bool) {
	out := Range{First: max64(r.First, other.First), Last: min64(r.Last, other.Last)}
	if out.First > out.Last {
		return Range{}, false
	}
	return out, true
}

// Segment is an ordered, time-sorted chunk of rows. Each segment
// independently declares its column set and per-column dtypes.
type Segment struct {
	index   []int64
	columns map[string]*Column
	names   []string // column names in declaration order
}

// Index returns the sorted nanosecond timestamp array
func (s *Segment) Index() []int64 { return s.index }

// Rows returns the number of rows in the segment
func (s *Segment) Rows() int { return len(s.index) }

// Range returns the inclusive timestamp extent of the segment
func (s *Segment) Range() Range {
	if len(s.index) == 0 {
		return Range{}
	}
	return Range{First: s.index[0], Last: s.index[len(s.index)-1]}
}

// Column returns the named column and whether it is present in this segment
func (s *Segment) Column(name string) (*Column, bool) {
	c, ok := s.columns[name]
	return c, ok
}

// Columns returns the column names in declaration order
func (s *Segment) Columns() []string { return s.names }

// Builder constructs a validated segment. Columns must match the index
// length; the index must be sorted ascending.
type Builder struct {
	index   []int64
	columns map[string]*Column
	names   []string
	err     error
}

// NewBuilder starts a segment over the given sorted index
func NewBuilder(index []int64) *Builder {
	return &Builder{index: index, columns: make(map[string]*Column)}
}

func (b *Builder) add(name string, col *Column, err error) *Builder {
	if b.err != nil {
		return b
	}
	if err != nil {
		b.err = fmt.Errorf("column %q: %w", name, err)
		return b
	}
	if _, dup := b.columns[name]; dup {
		b.err = fmt.Errorf("column %q declared twice", name)
		return b
	}
	b.columns[name] = col
	b.names = append(b.names, name)
	return b
}

// Int64 adds a signed integer column of the given width
func (b *Builder) Int64(name string, dtype DType, values []int64) *Builder {
	col, err := NewIntColumn(dtype, values)
	return b.add(name, col, err)
}

// Uint64 adds an unsigned integer column of the given width
func (b *Builder) Uint64(name string, dtype DType, values []uint64) *Builder {
	col, err := NewUintColumn(dtype, values)
	return b.add(name, col, err)
}

// Float64 adds a float64 column
func (b *Builder) Float64(name string, values []float64) *Builder {
	col, err := NewFloatColumn(Float64, values)
	return b.add(name, col, err)
}

// Float32 adds a float32 column; values are carried as float64 but the
// declared dtype stays 32-bit for promotion
func (b *Builder) Float32(name string, values []float64) *Builder {
	col, err := NewFloatColumn(Float32, values)
	return b.add(name, col, err)
}

// Bool adds a boolean column
func (b *Builder) Bool(name string, values []bool) *Builder {
	return b.add(name, NewBoolColumn(values), nil)
}

// Datetime adds a nanosecond timestamp column
func (b *Builder) Datetime(name string, values []int64) *Builder {
	return b.add(name, NewDatetimeColumn(values), nil)
}

// String adds a string column
func (b *Builder) String(name string, values []string) *Builder {
	return b.add(name, NewStringColumn(values), nil)
}

// Column adds a pre-built column, e.g. one carrying a validity bitmap
func (b *Builder) Column(name string, col *Column) *Builder {
	return b.add(name, col, nil)
}

// Build validates and returns the segment
func (b *Builder) Build() (*Segment, error) {
	if b.err != nil {
		return nil, b.err
	}
	if !sort.SliceIsSorted(b.index, func(i, j int) bool { return b.index[i] < b.index[j] }) {
		return nil, fmt.Errorf("segment index is not sorted ascending")
	}
	for _, name := range b.names {
		if got := b.columns[name].Len(); got != len(b.index) {
			return nil, fmt.Errorf("column %q has %d rows, index has %d", name, got, len(b.index))
		}
	}
	return &Segment{index: b.index, columns: b.columns, names: b.names}, nil
}

// MustBuild is Build for test fixtures; it panics on error
func (b *Builder) MustBuild() *Segment {
	seg, err := b.Build()
	if err != nil {
		panic(err)
	}
	return seg
}

// Source is an ordered iterator of segments in canonical write order. The
// full series range must be available without draining the iterator, since
// data-relative bucket origins anchor on the true extent of the symbol.
type Source interface {
	// FullRange returns the inclusive extent of the whole series, or false
	// when the series holds no rows.
	FullRange() (Range, bool)

	// Next returns the next segment in write order, or nil once exhausted.
	Next(ctx context.Context) (*Segment, error)
}

// SliceSource iterates over an in-memory list of segments.
type SliceSource struct {
	segments []*Segment
	pos      int
}

// NewSliceSource creates a source over segments in the given write order
func NewSliceSource(segments ...*Segment) *SliceSource {
	return &SliceSource{segments: segments}
}

// FullRange returns the extent across all held segments
func (s *SliceSource) FullRange() (Range, bool) {
	var full Range
	found := false
	for _, seg := range s.segments {
		if seg.Rows() == 0 {
			continue
		}
		r := seg.Range()
		if !found {
			full = r
			found = true
			continue
		}
		full.First = min64(full.First, r.First)
		full.Last = max64(full.Last, r.Last)
	}
	return full, found
}

// Next returns the next segment, honoring context cancellation
func (s *SliceSource) Next(ctx context.Context) (*Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.segments) {
		return nil, nil
	}
	seg := s.segments[s.pos]
	s.pos++
	return seg, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
