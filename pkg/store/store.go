// Package store provides an in-memory segment store: symbols map to
// ordered lists of compressed segment blocks. The store preserves canonical
// write order, validates index sortedness on append, and serves the
// resampling engine's Source iterator, exposing each symbol's full extent
// without decompressing a single block.
package store

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/tickfold/tickfold/pkg/errors"
	"github.com/tickfold/tickfold/pkg/formats"
	"github.com/tickfold/tickfold/pkg/logger"
	"github.com/tickfold/tickfold/pkg/metrics"
	"github.com/tickfold/tickfold/pkg/segment"
)

// block is one segment at rest: a compressed payload plus the metadata the
// iterator needs before deciding to decompress.
type block struct {
	payload []byte
	rng     segment.Range
	rows    int
	schema  map[string]string // column name -> dtype, as declared by this segment
}

type symbolData struct {
	blocks          []block
	compressedBytes int64
}

// Config configures the store.
type Config struct {
	// Compression selects the at-rest block codec
	Compression Algorithm `yaml:"compression" json:"compression"`
}

// Store holds segments per symbol. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	codec   Codec
	symbols map[string]*symbolData
	log     *zap.Logger
}

// New creates a store with the given configuration
func New(cfg Config) (*Store, error) {
	codec, err := NewCodec(cfg.Compression)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfiguration, "invalid store configuration")
	}
	return &Store{
		codec:   codec,
		symbols: make(map[string]*symbolData),
		log:     logger.Get(),
	}, nil
}

// Append adds a segment to the symbol's list, preserving write order.
// Empty segments are rejected; index sortedness is guaranteed by the
// segment builder.
func (s *Store) Append(symbol string, seg *segment.Segment) error {
	if seg.Rows() == 0 {
		return errors.Newf(errors.ErrorTypeValidation, "segment for %q has no rows", symbol)
	}
	payload, err := formats.MarshalSegment(seg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to encode segment")
	}
	compressed, err := s.codec.Compress(payload)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to compress segment")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.symbols[symbol]
	if !ok {
		data = &symbolData{}
		s.symbols[symbol] = data
	}
	schema := make(map[string]string, len(seg.Columns()))
	for _, name := range seg.Columns() {
		col, _ := seg.Column(name)
		schema[name] = col.DType().String()
	}
	data.blocks = append(data.blocks, block{
		payload: compressed,
		rng:     seg.Range(),
		rows:    seg.Rows(),
		schema:  schema,
	})
	data.compressedBytes += int64(len(compressed))

	metrics.StoreSegments.WithLabelValues(symbol).Set(float64(len(data.blocks)))
	metrics.StoreCompressedBytes.WithLabelValues(symbol).Set(float64(data.compressedBytes))
	s.log.Debug("segment appended",
		zap.String("symbol", symbol),
		zap.Int("rows", seg.Rows()),
		zap.Int("compressed_bytes", len(compressed)),
		zap.String("codec", string(s.codec.Algorithm())))
	return nil
}

// Symbols returns the stored symbol names
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.symbols))
	for name := range s.symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Info describes one stored symbol. Columns holds the union of per-segment
// dtype declarations; under dynamic schema a column may appear under a
// different dtype in later segments, in which case the latest declaration
// wins.
type Info struct {
	Symbol          string            `json:"symbol"`
	Segments        int               `json:"segments"`
	Rows            int               `json:"rows"`
	Range           segment.Range     `json:"range"`
	Columns         map[string]string `json:"columns"`
	CompressedBytes int64             `json:"compressed_bytes"`
}

// Describe returns metadata for a symbol without decompressing blocks
func (s *Store) Describe(symbol string) (Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.symbols[symbol]
	if !ok {
		return Info{}, errors.Newf(errors.ErrorTypeNotFound, "symbol %q not found", symbol)
	}
	info := Info{
		Symbol:          symbol,
		Segments:        len(data.blocks),
		Columns:         make(map[string]string),
		CompressedBytes: data.compressedBytes,
	}
	for i, b := range data.blocks {
		info.Rows += b.rows
		for name, dtype := range b.schema {
			info.Columns[name] = dtype
		}
		if i == 0 {
			info.Range = b.rng
			continue
		}
		if b.rng.First < info.Range.First {
			info.Range.First = b.rng.First
		}
		if b.rng.Last > info.Range.Last {
			info.Range.Last = b.rng.Last
		}
	}
	return info, nil
}

// Iterator returns a Source over the symbol's segments in write order.
// When a range is given, blocks wholly outside it are skipped without
// decompression; the full series extent still reflects every block.
func (s *Store) Iterator(symbol string, rng *segment.Range) (segment.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.symbols[symbol]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "symbol %q not found", symbol)
	}

	it := &iterator{codec: s.codec}
	for i, b := range data.blocks {
		if i == 0 {
			it.full = b.rng
			it.hasData = true
		} else {
			if b.rng.First < it.full.First {
				it.full.First = b.rng.First
			}
			if b.rng.Last > it.full.Last {
				it.full.Last = b.rng.Last
			}
		}
		if rng != nil {
			if _, overlaps := b.rng.Intersect(*rng); !overlaps {
				continue
			}
		}
		it.blocks = append(it.blocks, b)
	}
	return it, nil
}

// iterator decompresses blocks lazily as the engine drains it.
type iterator struct {
	codec   Codec
	blocks  []block
	pos     int
	full    segment.Range
	hasData bool
}

// FullRange returns the symbol's true extent, independent of any skipped
// blocks, which data-relative bucket origins anchor on.
func (it *iterator) FullRange() (segment.Range, bool) {
	return it.full, it.hasData
}

// Next decompresses and decodes the next overlapping block
func (it *iterator) Next(ctx context.Context) (*segment.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.pos >= len(it.blocks) {
		return nil, nil
	}
	b := it.blocks[it.pos]
	it.pos++

	payload, err := it.codec.Decompress(b.payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to decompress segment")
	}
	seg, err := formats.UnmarshalSegment(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to decode segment")
	}
	return seg, nil
}
