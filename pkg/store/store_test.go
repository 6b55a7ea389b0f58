package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickfold/tickfold/pkg/errors"
	"github.com/tickfold/tickfold/pkg/segment"
	"github.com/tickfold/tickfold/pkg/testutil"
)

func mkSegment(t *testing.T, index []int64) *segment.Segment {
	t.Helper()
	return testutil.Seg(t, "price", index, nil)
}

func drain(t *testing.T, src segment.Source) []*segment.Segment {
	t.Helper()
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	var segs []*segment.Segment
	for {
		seg, err := src.Next(ctx)
		require.NoError(t, err)
		if seg == nil {
			return segs
		}
		segs = append(segs, seg)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for _, algo := range []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2} {
		t.Run(string(algo), func(t *testing.T) {
			s, err := New(Config{Compression: algo})
			require.NoError(t, err)

			require.NoError(t, s.Append("trades", mkSegment(t, []int64{0, 100, 200})))
			require.NoError(t, s.Append("trades", mkSegment(t, []int64{300, 400})))

			src, err := s.Iterator("trades", nil)
			require.NoError(t, err)

			full, ok := src.FullRange()
			require.True(t, ok)
			assert.Equal(t, segment.Range{First: 0, Last: 400}, full)

			segs := drain(t, src)
			require.Len(t, segs, 2)
			assert.Equal(t, []int64{0, 100, 200}, segs[0].Index())
			assert.Equal(t, []int64{300, 400}, segs[1].Index())

			col, present := segs[0].Column("price")
			require.True(t, present)
			assert.Equal(t, segment.Float64, col.DType())
			assert.Equal(t, 2.0, col.Float64(2))
		})
	}
}

func TestStoreDescribe(t *testing.T) {
	s, err := New(Config{Compression: LZ4})
	require.NoError(t, err)

	require.NoError(t, s.Append("trades", mkSegment(t, []int64{0, 100})))
	require.NoError(t, s.Append("trades", mkSegment(t, []int64{500, 900})))

	info, err := s.Describe("trades")
	require.NoError(t, err)
	assert.Equal(t, "trades", info.Symbol)
	assert.Equal(t, 2, info.Segments)
	assert.Equal(t, 4, info.Rows)
	assert.Equal(t, segment.Range{First: 0, Last: 900}, info.Range)
	assert.Equal(t, map[string]string{"price": "float64"}, info.Columns)
	assert.Positive(t, info.CompressedBytes)

	_, err = s.Describe("missing")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestStoreIteratorRangeSkipsBlocks(t *testing.T) {
	s, err := New(Config{Compression: None})
	require.NoError(t, err)

	require.NoError(t, s.Append("trades", mkSegment(t, []int64{0, 100})))
	require.NoError(t, s.Append("trades", mkSegment(t, []int64{1000, 1100})))
	require.NoError(t, s.Append("trades", mkSegment(t, []int64{2000, 2100})))

	src, err := s.Iterator("trades", &segment.Range{First: 900, Last: 1200})
	require.NoError(t, err)

	// the full extent still reflects skipped blocks, since data-relative
	// origins anchor on the whole series
	full, ok := src.FullRange()
	require.True(t, ok)
	assert.Equal(t, segment.Range{First: 0, Last: 2100}, full)

	segs := drain(t, src)
	require.Len(t, segs, 1)
	assert.Equal(t, []int64{1000, 1100}, segs[0].Index())
}

func TestStoreAppendValidation(t *testing.T) {
	s, err := New(Config{Compression: None})
	require.NoError(t, err)

	t.Run("empty segment rejected", func(t *testing.T) {
		err := s.Append("trades", mkSegment(t, nil))
		require.Error(t, err)
	})

	t.Run("unknown symbol iterator", func(t *testing.T) {
		_, err := s.Iterator("missing", nil)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	})
}

func TestStoreSymbols(t *testing.T) {
	s, err := New(Config{Compression: None})
	require.NoError(t, err)
	require.NoError(t, s.Append("a", mkSegment(t, []int64{0})))
	require.NoError(t, s.Append("b", mkSegment(t, []int64{0})))

	assert.Equal(t, []string{"a", "b"}, s.Symbols())
}

func TestNewCodecUnknownAlgorithm(t *testing.T) {
	_, err := NewCodec("brotli")
	require.Error(t, err)

	_, err = New(Config{Compression: "brotli"})
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestCodecRoundTrip(t *testing.T) {
	payload := []byte(`{"index":[0,100,200],"columns":[{"name":"price","dtype":"float64"}]}`)

	for _, algo := range []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2} {
		t.Run(string(algo), func(t *testing.T) {
			codec, err := NewCodec(algo)
			require.NoError(t, err)
			assert.Equal(t, algo, codec.Algorithm())

			compressed, err := codec.Compress(payload)
			require.NoError(t, err)
			got, err := codec.Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}
