package resample

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickfold/tickfold/pkg/errors"
	"github.com/tickfold/tickfold/pkg/segment"
	"github.com/tickfold/tickfold/pkg/testutil"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(EngineConfig{Logger: testutil.TestLogger(t)})
}

func TestResampleMean(t *testing.T) {
	// Rows at 0, 1, 2 and 1000 ns, one microsecond buckets.
	seg := segment.NewBuilder([]int64{0, 1, 2, 1000}).
		Float64("price", []float64{10, 20, 30, 40}).
		MustBuild()
	eng := newTestEngine(t)

	t.Run("closed left", func(t *testing.T) {
		table, err := eng.Resample(context.Background(), segment.NewSliceSource(seg), Request{
			Symbol: "trades",
			Rule:   "1us",
			Aggregations: map[string]Aggregation{
				"price_mean": {Column: "price", Op: OpMean},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{0, 1000}, table.Index())

		col := table.Column("price_mean")
		require.NotNil(t, col)
		assert.Equal(t, segment.Float64, table.DType("price_mean"))
		assert.Equal(t, 20.0, col.Float64(0))
		assert.Equal(t, 40.0, col.Float64(1))
	})

	t.Run("closed right shifts the microsecond row", func(t *testing.T) {
		table, err := eng.Resample(context.Background(), segment.NewSliceSource(seg), Request{
			Symbol: "trades",
			Rule:   "1us",
			Closed: ClosedRight,
			Aggregations: map[string]Aggregation{
				"price_mean": {Column: "price", Op: OpMean},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{-1000, 0}, table.Index())

		col := table.Column("price_mean")
		assert.Equal(t, 10.0, col.Float64(0))
		assert.Equal(t, 30.0, col.Float64(1))
	})
}

func TestResampleChunkInvariance(t *testing.T) {
	// Folding is associative: however the series is chunked, the result is
	// the one a single contiguous segment would give.
	index := []int64{0, 10, 20, 30, 40, 50}
	values := []float64{1, 2, 3, 4, 5, 6}
	req := Request{
		Symbol: "trades",
		Rule:   "25ns",
		Origin: "epoch",
		Aggregations: map[string]Aggregation{
			"v_sum":   {Column: "v", Op: OpSum},
			"v_mean":  {Column: "v", Op: OpMean},
			"v_min":   {Column: "v", Op: OpMin},
			"v_max":   {Column: "v", Op: OpMax},
			"v_first": {Column: "v", Op: OpFirst},
			"v_last":  {Column: "v", Op: OpLast},
			"v_count": {Column: "v", Op: OpCount},
		},
	}
	eng := newTestEngine(t)

	whole, err := eng.Resample(context.Background(),
		testutil.Source(testutil.Seg(t, "v", index, values)), req)
	require.NoError(t, err)

	chunked, err := eng.Resample(context.Background(),
		testutil.Source(
			testutil.Seg(t, "v", index[:1], values[:1]),
			testutil.Seg(t, "v", index[1:4], values[1:4]),
			testutil.Seg(t, "v", index[4:], values[4:])),
		req)
	require.NoError(t, err)

	require.Equal(t, whole.Index(), chunked.Index())
	require.Equal(t, whole.Names(), chunked.Names())
	for _, name := range whole.Names() {
		a, b := whole.Column(name), chunked.Column(name)
		require.Equal(t, a.Len(), b.Len(), name)
		for i := 0; i < a.Len(); i++ {
			assert.Equal(t, jsonCell(a, i), jsonCell(b, i), "%s[%d]", name, i)
		}
	}
}

func TestResampleCrossDtypeSum(t *testing.T) {
	// int8 rows in one segment, uint8 in the next: the sum accumulates per
	// category and combines into int64 at assembly.
	seg1 := segment.NewBuilder([]int64{0}).
		Int64("qty", segment.Int8, []int64{1}).
		MustBuild()
	seg2 := segment.NewBuilder([]int64{1}).
		Uint64("qty", segment.Uint8, []uint64{1}).
		MustBuild()

	table, err := newTestEngine(t).Resample(context.Background(),
		segment.NewSliceSource(seg1, seg2), Request{
			Symbol: "trades",
			Rule:   "1us",
			Aggregations: map[string]Aggregation{
				"qty_sum": {Column: "qty", Op: OpSum},
			},
		})
	require.NoError(t, err)
	require.Equal(t, 1, table.Rows())
	assert.Equal(t, segment.Int64, table.DType("qty_sum"))
	assert.Equal(t, int64(2), table.Column("qty_sum").Int64(0))
}

func TestResampleFirstLastByWriteOrder(t *testing.T) {
	// Segment two holds an earlier timestamp than segment one's last row;
	// first/last follow the merged write-order position, not the timestamp.
	seg1 := segment.NewBuilder([]int64{0, 500}).
		Float64("price", []float64{10, 20}).
		MustBuild()
	seg2 := segment.NewBuilder([]int64{100}).
		Float64("price", []float64{30}).
		MustBuild()

	table, err := newTestEngine(t).Resample(context.Background(),
		segment.NewSliceSource(seg1, seg2), Request{
			Symbol: "trades",
			Rule:   "1us",
			Aggregations: map[string]Aggregation{
				"open":  {Column: "price", Op: OpFirst},
				"close": {Column: "price", Op: OpLast},
			},
		})
	require.NoError(t, err)
	require.Equal(t, 1, table.Rows())
	assert.Equal(t, 10.0, table.Column("open").Float64(0))
	assert.Equal(t, 30.0, table.Column("close").Float64(0))
}

func TestResampleDynamicSchema(t *testing.T) {
	// The qty column exists only in the second segment. Rows from the first
	// segment still hold their buckets open; sum and count see only the
	// rows where the column is present.
	seg1 := segment.NewBuilder([]int64{0, 1}).
		Float64("price", []float64{10, 20}).
		MustBuild()
	seg2 := segment.NewBuilder([]int64{2, 1500}).
		Float64("price", []float64{30, 40}).
		Int64("qty", segment.Int32, []int64{7, 8}).
		MustBuild()

	table, err := newTestEngine(t).Resample(context.Background(),
		segment.NewSliceSource(seg1, seg2), Request{
			Symbol: "trades",
			Rule:   "1us",
			Aggregations: map[string]Aggregation{
				"qty_sum":   {Column: "qty", Op: OpSum},
				"qty_count": {Column: "qty", Op: OpCount},
			},
		})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1000}, table.Index())

	sum := table.Column("qty_sum")
	assert.Equal(t, int64(7), sum.Int64(0))
	assert.Equal(t, int64(8), sum.Int64(1))

	count := table.Column("qty_count")
	assert.Equal(t, uint64(1), count.Uint64(0))
	assert.Equal(t, uint64(1), count.Uint64(1))
}

func TestResampleColumnAbsentEverywhere(t *testing.T) {
	seg := segment.NewBuilder([]int64{0}).
		Float64("price", []float64{10}).
		MustBuild()

	_, err := newTestEngine(t).Resample(context.Background(),
		segment.NewSliceSource(seg), Request{
			Symbol: "trades",
			Rule:   "1us",
			Aggregations: map[string]Aggregation{
				"qty_sum": {Column: "qty", Op: OpSum},
			},
		})
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))
	assert.Contains(t, err.Error(), "qty")
}

func TestResampleEmptyBucketSuppression(t *testing.T) {
	// A ten-microsecond gap plans nine empty buckets; none are emitted.
	seg := segment.NewBuilder([]int64{0, 10_000}).
		Float64("price", []float64{1, 2}).
		MustBuild()

	table, err := newTestEngine(t).Resample(context.Background(),
		segment.NewSliceSource(seg), Request{
			Symbol: "trades",
			Rule:   "1us",
			Origin: "epoch",
			Aggregations: map[string]Aggregation{
				"price_last": {Column: "price", Op: OpLast},
			},
		})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 10_000}, table.Index())
}

func TestResampleNullHandling(t *testing.T) {
	eng := newTestEngine(t)

	t.Run("nan rows are skipped, not counted", func(t *testing.T) {
		seg := segment.NewBuilder([]int64{0, 1, 2}).
			Float64("price", []float64{10, math.NaN(), 30}).
			MustBuild()

		table, err := eng.Resample(context.Background(),
			segment.NewSliceSource(seg), Request{
				Symbol: "trades",
				Rule:   "1us",
				Aggregations: map[string]Aggregation{
					"price_mean":  {Column: "price", Op: OpMean},
					"price_count": {Column: "price", Op: OpCount},
				},
			})
		require.NoError(t, err)
		require.Equal(t, 1, table.Rows())
		assert.Equal(t, 20.0, table.Column("price_mean").Float64(0))
		assert.Equal(t, uint64(2), table.Column("price_count").Uint64(0))
	})

	t.Run("all-null bucket stays emitted with a null aggregate", func(t *testing.T) {
		seg := segment.NewBuilder([]int64{0, 1000}).
			Float64("price", []float64{math.NaN(), 5}).
			MustBuild()

		table, err := eng.Resample(context.Background(),
			segment.NewSliceSource(seg), Request{
				Symbol: "trades",
				Rule:   "1us",
				Aggregations: map[string]Aggregation{
					"price_min": {Column: "price", Op: OpMin},
				},
			})
		require.NoError(t, err)
		// the NaN row counts toward bucket presence
		assert.Equal(t, []int64{0, 1000}, table.Index())

		col := table.Column("price_min")
		assert.True(t, col.IsNull(0))
		assert.Equal(t, 5.0, col.Float64(1))
	})

	t.Run("infinities are values", func(t *testing.T) {
		seg := segment.NewBuilder([]int64{0, 1}).
			Float64("price", []float64{math.Inf(-1), 10}).
			MustBuild()

		table, err := eng.Resample(context.Background(),
			segment.NewSliceSource(seg), Request{
				Symbol: "trades",
				Rule:   "1us",
				Aggregations: map[string]Aggregation{
					"price_min": {Column: "price", Op: OpMin},
					"price_max": {Column: "price", Op: OpMax},
				},
			})
		require.NoError(t, err)
		assert.True(t, math.IsInf(table.Column("price_min").Float64(0), -1))
		assert.Equal(t, 10.0, table.Column("price_max").Float64(0))
	})
}

func TestResampleSparseRejection(t *testing.T) {
	col, err := segment.NewIntColumn(segment.Int32, []int64{1, 2})
	require.NoError(t, err)
	col, err = col.WithValidity([]bool{true, false})
	require.NoError(t, err)
	seg := segment.NewBuilder([]int64{0, 1}).Column("qty", col).MustBuild()

	eng := newTestEngine(t)

	_, err = eng.Resample(context.Background(),
		segment.NewSliceSource(seg), Request{
			Symbol: "trades",
			Rule:   "1us",
			Aggregations: map[string]Aggregation{
				"qty_sum": {Column: "qty", Op: OpSum},
			},
		})
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))

	// the same column folds fine under an order-based op
	table, err := eng.Resample(context.Background(),
		segment.NewSliceSource(seg), Request{
			Symbol: "trades",
			Rule:   "1us",
			Aggregations: map[string]Aggregation{
				"qty_last": {Column: "qty", Op: OpLast},
			},
		})
	require.NoError(t, err)
	assert.Equal(t, int64(1), table.Column("qty_last").Int64(0))
}

func TestResampleStringAndDatetimeOps(t *testing.T) {
	seg := segment.NewBuilder([]int64{0, 1}).
		String("venue", []string{"A", "B"}).
		Datetime("seen", []int64{100, 200}).
		MustBuild()
	eng := newTestEngine(t)

	t.Run("first and count work on strings", func(t *testing.T) {
		table, err := eng.Resample(context.Background(),
			segment.NewSliceSource(seg), Request{
				Symbol: "trades",
				Rule:   "1us",
				Aggregations: map[string]Aggregation{
					"venue_first": {Column: "venue", Op: OpFirst},
					"venue_count": {Column: "venue", Op: OpCount},
				},
			})
		require.NoError(t, err)
		assert.Equal(t, "A", table.Column("venue_first").Str(0))
		assert.Equal(t, uint64(2), table.Column("venue_count").Uint64(0))
	})

	t.Run("min and max work on datetimes", func(t *testing.T) {
		table, err := eng.Resample(context.Background(),
			segment.NewSliceSource(seg), Request{
				Symbol: "trades",
				Rule:   "1us",
				Aggregations: map[string]Aggregation{
					"seen_min": {Column: "seen", Op: OpMin},
					"seen_max": {Column: "seen", Op: OpMax},
				},
			})
		require.NoError(t, err)
		assert.Equal(t, segment.Datetime, table.DType("seen_min"))
		assert.Equal(t, int64(100), table.Column("seen_min").Int64(0))
		assert.Equal(t, int64(200), table.Column("seen_max").Int64(0))
	})

	t.Run("sum on datetimes is a schema error", func(t *testing.T) {
		_, err := eng.Resample(context.Background(),
			segment.NewSliceSource(seg), Request{
				Symbol: "trades",
				Rule:   "1us",
				Aggregations: map[string]Aggregation{
					"seen_sum": {Column: "seen", Op: OpSum},
				},
			})
		require.Error(t, err)
		assert.True(t, errors.IsSchema(err))
	})
}

func TestResampleDateRange(t *testing.T) {
	seg := testutil.Seg(t, "price", []int64{0, 100, 200, 300}, []float64{1, 2, 3, 4})
	eng := newTestEngine(t)

	t.Run("rows outside the range are excluded", func(t *testing.T) {
		table, err := eng.Resample(context.Background(),
			testutil.Source(seg), Request{
				Symbol:    "trades",
				Rule:      "1us",
				Origin:    "epoch",
				DateRange: &segment.Range{First: 100, Last: 200},
				Aggregations: map[string]Aggregation{
					"price_sum": {Column: "price", Op: OpSum},
				},
			})
		require.NoError(t, err)
		require.Equal(t, 1, table.Rows())
		assert.Equal(t, 5.0, table.Column("price_sum").Float64(0))
	})

	t.Run("data-relative origin with a range is a range error", func(t *testing.T) {
		_, err := eng.Resample(context.Background(),
			testutil.Source(seg), Request{
				Symbol:    "trades",
				Rule:      "1us",
				Origin:    "start_day",
				DateRange: &segment.Range{First: 0, Last: 300},
				Aggregations: map[string]Aggregation{
					"price_sum": {Column: "price", Op: OpSum},
				},
			})
		require.Error(t, err)
		assert.True(t, errors.IsRange(err))
	})
}

func TestResampleEmptySeries(t *testing.T) {
	table, err := newTestEngine(t).Resample(context.Background(),
		segment.NewSliceSource(), Request{
			Symbol: "trades",
			Rule:   "1us",
			Aggregations: map[string]Aggregation{
				"price_count": {Column: "price", Op: OpCount},
				"price_sum":   {Column: "price", Op: OpSum},
			},
		})
	require.NoError(t, err)
	assert.Equal(t, 0, table.Rows())
	assert.Equal(t, segment.Uint64, table.DType("price_count"))
	// sum's dtype depends on inputs that never arrived
	assert.Equal(t, segment.DTypeInvalid, table.DType("price_sum"))
	assert.Nil(t, table.Column("price_sum"))
}

func TestResampleInvalidRequest(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.Resample(context.Background(), segment.NewSliceSource(), Request{
		Symbol: "trades",
		Rule:   "1M",
		Closed: "both",
		Aggregations: map[string]Aggregation{
			"x": {Column: "", Op: "median"},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
	// all violations are reported together
	assert.Contains(t, err.Error(), "calendar")
	assert.Contains(t, err.Error(), "closed")
	assert.Contains(t, err.Error(), "median")

	_, err = eng.Resample(context.Background(), segment.NewSliceSource(), Request{
		Symbol:       "trades",
		Rule:         "1min",
		Aggregations: nil,
	})
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestResampleStableColumnOrder(t *testing.T) {
	seg := segment.NewBuilder([]int64{0}).
		Float64("price", []float64{1}).
		MustBuild()

	table, err := newTestEngine(t).Resample(context.Background(),
		segment.NewSliceSource(seg), Request{
			Symbol: "trades",
			Rule:   "1us",
			Aggregations: map[string]Aggregation{
				"zeta":  {Column: "price", Op: OpSum},
				"alpha": {Column: "price", Op: OpCount},
				"mid":   {Column: "price", Op: OpMean},
			},
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, table.Names())
}

func TestResampleLabelRight(t *testing.T) {
	seg := segment.NewBuilder([]int64{0, 1000}).
		Float64("price", []float64{1, 2}).
		MustBuild()

	table, err := newTestEngine(t).Resample(context.Background(),
		segment.NewSliceSource(seg), Request{
			Symbol: "trades",
			Rule:   "1us",
			Label:  LabelRight,
			Aggregations: map[string]Aggregation{
				"price_sum": {Column: "price", Op: OpSum},
			},
		})
	require.NoError(t, err)
	assert.Equal(t, []int64{1000, 2000}, table.Index())
}

func TestTableMarshalJSON(t *testing.T) {
	seg := segment.NewBuilder([]int64{0, 1000}).
		Float64("price", []float64{math.NaN(), 2.5}).
		MustBuild()

	table, err := newTestEngine(t).Resample(context.Background(),
		segment.NewSliceSource(seg), Request{
			Symbol: "trades",
			Rule:   "1us",
			Aggregations: map[string]Aggregation{
				"price_min": {Column: "price", Op: OpMin},
			},
		})
	require.NoError(t, err)

	out, err := table.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"index": [0, 1000],
		"columns": [
			{"name": "price_min", "dtype": "float64", "values": [null, 2.5]}
		]
	}`, string(out))
}
