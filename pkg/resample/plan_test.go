package resample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickfold/tickfold/pkg/errors"
	"github.com/tickfold/tickfold/pkg/segment"
)

// planReq resolves a minimal request for boundary tests.
func planReq(t *testing.T, rule string, closed ClosedSide, label Label, origin, offset string) *resolved {
	t.Helper()
	r, err := resolve(Request{
		Symbol: "test",
		Rule:   rule,
		Closed: closed,
		Label:  label,
		Origin: origin,
		Offset: offset,
		Aggregations: map[string]Aggregation{
			"x_sum": {Column: "x", Op: OpSum},
		},
	})
	require.NoError(t, err)
	return r
}

func TestPlanNanosecondBoundaries(t *testing.T) {
	// Rows at 0, 1, 2 and 1000 ns with a 1us rule. The closed side decides
	// whether 1000 lands with its left neighbors or alone.
	full := segment.Range{First: 0, Last: 1000}

	t.Run("closed left", func(t *testing.T) {
		r := planReq(t, "1us", ClosedLeft, LabelLeft, "start_day", "")
		p, err := plan(r, full, true, nil)
		require.NoError(t, err)
		assert.Equal(t, []int64{0, 1000, 2000}, p.Boundaries())
		assert.Equal(t, 2, p.NumBuckets())

		assert.Equal(t, 0, p.BucketOf(0))
		assert.Equal(t, 0, p.BucketOf(999))
		assert.Equal(t, 1, p.BucketOf(1000))
		assert.Equal(t, -1, p.BucketOf(2000))
		assert.Equal(t, -1, p.BucketOf(-1))
	})

	t.Run("closed right", func(t *testing.T) {
		r := planReq(t, "1us", ClosedRight, LabelLeft, "start_day", "")
		p, err := plan(r, full, true, nil)
		require.NoError(t, err)
		assert.Equal(t, []int64{-1000, 0, 1000}, p.Boundaries())

		assert.Equal(t, 0, p.BucketOf(0))
		assert.Equal(t, 1, p.BucketOf(1))
		assert.Equal(t, 1, p.BucketOf(1000))
		assert.Equal(t, -1, p.BucketOf(-1000))
		assert.Equal(t, -1, p.BucketOf(1001))
	})
}

func TestPlanOrigins(t *testing.T) {
	t.Run("epoch", func(t *testing.T) {
		r := planReq(t, "1min", ClosedLeft, LabelLeft, "epoch", "")
		p, err := plan(r, segment.Range{First: 10_000_000_000, Last: 130_000_000_000}, true, nil)
		require.NoError(t, err)
		assert.Equal(t, []int64{0, 60_000_000_000, 120_000_000_000, 180_000_000_000}, p.Boundaries())
	})

	t.Run("start anchors on first timestamp", func(t *testing.T) {
		r := planReq(t, "1min", ClosedLeft, LabelLeft, "start", "")
		p, err := plan(r, segment.Range{First: 10_000_000_000, Last: 130_000_000_000}, true, nil)
		require.NoError(t, err)
		assert.Equal(t, []int64{10_000_000_000, 70_000_000_000, 130_000_000_000, 190_000_000_000}, p.Boundaries())
	})

	t.Run("start_day anchors on midnight of first", func(t *testing.T) {
		first := int64(day) + 100 // just past midnight of day two
		r := planReq(t, "1h", ClosedLeft, LabelLeft, "start_day", "")
		p, err := plan(r, segment.Range{First: first, Last: first + 1}, true, nil)
		require.NoError(t, err)
		b := p.Boundaries()
		assert.Equal(t, int64(day), b[0])
		assert.Equal(t, int64(day+3_600_000_000_000), b[1])
	})

	t.Run("end walks backward from last", func(t *testing.T) {
		full := segment.Range{First: 0, Last: 100}

		r := planReq(t, "30ns", ClosedRight, LabelLeft, "end", "")
		p, err := plan(r, full, true, nil)
		require.NoError(t, err)
		// closed right: the final boundary is exactly the last timestamp
		assert.Equal(t, []int64{-20, 10, 40, 70, 100}, p.Boundaries())

		r = planReq(t, "30ns", ClosedLeft, LabelLeft, "end", "")
		p, err = plan(r, full, true, nil)
		require.NoError(t, err)
		assert.Equal(t, []int64{-20, 10, 40, 70, 100, 130}, p.Boundaries())
	})

	t.Run("end_day walks backward from following midnight", func(t *testing.T) {
		r := planReq(t, "1d", ClosedLeft, LabelLeft, "end_day", "")
		p, err := plan(r, segment.Range{First: 0, Last: 2 * 3_600_000_000_000}, true, nil)
		require.NoError(t, err)
		assert.Equal(t, []int64{-day, 0, day}, p.Boundaries())
	})

	t.Run("explicit timestamp", func(t *testing.T) {
		r := planReq(t, "1min", ClosedLeft, LabelLeft, "1970-01-01T00:00:30Z", "")
		p, err := plan(r, segment.Range{First: 0, Last: 60_000_000_000}, true, nil)
		require.NoError(t, err)
		assert.Equal(t, []int64{-30_000_000_000, 30_000_000_000, 90_000_000_000}, p.Boundaries())
	})
}

func TestPlanOffset(t *testing.T) {
	r := planReq(t, "1min", ClosedLeft, LabelLeft, "epoch", "30s")
	p, err := plan(r, segment.Range{First: 0, Last: 60_000_000_000}, true, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{-30_000_000_000, 30_000_000_000, 90_000_000_000}, p.Boundaries())

	// a negative offset shifts the tiling the other way
	r = planReq(t, "1min", ClosedLeft, LabelLeft, "epoch", "-30s")
	p, err = plan(r, segment.Range{First: 0, Last: 60_000_000_000}, true, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{-30_000_000_000, 30_000_000_000, 90_000_000_000}, p.Boundaries())
}

func TestPlanDateRange(t *testing.T) {
	full := segment.Range{First: 0, Last: 200}

	t.Run("effective range narrows to the intersection", func(t *testing.T) {
		r := planReq(t, "100ns", ClosedLeft, LabelLeft, "epoch", "")
		p, err := plan(r, full, true, &segment.Range{First: 50, Last: 150})
		require.NoError(t, err)
		assert.Equal(t, segment.Range{First: 50, Last: 150}, p.Effective())
		assert.Equal(t, []int64{0, 100, 200}, p.Boundaries())
	})

	t.Run("disjoint range plans nothing", func(t *testing.T) {
		r := planReq(t, "100ns", ClosedLeft, LabelLeft, "epoch", "")
		p, err := plan(r, full, true, &segment.Range{First: 1000, Last: 2000})
		require.NoError(t, err)
		assert.Equal(t, 0, p.NumBuckets())
	})

	t.Run("data-relative origin rejects any date range", func(t *testing.T) {
		for _, origin := range []string{"start", "start_day", "end", "end_day"} {
			r := planReq(t, "100ns", ClosedLeft, LabelLeft, origin, "")
			_, err := plan(r, full, true, &segment.Range{First: 0, Last: 200})
			require.Error(t, err, origin)
			assert.True(t, errors.IsRange(err), origin)
		}
	})

	t.Run("absolute origins combine with a date range", func(t *testing.T) {
		for _, origin := range []string{"epoch", "1970-01-01T00:00:00Z"} {
			r := planReq(t, "100ns", ClosedLeft, LabelLeft, origin, "")
			_, err := plan(r, full, true, &segment.Range{First: 0, Last: 200})
			require.NoError(t, err, origin)
		}
	})
}

func TestPlanEmptySeries(t *testing.T) {
	r := planReq(t, "1min", ClosedLeft, LabelLeft, "epoch", "")
	p, err := plan(r, segment.Range{}, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, p.NumBuckets())
}

func TestPlanLabelSide(t *testing.T) {
	full := segment.Range{First: 0, Last: 150}

	r := planReq(t, "100ns", ClosedLeft, LabelLeft, "epoch", "")
	p, err := plan(r, full, true, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.LabelAt(0))
	assert.Equal(t, int64(100), p.LabelAt(1))

	r = planReq(t, "100ns", ClosedLeft, LabelRight, "epoch", "")
	p, err = plan(r, full, true, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.LabelAt(0))
	assert.Equal(t, int64(200), p.LabelAt(1))
}

func TestPlanPreEpochTimestamps(t *testing.T) {
	// floor-mod arithmetic keeps pre-epoch rows on the same tiling as
	// post-epoch ones.
	r := planReq(t, "100ns", ClosedLeft, LabelLeft, "epoch", "")
	p, err := plan(r, segment.Range{First: -250, Last: 50}, true, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{-300, -200, -100, 0, 100}, p.Boundaries())
	assert.Equal(t, 0, p.BucketOf(-250))
	assert.Equal(t, 3, p.BucketOf(50))
}
