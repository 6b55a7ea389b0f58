package resample

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickfold/tickfold/pkg/errors"
	"github.com/tickfold/tickfold/pkg/segment"
	"github.com/tickfold/tickfold/pkg/testutil"
)

func TestResampleBatch(t *testing.T) {
	eng := newTestEngine(t)

	mkSource := func() segment.Source {
		return testutil.Source(
			testutil.Seg(t, "price", []int64{0, 1, 1000}, []float64{10, 20, 30}))
	}
	goodReq := Request{
		Symbol: "trades",
		Rule:   "1us",
		Aggregations: map[string]Aggregation{
			"price_sum": {Column: "price", Op: OpSum},
		},
	}
	badReq := Request{
		Symbol: "trades",
		Rule:   "1M",
		Aggregations: map[string]Aggregation{
			"price_sum": {Column: "price", Op: OpSum},
		},
	}

	t.Run("entries evaluate independently", func(t *testing.T) {
		results := eng.ResampleBatch(context.Background(), []BatchItem{
			{Source: mkSource(), Request: goodReq},
			{Source: mkSource(), Request: goodReq},
			{Source: mkSource(), Request: goodReq},
		}, 2)
		require.Len(t, results, 3)
		for i, res := range results {
			require.NoError(t, res.Err, i)
			require.NotNil(t, res.Table, i)
			assert.Equal(t, []int64{0, 1000}, res.Table.Index(), i)
		}
	})

	t.Run("a failing entry does not abort the rest", func(t *testing.T) {
		results := eng.ResampleBatch(context.Background(), []BatchItem{
			{Source: mkSource(), Request: goodReq},
			{Source: mkSource(), Request: badReq},
			{Source: mkSource(), Request: goodReq},
		}, 0)
		require.Len(t, results, 3)

		assert.NoError(t, results[0].Err)
		assert.NoError(t, results[2].Err)
		require.Error(t, results[1].Err)
		assert.True(t, errors.IsConfiguration(results[1].Err))
		assert.Nil(t, results[1].Table)
	})

	t.Run("empty batch", func(t *testing.T) {
		results := eng.ResampleBatch(context.Background(), nil, 4)
		assert.Empty(t, results)
	})
}
