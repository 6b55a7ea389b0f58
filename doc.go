// Package tickfold resamples columnar time-series data into fixed-duration
// buckets, aggregating across segment and dtype boundaries.
//
// A series is stored as a sequence of segments: row slices holding a sorted
// nanosecond index plus named typed columns. Segments of the same series may
// disagree on which columns they carry and on the dtypes of the columns they
// share; resampling resolves both dynamically while folding rows into buckets.
//
// # Architecture
//
// Resampling is a pipeline over a segment stream:
//
//  1. Bucket planning: the request's rule, closed side, label side, origin
//     and offset are resolved against the series extent into a fixed set of
//     bucket boundaries, matching pandas' anchored bucket-edge arithmetic.
//
//  2. Segment folding: each segment's in-window rows are assigned to buckets
//     and folded into per-column accumulators. Folding is associative, so a
//     series split across segments yields the same result as a single
//     contiguous segment.
//
//  3. Type promotion: as each segment arrives, its column dtypes are folded
//     into a per-column output dtype. Incompatible dtype mixes and
//     unsupported op/dtype pairs surface as schema errors.
//
//  4. Assembly: buckets that saw no rows anywhere are dropped, the rest are
//     materialized into output columns with per-op null handling.
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/tickfold/tickfold/pkg/resample"
//	    "github.com/tickfold/tickfold/pkg/segment"
//	)
//
//	seg := segment.NewBuilder([]int64{0, 1_000_000_000, 2_000_000_000}).
//	    Float64("price", []float64{10, 11, 12}).
//	    MustBuild()
//
//	engine := resample.NewEngine(resample.EngineConfig{})
//	table, err := engine.Resample(context.Background(),
//	    segment.NewSliceSource(seg),
//	    resample.Request{
//	        Symbol: "trades",
//	        Rule:   "1s",
//	        Aggregations: map[string]resample.Aggregation{
//	            "price_mean": {Column: "price", Op: resample.OpMean},
//	        },
//	    })
//
// # Package Layout
//
//   - pkg/segment: columnar segments, dtypes, null semantics
//   - pkg/resample: planning, folding, promotion, assembly
//   - pkg/store: compressed in-memory segment store
//   - pkg/formats: JSON, Arrow, Parquet and Avro I/O
//   - pkg/config, pkg/logger, pkg/observability: runtime wiring
//   - cmd/tickfold: CLI for inspecting datasets and running requests
package tickfold
