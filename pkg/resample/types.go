// Package resample implements time-bucketed resampling with cross-segment,
// cross-dtype aggregation over columnar segment data.
//
// # Overview
//
// A resample invocation flows through five stages:
//   - bucket planning: (rule, origin, offset, closed, label) and the series
//     extent become an ordered set of half-open bucket intervals
//   - segment folding: rows are assigned to buckets and folded into
//     per-bucket, per-output-column accumulators across segment boundaries
//   - type promotion: per-column dtypes observed across segments fold into a
//     schema-level common type and per-aggregation output dtypes
//   - empty-bucket suppression: planned buckets that received zero rows are
//     dropped from the output entirely
//   - assembly: finalized accumulators become an ordered output table keyed
//     by the bucket label timestamp
//
// All state is created per invocation and discarded after assembly; the
// engine is pure computation over the segments the Source yields.
//
// # Basic Usage
//
//	eng := resample.NewEngine(resample.EngineConfig{})
//	table, err := eng.Resample(ctx, src, resample.Request{
//	    Symbol: "trades",
//	    Rule:   "5min",
//	    Aggregations: map[string]resample.Aggregation{
//	        "vwap_num": {Column: "notional", Op: resample.OpSum},
//	        "volume":   {Column: "qty", Op: resample.OpSum},
//	        "trades":   {Column: "qty", Op: resample.OpCount},
//	    },
//	})
package resample

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/multierr"

	"github.com/tickfold/tickfold/pkg/errors"
	"github.com/tickfold/tickfold/pkg/segment"
)

// Op is an aggregation operation. The set is closed; accumulator selection
// dispatches over it exhaustively.
type Op string

const (
	// OpSum accumulates in a widened numeric type, skipping nulls
	OpSum Op = "sum"
	// OpMean divides the null-skipping sum by the non-null count
	OpMean Op = "mean"
	// OpMin keeps the null-skipping minimum
	OpMin Op = "min"
	// OpMax keeps the null-skipping maximum
	OpMax Op = "max"
	// OpFirst keeps the earliest non-null value by merged row order
	OpFirst Op = "first"
	// OpLast keeps the latest non-null value by merged row order
	OpLast Op = "last"
	// OpCount counts non-null rows
	OpCount Op = "count"
)

// ParseOp parses an aggregation operation name
func ParseOp(s string) (Op, error) {
	switch Op(s) {
	case OpSum, OpMean, OpMin, OpMax, OpFirst, OpLast, OpCount:
		return Op(s), nil
	default:
		return "", fmt.Errorf("unknown aggregation operation %q", s)
	}
}

// ClosedSide selects which edge of the half-open bucket interval is inclusive.
type ClosedSide string

const (
	// ClosedLeft buckets are [left, right)
	ClosedLeft ClosedSide = "left"
	// ClosedRight buckets are (left, right]
	ClosedRight ClosedSide = "right"
)

// Label selects which bucket edge is reported as the bucket's timestamp.
type Label string

const (
	// LabelLeft reports the left edge
	LabelLeft Label = "left"
	// LabelRight reports the right edge
	LabelRight Label = "right"
)

// OriginKind identifies how the bucket anchor is resolved.
type OriginKind string

const (
	// OriginEpoch anchors at timestamp zero
	OriginEpoch OriginKind = "epoch"
	// OriginStart anchors at the first timestamp of the full series
	OriginStart OriginKind = "start"
	// OriginStartDay anchors at midnight of the first timestamp
	OriginStartDay OriginKind = "start_day"
	// OriginEnd anchors backward from the last timestamp
	OriginEnd OriginKind = "end"
	// OriginEndDay anchors backward from the midnight following the last
	// timestamp
	OriginEndDay OriginKind = "end_day"
	// OriginTimestamp anchors at an explicit timestamp
	OriginTimestamp OriginKind = "timestamp"
)

// Origin is the reference point from which bucket boundaries are tiled.
type Origin struct {
	Kind OriginKind
	// Timestamp holds the anchor in nanoseconds when Kind is OriginTimestamp
	Timestamp int64
}

// DataRelative reports whether resolving the origin requires the full series
// extent. Data-relative origins cannot be combined with a date-range read.
func (o Origin) DataRelative() bool {
	switch o.Kind {
	case OriginStart, OriginStartDay, OriginEnd, OriginEndDay:
		return true
	default:
		return false
	}
}

// String returns the origin as it appeared in the request
func (o Origin) String() string {
	if o.Kind == OriginTimestamp {
		return time.Unix(0, o.Timestamp).UTC().Format(time.RFC3339Nano)
	}
	return string(o.Kind)
}

// ParseOrigin parses an origin: one of the named kinds, an RFC3339
// timestamp, or a plain nanosecond integer. An empty string defaults to
// start_day.
func ParseOrigin(s string) (Origin, error) {
	switch OriginKind(s) {
	case "":
		return Origin{Kind: OriginStartDay}, nil
	case OriginEpoch, OriginStart, OriginStartDay, OriginEnd, OriginEndDay:
		return Origin{Kind: OriginKind(s)}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Origin{Kind: OriginTimestamp, Timestamp: t.UnixNano()}, nil
	}
	var ns int64
	if _, err := fmt.Sscanf(s, "%d", &ns); err == nil && fmt.Sprintf("%d", ns) == s {
		return Origin{Kind: OriginTimestamp, Timestamp: ns}, nil
	}
	return Origin{}, fmt.Errorf("unknown origin %q", s)
}

// Aggregation maps one output column to an input column and operation.
type Aggregation struct {
	Column string `json:"column" yaml:"column"`
	Op     Op     `json:"op" yaml:"op"`
}

// Request holds the parameters of one resample invocation. Rule and Offset
// are fixed-duration strings ("5min", "1h30min"); calendar-based rules are
// rejected at planning time.
type Request struct {
	Symbol       string                 `json:"symbol" yaml:"symbol"`
	Rule         string                 `json:"rule" yaml:"rule"`
	Aggregations map[string]Aggregation `json:"aggregations" yaml:"aggregations"`
	Closed       ClosedSide             `json:"closed,omitempty" yaml:"closed,omitempty"`
	Label        Label                  `json:"label,omitempty" yaml:"label,omitempty"`
	Origin       string                 `json:"origin,omitempty" yaml:"origin,omitempty"`
	Offset       string                 `json:"offset,omitempty" yaml:"offset,omitempty"`
	DateRange    *segment.Range         `json:"date_range,omitempty" yaml:"date_range,omitempty"`
}

// resolved holds the parsed form of a request after validation.
type resolved struct {
	rule   int64
	offset int64
	closed ClosedSide
	label  Label
	origin Origin
	specs  []outputSpec
}

// outputSpec is one aggregation with its output name, held in the stable
// output order.
type outputSpec struct {
	name   string
	column string
	op     Op
}

// resolve validates the request shape and parses every parameter,
// accumulating all violations into a single configuration error.
func resolve(req Request) (*resolved, error) {
	var errs error

	rule, err := ParseRule(req.Rule)
	if err != nil {
		errs = multierr.Append(errs, err)
	}

	var offset int64
	if req.Offset != "" {
		offset, err = ParseOffset(req.Offset)
		if err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	closed := req.Closed
	switch closed {
	case "":
		closed = ClosedLeft
	case ClosedLeft, ClosedRight:
	default:
		errs = multierr.Append(errs, fmt.Errorf("closed must be left or right, got %q", closed))
	}

	label := req.Label
	switch label {
	case "":
		label = LabelLeft
	case LabelLeft, LabelRight:
	default:
		errs = multierr.Append(errs, fmt.Errorf("label must be left or right, got %q", label))
	}

	origin, err := ParseOrigin(req.Origin)
	if err != nil {
		errs = multierr.Append(errs, err)
	}

	if len(req.Aggregations) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("at least one aggregation is required"))
	}
	specs := make([]outputSpec, 0, len(req.Aggregations))
	for name, agg := range req.Aggregations {
		if agg.Column == "" {
			errs = multierr.Append(errs, fmt.Errorf("aggregation %q has no input column", name))
		}
		if _, opErr := ParseOp(string(agg.Op)); opErr != nil {
			errs = multierr.Append(errs, fmt.Errorf("aggregation %q: %w", name, opErr))
		}
		specs = append(specs, outputSpec{name: name, column: agg.Column, op: agg.Op})
	}
	sortSpecs(specs)

	if errs != nil {
		return nil, errors.Wrap(errs, errors.ErrorTypeConfiguration, "invalid resample request")
	}
	return &resolved{
		rule:   rule,
		offset: offset,
		closed: closed,
		label:  label,
		origin: origin,
		specs:  specs,
	}, nil
}

// sortSpecs orders output specs lexicographically by output name, the
// declared stable output column order.
func sortSpecs(specs []outputSpec) {
	sort.Slice(specs, func(i, j int) bool { return specs[i].name < specs[j].name })
}
