package resample

import (
	"math"

	json "github.com/goccy/go-json"

	"github.com/tickfold/tickfold/pkg/metrics"
	"github.com/tickfold/tickfold/pkg/segment"
)

// Table is the ordered output of one resample invocation: one row per
// non-empty bucket, ascending by the bucket's labeled timestamp, with one
// typed column per aggregation output name. Column order is lexicographic
// by output name and is a stable contract.
type Table struct {
	index   []int64
	names   []string
	columns map[string]*segment.Column
	dtypes  map[string]segment.DType
}

// Index returns the bucket label timestamps in ascending order
func (t *Table) Index() []int64 { return t.index }

// Rows returns the number of emitted buckets
func (t *Table) Rows() int { return len(t.index) }

// Names returns the output column names in the declared stable order
func (t *Table) Names() []string { return t.names }

// Column returns the named output column; the column is nil for an
// aggregation whose dtype stayed unresolved on an empty series
func (t *Table) Column(name string) *segment.Column { return t.columns[name] }

// DType returns the resolved output dtype of the named column
func (t *Table) DType(name string) segment.DType { return t.dtypes[name] }

type tableColumnJSON struct {
	Name   string        `json:"name"`
	DType  string        `json:"dtype"`
	Values []interface{} `json:"values"`
}

type tableJSON struct {
	Index   []int64           `json:"index"`
	Columns []tableColumnJSON `json:"columns"`
}

// MarshalJSON encodes the table with one values array per output column.
// Null, NaN and infinite cells encode as JSON null.
func (t *Table) MarshalJSON() ([]byte, error) {
	out := tableJSON{Index: t.index}
	for _, name := range t.names {
		col := t.columns[name]
		tc := tableColumnJSON{Name: name, DType: t.dtypes[name].String()}
		if col != nil {
			tc.Values = make([]interface{}, col.Len())
			for i := 0; i < col.Len(); i++ {
				tc.Values[i] = jsonCell(col, i)
			}
		}
		out.Columns = append(out.Columns, tc)
	}
	return json.Marshal(out)
}

func jsonCell(col *segment.Column, i int) interface{} {
	if col.IsNull(i) {
		return nil
	}
	switch col.DType().Category() {
	case segment.CategoryBool:
		return col.Bool(i)
	case segment.CategorySigned, segment.CategoryDatetime:
		return col.Int64(i)
	case segment.CategoryUnsigned:
		return col.Uint64(i)
	case segment.CategoryFloat:
		f := col.Float64(i)
		if math.IsInf(f, 0) {
			return nil
		}
		return f
	default:
		return col.Str(i)
	}
}

// assemble merges finalized accumulators into the output table. Planned
// buckets with zero assigned rows are dropped entirely; row presence, not
// value nullity, defines emptiness. A row-present bucket whose aggregate is
// null materializes per the output dtype: integers as zero, floats as NaN,
// datetimes as NaT, strings as an empty null cell.
func assemble(f *folder) (*Table, error) {
	nonEmpty := make([]int, 0, len(f.rowsSeen))
	for b, rows := range f.rowsSeen {
		if rows > 0 {
			nonEmpty = append(nonEmpty, b)
		}
	}
	metrics.BucketsEmitted.Add(float64(len(nonEmpty)))
	metrics.BucketsSuppressed.Add(float64(len(f.rowsSeen) - len(nonEmpty)))

	t := &Table{
		index:   make([]int64, len(nonEmpty)),
		columns: make(map[string]*segment.Column),
		dtypes:  make(map[string]segment.DType),
	}
	for i, b := range nonEmpty {
		t.index[i] = f.plan.LabelAt(b)
	}

	sawData := f.segments > 0
	for _, cf := range f.cols {
		t.names = append(t.names, cf.spec.name)
		out, err := cf.prom.outputDType(sawData)
		if err != nil {
			return nil, err
		}
		t.dtypes[cf.spec.name] = out
		if out == segment.DTypeInvalid {
			continue
		}
		col, err := buildColumn(out, nonEmpty, cf.acc)
		if err != nil {
			return nil, err
		}
		t.columns[cf.spec.name] = col
	}
	return t, nil
}

// buildColumn materializes one output column over the non-empty buckets.
func buildColumn(out segment.DType, nonEmpty []int, acc *accumulator) (*segment.Column, error) {
	n := len(nonEmpty)
	valid := make([]bool, n)
	allValid := true

	var col *segment.Column
	var err error
	switch out.Category() {
	case segment.CategorySigned:
		values := make([]int64, n)
		for i, b := range nonEmpty {
			if c, ok := acc.valueAt(b, out); ok {
				values[i] = cellToInt(c)
				valid[i] = true
			} else {
				allValid = false
			}
		}
		col, err = segment.NewIntColumn(out, values)
	case segment.CategoryUnsigned:
		values := make([]uint64, n)
		for i, b := range nonEmpty {
			if c, ok := acc.valueAt(b, out); ok {
				values[i] = cellToUint(c)
				valid[i] = true
			} else {
				allValid = false
			}
		}
		col, err = segment.NewUintColumn(out, values)
	case segment.CategoryFloat:
		values := make([]float64, n)
		for i, b := range nonEmpty {
			if c, ok := acc.valueAt(b, out); ok {
				values[i] = c.asFloat()
				valid[i] = true
			} else {
				values[i] = math.NaN()
				allValid = false
			}
		}
		col, err = segment.NewFloatColumn(out, values)
	case segment.CategoryDatetime:
		values := make([]int64, n)
		for i, b := range nonEmpty {
			if c, ok := acc.valueAt(b, out); ok {
				values[i] = c.i
				valid[i] = true
			} else {
				values[i] = segment.NaT
				allValid = false
			}
		}
		col = segment.NewDatetimeColumn(values)
	case segment.CategoryBool:
		values := make([]bool, n)
		for i, b := range nonEmpty {
			if c, ok := acc.valueAt(b, out); ok {
				values[i] = c.b
				valid[i] = true
			} else {
				allValid = false
			}
		}
		col = segment.NewBoolColumn(values)
	default:
		values := make([]string, n)
		for i, b := range nonEmpty {
			if c, ok := acc.valueAt(b, out); ok {
				values[i] = c.s
				valid[i] = true
			} else {
				allValid = false
			}
		}
		col = segment.NewStringColumn(values)
	}
	if err != nil {
		return nil, err
	}
	if !allValid {
		return col.WithValidity(valid)
	}
	return col, nil
}

func cellToInt(c cell) int64 {
	switch c.kind {
	case kindInt, kindDatetime:
		return c.i
	case kindUint:
		return int64(c.u)
	case kindBool:
		if c.b {
			return 1
		}
		return 0
	default:
		return int64(c.f)
	}
}

func cellToUint(c cell) uint64 {
	switch c.kind {
	case kindUint:
		return c.u
	case kindInt:
		return uint64(c.i)
	case kindBool:
		if c.b {
			return 1
		}
		return 0
	default:
		return uint64(c.f)
	}
}
