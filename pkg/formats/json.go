package formats

import (
	"fmt"
	"io"
	"math"

	json "github.com/goccy/go-json"

	"github.com/tickfold/tickfold/pkg/resample"
	"github.com/tickfold/tickfold/pkg/segment"
)

// columnJSON carries one typed column. Values stay raw until the dtype is
// known so 64-bit integers decode losslessly instead of through float64.
type columnJSON struct {
	Name   string          `json:"name"`
	DType  string          `json:"dtype"`
	Values json.RawMessage `json:"values"`
	Valid  []bool          `json:"valid,omitempty"`
}

type segmentJSON struct {
	Index   []int64      `json:"index"`
	Columns []columnJSON `json:"columns"`
}

type datasetJSON struct {
	Symbols map[string][]segmentJSON `json:"symbols"`
}

// MarshalSegment encodes one segment; the store uses this as its at-rest
// block payload before compression.
func MarshalSegment(seg *segment.Segment) ([]byte, error) {
	out := segmentJSON{Index: seg.Index()}
	for _, name := range seg.Columns() {
		col, _ := seg.Column(name)
		cj, err := encodeColumn(name, col)
		if err != nil {
			return nil, err
		}
		out.Columns = append(out.Columns, cj)
	}
	return json.Marshal(out)
}

// UnmarshalSegment decodes one segment
func UnmarshalSegment(data []byte) (*segment.Segment, error) {
	var sj segmentJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return nil, fmt.Errorf("failed to decode segment: %w", err)
	}
	return buildSegment(sj)
}

func encodeColumn(name string, col *segment.Column) (columnJSON, error) {
	cj := columnJSON{Name: name, DType: col.DType().String()}

	var payload interface{}
	switch col.DType().Category() {
	case segment.CategoryBool:
		values := make([]bool, col.Len())
		for i := range values {
			values[i] = col.Bool(i)
		}
		payload = values
	case segment.CategorySigned, segment.CategoryDatetime:
		values := make([]int64, col.Len())
		for i := range values {
			values[i] = col.Int64(i)
		}
		payload = values
	case segment.CategoryUnsigned:
		values := make([]uint64, col.Len())
		for i := range values {
			values[i] = col.Uint64(i)
		}
		payload = values
	case segment.CategoryFloat:
		// NaN has no JSON literal; nulls ride on the validity bitmap
		values := make([]*float64, col.Len())
		for i := range values {
			if !col.IsNull(i) {
				v := col.Float64(i)
				values[i] = &v
			}
		}
		payload = values
	case segment.CategoryString:
		values := make([]string, col.Len())
		for i := range values {
			values[i] = col.Str(i)
		}
		payload = values
	default:
		return cj, fmt.Errorf("column %q has invalid dtype", name)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return cj, err
	}
	cj.Values = raw
	if col.Sparse() {
		valid := make([]bool, col.Len())
		for i := range valid {
			valid[i] = !col.IsNull(i)
		}
		cj.Valid = valid
	}
	return cj, nil
}

func buildSegment(sj segmentJSON) (*segment.Segment, error) {
	b := segment.NewBuilder(sj.Index)
	for _, cj := range sj.Columns {
		col, err := decodeColumn(cj)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", cj.Name, err)
		}
		b.Column(cj.Name, col)
	}
	return b.Build()
}

func decodeColumn(cj columnJSON) (*segment.Column, error) {
	dtype, err := segment.ParseDType(cj.DType)
	if err != nil {
		return nil, err
	}

	var col *segment.Column
	switch dtype.Category() {
	case segment.CategoryBool:
		var values []bool
		if err := json.Unmarshal(cj.Values, &values); err != nil {
			return nil, err
		}
		col = segment.NewBoolColumn(values)
	case segment.CategorySigned:
		var values []int64
		if err := json.Unmarshal(cj.Values, &values); err != nil {
			return nil, err
		}
		col, err = segment.NewIntColumn(dtype, values)
		if err != nil {
			return nil, err
		}
	case segment.CategoryDatetime:
		var values []int64
		if err := json.Unmarshal(cj.Values, &values); err != nil {
			return nil, err
		}
		col = segment.NewDatetimeColumn(values)
	case segment.CategoryUnsigned:
		var values []uint64
		if err := json.Unmarshal(cj.Values, &values); err != nil {
			return nil, err
		}
		col, err = segment.NewUintColumn(dtype, values)
		if err != nil {
			return nil, err
		}
	case segment.CategoryFloat:
		var ptrs []*float64
		if err := json.Unmarshal(cj.Values, &ptrs); err != nil {
			return nil, err
		}
		values := make([]float64, len(ptrs))
		for i, p := range ptrs {
			if p == nil {
				values[i] = math.NaN()
			} else {
				values[i] = *p
			}
		}
		col, err = segment.NewFloatColumn(dtype, values)
		if err != nil {
			return nil, err
		}
	case segment.CategoryString:
		var values []string
		if err := json.Unmarshal(cj.Values, &values); err != nil {
			return nil, err
		}
		col = segment.NewStringColumn(values)
	}

	if cj.Valid != nil {
		return col.WithValidity(cj.Valid)
	}
	return col, nil
}

func readDatasetJSON(r io.Reader) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	var dj datasetJSON
	if err := json.Unmarshal(data, &dj); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}

	ds := &Dataset{Symbols: make(map[string][]*segment.Segment, len(dj.Symbols))}
	for symbol, sjs := range dj.Symbols {
		for _, sj := range sjs {
			seg, err := buildSegment(sj)
			if err != nil {
				return nil, fmt.Errorf("symbol %q: %w", symbol, err)
			}
			ds.Symbols[symbol] = append(ds.Symbols[symbol], seg)
		}
	}
	return ds, nil
}

func writeTableJSON(w io.Writer, t *resample.Table) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode table: %w", err)
	}
	_, err = w.Write(data)
	return err
}
