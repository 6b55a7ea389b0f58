package formats

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/tickfold/tickfold/pkg/resample"
	"github.com/tickfold/tickfold/pkg/segment"
)

// indexField is the schema name of the nanosecond time index in Arrow
// records, both for dataset segments and result tables.
const indexField = "time"

// symbolMetaKey carries the symbol name in Arrow schema metadata.
const symbolMetaKey = "tickfold.symbol"

func dtypeToArrow(d segment.DType) (arrow.DataType, error) {
	switch d {
	case segment.Bool:
		return arrow.FixedWidthTypes.Boolean, nil
	case segment.Int8:
		return arrow.PrimitiveTypes.Int8, nil
	case segment.Int16:
		return arrow.PrimitiveTypes.Int16, nil
	case segment.Int32:
		return arrow.PrimitiveTypes.Int32, nil
	case segment.Int64:
		return arrow.PrimitiveTypes.Int64, nil
	case segment.Uint8:
		return arrow.PrimitiveTypes.Uint8, nil
	case segment.Uint16:
		return arrow.PrimitiveTypes.Uint16, nil
	case segment.Uint32:
		return arrow.PrimitiveTypes.Uint32, nil
	case segment.Uint64:
		return arrow.PrimitiveTypes.Uint64, nil
	case segment.Float32:
		return arrow.PrimitiveTypes.Float32, nil
	case segment.Float64:
		return arrow.PrimitiveTypes.Float64, nil
	case segment.Datetime:
		return arrow.FixedWidthTypes.Timestamp_ns, nil
	case segment.String:
		return arrow.BinaryTypes.String, nil
	default:
		return nil, fmt.Errorf("dtype %s has no Arrow mapping", d)
	}
}

func arrowToDType(t arrow.DataType) (segment.DType, error) {
	switch t.ID() {
	case arrow.BOOL:
		return segment.Bool, nil
	case arrow.INT8:
		return segment.Int8, nil
	case arrow.INT16:
		return segment.Int16, nil
	case arrow.INT32:
		return segment.Int32, nil
	case arrow.INT64:
		return segment.Int64, nil
	case arrow.UINT8:
		return segment.Uint8, nil
	case arrow.UINT16:
		return segment.Uint16, nil
	case arrow.UINT32:
		return segment.Uint32, nil
	case arrow.UINT64:
		return segment.Uint64, nil
	case arrow.FLOAT32:
		return segment.Float32, nil
	case arrow.FLOAT64:
		return segment.Float64, nil
	case arrow.TIMESTAMP:
		return segment.Datetime, nil
	case arrow.STRING, arrow.LARGE_STRING:
		return segment.String, nil
	default:
		return segment.DTypeInvalid, fmt.Errorf("Arrow type %s has no dtype mapping", t)
	}
}

// appendColumn copies one segment column into the matching record builder,
// translating nulls to Arrow validity.
func appendColumn(b array.Builder, col *segment.Column) error {
	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			b.AppendNull()
			continue
		}
		switch fb := b.(type) {
		case *array.BooleanBuilder:
			fb.Append(col.Bool(i))
		case *array.Int8Builder:
			fb.Append(int8(col.Int64(i)))
		case *array.Int16Builder:
			fb.Append(int16(col.Int64(i)))
		case *array.Int32Builder:
			fb.Append(int32(col.Int64(i)))
		case *array.Int64Builder:
			fb.Append(col.Int64(i))
		case *array.Uint8Builder:
			fb.Append(uint8(col.Uint64(i)))
		case *array.Uint16Builder:
			fb.Append(uint16(col.Uint64(i)))
		case *array.Uint32Builder:
			fb.Append(uint32(col.Uint64(i)))
		case *array.Uint64Builder:
			fb.Append(col.Uint64(i))
		case *array.Float32Builder:
			fb.Append(float32(col.Float64(i)))
		case *array.Float64Builder:
			fb.Append(col.Float64(i))
		case *array.TimestampBuilder:
			fb.Append(arrow.Timestamp(col.Int64(i)))
		case *array.StringBuilder:
			fb.Append(col.Str(i))
		default:
			return fmt.Errorf("unsupported Arrow builder %T", b)
		}
	}
	return nil
}

// columnFromArray converts one Arrow array back into a segment column.
// Float and datetime nulls become NaN and NaT; other categories carry a
// validity bitmap.
func columnFromArray(arr arrow.Array, dtype segment.DType) (*segment.Column, error) {
	n := arr.Len()
	var col *segment.Column
	var err error

	switch a := arr.(type) {
	case *array.Boolean:
		values := make([]bool, n)
		for i := 0; i < n; i++ {
			if !a.IsNull(i) {
				values[i] = a.Value(i)
			}
		}
		col = segment.NewBoolColumn(values)
	case *array.Int8:
		col, err = intColumnFrom(dtype, n, func(i int) int64 { return int64(a.Value(i)) })
	case *array.Int16:
		col, err = intColumnFrom(dtype, n, func(i int) int64 { return int64(a.Value(i)) })
	case *array.Int32:
		col, err = intColumnFrom(dtype, n, func(i int) int64 { return int64(a.Value(i)) })
	case *array.Int64:
		col, err = intColumnFrom(dtype, n, func(i int) int64 { return a.Value(i) })
	case *array.Uint8:
		col, err = uintColumnFrom(dtype, n, func(i int) uint64 { return uint64(a.Value(i)) })
	case *array.Uint16:
		col, err = uintColumnFrom(dtype, n, func(i int) uint64 { return uint64(a.Value(i)) })
	case *array.Uint32:
		col, err = uintColumnFrom(dtype, n, func(i int) uint64 { return uint64(a.Value(i)) })
	case *array.Uint64:
		col, err = uintColumnFrom(dtype, n, func(i int) uint64 { return a.Value(i) })
	case *array.Float32:
		values := make([]float64, n)
		for i := 0; i < n; i++ {
			if a.IsNull(i) {
				values[i] = math.NaN()
			} else {
				values[i] = float64(a.Value(i))
			}
		}
		col, err = segment.NewFloatColumn(dtype, values)
	case *array.Float64:
		values := make([]float64, n)
		for i := 0; i < n; i++ {
			if a.IsNull(i) {
				values[i] = math.NaN()
			} else {
				values[i] = a.Value(i)
			}
		}
		col, err = segment.NewFloatColumn(dtype, values)
	case *array.Timestamp:
		values := make([]int64, n)
		for i := 0; i < n; i++ {
			if a.IsNull(i) {
				values[i] = segment.NaT
			} else {
				values[i] = int64(a.Value(i))
			}
		}
		col = segment.NewDatetimeColumn(values)
	case *array.String:
		values := make([]string, n)
		for i := 0; i < n; i++ {
			if !a.IsNull(i) {
				values[i] = a.Value(i)
			}
		}
		col = segment.NewStringColumn(values)
	default:
		return nil, fmt.Errorf("unsupported Arrow array %T", arr)
	}
	if err != nil {
		return nil, err
	}

	if arr.NullN() > 0 {
		switch dtype.Category() {
		case segment.CategoryFloat, segment.CategoryDatetime:
			// nulls already encoded as NaN/NaT
		default:
			valid := make([]bool, n)
			for i := 0; i < n; i++ {
				valid[i] = !arr.IsNull(i)
			}
			return col.WithValidity(valid)
		}
	}
	return col, nil
}

func intColumnFrom(dtype segment.DType, n int, get func(int) int64) (*segment.Column, error) {
	values := make([]int64, n)
	for i := 0; i < n; i++ {
		values[i] = get(i)
	}
	return segment.NewIntColumn(dtype, values)
}

func uintColumnFrom(dtype segment.DType, n int, get func(int) uint64) (*segment.Column, error) {
	values := make([]uint64, n)
	for i := 0; i < n; i++ {
		values[i] = get(i)
	}
	return segment.NewUintColumn(dtype, values)
}

// SegmentRecord converts one segment to an Arrow record with the time
// index as the leading timestamp field.
func SegmentRecord(seg *segment.Segment, symbol string) (arrow.Record, error) {
	fields := []arrow.Field{{Name: indexField, Type: arrow.FixedWidthTypes.Timestamp_ns}}
	for _, name := range seg.Columns() {
		col, _ := seg.Column(name)
		at, err := dtypeToArrow(col.DType())
		if err != nil {
			return nil, err
		}
		fields = append(fields, arrow.Field{Name: name, Type: at, Nullable: true})
	}
	meta := arrow.NewMetadata([]string{symbolMetaKey}, []string{symbol})
	schema := arrow.NewSchema(fields, &meta)

	builder := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer builder.Release()

	tsb := builder.Field(0).(*array.TimestampBuilder)
	for _, ts := range seg.Index() {
		tsb.Append(arrow.Timestamp(ts))
	}
	for i, name := range seg.Columns() {
		col, _ := seg.Column(name)
		if err := appendColumn(builder.Field(i+1), col); err != nil {
			return nil, err
		}
	}
	return builder.NewRecord(), nil
}

// RecordSegment converts one Arrow record back to a segment. The leading
// timestamp field is the index; every other field becomes a column.
func RecordSegment(rec arrow.Record) (*segment.Segment, error) {
	schema := rec.Schema()
	if schema.NumFields() == 0 || schema.Field(0).Name != indexField {
		return nil, fmt.Errorf("record lacks the leading %q index field", indexField)
	}
	ts, ok := rec.Column(0).(*array.Timestamp)
	if !ok {
		return nil, fmt.Errorf("index field %q is not a timestamp", indexField)
	}
	index := make([]int64, ts.Len())
	for i := range index {
		index[i] = int64(ts.Value(i))
	}

	b := segment.NewBuilder(index)
	for i := 1; i < schema.NumFields(); i++ {
		field := schema.Field(i)
		dtype, err := arrowToDType(field.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field.Name, err)
		}
		col, err := columnFromArray(rec.Column(i), dtype)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field.Name, err)
		}
		b.Column(field.Name, col)
	}
	return b.Build()
}

// tableRecord converts a result table to a single Arrow record. Columns
// whose dtype stayed unresolved on an empty series are skipped.
func tableRecord(t *resample.Table) (arrow.Record, error) {
	fields := []arrow.Field{{Name: indexField, Type: arrow.FixedWidthTypes.Timestamp_ns}}
	names := make([]string, 0, len(t.Names()))
	for _, name := range t.Names() {
		if t.Column(name) == nil {
			continue
		}
		at, err := dtypeToArrow(t.DType(name))
		if err != nil {
			return nil, err
		}
		fields = append(fields, arrow.Field{Name: name, Type: at, Nullable: true})
		names = append(names, name)
	}
	schema := arrow.NewSchema(fields, nil)

	builder := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer builder.Release()

	tsb := builder.Field(0).(*array.TimestampBuilder)
	for _, ts := range t.Index() {
		tsb.Append(arrow.Timestamp(ts))
	}
	for i, name := range names {
		if err := appendColumn(builder.Field(i+1), t.Column(name)); err != nil {
			return nil, err
		}
	}
	return builder.NewRecord(), nil
}

func writeTableArrow(w io.Writer, t *resample.Table) error {
	rec, err := tableRecord(t)
	if err != nil {
		return err
	}
	defer rec.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return fmt.Errorf("failed to create Arrow writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	return fw.Close()
}

func readDatasetArrow(r io.Reader) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read Arrow data: %w", err)
	}
	fr, err := ipc.NewFileReader(bytes.NewReader(data), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow reader: %w", err)
	}
	defer func() { _ = fr.Close() }()

	symbol := "default"
	if idx := fr.Schema().Metadata().FindKey(symbolMetaKey); idx >= 0 {
		symbol = fr.Schema().Metadata().Values()[idx]
	}

	ds := &Dataset{Symbols: make(map[string][]*segment.Segment)}
	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.Record(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read record %d: %w", i, err)
		}
		seg, err := RecordSegment(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		ds.Symbols[symbol] = append(ds.Symbols[symbol], seg)
	}
	return ds, nil
}
