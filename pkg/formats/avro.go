package formats

import (
	"fmt"
	"io"
	"math"

	json "github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"

	"github.com/tickfold/tickfold/pkg/resample"
	"github.com/tickfold/tickfold/pkg/segment"
)

// avroFieldType maps an output dtype to its Avro schema type. Unsigned
// 64-bit counts ride in a long; Avro has no unsigned family.
func avroFieldType(d segment.DType) (interface{}, error) {
	switch d.Category() {
	case segment.CategoryBool:
		return "boolean", nil
	case segment.CategorySigned, segment.CategoryUnsigned:
		return "long", nil
	case segment.CategoryFloat:
		return "double", nil
	case segment.CategoryDatetime:
		// plain nanosecond longs; Avro's timestamp logical types cap at
		// microsecond resolution
		return "long", nil
	case segment.CategoryString:
		return "string", nil
	default:
		return nil, fmt.Errorf("dtype %s has no Avro mapping", d)
	}
}

// writeTableAvro encodes the result table as an Avro object container
// file, one record per bucket. Null cells encode through a null union.
func writeTableAvro(w io.Writer, t *resample.Table) error {
	fields := []map[string]interface{}{
		{"name": indexField, "type": "long"},
	}
	names := make([]string, 0, len(t.Names()))
	for _, name := range t.Names() {
		if t.Column(name) == nil {
			continue
		}
		ft, err := avroFieldType(t.DType(name))
		if err != nil {
			return err
		}
		fields = append(fields, map[string]interface{}{
			"name": name,
			"type": []interface{}{"null", ft},
		})
		names = append(names, name)
	}

	schemaDoc, err := json.Marshal(map[string]interface{}{
		"type":   "record",
		"name":   "bucket",
		"fields": fields,
	})
	if err != nil {
		return err
	}
	codec, err := goavro.NewCodec(string(schemaDoc))
	if err != nil {
		return fmt.Errorf("failed to create Avro codec: %w", err)
	}
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{W: w, Codec: codec})
	if err != nil {
		return fmt.Errorf("failed to create Avro writer: %w", err)
	}

	rows := make([]interface{}, 0, t.Rows())
	for i := 0; i < t.Rows(); i++ {
		row := map[string]interface{}{
			indexField: t.Index()[i],
		}
		for _, name := range names {
			row[name] = avroCell(t.Column(name), t.DType(name), i)
		}
		rows = append(rows, row)
	}
	return ocf.Append(rows)
}

func avroCell(col *segment.Column, d segment.DType, i int) interface{} {
	if col.IsNull(i) {
		return nil
	}
	switch d.Category() {
	case segment.CategoryBool:
		return map[string]interface{}{"boolean": col.Bool(i)}
	case segment.CategorySigned:
		return map[string]interface{}{"long": col.Int64(i)}
	case segment.CategoryUnsigned:
		return map[string]interface{}{"long": int64(col.Uint64(i))}
	case segment.CategoryFloat:
		f := col.Float64(i)
		if math.IsNaN(f) {
			return nil
		}
		return map[string]interface{}{"double": f}
	case segment.CategoryDatetime:
		return map[string]interface{}{"long": col.Int64(i)}
	default:
		return map[string]interface{}{"string": col.Str(i)}
	}
}
