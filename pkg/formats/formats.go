// Package formats provides interchange encodings for tickfold: JSON and
// Arrow IPC datasets on the way in, and JSON, Arrow IPC, Parquet and Avro
// OCF result tables on the way out.
//
// # Overview
//
// A Dataset is the load-time shape of a store: symbols mapped to their
// segments in write order. Result tables are encoded with their bucket
// label index and resolved per-column dtypes. Arrow is the richest carrier:
// it round-trips dtypes and validity exactly; JSON carries typed value
// arrays per column; Parquet and Avro are write-only result sinks.
package formats

import (
	"fmt"
	"io"
	"sort"

	"github.com/tickfold/tickfold/pkg/resample"
	"github.com/tickfold/tickfold/pkg/segment"
)

// Format identifies an interchange encoding.
type Format string

const (
	// JSON is the self-describing text encoding
	JSON Format = "json"
	// Arrow is Arrow IPC (file format) record batches
	Arrow Format = "arrow"
	// Parquet is an Apache Parquet result sink
	Parquet Format = "parquet"
	// Avro is an Avro object container file result sink
	Avro Format = "avro"
)

// ParseFormat parses a format name
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case JSON, Arrow, Parquet, Avro:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// Dataset maps symbols to their segments in canonical write order.
type Dataset struct {
	Symbols map[string][]*segment.Segment
}

// SymbolNames returns the dataset's symbols sorted ascending
func (d *Dataset) SymbolNames() []string {
	names := make([]string, 0, len(d.Symbols))
	for name := range d.Symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadDataset decodes a dataset from r. Arrow carries a single symbol, so
// the symbol name is taken from the stream's schema metadata or defaults
// to "default".
func ReadDataset(r io.Reader, format Format) (*Dataset, error) {
	switch format {
	case JSON:
		return readDatasetJSON(r)
	case Arrow:
		return readDatasetArrow(r)
	default:
		return nil, fmt.Errorf("format %s cannot carry a dataset", format)
	}
}

// WriteTable encodes a result table to w
func WriteTable(w io.Writer, t *resample.Table, format Format) error {
	switch format {
	case JSON:
		return writeTableJSON(w, t)
	case Arrow:
		return writeTableArrow(w, t)
	case Parquet:
		return writeTableParquet(w, t)
	case Avro:
		return writeTableAvro(w, t)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}
