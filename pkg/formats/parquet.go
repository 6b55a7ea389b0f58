package formats

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/tickfold/tickfold/pkg/resample"
)

// writeTableParquet encodes the result table as one Parquet row group,
// going through the Arrow record conversion.
func writeTableParquet(w io.Writer, t *resample.Table) error {
	rec, err := tableRecord(t)
	if err != nil {
		return err
	}
	defer rec.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(memory.NewGoAllocator()),
	)
	fw, err := pqarrow.NewFileWriter(rec.Schema(), w, props, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create Parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		return fmt.Errorf("failed to write row group: %w", err)
	}
	return fw.Close()
}
