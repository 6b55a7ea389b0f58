package segment

import (
	"fmt"
	"math"
)

// Column is a typed value array with an optional validity bitmap. Signed
// integers and datetimes share int64 backing storage, unsigned integers use
// uint64 and floats use float64; the declared dtype preserves the logical
// width for promotion purposes.
//
// A column constructed with a validity bitmap is a sparse representation:
// it carries fewer semantic values than index entries, with implicit nulls
// at the invalid positions.
type Column struct {
	dtype  DType
	length int
	valid  []bool // nil when dense

	bools  []bool
	ints   []int64
	uints  []uint64
	floats []float64
	strs   []string
}

// NewIntColumn creates a signed integer column of the given width
func NewIntColumn(dtype DType, values []int64) (*Column, error) {
	if dtype.Category() != CategorySigned {
		return nil, fmt.Errorf("dtype %s is not a signed integer", dtype)
	}
	return &Column{dtype: dtype, length: len(values), ints: values}, nil
}

// NewUintColumn creates an unsigned integer column of the given width
func NewUintColumn(dtype DType, values []uint64) (*Column, error) {
	if dtype.Category() != CategoryUnsigned {
		return nil, fmt.Errorf("dtype %s is not an unsigned integer", dtype)
	}
	return &Column{dtype: dtype, length: len(values), uints: values}, nil
}

// NewFloatColumn creates a floating point column of the given width.
// NaN elements are treated as null.
func NewFloatColumn(dtype DType, values []float64) (*Column, error) {
	if dtype.Category() != CategoryFloat {
		return nil, fmt.Errorf("dtype %s is not a float", dtype)
	}
	return &Column{dtype: dtype, length: len(values), floats: values}, nil
}

// NewBoolColumn creates a boolean column
func NewBoolColumn(values []bool) *Column {
	return &Column{dtype: Bool, length: len(values), bools: values}
}

// NewDatetimeColumn creates a nanosecond timestamp column.
// NaT elements are treated as null.
func NewDatetimeColumn(values []int64) *Column {
	return &Column{dtype: Datetime, length: len(values), ints: values}
}

// NewStringColumn creates a string column
func NewStringColumn(values []string) *Column {
	return &Column{dtype: String, length: len(values), strs: values}
}

// WithValidity attaches a validity bitmap, turning the column into a sparse
// representation. The bitmap must match the column length.
func (c *Column) WithValidity(valid []bool) (*Column, error) {
	if len(valid) != c.length {
		return nil, fmt.Errorf("validity length %d does not match column length %d", len(valid), c.length)
	}
	c.valid = valid
	return c, nil
}

// DType returns the declared element type
func (c *Column) DType() DType { return c.dtype }

// Len returns the number of index entries covered by the column
func (c *Column) Len() int { return c.length }

// Sparse reports whether the column carries implicit nulls via a validity
// bitmap. Sparse columns are rejected under sum and mean.
func (c *Column) Sparse() bool { return c.valid != nil }

// IsNull reports whether the cell at i holds no value. NaN floats and NaT
// datetimes are null in addition to bitmap-invalid cells.
func (c *Column) IsNull(i int) bool {
	if c.valid != nil && !c.valid[i] {
		return true
	}
	switch c.dtype.Category() {
	case CategoryFloat:
		return math.IsNaN(c.floats[i])
	case CategoryDatetime:
		return c.ints[i] == NaT
	default:
		return false
	}
}

// Bool returns the boolean cell at i
func (c *Column) Bool(i int) bool { return c.bools[i] }

// Int64 returns the signed integer or datetime cell at i
func (c *Column) Int64(i int) int64 { return c.ints[i] }

// Uint64 returns the unsigned integer cell at i
func (c *Column) Uint64(i int) uint64 { return c.uints[i] }

// Float64 returns the float cell at i
func (c *Column) Float64(i int) float64 { return c.floats[i] }

// Str returns the string cell at i
func (c *Column) Str(i int) string { return c.strs[i] }

// AsFloat64 converts the numeric cell at i to float64, used for
// cross-category extremum comparison
func (c *Column) AsFloat64(i int) float64 {
	switch c.dtype.Category() {
	case CategoryFloat:
		return c.floats[i]
	case CategorySigned, CategoryDatetime:
		return float64(c.ints[i])
	case CategoryUnsigned:
		return float64(c.uints[i])
	case CategoryBool:
		if c.bools[i] {
			return 1
		}
		return 0
	default:
		return math.NaN()
	}
}
