// Package segment provides the columnar data model the resampling engine
// operates on: typed columns with optional validity bitmaps, time-sorted
// segments, and the Source iterator the engine drains.
//
// # Overview
//
// A Segment is a contiguous, independently-typed chunk of time-ordered rows
// within a symbol's full series. Under dynamic schema, different segments of
// the same symbol may declare different column sets and dtypes; a column may
// be wholly absent from a segment, and a present column may carry a validity
// bitmap marking implicit nulls (a sparse representation).
//
// # Basic Usage
//
//	seg, err := segment.NewBuilder([]int64{0, 1000, 2000}).
//	    Float64("price", []float64{1.5, 2.5, 3.5}).
//	    Int64("volume", segment.Int32, []int64{10, 20, 30}).
//	    Build()
//
//	src := segment.NewSliceSource(seg)
package segment

import "fmt"

// DType identifies the declared element type of a column.
type DType uint8

const (
	// DTypeInvalid marks an unresolved or unknown dtype
	DTypeInvalid DType = iota
	// Bool is a boolean column
	Bool
	// Int8 is a signed 8-bit integer column
	Int8
	// Int16 is a signed 16-bit integer column
	Int16
	// Int32 is a signed 32-bit integer column
	Int32
	// Int64 is a signed 64-bit integer column
	Int64
	// Uint8 is an unsigned 8-bit integer column
	Uint8
	// Uint16 is an unsigned 16-bit integer column
	Uint16
	// Uint32 is an unsigned 32-bit integer column
	Uint32
	// Uint64 is an unsigned 64-bit integer column
	Uint64
	// Float32 is a 32-bit floating point column
	Float32
	// Float64 is a 64-bit floating point column
	Float64
	// Datetime is a nanosecond-resolution timestamp column
	Datetime
	// String is a UTF-8 string column
	String
)

// Category groups dtypes for promotion purposes.
type Category uint8

const (
	// CategoryInvalid marks an unknown category
	CategoryInvalid Category = iota
	// CategoryBool only promotes with itself
	CategoryBool
	// CategorySigned covers int8 through int64
	CategorySigned
	// CategoryUnsigned covers uint8 through uint64
	CategoryUnsigned
	// CategoryFloat covers float32 and float64
	CategoryFloat
	// CategoryDatetime covers nanosecond timestamps
	CategoryDatetime
	// CategoryString covers UTF-8 strings
	CategoryString
)

// NaT is the sentinel value for a null datetime cell.
const NaT = int64(-1 << 63)

var dtypeNames = map[DType]string{
	Bool:     "bool",
	Int8:     "int8",
	Int16:    "int16",
	Int32:    "int32",
	Int64:    "int64",
	Uint8:    "uint8",
	Uint16:   "uint16",
	Uint32:   "uint32",
	Uint64:   "uint64",
	Float32:  "float32",
	Float64:  "float64",
	Datetime: "datetime64[ns]",
	String:   "string",
}

// String returns the canonical name of the dtype
func (d DType) String() string {
	if name, ok := dtypeNames[d]; ok {
		return name
	}
	return "invalid"
}

// ParseDType parses a canonical dtype name
func ParseDType(s string) (DType, error) {
	for d, name := range dtypeNames {
		if name == s {
			return d, nil
		}
	}
	return DTypeInvalid, fmt.Errorf("unknown dtype %q", s)
}

// Category returns the promotion category of the dtype
func (d DType) Category() Category {
	switch d {
	case Bool:
		return CategoryBool
	case Int8, Int16, Int32, Int64:
		return CategorySigned
	case Uint8, Uint16, Uint32, Uint64:
		return CategoryUnsigned
	case Float32, Float64:
		return CategoryFloat
	case Datetime:
		return CategoryDatetime
	case String:
		return CategoryString
	default:
		return CategoryInvalid
	}
}

// Bits returns the element width in bits, or 0 for non-fixed-width dtypes
func (d DType) Bits() int {
	switch d {
	case Bool, Int8, Uint8:
		return 8
	case Int16, Uint16:
		return 16
	case Int32, Uint32, Float32:
		return 32
	case Int64, Uint64, Float64, Datetime:
		return 64
	default:
		return 0
	}
}

// IsNumeric reports whether the dtype participates in numeric aggregation
func (d DType) IsNumeric() bool {
	switch d.Category() {
	case CategorySigned, CategoryUnsigned, CategoryFloat, CategoryBool:
		return true
	default:
		return false
	}
}

// SignedWithBits returns the narrowest signed dtype of at least bits width
func SignedWithBits(bits int) DType {
	switch {
	case bits <= 8:
		return Int8
	case bits <= 16:
		return Int16
	case bits <= 32:
		return Int32
	default:
		return Int64
	}
}

// UnsignedWithBits returns the narrowest unsigned dtype of at least bits width
func UnsignedWithBits(bits int) DType {
	switch {
	case bits <= 8:
		return Uint8
	case bits <= 16:
		return Uint16
	case bits <= 32:
		return Uint32
	default:
		return Uint64
	}
}
