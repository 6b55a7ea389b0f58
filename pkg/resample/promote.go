package resample

import (
	"github.com/tickfold/tickfold/pkg/errors"
	"github.com/tickfold/tickfold/pkg/segment"
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// CommonType computes the schema-level common dtype of a pair, or false
// when the pair is incompatible. Bool, datetime and string only promote
// with themselves; integers widen within and across signedness; floats
// absorb integers. A signed/unsigned pair widens to a signed type wide
// enough for the unsigned operand's full range, which is impossible when
// the unsigned side is 64-bit.
func CommonType(a, b segment.DType) (segment.DType, bool) {
	if a == b {
		return a, true
	}
	ca, cb := a.Category(), b.Category()

	switch {
	case ca == segment.CategorySigned && cb == segment.CategorySigned:
		return segment.SignedWithBits(maxInt(a.Bits(), b.Bits())), true

	case ca == segment.CategoryUnsigned && cb == segment.CategoryUnsigned:
		return segment.UnsignedWithBits(maxInt(a.Bits(), b.Bits())), true

	case ca == segment.CategorySigned && cb == segment.CategoryUnsigned:
		return signedUnsigned(a, b)
	case ca == segment.CategoryUnsigned && cb == segment.CategorySigned:
		return signedUnsigned(b, a)

	case ca == segment.CategoryFloat && cb == segment.CategoryFloat:
		if maxInt(a.Bits(), b.Bits()) <= 32 {
			return segment.Float32, true
		}
		return segment.Float64, true

	case ca == segment.CategoryFloat && (cb == segment.CategorySigned || cb == segment.CategoryUnsigned):
		return floatInt(a, b)
	case cb == segment.CategoryFloat && (ca == segment.CategorySigned || ca == segment.CategoryUnsigned):
		return floatInt(b, a)

	default:
		return segment.DTypeInvalid, false
	}
}

func signedUnsigned(signed, unsigned segment.DType) (segment.DType, bool) {
	if unsigned.Bits() >= 64 {
		return segment.DTypeInvalid, false
	}
	return segment.SignedWithBits(maxInt(signed.Bits(), 2*unsigned.Bits())), true
}

// floatInt widens an integer into a float. float32 only survives when the
// integer fits 16 bits or fewer; anything wider needs float64 mantissa.
func floatInt(f, i segment.DType) (segment.DType, bool) {
	if f.Bits() >= 64 || i.Bits() > 16 {
		return segment.Float64, true
	}
	return segment.Float32, true
}

// sumCategory tracks the widened accumulation category of a sum across the
// dtypes observed per segment.
type sumCategory uint8

const (
	sumNone sumCategory = iota
	sumSigned
	sumUnsigned
	sumFloat
)

// foldSumCategory folds one observed dtype into the running sum category:
// bool and unsigned integers accumulate unsigned, signed integers signed,
// any float forces float, and mixed signed/unsigned input goes signed.
func foldSumCategory(cat sumCategory, d segment.DType) sumCategory {
	var next sumCategory
	switch d.Category() {
	case segment.CategoryBool, segment.CategoryUnsigned:
		next = sumUnsigned
	case segment.CategorySigned:
		next = sumSigned
	case segment.CategoryFloat:
		next = sumFloat
	default:
		return cat
	}
	switch {
	case cat == sumNone:
		return next
	case cat == sumFloat || next == sumFloat:
		return sumFloat
	case cat != next:
		return sumSigned
	default:
		return cat
	}
}

func (c sumCategory) dtype() segment.DType {
	switch c {
	case sumSigned:
		return segment.Int64
	case sumUnsigned:
		return segment.Uint64
	case sumFloat:
		return segment.Float64
	default:
		return segment.DTypeInvalid
	}
}

// promoter folds one column's per-segment dtypes, in segment write order,
// into the schema common type and the sum output category. The fold order
// is significant: it may yield a wider type than a set-based fold would,
// which is preserved rather than corrected.
type promoter struct {
	column  string
	op      Op
	dtypes  []segment.DType
	common  segment.DType
	sumCat  sumCategory
	sparse  bool
	failure error
}

func newPromoter(column string, op Op) *promoter {
	return &promoter{column: column, op: op, common: segment.DTypeInvalid}
}

// observe folds the dtype a segment declares for the column. Unsupported
// op/dtype combinations and incompatible pairs surface here, per offending
// column, and stick for the rest of the fold.
func (p *promoter) observe(col *segment.Column) {
	if p.failure != nil {
		return
	}
	d := col.DType()

	switch p.op {
	case OpSum, OpMean:
		if d.Category() == segment.CategoryString || d.Category() == segment.CategoryDatetime {
			p.fail(errors.Newf(errors.ErrorTypeSchema,
				"aggregation %s is not supported on %s column %q", p.op, d, p.column).
				WithDetail("dtype", d.String()))
			return
		}
		if col.Sparse() {
			p.fail(errors.Newf(errors.ErrorTypeSchema,
				"aggregation %s is not supported on sparse column %q: implicit-null fill is undefined", p.op, p.column))
			return
		}
	case OpMin, OpMax:
		if d.Category() == segment.CategoryString {
			p.fail(errors.Newf(errors.ErrorTypeSchema,
				"aggregation %s is not supported on string column %q", p.op, p.column).
				WithDetail("dtype", d.String()))
			return
		}
	}

	p.dtypes = append(p.dtypes, d)
	p.sumCat = foldSumCategory(p.sumCat, d)

	if p.common == segment.DTypeInvalid && len(p.dtypes) == 1 {
		p.common = d
		return
	}
	next, ok := CommonType(p.common, d)
	if !ok {
		p.fail(errors.Newf(errors.ErrorTypeSchema,
			"no common dtype for column %q: %s is incompatible with %s", p.column, p.common, d).
			WithDetail("left", p.common.String()).
			WithDetail("right", d.String()))
		return
	}
	p.common = next
}

func (p *promoter) fail(err *errors.Error) {
	p.failure = err.WithDetail("column", p.column)
}

// outputDType resolves the aggregation's output dtype after the fold.
// Count and mean are fixed; sum follows the folded sum category; the
// order-sensitive ops take the schema common type. sawData distinguishes a
// column missing from a populated series, which is a schema error, from an
// empty series, which resolves the fixed-dtype ops and leaves the rest
// unresolved in an empty table.
func (p *promoter) outputDType(sawData bool) (segment.DType, error) {
	if p.failure != nil {
		return segment.DTypeInvalid, p.failure
	}
	if len(p.dtypes) == 0 && sawData {
		return segment.DTypeInvalid, p.absentErr()
	}
	switch p.op {
	case OpCount:
		return segment.Uint64, nil
	case OpMean:
		return segment.Float64, nil
	case OpSum:
		return p.sumCat.dtype(), nil
	default:
		return p.common, nil
	}
}

func (p *promoter) absentErr() error {
	return errors.Newf(errors.ErrorTypeSchema,
		"column %q is not present in any contributing segment", p.column).
		WithDetail("column", p.column)
}
