package resample

import (
	"github.com/tickfold/tickfold/pkg/segment"
)

// cellKind tags the representation a cell carries.
type cellKind uint8

const (
	kindNone cellKind = iota
	kindBool
	kindInt
	kindUint
	kindFloat
	kindDatetime
	kindString
)

// cell is one tagged value plucked from a column. Extremum and first/last
// state holds cells so contributions from differently-typed segments merge
// into one slot and are cast to the promoted output dtype at assembly.
type cell struct {
	kind cellKind
	b    bool
	i    int64
	u    uint64
	f    float64
	s    string
}

func makeCell(col *segment.Column, row int) cell {
	switch col.DType().Category() {
	case segment.CategoryBool:
		return cell{kind: kindBool, b: col.Bool(row)}
	case segment.CategorySigned:
		return cell{kind: kindInt, i: col.Int64(row)}
	case segment.CategoryUnsigned:
		return cell{kind: kindUint, u: col.Uint64(row)}
	case segment.CategoryFloat:
		return cell{kind: kindFloat, f: col.Float64(row)}
	case segment.CategoryDatetime:
		return cell{kind: kindDatetime, i: col.Int64(row)}
	default:
		return cell{kind: kindString, s: col.Str(row)}
	}
}

// less orders two cells. Same-kind cells compare natively, signed/unsigned
// pairs compare as exact integers, and only mixes involving a float cell
// drop to float64, which also promote to a float output.
func (a cell) less(b cell) bool {
	if a.kind == b.kind {
		switch a.kind {
		case kindBool:
			return !a.b && b.b
		case kindInt, kindDatetime:
			return a.i < b.i
		case kindUint:
			return a.u < b.u
		case kindFloat:
			return a.f < b.f
		case kindString:
			return a.s < b.s
		}
	}
	if a.kind == kindInt && b.kind == kindUint {
		return a.i < 0 || uint64(a.i) < b.u
	}
	if a.kind == kindUint && b.kind == kindInt {
		return b.i >= 0 && a.u < uint64(b.i)
	}
	return a.asFloat() < b.asFloat()
}

func (a cell) asFloat() float64 {
	switch a.kind {
	case kindBool:
		if a.b {
			return 1
		}
		return 0
	case kindInt, kindDatetime:
		return float64(a.i)
	case kindUint:
		return float64(a.u)
	default:
		return a.f
	}
}

// accumulator holds per-bucket aggregation state for one output column.
// State is addressed by the bucket arena index, never by segment, so a
// bucket spanning any number of segments folds into a single slot.
type accumulator struct {
	op Op

	counts []uint64 // non-null contributions per bucket

	// sum state, split per source category so the widened total is formed
	// only once the output dtype is resolved
	sumInt   []int64
	sumUint  []uint64
	sumFloat []float64

	// extremum state for min/max
	ext    []cell
	extSet []bool

	// pick state for first/last, ordered by row position across the full
	// merged series
	pick    []cell
	pickPos []int64
	pickSet []bool
}

func newAccumulator(op Op, buckets int) *accumulator {
	acc := &accumulator{op: op, counts: make([]uint64, buckets)}
	switch op {
	case OpSum:
		acc.sumInt = make([]int64, buckets)
		acc.sumUint = make([]uint64, buckets)
		acc.sumFloat = make([]float64, buckets)
	case OpMean:
		acc.sumFloat = make([]float64, buckets)
	case OpMin, OpMax:
		acc.ext = make([]cell, buckets)
		acc.extSet = make([]bool, buckets)
	case OpFirst, OpLast:
		acc.pick = make([]cell, buckets)
		acc.pickPos = make([]int64, buckets)
		acc.pickSet = make([]bool, buckets)
	}
	return acc
}

// add folds one non-null row into the bucket's state. pos is the row's
// position across the full merged series, which keeps first/last correct
// when a bucket's earliest contribution arrives in a later segment.
func (acc *accumulator) add(col *segment.Column, row, bucket int, pos int64) {
	acc.counts[bucket]++
	switch acc.op {
	case OpCount:
		// non-null count only
	case OpSum:
		switch col.DType().Category() {
		case segment.CategorySigned:
			acc.sumInt[bucket] += col.Int64(row)
		case segment.CategoryUnsigned:
			acc.sumUint[bucket] += col.Uint64(row)
		case segment.CategoryBool:
			if col.Bool(row) {
				acc.sumUint[bucket]++
			}
		case segment.CategoryFloat:
			acc.sumFloat[bucket] += col.Float64(row)
		}
	case OpMean:
		acc.sumFloat[bucket] += col.AsFloat64(row)
	case OpMin:
		c := makeCell(col, row)
		if !acc.extSet[bucket] || c.less(acc.ext[bucket]) {
			acc.ext[bucket] = c
			acc.extSet[bucket] = true
		}
	case OpMax:
		c := makeCell(col, row)
		if !acc.extSet[bucket] || acc.ext[bucket].less(c) {
			acc.ext[bucket] = c
			acc.extSet[bucket] = true
		}
	case OpFirst:
		if !acc.pickSet[bucket] || pos < acc.pickPos[bucket] {
			acc.pick[bucket] = makeCell(col, row)
			acc.pickPos[bucket] = pos
			acc.pickSet[bucket] = true
		}
	case OpLast:
		if !acc.pickSet[bucket] || pos > acc.pickPos[bucket] {
			acc.pick[bucket] = makeCell(col, row)
			acc.pickPos[bucket] = pos
			acc.pickSet[bucket] = true
		}
	}
}

// valueAt finalizes the bucket's aggregate as a cell in the resolved
// output dtype's category. ok is false when the bucket has no non-null
// contribution, a null cell that assembly materializes per dtype.
func (acc *accumulator) valueAt(bucket int, out segment.DType) (cell, bool) {
	switch acc.op {
	case OpCount:
		return cell{kind: kindUint, u: acc.counts[bucket]}, true
	case OpMean:
		if acc.counts[bucket] == 0 {
			return cell{}, false
		}
		return cell{kind: kindFloat, f: acc.sumFloat[bucket] / float64(acc.counts[bucket])}, true
	case OpSum:
		if acc.counts[bucket] == 0 {
			return cell{}, false
		}
		switch out {
		case segment.Uint64:
			return cell{kind: kindUint, u: acc.sumUint[bucket]}, true
		case segment.Float64:
			f := acc.sumFloat[bucket] + float64(acc.sumInt[bucket]) + float64(acc.sumUint[bucket])
			return cell{kind: kindFloat, f: f}, true
		default:
			// mixed signed/unsigned folds to int64
			return cell{kind: kindInt, i: acc.sumInt[bucket] + int64(acc.sumUint[bucket])}, true
		}
	case OpMin, OpMax:
		if !acc.extSet[bucket] {
			return cell{}, false
		}
		return acc.ext[bucket], true
	default:
		if !acc.pickSet[bucket] {
			return cell{}, false
		}
		return acc.pick[bucket], true
	}
}
