package resample

import (
	"context"
	"sort"

	"github.com/tickfold/tickfold/pkg/metrics"
	"github.com/tickfold/tickfold/pkg/segment"
)

// folder consumes segments in canonical write order and folds per-row
// contributions into per-bucket accumulators. Accumulation keys on the
// bucket arena index, never on segment identity, so partial results for a
// bucket spanning segments merge into one state.
type folder struct {
	plan     *Plan
	cols     []*columnFold
	rowsSeen []int64 // assigned rows per bucket, the empty-bucket arena
	segments int
	rowBase  int64 // merged row position of the next segment's first row
	scratch  []int
}

// columnFold pairs one output column's accumulator with its dtype fold.
type columnFold struct {
	spec outputSpec
	prom *promoter
	acc  *accumulator
}

func newFolder(p *Plan, specs []outputSpec) *folder {
	f := &folder{
		plan:     p,
		rowsSeen: make([]int64, p.NumBuckets()),
	}
	for _, spec := range specs {
		f.cols = append(f.cols, &columnFold{
			spec: spec,
			prom: newPromoter(spec.column, spec.op),
			acc:  newAccumulator(spec.op, p.NumBuckets()),
		})
	}
	return f
}

// fold drains the source. Cancellation is honored between segments; all
// accumulator state is discardable, so an aborted fold corrupts nothing.
func (f *folder) fold(ctx context.Context, source segment.Source) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		seg, err := source.Next(ctx)
		if err != nil {
			return err
		}
		if seg == nil {
			return nil
		}
		if err := f.foldSegment(seg); err != nil {
			return err
		}
	}
}

func (f *folder) foldSegment(seg *segment.Segment) error {
	f.segments++
	base := f.rowBase
	f.rowBase += int64(seg.Rows())
	metrics.SegmentsFolded.Inc()

	index := seg.Index()
	lo, hi := rangeWindow(index, f.plan.Effective())
	if lo >= hi {
		// Segment lies wholly outside the effective range; its columns
		// contribute neither rows nor dtypes.
		return nil
	}

	// Assign each in-range row to its bucket once, shared by every column.
	if cap(f.scratch) < hi-lo {
		f.scratch = make([]int, hi-lo)
	}
	buckets := f.scratch[:hi-lo]
	assigned := int64(0)
	for i := lo; i < hi; i++ {
		b := f.plan.BucketOf(index[i])
		buckets[i-lo] = b
		if b >= 0 {
			f.rowsSeen[b]++
			assigned++
		}
	}
	metrics.RowsFolded.Add(float64(assigned))

	for _, cf := range f.cols {
		col, present := seg.Column(cf.spec.column)
		if !present {
			// Wholly absent column under dynamic schema: contributes
			// nothing, but the segment's rows already counted toward
			// bucket presence above.
			continue
		}
		cf.prom.observe(col)
		if cf.prom.failure != nil {
			return cf.prom.failure
		}
		for i := lo; i < hi; i++ {
			b := buckets[i-lo]
			if b < 0 || col.IsNull(i) {
				continue
			}
			cf.acc.add(col, i, b, base+int64(i))
		}
	}
	return nil
}

// rangeWindow returns the half-open row window of the sorted index that
// falls inside the inclusive effective range.
func rangeWindow(index []int64, r segment.Range) (int, int) {
	lo := sort.Search(len(index), func(i int) bool { return index[i] >= r.First })
	hi := sort.Search(len(index), func(i int) bool { return index[i] > r.Last })
	return lo, hi
}
