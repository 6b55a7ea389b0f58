package resample

import (
	"sort"

	"github.com/tickfold/tickfold/pkg/errors"
	"github.com/tickfold/tickfold/pkg/segment"
)

const day = 86_400_000_000_000

// Plan is the ordered set of bucket boundaries for one invocation.
// Boundaries are strictly increasing; bucket i spans boundaries[i] to
// boundaries[i+1], half-open per the closed side. The plan also carries the
// effective row filter range, the intersection of the full series extent
// with any requested sub-range.
type Plan struct {
	boundaries []int64
	closed     ClosedSide
	label      Label
	effective  segment.Range
	empty      bool
}

// NumBuckets returns the number of planned buckets
func (p *Plan) NumBuckets() int {
	if p.empty || len(p.boundaries) < 2 {
		return 0
	}
	return len(p.boundaries) - 1
}

// Boundaries returns the ordered bucket edges
func (p *Plan) Boundaries() []int64 { return p.boundaries }

// Effective returns the inclusive row filter range of the plan
func (p *Plan) Effective() segment.Range { return p.effective }

// LabelAt returns the reported timestamp of bucket i per the label side
func (p *Plan) LabelAt(i int) int64 {
	if p.label == LabelRight {
		return p.boundaries[i+1]
	}
	return p.boundaries[i]
}

// BucketOf assigns a timestamp to its bucket arena index by binary search
// over the boundaries, respecting the closed side. Returns -1 when the
// timestamp falls outside every bucket.
func (p *Plan) BucketOf(ts int64) int {
	n := p.NumBuckets()
	if n == 0 {
		return -1
	}
	var idx int
	if p.closed == ClosedRight {
		// ts in (b[i], b[i+1]]
		j := sort.Search(len(p.boundaries), func(k int) bool { return p.boundaries[k] >= ts })
		idx = j - 1
	} else {
		// ts in [b[i], b[i+1])
		j := sort.Search(len(p.boundaries), func(k int) bool { return p.boundaries[k] > ts })
		idx = j - 1
	}
	if idx < 0 || idx >= n {
		return -1
	}
	return idx
}

// plan computes bucket boundaries for the resolved request and series
// extent. Boundaries are a pure function of (rule, origin, offset) and, for
// data-relative origins, of the full series range; they never depend on how
// the data is chunked.
func plan(r *resolved, full segment.Range, hasData bool, requested *segment.Range) (*Plan, error) {
	if r.origin.DataRelative() && requested != nil {
		return nil, errors.Newf(errors.ErrorTypeRange,
			"origin %q anchors on the full series extent and cannot be combined with a date range",
			r.origin).
			WithDetail("origin", r.origin.String())
	}

	p := &Plan{closed: r.closed, label: r.label, empty: true}
	if !hasData {
		return p, nil
	}
	effective := full
	if requested != nil {
		var ok bool
		effective, ok = full.Intersect(*requested)
		if !ok {
			return p, nil
		}
	}

	first, last := effective.First, effective.Last

	var anchor int64
	switch r.origin.Kind {
	case OriginEpoch:
		anchor = 0
	case OriginTimestamp:
		anchor = r.origin.Timestamp
	case OriginStart:
		anchor = full.First
	case OriginStartDay:
		anchor = floorDay(full.First)
	case OriginEnd, OriginEndDay:
		originLast := full.Last
		if r.origin.Kind == OriginEndDay {
			originLast = ceilDay(full.Last)
		}
		// Walk backward from the anchor so boundaries exactly tile the
		// range; a short leading bucket is expected when the range length
		// is not a multiple of the rule.
		n := (originLast - first) / r.rule
		if r.closed == ClosedLeft {
			n++
		}
		first = originLast - n*r.rule
		anchor = first
	}
	anchor += r.offset

	fo := floorMod(first-anchor, r.rule)
	lo := floorMod(last-anchor, r.rule)

	var leftmost, rightmost int64
	if r.closed == ClosedRight {
		if fo > 0 {
			leftmost = first - fo
		} else {
			leftmost = first - r.rule
		}
		if lo > 0 {
			rightmost = last + (r.rule - lo)
		} else {
			rightmost = last
		}
	} else {
		if fo > 0 {
			leftmost = first - fo
		} else {
			leftmost = first
		}
		if lo > 0 {
			rightmost = last + (r.rule - lo)
		} else {
			rightmost = last + r.rule
		}
	}

	count := (rightmost-leftmost)/r.rule + 1
	boundaries := make([]int64, 0, count)
	for b := leftmost; b <= rightmost; b += r.rule {
		boundaries = append(boundaries, b)
	}

	p.boundaries = boundaries
	p.effective = effective
	p.empty = len(boundaries) < 2
	return p, nil
}

// floorMod is the non-negative remainder, so pre-epoch timestamps bucket
// the same way positive ones do.
func floorMod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func floorDay(ts int64) int64 {
	return ts - floorMod(ts, day)
}

func ceilDay(ts int64) int64 {
	if m := floorMod(ts, day); m != 0 {
		return ts + (day - m)
	}
	return ts
}
