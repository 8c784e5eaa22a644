package interval

import (
	"fmt"
	"math"
	"sort"
)

// PosType represents a 1-based genomic coordinate.  It is int32 because BAM
// cannot describe positions beyond that anyway.
type PosType int32

// PosTypeMax is the largest valid PosType value.
const PosTypeMax = math.MaxInt32

// searchGreater returns the index of the first element of a[] which is
// strictly greater than x, or len(a) if there is none.  This matches
// numpy.searchsorted(a, x, side="right").
func searchGreater(a []PosType, x PosType) int {
	return sort.Search(len(a), func(i int) bool { return a[i] > x })
}

// Extents is a set of non-overlapping intervals on one coordinate axis
// (typically one chromosome+strand), stored as two parallel arrays sorted by
// start coordinate.  Coordinates are 1-based and inclusive on both sides.
//
// The two-parallel-arrays representation is preferred over a []struct{start,
// end} sequence since both overlap-search bounds are computed against the
// start array alone, and []PosType binary search is something the compiler
// already optimizes well.
type Extents struct {
	// Starts is strictly increasing.
	Starts []PosType
	// Ends satisfies Ends[i] >= Starts[i] and Ends[i] < Starts[i+1].
	Ends []PosType
}

// NewExtents validates the start/end arrays and wraps them in an Extents.
// The arrays are retained, not copied.
func NewExtents(starts, ends []PosType) (Extents, error) {
	if len(starts) != len(ends) {
		return Extents{}, fmt.Errorf("interval.NewExtents: %d starts, %d ends", len(starts), len(ends))
	}
	for i := range starts {
		if ends[i] < starts[i] {
			return Extents{}, fmt.Errorf("interval.NewExtents: interval %d has end %d < start %d", i, ends[i], starts[i])
		}
		if (i != 0) && (starts[i] <= ends[i-1]) {
			return Extents{}, fmt.Errorf("interval.NewExtents: intervals %d and %d overlap or are unsorted", i-1, i)
		}
	}
	return Extents{Starts: starts, Ends: ends}, nil
}

// N returns the number of intervals.
func (e *Extents) N() int {
	return len(e.Starts)
}

// Interval returns the (start, end) pair of interval i.
func (e *Extents) Interval(i int) (PosType, PosType) {
	return e.Starts[i], e.Ends[i]
}

// OverlapRange returns the half-open index range [lo, hi) of intervals
// overlapping the 1-based inclusive query block [start, end].  Since the
// intervals partition the axis, the touched set is always contiguous.
//
// An empty axis yields (0, 0); so does any block falling entirely in a gap.
func (e *Extents) OverlapRange(start, end PosType) (lo, hi int) {
	if len(e.Starts) == 0 {
		return 0, 0
	}
	// last interval starting at or before the block start, or -1
	lo = searchGreater(e.Starts, start) - 1
	// first interval starting after the block end; everything in between is
	// touched
	hi = searchGreater(e.Starts, end)
	if lo == -1 {
		// No interval starts at or before us; intervals starting inside the
		// block still overlap it.
		lo = 0
	} else if e.Ends[lo] < start {
		// The interval at lo ends before the block starts.
		lo++
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}
