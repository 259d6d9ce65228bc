// Package planner slices a page corpus into overlapping oracle batches.
// Primary ranges partition the document; context pages overlap so the
// oracle sees where a section continues across a batch boundary.
package planner

import "fmt"

// DefaultBatchSize and DefaultOverlap are used when a caller passes zero
// or negative values.
const (
	DefaultBatchSize = 40
	DefaultOverlap   = 3
)

// Batch is one oracle request worth of pages. Pages in [Lo, Hi] are
// primary: the batch is responsible for their labels. Pages in
// [CtxLo, Lo) and (Hi, CtxHi] ride along as context only and results for
// them are advisory. All bounds are 0-indexed and inclusive.
type Batch struct {
	Lo    int
	Hi    int
	CtxLo int
	CtxHi int
}

// Primary reports whether page is one of the batch's primary pages.
func (b Batch) Primary(page int) bool {
	return page >= b.Lo && page <= b.Hi
}

// Pages returns every page the batch carries, context included, in order.
func (b Batch) Pages() []int {
	out := make([]int, 0, b.CtxHi-b.CtxLo+1)
	for p := b.CtxLo; p <= b.CtxHi; p++ {
		out = append(out, p)
	}
	return out
}

func (b Batch) String() string {
	return fmt.Sprintf("pages %d-%d (ctx %d-%d)", b.Lo+1, b.Hi+1, b.CtxLo+1, b.CtxHi+1)
}

// Plan splits pageCount pages into batches of batchSize primary pages with
// up to overlap context pages on each side. Primary ranges are disjoint, in
// order, and jointly cover [0, pageCount-1]. Context is clamped at document
// edges, so the first and last batches carry less of it. A pageCount of
// zero plans nothing.
func Plan(pageCount, batchSize, overlap int) []Batch {
	if pageCount <= 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	batches := make([]Batch, 0, (pageCount+batchSize-1)/batchSize)
	for lo := 0; lo < pageCount; lo += batchSize {
		hi := min(lo+batchSize-1, pageCount-1)
		batches = append(batches, clamp(lo, hi, overlap, pageCount))
	}
	return batches
}

// Window builds a single targeted batch around [lo, hi] with margin context
// pages on each side, for resolver re-queries. Bounds outside the document
// are clamped; an inverted range returns a zero batch and false.
func Window(lo, hi, margin, pageCount int) (Batch, bool) {
	if pageCount <= 0 || hi < lo {
		return Batch{}, false
	}
	lo = max(lo, 0)
	hi = min(hi, pageCount-1)
	if hi < lo {
		return Batch{}, false
	}
	if margin < 0 {
		margin = 0
	}
	return clamp(lo, hi, margin, pageCount), true
}

func clamp(lo, hi, overlap, pageCount int) Batch {
	return Batch{
		Lo:    lo,
		Hi:    hi,
		CtxLo: max(0, lo-overlap),
		CtxHi: min(pageCount-1, hi+overlap),
	}
}
