// Copyright 2025, the Neptune contributors.

// Package consolidate merges the per-reference sorted signature lists into
// a single ranking, suppressing signatures that substantially overlap a
// higher-ranked signature on the same reference.
package consolidate

import (
	"container/heap"

	"github.com/phac-nml/neptune/signature"
)

// DefaultOverlapTolerance is the overlap fraction above which a signature
// is suppressed.
const DefaultOverlapTolerance = 0.5

type cursor struct {
	list int
	next int
	sigs []signature.Signature
}

// mergeHeap orders cursors by descending head score, then by list index,
// then by position, so the merged order is deterministic.
type mergeHeap []cursor

func (h mergeHeap) Len() int { return len(h) }

func (h mergeHeap) Less(i, j int) bool {
	a, b := h[i].sigs[h[i].next], h[j].sigs[h[j].next]
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if h[i].list != h[j].list {
		return h[i].list < h[j].list
	}
	return a.Position < b.Position
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(cursor)) }

func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

type interval struct {
	start, end int
}

// overlapFraction is the overlap in bases divided by the length of the
// shorter of the two intervals.
func overlapFraction(a, b interval) float64 {
	start := a.start
	if b.start > start {
		start = b.start
	}
	end := a.end
	if b.end < end {
		end = b.end
	}
	if end <= start {
		return 0
	}
	shorter := a.end - a.start
	if b.end-b.start < shorter {
		shorter = b.end - b.start
	}
	return float64(end-start) / float64(shorter)
}

// Merge combines per-reference signature lists, each already sorted by
// descending score, into one list in global score order. A signature is
// dropped when its overlap fraction with any already accepted signature on
// the same reference exceeds tolerance. Accepted signatures are renumbered
// in acceptance order.
func Merge(lists [][]signature.Signature, tolerance float64) []signature.Signature {

	h := make(mergeHeap, 0, len(lists))
	for i, sigs := range lists {
		if len(sigs) > 0 {
			h = append(h, cursor{list: i, sigs: sigs})
		}
	}
	heap.Init(&h)

	accepted := make(map[string][]interval)
	var merged []signature.Signature

	for h.Len() > 0 {
		c := h[0]
		s := c.sigs[c.next]
		if c.next+1 < len(c.sigs) {
			h[0].next++
			heap.Fix(&h, 0)
		} else {
			heap.Pop(&h)
		}

		span := interval{s.Position, s.Position + s.Length()}
		if overlapsAccepted(accepted[s.Reference], span, tolerance) {
			continue
		}
		accepted[s.Reference] = append(accepted[s.Reference], span)
		merged = append(merged, s)
	}

	signature.Renumber(merged)
	return merged
}

func overlapsAccepted(taken []interval, span interval, tolerance float64) bool {
	for _, t := range taken {
		if overlapFraction(t, span) > tolerance {
			return true
		}
	}
	return false
}
