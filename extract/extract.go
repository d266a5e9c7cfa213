// Copyright 2025, the Neptune contributors.

// Package extract scans reference sequences against the aggregated k-mer
// table and produces candidate signature intervals. The scan is a tolerant
// state machine: isolated non-matching gaps (simulating SNVs) extend a
// region, while long gaps or accumulated exclusion pressure close it.
package extract

import (
	"github.com/phac-nml/neptune/kmer"
	"github.com/phac-nml/neptune/seq"
)

// Candidate is an unscored signature region on one reference, spanning
// [Start, End).
type Candidate struct {
	Reference string
	Start     int
	End       int
	Seq       string
}

// Extractor scans references against a finalized k-mer table. It is
// read-only after construction and safe for concurrent use by the
// per-reference extraction tasks.
type Extractor struct {
	Table            *kmer.Table
	MinInclusionHits int
	MaxExclusionHits int
	MaxGap           int
	MinSize          int

	sketch *sketch
}

// NewExtractor builds an extractor, including the rolling match sketch
// over all candidate-supporting k-mers.
func NewExtractor(table *kmer.Table, minInclusionHits, maxExclusionHits, maxGap, minSize int) (*Extractor, error) {
	s, err := newSketch(table, minInclusionHits)
	if err != nil {
		return nil, err
	}
	return &Extractor{
		Table:            table,
		MinInclusionHits: minInclusionHits,
		MaxExclusionHits: maxExclusionHits,
		MaxGap:           maxGap,
		MinSize:          minSize,
		sketch:           s,
	}, nil
}

// Extract runs the scan over one reference and returns its candidate
// intervals in position order. Positions whose k-mer window contains an
// ambiguous base are treated as non-matches. Matching is forward-strand
// only.
func (e *Extractor) Extract(ref seq.Target) ([]Candidate, error) {

	k := e.Table.K
	s := ref.Seq
	if len(s) < k {
		return nil, nil
	}

	// ambigBefore[i] counts ambiguous bases in s[:i], giving O(1) window
	// validity checks.
	ambigBefore := make([]int, len(s)+1)
	for i, b := range s {
		ambigBefore[i+1] = ambigBefore[i]
		if !seq.IsACGT(b) {
			ambigBefore[i+1]++
		}
	}
	clean := func(pos int) bool { return ambigBefore[pos+k] == ambigBefore[pos] }

	hashes := e.sketch.newHashes()
	sums := make([]uint64, len(hashes))
	primed := false

	var candidates []Candidate

	open := false
	var start, lastMatchEnd, gapRun, exHits int

	closeRegion := func() {
		if open && lastMatchEnd-start >= e.MinSize {
			candidates = append(candidates, Candidate{
				Reference: ref.ID,
				Start:     start,
				End:       lastMatchEnd,
				Seq:       string(s[start:lastMatchEnd]),
			})
		}
		open = false
	}

	for pos := 0; pos+k <= len(s); pos++ {

		matched := false
		var exCount int

		if !clean(pos) {
			primed = false
		} else {
			if !primed {
				for _, ha := range hashes {
					ha.Reset()
					if _, err := ha.Write(s[pos : pos+k]); err != nil {
						return nil, err
					}
				}
				primed = true
			} else {
				for _, ha := range hashes {
					ha.Roll(s[pos+k-1])
				}
			}
			for j, ha := range hashes {
				sums[j] = uint64(ha.Sum32()) % e.sketch.size
			}
			hit, err := e.sketch.test(sums)
			if err != nil {
				return nil, err
			}
			if hit {
				in, ex, ok := e.Table.Lookup(string(s[pos : pos+k]))
				if ok && in >= e.MinInclusionHits {
					matched = true
					exCount = ex
				}
			}
		}

		if matched {
			if !open {
				open = true
				start = pos
				gapRun = 0
				exHits = 0
			} else {
				gapRun = 0
				exHits += exCount
			}
			lastMatchEnd = pos + k
		} else if open {
			gapRun++
			if gapRun > e.MaxGap || exHits >= e.MaxExclusionHits {
				closeRegion()
			}
		}
	}
	closeRegion()

	return candidates, nil
}
