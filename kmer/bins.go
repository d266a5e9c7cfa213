// Copyright 2025, the Neptune contributors.

// Package kmer enumerates per-target k-mers, spills them to per-bin files,
// and aggregates the spills into one immutable, bin-partitioned table of
// inclusion/exclusion target counts.
package kmer

// Bins are selected by a fixed-length prefix of the k-mer. An organization
// degree of n produces 4^n bins; k-mers whose prefix contains an ambiguous
// base belong to no bin (such windows are skipped during counting).

// BinCount returns the number of bins for the organization degree.
func BinCount(organization int) int {
	n := 1
	for i := 0; i < organization; i++ {
		n *= 4
	}
	return n
}

var baseIndex = [256]int8{}

func init() {
	for i := range baseIndex {
		baseIndex[i] = -1
	}
	baseIndex['A'] = 0
	baseIndex['C'] = 1
	baseIndex['G'] = 2
	baseIndex['T'] = 3
}

// BinIndex maps a k-mer to its bin by its organization-length prefix.
// Returns -1 when the prefix contains a non-ACGT symbol.
func BinIndex(kmer string, organization int) int {
	idx := 0
	for i := 0; i < organization; i++ {
		b := baseIndex[kmer[i]]
		if b < 0 {
			return -1
		}
		idx = idx*4 + int(b)
	}
	return idx
}

// BinPrefix is the inverse of BinIndex: the lexicographically ordered
// prefix identifying bin i at the given organization degree.
func BinPrefix(i, organization int) string {
	buf := make([]byte, organization)
	for pos := organization - 1; pos >= 0; pos-- {
		buf[pos] = "ACGT"[i%4]
		i /= 4
	}
	return string(buf)
}
