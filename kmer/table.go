// Copyright 2025, the Neptune contributors.

package kmer

import (
	"fmt"
	"io"
	"sort"

	"github.com/willf/bloom"
)

// False-positive rate for the per-bin bloom prefilters. A false positive
// only costs one binary search.
const bloomFalsePositive = 0.01

// Bin holds the aggregated k-mers of one prefix bin in sorted order, with
// parallel per-group distinct-target counts and a bloom prefilter.
type Bin struct {
	KMers []string
	In    []int
	Ex    []int

	filter *bloom.BloomFilter
}

// seal builds the bloom prefilter once the bin contents are final.
func (b *Bin) seal() {
	n := uint(len(b.KMers))
	if n == 0 {
		n = 1
	}
	b.filter = bloom.NewWithEstimates(n, bloomFalsePositive)
	for _, km := range b.KMers {
		b.filter.AddString(km)
	}
}

// Table is the aggregated k-mer table: an arena of per-bin sorted arrays
// addressed by bin index. It is write-once during aggregation and read-only
// afterwards, so concurrent extraction tasks need no synchronization.
type Table struct {
	K            int
	Organization int
	Bins         []Bin
}

// NewTable allocates an empty table with 4^organization bins. Bins are
// filled independently by the aggregation tasks and must all be set before
// any lookup.
func NewTable(k, organization int) *Table {
	return &Table{
		K:            k,
		Organization: organization,
		Bins:         make([]Bin, BinCount(organization)),
	}
}

// SetBin installs the aggregated contents of one bin.
func (t *Table) SetBin(i int, kmers []string, in, ex []int) {
	b := Bin{KMers: kmers, In: in, Ex: ex}
	b.seal()
	t.Bins[i] = b
}

// Lookup returns the inclusion and exclusion distinct-target counts for a
// k-mer, or ok=false when the k-mer is absent or contains an ambiguous
// prefix. The bloom prefilter short-circuits misses before binary search.
func (t *Table) Lookup(kmer string) (in, ex int, ok bool) {
	bi := BinIndex(kmer, t.Organization)
	if bi < 0 {
		return 0, 0, false
	}
	b := &t.Bins[bi]
	if b.filter == nil || !b.filter.TestString(kmer) {
		return 0, 0, false
	}
	i := sort.SearchStrings(b.KMers, kmer)
	if i >= len(b.KMers) || b.KMers[i] != kmer {
		return 0, 0, false
	}
	return b.In[i], b.Ex[i], true
}

// Len is the total number of distinct k-mers across all bins.
func (t *Table) Len() int {
	var n int
	for i := range t.Bins {
		n += len(t.Bins[i].KMers)
	}
	return n
}

// Dump writes the table as sorted "kmer inCount exCount" lines. Bins are
// already internally sorted and bin order follows prefix order, so the
// output is globally sorted.
func (t *Table) Dump(w io.Writer) error {
	for i := range t.Bins {
		b := &t.Bins[i]
		for j, km := range b.KMers {
			if _, err := fmt.Fprintf(w, "%s %d %d\n", km, b.In[j], b.Ex[j]); err != nil {
				return err
			}
		}
	}
	return nil
}
