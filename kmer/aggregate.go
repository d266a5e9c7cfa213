// Copyright 2025, the Neptune contributors.

package kmer

import "fmt"

// Aggregation merges the per-target spill files of one bin into a single
// sorted k-mer list with distinct-target counts per group. Each spill holds
// distinct sorted k-mers, so every stream contributes at most one
// observation per k-mer and the counts are presence counts, bounded by the
// group sizes.

// Lexicographically above every A/C/G/T string.
const mergeSentinel = "~"

// smallestHead returns the lexicographically smallest head k-mer across the
// open spill readers, or the sentinel when all are exhausted.
func smallestHead(readers []*SpillReader) string {
	smallest := mergeSentinel
	for _, r := range readers {
		if r.Head != "" && r.Head < smallest {
			smallest = r.Head
		}
	}
	return smallest
}

// consumeMatches counts how many readers currently head with kmer and
// advances each of them past it.
func consumeMatches(kmer string, readers []*SpillReader) int {
	var count int
	for _, r := range readers {
		if r.Head != "" && r.Head == kmer {
			count++
			r.Advance()
		}
	}
	return count
}

// AggregateBin merges the inclusion and exclusion spill files of one bin.
// The spill k-mer order is preserved, so the returned slices are sorted.
func AggregateBin(inclusionSpills, exclusionSpills []string) (kmers []string, in, ex []int, err error) {

	open := func(paths []string) ([]*SpillReader, error) {
		readers := make([]*SpillReader, 0, len(paths))
		for _, p := range paths {
			r, err := OpenSpill(p)
			if err != nil {
				for _, prev := range readers {
					prev.Close()
				}
				return nil, err
			}
			readers = append(readers, r)
		}
		return readers, nil
	}

	inReaders, err := open(inclusionSpills)
	if err != nil {
		return nil, nil, nil, err
	}
	exReaders, err := open(exclusionSpills)
	if err != nil {
		for _, r := range inReaders {
			r.Close()
		}
		return nil, nil, nil, err
	}
	all := append(append([]*SpillReader{}, inReaders...), exReaders...)
	defer func() {
		for _, r := range all {
			if cerr := r.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}()

	for {
		kmer := smallestHead(all)
		if kmer == mergeSentinel {
			break
		}
		incount := consumeMatches(kmer, inReaders)
		excount := consumeMatches(kmer, exReaders)

		kmers = append(kmers, kmer)
		in = append(in, incount)
		ex = append(ex, excount)
	}

	for _, r := range all {
		if rerr := r.Err(); rerr != nil {
			return nil, nil, nil, fmt.Errorf("reading spill stream: %w", rerr)
		}
	}
	return kmers, in, ex, nil
}
