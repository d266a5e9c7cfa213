// Copyright 2025, the Neptune contributors.

package kmer

import (
	"fmt"
	"sort"

	"github.com/phac-nml/neptune/seq"
)

// CountTarget enumerates the distinct k-mers of one target that fall into
// the given bin. Windows containing any non-ACGT symbol are skipped: they
// cannot be matched exactly. The result is sorted.
//
// A target without any valid A/C/G/T content is an InputError; silently
// producing an empty k-mer set here used to surface much later as an
// alignment failure.
func CountTarget(t seq.Target, k, organization, bin int) ([]string, error) {

	if !seq.HasACGT(t.Seq) {
		return nil, &seq.InputError{
			Source: t.Path,
			Reason: fmt.Sprintf("record %s has no valid A, C, G or T content", t.ID),
		}
	}

	set := make(map[string]struct{})

	// Index of the most recent ambiguous base at or before the window end;
	// a window starting after it is clean.
	lastAmbig := -1

	for i := 0; i+k <= len(t.Seq); i++ {
		end := i + k - 1
		if i == 0 {
			for j := 0; j <= end; j++ {
				if !seq.IsACGT(t.Seq[j]) {
					lastAmbig = j
				}
			}
		} else if !seq.IsACGT(t.Seq[end]) {
			lastAmbig = end
		}
		if lastAmbig >= i {
			continue
		}
		kmer := string(t.Seq[i : i+k])
		if BinIndex(kmer, organization) != bin {
			continue
		}
		set[kmer] = struct{}{}
	}

	kmers := make([]string, 0, len(set))
	for km := range set {
		kmers = append(kmers, km)
	}
	sort.Strings(kmers)
	return kmers, nil
}
