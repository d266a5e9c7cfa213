// Copyright 2025, the Neptune contributors.

// Package seq provides FASTA target records and the base-level helpers
// shared by the counting, extraction and alignment stages.
package seq

import "fmt"

// Group labels a target as belonging to the inclusion or exclusion set.
type Group int

const (
	Inclusion Group = iota
	Exclusion
)

func (g Group) String() string {
	if g == Inclusion {
		return "inclusion"
	}
	return "exclusion"
}

// Target is an immutable FASTA record. Seq is uppercased at load time and
// never mutated afterwards.
type Target struct {
	ID    string
	Seq   []byte
	Group Group
	Path  string
}

// InputError reports unusable input data, such as a record with no valid
// nucleotide content or an empty target group.
type InputError struct {
	Source string
	Reason string
}

func (e *InputError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("input error: %s", e.Reason)
	}
	return fmt.Sprintf("input error in %s: %s", e.Source, e.Reason)
}

// IsACGT reports whether b is an unambiguous nucleotide. Sequences are
// uppercased on load, so lowercase forms do not occur.
func IsACGT(b byte) bool {
	switch b {
	case 'A', 'C', 'G', 'T':
		return true
	}
	return false
}

// HasACGT reports whether the sequence contains at least one unambiguous
// nucleotide.
func HasACGT(s []byte) bool {
	for _, b := range s {
		if IsACGT(b) {
			return true
		}
	}
	return false
}

// AllACGT reports whether every base in the sequence is unambiguous.
func AllACGT(s []byte) bool {
	for _, b := range s {
		if !IsACGT(b) {
			return false
		}
	}
	return true
}

// GCContent returns the GC fraction of the target computed over unambiguous
// bases only, and the number of unambiguous bases seen. A sequence with no
// A, C, G or T content returns (0, 0).
func GCContent(s []byte) (gc float64, acgt int) {
	var sumGC, sumAT int
	for _, b := range s {
		switch b {
		case 'G', 'C':
			sumGC++
		case 'A', 'T':
			sumAT++
		}
	}
	if sumGC+sumAT == 0 {
		return 0, 0
	}
	return float64(sumGC) / float64(sumGC+sumAT), sumGC + sumAT
}
