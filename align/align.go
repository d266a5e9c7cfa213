// Copyright 2025, the Neptune contributors.

// Package align defines the alignment engine used to score candidate
// signatures against the inclusion and exclusion groups, with a blastn
// adapter and a native in-process implementation.
package align

import (
	"context"
	"fmt"

	"github.com/phac-nml/neptune/seq"
)

// Hit is one local alignment of a query against a subject.
type Hit struct {
	QueryID         string
	QueryLength     int
	SubjectID       string
	AlignLength     int
	PercentIdentity float64 // 0..100
	Score           float64
}

// PercentLength is the aligned fraction of the query, in [0, 1].
func (h Hit) PercentLength() float64 {
	if h.QueryLength == 0 {
		return 0
	}
	return float64(h.AlignLength) / float64(h.QueryLength)
}

// Database is an opaque handle to a built alignment database.
type Database interface {
	Name() string
}

// Engine builds searchable databases from target groups and aligns
// query sequences against them.
type Engine interface {

	// BuildDatabase indexes the targets for alignment. The name is a
	// label carried through to logs and temporary files.
	BuildDatabase(ctx context.Context, name string, targets []seq.Target) (Database, error)

	// Align reports local alignment hits of the queries against db.
	// Queries with no hits are absent from the result.
	Align(ctx context.Context, db Database, queries []Query) ([]Hit, error)
}

// Query is a candidate submitted for alignment.
type Query struct {
	ID  string
	Seq string
}

// AlignmentError reports a candidate that produced no usable alignment.
// It is local to one candidate and does not abort the run.
type AlignmentError struct {
	QueryID string
	Reason  string
}

func (e AlignmentError) Error() string {
	return fmt.Sprintf("alignment failed for candidate %s: %s", e.QueryID, e.Reason)
}

// BestHits reduces hits to the single highest-scoring hit per
// (query, subject) pair, preserving first-seen order of pairs.
func BestHits(hits []Hit) []Hit {

	type pair struct {
		query, subject string
	}
	index := make(map[pair]int)
	var best []Hit
	for _, h := range hits {
		p := pair{h.QueryID, h.SubjectID}
		if i, ok := index[p]; ok {
			if h.Score > best[i].Score {
				best[i] = h
			}
			continue
		}
		index[p] = len(best)
		best = append(best, h)
	}
	return best
}
