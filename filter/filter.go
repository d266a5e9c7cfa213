// Copyright 2025, the Neptune contributors.

// Package filter scores candidate signatures against the inclusion and
// exclusion groups and removes candidates dominated by exclusion content.
package filter

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/phac-nml/neptune/align"
	"github.com/phac-nml/neptune/extract"
	"github.com/phac-nml/neptune/signature"
)

// Settings controls exclusion filtering and group scoring.
type Settings struct {

	// FilterLength is the aligned-fraction threshold in [0, 1]. A candidate
	// is removed only when an exclusion hit meets this and FilterPercent.
	FilterLength float64

	// FilterPercent is the identity-fraction threshold in [0, 1].
	FilterPercent float64

	// InclusionSize and ExclusionSize are the group target counts used to
	// normalize scores.
	InclusionSize int
	ExclusionSize int
}

// Scorer filters and scores candidates for one reference at a time
// against prebuilt group databases.
type Scorer struct {
	Engine    align.Engine
	Inclusion align.Database
	Exclusion align.Database
	Settings  Settings
	Log       *zap.SugaredLogger
}

// Score filters the candidates against the exclusion group, scores the
// survivors against both groups, and returns signatures sorted by
// descending score with ids renumbered from zero. Candidates that align
// to nothing in the inclusion group are dropped with a warning.
func (s *Scorer) Score(ctx context.Context, candidates []extract.Candidate) ([]signature.Signature, error) {

	if len(candidates) == 0 {
		return nil, nil
	}

	queries := make([]align.Query, len(candidates))
	for i, c := range candidates {
		queries[i] = align.Query{ID: strconv.Itoa(i), Seq: c.Seq}
	}

	exclusionHits, err := s.Engine.Align(ctx, s.Exclusion, queries)
	if err != nil {
		return nil, err
	}
	exclusionHits = align.BestHits(exclusionHits)

	kept := s.applyExclusionFilter(queries, exclusionHits)
	if len(kept) == 0 {
		return nil, nil
	}

	inclusionHits, err := s.Engine.Align(ctx, s.Inclusion, kept)
	if err != nil {
		return nil, err
	}
	inclusionHits = align.BestHits(inclusionHits)

	inScores := sumContributions(inclusionHits)
	exScores := sumContributions(exclusionHits)

	var sigs []signature.Signature
	for _, q := range kept {
		i, _ := strconv.Atoi(q.ID)
		c := candidates[i]

		inSum, ok := inScores[q.ID]
		if !ok {
			e := align.AlignmentError{QueryID: q.ID, Reason: "no inclusion alignment"}
			s.Log.Warnw("dropping candidate", "reference", c.Reference, "position", c.Start, "err", e.Error())
			continue
		}
		inScore := inSum / float64(s.Settings.InclusionSize)
		exScore := -exScores[q.ID] / float64(s.Settings.ExclusionSize)

		sigs = append(sigs, signature.Signature{
			Score:     inScore + exScore,
			InScore:   inScore,
			ExScore:   exScore,
			Reference: c.Reference,
			Position:  c.Start,
			Seq:       c.Seq,
		})
	}

	signature.SortDescending(sigs)
	signature.Renumber(sigs)
	return sigs, nil
}

// applyExclusionFilter keeps queries whose best exclusion hit fails either
// the length or the identity threshold. Both must be met to remove.
func (s *Scorer) applyExclusionFilter(queries []align.Query, exclusionHits []align.Hit) []align.Query {

	best := make(map[string]align.Hit)
	for _, h := range exclusionHits {
		if prev, ok := best[h.QueryID]; !ok || h.Score > prev.Score {
			best[h.QueryID] = h
		}
	}

	var kept []align.Query
	for _, q := range queries {
		h, ok := best[q.ID]
		if ok && h.PercentLength() >= s.Settings.FilterLength &&
			h.PercentIdentity/100 >= s.Settings.FilterPercent {
			continue
		}
		kept = append(kept, q)
	}
	return kept
}

// sumContributions totals (aligned fraction) * (identity fraction) per
// query over its best hits per subject.
func sumContributions(hits []align.Hit) map[string]float64 {
	sums := make(map[string]float64)
	for _, h := range hits {
		sums[h.QueryID] += h.PercentLength() * (h.PercentIdentity / 100)
	}
	return sums
}
