// Copyright 2025, the Neptune contributors.

package align

import (
	"context"
	"fmt"

	"github.com/phac-nml/neptune/seq"
)

const (
	matchReward      = 2
	mismatchPenalty  = 3
	maxMismatchRun   = 3
	minNativeHitSize = 15
)

// NativeEngine aligns in-process with exact seed matching and ungapped
// extension. It needs no external tools and serves the same hit contract
// as the blastn adapter.
type NativeEngine struct {
	SeedSize int
}

type seedSite struct {
	subject int
	pos     int
}

type nativeDatabase struct {
	name     string
	subjects []seq.Target
	seeds    map[string][]seedSite
}

func (d *nativeDatabase) Name() string { return d.name }

// BuildDatabase indexes every seed-sized window of every subject.
func (e *NativeEngine) BuildDatabase(ctx context.Context, name string, targets []seq.Target) (Database, error) {

	db := &nativeDatabase{
		name:     name,
		subjects: targets,
		seeds:    make(map[string][]seedSite),
	}
	for si, t := range db.subjects {
		if si%64 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s := t.Seq
		for pos := 0; pos+e.SeedSize <= len(s); pos++ {
			window := s[pos : pos+e.SeedSize]
			if !seq.AllACGT(window) {
				continue
			}
			db.seeds[string(window)] = append(db.seeds[string(window)], seedSite{si, pos})
		}
	}
	return db, nil
}

// Align seeds each query against the index and extends each seed without
// gaps. One hit is kept per (query, subject, diagonal).
func (e *NativeEngine) Align(ctx context.Context, db Database, queries []Query) ([]Hit, error) {

	ndb, ok := db.(*nativeDatabase)
	if !ok {
		return nil, fmt.Errorf("database %s was not built by the native engine", db.Name())
	}

	type diagonal struct {
		subject, offset int
	}

	var hits []Hit
	for qi, q := range queries {
		if qi%64 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		seen := make(map[diagonal]bool)
		for pos := 0; pos+e.SeedSize <= len(q.Seq); pos++ {
			sites, ok := ndb.seeds[q.Seq[pos:pos+e.SeedSize]]
			if !ok {
				continue
			}
			for _, site := range sites {
				d := diagonal{site.subject, site.pos - pos}
				if seen[d] {
					continue
				}
				seen[d] = true
				subject := ndb.subjects[site.subject]
				h := extend(q, subject, pos, site.pos, e.SeedSize)
				if h.AlignLength >= minNativeHitSize {
					hits = append(hits, h)
				}
			}
		}
	}
	return hits, nil
}

// extend grows an exact seed in both directions, stopping each direction
// after maxMismatchRun consecutive mismatches and trimming the failed run.
func extend(q Query, subject seq.Target, qpos, spos, seedSize int) Hit {

	qs, ss := q.Seq, string(subject.Seq)

	// Left.
	start := 0
	run := 0
	for i := 1; qpos-i >= 0 && spos-i >= 0; i++ {
		if qs[qpos-i] == ss[spos-i] {
			run = 0
			start = i
		} else {
			run++
			if run >= maxMismatchRun {
				break
			}
		}
	}

	// Right.
	end := 0
	run = 0
	for i := 0; qpos+seedSize+i < len(qs) && spos+seedSize+i < len(ss); i++ {
		if qs[qpos+seedSize+i] == ss[spos+seedSize+i] {
			run = 0
			end = i + 1
		} else {
			run++
			if run >= maxMismatchRun {
				break
			}
		}
	}

	alignLength := start + seedSize + end
	matches := 0
	for i := 0; i < alignLength; i++ {
		if qs[qpos-start+i] == ss[spos-start+i] {
			matches++
		}
	}
	mismatches := alignLength - matches

	return Hit{
		QueryID:         q.ID,
		QueryLength:     len(qs),
		SubjectID:       subject.ID,
		AlignLength:     alignLength,
		PercentIdentity: 100 * float64(matches) / float64(alignLength),
		Score:           float64(matchReward*matches - mismatchPenalty*mismatches),
	}
}
