// Copyright 2025, the Neptune contributors.

// Package pipeline runs the signature discovery stages in order: k-mer
// counting, aggregation, candidate extraction, filtering and scoring, and
// consolidation. Stages run their independent work items on a bounded
// worker pool and stop at the first error.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/phac-nml/neptune/align"
	"github.com/phac-nml/neptune/config"
	"github.com/phac-nml/neptune/consolidate"
	"github.com/phac-nml/neptune/estimate"
	"github.com/phac-nml/neptune/extract"
	"github.com/phac-nml/neptune/filter"
	"github.com/phac-nml/neptune/jobs"
	"github.com/phac-nml/neptune/kmer"
	"github.com/phac-nml/neptune/seq"
	"github.com/phac-nml/neptune/signature"
)

// ConsolidatedFileName is the final output file under the output directory.
const ConsolidatedFileName = "consolidated.fasta"

// SortedDirName holds the per-reference sorted signature files.
const SortedDirName = "sorted"

// CandidatesDirName holds the per-reference unscored candidate files.
const CandidatesDirName = "candidates"

// KMerTableFileName is the aggregated k-mer table dump.
const KMerTableFileName = "kmers.txt"

// Run executes the full pipeline for the configuration. The output
// directory receives one sorted signature file per reference and the
// consolidated ranking.
func Run(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) error {

	if err := cfg.Validate(); err != nil {
		return err
	}

	inclusion, err := seq.LoadGroup(cfg.Inclusion, seq.Inclusion)
	if err != nil {
		return err
	}
	exclusion, err := seq.LoadGroup(cfg.Exclusion, seq.Exclusion)
	if err != nil {
		return err
	}
	log.Infow("loaded targets", "inclusion", len(inclusion), "exclusion", len(exclusion))

	params, err := estimate.Estimate(cfg.EstimationSettings(), inclusion, exclusion)
	if err != nil {
		return err
	}
	log.Infow("resolved parameters",
		"k", params.K,
		"minInclusionHits", params.MinInclusionHits,
		"maxExclusionHits", params.MaxExclusionHits,
		"maxGap", params.MaxGap,
		"minSize", params.MinSize,
		"gcContent", params.GCContent)

	if err := os.MkdirAll(cfg.Output, 0o755); err != nil {
		return err
	}
	if err := writeParameters(filepath.Join(cfg.Output, "parameters.txt"), params); err != nil {
		return err
	}

	ws, err := NewWorkspace(cfg.TempDir, cfg.KeepTemp, log)
	if err != nil {
		return err
	}
	defer ws.Close()

	pool := jobs.Pool{Workers: cfg.Parallelism}

	table, err := buildTable(ctx, pool, ws, log, cfg, params, inclusion, exclusion)
	if err != nil {
		return err
	}
	log.Infow("aggregated k-mers", "distinct", table.Len())

	references, err := seq.LoadGroup(cfg.ReferenceFiles(), seq.Inclusion)
	if err != nil {
		return err
	}

	candidates, err := extractCandidates(ctx, pool, cfg.Output, log, params, table, references)
	if err != nil {
		return err
	}

	engine, err := newEngine(cfg, ws, log)
	if err != nil {
		return err
	}

	sorted, err := scoreReferences(ctx, pool, log, cfg, engine, inclusion, exclusion, references, candidates)
	if err != nil {
		return err
	}

	if err := writeSorted(cfg.Output, references, sorted); err != nil {
		return err
	}

	merged := consolidate.Merge(sorted, cfg.OverlapTolerance)
	log.Infow("consolidated signatures", "count", len(merged))

	return writeConsolidated(filepath.Join(cfg.Output, ConsolidatedFileName), merged)
}

func newEngine(cfg *config.Config, ws *Workspace, log *zap.SugaredLogger) (align.Engine, error) {
	switch cfg.Engine {
	case "native":
		return &align.NativeEngine{SeedSize: cfg.SeedSize}, nil
	case "blast":
		dir, err := ws.Mkdir("blast")
		if err != nil {
			return nil, err
		}
		return &align.BlastEngine{Dir: dir, SeedSize: cfg.SeedSize, Log: log}, nil
	}
	return nil, &estimate.ParameterError{Name: "engine", Reason: fmt.Sprintf("unknown engine %q", cfg.Engine)}
}

// buildTable counts k-mers per target per bin into spill files, then
// merges the spills bin by bin into a finalized table.
func buildTable(ctx context.Context, pool jobs.Pool, ws *Workspace, log *zap.SugaredLogger,
	cfg *config.Config, params estimate.Parameters, inclusion, exclusion []seq.Target) (*kmer.Table, error) {

	spillDir, err := ws.Mkdir("spill")
	if err != nil {
		return nil, err
	}
	bins := kmer.BinCount(cfg.Organization)

	var tasks []jobs.Task
	for _, group := range [][]seq.Target{inclusion, exclusion} {
		for ti := range group {
			t := group[ti]
			index := ti
			for bin := 0; bin < bins; bin++ {
				b := bin
				tasks = append(tasks, jobs.Task{
					Name: fmt.Sprintf("count %s %s bin %d", t.Group, t.ID, b),
					Run: func(ctx context.Context) error {
						kmers, err := kmer.CountTarget(t, params.K, cfg.Organization, b)
						if err != nil {
							return err
						}
						return kmer.WriteSpill(kmer.SpillPath(spillDir, t.Group.String(), index, b), kmers)
					},
				})
			}
		}
	}
	log.Infow("counting k-mers", "tasks", len(tasks), "k", params.K, "bins", bins)
	if err := pool.Run(ctx, tasks); err != nil {
		return nil, err
	}

	table := kmer.NewTable(params.K, cfg.Organization)
	tasks = tasks[:0]
	for bin := 0; bin < bins; bin++ {
		b := bin
		var inSpills, exSpills []string
		for i := range inclusion {
			inSpills = append(inSpills, kmer.SpillPath(spillDir, seq.Inclusion.String(), i, b))
		}
		for i := range exclusion {
			exSpills = append(exSpills, kmer.SpillPath(spillDir, seq.Exclusion.String(), i, b))
		}
		tasks = append(tasks, jobs.Task{
			Name: fmt.Sprintf("aggregate bin %d", b),
			Run: func(ctx context.Context) error {
				kmers, in, ex, err := kmer.AggregateBin(inSpills, exSpills)
				if err != nil {
					return err
				}
				table.SetBin(b, kmers, in, ex)
				return nil
			},
		})
	}
	if err := pool.Run(ctx, tasks); err != nil {
		return nil, err
	}

	f, err := os.Create(filepath.Join(cfg.Output, KMerTableFileName))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := table.Dump(f); err != nil {
		return nil, err
	}
	return table, nil
}

// extractCandidates scans each reference against the table, writing one
// candidate file per reference under the output directory.
func extractCandidates(ctx context.Context, pool jobs.Pool, output string, log *zap.SugaredLogger,
	params estimate.Parameters, table *kmer.Table, references []seq.Target) ([][]extract.Candidate, error) {

	candidateDir := filepath.Join(output, CandidatesDirName)
	if err := os.MkdirAll(candidateDir, 0o755); err != nil {
		return nil, err
	}
	extractor, err := extract.NewExtractor(table, params.MinInclusionHits, params.MaxExclusionHits, params.MaxGap, params.MinSize)
	if err != nil {
		return nil, err
	}

	candidates := make([][]extract.Candidate, len(references))
	var tasks []jobs.Task
	for i := range references {
		ri := i
		ref := references[ri]
		tasks = append(tasks, jobs.Task{
			Name: fmt.Sprintf("extract %s", ref.ID),
			Run: func(ctx context.Context) error {
				cands, err := extractor.Extract(ref)
				if err != nil {
					return err
				}
				candidates[ri] = cands
				return writeCandidates(filepath.Join(candidateDir, referenceFileName(ri, ref.ID)), cands)
			},
		})
	}
	if err := pool.Run(ctx, tasks); err != nil {
		return nil, err
	}

	total := 0
	for _, c := range candidates {
		total += len(c)
	}
	log.Infow("extracted candidates", "references", len(references), "candidates", total)
	return candidates, nil
}

// scoreReferences builds both group databases, then filters and scores
// each reference's candidates in parallel.
func scoreReferences(ctx context.Context, pool jobs.Pool, log *zap.SugaredLogger, cfg *config.Config,
	engine align.Engine, inclusion, exclusion []seq.Target, references []seq.Target,
	candidates [][]extract.Candidate) ([][]signature.Signature, error) {

	var inclusionDB, exclusionDB align.Database
	dbTasks := []jobs.Task{
		{
			Name: "build inclusion database",
			Run: func(ctx context.Context) error {
				db, err := engine.BuildDatabase(ctx, seq.Inclusion.String(), inclusion)
				inclusionDB = db
				return err
			},
		},
		{
			Name: "build exclusion database",
			Run: func(ctx context.Context) error {
				db, err := engine.BuildDatabase(ctx, seq.Exclusion.String(), exclusion)
				exclusionDB = db
				return err
			},
		},
	}
	if err := pool.Run(ctx, dbTasks); err != nil {
		return nil, err
	}

	scorer := &filter.Scorer{
		Engine:    engine,
		Inclusion: inclusionDB,
		Exclusion: exclusionDB,
		Settings: filter.Settings{
			FilterLength:  cfg.FilterLength,
			FilterPercent: cfg.FilterPercent,
			InclusionSize: len(inclusion),
			ExclusionSize: len(exclusion),
		},
		Log: log,
	}

	sorted := make([][]signature.Signature, len(references))
	var tasks []jobs.Task
	for i := range references {
		ri := i
		tasks = append(tasks, jobs.Task{
			Name: fmt.Sprintf("score %s", references[ri].ID),
			Run: func(ctx context.Context) error {
				sigs, err := scorer.Score(ctx, candidates[ri])
				if err != nil {
					return err
				}
				sorted[ri] = sigs
				return nil
			},
		})
	}
	if err := pool.Run(ctx, tasks); err != nil {
		return nil, err
	}
	return sorted, nil
}

// writeCandidates emits the unscored candidates in the signature record
// format; score fields are zero until the filter stage assigns them.
func writeCandidates(path string, cands []extract.Candidate) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	for i, c := range cands {
		s := signature.Signature{
			ID:        strconv.Itoa(i),
			Reference: c.Reference,
			Position:  c.Start,
			Seq:       c.Seq,
		}
		if err := signature.Write(f, s); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

func writeSorted(output string, references []seq.Target, sorted [][]signature.Signature) error {

	dir := filepath.Join(output, SortedDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i, sigs := range sorted {
		f, err := os.Create(filepath.Join(dir, referenceFileName(i, references[i].ID)))
		if err != nil {
			return err
		}
		if err := signature.WriteAll(f, sigs); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}

func writeConsolidated(path string, sigs []signature.Signature) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := signature.WriteAll(f, sigs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeParameters(path string, p estimate.Parameters) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(f, "k = %d\n", p.K)
	fmt.Fprintf(f, "min_inclusion_hits = %d\n", p.MinInclusionHits)
	fmt.Fprintf(f, "max_exclusion_hits = %d\n", p.MaxExclusionHits)
	fmt.Fprintf(f, "max_gap = %d\n", p.MaxGap)
	fmt.Fprintf(f, "min_size = %d\n", p.MinSize)
	fmt.Fprintf(f, "gc_content = %.4f\n", p.GCContent)
	fmt.Fprintf(f, "rate = %v\n", p.Rate)
	fmt.Fprintf(f, "confidence = %v\n", p.Confidence)
	return f.Close()
}

// referenceFileName builds a stable, filesystem-safe name for the
// per-reference output files.
func referenceFileName(index int, id string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
	return fmt.Sprintf("%04d_%s.fasta", index, safe)
}
