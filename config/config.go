// Copyright 2025, the Neptune contributors.

// Package config holds the run configuration, its defaults, and its
// validation.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/phac-nml/neptune/estimate"
)

type Config struct {

	// The fasta files containing the inclusion targets.
	Inclusion []string

	// The fasta files containing the exclusion targets.
	Exclusion []string

	// The fasta files to extract candidate signatures from.  If empty,
	// the inclusion files are used.
	References []string

	// The directory where results are written.
	Output string

	// The per-base rate of variation between similar targets, used when
	// estimating parameters.
	Rate float64

	// The statistical confidence used when estimating parameters.
	Confidence float64

	// The k-mer size.  If zero, it is estimated from the targets.
	KMerSize int

	// The GC content used for estimation.  If zero, it is computed from
	// the inclusion targets.
	GCContent float64

	// The minimum number of inclusion targets a k-mer must appear in for
	// a window to count as a match.  If zero, it is estimated.
	MinInclusionHits int

	// The number of exclusion k-mer observations that close a candidate
	// region.  If zero, it is estimated.
	MaxExclusionHits int

	// The maximum number of consecutive non-matching windows tolerated
	// inside a candidate region.  If zero, it is estimated.
	MaxGap int

	// The minimum candidate size in bases.  If zero, it is estimated.
	MinSize int

	// A candidate is removed when an exclusion alignment covers at least
	// this fraction of it and meets FilterPercent.
	FilterLength float64

	// The identity fraction an exclusion alignment must meet for a
	// candidate to be removed.
	FilterPercent float64

	// The alignment seed size.
	SeedSize int

	// K-mers are partitioned into 4^Organization bins by prefix.
	Organization int

	// The number of worker goroutines used for parallel stages.
	Parallelism int

	// The alignment engine, either "blast" or "native".
	Engine string

	// The fraction of overlap with a higher-ranked signature above which
	// a signature is dropped during consolidation.
	OverlapTolerance float64

	// If true, CPU profile data is captured for the run and written to
	// the output directory.
	CPUProfile bool

	// Use this location to place temporary files.  If blank, a directory
	// is created under the system temporary directory.
	TempDir string

	// If true, temporary files are kept after the run.
	KeepTemp bool
}

// Default returns a configuration with every tunable at its default.
// Input and output paths are left empty.
func Default() *Config {
	return &Config{
		Rate:             0.01,
		Confidence:       0.95,
		FilterLength:     0.5,
		FilterPercent:    0.5,
		SeedSize:         11,
		Organization:     3,
		Parallelism:      8,
		Engine:           "blast",
		OverlapTolerance: 0.5,
	}
}

// ReadFile merges settings from a TOML file over cfg.
func (cfg *Config) ReadFile(filename string) error {
	_, err := toml.DecodeFile(filename, cfg)
	return err
}

// Validate checks the configuration, returning a ParameterError naming the
// first offending setting.
func (cfg *Config) Validate() error {

	if len(cfg.Inclusion) == 0 {
		return &estimate.ParameterError{Name: "inclusion", Reason: "at least one inclusion file is required"}
	}
	if len(cfg.Exclusion) == 0 {
		return &estimate.ParameterError{Name: "exclusion", Reason: "at least one exclusion file is required"}
	}
	if cfg.Output == "" {
		return &estimate.ParameterError{Name: "output", Reason: "an output directory is required"}
	}
	if cfg.Rate <= 0 || cfg.Rate >= 1 {
		return &estimate.ParameterError{Name: "rate", Reason: fmt.Sprintf("must be in (0, 1), got %v", cfg.Rate)}
	}
	if cfg.Confidence <= 0 || cfg.Confidence >= 1 {
		return &estimate.ParameterError{Name: "confidence", Reason: fmt.Sprintf("must be in (0, 1), got %v", cfg.Confidence)}
	}
	if cfg.GCContent < 0 || cfg.GCContent > 1 {
		return &estimate.ParameterError{Name: "gccontent", Reason: fmt.Sprintf("must be in [0, 1], got %v", cfg.GCContent)}
	}
	if cfg.KMerSize < 0 {
		return &estimate.ParameterError{Name: "kmersize", Reason: "must be positive"}
	}
	if cfg.KMerSize > 0 && cfg.KMerSize%2 == 0 {
		return &estimate.ParameterError{Name: "kmersize", Reason: "must be odd"}
	}
	if cfg.FilterLength < 0 || cfg.FilterLength > 1 {
		return &estimate.ParameterError{Name: "filterlength", Reason: fmt.Sprintf("must be in [0, 1], got %v", cfg.FilterLength)}
	}
	if cfg.FilterPercent < 0 || cfg.FilterPercent > 1 {
		return &estimate.ParameterError{Name: "filterpercent", Reason: fmt.Sprintf("must be in [0, 1], got %v", cfg.FilterPercent)}
	}
	if cfg.SeedSize < 4 {
		return &estimate.ParameterError{Name: "seedsize", Reason: fmt.Sprintf("must be at least 4, got %d", cfg.SeedSize)}
	}
	if cfg.Organization < 0 || cfg.Organization > 8 {
		return &estimate.ParameterError{Name: "organization", Reason: fmt.Sprintf("must be in [0, 8], got %d", cfg.Organization)}
	}
	if cfg.Parallelism < 1 {
		return &estimate.ParameterError{Name: "parallelism", Reason: "must be at least 1"}
	}
	if cfg.Engine != "blast" && cfg.Engine != "native" {
		return &estimate.ParameterError{Name: "engine", Reason: fmt.Sprintf("must be blast or native, got %q", cfg.Engine)}
	}
	if cfg.OverlapTolerance < 0 || cfg.OverlapTolerance > 1 {
		return &estimate.ParameterError{Name: "overlaptolerance", Reason: fmt.Sprintf("must be in [0, 1], got %v", cfg.OverlapTolerance)}
	}
	return nil
}

// ReferenceFiles returns the files candidates are extracted from,
// defaulting to the inclusion files.
func (cfg *Config) ReferenceFiles() []string {
	if len(cfg.References) > 0 {
		return cfg.References
	}
	return cfg.Inclusion
}

// EstimationSettings maps the configuration onto the estimator inputs.
func (cfg *Config) EstimationSettings() estimate.Settings {
	return estimate.Settings{
		Rate:             cfg.Rate,
		Confidence:       cfg.Confidence,
		GCContent:        cfg.GCContent,
		K:                cfg.KMerSize,
		MinInclusionHits: cfg.MinInclusionHits,
		MaxExclusionHits: cfg.MaxExclusionHits,
		MaxGap:           cfg.MaxGap,
		MinSize:          cfg.MinSize,
	}
}
