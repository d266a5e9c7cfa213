// Copyright 2025, the Neptune contributors.
//
// Neptune locates discriminating signatures: regions of DNA that are
// present in a group of inclusion targets and absent from a group of
// exclusion targets.
//
// The pipeline counts the k-mers of both groups, aggregates them into a
// shared table, extracts candidate regions from the reference sequences,
// scores the candidates by alignment against both groups, and consolidates
// the per-reference results into a single ranking.
//
// Neptune can be invoked with command-line flags, with a TOML
// configuration file, or both; flags override the file.  A typical
// invocation is:
//
//	neptune --Inclusion=in1.fasta,in2.fasta --Exclusion=ex.fasta --Output=results
//
// To use a configuration file:
//
//	neptune --ConfigFileName=run.toml
//
// See config/config.go for the full set of configuration parameters.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/profile"
	"go.uber.org/zap"

	"github.com/phac-nml/neptune/config"
	"github.com/phac-nml/neptune/pipeline"
)

var cfg *config.Config

func handleArgs() {

	ConfigFileName := flag.String("ConfigFileName", "", "TOML file containing configuration parameters")
	Inclusion := flag.String("Inclusion", "", "Comma-separated inclusion fasta files")
	Exclusion := flag.String("Exclusion", "", "Comma-separated exclusion fasta files")
	References := flag.String("References", "", "Comma-separated reference fasta files (defaults to inclusion)")
	Output := flag.String("Output", "", "Output directory")
	Rate := flag.Float64("Rate", 0, "Per-base rate of variation between similar targets")
	Confidence := flag.Float64("Confidence", 0, "Statistical confidence for parameter estimation")
	KMerSize := flag.Int("KMerSize", 0, "K-mer size (estimated if not set)")
	GCContent := flag.Float64("GCContent", 0, "GC content used for estimation (computed if not set)")
	MinInclusionHits := flag.Int("MinInclusionHits", 0, "Inclusion targets a k-mer must appear in (estimated if not set)")
	MaxExclusionHits := flag.Int("MaxExclusionHits", 0, "Exclusion k-mer observations that close a region")
	MaxGap := flag.Int("MaxGap", 0, "Maximum gap inside a candidate region (estimated if not set)")
	MinSize := flag.Int("MinSize", 0, "Minimum candidate size in bases (estimated if not set)")
	FilterLength := flag.Float64("FilterLength", 0, "Aligned-fraction threshold for exclusion filtering")
	FilterPercent := flag.Float64("FilterPercent", 0, "Identity-fraction threshold for exclusion filtering")
	SeedSize := flag.Int("SeedSize", 0, "Alignment seed size")
	Organization := flag.Int("Organization", 0, "K-mer bin prefix length")
	Parallelism := flag.Int("Parallelism", 0, "Number of worker goroutines")
	Engine := flag.String("Engine", "", "Alignment engine, 'blast' or 'native'")
	OverlapTolerance := flag.Float64("OverlapTolerance", 0, "Overlap fraction above which a signature is dropped")
	TempDir := flag.String("TempDir", "", "Workspace for temporary files")
	KeepTemp := flag.Bool("KeepTemp", false, "Do not delete temporary files")
	CPUProfile := flag.Bool("CPUProfile", false, "Capture CPU profile data")

	flag.Parse()

	cfg = config.Default()
	if *ConfigFileName != "" {
		if err := cfg.ReadFile(*ConfigFileName); err != nil {
			fmt.Fprintf(os.Stderr, "cannot read %s: %v\n", *ConfigFileName, err)
			os.Exit(1)
		}
	}

	if *Inclusion != "" {
		cfg.Inclusion = strings.Split(*Inclusion, ",")
	}
	if *Exclusion != "" {
		cfg.Exclusion = strings.Split(*Exclusion, ",")
	}
	if *References != "" {
		cfg.References = strings.Split(*References, ",")
	}
	if *Output != "" {
		cfg.Output = *Output
	}
	if *Rate != 0 {
		cfg.Rate = *Rate
	}
	if *Confidence != 0 {
		cfg.Confidence = *Confidence
	}
	if *KMerSize != 0 {
		cfg.KMerSize = *KMerSize
	}
	if *GCContent != 0 {
		cfg.GCContent = *GCContent
	}
	if *MinInclusionHits != 0 {
		cfg.MinInclusionHits = *MinInclusionHits
	}
	if *MaxExclusionHits != 0 {
		cfg.MaxExclusionHits = *MaxExclusionHits
	}
	if *MaxGap != 0 {
		cfg.MaxGap = *MaxGap
	}
	if *MinSize != 0 {
		cfg.MinSize = *MinSize
	}
	if *FilterLength != 0 {
		cfg.FilterLength = *FilterLength
	}
	if *FilterPercent != 0 {
		cfg.FilterPercent = *FilterPercent
	}
	if *SeedSize != 0 {
		cfg.SeedSize = *SeedSize
	}
	if *Organization != 0 {
		cfg.Organization = *Organization
	}
	if *Parallelism != 0 {
		cfg.Parallelism = *Parallelism
	}
	if *Engine != "" {
		cfg.Engine = *Engine
	}
	if *OverlapTolerance != 0 {
		cfg.OverlapTolerance = *OverlapTolerance
	}
	if *TempDir != "" {
		cfg.TempDir = *TempDir
	}
	if *KeepTemp {
		cfg.KeepTemp = true
	}
	if *CPUProfile {
		cfg.CPUProfile = true
	}
}

func checkArgs() {

	if len(cfg.Inclusion) == 0 {
		os.Stderr.WriteString("\nInclusion not provided, run 'neptune --help' for more information.\n\n")
		os.Exit(1)
	}
	if len(cfg.Exclusion) == 0 {
		os.Stderr.WriteString("\nExclusion not provided, run 'neptune --help' for more information.\n\n")
		os.Exit(1)
	}
	if cfg.Output == "" {
		cfg.Output = "neptune_output"
		os.Stderr.WriteString("Output not provided, defaulting to 'neptune_output'\n")
	}
}

func main() {

	handleArgs()
	checkArgs()

	zlog, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot start logger: %v\n", err)
		os.Exit(1)
	}
	defer zlog.Sync()
	log := zlog.Sugar()

	if cfg.CPUProfile {
		p := profile.Start(profile.ProfilePath(cfg.Output))
		defer p.Stop()
	}

	if err := pipeline.Run(context.Background(), cfg, log); err != nil {
		log.Errorw("run failed", "err", err)
		fmt.Fprintf(os.Stderr, "neptune: %v\n", err)
		os.Exit(1)
	}
	log.Infow("run complete", "output", cfg.Output)
}
