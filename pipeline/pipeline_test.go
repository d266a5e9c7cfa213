// Copyright 2025, the Neptune contributors.

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/phac-nml/neptune/config"
	"github.com/phac-nml/neptune/estimate"
	"github.com/phac-nml/neptune/seq"
	"github.com/phac-nml/neptune/signature"
)

// The shared locus uses only A/C while the flanks and the exclusion
// genome use only G/T, so the locus is the discriminating content.
const (
	locus = "ACCACAACCACCAACACACCAACCACACAACACCACCAACCAACCACCACACAACCACCA"

	flank1 = "GGTGTTGGTTGTTGGGTGTGTTGTGGTTGGTGTTTGGTGGTTGTGTGGTT"
	flank2 = "GTTGGGTTGTGGTGTTGGTTTGTGGGTTGGTTGTGGGTGTTGTTGGTGTG"
	flank3 = "TGGTTGTGGGTTGTTGGTGTGGGTTGGTGTTGGGTGTGGTTGTTGGGTGT"
	flank4 = "GTGGTTGGGTGTTGGTTGTGTGGGTTGTGGTGGTTGTGGGTTGTTGGTGG"
)

func writeFasta(t *testing.T, path string, records [][2]string) {
	t.Helper()
	var b strings.Builder
	for _, r := range records {
		b.WriteString(">" + r[0] + "\n" + r[1] + "\n")
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	writeFasta(t, filepath.Join(dir, "inclusion.fasta"), [][2]string{
		{"g1", flank1 + locus + flank2},
		{"g2", flank3 + locus + flank4},
	})
	writeFasta(t, filepath.Join(dir, "exclusion.fasta"), [][2]string{
		{"e1", flank1 + flank2 + flank3 + flank4},
	})

	cfg := config.Default()
	cfg.Inclusion = []string{filepath.Join(dir, "inclusion.fasta")}
	cfg.Exclusion = []string{filepath.Join(dir, "exclusion.fasta")}
	cfg.Output = filepath.Join(dir, "out")
	cfg.TempDir = filepath.Join(dir, "tmp")
	cfg.Engine = "native"
	cfg.SeedSize = 7
	cfg.Organization = 1
	cfg.Parallelism = 2
	cfg.KMerSize = 5
	cfg.MinInclusionHits = 1
	cfg.MaxExclusionHits = 1000
	cfg.MaxGap = 3
	cfg.MinSize = 20
	return cfg
}

func TestRunEndToEnd(t *testing.T) {

	cfg := testConfig(t)
	log := zaptest.NewLogger(t).Sugar()
	require.NoError(t, Run(context.Background(), cfg, log))

	f, err := os.Open(filepath.Join(cfg.Output, ConsolidatedFileName))
	require.NoError(t, err)
	defer f.Close()
	sigs, err := signature.Read(f)
	require.NoError(t, err)

	// One signature per reference, both carrying the shared locus.
	require.Len(t, sigs, 2)
	for i, sig := range sigs {
		assert.Contains(t, sig.Seq, locus)
		assert.Greater(t, sig.Score, 0.0)
		assert.LessOrEqual(t, sig.Score, 1.0)
		assert.GreaterOrEqual(t, sig.InScore, 0.0)
		assert.LessOrEqual(t, sig.ExScore, 0.0)
		assert.InDelta(t, sig.InScore+sig.ExScore, sig.Score, 1e-4)
		if i > 0 {
			assert.GreaterOrEqual(t, sigs[i-1].Score, sig.Score)
		}
	}
	assert.Equal(t, "0", sigs[0].ID)
	assert.Equal(t, "1", sigs[1].ID)

	// Per-reference sorted files and the parameter report are written.
	entries, err := os.ReadDir(filepath.Join(cfg.Output, SortedDirName))
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// Candidate files survive the run, in the signature record format
	// with zero scores.
	candEntries, err := os.ReadDir(filepath.Join(cfg.Output, CandidatesDirName))
	require.NoError(t, err)
	require.Len(t, candEntries, 2)
	cf, err := os.Open(filepath.Join(cfg.Output, CandidatesDirName, candEntries[0].Name()))
	require.NoError(t, err)
	defer cf.Close()
	cands, err := signature.Read(cf)
	require.NoError(t, err)
	require.NotEmpty(t, cands)
	assert.Equal(t, "0", cands[0].ID)
	assert.Equal(t, 0.0, cands[0].Score)
	assert.Contains(t, cands[0].Seq, locus)
	assert.NotEmpty(t, cands[0].Reference)

	// The aggregated k-mer table dump is an external output too.
	dump, err := os.ReadFile(filepath.Join(cfg.Output, KMerTableFileName))
	require.NoError(t, err)
	assert.NotEmpty(t, dump)

	report, err := os.ReadFile(filepath.Join(cfg.Output, "parameters.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "k = 5")

	// The workspace is removed after a successful run.
	leftovers, err := os.ReadDir(cfg.TempDir)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestRunIsDeterministic(t *testing.T) {

	read := func() string {
		cfg := testConfig(t)
		log := zaptest.NewLogger(t).Sugar()
		require.NoError(t, Run(context.Background(), cfg, log))
		data, err := os.ReadFile(filepath.Join(cfg.Output, ConsolidatedFileName))
		require.NoError(t, err)
		return string(data)
	}

	first := read()
	second := read()
	assert.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestRunKeepTemp(t *testing.T) {

	cfg := testConfig(t)
	cfg.KeepTemp = true
	log := zaptest.NewLogger(t).Sugar()
	require.NoError(t, Run(context.Background(), cfg, log))

	entries, err := os.ReadDir(cfg.TempDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	ws := filepath.Join(cfg.TempDir, entries[0].Name())
	spills, err := os.ReadDir(filepath.Join(ws, "spill"))
	require.NoError(t, err)
	assert.NotEmpty(t, spills)
}

func TestRunRejectsUnusableRecord(t *testing.T) {

	cfg := testConfig(t)
	writeFasta(t, cfg.Inclusion[0], [][2]string{
		{"g1", flank1 + locus + flank2},
		{"bad", strings.Repeat("N", 40)},
	})

	log := zaptest.NewLogger(t).Sugar()
	err := Run(context.Background(), cfg, log)

	var ie *seq.InputError
	require.ErrorAs(t, err, &ie)
}

func TestRunInvalidConfig(t *testing.T) {

	cfg := testConfig(t)
	cfg.Engine = "mafft"

	log := zaptest.NewLogger(t).Sugar()
	err := Run(context.Background(), cfg, log)

	var pe *estimate.ParameterError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "engine", pe.Name)
}

func TestReferenceFileName(t *testing.T) {
	assert.Equal(t, "0000_chr1.fasta", referenceFileName(0, "chr1"))
	assert.Equal(t, "0012_a_b_c.2.fasta", referenceFileName(12, "a/b c.2"))
}
