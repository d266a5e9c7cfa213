// Copyright 2025, the Neptune contributors.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phac-nml/neptune/estimate"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Inclusion = []string{"in.fasta"}
	cfg.Exclusion = []string{"ex.fasta"}
	cfg.Output = "out"
	return cfg
}

func TestDefaults(t *testing.T) {

	cfg := Default()
	assert.Equal(t, 0.01, cfg.Rate)
	assert.Equal(t, 0.95, cfg.Confidence)
	assert.Equal(t, 0.5, cfg.FilterLength)
	assert.Equal(t, 0.5, cfg.FilterPercent)
	assert.Equal(t, 11, cfg.SeedSize)
	assert.Equal(t, 3, cfg.Organization)
	assert.Equal(t, 8, cfg.Parallelism)
	assert.Equal(t, "blast", cfg.Engine)
	assert.Equal(t, 0.5, cfg.OverlapTolerance)
	assert.False(t, cfg.CPUProfile)
}

func TestValidate(t *testing.T) {

	require.NoError(t, validConfig().Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"inclusion", func(c *Config) { c.Inclusion = nil }},
		{"exclusion", func(c *Config) { c.Exclusion = nil }},
		{"output", func(c *Config) { c.Output = "" }},
		{"rate", func(c *Config) { c.Rate = 1.5 }},
		{"confidence", func(c *Config) { c.Confidence = 0 }},
		{"gccontent", func(c *Config) { c.GCContent = 2 }},
		{"kmersize", func(c *Config) { c.KMerSize = 8 }},
		{"filterlength", func(c *Config) { c.FilterLength = -0.1 }},
		{"filterpercent", func(c *Config) { c.FilterPercent = 1.1 }},
		{"seedsize", func(c *Config) { c.SeedSize = 2 }},
		{"organization", func(c *Config) { c.Organization = 9 }},
		{"parallelism", func(c *Config) { c.Parallelism = 0 }},
		{"engine", func(c *Config) { c.Engine = "mafft" }},
		{"overlaptolerance", func(c *Config) { c.OverlapTolerance = 2 }},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := validConfig()
			c.mutate(cfg)
			err := cfg.Validate()
			var pe *estimate.ParameterError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, c.name, pe.Name)
		})
	}
}

func TestReadFile(t *testing.T) {

	path := filepath.Join(t.TempDir(), "run.toml")
	data := `
Inclusion = ["a.fasta", "b.fasta"]
Exclusion = ["x.fasta"]
Output = "results"
KMerSize = 15
Engine = "native"
Parallelism = 2
CPUProfile = true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg := Default()
	require.NoError(t, cfg.ReadFile(path))

	assert.Equal(t, []string{"a.fasta", "b.fasta"}, cfg.Inclusion)
	assert.Equal(t, []string{"x.fasta"}, cfg.Exclusion)
	assert.Equal(t, "results", cfg.Output)
	assert.Equal(t, 15, cfg.KMerSize)
	assert.Equal(t, "native", cfg.Engine)
	assert.Equal(t, 2, cfg.Parallelism)
	assert.True(t, cfg.CPUProfile)

	// Settings absent from the file keep their defaults.
	assert.Equal(t, 0.01, cfg.Rate)
	assert.Equal(t, 11, cfg.SeedSize)
	require.NoError(t, cfg.Validate())
}

func TestReferenceFiles(t *testing.T) {

	cfg := validConfig()
	assert.Equal(t, cfg.Inclusion, cfg.ReferenceFiles())

	cfg.References = []string{"ref.fasta"}
	assert.Equal(t, []string{"ref.fasta"}, cfg.ReferenceFiles())
}

func TestEstimationSettings(t *testing.T) {

	cfg := validConfig()
	cfg.KMerSize = 9
	cfg.MinInclusionHits = 3
	cfg.MaxGap = 7

	s := cfg.EstimationSettings()
	assert.Equal(t, 9, s.K)
	assert.Equal(t, 3, s.MinInclusionHits)
	assert.Equal(t, 7, s.MaxGap)
	assert.Equal(t, cfg.Rate, s.Rate)
	assert.Equal(t, cfg.Confidence, s.Confidence)
}
