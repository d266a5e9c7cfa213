// Copyright 2025, the Neptune contributors.

package filter

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/phac-nml/neptune/align"
	"github.com/phac-nml/neptune/extract"
	"github.com/phac-nml/neptune/seq"
)

// The shared core uses only A/C and the exclusion genome only G/T, so
// alignment hits between them are impossible and score arithmetic stays
// exact.
const (
	core          = "ACCACAACCACCAACACACCAACCACACAACACCACCAAC"
	exclusionSeqs = "GGTGTTGGTTGTTGGGTGTGTTGTGGTTGGTGTTTGGTGGTTGTGTGGTTGTTGGGTTGTGGTGTTGGTTTGTGGGTTG"
)

func newScorer(t *testing.T) *Scorer {
	t.Helper()

	engine := &align.NativeEngine{SeedSize: 7}

	inclusion := []seq.Target{
		{ID: "i1", Seq: []byte(core), Group: seq.Inclusion},
		{ID: "i2", Seq: []byte(core), Group: seq.Inclusion},
	}
	exclusion := []seq.Target{
		{ID: "x1", Seq: []byte(exclusionSeqs), Group: seq.Exclusion},
	}

	inclusionDB, err := engine.BuildDatabase(context.Background(), "inclusion", inclusion)
	require.NoError(t, err)
	exclusionDB, err := engine.BuildDatabase(context.Background(), "exclusion", exclusion)
	require.NoError(t, err)

	return &Scorer{
		Engine:    engine,
		Inclusion: inclusionDB,
		Exclusion: exclusionDB,
		Settings: Settings{
			FilterLength:  0.5,
			FilterPercent: 0.5,
			InclusionSize: len(inclusion),
			ExclusionSize: len(exclusion),
		},
		Log: zaptest.NewLogger(t).Sugar(),
	}
}

func candidate(pos int, sequence string) extract.Candidate {
	return extract.Candidate{
		Reference: "ref",
		Start:     pos,
		End:       pos + len(sequence),
		Seq:       sequence,
	}
}

func TestScorePerfectSignature(t *testing.T) {

	s := newScorer(t)
	sigs, err := s.Score(context.Background(), []extract.Candidate{candidate(100, core)})
	require.NoError(t, err)
	require.Len(t, sigs, 1)

	sig := sigs[0]
	assert.Equal(t, "0", sig.ID)
	assert.InDelta(t, 1.0, sig.InScore, 1e-9)
	assert.InDelta(t, 0.0, sig.ExScore, 1e-9)
	assert.InDelta(t, 1.0, sig.Score, 1e-9)
	assert.Equal(t, "ref", sig.Reference)
	assert.Equal(t, 100, sig.Position)
	assert.Equal(t, core, sig.Seq)
}

func TestScoreExclusionFilterRemovesCovered(t *testing.T) {

	// The second candidate is a verbatim slice of the exclusion genome:
	// full coverage at full identity, so it is filtered out.
	s := newScorer(t)
	sigs, err := s.Score(context.Background(), []extract.Candidate{
		candidate(100, core),
		candidate(300, exclusionSeqs[:40]),
	})
	require.NoError(t, err)

	require.Len(t, sigs, 1)
	assert.Equal(t, core, sigs[0].Seq)
}

func TestScorePartialExclusionCoverageKept(t *testing.T) {

	// Exclusion content covers a third of the candidate, below the
	// removal threshold, and shows up as a negative exclusion score.
	mixed := core + exclusionSeqs[:20]

	s := newScorer(t)
	sigs, err := s.Score(context.Background(), []extract.Candidate{candidate(0, mixed)})
	require.NoError(t, err)
	require.Len(t, sigs, 1)

	sig := sigs[0]
	assert.InDelta(t, 2.0/3, sig.InScore, 1e-9)
	assert.InDelta(t, -1.0/3, sig.ExScore, 1e-9)
	assert.InDelta(t, sig.InScore+sig.ExScore, sig.Score, 1e-12)
}

func TestScoreDropsUnalignable(t *testing.T) {

	// No inclusion target shares any seed with the candidate; it is
	// dropped with a warning rather than failing the stage.
	s := newScorer(t)
	sigs, err := s.Score(context.Background(), []extract.Candidate{
		candidate(0, strings.Repeat("AG", 20)),
		candidate(50, core),
	})
	require.NoError(t, err)

	require.Len(t, sigs, 1)
	assert.Equal(t, core, sigs[0].Seq)
}

func TestScoreOrderingAndBounds(t *testing.T) {

	mixed := core + exclusionSeqs[:20]

	s := newScorer(t)
	sigs, err := s.Score(context.Background(), []extract.Candidate{
		candidate(500, mixed),
		candidate(100, core),
	})
	require.NoError(t, err)
	require.Len(t, sigs, 2)

	// Descending score, renumbered from zero.
	assert.Equal(t, "0", sigs[0].ID)
	assert.Equal(t, "1", sigs[1].ID)
	assert.Greater(t, sigs[0].Score, sigs[1].Score)
	assert.Equal(t, 100, sigs[0].Position)

	for _, sig := range sigs {
		assert.GreaterOrEqual(t, sig.InScore, 0.0)
		assert.LessOrEqual(t, sig.InScore, 1.0)
		assert.LessOrEqual(t, sig.ExScore, 0.0)
		assert.GreaterOrEqual(t, sig.ExScore, -1.0)
		assert.GreaterOrEqual(t, sig.Score, -1.0)
		assert.LessOrEqual(t, sig.Score, 1.0)
	}
}

func TestScoreEmpty(t *testing.T) {
	s := newScorer(t)
	sigs, err := s.Score(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, sigs)
}
