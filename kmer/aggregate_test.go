// Copyright 2025, the Neptune contributors.

package kmer

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phac-nml/neptune/seq"
)

func TestSpillRoundTrip(t *testing.T) {

	dir := t.TempDir()
	path := SpillPath(dir, seq.Inclusion.String(), 0, 2)
	assert.Equal(t, filepath.Join(dir, "inclusion_0.2.kmers.sz"), path)

	kmers := []string{"AAA", "ACG", "TTT"}
	require.NoError(t, WriteSpill(path, kmers))

	r, err := OpenSpill(path)
	require.NoError(t, err)
	defer r.Close()

	var got []string
	for r.Head != "" {
		got = append(got, r.Head)
		r.Advance()
	}
	require.NoError(t, r.Err())
	assert.Equal(t, kmers, got)
}

func TestSpillEmpty(t *testing.T) {

	path := SpillPath(t.TempDir(), seq.Exclusion.String(), 1, 0)
	require.NoError(t, WriteSpill(path, nil))

	r, err := OpenSpill(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "", r.Head)
}

// writeSpills counts one bin of each target and spills it, returning the
// spill paths.
func writeSpills(t *testing.T, dir string, group seq.Group, sequences []string, k, org, bin int) []string {
	t.Helper()
	var paths []string
	for i, s := range sequences {
		target := seq.Target{ID: "t", Seq: []byte(s), Group: group, Path: "test.fasta"}
		kmers, err := CountTarget(target, k, org, bin)
		require.NoError(t, err)
		path := SpillPath(dir, group.String(), i, bin)
		require.NoError(t, WriteSpill(path, kmers))
		paths = append(paths, path)
	}
	return paths
}

func TestAggregateBin(t *testing.T) {

	dir := t.TempDir()

	// ACG appears in both inclusion targets and one exclusion target;
	// CGT only in the first inclusion target.
	in := writeSpills(t, dir, seq.Inclusion, []string{"ACGT", "TACG"}, 3, 0, 0)
	ex := writeSpills(t, dir, seq.Exclusion, []string{"AACG"}, 3, 0, 0)

	kmers, inCounts, exCounts, err := AggregateBin(in, ex)
	require.NoError(t, err)

	require.Equal(t, []string{"AAC", "ACG", "CGT", "TAC"}, kmers)
	assert.Equal(t, []int{0, 2, 1, 1}, inCounts)
	assert.Equal(t, []int{1, 1, 0, 0}, exCounts)
}

func TestAggregateBinCountsDistinctTargets(t *testing.T) {

	dir := t.TempDir()

	// The k-mer repeats within one target but counts once for it.
	in := writeSpills(t, dir, seq.Inclusion, []string{"AAAAAA"}, 3, 0, 0)
	ex := writeSpills(t, dir, seq.Exclusion, []string{"TTTT"}, 3, 0, 0)

	kmers, inCounts, _, err := AggregateBin(in, ex)
	require.NoError(t, err)
	require.Equal(t, []string{"AAA", "TTT"}, kmers)
	assert.Equal(t, []int{1, 0}, inCounts)
}

func TestTableLookup(t *testing.T) {

	table := NewTable(3, 1)
	require.Len(t, table.Bins, 4)

	table.SetBin(0, []string{"AAA", "ACG"}, []int{2, 1}, []int{0, 1})
	table.SetBin(1, []string{"CCC"}, []int{1}, []int{1})
	table.SetBin(2, nil, nil, nil)
	table.SetBin(3, []string{"TTT"}, []int{3}, []int{0})

	in, ex, ok := table.Lookup("ACG")
	require.True(t, ok)
	assert.Equal(t, 1, in)
	assert.Equal(t, 1, ex)

	_, _, ok = table.Lookup("AAC")
	assert.False(t, ok)

	_, _, ok = table.Lookup("GGG")
	assert.False(t, ok)

	_, _, ok = table.Lookup("NAA")
	assert.False(t, ok)

	assert.Equal(t, 4, table.Len())
}

func TestTableDump(t *testing.T) {

	table := NewTable(3, 1)
	table.SetBin(0, []string{"AAA"}, []int{2}, []int{0})
	table.SetBin(1, []string{"CCC"}, []int{1}, []int{1})
	table.SetBin(2, nil, nil, nil)
	table.SetBin(3, []string{"TAA", "TTT"}, []int{1, 3}, []int{1, 0})

	var buf strings.Builder
	require.NoError(t, table.Dump(&buf))
	assert.Equal(t, "AAA 2 0\nCCC 1 1\nTAA 1 1\nTTT 3 0\n", buf.String())
}
