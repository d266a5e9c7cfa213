// Copyright 2025, the Neptune contributors.

package seq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGCContent(t *testing.T) {

	gc, acgt := GCContent([]byte("GGCC"))
	assert.Equal(t, 1.0, gc)
	assert.Equal(t, 4, acgt)

	gc, acgt = GCContent([]byte("ATGC"))
	assert.Equal(t, 0.5, gc)
	assert.Equal(t, 4, acgt)

	// Ambiguous symbols are excluded from the denominator.
	gc, acgt = GCContent([]byte("GNNA"))
	assert.Equal(t, 0.5, gc)
	assert.Equal(t, 2, acgt)

	gc, acgt = GCContent([]byte("NNNN"))
	assert.Equal(t, 0.0, gc)
	assert.Equal(t, 0, acgt)
}

func TestACGTHelpers(t *testing.T) {

	assert.True(t, AllACGT([]byte("ACGT")))
	assert.False(t, AllACGT([]byte("ACNT")))
	assert.True(t, HasACGT([]byte("NNAN")))
	assert.False(t, HasACGT([]byte("NN--")))
	assert.True(t, IsACGT('G'))
	assert.False(t, IsACGT('g'))
	assert.False(t, IsACGT('N'))
}
