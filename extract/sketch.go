// Copyright 2025, the Neptune contributors.

package extract

import (
	"math/rand"

	"github.com/chmduquesne/rollinghash"
	"github.com/chmduquesne/rollinghash/buzhash32"
	"github.com/golang-collections/go-datastructures/bitarray"

	"github.com/phac-nml/neptune/kmer"
)

const (
	// Number of independent rolling hashes backing the sketch.
	sketchHashes = 4

	// Sketch bits allocated per qualifying k-mer. At 4 hashes and 16 bits
	// per entry the false-positive rate stays low enough that a sketch hit
	// is almost always a real table hit.
	sketchBitsPerEntry = 16

	sketchMinBits = 1 << 10
)

// sketch is a bloom-style filter over the k-mers that can seed or extend a
// candidate (inclusionCount >= minInclusionHits). It is queried with
// rolling hashes while scanning a reference, so positions that cannot
// possibly match skip the table lookup entirely. A sketch miss is
// authoritative; a sketch hit still requires the table.
type sketch struct {
	tables [sketchHashes][256]uint32
	bits   bitarray.BitArray
	size   uint64
}

// genTables generates base hash functions for the rolling hashes. The seed
// is fixed so that identical inputs always produce identical scans.
func genTables() [sketchHashes][256]uint32 {
	rng := rand.New(rand.NewSource(1))
	var tables [sketchHashes][256]uint32
	for j := 0; j < sketchHashes; j++ {
		seen := make(map[uint32]bool)
		for i := 0; i < 256; i++ {
			for {
				x := uint32(rng.Int63())
				if !seen[x] {
					tables[j][i] = x
					seen[x] = true
					break
				}
			}
		}
	}
	return tables
}

// newSketch builds the sketch over every table k-mer with an inclusion
// count of at least minHits.
func newSketch(table *kmer.Table, minHits int) (*sketch, error) {

	var qualifying uint64
	for i := range table.Bins {
		b := &table.Bins[i]
		for j := range b.KMers {
			if b.In[j] >= minHits {
				qualifying++
			}
		}
	}

	size := qualifying * sketchBitsPerEntry
	if size < sketchMinBits {
		size = sketchMinBits
	}

	s := &sketch{
		tables: genTables(),
		bits:   bitarray.NewBitArray(size),
		size:   size,
	}

	hashes := s.newHashes()
	for i := range table.Bins {
		b := &table.Bins[i]
		for j := range b.KMers {
			if b.In[j] < minHits {
				continue
			}
			for _, ha := range hashes {
				ha.Reset()
				if _, err := ha.Write([]byte(b.KMers[j])); err != nil {
					return nil, err
				}
				if err := s.bits.SetBit(uint64(ha.Sum32()) % s.size); err != nil {
					return nil, err
				}
			}
		}
	}
	return s, nil
}

// newHashes returns fresh rolling hashes bound to the sketch's tables. Each
// scanning goroutine takes its own set.
func (s *sketch) newHashes() []rollinghash.Hash32 {
	hashes := make([]rollinghash.Hash32, sketchHashes)
	for j := range hashes {
		hashes[j] = buzhash32.NewFromUint32Array(s.tables[j])
	}
	return hashes
}

// test reports whether all hash positions are set. sums must hold the
// current hash states reduced modulo the sketch size.
func (s *sketch) test(sums []uint64) (bool, error) {
	for _, x := range sums {
		f, err := s.bits.GetBit(x)
		if err != nil {
			return false, err
		}
		if !f {
			return false, nil
		}
	}
	return true, nil
}
