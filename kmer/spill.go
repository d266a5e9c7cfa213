// Copyright 2025, the Neptune contributors.

package kmer

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
)

// Spill files hold the sorted distinct k-mers of one target and one bin,
// one k-mer per line, snappy-compressed. They exist only inside the run
// workspace and are consumed by the per-bin aggregation merge.

// SpillPath names the spill file for a target and bin inside dir. The
// target index is used instead of the record ID so that arbitrary FASTA
// headers cannot escape the workspace.
func SpillPath(dir string, group string, targetIndex, bin int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%d.%d.kmers.sz", group, targetIndex, bin))
}

// WriteSpill writes a sorted k-mer list to path.
func WriteSpill(path string, kmers []string) error {
	fid, err := os.Create(path)
	if err != nil {
		return err
	}
	wtr := snappy.NewBufferedWriter(fid)
	for _, km := range kmers {
		if _, err := wtr.Write(append([]byte(km), '\n')); err != nil {
			fid.Close()
			return err
		}
	}
	if err := wtr.Close(); err != nil {
		fid.Close()
		return err
	}
	return fid.Close()
}

// SpillReader streams the k-mers of one spill file in order.
type SpillReader struct {
	fid     *os.File
	scanner *bufio.Scanner

	// Head is the current k-mer, empty when exhausted.
	Head string
}

// OpenSpill opens a spill file and primes Head with its first k-mer.
func OpenSpill(path string) (*SpillReader, error) {
	fid, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := &SpillReader{
		fid:     fid,
		scanner: bufio.NewScanner(snappy.NewReader(fid)),
	}
	r.Advance()
	return r, nil
}

// Advance moves Head to the next k-mer, or to "" at end of stream.
func (r *SpillReader) Advance() {
	if r.scanner.Scan() {
		r.Head = r.scanner.Text()
	} else {
		r.Head = ""
	}
}

// Err reports any underlying read error.
func (r *SpillReader) Err() error { return r.scanner.Err() }

// Close releases the underlying file.
func (r *SpillReader) Close() error { return r.fid.Close() }
