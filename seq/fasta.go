// Copyright 2025, the Neptune contributors.

package seq

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

// Genome sequences can put a whole chromosome on one line.
const maxLineSize = 64 * 1024 * 1024

// ReadFASTA parses all records from r. Sequence lines are uppercased and
// concatenated; record IDs are the first whitespace-delimited token of the
// header. Ambiguous symbols are retained.
func ReadFASTA(r io.Reader, path string, group Group) ([]Target, error) {

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), maxLineSize)

	var targets []Target
	var cur *Target

	var line int
	for ; scanner.Scan(); line++ {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		if raw[0] == '>' {
			id := strings.Fields(string(raw[1:]))
			if len(id) == 0 {
				return nil, &InputError{Source: path, Reason: fmt.Sprintf("unnamed record on line %d", line+1)}
			}
			targets = append(targets, Target{ID: id[0], Group: group, Path: path})
			cur = &targets[len(targets)-1]
			continue
		}
		if cur == nil {
			return nil, &InputError{Source: path, Reason: "sequence data before first header"}
		}
		cur.Seq = append(cur.Seq, bytes.ToUpper(raw)...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(targets) == 0 {
		return nil, &InputError{Source: path, Reason: "no FASTA records found"}
	}
	return targets, nil
}

// LoadFile reads one FASTA file into targets of the given group.
func LoadFile(path string, group Group) ([]Target, error) {
	fid, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fid.Close()
	return ReadFASTA(fid, path, group)
}

// LoadGroup reads several FASTA files into one target slice. An empty file
// list is an InputError: the pipeline cannot run without both groups.
func LoadGroup(paths []string, group Group) ([]Target, error) {
	if len(paths) == 0 {
		return nil, &InputError{Reason: fmt.Sprintf("no %s targets provided", group)}
	}
	var all []Target
	for _, p := range paths {
		targets, err := LoadFile(p, group)
		if err != nil {
			return nil, err
		}
		all = append(all, targets...)
	}
	return all, nil
}
