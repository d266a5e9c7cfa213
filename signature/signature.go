// Copyright 2025, the Neptune contributors.

// Package signature defines the scored signature record and its file
// format. Reading and writing are symmetric:
//
//	>ID score=S in=I ex=E len=L ref=R pos=P
//	<sequence, one unwrapped line>
//
// Scores are written to four decimal places with in/ex as magnitudes; the
// reader restores the negative sign of the exclusion component.
package signature

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Signature is a scored signature region. Invariants: InScore in [0, 1],
// ExScore in [-1, 0], Score = InScore + ExScore, Length = len(Seq).
type Signature struct {
	ID        string
	Score     float64
	InScore   float64
	ExScore   float64
	Reference string
	Position  int
	Seq       string
}

// Length is the signature length in bases.
func (s Signature) Length() int { return len(s.Seq) }

// Write emits one signature in the record format.
func Write(w io.Writer, s Signature) error {
	_, err := fmt.Fprintf(w, ">%s score=%.4f in=%.4f ex=%.4f len=%d ref=%s pos=%d\n%s\n",
		s.ID, s.Score, math.Abs(s.InScore), math.Abs(s.ExScore),
		s.Length(), s.Reference, s.Position, s.Seq)
	return err
}

// WriteAll emits signatures in order.
func WriteAll(w io.Writer, sigs []Signature) error {
	for _, s := range sigs {
		if err := Write(w, s); err != nil {
			return err
		}
	}
	return nil
}

// Read parses signatures from r in file order.
func Read(r io.Reader) ([]Signature, error) {

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 64*1024*1024)

	var sigs []Signature
	var line int
	for scanner.Scan() {
		line++
		header := strings.TrimSpace(scanner.Text())
		if header == "" {
			continue
		}
		if !strings.HasPrefix(header, ">") {
			return nil, fmt.Errorf("line %d: expected signature header, got %q", line, header)
		}
		if !scanner.Scan() {
			return nil, fmt.Errorf("line %d: signature header without sequence", line)
		}
		line++
		sequence := strings.TrimSpace(scanner.Text())

		s, err := parseHeader(header[1:])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line-1, err)
		}
		s.Seq = sequence
		sigs = append(sigs, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return sigs, nil
}

func parseHeader(header string) (Signature, error) {

	var s Signature
	fields := strings.Fields(header)
	if len(fields) != 7 {
		return s, fmt.Errorf("malformed signature header %q", header)
	}
	s.ID = fields[0]

	want := []string{"score", "in", "ex", "len", "ref", "pos"}
	values := make(map[string]string, len(want))
	for i, f := range fields[1:] {
		key, value, found := strings.Cut(f, "=")
		if !found || key != want[i] {
			return s, fmt.Errorf("malformed signature field %q", f)
		}
		values[key] = value
	}

	var err error
	if s.Score, err = strconv.ParseFloat(values["score"], 64); err != nil {
		return s, fmt.Errorf("bad score: %w", err)
	}
	if s.InScore, err = strconv.ParseFloat(values["in"], 64); err != nil {
		return s, fmt.Errorf("bad inclusion score: %w", err)
	}
	if s.ExScore, err = strconv.ParseFloat(values["ex"], 64); err != nil {
		return s, fmt.Errorf("bad exclusion score: %w", err)
	}
	// The file stores magnitudes.
	s.ExScore = -math.Abs(s.ExScore)
	if s.Position, err = strconv.Atoi(values["pos"]); err != nil {
		return s, fmt.Errorf("bad position: %w", err)
	}
	s.Reference = values["ref"]
	return s, nil
}

// SortDescending stably orders signatures by descending score, with ties
// broken by ascending position.
func SortDescending(sigs []Signature) {
	sort.SliceStable(sigs, func(i, j int) bool {
		if sigs[i].Score != sigs[j].Score {
			return sigs[i].Score > sigs[j].Score
		}
		return sigs[i].Position < sigs[j].Position
	})
}

// Renumber reassigns sequential ids starting at 0, in slice order.
func Renumber(sigs []Signature) {
	for i := range sigs {
		sigs[i].ID = strconv.Itoa(i)
	}
}
