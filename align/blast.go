// Copyright 2025, the Neptune contributors.

package align

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/phac-nml/neptune/seq"
)

const blastOutputFormat = "6 qseqid qlen sseqid length pident score"

// BlastEngine runs makeblastdb and blastn as subprocesses. Databases and
// query files are written under Dir.
type BlastEngine struct {
	Dir      string
	SeedSize int
	Log      *zap.SugaredLogger
}

type blastDatabase struct {
	name string
	path string
}

func (d blastDatabase) Name() string { return d.name }

// BuildDatabase writes the targets to a FASTA file and indexes it with
// makeblastdb.
func (e *BlastEngine) BuildDatabase(ctx context.Context, name string, targets []seq.Target) (Database, error) {

	fastaPath := filepath.Join(e.Dir, name+".fasta")
	f, err := os.Create(fastaPath)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriter(f)
	for _, t := range targets {
		fmt.Fprintf(w, ">%s\n%s\n", t.ID, t.Seq)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(e.Dir, name+".db")
	cmd := exec.CommandContext(ctx, "makeblastdb",
		"-in", fastaPath,
		"-dbtype", "nucl",
		"-out", dbPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	e.Log.Infow("building alignment database", "name", name, "targets", len(targets))
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("makeblastdb %s: %v: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return blastDatabase{name: name, path: dbPath}, nil
}

// Align runs blastn with tabular output and parses the hits.
func (e *BlastEngine) Align(ctx context.Context, db Database, queries []Query) ([]Hit, error) {

	bdb, ok := db.(blastDatabase)
	if !ok {
		return nil, fmt.Errorf("database %s was not built by the blast engine", db.Name())
	}

	queryPath := filepath.Join(e.Dir, bdb.name+".queries.fasta")
	f, err := os.Create(queryPath)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriter(f)
	for _, q := range queries {
		fmt.Fprintf(w, ">%s\n%s\n", q.ID, q.Seq)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "blastn",
		"-query", queryPath,
		"-db", bdb.path,
		"-outfmt", blastOutputFormat,
		"-word_size", strconv.Itoa(e.SeedSize),
		"-dust", "no")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("blastn against %s: %v: %s", bdb.name, err, strings.TrimSpace(stderr.String()))
	}
	return parseBlastHits(&stdout)
}

func parseBlastHits(r *bytes.Buffer) ([]Hit, error) {

	var hits []Hit
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 6 {
			return nil, fmt.Errorf("malformed blastn output line %q", line)
		}
		queryLength, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("bad query length in %q: %w", line, err)
		}
		alignLength, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("bad alignment length in %q: %w", line, err)
		}
		identity, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, fmt.Errorf("bad identity in %q: %w", line, err)
		}
		score, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return nil, fmt.Errorf("bad score in %q: %w", line, err)
		}
		hits = append(hits, Hit{
			QueryID:         fields[0],
			QueryLength:     queryLength,
			SubjectID:       fields[2],
			AlignLength:     alignLength,
			PercentIdentity: identity,
			Score:           score,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return hits, nil
}
