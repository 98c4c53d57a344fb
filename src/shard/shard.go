// Package shard writes and merges the per-(pass, worker) edge files of a run.
//
// Each shard holds plain delimited records, one edge per line:
//
//	entity_i,entity_j,jaccard,containment_i_in_j,containment_j_in_i
//
// Passes own disjoint rows, so every (i, j) pair is in exactly one shard and merging is
// concatenation.
package shard

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/biogo/hts/bgzf"

	"github.com/will-rowe/derep/src/similarity"
)

// ErrShardWrite is returned when an edge can't be written to a shard; the run can't continue without it
var ErrShardWrite = errors.New("shard write error")

// shardPattern matches the shard files of a run
const shardPattern = "pass-*-worker-*.csv*"

// Name returns the file name of a shard
func Name(pass, worker int, compressed bool) string {
	name := fmt.Sprintf("pass-%d-worker-%d.csv", pass, worker)
	if compressed {
		name += ".gz"
	}
	return name
}

// parseName extracts the pass and worker from a shard file name
func parseName(path string) (int, int, error) {
	var pass, worker int
	base := strings.TrimSuffix(filepath.Base(path), ".gz")
	if _, err := fmt.Sscanf(base, "pass-%d-worker-%d.csv", &pass, &worker); err != nil {
		return 0, 0, fmt.Errorf("not a shard file name: %v", path)
	}
	return pass, worker, nil
}

// FormatRecord renders an edge as a delimited record (without the newline)
func FormatRecord(e similarity.Edge) string {
	return strings.Join([]string{
		strconv.Itoa(e.I),
		strconv.Itoa(e.J),
		strconv.FormatFloat(e.Jaccard, 'g', -1, 64),
		strconv.FormatFloat(e.ContainmentIJ, 'g', -1, 64),
		strconv.FormatFloat(e.ContainmentJI, 'g', -1, 64),
	}, ",")
}

// ParseRecord reads an edge from a delimited record
func ParseRecord(line string) (similarity.Edge, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 5 {
		return similarity.Edge{}, fmt.Errorf("edge record has %d fields, expected 5: %q", len(fields), line)
	}
	e := similarity.Edge{}
	var err error
	if e.I, err = strconv.Atoi(fields[0]); err != nil {
		return e, fmt.Errorf("bad entity id in %q: %w", line, err)
	}
	if e.J, err = strconv.Atoi(fields[1]); err != nil {
		return e, fmt.Errorf("bad entity id in %q: %w", line, err)
	}
	values := []*float64{&e.Jaccard, &e.ContainmentIJ, &e.ContainmentJI}
	for i, v := range values {
		if *v, err = strconv.ParseFloat(fields[i+2], 64); err != nil {
			return e, fmt.Errorf("bad similarity value in %q: %w", line, err)
		}
	}
	return e, nil
}

// Writer writes the edges of one (pass, worker) shard; it is used by a single worker
type Writer struct {
	path  string
	fh    *os.File
	bgzf  *bgzf.Writer
	buf   *bufio.Writer
	count int64
}

// Create opens a shard for writing in dir
func Create(dir string, pass, worker int, compressed bool) (*Writer, error) {
	path := filepath.Join(dir, Name(pass, worker, compressed))
	fh, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShardWrite, err)
	}
	w := &Writer{path: path, fh: fh}
	if compressed {
		w.bgzf = bgzf.NewWriter(fh, 1)
		w.buf = bufio.NewWriter(w.bgzf)
	} else {
		w.buf = bufio.NewWriter(fh)
	}
	return w, nil
}

// Write is a method to append an edge to the shard, it satisfies similarity.Sink
func (w *Writer) Write(e similarity.Edge) error {
	if _, err := w.buf.WriteString(FormatRecord(e) + "\n"); err != nil {
		return fmt.Errorf("%w: %v: %v", ErrShardWrite, w.path, err)
	}
	w.count++
	return nil
}

// Close flushes and closes the shard
func (w *Writer) Close() error {
	err := w.buf.Flush()
	if w.bgzf != nil {
		if cerr := w.bgzf.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := w.fh.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: %v: %v", ErrShardWrite, w.path, err)
	}
	return nil
}

// Path returns the shard's file path
func (w *Writer) Path() string {
	return w.path
}

// Count returns the number of edges written
func (w *Writer) Count() int64 {
	return w.count
}

// List returns the shard files in dir, ordered by pass then worker
func List(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, shardPattern))
	if err != nil {
		return nil, err
	}
	type shardKey struct {
		path         string
		pass, worker int
	}
	keys := make([]shardKey, 0, len(paths))
	for _, path := range paths {
		pass, worker, err := parseName(path)
		if err != nil {
			continue
		}
		keys = append(keys, shardKey{path, pass, worker})
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].pass != keys[j].pass {
			return keys[i].pass < keys[j].pass
		}
		return keys[i].worker < keys[j].worker
	})
	shards := make([]string, len(keys))
	for i, k := range keys {
		shards[i] = k.path
	}
	return shards, nil
}
