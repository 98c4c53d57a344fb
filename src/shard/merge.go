package shard

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/will-rowe/derep/src/misc"
	"github.com/will-rowe/derep/src/similarity"
)

// maxRecord is the longest record the scanner accepts
const maxRecord = 1 << 20

// open returns a reader for a shard, decompressing .gz shards
func open(path string) (io.ReadCloser, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !misc.IsGzipped(path) {
		return fh, nil
	}
	gz, err := gzip.NewReader(fh)
	if err != nil {
		fh.Close()
		return nil, fmt.Errorf("could not open compressed shard %v: %w", path, err)
	}
	return &gzipFile{Reader: gz, fh: fh}, nil
}

type gzipFile struct {
	*gzip.Reader
	fh *os.File
}

func (g *gzipFile) Close() error {
	err := g.Reader.Close()
	if cerr := g.fh.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadEdges streams the edges of a delimited edge stream to fn
func ReadEdges(r io.Reader, fn func(similarity.Edge) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxRecord)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		e, err := ParseRecord(line)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// ReadEdgesFile streams the edges held in a (optionally gzipped) edge file
func ReadEdgesFile(path string, fn func(similarity.Edge) error) error {
	r, err := open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := ReadEdges(r, fn); err != nil {
		return fmt.Errorf("%v: %w", path, err)
	}
	return nil
}

// Each streams every edge of the shards, in shard order, to fn
func Each(ctx context.Context, shards []string, fn func(similarity.Edge) error) error {
	for _, path := range shards {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ReadEdgesFile(path, fn); err != nil {
			return err
		}
	}
	return nil
}

// Merge concatenates the shards into a single edge stream and returns the number of edges
func Merge(ctx context.Context, shards []string, w io.Writer) (int64, error) {
	buf := bufio.NewWriter(w)
	var count int64
	err := Each(ctx, shards, func(e similarity.Edge) error {
		count++
		_, err := buf.WriteString(FormatRecord(e) + "\n")
		return err
	})
	if err != nil {
		return count, err
	}
	return count, buf.Flush()
}

// MergeFile is Merge writing to a new file
func MergeFile(ctx context.Context, shards []string, path string) (int64, error) {
	fh, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	count, err := Merge(ctx, shards, fh)
	if cerr := fh.Close(); err == nil {
		err = cerr
	}
	return count, err
}
