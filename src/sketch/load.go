package sketch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/klauspost/compress/gzip"
	"github.com/mholt/archiver"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// LoadOptions control how signature files are read
type LoadOptions struct {
	Processors int         // number of concurrent readers
	Ksize      int         // k-mer size of the signature to use, 0 takes the first
	Policy     InputPolicy // what to do with unreadable files
	Logger     zerolog.Logger
}

func (opts *LoadOptions) defaults() {
	if opts.Processors < 1 {
		opts.Processors = 1
	}
	if opts.Policy == "" {
		opts.Policy = SkipBadInput
	}
}

// ReadFileList reads a list of signature paths, one per line, ignoring blank lines
func ReadFileList(path string) ([]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open the file list: %w", err)
	}
	defer fh.Close()
	paths := []string{}
	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		paths = append(paths, line)
	}
	return paths, scanner.Err()
}

// LoadFileList loads every signature named in a file list, entity ids follow line order
func LoadFileList(ctx context.Context, listPath string, opts LoadOptions) (*Store, error) {
	paths, err := ReadFileList(listPath)
	if err != nil {
		return nil, err
	}
	return LoadFiles(ctx, paths, opts)
}

// LoadFiles loads the signature files concurrently, each reader owning a contiguous chunk of the ids
func LoadFiles(ctx context.Context, paths []string, opts LoadOptions) (*Store, error) {
	opts.defaults()
	sketches := make([]*Sketch, len(paths))
	var failed atomic.Int64

	chunkSize := (len(paths) + opts.Processors - 1) / opts.Processors
	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(paths); start += chunkSize {
		start := start
		end := min(start+chunkSize, len(paths))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				s, err := ReadSignatureFile(paths[i], opts.Ksize)
				if err != nil {
					if opts.Policy == AbortOnBadInput {
						return fmt.Errorf("%w: %v", ErrInput, err)
					}
					opts.Logger.Warn().Err(err).Int("id", i).Msg("could not read sketch, loading it as empty")
					failed.Add(1)
					s = &Sketch{Name: signatureName(paths[i])}
				}
				sketches[i] = s
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return newStore(sketches, int(failed.Load())), nil
}

// LoadArchive loads the signatures held in a zip or tar archive (e.g. a sourmash zip database), ids follow archive order
func LoadArchive(path string, opts LoadOptions) (*Store, error) {
	opts.defaults()
	sketches := []*Sketch{}
	failed := 0
	err := archiver.Walk(path, func(f archiver.File) error {
		if f.IsDir() || !isSignature(f.Name()) {
			return nil
		}
		var r io.Reader = f
		if strings.HasSuffix(f.Name(), ".gz") {
			gz, err := gzip.NewReader(f)
			if err != nil {
				return handleArchiveError(&opts, f.Name(), err, &sketches, &failed)
			}
			defer gz.Close()
			r = gz
		}
		s, err := ReadSignature(r, opts.Ksize)
		if err != nil {
			return handleArchiveError(&opts, f.Name(), err, &sketches, &failed)
		}
		if s.Name == "" {
			s.Name = signatureName(f.Name())
		}
		sketches = append(sketches, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newStore(sketches, failed), nil
}

// handleArchiveError applies the input policy to an unreadable archive member
func handleArchiveError(opts *LoadOptions, name string, err error, sketches *[]*Sketch, failed *int) error {
	if opts.Policy == AbortOnBadInput {
		return fmt.Errorf("%w: %v: %v", ErrInput, name, err)
	}
	opts.Logger.Warn().Err(err).Str("member", name).Msg("could not read sketch, loading it as empty")
	*failed++
	*sketches = append(*sketches, &Sketch{Name: signatureName(name)})
	return nil
}
