package sketch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/will-rowe/derep/src/misc"
)

// signatureRecord is the subset of a sourmash signature file that derep needs
type signatureRecord struct {
	Name       string         `json:"name"`
	Filename   string         `json:"filename"`
	Signatures []minHashEntry `json:"signatures"`
}

type minHashEntry struct {
	Ksize   int      `json:"ksize"`
	MD5     string   `json:"md5sum"`
	Mins    []uint64 `json:"mins"`
	MaxHash uint64   `json:"max_hash"`
}

// ReadSignature decodes a sourmash JSON signature, picking the MinHash with the requested k-mer size (0 picks the first)
func ReadSignature(r io.Reader, ksize int) (*Sketch, error) {
	var records []signatureRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("could not decode signature: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("signature file holds no records")
	}
	record := records[0]
	for _, mh := range record.Signatures {
		if ksize != 0 && mh.Ksize != ksize {
			continue
		}
		name := record.Name
		if name == "" {
			name = record.Filename
		}
		if name == "" {
			name = mh.MD5
		}
		return &Sketch{Name: name, Hashes: mh.Mins}, nil
	}
	if ksize != 0 {
		return nil, fmt.Errorf("no signature with k-mer size %d", ksize)
	}
	return nil, fmt.Errorf("signature record holds no MinHash sketches")
}

// ReadSignatureFile reads a (optionally gzipped) sourmash signature from disk
func ReadSignatureFile(path string, ksize int) (*Sketch, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	var r io.Reader = fh
	if misc.IsGzipped(path) {
		gz, err := gzip.NewReader(fh)
		if err != nil {
			return nil, fmt.Errorf("could not open gzipped signature %v: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}
	s, err := ReadSignature(r, ksize)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", path, err)
	}
	if s.Name == "" {
		s.Name = signatureName(path)
	}
	return s, nil
}

// signatureName strips the directory and signature extensions from a path
func signatureName(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".gz")
	name = strings.TrimSuffix(name, ".sig")
	return strings.TrimSuffix(name, ".json")
}

// isSignature reports whether a file name looks like a signature file
func isSignature(name string) bool {
	name = strings.TrimSuffix(name, ".gz")
	return strings.HasSuffix(name, ".sig") || strings.HasSuffix(name, ".json")
}
