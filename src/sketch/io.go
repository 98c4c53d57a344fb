package sketch

import (
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/vmihailenco/msgpack.v2"
)

// storeRecord is the serialised form of a Store
type storeRecord struct {
	Sketches []*Sketch `msgpack:"sketches"`
	Failed   int       `msgpack:"failed"`
}

// Dump is a method to write the store to disk (msgpack, zstd compressed) so that it can be reloaded without parsing the signatures again
func (store *Store) Dump(path string) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fh.Close()
	enc, err := zstd.NewWriter(fh)
	if err != nil {
		return err
	}
	if err := msgpack.NewEncoder(enc).Encode(&storeRecord{Sketches: store.sketches, Failed: store.failed}); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return fh.Close()
}

// Load is a function to read a store written by Dump
func Load(path string) (*Store, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	dec, err := zstd.NewReader(fh)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	record := &storeRecord{}
	if err := msgpack.NewDecoder(dec).Decode(record); err != nil {
		return nil, fmt.Errorf("could not decode sketch store %v: %w", path, err)
	}
	if len(record.Sketches) == 0 {
		return nil, fmt.Errorf("sketch store appears empty: %v", path)
	}
	return newStore(record.Sketches, record.Failed), nil
}
