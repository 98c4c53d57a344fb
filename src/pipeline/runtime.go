package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/vmihailenco/msgpack.v2"

	"github.com/will-rowe/derep/src/config"
	"github.com/will-rowe/derep/src/plan"
	"github.com/will-rowe/derep/src/sketch"
	"github.com/will-rowe/derep/src/version"
)

// files written to the run directory
const (
	InfoFile            = "derep.info"
	EdgesFile           = "edges.csv"
	RepresentativesFile = "representatives.txt"
	SketchCacheFile     = "sketches.store"
)

// Info stores the runtime information
type Info struct {
	Version         string
	RunID           string
	Input           string
	CacheSketches   bool
	Config          config.Config
	Plan            *plan.Plan
	Shards          []string
	Sizes           []int
	Names           []string
	Failed          int
	Empty           int
	Edges           int64
	Representatives int

	// the following fields are not written to disk
	store *sketch.Store
}

// NewInfo starts the runtime info for a new run
func NewInfo(cfg *config.Config, input string) *Info {
	return &Info{
		Version: version.GetVersion(),
		RunID:   uuid.NewString(),
		Input:   input,
		Config:  *cfg,
	}
}

// AttachStore is a method to attach the loaded sketches to the runtime
func (Info *Info) AttachStore(store *sketch.Store) {
	Info.store = store
	Info.Sizes = store.Sizes()
	Info.Names = store.Names()
	Info.Failed = store.Failed()
	Info.Empty = store.NumEmpty()
}

// Store returns the attached sketches, nil once the info has been reloaded from disk
func (Info *Info) Store() *sketch.Store {
	return Info.store
}

// Path returns the location of a run file in the output directory
func (Info *Info) Path(name string) string {
	return filepath.Join(Info.Config.OutDir, name)
}

// Dump is a method to dump the pipeline info to file
func (Info *Info) Dump(path string) error {
	data, err := msgpack.Marshal(Info)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Load is a method to load Info from file
func (Info *Info) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return Info.LoadFromBytes(data)
}

// LoadFromBytes is a method to load Info from bytes
func (Info *Info) LoadFromBytes(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("derep run info appears empty")
	}
	return msgpack.Unmarshal(data, Info)
}

// LoadInfo reads the runtime info of a finished run from its output directory
func LoadInfo(outDir string) (*Info, error) {
	info := &Info{}
	if err := info.Load(filepath.Join(outDir, InfoFile)); err != nil {
		return nil, fmt.Errorf("could not load the run info from %v: %w", outDir, err)
	}
	info.Config.OutDir = outDir
	return info, nil
}
