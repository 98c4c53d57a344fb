package pipeline

/*
 this part of the pipeline loads the sketches, runs the comparison passes, merges the shards and selects the representatives
*/

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/will-rowe/derep/src/intersect"
	"github.com/will-rowe/derep/src/misc"
	"github.com/will-rowe/derep/src/plan"
	"github.com/will-rowe/derep/src/selector"
	"github.com/will-rowe/derep/src/shard"
	"github.com/will-rowe/derep/src/similarity"
	"github.com/will-rowe/derep/src/sketch"
)

// archive extensions recognised as sketch databases
var archiveExts = []string{"zip", "tar", "tgz"}

// PlanFor is a function to build the pass plan for n sketches from the runtime config
func PlanFor(info *Info, n int) (*plan.Plan, error) {
	mem, err := info.Config.MemoryBytes()
	if err != nil {
		return nil, err
	}
	return plan.New(n, plan.Options{BlockSize: info.Config.BlockSize, Passes: info.Config.Passes, MemoryBytes: mem})
}

// SketchLoader is a pipeline process that loads the sketch store from a file list, an archive or a sketch cache
type SketchLoader struct {
	info   *Info
	logger zerolog.Logger
	output chan *sketch.Store
}

// NewSketchLoader is the constructor
func NewSketchLoader(info *Info, logger zerolog.Logger) *SketchLoader {
	return &SketchLoader{info: info, logger: logger, output: make(chan *sketch.Store, 1)}
}

// Run is the method to run this process, which satisfies the pipeline interface
func (proc *SketchLoader) Run(ctx context.Context) error {
	start := time.Now()
	opts := sketch.LoadOptions{
		Processors: proc.info.Config.Processors,
		Ksize:      proc.info.Config.Ksize,
		Policy:     sketch.InputPolicy(proc.info.Config.InputPolicy),
		Logger:     proc.logger,
	}
	input := proc.info.Input
	var store *sketch.Store
	var err error
	switch {
	case strings.HasSuffix(input, ".store"):
		store, err = sketch.Load(input)
	case misc.CheckExt(input, archiveExts) == nil:
		store, err = sketch.LoadArchive(input, opts)
	default:
		store, err = sketch.LoadFileList(ctx, input, opts)
	}
	if err != nil {
		return fmt.Errorf("could not load sketches from %v: %w", input, err)
	}
	if store.Len() == 0 {
		return fmt.Errorf("%w: no sketches found in %v", sketch.ErrInput, input)
	}
	if proc.info.CacheSketches {
		if err := store.Dump(proc.info.Path(SketchCacheFile)); err != nil {
			return fmt.Errorf("could not write the sketch cache: %w", err)
		}
	}
	proc.info.AttachStore(store)
	proc.logger.Info().
		Int("sketches", store.Len()).
		Str("hashes", humanize.Comma(int64(store.TotalHashes()))).
		Int("empty", store.NumEmpty()).
		Int("unreadable", store.Failed()).
		Dur("took", time.Since(start)).
		Msg("loaded sketches")
	if err := send(ctx, proc.output, store); err != nil {
		return err
	}
	close(proc.output)
	return nil
}

// PassRunner is a pipeline process that runs each comparison pass and writes its edge shards
type PassRunner struct {
	info   *Info
	logger zerolog.Logger
	input  chan *sketch.Store
	output chan string
}

// NewPassRunner is the constructor
func NewPassRunner(info *Info, logger zerolog.Logger) *PassRunner {
	return &PassRunner{info: info, logger: logger, output: make(chan string, BUFFERSIZE)}
}

// Connect is the method to connect the PassRunner to the output of a SketchLoader
func (proc *PassRunner) Connect(previous *SketchLoader) {
	proc.input = previous.output
}

// Run is the method to run this process, which satisfies the pipeline interface
func (proc *PassRunner) Run(ctx context.Context) error {
	store, ok, err := receive(ctx, proc.input)
	if err != nil || !ok {
		return err
	}
	cfg := proc.info.Config
	passPlan, err := PlanFor(proc.info, store.Len())
	if err != nil {
		return err
	}
	strategy, err := intersect.ParseStrategy(cfg.Strategy)
	if err != nil {
		return err
	}
	policy, err := similarity.NewPolicy(cfg.Policy, cfg.Threshold)
	if err != nil {
		return err
	}
	proc.info.Plan = passPlan
	proc.logger.Info().Str("plan", passPlan.String()).Str("strategy", strategy.String()).Str("policy", policy.String()).Msg("planned comparison")

	engine := &intersect.Engine{Workers: cfg.Processors, Strategy: strategy, Logger: proc.logger}
	sizes := store.Sizes()

	// progress bar
	var pbs *mpb.Progress
	var bar *mpb.Bar
	if cfg.Progress {
		pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
		bar = pbs.AddBar(int64(passPlan.NumPasses),
			mpb.PrependDecorators(
				decor.Name("completed passes: ", decor.WC{W: len("completed passes: "), C: decor.DindentRight}),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
				decor.EwmaETA(decor.ET_STYLE_GO, 10),
				decor.OnComplete(decor.Name(""), ". done"),
			),
		)
	}

	for _, block := range passPlan.Passes() {
		passStart := time.Now()
		paths, edges, err := proc.runPass(ctx, engine, store, block, sizes, policy)
		if err != nil {
			if pbs != nil {
				bar.Abort(false)
				pbs.Wait()
			}
			return err
		}
		proc.info.Edges += edges
		for _, path := range paths {
			proc.info.Shards = append(proc.info.Shards, filepath.Base(path))
			if err := send(ctx, proc.output, path); err != nil {
				return err
			}
		}
		if bar != nil {
			bar.EwmaIncrBy(1, time.Since(passStart))
		}
	}
	if pbs != nil {
		pbs.Wait()
	}
	proc.logger.Info().Int64("edges", proc.info.Edges).Int("shards", len(proc.info.Shards)).Msg("finished all passes")
	close(proc.output)
	return nil
}

// runPass counts and filters a single block, the matrix is not referenced once it returns
func (proc *PassRunner) runPass(ctx context.Context, engine *intersect.Engine, store *sketch.Store, block plan.Block, sizes []int, policy similarity.Policy) ([]string, int64, error) {
	m, stats, err := engine.Count(ctx, store, block)
	if err != nil {
		return nil, 0, err
	}

	// one shard per worker, workers never own more rows than the block has
	workers := min(engine.Workers, block.Rows())
	writers := make([]*shard.Writer, 0, workers)
	sinks := make([]similarity.Sink, 0, workers)
	closeAll := func() error {
		var first error
		for _, w := range writers {
			if err := w.Close(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
	for w := 0; w < workers; w++ {
		writer, err := shard.Create(proc.info.Config.OutDir, block.ID, w, proc.info.Config.CompressShards)
		if err != nil {
			closeAll()
			return nil, 0, err
		}
		writers = append(writers, writer)
		sinks = append(sinks, writer)
	}
	edges, err := similarity.Filter(ctx, m, sizes, policy, sinks)
	if cerr := closeAll(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, 0, fmt.Errorf("pass %d failed: %w", block.ID, err)
	}
	matrixBytes := m.Bytes()

	paths := make([]string, len(writers))
	for i, w := range writers {
		paths[i] = w.Path()
	}
	proc.logger.Info().
		Int("pass", block.ID).
		Int("rows", block.Rows()).
		Int64("edges", edges).
		Str("matrix", humanize.IBytes(uint64(matrixBytes))).
		Int64("increments", stats.Increments).
		Int64("empty_skips", stats.EmptySkips).
		Dur("index_time", stats.IndexTime).
		Dur("count_time", stats.CountTime).
		Msg("finished pass")
	proc.logger.Debug().Str("memory", misc.PrintMemUsage()).Int("pass", block.ID).Msg("memory after pass")
	return paths, edges, nil
}

// ShardCollector is a pipeline process that merges the shards into one edge file and builds the containment adjacency
type ShardCollector struct {
	info   *Info
	logger zerolog.Logger
	input  chan string
	output chan *selector.Adjacency
}

// NewShardCollector is the constructor
func NewShardCollector(info *Info, logger zerolog.Logger) *ShardCollector {
	return &ShardCollector{info: info, logger: logger, output: make(chan *selector.Adjacency, 1)}
}

// Connect is the method to connect the ShardCollector to the output of a PassRunner
func (proc *ShardCollector) Connect(previous *PassRunner) {
	proc.input = previous.output
}

// Run is the method to run this process, which satisfies the pipeline interface
func (proc *ShardCollector) Run(ctx context.Context) error {
	var adj *selector.Adjacency
	var merged *os.File
	var buf *bufio.Writer
	count := 0
	for {
		path, ok, err := receive(ctx, proc.input)
		if err != nil {
			if merged != nil {
				merged.Close()
			}
			return err
		}
		if !ok {
			break
		}

		// the store is attached before the first shard is sent
		if adj == nil {
			adj = selector.NewAdjacency(len(proc.info.Sizes))
			merged, err = os.Create(proc.info.Path(EdgesFile))
			if err != nil {
				return fmt.Errorf("could not create the merged edge file: %w", err)
			}
			buf = bufio.NewWriter(merged)
		}
		err = shard.ReadEdgesFile(path, func(e similarity.Edge) error {
			if _, err := adj.Add(e, proc.info.Config.Threshold); err != nil {
				return err
			}
			_, err := buf.WriteString(shard.FormatRecord(e) + "\n")
			return err
		})
		if err != nil {
			merged.Close()
			return fmt.Errorf("could not merge shard: %w", err)
		}
		count++
	}

	// no shards means an upstream process stopped early
	if adj == nil {
		return nil
	}
	if err := buf.Flush(); err != nil {
		merged.Close()
		return err
	}
	if err := merged.Close(); err != nil {
		return err
	}
	proc.logger.Info().Int("shards", count).Int64("containments", adj.Edges()).Str("file", proc.info.Path(EdgesFile)).Msg("merged shards")
	if err := send(ctx, proc.output, adj); err != nil {
		return err
	}
	close(proc.output)
	return nil
}

// Dereplicator is a pipeline process that selects the representatives and writes them to the run directory
type Dereplicator struct {
	info   *Info
	logger zerolog.Logger
	input  chan *selector.Adjacency
	result *selector.Result
}

// NewDereplicator is the constructor
func NewDereplicator(info *Info, logger zerolog.Logger) *Dereplicator {
	return &Dereplicator{info: info, logger: logger}
}

// Connect is the method to connect the Dereplicator to the output of a ShardCollector
func (proc *Dereplicator) Connect(previous *ShardCollector) {
	proc.input = previous.output
}

// Run is the method to run this process, which satisfies the pipeline interface
func (proc *Dereplicator) Run(ctx context.Context) error {
	adj, ok, err := receive(ctx, proc.input)
	if err != nil || !ok {
		return err
	}
	res, err := WriteRepresentatives(proc.info, adj)
	if err != nil {
		return err
	}
	proc.result = res
	proc.logger.Info().Int("representatives", len(res.Selected)).Uint64("redundant", res.Redundant.GetCardinality()).Str("file", proc.info.Path(RepresentativesFile)).Msg("selected representatives")
	return nil
}

// Result returns the selection once the process has finished
func (proc *Dereplicator) Result() *selector.Result {
	return proc.result
}

// WriteRepresentatives is a function to run the selection over an adjacency and write the representatives file
func WriteRepresentatives(info *Info, adj *selector.Adjacency) (*selector.Result, error) {
	res, err := selector.Select(info.Sizes, adj)
	if err != nil {
		return nil, err
	}
	fh, err := os.Create(info.Path(RepresentativesFile))
	if err != nil {
		return nil, fmt.Errorf("could not create the representatives file: %w", err)
	}
	if err := selector.WriteList(fh, res.Selected, info.Names); err != nil {
		fh.Close()
		return nil, err
	}
	if err := fh.Close(); err != nil {
		return nil, err
	}
	info.Representatives = len(res.Selected)
	return res, nil
}

// AdjacencyFromEdges is a function to rebuild the containment adjacency of a finished run from an edge file
func AdjacencyFromEdges(info *Info, edgesPath string, threshold float64) (*selector.Adjacency, error) {
	adj := selector.NewAdjacency(len(info.Sizes))
	err := shard.ReadEdgesFile(edgesPath, func(e similarity.Edge) error {
		_, err := adj.Add(e, threshold)
		return err
	})
	if err != nil {
		return nil, err
	}
	return adj, nil
}

// Compare is a function to build and run the full comparison pipeline for a run
func Compare(ctx context.Context, info *Info, logger zerolog.Logger) (*selector.Result, error) {
	if err := misc.MakeDir(info.Config.OutDir); err != nil {
		return nil, err
	}
	loader := NewSketchLoader(info, logger)
	runner := NewPassRunner(info, logger)
	runner.Connect(loader)
	collector := NewShardCollector(info, logger)
	collector.Connect(runner)
	dereplicator := NewDereplicator(info, logger)
	dereplicator.Connect(collector)

	pipe := NewPipeline()
	pipe.AddProcesses(loader, runner, collector, dereplicator)
	if err := pipe.Run(ctx); err != nil {
		return nil, err
	}
	if err := info.Dump(info.Path(InfoFile)); err != nil {
		return nil, fmt.Errorf("could not write the run info: %w", err)
	}
	return dereplicator.Result(), nil
}
