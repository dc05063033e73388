package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/gilchrisn/graph-partitioning-service/pkg/edgefile"
	"github.com/gilchrisn/graph-partitioning-service/pkg/edgepart"
	"github.com/gilchrisn/graph-partitioning-service/pkg/export"
	"github.com/gilchrisn/graph-partitioning-service/pkg/partition"
	"github.com/gilchrisn/graph-partitioning-service/pkg/utils"
)

// ErrMissingInput means the converted edge or degree file is absent
var ErrMissingInput = errors.New("converted input not found")

// Pipeline opens a converted graph, partitions it and writes every output
type Pipeline struct {
	Config *partition.Config
	Logger zerolog.Logger
}

// Result contains the complete pipeline output
type Result struct {
	Partition *partition.Result

	OutputFile     string
	ParquetBase    string
	SummaryFile    string
	MetricsFile    string
	RoundsFile     string
	TotalRuntimeMS int64
}

// New creates a pipeline logging through the config's logger
func New(config *partition.Config) *Pipeline {
	return &Pipeline{
		Config: config,
		Logger: config.CreateLogger(),
	}
}

// ConfigureForLargeGraphs streams the input with a tight sample
func (pl *Pipeline) ConfigureForLargeGraphs() {
	pl.Config.Set("partition.in_memory", "false")
	pl.Config.Set("partition.sample_ratio", 1.0)
	pl.Config.Set("performance.read_batch", 1<<22)
}

// ConfigureForQuality keeps the whole graph in memory and tightens balance
func (pl *Pipeline) ConfigureForQuality() {
	pl.Config.Set("partition.in_memory", "true")
	pl.Config.Set("partition.balance_ratio", 1.0)
}

// Run partitions <base>.binedgelist using <base>.degree
func (pl *Pipeline) Run(ctx context.Context, base string) (*Result, error) {
	startTime := time.Now()
	logger := pl.Logger.With().Str("input", base).Logger()

	inputFile, degreeFile := edgefile.BinEdgeListName(base), edgefile.DegreeName(base)
	for _, path := range []string{inputFile, degreeFile} {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrapf(ErrMissingInput, "%s (convert the graph first)", path)
		}
	}

	reader, err := edgefile.Open(inputFile)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	header := reader.Header()
	degrees, err := edgefile.ReadDegrees(degreeFile, header.NumVertices)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Uint32("vertices", header.NumVertices).
		Uint64("edges", header.NumEdges).
		Float64("average_degree", header.AverageDegree()).
		Msg("Loaded graph header")

	outBase, err := pl.outputBase(base)
	if err != nil {
		return nil, err
	}
	result := &Result{}

	// Step 1: Wire output sinks
	var sinks partition.MultiSink
	var closers []func() error
	if pl.Config.WriteAssignments() {
		result.OutputFile = edgefile.PartitionedName(outBase)
		file, err := os.Create(result.OutputFile)
		if err != nil {
			return nil, errors.Wrap(err, "creating partition output")
		}
		writer := edgepart.NewWriter(file)
		sinks = append(sinks, writer)
		closers = append(closers, writer.Close)
	}
	if pl.Config.WriteParquet() {
		result.ParquetBase = outBase
		parquetSink, err := export.NewParquetSink(outBase)
		if err != nil {
			closeAll(closers)
			return nil, err
		}
		sinks = append(sinks, parquetSink)
		closers = append(closers, parquetSink.Close)
	}

	var tracker *utils.RoundTracker
	if pl.Config.TrackRounds() {
		result.RoundsFile = pl.roundsPath()
		tracker, err = utils.NewRoundTracker(result.RoundsFile, partition.AlgorithmName)
		if err != nil {
			closeAll(closers)
			return nil, errors.Wrap(err, "creating round tracker")
		}
		closers = append(closers, tracker.Close)
	}

	// Step 2: Partition
	engine, err := partition.NewEngine(reader, degrees, pl.Config, sinks, logger)
	if err != nil {
		closeAll(closers)
		return nil, err
	}
	engine.SetTracker(tracker)

	partResult, err := engine.Run(ctx)
	if cerr := closeAll(closers); err == nil && cerr != nil {
		err = errors.Wrap(cerr, "closing outputs")
	}
	if err != nil {
		return nil, err
	}
	result.Partition = partResult

	// Step 3: Report
	partResult.Report.Log(logger)
	if path := pl.Config.MetricsTextfile(); path != "" {
		if err := partResult.Report.WriteTextfile(path); err != nil {
			return nil, errors.Wrapf(err, "writing metrics textfile %s", path)
		}
		result.MetricsFile = path
	}

	result.SummaryFile = outBase + ".summary.txt"
	if err := writeSummary(partResult, result.SummaryFile); err != nil {
		return nil, errors.Wrap(err, "writing summary")
	}

	result.TotalRuntimeMS = time.Since(startTime).Milliseconds()
	logger.Info().
		Str("output", result.OutputFile).
		Int64("total_runtime_ms", result.TotalRuntimeMS).
		Msg("Pipeline completed")
	return result, nil
}

// outputBase places outputs next to the input unless an output dir is set
func (pl *Pipeline) outputBase(base string) (string, error) {
	dir := pl.Config.OutputDir()
	if dir == "" {
		return base, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create output directory")
	}
	return filepath.Join(dir, filepath.Base(base)), nil
}

func (pl *Pipeline) roundsPath() string {
	path := pl.Config.TrackingOutputFile()
	if dir := pl.Config.OutputDir(); dir != "" && !filepath.IsAbs(path) {
		return filepath.Join(dir, path)
	}
	return path
}

func closeAll(closers []func() error) error {
	var first error
	for _, c := range closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// writeSummary creates a summary file with partition statistics
func writeSummary(result *partition.Result, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	report := result.Report
	fmt.Fprintf(file, "=== Edge Partitioning Summary ===\n\n")
	fmt.Fprintf(file, "Graph:\n")
	fmt.Fprintf(file, "  Vertices: %d\n", result.NumVertices)
	fmt.Fprintf(file, "  Edges: %d\n", result.NumEdges)
	fmt.Fprintf(file, "  Partitions: %d\n", result.NumPartitions)
	fmt.Fprintf(file, "  Capacity: %d\n", result.Capacity)
	fmt.Fprintf(file, "  In memory: %t\n", result.InMemory)

	fmt.Fprintf(file, "\nQuality:\n")
	fmt.Fprintf(file, "  Edge balance: %.4f\n", report.EdgeBalance)
	fmt.Fprintf(file, "  Replication factor: %.4f\n", report.ReplicationFactor)
	fmt.Fprintf(file, "  Master balance: %.4f\n", report.MasterBalance)
	fmt.Fprintf(file, "  Total mirrors: %d\n", report.TotalMirrors)

	fmt.Fprintf(file, "\nRuntime:\n")
	fmt.Fprintf(file, "  Total: %d ms (read %d ms, compute %d ms)\n",
		result.Statistics.RuntimeMS, result.Statistics.ReadMS, result.Statistics.ComputeMS)
	fmt.Fprintf(file, "  Memory: %d MB\n", result.Statistics.MemoryPeakMB)

	fmt.Fprintf(file, "\nRounds:\n")
	for _, round := range result.Rounds {
		fmt.Fprintf(file, "  Bucket %d: %d edges, sample %d, stop %s\n",
			round.Bucket, round.Occupied, round.SampleEdges, round.StopReason)
	}
	return nil
}
