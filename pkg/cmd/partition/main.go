package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gilchrisn/graph-partitioning-service/pkg/partition"
	"github.com/gilchrisn/graph-partitioning-service/pkg/pipeline"
)

var version = "dev"

// flagKeys maps command-line flags onto configuration keys
var flagKeys = map[string]string{
	"partitions":        "partition.count",
	"balance-ratio":     "partition.balance_ratio",
	"in-memory":         "partition.in_memory",
	"sample-ratio":      "partition.sample_ratio",
	"memory-budget-mb":  "partition.memory_budget_mb",
	"hub-factor":        "partition.hub_factor",
	"seed":              "algorithm.random_seed",
	"workers":           "performance.num_workers",
	"chunk-size":        "performance.chunk_size",
	"read-batch":        "performance.read_batch",
	"log-level":         "logging.level",
	"progress":          "logging.enable_progress",
	"output-dir":        "output.dir",
	"write-assignments": "output.write_assignments",
	"parquet":           "output.parquet",
	"metrics-textfile":  "output.metrics_textfile",
	"track-rounds":      "analysis.track_rounds",
	"rounds-file":       "analysis.output_file",
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "loading .env:", err)
		os.Exit(1)
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	config := partition.NewConfig()
	var configFile, profile string

	cmd := &cobra.Command{
		Use:   "partition <base>",
		Short: "Partition the edges of <base>.binedgelist into p parts by neighbour expansion",
		Long: "Reads <base>.binedgelist and <base>.degree, assigns every edge to one of p\n" +
			"partitions and writes <base>.edgepart plus optional Parquet, metrics and round logs.",
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				if err := config.LoadFromFile(configFile); err != nil {
					return errors.Wrapf(err, "loading config %s", configFile)
				}
			}
			return config.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			pl := pipeline.New(config)
			switch profile {
			case "":
			case "large":
				pl.ConfigureForLargeGraphs()
			case "quality":
				pl.ConfigureForQuality()
			default:
				return errors.Errorf("unknown profile %q (want large or quality)", profile)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if _, err := pl.Run(ctx, args[0]); err != nil {
				pl.Logger.Error().Err(err).Msg("Partitioning failed")
				return err
			}
			return nil
		},
	}
	cmd.SetContext(context.Background())

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "config file (yaml, json or toml)")
	flags.StringVar(&profile, "profile", "", "preset: large or quality")
	flags.IntP("partitions", "p", 8, "number of partitions")
	flags.Float64("balance-ratio", 1.05, "capacity slack over the even edge share")
	flags.String("in-memory", "auto", "hold the whole graph in memory: auto, true or false")
	flags.Float64("sample-ratio", 2.0, "streaming sample size as a multiple of the vertex count")
	flags.Int64("memory-budget-mb", 4096, "working-set budget for the in-memory decision")
	flags.Float64("hub-factor", 2.0, "skip free vertices above this multiple of the local average degree")
	flags.Int64("seed", 0, "random seed (default: time based)")
	flags.Int("workers", 0, "classification workers (default: number of CPUs)")
	flags.Int("chunk-size", 4096, "edges per classification task")
	flags.Int("read-batch", 1<<20, "edges read per sampling batch")
	flags.String("log-level", "info", "log level")
	flags.Bool("progress", true, "log every bucket round at info level")
	flags.String("output-dir", "", "output directory (default: next to the input)")
	flags.Bool("write-assignments", true, "write <base>.edgepart")
	flags.Bool("parquet", false, "also write Parquet edge and master files")
	flags.String("metrics-textfile", "", "write a Prometheus textfile with the partition metrics")
	flags.Bool("track-rounds", false, "log bucket rounds as JSON lines")
	flags.String("rounds-file", "rounds.jsonl", "round log file")

	v := config.Viper()
	flags.VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			_ = v.BindPFlag(key, f)
		}
	})

	return cmd
}
