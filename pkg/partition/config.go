package partition

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config manages partitioner configuration using Viper
type Config struct {
	v *viper.Viper
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	// Partitioning parameters
	v.SetDefault("partition.count", 8)
	v.SetDefault("partition.balance_ratio", 1.05)
	v.SetDefault("partition.in_memory", "auto")
	v.SetDefault("partition.sample_ratio", 2.0)
	v.SetDefault("partition.memory_budget_mb", 4096)
	v.SetDefault("partition.hub_factor", 2.0)

	v.SetDefault("algorithm.random_seed", time.Now().UnixNano())

	// Performance parameters
	v.SetDefault("performance.num_workers", runtime.NumCPU())
	v.SetDefault("performance.chunk_size", 4096)
	v.SetDefault("performance.read_batch", 1<<20)

	// Logging parameters
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.enable_progress", true)

	// Output parameters
	v.SetDefault("output.dir", "")
	v.SetDefault("output.write_assignments", true)
	v.SetDefault("output.parquet", false)
	v.SetDefault("output.metrics_textfile", "")

	v.SetDefault("analysis.track_rounds", false)
	v.SetDefault("analysis.output_file", "rounds.jsonl")

	v.SetEnvPrefix("EDGEPART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{v: v}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

// Viper exposes the underlying store so a CLI can bind flags to it
func (c *Config) Viper() *viper.Viper { return c.v }

// Getters for partitioning parameters
func (c *Config) NumPartitions() int { return c.v.GetInt("partition.count") }
func (c *Config) BalanceRatio() float64 { return c.v.GetFloat64("partition.balance_ratio") }
func (c *Config) SampleRatio() float64 { return c.v.GetFloat64("partition.sample_ratio") }
func (c *Config) MemoryBudgetMB() int64 { return c.v.GetInt64("partition.memory_budget_mb") }
func (c *Config) HubFactor() float64 { return c.v.GetFloat64("partition.hub_factor") }
func (c *Config) RandomSeed() int64 { return c.v.GetInt64("algorithm.random_seed") }
func (c *Config) InMemoryMode() string { return strings.ToLower(c.v.GetString("partition.in_memory")) }

func (c *Config) NumWorkers() int { return c.v.GetInt("performance.num_workers") }
func (c *Config) ChunkSize() int { return c.v.GetInt("performance.chunk_size") }
func (c *Config) ReadBatch() int { return c.v.GetInt("performance.read_batch") }

func (c *Config) LogLevel() string { return c.v.GetString("logging.level") }
func (c *Config) EnableProgress() bool { return c.v.GetBool("logging.enable_progress") }

func (c *Config) OutputDir() string { return c.v.GetString("output.dir") }
func (c *Config) WriteAssignments() bool { return c.v.GetBool("output.write_assignments") }
func (c *Config) WriteParquet() bool { return c.v.GetBool("output.parquet") }
func (c *Config) MetricsTextfile() string { return c.v.GetString("output.metrics_textfile") }

func (c *Config) TrackRounds() bool { return c.v.GetBool("analysis.track_rounds") }
func (c *Config) TrackingOutputFile() string { return c.v.GetString("analysis.output_file") }

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	p := c.NumPartitions()
	if p < 1 {
		return fmt.Errorf("partition.count must be at least 1, got %d", p)
	}
	if p > math.MaxUint16 {
		return fmt.Errorf("partition.count must fit in 16 bits, got %d", p)
	}
	if c.BalanceRatio() < 1 {
		return fmt.Errorf("partition.balance_ratio must be >= 1, got %f", c.BalanceRatio())
	}
	if c.SampleRatio() <= 0 {
		return fmt.Errorf("partition.sample_ratio must be positive, got %f", c.SampleRatio())
	}
	if c.HubFactor() <= 0 {
		return fmt.Errorf("partition.hub_factor must be positive, got %f", c.HubFactor())
	}
	if c.NumWorkers() < 1 {
		return fmt.Errorf("performance.num_workers must be at least 1, got %d", c.NumWorkers())
	}
	if c.ChunkSize() < 1 || c.ReadBatch() < 1 {
		return fmt.Errorf("performance.chunk_size and performance.read_batch must be positive")
	}
	switch c.InMemoryMode() {
	case "auto", "true", "false":
	default:
		return fmt.Errorf("partition.in_memory must be auto, true or false, got %q", c.InMemoryMode())
	}
	return nil
}

// CreateLogger creates a zerolog logger based on config
func (c *Config) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Str("service", "edgepart").Logger()
}
