package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"blobferry/internal/worker"
)

const mib = 1 << 20

// Config is the application configuration. It is built once by Load and not
// mutated afterwards; transfer calls read it, never write it.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Transfer Transfer `yaml:"transfer"`
	LogLevel string   `yaml:"log_level"`

	// Journal, when set, is the path of a SQLite file recording per-task
	// outcomes of every batch.
	Journal string `yaml:"journal"`

	// MetricsAddr, when set, serves prometheus metrics on this address for
	// the duration of the run.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Storage configures the object-storage session.
type Storage struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
	Bucket    string `yaml:"bucket"`
}

// Transfer configures batch naming and concurrency.
type Transfer struct {
	// PrefixBlob forces every file of a batch onto this single key. See
	// keys.Naming for the collapse caveat.
	PrefixBlob string `yaml:"prefix_blob"`
	// SubPath and SuffixDepth build keys from the tail of the local path.
	SubPath      string `yaml:"sub_path"`
	SuffixDepth  int    `yaml:"suffix_depth"`
	MaxWorkers   int    `yaml:"max_workers"`
	ChunkSizeMiB int    `yaml:"chunk_size_mib"`
}

// ChunkSizeBytes converts the user-facing MiB setting to bytes.
func (t Transfer) ChunkSizeBytes() int64 {
	return int64(t.ChunkSizeMiB) * mib
}

// Load loads configuration from an optional YAML file, then overlays any
// command-line flags that were explicitly set, then validates.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
		Transfer: Transfer{
			SuffixDepth:  4,
			MaxWorkers:   worker.DefaultSize(),
			ChunkSizeMiB: 32,
		},
	}

	if configFile != "" {
		if err := loadFromFile(cfg, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := loadFromFlags(cfg, flags); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func loadFromFlags(cfg *Config, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}

	if flags.Changed("endpoint") {
		cfg.Storage.Endpoint, _ = flags.GetString("endpoint")
	}
	if flags.Changed("access-key") {
		cfg.Storage.AccessKey, _ = flags.GetString("access-key")
	}
	if flags.Changed("secret-key") {
		cfg.Storage.SecretKey, _ = flags.GetString("secret-key")
	}
	if flags.Changed("secure") {
		cfg.Storage.Secure, _ = flags.GetBool("secure")
	}
	if flags.Changed("bucket") {
		cfg.Storage.Bucket, _ = flags.GetString("bucket")
	}

	if flags.Changed("prefix-blob") {
		cfg.Transfer.PrefixBlob, _ = flags.GetString("prefix-blob")
	}
	if flags.Changed("sub-path") {
		cfg.Transfer.SubPath, _ = flags.GetString("sub-path")
	}
	if flags.Changed("suffix-depth") {
		cfg.Transfer.SuffixDepth, _ = flags.GetInt("suffix-depth")
	}
	if flags.Changed("workers") {
		cfg.Transfer.MaxWorkers, _ = flags.GetInt("workers")
	}
	if flags.Changed("chunk-size-mib") {
		cfg.Transfer.ChunkSizeMiB, _ = flags.GetInt("chunk-size-mib")
	}

	if flags.Changed("journal") {
		cfg.Journal, _ = flags.GetString("journal")
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}

	return nil
}

func (c *Config) validate() error {
	if c.Storage.Endpoint == "" {
		return fmt.Errorf("storage endpoint is required")
	}
	if c.Storage.AccessKey == "" {
		return fmt.Errorf("storage access key is required")
	}
	if c.Storage.SecretKey == "" {
		return fmt.Errorf("storage secret key is required")
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}

	if c.Transfer.MaxWorkers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.Transfer.SuffixDepth < 0 {
		return fmt.Errorf("suffix depth must be non-negative")
	}
	if c.Transfer.ChunkSizeMiB < 1 {
		return fmt.Errorf("chunk size must be at least 1 MiB")
	}

	return nil
}
