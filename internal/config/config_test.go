package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFlagSet mirrors the flags the CLI registers.
func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("endpoint", "", "")
	flags.String("access-key", "", "")
	flags.String("secret-key", "", "")
	flags.Bool("secure", true, "")
	flags.String("bucket", "", "")
	flags.String("prefix-blob", "", "")
	flags.String("sub-path", "", "")
	flags.Int("suffix-depth", 4, "")
	flags.Int("workers", 0, "")
	flags.Int("chunk-size-mib", 32, "")
	flags.String("journal", "", "")
	flags.String("metrics-addr", "", "")
	flags.String("log-level", "info", "")
	return flags
}

func setRequired(t *testing.T, flags *pflag.FlagSet) {
	t.Helper()
	require.NoError(t, flags.Set("endpoint", "localhost:9000"))
	require.NoError(t, flags.Set("access-key", "ak"))
	require.NoError(t, flags.Set("secret-key", "sk"))
	require.NoError(t, flags.Set("bucket", "test-bucket"))
}

func TestLoadDefaults(t *testing.T) {
	flags := newFlagSet()
	setRequired(t, flags)

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Transfer.SuffixDepth)
	assert.Equal(t, 32, cfg.Transfer.ChunkSizeMiB)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.GreaterOrEqual(t, cfg.Transfer.MaxWorkers, 1)
	assert.LessOrEqual(t, cfg.Transfer.MaxWorkers, 8)
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
storage:
  endpoint: storage.example.com:9000
  access_key: file-ak
  secret_key: file-sk
  bucket: file-bucket
transfer:
  sub_path: ingest
  suffix_depth: 3
  chunk_size_mib: 16
log_level: debug
`), 0o644))

	cfg, err := Load(file, newFlagSet())
	require.NoError(t, err)

	assert.Equal(t, "storage.example.com:9000", cfg.Storage.Endpoint)
	assert.Equal(t, "ingest", cfg.Transfer.SubPath)
	assert.Equal(t, 3, cfg.Transfer.SuffixDepth)
	assert.Equal(t, 16, cfg.Transfer.ChunkSizeMiB)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
storage:
  endpoint: from-file:9000
  access_key: ak
  secret_key: sk
  bucket: from-file
transfer:
  chunk_size_mib: 16
`), 0o644))

	flags := newFlagSet()
	require.NoError(t, flags.Set("bucket", "from-flag"))
	require.NoError(t, flags.Set("chunk-size-mib", "64"))

	cfg, err := Load(file, flags)
	require.NoError(t, err)

	assert.Equal(t, "from-flag", cfg.Storage.Bucket)
	assert.Equal(t, 64, cfg.Transfer.ChunkSizeMiB)
	// Untouched flags keep file values.
	assert.Equal(t, "from-file:9000", cfg.Storage.Endpoint)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *pflag.FlagSet)
	}{
		{"missing endpoint", func(f *pflag.FlagSet) { f.Set("endpoint", "") }},
		{"missing bucket", func(f *pflag.FlagSet) { f.Set("bucket", "") }},
		{"zero chunk size", func(f *pflag.FlagSet) { f.Set("chunk-size-mib", "0") }},
		{"negative workers", func(f *pflag.FlagSet) { f.Set("workers", "-1") }},
		{"negative suffix depth", func(f *pflag.FlagSet) { f.Set("suffix-depth", "-2") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := newFlagSet()
			setRequired(t, flags)
			tt.mutate(flags)

			_, err := Load("", flags)
			assert.Error(t, err)
		})
	}
}

func TestChunkSizeBytes(t *testing.T) {
	tr := Transfer{ChunkSizeMiB: 32}
	assert.Equal(t, int64(32*1024*1024), tr.ChunkSizeBytes())
}
