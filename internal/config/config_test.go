package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultIndexLocation, cfg.Index.Location)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ExitWait)
	assert.Equal(t, 1024, cfg.Query.MaxK)
	assert.True(t, cfg.Query.StrictDimensions)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "vecgate", cfg.Tracing.ServiceName)
}

func TestLoad_Precedence(t *testing.T) {
	file := filepath.Join(t.TempDir(), "vecgate.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
index:
  location: /data/from-file.vgf
server:
  addr: ":9000"
  read_timeout: 2s
query:
  max_k: 50
  strict_dimensions: false
cache:
  enabled: true
  max_entries: 10
`), 0o644))

	t.Setenv("VECGATE_SERVER_ADDR", ":9100")
	t.Setenv("VECGATE_QUERY_MAX_K", "60")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringP("index-location", "i", DefaultIndexLocation, "")
	flags.Int("max-k", 0, "")
	require.NoError(t, flags.Parse([]string{"-i", "/data/from-flag.vgf"}))

	cfg, err := Load(file, flags)
	require.NoError(t, err)

	// Flag set explicitly wins over the file.
	assert.Equal(t, "/data/from-flag.vgf", cfg.Index.Location)
	// Env wins over the file.
	assert.Equal(t, ":9100", cfg.Server.Addr)
	// Unset flag does not override env.
	assert.Equal(t, 60, cfg.Query.MaxK)
	// File wins over defaults.
	assert.Equal(t, 2*time.Second, cfg.Server.ReadTimeout)
	assert.False(t, cfg.Query.StrictDimensions)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, int64(10), cfg.Cache.MaxEntries)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"EmptyLocation", func(c *Config) { c.Index.Location = "" }},
		{"EmptyAddr", func(c *Config) { c.Server.Addr = "" }},
		{"ZeroMaxK", func(c *Config) { c.Query.MaxK = 0 }},
		{"ZeroMaxBatch", func(c *Config) { c.Query.MaxBatch = 0 }},
		{"NegativeRate", func(c *Config) { c.Query.RateLimit = -1 }},
		{"CacheWithoutEntries", func(c *Config) { c.Cache.Enabled = true; c.Cache.MaxEntries = 0 }},
		{"BadLogFormat", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load("", nil)
			require.NoError(t, err)

			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
