package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecgate/index"
	"github.com/hupe1980/vecgate/internal/compress"
	"github.com/hupe1980/vecgate/internal/config"
	"github.com/hupe1980/vecgate/testutil"
)

func TestInspect(t *testing.T) {
	rng := testutil.NewRNG(1)
	path := testutil.WriteFlatIndex(t, testutil.Fixture{
		Vectors:     rng.UniformVectors(10, 8),
		Metric:      index.MetricCosine,
		Compression: compress.LZ4,
	})

	t.Run("Header", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, inspect(&buf, path))
		out := buf.String()
		assert.Contains(t, out, "type:        flat")
		assert.Contains(t, out, "metric:      Cosine")
		assert.Contains(t, out, "compression: lz4")
		assert.Contains(t, out, "dimension:   8")
		assert.Contains(t, out, "rows:        10")
	})

	t.Run("Verify", func(t *testing.T) {
		var buf bytes.Buffer
		cmd := newRootCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"inspect", "--verify", path})
		require.NoError(t, cmd.Execute())
		assert.Contains(t, buf.String(), "verified: 10 live vectors")
	})

	t.Run("Missing", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Error(t, inspect(&buf, filepath.Join(t.TempDir(), "nope.vgf")))
	})
}

func TestVersion(t *testing.T) {
	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "vecgate dev")
}

func TestExecutorOptions(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	assert.Len(t, executorOptions(cfg, nil, nil), 9)

	cfg.Cache.Enabled = true
	assert.Len(t, executorOptions(cfg, nil, nil), 10)
}
