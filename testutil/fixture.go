package testutil

import (
	"path/filepath"
	"testing"

	"github.com/hupe1980/vecgate/index"
	"github.com/hupe1980/vecgate/index/flat"
	"github.com/hupe1980/vecgate/internal/compress"
)

// Fixture describes an index file to write for a test.
type Fixture struct {
	Vectors     [][]float32
	Labels      []int64 // nil means row numbers
	Metric      index.Metric
	Compression compress.Type
	Tombstones  []int64 // labels to hide
}

// WriteFlatIndex writes f as a flat index file in a fresh temp directory and
// returns its path.
func WriteFlatIndex(t testing.TB, f Fixture) string {
	t.Helper()

	if len(f.Vectors) == 0 {
		t.Fatal("testutil: fixture needs at least one vector")
	}
	dim := len(f.Vectors[0])

	idx, err := flat.New(Flatten(f.Vectors), f.Labels, func(o *flat.Options) {
		o.Dimension = dim
		o.Metric = f.Metric
	})
	if err != nil {
		t.Fatalf("testutil: build flat index: %v", err)
	}
	for _, id := range f.Tombstones {
		idx.Tombstone(id)
	}

	path := filepath.Join(t.TempDir(), "index.vgf")
	if err := idx.SaveToFile(path, f.Compression); err != nil {
		t.Fatalf("testutil: save flat index: %v", err)
	}
	return path
}
