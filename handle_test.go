package vecgate

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecgate/blobstore"
	"github.com/hupe1980/vecgate/index"
	"github.com/hupe1980/vecgate/internal/compress"
	"github.com/hupe1980/vecgate/persistence"
	"github.com/hupe1980/vecgate/testutil"
)

func TestLoad(t *testing.T) {
	rng := testutil.NewRNG(4711)
	vectors := rng.UniformVectors(200, 16)
	path := testutil.WriteFlatIndex(t, testutil.Fixture{Vectors: vectors, Compression: compress.LZ4})

	h, err := Load(context.Background(), path)
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, 16, h.Dimension())
	assert.Equal(t, 200, h.Len())
	assert.True(t, h.Concurrent())
	assert.Equal(t, IndexInfo{
		Location:   path,
		Type:       "Flat",
		Dimension:  16,
		Count:      200,
		Metric:     "L2",
		Concurrent: true,
	}, h.Info())

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
}

func TestLoad_FileURL(t *testing.T) {
	path := testutil.WriteFlatIndex(t, testutil.Fixture{Vectors: [][]float32{{1, 2}}})

	h, err := Load(context.Background(), "file://"+filepath.ToSlash(path))
	require.NoError(t, err)
	defer h.Close()
	assert.Equal(t, 2, h.Dimension())
}

func TestLoad_BlobStore(t *testing.T) {
	path := testutil.WriteFlatIndex(t, testutil.Fixture{Vectors: [][]float32{{1, 2, 3}}})
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "idx", data))

	h, err := Load(context.Background(), "idx", WithBlobStore(store))
	require.NoError(t, err)
	defer h.Close()
	assert.Equal(t, 3, h.Dimension())
}

type trackingBlob struct {
	blobstore.Blob
	closed *atomic.Bool
}

func (b trackingBlob) Close() error {
	b.closed.Store(true)
	return b.Blob.Close()
}

type trackingStore struct {
	*blobstore.MemoryStore
	closed atomic.Bool
}

func (s *trackingStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	b, err := s.MemoryStore.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return trackingBlob{Blob: b, closed: &s.closed}, nil
}

func TestLoad_ReleasesBlobAfterDecoding(t *testing.T) {
	rng := testutil.NewRNG(3)
	vectors := rng.UniformVectors(20, 4)
	data, err := os.ReadFile(testutil.WriteFlatIndex(t, testutil.Fixture{Vectors: vectors}))
	require.NoError(t, err)

	store := &trackingStore{MemoryStore: blobstore.NewMemoryStore()}
	require.NoError(t, store.Put(context.Background(), "idx", data))

	h, err := Load(context.Background(), "idx", WithBlobStore(store))
	require.NoError(t, err)
	defer h.Close()
	assert.True(t, store.closed.Load())

	res, err := h.Search(context.Background(), vectors[7], 1)
	require.NoError(t, err)
	id, ok := res.Labels[0].Get()
	require.True(t, ok)
	assert.Equal(t, int64(7), id)
}

func TestLoad_Errors(t *testing.T) {
	valid := testutil.WriteFlatIndex(t, testutil.Fixture{Vectors: [][]float32{{1, 2}}})
	data, err := os.ReadFile(valid)
	require.NoError(t, err)

	write := func(t *testing.T, b []byte) string {
		p := filepath.Join(t.TempDir(), "bad.vgf")
		require.NoError(t, os.WriteFile(p, b, 0o644))
		return p
	}

	t.Run("Missing", func(t *testing.T) {
		_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.vgf"))
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := Load(context.Background(), write(t, bytes.Repeat([]byte("x"), 128)))
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.ErrorIs(t, err, persistence.ErrInvalidMagic)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, err := Load(context.Background(), write(t, data[:len(data)-1]))
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.ErrorIs(t, err, persistence.ErrTruncated)
	})

	t.Run("WrongFamily", func(t *testing.T) {
		b := append([]byte(nil), data...)
		b[8] = persistence.IndexTypeHNSW
		_, err := Load(context.Background(), write(t, b))
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.ErrorIs(t, err, index.ErrUnsupportedIndex)
	})

	t.Run("OverflowingSectionSizes", func(t *testing.T) {
		b := append([]byte(nil), data...)
		binary.LittleEndian.PutUint64(b[24:], math.MaxUint64-7) // VectorBytes
		binary.LittleEndian.PutUint64(b[32:], 16)               // LabelBytes
		_, err := Load(context.Background(), write(t, b))
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.ErrorIs(t, err, persistence.ErrTruncated)
	})

	t.Run("HugeDeclaredRowCount", func(t *testing.T) {
		lz4 := testutil.WriteFlatIndex(t, testutil.Fixture{
			Vectors:     [][]float32{{1, 2}, {3, 4}},
			Compression: compress.LZ4,
		})
		b, err := os.ReadFile(lz4)
		require.NoError(t, err)
		binary.LittleEndian.PutUint64(b[16:], math.MaxInt32) // VectorCount

		_, err = Load(context.Background(), write(t, b))
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.ErrorIs(t, err, compress.ErrCorruptBlock)
	})

	t.Run("UnknownScheme", func(t *testing.T) {
		_, err := Load(context.Background(), "ftp://host/index.vgf")
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, "ftp://host/index.vgf", le.Location)
	})

	t.Run("MissingKey", func(t *testing.T) {
		_, err := Load(context.Background(), "minio://bucket")
		var le *LoadError
		require.ErrorAs(t, err, &le)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := Load(context.Background(), "")
		var le *LoadError
		require.ErrorAs(t, err, &le)
	})
}

func TestLoad_SearchMatchesBruteForce(t *testing.T) {
	rng := testutil.NewRNG(42)
	vectors := rng.UniformVectors(300, 8)
	labels := make([]int64, len(vectors))
	for i := range labels {
		labels[i] = int64(1000 + i)
	}
	path := testutil.WriteFlatIndex(t, testutil.Fixture{Vectors: vectors, Labels: labels, Compression: compress.ZSTD})

	h, err := Load(context.Background(), path)
	require.NoError(t, err)
	defer h.Close()

	e, err := NewExecutor(h)
	require.NoError(t, err)
	defer e.Close()

	queries := rng.UniformVectors(5, 8)
	resp, err := e.Execute(context.Background(), QueryBatch{Vectors: queries, K: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 5)

	for i, q := range queries {
		want := testutil.BruteForceSearch(vectors, labels, q, 10)
		got := resp.Results[i]

		require.Len(t, got.Neighbors, 10)
		assert.Equal(t, q, got.Vector)
		for j, n := range got.Neighbors {
			assert.Equal(t, want[j].ID, n.ID)
			assert.InDelta(t, want[j].Distance, n.Score, 1e-4)
		}
	}
}

func TestLoad_FewerVectorsThanK(t *testing.T) {
	path := testutil.WriteFlatIndex(t, testutil.Fixture{
		Vectors:    [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}},
		Labels:     []int64{5, 6},
		Tombstones: []int64{6},
	})

	h, err := Load(context.Background(), path)
	require.NoError(t, err)
	defer h.Close()

	e, err := NewExecutor(h)
	require.NoError(t, err)
	defer e.Close()

	resp, err := e.Execute(context.Background(), QueryBatch{Vectors: [][]float32{{1, 0, 0, 0}}, K: 2})
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, []Neighbor{{ID: 5, Score: 0}}, resp.Results[0].Neighbors)
	assert.Equal(t, []float32{1, 0, 0, 0}, resp.Results[0].Vector)
}
