// Package flat provides an exact, read-only flat index for batched k-NN search.
package flat

import (
	"context"
	"fmt"
	"runtime"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecgate/distance"
	"github.com/hupe1980/vecgate/index"
	"github.com/hupe1980/vecgate/internal/queue"
)

// Compile-time checks to ensure Flat satisfies required interfaces.
var _ index.Searcher = (*Flat)(nil)
var _ index.ConcurrentSearcher = (*Flat)(nil)

// Options contains configuration options for the flat index.
type Options struct {
	// Dimension is the fixed vector dimensionality for this index.
	Dimension int

	// Metric is the distance reported for every neighbor.
	Metric index.Metric

	// Parallelism bounds the goroutines one Search call fans out to.
	// Zero means GOMAXPROCS.
	Parallelism int
}

// DefaultOptions contains the default configuration options for the flat index.
var DefaultOptions = Options{
	Metric: index.MetricL2,
}

// Flat scans every stored vector for each query.
//
// A Flat is immutable once built, except for Tombstone, which must not run
// concurrently with Search.
type Flat struct {
	opts       Options
	dist       distance.Func
	vectors    []float32 // row-major, len = rows*Dimension
	labels     []int64   // external id per row
	tombstones *roaring.Bitmap
}

func (*Flat) Name() string { return "Flat" }

// New creates a flat index over row-major vectors.
//
// labels holds the external id of each row. A nil labels slice uses the row
// number as the id.
func New(vectors []float32, labels []int64, optFns ...func(o *Options)) (*Flat, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("flat: dimension must be positive, got %d", opts.Dimension)
	}
	if !opts.Metric.Valid() {
		return nil, fmt.Errorf("flat: %w: metric %v", index.ErrUnsupportedIndex, opts.Metric)
	}
	if len(vectors)%opts.Dimension != 0 {
		return nil, &index.ErrDimensionMismatch{Expected: opts.Dimension, Actual: len(vectors)}
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.GOMAXPROCS(0)
	}

	rows := len(vectors) / opts.Dimension
	if labels == nil {
		labels = make([]int64, rows)
		for i := range labels {
			labels[i] = int64(i)
		}
	}
	if len(labels) != rows {
		return nil, fmt.Errorf("flat: %d labels for %d vectors", len(labels), rows)
	}

	dist, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, err
	}

	if opts.Metric == index.MetricCosine {
		// Cosine is served as a dot product over unit vectors. Zero rows stay zero.
		normalized := make([]float32, len(vectors))
		copy(normalized, vectors)
		for r := 0; r < rows; r++ {
			distance.NormalizeL2InPlace(normalized[r*opts.Dimension : (r+1)*opts.Dimension])
		}
		vectors = normalized
	}

	return &Flat{
		opts:       opts,
		dist:       dist,
		vectors:    vectors,
		labels:     labels,
		tombstones: roaring.New(),
	}, nil
}

// ConcurrentSearch marks Flat as safe for concurrent Search calls.
func (*Flat) ConcurrentSearch() {}

// Dimension returns the fixed vector dimensionality.
func (f *Flat) Dimension() int { return f.opts.Dimension }

// Metric returns the distance metric.
func (f *Flat) Metric() index.Metric { return f.opts.Metric }

// Rows returns the number of stored rows, tombstoned rows included.
func (f *Flat) Rows() int { return len(f.labels) }

// Len returns the number of searchable rows.
func (f *Flat) Len() int {
	return len(f.labels) - int(f.tombstones.GetCardinality())
}

// Tombstone hides every row labelled id from search results and reports
// whether any row matched.
func (f *Flat) Tombstone(id int64) bool {
	found := false
	for row, l := range f.labels {
		if l == id {
			f.tombstones.Add(uint32(row))
			found = true
		}
	}
	return found
}

// Search runs one k-NN query per Dimension-sized chunk of queries.
func (f *Flat) Search(queries []float32, k int) (*index.SearchResult, error) {
	return f.SearchContext(context.Background(), queries, k)
}

// SearchContext is Search with cancellation between queries.
func (f *Flat) SearchContext(ctx context.Context, queries []float32, k int) (*index.SearchResult, error) {
	if err := index.ValidateQueries(queries, f.opts.Dimension, k); err != nil {
		return nil, err
	}

	n := len(queries) / f.opts.Dimension
	res := index.NewSearchResult(n, k)
	if n == 0 || k == 0 {
		return res, nil
	}

	dim := f.opts.Dimension
	if n == 1 || f.opts.Parallelism == 1 {
		heap := queue.NewMax(k)
		for i := 0; i < n; i++ {
			if err := f.searchOne(ctx, heap, queries[i*dim:(i+1)*dim], k, res, i); err != nil {
				return nil, err
			}
		}
		return res, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.Parallelism)

	for i := 0; i < n; i++ {
		g.Go(func() error {
			return f.searchOne(ctx, queue.NewMax(k), queries[i*dim:(i+1)*dim], k, res, i)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// searchOne fills chunk i of res. Chunks are disjoint, so concurrent calls
// never write the same slot.
func (f *Flat) searchOne(ctx context.Context, heap *queue.PriorityQueue, q []float32, k int, res *index.SearchResult, i int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if f.opts.Metric == index.MetricCosine {
		if norm, ok := distance.NormalizeL2Copy(q); ok {
			q = norm
		}
	}

	dim := f.opts.Dimension
	skip := !f.tombstones.IsEmpty()

	for row := range f.labels {
		if skip && f.tombstones.Contains(uint32(row)) {
			continue
		}
		d := f.dist(q, f.vectors[row*dim:(row+1)*dim])
		heap.Offer(queue.PriorityQueueItem{Row: uint32(row), Distance: d}, k)
	}

	items := heap.DrainAscending(make([]queue.PriorityQueueItem, 0, k))
	distances, labels := res.Chunk(i)
	for j, item := range items {
		d := item.Distance
		if f.opts.Metric == index.MetricCosine {
			d++
		}
		distances[j] = d
		labels[j] = index.Some(f.labels[item.Row])
	}
	return nil
}

// Vector returns a copy of the stored vector at row.
func (f *Flat) Vector(row int) ([]float32, bool) {
	if row < 0 || row >= len(f.labels) {
		return nil, false
	}
	dim := f.opts.Dimension
	v := make([]float32, dim)
	copy(v, f.vectors[row*dim:(row+1)*dim])
	return v, true
}
