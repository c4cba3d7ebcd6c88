package vecgate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/vecgate/index"
	"github.com/hupe1980/vecgate/internal/resource"
	"github.com/hupe1980/vecgate/internal/workerpool"
)

// slotBytes is the memory reserved per result slot: a float32 distance and
// an index.Label.
const slotBytes = 4 + 16

// Executor runs query batches against a shared Handle.
//
// Searches run on a fixed worker pool so that CPU-bound scans never occupy
// the goroutines that accept requests. An Executor is safe for concurrent use.
type Executor struct {
	handle *Handle
	opts   options
	pool   *workerpool.Pool
	limits *resource.Controller
	cache  *resultCache // nil when disabled
	group  singleflight.Group
	closed atomic.Bool
}

// NewExecutor creates an executor over h.
func NewExecutor(h *Handle, optFns ...Option) (*Executor, error) {
	if h == nil {
		return nil, errors.New("vecgate: nil handle")
	}
	o := applyOptions(optFns)

	e := &Executor{
		handle: h,
		opts:   o,
		limits: resource.NewController(o.limits),
	}
	if o.cacheEntries > 0 {
		c, err := newResultCache(o.cacheEntries)
		if err != nil {
			return nil, fmt.Errorf("vecgate: result cache: %w", err)
		}
		e.cache = c
	}
	e.pool = workerpool.New(o.workers)
	return e, nil
}

// Handle returns the handle the executor searches.
func (e *Executor) Handle() *Handle { return e.handle }

// Workers returns the size of the search worker pool.
func (e *Executor) Workers() int { return e.pool.Size() }

// Busy returns the number of workers currently running a search.
func (e *Executor) Busy() int64 { return e.pool.Busy() }

// Execute validates batch, searches the index and returns one result per
// query in input order.
//
// Errors are *ValidationError (no search was run), *SearchError, or match
// ErrOverloaded, ErrExecutorClosed or a context error.
func (e *Executor) Execute(ctx context.Context, batch QueryBatch) (*Response, error) {
	start := time.Now()
	ctx, span := e.opts.tracer.Start(ctx, "vecgate.Execute", trace.WithAttributes(
		attribute.Int("vecgate.queries", len(batch.Vectors)),
		attribute.Int("vecgate.k", batch.K),
	))
	defer span.End()

	resp, err := e.execute(ctx, batch)

	e.opts.metricsCollector.RecordRequest(len(batch.Vectors), batch.K, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var ve *ValidationError
		switch {
		case errors.As(err, &ve):
			e.opts.metricsCollector.RecordValidationFailure(ve.Reason)
			e.opts.logger.LogValidation(ctx, len(batch.Vectors), batch.K, err)
		case errors.Is(err, ErrOverloaded):
			e.opts.logger.LogOverload(ctx, err)
		default:
			e.opts.logger.LogSearch(ctx, len(batch.Vectors), batch.K, 0, time.Since(start), err)
		}
		return nil, err
	}
	return resp, nil
}

func (e *Executor) execute(ctx context.Context, batch QueryBatch) (*Response, error) {
	if e.closed.Load() {
		return nil, ErrExecutorClosed
	}

	queries, err := e.validate(batch)
	if err != nil {
		return nil, err
	}

	if batch.K == 0 || queries == 0 {
		return assemble(batch.Vectors, make([][]Neighbor, queries)), nil
	}

	if e.cache == nil {
		neighbors, err := e.search(ctx, batch, queries)
		if err != nil {
			return nil, err
		}
		return assemble(batch.Vectors, neighbors), nil
	}

	key := newBatchKey(batch)
	if neighbors, ok := e.cache.get(key); ok {
		e.opts.metricsCollector.RecordCache(true)
		return assemble(batch.Vectors, neighbors), nil
	}
	e.opts.metricsCollector.RecordCache(false)

	// The shared search must outlive the caller that started it.
	shared := context.WithoutCancel(ctx)
	ch := e.group.DoChan(string(key), func() (any, error) {
		neighbors, err := e.search(shared, batch, queries)
		if err != nil {
			return nil, err
		}
		e.cache.set(key, neighbors)
		return neighbors, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return assemble(batch.Vectors, r.Val.([][]Neighbor)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// validate checks batch against the limits and the index dimensionality and
// returns the number of queries the engine will see.
func (e *Executor) validate(batch QueryBatch) (int, error) {
	if batch.K < 0 || batch.K > e.opts.maxK {
		return 0, &ValidationError{
			Reason:  ErrInvalidK,
			Message: fmt.Sprintf("k must be between 0 and %d, got %d", e.opts.maxK, batch.K),
		}
	}
	if len(batch.Vectors) > e.opts.maxBatch {
		return 0, &ValidationError{
			Reason:  ErrBatchTooLarge,
			Message: fmt.Sprintf("batch of %d vectors exceeds the limit of %d", len(batch.Vectors), e.opts.maxBatch),
		}
	}

	dim := e.handle.Dimension()
	if e.opts.strictDimensions {
		for _, v := range batch.Vectors {
			if len(v) != dim {
				return 0, dimensionMismatch()
			}
		}
		return len(batch.Vectors), nil
	}

	total := 0
	for _, v := range batch.Vectors {
		total += len(v)
	}
	if dim <= 0 || total%dim != 0 {
		return 0, dimensionMismatch()
	}
	return total / dim, nil
}

// search runs the engine on the worker pool and reshapes its output into
// one neighbor list per query.
func (e *Executor) search(ctx context.Context, batch QueryBatch, queries int) ([][]Neighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.limits.Admit(ctx); err != nil {
		return nil, translateError(err)
	}
	reserved := int64(queries) * int64(batch.K) * slotBytes
	if err := e.limits.AcquireMemory(reserved); err != nil {
		e.limits.Release()
		return nil, translateError(err)
	}
	// Runs when the engine call ends, which may be after a canceled caller
	// has returned.
	release := func() {
		e.limits.ReleaseMemory(reserved)
		e.limits.Release()
	}

	flat := flatten(batch.Vectors)

	ctx, span := e.opts.tracer.Start(ctx, "vecgate.Search", trace.WithAttributes(
		attribute.Int("vecgate.queries", queries),
		attribute.Int("vecgate.k", batch.K),
		attribute.Int("vecgate.dimension", e.handle.Dimension()),
	))
	defer span.End()

	start := time.Now()
	var res *index.SearchResult
	err := e.pool.DoRelease(ctx, func() error {
		var err error
		res, err = e.handle.Search(ctx, flat, batch.K)
		return err
	}, release)
	e.opts.metricsCollector.RecordSearch(queries, batch.K, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, translateError(err)
	}

	neighbors, err := reshape(res, queries, batch.K)
	if err != nil {
		return nil, err
	}

	found := 0
	for _, n := range neighbors {
		found += len(n)
	}
	e.opts.logger.LogSearch(ctx, queries, batch.K, found, time.Since(start), nil)
	return neighbors, nil
}

// Close stops the worker pool and the cache. Execute fails with
// ErrExecutorClosed afterwards. The handle is not closed.
func (e *Executor) Close() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.pool.Close()
	if e.cache != nil {
		e.cache.close()
	}
}

// flatten concatenates vectors in input order.
func flatten(vectors [][]float32) []float32 {
	total := 0
	for _, v := range vectors {
		total += len(v)
	}
	flat := make([]float32, 0, total)
	for _, v := range vectors {
		flat = append(flat, v...)
	}
	return flat
}

// reshape splits res into k-sized chunks, one per query, and drops empty
// slots. The engine's ranking order is kept.
func reshape(res *index.SearchResult, queries, k int) ([][]Neighbor, error) {
	if res == nil || len(res.Labels) != queries*k || len(res.Distances) != queries*k {
		got := 0
		if res != nil {
			got = len(res.Labels)
		}
		return nil, &SearchError{Err: fmt.Errorf("engine returned %d slots for %d queries with k=%d", got, queries, k)}
	}

	out := make([][]Neighbor, queries)
	for i := range out {
		lo := i * k
		labels := res.Labels[lo : lo+k]
		distances := res.Distances[lo : lo+k]

		neighbors := make([]Neighbor, 0, k)
		for j, l := range labels {
			id, ok := l.Get()
			if !ok {
				continue
			}
			neighbors = append(neighbors, Neighbor{ID: id, Score: finiteScore(distances[j])})
		}
		out[i] = neighbors
	}
	return out, nil
}

// finiteScore clamps a distance into the range JSON can carry. Overflowing
// distances become ±math.MaxFloat32; NaN sorts last as math.MaxFloat32.
func finiteScore(d float32) float32 {
	switch {
	case d != d:
		return math.MaxFloat32
	case d > math.MaxFloat32:
		return math.MaxFloat32
	case d < -math.MaxFloat32:
		return -math.MaxFloat32
	default:
		return d
	}
}

// assemble pairs each input vector with its neighbor list. In lenient mode
// the engine may see fewer queries than there are input vectors; results
// then stop at the shorter of the two.
func assemble(vectors [][]float32, neighbors [][]Neighbor) *Response {
	n := min(len(vectors), len(neighbors))
	results := make([]SingleResult, n)
	for i := range results {
		nb := neighbors[i]
		if nb == nil {
			nb = []Neighbor{}
		}
		results[i] = SingleResult{Neighbors: nb, Vector: vectors[i]}
	}
	return &Response{Results: results}
}
