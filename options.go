package vecgate

import (
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/vecgate/blobstore"
	"github.com/hupe1980/vecgate/blobstore/minio"
	"github.com/hupe1980/vecgate/blobstore/s3"
	"github.com/hupe1980/vecgate/internal/resource"
)

const (
	// DefaultMaxK is the largest k accepted unless WithMaxK says otherwise.
	DefaultMaxK = 1024

	// DefaultMaxBatch is the largest batch accepted unless WithMaxBatch says otherwise.
	DefaultMaxBatch = 1024

	tracerName = "github.com/hupe1980/vecgate"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	tracer           trace.Tracer

	// Executor
	strictDimensions bool
	maxK             int
	maxBatch         int
	workers          int
	limits           resource.Config
	cacheEntries     int64

	// Load
	store    blobstore.BlobStore
	cacheDir string
	s3Opts   []func(*s3.Options)
	minio    minio.Config
}

func defaultOptions() options {
	return options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		tracer:           otel.Tracer(tracerName),
		strictDimensions: true,
		maxK:             DefaultMaxK,
		maxBatch:         DefaultMaxBatch,
		workers:          runtime.GOMAXPROCS(0),
	}
}

func applyOptions(optFns []Option) options {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

// Option configures Load and NewExecutor.
//
// Both accept the same option type; each ignores the options that only
// concern the other.
type Option func(*options)

// WithLogger configures structured logging.
// If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &vecgate.BasicMetricsCollector{}
//	exec, _ := vecgate.NewExecutor(h, vecgate.WithMetricsCollector(metrics))
//	// ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithTracer configures the tracer for Execute and Search spans.
// The default uses the global OpenTelemetry provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithStrictDimensions controls dimension validation.
//
// Strict mode (the default) checks every vector against the index
// dimensionality. Lenient mode only checks that the concatenated batch is a
// whole number of vectors; a batch such as [[1,2,3],[4,5,6,7,8]] against a
// 4-dimensional index then passes and is searched as two 4-dimensional
// queries that straddle the input boundaries.
func WithStrictDimensions(strict bool) Option {
	return func(o *options) {
		o.strictDimensions = strict
	}
}

// WithMaxK bounds k. Values <= 0 keep the default.
func WithMaxK(k int) Option {
	return func(o *options) {
		if k > 0 {
			o.maxK = k
		}
	}
}

// WithMaxBatch bounds the number of vectors per batch. Values <= 0 keep the default.
func WithMaxBatch(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBatch = n
		}
	}
}

// WithWorkers sets the size of the search worker pool.
// Values <= 0 mean GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n <= 0 {
			n = runtime.GOMAXPROCS(0)
		}
		o.workers = n
	}
}

// WithConcurrencyLimit caps concurrent searches. A search waits up to
// queueTimeout for a free slot before failing with ErrOverloaded.
func WithConcurrencyLimit(maxConcurrent int, queueTimeout time.Duration) Option {
	return func(o *options) {
		o.limits.MaxConcurrentSearches = int64(maxConcurrent)
		o.limits.QueueTimeout = queueTimeout
	}
}

// WithRateLimit caps the sustained request rate with a token bucket.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *options) {
		o.limits.RequestsPerSecond = perSecond
		o.limits.Burst = burst
	}
}

// WithMemoryLimit caps the bytes reserved for in-flight result buffers.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.limits.MemoryLimitBytes = bytes
	}
}

// WithResultCache enables the result cache with room for maxEntries
// batches. Concurrent identical batches are then coalesced into one search.
// Zero disables caching (the default).
func WithResultCache(maxEntries int64) Option {
	return func(o *options) {
		o.cacheEntries = maxEntries
	}
}

// WithBlobStore makes Load open locations through store instead of
// resolving them by scheme.
func WithBlobStore(store blobstore.BlobStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithCacheDir keeps a local copy of remote indexes in dir.
func WithCacheDir(dir string) Option {
	return func(o *options) {
		o.cacheDir = dir
	}
}

// WithS3Options configures the client used for s3:// locations.
func WithS3Options(optFns ...func(*s3.Options)) Option {
	return func(o *options) {
		o.s3Opts = append(o.s3Opts, optFns...)
	}
}

// WithMinIO configures the client used for minio:// locations.
func WithMinIO(cfg minio.Config) Option {
	return func(o *options) {
		o.minio = cfg
	}
}
