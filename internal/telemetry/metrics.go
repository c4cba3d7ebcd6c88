// Package telemetry exports gateway metrics to Prometheus and traces to an
// OTLP collector.
package telemetry

import (
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/hupe1980/vecgate"
)

var _ vecgate.MetricsCollector = (*Prometheus)(nil)

// Prometheus implements vecgate.MetricsCollector on a private registry.
type Prometheus struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration prometheus.Histogram
	batchSize       prometheus.Histogram
	validation      *prometheus.CounterVec
	searches        *prometheus.CounterVec
	searchDuration  prometheus.Histogram
	cache           *prometheus.CounterVec
}

// NewPrometheus creates the collector and registers its metrics.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vecgate_requests_total",
				Help: "Search requests by outcome.",
			},
			[]string{"status"}, // ok | invalid | overloaded | error
		),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vecgate_request_duration_seconds",
			Help:    "End-to-end duration of search requests.",
			Buckets: prometheus.DefBuckets,
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vecgate_batch_size",
			Help:    "Number of query vectors per request.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		validation: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vecgate_validation_failures_total",
				Help: "Rejected batches by reason.",
			},
			[]string{"reason"},
		),
		searches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vecgate_searches_total",
				Help: "Engine searches by outcome.",
			},
			[]string{"status"},
		),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vecgate_search_duration_seconds",
			Help:    "Duration of engine searches, queueing included.",
			Buckets: prometheus.DefBuckets,
		}),
		cache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vecgate_cache_lookups_total",
				Help: "Result cache lookups by result.",
			},
			[]string{"result"}, // hit | miss
		),
	}

	p.registry.MustRegister(
		p.requests, p.requestDuration, p.batchSize,
		p.validation, p.searches, p.searchDuration, p.cache,
	)
	return p
}

// Registry returns the private registry, for additional collectors.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// BusyReporter reports how many search workers are running a task.
// *vecgate.Executor implements it.
type BusyReporter interface {
	Busy() int64
}

// RegisterWorkers exports the busy worker count of pool.
func (p *Prometheus) RegisterWorkers(pool BusyReporter) {
	p.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "vecgate_workers_busy",
			Help: "Search workers currently running a task.",
		},
		func() float64 { return float64(pool.Busy()) },
	))
}

// RegisterIndex exports the size of the loaded index.
func (p *Prometheus) RegisterIndex(info vecgate.IndexInfo) {
	p.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        "vecgate_index_vectors",
			Help:        "Searchable vectors in the loaded index.",
			ConstLabels: prometheus.Labels{"dimension": strconv.Itoa(info.Dimension), "metric": info.Metric},
		},
		func() float64 { return float64(info.Count) },
	))
}

// RecordRequest implements vecgate.MetricsCollector.
func (p *Prometheus) RecordRequest(queries, k int, duration time.Duration, err error) {
	p.requests.WithLabelValues(status(err)).Inc()
	p.requestDuration.Observe(duration.Seconds())
	p.batchSize.Observe(float64(queries))
}

// RecordValidationFailure implements vecgate.MetricsCollector.
func (p *Prometheus) RecordValidationFailure(reason error) {
	label := "other"
	switch {
	case errors.Is(reason, vecgate.ErrDimensionMismatch):
		label = "dimension"
	case errors.Is(reason, vecgate.ErrInvalidK):
		label = "k"
	case errors.Is(reason, vecgate.ErrBatchTooLarge):
		label = "batch_size"
	}
	p.validation.WithLabelValues(label).Inc()
}

// RecordSearch implements vecgate.MetricsCollector.
func (p *Prometheus) RecordSearch(queries, k int, duration time.Duration, err error) {
	p.searches.WithLabelValues(status(err)).Inc()
	p.searchDuration.Observe(duration.Seconds())
}

// RecordCache implements vecgate.MetricsCollector.
func (p *Prometheus) RecordCache(hit bool) {
	if hit {
		p.cache.WithLabelValues("hit").Inc()
	} else {
		p.cache.WithLabelValues("miss").Inc()
	}
}

// WriteText writes all metrics in the Prometheus text format.
func (p *Prometheus) WriteText(w io.Writer) error {
	families, err := p.registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

func status(err error) string {
	var ve *vecgate.ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ve):
		return "invalid"
	case errors.Is(err, vecgate.ErrOverloaded):
		return "overloaded"
	default:
		return "error"
	}
}
