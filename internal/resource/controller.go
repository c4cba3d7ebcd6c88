package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var (
	// ErrMemoryLimitExceeded is returned when memory limit would be exceeded.
	ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

	// ErrRateLimited is returned when the request rate exceeds the token bucket.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrConcurrencyLimit is returned when no search slot frees up in time.
	ErrConcurrencyLimit = errors.New("too many concurrent searches")
)

// Config holds resource limits. Zero values disable the corresponding limit.
type Config struct {
	// MemoryLimitBytes caps the memory reserved for in-flight result buffers.
	MemoryLimitBytes int64

	// MaxConcurrentSearches caps the number of searches running at once.
	MaxConcurrentSearches int64

	// QueueTimeout is how long a search may wait for a free slot.
	// Zero fails immediately when every slot is taken.
	QueueTimeout time.Duration

	// RequestsPerSecond is the sustained admission rate.
	RequestsPerSecond float64

	// Burst is the token bucket size. Defaults to max(1, RequestsPerSecond).
	Burst int
}

// Controller manages admission of search requests.
type Controller struct {
	cfg Config

	// Memory
	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	// Concurrency
	searchSem *semaphore.Weighted // nil if unlimited
	inFlight  atomic.Int64

	// Rate
	limiter *rate.Limiter // nil if unlimited
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.MaxConcurrentSearches > 0 {
		c.searchSem = semaphore.NewWeighted(cfg.MaxConcurrentSearches)
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = max(1, int(cfg.RequestsPerSecond))
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return c
}

// Admit reserves a search slot. Every successful Admit must be paired with
// Release.
//
// The rate limit is checked first and never blocks. The concurrency limit
// waits up to QueueTimeout (bounded by ctx) for a slot.
func (c *Controller) Admit(ctx context.Context) error {
	if c == nil {
		return nil
	}

	if c.limiter != nil && !c.limiter.Allow() {
		return ErrRateLimited
	}

	if c.searchSem != nil {
		if !c.searchSem.TryAcquire(1) {
			if c.cfg.QueueTimeout <= 0 {
				return ErrConcurrencyLimit
			}
			waitCtx, cancel := context.WithTimeout(ctx, c.cfg.QueueTimeout)
			defer cancel()
			if err := c.searchSem.Acquire(waitCtx, 1); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrConcurrencyLimit
			}
		}
	}

	c.inFlight.Add(1)
	return nil
}

// Release frees a slot reserved by Admit.
func (c *Controller) Release() {
	if c == nil {
		return
	}
	c.inFlight.Add(-1)
	if c.searchSem != nil {
		c.searchSem.Release(1)
	}
}

// InFlight returns the number of admitted, unreleased searches.
func (c *Controller) InFlight() int64 {
	if c == nil {
		return 0
	}
	return c.inFlight.Load()
}

// AcquireMemory attempts to reserve memory.
// Returns ErrMemoryLimitExceeded if limit would be exceeded.
// Non-blocking - callers control retry/backoff policy.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil {
		return nil
	}
	if bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return ErrMemoryLimitExceeded
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil {
		return
	}
	if bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured memory limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// IsOverload reports whether err is one of the controller's rejection errors.
func IsOverload(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrConcurrencyLimit) ||
		errors.Is(err, ErrMemoryLimitExceeded)
}

// Limits returns the configured limits.
func (c *Controller) Limits() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}
