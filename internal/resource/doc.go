// Package resource implements admission control for search requests.
//
// The Controller governs three resources:
//
//   - Rate: a token bucket on incoming searches (non-blocking, fail-fast)
//   - Concurrency: a weighted semaphore on running searches, with an optional
//     bounded wait for a free slot
//   - Memory: a budget for in-flight result buffers (non-blocking, fail-fast)
//
// # Usage
//
//	rc := resource.NewController(resource.Config{
//	    MaxConcurrentSearches: 64,
//	    QueueTimeout:          100 * time.Millisecond,
//	    RequestsPerSecond:     500,
//	})
//
//	if err := rc.Admit(ctx); err != nil {
//	    // ErrRateLimited or ErrConcurrencyLimit
//	}
//	defer rc.Release()
//
// # Nil Safety
//
// All methods handle nil Controller gracefully - they become no-ops.
// This allows optional resource limiting without nil checks everywhere.
package resource
