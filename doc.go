// Package vecgate serves batched k-nearest-neighbor queries over a pre-built
// flat vector index.
//
// A gateway has two parts. A Handle owns the loaded index for the lifetime of
// the process and is shared by every request. An Executor validates one
// QueryBatch against the handle's dimensionality, runs the search on a
// bounded worker pool and reshapes the flat engine output into one
// SingleResult per query, in input order.
//
// # Quick Start
//
//	ctx := context.Background()
//	h, err := vecgate.Load(ctx, "./index.vgf")
//	if err != nil {
//	    log.Fatal(err) // *vecgate.LoadError
//	}
//	defer h.Close()
//
//	exec, err := vecgate.NewExecutor(h, vecgate.WithMaxK(100))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Close()
//
//	resp, err := exec.Execute(ctx, vecgate.QueryBatch{
//	    Vectors: [][]float32{{1, 0, 0, 0}},
//	    K:       2,
//	})
//
// # Index Locations
//
// Load accepts a filesystem path, a file:// URL, s3://bucket/key or
// minio://bucket/key. Remote indexes are downloaded once; WithCacheDir keeps a
// local copy between restarts.
//
// # Errors
//
// Load failures are *LoadError. Execute returns *ValidationError for
// malformed batches (the search is never invoked), *SearchError when the
// engine fails, and an error matching ErrOverloaded when admission limits
// reject the request. None of them affect the shared Handle.
//
// # Empty Slots
//
// When the index holds fewer than k searchable vectors, the engine fills the
// remaining slots with index.None. Those slots are dropped from the response,
// so a query may return fewer than k neighbors.
//
// Scores are always finite. A distance that overflows float32 is reported
// as ±math.MaxFloat32, and NaN as math.MaxFloat32.
package vecgate
