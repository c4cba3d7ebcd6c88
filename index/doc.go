// Package index provides vector index interfaces and implementations.
//
// The gateway serves exactly one index family:
//
//   - Flat: exact nearest neighbor search over uncompressed vectors
//
// Other families stored in the same file format are rejected with
// ErrUnsupportedIndex when loaded.
//
// # Distance Types
//
// All metrics are reported as distances, lower is nearer:
//
//   - MetricL2: squared Euclidean distance
//   - MetricInnerProduct: negated dot product
//   - MetricCosine: one minus cosine similarity (vectors are normalized)
//
// # Results
//
// A Searcher answers a batch of queries with a SearchResult: two flat slices of
// queries*k slots. Slots the index could not fill carry the None label and
// EmptyDistance.
//
// # Subpackages
//
//   - flat: exact search with contiguous storage
package index
