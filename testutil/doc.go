// Package testutil provides testing utilities for vecgate.
//
// This package is intended for use in tests only. It generates
// deterministic random vectors, computes exact nearest neighbors and writes
// index files.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vectors := rng.UniformVectors(1000, 64)
//
// # Index Fixtures
//
//	path := testutil.WriteFlatIndex(t, testutil.Fixture{Vectors: vectors})
//
// # Ground Truth
//
//	want := testutil.BruteForceSearch(vectors, nil, query, 10)
package testutil
