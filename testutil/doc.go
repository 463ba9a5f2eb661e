// Package testutil provides testing utilities for the unique value store.
//
// This package is intended for use in tests and benchmarks only.
// It provides deterministic, seedable random generation of byte values so
// that randomized tests reproduce exactly across runs.
//
//	rng := testutil.NewRNG(seed)
//	value := rng.Bytes(32)             // random value of a fixed length
//	values := rng.Values(1000, 4, 64)  // distinct values, lengths in [4, 64)
package testutil
