// Package persistence defines the binary file format of gateway indexes.
//
// Layout (all integers little-endian):
//
//	+----------------------+  0
//	| FileHeader (64 B)    |
//	+----------------------+  64
//	| vector section       |  VectorCount*Dimension float32, maybe compressed
//	+----------------------+
//	| label section        |  VectorCount int64 external ids, maybe compressed
//	+----------------------+
//	| tombstone section    |  roaring bitmap of deleted rows (may be empty)
//	+----------------------+
//
// The header checksum covers the three payload sections as stored.
package persistence
