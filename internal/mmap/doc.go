// Package mmap provides read-only memory-mapped file access.
//
// # Usage
//
//	m, err := mmap.Open("index.vgf")
//	if err != nil { ... }
//	defer m.Close()
//
//	_ = m.Advise(mmap.AccessRandom)
//	data := m.Bytes()
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with madvise(2) for access hints
//   - Other platforms: the file is read into memory and hints are no-ops
//
// Bytes and ReadAt are safe for concurrent use. Callers must ensure no
// goroutine touches Bytes() after Close returns.
package mmap
