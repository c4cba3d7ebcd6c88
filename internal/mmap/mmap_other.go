//go:build !unix

package mmap

import (
	"io"
	"os"
)

// Platforms without mmap(2) read the file into memory instead.
func mmap(f *os.File, size int) ([]byte, bool, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, false, err
	}
	return data, false, nil
}

func munmap([]byte) error { return nil }

func madvise([]byte, AccessPattern) error { return nil }
