package persistence

import (
	"errors"
	"math"
	"math/bits"
)

const (
	// MagicNumber identifies vecgate index files (ASCII: "VGF1").
	MagicNumber = 0x31464756
	// Version is the current file format version (v1.0.0)
	Version = 0x00010000

	// HeaderSize is the encoded size of FileHeader.
	HeaderSize = 64

	// Index types
	IndexTypeFlat = 1
	IndexTypeHNSW = 2
	IndexTypeIVF  = 3
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
	ErrTruncated      = errors.New("truncated index file")
)

// FileHeader is the 64-byte header at the start of every index file.
//
// The header is followed by three payload sections in order: vectors,
// labels and tombstones. Section sizes are stored sizes, that is after
// compression.
type FileHeader struct {
	Magic          uint32 // 0x31464756 ("VGF1")
	Version        uint32 // File format version
	IndexType      uint8  // 1=Flat, 2=HNSW, 3=IVF
	Metric         uint8  // index.Metric
	Compression    uint8  // compress.Type of the vector and label sections
	Flags          uint8  // Reserved flag bits
	Dimension      uint32 // Vector dimensionality
	VectorCount    uint64 // Number of stored rows, tombstoned rows included
	VectorBytes    uint64 // Stored size of the vector section
	LabelBytes     uint64 // Stored size of the label section
	TombstoneBytes uint64 // Size of the serialized tombstone bitmap
	Checksum       uint32 // CRC32C of all payload sections
	Reserved       [12]byte
}

// PayloadSize returns the total stored size of the payload sections.
// A sum that does not fit in a uint64 saturates at math.MaxUint64.
func (h *FileHeader) PayloadSize() uint64 {
	sum, carry := bits.Add64(h.VectorBytes, h.LabelBytes, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	sum, carry = bits.Add64(sum, h.TombstoneBytes, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

// IndexTypeName returns a readable name for an index type.
func IndexTypeName(t uint8) string {
	switch t {
	case IndexTypeFlat:
		return "flat"
	case IndexTypeHNSW:
		return "hnsw"
	case IndexTypeIVF:
		return "ivf"
	default:
		return "unknown"
	}
}
