// Package compress implements the block codec used for the payload sections
// of index files.
//
// A compressed section is a sequence of blocks:
//
//	[UncompressedSize uint32][CompressedSize uint32][Data...]
//
// A CompressedSize of 0 marks a block stored verbatim, used whenever
// compression does not pay off. Sections of type None carry no framing.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type defines the compression algorithm used.
type Type uint8

const (
	// None stores the section uncompressed.
	None Type = 0
	// LZ4 uses LZ4 block compression (fast decode).
	LZ4 Type = 1
	// ZSTD uses ZSTD block compression (better ratio).
	ZSTD Type = 2
)

// DefaultBlockSize is the uncompressed size of a block.
const DefaultBlockSize = 256 * 1024

// MaxBlockSize bounds the uncompressed size of a single block. Decode rejects
// larger blocks without allocating for them.
const MaxBlockSize = 16 << 20

const blockHeaderSize = 8

// initialRatio sizes the first output allocation of Decode relative to its
// input. The buffer grows block by block beyond that.
const initialRatio = 4

var (
	// ErrCorruptBlock is returned when a block header does not match its data.
	ErrCorruptBlock = errors.New("compress: corrupt block")
	// ErrUnknownType is returned for an unsupported compression type.
	ErrUnknownType = errors.New("compress: unknown type")
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ParseType maps a name ("none", "lz4", "zstd") to a Type.
func ParseType(name string) (Type, error) {
	switch name {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// Encode compresses data as a section of blocks of at most blockSize bytes.
func Encode(data []byte, t Type, blockSize int) ([]byte, error) {
	switch t {
	case None:
		return data, nil
	case LZ4, ZSTD:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	blockSize = min(blockSize, MaxBlockSize)

	out := make([]byte, 0, len(data)/2+blockHeaderSize)
	for off := 0; off < len(data); off += blockSize {
		end := min(off+blockSize, len(data))
		var err error
		out, err = appendBlock(out, data[off:end], t)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func appendBlock(dst, block []byte, t Type) ([]byte, error) {
	var compressed []byte
	switch t {
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(block)))
		n, err := lz4.CompressBlock(block, buf, nil)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n]
	case ZSTD:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, err
		}
		compressed = enc.EncodeAll(block, nil)
		zstdEncoderPool.Put(enc)
	}

	var hdr [blockHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(len(block)))

	// Incompressible (lz4 reports n == 0) or not worth it: store verbatim.
	if len(compressed) == 0 || float64(len(compressed)) > float64(len(block))*0.9 {
		dst = append(dst, hdr[:]...)
		return append(dst, block...), nil
	}
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(compressed)))
	dst = append(dst, hdr[:]...)
	return append(dst, compressed...), nil
}

// Decode reverses Encode. rawSize is the expected uncompressed length.
func Decode(src []byte, t Type, rawSize int) ([]byte, error) {
	switch t {
	case None:
		if len(src) != rawSize {
			return nil, fmt.Errorf("%w: section is %d bytes, want %d", ErrCorruptBlock, len(src), rawSize)
		}
		return src, nil
	case LZ4, ZSTD:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}

	if rawSize < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrCorruptBlock, rawSize)
	}

	// rawSize comes from an untrusted header.
	out := make([]byte, 0, min(rawSize, len(src)*initialRatio))
	for len(src) > 0 {
		if len(src) < blockHeaderSize {
			return nil, fmt.Errorf("%w: truncated header", ErrCorruptBlock)
		}
		usize := int(binary.LittleEndian.Uint32(src[0:]))
		csize := int(binary.LittleEndian.Uint32(src[4:]))
		src = src[blockHeaderSize:]

		if usize > MaxBlockSize {
			return nil, fmt.Errorf("%w: block of %d bytes exceeds %d", ErrCorruptBlock, usize, MaxBlockSize)
		}
		if len(out)+usize > rawSize {
			return nil, fmt.Errorf("%w: section exceeds %d bytes", ErrCorruptBlock, rawSize)
		}

		if csize == 0 {
			if len(src) < usize {
				return nil, fmt.Errorf("%w: truncated block", ErrCorruptBlock)
			}
			out = append(out, src[:usize]...)
			src = src[usize:]
			continue
		}
		if len(src) < csize {
			return nil, fmt.Errorf("%w: truncated block", ErrCorruptBlock)
		}

		var err error
		out, err = decodeBlock(out, src[:csize], usize, t)
		if err != nil {
			return nil, err
		}
		src = src[csize:]
	}

	if len(out) != rawSize {
		return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrCorruptBlock, len(out), rawSize)
	}
	return out, nil
}

func decodeBlock(dst, block []byte, usize int, t Type) ([]byte, error) {
	start := len(dst)
	switch t {
	case LZ4:
		dst = slices.Grow(dst, usize)[:start+usize]
		n, err := lz4.UncompressBlock(block, dst[start:])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptBlock, err)
		}
		if n != usize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorruptBlock)
		}
		return dst, nil
	default:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)

		out, err := dec.DecodeAll(block, dst)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptBlock, err)
		}
		if len(out)-start != usize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorruptBlock)
		}
		return out, nil
	}
}
