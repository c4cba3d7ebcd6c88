package persistence

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

var byteOrder = binary.LittleEndian

// BinaryIndexWriter writes indexes in binary format.
type BinaryIndexWriter struct {
	w io.Writer
}

// NewBinaryIndexWriter creates a new binary writer.
func NewBinaryIndexWriter(w io.Writer) *BinaryIndexWriter {
	return &BinaryIndexWriter{w: w}
}

// WriteHeader writes the file header.
func (bw *BinaryIndexWriter) WriteHeader(header *FileHeader) error {
	header.Magic = MagicNumber
	header.Version = Version
	return binary.Write(bw.w, byteOrder, header)
}

// WriteSection writes one payload section as is.
func (bw *BinaryIndexWriter) WriteSection(section []byte) error {
	_, err := bw.w.Write(section)
	return err
}

// ReadHeader reads and validates the file header.
func ReadHeader(r io.Reader) (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(r, byteOrder, &header); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: header", ErrTruncated)
		}
		return nil, err
	}
	if header.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, header.Magic)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, header.Version)
	}
	return &header, nil
}

// ParseHeader decodes the header at the start of data.
func ParseHeader(data []byte) (*FileHeader, error) {
	return ReadHeader(bytes.NewReader(data))
}

// Sections splits the payload that follows the header into its stored
// vector, label and tombstone sections. Each declared size is checked
// against the bytes that remain, so corrupt sizes fail with ErrTruncated.
func Sections(header *FileHeader, payload []byte) (vectors, labels, tombstones []byte, err error) {
	rest := payload
	take := func(name string, n uint64) ([]byte, error) {
		if n > uint64(len(rest)) {
			return nil, fmt.Errorf("%w: %s section declares %d bytes, %d remain",
				ErrTruncated, name, n, len(rest))
		}
		section := rest[:n:n]
		rest = rest[n:]
		return section, nil
	}

	if vectors, err = take("vector", header.VectorBytes); err != nil {
		return nil, nil, nil, err
	}
	if labels, err = take("label", header.LabelBytes); err != nil {
		return nil, nil, nil, err
	}
	if tombstones, err = take("tombstone", header.TombstoneBytes); err != nil {
		return nil, nil, nil, err
	}
	return vectors, labels, tombstones, nil
}

// EncodeFloat32s encodes vec as little-endian float32 values.
func EncodeFloat32s(vec []float32) []byte {
	out := make([]byte, 4*len(vec))
	for i, v := range vec {
		byteOrder.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

// DecodeFloat32s decodes little-endian float32 values.
func DecodeFloat32s(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: float32 section of %d bytes", ErrTruncated, len(data))
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(byteOrder.Uint32(data[4*i:]))
	}
	return out, nil
}

// EncodeInt64s encodes ids as little-endian int64 values.
func EncodeInt64s(ids []int64) []byte {
	out := make([]byte, 8*len(ids))
	for i, v := range ids {
		byteOrder.PutUint64(out[8*i:], uint64(v))
	}
	return out
}

// DecodeInt64s decodes little-endian int64 values.
func DecodeInt64s(data []byte) ([]int64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("%w: int64 section of %d bytes", ErrTruncated, len(data))
	}
	out := make([]int64, len(data)/8)
	for i := range out {
		out[i] = int64(byteOrder.Uint64(data[8*i:]))
	}
	return out, nil
}

// SaveToFile is a helper to save data to a file.
func SaveToFile(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	// Write to a temp file in the same directory to ensure rename is atomic.
	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	_ = tmp.Chmod(0644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}
	tmpName = ""
	return nil
}
