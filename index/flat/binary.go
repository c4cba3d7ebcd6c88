package flat

import (
	"fmt"
	"io"
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vecgate/index"
	"github.com/hupe1980/vecgate/internal/compress"
	"github.com/hupe1980/vecgate/persistence"
)

func init() {
	index.RegisterLoader(persistence.IndexTypeFlat, func(data []byte) (index.Searcher, error) {
		return Load(data)
	})
}

// SaveToFile saves the Flat index to a file.
func (f *Flat) SaveToFile(filename string, ct compress.Type) error {
	return persistence.SaveToFile(filename, func(w io.Writer) error {
		return f.Write(w, ct)
	})
}

// Write writes the Flat index to w, compressing the vector and label
// sections with ct.
func (f *Flat) Write(w io.Writer, ct compress.Type) error {
	vecBytes, err := compress.Encode(persistence.EncodeFloat32s(f.vectors), ct, compress.DefaultBlockSize)
	if err != nil {
		return fmt.Errorf("flat: encode vectors: %w", err)
	}
	labelBytes, err := compress.Encode(persistence.EncodeInt64s(f.labels), ct, compress.DefaultBlockSize)
	if err != nil {
		return fmt.Errorf("flat: encode labels: %w", err)
	}

	var tombBytes []byte
	if !f.tombstones.IsEmpty() {
		if tombBytes, err = f.tombstones.ToBytes(); err != nil {
			return fmt.Errorf("flat: encode tombstones: %w", err)
		}
	}

	sum := persistence.NewChecksumWriter(io.Discard)
	for _, section := range [][]byte{vecBytes, labelBytes, tombBytes} {
		_, _ = sum.Write(section)
	}

	header := &persistence.FileHeader{
		IndexType:      persistence.IndexTypeFlat,
		Metric:         uint8(f.opts.Metric),
		Compression:    uint8(ct),
		Dimension:      uint32(f.opts.Dimension),
		VectorCount:    uint64(len(f.labels)),
		VectorBytes:    uint64(len(vecBytes)),
		LabelBytes:     uint64(len(labelBytes)),
		TombstoneBytes: uint64(len(tombBytes)),
		Checksum:       sum.Sum(),
	}

	writer := persistence.NewBinaryIndexWriter(w)
	if err := writer.WriteHeader(header); err != nil {
		return err
	}
	for _, section := range [][]byte{vecBytes, labelBytes, tombBytes} {
		if err := writer.WriteSection(section); err != nil {
			return err
		}
	}
	return nil
}

// Load decodes a Flat index from the complete bytes of a stored file.
//
// Dimension and Metric come from the file header; optFns may only tune
// runtime settings such as Parallelism.
func Load(data []byte, optFns ...func(o *Options)) (*Flat, error) {
	header, err := persistence.ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if header.IndexType != persistence.IndexTypeFlat {
		return nil, fmt.Errorf("flat: %w: %s", index.ErrUnsupportedIndex, persistence.IndexTypeName(header.IndexType))
	}
	if header.Dimension == 0 {
		return nil, fmt.Errorf("flat: header declares dimension 0")
	}

	payload := data[persistence.HeaderSize:]
	vecSection, labelSection, tombSection, err := persistence.Sections(header, payload)
	if err != nil {
		return nil, fmt.Errorf("flat: %w", err)
	}
	stored := len(vecSection) + len(labelSection) + len(tombSection)
	if err := persistence.VerifyChecksum(payload[:stored], header.Checksum); err != nil {
		return nil, fmt.Errorf("flat: %w", err)
	}

	if header.VectorCount > uint64(math.MaxInt32) ||
		header.VectorCount*uint64(header.Dimension) > uint64(math.MaxInt)/4 {
		return nil, fmt.Errorf("flat: %d vectors of dimension %d exceed the addressable size",
			header.VectorCount, header.Dimension)
	}
	rows := int(header.VectorCount)
	dim := int(header.Dimension)
	ct := compress.Type(header.Compression)

	raw, err := compress.Decode(vecSection, ct, rows*dim*4)
	if err != nil {
		return nil, fmt.Errorf("flat: vectors: %w", err)
	}
	vectors, err := persistence.DecodeFloat32s(raw)
	if err != nil {
		return nil, fmt.Errorf("flat: vectors: %w", err)
	}

	raw, err = compress.Decode(labelSection, ct, rows*8)
	if err != nil {
		return nil, fmt.Errorf("flat: labels: %w", err)
	}
	labels, err := persistence.DecodeInt64s(raw)
	if err != nil {
		return nil, fmt.Errorf("flat: labels: %w", err)
	}

	opts := append([]func(o *Options){}, optFns...)
	opts = append(opts, func(o *Options) {
		o.Dimension = dim
		o.Metric = index.Metric(header.Metric)
	})

	f, err := New(vectors, labels, opts...)
	if err != nil {
		return nil, err
	}

	if len(tombSection) > 0 {
		tombstones := roaring.New()
		if err := tombstones.UnmarshalBinary(tombSection); err != nil {
			return nil, fmt.Errorf("flat: tombstones: %w", err)
		}
		if max, ok := maxRow(tombstones); ok && int(max) >= rows {
			return nil, fmt.Errorf("flat: tombstone row %d out of range", max)
		}
		f.tombstones = tombstones
	}

	return f, nil
}

func maxRow(bm *roaring.Bitmap) (uint32, bool) {
	if bm.IsEmpty() {
		return 0, false
	}
	return bm.Maximum(), true
}
