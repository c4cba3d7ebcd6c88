package vecgate

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/dgraph-io/ristretto/v2"
	farm "github.com/dgryski/go-farm"
)

// batchKey is the exact binary form of (k, vectors). Two batches have the
// same key iff they would produce the same response.
type batchKey []byte

func newBatchKey(b QueryBatch) batchKey {
	size := 8
	for _, v := range b.Vectors {
		size += 4 + 4*len(v)
	}
	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(b.K))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b.Vectors)))
	for _, v := range b.Vectors {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v)))
		for _, x := range v {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(x))
		}
	}
	return buf
}

type cacheEntry struct {
	key       batchKey
	neighbors [][]Neighbor
}

// resultCache maps batches to their neighbor lists. Entries are keyed by a
// 64-bit fingerprint and verified against the full key on lookup.
type resultCache struct {
	c *ristretto.Cache[uint64, *cacheEntry]
}

func newResultCache(maxEntries int64) (*resultCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[uint64, *cacheEntry]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &resultCache{c: c}, nil
}

func (rc *resultCache) get(key batchKey) ([][]Neighbor, bool) {
	e, ok := rc.c.Get(farm.Fingerprint64(key))
	if !ok || !bytes.Equal(e.key, key) {
		return nil, false
	}
	return e.neighbors, true
}

func (rc *resultCache) set(key batchKey, neighbors [][]Neighbor) {
	rc.c.Set(farm.Fingerprint64(key), &cacheEntry{key: key, neighbors: neighbors}, 1)
}

// wait blocks until pending writes are visible. Used by tests.
func (rc *resultCache) wait() {
	rc.c.Wait()
}

func (rc *resultCache) close() {
	rc.c.Close()
}
