package index

import (
	"fmt"
	"sync"

	"github.com/hupe1980/vecgate/persistence"
)

// Loader constructs a searcher from the complete bytes of a stored index,
// header included. data is released once the loader returns, so the searcher
// must copy anything it keeps.
type Loader func(data []byte) (Searcher, error)

var (
	loaderMu sync.RWMutex
	loaders  = map[uint8]Loader{}
)

// RegisterLoader registers a loader for a specific on-disk index type.
//
// Index implementations should typically call this from an init() function.
func RegisterLoader(indexType uint8, loader Loader) {
	loaderMu.Lock()
	defer loaderMu.Unlock()
	loaders[indexType] = loader
}

// Open reads the file header at the start of data and dispatches to the
// loader registered for its index type.
func Open(data []byte) (Searcher, error) {
	header, err := persistence.ParseHeader(data)
	if err != nil {
		return nil, err
	}

	loaderMu.RLock()
	loader, ok := loaders[header.IndexType]
	loaderMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s (%d)", ErrUnsupportedIndex,
			persistence.IndexTypeName(header.IndexType), header.IndexType)
	}
	return loader(data)
}
