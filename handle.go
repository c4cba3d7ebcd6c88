package vecgate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/vecgate/blobstore"
	"github.com/hupe1980/vecgate/blobstore/minio"
	"github.com/hupe1980/vecgate/blobstore/s3"
	"github.com/hupe1980/vecgate/index"
	_ "github.com/hupe1980/vecgate/index/flat" // registers the flat loader
)

// Handle is the loaded index shared by all requests.
//
// Search may be called from many goroutines. Engines that implement
// index.ConcurrentSearcher are called directly; any other engine is
// serialized behind a mutex.
type Handle struct {
	location string
	engine   index.Searcher
	typeName string

	serialize bool
	mu        sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

type contextSearcher interface {
	SearchContext(ctx context.Context, queries []float32, k int) (*index.SearchResult, error)
}

// Load opens the index at location and decodes it.
//
// location is a filesystem path, a file:// URL, s3://bucket/key or
// minio://bucket/key. Any failure is returned as a *LoadError.
func Load(ctx context.Context, location string, optFns ...Option) (*Handle, error) {
	o := applyOptions(optFns)
	start := time.Now()

	o.logger.InfoContext(ctx, fmt.Sprintf("Using %s as an index", location))

	h, err := load(ctx, location, &o)
	if err != nil {
		err = &LoadError{Location: location, Err: err}
		o.logger.LogLoad(ctx, location, 0, 0, time.Since(start), err)
		return nil, err
	}

	o.logger.LogLoad(ctx, location, h.Dimension(), h.Len(), time.Since(start), nil)
	return h, nil
}

func load(ctx context.Context, location string, o *options) (*Handle, error) {
	store, name, err := resolveStore(ctx, location, o)
	if err != nil {
		return nil, err
	}

	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}

	data, err := blobstore.ReadAll(ctx, blob)
	if err != nil {
		_ = blob.Close()
		return nil, err
	}

	// Loaders copy what they keep, so the mapping or download buffer is
	// released as soon as decoding is done.
	engine, err := index.Open(data)
	if cerr := blob.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("release index blob: %w", cerr)
	}
	if err != nil {
		return nil, err
	}

	return NewHandle(engine, location), nil
}

// resolveStore picks the blob store for location and the name to open in it.
func resolveStore(ctx context.Context, location string, o *options) (blobstore.BlobStore, string, error) {
	if o.store != nil {
		return o.store, location, nil
	}
	if location == "" {
		return nil, "", errors.New("empty index location")
	}

	u, err := url.Parse(location)
	// One-letter schemes are Windows drive letters.
	if err != nil || len(u.Scheme) <= 1 {
		return blobstore.NewLocalStore(""), location, nil
	}

	if u.Scheme == "file" {
		return blobstore.NewLocalStore(""), filepath.FromSlash(u.Host + u.Path), nil
	}

	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return nil, "", fmt.Errorf("location %q must name a bucket and a key", location)
	}

	var store blobstore.BlobStore
	switch u.Scheme {
	case "s3":
		s, err := s3.New(ctx, u.Host, o.s3Opts...)
		if err != nil {
			return nil, "", err
		}
		store = s
	case "minio":
		s, err := minio.New(o.minio, u.Host, "")
		if err != nil {
			return nil, "", err
		}
		store = s
	default:
		return nil, "", fmt.Errorf("unsupported location scheme %q", u.Scheme)
	}

	if o.cacheDir != "" {
		store = blobstore.NewCachingStore(store, o.cacheDir)
	}
	return store, key, nil
}

// NewHandle wraps an already opened engine.
func NewHandle(engine index.Searcher, location string) *Handle {
	_, concurrent := engine.(index.ConcurrentSearcher)
	name := "unknown"
	if n, ok := engine.(interface{ Name() string }); ok {
		name = n.Name()
	}
	return &Handle{
		location:  location,
		engine:    engine,
		typeName:  name,
		serialize: !concurrent,
	}
}

// Location returns the location the index was loaded from.
func (h *Handle) Location() string { return h.location }

// Dimension returns the fixed vector dimensionality of the index.
func (h *Handle) Dimension() int { return h.engine.Dimension() }

// Len returns the number of searchable vectors, or -1 if the engine does not
// report it.
func (h *Handle) Len() int {
	if l, ok := h.engine.(interface{ Len() int }); ok {
		return l.Len()
	}
	return -1
}

// Concurrent reports whether searches run without the handle's mutex.
func (h *Handle) Concurrent() bool { return !h.serialize }

// Info describes the loaded index.
func (h *Handle) Info() IndexInfo {
	info := IndexInfo{
		Location:   h.location,
		Type:       h.typeName,
		Dimension:  h.Dimension(),
		Count:      h.Len(),
		Concurrent: h.Concurrent(),
	}
	if m, ok := h.engine.(interface{ Metric() index.Metric }); ok {
		info.Metric = m.Metric().String()
	}
	return info
}

// Search runs one k-NN query per Dimension-sized chunk of flat.
//
// Engine failures are returned as *SearchError.
func (h *Handle) Search(ctx context.Context, flat []float32, k int) (*index.SearchResult, error) {
	if h.serialize {
		h.mu.Lock()
		defer h.mu.Unlock()
	}

	var (
		res *index.SearchResult
		err error
	)
	if cs, ok := h.engine.(contextSearcher); ok {
		res, err = cs.SearchContext(ctx, flat, k)
	} else {
		res, err = h.engine.Search(flat, k)
	}
	if err != nil {
		return nil, &SearchError{Err: err}
	}
	return res, nil
}

// Close releases the engine. It is idempotent.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		if c, ok := h.engine.(io.Closer); ok {
			h.closeErr = c.Close()
		}
	})
	return h.closeErr
}
