package blobstore

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/hupe1980/vecgate/persistence"
)

// CachingStore mirrors blobs of a remote store into a local directory and
// serves the local copy memory-mapped.
//
// A cached copy is reused while its size matches the remote blob. Remove the
// directory to force a refresh.
type CachingStore struct {
	inner BlobStore
	dir   string
	local *LocalStore
	mu    sync.Mutex // serializes downloads
}

// NewCachingStore creates a new CachingStore writing into dir.
func NewCachingStore(inner BlobStore, dir string) *CachingStore {
	return &CachingStore{
		inner: inner,
		dir:   dir,
		local: NewLocalStore(dir),
	}
}

// Path returns the local file backing name.
func (s *CachingStore) Path(name string) string {
	return filepath.Join(s.dir, url.PathEscape(name))
}

// Open opens name from the local mirror, downloading it first if needed.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	remote, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = remote.Close() }()

	path := s.Path(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if fi, err := os.Stat(path); err == nil && fi.Size() == remote.Size() {
		return s.local.Open(ctx, path)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, err
	}

	data, err := ReadAll(ctx, remote)
	if err != nil {
		return nil, err
	}

	err = persistence.SaveToFile(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.local.Open(ctx, path)
}
