// Package blobstore provides read access to stored index files.
//
// BlobStore is the interface for opening immutable blobs by name.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: Local filesystem with mmap support
//   - MemoryStore: In-memory blobs for tests
//   - CachingStore: Local mirror of a remote store
//   - s3.Store: Amazon S3 with range reads and concurrent downloads
//   - minio.Store: MinIO and other S3-compatible services
//
// Use ReadAll to obtain a blob's full contents; it avoids copies for
// Mappable blobs and uses the backend downloader for Fetchers.
package blobstore
