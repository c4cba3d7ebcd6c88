// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket", func(o *s3.Options) {
//	    o.Region = "us-east-1"
//	})
//
//	h, err := vecgate.Load(ctx, "s3://my-bucket/indexes/main.vgf")
//
// # Features
//
//   - Range reads through ReadAt
//   - Concurrent multi-part downloads through blobstore.ReadAll
//   - Custom endpoints and path-style addressing for S3-compatible services
package s3
