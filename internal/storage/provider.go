// Package storage defines the persistence contracts shared by the fetch
// cache, the post-process cache and the publish sink. Backends live in
// sub-packages (local, memory, redis, gcs).
package storage

import (
	"context"
	"io"
)

// BlobStore writes named objects and returns a URI for each.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// KV is a byte-oriented key/value store. Get reports found=false for a
// missing key rather than an error.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte) error
}

// Backend names accepted by configuration.
const (
	BackendLocal  = "local"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendGCS    = "gcs"
)
