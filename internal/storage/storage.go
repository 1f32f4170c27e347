package storage

import (
	"context"
	"errors"
	"io"
)

// ErrBucketNotFound reports an upload against a bucket that does not exist
// and was not auto-created.
var ErrBucketNotFound = errors.New("bucket not found")

// ObjectInfo describes a stored export artifact.
type ObjectInfo struct {
	Key  string
	Size int64
	ETag string
}

type PutOptions struct {
	ContentType string
}

// ObjectStore receives exported result sets. Exports are immutable one-shot
// artifacts, so the port is upload-only.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
}
