package ports

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned (possibly wrapped) by ObjectStore
// implementations when the named object does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

type PutObjectInput struct {
	Bucket      string
	ObjectKey   string
	ContentType string
	Reader      io.Reader
	Size        int64
}

type PutObjectOutput struct {
	ObjectKey string
	Size      int64
}

// ObjectStore is a whole-object store addressed by bucket and key
// (gcs, gdrive, localfs).
type ObjectStore interface {
	Provider() string

	GetObject(ctx context.Context, bucket, objectKey string) (io.ReadCloser, error)
	PutObject(ctx context.Context, in PutObjectInput) (PutObjectOutput, error)

	// MakePublic grants unauthenticated read access to an existing object.
	MakePublic(ctx context.Context, bucket, objectKey string) error

	// PublicURL is the address an unauthenticated client reads a public
	// object from. It may be empty when the provider has none.
	PublicURL(bucket, objectKey string) string
}
