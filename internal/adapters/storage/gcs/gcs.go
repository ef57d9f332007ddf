package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"videoproc/internal/ports"
)

// Client implements ports.ObjectStore backed by Google Cloud Storage.
type Client struct {
	gcs *storage.Client
}

// New opens a GCS client. An empty credentialsFile uses application default
// credentials.
func New(ctx context.Context, credentialsFile string) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	c, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &Client{gcs: c}, nil
}

func (c *Client) Provider() string { return "gcs" }

// Close releases the underlying client.
func (c *Client) Close() error { return c.gcs.Close() }

func (c *Client) GetObject(ctx context.Context, bucket, objectKey string) (io.ReadCloser, error) {
	r, err := c.gcs.Bucket(bucket).Object(objectKey).NewReader(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return r, nil
}

func (c *Client) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if in.ObjectKey == "" {
		return ports.PutObjectOutput{}, fmt.Errorf("object_key is required")
	}

	// Canceling the writer's context before Close discards the upload.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := c.gcs.Bucket(in.Bucket).Object(in.ObjectKey).NewWriter(wctx)
	if in.ContentType != "" {
		w.ContentType = in.ContentType
	}

	n, err := commit(w, cancel, in.Reader)
	if err != nil {
		return ports.PutObjectOutput{}, fmt.Errorf("gcs upload failed: %w", mapErr(err))
	}

	return ports.PutObjectOutput{ObjectKey: in.ObjectKey, Size: n}, nil
}

func (c *Client) MakePublic(ctx context.Context, bucket, objectKey string) error {
	acl := c.gcs.Bucket(bucket).Object(objectKey).ACL()
	if err := acl.Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		return fmt.Errorf("gcs make public failed: %w", mapErr(err))
	}
	return nil
}

func (c *Client) PublicURL(bucket, objectKey string) string {
	segments := strings.Split(objectKey, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, strings.Join(segments, "/"))
}

// commit copies r into w and closes it. A failed copy aborts first so a
// truncated object is never finalized.
func commit(w io.WriteCloser, abort func(), r io.Reader) (int64, error) {
	n, err := io.Copy(w, r)
	if err != nil {
		abort()
		_ = w.Close()
		return n, err
	}
	// The object exists only once Close returns nil.
	if err := w.Close(); err != nil {
		return n, err
	}
	return n, nil
}

func mapErr(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%w: %v", ports.ErrObjectNotFound, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ports.ErrObjectNotFound, err)
	}
	return err
}
