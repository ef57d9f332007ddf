package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"videoproc/internal/ports"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

// Client implements ports.ObjectStore backed by Google Drive.
// Each bucket name maps to a Drive folder ID; object keys are file names
// inside that folder.
type Client struct {
	srv     *drive.Service
	folders map[string]string

	mu  sync.Mutex
	ids map[string]string // bucket/key -> Drive file ID
}

func NewClient(srv *drive.Service, folders map[string]string) *Client {
	return &Client{srv: srv, folders: folders, ids: make(map[string]string)}
}

func (c *Client) Provider() string { return "gdrive" }

func (c *Client) GetObject(ctx context.Context, bucket, objectKey string) (io.ReadCloser, error) {
	id, err := c.lookup(ctx, bucket, objectKey)
	if err != nil {
		return nil, err
	}

	resp, err := c.srv.Files.Get(id).
		SupportsAllDrives(true).
		Context(ctx).
		Download()
	if err != nil {
		return nil, mapErr(err)
	}
	return resp.Body, nil
}

func (c *Client) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if in.ObjectKey == "" {
		return ports.PutObjectOutput{}, fmt.Errorf("object_key is required")
	}
	folderID, err := c.folder(in.Bucket)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}

	file := &drive.File{Name: in.ObjectKey, Parents: []string{folderID}}
	call := c.srv.Files.Create(file).SupportsAllDrives(true)
	if in.ContentType != "" {
		call = call.Media(in.Reader, googleapi.ContentType(in.ContentType))
	} else {
		call = call.Media(in.Reader)
	}

	created, err := call.Context(ctx).Do()
	if err != nil {
		return ports.PutObjectOutput{}, fmt.Errorf("gdrive upload failed: %w", err)
	}

	c.remember(in.Bucket, in.ObjectKey, created.Id)
	return ports.PutObjectOutput{ObjectKey: in.ObjectKey, Size: in.Size}, nil
}

// MakePublic grants "anyone with the link" reader access.
func (c *Client) MakePublic(ctx context.Context, bucket, objectKey string) error {
	id, err := c.lookup(ctx, bucket, objectKey)
	if err != nil {
		return err
	}

	perm := &drive.Permission{Type: "anyone", Role: "reader"}
	if _, err := c.srv.Permissions.Create(id, perm).
		SupportsAllDrives(true).
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("gdrive make public failed: %w", mapErr(err))
	}
	return nil
}

// PublicURL returns a direct download link for objects this client has
// already resolved, and "" otherwise.
func (c *Client) PublicURL(bucket, objectKey string) string {
	c.mu.Lock()
	id := c.ids[bucket+"/"+objectKey]
	c.mu.Unlock()
	if id == "" {
		return ""
	}
	return "https://drive.google.com/uc?export=download&id=" + id
}

func (c *Client) folder(bucket string) (string, error) {
	id, ok := c.folders[bucket]
	if !ok || id == "" {
		return "", fmt.Errorf("gdrive: no folder configured for bucket %q", bucket)
	}
	return id, nil
}

// lookup resolves a file name inside the bucket folder to its Drive ID. The
// newest file wins when several share a name.
func (c *Client) lookup(ctx context.Context, bucket, objectKey string) (string, error) {
	c.mu.Lock()
	id, ok := c.ids[bucket+"/"+objectKey]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	folderID, err := c.folder(bucket)
	if err != nil {
		return "", err
	}

	list, err := c.srv.Files.List().
		Q(nameQuery(folderID, objectKey)).
		Fields("files(id, name)").
		OrderBy("createdTime desc").
		PageSize(1).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", mapErr(err)
	}
	if len(list.Files) == 0 {
		return "", fmt.Errorf("%w: gdrive %s/%s", ports.ErrObjectNotFound, bucket, objectKey)
	}

	c.remember(bucket, objectKey, list.Files[0].Id)
	return list.Files[0].Id, nil
}

func (c *Client) remember(bucket, objectKey, id string) {
	c.mu.Lock()
	c.ids[bucket+"/"+objectKey] = id
	c.mu.Unlock()
}

func nameQuery(folderID, name string) string {
	escape := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false",
		escape.Replace(name), escape.Replace(folderID))
}

func mapErr(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ports.ErrObjectNotFound, err)
	}
	return err
}
