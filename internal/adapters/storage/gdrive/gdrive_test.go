package gdrive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/api/googleapi"

	"videoproc/internal/ports"
)

func TestNameQuery(t *testing.T) {
	tests := []struct {
		name     string
		folderID string
		file     string
		want     string
	}{
		{
			name:     "plain",
			folderID: "folder1",
			file:     "cat.mp4",
			want:     "name = 'cat.mp4' and 'folder1' in parents and trashed = false",
		},
		{
			name:     "quote in name",
			folderID: "folder1",
			file:     "bob's cat.mp4",
			want:     `name = 'bob\'s cat.mp4' and 'folder1' in parents and trashed = false`,
		},
		{
			name:     "backslash escaped before quote",
			folderID: "folder1",
			file:     `a\'b.mp4`,
			want:     `name = 'a\\\'b.mp4' and 'folder1' in parents and trashed = false`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nameQuery(tt.folderID, tt.file); got != tt.want {
				t.Errorf("nameQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMapErr(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound bool
	}{
		{"api 404", &googleapi.Error{Code: http.StatusNotFound}, true},
		{"wrapped api 404", fmt.Errorf("download: %w", &googleapi.Error{Code: http.StatusNotFound}), true},
		{"api 403", &googleapi.Error{Code: http.StatusForbidden}, false},
		{"other", errors.New("dial tcp: timeout"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapErr(tt.err)
			if errors.Is(got, ports.ErrObjectNotFound) != tt.notFound {
				t.Errorf("mapErr(%v) = %v, notFound want %v", tt.err, got, tt.notFound)
			}
		})
	}
}

func TestIDCache(t *testing.T) {
	// A nil service proves cached lookups never reach the API.
	c := NewClient(nil, map[string]string{"processed": "folder-p"})

	if url := c.PublicURL("processed", "processed-cat.mp4"); url != "" {
		t.Fatalf("PublicURL before upload = %q, want empty", url)
	}

	c.remember("processed", "processed-cat.mp4", "file-123")

	id, err := c.lookup(context.Background(), "processed", "processed-cat.mp4")
	if err != nil || id != "file-123" {
		t.Fatalf("lookup() = %q, %v", id, err)
	}
	if url := c.PublicURL("processed", "processed-cat.mp4"); url != "https://drive.google.com/uc?export=download&id=file-123" {
		t.Fatalf("PublicURL() = %q", url)
	}
	if url := c.PublicURL("raw", "processed-cat.mp4"); url != "" {
		t.Fatalf("cache leaked across buckets: %q", url)
	}
}

func TestLookupUnknownBucket(t *testing.T) {
	c := NewClient(nil, map[string]string{"raw": "folder-r"})
	if _, err := c.lookup(context.Background(), "elsewhere", "cat.mp4"); err == nil {
		t.Fatal("expected error for bucket without a folder")
	}
	if _, err := c.PutObject(context.Background(), ports.PutObjectInput{Bucket: "raw"}); err == nil {
		t.Fatal("expected error for empty object key")
	}
}
