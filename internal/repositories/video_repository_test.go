package repositories

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"videoproc/internal/models"
)

// exerciseStore runs the lifecycle every VideoStore must honor.
func exerciseStore(t *testing.T, store VideoStore) {
	t.Helper()
	ctx := context.Background()
	id := "vid-" + uuid.NewString()

	v := &models.Video{ID: id, RawObject: id + ".mp4", JobID: "job-1"}
	if err := store.MarkProcessing(ctx, v); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := store.MarkProcessing(ctx, &models.Video{ID: id, RawObject: id + ".mp4"}); !errors.Is(err, ErrVideoExists) {
		t.Fatalf("expected ErrVideoExists, got %v", err)
	}

	if err := store.MarkFailed(ctx, id, strings.Repeat("x", maxErrorText+10)); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.VideoFailed || len(got.ErrorText) != maxErrorText {
		t.Fatalf("unexpected failed record %+v", got)
	}

	// A multi-byte character straddling the limit must not be split.
	reason := strings.Repeat("a", maxErrorText-1) + "é…"
	if err := store.MarkFailed(ctx, id, reason); err != nil {
		t.Fatalf("MarkFailed with multi-byte reason: %v", err)
	}
	got, _ = store.Get(ctx, id)
	if !utf8.ValidString(got.ErrorText) || got.ErrorText != strings.Repeat("a", maxErrorText-1) {
		t.Fatalf("error text not cut on a rune boundary: len=%d", len(got.ErrorText))
	}
	// A failed video may be started again.
	if err := store.MarkProcessing(ctx, &models.Video{ID: id, RawObject: id + ".mp4", JobID: "job-2"}); err != nil {
		t.Fatalf("retry MarkProcessing: %v", err)
	}
	if err := store.MarkProcessed(ctx, id, "processed-"+id+".mp4", "https://cdn/x"); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	got, _ = store.Get(ctx, id)
	if got.Status != models.VideoProcessed || got.PublicURL != "https://cdn/x" || got.ErrorText != "" || got.JobID != "job-2" {
		t.Fatalf("unexpected processed record %+v", got)
	}

	if err := store.MarkFailed(ctx, "missing-"+id, "x"); !errors.Is(err, ErrVideoNotFound) {
		t.Fatalf("expected ErrVideoNotFound, got %v", err)
	}
	if _, err := store.Get(ctx, "missing-"+id); !errors.Is(err, ErrVideoNotFound) {
		t.Fatalf("expected ErrVideoNotFound, got %v", err)
	}
}

func TestMemoryVideoStore(t *testing.T) {
	exerciseStore(t, NewMemoryVideoStore())
}

// TestVideoRepository runs against a live database when TEST_DATABASE_URL
// is set.
func TestVideoRepository(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	repo := NewVideoRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	exerciseStore(t, repo)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"ascii cut", "abcdef", 4, "abcd"},
		{"two-byte rune straddles", "abcé", 4, "abc"},
		{"three-byte rune straddles", "ab…", 3, "ab"},
		{"rune ends at limit", "abé", 4, "abé"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			if got != tt.want || !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}
