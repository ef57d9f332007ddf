package worker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"videoproc/internal/adapters/storage/localfs"
	"videoproc/internal/config"
	"videoproc/internal/models"
	"videoproc/internal/pkg/errors"
	"videoproc/internal/pkg/logger"
	"videoproc/internal/ports"
	"videoproc/internal/worker/processor"
)

const fakeFFmpeg = `#!/bin/sh
out=""
prev=""
for a in "$@"; do
  case "$a" in
    *.mp4) if [ "$prev" != "-i" ]; then out="$a"; fi ;;
  esac
  prev="$a"
done
printf 'scaled' > "$out"
`

func newRunner(t *testing.T, d Deps) (*Runner, *localfs.LocalFS) {
	t.Helper()
	root := t.TempDir()
	bin := filepath.Join(root, "ffmpeg")
	if err := os.WriteFile(bin, []byte(fakeFFmpeg), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Storage.Provider = "localfs"
	cfg.Storage.LocalRoot = filepath.Join(root, "buckets")
	cfg.Staging.RawDir = filepath.Join(root, "raw-videos")
	cfg.Staging.ProcessedDir = filepath.Join(root, "processed-videos")
	cfg.Transcode.FFmpegPath = bin

	store := localfs.New(cfg.Storage.LocalRoot, "")
	d.Config = cfg
	d.Store = store
	d.Log = logger.Discard()

	r := NewRunner(d)
	if err := r.Setup(); err != nil {
		t.Fatal(err)
	}
	return r, store
}

func seed(t *testing.T, store *localfs.LocalFS, object string) {
	t.Helper()
	if _, err := store.PutObject(context.Background(), ports.PutObjectInput{
		Bucket: "raw-video-bucket", ObjectKey: object, Reader: strings.NewReader("raw"),
	}); err != nil {
		t.Fatal(err)
	}
}

func TestRunRecordsStatus(t *testing.T) {
	r, store := newRunner(t, Deps{})
	seed(t, store, "cat.mp4")
	ctx := context.Background()

	res, err := r.Run(ctx, "cat.mp4", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != processor.StateDone {
		t.Fatalf("unexpected state %q", res.State)
	}

	v, err := r.Videos().Get(ctx, "cat")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.Status != models.VideoProcessed || v.ProcessedObject != "processed-cat.mp4" || v.JobID != res.JobID {
		t.Fatalf("unexpected record %+v", v)
	}

	if _, err := r.Run(ctx, "cat.mp4", ""); !errors.IsCode(err, errors.CodeConflict) {
		t.Fatalf("expected CONFLICT on second run, got %v", err)
	}

	entries, _ := os.ReadDir(r.Area().RawDir())
	if len(entries) != 0 {
		t.Fatalf("raw staging not empty: %d entries", len(entries))
	}
}

func TestRunFailureIsRetryable(t *testing.T) {
	r, store := newRunner(t, Deps{})
	ctx := context.Background()

	if _, err := r.Run(ctx, "late.mp4", ""); !errors.IsRemoteIO(err) {
		t.Fatalf("expected REMOTE_IO_ERROR, got %v", err)
	}
	v, err := r.Videos().Get(ctx, "late")
	if err != nil || v.Status != models.VideoFailed || v.ErrorText == "" {
		t.Fatalf("unexpected record %+v, %v", v, err)
	}

	seed(t, store, "late.mp4")
	if _, err := r.Run(ctx, "late.mp4", ""); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

type busyClaimer struct{ released bool }

func (b *busyClaimer) Acquire(context.Context, string, string) error {
	return errors.Conflict("busy")
}
func (b *busyClaimer) Release(context.Context, string, string) error {
	b.released = true
	return nil
}

func TestRunRespectsClaims(t *testing.T) {
	c := &busyClaimer{}
	r, store := newRunner(t, Deps{Claimer: c})
	seed(t, store, "cat.mp4")

	if _, err := r.Run(context.Background(), "cat.mp4", ""); !errors.IsCode(err, errors.CodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
	if c.released {
		t.Fatal("claim not held must not be released")
	}
	if _, err := r.Videos().Get(context.Background(), "cat"); err == nil {
		t.Fatal("no status should be recorded without a claim")
	}
}

func TestRunRejectsEmptyName(t *testing.T) {
	r, _ := newRunner(t, Deps{})
	if _, err := r.Run(context.Background(), "", ""); !errors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
