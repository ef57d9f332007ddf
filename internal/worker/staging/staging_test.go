package staging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"videoproc/internal/pkg/errors"
)

func TestSetupIsIdempotent(t *testing.T) {
	root := t.TempDir()
	area := New(filepath.Join(root, "raw-videos"), filepath.Join(root, "nested", "processed-videos"), nil)

	for i := 0; i < 2; i++ {
		if err := area.Setup(); err != nil {
			t.Fatalf("Setup call %d: %v", i+1, err)
		}
	}
	for _, dir := range []string{area.RawDir(), area.ProcessedDir()} {
		st, err := os.Stat(dir)
		if err != nil || !st.IsDir() {
			t.Fatalf("expected directory at %s: %v", dir, err)
		}
	}
}

func TestEnsureDirectoryKeepsContents(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "raw")
	if err := EnsureDirectory(dir); err != nil {
		t.Fatalf("EnsureDirectory: %v", err)
	}
	keep := filepath.Join(dir, "keep.mp4")
	if err := os.WriteFile(keep, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := EnsureDirectory(dir); err != nil {
		t.Fatalf("second EnsureDirectory: %v", err)
	}
	if !Exists(keep) {
		t.Fatal("existing file removed by EnsureDirectory")
	}
}

func TestEnsureDirectoryBlockedByFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw-videos")
	if err := os.WriteFile(path, []byte("not a dir"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := EnsureDirectory(path)
	if !errors.IsFilesystem(err) {
		t.Fatalf("expected FILESYSTEM_ERROR, got %v", err)
	}
}

func TestDeleteFileIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.mp4")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := DeleteFile(path); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if Exists(path) {
		t.Fatal("file still exists after delete")
	}
	if err := DeleteFile(path); err != nil {
		t.Fatalf("second delete should succeed, got %v", err)
	}
}

func TestDeleteFileRefusesDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := DeleteFile(dir); !errors.IsFilesystem(err) {
		t.Fatalf("expected FILESYSTEM_ERROR, got %v", err)
	}
	if !Exists(dir) {
		t.Fatal("directory removed")
	}
}

func TestPathsRejectEscapingNames(t *testing.T) {
	area := New("/tmp/raw", "/tmp/processed", nil)

	got, err := area.RawPath("cat.mp4")
	if err != nil || got != filepath.Join("/tmp/raw", "cat.mp4") {
		t.Fatalf("RawPath = %q, %v", got, err)
	}
	got, err = area.ProcessedPath("processed-cat.mp4")
	if err != nil || got != filepath.Join("/tmp/processed", "processed-cat.mp4") {
		t.Fatalf("ProcessedPath = %q, %v", got, err)
	}

	for _, name := range []string{"", " ", ".", "..", "../etc/passwd", "a/b.mp4", `a\b.mp4`} {
		if _, err := area.RawPath(name); !errors.IsValidation(err) {
			t.Errorf("RawPath(%q): expected validation error, got %v", name, err)
		}
	}
}

func TestClaimExcludesSecondHolder(t *testing.T) {
	area := New(filepath.Join(t.TempDir(), "raw"), filepath.Join(t.TempDir(), "processed"), nil)

	first, err := area.Claim("cat.mp4")
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}

	if _, err := area.Claim("cat.mp4"); !errors.IsCode(err, errors.CodeConflict) {
		t.Fatalf("expected CONFLICT for second claim, got %v", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if Exists(filepath.Join(area.RawDir(), ".cat.mp4.lock")) {
		t.Fatal("lock file left behind")
	}

	again, err := area.Claim("cat.mp4")
	if err != nil {
		t.Fatalf("claim after release: %v", err)
	}
	_ = again.Release()
}

func TestSweepRemovesOnlyStaleFiles(t *testing.T) {
	root := t.TempDir()
	area := New(filepath.Join(root, "raw"), filepath.Join(root, "processed"), nil)
	if err := area.Setup(); err != nil {
		t.Fatal(err)
	}

	stale := filepath.Join(area.RawDir(), "old.mp4")
	fresh := filepath.Join(area.ProcessedDir(), "new.mp4")
	for _, p := range []string{stale, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	result := area.Sweep(time.Hour)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0] != stale {
		t.Fatalf("unexpected removals: %v", result.Removed)
	}
	if !Exists(fresh) {
		t.Fatal("fresh file removed")
	}
}
