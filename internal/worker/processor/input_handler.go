package processor

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"videoproc/internal/pkg/errors"
	"videoproc/internal/ports"
)

// Paths resolves local staging names to file paths.
type Paths interface {
	RawPath(name string) (string, error)
	ProcessedPath(name string) (string, error)
}

// ErrPartialDownload marks a fetch that failed after the local raw file was
// created. The file may hold a truncated copy.
var ErrPartialDownload = stderrors.New("raw object partially written")

// InputHandler downloads raw objects into the raw staging directory.
type InputHandler struct {
	store  ports.ObjectStore
	bucket string
	paths  Paths
}

func NewInputHandler(store ports.ObjectStore, rawBucket string, paths Paths) *InputHandler {
	return &InputHandler{store: store, bucket: rawBucket, paths: paths}
}

// DownloadRaw streams the raw object into its local file, replacing any
// previous content. Every failure, local or remote, is a REMOTE_IO_ERROR.
func (ih *InputHandler) DownloadRaw(ctx context.Context, ref RawVideoRef) error {
	localPath, err := ih.paths.RawPath(ref.LocalName)
	if err != nil {
		return err
	}

	rc, err := ih.store.GetObject(ctx, ih.bucket, ref.ObjectName)
	if err != nil {
		return errors.RemoteIO(err, "bridge.download", "fetch raw object").
			WithField("bucket", ih.bucket).
			WithField("object", ref.ObjectName)
	}
	defer rc.Close()

	if created, err := saveToLocal(localPath, rc); err != nil {
		if created {
			err = fmt.Errorf("%w: %w", ErrPartialDownload, err)
		}
		return errors.RemoteIO(err, "bridge.download", "write raw object locally").
			WithField("object", ref.ObjectName).
			WithField("path", localPath)
	}
	return nil
}

// saveToLocal reports whether it got as far as creating the file.
func saveToLocal(localPath string, r io.Reader) (bool, error) {
	f, err := os.Create(localPath)
	if err != nil {
		return false, err
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return true, fmt.Errorf("copy: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return true, fmt.Errorf("sync: %w", err)
	}
	return true, f.Close()
}
