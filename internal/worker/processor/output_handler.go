package processor

import (
	"context"
	"os"

	"videoproc/internal/pkg/errors"
	"videoproc/internal/ports"
)

// OutputHandler uploads processed files and makes them public.
type OutputHandler struct {
	store  ports.ObjectStore
	bucket string
	paths  Paths
}

func NewOutputHandler(store ports.ObjectStore, processedBucket string, paths Paths) *OutputHandler {
	return &OutputHandler{store: store, bucket: processedBucket, paths: paths}
}

// UploadProcessed uploads the local processed file and grants public read.
// A visibility failure leaves the uploaded object in place.
func (oh *OutputHandler) UploadProcessed(ctx context.Context, ref ProcessedVideoRef) (string, error) {
	localPath, err := oh.paths.ProcessedPath(ref.LocalName)
	if err != nil {
		return "", err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", errors.RemoteIO(err, "bridge.upload", "open processed file").
			WithField("path", localPath)
	}
	defer f.Close()

	var size int64
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}

	if _, err := oh.store.PutObject(ctx, ports.PutObjectInput{
		Bucket:      oh.bucket,
		ObjectKey:   ref.ObjectName,
		ContentType: ContentTypeFor(ref.ObjectName),
		Reader:      f,
		Size:        size,
	}); err != nil {
		return "", errors.RemoteIO(err, "bridge.upload", "upload processed object").
			WithField("bucket", oh.bucket).
			WithField("object", ref.ObjectName)
	}

	if err := oh.store.MakePublic(ctx, oh.bucket, ref.ObjectName); err != nil {
		return "", errors.RemoteIO(err, "bridge.make_public", "make processed object public").
			WithField("bucket", oh.bucket).
			WithField("object", ref.ObjectName)
	}

	return oh.store.PublicURL(oh.bucket, ref.ObjectName), nil
}
