package processor

import (
	stderrors "errors"

	"videoproc/internal/pkg/errors"
	"videoproc/internal/worker/staging"
)

// Cleanup removes a job's local staging files.
type Cleanup struct {
	paths Paths
}

func NewCleanup(paths Paths) *Cleanup {
	return &Cleanup{paths: paths}
}

// CleanupJob deletes the local raw and processed files. Both deletions are
// attempted; missing files are fine.
func (c *Cleanup) CleanupJob(job Job) error {
	var errs []error

	if p, err := c.paths.RawPath(job.Raw.LocalName); err == nil {
		if err := staging.DeleteFile(p); err != nil {
			errs = append(errs, err)
		}
	}
	if p, err := c.paths.ProcessedPath(job.Processed.LocalName); err == nil {
		if err := staging.DeleteFile(p); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Filesystem(stderrors.Join(errs...), "processor.cleanup", "remove local files")
}

// CleanupRaw deletes only the local raw file. Used when the fetch died after
// creating it and nothing else of the job exists yet.
func (c *Cleanup) CleanupRaw(job Job) error {
	p, err := c.paths.RawPath(job.Raw.LocalName)
	if err != nil {
		return nil
	}
	if err := staging.DeleteFile(p); err != nil {
		return errors.Filesystem(err, "processor.cleanup", "remove partial raw file")
	}
	return nil
}
