package processor

import (
	"context"
	"time"

	"videoproc/internal/pkg/errors"
	"videoproc/internal/pkg/logger"
)

// Fetcher downloads a raw object into staging.
type Fetcher interface {
	DownloadRaw(ctx context.Context, ref RawVideoRef) error
}

// Converter transcodes a staged raw file into a staged processed file.
type Converter interface {
	Convert(ctx context.Context, rawName, processedName string) error
}

// Publisher uploads a staged processed file and returns its public URL.
type Publisher interface {
	UploadProcessed(ctx context.Context, ref ProcessedVideoRef) (string, error)
}

// Cleaner removes a job's local files.
type Cleaner interface {
	CleanupJob(job Job) error
	CleanupRaw(job Job) error
}

type Deps struct {
	Fetcher   Fetcher
	Converter Converter
	Publisher Publisher
	Cleaner   Cleaner
	Log       *logger.Logger
}

// Processor runs one job through fetch, convert, publish and cleanup.
type Processor struct {
	fetcher   Fetcher
	converter Converter
	publisher Publisher
	cleaner   Cleaner
	log       *logger.Logger
}

func New(d Deps) *Processor {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Processor{
		fetcher:   d.Fetcher,
		converter: d.Converter,
		publisher: d.Publisher,
		cleaner:   d.Cleaner,
		log:       log.WithComponent("processor"),
	}
}

// ProcessJob runs the stages in order. A failed fetch touches no local file
// except a raw copy it had started writing; from the convert stage on, both
// local files are gone when it returns.
func (p *Processor) ProcessJob(ctx context.Context, job Job) (Result, error) {
	log := p.log.FromContext(ctx).WithJobID(job.ID).WithObject(job.Raw.ObjectName)
	start := time.Now()
	res := Result{JobID: job.ID, ProcessedObject: job.Processed.ObjectName}

	// 1. Fetch
	res.State = StateFetching
	log.WithStage(string(StateFetching)).Debug("fetching raw object", "local_name", job.Raw.LocalName)
	if err := p.fetcher.DownloadRaw(ctx, job.Raw); err != nil {
		return p.failFetch(ctx, log, job, res, start, err)
	}

	// 2. Convert
	res.State = StateConverting
	log.WithStage(string(StateConverting)).Debug("converting", "processed_local_name", job.Processed.LocalName)
	if err := p.converter.Convert(ctx, job.Raw.LocalName, job.Processed.LocalName); err != nil {
		return p.failJob(log, job, res, start, stageError(ctx, err, errors.CodeTranscode, "processor.convert", "convert failed"))
	}

	// 3. Publish
	res.State = StatePublishing
	log.WithStage(string(StatePublishing)).Debug("publishing", "processed_object", job.Processed.ObjectName)
	url, err := p.publisher.UploadProcessed(ctx, job.Processed)
	if err != nil {
		return p.failJob(log, job, res, start, stageError(ctx, err, errors.CodeRemoteIO, "processor.publish", "publish failed"))
	}
	res.PublicURL = url

	// 4. Cleanup
	res.State = StateCleaningUp
	if err := p.cleaner.CleanupJob(job); err != nil {
		res.State = StateFailed
		res.FailedStage = StateCleaningUp
		res.Duration = time.Since(start)
		wrapped := stageError(ctx, err, errors.CodeFilesystem, "processor.cleanup", "cleanup failed")
		log.Error("cleanup failed after publish", "code", string(errors.GetCode(wrapped)), "error", err.Error())
		return res, wrapped
	}

	res.State = StateDone
	res.Duration = time.Since(start)
	log.Info("video processed",
		"processed_object", job.Processed.ObjectName,
		"public_url", url,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// failFetch ends a job whose download failed. The processed name may belong
// to another job's file, so only a raw copy this fetch created is removed.
func (p *Processor) failFetch(ctx context.Context, log *logger.Logger, job Job, res Result, start time.Time, err error) (Result, error) {
	cause := stageError(ctx, err, errors.CodeRemoteIO, "processor.fetch", "fetch failed")
	res = markFailed(log, res, start, cause)
	if errors.Is(err, ErrPartialDownload) {
		if cerr := p.cleaner.CleanupRaw(job); cerr != nil {
			log.Warn("partial raw file not removed", "error", cerr.Error())
		}
	}
	return res, cause
}

// failJob records the failed stage and removes local files. Cleanup errors
// are logged only; cause is what the caller sees.
func (p *Processor) failJob(log *logger.Logger, job Job, res Result, start time.Time, cause error) (Result, error) {
	res = markFailed(log, res, start, cause)
	if err := p.cleaner.CleanupJob(job); err != nil {
		log.Warn("cleanup after failure did not complete", "error", err.Error())
	}
	return res, cause
}

func markFailed(log *logger.Logger, res Result, start time.Time, cause error) Result {
	res.FailedStage = res.State
	res.State = StateFailed
	res.Duration = time.Since(start)

	log = log.WithStage(string(res.FailedStage))
	var e *errors.Error
	if errors.As(cause, &e) {
		log.Error("job failed", "code", string(e.Code), "op", e.Op, "error", cause.Error())
	} else {
		log.Error("job failed", "error", cause.Error())
	}
	return res
}

// stageError gives an uncoded failure the stage's kind. Coded errors from the
// stage pass through as they are; a canceled job reports CANCELED whatever
// the stage made of it.
func stageError(ctx context.Context, err error, code errors.Code, op, message string) error {
	if ctx.Err() != nil && !errors.IsCanceled(err) {
		return errors.Canceled(err, op, "job canceled")
	}
	if errors.GetCode(err) != errors.CodeInternal {
		return err
	}
	return errors.WrapWithCode(err, code, op, message)
}
