// Package worker wires the staging area, transcoder, object store and status
// store into a Runner that processes one uploaded video per call.
package worker

import (
	"context"
	stderrors "errors"

	"videoproc/internal/models"
	"videoproc/internal/pkg/errors"
	"videoproc/internal/pkg/logger"
	"videoproc/internal/repositories"
	"videoproc/internal/worker/claim"
	"videoproc/internal/worker/processor"
	"videoproc/internal/worker/staging"
	"videoproc/internal/worker/transcoder"
)

type Runner struct {
	area      *staging.Area
	parser    *processor.JobParser
	processor *processor.Processor
	videos    repositories.VideoStore
	claimer   claim.Claimer
	log       *logger.Logger
}

func NewRunner(d Deps) *Runner {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	videos := d.Videos
	if videos == nil {
		videos = repositories.NewMemoryVideoStore()
	}
	claimer := d.Claimer
	if claimer == nil {
		claimer = claim.Noop{}
	}

	cfg := d.Config
	area := staging.New(cfg.Staging.RawDir, cfg.Staging.ProcessedDir, log)

	var opts []transcoder.Option
	if d.Progress != nil {
		opts = append(opts, transcoder.WithProgress(d.Progress))
	}
	tc := transcoder.New(transcoder.Config{
		FFmpegPath:   cfg.Transcode.FFmpegPath,
		FFprobePath:  cfg.Transcode.FFprobePath,
		TargetHeight: cfg.Transcode.TargetHeight,
		Verify:       cfg.Transcode.VerifyOutput,
	}, area, log, opts...)

	p := processor.New(processor.Deps{
		Fetcher:   processor.NewInputHandler(d.Store, cfg.Storage.RawBucket, area),
		Converter: tc,
		Publisher: processor.NewOutputHandler(d.Store, cfg.Storage.ProcessedBucket, area),
		Cleaner:   processor.NewCleanup(area),
		Log:       log,
	})

	return &Runner{
		area:      area,
		parser:    processor.NewJobParser(cfg.Storage.ProcessedPrefix, cfg.Staging.IsolateJobs),
		processor: p,
		videos:    videos,
		claimer:   claimer,
		log:       log.WithComponent("worker"),
	}
}

// Setup creates the staging directories.
func (r *Runner) Setup() error {
	return r.area.Setup()
}

func (r *Runner) Area() *staging.Area { return r.area }

func (r *Runner) Videos() repositories.VideoStore { return r.videos }

// Run processes rawObject. An empty processedObject uses the configured
// prefix. A video that is already processing or processed is a CONFLICT.
func (r *Runner) Run(ctx context.Context, rawObject, processedObject string) (processor.Result, error) {
	job, err := r.parser.Parse(rawObject, processedObject)
	if err != nil {
		return processor.Result{}, err
	}

	ctx = logger.ContextWithJobID(ctx, job.ID)
	log := r.log.FromContext(ctx).WithObject(job.Raw.ObjectName)
	videoID := processor.VideoID(job.Raw.ObjectName)
	// Bookkeeping after the job must run even when the caller gave up.
	bg := context.WithoutCancel(ctx)

	if err := r.claimer.Acquire(ctx, job.Raw.ObjectName, job.ID); err != nil {
		return processor.Result{JobID: job.ID}, err
	}
	defer func() {
		if err := r.claimer.Release(bg, job.Raw.ObjectName, job.ID); err != nil {
			log.Warn("release claim failed", "error", err.Error())
		}
	}()

	local, err := r.area.Claim(job.Raw.LocalName)
	if err != nil {
		return processor.Result{JobID: job.ID}, err
	}
	defer func() {
		if err := local.Release(); err != nil {
			log.Warn("release staging lock failed", "error", err.Error())
		}
	}()

	video := &models.Video{
		ID:              videoID,
		RawObject:       job.Raw.ObjectName,
		ProcessedObject: job.Processed.ObjectName,
		JobID:           job.ID,
	}
	if err := r.videos.MarkProcessing(ctx, video); err != nil {
		if stderrors.Is(err, repositories.ErrVideoExists) {
			return processor.Result{JobID: job.ID}, errors.Conflict("video is already processing or processed").
				WithField("video_id", videoID)
		}
		return processor.Result{JobID: job.ID}, errors.WrapWithCode(err, errors.CodeUnavailable, "worker.status", "record processing status")
	}

	log.Info("processing video", "video_id", videoID, "processed_object", job.Processed.ObjectName)
	res, runErr := r.processor.ProcessJob(ctx, job)

	if runErr != nil {
		if err := r.videos.MarkFailed(bg, videoID, runErr.Error()); err != nil {
			log.Error("record failed status", "error", err.Error())
		}
		return res, runErr
	}
	if err := r.videos.MarkProcessed(bg, videoID, job.Processed.ObjectName, res.PublicURL); err != nil {
		log.Error("record processed status", "error", err.Error())
	}
	return res, nil
}
