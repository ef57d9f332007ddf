package handlers

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"videoproc/internal/pkg/logger"
	"videoproc/internal/ports"
	"videoproc/internal/repositories"
	"videoproc/internal/worker/processor"
)

// VideoRunner processes one raw object.
type VideoRunner interface {
	Run(ctx context.Context, rawObject, processedObject string) (processor.Result, error)
}

// Deps holds the handler collaborators. Pool and RDB are nil when the
// corresponding backend is not configured.
type Deps struct {
	Runner    VideoRunner
	Videos    repositories.VideoStore
	Store     ports.ObjectStore
	RawBucket string
	Pool      *pgxpool.Pool
	RDB       *redis.Client
	Log       *logger.Logger
}

type Handler struct {
	runner    VideoRunner
	videos    repositories.VideoStore
	store     ports.ObjectStore
	rawBucket string
	pool      *pgxpool.Pool
	rdb       *redis.Client
	log       *logger.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		runner:    d.Runner,
		videos:    d.Videos,
		store:     d.Store,
		rawBucket: d.RawBucket,
		pool:      d.Pool,
		rdb:       d.RDB,
		log:       log.WithComponent("httpapi"),
	}
}
