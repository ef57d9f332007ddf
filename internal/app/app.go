// Package app builds the long-lived dependencies shared by the API server
// and the CLI from a loaded configuration.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"videoproc/internal/config"
	"videoproc/internal/pkg/logger"
	"videoproc/internal/ports"
	"videoproc/internal/repositories"
	"videoproc/internal/storage"
	"videoproc/internal/worker"
	"videoproc/internal/worker/claim"
	"videoproc/internal/worker/transcoder"
)

// Closer is a named release hook, registered with the shutdown manager by
// the API server and run directly by the CLI.
type Closer struct {
	Name  string
	Close func(ctx context.Context) error
}

type App struct {
	Config  *config.Config
	Log     *logger.Logger
	Store   ports.ObjectStore
	Videos  repositories.VideoStore
	Pool    *pgxpool.Pool
	RDB     *redis.Client
	Runner  *worker.Runner
	Closers []Closer
}

// NewLogger builds the service logger from cfg.
func NewLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		AddSource:   cfg.Log.Source,
		ServiceName: "videoproc",
	})
}

// Build connects the configured backends and assembles the runner. On error
// everything opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger, progress func(transcoder.Progress)) (*App, error) {
	a := &App{Config: cfg, Log: log}

	store, err := storage.NewProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init storage provider: %w", err)
	}
	a.Store = store
	if c, ok := store.(io.Closer); ok {
		a.addCloser("storage", func(context.Context) error { return c.Close() })
	}
	log.Info("storage provider initialized", "provider", store.Provider())

	if cfg.Database.URL != "" {
		if err := a.openPostgres(ctx); err != nil {
			a.Close(ctx)
			return nil, err
		}
	} else {
		log.Info("no database configured, using in-memory video store")
		a.Videos = repositories.NewMemoryVideoStore()
	}

	var claimer claim.Claimer = claim.Noop{}
	if cfg.Redis.Addr != "" {
		if err := a.openRedis(ctx); err != nil {
			a.Close(ctx)
			return nil, err
		}
		claimer = claim.NewRedisClaimer(a.RDB, time.Duration(cfg.Redis.ClaimTTLSeconds)*time.Second)
	}

	a.Runner = worker.NewRunner(worker.Deps{
		Config:   cfg,
		Store:    store,
		Videos:   a.Videos,
		Claimer:  claimer,
		Log:      log,
		Progress: progress,
	})
	if err := a.Runner.Setup(); err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *App) openPostgres(ctx context.Context) error {
	a.Log.Info("connecting to PostgreSQL")
	pool, err := pgxpool.New(ctx, a.Config.Database.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	a.Pool = pool
	a.addCloser("postgres", func(context.Context) error {
		pool.Close()
		return nil
	})
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	repo := repositories.NewVideoRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure videos schema: %w", err)
	}
	a.Videos = repo
	a.Log.Info("PostgreSQL connected")
	return nil
}

func (a *App) openRedis(ctx context.Context) error {
	a.Log.Info("connecting to Redis")
	rdb := redis.NewClient(&redis.Options{Addr: a.Config.Redis.Addr})
	a.RDB = rdb
	a.addCloser("redis", func(context.Context) error { return rdb.Close() })
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	a.Log.Info("Redis connected")
	return nil
}

func (a *App) addCloser(name string, fn func(ctx context.Context) error) {
	a.Closers = append(a.Closers, Closer{Name: name, Close: fn})
}

// Close runs the closers in reverse order, logging failures.
func (a *App) Close(ctx context.Context) {
	for i := len(a.Closers) - 1; i >= 0; i-- {
		c := a.Closers[i]
		if err := c.Close(ctx); err != nil {
			a.Log.Warn("close failed", "resource", c.Name, "error", err.Error())
		}
	}
	a.Closers = nil
}
