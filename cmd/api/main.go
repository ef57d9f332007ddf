package main

import (
	"context"
	"flag"
	"net/http"
	"time"

	"videoproc/internal/app"
	"videoproc/internal/config"
	"videoproc/internal/httpapi"
	"videoproc/internal/httpapi/handlers"
	"videoproc/internal/pkg/logger"
	"videoproc/internal/pkg/shutdown"
	"videoproc/internal/worker/transcoder"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewDefault().Fatal("failed to load configuration", err)
	}

	log := app.NewLogger(cfg)
	log.Info("starting videoproc API",
		"provider", cfg.Storage.Provider,
		"raw_bucket", cfg.Storage.RawBucket,
		"processed_bucket", cfg.Storage.ProcessedBucket,
		"target_height", cfg.Transcode.TargetHeight,
	)

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	progress := func(p transcoder.Progress) {
		log.Debug("transcode progress", "frame", p.Frame, "out_time", p.OutTime.String(), "speed", p.Speed)
	}
	a, err := app.Build(ctx, cfg, log, progress)
	if err != nil {
		log.Fatal("failed to initialize", err)
	}
	for _, c := range a.Closers {
		shutdownMgr.Register(c.Name, c.Close)
	}

	router := httpapi.NewRouter(handlers.Deps{
		Runner:    a.Runner,
		Videos:    a.Videos,
		Store:     a.Store,
		RawBucket: cfg.Storage.RawBucket,
		Pool:      a.Pool,
		RDB:       a.RDB,
		Log:       log,
	})

	// Jobs run inside the request, so there is no write timeout.
	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait(ctx)
}
