package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"videoproc/internal/httpapi/handlers"
	"videoproc/internal/pkg/logger"
	"videoproc/internal/pkg/middleware"
)

func NewRouter(d handlers.Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	d.Log = log

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))

	h := handlers.New(d)

	r.Get("/health", h.Health)
	r.Post("/process-video", middleware.Handle(log, h.ProcessVideo))
	if d.Videos != nil {
		r.Get("/videos/{videoId}", middleware.Handle(log, h.GetVideo))
	}

	return r
}
