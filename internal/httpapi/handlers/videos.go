package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"videoproc/internal/httpkit"
	"videoproc/internal/pkg/errors"
	"videoproc/internal/repositories"
)

// GetVideo handles GET /videos/{videoId}.
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "videoId")
	v, err := h.videos.Get(r.Context(), id)
	if stderrors.Is(err, repositories.ErrVideoNotFound) {
		return errors.New(errors.CodeNotFound, "video not found").WithField("video_id", id)
	}
	if err != nil {
		return errors.Wrap(err, "httpapi.get_video", "load video")
	}
	httpkit.WriteJSON(w, http.StatusOK, v)
	return nil
}
