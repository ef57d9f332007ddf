package worker

import (
	"videoproc/internal/config"
	"videoproc/internal/pkg/logger"
	"videoproc/internal/ports"
	"videoproc/internal/repositories"
	"videoproc/internal/worker/claim"
	"videoproc/internal/worker/transcoder"
)

// Deps are the collaborators a Runner needs. Videos and Claimer fall back
// to the in-memory store and no-op claims when nil.
type Deps struct {
	Config   *config.Config
	Store    ports.ObjectStore
	Videos   repositories.VideoStore
	Claimer  claim.Claimer
	Log      *logger.Logger
	Progress func(transcoder.Progress)
}
