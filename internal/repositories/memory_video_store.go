package repositories

import (
	"context"
	"sync"
	"time"

	"videoproc/internal/models"
)

// MemoryVideoStore is the VideoStore used when no database is configured.
// Records live for the life of the process.
type MemoryVideoStore struct {
	mu     sync.Mutex
	videos map[string]models.Video
	now    func() time.Time
}

func NewMemoryVideoStore() *MemoryVideoStore {
	return &MemoryVideoStore{videos: make(map[string]models.Video), now: time.Now}
}

func (s *MemoryVideoStore) Ping(context.Context) error { return nil }

func (s *MemoryVideoStore) MarkProcessing(_ context.Context, v *models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	existing, ok := s.videos[v.ID]
	if ok && existing.Status != models.VideoFailed {
		return ErrVideoExists
	}
	v.Status = models.VideoProcessing
	v.PublicURL = ""
	v.ErrorText = ""
	v.CreatedAt = now
	if ok {
		v.CreatedAt = existing.CreatedAt
	}
	v.UpdatedAt = now
	s.videos[v.ID] = *v
	return nil
}

func (s *MemoryVideoStore) MarkProcessed(_ context.Context, id, processedObject, publicURL string) error {
	return s.update(id, func(v *models.Video) {
		v.Status = models.VideoProcessed
		v.ProcessedObject = processedObject
		v.PublicURL = publicURL
		v.ErrorText = ""
	})
}

func (s *MemoryVideoStore) MarkFailed(_ context.Context, id, reason string) error {
	return s.update(id, func(v *models.Video) {
		v.Status = models.VideoFailed
		v.ErrorText = truncate(reason, maxErrorText)
	})
}

func (s *MemoryVideoStore) Get(_ context.Context, id string) (*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return nil, ErrVideoNotFound
	}
	return &v, nil
}

func (s *MemoryVideoStore) update(id string, fn func(*models.Video)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return ErrVideoNotFound
	}
	fn(&v)
	v.UpdatedAt = s.now().UTC()
	s.videos[id] = v
	return nil
}
