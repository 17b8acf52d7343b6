package repository

import (
	"context"
	"sync"

	"soundscape/model"
)

// memoryRecordingRepository keeps the catalog in an ordered slice, newest
// first. It is the default driver; the process owns the only copy of the
// data, so a restart empties the catalog.
type memoryRecordingRepository struct {
	mu         sync.RWMutex
	recordings []*model.Recording
}

// NewMemoryRecordingRepository creates an empty in-memory catalog.
func NewMemoryRecordingRepository() RecordingRepository {
	return &memoryRecordingRepository{
		recordings: make([]*model.Recording, 0),
	}
}

// Create prepends the recording so iteration order stays newest-first.
func (r *memoryRecordingRepository) Create(ctx context.Context, rec *model.Recording) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *rec
	r.recordings = append([]*model.Recording{&copied}, r.recordings...)
	return nil
}

func (r *memoryRecordingRepository) GetByID(ctx context.Context, id string) (*model.Recording, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.recordings {
		if rec.ID == id {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRecordingRepository) List(ctx context.Context, filter ListFilter) ([]*model.Recording, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*model.Recording, 0, len(r.recordings))
	for _, rec := range r.recordings {
		if filter.BBox != nil && !filter.BBox.Contains(rec.Location) {
			continue
		}
		matched = append(matched, rec)
	}
	total := int64(len(matched))

	offset := filter.Offset
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]

	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	page := make([]*model.Recording, len(matched))
	for i, rec := range matched {
		copied := *rec
		page[i] = &copied
	}
	return page, total, nil
}

func (r *memoryRecordingRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, rec := range r.recordings {
		if rec.ID == id {
			r.recordings = append(r.recordings[:i], r.recordings[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (r *memoryRecordingRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.recordings)), nil
}
