package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"voicetranscribe/internal/model"
)

type memoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]model.Transcription
}

// NewMemoryRepository returns a repository that keeps records in process
// memory. Used when no database is configured.
func NewMemoryRepository() TranscriptionRepository {
	return &memoryRepository{items: make(map[int64]model.Transcription)}
}

func (r *memoryRepository) Create(ctx context.Context, t *model.Transcription) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	t.ID = r.nextID
	r.items[t.ID] = clone(*t)
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id int64) (*model.Transcription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("transcription %d: %w", id, ErrNotFound)
	}
	t = clone(t)
	return &t, nil
}

func (r *memoryRepository) ListAll(ctx context.Context) ([]model.Transcription, error) {
	return r.filter(func(model.Transcription) bool { return true }), nil
}

func (r *memoryRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return fmt.Errorf("transcription %d: %w", id, ErrNotFound)
	}
	delete(r.items, id)
	return nil
}

func (r *memoryRepository) Search(ctx context.Context, term string) ([]model.Transcription, error) {
	term = strings.ToLower(term)
	return r.filter(func(t model.Transcription) bool {
		return strings.Contains(strings.ToLower(t.TranscribedText), term)
	}), nil
}

func (r *memoryRepository) ListByType(ctx context.Context, typ model.TranscriptionType) ([]model.Transcription, error) {
	return r.filter(func(t model.Transcription) bool { return t.TranscriptionType == typ }), nil
}

func (r *memoryRepository) ListByDateRange(ctx context.Context, start, end time.Time) ([]model.Transcription, error) {
	return r.filter(func(t model.Transcription) bool {
		return !t.CreatedAt.Before(start) && !t.CreatedAt.After(end)
	}), nil
}

func (r *memoryRepository) filter(keep func(model.Transcription) bool) []model.Transcription {
	r.mu.RLock()
	list := []model.Transcription{}
	for _, t := range r.items {
		if keep(t) {
			list = append(list, clone(t))
		}
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
	return list
}

// clone detaches the confidence pointer from the stored copy
func clone(t model.Transcription) model.Transcription {
	if t.Confidence != nil {
		c := *t.Confidence
		t.Confidence = &c
	}
	return t
}
