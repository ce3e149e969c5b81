package repository

import (
	"context"
	"errors"
	"time"

	"voicetranscribe/internal/model"
)

// ErrNotFound is returned when no transcription has the requested ID
var ErrNotFound = errors.New("transcription not found")

// TranscriptionRepository defines the interface for transcription record access.
// Every listing is ordered by CreatedAt, newest first.
type TranscriptionRepository interface {
	// Create stores a new record and assigns its ID. A zero CreatedAt is set to now.
	Create(ctx context.Context, t *model.Transcription) error

	// GetByID retrieves a record by ID
	GetByID(ctx context.Context, id int64) (*model.Transcription, error)

	// ListAll retrieves every record
	ListAll(ctx context.Context) ([]model.Transcription, error)

	// Delete removes a record by ID
	Delete(ctx context.Context, id int64) error

	// Search matches term as a case-insensitive substring of the transcribed text
	Search(ctx context.Context, term string) ([]model.Transcription, error)

	// ListByType retrieves records produced by one call path
	ListByType(ctx context.Context, typ model.TranscriptionType) ([]model.Transcription, error)

	// ListByDateRange retrieves records created within [start, end]
	ListByDateRange(ctx context.Context, start, end time.Time) ([]model.Transcription, error)
}
