package store

import (
	"context"
	"encoding/json"

	"transcribeflow/internal/models"
)

// TranscriptionStore is the durable job table. It is the single source
// of truth for queue state: the processor claims work by reading the
// oldest QUEUED row, and all coordination happens through row updates.
type TranscriptionStore interface {
	Create(ctx context.Context, t *models.Transcription) error
	Get(ctx context.Context, id string) (*models.Transcription, error)
	List(ctx context.Context, limit int) ([]*models.Transcription, error)

	// OldestWithStatus returns the oldest row in the given status,
	// ordered by creation time ascending with id as the tie-break.
	// Returns ErrNotFound when no such row exists.
	OldestWithStatus(ctx context.Context, status models.Status) (*models.Transcription, error)

	// Update persists every mutable field of the row. The single-worker
	// design means only one actor writes a non-terminal row at a time.
	Update(ctx context.Context, t *models.Transcription) error

	UpdateSpeakerNames(ctx context.Context, id string, names json.RawMessage) error

	// ResetStuck moves rows left in the given statuses by an abnormal
	// exit back to QUEUED with progress 0, returning how many were reset.
	ResetStuck(ctx context.Context, statuses ...models.Status) (int64, error)

	Delete(ctx context.Context, id string) error

	Close() error
}
