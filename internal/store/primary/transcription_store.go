package primary

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"transcribeflow/internal/models"
	"transcribeflow/internal/store"
)

const transcriptionColumns = `id, filename, original_path, output_dir, engine, model, language,
	initial_prompt, min_speakers, max_speakers, status, progress, error_message,
	duration_seconds, speakers_count, language_detected, processing_seconds,
	asr_seconds, diarization_seconds, speaker_names, created_at, started_at, completed_at`

// Create inserts a new transcription row.
func (s *StoreImpl) Create(ctx context.Context, t *models.Transcription) error {
	query := `
		INSERT INTO transcriptions (` + transcriptionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.Filename, t.OriginalPath, t.OutputDir, t.Engine, t.Model, t.Language,
		t.InitialPrompt, t.MinSpeakers, t.MaxSpeakers, t.Status, t.Progress, t.ErrorMessage,
		t.DurationSeconds, t.SpeakersCount, t.LanguageDetected, t.ProcessingSeconds,
		t.ASRSeconds, t.DiarizationSeconds, nullableJSON(t.SpeakerNames),
		t.CreatedAt, t.StartedAt, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transcription %s: %w", t.ID, err)
	}
	return nil
}

// Get retrieves a transcription by id.
func (s *StoreImpl) Get(ctx context.Context, id string) (*models.Transcription, error) {
	query := `SELECT ` + transcriptionColumns + ` FROM transcriptions WHERE id = ?`
	t, err := scanTranscription(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get transcription %s: %w", id, err)
	}
	return t, nil
}

// List returns the most recently created transcriptions.
func (s *StoreImpl) List(ctx context.Context, limit int) ([]*models.Transcription, error) {
	query := `SELECT ` + transcriptionColumns + `
		FROM transcriptions ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list transcriptions: %w", err)
	}
	defer rows.Close()

	var out []*models.Transcription
	for rows.Next() {
		t, err := scanTranscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transcription row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcription rows: %w", err)
	}
	return out, nil
}

// OldestWithStatus returns the FIFO head for the given status. The id
// tie-break keeps claim order deterministic for rows created in the
// same instant.
func (s *StoreImpl) OldestWithStatus(ctx context.Context, status models.Status) (*models.Transcription, error) {
	query := `SELECT ` + transcriptionColumns + `
		FROM transcriptions WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT 1`
	t, err := scanTranscription(s.db.QueryRowContext(ctx, query, status))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get oldest %s transcription: %w", status, err)
	}
	return t, nil
}

// Update persists all mutable fields of the row.
func (s *StoreImpl) Update(ctx context.Context, t *models.Transcription) error {
	query := `UPDATE transcriptions SET
		output_dir = ?, engine = ?, model = ?, language = ?, initial_prompt = ?,
		min_speakers = ?, max_speakers = ?, status = ?, progress = ?, error_message = ?,
		duration_seconds = ?, speakers_count = ?, language_detected = ?,
		processing_seconds = ?, asr_seconds = ?, diarization_seconds = ?,
		speaker_names = ?, started_at = ?, completed_at = ?
		WHERE id = ?`

	res, err := s.db.ExecContext(ctx, query,
		t.OutputDir, t.Engine, t.Model, t.Language, t.InitialPrompt,
		t.MinSpeakers, t.MaxSpeakers, t.Status, t.Progress, t.ErrorMessage,
		t.DurationSeconds, t.SpeakersCount, t.LanguageDetected,
		t.ProcessingSeconds, t.ASRSeconds, t.DiarizationSeconds,
		nullableJSON(t.SpeakerNames), t.StartedAt, t.CompletedAt,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("update transcription %s: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transcription %s not found to update: %w", t.ID, store.ErrNotFound)
	}
	return nil
}

// UpdateSpeakerNames stores the speaker display-name overrides.
func (s *StoreImpl) UpdateSpeakerNames(ctx context.Context, id string, names json.RawMessage) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transcriptions SET speaker_names = ? WHERE id = ?`, nullableJSON(names), id)
	if err != nil {
		return fmt.Errorf("update speaker names for %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transcription %s not found to update speaker names: %w", id, store.ErrNotFound)
	}
	return nil
}

// ResetStuck re-queues rows abandoned mid-pipeline by a crash. The
// rows re-enter the front of the eligible set because claim order is
// by creation time.
func (s *StoreImpl) ResetStuck(ctx context.Context, statuses ...models.Status) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	args := make([]any, 0, len(statuses)+1)
	args = append(args, models.StatusQueued)
	for _, st := range statuses {
		args = append(args, st)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE transcriptions SET status = ?, progress = 0, started_at = NULL
		 WHERE status IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("reset stuck transcriptions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset stuck transcriptions: %w", err)
	}
	return n, nil
}

// Delete removes a transcription row.
func (s *StoreImpl) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transcription %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transcription %s not found to delete: %w", id, store.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTranscription(row rowScanner) (*models.Transcription, error) {
	t := &models.Transcription{}
	var speakerNames sql.NullString
	err := row.Scan(
		&t.ID, &t.Filename, &t.OriginalPath, &t.OutputDir, &t.Engine, &t.Model, &t.Language,
		&t.InitialPrompt, &t.MinSpeakers, &t.MaxSpeakers, &t.Status, &t.Progress, &t.ErrorMessage,
		&t.DurationSeconds, &t.SpeakersCount, &t.LanguageDetected, &t.ProcessingSeconds,
		&t.ASRSeconds, &t.DiarizationSeconds, &speakerNames,
		&t.CreatedAt, &t.StartedAt, &t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if speakerNames.Valid {
		t.SpeakerNames = json.RawMessage(speakerNames.String)
	}
	return t, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// Ensure StoreImpl satisfies the TranscriptionStore interface.
var _ store.TranscriptionStore = (*StoreImpl)(nil)
