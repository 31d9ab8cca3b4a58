package primary

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"transcribeflow/internal/models"
	"transcribeflow/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *StoreImpl {
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestTranscription(createdAt time.Time) *models.Transcription {
	return &models.Transcription{
		ID:           uuid.New().String(),
		Filename:     "meeting.mp3",
		OriginalPath: "/tmp/uploads/meeting.mp3",
		Engine:       "whisper-cpp",
		Model:        "large-v2",
		Status:       models.StatusQueued,
		CreatedAt:    createdAt,
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	in := newTestTranscription(time.Now().UTC())
	in.Status = models.StatusDraft
	require.NoError(t, s.Create(ctx, in))

	out, err := s.Get(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, "meeting.mp3", out.Filename)
	assert.Equal(t, models.StatusDraft, out.Status)
	assert.Nil(t, out.OutputDir)
	assert.Nil(t, out.StartedAt)
}

func TestStore_GetNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.Get(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_OldestWithStatus_FIFO(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	newest := newTestTranscription(base.Add(2 * time.Minute))
	oldest := newTestTranscription(base)
	middle := newTestTranscription(base.Add(time.Minute))
	for _, tr := range []*models.Transcription{newest, oldest, middle} {
		require.NoError(t, s.Create(ctx, tr))
	}

	got, err := s.OldestWithStatus(ctx, models.StatusQueued)
	require.NoError(t, err)
	assert.Equal(t, oldest.ID, got.ID)
}

func TestStore_OldestWithStatus_IDTieBreak(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	a := newTestTranscription(createdAt)
	a.ID = "bbbbbbbb-0000-0000-0000-000000000000"
	b := newTestTranscription(createdAt)
	b.ID = "aaaaaaaa-0000-0000-0000-000000000000"
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))

	got, err := s.OldestWithStatus(ctx, models.StatusQueued)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
}

func TestStore_OldestWithStatus_Empty(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	draft := newTestTranscription(time.Now().UTC())
	draft.Status = models.StatusDraft
	require.NoError(t, s.Create(ctx, draft))

	_, err := s.OldestWithStatus(ctx, models.StatusQueued)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_Update(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	tr := newTestTranscription(time.Now().UTC())
	require.NoError(t, s.Create(ctx, tr))

	started := time.Now().UTC()
	outputDir := "/tmp/transcribed/2026-03-01_meeting"
	speakers := 2
	tr.Status = models.StatusCompleted
	tr.Progress = 100
	tr.StartedAt = &started
	tr.OutputDir = &outputDir
	tr.SpeakersCount = &speakers
	require.NoError(t, s.Update(ctx, tr))

	got, err := s.Get(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, float64(100), got.Progress)
	require.NotNil(t, got.OutputDir)
	assert.Equal(t, outputDir, *got.OutputDir)
	require.NotNil(t, got.SpeakersCount)
	assert.Equal(t, 2, *got.SpeakersCount)
}

func TestStore_UpdateNotFound(t *testing.T) {
	s := setupTestStore(t)

	tr := newTestTranscription(time.Now().UTC())
	err := s.Update(context.Background(), tr)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_UpdateSpeakerNames(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	tr := newTestTranscription(time.Now().UTC())
	require.NoError(t, s.Create(ctx, tr))

	names := json.RawMessage(`{"SPEAKER_00":"Alice","SPEAKER_01":"Bob"}`)
	require.NoError(t, s.UpdateSpeakerNames(ctx, tr.ID, names))

	got, err := s.Get(ctx, tr.ID)
	require.NoError(t, err)
	assert.JSONEq(t, string(names), string(got.SpeakerNames))
}

func TestStore_ResetStuck(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	processing := newTestTranscription(base)
	processing.Status = models.StatusProcessing
	processing.Progress = 50
	started := base
	processing.StartedAt = &started

	diarizing := newTestTranscription(base.Add(time.Second))
	diarizing.Status = models.StatusDiarizing
	diarizing.Progress = 50

	completed := newTestTranscription(base.Add(2 * time.Second))
	completed.Status = models.StatusCompleted
	completed.Progress = 100

	for _, tr := range []*models.Transcription{processing, diarizing, completed} {
		require.NoError(t, s.Create(ctx, tr))
	}

	n, err := s.ResetStuck(ctx, models.StatusProcessing, models.StatusDiarizing)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := s.Get(ctx, processing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, got.Status)
	assert.Equal(t, float64(0), got.Progress)
	assert.Nil(t, got.StartedAt)

	got, err = s.Get(ctx, completed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
}

func TestStore_ResetStuck_NoStatuses(t *testing.T) {
	s := setupTestStore(t)

	n, err := s.ResetStuck(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_Delete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	tr := newTestTranscription(time.Now().UTC())
	require.NoError(t, s.Create(ctx, tr))
	require.NoError(t, s.Delete(ctx, tr.ID))

	_, err := s.Get(ctx, tr.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, tr.ID), store.ErrNotFound)
}

func TestStore_List(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := newTestTranscription(base)
	second := newTestTranscription(base.Add(time.Minute))
	require.NoError(t, s.Create(ctx, first))
	require.NoError(t, s.Create(ctx, second))

	list, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	list, err = s.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
