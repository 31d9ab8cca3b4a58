package services

import (
	"context"
	"strings"
	"testing"

	"transcribeflow/internal/config"
	"transcribeflow/internal/models"
	"transcribeflow/internal/store"
	"transcribeflow/internal/store/primary"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTranscriptionService(t *testing.T) *TranscriptionService {
	t.Helper()

	cfg := &config.Config{BasePath: t.TempDir()}
	cfg.Transcription.DefaultEngine = "whisper-cpp"
	cfg.Transcription.DefaultModel = "large-v2"
	require.NoError(t, cfg.EnsureDirectories())

	s, err := primary.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return NewTranscriptionService(s, config.NewProvider(cfg))
}

func TestTranscriptionService_UploadCreatesDraft(t *testing.T) {
	svc := setupTranscriptionService(t)
	ctx := context.Background()

	tr, err := svc.Upload(ctx, "meeting.mp3", strings.NewReader("audio"), UploadOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.StatusDraft, tr.Status)
	assert.Equal(t, "whisper-cpp", tr.Engine)
	assert.Equal(t, "large-v2", tr.Model)
	assert.FileExists(t, tr.OriginalPath)

	stored, err := svc.Get(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, stored.Status)
}

func TestTranscriptionService_UploadRejectsUnknownExtension(t *testing.T) {
	svc := setupTranscriptionService(t)

	_, err := svc.Upload(context.Background(), "malware.exe", strings.NewReader("x"), UploadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestTranscriptionService_UploadRejectsUnknownEngine(t *testing.T) {
	svc := setupTranscriptionService(t)

	_, err := svc.Upload(context.Background(), "a.mp3", strings.NewReader("x"),
		UploadOptions{Engine: "whisperx"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown engine")
}

func TestTranscriptionService_UploadHonorsOptions(t *testing.T) {
	svc := setupTranscriptionService(t)

	tr, err := svc.Upload(context.Background(), "a.wav", strings.NewReader("x"), UploadOptions{
		Engine:        "deepgram",
		Model:         "nova-3",
		Language:      "uk",
		InitialPrompt: "Names: Alice",
		MinSpeakers:   2,
		MaxSpeakers:   2,
	})
	require.NoError(t, err)

	assert.Equal(t, "deepgram", tr.Engine)
	assert.Equal(t, "nova-3", tr.Model)
	require.NotNil(t, tr.Language)
	assert.Equal(t, "uk", *tr.Language)
	assert.Equal(t, 2, tr.NumSpeakersHint())
}

func TestTranscriptionService_StartQueuesDraft(t *testing.T) {
	svc := setupTranscriptionService(t)
	ctx := context.Background()

	tr, err := svc.Upload(ctx, "a.mp3", strings.NewReader("x"), UploadOptions{})
	require.NoError(t, err)

	queued, err := svc.Start(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, queued.Status)

	// A second start is a lifecycle violation.
	_, err = svc.Start(ctx, tr.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot start")
}

func TestTranscriptionService_StartNotFound(t *testing.T) {
	svc := setupTranscriptionService(t)

	_, err := svc.Start(context.Background(), "missing-id")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTranscriptionService_DeleteRemovesFiles(t *testing.T) {
	svc := setupTranscriptionService(t)
	ctx := context.Background()

	tr, err := svc.Upload(ctx, "a.mp3", strings.NewReader("x"), UploadOptions{})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, tr.ID))

	assert.NoFileExists(t, tr.OriginalPath)
	_, err = svc.Get(ctx, tr.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
