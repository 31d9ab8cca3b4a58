package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"transcribeflow/internal/artifacts"
	"transcribeflow/internal/config"
	"transcribeflow/internal/engines"
	"transcribeflow/internal/models"
	"transcribeflow/internal/store"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// allowedExtensions is the audio upload allow-list.
var allowedExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true, ".flac": true,
	".ogg": true, ".opus": true, ".webm": true, ".mp4": true,
	".aac": true, ".wma": true,
}

// TranscriptionService owns the job lifecycle outside the worker:
// uploads create DRAFT rows, an explicit start promotes them to QUEUED,
// and deletes clean up both the row and its files.
type TranscriptionService struct {
	store store.TranscriptionStore
	cfg   *config.Provider
}

func NewTranscriptionService(s store.TranscriptionStore, cfg *config.Provider) *TranscriptionService {
	return &TranscriptionService{store: s, cfg: cfg}
}

// UploadOptions are the per-job settings accepted at upload time.
// Zero values fall back to configured defaults.
type UploadOptions struct {
	Engine        string
	Model         string
	Language      string
	InitialPrompt string
	MinSpeakers   int
	MaxSpeakers   int
}

// Upload stores the audio file and creates a DRAFT row. Draft jobs are
// invisible to the queue until Start promotes them.
func (s *TranscriptionService) Upload(ctx context.Context, filename string, src io.Reader, opts UploadOptions) (*models.Transcription, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}

	cfg := s.cfg.Current()
	engine := opts.Engine
	if engine == "" {
		engine = cfg.Transcription.DefaultEngine
	}
	if _, err := engines.ParseID(engine); err != nil {
		return nil, err
	}
	model := opts.Model
	if model == "" {
		model = cfg.Transcription.DefaultModel
	}

	id := uuid.New().String()
	storedPath := filepath.Join(cfg.UploadsPath(), id+ext)
	if err := saveFile(storedPath, src); err != nil {
		return nil, err
	}

	t := &models.Transcription{
		ID:           id,
		Filename:     filename,
		OriginalPath: storedPath,
		Engine:       engine,
		Model:        model,
		Status:       models.StatusDraft,
		CreatedAt:    time.Now().UTC(),
	}
	if opts.Language != "" {
		t.Language = &opts.Language
	}
	if opts.InitialPrompt != "" {
		t.InitialPrompt = &opts.InitialPrompt
	}
	if opts.MinSpeakers > 0 {
		t.MinSpeakers = &opts.MinSpeakers
	}
	if opts.MaxSpeakers > 0 {
		t.MaxSpeakers = &opts.MaxSpeakers
	}

	if err := s.store.Create(ctx, t); err != nil {
		os.Remove(storedPath)
		return nil, fmt.Errorf("create transcription: %w", err)
	}

	log.WithFields(log.Fields{"id": t.ID, "filename": filename, "engine": engine}).Info("upload accepted")
	return t, nil
}

// Start promotes a DRAFT row to QUEUED, handing it to the worker. Any
// other starting status is rejected.
func (s *TranscriptionService) Start(ctx context.Context, id string) (*models.Transcription, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.Status.CanTransition(models.StatusQueued) {
		return nil, fmt.Errorf("cannot start transcription in status %s", t.Status)
	}
	t.Status = models.StatusQueued
	if err := s.store.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("queue transcription: %w", err)
	}
	log.WithField("id", t.ID).Info("transcription queued")
	return t, nil
}

func (s *TranscriptionService) Get(ctx context.Context, id string) (*models.Transcription, error) {
	return s.store.Get(ctx, id)
}

func (s *TranscriptionService) List(ctx context.Context, limit int) ([]*models.Transcription, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.List(ctx, limit)
}

// Transcript loads the completed job's transcript.json.
func (s *TranscriptionService) Transcript(ctx context.Context, id string) (*artifacts.Transcript, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.OutputDir == nil {
		return nil, fmt.Errorf("transcription %s has no transcript yet", id)
	}
	return artifacts.Read(*t.OutputDir)
}

// RenameSpeakers stores display names for diarized speaker labels on
// the row and rewrites the transcript artifacts to match.
func (s *TranscriptionService) RenameSpeakers(ctx context.Context, id string, names map[string]string) (*artifacts.Transcript, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.OutputDir == nil {
		return nil, fmt.Errorf("transcription %s has no transcript yet", id)
	}

	raw, err := json.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("encode speaker names: %w", err)
	}
	if err := s.store.UpdateSpeakerNames(ctx, id, raw); err != nil {
		return nil, err
	}

	tr, err := artifacts.Read(*t.OutputDir)
	if err != nil {
		return nil, err
	}
	for label, name := range names {
		sp, ok := tr.Speakers[label]
		if !ok {
			continue
		}
		sp.Name = name
		tr.Speakers[label] = sp
	}
	if err := artifacts.Rewrite(*t.OutputDir, tr); err != nil {
		return nil, err
	}
	return tr, nil
}

// Delete removes the row together with its uploaded audio and output
// directory. File removal failures are logged, not fatal: the row is
// the source of truth.
func (s *TranscriptionService) Delete(ctx context.Context, id string) error {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := os.Remove(t.OriginalPath); err != nil && !os.IsNotExist(err) {
		log.WithError(err).WithField("path", t.OriginalPath).Warn("failed to remove uploaded audio")
	}
	if t.OutputDir != nil {
		if err := os.RemoveAll(*t.OutputDir); err != nil {
			log.WithError(err).WithField("path", *t.OutputDir).Warn("failed to remove output directory")
		}
	}
	return nil
}

func saveFile(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return fmt.Errorf("store upload: %w", err)
	}
	return nil
}
