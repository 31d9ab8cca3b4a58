package worker

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"transcribeflow/internal/artifacts"
	"transcribeflow/internal/config"
	"transcribeflow/internal/diarize"
	"transcribeflow/internal/engines"
	"transcribeflow/internal/metrics"
	"transcribeflow/internal/models"
	"transcribeflow/internal/store"

	log "github.com/sirupsen/logrus"
)

// Progress checkpoints reported to the store as a job moves through
// the pipeline. Clients poll the row, so each checkpoint is persisted.
const (
	progressTranscribed = 50
	progressDiarized    = 80
	progressDone        = 100
)

// OrchestratorDeps carries everything the orchestrator needs. Adapter
// access goes through the model manager so the idle-unload policy sees
// every load.
type OrchestratorDeps struct {
	Store     store.TranscriptionStore
	Models    *ModelManager
	Artifacts *artifacts.Writer
	Config    *config.Provider

	// Stat is injectable for tests; nil means os.Stat.
	Stat func(name string) (os.FileInfo, error)
}

// Orchestrator drives a single claimed job through its stages:
// PROCESSING, optionally DIARIZING, then COMPLETED or FAILED. Every
// exit path leaves the row in a terminal state.
type Orchestrator struct {
	deps OrchestratorDeps
	now  func() time.Time
}

func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	if deps.Stat == nil {
		deps.Stat = os.Stat
	}
	return &Orchestrator{deps: deps, now: time.Now}
}

// Process runs the full pipeline for t and reports whether the job
// completed. Errors are absorbed into a FAILED row rather than
// returned, so a bad job never takes the queue loop down with it.
func (o *Orchestrator) Process(ctx context.Context, t *models.Transcription) bool {
	// Settings updated over the API apply from the next job onward; a
	// single snapshot keeps this run internally consistent.
	cfg := o.deps.Config.Current()

	startedAt := o.now()
	t.Status = models.StatusProcessing
	t.StartedAt = &startedAt
	t.Progress = 0
	t.ErrorMessage = nil
	if err := o.deps.Store.Update(ctx, t); err != nil {
		log.WithError(err).WithField("id", t.ID).Error("failed to mark job processing")
		return false
	}

	log.WithFields(log.Fields{
		"id":       t.ID,
		"filename": t.Filename,
		"engine":   t.Engine,
		"model":    t.Model,
	}).Info("processing transcription")

	if _, err := o.deps.Stat(t.OriginalPath); err != nil {
		return o.fail(ctx, t, fmt.Errorf("audio file not found: %s", t.OriginalPath))
	}

	res, err := o.transcribe(ctx, cfg, t)
	if err != nil {
		return o.fail(ctx, t, err)
	}

	t.Progress = progressTranscribed
	if res.Language != "" {
		t.LanguageDetected = &res.Language
	}
	if err := o.deps.Store.Update(ctx, t); err != nil {
		return o.fail(ctx, t, fmt.Errorf("persist progress: %w", err))
	}

	segments, words, speakers, diarSeconds, err := o.diarize(ctx, cfg, t, res)
	if err != nil {
		return o.fail(ctx, t, err)
	}

	// Status stays wherever diarize left it (PROCESSING or DIARIZING);
	// only the final update moves the row to a terminal state.
	t.Progress = progressDiarized
	if err := o.deps.Store.Update(ctx, t); err != nil {
		return o.fail(ctx, t, fmt.Errorf("persist progress: %w", err))
	}

	outputDir, err := o.deps.Artifacts.Write(t, res, segments, words, speakers)
	if err != nil {
		return o.fail(ctx, t, fmt.Errorf("write output: %w", err))
	}

	completedAt := o.now()
	total := completedAt.Sub(startedAt).Seconds()
	t.Status = models.StatusCompleted
	t.Progress = progressDone
	t.OutputDir = &outputDir
	t.CompletedAt = &completedAt
	t.ProcessingSeconds = &total
	t.ASRSeconds = &res.ProcessingSeconds
	if diarSeconds > 0 {
		t.DiarizationSeconds = &diarSeconds
	}
	if res.DurationSeconds > 0 {
		t.DurationSeconds = &res.DurationSeconds
	}
	t.SpeakersCount = &speakers
	if err := o.deps.Store.Update(ctx, t); err != nil {
		log.WithError(err).WithField("id", t.ID).Error("failed to mark job completed")
		return false
	}

	metrics.RecordJobFinished("completed")
	log.WithFields(log.Fields{
		"id":       t.ID,
		"speakers": speakers,
		"seconds":  total,
		"output":   outputDir,
	}).Info("transcription completed")
	return true
}

func (o *Orchestrator) transcribe(ctx context.Context, cfg *config.Config, t *models.Transcription) (*models.TranscriptionResult, error) {
	id, err := engines.ParseID(t.Engine)
	if err != nil {
		return nil, err
	}
	eng, err := o.deps.Models.Engine(id)
	if err != nil {
		return nil, err
	}

	opts := engineOptions(cfg, t)
	language := ""
	if t.Language != nil {
		language = *t.Language
	}

	started := o.now()
	res, err := eng.Transcribe(ctx, t.OriginalPath, t.Model, language, opts)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}
	if res.ProcessingSeconds == 0 {
		res.ProcessingSeconds = o.now().Sub(started).Seconds()
	}
	metrics.ObserveStage("transcription", res.ProcessingSeconds)
	return res, nil
}

func engineOptions(cfg *config.Config, t *models.Transcription) engines.Options {
	w := cfg.Whisper
	opts := engines.Options{
		NoSpeechThreshold:       w.NoSpeechThreshold,
		LogProbThreshold:        w.LogProbThreshold,
		EntropyThreshold:        w.EntropyThreshold,
		ConditionOnPreviousText: w.ConditionOnPreviousText,
		InitialPrompt:           w.InitialPrompt,
	}
	if t.InitialPrompt != nil && *t.InitialPrompt != "" {
		opts.InitialPrompt = *t.InitialPrompt
	}
	return opts
}

// diarize applies the configured speaker-attribution method to the raw
// engine output. It returns the final segments and words together with
// the distinct speaker count. An unavailable backend degrades to a
// single unattributed speaker instead of failing the job.
func (o *Orchestrator) diarize(ctx context.Context, cfg *config.Config, t *models.Transcription, res *models.TranscriptionResult) (segments []models.Segment, words []models.Word, speakers int, seconds float64, err error) {
	segments = res.Segments
	words = res.Words
	speakers = 1

	method := cfg.Diarization.Method
	if method == "" || method == "none" {
		return segments, words, speakers, 0, nil
	}

	// Cloud engines label speakers during transcription; counting the
	// distinct labels is all that is left to do.
	if native := countSpeakers(segments); native > 0 {
		return segments, words, native, 0, nil
	}

	t.Status = models.StatusDiarizing
	if err := o.deps.Store.Update(ctx, t); err != nil {
		return nil, nil, 0, 0, fmt.Errorf("persist status: %w", err)
	}

	language := ""
	if t.LanguageDetected != nil {
		language = *t.LanguageDetected
	}
	started := o.now()

	switch method {
	case "accurate":
		aligner := o.deps.Models.Aligner()
		if !aligner.IsAvailable() {
			o.degrade(t, method)
			return segments, words, speakers, 0, nil
		}
		aligned, aerr := aligner.DiarizeWithAlignment(ctx, t.OriginalPath, res.Segments, language, t.NumSpeakersHint())
		if aerr != nil {
			return nil, nil, 0, 0, fmt.Errorf("diarization failed: %w", aerr)
		}
		segments = aligned.Segments
		words = aligned.Words
		speakers = len(aligned.Speakers)
		seconds = aligned.ProcessingSeconds
	default: // "fast"
		diarizer := o.deps.Models.Diarizer()
		if !diarizer.IsAvailable() {
			o.degrade(t, method)
			return segments, words, speakers, 0, nil
		}
		dres, derr := diarizer.Diarize(ctx, t.OriginalPath, t.NumSpeakersHint())
		if derr != nil {
			return nil, nil, 0, 0, fmt.Errorf("diarization failed: %w", derr)
		}
		segments = diarize.Merge(res.Segments, dres.Turns)
		speakers = len(dres.Speakers)
		seconds = dres.ProcessingSeconds
	}

	if seconds == 0 {
		seconds = o.now().Sub(started).Seconds()
	}
	if speakers == 0 {
		speakers = 1
	}
	metrics.ObserveStage("diarization", seconds)
	return segments, words, speakers, seconds, nil
}

func (o *Orchestrator) degrade(t *models.Transcription, method string) {
	metrics.DiarizationDegradedTotal.Inc()
	log.WithFields(log.Fields{
		"id":     t.ID,
		"method": method,
	}).Warn("diarization backend unavailable, producing unattributed transcript")
}

// fail moves the row to FAILED with the error message and always
// returns false. The row reaches a terminal state even when the store
// write itself fails, in which case boot recovery will requeue it.
func (o *Orchestrator) fail(ctx context.Context, t *models.Transcription, cause error) bool {
	msg := cause.Error()
	completedAt := o.now()
	t.Status = models.StatusFailed
	t.ErrorMessage = &msg
	t.CompletedAt = &completedAt
	if err := o.deps.Store.Update(ctx, t); err != nil {
		log.WithError(err).WithField("id", t.ID).Error("failed to mark job failed")
	}
	metrics.RecordJobFinished("failed")
	log.WithFields(log.Fields{"id": t.ID, "filename": t.Filename}).WithError(cause).Error("transcription failed")
	return false
}

// countSpeakers returns the number of distinct real speaker labels in
// segments, ignoring the unknown sentinel.
func countSpeakers(segments []models.Segment) int {
	seen := make(map[string]struct{})
	for _, s := range segments {
		if s.Speaker == "" || strings.EqualFold(s.Speaker, models.SpeakerUnknown) {
			continue
		}
		seen[s.Speaker] = struct{}{}
	}
	return len(seen)
}
