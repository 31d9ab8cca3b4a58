package app

import (
	"context"
	"fmt"
	"os"

	"transcribeflow/internal/artifacts"
	"transcribeflow/internal/config"
	"transcribeflow/internal/llm"
	"transcribeflow/internal/models"
	"transcribeflow/internal/services"
	"transcribeflow/internal/store"
	"transcribeflow/internal/store/primary"
	"transcribeflow/internal/worker"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// App wires configuration, the store, the worker, and the services
// together. Commands reach it through the cobra context.
type App struct {
	// Config hands out snapshots; runtime settings updates publish a
	// new one via Refresh.
	Config *config.Provider
	Store  store.TranscriptionStore

	Artifacts *artifacts.Writer
	Models    *worker.ModelManager
	Processor *worker.QueueProcessor
	LLM       *llm.Client

	Transcriptions *services.TranscriptionService
	Templates      *services.TemplateService
	PostProcess    *services.PostProcessService
}

func NewApp() (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg)

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	app := &App{Config: config.NewProvider(cfg)}
	if err := app.initStore(cfg); err != nil {
		return nil, err
	}
	app.initWorker(cfg)
	app.initServices(cfg)

	log.WithField("base_path", cfg.BasePath).Debug("application initialized")
	return app, nil
}

func (a *App) initStore(cfg *config.Config) error {
	s, err := primary.NewStore(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	a.Store = s
	return nil
}

// initWorker wires the processing pipeline. Poll and idle timings are
// fixed at boot; model and diarization settings are re-read per job
// through the provider.
func (a *App) initWorker(cfg *config.Config) {
	a.Artifacts = artifacts.NewWriter(cfg.TranscribedPath())
	a.Models = worker.NewModelManager(a.Config)
	orchestrator := worker.NewOrchestrator(worker.OrchestratorDeps{
		Store:     a.Store,
		Models:    a.Models,
		Artifacts: a.Artifacts,
		Config:    a.Config,
	})
	a.Processor = worker.NewQueueProcessor(
		a.Store, orchestrator, a.Models,
		cfg.PollInterval(), cfg.IdleUnloadTimeout(),
	)
}

func (a *App) initServices(cfg *config.Config) {
	a.LLM = llm.NewClient(llm.Options{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
	})
	a.Transcriptions = services.NewTranscriptionService(a.Store, a.Config)
	a.Templates = services.NewTemplateService(cfg.TemplatesPath())
	a.PostProcess = services.NewPostProcessService(a.LLM, a.Templates)
}

// RecoverStuckJobs requeues rows a previous process left mid-pipeline.
// PROCESSING and DIARIZING both go back to QUEUED with progress 0; the
// job reruns from the start rather than resuming a half-done stage.
func (a *App) RecoverStuckJobs(ctx context.Context) error {
	n, err := a.Store.ResetStuck(ctx, models.StatusProcessing, models.StatusDiarizing)
	if err != nil {
		return fmt.Errorf("recover stuck jobs: %w", err)
	}
	if n > 0 {
		log.WithField("count", n).Warn("requeued jobs left in flight by a previous run")
	}
	return nil
}

func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			log.WithError(err).Warn("failed to close store")
		}
	}
}

func setupLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if cfg.Log.File == "" {
		log.SetOutput(os.Stderr)
		return
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   true,
	})
}
