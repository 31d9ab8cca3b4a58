package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"transcribeflow/internal/metrics"
	"transcribeflow/internal/models"
	"transcribeflow/internal/store"

	log "github.com/sirupsen/logrus"
)

// JobRunner is the unit of work the processor executes per claimed job.
type JobRunner interface {
	Process(ctx context.Context, t *models.Transcription) bool
}

// ModelLifecycle is the slice of ModelManager the processor drives.
type ModelLifecycle interface {
	Unload()
	Reset()
}

// QueueProcessor polls the store for QUEUED rows and runs them one at a
// time through the runner. The store is the only coordination point:
// there is no broker, and FIFO ordering comes from the claim query.
// Between jobs it watches the idle clock and unloads models after the
// configured quiet window.
type QueueProcessor struct {
	store  store.TranscriptionStore
	runner JobRunner
	models ModelLifecycle

	pollInterval time.Duration
	idleTimeout  time.Duration
	now          func() time.Time

	mu           sync.Mutex
	cancel       context.CancelFunc
	done         chan struct{}
	modelsLoaded bool
	lastActivity time.Time
}

func NewQueueProcessor(s store.TranscriptionStore, runner JobRunner, models ModelLifecycle, pollInterval, idleTimeout time.Duration) *QueueProcessor {
	return &QueueProcessor{
		store:        s,
		runner:       runner,
		models:       models,
		pollInterval: pollInterval,
		idleTimeout:  idleTimeout,
		now:          time.Now,
	}
}

// Start launches the poll loop. Calling Start on a running processor is
// a no-op.
func (p *QueueProcessor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
	log.WithField("poll_interval", p.pollInterval).Info("queue processor started")
}

// Stop cancels the poll wait and blocks until the loop exits. A job
// already in flight runs to its terminal state first; only the waiting
// between polls is interrupted.
func (p *QueueProcessor) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Info("queue processor stopped")
}

// Reset drops cached model instances after a configuration change. The
// next claimed job rebuilds them from the new settings.
func (p *QueueProcessor) Reset() {
	p.models.Reset()
	p.mu.Lock()
	p.modelsLoaded = false
	p.mu.Unlock()
}

func (p *QueueProcessor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		p.runOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.pollInterval):
		}
	}
}

// runOnce performs a single poll cycle: claim the oldest QUEUED row and
// run it, or check the idle-unload clock when the queue is empty. A
// panic in the runner is contained here so the loop survives it.
func (p *QueueProcessor) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("queue processor recovered from panic")
		}
	}()

	job, err := p.store.OldestWithStatus(ctx, models.StatusQueued)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			p.maybeUnload()
		} else if !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("failed to poll queue")
		}
		return
	}

	p.markActive()
	// The active job is allowed to finish even when Stop is called, so
	// it does not run under the loop context.
	p.runner.Process(context.Background(), job)
	p.markActive()
}

// markActive records model residency and restarts the idle clock.
func (p *QueueProcessor) markActive() {
	p.mu.Lock()
	p.modelsLoaded = true
	p.lastActivity = p.now()
	p.mu.Unlock()
	metrics.SetModelsLoaded(true)
}

func (p *QueueProcessor) maybeUnload() {
	p.mu.Lock()
	idle := p.modelsLoaded && p.now().Sub(p.lastActivity) >= p.idleTimeout
	if idle {
		p.modelsLoaded = false
	}
	p.mu.Unlock()

	if !idle {
		return
	}
	log.WithField("idle_timeout", p.idleTimeout).Info("queue idle, unloading models")
	p.models.Unload()
	metrics.ModelUnloadsTotal.Inc()
}
