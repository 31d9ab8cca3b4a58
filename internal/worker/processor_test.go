package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"transcribeflow/internal/models"
	"transcribeflow/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQueueStore serves jobs FIFO from a slice without a database.
type fakeQueueStore struct {
	mu   sync.Mutex
	jobs []*models.Transcription
}

func (f *fakeQueueStore) OldestWithStatus(_ context.Context, status models.Status) (*models.Transcription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.Status == status {
			return j, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeQueueStore) Update(_ context.Context, t *models.Transcription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, j := range f.jobs {
		if j.ID == t.ID {
			f.jobs[i] = t
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeQueueStore) Create(context.Context, *models.Transcription) error { return nil }
func (f *fakeQueueStore) Get(context.Context, string) (*models.Transcription, error) {
	return nil, store.ErrNotFound
}
func (f *fakeQueueStore) List(context.Context, int) ([]*models.Transcription, error) {
	return nil, nil
}
func (f *fakeQueueStore) UpdateSpeakerNames(context.Context, string, json.RawMessage) error {
	return nil
}
func (f *fakeQueueStore) ResetStuck(context.Context, ...models.Status) (int64, error) {
	return 0, nil
}
func (f *fakeQueueStore) Delete(context.Context, string) error { return nil }
func (f *fakeQueueStore) Close() error                         { return nil }

// fakeRunner marks every job completed and records the order.
type fakeRunner struct {
	mu        sync.Mutex
	processed []string
	panicOn   string
}

func (r *fakeRunner) Process(_ context.Context, t *models.Transcription) bool {
	r.mu.Lock()
	r.processed = append(r.processed, t.ID)
	r.mu.Unlock()
	if t.ID == r.panicOn {
		panic("engine blew up")
	}
	t.Status = models.StatusCompleted
	return true
}

func (r *fakeRunner) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.processed...)
}

type fakeLifecycle struct {
	mu      sync.Mutex
	unloads int
	resets  int
}

func (l *fakeLifecycle) Unload() {
	l.mu.Lock()
	l.unloads++
	l.mu.Unlock()
}

func (l *fakeLifecycle) Reset() {
	l.mu.Lock()
	l.resets++
	l.mu.Unlock()
}

func queuedJob(id string) *models.Transcription {
	return &models.Transcription{ID: id, Status: models.StatusQueued, CreatedAt: time.Now().UTC()}
}

func newTestProcessor(s store.TranscriptionStore, r JobRunner, l ModelLifecycle) *QueueProcessor {
	return NewQueueProcessor(s, r, l, time.Millisecond, 30*time.Second)
}

func TestProcessor_RunOnce_ProcessesOldestQueued(t *testing.T) {
	fs := &fakeQueueStore{jobs: []*models.Transcription{queuedJob("a"), queuedJob("b")}}
	runner := &fakeRunner{}
	p := newTestProcessor(fs, runner, &fakeLifecycle{})

	p.runOnce(context.Background())
	p.runOnce(context.Background())

	assert.Equal(t, []string{"a", "b"}, runner.ids())
}

func TestProcessor_RunOnce_EmptyQueueIsQuiet(t *testing.T) {
	runner := &fakeRunner{}
	p := newTestProcessor(&fakeQueueStore{}, runner, &fakeLifecycle{})

	p.runOnce(context.Background())

	assert.Empty(t, runner.ids())
}

func TestProcessor_RunOnce_SurvivesPanic(t *testing.T) {
	fs := &fakeQueueStore{jobs: []*models.Transcription{queuedJob("boom"), queuedJob("ok")}}
	runner := &fakeRunner{panicOn: "boom"}
	p := newTestProcessor(fs, runner, &fakeLifecycle{})

	require.NotPanics(t, func() { p.runOnce(context.Background()) })

	// The panicking job stays QUEUED in this fake, so requeue it out of
	// the way and confirm the loop keeps claiming.
	fs.jobs[0].Status = models.StatusFailed
	p.runOnce(context.Background())
	assert.Equal(t, []string{"boom", "ok"}, runner.ids())
}

func TestProcessor_IdleUnloadAfterTimeout(t *testing.T) {
	fs := &fakeQueueStore{jobs: []*models.Transcription{queuedJob("a")}}
	lifecycle := &fakeLifecycle{}
	p := newTestProcessor(fs, &fakeRunner{}, lifecycle)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	p.runOnce(context.Background()) // processes the job, models now loaded
	require.True(t, p.modelsLoaded)

	now = now.Add(29 * time.Second)
	p.runOnce(context.Background()) // idle, but under the threshold
	assert.Zero(t, lifecycle.unloads)
	assert.True(t, p.modelsLoaded)

	now = now.Add(time.Second)
	p.runOnce(context.Background()) // exactly at the threshold
	assert.Equal(t, 1, lifecycle.unloads)
	assert.False(t, p.modelsLoaded)
}

func TestProcessor_NoUnloadWhenNothingLoaded(t *testing.T) {
	lifecycle := &fakeLifecycle{}
	p := newTestProcessor(&fakeQueueStore{}, &fakeRunner{}, lifecycle)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	p.runOnce(context.Background())
	now = now.Add(time.Hour)
	p.runOnce(context.Background())

	assert.Zero(t, lifecycle.unloads)
}

func TestProcessor_UnloadFiresOnce(t *testing.T) {
	fs := &fakeQueueStore{jobs: []*models.Transcription{queuedJob("a")}}
	lifecycle := &fakeLifecycle{}
	p := newTestProcessor(fs, &fakeRunner{}, lifecycle)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	p.runOnce(context.Background())
	now = now.Add(time.Minute)
	p.runOnce(context.Background())
	now = now.Add(time.Minute)
	p.runOnce(context.Background())

	assert.Equal(t, 1, lifecycle.unloads)
}

func TestProcessor_StartIsIdempotent(t *testing.T) {
	p := newTestProcessor(&fakeQueueStore{}, &fakeRunner{}, &fakeLifecycle{})

	p.Start()
	first := p.done
	p.Start()
	assert.Equal(t, first, p.done)

	p.Stop()
	assert.Nil(t, p.cancel)
}

func TestProcessor_StopWithoutStart(t *testing.T) {
	p := newTestProcessor(&fakeQueueStore{}, &fakeRunner{}, &fakeLifecycle{})
	assert.NotPanics(t, p.Stop)
}

func TestProcessor_StartStopStart(t *testing.T) {
	fs := &fakeQueueStore{jobs: []*models.Transcription{queuedJob("a")}}
	runner := &fakeRunner{}
	p := newTestProcessor(fs, runner, &fakeLifecycle{})

	p.Start()
	p.Stop()
	p.Start()
	p.Stop()

	assert.NotEmpty(t, runner.ids())
}

func TestProcessor_ResetClearsLoadedFlag(t *testing.T) {
	fs := &fakeQueueStore{jobs: []*models.Transcription{queuedJob("a")}}
	lifecycle := &fakeLifecycle{}
	p := newTestProcessor(fs, &fakeRunner{}, lifecycle)

	p.runOnce(context.Background())
	require.True(t, p.modelsLoaded)

	p.Reset()

	assert.Equal(t, 1, lifecycle.resets)
	assert.False(t, p.modelsLoaded)
}
