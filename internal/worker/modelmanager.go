package worker

import (
	"runtime"
	"sync"

	"transcribeflow/internal/config"
	"transcribeflow/internal/diarize"
	"transcribeflow/internal/engines"
	"transcribeflow/internal/metrics"

	log "github.com/sirupsen/logrus"
)

// ModelManager owns the expensive adapter instances (engines, diarizer,
// aligner). Adapters are constructed lazily on first use, cached across
// jobs, and dropped either when the queue processor observes a long
// enough idle window (Unload) or when configuration changes (Reset).
// Model handles are private to the single worker, so the mutex only
// guards against Reset arriving from the HTTP layer mid-job.
type ModelManager struct {
	mu       sync.Mutex
	cfg      *config.Provider
	engines  map[engines.ID]engines.Engine
	diarizer diarize.Diarizer
	aligner  diarize.Aligner

	// Constructors are injectable for tests.
	newEngine   func(id engines.ID, cfg *config.Config) (engines.Engine, error)
	newDiarizer func(cfg *config.Config) diarize.Diarizer
	newAligner  func(cfg *config.Config) diarize.Aligner
}

func NewModelManager(cfg *config.Provider) *ModelManager {
	return &ModelManager{
		cfg:       cfg,
		engines:   make(map[engines.ID]engines.Engine),
		newEngine: engines.New,
		newDiarizer: func(cfg *config.Config) diarize.Diarizer {
			d := cfg.Diarization
			return diarize.NewPyannoteDiarizer(d.PyannoteCommand, d.HFToken, d.MinSpeakers, d.MaxSpeakers)
		},
		newAligner: func(cfg *config.Config) diarize.Aligner {
			d := cfg.Diarization
			return diarize.NewWhisperXAligner(d.WhisperXCommand, d.HFToken, d.MinSpeakers, d.MaxSpeakers)
		},
	}
}

// Engine returns the cached engine for id, constructing it on first use.
func (m *ModelManager) Engine(id engines.ID) (engines.Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if eng, ok := m.engines[id]; ok {
		return eng, nil
	}
	eng, err := m.newEngine(id, m.cfg.Current())
	if err != nil {
		return nil, err
	}
	m.engines[id] = eng
	return eng, nil
}

// Diarizer returns the cached fast-path diarizer, constructing it on
// first use.
func (m *ModelManager) Diarizer() diarize.Diarizer {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.diarizer == nil {
		m.diarizer = m.newDiarizer(m.cfg.Current())
	}
	return m.diarizer
}

// Aligner returns the cached accurate-path aligner, constructing it on
// first use.
func (m *ModelManager) Aligner() diarize.Aligner {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.aligner == nil {
		m.aligner = m.newAligner(m.cfg.Current())
	}
	return m.aligner
}

// Unload drops all cached adapter instances, asks diarization backends
// to release their warm model state, and requests a garbage collection
// pass. Safe to call when nothing is loaded.
func (m *ModelManager) Unload() {
	m.mu.Lock()
	if m.diarizer != nil {
		m.diarizer.Release()
	}
	if m.aligner != nil {
		m.aligner.Release()
	}
	m.engines = make(map[engines.ID]engines.Engine)
	m.diarizer = nil
	m.aligner = nil
	m.mu.Unlock()

	runtime.GC()
	metrics.SetModelsLoaded(false)
	log.Debug("model manager: cached adapters dropped")
}

// Reset invalidates cached adapters after a configuration change, so
// the next job reconstructs them from the new settings instead of
// reusing stale instances.
func (m *ModelManager) Reset() {
	log.Info("model manager: reset requested, adapters will be rebuilt on next job")
	m.Unload()
}
