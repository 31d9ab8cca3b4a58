package engines

import (
	"fmt"

	"transcribeflow/internal/config"
)

// ID identifies a transcription engine. The set is closed: jobs carry
// an ID string, and anything outside this enum is rejected at parse
// time instead of being dispatched by name.
type ID string

const (
	WhisperCPP ID = "whisper-cpp"
	Deepgram   ID = "deepgram"
	AssemblyAI ID = "assemblyai"
)

// ParseID validates an engine identifier from a job row or API request.
func ParseID(s string) (ID, error) {
	switch ID(s) {
	case WhisperCPP, Deepgram, AssemblyAI:
		return ID(s), nil
	}
	return "", fmt.Errorf("unknown engine: %q", s)
}

// Info describes one engine for the API layer.
type Info struct {
	ID                ID       `json:"id"`
	Name              string   `json:"name"`
	Models            []string `json:"models"`
	RequiresAPIKey    bool     `json:"requires_api_key"`
	NativeDiarization bool     `json:"native_diarization"`
}

var catalog = []Info{
	{
		ID:     WhisperCPP,
		Name:   "Whisper (local)",
		Models: []string{"large-v3-turbo", "large-v3", "large-v2", "medium", "small", "base", "tiny"},
	},
	{
		ID:                Deepgram,
		Name:              "Deepgram",
		Models:            []string{"nova-3", "nova-2"},
		RequiresAPIKey:    true,
		NativeDiarization: true,
	},
	{
		ID:                AssemblyAI,
		Name:              "AssemblyAI",
		Models:            []string{"best", "nano"},
		RequiresAPIKey:    true,
		NativeDiarization: true,
	},
}

// Catalog returns the engine definitions in a stable order.
func Catalog() []Info {
	out := make([]Info, len(catalog))
	copy(out, catalog)
	return out
}

// constructors maps each engine ID to its builder. Adding an engine
// means adding an ID constant, a catalog entry, and a constructor.
var constructors = map[ID]func(cfg *config.Config) Engine{
	WhisperCPP: func(cfg *config.Config) Engine {
		return NewWhisperCPPEngine(cfg.Whisper.BinaryPath, cfg.Whisper.ModelDir)
	},
	Deepgram: func(cfg *config.Config) Engine {
		return NewDeepgramEngine(cfg.Engines.DeepgramAPIKey)
	},
	AssemblyAI: func(cfg *config.Config) Engine {
		return NewAssemblyAIEngine(cfg.Engines.AssemblyAIAPIKey)
	},
}

// New constructs the engine for id from the current configuration.
func New(id ID, cfg *config.Config) (Engine, error) {
	ctor, ok := constructors[id]
	if !ok {
		return nil, fmt.Errorf("unknown engine: %q", id)
	}
	return ctor(cfg), nil
}
