package engines

import (
	"context"
	"errors"

	"transcribeflow/internal/models"
)

// ErrUnavailable is returned when an engine is called without its
// binary, model, or API key in place.
var ErrUnavailable = errors.New("engine is not available")

// Options is the per-engine option bundle. The local whisper engine
// consumes the anti-hallucination fields; cloud engines ignore them.
type Options struct {
	NoSpeechThreshold       float64
	LogProbThreshold        float64
	EntropyThreshold        float64
	ConditionOnPreviousText bool
	InitialPrompt           string
}

// Engine is the uniform transcription contract. Implementations must
// return ErrUnavailable (wrapped) when called while unavailable, and
// must never mutate the audio file.
type Engine interface {
	Name() string
	IsAvailable() bool
	Transcribe(ctx context.Context, audioPath, model, language string, opts Options) (*models.TranscriptionResult, error)
}
