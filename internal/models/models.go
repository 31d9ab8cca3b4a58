package models

import (
	"encoding/json"
	"time"
)

// Transcription mirrors the transcriptions table schema. It is the unit
// of work the queue processor claims and the orchestrator mutates; the
// store owns these rows exclusively.
type Transcription struct {
	ID           string  `db:"id" json:"id"` // UUID
	Filename     string  `db:"filename" json:"filename"`
	OriginalPath string  `db:"original_path" json:"original_path"`
	OutputDir    *string `db:"output_dir" json:"output_dir,omitempty"`

	// Processing settings chosen at upload time.
	Engine        string  `db:"engine" json:"engine"`
	Model         string  `db:"model" json:"model"`
	Language      *string `db:"language" json:"language,omitempty"` // nil = auto-detect
	InitialPrompt *string `db:"initial_prompt" json:"initial_prompt,omitempty"`
	MinSpeakers   *int    `db:"min_speakers" json:"min_speakers,omitempty"`
	MaxSpeakers   *int    `db:"max_speakers" json:"max_speakers,omitempty"`

	Status       Status  `db:"status" json:"status"`
	Progress     float64 `db:"progress" json:"progress"`
	ErrorMessage *string `db:"error_message" json:"error_message,omitempty"`

	// Results, populated on completion.
	DurationSeconds    *float64 `db:"duration_seconds" json:"duration_seconds,omitempty"`
	SpeakersCount      *int     `db:"speakers_count" json:"speakers_count,omitempty"`
	LanguageDetected   *string  `db:"language_detected" json:"language_detected,omitempty"`
	ProcessingSeconds  *float64 `db:"processing_seconds" json:"processing_seconds,omitempty"`
	ASRSeconds         *float64 `db:"asr_seconds" json:"asr_seconds,omitempty"`
	DiarizationSeconds *float64 `db:"diarization_seconds" json:"diarization_seconds,omitempty"`

	// Speaker display-name overrides: {"SPEAKER_00": "Ivan", ...}
	SpeakerNames json.RawMessage `db:"speaker_names" json:"speaker_names,omitempty"`

	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// NumSpeakersHint returns the exact speaker count when the min and max
// hints pin it down, or 0 when the diarizer should estimate.
func (t *Transcription) NumSpeakersHint() int {
	if t.MinSpeakers != nil && t.MaxSpeakers != nil && *t.MinSpeakers == *t.MaxSpeakers {
		return *t.MinSpeakers
	}
	return 0
}
