package models

import "encoding/json"

// SpeakerUnknown is assigned to segments that overlap no diarization turn.
const SpeakerUnknown = "SPEAKER_UNKNOWN"

// Segment is one time-coded span of transcribed text. Speaker is empty
// until diarization (or an engine with native speaker labels) fills it in.
type Segment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
	Speaker    string  `json:"speaker,omitempty"`
}

// Word is a single word-level timestamp from an engine or aligner.
type Word struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence,omitempty"`
	Speaker    string  `json:"speaker,omitempty"`
}

// TranscriptionResult is the immutable output of one engine call.
type TranscriptionResult struct {
	Text              string          `json:"text"`
	Segments          []Segment       `json:"segments"`
	Words             []Word          `json:"words,omitempty"`
	Language          string          `json:"language"`
	DurationSeconds   float64         `json:"duration_seconds"`
	ProcessingSeconds float64         `json:"processing_seconds"`
	Raw               json.RawMessage `json:"-"` // vendor payload, persisted separately
}

// Turn is one speaker turn from a diarizer.
type Turn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// DiarizationResult is the immutable output of one diarizer call.
type DiarizationResult struct {
	Speakers          []string `json:"speakers"`
	Turns             []Turn   `json:"segments"`
	ProcessingSeconds float64  `json:"processing_seconds"`
}
