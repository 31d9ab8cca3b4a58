package diarize

import (
	"context"

	"transcribeflow/internal/models"
)

// Diarizer is the uniform speaker-diarization contract. numSpeakers is
// an exact-count hint; 0 lets the backend estimate within its
// configured min/max range.
type Diarizer interface {
	IsAvailable() bool
	Diarize(ctx context.Context, audioPath string, numSpeakers int) (*models.DiarizationResult, error)

	// Release drops any memory-resident model state. Safe to call when
	// nothing is loaded.
	Release()
}

// AlignedResult is the output of the accurate path: word-aligned
// segments that already carry speaker labels, so no merge is needed.
type AlignedResult struct {
	Speakers          []string         `json:"speakers"`
	Segments          []models.Segment `json:"segments"`
	Words             []models.Word    `json:"words"`
	ProcessingSeconds float64          `json:"processing_seconds"`
}

// Aligner is the higher-fidelity alignment+diarization contract used by
// the accurate method.
type Aligner interface {
	IsAvailable() bool
	DiarizeWithAlignment(ctx context.Context, audioPath string, segments []models.Segment, language string, numSpeakers int) (*AlignedResult, error)
	Release()
}
