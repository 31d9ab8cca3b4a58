package diarize

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"transcribeflow/internal/models"

	log "github.com/sirupsen/logrus"
)

// WhisperXAligner is the "accurate" method: it hands the ASR segments
// to a whisperx runner that re-aligns them to word level, diarizes, and
// returns already-speaker-labeled segments as JSON on stdout.
type WhisperXAligner struct {
	command     string
	hfToken     string
	minSpeakers int
	maxSpeakers int
	runner      commandRunner
	warm        bool
}

func NewWhisperXAligner(command, hfToken string, minSpeakers, maxSpeakers int) *WhisperXAligner {
	return &WhisperXAligner{
		command:     command,
		hfToken:     hfToken,
		minSpeakers: minSpeakers,
		maxSpeakers: maxSpeakers,
		runner:      execRunner{},
	}
}

func (a *WhisperXAligner) IsAvailable() bool {
	if a.hfToken == "" {
		return false
	}
	_, err := exec.LookPath(a.command)
	return err == nil
}

func (a *WhisperXAligner) DiarizeWithAlignment(ctx context.Context, audioPath string, segments []models.Segment, language string, numSpeakers int) (*AlignedResult, error) {
	if !a.IsAvailable() {
		return nil, fmt.Errorf("whisperx aligner is not available (command %q, token set: %v)", a.command, a.hfToken != "")
	}

	// The segment list can be large, so it goes through a file rather
	// than argv.
	segFile, err := writeSegmentsFile(segments)
	if err != nil {
		return nil, err
	}
	defer os.Remove(segFile)

	args := []string{
		"--audio", audioPath,
		"--segments", segFile,
		"--language", language,
	}
	if numSpeakers > 0 {
		args = append(args, "--num-speakers", strconv.Itoa(numSpeakers))
	} else {
		args = append(args,
			"--min-speakers", strconv.Itoa(a.minSpeakers),
			"--max-speakers", strconv.Itoa(a.maxSpeakers))
	}

	start := time.Now()
	stdout, stderr, err := a.runner.Run(ctx, a.command, []string{"HF_TOKEN=" + a.hfToken}, args...)
	if err != nil {
		return nil, fmt.Errorf("whisperx alignment failed: %s: %w", strings.TrimSpace(stderr), err)
	}
	a.warm = true

	var result AlignedResult
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		return nil, fmt.Errorf("parse whisperx output: %w", err)
	}
	if result.ProcessingSeconds == 0 {
		result.ProcessingSeconds = time.Since(start).Seconds()
	}
	return &result, nil
}

func (a *WhisperXAligner) Release() {
	if !a.warm {
		return
	}
	a.warm = false
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, _, err := a.runner.Run(ctx, a.command, nil, "--unload"); err != nil {
		log.WithError(err).Debug("whisperx unload request failed")
	}
}

func writeSegmentsFile(segments []models.Segment) (string, error) {
	f, err := os.CreateTemp("", "transcribeflow-segments-*.json")
	if err != nil {
		return "", fmt.Errorf("create segments file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(segments); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write segments file: %w", err)
	}
	return filepath.Clean(f.Name()), nil
}

var _ Aligner = (*WhisperXAligner)(nil)
