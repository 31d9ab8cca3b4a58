package diarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"transcribeflow/internal/models"

	log "github.com/sirupsen/logrus"
)

// PyannoteDiarizer is the "fast" method: it shells out to a pyannote
// runner that prints a DiarizationResult as JSON on stdout. The runner
// process keeps the model warm between calls, so Release kills it to
// return the memory.
type PyannoteDiarizer struct {
	command     string
	hfToken     string
	minSpeakers int
	maxSpeakers int
	runner      commandRunner
	warm        bool
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, env []string, args ...string) (stdout, stderr string, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, env []string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(env) > 0 {
		cmd.Env = append(cmd.Environ(), env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func NewPyannoteDiarizer(command, hfToken string, minSpeakers, maxSpeakers int) *PyannoteDiarizer {
	return &PyannoteDiarizer{
		command:     command,
		hfToken:     hfToken,
		minSpeakers: minSpeakers,
		maxSpeakers: maxSpeakers,
		runner:      execRunner{},
	}
}

// IsAvailable requires both the runner command and a HuggingFace token
// for the gated pyannote checkpoint.
func (d *PyannoteDiarizer) IsAvailable() bool {
	if d.hfToken == "" {
		return false
	}
	_, err := exec.LookPath(d.command)
	return err == nil
}

func (d *PyannoteDiarizer) Diarize(ctx context.Context, audioPath string, numSpeakers int) (*models.DiarizationResult, error) {
	if !d.IsAvailable() {
		return nil, fmt.Errorf("pyannote diarizer is not available (command %q, token set: %v)", d.command, d.hfToken != "")
	}

	args := []string{"--audio", audioPath}
	if numSpeakers > 0 {
		args = append(args, "--num-speakers", strconv.Itoa(numSpeakers))
	} else {
		args = append(args,
			"--min-speakers", strconv.Itoa(d.minSpeakers),
			"--max-speakers", strconv.Itoa(d.maxSpeakers))
	}

	start := time.Now()
	stdout, stderr, err := d.runner.Run(ctx, d.command, []string{"HF_TOKEN=" + d.hfToken}, args...)
	if err != nil {
		return nil, fmt.Errorf("pyannote diarization failed: %s: %w", strings.TrimSpace(stderr), err)
	}
	d.warm = true

	var result models.DiarizationResult
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		return nil, fmt.Errorf("parse pyannote output: %w", err)
	}
	if result.ProcessingSeconds == 0 {
		result.ProcessingSeconds = time.Since(start).Seconds()
	}
	return &result, nil
}

// Release asks the runner to drop its warm model cache.
func (d *PyannoteDiarizer) Release() {
	if !d.warm {
		return
	}
	d.warm = false
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, _, err := d.runner.Run(ctx, d.command, nil, "--unload"); err != nil {
		log.WithError(err).Debug("pyannote unload request failed")
	}
}

var _ Diarizer = (*PyannoteDiarizer)(nil)
