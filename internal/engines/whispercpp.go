package engines

import (
	"bytes"
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

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// WhisperCPPEngine runs local transcription by shelling out to the
// whisper.cpp CLI with JSON output.
type WhisperCPPEngine struct {
	binaryPath string
	modelDir   string
	runner     commandRunner
	mkdirTemp  func(dir, pattern string) (string, error)
	readFile   func(name string) ([]byte, error)
}

func NewWhisperCPPEngine(binaryPath, modelDir string) *WhisperCPPEngine {
	return &WhisperCPPEngine{
		binaryPath: binaryPath,
		modelDir:   modelDir,
		runner:     execRunner{},
		mkdirTemp:  os.MkdirTemp,
		readFile:   os.ReadFile,
	}
}

func (e *WhisperCPPEngine) Name() string { return string(WhisperCPP) }

func (e *WhisperCPPEngine) IsAvailable() bool {
	_, err := exec.LookPath(e.binaryPath)
	return err == nil
}

// whisperOutput mirrors the whisper.cpp -oj JSON file.
type whisperOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"` // milliseconds
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func (e *WhisperCPPEngine) Transcribe(ctx context.Context, audioPath, model, language string, opts Options) (*models.TranscriptionResult, error) {
	if !e.IsAvailable() {
		return nil, fmt.Errorf("whisper.cpp binary %q not found: %w", e.binaryPath, ErrUnavailable)
	}

	modelPath, err := e.resolveModelPath(model)
	if err != nil {
		return nil, err
	}

	tempDir, err := e.mkdirTemp("", "transcribeflow-whisper-*")
	if err != nil {
		return nil, fmt.Errorf("create whisper workspace: %w", err)
	}
	defer os.RemoveAll(tempDir)

	outBase := filepath.Join(tempDir, "transcript")
	args := buildWhisperArgs(modelPath, audioPath, outBase, language, opts)

	start := time.Now()
	_, stderr, err := e.runner.Run(ctx, e.binaryPath, args...)
	if err != nil {
		return nil, fmt.Errorf("whisper.cpp transcription failed: %s: %w", strings.TrimSpace(stderr), err)
	}

	raw, err := e.readFile(outBase + ".json")
	if err != nil {
		return nil, fmt.Errorf("whisper.cpp completed but JSON output is missing: %w", err)
	}

	var out whisperOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse whisper.cpp output: %w", err)
	}

	segments := make([]models.Segment, 0, len(out.Transcription))
	var text strings.Builder
	for _, seg := range out.Transcription {
		trimmed := strings.TrimSpace(seg.Text)
		if trimmed == "" {
			continue
		}
		segments = append(segments, models.Segment{
			Start: float64(seg.Offsets.From) / 1000,
			End:   float64(seg.Offsets.To) / 1000,
			Text:  trimmed,
		})
		if text.Len() > 0 {
			text.WriteByte(' ')
		}
		text.WriteString(trimmed)
	}

	detected := out.Result.Language
	if detected == "" {
		detected = language
	}
	var duration float64
	if len(segments) > 0 {
		duration = segments[len(segments)-1].End
	}

	log.WithFields(log.Fields{"model": model, "segments": len(segments)}).
		Debug("whisper.cpp transcription finished")

	return &models.TranscriptionResult{
		Text:              text.String(),
		Segments:          segments,
		Language:          detected,
		DurationSeconds:   duration,
		ProcessingSeconds: time.Since(start).Seconds(),
		Raw:               json.RawMessage(raw),
	}, nil
}

// resolveModelPath maps a model name like "large-v2" to the ggml file
// under the configured model directory.
func (e *WhisperCPPEngine) resolveModelPath(model string) (string, error) {
	if e.modelDir == "" {
		return "", fmt.Errorf("whisper model directory is not configured: %w", ErrUnavailable)
	}
	path := filepath.Join(e.modelDir, "ggml-"+model+".bin")
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("whisper model %q not found at %s: %w", model, path, ErrUnavailable)
	}
	return path, nil
}

func buildWhisperArgs(modelPath, audioPath, outBase, language string, opts Options) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", outBase,
		"-oj",
		"--no-speech-thold", formatFloat(opts.NoSpeechThreshold),
		"--logprob-thold", formatFloat(opts.LogProbThreshold),
		"--entropy-thold", formatFloat(opts.EntropyThreshold),
	}
	if !opts.ConditionOnPreviousText {
		args = append(args, "--no-context")
	}
	if opts.InitialPrompt != "" {
		args = append(args, "--prompt", opts.InitialPrompt)
	}
	if lang := normalizeLanguage(language); lang != "" {
		args = append(args, "-l", lang)
	}
	return args
}

// normalizeLanguage maps "auto" and empty to no CLI override.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var _ Engine = (*WhisperCPPEngine)(nil)
