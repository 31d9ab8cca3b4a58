package engines

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	name   string
	args   []string
	stderr string
	err    error
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) (string, string, error) {
	r.name = name
	r.args = args
	return "", r.stderr, r.err
}

const sampleWhisperJSON = `{
	"result": {"language": "en"},
	"transcription": [
		{"offsets": {"from": 0, "to": 3200}, "text": " Hello there."},
		{"offsets": {"from": 3200, "to": 6500}, "text": " Hi, how are you?"},
		{"offsets": {"from": 6500, "to": 6600}, "text": "  "}
	]
}`

// newTestEngine builds an engine whose binary resolves on PATH ("sh")
// and whose model file exists, with process execution faked out.
func newTestEngine(t *testing.T, runner commandRunner) *WhisperCPPEngine {
	t.Helper()

	modelDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "ggml-large-v2.bin"), []byte("ggml"), 0o644))

	e := NewWhisperCPPEngine("sh", modelDir)
	e.runner = runner
	e.readFile = func(string) ([]byte, error) { return []byte(sampleWhisperJSON), nil }
	return e
}

func TestWhisperCPP_Transcribe(t *testing.T) {
	runner := &fakeRunner{}
	e := newTestEngine(t, runner)

	res, err := e.Transcribe(context.Background(), "/audio/call.mp3", "large-v2", "auto", Options{})
	require.NoError(t, err)

	assert.Equal(t, "Hello there. Hi, how are you?", res.Text)
	require.Len(t, res.Segments, 2) // blank segment dropped
	assert.InDelta(t, 0.0, res.Segments[0].Start, 1e-9)
	assert.InDelta(t, 3.2, res.Segments[0].End, 1e-9)
	assert.Equal(t, "Hello there.", res.Segments[0].Text)
	assert.Equal(t, "en", res.Language)
	assert.InDelta(t, 6.5, res.DurationSeconds, 1e-9)
	assert.NotEmpty(t, res.Raw)

	assert.Equal(t, "sh", runner.name)
	assert.Contains(t, runner.args, "-oj")
	assert.Contains(t, runner.args, "/audio/call.mp3")
}

func TestWhisperCPP_TranscribeRunnerError(t *testing.T) {
	runner := &fakeRunner{stderr: "failed to load model", err: errors.New("exit status 1")}
	e := newTestEngine(t, runner)

	_, err := e.Transcribe(context.Background(), "/audio/call.mp3", "large-v2", "", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load model")
}

func TestWhisperCPP_MissingModel(t *testing.T) {
	e := NewWhisperCPPEngine("sh", t.TempDir())
	e.runner = &fakeRunner{}

	_, err := e.Transcribe(context.Background(), "/audio/call.mp3", "tiny", "", Options{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestWhisperCPP_MissingBinary(t *testing.T) {
	e := NewWhisperCPPEngine("definitely-not-a-real-binary-4c1f", t.TempDir())

	assert.False(t, e.IsAvailable())
	_, err := e.Transcribe(context.Background(), "/audio/call.mp3", "tiny", "", Options{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestBuildWhisperArgs(t *testing.T) {
	opts := Options{
		NoSpeechThreshold:       0.6,
		LogProbThreshold:        -1,
		EntropyThreshold:        2.8,
		ConditionOnPreviousText: false,
		InitialPrompt:           "Names: Alice, Bob",
	}

	args := buildWhisperArgs("/models/ggml-large-v2.bin", "/audio/a.wav", "/tmp/out", "uk", opts)

	joined := map[string]string{}
	for i := 0; i+1 < len(args); i++ {
		joined[args[i]] = args[i+1]
	}
	assert.Equal(t, "/models/ggml-large-v2.bin", joined["-m"])
	assert.Equal(t, "/audio/a.wav", joined["-f"])
	assert.Equal(t, "/tmp/out", joined["-of"])
	assert.Equal(t, "0.6", joined["--no-speech-thold"])
	assert.Equal(t, "-1", joined["--logprob-thold"])
	assert.Equal(t, "2.8", joined["--entropy-thold"])
	assert.Equal(t, "Names: Alice, Bob", joined["--prompt"])
	assert.Equal(t, "uk", joined["-l"])
	assert.Contains(t, args, "--no-context")
}

func TestBuildWhisperArgs_AutoLanguageOmitted(t *testing.T) {
	args := buildWhisperArgs("/m.bin", "/a.wav", "/o", "auto", Options{ConditionOnPreviousText: true})

	assert.NotContains(t, args, "-l")
	assert.NotContains(t, args, "--no-context")
	assert.NotContains(t, args, "--prompt")
}

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, "", normalizeLanguage(""))
	assert.Equal(t, "", normalizeLanguage("auto"))
	assert.Equal(t, "", normalizeLanguage(" AUTO "))
	assert.Equal(t, "en", normalizeLanguage("en"))
	assert.Equal(t, "uk", normalizeLanguage(" uk "))
}
