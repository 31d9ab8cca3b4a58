package engines

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"transcribeflow/internal/models"
)

// DeepgramEngine is the Deepgram cloud transcription engine. Deepgram
// utterances carry speaker labels, so it covers diarization natively.
type DeepgramEngine struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

const deepgramBaseURL = "https://api.deepgram.com/v1"

func NewDeepgramEngine(apiKey string) *DeepgramEngine {
	return &DeepgramEngine{
		apiKey:  apiKey,
		baseURL: deepgramBaseURL,
		client:  &http.Client{Timeout: 10 * time.Minute},
	}
}

func (e *DeepgramEngine) Name() string { return string(Deepgram) }

func (e *DeepgramEngine) IsAvailable() bool { return e.apiKey != "" }

type deepgramResponse struct {
	Metadata struct {
		Duration         float64 `json:"duration"`
		DetectedLanguage string  `json:"detected_language"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
				Words      []struct {
					Word       string  `json:"word"`
					Start      float64 `json:"start"`
					End        float64 `json:"end"`
					Confidence float64 `json:"confidence"`
				} `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
		Utterances []struct {
			Start      float64 `json:"start"`
			End        float64 `json:"end"`
			Transcript string  `json:"transcript"`
			Speaker    int     `json:"speaker"`
			Confidence float64 `json:"confidence"`
		} `json:"utterances"`
	} `json:"results"`
}

func (e *DeepgramEngine) Transcribe(ctx context.Context, audioPath, model, language string, _ Options) (*models.TranscriptionResult, error) {
	if !e.IsAvailable() {
		return nil, fmt.Errorf("deepgram API key not configured: %w", ErrUnavailable)
	}

	start := time.Now()

	audio, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer audio.Close()

	params := url.Values{
		"model":        {model},
		"smart_format": {"true"},
		"punctuate":    {"true"},
		"diarize":      {"true"},
		"utterances":   {"true"},
	}
	if lang := normalizeLanguage(language); lang != "" {
		params.Set("language", lang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/listen?"+params.Encode(), audio)
	if err != nil {
		return nil, fmt.Errorf("build deepgram request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+e.apiKey)
	req.Header.Set("Content-Type", audioContentType(audioPath))

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read deepgram response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deepgram returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var dg deepgramResponse
	if err := json.Unmarshal(body, &dg); err != nil {
		return nil, fmt.Errorf("parse deepgram response: %w", err)
	}

	result := &models.TranscriptionResult{
		Language:          dg.Metadata.DetectedLanguage,
		DurationSeconds:   dg.Metadata.Duration,
		ProcessingSeconds: time.Since(start).Seconds(),
		Raw:               json.RawMessage(body),
	}
	if result.Language == "" {
		result.Language = "unknown"
	}

	for _, u := range dg.Results.Utterances {
		result.Segments = append(result.Segments, models.Segment{
			Start:      u.Start,
			End:        u.End,
			Text:       u.Transcript,
			Confidence: u.Confidence,
			Speaker:    fmt.Sprintf("SPEAKER_%02d", u.Speaker),
		})
	}

	if len(dg.Results.Channels) > 0 && len(dg.Results.Channels[0].Alternatives) > 0 {
		alt := dg.Results.Channels[0].Alternatives[0]
		result.Text = alt.Transcript
		for _, w := range alt.Words {
			result.Words = append(result.Words, models.Word{
				Word:       w.Word,
				Start:      w.Start,
				End:        w.End,
				Confidence: w.Confidence,
			})
		}
	}

	return result, nil
}

func audioContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".webm":
		return "audio/webm"
	default:
		return "audio/mpeg"
	}
}

var _ Engine = (*DeepgramEngine)(nil)
