package engines

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"transcribeflow/internal/models"
)

// AssemblyAIEngine is the AssemblyAI cloud transcription engine. The
// API is asynchronous: upload, create a transcript, then poll.
type AssemblyAIEngine struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
}

const assemblyAIBaseURL = "https://api.assemblyai.com/v2"

func NewAssemblyAIEngine(apiKey string) *AssemblyAIEngine {
	return &AssemblyAIEngine{
		apiKey:       apiKey,
		baseURL:      assemblyAIBaseURL,
		client:       &http.Client{Timeout: 10 * time.Minute},
		pollInterval: 3 * time.Second,
	}
}

func (e *AssemblyAIEngine) Name() string { return string(AssemblyAI) }

func (e *AssemblyAIEngine) IsAvailable() bool { return e.apiKey != "" }

type assemblyAITranscript struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	Error         string  `json:"error"`
	Text          string  `json:"text"`
	LanguageCode  string  `json:"language_code"`
	AudioDuration float64 `json:"audio_duration"`
	Utterances    []struct {
		Start      int64   `json:"start"` // milliseconds
		End        int64   `json:"end"`
		Text       string  `json:"text"`
		Speaker    string  `json:"speaker"`
		Confidence float64 `json:"confidence"`
	} `json:"utterances"`
	Words []struct {
		Start      int64   `json:"start"`
		End        int64   `json:"end"`
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	} `json:"words"`
}

func (e *AssemblyAIEngine) Transcribe(ctx context.Context, audioPath, model, language string, _ Options) (*models.TranscriptionResult, error) {
	if !e.IsAvailable() {
		return nil, fmt.Errorf("assemblyai API key not configured: %w", ErrUnavailable)
	}

	start := time.Now()

	audioURL, err := e.upload(ctx, audioPath)
	if err != nil {
		return nil, err
	}

	id, err := e.createTranscript(ctx, audioURL, model, language)
	if err != nil {
		return nil, err
	}

	raw, transcript, err := e.poll(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &models.TranscriptionResult{
		Text:              transcript.Text,
		Language:          transcript.LanguageCode,
		DurationSeconds:   transcript.AudioDuration,
		ProcessingSeconds: time.Since(start).Seconds(),
		Raw:               raw,
	}
	if result.Language == "" {
		result.Language = "unknown"
	}

	for _, u := range transcript.Utterances {
		result.Segments = append(result.Segments, models.Segment{
			Start:      float64(u.Start) / 1000,
			End:        float64(u.End) / 1000,
			Text:       u.Text,
			Confidence: u.Confidence,
			Speaker:    "SPEAKER_" + u.Speaker,
		})
	}
	// Single unlabeled segment when the API returned no utterances.
	if len(result.Segments) == 0 && transcript.Text != "" {
		result.Segments = append(result.Segments, models.Segment{
			Start:   0,
			End:     transcript.AudioDuration,
			Text:    transcript.Text,
			Speaker: "SPEAKER_00",
		})
	}
	for _, w := range transcript.Words {
		result.Words = append(result.Words, models.Word{
			Word:       w.Text,
			Start:      float64(w.Start) / 1000,
			End:        float64(w.End) / 1000,
			Confidence: w.Confidence,
		})
	}

	return result, nil
}

func (e *AssemblyAIEngine) upload(ctx context.Context, audioPath string) (string, error) {
	audio, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio file: %w", err)
	}
	defer audio.Close()

	body, err := e.do(ctx, http.MethodPost, "/upload", audio, "")
	if err != nil {
		return "", fmt.Errorf("assemblyai upload failed: %w", err)
	}
	var out struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("parse assemblyai upload response: %w", err)
	}
	return out.UploadURL, nil
}

func (e *AssemblyAIEngine) createTranscript(ctx context.Context, audioURL, model, language string) (string, error) {
	payload := map[string]any{
		"audio_url":      audioURL,
		"speech_model":   model,
		"speaker_labels": true,
	}
	if lang := normalizeLanguage(language); lang != "" {
		payload["language_code"] = lang
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode assemblyai request: %w", err)
	}

	body, err := e.do(ctx, http.MethodPost, "/transcript", bytes.NewReader(reqBody), "application/json")
	if err != nil {
		return "", fmt.Errorf("assemblyai transcript request failed: %w", err)
	}
	var out assemblyAITranscript
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("parse assemblyai transcript response: %w", err)
	}
	return out.ID, nil
}

func (e *AssemblyAIEngine) poll(ctx context.Context, id string) (json.RawMessage, *assemblyAITranscript, error) {
	for {
		body, err := e.do(ctx, http.MethodGet, "/transcript/"+id, nil, "")
		if err != nil {
			return nil, nil, fmt.Errorf("assemblyai poll failed: %w", err)
		}
		var out assemblyAITranscript
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, nil, fmt.Errorf("parse assemblyai poll response: %w", err)
		}
		switch out.Status {
		case "completed":
			return body, &out, nil
		case "error":
			return nil, nil, fmt.Errorf("assemblyai transcription error: %s", out.Error)
		}

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(e.pollInterval):
		}
	}
}

func (e *AssemblyAIEngine) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", e.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}

var _ Engine = (*AssemblyAIEngine)(nil)
