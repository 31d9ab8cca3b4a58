package services

import (
	"context"
	"fmt"
	"strings"

	"transcribeflow/internal/artifacts"
	"transcribeflow/internal/llm"
	"transcribeflow/internal/models"
)

// PostProcessService runs a completed transcript through an LLM with a
// template's system prompt. The transcript is rendered as timestamped
// speaker turns so the model sees the same text a human reader would.
type PostProcessService struct {
	llm       *llm.Client
	templates *TemplateService
}

func NewPostProcessService(client *llm.Client, templates *TemplateService) *PostProcessService {
	return &PostProcessService{llm: client, templates: templates}
}

// PostProcessResult is the outcome of one template application.
type PostProcessResult struct {
	TemplateID   string    `json:"template_id"`
	TemplateName string    `json:"template_name"`
	Model        string    `json:"model"`
	Output       string    `json:"output"`
	Usage        llm.Usage `json:"usage"`
}

// Apply loads the job's transcript, renders it, and completes it
// against the template's system prompt. model overrides the configured
// default when non-empty.
func (s *PostProcessService) Apply(ctx context.Context, t *models.Transcription, templateID, model string) (*PostProcessResult, error) {
	if !s.llm.IsConfigured() {
		return nil, llm.ErrNotConfigured
	}
	if t.Status != models.StatusCompleted || t.OutputDir == nil {
		return nil, fmt.Errorf("transcription %s has no completed transcript", t.ID)
	}

	tmpl, err := s.templates.Get(templateID)
	if err != nil {
		return nil, err
	}

	tr, err := artifacts.Read(*t.OutputDir)
	if err != nil {
		return nil, err
	}

	output, usage, err := s.llm.Complete(ctx, tmpl.SystemPrompt, FormatTranscript(tr), model)
	if err != nil {
		return nil, fmt.Errorf("apply template %s: %w", tmpl.Name, err)
	}

	return &PostProcessResult{
		TemplateID:   tmpl.ID,
		TemplateName: tmpl.Name,
		Model:        model,
		Output:       output,
		Usage:        usage,
	}, nil
}

// FormatTranscript renders a transcript as one line per segment,
// `[HH:MM:SS] Name: text`, using display names from the speakers
// dictionary when set.
func FormatTranscript(tr *artifacts.Transcript) string {
	var b strings.Builder
	for _, seg := range tr.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		name := seg.Speaker
		if sp, ok := tr.Speakers[seg.Speaker]; ok && sp.Name != "" {
			name = sp.Name
		}
		if name == "" || name == models.SpeakerUnknown {
			fmt.Fprintf(&b, "[%s] %s\n", artifacts.FormatTimestamp(seg.Start), text)
			continue
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", artifacts.FormatTimestamp(seg.Start), name, text)
	}
	return b.String()
}
