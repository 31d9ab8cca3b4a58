package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrTemplateNotFound is returned when a template id has no file.
var ErrTemplateNotFound = errors.New("template not found")

// Template is a reusable LLM post-processing instruction stored as a
// JSON file under the templates directory.
type Template struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	SystemPrompt string    `json:"system_prompt"`
	CreatedAt    time.Time `json:"created_at"`
}

// TemplateService manages the template files. One file per template,
// named by id, so templates survive restarts without touching the
// database.
type TemplateService struct {
	dir string
}

func NewTemplateService(dir string) *TemplateService {
	return &TemplateService{dir: dir}
}

func (s *TemplateService) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *TemplateService) List() ([]*Template, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Template{}, nil
		}
		return nil, fmt.Errorf("read templates directory: %w", err)
	}

	templates := make([]*Template, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		t, err := s.Get(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue // skip unreadable files rather than failing the listing
		}
		templates = append(templates, t)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates, nil
}

func (s *TemplateService) Get(id string) (*Template, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("template %s: %w", id, ErrTemplateNotFound)
		}
		return nil, fmt.Errorf("read template: %w", err)
	}
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse template %s: %w", id, err)
	}
	return &t, nil
}

func (s *TemplateService) Create(name, description, systemPrompt string) (*Template, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("template name is required")
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("template system prompt is required")
	}
	t := &Template{
		ID:           uuid.New().String(),
		Name:         name,
		Description:  description,
		SystemPrompt: systemPrompt,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.write(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TemplateService) Update(id, name, description, systemPrompt string) (*Template, error) {
	t, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if name != "" {
		t.Name = name
	}
	if description != "" {
		t.Description = description
	}
	if systemPrompt != "" {
		t.SystemPrompt = systemPrompt
	}
	if err := s.write(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TemplateService) Delete(id string) error {
	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("template %s: %w", id, ErrTemplateNotFound)
		}
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

func (s *TemplateService) write(t *Template) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create templates directory: %w", err)
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode template: %w", err)
	}
	if err := os.WriteFile(s.path(t.ID), data, 0o644); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	return nil
}
