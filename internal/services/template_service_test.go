package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateService_CreateGetList(t *testing.T) {
	svc := NewTemplateService(t.TempDir())

	created, err := svc.Create("Meeting summary", "Summarize a meeting", "You summarize transcripts.")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := svc.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Meeting summary", got.Name)
	assert.Equal(t, "You summarize transcripts.", got.SystemPrompt)

	list, err := svc.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestTemplateService_ListEmptyDir(t *testing.T) {
	svc := NewTemplateService(t.TempDir() + "/never-created")

	list, err := svc.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTemplateService_ValidatesInput(t *testing.T) {
	svc := NewTemplateService(t.TempDir())

	_, err := svc.Create("", "", "prompt")
	assert.Error(t, err)
	_, err = svc.Create("name", "", "  ")
	assert.Error(t, err)
}

func TestTemplateService_Update(t *testing.T) {
	svc := NewTemplateService(t.TempDir())

	created, err := svc.Create("Old name", "", "Old prompt")
	require.NoError(t, err)

	updated, err := svc.Update(created.ID, "New name", "", "")
	require.NoError(t, err)
	assert.Equal(t, "New name", updated.Name)
	assert.Equal(t, "Old prompt", updated.SystemPrompt)

	_, err = svc.Update("missing", "x", "", "")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestTemplateService_Delete(t *testing.T) {
	svc := NewTemplateService(t.TempDir())

	created, err := svc.Create("Tmp", "", "prompt")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(created.ID))
	_, err = svc.Get(created.ID)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	assert.ErrorIs(t, svc.Delete(created.ID), ErrTemplateNotFound)
}
