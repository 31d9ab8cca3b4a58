package apihandlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"transcribeflow/internal/app"
	"transcribeflow/internal/config"
	"transcribeflow/internal/engines"
	"transcribeflow/internal/llm"
	"transcribeflow/internal/services"
	"transcribeflow/internal/store"

	"github.com/gin-gonic/gin"
)

type APIHandler struct {
	App *app.App
}

// UploadHandler accepts a multipart audio upload and creates a DRAFT
// job. The job stays out of the queue until the start endpoint is hit.
func (h *APIHandler) UploadHandler(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file field: "+err.Error())
		return
	}

	opts := parseUploadOptions(c)
	src, err := file.Open()
	if err != nil {
		Internal(c, "open upload: "+err.Error())
		return
	}
	defer src.Close()

	t, err := h.App.Transcriptions.Upload(c.Request.Context(), file.Filename, src, opts)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": t})
}

func parseUploadOptions(c *gin.Context) (opts services.UploadOptions) {
	opts.Engine = c.PostForm("engine")
	opts.Model = c.PostForm("model")
	opts.Language = c.PostForm("language")
	opts.InitialPrompt = c.PostForm("initial_prompt")
	opts.MinSpeakers, _ = strconv.Atoi(c.PostForm("min_speakers"))
	opts.MaxSpeakers, _ = strconv.Atoi(c.PostForm("max_speakers"))
	return opts
}

// StartHandler promotes a DRAFT job to QUEUED.
func (h *APIHandler) StartHandler(c *gin.Context) {
	t, err := h.App.Transcriptions.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, "transcription not found")
			return
		}
		Conflict(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": t})
}

func (h *APIHandler) ListHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := h.App.Transcriptions.List(c.Request.Context(), limit)
	if err != nil {
		Internal(c, "list transcriptions: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

func (h *APIHandler) GetHandler(c *gin.Context) {
	t, err := h.App.Transcriptions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, "transcription not found")
			return
		}
		Internal(c, "get transcription: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": t})
}

func (h *APIHandler) TranscriptHandler(c *gin.Context) {
	tr, err := h.App.Transcriptions.Transcript(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, "transcription not found")
			return
		}
		NotFound(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tr})
}

// SpeakersHandler assigns display names to diarized speaker labels.
func (h *APIHandler) SpeakersHandler(c *gin.Context) {
	var req struct {
		Speakers map[string]string `json:"speakers" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	tr, err := h.App.Transcriptions.RenameSpeakers(c.Request.Context(), c.Param("id"), req.Speakers)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, "transcription not found")
			return
		}
		Internal(c, "rename speakers: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tr})
}

func (h *APIHandler) DeleteHandler(c *gin.Context) {
	if err := h.App.Transcriptions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, "transcription not found")
			return
		}
		Internal(c, "delete transcription: "+err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// PostProcessHandler runs a completed transcript through an LLM
// template.
func (h *APIHandler) PostProcessHandler(c *gin.Context) {
	var req struct {
		TemplateID string `json:"template_id" binding:"required"`
		Model      string `json:"model"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	t, err := h.App.Transcriptions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, "transcription not found")
			return
		}
		Internal(c, "get transcription: "+err.Error())
		return
	}

	result, err := h.App.PostProcess.Apply(c.Request.Context(), t, req.TemplateID, req.Model)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			Conflict(c, err.Error())
			return
		}
		Internal(c, "post-process: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// EnginesHandler lists the engine catalog with live availability, so
// clients can grey out engines missing a binary or API key.
func (h *APIHandler) EnginesHandler(c *gin.Context) {
	type engineStatus struct {
		engines.Info
		Available bool `json:"available"`
	}
	catalog := engines.Catalog()
	out := make([]engineStatus, 0, len(catalog))
	for _, info := range catalog {
		status := engineStatus{Info: info}
		if eng, err := engines.New(info.ID, h.App.Config.Current()); err == nil {
			status.Available = eng.IsAvailable()
		}
		out = append(out, status)
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// SettingsHandler exposes the tunable, non-secret configuration.
func (h *APIHandler) SettingsHandler(c *gin.Context) {
	cfg := h.App.Config.Current()
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"default_engine":        cfg.Transcription.DefaultEngine,
		"default_model":         cfg.Transcription.DefaultModel,
		"diarization_method":    cfg.Diarization.Method,
		"min_speakers":          cfg.Diarization.MinSpeakers,
		"max_speakers":          cfg.Diarization.MaxSpeakers,
		"poll_interval_seconds": cfg.Queue.PollIntervalSeconds,
		"idle_unload_seconds":   cfg.Queue.IdleUnloadSeconds,
	}})
}

// settingsKeys maps request fields to config keys. Only listed fields
// are writable over the API.
var settingsKeys = map[string]string{
	"default_engine":      "transcription.default_engine",
	"default_model":       "transcription.default_model",
	"diarization_method":  "diarization.method",
	"min_speakers":        "diarization.min_speakers",
	"max_speakers":        "diarization.max_speakers",
	"idle_unload_seconds": "queue.idle_unload_seconds",
}

// UpdateSettingsHandler persists setting changes and resets the worker
// so cached models are rebuilt from the new configuration.
func (h *APIHandler) UpdateSettingsHandler(c *gin.Context) {
	var req map[string]any
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	values := make(map[string]any, len(req))
	for field, value := range req {
		key, ok := settingsKeys[field]
		if !ok {
			BadRequest(c, fmt.Sprintf("unknown setting %q", field))
			return
		}
		values[key] = value
	}
	if len(values) == 0 {
		BadRequest(c, "no settings provided")
		return
	}

	if err := config.Save(values); err != nil {
		Internal(c, "save settings: "+err.Error())
		return
	}
	if err := h.App.Config.Refresh(); err != nil {
		Internal(c, "reload settings: "+err.Error())
		return
	}
	h.App.Processor.Reset()

	h.SettingsHandler(c)
}

func (h *APIHandler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
