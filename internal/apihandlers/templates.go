package apihandlers

import (
	"errors"
	"net/http"

	"transcribeflow/internal/services"

	"github.com/gin-gonic/gin"
)

type templateRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	SystemPrompt string `json:"system_prompt"`
}

func (h *APIHandler) ListTemplatesHandler(c *gin.Context) {
	templates, err := h.App.Templates.List()
	if err != nil {
		Internal(c, "list templates: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": templates})
}

func (h *APIHandler) GetTemplateHandler(c *gin.Context) {
	t, err := h.App.Templates.Get(c.Param("id"))
	if err != nil {
		NotFound(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": t})
}

func (h *APIHandler) CreateTemplateHandler(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	t, err := h.App.Templates.Create(req.Name, req.Description, req.SystemPrompt)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": t})
}

func (h *APIHandler) UpdateTemplateHandler(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	t, err := h.App.Templates.Update(c.Param("id"), req.Name, req.Description, req.SystemPrompt)
	if err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			NotFound(c, err.Error())
			return
		}
		Internal(c, "update template: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": t})
}

func (h *APIHandler) DeleteTemplateHandler(c *gin.Context) {
	if err := h.App.Templates.Delete(c.Param("id")); err != nil {
		NotFound(c, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}
