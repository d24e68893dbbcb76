package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"script-to-video-server/adapters"
	"script-to-video-server/models"
)

type createProjectRequest struct {
	Title         string `json:"title"`
	Script        string `json:"script"`
	AspectRatio   string `json:"aspect_ratio"`
	EnhancePreset string `json:"enhance_preset"`
}

// CreateProject stores a script/settings bundle: POST /v1/api/projects.
func (h *Handler) CreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.Script == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "script is required"})
		return
	}
	if req.AspectRatio == "" {
		req.AspectRatio = "16:9"
	}
	if !adapters.SupportedAspectRatio(req.AspectRatio) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported aspect_ratio: " + req.AspectRatio})
		return
	}

	project := &models.Project{
		ID:            uuid.NewString(),
		Title:         req.Title,
		Script:        req.Script,
		AspectRatio:   req.AspectRatio,
		EnhancePreset: req.EnhancePreset,
	}
	if err := h.Store.CreateProject(c.Request.Context(), project); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create project: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, project)
}

// GetProject returns a project bundle: GET /v1/api/projects/:project_id.
func (h *Handler) GetProject(c *gin.Context) {
	project, err := h.Store.GetProject(c.Request.Context(), c.Param("project_id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, project)
}

// DeleteProject removes a project bundle: DELETE /v1/api/projects/:project_id.
func (h *Handler) DeleteProject(c *gin.Context) {
	if err := h.Store.DeleteProject(c.Request.Context(), c.Param("project_id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
