package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"script-to-video-server/adapters"
	"script-to-video-server/models"
)

type createGenerationRequest struct {
	ProjectRef  string `json:"project_ref"`
	Script      string `json:"script"`
	AspectRatio string `json:"aspect_ratio"`
}

// CreateGeneration accepts a generation request: POST /v1/api/generations.
// Returns 409 when the project already has an active generation.
func (h *Handler) CreateGeneration(c *gin.Context) {
	var req createGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	// A bare project_ref pulls script and settings from the project
	// bundle; an inline script wins when both are present.
	if req.ProjectRef != "" && req.Script == "" {
		project, err := h.Store.GetProject(c.Request.Context(), req.ProjectRef)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		req.Script = project.Script
		if req.AspectRatio == "" {
			req.AspectRatio = project.AspectRatio
		}
	}
	if req.ProjectRef == "" {
		req.ProjectRef = uuid.NewString()
	}
	if req.AspectRatio == "" {
		req.AspectRatio = "16:9"
	}

	if req.Script == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "script is required"})
		return
	}
	if !adapters.SupportedAspectRatio(req.AspectRatio) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported aspect_ratio: " + req.AspectRatio})
		return
	}

	gen := &models.Generation{
		ID:           uuid.NewString(),
		ProjectID:    req.ProjectRef,
		Script:       req.Script,
		AspectRatio:  req.AspectRatio,
		StageMessage: "Generation queued",
	}
	if err := h.Store.CreateQueued(c.Request.Context(), gen); err != nil {
		if errors.Is(err, models.ErrActiveGeneration) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create generation: " + err.Error()})
		return
	}

	if err := h.Enqueuer.EnqueueRun(gen.ID); err != nil {
		h.Logger.Error("enqueue failed", zap.String("generation_id", gen.ID), zap.Error(err))
		gen.SetFailed(models.ErrKindInternal, "failed to schedule generation")
		_ = h.Store.Save(c.Request.Context(), gen)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to schedule generation"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"generation_id": gen.ID,
		"status":        gen.Status,
	})
}

// GetGeneration returns the record projection: GET /v1/api/generations/:id.
// This is the universal polling fallback; a terminal record returns the
// same payload on every call.
func (h *Handler) GetGeneration(c *gin.Context) {
	gen, err := h.Store.Get(c.Request.Context(), c.Param("generation_id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "generation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gen.AsView())
}

// CancelGeneration requests a cooperative stop:
// POST /v1/api/generations/:id/cancel.
func (h *Handler) CancelGeneration(c *gin.Context) {
	id := c.Param("generation_id")
	if err := h.Orch.Cancel(c.Request.Context(), id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "generation not found"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"generation_id": id, "cancelling": true})
}

// DownloadGeneration streams the final artifact once completed:
// GET /v1/api/generations/:id/download. 404 in any other state.
func (h *Handler) DownloadGeneration(c *gin.Context) {
	gen, err := h.Store.Get(c.Request.Context(), c.Param("generation_id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "generation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if gen.Status != models.StatusCompleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "generation is not completed"})
		return
	}

	upload, ok := gen.ArtifactFor(models.StageUpload)
	if !ok || upload.Meta["key"] == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "final artifact location missing"})
		return
	}

	reader, size, contentType, err := h.Objects.Get(c.Request.Context(), upload.Meta["key"])
	if err != nil {
		h.Logger.Error("object fetch failed",
			zap.String("generation_id", gen.ID),
			zap.String("key", upload.Meta["key"]),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "object store unavailable"})
		return
	}
	defer reader.Close()

	c.DataFromReader(http.StatusOK, size, contentType, reader, map[string]string{
		"Content-Disposition": `attachment; filename="` + gen.ID + `.mp4"`,
	})
}
