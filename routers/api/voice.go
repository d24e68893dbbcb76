package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"script-to-video-server/adapters"
)

// ListVoices returns the selectable narration voices:
// GET /v1/api/voices. Falls back to the built-in catalogue when the
// voice service is unreachable.
func (h *Handler) ListVoices(c *gin.Context) {
	voices, err := h.Voices.List(c.Request.Context())
	if err != nil {
		if adapters.KindOf(err) == adapters.KindUnavailable {
			c.JSON(http.StatusOK, gin.H{"voices": adapters.FallbackVoices(), "fallback": true})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"voices": voices})
}
