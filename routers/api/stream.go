package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"script-to-video-server/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamGeneration pushes the record projection over server-sent events
// on every orchestrator-side mutation: GET /v1/api/generations/:id/events.
// The subscription opens before the snapshot is read so no update
// between the two is lost; progress monotonicity makes a duplicate
// harmless.
func (h *Handler) StreamGeneration(c *gin.Context) {
	id := c.Param("generation_id")

	ch, cancel := h.Notifier.Subscribe(id)
	defer cancel()

	gen, err := h.Store.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "generation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.SSEvent("update", gen.AsView())
	c.Writer.Flush()
	if gen.IsTerminal() {
		return
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case view, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("update", view)
			terminal := view.Status == models.StatusCompleted || view.Status == models.StatusFailed
			return !terminal
		}
	})
}

// GenerationWebSocket pushes the same payload over a socket:
// GET /v1/api/generations/:id/ws. Connection failure is non-fatal to
// the client, which falls back to SSE or polling.
func (h *Handler) GenerationWebSocket(c *gin.Context) {
	id := c.Param("generation_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		h.Logger.Debug("websocket upgrade failed", zap.String("generation_id", id), zap.Error(err))
		return
	}
	defer conn.Close()

	ch, cancel := h.Notifier.Subscribe(id)
	defer cancel()

	gen, err := h.Store.Get(c.Request.Context(), id)
	if err != nil {
		_ = conn.WriteJSON(gin.H{"error": "generation not found"})
		return
	}

	if err := conn.WriteJSON(gen.AsView()); err != nil {
		return
	}
	if gen.IsTerminal() {
		return
	}

	// Drain client frames so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for view := range ch {
		if err := conn.WriteJSON(view); err != nil {
			h.Logger.Debug("websocket write failed", zap.String("generation_id", id), zap.Error(err))
			return
		}
		if view.Status == models.StatusCompleted || view.Status == models.StatusFailed {
			return
		}
	}
}
