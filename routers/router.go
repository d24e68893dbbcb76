package routers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"script-to-video-server/routers/api"
)

func InitRouter(h *api.Handler) *gin.Engine {
	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1/api")
	{
		v1.POST("/projects", h.CreateProject)
		v1.GET("/projects/:project_id", h.GetProject)
		v1.DELETE("/projects/:project_id", h.DeleteProject)

		v1.POST("/generations", h.CreateGeneration)
		v1.GET("/generations/:generation_id", h.GetGeneration)
		v1.POST("/generations/:generation_id/cancel", h.CancelGeneration)
		v1.GET("/generations/:generation_id/events", h.StreamGeneration)
		v1.GET("/generations/:generation_id/ws", h.GenerationWebSocket)
		v1.GET("/generations/:generation_id/download", h.DownloadGeneration)

		v1.GET("/voices", h.ListVoices)
	}
	return r
}
