package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/blendconv/api/notifyhub"
	"github.com/moyoez/blendconv/tool"
	"github.com/moyoez/blendconv/types"
)

// HandleStatus reports liveness and how many UI clients are listening.
// GET /api/self/v1/status
func HandleStatus(hub *notifyhub.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"running":       true,
			"notifyClients": hub.Len(),
		})
	}
}

// HandleConfig returns the effective configuration without secrets.
// GET /api/self/v1/config
func HandleConfig(cfg types.AppConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(tool.BuildConfigResponse(&cfg)))
	}
}
