package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/blendconv/tool"
	"github.com/moyoez/blendconv/types"
)

const maxListLimit = 100

// ResourceAPI is the subset of the resource client the read-only endpoints use.
type ResourceAPI interface {
	FetchResult(ctx context.Context, resourceId, targetFormat string) (types.ResultLocation, error)
	ListResources(ctx context.Context, targetFormat string, limit int, cursor string) (*types.ResourcePage, error)
}

// ResourceController proxies listing and on-demand result lookup.
type ResourceController struct {
	api ResourceAPI
	cfg types.AppConfig
}

func NewResourceController(api ResourceAPI, cfg types.AppConfig) *ResourceController {
	return &ResourceController{api: api, cfg: cfg}
}

// HandleList returns one page of converted models.
// GET /api/self/v1/resources?fileType=glb&limit=12&cursor=...
func (r *ResourceController) HandleList(c *gin.Context) {
	fileType := c.DefaultQuery("fileType", r.cfg.TargetFormat)
	limit := r.cfg.ListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, tool.FastReturnError("limit must be a positive integer"))
			return
		}
		limit = min(n, maxListLimit)
	}
	page, err := r.api.ListResources(c.Request.Context(), fileType, limit, c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadGateway, tool.FastReturnError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, page)
}

// HandleResult looks up the converted artifact of a resource.
// GET /api/self/v1/result/:id?fileType=glb
func (r *ResourceController) HandleResult(c *gin.Context) {
	loc, ok := r.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(gin.H{"url": loc.URL}))
}

func (r *ResourceController) lookup(c *gin.Context) (types.ResultLocation, bool) {
	fileType := c.DefaultQuery("fileType", r.cfg.TargetFormat)
	loc, err := r.api.FetchResult(c.Request.Context(), c.Param("id"), fileType)
	if err != nil {
		c.JSON(http.StatusNotFound, tool.FastReturnError(err.Error()))
		return types.ResultLocation{}, false
	}
	return loc, true
}
