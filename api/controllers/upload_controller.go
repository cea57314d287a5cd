package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/blendconv/api/models"
	"github.com/moyoez/blendconv/api/notifyhub"
	"github.com/moyoez/blendconv/saga"
	"github.com/moyoez/blendconv/tool"
	"github.com/moyoez/blendconv/types"
)

// UploadController starts, reports and cancels upload attempts.
type UploadController struct {
	baseCtx    context.Context
	client     saga.ResourceClient
	supervisor saga.Supervisor
	hub        *notifyhub.Hub
	cfg        types.AppConfig

	mu       sync.Mutex
	inFlight int
}

func NewUploadController(baseCtx context.Context, client saga.ResourceClient, supervisor saga.Supervisor, hub *notifyhub.Hub, cfg types.AppConfig) *UploadController {
	return &UploadController{
		baseCtx:    baseCtx,
		client:     client,
		supervisor: supervisor,
		hub:        hub,
		cfg:        cfg,
	}
}

// HandleUpload accepts a multipart "file" and runs its saga in the background.
// POST /api/self/v1/upload
func (u *UploadController) HandleUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Missing file: "+err.Error()))
		return
	}
	if fileHeader.Size > tool.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, tool.FastReturnError(fmt.Sprintf("File too large (max %d bytes)", tool.MaxUploadSize)))
		return
	}

	fileName := filepath.Base(fileHeader.Filename)
	sourceFormat := tool.ResolveSourceFormat(fileName, u.cfg.SourceFormat)
	targetFormat := c.DefaultPostForm("toFileType", u.cfg.TargetFormat)
	if err := tool.ValidateFormats(sourceFormat, targetFormat); err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError(err.Error()))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Failed to open file: "+err.Error()))
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			tool.DefaultLogger.Errorf("Failed to close multipart file: %v", err)
		}
	}()
	payload, err := tool.ReadAllWithContext(c.Request.Context(), file, fileHeader.Size)
	if err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Failed to read file: "+err.Error()))
		return
	}
	if len(payload) == 0 {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("File is empty"))
		return
	}

	u.mu.Lock()
	if u.exclusive() && u.inFlight > 0 {
		u.mu.Unlock()
		c.JSON(http.StatusConflict, tool.FastReturnError(types.ErrChannelBusy.Error()+": another upload is in progress"))
		return
	}
	attempt := types.NewUploadAttempt(tool.GenerateAttemptID(), fileName, payload, sourceFormat, targetFormat)
	u.inFlight++
	u.launch(attempt)
	u.mu.Unlock()

	c.JSON(http.StatusAccepted, tool.FastReturnSuccessWithData(gin.H{
		"id":         attempt.ID,
		"resourceId": attempt.ResourceID,
	}))
}

func (u *UploadController) launch(attempt *types.UploadAttempt) {
	s := saga.New(u.client, u.supervisor, saga.Options{
		TokenTimeout:      u.cfg.TokenTimeout,
		CompletionTimeout: u.cfg.CompletionTimeout,
		Observer: func(snap types.AttemptSnapshot) {
			models.PutSnapshot(snap)
			u.hub.BroadcastSnapshot(snap)
		},
	})
	models.RegisterRunning(attempt.ID, s)
	models.PutSnapshot(s.Snapshot(attempt.ID, attempt.ResourceID))

	go func() {
		defer func() {
			models.RemoveRunning(attempt.ID)
			u.mu.Lock()
			u.inFlight--
			u.mu.Unlock()
		}()
		_, err := s.Run(u.baseCtx, attempt)
		if err != nil && !errors.Is(err, types.ErrCancelled) {
			tool.DefaultLogger.Warnf("[Upload] Attempt %s ended: %v", attempt.ID, err)
		}
	}()
}

// exclusive reports whether the supervisor serves one attempt at a time.
func (u *UploadController) exclusive() bool {
	e, ok := u.supervisor.(saga.Exclusive)
	return ok && e.Exclusive()
}

// HandleAttempt returns the latest snapshot of an attempt.
// GET /api/self/v1/attempts/:id
func (u *UploadController) HandleAttempt(c *gin.Context) {
	snap, ok := models.GetSnapshot(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, tool.FastReturnError("Attempt not found"))
		return
	}
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(snap))
}

// HandleCancel cancels a running attempt. Cancelling a finished attempt is a no-op.
// POST /api/self/v1/attempts/:id/cancel
func (u *UploadController) HandleCancel(c *gin.Context) {
	id := c.Param("id")
	if _, ok := models.GetSnapshot(id); !ok {
		c.JSON(http.StatusNotFound, tool.FastReturnError("Attempt not found"))
		return
	}
	if s := models.GetRunning(id); s != nil {
		s.Cancel()
	}
	c.JSON(http.StatusOK, tool.FastReturnSuccess())
}
