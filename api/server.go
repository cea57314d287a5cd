package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/moyoez/blendconv/api/controllers"
	"github.com/moyoez/blendconv/api/middlewares"
	"github.com/moyoez/blendconv/api/models"
	"github.com/moyoez/blendconv/api/notifyhub"
	"github.com/moyoez/blendconv/saga"
	"github.com/moyoez/blendconv/tool"
	"github.com/moyoez/blendconv/types"
)

// Backend is what the control API needs from the resource client.
type Backend interface {
	saga.ResourceClient
	controllers.ResourceAPI
}

// Server is the local control API: it starts uploads and streams their progress.
type Server struct {
	cfg        types.AppConfig
	backend    Backend
	supervisor saga.Supervisor
	hub        *notifyhub.Hub

	baseCtx context.Context
	stop    context.CancelFunc

	mu     sync.RWMutex
	engine *gin.Engine
	server *http.Server
}

// NewServer wires controllers to backend. Sagas started by the server live until Shutdown.
func NewServer(cfg types.AppConfig, backend Backend, supervisor saga.Supervisor) *Server {
	baseCtx, stop := context.WithCancel(context.Background())
	return &Server{
		cfg:        cfg,
		backend:    backend,
		supervisor: supervisor,
		hub:        notifyhub.New(),
		baseCtx:    baseCtx,
		stop:       stop,
	}
}

// Hub exposes the progress hub.
func (s *Server) Hub() *notifyhub.Hub {
	return s.hub
}

// Engine builds the router once and returns it.
func (s *Server) Engine() *gin.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		s.engine = s.setupRoutes()
	}
	return s.engine
}

func (s *Server) setupRoutes() *gin.Engine {
	if tool.DefaultLogger.GetLevel() == log.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middlewares.AllowAllCORS())

	uploadCtrl := controllers.NewUploadController(s.baseCtx, s.backend, s.supervisor, s.hub, s.cfg)
	resourceCtrl := controllers.NewResourceController(s.backend, s.cfg)
	notifyWS := notifyhub.HandleNotifyWS(s.hub, models.RunningSnapshots)

	self := engine.Group("/api/self/v1", middlewares.OnlyAllowLocal)
	{
		self.POST("/upload", uploadCtrl.HandleUpload)                   // Start an upload attempt (multipart "file")
		self.GET("/attempts/:id", uploadCtrl.HandleAttempt)             // Attempt state
		self.POST("/attempts/:id/cancel", uploadCtrl.HandleCancel)      // Cancel a running attempt
		self.GET("/resources", resourceCtrl.HandleList)                 // Paged listing of converted models
		self.GET("/result/:id", resourceCtrl.HandleResult)              // Download URL of a converted model
		self.GET("/result/:id/qrcode", resourceCtrl.HandleResultQRCode) // Same URL as a QR code PNG
		self.GET("/notify-ws", notifyWS)                                // Attempt progress stream
		self.GET("/status", controllers.HandleStatus(s.hub))            // Liveness for the web UI
		self.GET("/config", controllers.HandleConfig(s.cfg))            // Effective config, API key redacted
	}
	return engine
}

// Start listens on the configured port until Shutdown.
func (s *Server) Start() error {
	engine := s.Engine()

	s.mu.Lock()
	s.server = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	tool.DefaultLogger.Infof("Starting control API on http://%s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and cancels every running attempt.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stop()
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
