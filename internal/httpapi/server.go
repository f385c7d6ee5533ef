// Package httpapi exposes the service's operational surface: liveness and
// readiness probes, a metrics snapshot, and the manual full-sync trigger.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/modelsync/internal/config"
	"github.com/dmitrijs2005/modelsync/internal/engine"
	"github.com/dmitrijs2005/modelsync/internal/health"
	"github.com/dmitrijs2005/modelsync/internal/logging"
)

// SyncTrigger starts a full reconciliation sweep on demand.
type SyncTrigger interface {
	TriggerFullSync(ctx context.Context) *engine.FullSyncSummary
}

type Server struct {
	router  *gin.Engine
	cfg     *config.Config
	tracker *health.Tracker
	trigger SyncTrigger
	logger  logging.Logger
}

func NewServer(cfg *config.Config, tracker *health.Tracker, trigger SyncTrigger, logger logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:  gin.New(),
		cfg:     cfg,
		tracker: tracker,
		trigger: trigger,
		logger:  logger,
	}

	s.router.Use(gin.Recovery())
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/readyz", s.handleReady)
	s.router.GET("/metrics", s.handleMetrics)
	s.router.POST("/sync", s.handleSync)

	return s
}

func (s *Server) handleHealth(c *gin.Context) {
	if !s.tracker.Check() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReady(c *gin.Context) {
	if err := s.cfg.Validate(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.tracker.Snapshot())
}

// handleSync runs the reconciliation synchronously and maps a partial
// failure onto 207 so callers can tell it apart from total success.
func (s *Server) handleSync(c *gin.Context) {
	summary := s.trigger.TriggerFullSync(c.Request.Context())

	status := http.StatusOK
	if !summary.Success {
		status = http.StatusMultiStatus
	}
	c.JSON(status, summary)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info(ctx, "http server started", "addr", s.cfg.HTTPAddr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
