// Package opsserver exposes health, metrics and queue diagnostics over HTTP.
package opsserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"PriceSentinel/internal/metrics"
	"PriceSentinel/internal/queue"
)

// SnapshotSource reports queue state for /debug/queue.
type SnapshotSource interface {
	Snapshot() queue.Snapshot
}

// Server is the operational HTTP endpoint.
type Server struct {
	srv *http.Server
	log zerolog.Logger
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// NewRouter builds the gin engine serving /healthz, /metrics and /debug/queue.
func NewRouter(q SnapshotSource, started time.Time) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(started).Round(time.Second).String(),
		})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/debug/queue", func(c *gin.Context) {
		if q == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue not running"})
			return
		}
		c.JSON(http.StatusOK, q.Snapshot())
	})
	return r
}

// New creates a server bound to addr.
func New(addr string, q SnapshotSource, log zerolog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(q, time.Now()),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
		log: log.With().Str("comp", "ops").Logger(),
	}
}

// Start serves in the background. An empty address disables the server.
func (s *Server) Start() {
	if s.srv.Addr == "" {
		s.log.Info().Msg("ops server disabled")
		return
	}
	go func() {
		s.log.Info().Str("addr", s.srv.Addr).Msg("ops server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("ops server")
		}
	}()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv.Addr == "" {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
