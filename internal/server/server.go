// Package server is the HTTP listener whose lifecycle the orchestrator
// sequences: bound after all supporting subsystems are up, stopped first on
// shutdown. The routing surface is deliberately small; camera CRUD lives
// outside this core.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cameye/cameye/internal/metrics"
)

// HealthSource snapshots the orchestrator's subsystem states for /health.
type HealthSource func() map[string]string

// Server wraps an http.Server with an explicit bind/start/stop lifecycle.
type Server struct {
	mu      sync.Mutex
	addr    string
	version string
	health  HealthSource
	logger  *slog.Logger

	ln      net.Listener
	srv     *http.Server
	running bool
}

// New builds the listener for addr. Nothing is bound until Bind.
func New(addr, version string, health HealthSource, logger *slog.Logger) *Server {
	return &Server{addr: addr, version: version, health: health, logger: logger}
}

type versionResp struct {
	Version string `json:"version"`
}

type healthResp struct {
	Status     string            `json:"status"`
	Subsystems map[string]string `json:"subsystems"`
}

// Handler returns the gin-powered handler; exported so tests can drive it
// without a real listener.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, versionResp{Version: s.version})
	})
	g.GET("/health", func(c *gin.Context) {
		resp := healthResp{Status: "ok"}
		if s.health != nil {
			resp.Subsystems = s.health()
		}
		c.JSON(http.StatusOK, resp)
	})
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// Bind claims the listen address. Separate from Start so an unusable port is
// reported as this step's own failure during orchestration.
func (s *Server) Bind() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return fmt.Errorf("listener already bound to %s", s.addr)
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.addr, err)
	}
	s.ln = ln
	return nil
}

// Start begins serving on the bound listener, binding first if needed.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.ln == nil {
		s.mu.Unlock()
		if err := s.Bind(); err != nil {
			return err
		}
		s.mu.Lock()
	}
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv, ln := s.srv, s.ln
	s.running = true
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server terminated", "error", err)
		}
	}()
	s.logger.Info("http server listening", "addr", s.addr)
	return nil
}

// Stop drains connections and closes the listener.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv, ln := s.srv, s.ln
	s.srv = nil
	s.ln = nil
	s.running = false
	s.mu.Unlock()
	if srv == nil {
		if ln != nil {
			_ = ln.Close()
		}
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// Running reports whether the server is serving.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Addr returns the bound address (useful when the config port is 0 in tests).
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}
