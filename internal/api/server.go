// Package api serves the render job HTTP API: submit and inspect jobs,
// download artifacts, and stream progress over a websocket.
package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/forPelevin/adcut/internal/engine"
	"github.com/forPelevin/adcut/internal/pipeline"
	"github.com/forPelevin/adcut/internal/store"
)

type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

type ServerConfig struct {
	Addr string

	// Base carries the mode-independent run config (engine, tool paths,
	// cache and output roots). Each submitted job copies it and fills in
	// the mode-specific fields.
	Base pipeline.Config

	Store     *store.Store
	Engine    *engine.Manager
	Runner    *Runner
	Hub       *WSHub
	Logger    *zap.Logger
	StartTime time.Time
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
