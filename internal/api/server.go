package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/heimdex/heimdex-export/internal/export"
	"github.com/heimdex/heimdex-export/internal/jobs"
	"github.com/heimdex/heimdex-export/internal/media"
	"github.com/heimdex/heimdex-export/internal/metrics"
)

// ExportService is the job API the handlers depend on. *jobs.Manager
// implements it.
type ExportService interface {
	Submit(ctx context.Context, req export.Request) (*jobs.Job, error)
	Get(ctx context.Context, id string) (*jobs.Job, error)
	List(ctx context.Context, limit int) ([]*jobs.Job, error)
	Cancel(ctx context.Context, id string) (*jobs.Job, error)
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Addr           string
	Exports        ExportService
	Metrics        *metrics.Collector
	Doctor         *media.CachedDoctor
	APIToken       string
	AllowedOrigins []string
	Logger         *slog.Logger
	StartTime      time.Time
	Version        string
	WSPollInterval time.Duration
}

func NewServer(cfg ServerConfig) *Server {
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
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
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
