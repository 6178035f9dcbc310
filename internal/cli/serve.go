package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-export/internal/api"
	"github.com/heimdex/heimdex-export/internal/config"
	"github.com/heimdex/heimdex-export/internal/db"
	"github.com/heimdex/heimdex-export/internal/export"
	"github.com/heimdex/heimdex-export/internal/jobs"
	"github.com/heimdex/heimdex-export/internal/logging"
	"github.com/heimdex/heimdex-export/internal/media"
	"github.com/heimdex/heimdex-export/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the export HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	startTime := time.Now()

	if err := os.MkdirAll(cfg.DataDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.WorkDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}

	logger.Info("starting heimdex export", "version", config.Version, "data_dir", cfg.DataDir())

	var store jobs.Store
	if cfg.PersistJobs() {
		database, err := db.New(cfg.DBPath(), logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer database.Close()
		store = jobs.NewSQLiteStore(database.Conn())
	} else {
		store = jobs.NewMemoryStore()
	}

	tool, err := newTool()
	if err != nil {
		return fmt.Errorf("media tools unavailable: %w", err)
	}

	doctor := media.NewCachedDoctor(tool, logging.WithComponent(logger, "doctor"))
	if caps, err := doctor.Refresh(ctx); err != nil {
		logger.Warn("initial media probe failed", "error", err)
	} else if !caps.Ready {
		logger.Warn("ffmpeg lacks encoders for the export profile", "encoders", caps.Encoders)
	}

	collector := metrics.NewCollector()
	pipeline := export.NewPipeline(export.PipelineConfig{
		Tool:              tool,
		RenderConcurrency: cfg.RenderConcurrency(),
		Logger:            logger,
	})
	manager := jobs.NewManager(jobs.ManagerConfig{
		Store:             store,
		Runner:            pipeline,
		WorkDir:           cfg.WorkDir(),
		MaxConcurrentJobs: cfg.MaxConcurrentJobs(),
		QueueSize:         cfg.QueueSize(),
		MinFreeDiskBytes:  cfg.MinFreeDiskBytes(),
		Recorder:          collector,
		Logger:            logger,
	})

	apiServer := api.NewServer(api.ServerConfig{
		Addr:           cfg.Addr(),
		Exports:        manager,
		Metrics:        collector,
		Doctor:         doctor,
		APIToken:       cfg.APIToken(),
		AllowedOrigins: cfg.AllowedOrigins(),
		Logger:         logger,
		StartTime:      startTime,
		Version:        config.Version,
	})

	printBanner(cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	select {
	case err := <-errCh:
		manager.Close()
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	manager.Close()

	logger.Info("shutdown complete")
	return nil
}

func printBanner(c config.Config) {
	auth := "disabled"
	if c.APIToken() != "" {
		auth = "bearer token"
	}
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                  HEIMDEX EXPORT v%-24s ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://%-38s ║\n", c.Addr())
	fmt.Printf("║  Auth:       %-45s ║\n", auth)
	fmt.Printf("║  Workers:    %-45d ║\n", c.MaxConcurrentJobs())
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
}
