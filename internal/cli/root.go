// Package cli provides the heimdex-export command-line interface.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-export/internal/config"
	"github.com/heimdex/heimdex-export/internal/logging"
	"github.com/heimdex/heimdex-export/internal/media"
)

var (
	// Global flags
	configPath string
	logLevel   string

	cfg         config.Config
	logger      *slog.Logger
	closeLogger = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "heimdex-export",
	Short: "Segment-based video export service",
	Long: `heimdex-export cuts a source video down to a list of time-coded segments.

Segments separated by short pauses are merged into one clip, each clip is
re-encoded with frame-accurate boundaries, and the clips are joined into a
single MP4. Exports run in the background behind an HTTP job API, or
synchronously from the command line.`,
	Version:       config.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var (
			loaded *config.EnvConfig
			err    error
		)
		if configPath != "" {
			loaded, err = config.Load(configPath)
		} else {
			loaded, err = config.New()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded

		level := cfg.LogLevel()
		if logLevel != "" {
			level = logLevel
		}
		logger, closeLogger = logging.NewLoggerWithFile(level, cfg.LogFile())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLogger()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default $"+config.EnvConfigFile+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newTool() (*media.FFmpegTool, error) {
	return media.NewFFmpegTool(media.Config{
		FFmpegPath:  cfg.FFmpegPath(),
		FFprobePath: cfg.FFprobePath(),
		Timeout:     cfg.ToolTimeout(),
		Logger:      logging.WithComponent(logger, "media"),
	})
}
