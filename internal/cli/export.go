package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-export/internal/export"
)

var (
	exportOutput string
	exportEDL    bool
)

var exportCmd = &cobra.Command{
	Use:   "export REQUEST.json",
	Short: "Run one export synchronously",
	Long: `Run one export in the foreground. REQUEST.json has the same shape as the
body of POST /api/video/export; use "-" to read it from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := readRequest(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		if exportEDL {
			req.Settings.EDL = true
		}
		if err := export.ValidateRequest(req); err != nil {
			return err
		}

		tool, err := newTool()
		if err != nil {
			return err
		}

		id := uuid.NewString()
		pipeline := export.NewPipeline(export.PipelineConfig{
			Tool:              tool,
			RenderConcurrency: cfg.RenderConcurrency(),
			Logger:            logger,
		})

		stderr := cmd.ErrOrStderr()
		result, err := pipeline.Run(cmd.Context(), export.Job{
			ID:       id,
			Source:   req.InputVideoPath,
			Segments: req.ToSegments(),
			Settings: req.Settings,
			WorkDir:  filepath.Join(cfg.WorkDir(), id),
		}, func(percent int, message string) {
			fmt.Fprintf(stderr, "[%3d%%] %s\n", percent, message)
		})
		if err != nil {
			return err
		}

		out := result.OutputFile
		if exportOutput != "" {
			if err := moveFile(result.OutputFile, exportOutput); err != nil {
				return fmt.Errorf("move output: %w", err)
			}
			out = exportOutput
		}

		fmt.Fprintf(stderr, "[100%%] %s\n", "Export completed successfully!")
		fmt.Fprintln(cmd.OutOrStdout(), out)
		if result.EDLFile != "" {
			fmt.Fprintln(cmd.OutOrStdout(), result.EDLFile)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write the final video here instead of the work dir")
	exportCmd.Flags().BoolVar(&exportEDL, "edl", false, "also write a CMX3600 edit decision list")
}

func readRequest(stdin io.Reader, name string) (export.Request, error) {
	var req export.Request

	r := stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return req, fmt.Errorf("open request: %w", err)
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return req, fmt.Errorf("parse request %s: %w", name, err)
	}
	return req, nil
}

// moveFile renames src to dst, copying when they are on different devices.
func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
