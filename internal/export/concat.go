package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/heimdex/heimdex-export/internal/media"
)

// Concatenator joins rendered clips by stream copy.
type Concatenator struct {
	tool   media.Tool
	logger *slog.Logger
}

func NewConcatenator(tool media.Tool, logger *slog.Logger) *Concatenator {
	return &Concatenator{tool: tool, logger: logger}
}

// ManifestPath is where the concat list for out is written.
func ManifestPath(out string) string {
	return strings.TrimSuffix(out, filepath.Ext(out)) + "_concat_list.txt"
}

// BuildManifest renders the concat demuxer list, one absolute path per line
// in clip order.
func BuildManifest(clips []string) (string, error) {
	var b strings.Builder
	for _, clip := range clips {
		abs, err := filepath.Abs(clip)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", clip, err)
		}
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String(), nil
}

// Concatenate joins clips in order into out. The manifest is removed on
// every return path.
func (c *Concatenator) Concatenate(ctx context.Context, clips []string, out string) (string, error) {
	if len(clips) == 0 {
		return "", Errorf(KindConcat, "No segments to concatenate")
	}

	manifest, err := BuildManifest(clips)
	if err != nil {
		return "", &Error{Kind: KindConcat, Message: "build concat list", Err: err}
	}

	listPath := ManifestPath(out)
	if err := os.WriteFile(listPath, []byte(manifest), 0o644); err != nil {
		return "", &Error{Kind: KindConcat, Message: "write concat list", Err: err}
	}
	defer func() {
		if err := os.Remove(listPath); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("failed to remove concat list", "path", listPath, "error", err)
		}
	}()

	result := c.tool.FFmpeg(ctx,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-movflags", "+faststart",
		out,
	)
	if err := result.Err(); err != nil {
		return "", toolError(KindConcat, "Concatenation failed", result, err)
	}

	c.logger.Debug("clips concatenated", "clips", len(clips), "output", filepath.Base(out))
	return out, nil
}
