package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/heimdex/heimdex-export/internal/media"
)

// ClipFilename is the deterministic name of a group's rendered clip.
func ClipFilename(g Group) string {
	return fmt.Sprintf("segment_%03d_%s.mp4", g.Index, Slug(g.Segments[0].Description, slugMaxLen))
}

// Renderer cuts one frame-accurate clip per group.
type Renderer struct {
	tool   media.Tool
	logger *slog.Logger
}

func NewRenderer(tool media.Tool, logger *slog.Logger) *Renderer {
	return &Renderer{tool: tool, logger: logger}
}

// RenderArgs builds the ffmpeg arguments for a group. Boundaries are snapped
// to frame starts and the clip is re-encoded at the source frame rate.
func RenderArgs(source string, g Group, info *media.VideoInfo, quality Quality, out string) []string {
	start := SnapToFrame(g.Start(), info.FPS)
	end := SnapToFrame(g.End(), info.FPS)

	return []string{
		"-y",
		"-i", source,
		"-ss", formatSeconds(start),
		"-to", formatSeconds(end),
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", strconv.Itoa(quality.CRF()),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "256k",
		"-movflags", "+faststart",
		"-r", formatSeconds(info.FPS),
		"-video_track_timescale", "90000",
		out,
	}
}

// Render produces the clip for g inside outDir and returns its path.
func (r *Renderer) Render(ctx context.Context, source string, g Group, outDir string, info *media.VideoInfo, settings Settings) (string, error) {
	if len(g.Segments) == 0 {
		return "", Errorf(KindRender, "group %d is empty", g.Index)
	}
	if info == nil || info.FPS <= 0 {
		return "", Errorf(KindRender, "group %d: missing frame rate", g.Index)
	}

	name := ClipFilename(g)
	out := filepath.Join(outDir, name)

	r.logger.Debug("rendering clip",
		"group", g.Index,
		"segments", len(g.Segments),
		"start", g.Start(),
		"end", g.End(),
		"file", name,
	)

	result := r.tool.FFmpeg(ctx, RenderArgs(source, g, info, settings.Quality, out)...)
	if err := result.Err(); err != nil {
		return "", toolError(KindRender, fmt.Sprintf("Failed to create segment %s", name), result, err)
	}
	return out, nil
}

// toolError wraps a failed tool run, keeping stderr verbatim.
func toolError(kind Kind, msg string, result media.RunResult, err error) *Error {
	if errors.Is(err, media.ErrTimeout) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Message: msg, Output: result.StderrTail, Err: err}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
