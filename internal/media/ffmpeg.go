package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"
)

const (
	maxStderrBytes = 64 * 1024 // tail of stderr kept for diagnostics
)

// Config holds the tool locations and limits.
type Config struct {
	FFmpegPath  string        // empty = "ffmpeg" on PATH
	FFprobePath string        // empty = "ffprobe" on PATH
	Timeout     time.Duration // per invocation; 0 = no timeout
	Logger      *slog.Logger
}

// FFmpegTool is the production implementation of Tool.
type FFmpegTool struct {
	cfg     Config
	ffmpeg  string
	ffprobe string
}

// NewFFmpegTool resolves both binaries and returns a ready Tool.
func NewFFmpegTool(cfg Config) (*FFmpegTool, error) {
	ffmpeg, err := resolveBinary(cfg.FFmpegPath, "ffmpeg")
	if err != nil {
		return nil, err
	}
	ffprobe, err := resolveBinary(cfg.FFprobePath, "ffprobe")
	if err != nil {
		return nil, err
	}

	cfg.Logger.Info("media tools resolved",
		"ffmpeg", ffmpeg,
		"ffprobe", ffprobe,
		"timeout", cfg.Timeout,
	)

	return &FFmpegTool{cfg: cfg, ffmpeg: ffmpeg, ffprobe: ffprobe}, nil
}

// FFmpeg runs ffmpeg non-interactively with the given arguments.
func (t *FFmpegTool) FFmpeg(ctx context.Context, args ...string) RunResult {
	full := append([]string{"-hide_banner", "-nostdin"}, args...)
	result, _ := t.run(ctx, t.ffmpeg, nil, full...)
	return result
}

// run is the core subprocess execution helper. When stdout is nil the
// process output is discarded.
func (t *FFmpegTool) run(ctx context.Context, bin string, stdout io.Writer, args ...string) (RunResult, error) {
	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, bin, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	if stdout == nil {
		stdout = io.Discard
	}
	cmd.Stdout = stdout

	t.cfg.Logger.Debug("executing media command", "bin", bin, "args", args)

	err := cmd.Run()
	elapsed := time.Since(start)

	result := RunResult{Duration: elapsed}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
			if stderrBuf.Len() == 0 {
				stderrBuf.WriteString(err.Error())
			}
		}
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		result.TimedOut = true
	case errors.Is(ctx.Err(), context.Canceled):
		result.Canceled = true
	}
	result.StderrTail = stderrBuf.String()

	if !result.IsSuccess() {
		t.cfg.Logger.Warn("media command failed",
			"bin", bin,
			"exit_code", result.ExitCode,
			"timed_out", result.TimedOut,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(result.StderrTail, 512),
		)
	} else {
		t.cfg.Logger.Debug("media command succeeded",
			"bin", bin,
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	return result, err
}

// resolveBinary finds a usable executable.
func resolveBinary(preferred, fallback string) (string, error) {
	name := fallback
	if preferred != "" {
		name = preferred
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("cannot locate %s: %w", name, err)
	}
	return p, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := make([]byte, lw.limit)
		copy(tail, b[len(b)-lw.limit:])
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
