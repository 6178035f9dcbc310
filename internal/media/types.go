// Package media runs the ffprobe/ffmpeg command-line tools as subprocesses
// and parses their output.
package media

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is reported when a tool invocation exceeds its deadline.
var ErrTimeout = errors.New("media tool timed out")

// Tool is the external media collaborator used by the export pipeline.
type Tool interface {
	// Probe reads stream and container metadata from a source file.
	Probe(ctx context.Context, path string) (*VideoInfo, error)

	// FFmpeg runs ffmpeg with the given arguments and blocks until it exits.
	FFmpeg(ctx context.Context, args ...string) RunResult
}

// VideoInfo is the metadata of the first video stream of a file.
type VideoInfo struct {
	FPS      float64 `json:"fps"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Codec    string  `json:"codec"`
	Duration float64 `json:"duration"`
}

// RunResult is the structured outcome of executing a tool subprocess.
type RunResult struct {
	ExitCode   int           `json:"exit_code"`
	StderrTail string        `json:"stderr_tail,omitempty"` // last N bytes of stderr
	Duration   time.Duration `json:"duration"`
	TimedOut   bool          `json:"timed_out,omitempty"`
	Canceled   bool          `json:"canceled,omitempty"`
}

// IsSuccess returns true when the subprocess exited cleanly.
func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 && !r.TimedOut && !r.Canceled }

// Err converts a failed result into an error, or nil on success.
func (r RunResult) Err() error {
	switch {
	case r.IsSuccess():
		return nil
	case r.TimedOut:
		return fmt.Errorf("%w after %s", ErrTimeout, r.Duration.Round(time.Millisecond))
	case r.Canceled:
		return context.Canceled
	default:
		return &ExitError{ExitCode: r.ExitCode, Stderr: r.StderrTail}
	}
}

// ExitError is a non-zero exit from a tool.
type ExitError struct {
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.ExitCode)
}
