package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/heimdex/heimdex-export/internal/media"
)

// fakeTool simulates ffmpeg: renders write a small text file describing the
// cut, concat writes the listed files back to back.
type fakeTool struct {
	mu        sync.Mutex
	info      *media.VideoInfo
	probeErr  error
	fail      func(args []string) (media.RunResult, bool)
	calls     [][]string
	manifests []string
}

func newFakeTool() *fakeTool {
	return &fakeTool{info: &media.VideoInfo{FPS: 30, Width: 1280, Height: 720, Codec: "h264", Duration: 120}}
}

func (f *fakeTool) Probe(ctx context.Context, path string) (*media.VideoInfo, error) {
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	info := *f.info
	return &info, nil
}

func (f *fakeTool) FFmpeg(ctx context.Context, args ...string) media.RunResult {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.mu.Unlock()

	if f.fail != nil {
		if result, failed := f.fail(args); failed {
			return result
		}
	}

	out := args[len(args)-1]
	if isConcat(args) {
		list, err := os.ReadFile(argAfter(args, "-i"))
		if err != nil {
			return media.RunResult{ExitCode: 1, StderrTail: err.Error()}
		}
		f.mu.Lock()
		f.manifests = append(f.manifests, string(list))
		f.mu.Unlock()

		var joined bytes.Buffer
		for _, line := range strings.Split(strings.TrimSpace(string(list)), "\n") {
			path := strings.TrimSuffix(strings.TrimPrefix(line, "file '"), "'")
			data, err := os.ReadFile(path)
			if err != nil {
				return media.RunResult{ExitCode: 1, StderrTail: err.Error()}
			}
			joined.Write(data)
		}
		if err := os.WriteFile(out, joined.Bytes(), 0o644); err != nil {
			return media.RunResult{ExitCode: 1, StderrTail: err.Error()}
		}
		return media.RunResult{}
	}

	content := fmt.Sprintf("clip %s-%s\n", argAfter(args, "-ss"), argAfter(args, "-to"))
	if err := os.WriteFile(out, []byte(content), 0o644); err != nil {
		return media.RunResult{ExitCode: 1, StderrTail: err.Error()}
	}
	return media.RunResult{}
}

func (f *fakeTool) renderCalls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]string
	for _, c := range f.calls {
		if !isConcat(c) {
			out = append(out, c)
		}
	}
	return out
}

func isConcat(args []string) bool {
	return argAfter(args, "-f") == "concat"
}

func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
