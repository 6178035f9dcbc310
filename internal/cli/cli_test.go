package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/heimdex/heimdex-export/internal/config"
	"github.com/heimdex/heimdex-export/internal/export"
)

func TestRootCommand_Subcommands(t *testing.T) {
	want := []string{"serve", "export", "probe", "doctor", "version"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered (err=%v)", name, err)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "heimdex-export "+config.Version) {
		t.Errorf("version output = %q", out.String())
	}
}

func TestReadRequest(t *testing.T) {
	body := `{
		"segments": [{"start": 1.5, "end": 4, "text": "hello"}],
		"export_settings": {"exportQuality": "low", "pause_threshold": 0.5},
		"original_filename": "clip.mov",
		"input_video_path": "/videos/clip.mov"
	}`

	path := filepath.Join(t.TempDir(), "req.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	for name, args := range map[string]struct {
		stdin string
		arg   string
	}{
		"file":  {"", path},
		"stdin": {body, "-"},
	} {
		t.Run(name, func(t *testing.T) {
			req, err := readRequest(strings.NewReader(args.stdin), args.arg)
			if err != nil {
				t.Fatalf("readRequest() error = %v", err)
			}
			if len(req.Segments) != 1 || req.Segments[0].Start != 1.5 {
				t.Errorf("segments = %+v", req.Segments)
			}
			if req.Settings.Quality != export.QualityLow {
				t.Errorf("quality = %q, want low", req.Settings.Quality)
			}
			if req.InputVideoPath != "/videos/clip.mov" {
				t.Errorf("input_video_path = %q", req.InputVideoPath)
			}
		})
	}
}

func TestReadRequest_Errors(t *testing.T) {
	if _, err := readRequest(nil, filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file: error = nil")
	}
	if _, err := readRequest(strings.NewReader("{not json"), "-"); err == nil {
		t.Error("bad json: error = nil")
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "final.mp4")
	dst := filepath.Join(dir, "nested", "out.mp4")
	if err := os.WriteFile(src, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := moveFile(src, dst); err != nil {
		t.Fatalf("moveFile() error = %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "video" {
		t.Errorf("dst = %q, %v", data, err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("src still exists: %v", err)
	}
}
