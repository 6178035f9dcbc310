package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimdex/heimdex-export/internal/media"
)

type progressLog struct {
	mu      sync.Mutex
	percent []int
	message []string
}

func (p *progressLog) record(percent int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.percent = append(p.percent, percent)
	p.message = append(p.message, message)
}

func newTestJob(t *testing.T, segs ...Segment) Job {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "source.mp4")
	require.NoError(t, os.WriteFile(src, []byte("src"), 0o644))
	return Job{
		ID:       "job-1",
		Source:   src,
		Segments: segs,
		WorkDir:  filepath.Join(dir, "work"),
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestPipeline_Run(t *testing.T) {
	tool := newFakeTool()
	p := NewPipeline(PipelineConfig{Tool: tool, Logger: discardLogger()})
	job := newTestJob(t,
		Segment{Start: 20, End: 25, Description: "third"},
		Segment{Start: 0, End: 5, Description: "first"},
		Segment{Start: 5.5, End: 10, Description: "second"},
	)
	var progress progressLog

	res, err := p.Run(context.Background(), job, progress.record)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(job.WorkDir, "final_video_job-1.mp4"), res.OutputFile)
	require.Len(t, res.Groups, 2)
	require.Len(t, res.CutPauses, 1)
	assert.Equal(t, 30.0, res.Info.FPS)

	data, err := os.ReadFile(res.OutputFile)
	require.NoError(t, err)
	assert.Equal(t, "clip 0-10\nclip 20-25\n", string(data))

	assert.Equal(t, []string{"final_video_job-1.mp4"}, listDir(t, job.WorkDir), "clips and manifest must be removed")
	assert.Empty(t, res.CleanupErrors)
	assert.Empty(t, res.EDLFile)

	for i := 1; i < len(progress.percent); i++ {
		assert.GreaterOrEqual(t, progress.percent[i], progress.percent[i-1], "progress must not go backwards: %v", progress.percent)
	}
	assert.Equal(t, ProgressProbe, progress.percent[0])
	assert.Equal(t, ProgressCleanup, progress.percent[len(progress.percent)-1])
}

func TestPipeline_RunWritesEDL(t *testing.T) {
	tool := newFakeTool()
	p := NewPipeline(PipelineConfig{Tool: tool, Logger: discardLogger()})
	job := newTestJob(t, Segment{Start: 1, End: 2, Description: "a"})
	job.Settings.EDL = true

	res, err := p.Run(context.Background(), job, nil)
	require.NoError(t, err)

	require.NotEmpty(t, res.EDLFile)
	data, err := os.ReadFile(res.EDLFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "TITLE: edited_video_job-1")
	assert.Contains(t, string(data), "* SOURCE FILE:  source.mp4")
}

func TestPipeline_RunParallelKeepsOrder(t *testing.T) {
	tool := newFakeTool()
	p := NewPipeline(PipelineConfig{Tool: tool, RenderConcurrency: 3, Logger: discardLogger()})

	var segs []Segment
	var want strings.Builder
	for i := 0; i < 8; i++ {
		start := float64(i * 10)
		segs = append(segs, Segment{Start: start, End: start + 1, Description: fmt.Sprintf("s%d", i)})
		fmt.Fprintf(&want, "clip %s-%s\n", formatSeconds(start), formatSeconds(start+1))
	}
	job := newTestJob(t, segs...)
	var progress progressLog

	res, err := p.Run(context.Background(), job, progress.record)
	require.NoError(t, err)

	data, err := os.ReadFile(res.OutputFile)
	require.NoError(t, err)
	assert.Equal(t, want.String(), string(data))
	assert.Len(t, tool.renderCalls(), 8)
	assert.Contains(t, progress.percent, ProgressClipsEnd)
}

func TestPipeline_RunProbeFailure(t *testing.T) {
	tool := newFakeTool()
	tool.probeErr = errors.New("moov atom not found")
	p := NewPipeline(PipelineConfig{Tool: tool, Logger: discardLogger()})

	_, err := p.Run(context.Background(), newTestJob(t, Segment{Start: 0, End: 1}), nil)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindProbe, e.Kind)
	assert.Equal(t, "Error getting video info", e.Message)
	assert.Empty(t, tool.calls)
}

func TestPipeline_RunProbeTimeout(t *testing.T) {
	tool := newFakeTool()
	tool.probeErr = fmt.Errorf("ffprobe: %w", media.ErrTimeout)
	p := NewPipeline(PipelineConfig{Tool: tool, Logger: discardLogger()})

	_, err := p.Run(context.Background(), newTestJob(t, Segment{Start: 0, End: 1}), nil)

	assert.True(t, IsKind(err, KindTimeout))
}

func TestPipeline_RunRenderFailureCleansUp(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			tool := newFakeTool()
			tool.fail = func(args []string) (media.RunResult, bool) {
				if strings.Contains(args[len(args)-1], "_bad") {
					return media.RunResult{ExitCode: 1, StderrTail: "Conversion failed!"}, true
				}
				return media.RunResult{}, false
			}
			p := NewPipeline(PipelineConfig{Tool: tool, RenderConcurrency: concurrency, Logger: discardLogger()})
			job := newTestJob(t,
				Segment{Start: 0, End: 1, Description: "good"},
				Segment{Start: 10, End: 11, Description: "bad"},
				Segment{Start: 20, End: 21, Description: "later"},
			)

			res, err := p.Run(context.Background(), job, nil)

			assert.Nil(t, res)
			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, KindRender, e.Kind)
			assert.Equal(t, "Failed to create segment segment_001_bad.mp4", e.Message)
			assert.Equal(t, "Conversion failed!", e.Output)
			assert.Empty(t, listDir(t, job.WorkDir), "partial clips must be removed")
		})
	}
}

func TestPipeline_RunConcatFailure(t *testing.T) {
	tool := newFakeTool()
	tool.fail = func(args []string) (media.RunResult, bool) {
		if isConcat(args) {
			return media.RunResult{ExitCode: 1, StderrTail: "concat error"}, true
		}
		return media.RunResult{}, false
	}
	p := NewPipeline(PipelineConfig{Tool: tool, Logger: discardLogger()})
	job := newTestJob(t, Segment{Start: 0, End: 1}, Segment{Start: 10, End: 11})

	_, err := p.Run(context.Background(), job, nil)

	assert.True(t, IsKind(err, KindConcat))
	assert.Empty(t, listDir(t, job.WorkDir))
}

func TestPipeline_RunNoSegments(t *testing.T) {
	p := NewPipeline(PipelineConfig{Tool: newFakeTool(), Logger: discardLogger()})

	_, err := p.Run(context.Background(), newTestJob(t), nil)

	assert.True(t, IsKind(err, KindValidation))
}
