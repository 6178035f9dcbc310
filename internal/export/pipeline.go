package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/heimdex/heimdex-export/internal/logging"
	"github.com/heimdex/heimdex-export/internal/media"
)

// Progress bands for each phase, in percent.
const (
	ProgressProbe       = 10
	ProgressGrouping    = 20
	ProgressClipsStart  = 30
	ProgressClipsEnd    = 80
	ProgressConcat      = 85
	ProgressEDL         = 90
	ProgressCleanup     = 95
	ProgressDone        = 100
	progressClipsWindow = ProgressClipsEnd - ProgressClipsStart
)

// ProgressFunc receives advisory progress. It may be called from several
// goroutines when clips render in parallel.
type ProgressFunc func(percent int, message string)

// Job is one unit of pipeline work.
type Job struct {
	ID       string
	Source   string
	Segments []Segment
	Settings Settings
	WorkDir  string
}

// Result describes a finished export.
type Result struct {
	OutputFile    string
	EDLFile       string
	Info          *media.VideoInfo
	Groups        []Group
	CutPauses     []CutPause
	CleanupErrors []error
}

// OutputFilename is the final artifact name for a job.
func OutputFilename(jobID string) string {
	return fmt.Sprintf("final_video_%s.mp4", jobID)
}

// Pipeline runs probe, grouping, rendering, concatenation and cleanup.
type Pipeline struct {
	tool              media.Tool
	renderer          *Renderer
	concatenator      *Concatenator
	renderConcurrency int
	logger            *slog.Logger
}

type PipelineConfig struct {
	Tool              media.Tool
	RenderConcurrency int // clips rendered at once; <= 1 is sequential
	Logger            *slog.Logger
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	logger := logging.WithComponent(cfg.Logger, "export")
	return &Pipeline{
		tool:              cfg.Tool,
		renderer:          NewRenderer(cfg.Tool, logger),
		concatenator:      NewConcatenator(cfg.Tool, logger),
		renderConcurrency: cfg.RenderConcurrency,
		logger:            logger,
	}
}

// Run executes the export. Any returned error is an *Error.
func (p *Pipeline) Run(ctx context.Context, job Job, progress ProgressFunc) (*Result, error) {
	if progress == nil {
		progress = func(int, string) {}
	}
	logger := logging.WithJobID(p.logger, job.ID)

	progress(ProgressProbe, "Getting video information...")
	if err := os.MkdirAll(job.WorkDir, 0o755); err != nil {
		return nil, &Error{Kind: KindRender, Message: "create work dir", Err: err}
	}

	info, err := p.tool.Probe(ctx, job.Source)
	if err != nil {
		kind := KindProbe
		if errors.Is(err, media.ErrTimeout) {
			kind = KindTimeout
		}
		return nil, &Error{Kind: kind, Message: "Error getting video info", Err: err}
	}
	logger.Info("source probed",
		"fps", info.FPS, "width", info.Width, "height", info.Height,
		"codec", info.Codec, "duration", info.Duration)

	progress(ProgressGrouping, "Grouping segments...")
	groups, pauses := GroupSegments(SortSegments(job.Segments), job.Settings.Threshold())
	if len(groups) == 0 {
		return nil, Errorf(KindValidation, "No segments provided")
	}
	logger.Info("segments grouped", "segments", len(job.Segments), "groups", len(groups), "cut_pauses", len(pauses))

	progress(ProgressClipsStart, fmt.Sprintf("Creating %d video clips...", len(groups)))
	clips, err := p.renderAll(ctx, job, groups, info, progress)
	if err != nil {
		p.cleanup(logger, clips)
		return nil, err
	}

	progress(ProgressConcat, "Concatenating clips...")
	final := filepath.Join(job.WorkDir, OutputFilename(job.ID))
	if _, err := p.concatenator.Concatenate(ctx, clips, final); err != nil {
		p.cleanup(logger, clips)
		return nil, err
	}

	result := &Result{
		OutputFile: final,
		Info:       info,
		Groups:     groups,
		CutPauses:  pauses,
	}

	if job.Settings.EDL {
		progress(ProgressEDL, "Writing edit decision list...")
		edlPath := filepath.Join(job.WorkDir, fmt.Sprintf("final_video_%s.edl", job.ID))
		edl := GenerateEDL(groups, job.Source, "edited_video_"+job.ID, info.FPS)
		if err := os.WriteFile(edlPath, []byte(edl), 0o644); err != nil {
			logger.Warn("failed to write EDL", "error", err)
		} else {
			result.EDLFile = edlPath
		}
	}

	progress(ProgressCleanup, "Cleaning up...")
	result.CleanupErrors = p.cleanup(logger, clips)

	logger.Info("export pipeline finished", "output", logging.SanitizePath(final), "clips", len(clips))
	return result, nil
}

func (p *Pipeline) renderAll(ctx context.Context, job Job, groups []Group, info *media.VideoInfo, progress ProgressFunc) ([]string, error) {
	n := len(groups)
	if p.renderConcurrency <= 1 || n == 1 {
		clips := make([]string, 0, n)
		for i, g := range groups {
			progress(ProgressClipsStart+i*progressClipsWindow/n, fmt.Sprintf("Creating clip %d/%d...", i+1, n))
			clip, err := p.renderer.Render(ctx, job.Source, g, job.WorkDir, info, job.Settings)
			if err != nil {
				return clips, err
			}
			clips = append(clips, clip)
		}
		progress(ProgressClipsEnd, fmt.Sprintf("Created %d/%d clips", n, n))
		return clips, nil
	}

	slots := make([]string, n)
	var done atomic.Int64
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.renderConcurrency)
	for i, g := range groups {
		i, g := i, g
		eg.Go(func() error {
			clip, err := p.renderer.Render(egCtx, job.Source, g, job.WorkDir, info, job.Settings)
			if err != nil {
				return err
			}
			slots[i] = clip
			d := int(done.Add(1))
			progress(ProgressClipsStart+d*progressClipsWindow/n, fmt.Sprintf("Created %d/%d clips", d, n))
			return nil
		})
	}
	err := eg.Wait()

	clips := make([]string, 0, n)
	for _, c := range slots {
		if c != "" {
			clips = append(clips, c)
		}
	}
	return clips, err
}

// cleanup removes intermediate clips. Failures are logged and returned,
// never escalated.
func (p *Pipeline) cleanup(logger *slog.Logger, clips []string) []error {
	var errs []error
	for _, clip := range clips {
		if err := os.Remove(clip); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove intermediate clip", "path", logging.SanitizePath(clip), "error", err)
			errs = append(errs, err)
		}
	}
	return errs
}
