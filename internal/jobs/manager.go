package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/disk"

	"github.com/heimdex/heimdex-export/internal/export"
	"github.com/heimdex/heimdex-export/internal/logging"
)

var (
	ErrCancelled = errors.New("export cancelled")
	ErrShutdown  = errors.New("interrupted by shutdown")
)

// Runner executes one export. *export.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, job export.Job, progress export.ProgressFunc) (*export.Result, error)
}

// Recorder receives job lifecycle events for metrics.
type Recorder interface {
	JobSubmitted()
	JobRejected(reason string)
	JobStarted()
	JobFinished(status string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) JobSubmitted()                      {}
func (nopRecorder) JobRejected(string)                 {}
func (nopRecorder) JobStarted()                        {}
func (nopRecorder) JobFinished(string, time.Duration) {}

// DiskFreeFunc reports free bytes on the filesystem holding path.
type DiskFreeFunc func(ctx context.Context, path string) (uint64, error)

func gopsutilDiskFree(ctx context.Context, path string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

type ManagerConfig struct {
	Store             Store
	Runner            Runner
	WorkDir           string
	MaxConcurrentJobs int
	QueueSize         int
	MinFreeDiskBytes  uint64
	DiskFree          DiskFreeFunc
	Recorder          Recorder
	Logger            *slog.Logger
}

// Manager admits export requests, runs them in the background and owns the
// job state machine.
type Manager struct {
	store     Store
	runner    Runner
	pool      *Pool
	workDir   string
	minFree   uint64
	diskFree  DiskFreeFunc
	recorder  Recorder
	logger    *slog.Logger
	baseCtx   context.Context
	shutdown  context.CancelCauseFunc
	mu        sync.Mutex
	cancels   map[string]context.CancelCauseFunc
	closeOnce sync.Once
}

func NewManager(cfg ManagerConfig) *Manager {
	logger := logging.WithComponent(cfg.Logger, "jobs")
	if cfg.DiskFree == nil {
		cfg.DiskFree = gopsutilDiskFree
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.MaxConcurrentJobs < 1 {
		cfg.MaxConcurrentJobs = 1
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	m := &Manager{
		store:    cfg.Store,
		runner:   cfg.Runner,
		pool:     NewPool(cfg.MaxConcurrentJobs, cfg.QueueSize, logger),
		workDir:  cfg.WorkDir,
		minFree:  cfg.MinFreeDiskBytes,
		diskFree: cfg.DiskFree,
		recorder: cfg.Recorder,
		logger:   logger,
		baseCtx:  ctx,
		shutdown: cancel,
		cancels:  make(map[string]context.CancelCauseFunc),
	}
	m.pool.Start()
	return m
}

// Submit validates req, records a started job and queues it. It never waits
// for the export itself.
func (m *Manager) Submit(ctx context.Context, req export.Request) (*Job, error) {
	if err := export.ValidateRequest(req); err != nil {
		m.recorder.JobRejected("validation")
		return nil, err
	}
	if err := m.checkDisk(ctx); err != nil {
		m.recorder.JobRejected("disk")
		return nil, err
	}

	now := time.Now().UTC()
	job := &Job{
		ID:               uuid.NewString(),
		Status:           StatusStarted,
		Message:          MessageInitializing,
		OriginalFilename: req.OriginalFilename,
		SegmentCount:     len(req.Segments),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := m.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	jobCtx, cancel := context.WithCancelCause(m.baseCtx)
	m.mu.Lock()
	m.cancels[job.ID] = cancel
	m.mu.Unlock()

	if err := m.pool.Submit(func() { m.run(jobCtx, job.ID, req) }); err != nil {
		m.forget(job.ID)
		cancel(err)
		m.fail(job.ID, err.Error())
		m.recorder.JobRejected("queue_full")
		return nil, &export.Error{Kind: export.KindUnavailable, Message: "Export queue is full, try again later", Err: err}
	}

	m.recorder.JobSubmitted()
	m.logger.Info("export queued",
		"job_id", job.ID,
		"segments", job.SegmentCount,
		"source", logging.SanitizePath(req.InputVideoPath),
	)
	return job.Clone(), nil
}

func (m *Manager) Get(ctx context.Context, id string) (*Job, error) {
	return m.store.Get(ctx, id)
}

func (m *Manager) List(ctx context.Context, limit int) ([]*Job, error) {
	return m.store.List(ctx, limit)
}

// Cancel stops a queued or running job. The job fails with ErrCancelled;
// cancelling a terminal job returns it unchanged.
func (m *Manager) Cancel(ctx context.Context, id string) (*Job, error) {
	job, err := m.store.Update(ctx, id, func(j *Job) {
		j.Fail(ErrCancelled.Error(), time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	cancel, ok := m.cancels[id]
	m.mu.Unlock()
	if ok {
		cancel(ErrCancelled)
		m.logger.Info("export cancelled", "job_id", id)
	}
	return job, nil
}

// Close interrupts running jobs and waits for the workers to exit.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.shutdown(ErrShutdown)
		m.pool.Stop()
	})
}

func (m *Manager) run(ctx context.Context, id string, req export.Request) {
	defer m.forget(id)
	logger := logging.WithJobID(m.logger, id)

	if ctx.Err() != nil {
		m.fail(id, context.Cause(ctx).Error())
		return
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("export panicked", "panic", r, "stack", string(debug.Stack()))
			m.fail(id, fmt.Sprintf("internal error: %v", r))
			m.recorder.JobFinished(string(StatusFailed), time.Since(start))
		}
	}()
	m.recorder.JobStarted()
	logger.Info("export started")

	progress := func(percent int, message string) {
		if _, err := m.store.Update(context.Background(), id, func(j *Job) {
			j.Advance(percent, message, time.Now().UTC())
		}); err != nil {
			logger.Warn("failed to record progress", "error", err)
		}
	}

	result, err := m.runner.Run(ctx, export.Job{
		ID:       id,
		Source:   req.InputVideoPath,
		Segments: req.ToSegments(),
		Settings: req.Settings,
		WorkDir:  filepath.Join(m.workDir, id),
	}, progress)

	if err != nil {
		reason := err.Error()
		if ctx.Err() != nil {
			reason = context.Cause(ctx).Error()
		}
		m.fail(id, reason)
		m.recorder.JobFinished(string(StatusFailed), time.Since(start))
		logger.Error("export failed", "kind", export.KindOf(err).String(), "error", err)
		return
	}

	var completed bool
	if _, uerr := m.store.Update(context.Background(), id, func(j *Job) {
		completed = j.Complete(result.OutputFile, result.EDLFile, len(result.Groups), time.Now().UTC())
	}); uerr != nil {
		logger.Error("failed to record completion", "error", uerr)
		return
	}
	if !completed {
		// Cancelled while finishing; the artifact is not reachable.
		m.removeArtifacts(logger, result)
		m.recorder.JobFinished(string(StatusFailed), time.Since(start))
		return
	}

	m.recorder.JobFinished(string(StatusCompleted), time.Since(start))
	logger.Info("export completed",
		"output", logging.SanitizePath(result.OutputFile),
		"clips", len(result.Groups),
		"cut_pauses", len(result.CutPauses),
		"duration", time.Since(start),
	)
}

func (m *Manager) fail(id, reason string) {
	if _, err := m.store.Update(context.Background(), id, func(j *Job) {
		j.Fail(reason, time.Now().UTC())
	}); err != nil {
		m.logger.Error("failed to record failure", "job_id", id, "error", err)
	}
}

func (m *Manager) forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cancels, id)
}

func (m *Manager) checkDisk(ctx context.Context) error {
	if m.minFree == 0 {
		return nil
	}
	if err := os.MkdirAll(m.workDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	free, err := m.diskFree(ctx, m.workDir)
	if err != nil {
		m.logger.Warn("disk usage check failed", "error", err)
		return nil
	}
	if free < m.minFree {
		return export.Errorf(export.KindUnavailable, "Insufficient disk space: %d bytes free, %d required", free, m.minFree)
	}
	return nil
}

func (m *Manager) removeArtifacts(logger *slog.Logger, result *export.Result) {
	for _, path := range []string{result.OutputFile, result.EDLFile} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove artifact", "path", logging.SanitizePath(path), "error", err)
		}
	}
}
