package media

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const defaultCacheTTL = 5 * time.Minute

// Encoders the fixed output profile depends on.
var requiredEncoders = []string{"libx264", "aac"}

// Capabilities is what the installed media tools can do.
type Capabilities struct {
	FFmpegVersion  string          `json:"ffmpeg_version"`
	FFprobeVersion string          `json:"ffprobe_version"`
	Encoders       map[string]bool `json:"encoders"`
	Ready          bool            `json:"ready"`
	ProbedAt       time.Time       `json:"probed_at"`
}

// DoctorRunner produces a fresh capability probe.
type DoctorRunner interface {
	RunDoctor(ctx context.Context) (*Capabilities, error)
}

// RunDoctor reports tool versions and whether the required encoders exist.
func (t *FFmpegTool) RunDoctor(ctx context.Context) (*Capabilities, error) {
	var out bytes.Buffer
	if _, err := t.run(ctx, t.ffmpeg, &out, "-hide_banner", "-version"); err != nil {
		return nil, fmt.Errorf("ffmpeg -version: %w", err)
	}
	caps := &Capabilities{FFmpegVersion: firstLine(out.String())}

	out.Reset()
	if _, err := t.run(ctx, t.ffprobe, &out, "-hide_banner", "-version"); err != nil {
		return nil, fmt.Errorf("ffprobe -version: %w", err)
	}
	caps.FFprobeVersion = firstLine(out.String())

	out.Reset()
	if _, err := t.run(ctx, t.ffmpeg, &out, "-hide_banner", "-encoders"); err != nil {
		return nil, fmt.Errorf("ffmpeg -encoders: %w", err)
	}
	caps.Encoders = ParseEncoders(out.Bytes(), requiredEncoders)

	caps.Ready = true
	for _, enc := range requiredEncoders {
		caps.Ready = caps.Ready && caps.Encoders[enc]
	}
	caps.ProbedAt = time.Now()

	t.cfg.Logger.Info("media doctor probe complete",
		"ffmpeg", caps.FFmpegVersion,
		"ready", caps.Ready,
	)
	return caps, nil
}

// ParseEncoders reads `ffmpeg -encoders` output and reports which of the
// wanted encoders are listed.
func ParseEncoders(data []byte, wanted []string) map[string]bool {
	found := make(map[string]bool, len(wanted))
	for _, w := range wanted {
		found[w] = false
	}

	// The legend ends at a "------" line; entries follow.
	inList := false
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !inList {
			inList = strings.HasPrefix(line, "------")
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		if _, ok := found[fields[1]]; ok {
			found[fields[1]] = true
		}
	}
	return found
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// CachedDoctor caches doctor probes for a TTL so health checks do not spawn
// processes on every request.
type CachedDoctor struct {
	runner DoctorRunner
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

func NewCachedDoctor(runner DoctorRunner, logger *slog.Logger) *CachedDoctor {
	return &CachedDoctor{
		runner: runner,
		ttl:    defaultCacheTTL,
		logger: logger,
	}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (d *CachedDoctor) Get(ctx context.Context) (*Capabilities, error) {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps, nil
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

func (d *CachedDoctor) Peek() *Capabilities {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

// Refresh forces a new probe. A failed probe falls back to the stale cache
// when there is one.
func (d *CachedDoctor) Refresh(ctx context.Context) (*Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps, err := d.runner.RunDoctor(ctx)
	if err != nil {
		d.logger.Warn("media doctor probe failed", "error", err)
		if d.cached != nil {
			return d.cached, nil
		}
		return nil, err
	}

	d.cached = caps
	return caps, nil
}
