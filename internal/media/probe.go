package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type probeOutput struct {
	Streams []struct {
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe runs ffprobe against the first video stream of path.
func (t *FFmpegTool) Probe(ctx context.Context, path string) (*VideoInfo, error) {
	var stdout bytes.Buffer
	result, _ := t.run(ctx, t.ffprobe, &stdout,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=r_frame_rate,avg_frame_rate,codec_name,width,height",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	if err := result.Err(); err != nil {
		if result.StderrTail != "" {
			return nil, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(result.StderrTail))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return ParseProbeOutput(stdout.Bytes())
}

// ParseProbeOutput decodes ffprobe JSON into VideoInfo.
func ParseProbeOutput(data []byte) (*VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("cannot parse ffprobe JSON: %w", err)
	}
	if len(out.Streams) == 0 {
		return nil, fmt.Errorf("no video stream found")
	}

	stream := out.Streams[0]
	fps, err := ParseFrameRate(stream.RFrameRate)
	if err != nil {
		avg, avgErr := ParseFrameRate(stream.AvgFrameRate)
		if avgErr != nil {
			return nil, fmt.Errorf("invalid frame rate: %w", err)
		}
		fps = avg
	}

	if stream.Width <= 0 || stream.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", stream.Width, stream.Height)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid duration %q: %w", out.Format.Duration, err)
	}

	return &VideoInfo{
		FPS:      fps,
		Width:    stream.Width,
		Height:   stream.Height,
		Codec:    stream.CodecName,
		Duration: duration,
	}, nil
}

// ParseFrameRate accepts "30", "29.97" or a rational such as "30000/1001".
func ParseFrameRate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty frame rate")
	}

	var fps float64
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid numerator in %q: %w", s, err)
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid denominator in %q: %w", s, err)
		}
		if d == 0 {
			return 0, fmt.Errorf("zero denominator in %q", s)
		}
		fps = n / d
	} else {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid frame rate %q: %w", s, err)
		}
		fps = f
	}

	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return 0, fmt.Errorf("frame rate must be positive, got %q", s)
	}
	return fps, nil
}
