package api

import (
	"github.com/heimdex/heimdex-export/internal/export"
	"github.com/heimdex/heimdex-export/internal/jobs"
)

type HealthResponse struct {
	Status  string               `json:"status"`
	Version string               `json:"version"`
	UptimeS int64                `json:"uptime_s"`
	Media   *MediaStatusResponse `json:"media,omitempty"`
}

type MediaStatusResponse struct {
	Ready          bool   `json:"ready"`
	FFmpegVersion  string `json:"ffmpeg_version"`
	FFprobeVersion string `json:"ffprobe_version"`
	LastProbeAt    string `json:"last_probe_at"`
}

type ExportResponse struct {
	Success           bool   `json:"success"`
	JobID             string `json:"job_id"`
	Message           string `json:"message"`
	EstimatedDuration int    `json:"estimated_duration"`
}

// JobResponse is the status record with the success flag clients check.
type JobResponse struct {
	Success bool `json:"success"`
	jobs.Job
	DownloadURL string `json:"download_url,omitempty"`
	EDLURL      string `json:"edl_url,omitempty"`
}

type JobsResponse struct {
	Success bool          `json:"success"`
	Jobs    []JobResponse `json:"jobs"`
}

type FormatsResponse struct {
	Success bool             `json:"success"`
	Formats []export.Profile `json:"formats"`
	Default string           `json:"default_quality"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

func JobToResponse(j *jobs.Job) JobResponse {
	resp := JobResponse{Success: true, Job: *j}
	if j.Status == jobs.StatusCompleted {
		resp.DownloadURL = "/api/video/export/download/" + j.ID
		if j.EDLFile != "" {
			resp.EDLURL = resp.DownloadURL + "?format=edl"
		}
	}
	return resp
}
