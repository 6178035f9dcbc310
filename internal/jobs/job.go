package jobs

import (
	"errors"
	"time"
)

type Status string

const (
	StatusStarted    Status = "started"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

const (
	MessageInitializing = "Initializing export..."
	MessageCompleted    = "Export completed successfully!"
)

var ErrJobNotFound = errors.New("job not found")

// Job is the status record of one export.
type Job struct {
	ID               string    `json:"job_id"`
	Status           Status    `json:"status"`
	Progress         int       `json:"progress"`
	Message          string    `json:"message"`
	OriginalFilename string    `json:"original_filename,omitempty"`
	SegmentCount     int       `json:"segment_count"`
	ClipCount        int       `json:"clip_count,omitempty"`
	OutputFile       string    `json:"output_file,omitempty"`
	EDLFile          string    `json:"edl_file,omitempty"`
	Error            string    `json:"error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (j *Job) Clone() *Job {
	c := *j
	return &c
}

// Advance records progress. The job moves to processing, progress never
// decreases, and the message only changes with non-decreasing progress.
// Terminal jobs are left untouched.
func (j *Job) Advance(percent int, message string, now time.Time) bool {
	if j.Status.IsTerminal() {
		return false
	}
	j.Status = StatusProcessing
	// A late report from a parallel render must not pair its stale message
	// with newer progress.
	if percent < j.Progress {
		j.UpdatedAt = now
		return true
	}
	j.Progress = min(percent, 99)
	if message != "" {
		j.Message = message
	}
	j.UpdatedAt = now
	return true
}

// Complete marks the job done with its artifact.
func (j *Job) Complete(outputFile, edlFile string, clips int, now time.Time) bool {
	if j.Status.IsTerminal() {
		return false
	}
	j.Status = StatusCompleted
	j.Progress = 100
	j.Message = MessageCompleted
	j.OutputFile = outputFile
	j.EDLFile = edlFile
	j.ClipCount = clips
	j.Error = ""
	j.UpdatedAt = now
	return true
}

// Fail marks the job failed. The output path is never set on a failed job.
func (j *Job) Fail(reason string, now time.Time) bool {
	if j.Status.IsTerminal() {
		return false
	}
	j.Status = StatusFailed
	j.Error = reason
	j.Message = "Export failed: " + reason
	j.OutputFile = ""
	j.EDLFile = ""
	j.UpdatedAt = now
	return true
}
