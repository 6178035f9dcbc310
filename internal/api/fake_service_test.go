package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/heimdex/heimdex-export/internal/export"
	"github.com/heimdex/heimdex-export/internal/jobs"
)

type fakeExports struct {
	mu        sync.Mutex
	jobs      map[string]*jobs.Job
	submitted []export.Request
	submitErr error
	lastLimit int
}

func newFakeExports(list ...*jobs.Job) *fakeExports {
	f := &fakeExports{jobs: make(map[string]*jobs.Job)}
	for _, j := range list {
		f.jobs[j.ID] = j
	}
	return f
}

func (f *fakeExports) Submit(ctx context.Context, req export.Request) (*jobs.Job, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if err := export.ValidateRequest(req); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	j := &jobs.Job{ID: "job-new", Status: jobs.StatusStarted, Message: jobs.MessageInitializing}
	f.jobs[j.ID] = j
	return j.Clone(), nil
}

func (f *fakeExports) Get(ctx context.Context, id string) (*jobs.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, jobs.ErrJobNotFound
	}
	return j.Clone(), nil
}

func (f *fakeExports) List(ctx context.Context, limit int) ([]*jobs.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	out := make([]*jobs.Job, 0, len(f.jobs))
	for _, j := range f.jobs {
		out = append(out, j.Clone())
	}
	return out, nil
}

func (f *fakeExports) Cancel(ctx context.Context, id string) (*jobs.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, jobs.ErrJobNotFound
	}
	j.Fail("export cancelled", time.Now())
	return j.Clone(), nil
}

func (f *fakeExports) update(id string, fn func(*jobs.Job)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.jobs[id])
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(exports ExportService) ServerConfig {
	return ServerConfig{
		Exports:        exports,
		Logger:         testLogger(),
		StartTime:      time.Now(),
		Version:        "test",
		WSPollInterval: 10 * time.Millisecond,
	}
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v (body=%q)", err, rr.Body.String())
	}
	return body
}
