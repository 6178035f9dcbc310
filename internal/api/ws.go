package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/heimdex/heimdex-export/internal/jobs"
)

const (
	defaultWSPollInterval = 250 * time.Millisecond
	wsWriteTimeout        = 5 * time.Second
)

// newUpgrader accepts the same origins as CORSAllowlist. Requests without
// an Origin header come from non-browser clients and are accepted.
func newUpgrader(extra []string) *websocket.Upgrader {
	allowed := make(map[string]bool, len(extra))
	for _, o := range extra {
		allowed[strings.TrimRight(o, "/")] = true
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin] || isLoopbackOrigin(origin)
		},
	}
}

// statusSocketHandler streams job snapshots until the job reaches a
// terminal status or the client goes away. A snapshot is sent only when
// the job changed since the previous one.
func statusSocketHandler(cfg ServerConfig) http.HandlerFunc {
	interval := cfg.WSPollInterval
	if interval <= 0 {
		interval = defaultWSPollInterval
	}
	upgrader := newUpgrader(cfg.AllowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		job, err := cfg.Exports.Get(r.Context(), id)
		if err != nil {
			writeExportError(w, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.Logger.Warn("websocket upgrade failed", "job_id", id, "error", err)
			return
		}
		defer conn.Close()

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ctx := r.Context()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last *jobs.Job
		for {
			if last == nil || changed(last, job) {
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(JobToResponse(job)); err != nil {
					return
				}
				last = job
			}
			if job.Status.IsTerminal() {
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(job.Status)))
				return
			}

			select {
			case <-closed:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			job, err = cfg.Exports.Get(ctx, id)
			if err != nil {
				cfg.Logger.Warn("websocket job lookup failed", "job_id", id, "error", err)
				return
			}
		}
	}
}

func changed(prev, cur *jobs.Job) bool {
	return prev.Status != cur.Status ||
		prev.Progress != cur.Progress ||
		prev.Message != cur.Message ||
		!prev.UpdatedAt.Equal(cur.UpdatedAt)
}
