package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-export/internal/export"
	"github.com/heimdex/heimdex-export/internal/jobs"
)

const maxRequestBody = 8 << 20

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(CORSAllowlist(cfg.AllowedOrigins...))
	r.Use(LoggingMiddleware(cfg.Logger, cfg.Metrics))

	r.Get("/health", healthHandler(cfg))
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.APIToken, cfg.Logger))

		r.Route("/api/video/export", func(r chi.Router) {
			r.Post("/", submitHandler(cfg))
			r.Get("/formats", formatsHandler())
			r.Get("/jobs", listJobsHandler(cfg))
			r.Get("/status/{id}", statusHandler(cfg))
			r.Get("/status/{id}/ws", statusSocketHandler(cfg))
			r.Get("/download/{id}", downloadHandler(cfg))
			r.Delete("/{id}", cancelHandler(cfg))
		})
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		resp := HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
		}

		if cfg.Doctor != nil {
			caps, err := cfg.Doctor.Get(r.Context())
			if err == nil && caps != nil {
				resp.Media = &MediaStatusResponse{
					Ready:          caps.Ready,
					FFmpegVersion:  caps.FFmpegVersion,
					FFprobeVersion: caps.FFprobeVersion,
					LastProbeAt:    caps.ProbedAt.Format(time.RFC3339),
				}
				if !caps.Ready {
					resp.Status = "degraded"
				}
			} else {
				resp.Status = "degraded"
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func submitHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.Request
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		job, err := cfg.Exports.Submit(r.Context(), req)
		if err != nil {
			writeExportError(w, err)
			return
		}

		WriteJSON(w, http.StatusAccepted, ExportResponse{
			Success:           true,
			JobID:             job.ID,
			Message:           "Export started successfully",
			EstimatedDuration: req.EstimatedDuration(),
		})
	}
}

func formatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, FormatsResponse{
			Success: true,
			Formats: []export.Profile{export.OutputProfile()},
			Default: string(export.QualityMedium),
		})
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer", "BAD_REQUEST")
				return
			}
			limit = n
		}

		list, err := cfg.Exports.List(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Success: true, Jobs: make([]JobResponse, len(list))}
		for i, j := range list {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Exports.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeExportError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func cancelHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Exports.Cancel(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeExportError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

// downloadHandler serves the finished video, or its edit list with
// ?format=edl. Range and conditional requests are handled by ServeContent.
func downloadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		job, err := cfg.Exports.Get(r.Context(), id)
		if err != nil {
			writeExportError(w, err)
			return
		}
		if job.Status != jobs.StatusCompleted {
			WriteError(w, http.StatusConflict, "Export not ready", "NOT_READY")
			return
		}

		path, name, contentType := job.OutputFile, "edited_video_"+id+".mp4", "video/mp4"
		if r.URL.Query().Get("format") == "edl" {
			if job.EDLFile == "" {
				WriteError(w, http.StatusNotFound, "No edit list for this export", "NOT_FOUND")
				return
			}
			path, name, contentType = job.EDLFile, "edited_video_"+id+".edl", "text/plain; charset=utf-8"
		}

		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				WriteError(w, http.StatusNotFound, "Export file not found", "NOT_FOUND")
				return
			}
			cfg.Logger.Error("open export artifact", "job_id", id, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to open export", "INTERNAL_ERROR")
			return
		}
		defer f.Close()

		stat, err := f.Stat()
		if err != nil || stat.IsDir() {
			WriteError(w, http.StatusNotFound, "Export file not found", "NOT_FOUND")
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(name)+`"`)
		w.Header().Set("Cache-Control", "private, max-age=3600")
		http.ServeContent(w, r, name, stat.ModTime(), f)
	}
}

// writeExportError maps an error from the export service onto a response.
func writeExportError(w http.ResponseWriter, err error) {
	if errors.Is(err, jobs.ErrJobNotFound) {
		WriteError(w, http.StatusNotFound, "Job not found", "NOT_FOUND")
		return
	}

	var e *export.Error
	if !errors.As(err, &e) {
		WriteError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
		return
	}

	switch e.Kind {
	case export.KindValidation:
		WriteError(w, http.StatusBadRequest, e.Message, "BAD_REQUEST")
	case export.KindNotFound:
		WriteError(w, http.StatusNotFound, e.Message, "NOT_FOUND")
	case export.KindNotReady:
		WriteError(w, http.StatusConflict, e.Message, "NOT_READY")
	case export.KindUnavailable:
		WriteError(w, http.StatusServiceUnavailable, e.Message, "UNAVAILABLE")
	default:
		WriteError(w, http.StatusInternalServerError, e.Message, "INTERNAL_ERROR")
	}
}
