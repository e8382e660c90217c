package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forPelevin/adcut/internal/pipeline"
	"github.com/forPelevin/adcut/internal/store"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Hub == nil {
		cfg.Hub = NewWSHub()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))
	r.Get("/events", eventsHandler(cfg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/jobs", submitJobHandler(cfg))
		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))
		r.Delete("/jobs/{id}", cancelJobHandler(cfg))
		r.Get("/jobs/{id}/artifact", artifactHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			Version: "0.1.0",
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		}
		if cfg.Engine != nil {
			resp.Engine = &EngineHealth{
				State:   cfg.Engine.State().String(),
				Version: cfg.Engine.Version(),
			}
		}
		if cfg.Runner != nil {
			resp.ActiveJobID = cfg.Runner.Active()
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func submitJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubmitJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		jobID := uuid.NewString()
		run, err := buildRunConfig(cfg, req, jobID)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		if err := run.Validate(); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		input := run.Input
		if run.Mode == pipeline.ModePlan {
			input = run.PlanPath
		}
		now := time.Now().UTC()
		job := &store.Job{
			ID:        jobID,
			Mode:      string(run.Mode),
			Input:     input,
			Status:    store.JobStatusQueued,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := cfg.Runner.Submit(r.Context(), job, run); err != nil {
			if errors.Is(err, ErrBusy) {
				WriteError(w, http.StatusConflict, err.Error(), "BUSY")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusAccepted, SubmitJobResponse{JobID: jobID})
	}
}

// buildRunConfig turns a submit request into a run config on top of the
// server's base (engine, tool paths, cache and output roots). Inline
// plan and ops documents are spooled to the cache so the pipeline can
// load them like any other file.
func buildRunConfig(cfg ServerConfig, req SubmitJobRequest, jobID string) (pipeline.Config, error) {
	run := cfg.Base
	run.Mode = pipeline.Mode(req.Mode)
	run.Input = req.Input
	run.PlanPath = req.PlanPath
	run.OpsPath = req.OpsPath
	run.Gap = req.Gap
	run.StartWord = req.StartWord
	run.EndWord = req.EndWord
	run.Transition = req.Transition
	run.OutPath = req.Output

	if len(req.Plan) > 0 {
		path, err := spoolUpload(cfg.Base.CacheDir, jobID+"-plan.json", req.Plan)
		if err != nil {
			return pipeline.Config{}, err
		}
		run.PlanPath = path
	}
	if len(req.Ops) > 0 {
		path, err := spoolUpload(cfg.Base.CacheDir, jobID+"-ops.json", req.Ops)
		if err != nil {
			return pipeline.Config{}, err
		}
		run.OpsPath = path
	}
	return run, nil
}

func spoolUpload(cacheDir, name string, data []byte) (string, error) {
	if cacheDir == "" {
		cacheDir = ".cache"
	}
	dir := filepath.Join(cacheDir, "uploads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("spool upload: %w", err)
	}
	return path, nil
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.Store.ListJobs(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}
		if jobs == nil {
			jobs = []*store.Job{}
		}
		WriteJSON(w, http.StatusOK, JobsResponse{Jobs: jobs})
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
			return
		}

		job, err := cfg.Store.GetJob(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, job)
	}
}

func cancelJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
			return
		}

		if cfg.Runner.Cancel(id) {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		job, err := cfg.Store.GetJob(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		WriteError(w, http.StatusConflict, "job is not running", "CONFLICT")
	}
}

func artifactHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
			return
		}

		job, err := cfg.Store.GetJob(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		if job.Status != store.JobStatusSucceeded || job.Artifact == "" {
			WriteError(w, http.StatusNotFound, "artifact not available", "NOT_FOUND")
			return
		}
		if _, err := os.Stat(job.Artifact); err != nil {
			WriteError(w, http.StatusNotFound, "artifact missing from disk", "NOT_FOUND")
			return
		}

		http.ServeFile(w, r, job.Artifact)
	}
}
