package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/repo"
)

// ListJobs возвращает список job одного типа.
// GET /api/v1/jobs?type=workflow&status=RUNNING&limit=50&offset=0
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	typeName := q.Get("type")
	if typeName == "" {
		typeName = "workflow"
	}
	t, ok := jobTypes[typeName]
	if !ok {
		BadRequest(w, "type must be workflow, coordinator or bundle")
		return
	}

	filter := repo.JobFilter{Status: domain.JobStatus(q.Get("status"))}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			BadRequest(w, "invalid limit")
			return
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			BadRequest(w, "invalid offset")
			return
		}
		filter.Offset = offset
	}

	list, err := h.engine.ListJobs(r.Context(), t, filter)
	if HandleError(w, h.logger, err) {
		return
	}

	List(w, list, list.Len())
}

// SubmitJob создаёт job из определения.
// POST /api/v1/jobs
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	t, err := req.Definition.Type()
	if HandleError(w, h.logger, err) {
		return
	}

	id, err := h.engine.Submit(r.Context(), req.Definition, req.Start)
	if id == "" && HandleError(w, h.logger, err) {
		return
	}
	if err != nil {
		// job создан, но не запущен
		h.logger.Warn("job submitted but not started", "job_id", id, "error", err)
	}

	Created(w, SubmitJobResponse{ID: id, Type: t, Started: req.Start && err == nil})
}

// GetJob возвращает job с действиями.
// GET /api/v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	info, err := h.engine.Info(r.Context(), r.PathValue("id"))
	if HandleError(w, h.logger, err) {
		return
	}

	Success(w, info)
}

// StartJob запускает job в статусе PREP.
// POST /api/v1/jobs/{id}/start
func (h *Handler) StartJob(w http.ResponseWriter, r *http.Request) {
	h.jobAction(w, r, "start", h.engine.StartJob)
}

// SuspendJob приостанавливает job.
// POST /api/v1/jobs/{id}/suspend
func (h *Handler) SuspendJob(w http.ResponseWriter, r *http.Request) {
	h.jobAction(w, r, "suspend", h.engine.SuspendJob)
}

// ResumeJob возобновляет job.
// POST /api/v1/jobs/{id}/resume
func (h *Handler) ResumeJob(w http.ResponseWriter, r *http.Request) {
	h.jobAction(w, r, "resume", h.engine.ResumeJob)
}

// KillJob завершает job.
// POST /api/v1/jobs/{id}/kill
func (h *Handler) KillJob(w http.ResponseWriter, r *http.Request) {
	h.jobAction(w, r, "kill", h.engine.KillJob)
}

func (h *Handler) jobAction(w http.ResponseWriter, r *http.Request, action string, fn func(ctx context.Context, jobID string) error) {
	id := r.PathValue("id")
	if HandleError(w, h.logger, fn(r.Context(), id)) {
		return
	}

	Success(w, JobActionResponse{ID: id, Action: action})
}
