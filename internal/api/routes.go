package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)
	// Изменяющие запросы к job отклоняются в NOWEBSERVICE
	mutating := Chain(chain, ModeGuard(h.engine.Mode()))

	// Jobs
	mux.Handle("GET /api/v1/jobs", chain(http.HandlerFunc(h.ListJobs)))
	mux.Handle("POST /api/v1/jobs", mutating(http.HandlerFunc(h.SubmitJob)))
	mux.Handle("GET /api/v1/jobs/{id}", chain(http.HandlerFunc(h.GetJob)))
	mux.Handle("POST /api/v1/jobs/{id}/start", mutating(http.HandlerFunc(h.StartJob)))
	mux.Handle("POST /api/v1/jobs/{id}/suspend", mutating(http.HandlerFunc(h.SuspendJob)))
	mux.Handle("POST /api/v1/jobs/{id}/resume", mutating(http.HandlerFunc(h.ResumeJob)))
	mux.Handle("POST /api/v1/jobs/{id}/kill", mutating(http.HandlerFunc(h.KillJob)))

	// Admin
	mux.Handle("GET /api/v1/admin/mode", chain(http.HandlerFunc(h.GetMode)))
	mux.Handle("PUT /api/v1/admin/mode", chain(http.HandlerFunc(h.SetMode)))
	mux.Handle("GET /api/v1/admin/queue", chain(http.HandlerFunc(h.GetQueue)))
	mux.Handle("GET /api/v1/admin/executors", chain(http.HandlerFunc(h.ListExecutors)))
}
