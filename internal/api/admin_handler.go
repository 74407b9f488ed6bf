package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/Coordinator/internal/sysmode"
)

// GetMode возвращает текущий режим системы.
// GET /api/v1/admin/mode
func (h *Handler) GetMode(w http.ResponseWriter, r *http.Request) {
	Success(w, ModeResponse{Mode: h.engine.Mode().Get().String()})
}

// SetMode меняет режим системы. Доступен и в NOWEBSERVICE.
// PUT /api/v1/admin/mode
func (h *Handler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	mode, err := sysmode.Parse(req.Mode)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	prev := h.engine.SetMode(mode)
	Success(w, ModeResponse{Mode: mode.String(), Previous: prev.String()})
}

// GetQueue возвращает дамп очереди диспетчера.
// GET /api/v1/admin/queue
func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	Success(w, h.engine.Queue())
}

// ListExecutors возвращает поддерживаемые типы действий workflow.
// GET /api/v1/admin/executors
func (h *Handler) ListExecutors(w http.ResponseWriter, r *http.Request) {
	types := h.engine.Executors()
	List(w, types, len(types))
}
