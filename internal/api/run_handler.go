package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/engine"
)

// InvokeSteps запускает run с inline-шагами.
// POST /api/v1/runs
func (h *Handler) InvokeSteps(w http.ResponseWriter, r *http.Request) {
	var req InvokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if err := engine.ValidateSteps(req.Steps, h.registry); HandleError(w, h.logger, err, "") {
		return
	}

	h.invoke(w, r, req, "")
}

// GetRun возвращает run со всеми шагами.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	state, err := h.runs.GetRun(r.Context(), TenantFrom(r.Context()), r.PathValue("id"))
	if HandleError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, RunFromState(state))
}

// CancelRuns отменяет все runs с токеном отмены.
// POST /api/v1/runs/cancel
func (h *Handler) CancelRuns(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Token == "" {
		BadRequest(w, "token is required")
		return
	}

	tenant := TenantFrom(r.Context())
	cancel := domain.CancelRuns{TenantID: tenant, Token: req.Token}
	if err := h.publisher.PublishCancelRuns(r.Context(), cancel); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("cancel accepted", "tenant_id", tenant, "token", req.Token)
	Accepted(w, cancel)
}

// ResumeRef передаёт внешнее событие шагу с ref.
// POST /api/v1/events/{ref}
func (h *Handler) ResumeRef(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	resume := domain.ResumeRef{
		TenantID: TenantFrom(r.Context()),
		Ref:      r.PathValue("ref"),
		Payload:  req.Payload,
	}
	if err := h.publisher.PublishResumeRef(r.Context(), resume, req.EventID); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Accepted(w, resume)
}
