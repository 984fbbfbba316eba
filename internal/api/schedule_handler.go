package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/Relay/internal/scheduler"
)

// CreateSchedule создаёт или перезаписывает schedule для шаблона.
// POST /api/v1/schedules
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	// Валидация
	if req.ID == "" {
		BadRequest(w, "id is required")
		return
	}
	if req.TemplateID == "" {
		BadRequest(w, "template_id is required")
		return
	}
	if req.Rule == "" {
		BadRequest(w, "rule is required")
		return
	}

	tenant := TenantFrom(r.Context())
	if _, err := h.templates.GetByID(r.Context(), tenant, req.TemplateID); HandleError(w, h.logger, err, "template not found") {
		return
	}

	timer, err := h.schedules.ArmSchedule(r.Context(), scheduler.ScheduleSpec{
		TenantID:   tenant,
		ItemID:     req.ID,
		Scope:      req.Scope,
		Rule:       req.Rule,
		TemplateID: req.TemplateID,
		Data:       req.Data,
	})
	if HandleError(w, h.logger, err, "") {
		return
	}

	Created(w, ScheduleFromTimer(timer))
}

// SetScheduleEnabled включает или выключает schedule.
// PUT /api/v1/schedules/{id}/enabled
func (h *Handler) SetScheduleEnabled(w http.ResponseWriter, r *http.Request) {
	var req SetEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	err := h.schedules.SetScheduleEnabled(r.Context(), TenantFrom(r.Context()), r.PathValue("id"), req.Enabled)
	if HandleError(w, h.logger, err, "schedule not found") {
		return
	}

	NoContent(w)
}

// DeleteSchedule удаляет schedule. Удаление пользователем не запускает run.
// DELETE /api/v1/schedules/{id}
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	err := h.schedules.RemoveSchedule(r.Context(), TenantFrom(r.Context()), r.PathValue("id"))
	if HandleError(w, h.logger, err, "schedule not found") {
		return
	}

	NoContent(w)
}
