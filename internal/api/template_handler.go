package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/engine"
	"github.com/shaiso/Relay/internal/lock"
)

// maxTemplateSize: ограничение тела запроса с шаблоном.
const maxTemplateSize = 1 << 20

// ApplyTemplate валидирует и публикует шаблон workflow.
// Тело запроса: YAML или JSON. Публикация одного шаблона сериализуется
// явной блокировкой; параллельная публикация получает 409.
// POST /api/v1/templates
func (h *Handler) ApplyTemplate(w http.ResponseWriter, r *http.Request) {
	tenant := TenantFrom(r.Context())

	data, err := io.ReadAll(io.LimitReader(r.Body, maxTemplateSize))
	if err != nil {
		BadRequest(w, "failed to read request body")
		return
	}

	tmpl, err := engine.ParseTemplate(data, h.registry)
	if HandleError(w, h.logger, err, "") {
		return
	}
	tmpl.TenantID = tenant
	tmpl.UpdatedAt = time.Now().UTC()

	key := "template/" + tenant + "/" + tmpl.ID
	err = h.locker.WithLock(r.Context(), key, lock.ModeAuto, func(ctx context.Context) error {
		return h.templates.Upsert(ctx, tmpl)
	})
	if HandleError(w, h.logger, err, "") {
		return
	}

	h.logger.Info("template applied",
		"tenant_id", tenant,
		"template_id", tmpl.ID,
		"version", tmpl.Version,
		"steps", len(tmpl.Steps),
	)

	Created(w, tmpl)
}

// GetTemplate возвращает шаблон по ID.
// GET /api/v1/templates/{id}
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.templates.GetByID(r.Context(), TenantFrom(r.Context()), r.PathValue("id"))
	if HandleError(w, h.logger, err, "template not found") {
		return
	}

	Success(w, tmpl)
}

// InvokeTemplate запускает run по шаблону.
// POST /api/v1/templates/{id}/runs
func (h *Handler) InvokeTemplate(w http.ResponseWriter, r *http.Request) {
	tenant := TenantFrom(r.Context())
	templateID := r.PathValue("id")

	var req InvokeRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	if len(req.Steps) > 0 {
		BadRequest(w, "steps are defined by the template")
		return
	}

	// Проверяем существование шаблона до публикации
	if _, err := h.templates.GetByID(r.Context(), tenant, templateID); HandleError(w, h.logger, err, "template not found") {
		return
	}

	h.invoke(w, r, req, templateID)
}

// invoke публикует run.invoke и отвечает 202 с RunID.
func (h *Handler) invoke(w http.ResponseWriter, r *http.Request, req InvokeRequest, templateID string) {
	tenant := TenantFrom(r.Context())

	runID := req.RunID
	if runID == "" {
		runID = h.newID()
	}
	source := req.Source
	if len(source) == 0 {
		source = []string{"api"}
	}

	invoke := domain.InvokeRun{
		TenantID:         tenant,
		TemplateID:       templateID,
		RunID:            runID,
		Scope:            req.Scope,
		Source:           source,
		CancelationToken: req.CancelationToken,
		Context:          req.Context,
		Steps:            req.Steps,
	}
	if err := h.publisher.PublishInvokeRun(r.Context(), invoke); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("run invoke accepted", "tenant_id", tenant, "run_id", runID, "template_id", templateID)
	Accepted(w, InvokeResponse{RunID: runID})
}

// decodeOptional декодирует JSON тело, допуская пустое.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && err != io.EOF {
		BadRequest(w, "invalid request body")
		return false
	}
	return true
}
