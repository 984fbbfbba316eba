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
		Tenant(h.defaultTenant),
	)

	// Templates
	mux.Handle("POST /api/v1/templates", chain(http.HandlerFunc(h.ApplyTemplate)))
	mux.Handle("GET /api/v1/templates/{id}", chain(http.HandlerFunc(h.GetTemplate)))
	mux.Handle("POST /api/v1/templates/{id}/runs", chain(http.HandlerFunc(h.InvokeTemplate)))

	// Runs
	mux.Handle("POST /api/v1/runs", chain(http.HandlerFunc(h.InvokeSteps)))
	mux.Handle("POST /api/v1/runs/cancel", chain(http.HandlerFunc(h.CancelRuns)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))

	// Events
	mux.Handle("POST /api/v1/events/{ref}", chain(http.HandlerFunc(h.ResumeRef)))

	// Schedules
	mux.Handle("POST /api/v1/schedules", chain(http.HandlerFunc(h.CreateSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}/enabled", chain(http.HandlerFunc(h.SetScheduleEnabled)))
	mux.Handle("DELETE /api/v1/schedules/{id}", chain(http.HandlerFunc(h.DeleteSchedule)))
}
