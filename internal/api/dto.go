package api

import (
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/orchestrator"
)

// Run DTOs

// InvokeRequest: запрос на запуск run.
type InvokeRequest struct {
	RunID            string                   `json:"run_id,omitempty"`
	Scope            string                   `json:"scope,omitempty"`
	Source           []string                 `json:"source,omitempty"`
	CancelationToken string                   `json:"cancelation_token,omitempty"`
	Context          map[string]any           `json:"context,omitempty"`
	Steps            []domain.DeclarativeStep `json:"steps,omitempty"`
}

// InvokeResponse: ответ на принятый запуск.
type InvokeResponse struct {
	RunID string `json:"run_id"`
}

// CancelRequest: запрос на отмену runs по токену.
type CancelRequest struct {
	Token string `json:"token"`
}

// RunResponse: ответ с run и его шагами.
type RunResponse struct {
	domain.Run
	Steps []domain.Step `json:"steps"`
}

// RunFromState конвертирует RunState в RunResponse.
func RunFromState(state *orchestrator.RunState) RunResponse {
	return RunResponse{Run: *state.Run, Steps: state.Steps}
}

// Event DTOs

// EventRequest: внешнее событие для шага с ref.
type EventRequest struct {
	// EventID: идентификатор события у источника; повтор с тем же ID отсекается.
	EventID string         `json:"event_id,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Schedule DTOs

// CreateScheduleRequest: запрос на создание schedule.
type CreateScheduleRequest struct {
	ID         string         `json:"id"`
	Scope      string         `json:"scope,omitempty"`
	Rule       string         `json:"rule"`
	TemplateID string         `json:"template_id"`
	Data       map[string]any `json:"data,omitempty"`
}

// SetEnabledRequest: запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse: ответ с schedule.
type ScheduleResponse struct {
	ID         string         `json:"id"`
	Scope      string         `json:"scope,omitempty"`
	Rule       string         `json:"rule"`
	TemplateID string         `json:"template_id"`
	Enabled    bool           `json:"enabled"`
	NextRunAt  *time.Time     `json:"next_run_at,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// ScheduleFromTimer конвертирует schedule-таймер в ScheduleResponse.
func ScheduleFromTimer(t *domain.Timer) ScheduleResponse {
	return ScheduleResponse{
		ID:         t.ID,
		Scope:      t.Scope,
		Rule:       t.Value,
		TemplateID: t.TemplateID,
		Enabled:    t.Enabled,
		NextRunAt:  t.TTL,
		Data:       t.Data,
	}
}
