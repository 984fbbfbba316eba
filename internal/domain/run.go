package domain

import "time"

// Run описывает экземпляр выполнения workflow.
//
// Run создаётся при обработке InvokeRun: вручную через ingress API,
// из schedule-таймера или другим сервисом. Шаги run хранятся отдельно
// (см. Step) и выполняются последовательно по Position.
type Run struct {
	// TenantID: владелец run. Все ключи хранилища партиционированы по tenant.
	TenantID string `json:"tenant_id"`

	// ID: уникальный идентификатор run.
	ID string `json:"id"`

	// TemplateID: шаблон, из которого развёрнуты шаги (пусто для inline-шагов).
	TemplateID string `json:"template_id,omitempty"`

	// Scope: область запуска, например "published" или "draft".
	Scope string `json:"scope,omitempty"`

	// Source: происхождение run, например ["schedule/item-1"] или ["api"].
	Source []string `json:"source,omitempty"`

	// Status: текущий статус.
	Status Status `json:"status"`

	// CancelationToken: токен, по которому можно отменить группу runs.
	CancelationToken string `json:"cancelation_token,omitempty"`

	// Context: данные run, доступные шаблонам и условиям branch.
	Context map[string]any `json:"context,omitempty"`

	// Error: причина перехода в failed.
	Error string `json:"error,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkCompleted переводит run в completed.
func (r *Run) MarkCompleted(now time.Time) {
	r.finish(StatusCompleted, now)
}

// MarkFailed переводит run в failed с причиной.
func (r *Run) MarkFailed(reason string, now time.Time) {
	r.finish(StatusFailed, now)
	r.Error = reason
}

// MarkCanceled переводит run в canceled.
func (r *Run) MarkCanceled(now time.Time) {
	r.finish(StatusCanceled, now)
}

func (r *Run) finish(status Status, now time.Time) {
	r.Status = status
	r.UpdatedAt = now
	r.FinishedAt = &now
}
