package domain

import "time"

// Payload-и триггеров, передаваемых через очереди.

// InvokeRun запускает новый run из шаблона или inline-шагов.
type InvokeRun struct {
	TenantID   string `json:"tenant_id"`
	TemplateID string `json:"template_id,omitempty"`

	// RunID задаётся, когда нужен детерминированный run (например, из schedule).
	RunID string `json:"run_id,omitempty"`

	Scope            string            `json:"scope,omitempty"`
	Source           []string          `json:"source,omitempty"`
	CancelationToken string            `json:"cancelation_token,omitempty"`
	Context          map[string]any    `json:"context,omitempty"`
	Steps            []DeclarativeStep `json:"steps,omitempty"`
}

// EnqueueStep запрашивает выполнение шага.
type EnqueueStep struct {
	TenantID string `json:"tenant_id"`
	RunID    string `json:"run_id"`
	StepID   string `json:"step_id"`
}

// TimerWake: уведомление об удалении таймера.
type TimerWake struct {
	Timer     Timer     `json:"timer"`
	Actor     Actor     `json:"actor"`
	DeletedAt time.Time `json:"deleted_at"`
}

// ResumeRef: внешнее событие, адресованное шагу по ref.
type ResumeRef struct {
	TenantID string         `json:"tenant_id"`
	Ref      string         `json:"ref"`
	Payload  map[string]any `json:"payload,omitempty"`
}

// CancelRuns отменяет все активные runs с токеном.
type CancelRuns struct {
	TenantID string `json:"tenant_id"`
	Token    string `json:"token"`
}
