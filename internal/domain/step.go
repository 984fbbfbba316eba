package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Step описывает один шаг run.
//
// Step создаётся фабрикой (steps.Factory) из DeclarativeStep:
// StepID, Created, Updated, Status и TenantID генерируются,
// остальные поля переносятся без изменений.
type Step struct {
	TenantID string `json:"tenant_id"`
	RunID    string `json:"run_id"`
	StepID   string `json:"step_id"`

	// Position: порядковый номер шага в run (с 0).
	Position int `json:"position"`

	// Action: вариант действия. Сериализуется как "action" + "config".
	Action Action `json:"-"`

	Status Status `json:"status"`

	// Created и Updated сериализуются в ISO-8601.
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`

	// StartedAt выставляется при захвате шага на выполнение.
	// Повторный захват невозможен.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// Ref: имя шага для корреляции внешних событий. Уникально в пределах run.
	Ref string `json:"ref,omitempty"`

	// IdempotencyKey и IdempotencyExpiry задаются вызывающей стороной
	// и никогда не перегенерируются. IdempotencyExpiry: unix-время в секундах.
	IdempotencyKey    string `json:"idempotency_key,omitempty"`
	IdempotencyExpiry *int64 `json:"idempotency_expiry,omitempty"`

	// Data: произвольные поля определения шага и результаты выполнения.
	Data map[string]any `json:"data,omitempty"`

	// Context: данные, накопленные шагом (например, payload resume-события).
	Context map[string]any `json:"context,omitempty"`

	Error string `json:"error,omitempty"`
}

// Ключи Step.Context.
const (
	ContextResume   = "resume"
	ContextTimedOut = "timed_out"
)

// ActionType возвращает тег действия шага.
func (s *Step) ActionType() ActionType {
	if s.Action == nil {
		return ""
	}
	return s.Action.Type()
}

// Resumed возвращает true, если для шага уже получено resume-событие.
func (s *Step) Resumed() bool {
	_, ok := s.Context[ContextResume]
	return ok
}

// SetContext записывает значение в Context шага.
func (s *Step) SetContext(key string, value any) {
	if s.Context == nil {
		s.Context = make(map[string]any)
	}
	s.Context[key] = value
}

// Complete переводит шаг в completed.
func (s *Step) Complete(now time.Time) {
	s.Status = StatusCompleted
	s.Updated = now
}

// Fail переводит шаг в failed.
func (s *Step) Fail(reason string, now time.Time) {
	s.Status = StatusFailed
	s.Error = reason
	s.Updated = now
}

// Cancel переводит шаг в canceled.
func (s *Step) Cancel(now time.Time) {
	s.Status = StatusCanceled
	s.Updated = now
}

type stepJSON struct {
	stepAlias
	ActionType ActionType      `json:"action"`
	Config     json.RawMessage `json:"config,omitempty"`
}

type stepAlias Step

// MarshalJSON сериализует Step вместе с тегом и полями действия.
func (s Step) MarshalJSON() ([]byte, error) {
	out := stepJSON{stepAlias: stepAlias(s)}
	if s.Action != nil {
		cfg, err := json.Marshal(s.Action)
		if err != nil {
			return nil, fmt.Errorf("marshal action: %w", err)
		}
		out.ActionType = s.Action.Type()
		out.Config = cfg
	}
	return json.Marshal(out)
}

// UnmarshalJSON восстанавливает Step вместе с вариантом действия.
func (s *Step) UnmarshalJSON(data []byte) error {
	var in stepJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = Step(in.stepAlias)
	if in.ActionType != "" {
		cfg := in.Config
		if len(cfg) == 0 {
			cfg = []byte("{}")
		}
		action, err := UnmarshalAction(in.ActionType, cfg)
		if err != nil {
			return err
		}
		s.Action = action
	}
	return nil
}

// DeclarativeStep: определение шага в шаблоне или в InvokeRun.
//
// Fields содержит поля конкретного действия (recipient, duration, if, ...),
// Data переносится в Step.Data без изменений.
type DeclarativeStep struct {
	Action            string         `json:"action" yaml:"action" validate:"required"`
	Ref               string         `json:"ref,omitempty" yaml:"ref,omitempty"`
	IdempotencyKey    string         `json:"idempotency_key,omitempty" yaml:"idempotency_key,omitempty"`
	IdempotencyExpiry *int64         `json:"idempotency_expiry,omitempty" yaml:"idempotency_expiry,omitempty"`
	Fields            map[string]any `json:"fields,omitempty" yaml:"fields,omitempty"`
	Data              map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}
