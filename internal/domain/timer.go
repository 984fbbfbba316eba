package domain

import "time"

// TimerKind: назначение таймера.
type TimerKind string

const (
	// TimerDelay: пробуждение delay-шага.
	TimerDelay TimerKind = "delay"

	// TimerWaitTimeout: таймаут wait-шага.
	TimerWaitTimeout TimerKind = "wait_timeout"

	// TimerSchedule: повторяющийся или разовый запуск шаблона.
	TimerSchedule TimerKind = "schedule"
)

// Actor: инициатор удаления таймера.
type Actor string

const (
	// ActorSweeper: удаление по истечению TTL. Только такие удаления будят run.
	ActorSweeper Actor = "system:sweeper"

	// ActorUser: явное удаление (отмена delay, удаление schedule).
	ActorUser Actor = "user"
)

// Timer: таймер, хранимый как данные.
//
// TTL задаёт момент пробуждения. Sweeper удаляет истёкшие записи
// и публикует уведомление TimerWake с ActorSweeper. Для delay и
// wait_timeout ID совпадает со StepID, для schedule это itemId.
type Timer struct {
	TenantID string    `json:"tenant_id"`
	ID       string    `json:"id"`
	Kind     TimerKind `json:"kind"`

	// TTL: момент пробуждения. Nil для legacy delay-записей (будятся сразу).
	TTL *time.Time `json:"ttl,omitempty"`

	RunID  string `json:"run_id,omitempty"`
	StepID string `json:"step_id,omitempty"`

	// Scope, Value, Enabled и TemplateID используются только schedule-таймерами.
	// Value: разовый момент (RFC 3339) или cron-правило.
	Scope      string `json:"scope,omitempty"`
	Value      string `json:"value,omitempty"`
	Enabled    bool   `json:"enabled"`
	TemplateID string `json:"template_id,omitempty"`

	Data map[string]any `json:"data,omitempty"`

	// Removed: schedule удалён пользователем. Запись хранится до TTL,
	// чтобы уже опубликованный wake не перевзвёл schedule.
	Removed bool `json:"removed,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Expired возвращает true, если таймер должен сработать к моменту now.
func (t *Timer) Expired(now time.Time) bool {
	if t.TTL == nil {
		return t.Kind == TimerDelay
	}
	return !t.TTL.After(now)
}
