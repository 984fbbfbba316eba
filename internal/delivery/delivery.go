package delivery

import (
	"context"
	"errors"
)

var (
	// ErrRejected: получатель отклонил сообщение (4xx). Повтор не поможет.
	ErrRejected = errors.New("delivery rejected")

	// ErrUnavailable: временная ошибка (сеть, 5xx). Сообщение можно доставить повторно.
	ErrUnavailable = errors.New("delivery unavailable")
)

// Message: отрендеренное сообщение send-шага.
type Message struct {
	IdempotencyKey string `json:"-"`

	TenantID string `json:"tenant_id"`
	RunID    string `json:"run_id"`
	StepID   string `json:"step_id"`

	Recipient string         `json:"recipient"`
	Template  string         `json:"template"`
	Brand     string         `json:"brand,omitempty"`
	Profile   map[string]any `json:"profile,omitempty"`
	Override  map[string]any `json:"override,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Result: результат доставки.
type Result struct {
	ID         string `json:"id"`
	StatusCode int    `json:"-"`
}

// Sender доставляет сообщения получателям.
type Sender interface {
	Send(ctx context.Context, msg Message) (Result, error)
}

// IsPermanent возвращает true для ошибок, после которых шаг не повторяется.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrRejected)
}
