package domain

import "time"

// StepRef связывает имя ref с конкретным шагом run.
// Запись не изменяется после создания.
type StepRef struct {
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	RunID     string    `json:"run_id"`
	StepID    string    `json:"step_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SequenceRecord: отметка об обработке записи потока.
type SequenceRecord struct {
	ConsumerID     string    `json:"consumer_id"`
	SequenceNumber string    `json:"sequence_number"`
	TTL            time.Time `json:"ttl"`
}

// LockRecord: распределённая блокировка, уникальная по (LockKey, Purpose).
// Nil TTL означает блокировку без срока (explicit).
type LockRecord struct {
	LockKey string     `json:"lock_key"`
	Purpose string     `json:"purpose"`
	TTL     *time.Time `json:"ttl,omitempty"`
}

// Held возвращает true, если блокировка действует в момент now.
func (l *LockRecord) Held(now time.Time) bool {
	return l.TTL == nil || l.TTL.After(now)
}

// WorkflowTemplate: опубликованный шаблон workflow.
type WorkflowTemplate struct {
	TenantID  string            `json:"tenant_id" yaml:"tenant_id,omitempty"`
	ID        string            `json:"id" yaml:"id" validate:"required"`
	Name      string            `json:"name,omitempty" yaml:"name,omitempty"`
	Steps     []DeclarativeStep `json:"steps" yaml:"steps" validate:"required,min=1,dive"`
	Version   int               `json:"version" yaml:"-"`
	CreatedAt time.Time         `json:"created_at" yaml:"-"`
	UpdatedAt time.Time         `json:"updated_at" yaml:"-"`
}
