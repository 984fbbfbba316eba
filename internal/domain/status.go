package domain

// Status описывает состояние run или step.
//
// Жизненный цикл:
//
//	processing → completed
//	           ↘ failed
//	           ↘ canceled
//
// Финальные статусы не покидаются.
type Status string

const (
	// StatusProcessing: run или step ещё выполняется (или ждёт wake/resume).
	StatusProcessing Status = "processing"

	// StatusCompleted: успешно завершён.
	StatusCompleted Status = "completed"

	// StatusFailed: завершён с ошибкой.
	StatusFailed Status = "failed"

	// StatusCanceled: отменён (по cancelation token или пропущен веткой branch).
	StatusCanceled Status = "canceled"
)

// IsTerminal возвращает true, если статус финальный.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление Status.
func (s Status) String() string {
	return string(s)
}
