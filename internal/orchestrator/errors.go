package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrRunNotFound: run не найден. Устаревший триггер, поглощается.
	ErrRunNotFound = errors.New("run not found")

	// ErrStepNotFound: шаг не найден. Устаревший триггер, поглощается.
	ErrStepNotFound = errors.New("step not found")

	// ErrTemplateNotFound: шаблон из InvokeRun не найден.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrInvalidSteps: определения шагов не прошли валидацию.
	ErrInvalidSteps = errors.New("invalid steps")

	// ErrEmptyCancelationToken: запрос отмены без токена.
	ErrEmptyCancelationToken = errors.New("empty cancelation token")

	// ErrBranchTargetNotFound: ref цели branch не найден среди следующих шагов.
	ErrBranchTargetNotFound = errors.New("branch target not found")
)
