package engine

import (
	"errors"
	"fmt"
)

// Ошибки валидации шаблонов workflow.
var (
	// ErrEmptySteps: шаблон не содержит шагов.
	ErrEmptySteps = errors.New("workflow has no steps")

	// ErrInvalidStep: поля шага не прошли валидацию.
	ErrInvalidStep = errors.New("invalid step")

	// ErrDuplicateRef: несколько шагов с одинаковым ref.
	ErrDuplicateRef = errors.New("duplicate step ref")

	// ErrUnknownBranchTarget: branch ссылается на несуществующий ref.
	ErrUnknownBranchTarget = errors.New("branch target not found")

	// ErrBackwardBranch: branch ссылается на шаг, который не идёт после него.
	ErrBackwardBranch = errors.New("branch target must follow the branch step")

	// ErrUnreachableWait: wait-шаг без ref и без timeout никогда не завершится.
	ErrUnreachableWait = errors.New("wait step needs a ref or a timeout")

	// ErrInvalidTemplate: шаблон не прошёл валидацию.
	ErrInvalidTemplate = errors.New("invalid workflow template")
)

// Ошибки рендеринга шаблонов и условий.
var (
	// ErrTemplateRender: ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse: ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")

	// ErrCondition: условие branch не вычислилось в bool.
	ErrCondition = errors.New("condition evaluation failed")
)

// ValidationError: ошибка валидации с контекстом шага.
type ValidationError struct {
	Index   int    // позиция шага
	Ref     string // ref шага, если есть
	Message string
	Err     error
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("step %d (%s): %s", e.Index, e.Ref, e.Message)
	}
	return fmt.Sprintf("step %d: %s", e.Index, e.Message)
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(index int, ref, message string, err error) *ValidationError {
	return &ValidationError{
		Index:   index,
		Ref:     ref,
		Message: message,
		Err:     err,
	}
}
