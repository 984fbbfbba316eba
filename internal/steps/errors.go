package steps

import "errors"

// Ошибки построения шагов.
var (
	// ErrUnknownAction: тег действия не зарегистрирован.
	ErrUnknownAction = errors.New("unknown step action")

	// ErrInvalidFields: поля действия не соответствуют его типу.
	ErrInvalidFields = errors.New("invalid step fields")
)
