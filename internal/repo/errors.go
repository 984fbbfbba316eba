package repo

import "errors"

// Общие ошибки хранилищ. Реализации в пакете memstore возвращают те же значения.
var (
	// ErrNotFound: запись не найдена.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists: запись уже существует (условное создание не прошло).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState: операция невозможна в текущем состоянии записи.
	ErrInvalidState = errors.New("invalid state")
)
