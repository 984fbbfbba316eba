// Package memstore содержит потокобезопасные in-memory реализации хранилищ.
//
// Семантика совпадает с пакетом repo (условное создание, ErrNotFound,
// ErrAlreadyExists, SweepExpired). Используется в тестах и в локальном
// режиме без PostgreSQL и Redis.
package memstore

import "time"

// Clock возвращает текущее время. Nil означает time.Now.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
