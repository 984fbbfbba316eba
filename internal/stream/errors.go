package stream

import "errors"

// keepError помечает ошибку, после которой резервирование сохраняется.
type keepError struct{ err error }

func (e *keepError) Error() string { return e.err.Error() }
func (e *keepError) Unwrap() error { return e.err }

// KeepReservation помечает ошибку, возникшую после внешне видимого
// эффекта. Резервирование для такой записи не снимается, чтобы
// повторная доставка не продублировала эффект.
func KeepReservation(err error) error {
	if err == nil {
		return nil
	}
	return &keepError{err: err}
}

func keepsReservation(err error) bool {
	var ke *keepError
	return errors.As(err, &ke)
}
