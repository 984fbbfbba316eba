// Package repo содержит хранилища Relay.
//
// PostgreSQL (pgxpool):
//   - run_repo.go      : runs
//   - step_repo.go     : шаги run, условный захват (Claim)
//   - ref_repo.go      : индекс ref → шаг
//   - timer_repo.go    : таймеры как данные, SweepExpired
//   - lock_repo.go     : распределённые блокировки
//   - template_repo.go : шаблоны workflow
//   - migrate.go       : применение schema.sql
//
// Redis (go-redis):
//   - sequence_repo.go : отметки обработки записей потока с TTL
//
// Условное создание возвращает ErrAlreadyExists, отсутствие записи ErrNotFound.
// Пакет memstore содержит in-memory реализации с той же семантикой.
package repo
