// Package domain содержит модели данных Relay.
//
// Файлы пакета:
//   - status.go  : статусы run и step
//   - run.go     : Run
//   - step.go    : Step и DeclarativeStep
//   - action.go  : варианты действий шага (send, delay, wait, branch)
//   - timer.go   : Timer (таймер как данные) и Actor
//   - records.go : StepRef, SequenceRecord, LockRecord, WorkflowTemplate
//   - trigger.go : payload-и триггеров очередей
package domain
