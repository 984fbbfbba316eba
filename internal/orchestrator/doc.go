// Package orchestrator продвигает runs по шагам.
//
// Orchestrator отвечает за:
//   - InvokeRun: создание run из шаблона или inline-шагов, регистрацию ref, запуск первого шага
//   - EnqueueStep: захват и выполнение шага (send, delay, wait, branch)
//   - ResumeByRef: доставку внешнего события шагу по ref
//   - CompleteDelay и TimeoutWait: продолжение run по пробуждению таймера
//   - CancelRuns: отмену runs по токену
//
// Шаги выполняются последовательно по Position. Переход к следующему шагу
// публикуется как новый триггер step.enqueue, поэтому между шагами
// нет живого процесса.
package orchestrator
