package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/refindex"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/telemetry"
)

// ResumeByRef доставляет внешнее событие шагу с ref.
//
// Payload сохраняется в Context шага под ключом resume. Запущенный
// wait-шаг завершается, и run продолжается. Ещё не достигнутый шаг
// хранит payload: wait завершится сразу при достижении, send получит
// payload как .Event. Уже запущенный шаг другого типа событие не
// принимает. Неизвестный ref: refindex.ErrNotFound.
func (o *Orchestrator) ResumeByRef(ctx context.Context, tenantID, ref string, payload map[string]any) error {
	runID, stepID, err := o.refs.Lookup(ctx, tenantID, ref)
	if err != nil {
		return err
	}

	log := telemetry.WithStepID(telemetry.WithRunID(telemetry.WithTenantID(o.logger, tenantID), runID), stepID).
		With("ref", ref)

	state, step, ok, err := o.resolve(ctx, log, tenantID, runID, stepID)
	if err != nil || !ok {
		return err
	}
	if step.Resumed() {
		log.Debug("step already resumed, ignoring event")
		return nil
	}

	payload = maps.Clone(payload)
	if payload == nil {
		payload = map[string]any{}
	}

	if step.StartedAt == nil {
		// Запись условная: шаг мог быть захвачен после чтения
		err := o.steps.StoreResume(ctx, tenantID, runID, stepID, payload, o.now().UTC())
		if err == nil {
			log.Info("resume payload stored")
			return nil
		}
		if !errors.Is(err, repo.ErrInvalidState) {
			return fmt.Errorf("store resume payload: %w", err)
		}

		log.Debug("step claimed concurrently, reloading")
		state, step, ok, err = o.resolve(ctx, log, tenantID, runID, stepID)
		if err != nil || !ok {
			return err
		}
		if step.Resumed() {
			log.Debug("step already resumed, ignoring event")
			return nil
		}
		if step.StartedAt == nil {
			// Захват был снят: повтор триггера сохранит payload
			return fmt.Errorf("store resume payload: step %s released concurrently", stepID)
		}
	}

	if _, isWait := step.Action.(domain.WaitAction); !isWait {
		log.Info("step already started, ignoring event", "action", step.ActionType())
		return nil
	}

	step.SetContext(domain.ContextResume, payload)

	// Таймаут больше не нужен; удаление пользователем run не будит
	if err := o.timers.CancelTimer(ctx, tenantID, stepID); err != nil {
		log.Warn("failed to cancel wait timeout", "error", err)
	}

	log.Info("wait step resumed")
	return o.completeAndAdvance(ctx, log, state, step, "")
}

// CompleteDelay продолжает run после пробуждения delay-шага.
func (o *Orchestrator) CompleteDelay(ctx context.Context, tenantID, runID, stepID string) error {
	log := telemetry.WithStepID(telemetry.WithRunID(telemetry.WithTenantID(o.logger, tenantID), runID), stepID)

	state, step, ok, err := o.resolve(ctx, log, tenantID, runID, stepID)
	if err != nil || !ok {
		return err
	}
	if _, isDelay := step.Action.(domain.DelayAction); !isDelay {
		log.Warn("delay wake for non-delay step, ignoring", "action", step.ActionType())
		return nil
	}

	log.Info("delay elapsed")
	return o.completeAndAdvance(ctx, log, state, step, "")
}

// TimeoutWait завершает wait-шаг по таймауту с отметкой timed_out.
func (o *Orchestrator) TimeoutWait(ctx context.Context, tenantID, runID, stepID string) error {
	log := telemetry.WithStepID(telemetry.WithRunID(telemetry.WithTenantID(o.logger, tenantID), runID), stepID)

	state, step, ok, err := o.resolve(ctx, log, tenantID, runID, stepID)
	if err != nil || !ok {
		return err
	}
	if _, isWait := step.Action.(domain.WaitAction); !isWait {
		log.Warn("wait timeout for non-wait step, ignoring", "action", step.ActionType())
		return nil
	}
	if step.Resumed() {
		log.Debug("wait already resumed, ignoring timeout")
		return nil
	}

	step.SetContext(domain.ContextTimedOut, true)
	log.Info("wait timed out")
	return o.completeAndAdvance(ctx, log, state, step, "")
}

// CancelRuns отменяет активные runs с токеном. Таймеры их шагов
// удаляются как пользовательские удаления и run не будят.
// Возвращает количество отменённых runs. Пустой токен: ErrEmptyCancelationToken.
func (o *Orchestrator) CancelRuns(ctx context.Context, tenantID, token string) (int, error) {
	if token == "" {
		return 0, ErrEmptyCancelationToken
	}

	runs, err := o.runs.ListByCancelationToken(ctx, tenantID, token)
	if err != nil {
		return 0, fmt.Errorf("list runs by token: %w", err)
	}

	var canceled int
	for i := range runs {
		run := &runs[i]
		if run.IsFinished() {
			continue
		}
		if err := o.cancelRun(ctx, run); err != nil {
			return canceled, err
		}
		canceled++
	}

	if canceled > 0 {
		o.logger.Info("runs canceled", "tenant_id", tenantID, "token", token, "count", canceled)
	}
	return canceled, nil
}

func (o *Orchestrator) cancelRun(ctx context.Context, run *domain.Run) error {
	now := o.now().UTC()

	// Run отменяется первым: параллельные триггеры видят его завершённым
	run.MarkCanceled(now)
	if err := o.runs.Update(ctx, run); err != nil {
		return fmt.Errorf("cancel run %s: %w", run.ID, err)
	}
	telemetry.RunsTotal.WithLabelValues(string(domain.StatusCanceled)).Inc()

	stepList, err := o.steps.ListByRun(ctx, run.TenantID, run.ID)
	if err != nil {
		return fmt.Errorf("list steps: %w", err)
	}

	for i := range stepList {
		step := &stepList[i]
		if step.Status != domain.StatusProcessing {
			continue
		}

		if step.StartedAt != nil {
			switch step.Action.(type) {
			case domain.DelayAction, domain.WaitAction:
				if err := o.timers.CancelTimer(ctx, run.TenantID, step.StepID); err != nil {
					return fmt.Errorf("cancel timer %s: %w", step.StepID, err)
				}
			}
		}

		step.Cancel(now)
		if err := o.steps.Update(ctx, step); err != nil {
			if errors.Is(err, repo.ErrInvalidState) {
				continue
			}
			return fmt.Errorf("cancel step %s: %w", step.StepID, err)
		}
		telemetry.StepsTotal.WithLabelValues(string(step.ActionType()), string(domain.StatusCanceled)).Inc()
	}
	return nil
}

// IsStale возвращает true для ошибок устаревших триггеров, которые
// не должны приводить к повторной доставке.
func IsStale(err error) bool {
	return errors.Is(err, refindex.ErrNotFound) ||
		errors.Is(err, ErrRunNotFound) ||
		errors.Is(err, ErrStepNotFound)
}
