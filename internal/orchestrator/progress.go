package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/telemetry"
)

// resolve загружает run и шаг триггера. ok = false означает, что
// выполнять шаг не нужно: триггер устарел или повторён.
//
// Повтор триггера уже завершённого шага доводит run до конца: переход
// к следующему шагу или отказ run могли не сохраниться в прошлый раз.
func (o *Orchestrator) resolve(ctx context.Context, log *slog.Logger, tenantID, runID, stepID string) (*RunState, *domain.Step, bool, error) {
	state, err := o.loadState(ctx, tenantID, runID)
	if errors.Is(err, ErrRunNotFound) {
		log.Info("run not found, ignoring trigger")
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, err
	}

	if state.Run.IsFinished() {
		log.Debug("run already finished, ignoring trigger", "status", state.Run.Status)
		return nil, nil, false, nil
	}

	step := state.Step(stepID)
	if step == nil {
		log.Info("step not found, ignoring trigger", "error", ErrStepNotFound)
		return nil, nil, false, nil
	}

	switch step.Status {
	case domain.StatusCompleted:
		return nil, nil, false, o.readvance(ctx, log, state, step)
	case domain.StatusFailed:
		log.Info("step failed but run is still active, failing run")
		return nil, nil, false, o.failRun(ctx, state, nil, step.Error)
	case domain.StatusCanceled:
		log.Debug("step canceled, ignoring trigger")
		return nil, nil, false, nil
	}
	return state, step, true, nil
}

// readvance повторяет переход после завершённого шага, если следующий
// шаг ещё не начат. Повторная публикация безопасна: идентификатор
// триггера шага детерминирован, дубликат отсекается guard и Claim.
func (o *Orchestrator) readvance(ctx context.Context, log *slog.Logger, state *RunState, step *domain.Step) error {
	target := branchTarget(step)
	if next := state.Successor(step.Position, target); next != nil && !pending(next) {
		log.Debug("step already completed, ignoring trigger")
		return nil
	}

	log.Info("step completed without progress, advancing run", "target", target)
	return o.advance(ctx, state, step, target)
}

// complete сохраняет завершение шага. done = false: шаг уже завершён
// параллельным триггером, и продолжает run тот триггер.
func (o *Orchestrator) complete(ctx context.Context, log *slog.Logger, state *RunState, step *domain.Step) (done bool, err error) {
	step.Complete(o.now().UTC())
	if err := o.steps.Update(ctx, step); err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			log.Debug("step finished concurrently", "error", err)
			return false, nil
		}
		return false, fmt.Errorf("complete step: %w", err)
	}
	telemetry.StepsTotal.WithLabelValues(string(step.ActionType()), string(domain.StatusCompleted)).Inc()
	state.Replace(step)
	return true, nil
}

// completeAndAdvance завершает шаг и переходит к следующему.
func (o *Orchestrator) completeAndAdvance(ctx context.Context, log *slog.Logger, state *RunState, step *domain.Step, target string) error {
	done, err := o.complete(ctx, log, state, step)
	if err != nil || !done {
		return err
	}
	return o.advance(ctx, state, step, target)
}

// advance публикует следующий шаг или завершает run. Шаги, пропущенные
// переходом branch, отменяются.
func (o *Orchestrator) advance(ctx context.Context, state *RunState, step *domain.Step, target string) error {
	log := telemetry.WithRunID(telemetry.WithTenantID(o.logger, step.TenantID), step.RunID)

	next, skipped, err := state.Next(step.Position, target)
	if err != nil {
		return o.failRun(ctx, state, nil, err.Error())
	}

	now := o.now().UTC()
	for _, s := range skipped {
		s.Cancel(now)
		if err := o.steps.Update(ctx, s); err != nil {
			if errors.Is(err, repo.ErrInvalidState) {
				continue
			}
			return fmt.Errorf("cancel skipped step %s: %w", s.StepID, err)
		}
		telemetry.StepsTotal.WithLabelValues(string(s.ActionType()), string(domain.StatusCanceled)).Inc()
	}
	if len(skipped) > 0 {
		log.Debug("steps skipped by branch", "count", len(skipped), "target", target)
	}

	if next != nil {
		return o.enqueue(ctx, next)
	}

	// Run мог быть отменён, пока выполнялся последний шаг
	run, err := o.runs.GetByID(ctx, step.TenantID, step.RunID)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	if run.IsFinished() {
		return nil
	}

	run.MarkCompleted(now)
	if err := o.runs.Update(ctx, run); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	telemetry.RunsTotal.WithLabelValues(string(domain.StatusCompleted)).Inc()
	log.Info("run completed", "duration", now.Sub(run.CreatedAt))
	return nil
}

// failRun переводит шаг (если задан) и run в failed, оставшиеся шаги отменяются.
// Ошибка шага поглощается: повторная доставка триггера её не исправит.
func (o *Orchestrator) failRun(ctx context.Context, state *RunState, step *domain.Step, reason string) error {
	now := o.now().UTC()
	log := telemetry.WithRunID(telemetry.WithTenantID(o.logger, state.Run.TenantID), state.Run.ID)

	after := -1
	if step != nil {
		step.Fail(reason, now)
		if err := o.steps.Update(ctx, step); err != nil {
			if errors.Is(err, repo.ErrInvalidState) {
				log.Debug("step finished concurrently, not failing run", "step_id", step.StepID)
				return nil
			}
			return fmt.Errorf("fail step: %w", err)
		}
		telemetry.StepsTotal.WithLabelValues(string(step.ActionType()), string(domain.StatusFailed)).Inc()
		state.Replace(step)
		after = step.Position
	}

	for _, s := range state.Pending(after) {
		s.Cancel(now)
		if err := o.steps.Update(ctx, s); err != nil {
			if errors.Is(err, repo.ErrInvalidState) {
				continue
			}
			return fmt.Errorf("cancel step %s: %w", s.StepID, err)
		}
	}

	run, err := o.runs.GetByID(ctx, state.Run.TenantID, state.Run.ID)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	if run.IsFinished() {
		return nil
	}
	run.MarkFailed(reason, now)
	if err := o.runs.Update(ctx, run); err != nil {
		return fmt.Errorf("fail run: %w", err)
	}

	telemetry.RunsTotal.WithLabelValues(string(domain.StatusFailed)).Inc()
	log.Warn("run failed", "reason", reason)
	return nil
}
