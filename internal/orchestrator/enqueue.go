package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/Relay/internal/delivery"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/engine"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/stream"
	"github.com/shaiso/Relay/internal/telemetry"
)

// EnqueueStep захватывает шаг и выполняет его действие.
//
// Отсутствующий или завершённый run, уже выполненный или захваченный шаг:
// no-op с диагностическим логом. Ошибка возвращается только когда
// повторная доставка триггера может помочь.
func (o *Orchestrator) EnqueueStep(ctx context.Context, msg domain.EnqueueStep) error {
	log := telemetry.WithStepID(telemetry.WithRunID(telemetry.WithTenantID(o.logger, msg.TenantID), msg.RunID), msg.StepID)

	state, step, ok, err := o.resolve(ctx, log, msg.TenantID, msg.RunID, msg.StepID)
	if err != nil || !ok {
		return err
	}

	now := o.now().UTC()
	if err := o.steps.Claim(ctx, msg.TenantID, msg.RunID, msg.StepID, now); err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			log.Debug("step already claimed, skipping")
			return nil
		}
		return fmt.Errorf("claim step: %w", err)
	}

	// Перечитываем шаг: resume мог прийти до захвата
	step, err = o.steps.GetByID(ctx, msg.TenantID, msg.RunID, msg.StepID)
	if err != nil {
		return fmt.Errorf("reload claimed step: %w", err)
	}

	log.Debug("step claimed", "action", step.ActionType(), "position", step.Position)

	switch action := step.Action.(type) {
	case domain.SendAction:
		return o.execSend(ctx, log, state, step, action)
	case domain.DelayAction:
		return o.execDelay(ctx, log, state, step, action)
	case domain.WaitAction:
		return o.execWait(ctx, log, state, step, action)
	case domain.BranchAction:
		return o.execBranch(ctx, log, state, step, action)
	default:
		return o.failRun(ctx, state, step, fmt.Sprintf("unsupported action %q", step.ActionType()))
	}
}

func (o *Orchestrator) execSend(ctx context.Context, log *slog.Logger, state *RunState, step *domain.Step, action domain.SendAction) error {
	msg, err := delivery.Render(action, state.Context(step))
	if err != nil {
		return o.failRun(ctx, state, step, err.Error())
	}

	msg.TenantID = step.TenantID
	msg.RunID = step.RunID
	msg.StepID = step.StepID
	msg.IdempotencyKey = step.IdempotencyKey
	if msg.IdempotencyKey == "" {
		msg.IdempotencyKey = step.RunID + "/" + step.StepID
	}

	result, err := o.sender.Send(ctx, msg)
	if err != nil {
		if delivery.IsPermanent(err) {
			log.Warn("delivery rejected", "error", err)
			return o.failRun(ctx, state, step, err.Error())
		}

		// Повторная доставка триггера выполнит шаг снова
		return o.releaseClaim(ctx, log, step, fmt.Errorf("send step %s: %w", step.StepID, err))
	}

	if result.ID != "" {
		step.SetContext("delivery_id", result.ID)
	}
	log.Info("message sent", "recipient", msg.Recipient, "template", msg.Template)

	// Сообщение уже ушло: шаг остаётся захваченным, повтор триггера
	// не должен выполнить отправку снова
	done, err := o.complete(ctx, log, state, step)
	if err != nil {
		log.Error("failed to record sent message", "error", err)
		return stream.KeepReservation(fmt.Errorf("send step %s: %w", step.StepID, err))
	}
	if !done {
		return nil
	}

	// Шаг сохранён завершённым: при повторе триггера resolve только
	// повторит переход
	return o.advance(ctx, state, step, "")
}

func (o *Orchestrator) execDelay(ctx context.Context, log *slog.Logger, state *RunState, step *domain.Step, action domain.DelayAction) error {
	now := o.now().UTC()
	wakeAt := action.WakeAt(now)
	if !wakeAt.After(now) {
		log.Debug("delay already elapsed")
		return o.finish(ctx, log, state, step, "")
	}

	if err := o.timers.StartDelay(ctx, step.TenantID, step.RunID, step.StepID, wakeAt); err != nil {
		return o.releaseClaim(ctx, log, step, fmt.Errorf("start delay: %w", err))
	}
	log.Info("step delayed", "wake_at", wakeAt)
	return nil
}

func (o *Orchestrator) execWait(ctx context.Context, log *slog.Logger, state *RunState, step *domain.Step, action domain.WaitAction) error {
	if step.Resumed() {
		log.Debug("wait already resumed")
		return o.finish(ctx, log, state, step, "")
	}

	if action.Timeout > 0 {
		wakeAt := o.now().UTC().Add(action.Timeout)
		if err := o.timers.StartWaitTimeout(ctx, step.TenantID, step.RunID, step.StepID, wakeAt); err != nil {
			return o.releaseClaim(ctx, log, step, fmt.Errorf("start wait timeout: %w", err))
		}
	}
	log.Info("step waiting", "ref", step.Ref, "timeout", action.Timeout)
	return nil
}

func (o *Orchestrator) execBranch(ctx context.Context, log *slog.Logger, state *RunState, step *domain.Step, action domain.BranchAction) error {
	ok, err := engine.EvalCondition(action.If, state.Context(step).Env())
	if err != nil {
		return o.failRun(ctx, state, step, err.Error())
	}

	target, edge := action.Else, "else"
	if ok {
		target, edge = action.Then, "then"
	}
	step.SetContext("branch", edge)

	log.Debug("branch evaluated", "if", action.If, "edge", edge, "target", target)
	return o.finish(ctx, log, state, step, target)
}

// finish завершает захваченный шаг без внешнего эффекта. Если завершение
// не сохранилось, захват снимается и повтор триггера выполнит шаг заново.
func (o *Orchestrator) finish(ctx context.Context, log *slog.Logger, state *RunState, step *domain.Step, target string) error {
	done, err := o.complete(ctx, log, state, step)
	if err != nil {
		return o.releaseClaim(ctx, log, step, err)
	}
	if !done {
		return nil
	}
	return o.advance(ctx, state, step, target)
}

// releaseClaim снимает захват шага и возвращает cause для повторной доставки.
func (o *Orchestrator) releaseClaim(ctx context.Context, log *slog.Logger, step *domain.Step, cause error) error {
	if err := o.steps.Unclaim(ctx, step.TenantID, step.RunID, step.StepID, o.now().UTC()); err != nil {
		log.Error("failed to release step claim", "error", err)
	}
	return cause
}
