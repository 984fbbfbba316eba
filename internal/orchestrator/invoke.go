package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/engine"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/telemetry"
)

// InvokeRun создаёт run и ставит в очередь первый шаг.
//
// Шаги берутся из шаблона (TemplateID) или из invoke.Steps. Повторная
// доставка с тем же RunID не создаёт второй run: недостающие шаги и ref
// досоздаются, первый шаг публикуется повторно (дубликат отсекается guard).
func (o *Orchestrator) InvokeRun(ctx context.Context, invoke domain.InvokeRun) (string, error) {
	defs, err := o.resolveSteps(ctx, invoke)
	if err != nil {
		return "", err
	}

	runID := invoke.RunID
	if runID == "" {
		runID = o.newID()
	}
	log := telemetry.WithRunID(telemetry.WithTenantID(o.logger, invoke.TenantID), runID)

	now := o.now().UTC()
	run := &domain.Run{
		TenantID:         invoke.TenantID,
		ID:               runID,
		TemplateID:       invoke.TemplateID,
		Scope:            invoke.Scope,
		Source:           slices.Clone(invoke.Source),
		Status:           domain.StatusProcessing,
		CancelationToken: invoke.CancelationToken,
		Context:          maps.Clone(invoke.Context),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	created := true
	if err := o.runs.Create(ctx, run); err != nil {
		if !errors.Is(err, repo.ErrAlreadyExists) {
			return "", fmt.Errorf("create run: %w", err)
		}
		created = false
		log.Debug("run already exists, resuming invocation")
	}

	existing, err := o.steps.ListByRun(ctx, invoke.TenantID, runID)
	if err != nil {
		return "", fmt.Errorf("list steps: %w", err)
	}

	var stepList []*domain.Step
	if len(existing) == 0 {
		stepList, err = o.factory(invoke.TenantID).CreateAll(runID, defs)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidSteps, err)
		}
		if err := o.steps.CreateBatch(ctx, stepList); err != nil {
			return "", fmt.Errorf("create steps: %w", err)
		}
	} else {
		for i := range existing {
			stepList = append(stepList, &existing[i])
		}
	}

	if err := o.refs.CreateRefs(ctx, stepList); err != nil {
		return "", fmt.Errorf("create refs: %w", err)
	}

	if created {
		telemetry.RunsTotal.WithLabelValues("started").Inc()
		log.Info("run invoked",
			"template_id", invoke.TemplateID,
			"source", invoke.Source,
			"steps", len(stepList),
		)
	}

	state, err := o.loadState(ctx, invoke.TenantID, runID)
	if err != nil {
		return "", err
	}
	if state.Run.IsFinished() {
		return runID, nil
	}

	first := state.First()
	if first == nil {
		// Все шаги уже захвачены: run продолжается своими триггерами
		return runID, nil
	}
	if err := o.enqueue(ctx, first); err != nil {
		return "", err
	}
	return runID, nil
}

// resolveSteps возвращает провалидированные определения шагов.
func (o *Orchestrator) resolveSteps(ctx context.Context, invoke domain.InvokeRun) ([]domain.DeclarativeStep, error) {
	if invoke.TemplateID == "" {
		if err := engine.ValidateSteps(invoke.Steps, o.registry); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSteps, err)
		}
		return invoke.Steps, nil
	}

	tmpl, err := o.templates.GetByID(ctx, invoke.TenantID, invoke.TemplateID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, invoke.TemplateID)
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if err := engine.ValidateTemplate(tmpl, o.registry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSteps, err)
	}
	return tmpl.Steps, nil
}

// enqueue публикует триггер выполнения шага.
func (o *Orchestrator) enqueue(ctx context.Context, step *domain.Step) error {
	msg := domain.EnqueueStep{
		TenantID: step.TenantID,
		RunID:    step.RunID,
		StepID:   step.StepID,
	}
	if err := o.publisher.PublishEnqueueStep(ctx, msg); err != nil {
		return fmt.Errorf("publish step.enqueue for %s: %w", step.StepID, err)
	}
	return nil
}

// loadState загружает run и его шаги.
func (o *Orchestrator) loadState(ctx context.Context, tenantID, runID string) (*RunState, error) {
	run, err := o.runs.GetByID(ctx, tenantID, runID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	stepList, err := o.steps.ListByRun(ctx, tenantID, runID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	return NewRunState(run, stepList), nil
}
