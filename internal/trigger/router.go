package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/orchestrator"
	"github.com/shaiso/Relay/internal/stream"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Engine: операции оркестратора, вызываемые триггерами.
type Engine interface {
	InvokeRun(ctx context.Context, invoke domain.InvokeRun) (string, error)
	EnqueueStep(ctx context.Context, msg domain.EnqueueStep) error
	ResumeByRef(ctx context.Context, tenantID, ref string, payload map[string]any) error
	CancelRuns(ctx context.Context, tenantID, token string) (int, error)
}

// Waker обрабатывает удаление таймера.
type Waker interface {
	HandleWake(ctx context.Context, wake domain.TimerWake) error
}

// Router направляет триггеры по типу сообщения.
type Router struct {
	engine Engine
	waker  Waker
	logger *slog.Logger
}

// Config: конфигурация Router.
type Config struct {
	Engine Engine
	Waker  Waker
	Logger *slog.Logger
}

// NewRouter создаёт новый Router.
func NewRouter(cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		engine: cfg.Engine,
		waker:  cfg.Waker,
		logger: logger.With("component", "trigger"),
	}
}

// Handle реализует stream.Func.
func (r *Router) Handle(ctx context.Context, rec stream.Record) error {
	msg, err := mq.Decode(rec.Body)
	if err != nil {
		// consumer уже отсеял некорректные конверты; повтор не поможет
		r.logger.Error("undecodable trigger", "sequence", rec.SequenceNumber, "error", err)
		return nil
	}

	log := r.logger.With("type", msg.Type, "sequence", rec.SequenceNumber)
	ctx = telemetry.WithLogger(ctx, log)

	switch msg.Type {
	case mq.MessageTypeInvokeRun:
		return r.invokeRun(ctx, log, msg)
	case mq.MessageTypeEnqueueStep:
		return r.enqueueStep(ctx, log, msg)
	case mq.MessageTypeTimerWake:
		return r.timerWake(ctx, log, msg)
	case mq.MessageTypeResumeRef:
		return r.resumeRef(ctx, log, msg)
	case mq.MessageTypeCancelRuns:
		return r.cancelRuns(ctx, log, msg)
	default:
		log.Warn("unknown trigger type, skipping")
		return nil
	}
}

func (r *Router) invokeRun(ctx context.Context, log *slog.Logger, msg *mq.Message) error {
	invoke, err := mq.ParsePayload[domain.InvokeRun](msg)
	if err != nil {
		log.Error("failed to parse run.invoke payload", "error", err)
		return nil
	}

	runID, err := r.engine.InvokeRun(ctx, invoke)
	if err != nil {
		if errors.Is(err, orchestrator.ErrTemplateNotFound) || errors.Is(err, orchestrator.ErrInvalidSteps) {
			log.Warn("run rejected", "tenant_id", invoke.TenantID, "template_id", invoke.TemplateID, "reason", err)
			return nil
		}
		return fmt.Errorf("invoke run: %w", err)
	}

	log.Debug("run invoked", "tenant_id", invoke.TenantID, "run_id", runID)
	return nil
}

func (r *Router) enqueueStep(ctx context.Context, log *slog.Logger, msg *mq.Message) error {
	step, err := mq.ParsePayload[domain.EnqueueStep](msg)
	if err != nil {
		log.Error("failed to parse step.enqueue payload", "error", err)
		return nil
	}

	if err := r.engine.EnqueueStep(ctx, step); err != nil {
		if orchestrator.IsStale(err) {
			log.Debug("stale step trigger", "run_id", step.RunID, "step_id", step.StepID, "reason", err)
			return nil
		}
		return fmt.Errorf("enqueue step: %w", err)
	}
	return nil
}

func (r *Router) timerWake(ctx context.Context, log *slog.Logger, msg *mq.Message) error {
	wake, err := mq.ParsePayload[domain.TimerWake](msg)
	if err != nil {
		log.Error("failed to parse timer.wake payload", "error", err)
		return nil
	}

	if err := r.waker.HandleWake(ctx, wake); err != nil {
		if orchestrator.IsStale(err) {
			log.Debug("stale timer wake", "timer_id", wake.Timer.ID, "reason", err)
			return nil
		}
		return fmt.Errorf("handle wake: %w", err)
	}
	return nil
}

func (r *Router) resumeRef(ctx context.Context, log *slog.Logger, msg *mq.Message) error {
	resume, err := mq.ParsePayload[domain.ResumeRef](msg)
	if err != nil {
		log.Error("failed to parse ref.resume payload", "error", err)
		return nil
	}

	if err := r.engine.ResumeByRef(ctx, resume.TenantID, resume.Ref, resume.Payload); err != nil {
		if orchestrator.IsStale(err) {
			log.Info("resume for unknown ref ignored", "tenant_id", resume.TenantID, "ref", resume.Ref)
			return nil
		}
		return fmt.Errorf("resume by ref: %w", err)
	}
	return nil
}

func (r *Router) cancelRuns(ctx context.Context, log *slog.Logger, msg *mq.Message) error {
	cancel, err := mq.ParsePayload[domain.CancelRuns](msg)
	if err != nil {
		log.Error("failed to parse run.cancel payload", "error", err)
		return nil
	}

	n, err := r.engine.CancelRuns(ctx, cancel.TenantID, cancel.Token)
	if err != nil {
		if errors.Is(err, orchestrator.ErrEmptyCancelationToken) {
			log.Warn("run.cancel without token rejected", "tenant_id", cancel.TenantID)
			return nil
		}
		return fmt.Errorf("cancel runs: %w", err)
	}

	log.Info("runs canceled", "tenant_id", cancel.TenantID, "count", n)
	return nil
}
