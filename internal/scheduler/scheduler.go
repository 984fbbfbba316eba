package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Invoker публикует запуск run по сработавшему schedule.
type Invoker interface {
	PublishInvokeRun(ctx context.Context, invoke domain.InvokeRun) error
}

// Completer продолжает runs, чьи delay или wait таймеры истекли.
type Completer interface {
	CompleteDelay(ctx context.Context, tenantID, runID, stepID string) error
	TimeoutWait(ctx context.Context, tenantID, runID, stepID string) error
}

// Scheduler обрабатывает уведомления об удалении таймеров.
type Scheduler struct {
	timers    TimerStore
	invoker   Invoker
	completer Completer
	now       func() time.Time
	logger    *slog.Logger
}

// Config: конфигурация Scheduler.
type Config struct {
	Timers    TimerStore
	Invoker   Invoker
	Completer Completer
	Clock     func() time.Time
	Logger    *slog.Logger
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		timers:    cfg.Timers,
		invoker:   cfg.Invoker,
		completer: cfg.Completer,
		now:       clock,
		logger:    logger,
	}
}

// HandleWake обрабатывает удаление таймера.
//
// Будят run только удаления от sweeper. Явные удаления пользователем
// (отмена delay, удаление schedule) игнорируются.
func (s *Scheduler) HandleWake(ctx context.Context, wake domain.TimerWake) error {
	timer := wake.Timer

	if wake.Actor != domain.ActorSweeper {
		s.logger.Debug("ignoring user timer deletion",
			"kind", timer.Kind,
			"tenant_id", timer.TenantID,
			"id", timer.ID,
			"actor", wake.Actor,
		)
		telemetry.TimersTotal.WithLabelValues(string(timer.Kind), "ignored").Inc()
		return nil
	}

	telemetry.TimersTotal.WithLabelValues(string(timer.Kind), "fired").Inc()

	switch timer.Kind {
	case domain.TimerDelay:
		return s.completer.CompleteDelay(ctx, timer.TenantID, timer.RunID, timer.StepID)
	case domain.TimerWaitTimeout:
		return s.completer.TimeoutWait(ctx, timer.TenantID, timer.RunID, timer.StepID)
	case domain.TimerSchedule:
		return s.fireSchedule(ctx, timer)
	default:
		s.logger.Warn("unknown timer kind", "kind", timer.Kind, "id", timer.ID)
		return nil
	}
}

func (s *Scheduler) fireSchedule(ctx context.Context, timer domain.Timer) error {
	log := s.logger.With("tenant_id", timer.TenantID, "item_id", timer.ID)

	if !timer.Enabled {
		log.Debug("schedule disabled, ignoring wake")
		return nil
	}

	// Пользователь мог удалить или пересоздать schedule между sweep и обработкой
	current, err := s.timers.GetByID(ctx, timer.TenantID, timer.ID)
	switch {
	case err == nil && current.Removed:
		log.Info("schedule removed, ignoring wake")
		telemetry.TimersTotal.WithLabelValues(string(domain.TimerSchedule), "ignored").Inc()
		return nil
	case err == nil && !current.Enabled:
		log.Info("schedule disabled, ignoring wake")
		telemetry.TimersTotal.WithLabelValues(string(domain.TimerSchedule), "ignored").Inc()
		return nil
	case err == nil:
		log.Debug("schedule re-created, skipping re-arm", "rule", current.Value)
	case errors.Is(err, repo.ErrNotFound):
		if err := s.rearm(ctx, log, timer); err != nil {
			return err
		}
	default:
		return fmt.Errorf("get schedule %s: %w", timer.ID, err)
	}

	invoke := domain.InvokeRun{
		TenantID:   timer.TenantID,
		TemplateID: timer.TemplateID,
		RunID:      ScheduledRunID(timer),
		Scope:      timer.Scope,
		Source:     []string{"schedule/" + timer.ID},
		Context:    maps.Clone(timer.Data),
	}
	if err := s.invoker.PublishInvokeRun(ctx, invoke); err != nil {
		return fmt.Errorf("publish invoke for schedule %s: %w", timer.ID, err)
	}

	log.Info("schedule fired", "template_id", timer.TemplateID, "run_id", invoke.RunID)
	return nil
}

// rearm записывает schedule со следующим TTL. Правило без следующего
// срабатывания (разовое или некорректное) не перевзводится. Запись
// условная: удаление или пересоздание пользователем после чтения не
// перезаписывается.
func (s *Scheduler) rearm(ctx context.Context, log *slog.Logger, timer domain.Timer) error {
	next, ok := CalculateNextTTL(timer.Value, s.now())
	if !ok {
		if IsRecurring(timer.Value) {
			log.Error("invalid schedule rule, not re-arming",
				"rule", timer.Value,
				"error", ErrInvalidScheduleRule,
			)
		}
		return nil
	}

	timer.TTL = &next
	created, err := s.timers.Create(ctx, &timer)
	if err != nil {
		return fmt.Errorf("re-arm schedule %s: %w", timer.ID, err)
	}
	if !created {
		log.Debug("schedule changed concurrently, skipping re-arm")
		return nil
	}
	telemetry.TimersTotal.WithLabelValues(string(domain.TimerSchedule), "armed").Inc()
	return nil
}

// ScheduledRunID возвращает детерминированный идентификатор run для
// срабатывания schedule. Повторная доставка того же wake даёт тот же run.
func ScheduledRunID(timer domain.Timer) string {
	var ttl int64
	if timer.TTL != nil {
		ttl = timer.TTL.Unix()
	}
	name := "relay:schedule:" + timer.TenantID + "/" + timer.ID + "/" + strconv.FormatInt(ttl, 10)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
