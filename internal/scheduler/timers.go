package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/telemetry"
)

// TimerStore: хранилище таймеров.
type TimerStore interface {
	Put(ctx context.Context, timer *domain.Timer) error
	Create(ctx context.Context, timer *domain.Timer) (bool, error)
	GetByID(ctx context.Context, tenantID, id string) (*domain.Timer, error)
	Delete(ctx context.Context, tenantID, id string) (*domain.Timer, error)
	SweepExpired(ctx context.Context, now time.Time, limit int, fn func(domain.Timer) error) (int, error)
}

// Notifier публикует уведомления об удалении таймеров.
type Notifier interface {
	PublishTimerWake(ctx context.Context, wake domain.TimerWake) error
}

// DefaultTombstoneTTL: сколько хранится отметка удалённого schedule.
const DefaultTombstoneTTL = 48 * time.Hour

// Timers создаёт и удаляет таймеры delay, wait_timeout и schedule.
type Timers struct {
	store        TimerStore
	notifier     Notifier
	tombstoneTTL time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// TimersConfig: конфигурация Timers.
type TimersConfig struct {
	Store        TimerStore
	Notifier     Notifier      // опционально; без него явные удаления не публикуются
	TombstoneTTL time.Duration // default: DefaultTombstoneTTL
	Clock        func() time.Time
	Logger       *slog.Logger
}

// NewTimers создаёт новый Timers.
func NewTimers(cfg TimersConfig) *Timers {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tombstoneTTL := cfg.TombstoneTTL
	if tombstoneTTL <= 0 {
		tombstoneTTL = DefaultTombstoneTTL
	}
	return &Timers{
		store:        cfg.Store,
		notifier:     cfg.Notifier,
		tombstoneTTL: tombstoneTTL,
		now:          clock,
		logger:       logger,
	}
}

// StartDelay записывает delay-таймер шага с пробуждением в wakeAt.
func (t *Timers) StartDelay(ctx context.Context, tenantID, runID, stepID string, wakeAt time.Time) error {
	return t.putStepTimer(ctx, domain.TimerDelay, tenantID, runID, stepID, wakeAt)
}

// StartWaitTimeout записывает таймаут wait-шага.
func (t *Timers) StartWaitTimeout(ctx context.Context, tenantID, runID, stepID string, wakeAt time.Time) error {
	return t.putStepTimer(ctx, domain.TimerWaitTimeout, tenantID, runID, stepID, wakeAt)
}

func (t *Timers) putStepTimer(ctx context.Context, kind domain.TimerKind, tenantID, runID, stepID string, wakeAt time.Time) error {
	ttl := wakeAt.UTC()
	timer := &domain.Timer{
		TenantID:  tenantID,
		ID:        stepID,
		Kind:      kind,
		TTL:       &ttl,
		RunID:     runID,
		StepID:    stepID,
		Enabled:   true,
		CreatedAt: t.now().UTC(),
	}
	if err := t.store.Put(ctx, timer); err != nil {
		return fmt.Errorf("put %s timer: %w", kind, err)
	}

	telemetry.TimersTotal.WithLabelValues(string(kind), "armed").Inc()
	t.logger.Debug("timer armed",
		"kind", kind,
		"tenant_id", tenantID,
		"run_id", runID,
		"step_id", stepID,
		"wake_at", ttl,
	)
	return nil
}

// CancelTimer явно удаляет таймер. Уведомление публикуется с ActorUser
// и не будит run. Отсутствующий таймер ошибкой не считается.
func (t *Timers) CancelTimer(ctx context.Context, tenantID, id string) error {
	timer, err := t.store.Delete(ctx, tenantID, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete timer %s: %w", id, err)
	}

	telemetry.TimersTotal.WithLabelValues(string(timer.Kind), "canceled").Inc()
	t.logger.Debug("timer canceled", "kind", timer.Kind, "tenant_id", tenantID, "id", id)

	if t.notifier == nil {
		return nil
	}
	wake := domain.TimerWake{Timer: *timer, Actor: domain.ActorUser, DeletedAt: t.now().UTC()}
	if err := t.notifier.PublishTimerWake(ctx, wake); err != nil {
		// Удаление уже выполнено, user-уведомление только информационное
		t.logger.Warn("failed to publish timer deletion", "id", id, "error", err)
	}
	return nil
}

// ScheduleSpec: параметры schedule-таймера.
type ScheduleSpec struct {
	TenantID   string         `json:"tenant_id"`
	ItemID     string         `json:"item_id"`
	Scope      string         `json:"scope"`
	Rule       string         `json:"rule"`
	TemplateID string         `json:"template_id"`
	Data       map[string]any `json:"data,omitempty"`
}

// ArmSchedule создаёт или перезаписывает schedule-таймер.
// Некорректное или прошедшее правило: ErrInvalidScheduleRule.
func (t *Timers) ArmSchedule(ctx context.Context, spec ScheduleSpec) (*domain.Timer, error) {
	now := t.now()
	next, ok := CalculateNextTTL(spec.Rule, now)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidScheduleRule, spec.Rule)
	}

	timer := &domain.Timer{
		TenantID:   spec.TenantID,
		ID:         spec.ItemID,
		Kind:       domain.TimerSchedule,
		TTL:        &next,
		Scope:      spec.Scope,
		Value:      spec.Rule,
		Enabled:    true,
		TemplateID: spec.TemplateID,
		Data:       maps.Clone(spec.Data),
		CreatedAt:  now.UTC(),
	}
	if err := t.store.Put(ctx, timer); err != nil {
		return nil, fmt.Errorf("put schedule timer: %w", err)
	}

	telemetry.TimersTotal.WithLabelValues(string(domain.TimerSchedule), "armed").Inc()
	t.logger.Info("schedule armed",
		"tenant_id", spec.TenantID,
		"item_id", spec.ItemID,
		"rule", spec.Rule,
		"next", next,
	)
	return timer, nil
}

// SetScheduleEnabled включает или выключает schedule. Выключенный schedule
// хранится без TTL и sweeper его не трогает; при включении TTL вычисляется заново.
func (t *Timers) SetScheduleEnabled(ctx context.Context, tenantID, itemID string, enabled bool) error {
	timer, err := t.getSchedule(ctx, tenantID, itemID)
	if err != nil {
		return err
	}

	if !enabled {
		timer.Enabled = false
		timer.TTL = nil
		if err := t.store.Put(ctx, timer); err != nil {
			return fmt.Errorf("disable schedule %s: %w", itemID, err)
		}
		t.logger.Info("schedule disabled", "tenant_id", tenantID, "item_id", itemID)
		return nil
	}

	now := t.now()
	next, ok := CalculateNextTTL(timer.Value, now)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidScheduleRule, timer.Value)
	}
	timer.TTL = &next
	timer.Enabled = true
	if err := t.store.Put(ctx, timer); err != nil {
		return fmt.Errorf("enable schedule %s: %w", itemID, err)
	}
	t.logger.Info("schedule enabled", "tenant_id", tenantID, "item_id", itemID, "next", next)
	return nil
}

// RemoveSchedule удаляет schedule по запросу пользователя.
//
// Вместо записи остаётся отметка Removed на tombstoneTTL: sweeper мог
// уже удалить истёкший schedule и опубликовать wake, и этот wake не
// должен перевзвести schedule. Повторное удаление: repo.ErrNotFound.
func (t *Timers) RemoveSchedule(ctx context.Context, tenantID, itemID string) error {
	now := t.now().UTC()
	timer, err := t.store.GetByID(ctx, tenantID, itemID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		// Запись могла быть удалена sweeper и ждёт обработки wake
		timer = &domain.Timer{TenantID: tenantID, ID: itemID, Kind: domain.TimerSchedule, CreatedAt: now}
	case err != nil:
		return fmt.Errorf("get schedule %s: %w", itemID, err)
	case timer.Kind != domain.TimerSchedule:
		return fmt.Errorf("%w: %s", ErrNotSchedule, itemID)
	case timer.Removed:
		return fmt.Errorf("get schedule %s: %w", itemID, repo.ErrNotFound)
	}

	removed := *timer
	ttl := now.Add(t.tombstoneTTL)
	removed.TTL = &ttl
	removed.Enabled = false
	removed.Removed = true
	if err := t.store.Put(ctx, &removed); err != nil {
		return fmt.Errorf("remove schedule %s: %w", itemID, err)
	}

	telemetry.TimersTotal.WithLabelValues(string(domain.TimerSchedule), "canceled").Inc()
	t.logger.Info("schedule removed", "tenant_id", tenantID, "item_id", itemID)

	if t.notifier == nil {
		return nil
	}
	wake := domain.TimerWake{Timer: *timer, Actor: domain.ActorUser, DeletedAt: now}
	if err := t.notifier.PublishTimerWake(ctx, wake); err != nil {
		t.logger.Warn("failed to publish schedule removal", "item_id", itemID, "error", err)
	}
	return nil
}

// getSchedule возвращает действующий schedule. Удалённый schedule: repo.ErrNotFound.
func (t *Timers) getSchedule(ctx context.Context, tenantID, itemID string) (*domain.Timer, error) {
	timer, err := t.store.GetByID(ctx, tenantID, itemID)
	if err != nil {
		return nil, fmt.Errorf("get schedule %s: %w", itemID, err)
	}
	if timer.Kind != domain.TimerSchedule {
		return nil, fmt.Errorf("%w: %s", ErrNotSchedule, itemID)
	}
	if timer.Removed {
		return nil, fmt.Errorf("get schedule %s: %w", itemID, repo.ErrNotFound)
	}
	return timer, nil
}
