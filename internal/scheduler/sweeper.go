package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Leader: leader election между репликами sweeper.
type Leader interface {
	TryLead(ctx context.Context) (bool, error)
}

// Sweeper периодически удаляет истёкшие таймеры и публикует
// уведомления с ActorSweeper.
type Sweeper struct {
	store     TimerStore
	notifier  Notifier
	leader    Leader
	now       func() time.Time
	logger    *slog.Logger
	batchSize int
}

// SweeperConfig: конфигурация Sweeper.
type SweeperConfig struct {
	Store     TimerStore
	Notifier  Notifier
	Leader    Leader // опционально; без него каждая реплика считается лидером
	Clock     func() time.Time
	Logger    *slog.Logger
	BatchSize int // количество таймеров за один проход (default: 100)
}

// NewSweeper создаёт новый Sweeper.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:     cfg.Store,
		notifier:  cfg.Notifier,
		leader:    cfg.Leader,
		now:       clock,
		logger:    logger,
		batchSize: batchSize,
	}
}

// Tick выполняет один проход: выбирает истёкшие таймеры пачками, пока
// они не закончатся. Таймер удаляется только после успешной публикации,
// поэтому при ошибке брокера он будет подобран следующим тиком.
func (s *Sweeper) Tick(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() {
		telemetry.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	now := s.now()
	var total int
	for {
		swept, err := s.store.SweepExpired(ctx, now, s.batchSize, func(timer domain.Timer) error {
			if timer.Removed {
				// Отметка удалённого schedule отслужила, будить нечего
				telemetry.TimersTotal.WithLabelValues(string(timer.Kind), "purged").Inc()
				return nil
			}
			wake := domain.TimerWake{
				Timer:     timer,
				Actor:     domain.ActorSweeper,
				DeletedAt: now.UTC(),
			}
			return s.notifier.PublishTimerWake(ctx, wake)
		})
		total += swept
		if err != nil {
			return total, fmt.Errorf("sweep expired timers: %w", err)
		}
		if swept < s.batchSize {
			break
		}
	}

	if total > 0 {
		s.logger.Info("sweep completed", "swept", total)
	}
	return total, nil
}

// Run вызывает Tick с интервалом interval, пока ctx не отменён.
// Тик выполняется только лидером.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	tk := time.NewTicker(interval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tk.C:
			if s.leader != nil {
				ok, err := s.leader.TryLead(ctx)
				if err != nil {
					s.logger.Warn("leader election failed", "error", err)
					continue
				}
				if !ok {
					continue
				}
			}
			if _, err := s.Tick(ctx); err != nil {
				s.logger.Error("sweep failed", "error", err)
			}
		}
	}
}
