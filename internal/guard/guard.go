// Package guard обеспечивает дедупликацию записей потоков и очередей.
//
// Доставка триггеров at-least-once, поэтому перед обработкой записи
// её (consumerID, sequenceNumber) резервируется условным созданием.
// Повторная доставка получает ErrAlreadyProcessed и пропускается.
// При ошибке обработки без внешних эффектов резерв снимается (Release),
// чтобы повторная доставка была обработана заново.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/repo"
)

// DefaultRetention: срок хранения отметки по умолчанию.
const DefaultRetention = 48 * time.Hour

// ErrAlreadyProcessed: запись уже обработана (или обрабатывается).
// Ожидаемое значение пропуска, а не сбой.
var ErrAlreadyProcessed = errors.New("sequence already processed")

// Store: хранилище отметок с условным созданием.
type Store interface {
	Create(ctx context.Context, rec domain.SequenceRecord) error
	Delete(ctx context.Context, consumerID, seq string) error
}

// Guard резервирует и освобождает отметки обработки.
type Guard struct {
	store     Store
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// Config: конфигурация Guard.
type Config struct {
	Store     Store
	Retention time.Duration // срок хранения отметки (default: 48h)
	Clock     func() time.Time
	Logger    *slog.Logger
}

// New создаёт новый Guard.
func New(cfg Config) *Guard {
	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Guard{
		store:     cfg.Store,
		retention: retention,
		now:       clock,
		logger:    logger,
	}
}

// Reserve резервирует (consumerID, seq). Возвращает ErrAlreadyProcessed,
// если отметка уже существует.
func (g *Guard) Reserve(ctx context.Context, consumerID, seq string) error {
	rec := domain.SequenceRecord{
		ConsumerID:     consumerID,
		SequenceNumber: seq,
		TTL:            g.now().Add(g.retention),
	}

	err := g.store.Create(ctx, rec)
	if errors.Is(err, repo.ErrAlreadyExists) {
		g.logger.Debug("sequence already processed",
			"consumer_id", consumerID,
			"sequence_number", seq,
		)
		return ErrAlreadyProcessed
	}
	if err != nil {
		return fmt.Errorf("reserve %s/%s: %w", consumerID, seq, err)
	}
	return nil
}

// Release снимает резерв, чтобы повторная доставка была обработана.
func (g *Guard) Release(ctx context.Context, consumerID, seq string) error {
	if err := g.store.Delete(ctx, consumerID, seq); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("release %s/%s: %w", consumerID, seq, err)
	}
	return nil
}
