package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/Relay/internal/guard"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Record: одна запись потока триггеров.
type Record struct {
	// ItemID идентифицирует запись в отчёте о частичной ошибке батча.
	ItemID string

	ConsumerID     string
	SequenceNumber string
	Body           []byte
}

// BatchResult: результат обработки батча. Пустой FailedItemIDs
// означает, что батч обработан целиком.
type BatchResult struct {
	FailedItemIDs []string `json:"failedItemIds"`
}

// Failed возвращает true, если хотя бы одна запись не обработана.
func (r BatchResult) Failed() bool {
	return len(r.FailedItemIDs) > 0
}

// Reserver резервирует номер последовательности.
type Reserver interface {
	Reserve(ctx context.Context, consumerID, sequenceNumber string) error
	Release(ctx context.Context, consumerID, sequenceNumber string) error
}

// Func: бизнес-обработчик записи.
type Func func(ctx context.Context, rec Record) error

// Handler оборачивает бизнес-обработчик резервированием последовательности.
type Handler struct {
	guard  Reserver
	fn     Func
	logger *slog.Logger
}

// Config: конфигурация Handler.
type Config struct {
	Guard  Reserver
	Func   Func
	Logger *slog.Logger
}

// New создаёт новый Handler.
func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		guard:  cfg.Guard,
		fn:     cfg.Func,
		logger: logger,
	}
}

// Handle обрабатывает батч последовательно.
//
// Запись с уже зарезервированным номером пропускается как успешная.
// При ошибке обработчика резервирование снимается, а запись попадает
// в FailedItemIDs для повторной доставки. Успешные записи батча
// повторно не обрабатываются.
func (h *Handler) Handle(ctx context.Context, batch []Record) BatchResult {
	var result BatchResult
	for _, rec := range batch {
		if err := h.HandleRecord(ctx, rec); err != nil {
			result.FailedItemIDs = append(result.FailedItemIDs, rec.ItemID)
		}
	}
	return result
}

// HandleRecord обрабатывает одну запись. Возвращает ошибку только
// для записей, требующих повторной доставки.
func (h *Handler) HandleRecord(ctx context.Context, rec Record) error {
	log := h.logger.With(
		"consumer_id", rec.ConsumerID,
		"sequence_number", rec.SequenceNumber,
		"item_id", rec.ItemID,
	)

	err := h.guard.Reserve(ctx, rec.ConsumerID, rec.SequenceNumber)
	if errors.Is(err, guard.ErrAlreadyProcessed) {
		log.Debug("record already processed, skipping")
		telemetry.TriggersTotal.WithLabelValues(rec.ConsumerID, "skipped").Inc()
		return nil
	}
	if err != nil {
		log.Error("failed to reserve sequence", "error", err)
		telemetry.TriggersTotal.WithLabelValues(rec.ConsumerID, "failed").Inc()
		return fmt.Errorf("reserve: %w", err)
	}

	if err := h.fn(ctx, rec); err != nil {
		telemetry.TriggersTotal.WithLabelValues(rec.ConsumerID, "failed").Inc()

		if keepsReservation(err) {
			log.Error("handler failed after external effect, keeping reservation", "error", err)
			return err
		}

		log.Error("handler failed, releasing reservation", "error", err)
		if relErr := h.guard.Release(ctx, rec.ConsumerID, rec.SequenceNumber); relErr != nil {
			// Без снятия резервирования повторная доставка будет пропущена
			log.Error("failed to release reservation", "error", relErr)
		}
		return err
	}

	telemetry.TriggersTotal.WithLabelValues(rec.ConsumerID, "processed").Inc()
	return nil
}
