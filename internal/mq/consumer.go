package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Relay/internal/stream"
)

// BatchHandler обрабатывает батч записей и возвращает неуспешные.
type BatchHandler func(ctx context.Context, batch []stream.Record) stream.BatchResult

// Consumer потребляет сообщения из очереди RabbitMQ батчами.
//
// Каждое сообщение превращается в stream.Record: ConsumerID = имя очереди,
// SequenceNumber = ID сообщения. Записи из FailedItemIDs возвращаются
// в очередь (nack с requeue), остальные подтверждаются. Quorum-очередь
// отправляет сообщение в DLQ после DeliveryLimit доставок.
type Consumer struct {
	conn      *Connection
	logger    *slog.Logger
	queue     Queue
	handler   BatchHandler
	batchSize int
	batchWait time.Duration

	cancelFunc context.CancelFunc
}

// ConsumerConfig: конфигурация consumer.
type ConsumerConfig struct {
	// Queue: имя очереди.
	Queue Queue

	// Handler: обработчик батча.
	Handler BatchHandler

	// BatchSize: максимальный размер батча, он же prefetch (default: 10).
	BatchSize int

	// BatchWait: сколько ждать добора батча после первого сообщения (default: 50ms).
	BatchWait time.Duration
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	batchWait := cfg.BatchWait
	if batchWait <= 0 {
		batchWait = 50 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		conn:      conn,
		logger:    logger.With("queue", cfg.Queue),
		queue:     cfg.Queue,
		handler:   cfg.Handler,
		batchSize: batchSize,
		batchWait: batchWait,
	}
}

// Start запускает потребление сообщений. Блокируется до отмены ctx.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	return c.consume(ctx)
}

// consume: основной цикл потребления с переподключением.
func (c *Consumer) consume(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ch, deliveries, err := c.setupConsume()
		if err != nil {
			c.logger.Error("failed to setup consume", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				c.logger.Info("reconnected, restarting consumer")
				continue
			case <-time.After(5 * time.Second):
				continue
			}
		}

		c.logger.Info("consumer started", "batch_size", c.batchSize)

		err = c.processDeliveries(ctx, deliveries)
		_ = ch.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("deliveries channel closed, reconnecting", "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
		case <-time.After(5 * time.Second):
		}
	}
}

// setupConsume открывает канал consumer и начинает потребление.
func (c *Consumer) setupConsume() (*amqp.Channel, <-chan amqp.Delivery, error) {
	ch, err := c.conn.OpenChannel()
	if err != nil {
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Qos(c.batchSize, 0, false); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		string(c.queue), // queue
		"",              // consumer tag (auto-generated)
		false,           // auto-ack (мы ack вручную)
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("consume: %w", err)
	}

	return ch, deliveries, nil
}

// processDeliveries собирает батчи из канала доставки.
func (c *Consumer) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		var first amqp.Delivery
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}
			first = d
		}

		batch := []amqp.Delivery{first}
		timer := time.NewTimer(c.batchWait)
	collect:
		for len(batch) < c.batchSize {
			select {
			case d, ok := <-deliveries:
				if !ok {
					break collect
				}
				batch = append(batch, d)
			case <-timer.C:
				break collect
			}
		}
		timer.Stop()

		c.handleBatch(ctx, batch)
	}
}

// handleBatch обрабатывает батч и подтверждает сообщения.
func (c *Consumer) handleBatch(ctx context.Context, batch []amqp.Delivery) {
	records := make([]stream.Record, 0, len(batch))
	byItem := make(map[string]amqp.Delivery, len(batch))

	for _, raw := range batch {
		rec, err := toRecord(c.queue, raw)
		if err != nil {
			c.logger.Error("failed to decode message",
				"error", err,
				"body", string(raw.Body),
			)
			// Некорректное сообщение: сразу в DLQ
			_ = raw.Nack(false, false)
			continue
		}
		records = append(records, rec)
		byItem[rec.ItemID] = raw
	}
	if len(records) == 0 {
		return
	}

	result := c.handler(ctx, records)

	failed := make(map[string]bool, len(result.FailedItemIDs))
	for _, id := range result.FailedItemIDs {
		failed[id] = true
	}

	for _, rec := range records {
		raw := byItem[rec.ItemID]
		if failed[rec.ItemID] {
			// Возвращаем в очередь для retry; после DeliveryLimit сообщение уйдёт в DLQ
			if err := raw.Nack(false, true); err != nil {
				c.logger.Warn("nack failed", "message_id", rec.SequenceNumber, "error", err)
			}
			continue
		}
		if err := raw.Ack(false); err != nil {
			c.logger.Warn("ack failed", "message_id", rec.SequenceNumber, "error", err)
		}
	}

	if len(failed) > 0 {
		c.logger.Warn("batch partially failed", "size", len(records), "failed", len(failed))
	}
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// toRecord строит запись потока из AMQP сообщения.
func toRecord(queue Queue, raw amqp.Delivery) (stream.Record, error) {
	msg, err := Decode(raw.Body)
	if err != nil {
		return stream.Record{}, err
	}

	seq := raw.MessageId
	if seq == "" {
		seq = msg.ID
	}
	if seq == "" {
		return stream.Record{}, fmt.Errorf("message has no id")
	}

	return stream.Record{
		ItemID:         strconv.FormatUint(raw.DeliveryTag, 10),
		ConsumerID:     string(queue),
		SequenceNumber: seq,
		Body:           raw.Body,
	}, nil
}

// Decode разбирает конверт сообщения.
func Decode(body []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("message has no type")
	}
	return &msg, nil
}

// ParsePayload парсит payload сообщения в указанный тип.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	// Payload после Decode уже распарсен как map
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}

	return result, nil
}
