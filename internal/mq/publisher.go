package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Relay/internal/domain"
)

// MessageType: тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeInvokeRun   MessageType = "run.invoke"
	MessageTypeEnqueueStep MessageType = "step.enqueue"
	MessageTypeTimerWake   MessageType = "timer.wake"
	MessageTypeResumeRef   MessageType = "ref.resume"
	MessageTypeCancelRuns  MessageType = "run.cancel"
)

// Publisher публикует триггеры в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
		now:    time.Now,
	}
}

// Message: конверт триггера.
//
// ID служит номером последовательности для guard: повторная публикация
// одного и того же триггера несёт тот же ID и отсекается как дубликат.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publish публикует сообщение и ждёт подтверждения брокера.
func (p *Publisher) Publish(ctx context.Context, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		confirm, err := ch.PublishWithDeferredConfirmWithContext(
			ctx,
			string(ExchangeTriggers), // exchange
			string(msg.Type),         // routing key
			false,                    // mandatory
			false,                    // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish %s: %w", msg.Type, err)
		}

		ok, err := confirm.WaitContext(ctx)
		if err != nil {
			return fmt.Errorf("wait confirm for %s: %w", msg.ID, err)
		}
		if !ok {
			return fmt.Errorf("broker nacked %s %s", msg.Type, msg.ID)
		}

		p.logger.Debug("published message",
			"routing_key", msg.Type,
			"message_id", msg.ID,
		)
		return nil
	})
}

func (p *Publisher) publish(ctx context.Context, id string, t MessageType, payload any) error {
	return p.Publish(ctx, &Message{
		ID:        id,
		Type:      t,
		Payload:   payload,
		Timestamp: p.now().UTC(),
	})
}

// PublishInvokeRun публикует запуск run. Потребитель: relay-engine.
// Пустой RunID заполняется до публикации, чтобы повторная доставка
// не создала второй run.
func (p *Publisher) PublishInvokeRun(ctx context.Context, invoke domain.InvokeRun) error {
	if invoke.RunID == "" {
		invoke.RunID = uuid.NewString()
	}
	return p.publish(ctx, InvokeRunID(invoke), MessageTypeInvokeRun, invoke)
}

// PublishEnqueueStep публикует выполнение шага. Потребитель: relay-engine.
func (p *Publisher) PublishEnqueueStep(ctx context.Context, msg domain.EnqueueStep) error {
	return p.publish(ctx, EnqueueStepID(msg), MessageTypeEnqueueStep, msg)
}

// PublishTimerWake публикует удаление таймера. Потребитель: relay-engine.
func (p *Publisher) PublishTimerWake(ctx context.Context, wake domain.TimerWake) error {
	return p.publish(ctx, TimerWakeID(wake), MessageTypeTimerWake, wake)
}

// PublishResumeRef публикует внешнее событие для шага с ref.
// eventID задаётся источником события; пустой означает новый UUID.
func (p *Publisher) PublishResumeRef(ctx context.Context, resume domain.ResumeRef, eventID string) error {
	if eventID == "" {
		eventID = uuid.NewString()
	}
	id := "ref/" + resume.TenantID + "/" + resume.Ref + "/" + eventID
	return p.publish(ctx, id, MessageTypeResumeRef, resume)
}

// PublishCancelRuns публикует отмену runs по токену.
func (p *Publisher) PublishCancelRuns(ctx context.Context, cancel domain.CancelRuns) error {
	return p.publish(ctx, "cancel/"+cancel.TenantID+"/"+uuid.NewString(), MessageTypeCancelRuns, cancel)
}

// InvokeRunID: детерминированный ID для run с заданным RunID, иначе случайный.
func InvokeRunID(invoke domain.InvokeRun) string {
	if invoke.RunID == "" {
		return "run/" + invoke.TenantID + "/" + uuid.NewString()
	}
	return "run/" + invoke.TenantID + "/" + invoke.RunID
}

// EnqueueStepID: каждый шаг выполняется одним триггером.
func EnqueueStepID(msg domain.EnqueueStep) string {
	return "step/" + msg.TenantID + "/" + msg.RunID + "/" + msg.StepID
}

// TimerWakeID различает срабатывания одного schedule по TTL и
// удаления пользователем по actor.
func TimerWakeID(wake domain.TimerWake) string {
	var ttl int64
	if wake.Timer.TTL != nil {
		ttl = wake.Timer.TTL.Unix()
	}
	return "timer/" + wake.Timer.TenantID + "/" + wake.Timer.ID + "/" +
		strconv.FormatInt(ttl, 10) + "/" + string(wake.Actor)
}
