package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange: имя обменника.
type Exchange string

// Queue: имя очереди.
type Queue string

// RoutingKey: ключ маршрутизации. Совпадает с типом сообщения.
type RoutingKey string

// Exchanges.
const (
	ExchangeTriggers Exchange = "relay.triggers"
	ExchangeDLQ      Exchange = "relay.dlq"
)

// Queues.
const (
	QueueRuns   Queue = "triggers.runs"
	QueueSteps  Queue = "triggers.steps"
	QueueTimers Queue = "triggers.timers"
	QueueEvents Queue = "triggers.events"
	QueueDLQ    Queue = "dlq.triggers"
)

// DeliveryLimit: число доставок сообщения, после которого quorum-очередь
// отправляет его в DLQ.
const DeliveryLimit = 10

// bindings: очередь и типы сообщений, которые она получает.
var bindings = []struct {
	queue Queue
	types []MessageType
}{
	{QueueRuns, []MessageType{MessageTypeInvokeRun, MessageTypeCancelRuns}},
	{QueueSteps, []MessageType{MessageTypeEnqueueStep}},
	{QueueTimers, []MessageType{MessageTypeTimerWake}},
	{QueueEvents, []MessageType{MessageTypeResumeRef}},
}

// SetupTopology объявляет exchanges, очереди и привязки. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeTriggers, amqp.ExchangeDirect},
		{ExchangeDLQ, amqp.ExchangeFanout},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди триггеров (quorum, с лимитом доставок и DLQ)
// и саму DLQ.
func declareQueues(ch *amqp.Channel) error {
	triggerArgs := amqp.Table{
		amqp.QueueTypeArg:        amqp.QueueTypeQuorum,
		"x-delivery-limit":       DeliveryLimit,
		"x-dead-letter-exchange": string(ExchangeDLQ),
		"x-dead-letter-strategy": "at-least-once",
		"x-overflow":             "reject-publish",
	}

	for _, b := range bindings {
		if _, err := ch.QueueDeclare(string(b.queue), true, false, false, false, triggerArgs); err != nil {
			return fmt.Errorf("declare queue %s: %w", b.queue, err)
		}
	}

	dlqArgs := amqp.Table{amqp.QueueTypeArg: amqp.QueueTypeQuorum}
	if _, err := ch.QueueDeclare(string(QueueDLQ), true, false, false, false, dlqArgs); err != nil {
		return fmt.Errorf("declare queue %s: %w", QueueDLQ, err)
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	for _, b := range bindings {
		for _, t := range b.types {
			if err := ch.QueueBind(string(b.queue), string(t), string(ExchangeTriggers), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s/%s: %w", b.queue, ExchangeTriggers, t, err)
			}
		}
	}

	if err := ch.QueueBind(string(QueueDLQ), "", string(ExchangeDLQ), false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", QueueDLQ, ExchangeDLQ, err)
	}
	return nil
}

// QueueFor возвращает очередь, в которую маршрутизируется тип сообщения.
func QueueFor(t MessageType) (Queue, bool) {
	for _, b := range bindings {
		for _, bt := range b.types {
			if bt == t {
				return b.queue, true
			}
		}
	}
	return "", false
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Relay RabbitMQ Topology:

    relay.triggers (direct)
    ├── triggers.runs   [run.invoke, run.cancel]  Consumer: relay-engine
    ├── triggers.steps  [step.enqueue]            Consumer: relay-engine
    ├── triggers.timers [timer.wake]              Consumer: relay-engine
    └── triggers.events [ref.resume]              Consumer: relay-engine
        (quorum, x-delivery-limit=10, DLQ: relay.dlq)

    relay.dlq (fanout)
    └── dlq.triggers
            Manual processing
  `
}
