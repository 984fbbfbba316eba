// Package mq предоставляет транспорт триггеров поверх RabbitMQ.
//
// Структура:
//   - connection.go : соединение с reconnect и каналом публикации с confirms
//   - topology.go   : exchanges, quorum-очереди, привязки, DLQ
//   - publisher.go  : публикация триггеров с детерминированными ID
//   - consumer.go   : батчевое потребление в stream.Record
//
// Типы сообщений (routing key = тип):
//   - run.invoke    : запуск run
//   - run.cancel    : отмена runs по токену
//   - step.enqueue  : выполнение шага
//   - timer.wake    : удаление таймера (sweeper или пользователь)
//   - ref.resume    : внешнее событие для шага с ref
//
// Exchanges:
//   - relay.triggers : все триггеры
//   - relay.dlq      : dead letter queue
package mq
