// Package delivery: клиент внешнего delivery-коллаборатора.
//
// Orchestrator передаёт сюда отрендеренные send-шаги. Для ядра
// результат непрозрачен: важен только успех или вид ошибки
// (ErrRejected завершает шаг с ошибкой, ErrUnavailable ведёт к повторной доставке триггера).
package delivery
