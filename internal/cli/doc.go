// Package cli реализует инструмент командной строки Relay.
//
// # Обзор
//
// CLI работает через HTTP API (relay-api) и не импортирует внутренние
// пакеты сервера, кроме проверки шаблонов перед отправкой.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент на resty. Передаёт tenant в X-Tenant-ID, разворачивает
// DataResponse и превращает ErrorResponse в ошибку вида "CODE: message".
//
//	client := cli.NewClient("http://localhost:8080", "acme")
//	run, err := client.GetRun("run-1")
//
// ## Output
//
// Таблицы (text/tabwriter) по умолчанию, JSON с флагом --json.
// Данные выводятся в stdout, сообщения в stderr.
//
// ## Commands
//
//   - template: apply, show, run
//   - run: show, cancel
//   - event: send
//   - schedule: create, enable, disable, delete
package cli
