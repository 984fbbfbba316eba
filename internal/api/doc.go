// Package api реализует HTTP вход триггеров Relay.
//
// Структура:
//   - handler.go          : Handler и интерфейсы зависимостей
//   - routes.go           : регистрация маршрутов
//   - middleware.go       : logging, recovery, tenant
//   - response.go         : JSON-ответы и отображение ошибок
//   - dto.go              : запросы и ответы
//   - template_handler.go : /templates
//   - run_handler.go      : /runs и /events
//   - schedule_handler.go : /schedules
package api
