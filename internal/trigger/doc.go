// Package trigger связывает транспорт с движком.
//
// Router разбирает конверт mq.Message из stream.Record и вызывает
// операцию оркестратора или планировщика по типу сообщения. Ошибки
// устаревших или некорректных триггеров логируются и поглощаются,
// остальные возвращаются, чтобы запись попала в FailedItemIDs.
package trigger
