// Package stream реализует контракт обработки потоков триггеров.
//
// Каждая запись несёт пару (consumerId, sequenceNumber). Перед вызовом
// бизнес-обработчика номер резервируется через guard: дубликат
// пропускается, ошибка обработчика снимает резервирование и отмечает
// запись как неуспешную, успех оставляет резервирование на время retention.
//
// Использование:
//
//	h := stream.New(stream.Config{
//	    Guard:  g,
//	    Func:   router.Route,
//	    Logger: logger,
//	})
//
//	result := h.Handle(ctx, batch)
//	// result.FailedItemIDs повторно доставляются брокером
package stream
