// Package scheduler реализует таймеры, хранимые как данные.
//
// Delay, таймаут wait и schedule записываются в хранилище с TTL.
// Sweeper удаляет истёкшие записи и публикует TimerWake с ActorSweeper.
// Scheduler.HandleWake обрабатывает эти уведомления: продолжает run
// после delay, завершает wait по таймауту, перевзводит schedule и
// публикует запуск шаблона. Явные удаления пользователем публикуются
// с ActorUser и run не будят.
//
// Структура:
//   - cron.go      : CalculateNextTTL для разовых моментов и cron-правил
//   - timers.go    : создание и удаление таймеров
//   - scheduler.go : обработка уведомлений об удалении
//   - sweeper.go   : периодический sweep истёкших таймеров
//
// Использование:
//
//	timers := scheduler.NewTimers(scheduler.TimersConfig{
//	    Store:    timerRepo,
//	    Notifier: publisher,
//	    Logger:   logger,
//	})
//
//	sweeper := scheduler.NewSweeper(scheduler.SweeperConfig{
//	    Store:    timerRepo,
//	    Notifier: publisher,
//	    Leader:   repo.NewAdvisoryLeader(pool, "relay-sweeper"),
//	    Logger:   logger,
//	})
//	go sweeper.Run(ctx, time.Second)
//
// Leader Election:
//
// Sweep выполняет только лидер (pg_try_advisory_lock). Параллельные
// sweep безопасны и без него за счёт FOR UPDATE SKIP LOCKED, лидерство
// лишь снижает нагрузку на БД.
package scheduler
