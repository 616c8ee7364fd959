// Package scheduler реализует запуск flows по расписанию.
//
// Scheduler периодически проверяет schedules с истекшим next_due_at
// и запускает соответствующие flows синхронно через движок выполнения.
//
// Структура:
//   - scheduler.go — основная логика (Tick, processSchedule)
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Schedules: scheduleRepo,
//	    Runner:    eng,
//	    Logger:    logger,
//	})
//
//	// Вызывается каждый тик (обычно раз в секунду)
//	if err := sched.Tick(ctx); err != nil {
//	    logger.Error("scheduler tick failed", "error", err)
//	}
//
// Поведение при ошибках:
//   - невалидное расписание (кривой cron) — schedule выключается;
//   - flow удалён/выключен/сломан — запуск пропускается, next_due_at
//     сдвигается;
//   - временная ошибка (БД недоступна) — next_due_at не трогаем,
//     запуск повторится на следующем тике.
//
// Leader Election:
//
// Scheduler не реализует leader election самостоятельно.
// Это делается в main.go через pg_try_advisory_lock.
// Метод Tick() вызывается только лидером.
package scheduler
