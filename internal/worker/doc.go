// Package worker обрабатывает входящие триггеры запуска flows.
//
// # Обзор
//
// Worker — stateless компонент системы Interflow, который слушает очередь
// triggers.inbound и запускает flows через движок выполнения. Worker отвечает за:
//
//   - Потребление сообщений flow.trigger из RabbitMQ (event-driven)
//   - Разрешение ссылки на flow (UUID или имя) в определение
//   - Синхронный запуск flow через engine внутри обработки сообщения
//   - Классификацию ошибок обработки (DLQ vs requeue)
//   - Периодический sweep зависших runs (polling fallback)
//
// Workers масштабируются горизонтально — несколько экземпляров
// потребляют из одной очереди triggers.inbound.
//
// # Ключевые компоненты
//
// ## Worker
//
// Основная структура, управляющая жизненным циклом.
// Создаётся через New(cfg Config) и запускается методом Start(ctx).
//
//	w := worker.New(worker.Config{
//	    Runner: eng,
//	    Flows:  flowRepo,
//	    Runs:   runRepo,
//	    Conn:   mqConn,
//	    Logger: logger,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// # Обработка триггера
//
//  1. Парсинг payload (flow, input, triggered_by)
//  2. Разрешение ссылки на flow: UUID напрямую, имя — через FlowDirectory
//  3. Запуск через Runner.Execute (синхронно, с записью run в БД)
//  4. Ack при успехе, nack при ошибке
//
// # Ошибки
//
// Пакет различает два класса ошибок обработки:
//   - Постоянные — неизвестный flow, выключенный flow, некорректный граф.
//     Повторная доставка результат не изменит: сообщение уходит в dlq.triggers.
//   - Временные — БД недоступна, сетевые сбои. Сообщение возвращается
//     в очередь и будет доставлено повторно.
//
// Упавший run (FAILED) — это успешно обработанный триггер: результат
// записан в БД, сообщение подтверждается.
//
// # Sweep
//
// Если процесс упал посреди выполнения, run остаётся в статусе RUNNING
// навсегда. Sweep периодически находит такие runs (RUNNING дольше
// max_run_age) и помечает их как FAILED.
package worker
