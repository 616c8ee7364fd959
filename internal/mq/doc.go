// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - run.started    — run начал выполняться
//   - run.completed  — run успешно завершён
//   - run.failed     — run упал на одном из узлов
//   - flow.trigger   — запрос внешней системы на запуск flow
//
// Exchanges:
//   - interflow.events   — события runs (topic, binding run.*)
//   - interflow.triggers — входящие триггеры
//   - interflow.dlq      — dead letter queue для триггеров
package mq
