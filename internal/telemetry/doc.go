// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики с префиксом interflow_
//
// Все сервисы используют единый формат логирования и экспортируют
// метрики на /metrics endpoint. Метрики движка (запуски, узлы,
// исходящие вызовы, токены) объявлены здесь и инкрементируются из
// engine и dispatch; счётчики уровня сервиса объявляются в main.
package telemetry
