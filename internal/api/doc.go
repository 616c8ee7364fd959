// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go            — Handler с DI (репозитории, движок, dispatcher)
//   - routes.go             — регистрация маршрутов
//   - middleware.go         — middleware (logging, recovery)
//   - response.go           — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                — Data Transfer Objects (request/response)
//   - flow_handler.go       — обработчики для /flows (+execute, validate, export)
//   - run_handler.go        — обработчики для /runs (только чтение)
//   - interface_handler.go  — обработчики для /interfaces (+тестовый вызов)
//   - credential_handler.go — обработчики для /credentials
//   - schedule_handler.go   — обработчики для /schedules
//
// Запуск flow синхронный: POST /flows/{id}/execute выполняет flow
// и возвращает завершённый run с трейсом. Отдельного endpoint'а
// создания run нет.
//
// Секретные значения credentials в ответы API не попадают: наружу
// отдаются только имена ключей.
package api
