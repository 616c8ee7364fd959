// Package cli реализует инструмент командной строки Interflow.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Interflow API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления flows, runs, интерфейсами,
// credentials и расписаниями.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Interflow API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (data/list/error envelope) и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	flows, err := client.ListFlows()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.Encoder с отступами) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: interflow flow list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - flow: list, create, show, update, delete, enable, disable,
//     execute, validate, import, export
//   - run: list, show, trace
//   - interface: list, create, show, update, delete, enable, disable, test
//   - credential: list, create, show, delete
//   - schedule: list, create, show, update, delete, enable, disable
//   - kinds: список зарегистрированных kind'ов узлов
//
// flow execute — синхронный запуск: команда возвращает завершённый run
// и ненулевой код выхода, если run упал. flow import читает список шагов
// (YAML или JSON), собирает граф через API и создаёт flow; flow export —
// обратная операция.
//
// Каждая группа создаётся через фабричную функцию (NewFlowCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
