// Пакет graph реализует текстовую форму определения flow — линейный
// список шагов — и её двустороннюю конвертацию в граф узлов и рёбер.
//
// # Формат
//
// Список состоит из триггеров и упорядоченных шагов:
//
//	name: sync-orders
//	triggers:
//	  - id: start
//	steps:
//	  - id: fetch
//	    kind: interface_source
//	    config: {interface_id: "..."}
//	    on_error: alert
//	  - id: store
//	    kind: interface_destination
//	    on_success: end
//	  - id: alert
//	    kind: email
//
// Шаг без on_success переходит к следующему по списку. Явный
// on_success прыгает к названному шагу, on_success: end завершает
// путь. on_error задаёт переход по error-метке.
//
// # Роль
//
// Пакет работает только на границе: импорт и экспорт определений
// через API и CLI. Движок выполняет граф и про список шагов
// не знает. Структурную корректность скомпилированного графа
// проверяет engine.Validate.
package graph
