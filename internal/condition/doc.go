// Package condition — безопасное декларативное вычисление условий.
//
// Условия позволяют авторам flow ветвить выполнение по данным, не
// исполняя произвольный код. Условие — это чистые данные: поле
// (dot-path), оператор из закрытого whitelist и значение сравнения.
// Несколько условий объединяются в группу логикой AND/OR.
//
// # Грамматика
//
// Одиночное условие:
//
//	{"field": "quantity", "operator": "greater_than", "value": 100}
//
// Группа:
//
//	{
//	    "logic": "OR",
//	    "conditions": [
//	        {"field": "status", "operator": "equals", "value": "active"},
//	        {"field": "region", "operator": "in", "value": ["eu", "us"]}
//	    ]
//	}
//
// # Безопасность
//
// Оператор вне whitelist отклоняется с ErrUnsafeOperator до любого
// обращения к данным — это инвариант, а не best-effort проверка.
// Раньше здесь была возможность вычислять произвольные выражения;
// она убрана намеренно, и этот пакет — её замена.
//
// Если интерфейс объявил схему допустимых условий (поля, операторы,
// enum значений), ValidateSchema проверяет условие против схемы
// до вычисления. Серверная проверка не даёт клиенту обойти
// ограничения UI, отправив сырое условие напрямую в API.
package condition
