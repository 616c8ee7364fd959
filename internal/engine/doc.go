// Package engine содержит движок выполнения flow.
//
// Включает:
//   - graph.go  — валидация определения и представление графа
//   - engine.go — обход графа, ветвление, трейс, финализация
//
// # Порядок выполнения
//
// Запуск идёт от единственного входного узла (узел без входящих
// рёбер) вперёд по рёбрам: выход каждого узла становится входом
// следующего. Путь ровно один — из нескольких исходящих рёбер
// выбирается одно по метке против condition_met, ромбовидные схемы
// не порождают параллельных ветвей.
//
// # Мемоизация
//
// Выполненные узлы запоминаются на время запуска. Повторный заход —
// через обратное ребро или сходящиеся пути — не выполняет узел
// снова: путь завершается его кешированным выходом. Поэтому циклы
// в графе не зацикливают движок.
//
// # Трейс
//
// Каждый затронутый узел оставляет запись: вход, выход, каналы,
// метаданные, попытки внешних вызовов, ошибка. Кешированный заход
// записи не оставляет. Запуск финализируется ровно один раз.
package engine
