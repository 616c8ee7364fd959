package domain

import (
	"time"

	"github.com/google/uuid"
)

// FlowDefinition — сохранённое определение интеграционного flow:
// граф типизированных узлов.
//
// Flow описывает один пайплайн: откуда забрать данные, как их
// преобразовать и куда отправить. Узлы (Node) — операции,
// рёбра (Edge) — порядок выполнения и условные переходы.
//
// Инварианты графа:
//   - ровно один узел без входящих рёбер — входной (trigger);
//   - в хранилище граф может содержать обратные рёбра, но при
//     выполнении повторное посещение уже вычисленного узла отдаёт
//     кешированный результат и не выполняется заново.
type FlowDefinition struct {
	// ID — уникальный идентификатор flow.
	ID uuid.UUID `json:"id"`

	// Name — человекочитаемое имя (например, "sync-orders").
	Name string `json:"name"`

	// Version — номер версии определения.
	// Увеличивается при каждом изменении графа.
	Version int `json:"version"`

	// IsEnabled — административный флаг.
	// Выключенный flow запустить нельзя.
	IsEnabled bool `json:"is_enabled"`

	// Nodes — узлы графа.
	Nodes []Node `json:"nodes"`

	// Edges — рёбра графа в порядке объявления.
	// Порядок значим: при неоднозначной маршрутизации выбирается
	// первое исходящее ребро.
	Edges []Edge `json:"edges"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// Node — один типизированный шаг flow.
type Node struct {
	// ID — идентификатор узла, уникальный внутри flow.
	ID string `json:"id"`

	// Kind — тип узла, определяет executor:
	// "trigger", "xml_parser", "csv_parser", "mapper", "validation",
	// "conditional", "interface_source", "interface_destination",
	// "email", "code".
	Kind string `json:"kind"`

	// Name — имя узла для отображения и трейса.
	Name string `json:"name,omitempty"`

	// Config — статическая конфигурация узла.
	// Секреты здесь не хранятся никогда — только ссылки на
	// зарегистрированные интерфейсы и credentials по ID.
	Config map[string]any `json:"config,omitempty"`
}

// Edge — направленная связь между двумя узлами.
type Edge struct {
	// ID — идентификатор ребра.
	ID string `json:"id"`

	// Source — ID узла-источника.
	Source string `json:"source"`

	// Target — ID узла-приёмника.
	Target string `json:"target"`

	// Label — метка для условной маршрутизации:
	// "true"/"yes"/"success" и "false"/"no"/"error".
	// Пустая метка — безусловный переход.
	Label string `json:"label,omitempty"`
}

// NodeByID возвращает узел по его ID.
func (f *FlowDefinition) NodeByID(id string) (*Node, bool) {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i], true
		}
	}
	return nil, false
}

// Outgoing возвращает исходящие рёбра узла в порядке объявления.
func (f *FlowDefinition) Outgoing(nodeID string) []Edge {
	var out []Edge
	for _, e := range f.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// IncomingCount возвращает количество входящих рёбер узла.
func (f *FlowDefinition) IncomingCount(nodeID string) int {
	n := 0
	for _, e := range f.Edges {
		if e.Target == nodeID {
			n++
		}
	}
	return n
}
