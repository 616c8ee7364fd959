package engine

import (
	"fmt"

	"github.com/torbel/Interflow/internal/domain"
)

// graph — проверенное представление определения flow для обхода.
//
// Движок следует ровно одному исходящему ребру из каждого узла,
// поэтому топологический порядок не нужен: достаточно входного узла,
// быстрого доступа к узлам и исходящих рёбер в порядке объявления.
// Циклы допустимы — их обрывает мемоизация выполненных узлов.
type graph struct {
	nodes    map[string]*domain.Node
	outgoing map[string][]domain.Edge
	entry    *domain.Node
}

// buildGraph валидирует определение и строит graph.
//
// Проверяется: наличие узлов, непустые и уникальные ID, рёбра
// на существующие узлы, ровно один входной узел (без входящих рёбер).
func buildGraph(def *domain.FlowDefinition) (*graph, error) {
	if def == nil || len(def.Nodes) == 0 {
		return nil, NewGraphError("", "nodes", "flow has no nodes", ErrEmptyFlow)
	}

	g := &graph{
		nodes:    make(map[string]*domain.Node, len(def.Nodes)),
		outgoing: make(map[string][]domain.Edge),
	}

	for i := range def.Nodes {
		node := &def.Nodes[i]
		if node.ID == "" {
			return nil, NewGraphError("", "id", "node has empty ID", ErrEmptyNodeID)
		}
		if _, exists := g.nodes[node.ID]; exists {
			return nil, NewGraphError(node.ID, "id",
				fmt.Sprintf("duplicate node ID: %s", node.ID), ErrDuplicateNodeID)
		}
		g.nodes[node.ID] = node
	}

	incoming := make(map[string]int, len(def.Nodes))
	for _, edge := range def.Edges {
		if _, ok := g.nodes[edge.Source]; !ok {
			return nil, NewGraphError(edge.Source, "edges",
				fmt.Sprintf("edge %s references unknown source: %s", edge.ID, edge.Source),
				ErrUnknownEdgeNode)
		}
		if _, ok := g.nodes[edge.Target]; !ok {
			return nil, NewGraphError(edge.Target, "edges",
				fmt.Sprintf("edge %s references unknown target: %s", edge.ID, edge.Target),
				ErrUnknownEdgeNode)
		}
		// Порядок объявления рёбер сохраняется: он решает fallback-ветвление
		g.outgoing[edge.Source] = append(g.outgoing[edge.Source], edge)
		incoming[edge.Target]++
	}

	for i := range def.Nodes {
		node := &def.Nodes[i]
		if incoming[node.ID] > 0 {
			continue
		}
		if g.entry != nil {
			return nil, NewGraphError(node.ID, "edges",
				fmt.Sprintf("multiple entry nodes: %s and %s", g.entry.ID, node.ID),
				ErrMultipleEntryNodes)
		}
		g.entry = node
	}
	if g.entry == nil {
		return nil, NewGraphError("", "edges",
			"every node has incoming edges, no entry node", ErrNoEntryNode)
	}

	return g, nil
}

// node возвращает узел по ID.
func (g *graph) node(id string) *domain.Node {
	return g.nodes[id]
}

// outgoingOf возвращает исходящие рёбра узла в порядке объявления.
func (g *graph) outgoingOf(nodeID string) []domain.Edge {
	return g.outgoing[nodeID]
}

// Validate проверяет структуру определения flow без его выполнения.
func Validate(def *domain.FlowDefinition) error {
	_, err := buildGraph(def)
	return err
}
