package graph

import (
	"strings"

	"github.com/torbel/Interflow/internal/domain"
)

// Export превращает граф обратно в линейный список шагов.
//
// Триггерами становятся узлы типа "trigger" без входящих рёбер.
// Шаги упорядочиваются обходом success-цепочки от входного узла;
// цели error-переходов, не лежащие на основной цепочке, дописываются
// следом. Переход к уже выпущенному шагу становится явным on_success,
// терминальный шаг не в конце списка получает on_success: end.
//
// Для списков, полученных из Compile, экспорт восстанавливает порядок
// шагов и цели переходов.
func Export(def *domain.FlowDefinition) (*StepList, error) {
	if def == nil || len(def.Nodes) == 0 {
		return nil, ErrEmptyGraph
	}

	incoming := make(map[string]int, len(def.Nodes))
	for _, e := range def.Edges {
		incoming[e.Target]++
	}

	list := &StepList{Name: def.Name}
	isTrigger := make(map[string]bool)
	for i := range def.Nodes {
		n := &def.Nodes[i]
		if incoming[n.ID] == 0 && n.Kind == triggerKind {
			isTrigger[n.ID] = true
			list.Triggers = append(list.Triggers, TriggerDef{
				ID:     n.ID,
				Name:   displayName(n),
				Config: n.Config,
			})
		}
	}

	start := ""
	for _, e := range def.Edges {
		if isTrigger[e.Source] {
			start = e.Target
			break
		}
	}
	if start == "" {
		for i := range def.Nodes {
			n := &def.Nodes[i]
			if incoming[n.ID] == 0 && !isTrigger[n.ID] {
				start = n.ID
				break
			}
		}
	}
	if start == "" {
		return nil, ErrNotLinear
	}

	visited := make(map[string]bool, len(def.Nodes))
	terminal := make(map[string]bool)

	walk := func(id string) {
		for id != "" && !visited[id] && !isTrigger[id] {
			node, ok := def.NodeByID(id)
			if !ok {
				return
			}
			visited[id] = true

			step := StepDef{
				ID:     node.ID,
				Kind:   node.Kind,
				Name:   displayName(node),
				Config: node.Config,
			}
			successTarget, errorTarget := classifyEdges(def.Outgoing(id))
			step.OnError = errorTarget

			next := ""
			switch {
			case successTarget == "":
				terminal[id] = true
			case visited[successTarget] || isTrigger[successTarget]:
				// Прыжок назад: явный on_success, цепочка обрывается
				step.OnSuccess = successTarget
			default:
				next = successTarget
			}

			list.Steps = append(list.Steps, step)
			id = next
		}
	}

	walk(start)
	for i := range def.Nodes {
		n := &def.Nodes[i]
		if !visited[n.ID] && !isTrigger[n.ID] {
			walk(n.ID)
		}
	}

	// Терминальный шаг не в конце списка без явной отметки снова стал
	// бы цепочкой по умолчанию
	for i := range list.Steps {
		step := &list.Steps[i]
		if i < len(list.Steps)-1 && terminal[step.ID] {
			step.OnSuccess = EndTarget
		}
	}

	if len(list.Steps) == 0 {
		return nil, ErrNotLinear
	}
	return list, nil
}

// classifyEdges делит исходящие рёбра на success- и error-переход
// по меткам. Метка со словом "error", а также "false" и "no" —
// error-переход; любая другая — success.
func classifyEdges(edges []domain.Edge) (successTarget, errorTarget string) {
	for _, e := range edges {
		if isErrorLabel(e.Label) {
			if errorTarget == "" {
				errorTarget = e.Target
			}
			continue
		}
		if successTarget == "" {
			successTarget = e.Target
		}
	}
	return successTarget, errorTarget
}

func isErrorLabel(label string) bool {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "false" || label == "no" {
		return true
	}
	return strings.Contains(label, "error")
}

// displayName возвращает имя узла, если оно отличается от ID.
// Compile подставляет ID вместо пустого имени; экспорт убирает
// подстановку обратно.
func displayName(n *domain.Node) string {
	if n.Name == n.ID {
		return ""
	}
	return n.Name
}
