package graph

import (
	"fmt"

	"github.com/torbel/Interflow/internal/domain"
)

// Compile превращает линейный список шагов в граф узлов и рёбер.
//
// Правила:
//   - каждый триггер получает безусловное ребро к первому шагу;
//   - шаг без on_success переходит к следующему по списку с меткой
//     "success"; последний шаг без on_success терминален;
//   - on_success добавляет ребро "success" к названному шагу,
//     on_success: end делает шаг терминальным;
//   - on_error добавляет ребро "error".
//
// Compile проверяет только форму списка. Структуру получившегося
// графа (единственный вход, достижимость) проверяет engine.Validate.
func Compile(list *StepList) (*domain.FlowDefinition, error) {
	if list == nil || len(list.Steps) == 0 {
		return nil, ErrEmptySteps
	}

	known := make(map[string]bool, len(list.Triggers)+len(list.Steps))
	stepIDs := make(map[string]bool, len(list.Steps))
	nodes := make([]domain.Node, 0, len(list.Triggers)+len(list.Steps))

	for i := range list.Triggers {
		trig := &list.Triggers[i]
		if trig.ID == "" {
			return nil, fmt.Errorf("%w: trigger %d", ErrEmptyStepID, i)
		}
		if err := registerID(trig.ID, known); err != nil {
			return nil, err
		}
		kind := trig.Kind
		if kind == "" {
			kind = triggerKind
		}
		nodes = append(nodes, domain.Node{
			ID:     trig.ID,
			Kind:   kind,
			Name:   nameOrID(trig.Name, trig.ID),
			Config: trig.Config,
		})
	}

	for i := range list.Steps {
		step := &list.Steps[i]
		if step.ID == "" {
			return nil, fmt.Errorf("%w: step %d", ErrEmptyStepID, i)
		}
		if step.Kind == "" {
			return nil, fmt.Errorf("%w: %s", ErrEmptyStepKind, step.ID)
		}
		if err := registerID(step.ID, known); err != nil {
			return nil, err
		}
		stepIDs[step.ID] = true
		nodes = append(nodes, domain.Node{
			ID:     step.ID,
			Kind:   step.Kind,
			Name:   nameOrID(step.Name, step.ID),
			Config: step.Config,
		})
	}

	for i := range list.Steps {
		step := &list.Steps[i]
		if step.OnSuccess != "" && step.OnSuccess != EndTarget && !stepIDs[step.OnSuccess] {
			return nil, fmt.Errorf("%w: %s -> %s", ErrUnknownJumpTarget, step.ID, step.OnSuccess)
		}
		if step.OnError != "" && !stepIDs[step.OnError] {
			return nil, fmt.Errorf("%w: %s -> %s", ErrUnknownJumpTarget, step.ID, step.OnError)
		}
	}

	var edges []domain.Edge
	addEdge := func(source, target, label string) {
		edges = append(edges, domain.Edge{
			ID:     fmt.Sprintf("e%d", len(edges)+1),
			Source: source,
			Target: target,
			Label:  label,
		})
	}

	first := list.Steps[0].ID
	for i := range list.Triggers {
		addEdge(list.Triggers[i].ID, first, "")
	}

	for i := range list.Steps {
		step := &list.Steps[i]

		successTarget := step.OnSuccess
		if successTarget == "" && i+1 < len(list.Steps) {
			successTarget = list.Steps[i+1].ID
		}
		if successTarget != "" && successTarget != EndTarget {
			addEdge(step.ID, successTarget, labelSuccess)
		}
		if step.OnError != "" {
			addEdge(step.ID, step.OnError, labelError)
		}
	}

	return &domain.FlowDefinition{
		Name:  list.Name,
		Nodes: nodes,
		Edges: edges,
	}, nil
}

// registerID регистрирует идентификатор в общем пространстве имён.
func registerID(id string, known map[string]bool) error {
	if id == EndTarget {
		return fmt.Errorf("%w: %q", ErrReservedStepID, id)
	}
	if known[id] {
		return fmt.Errorf("%w: %s", ErrDuplicateStepID, id)
	}
	known[id] = true
	return nil
}

func nameOrID(name, id string) string {
	if name == "" {
		return id
	}
	return name
}
