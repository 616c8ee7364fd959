package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/torbel/Interflow/internal/condition"
	"github.com/torbel/Interflow/internal/domain"
)

type fakeIfaceStore struct {
	ifaces map[uuid.UUID]*domain.InterfaceConfig
}

func (s *fakeIfaceStore) GetInterface(ctx context.Context, id uuid.UUID) (*domain.InterfaceConfig, error) {
	iface, ok := s.ifaces[id]
	if !ok {
		return nil, errors.New("interface not found")
	}
	return iface, nil
}

func conditionConfig(field, op string, value any) map[string]any {
	return map[string]any{
		"condition": map[string]any{
			"conditions": []any{
				map[string]any{"field": field, "operator": op, "value": value},
			},
			"logic": "AND",
		},
	}
}

func TestConditional_Met(t *testing.T) {
	e := NewConditionalExecutor(nil)

	req := &Request{
		Input:  map[string]any{"order": map[string]any{"total": float64(150)}},
		Config: conditionConfig("order.total", "greater_than", float64(100)),
	}

	res, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Meta["condition_met"] != true {
		t.Errorf("expected condition_met true, got %v", res.Meta)
	}

	// Вход проходит дальше без изменений
	out, ok := res.Output.(map[string]any)
	if !ok || out["order"] == nil {
		t.Errorf("expected input passthrough, got %v", res.Output)
	}
}

func TestConditional_NotMet(t *testing.T) {
	e := NewConditionalExecutor(nil)

	req := &Request{
		Input:  map[string]any{"order": map[string]any{"total": float64(50)}},
		Config: conditionConfig("order.total", "greater_than", float64(100)),
	}

	res, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Meta["condition_met"] != false {
		t.Errorf("expected condition_met false, got %v", res.Meta)
	}
}

func TestConditional_MissingCondition(t *testing.T) {
	e := NewConditionalExecutor(nil)

	_, err := e.Execute(context.Background(), &Request{
		Input:  map[string]any{},
		Config: map[string]any{},
	})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestConditional_UnsafeOperator(t *testing.T) {
	e := NewConditionalExecutor(nil)

	req := &Request{
		Input:  map[string]any{"status": "new"},
		Config: conditionConfig("status", "__proto__", "x"),
	}

	_, err := e.Execute(context.Background(), req)
	if !errors.Is(err, condition.ErrUnsafeOperator) {
		t.Errorf("expected ErrUnsafeOperator, got %v", err)
	}
}

func TestConditional_SchemaViolation(t *testing.T) {
	iface := &domain.InterfaceConfig{
		ID:        uuid.New(),
		Name:      "orders",
		IsEnabled: true,
		Schema: &domain.ConditionSchema{
			Fields: map[string]domain.FieldSchema{
				"status": {Operators: []string{"equals"}},
			},
		},
	}
	store := &fakeIfaceStore{ifaces: map[uuid.UUID]*domain.InterfaceConfig{iface.ID: iface}}
	e := NewConditionalExecutor(store)

	// Поле вне схемы
	config := conditionConfig("region", "equals", "eu")
	config["interface_id"] = iface.ID.String()

	req := &Request{
		Input:  map[string]any{"region": "eu"},
		Config: config,
	}

	_, err := e.Execute(context.Background(), req)
	if !errors.Is(err, condition.ErrSchemaViolation) {
		t.Errorf("expected ErrSchemaViolation, got %v", err)
	}
}

func TestConditional_SchemaAccepts(t *testing.T) {
	iface := &domain.InterfaceConfig{
		ID:        uuid.New(),
		Name:      "orders",
		IsEnabled: true,
		Schema: &domain.ConditionSchema{
			Fields: map[string]domain.FieldSchema{
				"status": {Operators: []string{"equals"}, Values: []string{"new", "paid"}},
			},
		},
	}
	store := &fakeIfaceStore{ifaces: map[uuid.UUID]*domain.InterfaceConfig{iface.ID: iface}}
	e := NewConditionalExecutor(store)

	config := conditionConfig("status", "equals", "paid")
	config["interface_id"] = iface.ID.String()

	res, err := e.Execute(context.Background(), &Request{
		Input:  map[string]any{"status": "paid"},
		Config: config,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Meta["condition_met"] != true {
		t.Errorf("expected condition_met true, got %v", res.Meta)
	}
}

func TestConditional_InterfaceWithoutSchema(t *testing.T) {
	// Интерфейс без схемы принимает любые условия
	iface := &domain.InterfaceConfig{ID: uuid.New(), Name: "open", IsEnabled: true}
	store := &fakeIfaceStore{ifaces: map[uuid.UUID]*domain.InterfaceConfig{iface.ID: iface}}
	e := NewConditionalExecutor(store)

	config := conditionConfig("anything.at.all", "contains", "x")
	config["interface_id"] = iface.ID.String()

	_, err := e.Execute(context.Background(), &Request{
		Input:  map[string]any{},
		Config: config,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
