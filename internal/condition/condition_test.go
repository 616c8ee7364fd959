package condition

import (
	"errors"
	"testing"
)

func TestEvaluate_Operators(t *testing.T) {
	data := map[string]any{
		"quantity": 150,
		"status":   "active",
		"name":     "northwind-order",
		"tags":     []any{"priority", "eu"},
		"nested":   map[string]any{"region": "eu-west"},
	}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"greater_than true", Condition{Field: "quantity", Operator: OpGreaterThan, Value: 100}, true},
		{"greater_than false", Condition{Field: "quantity", Operator: OpGreaterThan, Value: 200}, false},
		{"less_than true", Condition{Field: "quantity", Operator: OpLessThan, Value: 200}, true},
		{"equals string", Condition{Field: "status", Operator: OpEquals, Value: "active"}, true},
		{"equals numeric coercion", Condition{Field: "quantity", Operator: OpEquals, Value: "150"}, true},
		{"not_equals", Condition{Field: "status", Operator: OpNotEquals, Value: "inactive"}, true},
		{"in list", Condition{Field: "status", Operator: OpIn, Value: []any{"active", "pending"}}, true},
		{"in list miss", Condition{Field: "status", Operator: OpIn, Value: []any{"archived"}}, false},
		{"in non-list must not panic", Condition{Field: "status", Operator: OpIn, Value: "active"}, false},
		{"contains substring", Condition{Field: "name", Operator: OpContains, Value: "wind"}, true},
		{"contains list element", Condition{Field: "tags", Operator: OpContains, Value: "priority"}, true},
		{"starts_with", Condition{Field: "name", Operator: OpStartsWith, Value: "north"}, true},
		{"ends_with", Condition{Field: "name", Operator: OpEndsWith, Value: "order"}, true},
		{"dot path", Condition{Field: "nested.region", Operator: OpEquals, Value: "eu-west"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &Group{Conditions: []Condition{tt.cond}}
			got, err := Evaluate(g, data)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestEvaluate_QuantityExample(t *testing.T) {
	g := &Group{Conditions: []Condition{
		{Field: "quantity", Operator: OpGreaterThan, Value: 100},
	}}

	got, err := Evaluate(g, map[string]any{"quantity": 150})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("expected true for quantity=150")
	}

	got, err = Evaluate(g, map[string]any{"quantity": 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Error("expected false for quantity=50")
	}
}

func TestEvaluate_UnsafeOperator(t *testing.T) {
	// Самописный "оператор" обязан быть отклонён до чтения данных.
	g := &Group{Conditions: []Condition{
		{Field: "x", Operator: "__proto__", Value: 1},
	}}

	_, err := Evaluate(g, map[string]any{"x": 1})
	if !errors.Is(err, ErrUnsafeOperator) {
		t.Errorf("expected ErrUnsafeOperator, got %v", err)
	}
}

func TestEvaluate_UnsafeOperatorInGroup(t *testing.T) {
	// Whitelist проверяется для ВСЕХ условий группы ещё до вычисления:
	// при OR первое истинное условие не маскирует небезопасное второе.
	g := &Group{
		Logic: LogicOr,
		Conditions: []Condition{
			{Field: "x", Operator: OpEquals, Value: 1},
			{Field: "x", Operator: "eval", Value: "code"},
		},
	}

	_, err := Evaluate(g, map[string]any{"x": 1})
	if !errors.Is(err, ErrUnsafeOperator) {
		t.Errorf("expected ErrUnsafeOperator, got %v", err)
	}
}

func TestEvaluate_MissingPath(t *testing.T) {
	data := map[string]any{"a": map[string]any{"b": 1}}

	// Отсутствующий путь — absent значение, не ошибка.
	g := &Group{Conditions: []Condition{
		{Field: "a.b.c.d", Operator: OpEquals, Value: 1},
	}}
	got, err := Evaluate(g, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Error("missing path should not equal a value")
	}

	// С not_equals absent значение даёт true.
	g = &Group{Conditions: []Condition{
		{Field: "missing", Operator: OpNotEquals, Value: 1},
	}}
	got, err = Evaluate(g, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("missing path should be not_equal to a value")
	}
}

func TestEvaluate_GroupLogic(t *testing.T) {
	data := map[string]any{"a": 1, "b": 2}

	and := &Group{
		Logic: LogicAnd,
		Conditions: []Condition{
			{Field: "a", Operator: OpEquals, Value: 1},
			{Field: "b", Operator: OpEquals, Value: 99},
		},
	}
	got, err := Evaluate(and, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Error("AND with one false condition should be false")
	}

	or := &Group{
		Logic: LogicOr,
		Conditions: []Condition{
			{Field: "a", Operator: OpEquals, Value: 99},
			{Field: "b", Operator: OpEquals, Value: 2},
		},
	}
	got, err = Evaluate(or, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("OR with one true condition should be true")
	}
}

func TestParseSpec(t *testing.T) {
	// Одиночная форма.
	g, err := ParseSpec(map[string]any{
		"field": "status", "operator": "equals", "value": "active",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(g.Conditions) != 1 {
		t.Fatalf("expected 1 condition, got %d", len(g.Conditions))
	}
	if g.Logic != LogicAnd {
		t.Errorf("expected AND logic, got %s", g.Logic)
	}

	// Групповая форма.
	g, err = ParseSpec(map[string]any{
		"logic": "or",
		"conditions": []any{
			map[string]any{"field": "a", "operator": "equals", "value": 1},
			map[string]any{"field": "b", "operator": "equals", "value": 2},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(g.Conditions) != 2 {
		t.Fatalf("expected 2 conditions, got %d", len(g.Conditions))
	}
	if g.Logic != LogicOr {
		t.Errorf("expected OR logic, got %s", g.Logic)
	}

	// Некорректные формы.
	for name, spec := range map[string]map[string]any{
		"nil spec":        nil,
		"missing field":   {"operator": "equals", "value": 1},
		"missing op":      {"field": "a", "value": 1},
		"empty list":      {"conditions": []any{}},
		"bad conditions":  {"conditions": "not a list"},
		"unknown logic":   {"conditions": []any{map[string]any{"field": "a", "operator": "equals"}}, "logic": "XOR"},
	} {
		if _, err := ParseSpec(spec); !errors.Is(err, ErrInvalidCondition) {
			t.Errorf("%s: expected ErrInvalidCondition, got %v", name, err)
		}
	}
}

func TestResolvePath(t *testing.T) {
	data := map[string]any{
		"order": map[string]any{
			"customer": map[string]any{"email": "a@b.c"},
		},
	}

	v, ok := ResolvePath(data, "order.customer.email")
	if !ok {
		t.Fatal("expected path to resolve")
	}
	if v != "a@b.c" {
		t.Errorf("expected a@b.c, got %v", v)
	}

	if _, ok := ResolvePath(data, "order.customer.phone"); ok {
		t.Error("missing leaf should not resolve")
	}
	if _, ok := ResolvePath(nil, "anything"); ok {
		t.Error("nil data should not resolve")
	}
}
