package executor

import (
	"context"
	"errors"
	"testing"
)

func TestValidation_Valid(t *testing.T) {
	e := NewValidationExecutor()

	req := &Request{
		Input: map[string]any{"email": "a@acme.io", "qty": float64(5)},
		Config: map[string]any{
			"rules": []any{
				map[string]any{"field": "email", "required": true},
				map[string]any{"field": "qty", "type": "number", "min": float64(1)},
			},
		},
	}

	res, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Channels["valid"] == nil {
		t.Error("valid channel should carry the input")
	}
	if res.Meta["condition_met"] != true {
		t.Errorf("expected condition_met true, got %v", res.Meta["condition_met"])
	}
}

func TestValidation_AbortOnViolation(t *testing.T) {
	e := NewValidationExecutor()

	req := &Request{
		Input: map[string]any{"qty": float64(0)},
		Config: map[string]any{
			"rules": []any{
				map[string]any{"field": "email", "required": true},
				map[string]any{"field": "qty", "min": float64(1)},
			},
		},
	}

	res, err := e.Execute(context.Background(), req)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	// Нарушения остаются в результате для трейса
	if res == nil {
		t.Fatal("result with violations should accompany the error")
	}
	invalid, ok := res.Channels["invalid"].([]any)
	if !ok || len(invalid) != 1 {
		t.Fatalf("expected 1 invalid entry, got %v", res.Channels["invalid"])
	}
	entry := invalid[0].(map[string]any)
	if violations, ok := entry["violations"].([]any); !ok || len(violations) != 2 {
		t.Errorf("expected 2 violations on the entry, got %v", entry["violations"])
	}
}

func TestValidation_ContinueOnError(t *testing.T) {
	e := NewValidationExecutor()

	req := &Request{
		Input: map[string]any{"qty": float64(0)},
		Config: map[string]any{
			"continue_on_error": true,
			"rules": []any{
				map[string]any{"field": "qty", "min": float64(1)},
			},
		},
	}

	res, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("violations must not fail the node: %v", err)
	}

	// condition_met false уводит документ на error-ветку
	if res.Meta["condition_met"] != false {
		t.Errorf("expected condition_met false, got %v", res.Meta["condition_met"])
	}
	if res.Meta["violations"] != 1 {
		t.Errorf("expected 1 violation, got %v", res.Meta["violations"])
	}
	// Непрошедший документ не идёт дальше по Output —
	// он уходит в канал invalid в той же форме, что элементы списка
	if res.Output != nil {
		t.Errorf("failed document must not pass through, got %v", res.Output)
	}
	invalid, ok := res.Channels["invalid"].([]any)
	if !ok || len(invalid) != 1 {
		t.Fatalf("expected 1 invalid entry, got %v", res.Channels["invalid"])
	}
	entry := invalid[0].(map[string]any)
	doc, ok := entry["item"].(map[string]any)
	if !ok || doc["qty"] != float64(0) {
		t.Errorf("invalid entry must carry the document, got %v", entry["item"])
	}
	if violations, ok := entry["violations"].([]any); !ok || len(violations) != 1 {
		t.Errorf("invalid entry must carry its violations, got %v", entry["violations"])
	}
}

func TestValidation_ListSplit(t *testing.T) {
	e := NewValidationExecutor()

	req := &Request{
		Input: []any{
			map[string]any{"age": float64(30)},
			map[string]any{"age": float64(-5)},
		},
		Config: map[string]any{
			"continue_on_error": true,
			"rules": []any{
				map[string]any{"field": "age", "min": float64(0)},
			},
		},
	}

	res, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("continue_on_error must not fail the node: %v", err)
	}

	valid, ok := res.Channels["valid"].([]any)
	if !ok || len(valid) != 1 {
		t.Fatalf("expected 1 valid item, got %v", res.Channels["valid"])
	}
	if item := valid[0].(map[string]any); item["age"] != float64(30) {
		t.Errorf("wrong item in valid channel: %v", item)
	}

	invalid, ok := res.Channels["invalid"].([]any)
	if !ok || len(invalid) != 1 {
		t.Fatalf("expected 1 invalid item, got %v", res.Channels["invalid"])
	}
	entry := invalid[0].(map[string]any)
	if entry["index"] != 1 {
		t.Errorf("expected invalid item index 1, got %v", entry["index"])
	}

	// Дальше по пути идут только прошедшие документы
	out, ok := res.Output.([]any)
	if !ok || len(out) != 1 {
		t.Errorf("output must carry the valid items, got %v", res.Output)
	}
	if res.Meta["condition_met"] != false {
		t.Errorf("expected condition_met false, got %v", res.Meta["condition_met"])
	}
}

func TestValidation_ListAbortAggregates(t *testing.T) {
	e := NewValidationExecutor()

	req := &Request{
		Input: []any{
			map[string]any{"age": float64(30)},
			map[string]any{"age": float64(-5)},
			map[string]any{},
		},
		Config: map[string]any{
			"rules": []any{
				map[string]any{"field": "age", "required": true, "min": float64(0)},
			},
		},
	}

	res, err := e.Execute(context.Background(), req)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if res == nil {
		t.Fatal("result with violations should accompany the error")
	}
	invalid, ok := res.Channels["invalid"].([]any)
	if !ok || len(invalid) != 2 {
		t.Errorf("expected 2 invalid items, got %v", res.Channels["invalid"])
	}
}

func TestValidation_Rules(t *testing.T) {
	tests := []struct {
		name      string
		input     map[string]any
		rule      map[string]any
		wantViola bool
	}{
		{
			name:  "type number ok",
			input: map[string]any{"qty": float64(5)},
			rule:  map[string]any{"field": "qty", "type": "number"},
		},
		{
			name:      "type number violated by string",
			input:     map[string]any{"qty": "five"},
			rule:      map[string]any{"field": "qty", "type": "number"},
			wantViola: true,
		},
		{
			name:  "type string ok",
			input: map[string]any{"name": "acme"},
			rule:  map[string]any{"field": "name", "type": "string"},
		},
		{
			name:      "max violated",
			input:     map[string]any{"qty": float64(150)},
			rule:      map[string]any{"field": "qty", "max": float64(100)},
			wantViola: true,
		},
		{
			name:  "numeric string coerced for min",
			input: map[string]any{"qty": "5"},
			rule:  map[string]any{"field": "qty", "min": float64(1)},
		},
		{
			name:      "min_length violated",
			input:     map[string]any{"name": "a"},
			rule:      map[string]any{"field": "name", "min_length": float64(2)},
			wantViola: true,
		},
		{
			name:      "max_length violated by list",
			input:     map[string]any{"tags": []any{"a", "b", "c"}},
			rule:      map[string]any{"field": "tags", "max_length": float64(2)},
			wantViola: true,
		},
		{
			name:  "pattern ok",
			input: map[string]any{"email": "a@acme.io"},
			rule:  map[string]any{"field": "email", "pattern": `^\S+@\S+$`},
		},
		{
			name:      "pattern violated",
			input:     map[string]any{"email": "not-an-email"},
			rule:      map[string]any{"field": "email", "pattern": `^\S+@\S+$`},
			wantViola: true,
		},
		{
			name:  "enum ok",
			input: map[string]any{"status": "paid"},
			rule:  map[string]any{"field": "status", "enum": []any{"new", "paid"}},
		},
		{
			name:      "enum violated",
			input:     map[string]any{"status": "void"},
			rule:      map[string]any{"field": "status", "enum": []any{"new", "paid"}},
			wantViola: true,
		},
		{
			name:  "optional missing field skipped",
			input: map[string]any{},
			rule:  map[string]any{"field": "qty", "min": float64(1)},
		},
	}

	e := NewValidationExecutor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &Request{
				Input: tt.input,
				Config: map[string]any{
					"continue_on_error": true,
					"rules":             []any{tt.rule},
				},
			}

			res, err := e.Execute(context.Background(), req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			violated := res.Meta["condition_met"] == false
			if violated != tt.wantViola {
				t.Errorf("expected violation=%v, got meta %v", tt.wantViola, res.Meta)
			}
		})
	}
}

func TestValidation_StrictUnknownField(t *testing.T) {
	e := NewValidationExecutor()

	req := &Request{
		Input: map[string]any{"email": "a@acme.io", "debug": true},
		Config: map[string]any{
			"strict": true,
			"rules": []any{
				map[string]any{"field": "email", "required": true},
			},
		},
	}

	_, err := e.Execute(context.Background(), req)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("unknown field must violate in strict mode, got %v", err)
	}
}

func TestValidation_BadPattern(t *testing.T) {
	e := NewValidationExecutor()

	req := &Request{
		Input: map[string]any{"email": "a@acme.io"},
		Config: map[string]any{
			"rules": []any{
				map[string]any{"field": "email", "pattern": "("},
			},
		},
	}

	_, err := e.Execute(context.Background(), req)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for bad regexp, got %v", err)
	}
}

func TestValidation_NoRules(t *testing.T) {
	e := NewValidationExecutor()

	_, err := e.Execute(context.Background(), &Request{
		Input:  map[string]any{},
		Config: map[string]any{},
	})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
