package condition

import (
	"errors"
	"testing"

	"github.com/torbel/Interflow/internal/domain"
)

func TestValidateSchema_FieldNotAllowed(t *testing.T) {
	schema := &domain.ConditionSchema{
		Fields: map[string]domain.FieldSchema{
			"status": {},
			"region": {},
		},
	}

	g := &Group{Conditions: []Condition{
		{Field: "secretFlag", Operator: OpEquals, Value: true},
	}}

	err := ValidateSchema(g, schema)
	if !errors.Is(err, ErrSchemaViolation) {
		t.Errorf("expected ErrSchemaViolation for unknown field, got %v", err)
	}
}

func TestValidateSchema_OperatorRestriction(t *testing.T) {
	schema := &domain.ConditionSchema{
		Fields: map[string]domain.FieldSchema{
			"status": {Operators: []string{OpEquals, OpNotEquals}},
		},
	}

	ok := &Group{Conditions: []Condition{
		{Field: "status", Operator: OpEquals, Value: "active"},
	}}
	if err := ValidateSchema(ok, schema); err != nil {
		t.Errorf("unexpected error for allowed operator: %v", err)
	}

	bad := &Group{Conditions: []Condition{
		{Field: "status", Operator: OpContains, Value: "act"},
	}}
	if err := ValidateSchema(bad, schema); !errors.Is(err, ErrSchemaViolation) {
		t.Errorf("expected ErrSchemaViolation for restricted operator, got %v", err)
	}
}

func TestValidateSchema_EnumValues(t *testing.T) {
	schema := &domain.ConditionSchema{
		Fields: map[string]domain.FieldSchema{
			"status": {Values: []string{"active", "inactive"}},
		},
	}

	ok := &Group{Conditions: []Condition{
		{Field: "status", Operator: OpEquals, Value: "active"},
	}}
	if err := ValidateSchema(ok, schema); err != nil {
		t.Errorf("unexpected error for enum value: %v", err)
	}

	bad := &Group{Conditions: []Condition{
		{Field: "status", Operator: OpEquals, Value: "archived"},
	}}
	if err := ValidateSchema(bad, schema); !errors.Is(err, ErrSchemaViolation) {
		t.Errorf("expected ErrSchemaViolation for enum miss, got %v", err)
	}

	// Для in проверяется каждый элемент списка.
	badList := &Group{Conditions: []Condition{
		{Field: "status", Operator: OpIn, Value: []any{"active", "archived"}},
	}}
	if err := ValidateSchema(badList, schema); !errors.Is(err, ErrSchemaViolation) {
		t.Errorf("expected ErrSchemaViolation for enum miss in list, got %v", err)
	}
}

func TestValidateSchema_UnsafeOperatorStillRejected(t *testing.T) {
	schema := &domain.ConditionSchema{
		Fields: map[string]domain.FieldSchema{
			// Схема по ошибке разрешает оператор вне whitelist —
			// whitelist всё равно сильнее.
			"status": {Operators: []string{"eval"}},
		},
	}

	g := &Group{Conditions: []Condition{
		{Field: "status", Operator: "eval", Value: "code"},
	}}
	if err := ValidateSchema(g, schema); !errors.Is(err, ErrUnsafeOperator) {
		t.Errorf("expected ErrUnsafeOperator, got %v", err)
	}
}

func TestValidateSchema_OpenInterface(t *testing.T) {
	// Интерфейс без схемы — проверка пропускается.
	g := &Group{Conditions: []Condition{
		{Field: "anything", Operator: OpEquals, Value: 1},
	}}
	if err := ValidateSchema(g, nil); err != nil {
		t.Errorf("nil schema must skip validation, got %v", err)
	}
}
