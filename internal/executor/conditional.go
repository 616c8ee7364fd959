package executor

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/torbel/Interflow/internal/condition"
	"github.com/torbel/Interflow/internal/dispatch"
)

const (
	// KindConditional — тип узла ветвления.
	KindConditional = "conditional"

	// Ключи конфигурации.
	configCondition   = "condition"
	configInterfaceID = "interface_id"
)

// ConditionalExecutor — узел ветвления.
//
// Вычисляет декларативное условие над входными данными и пишет
// результат в Meta под ключом condition_met. Сам выбор ребра делает
// движок по меткам исходящих рёбер. Входные данные проходят дальше
// без изменений.
//
// Конфигурация:
//
//	{
//	    "condition": {
//	        "conditions": [
//	            {"field": "order.total", "operator": "greater_than", "value": 100}
//	        ],
//	        "logic": "AND"
//	    },
//	    "interface_id": "..."  // опционально: проверить условие против схемы интерфейса
//	}
//
// Если указан interface_id и у интерфейса есть схема условий,
// условие до вычисления проверяется на допустимые поля, операторы
// и значения. Интерфейс без схемы принимает любые условия.
type ConditionalExecutor struct {
	interfaces dispatch.InterfaceStore
}

// NewConditionalExecutor создаёт новый ConditionalExecutor.
func NewConditionalExecutor(interfaces dispatch.InterfaceStore) *ConditionalExecutor {
	return &ConditionalExecutor{interfaces: interfaces}
}

// Kind возвращает тип узла.
func (e *ConditionalExecutor) Kind() string {
	return KindConditional
}

// Execute вычисляет условие над входными данными.
func (e *ConditionalExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	spec := GetConfigMap(req.Config, configCondition)
	if spec == nil {
		return nil, fmt.Errorf("%w: conditional requires a condition", ErrInvalidConfig)
	}

	group, err := condition.ParseSpec(spec)
	if err != nil {
		return nil, err
	}

	if err := e.validateAgainstSchema(ctx, req, group); err != nil {
		return nil, err
	}

	met, err := condition.Evaluate(group, req.Input)
	if err != nil {
		return nil, err
	}

	return &Result{
		Output: req.Input,
		Meta:   map[string]any{"condition_met": met},
	}, nil
}

// validateAgainstSchema проверяет условие по схеме интерфейса,
// если узел её запросил.
func (e *ConditionalExecutor) validateAgainstSchema(ctx context.Context, req *Request, group *condition.Group) error {
	idStr := GetConfigString(req.Config, configInterfaceID)
	if idStr == "" {
		return nil
	}
	if e.interfaces == nil {
		return fmt.Errorf("%w: interface_id set but no interface store configured", ErrInvalidConfig)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("%w: bad interface_id: %v", ErrInvalidConfig, err)
	}

	iface, err := e.interfaces.GetInterface(ctx, id)
	if err != nil {
		return fmt.Errorf("interface %s: %w", idStr, err)
	}
	return condition.ValidateSchema(group, iface.Schema)
}
