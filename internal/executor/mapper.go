package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/torbel/Interflow/internal/condition"
)

const (
	// KindMapper — тип узла преобразования данных.
	KindMapper = "mapper"

	// Ключи конфигурации.
	configMappings    = "mappings"
	configStrict      = "strict"
	configPassthrough = "passthrough"
)

// mapping — одно правило переноса значения.
type mapping struct {
	from       string
	to         string
	defaultVal any
	hasDefault bool
}

// MapperExecutor — узел преобразования данных.
//
// Переносит значения из входа в новую структуру по dot-path правилам.
// Правила применяются в порядке объявления.
//
// Конфигурация:
//
//	{
//	    "mappings": [
//	        {"from": "order.customer.email", "to": "recipient"},
//	        {"from": "order.total", "to": "amount.value", "default": 0}
//	    ],
//	    "strict": false,       // отсутствие from без default — ошибка узла
//	    "passthrough": false   // начать с копии входа, а не с пустой структуры
//	}
//
// Output: построенная структура
//
//	{"recipient": "a@b.c", "amount": {"value": 100}}
type MapperExecutor struct{}

// NewMapperExecutor создаёт новый MapperExecutor.
func NewMapperExecutor() *MapperExecutor {
	return &MapperExecutor{}
}

// Kind возвращает тип узла.
func (e *MapperExecutor) Kind() string {
	return KindMapper
}

// Execute применяет правила преобразования к входным данным.
func (e *MapperExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	mappings, err := e.parseMappings(req.Config)
	if err != nil {
		return nil, err
	}

	strict := GetConfigBool(req.Config, configStrict, false)

	output := make(map[string]any)
	if GetConfigBool(req.Config, configPassthrough, false) {
		if input, ok := req.Input.(map[string]any); ok {
			output = copyTree(input).(map[string]any)
		}
	}

	for _, m := range mappings {
		value, found := condition.ResolvePath(req.Input, m.from)
		if !found {
			if m.hasDefault {
				setPath(output, m.to, m.defaultVal)
				continue
			}
			if strict {
				return nil, fmt.Errorf("%w: %q (mapping to %q)", ErrMissingField, m.from, m.to)
			}
			continue
		}
		setPath(output, m.to, value)
	}

	return &Result{Output: output}, nil
}

// parseMappings извлекает правила из конфигурации.
func (e *MapperExecutor) parseMappings(config map[string]any) ([]mapping, error) {
	raw, ok := config[configMappings].([]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("%w: mapper requires a mappings list", ErrInvalidConfig)
	}

	mappings := make([]mapping, 0, len(raw))
	for i, item := range raw {
		rule, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: mapping %d must be an object", ErrInvalidConfig, i)
		}

		m := mapping{
			from: GetConfigString(rule, "from"),
			to:   GetConfigString(rule, "to"),
		}
		if m.from == "" || m.to == "" {
			return nil, fmt.Errorf("%w: mapping %d requires from and to", ErrInvalidConfig, i)
		}
		if v, ok := rule["default"]; ok {
			m.defaultVal = v
			m.hasDefault = true
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

// setPath записывает значение по dot-path, создавая вложенные map.
// Не-map значение на промежуточном шаге перезаписывается.
func setPath(target map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := target
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// copyTree делает глубокую копию дерева из map и списков.
func copyTree(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = copyTree(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyTree(item)
		}
		return out
	default:
		return v
	}
}
