package condition

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Операторы сравнения. Список закрыт: любой другой оператор
// отклоняется с ErrUnsafeOperator до обращения к данным.
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
	OpIn          = "in"
	OpContains    = "contains"
	OpStartsWith  = "starts_with"
	OpEndsWith    = "ends_with"
)

var allowedOperators = map[string]bool{
	OpEquals:      true,
	OpNotEquals:   true,
	OpGreaterThan: true,
	OpLessThan:    true,
	OpIn:          true,
	OpContains:    true,
	OpStartsWith:  true,
	OpEndsWith:    true,
}

// IsAllowedOperator проверяет оператор по whitelist.
func IsAllowedOperator(op string) bool {
	return allowedOperators[op]
}

// Operators возвращает список допустимых операторов.
func Operators() []string {
	return []string{
		OpEquals, OpNotEquals, OpGreaterThan, OpLessThan,
		OpIn, OpContains, OpStartsWith, OpEndsWith,
	}
}

// Logic — способ объединения условий в группе.
type Logic string

const (
	// LogicAnd — все условия должны быть истинны.
	LogicAnd Logic = "AND"

	// LogicOr — достаточно одного истинного условия.
	LogicOr Logic = "OR"
)

// Condition — одно декларативное условие: поле, оператор, значение.
// Условия — чистые данные, исполняемого кода в них нет.
type Condition struct {
	// Field — dot-path к полю входных данных ("order.total").
	Field string `json:"field" yaml:"field"`

	// Operator — оператор из whitelist.
	Operator string `json:"operator" yaml:"operator"`

	// Value — значение сравнения. Для оператора in — литеральный список.
	Value any `json:"value" yaml:"value"`
}

// Group — группа условий, объединённых логикой AND/OR.
// Одиночное условие — группа из одного элемента с AND.
type Group struct {
	// Conditions — условия группы.
	Conditions []Condition `json:"conditions" yaml:"conditions"`

	// Logic — AND или OR. Пустое значение — AND.
	Logic Logic `json:"logic,omitempty" yaml:"logic,omitempty"`
}

// ParseSpec разбирает конфигурацию условия из config узла.
//
// Допустимы две формы:
//
//	{"field": "status", "operator": "equals", "value": "active"}
//	{"conditions": [...], "logic": "OR"}
func ParseSpec(spec map[string]any) (*Group, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: empty condition spec", ErrInvalidCondition)
	}

	if raw, ok := spec["conditions"]; ok {
		return parseGroup(raw, spec["logic"])
	}

	c, err := parseSingle(spec)
	if err != nil {
		return nil, err
	}
	return &Group{Conditions: []Condition{c}, Logic: LogicAnd}, nil
}

func parseGroup(raw any, logicRaw any) (*Group, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: conditions must be a list", ErrInvalidCondition)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: conditions list is empty", ErrInvalidCondition)
	}

	logic := LogicAnd
	if s, ok := logicRaw.(string); ok && s != "" {
		switch strings.ToUpper(s) {
		case string(LogicAnd):
			logic = LogicAnd
		case string(LogicOr):
			logic = LogicOr
		default:
			return nil, fmt.Errorf("%w: unknown logic %q", ErrInvalidCondition, s)
		}
	}

	g := &Group{Logic: logic}
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: condition #%d is not an object", ErrInvalidCondition, i+1)
		}
		c, err := parseSingle(m)
		if err != nil {
			return nil, err
		}
		g.Conditions = append(g.Conditions, c)
	}
	return g, nil
}

func parseSingle(m map[string]any) (Condition, error) {
	field, _ := m["field"].(string)
	if field == "" {
		return Condition{}, fmt.Errorf("%w: field is required", ErrInvalidCondition)
	}
	op, _ := m["operator"].(string)
	if op == "" {
		return Condition{}, fmt.Errorf("%w: operator is required", ErrInvalidCondition)
	}
	return Condition{Field: field, Operator: op, Value: m["value"]}, nil
}

// Evaluate вычисляет группу условий над входными данными.
//
// Инвариант: сперва ВСЕ операторы группы проверяются по whitelist,
// и только потом начинается обращение к данным. Неизвестный оператор
// даёт ErrUnsafeOperator, даже если до его условия вычисление
// не дошло бы.
func Evaluate(g *Group, data any) (bool, error) {
	if g == nil || len(g.Conditions) == 0 {
		return true, nil
	}

	for _, c := range g.Conditions {
		if !IsAllowedOperator(c.Operator) {
			return false, fmt.Errorf("%w: %q", ErrUnsafeOperator, c.Operator)
		}
	}

	if g.Logic == LogicOr {
		for _, c := range g.Conditions {
			if evalOne(c, data) {
				return true, nil
			}
		}
		return false, nil
	}

	for _, c := range g.Conditions {
		if !evalOne(c, data) {
			return false, nil
		}
	}
	return true, nil
}

// evalOne вычисляет одно условие. Оператор уже проверен по whitelist.
func evalOne(c Condition, data any) bool {
	val, _ := ResolvePath(data, c.Field)

	switch c.Operator {
	case OpEquals:
		return looseEqual(val, c.Value)

	case OpNotEquals:
		return !looseEqual(val, c.Value)

	case OpGreaterThan:
		a, aok := toNumber(val)
		b, bok := toNumber(c.Value)
		return aok && bok && a > b

	case OpLessThan:
		a, aok := toNumber(val)
		b, bok := toNumber(c.Value)
		return aok && bok && a < b

	case OpIn:
		// Значение обязано быть литеральным списком; всё прочее — false.
		for _, item := range toList(c.Value) {
			if looseEqual(val, item) {
				return true
			}
		}
		return false

	case OpContains:
		switch v := val.(type) {
		case string:
			s, ok := c.Value.(string)
			return ok && strings.Contains(v, s)
		case []any:
			for _, item := range v {
				if looseEqual(item, c.Value) {
					return true
				}
			}
		}
		return false

	case OpStartsWith:
		v, vok := val.(string)
		s, sok := c.Value.(string)
		return vok && sok && strings.HasPrefix(v, s)

	case OpEndsWith:
		v, vok := val.(string)
		s, sok := c.Value.(string)
		return vok && sok && strings.HasSuffix(v, s)
	}

	return false
}

// ResolvePath идёт по dot-path ("a.b.c") внутрь значения.
// Отсутствующий путь — это (nil, false), не ошибка.
func ResolvePath(data any, path string) (any, bool) {
	if path == "" {
		return data, true
	}
	cur := data
	for _, part := range strings.Split(path, ".") {
		switch m := cur.(type) {
		case map[string]any:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]string:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

// toList приводит значение к списку. Не-списки дают nil — оператор in
// с не-списком всегда false, паники нет.
func toList(v any) []any {
	switch list := v.(type) {
	case []any:
		return list
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out
	default:
		return nil
	}
}

// toNumber приводит значение к float64.
// Строки с числами тоже считаются числами: "150" > 100 — истина.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// looseEqual сравнивает значения с числовой коэрцией:
// 100 == "100" == 100.0. Для остального — точное сравнение.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if af, aok := toNumber(a); aok {
		if bf, bok := toNumber(b); bok {
			return af == bf
		}
	}

	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return as == bs
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ab == bb
		}
	}

	return reflect.DeepEqual(a, b)
}
