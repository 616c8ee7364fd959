package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/torbel/Interflow/internal/condition"
)

const (
	// KindValidation — тип узла проверки данных.
	KindValidation = "validation"

	// Ключи конфигурации.
	configRules           = "rules"
	configContinueOnError = "continue_on_error"
	configStrictFields    = "strict"
)

// ValidationExecutor — узел проверки входных данных по правилам.
//
// Каждое правило описывает одно поле: обязательность, тип, числовые
// границы, длину, regexp и допустимые значения. Нарушения собираются
// все сразу, а не до первого.
//
// Вход — либо один документ, либо список документов. Список
// проверяется поэлементно: прошедшие уходят в канал valid, не
// прошедшие — в канал invalid, каждый со своими нарушениями.
//
// Конфигурация:
//
//	{
//	    "rules": [
//	        {"field": "email", "required": true, "pattern": "^\\S+@\\S+$"},
//	        {"field": "qty", "type": "number", "min": 1, "max": 100},
//	        {"field": "status", "enum": ["new", "paid"]}
//	    ],
//	    "continue_on_error": false,  // true — нарушения не валят узел
//	    "strict": false              // поля входа вне правил — нарушение
//	}
//
// При нарушениях с continue_on_error узел завершается успешно:
// выход несёт только прошедшие документы (у непрошедшего одиночного
// документа он пуст), непрошедшие уходят в канал invalid вместе со
// своими нарушениями, а condition_met в Meta становится false —
// размеченные рёбра уводят такой результат на error-ветку. Без
// continue_on_error любой непрошедший документ валит узел
// с ErrValidation и сводкой всех нарушений.
type ValidationExecutor struct{}

// NewValidationExecutor создаёт новый ValidationExecutor.
func NewValidationExecutor() *ValidationExecutor {
	return &ValidationExecutor{}
}

// Kind возвращает тип узла.
func (e *ValidationExecutor) Kind() string {
	return KindValidation
}

// Execute проверяет входные данные по правилам.
func (e *ValidationExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	rules, ok := req.Config[configRules].([]any)
	if !ok || len(rules) == 0 {
		return nil, fmt.Errorf("%w: validation requires a rules list", ErrInvalidConfig)
	}
	strict := GetConfigBool(req.Config, configStrictFields, false)

	// Список проверяется поэлементно, одиночный документ — целиком
	if items, isList := req.Input.([]any); isList {
		return e.executeList(req, rules, strict, items)
	}

	violations, err := e.checkItem(rules, strict, req.Input)
	if err != nil {
		return nil, err
	}

	if len(violations) == 0 {
		return &Result{
			Output:   req.Input,
			Channels: map[string]any{"valid": req.Input},
			Meta:     map[string]any{"condition_met": true},
		}, nil
	}

	// Канал invalid несёт сам документ с его нарушениями —
	// той же формы, что записи executeList
	invalid := []any{map[string]any{
		"item":       req.Input,
		"violations": violations,
	}}

	if GetConfigBool(req.Config, configContinueOnError, false) {
		return &Result{
			Channels: map[string]any{"invalid": invalid},
			Meta: map[string]any{
				"condition_met": false,
				"violations":    len(violations),
			},
		}, nil
	}

	// Нарушения валят узел, но остаются в результате для трейса
	return &Result{Channels: map[string]any{"invalid": invalid}},
		fmt.Errorf("%w: %s", ErrValidation, summarize(violations))
}

// executeList проверяет каждый документ списка независимо и делит
// их на каналы valid/invalid.
func (e *ValidationExecutor) executeList(req *Request, rules []any, strict bool, items []any) (*Result, error) {
	valid := make([]any, 0, len(items))
	invalid := make([]any, 0)
	var all []any

	for idx, item := range items {
		violations, err := e.checkItem(rules, strict, item)
		if err != nil {
			return nil, err
		}
		if len(violations) == 0 {
			valid = append(valid, item)
			continue
		}
		invalid = append(invalid, map[string]any{
			"index":      idx,
			"item":       item,
			"violations": violations,
		})
		for _, v := range violations {
			if m, ok := v.(map[string]any); ok {
				m["field"] = fmt.Sprintf("[%d].%v", idx, m["field"])
			}
			all = append(all, v)
		}
	}

	channels := map[string]any{"valid": valid, "invalid": invalid}

	if len(invalid) == 0 {
		return &Result{
			Output:   valid,
			Channels: channels,
			Meta:     map[string]any{"condition_met": true},
		}, nil
	}

	if GetConfigBool(req.Config, configContinueOnError, false) {
		return &Result{
			Output:   valid,
			Channels: channels,
			Meta: map[string]any{
				"condition_met": false,
				"violations":    len(all),
			},
		}, nil
	}

	return &Result{Channels: channels},
		fmt.Errorf("%w: %d of %d items invalid: %s",
			ErrValidation, len(invalid), len(items), summarize(all))
}

// checkItem прогоняет один документ через все правила
// и возвращает его нарушения.
func (e *ValidationExecutor) checkItem(rules []any, strict bool, input any) ([]any, error) {
	var violations []any
	fields := make(map[string]bool, len(rules))

	for i, item := range rules {
		rule, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: rule %d must be an object", ErrInvalidConfig, i)
		}
		field := GetConfigString(rule, "field")
		if field == "" {
			return nil, fmt.Errorf("%w: rule %d requires a field", ErrInvalidConfig, i)
		}
		fields[strings.SplitN(field, ".", 2)[0]] = true

		if err := e.checkRule(rule, field, input, &violations); err != nil {
			return nil, err
		}
	}

	if strict {
		e.checkUnknownFields(input, fields, &violations)
	}
	return violations, nil
}

// checkRule проверяет одно правило, добавляя нарушения в список.
func (e *ValidationExecutor) checkRule(rule map[string]any, field string, input any, violations *[]any) error {
	value, found := condition.ResolvePath(input, field)

	if !found {
		if GetConfigBool(rule, "required", false) {
			addViolation(violations, field, "required", "field is required")
		}
		return nil
	}

	if typ := GetConfigString(rule, "type"); typ != "" && !checkType(value, typ) {
		addViolation(violations, field, "type",
			fmt.Sprintf("expected %s, got %T", typ, value))
	}

	if raw, ok := rule["min"]; ok {
		if limit, lok := numericValue(raw); lok {
			if n, nok := numericValue(value); !nok || n < limit {
				addViolation(violations, field, "min",
					fmt.Sprintf("value must be >= %v", raw))
			}
		}
	}
	if raw, ok := rule["max"]; ok {
		if limit, lok := numericValue(raw); lok {
			if n, nok := numericValue(value); !nok || n > limit {
				addViolation(violations, field, "max",
					fmt.Sprintf("value must be <= %v", raw))
			}
		}
	}

	if raw, ok := rule["min_length"]; ok {
		if limit, lok := numericValue(raw); lok {
			if l, lenOK := valueLength(value); lenOK && l < int(limit) {
				addViolation(violations, field, "min_length",
					fmt.Sprintf("length must be >= %v", raw))
			}
		}
	}
	if raw, ok := rule["max_length"]; ok {
		if limit, lok := numericValue(raw); lok {
			if l, lenOK := valueLength(value); lenOK && l > int(limit) {
				addViolation(violations, field, "max_length",
					fmt.Sprintf("length must be <= %v", raw))
			}
		}
	}

	if pattern := GetConfigString(rule, "pattern"); pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("%w: field %q: bad pattern: %v", ErrInvalidConfig, field, err)
		}
		if s, ok := value.(string); !ok || !re.MatchString(s) {
			addViolation(violations, field, "pattern",
				fmt.Sprintf("value does not match %s", pattern))
		}
	}

	if enum := GetConfigStringSlice(rule, "enum"); len(enum) > 0 {
		got := fmt.Sprintf("%v", value)
		matched := false
		for _, allowed := range enum {
			if got == allowed {
				matched = true
				break
			}
		}
		if !matched {
			addViolation(violations, field, "enum",
				fmt.Sprintf("value %q not in %v", got, enum))
		}
	}

	return nil
}

// checkUnknownFields отмечает поля входа, не описанные правилами.
func (e *ValidationExecutor) checkUnknownFields(input any, known map[string]bool, violations *[]any) {
	m, ok := input.(map[string]any)
	if !ok {
		return
	}
	for key := range m {
		if !known[key] {
			addViolation(violations, key, "strict", "field is not allowed")
		}
	}
}

func addViolation(violations *[]any, field, rule, message string) {
	*violations = append(*violations, map[string]any{
		"field":   field,
		"rule":    rule,
		"message": message,
	})
}

// summarize собирает короткий текст ошибки из нарушений.
func summarize(violations []any) string {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		if m, ok := v.(map[string]any); ok {
			parts = append(parts, fmt.Sprintf("%v: %v", m["field"], m["message"]))
		}
	}
	return strings.Join(parts, "; ")
}

// checkType проверяет фактический тип значения.
func checkType(value any, typ string) bool {
	switch typ {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := numericType(value)
		return ok
	case "bool":
		_, ok := value.(bool)
		return ok
	case "list":
		switch value.(type) {
		case []any, []string:
			return true
		}
		return false
	case "map":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}

// numericType распознаёт числовые типы без строковой коэрции.
func numericType(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// numericValue распознаёт числа, включая числовые строки.
// Строки коэрцируются: CSV-колонки приходят строками.
func numericValue(v any) (float64, bool) {
	if f, ok := numericType(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}

// valueLength возвращает длину строки (в рунах) или списка.
func valueLength(v any) (int, bool) {
	switch t := v.(type) {
	case string:
		return len([]rune(t)), true
	case []any:
		return len(t), true
	case []string:
		return len(t), true
	}
	return 0, false
}
