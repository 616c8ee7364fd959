package condition

import (
	"fmt"

	"github.com/torbel/Interflow/internal/domain"
)

// ValidateSchema проверяет группу условий против схемы интерфейса.
//
// Проверка выполняется ДО вычисления условия и существует для того,
// чтобы клиент не мог обойти ограничения UI, отправив сырое условие
// напрямую в API. Пропустить её можно только для интерфейса вообще
// без схемы (schema == nil) — "открытого" интерфейса.
//
// Правила:
//   - каждое поле условия должно присутствовать в схеме;
//   - каждый оператор должен быть во whitelist и, если схема поля
//     ограничивает операторы, — в её списке;
//   - если схема поля задаёт enum значений, значение сравнения
//     (для in — каждый элемент списка) должно входить в enum.
func ValidateSchema(g *Group, schema *domain.ConditionSchema) error {
	if schema == nil {
		return nil
	}
	if g == nil {
		return nil
	}

	for _, c := range g.Conditions {
		if !IsAllowedOperator(c.Operator) {
			return fmt.Errorf("%w: %q", ErrUnsafeOperator, c.Operator)
		}

		fs, ok := schema.Field(c.Field)
		if !ok {
			return fmt.Errorf("%w: field %q is not allowed by the interface schema",
				ErrSchemaViolation, c.Field)
		}

		if len(fs.Operators) > 0 && !containsString(fs.Operators, c.Operator) {
			return fmt.Errorf("%w: operator %q is not allowed for field %q",
				ErrSchemaViolation, c.Operator, c.Field)
		}

		if len(fs.Values) > 0 {
			if err := checkEnum(c, fs.Values); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkEnum сверяет значение сравнения с enum схемы.
// Для оператора in проверяется каждый элемент списка.
func checkEnum(c Condition, allowed []string) error {
	values := []any{c.Value}
	if c.Operator == OpIn {
		values = toList(c.Value)
	}

	for _, v := range values {
		if !containsString(allowed, fmt.Sprintf("%v", v)) {
			return fmt.Errorf("%w: value %v is not allowed for field %q",
				ErrSchemaViolation, v, c.Field)
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
