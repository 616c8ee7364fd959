package condition

import "errors"

// Ошибки вычисления условий.
var (
	// ErrUnsafeOperator — оператор вне whitelist.
	// Возвращается до любого обращения к данным.
	ErrUnsafeOperator = errors.New("unsafe operator")

	// ErrSchemaViolation — условие нарушает схему интерфейса
	// (недопустимое поле, оператор или значение).
	ErrSchemaViolation = errors.New("condition schema violation")

	// ErrInvalidCondition — условие синтаксически некорректно.
	ErrInvalidCondition = errors.New("invalid condition")
)
