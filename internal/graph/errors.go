package graph

import "errors"

// Ошибки компиляции и экспорта списка шагов.
var (
	// ErrEmptySteps — список не содержит ни одного шага.
	ErrEmptySteps = errors.New("step list has no steps")

	// ErrEmptyStepID — шаг или триггер без идентификатора.
	ErrEmptyStepID = errors.New("step has empty id")

	// ErrEmptyStepKind — шаг без типа узла.
	ErrEmptyStepKind = errors.New("step has empty kind")

	// ErrDuplicateStepID — идентификатор встречается дважды
	// (триггеры и шаги делят общее пространство имён).
	ErrDuplicateStepID = errors.New("duplicate step id")

	// ErrReservedStepID — идентификатор совпадает с зарезервированным
	// словом формата.
	ErrReservedStepID = errors.New("step id is reserved")

	// ErrUnknownJumpTarget — on_success или on_error ссылается на
	// несуществующий шаг.
	ErrUnknownJumpTarget = errors.New("jump references unknown step")

	// ErrEmptyGraph — экспортировать нечего.
	ErrEmptyGraph = errors.New("graph has no nodes")

	// ErrNotLinear — у графа нет узла, с которого можно начать
	// линеаризацию: каждый узел имеет входящие рёбра.
	ErrNotLinear = errors.New("graph has no entry node to linearize")
)
