package executor

import (
	"context"
	"fmt"
)

// KindCode — тип узла пользовательского кода.
const KindCode = "code"

// CodeExecutor — узел выполнения пользовательского кода.
//
// Тип известен реестру, но выполнение отключено навсегда:
// произвольный код внутри движка — это неустранимая дыра
// в изоляции. Узел всегда завершается ErrFeatureDisabled,
// запуск фиксирует провал именно этого узла в трейсе.
type CodeExecutor struct{}

// NewCodeExecutor создаёт новый CodeExecutor.
func NewCodeExecutor() *CodeExecutor {
	return &CodeExecutor{}
}

// Kind возвращает тип узла.
func (e *CodeExecutor) Kind() string {
	return KindCode
}

// Execute всегда отказывает.
func (e *CodeExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	return nil, fmt.Errorf("%w: code execution is permanently disabled", ErrFeatureDisabled)
}
