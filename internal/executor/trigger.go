package executor

import (
	"context"
)

const (
	// KindTrigger — тип входного узла.
	KindTrigger = "trigger"

	// Ключ конфигурации.
	configDefaults = "defaults"
)

// TriggerExecutor — входной узел flow.
//
// Пропускает вход запуска дальше без изменений. Конфигурация может
// задать defaults — значения, подставляемые в отсутствующие ключи
// входа (ключи входа сильнее).
//
// Конфигурация:
//
//	{
//	    "defaults": {"region": "eu", "dry_run": false}
//	}
type TriggerExecutor struct{}

// NewTriggerExecutor создаёт новый TriggerExecutor.
func NewTriggerExecutor() *TriggerExecutor {
	return &TriggerExecutor{}
}

// Kind возвращает тип узла.
func (e *TriggerExecutor) Kind() string {
	return KindTrigger
}

// Execute пропускает вход дальше, подставляя defaults.
func (e *TriggerExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	defaults := GetConfigMap(req.Config, configDefaults)
	if len(defaults) == 0 {
		return &Result{Output: req.Input}, nil
	}

	input, ok := req.Input.(map[string]any)
	if !ok {
		// Вход не map: defaults применить некуда
		return &Result{Output: req.Input}, nil
	}

	merged := make(map[string]any, len(input)+len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range input {
		merged[k] = v
	}
	return &Result{Output: merged}, nil
}
