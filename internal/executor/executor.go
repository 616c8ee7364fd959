package executor

import (
	"context"

	"github.com/google/uuid"

	"github.com/torbel/Interflow/internal/domain"
)

// Executor — интерфейс исполнителя узла.
//
// Каждый тип узла (trigger, mapper, interface_source и т.д.)
// реализует этот интерфейс.
type Executor interface {
	// Kind возвращает тип узла.
	Kind() string

	// Execute выполняет узел и возвращает результат.
	// Исполнитель должен уважать отмену ctx.
	Execute(ctx context.Context, req *Request) (*Result, error)
}

// Request — входные данные выполнения узла.
//
// FlowID/RunID/TraceID — неизменяемый контекст запуска: один и тот же
// для всех узлов одного run, исполнители его только читают.
type Request struct {
	// FlowID — идентификатор выполняемого flow.
	FlowID uuid.UUID

	// RunID — идентификатор запуска.
	RunID uuid.UUID

	// TraceID — сквозной идентификатор для корреляции логов и трейса.
	TraceID uuid.UUID

	// NodeID — идентификатор узла внутри flow.
	NodeID string

	// NodeName — человекочитаемое имя узла.
	NodeName string

	// Config — статическая конфигурация узла из определения flow.
	Config map[string]any

	// Input — выход предыдущего узла.
	// Для входного узла — вход запуска.
	Input any
}

// Result — результат выполнения узла.
type Result struct {
	// Output — выходные данные, вход следующего узла.
	Output any

	// Channels — именованные потоки данных помимо основного выхода
	// (например valid/invalid у validation).
	Channels map[string]any

	// Meta — служебные отметки узла: condition_met, emulated и т.п.
	Meta map[string]any

	// Attempts — попытки исходящих вызовов, если узел их делал.
	Attempts []domain.CallAttempt
}

// NewRequest создаёт Request для узла в рамках запуска.
func NewRequest(run *domain.FlowRun, node *domain.Node, input any) *Request {
	config := node.Config
	if config == nil {
		config = make(map[string]any)
	}
	return &Request{
		FlowID:   run.FlowID,
		RunID:    run.ID,
		TraceID:  run.TraceID,
		NodeID:   node.ID,
		NodeName: node.Name,
		Config:   config,
		Input:    input,
	}
}

// GetConfigString извлекает строковое значение из конфига.
func GetConfigString(config map[string]any, key string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetConfigInt извлекает числовое значение из конфига.
func GetConfigInt(config map[string]any, key string) int {
	if v, ok := config[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return 0
}

// GetConfigBool извлекает булево значение из конфига.
func GetConfigBool(config map[string]any, key string, defaultVal bool) bool {
	if v, ok := config[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// GetConfigMap извлекает map из конфига.
func GetConfigMap(config map[string]any, key string) map[string]any {
	if v, ok := config[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

// GetConfigMapString извлекает map[string]string из конфига.
func GetConfigMapString(config map[string]any, key string) map[string]string {
	if v, ok := config[key]; ok {
		switch m := v.(type) {
		case map[string]string:
			return m
		case map[string]any:
			result := make(map[string]string)
			for k, val := range m {
				if s, ok := val.(string); ok {
					result[k] = s
				}
			}
			return result
		}
	}
	return nil
}

// GetConfigStringSlice извлекает список строк из конфига.
// Одиночная строка трактуется как список из одного элемента.
func GetConfigStringSlice(config map[string]any, key string) []string {
	v, ok := config[key]
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		result := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	case string:
		return []string{list}
	}
	return nil
}
