package executor

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/torbel/Interflow/internal/dispatch"
	"github.com/torbel/Interflow/internal/domain"
)

const (
	// KindInterfaceSource — тип узла чтения из внешнего интерфейса.
	KindInterfaceSource = "interface_source"

	// KindInterfaceDestination — тип узла записи во внешний интерфейс.
	KindInterfaceDestination = "interface_destination"

	// Ключи конфигурации.
	configMethod           = "method"
	configPath             = "path"
	configQuery            = "query"
	configHeaders          = "headers"
	configBody             = "body"
	configSOAPAction       = "soap_action"
	configGraphQLQuery     = "graphql_query"
	configGraphQLVariables = "graphql_variables"
	configTimeoutSec       = "timeout_sec"
	configRetryAttempts    = "retry_attempts"
	configRetryDelayMs     = "retry_delay_ms"
)

// InterfaceCallExecutor — узел вызова зарегистрированного интерфейса.
//
// Источник (interface_source) читает данные из внешней системы,
// приёмник (interface_destination) пишет в неё: у приёмника телом
// запроса по умолчанию становится вход узла. Всё остальное — общий
// вызов через dispatch с retry и аутентификацией интерфейса.
//
// Конфигурация:
//
//	{
//	    "interface_id": "b1c2...",       // обязательно
//	    "method": "POST",                // REST; SOAP/GraphQL всегда POST
//	    "path": "/v1/orders",
//	    "query": {"page": "1"},
//	    "headers": {"X-Source": "interflow"},
//	    "body": {...},                   // приёмник без body шлёт вход узла
//	    "timeout_sec": 15,
//	    "retry_attempts": 3,
//	    "retry_delay_ms": 500
//	}
//
// Output:
//
//	{"status_code": 200, "headers": {...}, "body": {...}}
//
// Статус >= 400 — провал узла; выполненные попытки и тело ответа
// остаются в записи трейса.
type InterfaceCallExecutor struct {
	dispatcher *dispatch.Dispatcher
	kind       string
	sendInput  bool
}

// NewInterfaceSourceExecutor создаёт исполнителя чтения.
func NewInterfaceSourceExecutor(d *dispatch.Dispatcher) *InterfaceCallExecutor {
	return &InterfaceCallExecutor{dispatcher: d, kind: KindInterfaceSource}
}

// NewInterfaceDestinationExecutor создаёт исполнителя записи.
func NewInterfaceDestinationExecutor(d *dispatch.Dispatcher) *InterfaceCallExecutor {
	return &InterfaceCallExecutor{dispatcher: d, kind: KindInterfaceDestination, sendInput: true}
}

// Kind возвращает тип узла.
func (e *InterfaceCallExecutor) Kind() string {
	return e.kind
}

// Execute вызывает интерфейс и нормализует результат.
func (e *InterfaceCallExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	if e.dispatcher == nil {
		return nil, fmt.Errorf("%w: %s: dispatcher not configured", ErrInvalidConfig, e.kind)
	}

	idStr := GetConfigString(req.Config, configInterfaceID)
	if idStr == "" {
		return nil, fmt.Errorf("%w: %s requires interface_id", ErrInvalidConfig, e.kind)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("%w: bad interface_id: %v", ErrInvalidConfig, err)
	}

	opts := dispatch.CallOptions{
		Method:       GetConfigString(req.Config, configMethod),
		Path:         GetConfigString(req.Config, configPath),
		Query:        GetConfigMapString(req.Config, configQuery),
		Headers:      GetConfigMapString(req.Config, configHeaders),
		SOAPAction:   GetConfigString(req.Config, configSOAPAction),
		GraphQLQuery: GetConfigString(req.Config, configGraphQLQuery),
		TimeoutSec:   GetConfigInt(req.Config, configTimeoutSec),
	}
	if vars := GetConfigMap(req.Config, configGraphQLVariables); vars != nil {
		opts.GraphQLVariables = vars
	}

	opts.Body = req.Config[configBody]
	if opts.Body == nil && e.sendInput {
		opts.Body = req.Input
	}

	if e.hasRetryOverride(req.Config) {
		opts.Retry = &domain.RetryPolicy{
			Attempts: GetConfigInt(req.Config, configRetryAttempts),
			DelayMs:  GetConfigInt(req.Config, configRetryDelayMs),
		}
	}

	res, err := e.dispatcher.Call(ctx, id, opts)

	result := &Result{}
	if res != nil {
		result.Attempts = res.Attempts
		if res.Emulated {
			result.Meta = map[string]any{"emulated": true}
		}
		result.Output = map[string]any{
			"status_code": res.StatusCode,
			"headers":     res.Headers,
			"body":        res.Body,
		}
	}

	if err != nil {
		return result, err
	}
	if res.StatusCode >= 400 {
		return result, fmt.Errorf("%s returned HTTP %d: %s",
			e.kind, res.StatusCode, summarizeBody(res.Body))
	}
	return result, nil
}

// hasRetryOverride проверяет, переопределяет ли узел политику retry.
func (e *InterfaceCallExecutor) hasRetryOverride(config map[string]any) bool {
	_, a := config[configRetryAttempts]
	_, d := config[configRetryDelayMs]
	return a || d
}

// summarizeBody обрезает тело ответа для текста ошибки.
func summarizeBody(body any) string {
	s := fmt.Sprintf("%v", body)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
