package api

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/torbel/Interflow/internal/domain"
)

// Flow DTOs

// CreateFlowRequest — запрос на создание flow.
// Flow создаётся выключенным: включение — отдельный шаг.
type CreateFlowRequest struct {
	Name  string        `json:"name"`
	Nodes []domain.Node `json:"nodes"`
	Edges []domain.Edge `json:"edges,omitempty"`
}

// UpdateFlowRequest — запрос на обновление flow.
// Любое обновление инкрементирует версию определения.
type UpdateFlowRequest struct {
	Name  *string        `json:"name,omitempty"`
	Nodes *[]domain.Node `json:"nodes,omitempty"`
	Edges *[]domain.Edge `json:"edges,omitempty"`
}

// FlowResponse — ответ с flow.
type FlowResponse struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	Version   int           `json:"version"`
	IsEnabled bool          `json:"is_enabled"`
	Nodes     []domain.Node `json:"nodes"`
	Edges     []domain.Edge `json:"edges"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// FlowFromDomain конвертирует domain.FlowDefinition в FlowResponse.
func FlowFromDomain(f domain.FlowDefinition) FlowResponse {
	return FlowResponse{
		ID:        f.ID,
		Name:      f.Name,
		Version:   f.Version,
		IsEnabled: f.IsEnabled,
		Nodes:     f.Nodes,
		Edges:     f.Edges,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// ExecuteFlowRequest — запрос на синхронный запуск flow.
type ExecuteFlowRequest struct {
	Input       map[string]any `json:"input,omitempty"`
	TriggeredBy string         `json:"triggered_by,omitempty"`
}

// ValidateFlowResponse — результат проверки определения.
type ValidateFlowResponse struct {
	Valid  bool   `json:"valid"`
	Error  string `json:"error,omitempty"`
	NodeID string `json:"node_id,omitempty"`
}

// CompiledFlowResponse — граф, собранный из списка шагов.
// Определение не сохраняется: результат отдаётся клиенту.
type CompiledFlowResponse struct {
	Name  string        `json:"name"`
	Nodes []domain.Node `json:"nodes"`
	Edges []domain.Edge `json:"edges"`
}

// Run DTOs

// RunResponse — ответ с run.
type RunResponse struct {
	ID          uuid.UUID        `json:"id"`
	FlowID      uuid.UUID        `json:"flow_id"`
	FlowVersion int              `json:"flow_version"`
	TraceID     uuid.UUID        `json:"trace_id"`
	Status      string           `json:"status"`
	TriggeredBy string           `json:"triggered_by,omitempty"`
	Input       map[string]any   `json:"input,omitempty"`
	Output      any              `json:"output,omitempty"`
	Error       string           `json:"error,omitempty"`
	ErrorNodeID string           `json:"error_node_id,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  *time.Time       `json:"finished_at,omitempty"`
	Records     []RecordResponse `json:"records,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// RunFromDomain конвертирует domain.FlowRun в RunResponse.
func RunFromDomain(r domain.FlowRun) RunResponse {
	resp := RunResponse{
		ID:          r.ID,
		FlowID:      r.FlowID,
		FlowVersion: r.FlowVersion,
		TraceID:     r.TraceID,
		Status:      string(r.Status),
		TriggeredBy: r.TriggeredBy,
		Input:       r.Input,
		Output:      r.Output,
		Error:       r.Error,
		ErrorNodeID: r.ErrorNodeID,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		CreatedAt:   r.CreatedAt,
	}
	if len(r.Records) > 0 {
		resp.Records = make([]RecordResponse, len(r.Records))
		for i, rec := range r.Records {
			resp.Records[i] = RecordFromDomain(rec)
		}
	}
	return resp
}

// RecordResponse — запись трейса об одном выполненном узле.
type RecordResponse struct {
	ID         uuid.UUID            `json:"id"`
	NodeID     string               `json:"node_id"`
	NodeName   string               `json:"node_name,omitempty"`
	NodeKind   string               `json:"node_kind"`
	Status     string               `json:"status"`
	Input      any                  `json:"input,omitempty"`
	Output     any                  `json:"output,omitempty"`
	Channels   map[string]any       `json:"channels,omitempty"`
	Meta       map[string]any       `json:"meta,omitempty"`
	Attempts   []domain.CallAttempt `json:"attempts,omitempty"`
	Error      string               `json:"error,omitempty"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	DurationMs int64                `json:"duration_ms"`
}

// RecordFromDomain конвертирует domain.NodeExecutionRecord в RecordResponse.
func RecordFromDomain(r domain.NodeExecutionRecord) RecordResponse {
	return RecordResponse{
		ID:         r.ID,
		NodeID:     r.NodeID,
		NodeName:   r.NodeName,
		NodeKind:   r.NodeKind,
		Status:     string(r.Status),
		Input:      r.Input,
		Output:     r.Output,
		Channels:   r.Channels,
		Meta:       r.Meta,
		Attempts:   r.Attempts,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		DurationMs: r.Duration().Milliseconds(),
	}
}

// Interface DTOs

// CreateInterfaceRequest — запрос на регистрацию интерфейса.
type CreateInterfaceRequest struct {
	Name            string                  `json:"name"`
	Protocol        string                  `json:"protocol,omitempty"`
	BaseURL         string                  `json:"base_url"`
	Headers         map[string]string       `json:"headers,omitempty"`
	Query           map[string]string       `json:"query,omitempty"`
	ContentType     string                  `json:"content_type,omitempty"`
	TimeoutSec      int                     `json:"timeout_sec,omitempty"`
	InsecureSkipTLS bool                    `json:"insecure_skip_tls,omitempty"`
	Retry           *domain.RetryPolicy     `json:"retry,omitempty"`
	Auth            *domain.AuthConfig      `json:"auth,omitempty"`
	Schema          *domain.ConditionSchema `json:"schema,omitempty"`
	IsEnabled       bool                    `json:"is_enabled"`
	Emulate         bool                    `json:"emulate,omitempty"`
}

// UpdateInterfaceRequest — запрос на обновление интерфейса.
type UpdateInterfaceRequest struct {
	Name            *string                 `json:"name,omitempty"`
	Protocol        *string                 `json:"protocol,omitempty"`
	BaseURL         *string                 `json:"base_url,omitempty"`
	Headers         *map[string]string      `json:"headers,omitempty"`
	Query           *map[string]string      `json:"query,omitempty"`
	ContentType     *string                 `json:"content_type,omitempty"`
	TimeoutSec      *int                    `json:"timeout_sec,omitempty"`
	InsecureSkipTLS *bool                   `json:"insecure_skip_tls,omitempty"`
	Retry           *domain.RetryPolicy     `json:"retry,omitempty"`
	Auth            *domain.AuthConfig      `json:"auth,omitempty"`
	Schema          *domain.ConditionSchema `json:"schema,omitempty"`
	Emulate         *bool                   `json:"emulate,omitempty"`
}

// InterfaceResponse — ответ с интерфейсом.
// AuthConfig секретов не содержит (только тип и ссылку на credential),
// поэтому отдаётся как есть.
type InterfaceResponse struct {
	ID              uuid.UUID               `json:"id"`
	Name            string                  `json:"name"`
	Protocol        string                  `json:"protocol"`
	BaseURL         string                  `json:"base_url"`
	Headers         map[string]string       `json:"headers,omitempty"`
	Query           map[string]string       `json:"query,omitempty"`
	ContentType     string                  `json:"content_type,omitempty"`
	TimeoutSec      int                     `json:"timeout_sec,omitempty"`
	InsecureSkipTLS bool                    `json:"insecure_skip_tls,omitempty"`
	Retry           domain.RetryPolicy      `json:"retry"`
	Auth            domain.AuthConfig       `json:"auth"`
	Schema          *domain.ConditionSchema `json:"schema,omitempty"`
	IsEnabled       bool                    `json:"is_enabled"`
	Emulate         bool                    `json:"emulate,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// InterfaceFromDomain конвертирует domain.InterfaceConfig в InterfaceResponse.
func InterfaceFromDomain(i domain.InterfaceConfig) InterfaceResponse {
	return InterfaceResponse{
		ID:              i.ID,
		Name:            i.Name,
		Protocol:        string(i.Protocol),
		BaseURL:         i.BaseURL,
		Headers:         i.Headers,
		Query:           i.Query,
		ContentType:     i.ContentType,
		TimeoutSec:      i.TimeoutSec,
		InsecureSkipTLS: i.InsecureSkipTLS,
		Retry:           i.Retry,
		Auth:            i.Auth,
		Schema:          i.Schema,
		IsEnabled:       i.IsEnabled,
		Emulate:         i.Emulate,
		CreatedAt:       i.CreatedAt,
		UpdatedAt:       i.UpdatedAt,
	}
}

// TestCallRequest — запрос тестового вызова интерфейса.
type TestCallRequest struct {
	Method           string            `json:"method,omitempty"`
	Path             string            `json:"path,omitempty"`
	Query            map[string]string `json:"query,omitempty"`
	Headers          map[string]string `json:"headers,omitempty"`
	Body             any               `json:"body,omitempty"`
	SOAPAction       string            `json:"soap_action,omitempty"`
	GraphQLQuery     string            `json:"graphql_query,omitempty"`
	GraphQLVariables map[string]any    `json:"graphql_variables,omitempty"`
	TimeoutSec       int               `json:"timeout_sec,omitempty"`
}

// TestCallResponse — результат тестового вызова.
// Провал после всех попыток — тоже результат: статус 200, ошибка
// и попытки внутри.
type TestCallResponse struct {
	StatusCode int                  `json:"status_code,omitempty"`
	Headers    map[string]string    `json:"headers,omitempty"`
	Body       any                  `json:"body,omitempty"`
	Attempts   []domain.CallAttempt `json:"attempts,omitempty"`
	Emulated   bool                 `json:"emulated"`
	Error      string               `json:"error,omitempty"`
}

// Credential DTOs

// CreateCredentialRequest — запрос на создание credential.
type CreateCredentialRequest struct {
	Name string            `json:"name"`
	Type string            `json:"type"`
	Data map[string]string `json:"data"`
}

// UpdateCredentialRequest — запрос на обновление credential.
// Data заменяется целиком, слияния секретов нет.
type UpdateCredentialRequest struct {
	Name *string            `json:"name,omitempty"`
	Type *string            `json:"type,omitempty"`
	Data *map[string]string `json:"data,omitempty"`
}

// CredentialResponse — ответ с credential.
// Секретные значения наружу не отдаются никогда: только имена ключей.
type CredentialResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Keys      []string  `json:"keys,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CredentialFromDomain конвертирует domain.Credential в CredentialResponse.
func CredentialFromDomain(c domain.Credential) CredentialResponse {
	var keys []string
	for k := range c.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return CredentialResponse{
		ID:        c.ID,
		Name:      c.Name,
		Type:      string(c.Type),
		Keys:      keys,
		CreatedAt: c.CreatedAt,
	}
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание schedule.
type CreateScheduleRequest struct {
	Name        string         `json:"name"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone,omitempty"`
	Enabled     bool           `json:"enabled"`
	Input       map[string]any `json:"input,omitempty"`
}

// UpdateScheduleRequest — запрос на обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string         `json:"name,omitempty"`
	CronExpr    *string         `json:"cron_expr,omitempty"`
	IntervalSec *int            `json:"interval_sec,omitempty"`
	Timezone    *string         `json:"timezone,omitempty"`
	Input       *map[string]any `json:"input,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse — ответ с schedule.
type ScheduleResponse struct {
	ID          uuid.UUID      `json:"id"`
	FlowID      uuid.UUID      `json:"flow_id"`
	Name        string         `json:"name"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone"`
	Enabled     bool           `json:"enabled"`
	NextDueAt   *time.Time     `json:"next_due_at,omitempty"`
	LastRunAt   *time.Time     `json:"last_run_at,omitempty"`
	LastRunID   *uuid.UUID     `json:"last_run_id,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	if s == nil {
		return ScheduleResponse{}
	}
	return ScheduleResponse{
		ID:          s.ID,
		FlowID:      s.FlowID,
		Name:        s.Name,
		CronExpr:    s.CronExpr,
		IntervalSec: s.IntervalSec,
		Timezone:    s.Timezone,
		Enabled:     s.Enabled,
		NextDueAt:   s.NextDueAt,
		LastRunAt:   s.LastRunAt,
		LastRunID:   s.LastRunID,
		Input:       s.Input,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}
