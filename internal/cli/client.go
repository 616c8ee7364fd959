package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// FlowResponse — flow из API.
type FlowResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Version   int              `json:"version"`
	IsEnabled bool             `json:"is_enabled"`
	Nodes     []map[string]any `json:"nodes"`
	Edges     []map[string]any `json:"edges"`
	CreatedAt string           `json:"created_at"`
	UpdatedAt string           `json:"updated_at"`
}

// ValidateFlowResponse — результат проверки flow.
type ValidateFlowResponse struct {
	Valid  bool   `json:"valid"`
	Error  string `json:"error,omitempty"`
	NodeID string `json:"node_id,omitempty"`
}

// CompiledFlowResponse — граф, собранный из списка шагов.
type CompiledFlowResponse struct {
	Name  string           `json:"name"`
	Nodes []map[string]any `json:"nodes"`
	Edges []map[string]any `json:"edges"`
}

// RunResponse — run из API.
type RunResponse struct {
	ID          string           `json:"id"`
	FlowID      string           `json:"flow_id"`
	FlowVersion int              `json:"flow_version"`
	TraceID     string           `json:"trace_id"`
	Status      string           `json:"status"`
	TriggeredBy string           `json:"triggered_by,omitempty"`
	Input       map[string]any   `json:"input,omitempty"`
	Output      any              `json:"output,omitempty"`
	Error       string           `json:"error,omitempty"`
	ErrorNodeID string           `json:"error_node_id,omitempty"`
	StartedAt   string           `json:"started_at"`
	FinishedAt  string           `json:"finished_at,omitempty"`
	Records     []RecordResponse `json:"records,omitempty"`
	CreatedAt   string           `json:"created_at"`
}

// RecordResponse — запись об исполнении одного узла.
type RecordResponse struct {
	ID         string            `json:"id"`
	NodeID     string            `json:"node_id"`
	NodeName   string            `json:"node_name,omitempty"`
	NodeKind   string            `json:"node_kind"`
	Status     string            `json:"status"`
	Input      any               `json:"input,omitempty"`
	Output     any               `json:"output,omitempty"`
	Channels   map[string]any    `json:"channels,omitempty"`
	Meta       map[string]any    `json:"meta,omitempty"`
	Attempts   []AttemptResponse `json:"attempts,omitempty"`
	Error      string            `json:"error,omitempty"`
	StartedAt  string            `json:"started_at"`
	FinishedAt string            `json:"finished_at"`
	DurationMs int64             `json:"duration_ms"`
}

// AuthResponse — настройка аутентификации интерфейса.
type AuthResponse struct {
	Type         string `json:"type"`
	CredentialID string `json:"credential_id,omitempty"`
	HeaderName   string `json:"header_name,omitempty"`
}

// RetryResponse — политика повторов интерфейса.
type RetryResponse struct {
	Attempts int   `json:"attempts,omitempty"`
	DelayMs  int   `json:"delay_ms,omitempty"`
	OnStatus []int `json:"on_status,omitempty"`
}

// InterfaceResponse — интерфейс из API.
type InterfaceResponse struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Protocol        string            `json:"protocol"`
	BaseURL         string            `json:"base_url"`
	Headers         map[string]string `json:"headers,omitempty"`
	Query           map[string]string `json:"query,omitempty"`
	ContentType     string            `json:"content_type,omitempty"`
	TimeoutSec      int               `json:"timeout_sec,omitempty"`
	InsecureSkipTLS bool              `json:"insecure_skip_tls,omitempty"`
	Retry           RetryResponse     `json:"retry"`
	Auth            AuthResponse      `json:"auth"`
	Schema          map[string]any    `json:"schema,omitempty"`
	IsEnabled       bool              `json:"is_enabled"`
	Emulate         bool              `json:"emulate,omitempty"`
	CreatedAt       string            `json:"created_at"`
	UpdatedAt       string            `json:"updated_at"`
}

// AttemptResponse — одна попытка вызова интерфейса.
type AttemptResponse struct {
	Number     int    `json:"number"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// TestCallResponse — результат пробного вызова интерфейса.
type TestCallResponse struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       any               `json:"body,omitempty"`
	Attempts   []AttemptResponse `json:"attempts,omitempty"`
	Emulated   bool              `json:"emulated"`
	Error      string            `json:"error,omitempty"`
}

// CredentialResponse — credential из API. Секретных значений здесь
// нет и не будет: API отдаёт только имена ключей.
type CredentialResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Keys      []string `json:"keys"`
	CreatedAt string   `json:"created_at"`
}

// ScheduleResponse — расписание из API.
type ScheduleResponse struct {
	ID          string         `json:"id"`
	FlowID      string         `json:"flow_id"`
	Name        string         `json:"name"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone"`
	Enabled     bool           `json:"enabled"`
	NextDueAt   string         `json:"next_due_at,omitempty"`
	LastRunAt   string         `json:"last_run_at,omitempty"`
	LastRunID   string         `json:"last_run_id,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

// --- Request types ---

// CreateFlowRequest — запрос на создание flow.
type CreateFlowRequest struct {
	Name  string           `json:"name"`
	Nodes []map[string]any `json:"nodes"`
	Edges []map[string]any `json:"edges"`
}

// UpdateFlowRequest — запрос на изменение flow.
type UpdateFlowRequest struct {
	Name  *string           `json:"name,omitempty"`
	Nodes *[]map[string]any `json:"nodes,omitempty"`
	Edges *[]map[string]any `json:"edges,omitempty"`
}

// ExecuteFlowRequest — запрос на синхронный запуск flow.
type ExecuteFlowRequest struct {
	Input       map[string]any `json:"input,omitempty"`
	TriggeredBy string         `json:"triggered_by,omitempty"`
}

// TestCallRequest — запрос на пробный вызов интерфейса.
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

// CreateCredentialRequest — запрос на создание credential.
type CreateCredentialRequest struct {
	Name string            `json:"name"`
	Type string            `json:"type"`
	Data map[string]string `json:"data"`
}

// CreateScheduleRequest — запрос на создание расписания.
type CreateScheduleRequest struct {
	Name        string         `json:"name"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone,omitempty"`
	Enabled     bool           `json:"enabled"`
	Input       map[string]any `json:"input,omitempty"`
}

// UpdateScheduleRequest — запрос на изменение расписания.
type UpdateScheduleRequest struct {
	Name        *string         `json:"name,omitempty"`
	CronExpr    *string         `json:"cron_expr,omitempty"`
	IntervalSec *int            `json:"interval_sec,omitempty"`
	Timezone    *string         `json:"timezone,omitempty"`
	Input       *map[string]any `json:"input,omitempty"`
}

// --- Envelope types ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client — HTTP-клиент к Interflow API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент к API по базовому URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Flows ---

// ListFlows возвращает список flow.
func (c *Client) ListFlows() ([]FlowResponse, error) {
	var flows []FlowResponse
	if err := c.list("/api/v1/flows", &flows); err != nil {
		return nil, err
	}
	return flows, nil
}

// CreateFlow создаёт flow.
func (c *Client) CreateFlow(req CreateFlowRequest) (*FlowResponse, error) {
	var flow FlowResponse
	if err := c.post("/api/v1/flows", req, &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

// GetFlow возвращает flow по ID.
func (c *Client) GetFlow(id string) (*FlowResponse, error) {
	var flow FlowResponse
	if err := c.get("/api/v1/flows/"+id, &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

// UpdateFlow изменяет flow.
func (c *Client) UpdateFlow(id string, req UpdateFlowRequest) (*FlowResponse, error) {
	var flow FlowResponse
	if err := c.put("/api/v1/flows/"+id, req, &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

// DeleteFlow удаляет flow.
func (c *Client) DeleteFlow(id string) error {
	return c.delete("/api/v1/flows/" + id)
}

// SetFlowEnabled включает или выключает flow.
func (c *Client) SetFlowEnabled(id string, enabled bool) (*FlowResponse, error) {
	var flow FlowResponse
	if err := c.put("/api/v1/flows/"+id+"/enabled", map[string]bool{"enabled": enabled}, &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

// ExecuteFlow синхронно исполняет flow и возвращает завершённый run.
func (c *Client) ExecuteFlow(id string, req ExecuteFlowRequest) (*RunResponse, error) {
	var run RunResponse
	if err := c.post("/api/v1/flows/"+id+"/execute", req, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ValidateFlow проверяет сохранённый flow, включая известность kind'ов.
func (c *Client) ValidateFlow(id string) (*ValidateFlowResponse, error) {
	var res ValidateFlowResponse
	if err := c.post("/api/v1/flows/"+id+"/validate", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CompileFlow собирает граф из списка шагов, не сохраняя его.
func (c *Client) CompileFlow(list map[string]any) (*CompiledFlowResponse, error) {
	var res CompiledFlowResponse
	if err := c.post("/api/v1/flows/compile", list, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ExportFlow возвращает flow в форме списка шагов: сырой YAML,
// либо JSON при format == "json".
func (c *Client) ExportFlow(id, format string) ([]byte, error) {
	path := "/api/v1/flows/" + id + "/export"
	if format != "" {
		path += "?format=" + url.QueryEscape(format)
	}
	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

// ListKinds возвращает зарегистрированные kind'ы узлов.
func (c *Client) ListKinds() ([]string, error) {
	var kinds []string
	if err := c.list("/api/v1/kinds", &kinds); err != nil {
		return nil, err
	}
	return kinds, nil
}

// --- Runs ---

// ListRunsOptions — фильтры для списка run'ов.
type ListRunsOptions struct {
	FlowID string
	Status string
	Limit  int
}

// ListRuns возвращает список run'ов с фильтрами.
func (c *Client) ListRuns(opts ListRunsOptions) ([]RunResponse, error) {
	q := url.Values{}
	if opts.FlowID != "" {
		q.Set("flow_id", opts.FlowID)
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}
	path := "/api/v1/runs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var runs []RunResponse
	if err := c.list(path, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun возвращает run вместе с трассой исполнения.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	if err := c.get("/api/v1/runs/"+id, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRunRecords возвращает записи об исполнении узлов run'а.
func (c *Client) ListRunRecords(runID string) ([]RecordResponse, error) {
	var records []RecordResponse
	if err := c.list("/api/v1/runs/"+runID+"/records", &records); err != nil {
		return nil, err
	}
	return records, nil
}

// --- Interfaces ---

// ListInterfaces возвращает список интерфейсов.
func (c *Client) ListInterfaces() ([]InterfaceResponse, error) {
	var ifaces []InterfaceResponse
	if err := c.list("/api/v1/interfaces", &ifaces); err != nil {
		return nil, err
	}
	return ifaces, nil
}

// CreateInterface создаёт интерфейс. Тело запроса передаётся как есть:
// команда собирает его из флагов либо читает готовый JSON из файла.
func (c *Client) CreateInterface(body any) (*InterfaceResponse, error) {
	var iface InterfaceResponse
	if err := c.post("/api/v1/interfaces", body, &iface); err != nil {
		return nil, err
	}
	return &iface, nil
}

// GetInterface возвращает интерфейс по ID.
func (c *Client) GetInterface(id string) (*InterfaceResponse, error) {
	var iface InterfaceResponse
	if err := c.get("/api/v1/interfaces/"+id, &iface); err != nil {
		return nil, err
	}
	return &iface, nil
}

// UpdateInterface изменяет интерфейс.
func (c *Client) UpdateInterface(id string, body any) (*InterfaceResponse, error) {
	var iface InterfaceResponse
	if err := c.put("/api/v1/interfaces/"+id, body, &iface); err != nil {
		return nil, err
	}
	return &iface, nil
}

// DeleteInterface удаляет интерфейс.
func (c *Client) DeleteInterface(id string) error {
	return c.delete("/api/v1/interfaces/" + id)
}

// SetInterfaceEnabled включает или выключает интерфейс.
func (c *Client) SetInterfaceEnabled(id string, enabled bool) (*InterfaceResponse, error) {
	var iface InterfaceResponse
	if err := c.put("/api/v1/interfaces/"+id+"/enabled", map[string]bool{"enabled": enabled}, &iface); err != nil {
		return nil, err
	}
	return &iface, nil
}

// TestInterface делает пробный вызов через интерфейс.
func (c *Client) TestInterface(id string, req TestCallRequest) (*TestCallResponse, error) {
	var res TestCallResponse
	if err := c.post("/api/v1/interfaces/"+id+"/test", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// --- Credentials ---

// ListCredentials возвращает список credential'ов.
func (c *Client) ListCredentials() ([]CredentialResponse, error) {
	var creds []CredentialResponse
	if err := c.list("/api/v1/credentials", &creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// CreateCredential создаёт credential.
func (c *Client) CreateCredential(req CreateCredentialRequest) (*CredentialResponse, error) {
	var cred CredentialResponse
	if err := c.post("/api/v1/credentials", req, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

// GetCredential возвращает credential по ID.
func (c *Client) GetCredential(id string) (*CredentialResponse, error) {
	var cred CredentialResponse
	if err := c.get("/api/v1/credentials/"+id, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

// DeleteCredential удаляет credential.
func (c *Client) DeleteCredential(id string) error {
	return c.delete("/api/v1/credentials/" + id)
}

// --- Schedules ---

// ListSchedules возвращает список расписаний, опционально по flow.
func (c *Client) ListSchedules(flowID string) ([]ScheduleResponse, error) {
	path := "/api/v1/schedules"
	if flowID != "" {
		path += "?flow_id=" + url.QueryEscape(flowID)
	}
	var schedules []ScheduleResponse
	if err := c.list(path, &schedules); err != nil {
		return nil, err
	}
	return schedules, nil
}

// CreateSchedule создаёт расписание для flow.
func (c *Client) CreateSchedule(flowID string, req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	if err := c.post("/api/v1/flows/"+flowID+"/schedules", req, &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// GetSchedule возвращает расписание по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	if err := c.get("/api/v1/schedules/"+id, &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// UpdateSchedule изменяет расписание.
func (c *Client) UpdateSchedule(id string, req UpdateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	if err := c.put("/api/v1/schedules/"+id, req, &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// DeleteSchedule удаляет расписание.
func (c *Client) DeleteSchedule(id string) error {
	return c.delete("/api/v1/schedules/" + id)
}

// SetScheduleEnabled включает или выключает расписание.
func (c *Client) SetScheduleEnabled(id string, enabled bool) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	if err := c.put("/api/v1/schedules/"+id+"/enabled", map[string]bool{"enabled": enabled}, &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return c.checkError(resp)
}

func (c *Client) list(path string, result any) error {
	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var envelope listResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, result); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func (c *Client) doData(method, path string, body, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var envelope dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Data, result); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, path, err)
	}
	return resp, nil
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error.Code == "" {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}
	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
