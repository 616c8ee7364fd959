package domain

import (
	"time"

	"github.com/google/uuid"
)

// FlowRun — одно выполнение flow против конкретного входного payload.
//
// Run создаётся когда:
// - Пользователь запускает flow вручную (через API/CLI)
// - Scheduler запускает flow по расписанию
// - Trigger-consumer получает сообщение из очереди
//
// Run владеет своим трейсом (Records): пока выполнение не завершено,
// записи добавляет только движок этого run. Финализация (MarkCompleted
// или MarkFailed) происходит ровно один раз.
type FlowRun struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// FlowID — ссылка на выполняемый flow.
	FlowID uuid.UUID `json:"flow_id"`

	// FlowVersion — версия определения на момент запуска.
	FlowVersion int `json:"flow_version"`

	// TraceID — сквозной идентификатор для корреляции логов и событий.
	TraceID uuid.UUID `json:"trace_id"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// TriggeredBy — источник запуска: "manual", "api", "schedule:<name>",
	// "queue", имя пользователя и т.п.
	TriggeredBy string `json:"triggered_by,omitempty"`

	// Input — входной payload, переданный при запуске.
	Input map[string]any `json:"input,omitempty"`

	// Output — результат терминального узла при успешном завершении.
	Output any `json:"output,omitempty"`

	// Error — текст ошибки, если run завершился с FAILED.
	Error string `json:"error,omitempty"`

	// ErrorNodeID — узел, на котором выполнение упало.
	ErrorNodeID string `json:"error_node_id,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения. Nil, пока run выполняется.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Records — упорядоченный трейс: по одной записи на каждый
	// выполненный узел, успешный или упавший.
	Records []NodeExecutionRecord `json:"records,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// NewFlowRun создаёт run в статусе RUNNING для указанного flow.
func NewFlowRun(flowID uuid.UUID, version int, input map[string]any, triggeredBy string) *FlowRun {
	now := time.Now()
	return &FlowRun{
		ID:          uuid.New(),
		FlowID:      flowID,
		FlowVersion: version,
		TraceID:     uuid.New(),
		Status:      RunStatusRunning,
		TriggeredBy: triggeredBy,
		Input:       input,
		StartedAt:   now,
		CreatedAt:   now,
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *FlowRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// IsFinished возвращает true, если run завершён.
func (r *FlowRun) IsFinished() bool {
	return r.Status.IsTerminal()
}

// AppendRecord добавляет запись узла в трейс.
func (r *FlowRun) AppendRecord(rec NodeExecutionRecord) {
	r.Records = append(r.Records, rec)
}

// MarkCompleted финализирует run со статусом COMPLETED.
// Output терминального узла становится результатом всего run.
// Повторная финализация игнорируется.
func (r *FlowRun) MarkCompleted(output any) {
	if r.Status.IsTerminal() {
		return
	}
	now := time.Now()
	r.Status = RunStatusCompleted
	r.Output = output
	r.FinishedAt = &now
}

// MarkFailed финализирует run со статусом FAILED, запоминая узел,
// на котором выполнение остановилось. Повторная финализация игнорируется.
func (r *FlowRun) MarkFailed(nodeID, errText string) {
	if r.Status.IsTerminal() {
		return
	}
	now := time.Now()
	r.Status = RunStatusFailed
	r.ErrorNodeID = nodeID
	r.Error = errText
	r.FinishedAt = &now
}

// NodeExecutionRecord — запись трейса об одной попытке выполнения узла.
//
// Запись добавляется для каждого затронутого узла независимо от
// результата. Кешированное повторное посещение узла запись не создаёт.
type NodeExecutionRecord struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// RunID — ссылка на родительский run.
	RunID uuid.UUID `json:"run_id"`

	// NodeID — ID узла из определения flow.
	NodeID string `json:"node_id"`

	// NodeName — имя узла (копия Node.Name для удобства чтения трейса).
	NodeName string `json:"node_name,omitempty"`

	// NodeKind — тип узла.
	NodeKind string `json:"node_kind"`

	// Status — результат выполнения: COMPLETED или FAILED.
	Status RecordStatus `json:"status"`

	// Input — входные данные узла.
	Input any `json:"input,omitempty"`

	// Output — основной результат узла.
	Output any `json:"output,omitempty"`

	// Channels — именованные дополнительные выходы
	// (например, valid/invalid у validation-узла).
	Channels map[string]any `json:"channels,omitempty"`

	// Meta — метаданные executor'а: condition_met, branch_fallback,
	// emulated и т.п.
	Meta map[string]any `json:"meta,omitempty"`

	// Attempts — попытки внешнего вызова для interface-узлов.
	Attempts []CallAttempt `json:"attempts,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// StartedAt — время начала выполнения узла.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения.
	FinishedAt time.Time `json:"finished_at"`
}

// Duration возвращает продолжительность выполнения узла.
func (r *NodeExecutionRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// CallAttempt — одна попытка исходящего вызова при dispatch.
type CallAttempt struct {
	// Number — номер попытки, начиная с 1.
	Number int `json:"number"`

	// StatusCode — HTTP статус ответа. 0, если запрос не дошёл до ответа.
	StatusCode int `json:"status_code,omitempty"`

	// Error — ошибка попытки, если она не удалась.
	Error string `json:"error,omitempty"`

	// DurationMs — длительность попытки в миллисекундах.
	DurationMs int64 `json:"duration_ms"`
}
