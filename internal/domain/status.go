package domain

// RunStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	RUNNING → COMPLETED
//	        ↘ FAILED
//
// Run создаётся сразу в RUNNING: выполнение синхронное, очереди
// ожидания нет.
type RunStatus string

const (
	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusCompleted — run успешно завершён.
	RunStatusCompleted RunStatus = "COMPLETED"

	// RunStatusFailed — run завершился с ошибкой.
	RunStatusFailed RunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed:
		return true
	default:
		return false
	}
}

// RecordStatus — результат выполнения одного узла в трейсе.
type RecordStatus string

const (
	// RecordStatusCompleted — узел выполнен успешно.
	RecordStatusCompleted RecordStatus = "COMPLETED"

	// RecordStatusFailed — узел упал; run остановлен на нём.
	RecordStatusFailed RecordStatus = "FAILED"
)
