package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule — расписание автоматического запуска flow.
//
// Поддерживаются два режима:
// - cron-выражение: "0 9 * * *" (каждый день в 9:00)
// - фиксированный интервал: каждые N секунд
//
// Scheduler сравнивает NextDueAt с текущим временем и запускает flow
// синхронно, in-process; после запуска вычисляет следующее NextDueAt.
type Schedule struct {
	// ID — уникальный идентификатор schedule.
	ID uuid.UUID `json:"id"`

	// FlowID — ссылка на запускаемый flow.
	FlowID uuid.UUID `json:"flow_id"`

	// Name — имя расписания. Попадает в FlowRun.TriggeredBy
	// как "schedule:<name>".
	Name string `json:"name,omitempty"`

	// CronExpr — cron-выражение "минуты часы дни месяцы дни_недели".
	// Если задано, IntervalSec игнорируется.
	CronExpr string `json:"cron_expr,omitempty"`

	// IntervalSec — интервал в секундах между запусками.
	// Используется, когда CronExpr пуст.
	IntervalSec int `json:"interval_sec,omitempty"`

	// Timezone — часовой пояс для вычисления cron-времени.
	// Пустой — "UTC". Примеры: "Europe/Moscow", "America/New_York".
	Timezone string `json:"timezone"`

	// Enabled — флаг активности. Выключенные расписания
	// scheduler пропускает.
	Enabled bool `json:"enabled"`

	// NextDueAt — время следующего запуска.
	NextDueAt *time.Time `json:"next_due_at,omitempty"`

	// LastRunAt — время последнего запуска.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	// LastRunID — ID последнего запущенного run.
	LastRunID *uuid.UUID `json:"last_run_id,omitempty"`

	// Input — входной payload для каждого запуска.
	Input map[string]any `json:"input,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsCron возвращает true, если расписание использует cron-выражение.
func (s *Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// IsInterval возвращает true, если расписание использует интервал.
func (s *Schedule) IsInterval() bool {
	return s.CronExpr == "" && s.IntervalSec > 0
}

// IsDue проверяет, пора ли запускать.
func (s *Schedule) IsDue(now time.Time) bool {
	if !s.Enabled || s.NextDueAt == nil {
		return false
	}
	return !now.Before(*s.NextDueAt)
}

// TriggerLabel возвращает значение для FlowRun.TriggeredBy.
func (s *Schedule) TriggerLabel() string {
	if s.Name != "" {
		return "schedule:" + s.Name
	}
	return "schedule:" + s.ID.String()
}

// RecordRun запоминает выполненный запуск и следующее время срабатывания.
func (s *Schedule) RecordRun(runID uuid.UUID, nextDue time.Time) {
	now := time.Now()
	s.LastRunAt = &now
	s.LastRunID = &runID
	s.NextDueAt = &nextDue
	s.UpdatedAt = now
}
