package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/torbel/Interflow/internal/domain"
	"github.com/torbel/Interflow/internal/engine"
	"github.com/torbel/Interflow/internal/repo"
)

// ScheduleStore — доступ к расписаниям. Реализуется repo.ScheduleRepo.
type ScheduleStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error)
	Update(ctx context.Context, schedule *domain.Schedule) error
}

// Runner запускает flow по идентификатору. Реализуется engine.Engine.
type Runner interface {
	Execute(ctx context.Context, flowID uuid.UUID, input map[string]any, triggeredBy string) (*domain.FlowRun, error)
}

// Scheduler — планировщик, запускающий flows по расписанию.
type Scheduler struct {
	schedules ScheduleStore
	runner    Runner
	logger    *slog.Logger
	batchSize int
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules ScheduleStore
	Runner    Runner
	Logger    *slog.Logger
	BatchSize int // количество schedules за один тик (default: 100)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		schedules: cfg.Schedules,
		runner:    cfg.Runner,
		logger:    logger,
		batchSize: batchSize,
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит due schedules (enabled=true, next_due_at <= now)
// 2. Для каждого запускает flow синхронно через Runner
// 3. Обновляет next_due_at
//
// Ошибки одного schedule не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now()

	schedules, err := s.schedules.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	if len(schedules) == 0 {
		return nil
	}

	s.logger.Debug("found due schedules", "count", len(schedules))

	var processed, started int
	for i := range schedules {
		sched := &schedules[i]

		runStarted, err := s.processSchedule(ctx, sched, now)
		if err != nil {
			s.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			// Продолжаем обработку остальных
			continue
		}

		processed++
		if runStarted {
			started++
		}
	}

	s.logger.Info("scheduler tick completed",
		"due", len(schedules),
		"processed", processed,
		"runs_started", started,
	)

	return nil
}

// processSchedule обрабатывает один schedule.
// Возвращает true, если run был запущен.
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) (bool, error) {
	// 1. Следующее срабатывание считаем заранее: даже неудачный запуск
	// должен сдвинуть расписание, иначе оно останется due на каждом тике
	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		// Некорректное расписание: выключаем, чтобы не молотить впустую
		s.logger.Error("invalid schedule, disabling",
			"schedule_id", sched.ID,
			"schedule_name", sched.Name,
			"error", err,
		)
		sched.Enabled = false
		sched.UpdatedAt = time.Now()
		if err := s.schedules.Update(ctx, sched); err != nil {
			return false, fmt.Errorf("disable schedule: %w", err)
		}
		return false, nil
	}

	// 2. Запускаем flow синхронно. Run вместе с трейсом пишет движок.
	run, execErr := s.runner.Execute(ctx, sched.FlowID, sched.Input, sched.TriggerLabel())
	if execErr != nil {
		if errors.Is(execErr, repo.ErrNotFound) || engine.IsRejected(execErr) {
			// Flow удалён, выключен или сломан — запуск пропускаем,
			// но расписание сдвигаем
			s.logger.Warn("schedule skipped",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"flow_id", sched.FlowID,
				"error", execErr,
			)
			sched.NextDueAt = &nextDue
			sched.UpdatedAt = time.Now()
			if err := s.schedules.Update(ctx, sched); err != nil {
				return false, fmt.Errorf("update schedule: %w", err)
			}
			return false, nil
		}
		// Временная ошибка (БД недоступна): next_due_at не трогаем,
		// запуск повторится на следующем тике
		return false, fmt.Errorf("execute flow: %w", execErr)
	}

	// 3. Запоминаем запуск и следующее время срабатывания
	sched.RecordRun(run.ID, nextDue)
	if err := s.schedules.Update(ctx, sched); err != nil {
		return true, fmt.Errorf("update schedule: %w", err)
	}

	s.logger.Info("schedule fired",
		"schedule_id", sched.ID,
		"schedule_name", sched.Name,
		"flow_id", sched.FlowID,
		"run_id", run.ID,
		"status", run.Status,
		"next_due_at", nextDue,
	)

	return true, nil
}
