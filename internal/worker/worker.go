package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/torbel/Interflow/internal/domain"
	"github.com/torbel/Interflow/internal/engine"
	"github.com/torbel/Interflow/internal/mq"
	"github.com/torbel/Interflow/internal/repo"
)

// Default configuration values.
const (
	defaultPrefetch     = 5
	defaultPollInterval = time.Minute
	defaultMaxRunAge    = 30 * time.Minute
	defaultBatchSize    = 50
)

// Runner запускает flow по идентификатору. Реализуется engine.Engine.
type Runner interface {
	Execute(ctx context.Context, flowID uuid.UUID, input map[string]any, triggeredBy string) (*domain.FlowRun, error)
}

// FlowDirectory разрешает имя flow в определение. Реализуется repo.FlowRepo.
type FlowDirectory interface {
	GetByName(ctx context.Context, name string) (*domain.FlowDefinition, error)
}

// RunSweeper — доступ к зависшим runs. Реализуется repo.RunRepo.
type RunSweeper interface {
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]domain.FlowRun, error)
	UpdateRun(ctx context.Context, run *domain.FlowRun) error
}

// Worker обрабатывает входящие триггеры запуска flows.
//
// Worker — stateless компонент системы, который:
//   - Потребляет flow.trigger из очереди triggers.inbound (event-driven)
//   - Запускает flow через engine синхронно, внутри обработки сообщения
//   - Классифицирует ошибки: постоянные уходят в DLQ, временные — на повтор
//   - Периодически помечает зависшие runs как FAILED (sweep fallback)
//
// Workers масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди.
type Worker struct {
	runner Runner
	flows  FlowDirectory
	runs   RunSweeper

	// MQ
	conn     *mq.Connection
	consumer *mq.Consumer

	// Configuration
	prefetch     int
	pollInterval time.Duration
	maxRunAge    time.Duration
	batchSize    int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	// Runner — движок выполнения flows.
	Runner Runner

	// Flows — поиск flow по имени.
	Flows FlowDirectory

	// Runs — доступ к runs для sweep зависших запусков.
	// Если nil — sweep выключен.
	Runs RunSweeper

	// Conn — соединение с RabbitMQ.
	Conn *mq.Connection

	// Prefetch — количество сообщений для предварительной загрузки (default: 5).
	Prefetch int

	// PollInterval — интервал sweep зависших runs (default: 1m).
	PollInterval time.Duration

	// MaxRunAge — сколько run может оставаться в RUNNING,
	// прежде чем sweep пометит его как FAILED (default: 30m).
	MaxRunAge time.Duration

	// BatchSize — количество runs за один sweep (default: 50).
	BatchSize int

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	maxRunAge := cfg.MaxRunAge
	if maxRunAge <= 0 {
		maxRunAge = defaultMaxRunAge
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		runner:       cfg.Runner,
		flows:        cfg.Flows,
		runs:         cfg.Runs,
		conn:         cfg.Conn,
		prefetch:     prefetch,
		pollInterval: pollInterval,
		maxRunAge:    maxRunAge,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start запускает Worker.
//
// Запускает:
//   - Consumer для triggers.inbound
//   - Sweep горутину для зависших runs (если настроен RunSweeper)
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"prefetch", w.prefetch,
		"poll_interval", w.pollInterval,
		"max_run_age", w.maxRunAge,
	)

	// Consumer только при живом MQ: без него остаётся sweep
	if w.conn != nil {
		w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueTriggers),
			Handler:  w.handleTrigger,
			Prefetch: w.prefetch,
		})

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("trigger consumer error", "error", err)
			}
		}()
	} else {
		w.logger.Warn("no MQ connection, trigger queue disabled")
	}

	// Запускаем sweep
	if w.runs != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.sweepLoop(ctx)
		}()
	}

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	if w.consumer != nil {
		w.consumer.Stop()
	}

	// Ждём завершения горутин
	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// handleTrigger обрабатывает сообщение flow.trigger из очереди.
func (w *Worker) handleTrigger(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.TriggerPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse flow.trigger payload", "error", err)
		return permanent(fmt.Errorf("parse trigger payload: %w", err))
	}

	if payload.Flow == "" {
		return permanent(ErrMissingFlow)
	}

	flowID, err := w.resolveFlow(ctx, payload.Flow)
	if err != nil {
		return err
	}

	triggeredBy := payload.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = "mq"
	}

	run, err := w.runner.Execute(ctx, flowID, payload.Input, triggeredBy)
	if err != nil {
		// Execute возвращает error только на pre-flight проверках:
		// сам run ещё не создан
		if isPermanentExecErr(err) {
			w.logger.Warn("trigger rejected",
				"flow", payload.Flow,
				"error", err,
			)
			return permanent(err)
		}
		return fmt.Errorf("execute flow: %w", err)
	}

	w.logger.Info("trigger executed",
		"flow", payload.Flow,
		"run_id", run.ID,
		"status", run.Status,
		"triggered_by", triggeredBy,
	)

	return nil
}

// resolveFlow превращает ссылку из триггера (UUID или имя) в flow ID.
func (w *Worker) resolveFlow(ctx context.Context, ref string) (uuid.UUID, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return id, nil
	}

	flow, err := w.flows.GetByName(ctx, ref)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return uuid.Nil, permanent(fmt.Errorf("%w: %s", ErrUnknownFlow, ref))
		}
		return uuid.Nil, fmt.Errorf("resolve flow %q: %w", ref, err)
	}

	return flow.ID, nil
}

// sweepLoop — цикл периодической проверки зависших runs.
func (w *Worker) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Первый sweep сразу при старте (подхватываем runs, брошенные при рестарте)
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep помечает runs, висящие в RUNNING дольше maxRunAge, как FAILED.
// Такие runs остаются после падения процесса посреди выполнения.
func (w *Worker) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-w.maxRunAge)

	stale, err := w.runs.ListStale(ctx, cutoff, w.batchSize)
	if err != nil {
		w.logger.Error("failed to list stale runs", "error", err)
		return
	}

	if len(stale) == 0 {
		return
	}

	var swept int
	for i := range stale {
		run := &stale[i]

		run.MarkFailed("", fmt.Sprintf("run stale: still RUNNING after %s", w.maxRunAge))
		if err := w.runs.UpdateRun(ctx, run); err != nil {
			w.logger.Error("failed to mark stale run as failed",
				"run_id", run.ID,
				"error", err,
			)
			continue
		}

		w.logger.Warn("stale run marked failed",
			"run_id", run.ID,
			"flow_id", run.FlowID,
			"started_at", run.StartedAt,
		)
		swept++
	}

	w.logger.Info("sweep completed", "stale", len(stale), "swept", swept)
}

// permanent помечает ошибку как неустранимую: сообщение уйдёт в DLQ.
func permanent(err error) error {
	return fmt.Errorf("%w: %w", mq.ErrPermanent, err)
}

// isPermanentExecErr проверяет, относится ли ошибка Execute к постоянным:
// flow не существует либо движок отклонил запуск из-за состояния flow.
func isPermanentExecErr(err error) bool {
	return errors.Is(err, repo.ErrNotFound) || engine.IsRejected(err)
}
