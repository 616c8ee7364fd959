package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/torbel/Interflow/internal/domain"
	"github.com/torbel/Interflow/internal/executor"
	"github.com/torbel/Interflow/internal/telemetry"
)

// FlowStore читает определения flow.
type FlowStore interface {
	GetFlow(ctx context.Context, id uuid.UUID) (*domain.FlowDefinition, error)
}

// RunStore сохраняет запуски и записи трейса.
type RunStore interface {
	CreateRun(ctx context.Context, run *domain.FlowRun) error
	UpdateRun(ctx context.Context, run *domain.FlowRun) error
	SaveRecord(ctx context.Context, rec *domain.NodeExecutionRecord) error
}

// EventPublisher публикует события жизненного цикла запуска.
type EventPublisher interface {
	PublishRunStarted(ctx context.Context, run *domain.FlowRun) error
	PublishRunFinished(ctx context.Context, run *domain.FlowRun) error
}

// Engine выполняет flow: обходит граф от входного узла, передавая
// выход каждого узла на вход следующему.
//
// Ключевые правила обхода:
//   - типы всех узлов разрешаются через реестр до любых побочных
//     эффектов: flow с неизвестным типом не оставляет ни запуска,
//     ни записей;
//   - каждый узел выполняется максимум один раз за запуск, повторный
//     заход возвращает кешированный выход и завершает путь — это же
//     обрывает циклы;
//   - из узла выбирается ровно одно исходящее ребро: единственное —
//     безусловно, из нескольких — по метке против condition_met,
//     без совпадения — первое по порядку объявления с отметкой
//     branch_fallback;
//   - каждый затронутый узел оставляет запись в трейсе; запуск
//     финализируется ровно один раз.
type Engine struct {
	flows     FlowStore
	runs      RunStore
	registry  *executor.Registry
	publisher EventPublisher
	logger    *slog.Logger
}

// Config — конфигурация Engine.
type Config struct {
	// Flows — хранилище определений flow.
	Flows FlowStore

	// Runs — хранилище запусков. Nil — трейс живёт только в памяти
	// возвращаемого FlowRun.
	Runs RunStore

	// Registry — реестр исполнителей узлов.
	Registry *executor.Registry

	// Publisher — публикация событий запуска. Nil — события не шлются.
	Publisher EventPublisher

	// Logger — логгер. Nil — slog.Default().
	Logger *slog.Logger
}

// New создаёт Engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = executor.NewRegistry()
	}
	return &Engine{
		flows:     cfg.Flows,
		runs:      cfg.Runs,
		registry:  registry,
		publisher: cfg.Publisher,
		logger:    logger,
	}
}

// Execute выполняет flow и возвращает его запуск.
//
// Ошибка возвращается только если запуск не начинался: flow не
// найден или выключен, граф некорректен, тип узла неизвестен.
// Провал во время выполнения — это FAILED-запуск и nil ошибка:
// результат в Status, Error и ErrorNodeID самого запуска.
func (e *Engine) Execute(ctx context.Context, flowID uuid.UUID, input map[string]any, triggeredBy string) (*domain.FlowRun, error) {
	def, err := e.flows.GetFlow(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", flowID, err)
	}
	if !def.IsEnabled {
		return nil, fmt.Errorf("%w: %s", ErrFlowDisabled, def.Name)
	}

	g, err := buildGraph(def)
	if err != nil {
		return nil, err
	}
	if err := e.resolveKinds(def); err != nil {
		return nil, err
	}

	run := domain.NewFlowRun(def.ID, def.Version, input, triggeredBy)
	logger := telemetry.WithFlowID(e.logger, def.ID.String())
	logger = telemetry.WithRunID(logger, run.ID.String())
	logger = telemetry.WithTraceID(logger, run.TraceID.String())

	if e.runs != nil {
		if err := e.runs.CreateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
	}
	e.publishStarted(ctx, run, logger)

	logger.Info("flow execution started",
		"flow", def.Name,
		"version", def.Version,
		"triggered_by", triggeredBy,
		"entry_node", g.entry.ID,
	)

	memo := make(map[string]any, len(def.Nodes))
	output, err := e.executeNode(ctx, g, run, g.entry, run.Input, memo, logger)

	if err != nil {
		var nodeErr *NodeError
		if errors.As(err, &nodeErr) {
			run.MarkFailed(nodeErr.NodeID, nodeErr.Err.Error())
		} else {
			run.MarkFailed("", err.Error())
		}
		logger.Error("flow execution failed",
			"error_node", run.ErrorNodeID,
			"error", run.Error,
			"nodes_executed", len(run.Records),
		)
	} else {
		run.MarkCompleted(output)
		logger.Info("flow execution completed",
			"nodes_executed", len(run.Records),
			"duration_ms", run.Duration().Milliseconds(),
		)
	}

	telemetry.RunsTotal.WithLabelValues(string(run.Status)).Inc()
	telemetry.RunDuration.Observe(run.Duration().Seconds())

	if e.runs != nil {
		if err := e.runs.UpdateRun(ctx, run); err != nil {
			logger.Error("failed to persist finished run", "error", err)
		}
	}
	e.publishFinished(ctx, run, logger)

	return run, nil
}

// ValidateDefinition проверяет структуру графа и типы узлов
// без выполнения.
func (e *Engine) ValidateDefinition(def *domain.FlowDefinition) error {
	if _, err := buildGraph(def); err != nil {
		return err
	}
	return e.resolveKinds(def)
}

// resolveKinds проверяет, что тип каждого узла зарегистрирован.
func (e *Engine) resolveKinds(def *domain.FlowDefinition) error {
	for i := range def.Nodes {
		node := &def.Nodes[i]
		if !e.registry.Has(node.Kind) {
			return NewGraphError(node.ID, "kind",
				fmt.Sprintf("unknown node kind: %q", node.Kind), ErrUnknownNodeKind)
		}
	}
	return nil
}

// executeNode выполняет узел и рекурсивно идёт по выбранному ребру.
//
// Возвращает выход последнего узла пути. Повторный заход в уже
// выполненный узел не выполняет его снова и не оставляет записи:
// путь завершается кешированным выходом.
func (e *Engine) executeNode(ctx context.Context, g *graph, run *domain.FlowRun, node *domain.Node, input any, memo map[string]any, logger *slog.Logger) (any, error) {
	if cached, ok := memo[node.ID]; ok {
		logger.Debug("node already executed, path ends with cached output",
			"node_id", node.ID)
		return cached, nil
	}

	rec := domain.NodeExecutionRecord{
		ID:        uuid.New(),
		RunID:     run.ID,
		NodeID:    node.ID,
		NodeName:  node.Name,
		NodeKind:  node.Kind,
		Input:     input,
		StartedAt: time.Now().UTC(),
	}

	exec, err := e.registry.Get(node.Kind)
	if err != nil {
		// Типы проверены до старта; сюда можно попасть только если
		// реестр изменили во время выполнения
		return nil, &NodeError{NodeID: node.ID, Err: err}
	}

	// Логгер узла уезжает в контекст: вызовы интерфейсов и обновления
	// токенов внутри executor'а логируются с той же корреляцией.
	nodeCtx := telemetry.WithLogger(ctx, telemetry.WithNodeID(logger, node.ID))

	res, execErr := exec.Execute(nodeCtx, executor.NewRequest(run, node, input))
	rec.FinishedAt = time.Now().UTC()

	if res != nil {
		rec.Output = res.Output
		rec.Channels = res.Channels
		rec.Meta = res.Meta
		rec.Attempts = res.Attempts
	}

	if execErr != nil {
		rec.Status = domain.RecordStatusFailed
		rec.Error = execErr.Error()
		e.saveRecord(ctx, run, &rec, logger)
		telemetry.NodeExecutions.WithLabelValues(node.Kind, string(rec.Status)).Inc()

		logger.Warn("node failed",
			"node_id", node.ID,
			"kind", node.Kind,
			"attempts", len(rec.Attempts),
			"error", execErr,
		)
		return nil, &NodeError{NodeID: node.ID, Err: execErr}
	}

	rec.Status = domain.RecordStatusCompleted

	edges := g.outgoingOf(node.ID)
	var next *domain.Edge
	if len(edges) > 0 {
		chosen, fallback := chooseEdge(edges, rec.Meta)
		next = &chosen
		if fallback {
			if rec.Meta == nil {
				rec.Meta = make(map[string]any, 1)
			}
			rec.Meta["branch_fallback"] = true
			logger.Warn("no edge label matched, falling back to first declared edge",
				"node_id", node.ID,
				"edge", chosen.ID,
				"target", chosen.Target,
			)
		}
	}

	e.saveRecord(ctx, run, &rec, logger)
	telemetry.NodeExecutions.WithLabelValues(node.Kind, string(rec.Status)).Inc()
	memo[node.ID] = rec.Output

	logger.Debug("node completed",
		"node_id", node.ID,
		"kind", node.Kind,
		"duration_ms", rec.Duration().Milliseconds(),
	)

	if next == nil {
		// Терминальный узел: его выход — результат запуска
		return rec.Output, nil
	}
	return e.executeNode(ctx, g, run, g.node(next.Target), rec.Output, memo, logger)
}

// chooseEdge выбирает одно исходящее ребро.
//
// Единственное ребро — безусловный переход. Из нескольких выбирается
// первое, чья метка согласуется с condition_met из метаданных узла.
// Без совпадения — первое по порядку объявления (fallback).
func chooseEdge(edges []domain.Edge, meta map[string]any) (domain.Edge, bool) {
	if len(edges) == 1 {
		return edges[0], false
	}

	if met, ok := meta["condition_met"].(bool); ok {
		for _, edge := range edges {
			if labelMatches(edge.Label, met) {
				return edge, false
			}
		}
	}
	return edges[0], true
}

// labelMatches сверяет метку ребра с результатом условия.
func labelMatches(label string, met bool) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "true", "yes", "success":
		return met
	case "false", "no", "error":
		return !met
	default:
		return false
	}
}

// saveRecord добавляет запись в трейс запуска и сохраняет её.
// Провал сохранения не прерывает выполнение: полное состояние
// допишет финализирующий UpdateRun.
func (e *Engine) saveRecord(ctx context.Context, run *domain.FlowRun, rec *domain.NodeExecutionRecord, logger *slog.Logger) {
	run.AppendRecord(*rec)
	if e.runs == nil {
		return
	}
	if err := e.runs.SaveRecord(ctx, rec); err != nil {
		logger.Warn("failed to persist node record",
			"node_id", rec.NodeID,
			"error", err,
		)
	}
}

func (e *Engine) publishStarted(ctx context.Context, run *domain.FlowRun, logger *slog.Logger) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishRunStarted(ctx, run); err != nil {
		logger.Warn("failed to publish run started event", "error", err)
	}
}

func (e *Engine) publishFinished(ctx context.Context, run *domain.FlowRun, logger *slog.Logger) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishRunFinished(ctx, run); err != nil {
		logger.Warn("failed to publish run finished event", "error", err)
	}
}
