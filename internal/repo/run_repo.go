package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/torbel/Interflow/internal/domain"
)

// RunRepo — репозиторий запусков и их трейсов.
//
// Запуск лежит в runs, записи трейса — в run_records по одной строке
// на выполненный узел. Движок пишет записи по ходу выполнения
// и финализирует запуск одним UpdateRun.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// CreateRun создаёт новый запуск.
func (r *RunRepo) CreateRun(ctx context.Context, run *domain.FlowRun) error {
	inputJSON, err := json.Marshal(run.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}

	query := `
		INSERT INTO runs (id, flow_id, flow_version, trace_id, status, triggered_by,
		                  input, started_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		run.ID,
		run.FlowID,
		run.FlowVersion,
		run.TraceID,
		run.Status,
		nullString(run.TriggeredBy),
		inputJSON,
		run.StartedAt,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateRun записывает финальное состояние запуска.
func (r *RunRepo) UpdateRun(ctx context.Context, run *domain.FlowRun) error {
	outputJSON, err := json.Marshal(run.Output)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	query := `
		UPDATE runs
		SET status = $2, output = $3, error = $4, error_node_id = $5, finished_at = $6
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Status,
		outputJSON,
		nullString(run.Error),
		nullString(run.ErrorNodeID),
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRun возвращает запуск вместе с трейсом.
func (r *RunRepo) GetRun(ctx context.Context, id uuid.UUID) (*domain.FlowRun, error) {
	query := `
		SELECT id, flow_id, flow_version, trace_id, status, triggered_by,
		       input, output, error, error_node_id, started_at, finished_at, created_at
		FROM runs
		WHERE id = $1
	`
	run, err := r.scanRun(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	records, err := r.ListRecords(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Records = records
	return run, nil
}

// List возвращает запуски с фильтрацией, без трейсов.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.FlowRun, error) {
	query := `
		SELECT id, flow_id, flow_version, trace_id, status, triggered_by,
		       input, output, error, error_node_id, started_at, finished_at, created_at
		FROM runs
		WHERE ($1::uuid IS NULL OR flow_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.FlowID),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.FlowRun
	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ListStale возвращает запуски, висящие в RUNNING с момента раньше cutoff.
// Используется worker'ом для пометки брошенных runs как FAILED.
func (r *RunRepo) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]domain.FlowRun, error) {
	query := `
		SELECT id, flow_id, flow_version, trace_id, status, triggered_by,
		       input, output, error, error_node_id, started_at, finished_at, created_at
		FROM runs
		WHERE status = $1 AND started_at < $2
		ORDER BY started_at ASC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, string(domain.RunStatusRunning), cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.FlowRun
	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// SaveRecord сохраняет одну запись трейса.
func (r *RunRepo) SaveRecord(ctx context.Context, rec *domain.NodeExecutionRecord) error {
	inputJSON, err := json.Marshal(rec.Input)
	if err != nil {
		return fmt.Errorf("marshal record input: %w", err)
	}
	outputJSON, err := json.Marshal(rec.Output)
	if err != nil {
		return fmt.Errorf("marshal record output: %w", err)
	}
	channelsJSON, err := json.Marshal(rec.Channels)
	if err != nil {
		return fmt.Errorf("marshal record channels: %w", err)
	}
	metaJSON, err := json.Marshal(rec.Meta)
	if err != nil {
		return fmt.Errorf("marshal record meta: %w", err)
	}
	attemptsJSON, err := json.Marshal(rec.Attempts)
	if err != nil {
		return fmt.Errorf("marshal record attempts: %w", err)
	}

	query := `
		INSERT INTO run_records (id, run_id, node_id, node_name, node_kind, status,
		                         input, output, channels, meta, attempts, error,
		                         started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = r.pool.Exec(ctx, query,
		rec.ID,
		rec.RunID,
		rec.NodeID,
		nullString(rec.NodeName),
		rec.NodeKind,
		rec.Status,
		inputJSON,
		outputJSON,
		channelsJSON,
		metaJSON,
		attemptsJSON,
		nullString(rec.Error),
		rec.StartedAt,
		rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}
	return nil
}

// ListRecords возвращает трейс запуска в порядке выполнения.
func (r *RunRepo) ListRecords(ctx context.Context, runID uuid.UUID) ([]domain.NodeExecutionRecord, error) {
	query := `
		SELECT id, run_id, node_id, node_name, node_kind, status,
		       input, output, channels, meta, attempts, error,
		       started_at, finished_at
		FROM run_records
		WHERE run_id = $1
		ORDER BY started_at ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list run records: %w", err)
	}
	defer rows.Close()

	var records []domain.NodeExecutionRecord
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// --- Helpers ---

// RunFilter — параметры фильтрации запусков.
type RunFilter struct {
	FlowID *uuid.UUID
	Status domain.RunStatus
	Limit  int
	Offset int
}

// scanRun сканирует строку в FlowRun.
func (r *RunRepo) scanRun(row pgx.Row) (*domain.FlowRun, error) {
	var run domain.FlowRun
	var triggeredBy, runError, errorNodeID *string
	var inputJSON, outputJSON []byte

	err := row.Scan(
		&run.ID,
		&run.FlowID,
		&run.FlowVersion,
		&run.TraceID,
		&run.Status,
		&triggeredBy,
		&inputJSON,
		&outputJSON,
		&runError,
		&errorNodeID,
		&run.StartedAt,
		&run.FinishedAt,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if inputJSON != nil {
		if err := json.Unmarshal(inputJSON, &run.Input); err != nil {
			return nil, fmt.Errorf("unmarshal input: %w", err)
		}
	}
	if outputJSON != nil {
		if err := json.Unmarshal(outputJSON, &run.Output); err != nil {
			return nil, fmt.Errorf("unmarshal output: %w", err)
		}
	}
	if triggeredBy != nil {
		run.TriggeredBy = *triggeredBy
	}
	if runError != nil {
		run.Error = *runError
	}
	if errorNodeID != nil {
		run.ErrorNodeID = *errorNodeID
	}

	return &run, nil
}

// scanRecord сканирует строку в NodeExecutionRecord.
func (r *RunRepo) scanRecord(row pgx.Row) (*domain.NodeExecutionRecord, error) {
	var rec domain.NodeExecutionRecord
	var nodeName, recError *string
	var inputJSON, outputJSON, channelsJSON, metaJSON, attemptsJSON []byte

	err := row.Scan(
		&rec.ID,
		&rec.RunID,
		&rec.NodeID,
		&nodeName,
		&rec.NodeKind,
		&rec.Status,
		&inputJSON,
		&outputJSON,
		&channelsJSON,
		&metaJSON,
		&attemptsJSON,
		&recError,
		&rec.StartedAt,
		&rec.FinishedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan run record: %w", err)
	}

	if inputJSON != nil {
		if err := json.Unmarshal(inputJSON, &rec.Input); err != nil {
			return nil, fmt.Errorf("unmarshal record input: %w", err)
		}
	}
	if outputJSON != nil {
		if err := json.Unmarshal(outputJSON, &rec.Output); err != nil {
			return nil, fmt.Errorf("unmarshal record output: %w", err)
		}
	}
	if channelsJSON != nil {
		if err := json.Unmarshal(channelsJSON, &rec.Channels); err != nil {
			return nil, fmt.Errorf("unmarshal record channels: %w", err)
		}
	}
	if metaJSON != nil {
		if err := json.Unmarshal(metaJSON, &rec.Meta); err != nil {
			return nil, fmt.Errorf("unmarshal record meta: %w", err)
		}
	}
	if attemptsJSON != nil {
		if err := json.Unmarshal(attemptsJSON, &rec.Attempts); err != nil {
			return nil, fmt.Errorf("unmarshal record attempts: %w", err)
		}
	}
	if nodeName != nil {
		rec.NodeName = *nodeName
	}
	if recError != nil {
		rec.Error = *recError
	}

	return &rec, nil
}

// nullString возвращает nil для пустой строки (NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
