package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/torbel/Interflow/internal/domain"
)

// FlowRepo — репозиторий определений flow.
//
// Граф (узлы и рёбра) хранится одним jsonb-документом в колонке
// definition: определение читается и пишется целиком, версия
// инкрементируется при каждом изменении графа.
type FlowRepo struct {
	pool *pgxpool.Pool
}

// NewFlowRepo создаёт новый FlowRepo.
func NewFlowRepo(pool *pgxpool.Pool) *FlowRepo {
	return &FlowRepo{pool: pool}
}

// flowDocument — форма jsonb-колонки definition.
type flowDocument struct {
	Nodes []domain.Node `json:"nodes"`
	Edges []domain.Edge `json:"edges"`
}

// Create создаёт новый flow.
func (r *FlowRepo) Create(ctx context.Context, def *domain.FlowDefinition) error {
	defJSON, err := json.Marshal(flowDocument{Nodes: def.Nodes, Edges: def.Edges})
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}

	query := `
		INSERT INTO flows (id, name, version, is_enabled, definition, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.pool.Exec(ctx, query,
		def.ID,
		def.Name,
		def.Version,
		def.IsEnabled,
		defJSON,
		def.CreatedAt,
		def.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: flow %s", ErrAlreadyExists, def.Name)
	}
	if err != nil {
		return fmt.Errorf("insert flow: %w", err)
	}
	return nil
}

// GetFlow возвращает flow по ID.
func (r *FlowRepo) GetFlow(ctx context.Context, id uuid.UUID) (*domain.FlowDefinition, error) {
	query := `
		SELECT id, name, version, is_enabled, definition, created_at, updated_at
		FROM flows
		WHERE id = $1
	`
	return r.scanFlow(r.pool.QueryRow(ctx, query, id))
}

// GetByName возвращает flow по имени.
func (r *FlowRepo) GetByName(ctx context.Context, name string) (*domain.FlowDefinition, error) {
	query := `
		SELECT id, name, version, is_enabled, definition, created_at, updated_at
		FROM flows
		WHERE name = $1
	`
	return r.scanFlow(r.pool.QueryRow(ctx, query, name))
}

// List возвращает все flows.
func (r *FlowRepo) List(ctx context.Context) ([]domain.FlowDefinition, error) {
	query := `
		SELECT id, name, version, is_enabled, definition, created_at, updated_at
		FROM flows
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defer rows.Close()

	var flows []domain.FlowDefinition
	for rows.Next() {
		def, err := r.scanFlow(rows)
		if err != nil {
			return nil, err
		}
		flows = append(flows, *def)
	}
	return flows, rows.Err()
}

// Update обновляет имя и граф flow, инкрементируя версию.
// Новая версия и время обновления записываются обратно в def.
func (r *FlowRepo) Update(ctx context.Context, def *domain.FlowDefinition) error {
	defJSON, err := json.Marshal(flowDocument{Nodes: def.Nodes, Edges: def.Edges})
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}

	query := `
		UPDATE flows
		SET name = $2, definition = $3, version = version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING version, updated_at
	`
	err = r.pool.QueryRow(ctx, query, def.ID, def.Name, defJSON).
		Scan(&def.Version, &def.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: flow %s", ErrAlreadyExists, def.Name)
	}
	if err != nil {
		return fmt.Errorf("update flow: %w", err)
	}
	return nil
}

// SetEnabled включает/выключает flow. Версию не меняет.
func (r *FlowRepo) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE flows SET is_enabled = $2, updated_at = NOW() WHERE id = $1
	`, id, enabled)
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет flow (каскадно удалит runs и schedules).
func (r *FlowRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM flows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete flow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanFlow сканирует строку в FlowDefinition.
func (r *FlowRepo) scanFlow(row pgx.Row) (*domain.FlowDefinition, error) {
	var def domain.FlowDefinition
	var defJSON []byte

	err := row.Scan(
		&def.ID,
		&def.Name,
		&def.Version,
		&def.IsEnabled,
		&defJSON,
		&def.CreatedAt,
		&def.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan flow: %w", err)
	}

	var doc flowDocument
	if err := json.Unmarshal(defJSON, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal definition: %w", err)
	}
	def.Nodes = doc.Nodes
	def.Edges = doc.Edges

	return &def, nil
}
