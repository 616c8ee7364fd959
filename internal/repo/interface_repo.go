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

// InterfaceRepo — репозиторий зарегистрированных интерфейсов.
type InterfaceRepo struct {
	pool *pgxpool.Pool
}

// NewInterfaceRepo создаёт новый InterfaceRepo.
func NewInterfaceRepo(pool *pgxpool.Pool) *InterfaceRepo {
	return &InterfaceRepo{pool: pool}
}

// Create регистрирует новый интерфейс.
func (r *InterfaceRepo) Create(ctx context.Context, iface *domain.InterfaceConfig) error {
	headersJSON, queryJSON, retryJSON, authJSON, schemaJSON, err := marshalInterface(iface)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO interfaces (id, name, protocol, base_url, headers, query,
		                        content_type, timeout_sec, insecure_skip_tls,
		                        retry, auth, schema, is_enabled, emulate,
		                        created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = r.pool.Exec(ctx, query,
		iface.ID,
		iface.Name,
		iface.Protocol,
		iface.BaseURL,
		headersJSON,
		queryJSON,
		nullString(iface.ContentType),
		iface.TimeoutSec,
		iface.InsecureSkipTLS,
		retryJSON,
		authJSON,
		schemaJSON,
		iface.IsEnabled,
		iface.Emulate,
		iface.CreatedAt,
		iface.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: interface %s", ErrAlreadyExists, iface.Name)
	}
	if err != nil {
		return fmt.Errorf("insert interface: %w", err)
	}
	return nil
}

// GetInterface возвращает интерфейс по ID.
func (r *InterfaceRepo) GetInterface(ctx context.Context, id uuid.UUID) (*domain.InterfaceConfig, error) {
	query := selectInterface + ` WHERE id = $1`
	return r.scanInterface(r.pool.QueryRow(ctx, query, id))
}

// GetByName возвращает интерфейс по имени.
func (r *InterfaceRepo) GetByName(ctx context.Context, name string) (*domain.InterfaceConfig, error) {
	query := selectInterface + ` WHERE name = $1`
	return r.scanInterface(r.pool.QueryRow(ctx, query, name))
}

// List возвращает все интерфейсы.
func (r *InterfaceRepo) List(ctx context.Context) ([]domain.InterfaceConfig, error) {
	query := selectInterface + ` ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	defer rows.Close()

	var ifaces []domain.InterfaceConfig
	for rows.Next() {
		iface, err := r.scanInterface(rows)
		if err != nil {
			return nil, err
		}
		ifaces = append(ifaces, *iface)
	}
	return ifaces, rows.Err()
}

// Update обновляет интерфейс целиком.
func (r *InterfaceRepo) Update(ctx context.Context, iface *domain.InterfaceConfig) error {
	headersJSON, queryJSON, retryJSON, authJSON, schemaJSON, err := marshalInterface(iface)
	if err != nil {
		return err
	}

	query := `
		UPDATE interfaces
		SET name = $2, protocol = $3, base_url = $4, headers = $5, query = $6,
		    content_type = $7, timeout_sec = $8, insecure_skip_tls = $9,
		    retry = $10, auth = $11, schema = $12, is_enabled = $13,
		    emulate = $14, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		iface.ID,
		iface.Name,
		iface.Protocol,
		iface.BaseURL,
		headersJSON,
		queryJSON,
		nullString(iface.ContentType),
		iface.TimeoutSec,
		iface.InsecureSkipTLS,
		retryJSON,
		authJSON,
		schemaJSON,
		iface.IsEnabled,
		iface.Emulate,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: interface %s", ErrAlreadyExists, iface.Name)
	}
	if err != nil {
		return fmt.Errorf("update interface: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEnabled включает/выключает интерфейс.
func (r *InterfaceRepo) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE interfaces SET is_enabled = $2, updated_at = NOW() WHERE id = $1
	`, id, enabled)
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет интерфейс.
func (r *InterfaceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM interfaces WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete interface: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

const selectInterface = `
	SELECT id, name, protocol, base_url, headers, query, content_type,
	       timeout_sec, insecure_skip_tls, retry, auth, schema,
	       is_enabled, emulate, created_at, updated_at
	FROM interfaces`

// marshalInterface сериализует jsonb-колонки интерфейса.
func marshalInterface(iface *domain.InterfaceConfig) (headers, query, retry, auth, schema []byte, err error) {
	if headers, err = json.Marshal(iface.Headers); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal headers: %w", err)
	}
	if query, err = json.Marshal(iface.Query); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal query: %w", err)
	}
	if retry, err = json.Marshal(iface.Retry); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal retry: %w", err)
	}
	if auth, err = json.Marshal(iface.Auth); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal auth: %w", err)
	}
	if iface.Schema != nil {
		if schema, err = json.Marshal(iface.Schema); err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("marshal schema: %w", err)
		}
	}
	return headers, query, retry, auth, schema, nil
}

// scanInterface сканирует строку в InterfaceConfig.
func (r *InterfaceRepo) scanInterface(row pgx.Row) (*domain.InterfaceConfig, error) {
	var iface domain.InterfaceConfig
	var contentType *string
	var headersJSON, queryJSON, retryJSON, authJSON, schemaJSON []byte

	err := row.Scan(
		&iface.ID,
		&iface.Name,
		&iface.Protocol,
		&iface.BaseURL,
		&headersJSON,
		&queryJSON,
		&contentType,
		&iface.TimeoutSec,
		&iface.InsecureSkipTLS,
		&retryJSON,
		&authJSON,
		&schemaJSON,
		&iface.IsEnabled,
		&iface.Emulate,
		&iface.CreatedAt,
		&iface.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan interface: %w", err)
	}

	if headersJSON != nil {
		if err := json.Unmarshal(headersJSON, &iface.Headers); err != nil {
			return nil, fmt.Errorf("unmarshal headers: %w", err)
		}
	}
	if queryJSON != nil {
		if err := json.Unmarshal(queryJSON, &iface.Query); err != nil {
			return nil, fmt.Errorf("unmarshal query: %w", err)
		}
	}
	if retryJSON != nil {
		if err := json.Unmarshal(retryJSON, &iface.Retry); err != nil {
			return nil, fmt.Errorf("unmarshal retry: %w", err)
		}
	}
	if authJSON != nil {
		if err := json.Unmarshal(authJSON, &iface.Auth); err != nil {
			return nil, fmt.Errorf("unmarshal auth: %w", err)
		}
	}
	if schemaJSON != nil {
		if err := json.Unmarshal(schemaJSON, &iface.Schema); err != nil {
			return nil, fmt.Errorf("unmarshal schema: %w", err)
		}
	}
	if contentType != nil {
		iface.ContentType = *contentType
	}

	return &iface, nil
}
