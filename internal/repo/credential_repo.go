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

// CredentialRepo — репозиторий секретного материала.
//
// Секреты читает только dispatch в момент вызова; наружу репозиторий
// отдаёт полные записи, редактирование для API — забота хендлеров
// (Credential.Redacted).
type CredentialRepo struct {
	pool *pgxpool.Pool
}

// NewCredentialRepo создаёт новый CredentialRepo.
func NewCredentialRepo(pool *pgxpool.Pool) *CredentialRepo {
	return &CredentialRepo{pool: pool}
}

// Create сохраняет новый credential.
func (r *CredentialRepo) Create(ctx context.Context, cred *domain.Credential) error {
	dataJSON, err := json.Marshal(cred.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	query := `
		INSERT INTO credentials (id, name, type, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.pool.Exec(ctx, query,
		cred.ID,
		cred.Name,
		cred.Type,
		dataJSON,
		cred.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: credential %s", ErrAlreadyExists, cred.Name)
	}
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// GetCredential возвращает credential по ID.
func (r *CredentialRepo) GetCredential(ctx context.Context, id uuid.UUID) (*domain.Credential, error) {
	query := `
		SELECT id, name, type, data, created_at
		FROM credentials
		WHERE id = $1
	`
	return r.scanCredential(r.pool.QueryRow(ctx, query, id))
}

// List возвращает все credentials.
func (r *CredentialRepo) List(ctx context.Context) ([]domain.Credential, error) {
	query := `
		SELECT id, name, type, data, created_at
		FROM credentials
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var creds []domain.Credential
	for rows.Next() {
		cred, err := r.scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, *cred)
	}
	return creds, rows.Err()
}

// Update обновляет имя, тип и секретный материал.
func (r *CredentialRepo) Update(ctx context.Context, cred *domain.Credential) error {
	dataJSON, err := json.Marshal(cred.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	query := `
		UPDATE credentials
		SET name = $2, type = $3, data = $4
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, cred.ID, cred.Name, cred.Type, dataJSON)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: credential %s", ErrAlreadyExists, cred.Name)
	}
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет credential.
func (r *CredentialRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM credentials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanCredential сканирует строку в Credential.
func (r *CredentialRepo) scanCredential(row pgx.Row) (*domain.Credential, error) {
	var cred domain.Credential
	var dataJSON []byte

	err := row.Scan(
		&cred.ID,
		&cred.Name,
		&cred.Type,
		&dataJSON,
		&cred.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan credential: %w", err)
	}

	if dataJSON != nil {
		if err := json.Unmarshal(dataJSON, &cred.Data); err != nil {
			return nil, fmt.Errorf("unmarshal data: %w", err)
		}
	}

	return &cred, nil
}
