package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/credit-engine/internal/domain"
)

const clientColumns = `id, full_name, document_type, document_number, email, phone, monthly_income,
	max_credit_limit, used_credit_limit, available_credit_limit, status,
	created_by, updated_by, created_at, updated_at, deleted_at`

type clientRepository struct {
	q sqlx.ExtContext
}

func (r *clientRepository) Create(ctx context.Context, client *domain.Client) error {
	query := `
		INSERT INTO clients (` + clientColumns + `)
		VALUES (:id, :full_name, :document_type, :document_number, :email, :phone, :monthly_income,
			:max_credit_limit, :used_credit_limit, :available_credit_limit, :status,
			:created_by, :updated_by, :created_at, :updated_at, :deleted_at)
	`

	_, err := sqlx.NamedExecContext(ctx, r.q, query, client)
	return mapError(err)
}

func (r *clientRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	return r.get(ctx, id, "")
}

func (r *clientRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *clientRepository) get(ctx context.Context, id uuid.UUID, lock string) (*domain.Client, error) {
	query := `
		SELECT ` + clientColumns + `
		FROM clients
		WHERE id = $1 AND deleted_at IS NULL` + lock

	var client domain.Client
	if err := sqlx.GetContext(ctx, r.q, &client, query, id); err != nil {
		return nil, notFound(err, "client", id)
	}
	return &client, nil
}

func (r *clientRepository) Update(ctx context.Context, client *domain.Client) error {
	query := `
		UPDATE clients
		SET full_name = :full_name, email = :email, phone = :phone, monthly_income = :monthly_income,
			max_credit_limit = :max_credit_limit, used_credit_limit = :used_credit_limit,
			available_credit_limit = :available_credit_limit, status = :status,
			updated_by = :updated_by, updated_at = :updated_at, deleted_at = :deleted_at
		WHERE id = :id
	`

	res, err := sqlx.NamedExecContext(ctx, r.q, query, client)
	if err != nil {
		return mapError(err)
	}
	return expectRow(res, "client", client.ID)
}

func (r *clientRepository) List(ctx context.Context) ([]*domain.Client, error) {
	query := `
		SELECT ` + clientColumns + `
		FROM clients
		WHERE deleted_at IS NULL
		ORDER BY created_at
	`

	var clients []*domain.Client
	if err := sqlx.SelectContext(ctx, r.q, &clients, query); err != nil {
		return nil, mapError(err)
	}
	return clients, nil
}
