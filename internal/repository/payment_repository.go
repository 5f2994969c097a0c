package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/credit-engine/internal/domain"
	customError "github.com/segyhp/credit-engine/pkg/errors"
)

const paymentColumns = `id, code, request_id, client_id, loan_id, installment_id, payment_date, total_amount,
	principal_applied_amount, interest_applied_amount, arrears_applied_amount, other_charges_applied_amount,
	discount_amount, payment_type, payment_method, external_reference, status,
	reversed_at, reversal_reason, reversed_by, notes, created_by, updated_by, created_at, updated_at`

const allocationColumns = `id, payment_id, installment_id, principal_amount, interest_amount,
	other_charges_amount, arrears_amount, discount_amount`

const requestIDConstraint = "payments_request_id_key"

type paymentRepository struct {
	q sqlx.ExtContext
}

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (:id, :code, :request_id, :client_id, :loan_id, :installment_id, :payment_date, :total_amount,
			:principal_applied_amount, :interest_applied_amount, :arrears_applied_amount, :other_charges_applied_amount,
			:discount_amount, :payment_type, :payment_method, :external_reference, :status,
			:reversed_at, :reversal_reason, :reversed_by, :notes, :created_by, :updated_by, :created_at, :updated_at)
	`

	if _, err := sqlx.NamedExecContext(ctx, r.q, query, payment); err != nil {
		if code, constraint, ok := sqlState(err); ok && code == sqlStateUniqueViolation && constraint == requestIDConstraint {
			return customError.WrapDuplicateRequest(*payment.RequestID, payment.ID)
		}
		return mapError(err)
	}
	return r.insertAllocations(ctx, payment)
}

func (r *paymentRepository) insertAllocations(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payment_allocations (` + allocationColumns + `)
		VALUES (:id, :payment_id, :installment_id, :principal_amount, :interest_amount,
			:other_charges_amount, :arrears_amount, :discount_amount)
	`

	for _, line := range payment.Allocations {
		line.PaymentID = payment.ID
		if _, err := sqlx.NamedExecContext(ctx, r.q, query, line); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE id = $1
	`

	var payment domain.Payment
	if err := sqlx.GetContext(ctx, r.q, &payment, query, id); err != nil {
		return nil, notFound(err, "payment", id)
	}
	if err := r.loadAllocations(ctx, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) GetByRequestID(ctx context.Context, requestID string) (*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE request_id = $1
	`

	var payment domain.Payment
	if err := sqlx.GetContext(ctx, r.q, &payment, query, requestID); err != nil {
		return nil, notFound(err, "payment", stringID(requestID))
	}
	if err := r.loadAllocations(ctx, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE loan_id = $1
		ORDER BY payment_date, created_at
	`

	var payments []*domain.Payment
	if err := sqlx.SelectContext(ctx, r.q, &payments, query, loanID); err != nil {
		return nil, mapError(err)
	}
	for _, p := range payments {
		if err := r.loadAllocations(ctx, p); err != nil {
			return nil, err
		}
	}
	return payments, nil
}

func (r *paymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	query := `
		UPDATE payments
		SET principal_applied_amount = :principal_applied_amount, interest_applied_amount = :interest_applied_amount,
			arrears_applied_amount = :arrears_applied_amount, other_charges_applied_amount = :other_charges_applied_amount,
			discount_amount = :discount_amount, status = :status, reversed_at = :reversed_at,
			reversal_reason = :reversal_reason, reversed_by = :reversed_by, notes = :notes,
			updated_by = :updated_by, updated_at = :updated_at
		WHERE id = :id
	`

	res, err := sqlx.NamedExecContext(ctx, r.q, query, payment)
	if err != nil {
		return mapError(err)
	}
	if err := expectRow(res, "payment", payment.ID); err != nil {
		return err
	}

	if _, err := r.q.ExecContext(ctx, `DELETE FROM payment_allocations WHERE payment_id = $1`, payment.ID); err != nil {
		return mapError(err)
	}
	return r.insertAllocations(ctx, payment)
}

func (r *paymentRepository) loadAllocations(ctx context.Context, payment *domain.Payment) error {
	query := `
		SELECT ` + allocationColumns + `
		FROM payment_allocations
		WHERE payment_id = $1
	`

	var lines []*domain.PaymentAllocation
	if err := sqlx.SelectContext(ctx, r.q, &lines, query, payment.ID); err != nil {
		return mapError(err)
	}
	payment.Allocations = lines
	return nil
}

// stringID lets plain string keys be reported like entity ids.
type stringID string

func (s stringID) String() string { return string(s) }
