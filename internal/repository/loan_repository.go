package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/segyhp/credit-engine/internal/domain"
)

const loanColumns = `id, code, client_id, currency, original_amount, interest_rate_percentage, interest_method,
	total_installments, payment_frequency, disbursement_date, first_due_date,
	principal_balance, interest_balance, other_charges_balance, arrears_balance, total_balance,
	total_paid_amount, status, grace_days, arrears_rate_percentage, arrears_period_days,
	allows_principal_payment, allows_early_settlement, early_settlement_discount,
	settlement_date, original_loan_id, notes, created_by, updated_by, created_at, updated_at`

const installmentColumns = `id, loan_id, installment_number, due_date, original_due_date,
	principal_amount, interest_amount, other_charges_amount, total_amount, paid_amount,
	principal_paid_amount, interest_paid_amount, other_charges_paid_amount,
	arrears_amount, arrears_paid_amount, days_overdue, pending_balance, status, paid_date,
	was_rescheduled, original_installment_id, notes, created_by, updated_by, created_at, updated_at`

type loanRepository struct {
	q sqlx.ExtContext
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (` + loanColumns + `)
		VALUES (:id, :code, :client_id, :currency, :original_amount, :interest_rate_percentage, :interest_method,
			:total_installments, :payment_frequency, :disbursement_date, :first_due_date,
			:principal_balance, :interest_balance, :other_charges_balance, :arrears_balance, :total_balance,
			:total_paid_amount, :status, :grace_days, :arrears_rate_percentage, :arrears_period_days,
			:allows_principal_payment, :allows_early_settlement, :early_settlement_discount,
			:settlement_date, :original_loan_id, :notes, :created_by, :updated_by, :created_at, :updated_at)
	`

	_, err := sqlx.NamedExecContext(ctx, r.q, query, loan)
	return mapError(err)
}

func (r *loanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return r.get(ctx, id, "")
}

func (r *loanRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *loanRepository) get(ctx context.Context, id uuid.UUID, lock string) (*domain.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE id = $1` + lock

	var loan domain.Loan
	if err := sqlx.GetContext(ctx, r.q, &loan, query, id); err != nil {
		return nil, notFound(err, "loan", id)
	}
	return &loan, nil
}

// Update writes balances, status and settlement fields. Terms are immutable once
// the loan leaves draft.
func (r *loanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	query := `
		UPDATE loans
		SET principal_balance = :principal_balance, interest_balance = :interest_balance,
			other_charges_balance = :other_charges_balance, arrears_balance = :arrears_balance,
			total_balance = :total_balance, total_paid_amount = :total_paid_amount, status = :status,
			settlement_date = :settlement_date, notes = :notes,
			updated_by = :updated_by, updated_at = :updated_at
		WHERE id = :id
	`

	res, err := sqlx.NamedExecContext(ctx, r.q, query, loan)
	if err != nil {
		return mapError(err)
	}
	return expectRow(res, "loan", loan.ID)
}

func (r *loanRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*domain.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE client_id = $1
		ORDER BY created_at
	`

	var loans []*domain.Loan
	if err := sqlx.SelectContext(ctx, r.q, &loans, query, clientID); err != nil {
		return nil, mapError(err)
	}
	return loans, nil
}

func (r *loanRepository) ListByStatus(ctx context.Context, statuses ...domain.LoanStatus) ([]*domain.Loan, error) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE status = ANY($1)
		ORDER BY created_at
	`

	var loans []*domain.Loan
	if err := sqlx.SelectContext(ctx, r.q, &loans, query, pq.Array(values)); err != nil {
		return nil, mapError(err)
	}
	return loans, nil
}

func (r *loanRepository) CreateSchedule(ctx context.Context, installments []*domain.Installment) error {
	query := `
		INSERT INTO installments (` + installmentColumns + `)
		VALUES (:id, :loan_id, :installment_number, :due_date, :original_due_date,
			:principal_amount, :interest_amount, :other_charges_amount, :total_amount, :paid_amount,
			:principal_paid_amount, :interest_paid_amount, :other_charges_paid_amount,
			:arrears_amount, :arrears_paid_amount, :days_overdue, :pending_balance, :status, :paid_date,
			:was_rescheduled, :original_installment_id, :notes, :created_by, :updated_by, :created_at, :updated_at)
	`

	for _, inst := range installments {
		if _, err := sqlx.NamedExecContext(ctx, r.q, query, inst); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (r *loanRepository) GetScheduleByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Installment, error) {
	query := `
		SELECT ` + installmentColumns + `
		FROM installments
		WHERE loan_id = $1
		ORDER BY installment_number
	`

	var installments []*domain.Installment
	if err := sqlx.SelectContext(ctx, r.q, &installments, query, loanID); err != nil {
		return nil, mapError(err)
	}
	return installments, nil
}

func (r *loanRepository) GetInstallment(ctx context.Context, id uuid.UUID) (*domain.Installment, error) {
	query := `
		SELECT ` + installmentColumns + `
		FROM installments
		WHERE id = $1
	`

	var inst domain.Installment
	if err := sqlx.GetContext(ctx, r.q, &inst, query, id); err != nil {
		return nil, notFound(err, "installment", id)
	}
	return &inst, nil
}

func (r *loanRepository) UpdateInstallments(ctx context.Context, installments []*domain.Installment) error {
	query := `
		UPDATE installments
		SET due_date = :due_date, paid_amount = :paid_amount,
			principal_paid_amount = :principal_paid_amount, interest_paid_amount = :interest_paid_amount,
			other_charges_paid_amount = :other_charges_paid_amount,
			arrears_amount = :arrears_amount, arrears_paid_amount = :arrears_paid_amount,
			days_overdue = :days_overdue, pending_balance = :pending_balance, status = :status,
			paid_date = :paid_date, was_rescheduled = :was_rescheduled, notes = :notes,
			updated_by = :updated_by, updated_at = :updated_at
		WHERE id = :id
	`

	for _, inst := range installments {
		res, err := sqlx.NamedExecContext(ctx, r.q, query, inst)
		if err != nil {
			return mapError(err)
		}
		if err := expectRow(res, "installment", inst.ID); err != nil {
			return err
		}
	}
	return nil
}
