package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/segyhp/credit-engine/internal/domain"
)

// ClientRepository defines the interface for client data operations
type ClientRepository interface {
	// Create creates a new client
	Create(ctx context.Context, client *domain.Client) error

	// GetByID retrieves a client that has not been soft-deleted
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Client, error)

	// GetForUpdate retrieves a client and locks it until the transaction ends
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Client, error)

	// Update updates a client
	Update(ctx context.Context, client *domain.Client) error

	// List retrieves every client that has not been soft-deleted
	List(ctx context.Context) ([]*domain.Client, error)
}

// LoanRepository defines the interface for loan and installment data operations
type LoanRepository interface {
	// Create creates a new loan
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan by its id
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// GetForUpdate retrieves a loan and locks it until the transaction ends
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// Update updates a loan
	Update(ctx context.Context, loan *domain.Loan) error

	// ListByClient retrieves every loan of a client
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]*domain.Loan, error)

	// ListByStatus retrieves loans in any of the given statuses
	ListByStatus(ctx context.Context, statuses ...domain.LoanStatus) ([]*domain.Loan, error)

	// CreateSchedule creates installments
	CreateSchedule(ctx context.Context, installments []*domain.Installment) error

	// GetScheduleByLoanID retrieves a loan's installments ordered by number
	GetScheduleByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Installment, error)

	// GetInstallment retrieves one installment
	GetInstallment(ctx context.Context, id uuid.UUID) (*domain.Installment, error)

	// UpdateInstallments updates installments
	UpdateInstallments(ctx context.Context, installments []*domain.Installment) error
}

// PaymentRepository defines the interface for payment data operations
type PaymentRepository interface {
	// Create creates a payment together with its allocation lines
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment with its allocation lines
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)

	// GetByRequestID retrieves the payment recorded for a caller request id
	GetByRequestID(ctx context.Context, requestID string) (*domain.Payment, error)

	// GetByLoanID retrieves all payments for a loan, oldest first
	GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error)

	// Update updates a payment's status, breakdown and reversal metadata, and
	// replaces its allocation lines
	Update(ctx context.Context, payment *domain.Payment) error
}

// Tx groups the repositories bound to one unit of work.
type Tx interface {
	Clients() ClientRepository
	Loans() LoanRepository
	Payments() PaymentRepository
}

// Store is the transactional entry point. Repositories returned directly by the
// store run each call on its own.
type Store interface {
	Tx

	// RunInTx runs fn inside one serializable transaction. Serialization failures
	// are retried; any error returned by fn rolls everything back.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// ReadInTx runs fn against one consistent read-only snapshot. It takes no row
	// locks, so it never waits on a writer; any write inside fn fails.
	ReadInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Ping(ctx context.Context) error
}

// LoadAggregate locks the loan, then its client, and loads the installments.
// Callers must hold a transaction.
func LoadAggregate(ctx context.Context, tx Tx, loanID uuid.UUID) (*domain.LoanAggregate, error) {
	loan, err := tx.Loans().GetForUpdate(ctx, loanID)
	if err != nil {
		return nil, err
	}
	client, err := tx.Clients().GetForUpdate(ctx, loan.ClientID)
	if err != nil {
		return nil, err
	}
	installments, err := tx.Loans().GetScheduleByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return &domain.LoanAggregate{Client: client, Loan: loan, Installments: installments}, nil
}

// ReadAggregate loads the loan, its client and its installments without locking.
// Callers that need a consistent view run it inside ReadInTx.
func ReadAggregate(ctx context.Context, tx Tx, loanID uuid.UUID) (*domain.LoanAggregate, error) {
	loan, err := tx.Loans().GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	client, err := tx.Clients().GetByID(ctx, loan.ClientID)
	if err != nil {
		return nil, err
	}
	installments, err := tx.Loans().GetScheduleByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return &domain.LoanAggregate{Client: client, Loan: loan, Installments: installments}, nil
}

// SaveAggregate persists every part of an aggregate.
func SaveAggregate(ctx context.Context, tx Tx, agg *domain.LoanAggregate) error {
	if err := tx.Loans().Update(ctx, agg.Loan); err != nil {
		return err
	}
	if err := tx.Loans().UpdateInstallments(ctx, agg.Installments); err != nil {
		return err
	}
	return tx.Clients().Update(ctx, agg.Client)
}
