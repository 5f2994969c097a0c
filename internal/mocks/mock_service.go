package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/credit-engine/internal/allocation"
	"github.com/segyhp/credit-engine/internal/domain"
)

type MockLoanService struct {
	mock.Mock
}

func NewMockLoanService() *MockLoanService {
	return &MockLoanService{}
}

func (m *MockLoanService) RegisterClient(ctx context.Context, req *domain.RegisterClientRequest, actor string) (*domain.Client, error) {
	args := m.Called(ctx, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Client), args.Error(1)
}

func (m *MockLoanService) GetClient(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Client), args.Error(1)
}

func (m *MockLoanService) SetClientStatus(ctx context.Context, id uuid.UUID, status domain.ClientStatus, actor string) (*domain.Client, error) {
	args := m.Called(ctx, id, status, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Client), args.Error(1)
}

func (m *MockLoanService) VerifyClientCredit(ctx context.Context, id uuid.UUID) (*domain.ClientCreditReport, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ClientCreditReport), args.Error(1)
}

func (m *MockLoanService) DisburseLoan(ctx context.Context, terms *domain.LoanTerms, actor string) (*domain.CreateLoanResponse, error) {
	args := m.Called(ctx, terms, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreateLoanResponse), args.Error(1)
}

func (m *MockLoanService) GetLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanService) GetSchedule(ctx context.Context, id uuid.UUID) (*domain.ScheduleResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ScheduleResponse), args.Error(1)
}

func (m *MockLoanService) GetLoanBalanceSnapshot(ctx context.Context, id uuid.UUID, asOf *time.Time, materialize bool, actor string) (*domain.BalanceSnapshot, error) {
	args := m.Called(ctx, id, asOf, materialize, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BalanceSnapshot), args.Error(1)
}

func (m *MockLoanService) SettlementQuote(ctx context.Context, id uuid.UUID) (*allocation.Quote, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*allocation.Quote), args.Error(1)
}

func (m *MockLoanService) RestructureLoan(ctx context.Context, id uuid.UUID, terms *domain.RestructureTerms, actor string) (*domain.CreateLoanResponse, error) {
	args := m.Called(ctx, id, terms, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreateLoanResponse), args.Error(1)
}

func (m *MockLoanService) WriteOffLoan(ctx context.Context, id uuid.UUID, reason, actor string) (*domain.Loan, error) {
	args := m.Called(ctx, id, reason, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanService) ChangeLoanStatus(ctx context.Context, id uuid.UUID, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockLoanService) RecordPayment(ctx context.Context, req *domain.RecordPaymentRequest, actor string) (*domain.Payment, error) {
	args := m.Called(ctx, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockLoanService) ConfirmPayment(ctx context.Context, id uuid.UUID, actor string) (*domain.Payment, error) {
	args := m.Called(ctx, id, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockLoanService) CancelPayment(ctx context.Context, id uuid.UUID, reason, actor string) (*domain.Payment, error) {
	args := m.Called(ctx, id, reason, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockLoanService) ReversePayment(ctx context.Context, id uuid.UUID, reason, actor string) (*domain.Payment, error) {
	args := m.Called(ctx, id, reason, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockLoanService) ListPayments(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

func (m *MockLoanService) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockLoanService) RescheduleInstallment(ctx context.Context, id uuid.UUID, req *domain.RescheduleRequest, actor string) (*domain.Installment, error) {
	args := m.Called(ctx, id, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Installment), args.Error(1)
}

func (m *MockLoanService) ForgiveInstallment(ctx context.Context, id uuid.UUID, reason, actor string) (*domain.Installment, error) {
	args := m.Called(ctx, id, reason, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Installment), args.Error(1)
}
