package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/credit-engine/internal/domain"
)

type MockSnapshotCache struct {
	mock.Mock
}

func (m *MockSnapshotCache) Get(ctx context.Context, loanID uuid.UUID, asOf time.Time) (*domain.BalanceSnapshot, bool, error) {
	args := m.Called(ctx, loanID, asOf)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.BalanceSnapshot), args.Bool(1), args.Error(2)
}

func (m *MockSnapshotCache) Set(ctx context.Context, snap *domain.BalanceSnapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

func (m *MockSnapshotCache) InvalidateLoan(ctx context.Context, loanID uuid.UUID) error {
	args := m.Called(ctx, loanID)
	return args.Error(0)
}

func (m *MockSnapshotCache) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
