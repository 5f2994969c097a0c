package arrears

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/credit-engine/internal/domain"
)

var due = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func newInstallment(principal, interest string) *domain.Installment {
	inst := &domain.Installment{
		ID:                uuid.New(),
		InstallmentNumber: 1,
		DueDate:           due,
		OriginalDueDate:   due,
		PrincipalAmount:   decimal.RequireFromString(principal),
		InterestAmount:    decimal.RequireFromString(interest),
		Status:            domain.InstallmentStatusPending,
	}
	inst.Recompute()
	return inst
}

func TestCalculator_Compute(t *testing.T) {
	policy := Policy{GraceDays: 5, RatePercentage: decimal.NewFromInt(3)}

	tests := []struct {
		name         string
		asOf         time.Time
		expectedDays int
		expected     string
	}{
		{name: "before due date", asOf: due.AddDate(0, 0, -3), expectedDays: 0, expected: "0"},
		{name: "inside grace period", asOf: due.AddDate(0, 0, 5), expectedDays: 0, expected: "0"},
		{name: "one day past grace", asOf: due.AddDate(0, 0, 6), expectedDays: 1, expected: "1"},
		{name: "one full period past grace", asOf: due.AddDate(0, 0, 35), expectedDays: 30, expected: "30"},
		{name: "clock part is ignored", asOf: due.AddDate(0, 0, 15).Add(23 * time.Hour), expectedDays: 10, expected: "10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := newInstallment("900", "100")
			r := NewCalculator(30).Compute(inst, tt.asOf, policy)
			assert.Equal(t, tt.expectedDays, r.DaysOverdue)
			assert.True(t, r.Arrears.Equal(decimal.RequireFromString(tt.expected)), "got %s", r.Arrears)
		})
	}
}

func TestCalculator_PeriodDaysPrecedence(t *testing.T) {
	inst := newInstallment("1000", "0")
	asOf := due.AddDate(0, 0, 10)

	r := NewCalculator(0).Compute(inst, asOf, Policy{RatePercentage: decimal.NewFromInt(3)})
	assert.True(t, r.Arrears.Equal(decimal.NewFromInt(10)), "default 30 day period, got %s", r.Arrears)

	r = NewCalculator(10).Compute(inst, asOf, Policy{RatePercentage: decimal.NewFromInt(3)})
	assert.True(t, r.Arrears.Equal(decimal.NewFromInt(30)), "calculator period, got %s", r.Arrears)

	r = NewCalculator(10).Compute(inst, asOf, Policy{RatePercentage: decimal.NewFromInt(3), PeriodDays: 1})
	assert.True(t, r.Arrears.Equal(decimal.NewFromInt(300)), "loan period wins, got %s", r.Arrears)
}

func TestCalculator_AccrueIsIdempotent(t *testing.T) {
	calc := NewCalculator(30)
	policy := Policy{RatePercentage: decimal.RequireFromString("2.5")}
	asOf := due.AddDate(0, 0, 17)

	inst := newInstallment("480.33", "19.67")
	require.NoError(t, calc.Accrue(inst, asOf, policy))
	first := inst.Clone()

	require.NoError(t, calc.Accrue(inst, asOf, policy))
	assert.True(t, first.ArrearsAmount.Equal(inst.ArrearsAmount))
	assert.Equal(t, first.DaysOverdue, inst.DaysOverdue)
	assert.True(t, first.PendingBalance.Equal(inst.PendingBalance))
	assert.Equal(t, domain.InstallmentStatusOverdue, inst.Status)

	// 500 * 2.5% * 17 / 30 = 7.0833..
	assert.True(t, inst.ArrearsAmount.Equal(decimal.RequireFromString("7.08")))
	assert.True(t, inst.PendingBalance.Equal(decimal.RequireFromString("507.08")))
}

func TestCalculator_NeverBelowArrearsPaid(t *testing.T) {
	inst := newInstallment("100", "0")
	inst.ArrearsAmount = decimal.NewFromInt(12)
	inst.ArrearsPaidAmount = decimal.NewFromInt(12)
	inst.DaysOverdue = 40
	inst.Status = domain.InstallmentStatusOverdue
	inst.Recompute()

	r := NewCalculator(30).Compute(inst, due.AddDate(0, 0, 3), Policy{RatePercentage: decimal.NewFromInt(1)})
	assert.True(t, r.Arrears.Equal(decimal.NewFromInt(12)), "got %s", r.Arrears)
	assert.False(t, r.Arrears.IsNegative())
}

func TestCalculator_SkipsClosedInstallments(t *testing.T) {
	inst := newInstallment("100", "0")
	inst.PrincipalPaidAmount = decimal.NewFromInt(100)
	inst.Status = domain.InstallmentStatusPaid
	inst.Recompute()

	require.NoError(t, NewCalculator(30).Accrue(inst, due.AddDate(0, 2, 0), Policy{RatePercentage: decimal.NewFromInt(5)}))
	assert.True(t, inst.ArrearsAmount.IsZero())
	assert.Equal(t, 0, inst.DaysOverdue)
	assert.Equal(t, domain.InstallmentStatusPaid, inst.Status)
}

func TestCalculator_AccrueLoan(t *testing.T) {
	loan := &domain.Loan{
		ID:                    uuid.New(),
		Status:                domain.LoanStatusActive,
		GraceDays:             2,
		ArrearsRatePercentage: decimal.NewFromInt(3),
	}
	first := newInstallment("100", "0")
	second := newInstallment("100", "0")
	second.InstallmentNumber = 2
	second.DueDate = due.AddDate(0, 1, 0)
	agg := &domain.LoanAggregate{Loan: loan, Installments: []*domain.Installment{first, second}}

	require.NoError(t, NewCalculator(30).AccrueLoan(agg, due.AddDate(0, 0, 12)))

	assert.Equal(t, domain.InstallmentStatusOverdue, first.Status)
	assert.Equal(t, 10, first.DaysOverdue)
	assert.True(t, first.ArrearsAmount.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, domain.InstallmentStatusPending, second.Status)
	assert.Equal(t, domain.LoanStatusOverdue, loan.Status)

	// back inside the grace period the installment and loan recover
	require.NoError(t, NewCalculator(30).AccrueLoan(agg, due))
	assert.Equal(t, domain.InstallmentStatusPending, first.Status)
	assert.Equal(t, domain.LoanStatusActive, loan.Status)
}
