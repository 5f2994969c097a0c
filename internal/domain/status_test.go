package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customError "github.com/segyhp/credit-engine/pkg/errors"
)

func TestCheckLoanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    LoanStatus
		to      LoanStatus
		cause   Cause
		allowed bool
	}{
		{name: "disbursement activates draft", from: LoanStatusDraft, to: LoanStatusActive, cause: CauseLifecycle, allowed: true},
		{name: "allocation cannot activate draft", from: LoanStatusDraft, to: LoanStatusActive, cause: CauseAllocation},
		{name: "payment settles loan", from: LoanStatusPartiallyPaid, to: LoanStatusPaid, cause: CauseAllocation, allowed: true},
		{name: "accrual cannot settle loan", from: LoanStatusOverdue, to: LoanStatusPaid, cause: CauseAccrual},
		{name: "accrual marks overdue", from: LoanStatusActive, to: LoanStatusOverdue, cause: CauseAccrual, allowed: true},
		{name: "reversal reopens paid loan", from: LoanStatusPaid, to: LoanStatusPartiallyPaid, cause: CauseReversal, allowed: true},
		{name: "allocation cannot reopen paid loan", from: LoanStatusPaid, to: LoanStatusActive, cause: CauseAllocation},
		{name: "written off is final", from: LoanStatusWrittenOff, to: LoanStatusActive, cause: CauseReversal},
		{name: "restructured is final", from: LoanStatusRestructured, to: LoanStatusActive, cause: CauseLifecycle},
		{name: "restructure open loan", from: LoanStatusOverdue, to: LoanStatusRestructured, cause: CauseLifecycle, allowed: true},
		{name: "external write is never allowed", from: LoanStatusActive, to: LoanStatusPaid, cause: CauseExternal},
		{name: "external same-state write is not allowed", from: LoanStatusActive, to: LoanStatusActive, cause: CauseExternal},
		{name: "same state is a no-op", from: LoanStatusOverdue, to: LoanStatusOverdue, cause: CauseAccrual, allowed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckLoanTransition(uuid.New(), tt.from, tt.to, tt.cause)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, customError.ErrIllegalTransition)
		})
	}
}

func TestCheckInstallmentTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    InstallmentStatus
		to      InstallmentStatus
		cause   Cause
		allowed bool
	}{
		{name: "partial payment", from: InstallmentStatusPending, to: InstallmentStatusPartiallyPaid, cause: CauseAllocation, allowed: true},
		{name: "accrual marks overdue", from: InstallmentStatusPartiallyPaid, to: InstallmentStatusOverdue, cause: CauseAccrual, allowed: true},
		{name: "allocation cannot mark overdue", from: InstallmentStatusPending, to: InstallmentStatusOverdue, cause: CauseAllocation},
		{name: "reschedule", from: InstallmentStatusOverdue, to: InstallmentStatusRescheduled, cause: CauseLifecycle, allowed: true},
		{name: "rescheduled is final", from: InstallmentStatusRescheduled, to: InstallmentStatusPending, cause: CauseReversal},
		{name: "forgiven is final", from: InstallmentStatusForgiven, to: InstallmentStatusPaid, cause: CauseAllocation},
		{name: "paid cannot be rescheduled", from: InstallmentStatusPaid, to: InstallmentStatusRescheduled, cause: CauseLifecycle},
		{name: "reversal reopens paid", from: InstallmentStatusPaid, to: InstallmentStatusPending, cause: CauseReversal, allowed: true},
		{name: "external write", from: InstallmentStatusPending, to: InstallmentStatusPaid, cause: CauseExternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckInstallmentTransition(uuid.New(), tt.from, tt.to, tt.cause)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, customError.ErrIllegalTransition)
		})
	}
}

func TestCheckPaymentTransition(t *testing.T) {
	assert.NoError(t, CheckPaymentTransition(uuid.New(), PaymentStatusPending, PaymentStatusConfirmed, CauseAllocation))
	assert.NoError(t, CheckPaymentTransition(uuid.New(), PaymentStatusPending, PaymentStatusCancelled, CauseLifecycle))
	assert.NoError(t, CheckPaymentTransition(uuid.New(), PaymentStatusConfirmed, PaymentStatusReversed, CauseReversal))

	assert.ErrorIs(t, CheckPaymentTransition(uuid.New(), PaymentStatusConfirmed, PaymentStatusCancelled, CauseLifecycle),
		customError.ErrIllegalTransition)
	assert.ErrorIs(t, CheckPaymentTransition(uuid.New(), PaymentStatusReversed, PaymentStatusConfirmed, CauseAllocation),
		customError.ErrIllegalTransition)
	assert.ErrorIs(t, CheckPaymentTransition(uuid.New(), PaymentStatusCancelled, PaymentStatusConfirmed, CauseAllocation),
		customError.ErrIllegalTransition)
}

func TestIllegalTransitionCarriesEntity(t *testing.T) {
	id := uuid.New()
	err := CheckLoanTransition(id, LoanStatusPaid, LoanStatusWrittenOff, CauseLifecycle)

	var be *customError.BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, customError.ErrCodeIllegalTransition, be.Code)
	assert.Equal(t, id.String(), be.EntityID)
}

func TestInstallment_RecomputeAndDerive(t *testing.T) {
	inst := &Installment{
		ID:                 uuid.New(),
		PrincipalAmount:    decimal.NewFromInt(100),
		InterestAmount:     decimal.NewFromInt(20),
		OtherChargesAmount: decimal.NewFromInt(5),
		ArrearsAmount:      decimal.NewFromInt(3),
		Status:             InstallmentStatusPending,
	}
	inst.Recompute()
	assert.True(t, inst.TotalAmount.Equal(decimal.NewFromInt(125)))
	assert.True(t, inst.PendingBalance.Equal(decimal.NewFromInt(128)))
	assert.Equal(t, InstallmentStatusPending, inst.DeriveStatus())

	inst.InterestPaidAmount = decimal.NewFromInt(20)
	inst.Recompute()
	assert.True(t, inst.PaidAmount.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, InstallmentStatusPartiallyPaid, inst.DeriveStatus())

	inst.DaysOverdue = 4
	assert.Equal(t, InstallmentStatusOverdue, inst.DeriveStatus())

	inst.PrincipalPaidAmount = decimal.NewFromInt(100)
	inst.OtherChargesPaidAmount = decimal.NewFromInt(5)
	inst.ArrearsPaidAmount = decimal.NewFromInt(3)
	inst.Recompute()
	assert.True(t, inst.PendingBalance.IsZero())
	assert.Equal(t, InstallmentStatusPaid, inst.DeriveStatus())

	inst.Status = InstallmentStatusForgiven
	assert.Equal(t, InstallmentStatusForgiven, inst.DeriveStatus())
}

func TestInstallment_SetStatusTracksPaidDate(t *testing.T) {
	at := time.Date(2024, 5, 3, 15, 4, 5, 0, time.UTC)
	inst := &Installment{ID: uuid.New(), Status: InstallmentStatusPartiallyPaid}

	require.NoError(t, inst.SetStatus(InstallmentStatusPaid, CauseAllocation, at))
	require.NotNil(t, inst.PaidDate)
	assert.Equal(t, time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC), *inst.PaidDate)

	require.NoError(t, inst.SetStatus(InstallmentStatusPartiallyPaid, CauseReversal, at))
	assert.Nil(t, inst.PaidDate)

	err := inst.SetStatus(InstallmentStatusPaid, CauseExternal, at)
	assert.ErrorIs(t, err, customError.ErrIllegalTransition)
	assert.Equal(t, InstallmentStatusPartiallyPaid, inst.Status)
}

func TestLoanAggregate_DeriveLoanStatus(t *testing.T) {
	paid := &Installment{Status: InstallmentStatusPaid}
	pending := &Installment{Status: InstallmentStatusPending}
	overdue := &Installment{Status: InstallmentStatusOverdue}
	forgiven := &Installment{Status: InstallmentStatusForgiven}

	tests := []struct {
		name         string
		status       LoanStatus
		totalPaid    int64
		installments []*Installment
		expected     LoanStatus
	}{
		{name: "nothing paid", status: LoanStatusActive, installments: []*Installment{pending, pending}, expected: LoanStatusActive},
		{name: "some paid", status: LoanStatusActive, totalPaid: 10, installments: []*Installment{paid, pending}, expected: LoanStatusPartiallyPaid},
		{name: "one overdue", status: LoanStatusPartiallyPaid, totalPaid: 10, installments: []*Installment{paid, overdue}, expected: LoanStatusOverdue},
		{name: "all settled or voided", status: LoanStatusOverdue, totalPaid: 10, installments: []*Installment{paid, forgiven}, expected: LoanStatusPaid},
		{name: "written off kept", status: LoanStatusWrittenOff, installments: []*Installment{pending}, expected: LoanStatusWrittenOff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := &LoanAggregate{
				Loan:         &Loan{Status: tt.status, TotalPaidAmount: decimal.NewFromInt(tt.totalPaid)},
				Installments: tt.installments,
			}
			assert.Equal(t, tt.expected, agg.DeriveLoanStatus())
		})
	}
}

func TestPaymentFrequency_Advance(t *testing.T) {
	anchor := time.Date(2023, 8, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), FrequencySemiannual.Advance(anchor, 1))
	assert.Equal(t, time.Date(2023, 10, 31, 0, 0, 0, 0, time.UTC), FrequencyBimonthly.Advance(anchor, 1))
	assert.Equal(t, time.Date(2023, 9, 14, 0, 0, 0, 0, time.UTC), FrequencyBiweekly.Advance(anchor, 1))
	assert.False(t, PaymentFrequency("daily").Valid())
}
