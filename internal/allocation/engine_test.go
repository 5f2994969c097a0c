package allocation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/credit-engine/internal/domain"
	"github.com/segyhp/credit-engine/internal/ledger"
	customError "github.com/segyhp/credit-engine/pkg/errors"
)

var payDay = time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type instSpec struct {
	principal, interest, other, arrears string
}

func newAggregate(specs ...instSpec) *domain.LoanAggregate {
	client := &domain.Client{ID: uuid.New(), MaxCreditLimit: dec("100000"), Status: domain.ClientStatusActive}
	loan := &domain.Loan{
		ID:                     uuid.New(),
		ClientID:               client.ID,
		Status:                 domain.LoanStatusActive,
		AllowsPrincipalPayment: true,
		AllowsEarlySettlement:  true,
	}
	agg := &domain.LoanAggregate{Client: client, Loan: loan}
	for i, s := range specs {
		inst := &domain.Installment{
			ID:                 uuid.New(),
			LoanID:             loan.ID,
			InstallmentNumber:  i + 1,
			DueDate:            time.Date(2024, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC),
			PrincipalAmount:    dec(s.principal),
			InterestAmount:     dec(s.interest),
			OtherChargesAmount: dec(s.other),
			ArrearsAmount:      dec(s.arrears),
			Status:             domain.InstallmentStatusPending,
		}
		if inst.ArrearsAmount.IsPositive() {
			inst.DaysOverdue = 10
			inst.Status = domain.InstallmentStatusOverdue
		}
		agg.Installments = append(agg.Installments, inst)
	}
	if err := ledger.Rebalance(agg, decimal.Zero); err != nil {
		panic(err)
	}
	if err := agg.SyncStatuses(domain.CauseAccrual, payDay); err != nil {
		panic(err)
	}
	return agg
}

func TestApply_WaterfallOrder(t *testing.T) {
	agg := newAggregate(instSpec{principal: "100", interest: "20", other: "0", arrears: "10"})
	inst := agg.Installments[0]

	res, err := Apply(agg, Request{
		Classification: domain.PaymentRegularInstallment,
		Amount:         dec("25"),
		InstallmentID:  &inst.ID,
		Date:           payDay,
	})
	require.NoError(t, err)

	assert.True(t, inst.ArrearsDue().IsZero())
	assert.True(t, inst.InterestDue().Equal(dec("15")))
	assert.True(t, inst.PrincipalDue().Equal(dec("100")))
	assert.True(t, res.Applied.Arrears.Equal(dec("10")))
	assert.True(t, res.Applied.Interest.Equal(dec("15")))
	assert.True(t, res.Applied.Principal.IsZero())
	assert.True(t, res.Applied.Total().Equal(dec("25")))
	assert.Equal(t, domain.InstallmentStatusOverdue, inst.Status)
	assert.True(t, agg.Loan.TotalBalance.Equal(dec("105")))
}

func TestApply_Overpayment(t *testing.T) {
	agg := newAggregate(instSpec{principal: "100", interest: "20", other: "0", arrears: "10"})
	inst := agg.Installments[0]
	before := agg.Clone()

	res, err := Apply(agg, Request{
		Classification: domain.PaymentRegularInstallment,
		Amount:         dec("200"),
		InstallmentID:  &inst.ID,
		Date:           payDay,
	})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, customError.ErrOverpayment)
	assert.Equal(t, before.Installments[0], agg.Installments[0])
	assert.Equal(t, before.Loan, agg.Loan)
}

func TestPlan_Classifications(t *testing.T) {
	tests := []struct {
		name           string
		classification domain.PaymentClassification
		amount         string
		targetFirst    bool
		configure      func(*domain.Loan)
		expected       domain.Breakdown
		expectedErr    error
	}{
		{
			name:           "principal only",
			classification: domain.PaymentPrincipal,
			amount:         "40",
			targetFirst:    true,
			expected:       domain.Breakdown{Principal: dec("40")},
		},
		{
			name:           "principal only when not allowed",
			classification: domain.PaymentPrincipal,
			amount:         "40",
			targetFirst:    true,
			configure:      func(l *domain.Loan) { l.AllowsPrincipalPayment = false },
			expectedErr:    customError.ErrDisallowedOperation,
		},
		{
			name:           "interest only",
			classification: domain.PaymentInterest,
			amount:         "20",
			targetFirst:    true,
			expected:       domain.Breakdown{Interest: dec("20")},
		},
		{
			name:           "interest only beyond interest due",
			classification: domain.PaymentInterest,
			amount:         "20.01",
			targetFirst:    true,
			expectedErr:    customError.ErrOverpayment,
		},
		{
			name:           "arrears only",
			classification: domain.PaymentArrears,
			amount:         "4",
			targetFirst:    true,
			expected:       domain.Breakdown{Arrears: dec("4")},
		},
		{
			name:           "regular across loan in due order",
			classification: domain.PaymentRegularInstallment,
			amount:         "140",
			expected:       domain.Breakdown{Arrears: dec("10"), Interest: dec("25"), OtherCharges: dec("5"), Principal: dec("100")},
		},
		{
			name:           "extraordinary when not allowed",
			classification: domain.PaymentExtraordinary,
			amount:         "10",
			configure:      func(l *domain.Loan) { l.AllowsPrincipalPayment = false },
			expectedErr:    customError.ErrDisallowedOperation,
		},
		{
			name:           "settlement when not allowed",
			classification: domain.PaymentTotalSettlement,
			amount:         "245",
			configure:      func(l *domain.Loan) { l.AllowsEarlySettlement = false },
			expectedErr:    customError.ErrDisallowedOperation,
		},
		{
			name:           "zero amount",
			classification: domain.PaymentRegularInstallment,
			amount:         "0",
			expectedErr:    customError.ErrInvalidPaymentAmount,
		},
		{
			name:           "sub-cent amount",
			classification: domain.PaymentRegularInstallment,
			amount:         "1.001",
			expectedErr:    customError.ErrInvalidPaymentAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := newAggregate(
				instSpec{principal: "100", interest: "20", other: "5", arrears: "10"},
				instSpec{principal: "100", interest: "10", other: "0", arrears: "0"},
			)
			if tt.configure != nil {
				tt.configure(agg.Loan)
			}
			req := Request{Classification: tt.classification, Amount: dec(tt.amount), Date: payDay}
			if tt.targetFirst {
				req.InstallmentID = &agg.Installments[0].ID
			}

			res, err := Plan(agg, req)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, res.Applied.Principal.Equal(tt.expected.Principal), "principal %s", res.Applied.Principal)
			assert.True(t, res.Applied.Interest.Equal(tt.expected.Interest), "interest %s", res.Applied.Interest)
			assert.True(t, res.Applied.OtherCharges.Equal(tt.expected.OtherCharges), "other %s", res.Applied.OtherCharges)
			assert.True(t, res.Applied.Arrears.Equal(tt.expected.Arrears), "arrears %s", res.Applied.Arrears)
		})
	}
}

func TestApply_ExtraordinaryPaysLatestFirst(t *testing.T) {
	agg := newAggregate(
		instSpec{principal: "100", interest: "10", other: "0", arrears: "0"},
		instSpec{principal: "100", interest: "10", other: "0", arrears: "0"},
	)

	res, err := Apply(agg, Request{Classification: domain.PaymentExtraordinary, Amount: dec("150"), Date: payDay})
	require.NoError(t, err)

	require.Len(t, res.Lines, 2)
	assert.Equal(t, agg.Installments[1].ID, res.Lines[0].InstallmentID)
	assert.True(t, agg.Installments[1].PrincipalDue().IsZero())
	assert.True(t, agg.Installments[0].PrincipalDue().Equal(dec("50")))
	assert.True(t, agg.Loan.PrincipalBalance.Equal(dec("50")))
	assert.True(t, agg.Client.UsedCreditLimit.Equal(dec("50")))
}

func TestApply_TotalSettlement(t *testing.T) {
	newLoan := func() *domain.LoanAggregate {
		agg := newAggregate(
			instSpec{principal: "100", interest: "10", other: "0", arrears: "5"},
			instSpec{principal: "100", interest: "10", other: "0", arrears: "0"},
		)
		agg.Loan.EarlySettlementDiscount = dec("10")
		return agg
	}

	quote := SettlementQuote(newLoan())
	assert.True(t, quote.Outstanding.Equal(dec("225")))
	assert.True(t, quote.Discount.Equal(dec("20")))
	assert.True(t, quote.Payoff.Equal(dec("205")))

	t.Run("exact payoff settles the loan", func(t *testing.T) {
		agg := newLoan()
		res, err := Apply(agg, Request{Classification: domain.PaymentTotalSettlement, Amount: dec("205"), Date: payDay})
		require.NoError(t, err)

		assert.True(t, res.Discount.Equal(dec("20")))
		assert.True(t, res.Applied.Total().Equal(dec("205")))
		assert.True(t, agg.Loan.TotalBalance.IsZero())
		assert.Equal(t, domain.LoanStatusPaid, agg.Loan.Status)
		require.NotNil(t, agg.Loan.SettlementDate)
		for _, inst := range agg.Installments {
			assert.Equal(t, domain.InstallmentStatusPaid, inst.Status)
			assert.NotNil(t, inst.PaidDate)
		}
		assert.True(t, agg.Loan.TotalPaidAmount.Equal(dec("205")))
		assert.True(t, agg.Client.UsedCreditLimit.IsZero())
	})

	t.Run("short of payoff", func(t *testing.T) {
		_, err := Plan(newLoan(), Request{Classification: domain.PaymentTotalSettlement, Amount: dec("204.99"), Date: payDay})
		assert.ErrorIs(t, err, customError.ErrInvalidPaymentAmount)
	})

	t.Run("above payoff", func(t *testing.T) {
		_, err := Plan(newLoan(), Request{Classification: domain.PaymentTotalSettlement, Amount: dec("205.01"), Date: payDay})
		assert.ErrorIs(t, err, customError.ErrOverpayment)
	})
}

func TestPlan_Targets(t *testing.T) {
	agg := newAggregate(instSpec{principal: "100", interest: "10", other: "0", arrears: "0"})

	missing := uuid.New()
	_, err := Plan(agg, Request{Classification: domain.PaymentRegularInstallment, Amount: dec("1"), InstallmentID: &missing, Date: payDay})
	assert.ErrorIs(t, err, customError.ErrNotFound)

	agg.Installments[0].Status = domain.InstallmentStatusRescheduled
	id := agg.Installments[0].ID
	_, err = Plan(agg, Request{Classification: domain.PaymentRegularInstallment, Amount: dec("1"), InstallmentID: &id, Date: payDay})
	assert.ErrorIs(t, err, customError.ErrInvalidState)

	agg.Loan.Status = domain.LoanStatusWrittenOff
	_, err = Plan(agg, Request{Classification: domain.PaymentRegularInstallment, Amount: dec("1"), Date: payDay})
	assert.ErrorIs(t, err, customError.ErrInvalidState)
}

func TestReverse_RoundTrip(t *testing.T) {
	amounts := []string{"0.01", "25", "80", "130"}
	for _, amount := range amounts {
		t.Run(amount, func(t *testing.T) {
			agg := newAggregate(instSpec{principal: "100", interest: "20", other: "0", arrears: "10"})
			inst := agg.Installments[0]
			before := agg.Clone()

			res, err := Apply(agg, Request{
				Classification: domain.PaymentRegularInstallment,
				Amount:         dec(amount),
				InstallmentID:  &inst.ID,
				Date:           payDay,
			})
			require.NoError(t, err)

			payment := &domain.Payment{
				ID:          uuid.New(),
				LoanID:      agg.Loan.ID,
				TotalAmount: dec(amount),
				Status:      domain.PaymentStatusConfirmed,
				Allocations: res.Lines,
			}
			payment.SetApplied(res.Applied)

			require.NoError(t, Reverse(agg, payment, payDay))
			assert.Equal(t, domain.PaymentStatusReversed, payment.Status)

			restored := agg.Installments[0]
			original := before.Installments[0]
			assert.Equal(t, original.Status, restored.Status)
			assert.Nil(t, restored.PaidDate)
			assert.True(t, original.PaidAmount.Equal(restored.PaidAmount))
			assert.True(t, original.PrincipalPaidAmount.Equal(restored.PrincipalPaidAmount))
			assert.True(t, original.InterestPaidAmount.Equal(restored.InterestPaidAmount))
			assert.True(t, original.ArrearsPaidAmount.Equal(restored.ArrearsPaidAmount))
			assert.True(t, original.PendingBalance.Equal(restored.PendingBalance))
			assert.Equal(t, before.Loan.Status, agg.Loan.Status)
			assert.True(t, before.Loan.TotalBalance.Equal(agg.Loan.TotalBalance))
			assert.True(t, before.Client.UsedCreditLimit.Equal(agg.Client.UsedCreditLimit))

			err = Reverse(agg, payment, payDay)
			assert.ErrorIs(t, err, customError.ErrAlreadyReversed)
		})
	}
}

func TestReverse_RejectsVoidedTarget(t *testing.T) {
	agg := newAggregate(instSpec{principal: "100", interest: "20", other: "0", arrears: "0"})
	inst := agg.Installments[0]
	res, err := Apply(agg, Request{Classification: domain.PaymentRegularInstallment, Amount: dec("20"), InstallmentID: &inst.ID, Date: payDay})
	require.NoError(t, err)

	inst.Status = domain.InstallmentStatusRescheduled
	payment := &domain.Payment{ID: uuid.New(), TotalAmount: dec("20"), Status: domain.PaymentStatusConfirmed, Allocations: res.Lines}

	assert.ErrorIs(t, Reverse(agg, payment, payDay), customError.ErrInvalidState)
	assert.Equal(t, domain.PaymentStatusConfirmed, payment.Status)
}

func TestReverse_PendingPaymentIsIllegal(t *testing.T) {
	agg := newAggregate(instSpec{principal: "100", interest: "20", other: "0", arrears: "0"})
	payment := &domain.Payment{ID: uuid.New(), Status: domain.PaymentStatusPending}
	assert.ErrorIs(t, Reverse(agg, payment, payDay), customError.ErrIllegalTransition)
}
