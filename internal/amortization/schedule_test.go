package amortization

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/credit-engine/internal/domain"
	customError "github.com/segyhp/credit-engine/pkg/errors"
)

var disbursed = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

func sumPrincipal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Principal)
	}
	return total
}

func TestGenerate_PrincipalSumsExactly(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		rate      string
		count     int
		method    domain.InterestMethod
	}{
		{name: "flat with residual", principal: "1000", rate: "2", count: 3, method: domain.InterestMethodFlat},
		{name: "declining balance", principal: "1000", rate: "1", count: 12, method: domain.InterestMethodDecliningBalance},
		{name: "declining balance odd amount", principal: "5000000.07", rate: "2.5", count: 50, method: domain.InterestMethodDecliningBalance},
		{name: "zero interest declining", principal: "100", rate: "0", count: 7, method: domain.InterestMethodDecliningBalance},
		{name: "tiny principal many installments", principal: "0.05", rate: "0", count: 10, method: domain.InterestMethodFlat},
		{name: "single installment", principal: "999.99", rate: "3", count: 1, method: domain.InterestMethodDecliningBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, err := Generate(Terms{
				Principal:        decimal.RequireFromString(tt.principal),
				RatePercentage:   decimal.RequireFromString(tt.rate),
				Count:            tt.count,
				Frequency:        domain.FrequencyMonthly,
				Method:           tt.method,
				DisbursementDate: disbursed,
			})
			require.NoError(t, err)
			require.Len(t, lines, tt.count)

			assert.True(t, sumPrincipal(lines).Equal(decimal.RequireFromString(tt.principal)),
				"principal sum %s != %s", sumPrincipal(lines), tt.principal)
			assert.True(t, lines[len(lines)-1].RemainingPrincipal.IsZero())
			for _, l := range lines {
				assert.False(t, l.Principal.IsNegative(), "line %d principal negative", l.Number)
				assert.True(t, l.Principal.Equal(l.Principal.Round(2)), "line %d not rounded", l.Number)
			}
		})
	}
}

func TestGenerate_Flat(t *testing.T) {
	lines, err := Generate(Terms{
		Principal:        decimal.NewFromInt(1000),
		RatePercentage:   decimal.NewFromInt(2),
		Count:            3,
		Frequency:        domain.FrequencyMonthly,
		Method:           domain.InterestMethodFlat,
		DisbursementDate: disbursed,
		OtherCharges:     decimal.NewFromInt(5),
	})
	require.NoError(t, err)

	assert.True(t, lines[0].Principal.Equal(decimal.RequireFromString("333.33")))
	assert.True(t, lines[1].Principal.Equal(decimal.RequireFromString("333.33")))
	assert.True(t, lines[2].Principal.Equal(decimal.RequireFromString("333.34")))
	for _, l := range lines {
		assert.True(t, l.Interest.Equal(decimal.NewFromInt(20)))
		assert.True(t, l.OtherCharges.Equal(decimal.NewFromInt(5)))
		assert.True(t, l.Total.Equal(l.Principal.Add(l.Interest).Add(l.OtherCharges)))
	}
}

func TestGenerate_DecliningBalance(t *testing.T) {
	lines, err := Generate(Terms{
		Principal:        decimal.NewFromInt(1000),
		RatePercentage:   decimal.NewFromInt(1),
		Count:            12,
		Frequency:        domain.FrequencyMonthly,
		Method:           domain.InterestMethodDecliningBalance,
		DisbursementDate: disbursed,
	})
	require.NoError(t, err)

	assert.True(t, LevelPayment(decimal.NewFromInt(1000), decimal.RequireFromString("0.01"), 12).
		Equal(decimal.RequireFromString("88.85")))
	assert.True(t, lines[0].Interest.Equal(decimal.NewFromInt(10)))
	assert.True(t, lines[0].Principal.Equal(decimal.RequireFromString("78.85")))
	assert.True(t, lines[1].Interest.LessThan(lines[0].Interest), "interest must decline")
	assert.True(t, lines[11].Principal.GreaterThan(lines[0].Principal))
}

func TestGenerate_DueDates(t *testing.T) {
	tests := []struct {
		name      string
		frequency domain.PaymentFrequency
		first     *time.Time
		expected  []time.Time
	}{
		{
			name:      "weekly",
			frequency: domain.FrequencyWeekly,
			expected: []time.Time{
				time.Date(2024, 2, 7, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 2, 21, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name:      "biweekly",
			frequency: domain.FrequencyBiweekly,
			expected: []time.Time{
				time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name:      "monthly clamps to month end",
			frequency: domain.FrequencyMonthly,
			expected: []time.Time{
				time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 4, 29, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name:      "trimesterly with explicit first due date",
			frequency: domain.FrequencyTrimesterly,
			first:     timePtr(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)),
			expected: []time.Time{
				time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 9, 15, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name:      "annual",
			frequency: domain.FrequencyAnnual,
			expected: []time.Time{
				time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
				time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
				time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, err := Generate(Terms{
				Principal:        decimal.NewFromInt(300),
				RatePercentage:   decimal.NewFromInt(1),
				Count:            3,
				Frequency:        tt.frequency,
				Method:           domain.InterestMethodFlat,
				DisbursementDate: disbursed,
				FirstDueDate:     tt.first,
			})
			require.NoError(t, err)
			for i, l := range lines {
				assert.Equal(t, tt.expected[i], l.DueDate, "installment %d", l.Number)
			}
		})
	}
}

func TestGenerate_InvalidInput(t *testing.T) {
	valid := Terms{
		Principal:        decimal.NewFromInt(1000),
		RatePercentage:   decimal.NewFromInt(1),
		Count:            3,
		Frequency:        domain.FrequencyMonthly,
		Method:           domain.InterestMethodFlat,
		DisbursementDate: disbursed,
	}

	tests := []struct {
		name   string
		mutate func(*Terms)
	}{
		{name: "zero installments", mutate: func(t *Terms) { t.Count = 0 }},
		{name: "negative installments", mutate: func(t *Terms) { t.Count = -2 }},
		{name: "zero principal", mutate: func(t *Terms) { t.Principal = decimal.Zero }},
		{name: "negative principal", mutate: func(t *Terms) { t.Principal = decimal.NewFromInt(-5) }},
		{name: "unknown frequency", mutate: func(t *Terms) { t.Frequency = "fortnightly" }},
		{name: "unknown method", mutate: func(t *Terms) { t.Method = "balloon" }},
		{name: "negative rate", mutate: func(t *Terms) { t.RatePercentage = decimal.NewFromInt(-1) }},
		{name: "first due before disbursement", mutate: func(t *Terms) { t.FirstDueDate = timePtr(disbursed.AddDate(0, 0, -1)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms := valid
			tt.mutate(&terms)
			lines, err := Generate(terms)
			assert.Nil(t, lines)
			assert.ErrorIs(t, err, customError.ErrInvalidScheduleInput)
		})
	}
}

func TestInstallments(t *testing.T) {
	now := time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)
	loan := &domain.Loan{ID: [16]byte{1}}
	lines, err := Generate(Terms{
		Principal:        decimal.NewFromInt(100),
		RatePercentage:   decimal.NewFromInt(2),
		Count:            2,
		Frequency:        domain.FrequencyWeekly,
		Method:           domain.InterestMethodFlat,
		DisbursementDate: disbursed,
	})
	require.NoError(t, err)

	insts := Installments(loan, lines, 5, "operator-1", now)
	require.Len(t, insts, 2)
	assert.Equal(t, 5, insts[0].InstallmentNumber)
	assert.Equal(t, 6, insts[1].InstallmentNumber)
	for _, inst := range insts {
		assert.Equal(t, loan.ID, inst.LoanID)
		assert.Equal(t, domain.InstallmentStatusPending, inst.Status)
		assert.Equal(t, inst.DueDate, inst.OriginalDueDate)
		assert.True(t, inst.PendingBalance.Equal(inst.TotalAmount))
		assert.Equal(t, "operator-1", inst.CreatedBy)
	}
}

func timePtr(t time.Time) *time.Time { return &t }
