// Package amortization turns loan terms into an ordered installment schedule.
package amortization

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/credit-engine/internal/domain"
	customError "github.com/segyhp/credit-engine/pkg/errors"
	"github.com/segyhp/credit-engine/pkg/utils"
)

// Terms are the inputs of the generator. RatePercentage is the interest rate per
// payment period, expressed in percent (2.5 means 2.5% per period).
type Terms struct {
	Principal        decimal.Decimal
	RatePercentage   decimal.Decimal
	Count            int
	Frequency        domain.PaymentFrequency
	Method           domain.InterestMethod
	DisbursementDate time.Time
	FirstDueDate     *time.Time
	OtherCharges     decimal.Decimal
}

// Line is one generated installment.
type Line struct {
	Number             int
	DueDate            time.Time
	Principal          decimal.Decimal
	Interest           decimal.Decimal
	OtherCharges       decimal.Decimal
	Total              decimal.Decimal
	RemainingPrincipal decimal.Decimal
}

func (t Terms) validate() error {
	switch {
	case t.Count <= 0:
		return customError.WrapInvalidScheduleInput("installment count must be greater than 0")
	case !t.Principal.IsPositive():
		return customError.WrapInvalidScheduleInput("principal must be greater than 0")
	case !t.Frequency.Valid():
		return customError.WrapInvalidScheduleInput("unrecognized payment frequency " + string(t.Frequency))
	case !t.Method.Valid():
		return customError.WrapInvalidScheduleInput("unrecognized interest method " + string(t.Method))
	case t.RatePercentage.IsNegative():
		return customError.WrapInvalidScheduleInput("interest rate cannot be negative")
	case t.OtherCharges.IsNegative():
		return customError.WrapInvalidScheduleInput("other charges cannot be negative")
	case t.DisbursementDate.IsZero():
		return customError.WrapInvalidScheduleInput("disbursement date is required")
	case t.FirstDueDate != nil && !utils.TruncateToDate(*t.FirstDueDate).After(utils.TruncateToDate(t.DisbursementDate)):
		return customError.WrapInvalidScheduleInput("first due date must be after the disbursement date")
	}
	return nil
}

// FirstDue returns the due date of installment 1.
func (t Terms) FirstDue() time.Time {
	if t.FirstDueDate != nil {
		return utils.TruncateToDate(*t.FirstDueDate)
	}
	return t.Frequency.Advance(t.DisbursementDate, 1)
}

// Generate computes the schedule. The principal column always sums to the loan
// principal exactly: per-installment rounding loss is absorbed by the last line.
func Generate(t Terms) ([]Line, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	rate := utils.PercentToRate(t.RatePercentage)
	anchor := t.FirstDue()
	other := utils.RoundMoney(t.OtherCharges)

	var split func(period int, remaining decimal.Decimal) (principal, interest decimal.Decimal)
	switch {
	case t.Method == domain.InterestMethodFlat:
		base := evenShare(t.Principal, t.Count)
		interest := utils.RoundMoney(t.Principal.Mul(rate))
		split = func(int, decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
			return base, interest
		}
	case rate.IsZero():
		base := evenShare(t.Principal, t.Count)
		split = func(int, decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
			return base, decimal.Zero
		}
	default:
		payment := LevelPayment(t.Principal, rate, t.Count)
		split = func(_ int, remaining decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
			interest := utils.RoundMoney(remaining.Mul(rate))
			return utils.NonNegative(payment.Sub(interest)), interest
		}
	}

	lines := make([]Line, 0, t.Count)
	remaining := t.Principal
	for n := 1; n <= t.Count; n++ {
		principal, interest := split(n, remaining)
		if n == t.Count || principal.GreaterThan(remaining) {
			principal = remaining
		}
		remaining = remaining.Sub(principal)

		lines = append(lines, Line{
			Number:             n,
			DueDate:            t.Frequency.Advance(anchor, n-1),
			Principal:          principal,
			Interest:           interest,
			OtherCharges:       other,
			Total:              principal.Add(interest).Add(other),
			RemainingPrincipal: remaining,
		})
	}

	return lines, nil
}

// LevelPayment is the constant installment of a declining-balance loan:
// P * r / (1 - (1+r)^-n), rounded to cents.
func LevelPayment(principal, rate decimal.Decimal, count int) decimal.Decimal {
	if rate.IsZero() {
		return evenShare(principal, count)
	}
	factor := decimal.NewFromInt(1).Add(rate).Pow(decimal.NewFromInt(int64(count)))
	payment := principal.Mul(rate).Mul(factor).Div(factor.Sub(decimal.NewFromInt(1)))
	return utils.RoundMoney(payment)
}

// evenShare truncates so that count-1 shares never exceed the principal.
func evenShare(principal decimal.Decimal, count int) decimal.Decimal {
	return principal.Div(decimal.NewFromInt(int64(count))).Truncate(utils.MoneyPlaces)
}

// Installments materializes generated lines as pending installments of loan.
// Numbering starts at firstNumber.
func Installments(loan *domain.Loan, lines []Line, firstNumber int, actor string, now time.Time) []*domain.Installment {
	out := make([]*domain.Installment, 0, len(lines))
	for i, line := range lines {
		inst := &domain.Installment{
			ID:                     uuid.New(),
			LoanID:                 loan.ID,
			InstallmentNumber:      firstNumber + i,
			DueDate:                line.DueDate,
			OriginalDueDate:        line.DueDate,
			PrincipalAmount:        line.Principal,
			InterestAmount:         line.Interest,
			OtherChargesAmount:     line.OtherCharges,
			PaidAmount:             decimal.Zero,
			PrincipalPaidAmount:    decimal.Zero,
			InterestPaidAmount:     decimal.Zero,
			OtherChargesPaidAmount: decimal.Zero,
			ArrearsAmount:          decimal.Zero,
			ArrearsPaidAmount:      decimal.Zero,
			Status:                 domain.InstallmentStatusPending,
			CreatedBy:              actor,
			UpdatedBy:              actor,
			CreatedAt:              now,
			UpdatedAt:              now,
		}
		inst.Recompute()
		out = append(out, inst)
	}
	return out
}
