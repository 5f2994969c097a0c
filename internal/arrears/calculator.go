// Package arrears computes overdue days and late-payment charges for installments.
package arrears

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/segyhp/credit-engine/internal/domain"
	"github.com/segyhp/credit-engine/pkg/utils"
)

// DefaultPeriodDays is the accrual period used when neither the loan nor the
// calculator configures one.
const DefaultPeriodDays = 30

// Calculator recomputes arrears from scratch as of a date, so repeated calls for the
// same date always produce the same figures.
type Calculator struct {
	PeriodDays int
}

func NewCalculator(periodDays int) Calculator {
	return Calculator{PeriodDays: periodDays}
}

// Policy carries the loan-level arrears settings.
type Policy struct {
	GraceDays      int
	RatePercentage decimal.Decimal
	PeriodDays     int
}

// PolicyFor reads the arrears settings of a loan.
func PolicyFor(loan *domain.Loan) Policy {
	return Policy{
		GraceDays:      loan.GraceDays,
		RatePercentage: loan.ArrearsRatePercentage,
		PeriodDays:     loan.ArrearsPeriodDays,
	}
}

// Result is the outcome of one accrual.
type Result struct {
	DaysOverdue int
	Arrears     decimal.Decimal
}

func (c Calculator) periodDays(p Policy) int64 {
	switch {
	case p.PeriodDays > 0:
		return int64(p.PeriodDays)
	case c.PeriodDays > 0:
		return int64(c.PeriodDays)
	default:
		return DefaultPeriodDays
	}
}

// Compute returns the overdue days and arrears implied for inst as of asOf. It does
// not modify the installment. Installments that are not open, or whose scheduled
// amounts are settled, keep their current figures.
func (c Calculator) Compute(inst *domain.Installment, asOf time.Time, p Policy) Result {
	current := Result{DaysOverdue: inst.DaysOverdue, Arrears: inst.ArrearsAmount}

	base := inst.PendingBeforeArrears()
	if !inst.Status.Open() || !base.IsPositive() {
		return current
	}

	days := utils.DaysBetween(inst.DueDate, asOf) - p.GraceDays
	if days <= 0 {
		return Result{DaysOverdue: 0, Arrears: inst.ArrearsPaidAmount}
	}

	accrued := base.
		Mul(utils.PercentToRate(p.RatePercentage)).
		Mul(decimal.NewFromInt(int64(days))).
		Div(decimal.NewFromInt(c.periodDays(p)))
	accrued = utils.NonNegative(utils.RoundMoney(accrued))

	// arrears already collected cannot be taken back
	return Result{DaysOverdue: days, Arrears: utils.MaxDecimal(accrued, inst.ArrearsPaidAmount)}
}

// Accrue writes the computed arrears into inst and moves it to the status its
// amounts imply.
func (c Calculator) Accrue(inst *domain.Installment, asOf time.Time, p Policy) error {
	r := c.Compute(inst, asOf, p)
	inst.DaysOverdue = r.DaysOverdue
	inst.ArrearsAmount = r.Arrears
	inst.Recompute()

	if inst.Status.Open() {
		if next := inst.DeriveStatus(); next != inst.Status {
			return inst.SetStatus(next, domain.CauseAccrual, asOf)
		}
	}
	return nil
}

// AccrueLoan accrues every open installment of the aggregate and derives the loan
// status. Loan balance fields are left to the ledger.
func (c Calculator) AccrueLoan(agg *domain.LoanAggregate, asOf time.Time) error {
	if !agg.Loan.Status.Open() {
		return nil
	}
	p := PolicyFor(agg.Loan)
	for _, inst := range agg.Installments {
		if !inst.Status.Open() {
			continue
		}
		if err := c.Accrue(inst, asOf, p); err != nil {
			return err
		}
	}
	if next := agg.DeriveLoanStatus(); next != agg.Loan.Status {
		return agg.Loan.SetStatus(next, domain.CauseAccrual, asOf)
	}
	return nil
}
