// Package ledger keeps the derived balances of a loan aggregate consistent with the
// amounts recorded on its installments.
package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/credit-engine/internal/domain"
	customError "github.com/segyhp/credit-engine/pkg/errors"
)

type Entity string

const (
	EntityInstallment Entity = "installment"
	EntityLoan        Entity = "loan"
)

type Field string

const (
	FieldPrincipalPaid    Field = "principal_paid_amount"
	FieldInterestPaid     Field = "interest_paid_amount"
	FieldOtherChargesPaid Field = "other_charges_paid_amount"
	FieldArrearsPaid      Field = "arrears_paid_amount"
	FieldTotalPaid        Field = "total_paid_amount"
)

// Delta is one (entity, field, amount) tuple. Amounts may be negative.
type Delta struct {
	Entity Entity
	ID     uuid.UUID
	Field  Field
	Amount decimal.Decimal
}

func (d Delta) String() string {
	return fmt.Sprintf("%s %s %s %s", d.Entity, d.ID, d.Field, d.Amount)
}

// Apply applies every delta to agg, refreshes derived balances and mirrors the
// change in credit exposure onto the client. Callers run it on a working copy of the
// aggregate: on error the copy is in an undefined state and must be discarded.
func Apply(agg *domain.LoanAggregate, deltas []Delta) error {
	before := agg.Loan.CreditExposure()

	for _, d := range deltas {
		if err := apply(agg, d); err != nil {
			return err
		}
	}

	return Rebalance(agg, before)
}

func apply(agg *domain.LoanAggregate, d Delta) error {
	switch d.Entity {
	case EntityLoan:
		if d.ID != agg.Loan.ID || d.Field != FieldTotalPaid {
			return customError.WrapInvariantViolation(d.ID, "unsupported loan delta "+d.String())
		}
		agg.Loan.TotalPaidAmount = agg.Loan.TotalPaidAmount.Add(d.Amount)
		if agg.Loan.TotalPaidAmount.IsNegative() {
			return customError.WrapInvariantViolation(d.ID, "total paid amount would become negative")
		}
		return nil

	case EntityInstallment:
		inst := agg.Installment(d.ID)
		if inst == nil {
			return customError.WrapNotFound("installment", d.ID)
		}
		paid, limit := field(inst, d.Field)
		if paid == nil {
			return customError.WrapInvariantViolation(d.ID, "unsupported installment delta "+d.String())
		}
		next := paid.Add(d.Amount)
		if next.IsNegative() || next.GreaterThan(limit) {
			return customError.WrapInvariantViolation(d.ID,
				fmt.Sprintf("%s would be %s, allowed range is 0..%s", d.Field, next, limit))
		}
		*paid = next
		inst.Recompute()
		return nil
	}

	return customError.WrapInvariantViolation(d.ID, "unknown entity "+string(d.Entity))
}

// field returns the paid-amount field a delta targets and the amount it may not exceed.
func field(inst *domain.Installment, f Field) (*decimal.Decimal, decimal.Decimal) {
	switch f {
	case FieldPrincipalPaid:
		return &inst.PrincipalPaidAmount, inst.PrincipalAmount
	case FieldInterestPaid:
		return &inst.InterestPaidAmount, inst.InterestAmount
	case FieldOtherChargesPaid:
		return &inst.OtherChargesPaidAmount, inst.OtherChargesAmount
	case FieldArrearsPaid:
		return &inst.ArrearsPaidAmount, inst.ArrearsAmount
	}
	return nil, decimal.Zero
}

// Recompute refreshes every derived field of the aggregate: installment paid and
// pending amounts, then the loan balances as sums over non-voided installments.
func Recompute(agg *domain.LoanAggregate) {
	var principal, interest, other, arrears decimal.Decimal
	for _, inst := range agg.Installments {
		inst.Recompute()
		if inst.Status.Voided() {
			continue
		}
		principal = principal.Add(inst.PrincipalDue())
		interest = interest.Add(inst.InterestDue())
		other = other.Add(inst.OtherChargesDue())
		arrears = arrears.Add(inst.ArrearsDue())
	}

	l := agg.Loan
	l.PrincipalBalance = principal
	l.InterestBalance = interest
	l.OtherChargesBalance = other
	l.ArrearsBalance = arrears
	l.TotalBalance = principal.Add(interest).Add(other).Add(arrears)
}

// Rebalance recomputes derived fields after a change and moves the client's used
// credit by the difference between the exposure before the change and the exposure
// now. It never rejects on the credit limit: corrections such as reversals must go
// through even when the client has since borrowed again.
func Rebalance(agg *domain.LoanAggregate, before decimal.Decimal) error {
	Recompute(agg)
	if err := Check(agg); err != nil {
		return err
	}
	return MirrorCredit(agg.Client, before, agg.Loan.CreditExposure())
}

// Admit is Rebalance for operations that grant new credit (disbursement,
// restructuring). Growing exposure past the client's limit fails with
// CreditLimitExceeded.
func Admit(agg *domain.LoanAggregate, before decimal.Decimal) error {
	if err := Rebalance(agg, before); err != nil {
		return err
	}
	client := agg.Client
	if client == nil {
		return nil
	}
	diff := agg.Loan.CreditExposure().Sub(before)
	if diff.IsPositive() && client.AvailableCreditLimit.IsNegative() {
		return customError.WrapCreditLimitExceeded(client.ID, diff.String(),
			client.AvailableCreditLimit.Add(diff).String())
	}
	return nil
}

// MirrorCredit moves the client's used credit from before to after.
func MirrorCredit(client *domain.Client, before, after decimal.Decimal) error {
	if client == nil {
		return nil
	}
	diff := after.Sub(before)
	if diff.IsZero() {
		return nil
	}

	client.UsedCreditLimit = client.UsedCreditLimit.Add(diff)
	client.RecomputeAvailable()

	if client.UsedCreditLimit.IsNegative() {
		return customError.WrapInvariantViolation(client.ID, "used credit limit would become negative")
	}
	return nil
}

// Check verifies the balance invariants of the aggregate.
func Check(agg *domain.LoanAggregate) error {
	pending := decimal.Zero
	for _, inst := range agg.Installments {
		if inst.PendingBalance.IsNegative() {
			return customError.WrapInvariantViolation(inst.ID, "pending balance is negative")
		}
		if inst.Status.Voided() {
			continue
		}
		pending = pending.Add(inst.PendingBalance)
	}
	if !agg.Loan.TotalBalance.Equal(pending) {
		return customError.WrapInvariantViolation(agg.Loan.ID,
			fmt.Sprintf("total balance %s differs from installment pending sum %s", agg.Loan.TotalBalance, pending))
	}
	return nil
}

// VerifyClient compares the stored used credit of a client with the principal
// balance of its loans that still count against credit.
func VerifyClient(client *domain.Client, loans []*domain.Loan) domain.ClientCreditReport {
	open := decimal.Zero
	for _, l := range loans {
		if l.ClientID != client.ID {
			continue
		}
		open = open.Add(l.CreditExposure())
	}
	return domain.ClientCreditReport{
		ClientID:        client.ID,
		UsedCreditLimit: client.UsedCreditLimit,
		OpenPrincipal:   open,
		Consistent:      client.UsedCreditLimit.Equal(open),
		OverLimit:       client.UsedCreditLimit.GreaterThan(client.MaxCreditLimit),
	}
}
