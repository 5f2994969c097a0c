// Package allocation distributes payments across the balance components of a loan
// and undoes those distributions on reversal.
package allocation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/credit-engine/internal/domain"
	"github.com/segyhp/credit-engine/internal/ledger"
	customError "github.com/segyhp/credit-engine/pkg/errors"
	"github.com/segyhp/credit-engine/pkg/utils"
)

type component int

const (
	arrears component = iota
	interest
	otherCharges
	principal
)

// waterfall lists the components each classification may reach, in priority order.
var waterfall = map[domain.PaymentClassification][]component{
	domain.PaymentRegularInstallment: {arrears, interest, otherCharges, principal},
	domain.PaymentTotalSettlement:    {arrears, interest, otherCharges, principal},
	domain.PaymentPrincipal:          {principal},
	domain.PaymentExtraordinary:      {principal},
	domain.PaymentInterest:           {interest},
	domain.PaymentArrears:            {arrears},
}

// Request describes a payment to distribute. A nil InstallmentID targets the whole
// loan in due-date order.
type Request struct {
	Classification domain.PaymentClassification
	Amount         decimal.Decimal
	InstallmentID  *uuid.UUID
	Date           time.Time
}

// Result is a planned distribution: one line per touched installment and the ledger
// deltas that realize it.
type Result struct {
	Applied  domain.Breakdown
	Discount decimal.Decimal
	Lines    []*domain.PaymentAllocation
	Deltas   []ledger.Delta
}

// Quote is the early-settlement payoff of a loan.
type Quote struct {
	Outstanding decimal.Decimal `json:"outstanding"`
	Discount    decimal.Decimal `json:"discount"`
	Payoff      decimal.Decimal `json:"payoff"`
}

// SettlementQuote computes the payoff of agg: every open component, less the early
// settlement discount taken on outstanding principal.
func SettlementQuote(agg *domain.LoanAggregate) Quote {
	var outstanding, principalDue decimal.Decimal
	for _, inst := range agg.OpenInstallments() {
		outstanding = outstanding.Add(inst.PendingBalance)
		principalDue = principalDue.Add(inst.PrincipalDue())
	}
	discount := utils.RoundMoney(principalDue.Mul(utils.PercentToRate(agg.Loan.EarlySettlementDiscount)))
	discount = utils.MinDecimal(discount, principalDue)
	return Quote{Outstanding: outstanding, Discount: discount, Payoff: outstanding.Sub(discount)}
}

// Plan computes how req would be distributed over agg without modifying it.
func Plan(agg *domain.LoanAggregate, req Request) (*Result, error) {
	loan := agg.Loan
	if !loan.Status.Open() {
		return nil, customError.WrapInvalidState(loan.ID, "loan", string(loan.Status))
	}
	if !req.Amount.IsPositive() {
		return nil, customError.WrapInvalidPaymentAmount(req.Amount.String(), "amount must be greater than 0")
	}
	if !req.Amount.Equal(utils.RoundMoney(req.Amount)) {
		return nil, customError.WrapInvalidPaymentAmount(req.Amount.String(), "amount has more than two decimal places")
	}

	order, ok := waterfall[req.Classification]
	if !ok {
		return nil, customError.WrapInvalidPaymentAmount(req.Amount.String(), "unknown payment type "+string(req.Classification))
	}

	switch req.Classification {
	case domain.PaymentPrincipal, domain.PaymentExtraordinary:
		if !loan.AllowsPrincipalPayment {
			return nil, customError.WrapDisallowedOperation(loan.ID, string(req.Classification))
		}
	case domain.PaymentTotalSettlement:
		if !loan.AllowsEarlySettlement {
			return nil, customError.WrapDisallowedOperation(loan.ID, string(req.Classification))
		}
	}

	targets, entity, err := targetsFor(agg, req)
	if err != nil {
		return nil, err
	}

	discounts := map[uuid.UUID]decimal.Decimal{}
	if req.Classification == domain.PaymentTotalSettlement {
		quote := SettlementQuote(agg)
		switch {
		case req.Amount.LessThan(quote.Payoff):
			return nil, customError.WrapInvalidPaymentAmount(req.Amount.String(),
				"total settlement must equal the payoff amount "+quote.Payoff.String())
		case req.Amount.GreaterThan(quote.Payoff):
			return nil, customError.WrapOverpayment(loan.ID, req.Amount.String(), quote.Payoff.String())
		}
		discounts = spreadDiscount(targets, quote.Discount)
	}

	res := &Result{Discount: decimal.Zero}
	remaining := req.Amount
	for _, inst := range targets {
		line := &domain.PaymentAllocation{
			ID:                 uuid.New(),
			InstallmentID:      inst.ID,
			PrincipalAmount:    decimal.Zero,
			InterestAmount:     decimal.Zero,
			OtherChargesAmount: decimal.Zero,
			ArrearsAmount:      decimal.Zero,
			DiscountAmount:     decimal.Zero,
		}
		if d, ok := discounts[inst.ID]; ok {
			line.DiscountAmount = d
		}

		for _, c := range order {
			if !remaining.IsPositive() {
				break
			}
			due := outstanding(inst, c)
			if c == principal {
				due = due.Sub(line.DiscountAmount)
			}
			take := utils.MinDecimal(remaining, utils.NonNegative(due))
			if take.IsZero() {
				continue
			}
			*slot(line, c) = take
			remaining = remaining.Sub(take)
		}

		if line.Breakdown().Total().IsZero() && line.DiscountAmount.IsZero() {
			continue
		}
		res.Lines = append(res.Lines, line)
		res.Applied = res.Applied.Add(line.Breakdown())
		res.Discount = res.Discount.Add(line.DiscountAmount)
	}

	if remaining.IsPositive() {
		return nil, customError.WrapOverpayment(entity, req.Amount.String(), req.Amount.Sub(remaining).String())
	}

	res.Deltas = deltas(loan.ID, res.Lines, req.Amount, decimal.NewFromInt(1))
	return res, nil
}

// Apply plans req and realizes it on agg: ledger deltas first, then status changes.
// agg must be a working copy; on error it has to be discarded.
func Apply(agg *domain.LoanAggregate, req Request) (*Result, error) {
	res, err := Plan(agg, req)
	if err != nil {
		return nil, err
	}
	if err := ledger.Apply(agg, res.Deltas); err != nil {
		return nil, err
	}
	if err := agg.SyncStatuses(domain.CauseAllocation, req.Date); err != nil {
		return nil, err
	}
	return res, nil
}

// Reverse undoes the stored allocation lines of a confirmed payment on agg and marks
// the payment reversed. Statuses move back under the reversal cause.
func Reverse(agg *domain.LoanAggregate, payment *domain.Payment, at time.Time) error {
	if payment.Status == domain.PaymentStatusReversed {
		return customError.WrapAlreadyReversed(payment.ID)
	}
	if err := domain.CheckPaymentTransition(payment.ID, payment.Status, domain.PaymentStatusReversed, domain.CauseReversal); err != nil {
		return err
	}

	loan := agg.Loan
	if loan.Status == domain.LoanStatusRestructured || loan.Status == domain.LoanStatusWrittenOff {
		return customError.WrapInvalidState(loan.ID, "loan", string(loan.Status))
	}
	for _, line := range payment.Allocations {
		inst := agg.Installment(line.InstallmentID)
		if inst == nil {
			return customError.WrapNotFound("installment", line.InstallmentID)
		}
		if inst.Status.Voided() {
			return customError.WrapInvalidState(inst.ID, "installment", string(inst.Status))
		}
	}

	if err := ledger.Apply(agg, deltas(loan.ID, payment.Allocations, payment.TotalAmount, decimal.NewFromInt(-1))); err != nil {
		return err
	}
	if err := agg.SyncStatuses(domain.CauseReversal, at); err != nil {
		return err
	}
	return payment.SetStatus(domain.PaymentStatusReversed, domain.CauseReversal)
}

func targetsFor(agg *domain.LoanAggregate, req Request) ([]*domain.Installment, uuid.UUID, error) {
	open := agg.OpenInstallments()

	if req.Classification.LoanLevel() || req.InstallmentID == nil {
		if req.Classification == domain.PaymentExtraordinary {
			reversed := make([]*domain.Installment, len(open))
			for i, inst := range open {
				reversed[len(open)-1-i] = inst
			}
			open = reversed
		}
		return open, agg.Loan.ID, nil
	}

	inst := agg.Installment(*req.InstallmentID)
	if inst == nil {
		return nil, uuid.Nil, customError.WrapNotFound("installment", *req.InstallmentID)
	}
	if !inst.Status.Open() {
		return nil, uuid.Nil, customError.WrapInvalidState(inst.ID, "installment", string(inst.Status))
	}
	return []*domain.Installment{inst}, inst.ID, nil
}

// spreadDiscount waives the settlement discount on principal, latest installment first.
func spreadDiscount(targets []*domain.Installment, discount decimal.Decimal) map[uuid.UUID]decimal.Decimal {
	out := make(map[uuid.UUID]decimal.Decimal)
	for i := len(targets) - 1; i >= 0 && discount.IsPositive(); i-- {
		take := utils.MinDecimal(discount, targets[i].PrincipalDue())
		if take.IsPositive() {
			out[targets[i].ID] = take
			discount = discount.Sub(take)
		}
	}
	return out
}

func outstanding(inst *domain.Installment, c component) decimal.Decimal {
	switch c {
	case arrears:
		return inst.ArrearsDue()
	case interest:
		return inst.InterestDue()
	case otherCharges:
		return inst.OtherChargesDue()
	default:
		return inst.PrincipalDue()
	}
}

func slot(line *domain.PaymentAllocation, c component) *decimal.Decimal {
	switch c {
	case arrears:
		return &line.ArrearsAmount
	case interest:
		return &line.InterestAmount
	case otherCharges:
		return &line.OtherChargesAmount
	default:
		return &line.PrincipalAmount
	}
}

// deltas converts allocation lines into ledger deltas, scaled by sign. A waived
// discount counts as paid principal but not as cash received.
func deltas(loanID uuid.UUID, lines []*domain.PaymentAllocation, cash, sign decimal.Decimal) []ledger.Delta {
	out := make([]ledger.Delta, 0, len(lines)*4+1)
	for _, line := range lines {
		add := func(f ledger.Field, amount decimal.Decimal) {
			if amount.IsZero() {
				return
			}
			out = append(out, ledger.Delta{
				Entity: ledger.EntityInstallment,
				ID:     line.InstallmentID,
				Field:  f,
				Amount: amount.Mul(sign),
			})
		}
		add(ledger.FieldArrearsPaid, line.ArrearsAmount)
		add(ledger.FieldInterestPaid, line.InterestAmount)
		add(ledger.FieldOtherChargesPaid, line.OtherChargesAmount)
		add(ledger.FieldPrincipalPaid, line.PrincipalAmount.Add(line.DiscountAmount))
	}
	return append(out, ledger.Delta{
		Entity: ledger.EntityLoan,
		ID:     loanID,
		Field:  ledger.FieldTotalPaid,
		Amount: cash.Mul(sign),
	})
}
