package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentClassification string

const (
	PaymentRegularInstallment PaymentClassification = "regular_installment"
	PaymentPrincipal          PaymentClassification = "principal_payment"
	PaymentInterest           PaymentClassification = "interest_payment"
	PaymentArrears            PaymentClassification = "arrears_payment"
	PaymentTotalSettlement    PaymentClassification = "total_settlement"
	PaymentExtraordinary      PaymentClassification = "extraordinary_payment"
)

func (c PaymentClassification) Valid() bool {
	switch c {
	case PaymentRegularInstallment, PaymentPrincipal, PaymentInterest,
		PaymentArrears, PaymentTotalSettlement, PaymentExtraordinary:
		return true
	}
	return false
}

// LoanLevel reports whether the classification always targets the whole loan.
func (c PaymentClassification) LoanLevel() bool {
	return c == PaymentTotalSettlement || c == PaymentExtraordinary
}

type PaymentMethod string

const (
	PaymentMethodCash          PaymentMethod = "cash"
	PaymentMethodTransfer      PaymentMethod = "transfer"
	PaymentMethodCheck         PaymentMethod = "check"
	PaymentMethodCard          PaymentMethod = "card"
	PaymentMethodDeposit       PaymentMethod = "deposit"
	PaymentMethodMobilePayment PaymentMethod = "mobile_payment"
	PaymentMethodOther         PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodTransfer, PaymentMethodCheck, PaymentMethodCard,
		PaymentMethodDeposit, PaymentMethodMobilePayment, PaymentMethodOther:
		return true
	}
	return false
}

// Breakdown splits an amount across the balance components.
type Breakdown struct {
	Principal    decimal.Decimal `json:"principal"`
	Interest     decimal.Decimal `json:"interest"`
	OtherCharges decimal.Decimal `json:"other_charges"`
	Arrears      decimal.Decimal `json:"arrears"`
}

func (b Breakdown) Total() decimal.Decimal {
	return b.Principal.Add(b.Interest).Add(b.OtherCharges).Add(b.Arrears)
}

func (b Breakdown) Add(o Breakdown) Breakdown {
	return Breakdown{
		Principal:    b.Principal.Add(o.Principal),
		Interest:     b.Interest.Add(o.Interest),
		OtherCharges: b.OtherCharges.Add(o.OtherCharges),
		Arrears:      b.Arrears.Add(o.Arrears),
	}
}

// Payment represents a single money movement applied to a loan
type Payment struct {
	ID                        uuid.UUID             `json:"id" db:"id"`
	Code                      string                `json:"code" db:"code"`
	RequestID                 *string               `json:"request_id,omitempty" db:"request_id"`
	ClientID                  uuid.UUID             `json:"client_id" db:"client_id"`
	LoanID                    uuid.UUID             `json:"loan_id" db:"loan_id"`
	InstallmentID             *uuid.UUID            `json:"installment_id,omitempty" db:"installment_id"`
	PaymentDate               time.Time             `json:"payment_date" db:"payment_date"`
	TotalAmount               decimal.Decimal       `json:"total_amount" db:"total_amount"`
	PrincipalAppliedAmount    decimal.Decimal       `json:"principal_applied_amount" db:"principal_applied_amount"`
	InterestAppliedAmount     decimal.Decimal       `json:"interest_applied_amount" db:"interest_applied_amount"`
	ArrearsAppliedAmount      decimal.Decimal       `json:"arrears_applied_amount" db:"arrears_applied_amount"`
	OtherChargesAppliedAmount decimal.Decimal       `json:"other_charges_applied_amount" db:"other_charges_applied_amount"`
	DiscountAmount            decimal.Decimal       `json:"discount_amount" db:"discount_amount"`
	PaymentType               PaymentClassification `json:"payment_type" db:"payment_type"`
	PaymentMethod             PaymentMethod         `json:"payment_method" db:"payment_method"`
	ExternalReference         string                `json:"external_reference,omitempty" db:"external_reference"`
	Status                    PaymentStatus         `json:"status" db:"status"`
	ReversedAt                *time.Time            `json:"reversed_at,omitempty" db:"reversed_at"`
	ReversalReason            *string               `json:"reversal_reason,omitempty" db:"reversal_reason"`
	ReversedBy                *string               `json:"reversed_by,omitempty" db:"reversed_by"`
	Notes                     string                `json:"notes,omitempty" db:"notes"`
	CreatedBy                 string                `json:"created_by" db:"created_by"`
	UpdatedBy                 string                `json:"updated_by" db:"updated_by"`
	CreatedAt                 time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt                 time.Time             `json:"updated_at" db:"updated_at"`

	Allocations []*PaymentAllocation `json:"allocations,omitempty" db:"-"`
}

// Applied returns the applied-amount breakdown of the payment.
func (p *Payment) Applied() Breakdown {
	return Breakdown{
		Principal:    p.PrincipalAppliedAmount,
		Interest:     p.InterestAppliedAmount,
		OtherCharges: p.OtherChargesAppliedAmount,
		Arrears:      p.ArrearsAppliedAmount,
	}
}

// SetApplied stores a breakdown into the applied-amount fields.
func (p *Payment) SetApplied(b Breakdown) {
	p.PrincipalAppliedAmount = b.Principal
	p.InterestAppliedAmount = b.Interest
	p.OtherChargesAppliedAmount = b.OtherCharges
	p.ArrearsAppliedAmount = b.Arrears
}

func (p *Payment) SetStatus(to PaymentStatus, cause Cause) error {
	if err := CheckPaymentTransition(p.ID, p.Status, to, cause); err != nil {
		return err
	}
	p.Status = to
	return nil
}

func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Allocations = make([]*PaymentAllocation, len(p.Allocations))
	for i, a := range p.Allocations {
		line := *a
		cp.Allocations[i] = &line
	}
	return &cp
}

// PaymentAllocation records how much of a payment landed on one installment.
// Discount is the principal waived by an early settlement; it is not cash.
type PaymentAllocation struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	PaymentID          uuid.UUID       `json:"payment_id" db:"payment_id"`
	InstallmentID      uuid.UUID       `json:"installment_id" db:"installment_id"`
	PrincipalAmount    decimal.Decimal `json:"principal_amount" db:"principal_amount"`
	InterestAmount     decimal.Decimal `json:"interest_amount" db:"interest_amount"`
	OtherChargesAmount decimal.Decimal `json:"other_charges_amount" db:"other_charges_amount"`
	ArrearsAmount      decimal.Decimal `json:"arrears_amount" db:"arrears_amount"`
	DiscountAmount     decimal.Decimal `json:"discount_amount" db:"discount_amount"`
}

func (a *PaymentAllocation) Breakdown() Breakdown {
	return Breakdown{
		Principal:    a.PrincipalAmount,
		Interest:     a.InterestAmount,
		OtherCharges: a.OtherChargesAmount,
		Arrears:      a.ArrearsAmount,
	}
}
