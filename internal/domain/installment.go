package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/credit-engine/pkg/utils"
)

// Installment represents one scheduled obligation within a loan
type Installment struct {
	ID                     uuid.UUID         `json:"id" db:"id"`
	LoanID                 uuid.UUID         `json:"loan_id" db:"loan_id"`
	InstallmentNumber      int               `json:"installment_number" db:"installment_number"`
	DueDate                time.Time         `json:"due_date" db:"due_date"`
	OriginalDueDate        time.Time         `json:"original_due_date" db:"original_due_date"`
	PrincipalAmount        decimal.Decimal   `json:"principal_amount" db:"principal_amount"`
	InterestAmount         decimal.Decimal   `json:"interest_amount" db:"interest_amount"`
	OtherChargesAmount     decimal.Decimal   `json:"other_charges_amount" db:"other_charges_amount"`
	TotalAmount            decimal.Decimal   `json:"total_amount" db:"total_amount"`
	PaidAmount             decimal.Decimal   `json:"paid_amount" db:"paid_amount"`
	PrincipalPaidAmount    decimal.Decimal   `json:"principal_paid_amount" db:"principal_paid_amount"`
	InterestPaidAmount     decimal.Decimal   `json:"interest_paid_amount" db:"interest_paid_amount"`
	OtherChargesPaidAmount decimal.Decimal   `json:"other_charges_paid_amount" db:"other_charges_paid_amount"`
	ArrearsAmount          decimal.Decimal   `json:"arrears_amount" db:"arrears_amount"`
	ArrearsPaidAmount      decimal.Decimal   `json:"arrears_paid_amount" db:"arrears_paid_amount"`
	DaysOverdue            int               `json:"days_overdue" db:"days_overdue"`
	PendingBalance         decimal.Decimal   `json:"pending_balance" db:"pending_balance"`
	Status                 InstallmentStatus `json:"status" db:"status"`
	PaidDate               *time.Time        `json:"paid_date,omitempty" db:"paid_date"`
	WasRescheduled         bool              `json:"was_rescheduled" db:"was_rescheduled"`
	OriginalInstallmentID  *uuid.UUID        `json:"original_installment_id,omitempty" db:"original_installment_id"`
	Notes                  string            `json:"notes,omitempty" db:"notes"`
	CreatedBy              string            `json:"created_by" db:"created_by"`
	UpdatedBy              string            `json:"updated_by" db:"updated_by"`
	CreatedAt              time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at" db:"updated_at"`
}

func (i *Installment) PrincipalDue() decimal.Decimal {
	return i.PrincipalAmount.Sub(i.PrincipalPaidAmount)
}

func (i *Installment) InterestDue() decimal.Decimal {
	return i.InterestAmount.Sub(i.InterestPaidAmount)
}

func (i *Installment) OtherChargesDue() decimal.Decimal {
	return i.OtherChargesAmount.Sub(i.OtherChargesPaidAmount)
}

func (i *Installment) ArrearsDue() decimal.Decimal {
	return i.ArrearsAmount.Sub(i.ArrearsPaidAmount)
}

// PendingBeforeArrears is the scheduled amount still owed, ignoring arrears.
func (i *Installment) PendingBeforeArrears() decimal.Decimal {
	return i.PrincipalDue().Add(i.InterestDue()).Add(i.OtherChargesDue())
}

// Recompute refreshes the derived paid_amount and pending_balance fields.
func (i *Installment) Recompute() {
	i.TotalAmount = i.PrincipalAmount.Add(i.InterestAmount).Add(i.OtherChargesAmount)
	i.PaidAmount = i.PrincipalPaidAmount.
		Add(i.InterestPaidAmount).
		Add(i.OtherChargesPaidAmount).
		Add(i.ArrearsPaidAmount)
	i.PendingBalance = i.TotalAmount.Add(i.ArrearsAmount).Sub(i.PaidAmount)
}

// DeriveStatus computes the status implied by the installment's amounts. Voided
// installments keep their status.
func (i *Installment) DeriveStatus() InstallmentStatus {
	if i.Status.Voided() {
		return i.Status
	}
	switch {
	case !i.PendingBalance.IsPositive():
		return InstallmentStatusPaid
	case i.DaysOverdue > 0:
		return InstallmentStatusOverdue
	case i.PaidAmount.IsPositive():
		return InstallmentStatusPartiallyPaid
	default:
		return InstallmentStatusPending
	}
}

// SetStatus moves the installment to the given status through the state machine and
// keeps paid_date consistent with it.
func (i *Installment) SetStatus(to InstallmentStatus, cause Cause, at time.Time) error {
	if err := CheckInstallmentTransition(i.ID, i.Status, to, cause); err != nil {
		return err
	}
	if to == InstallmentStatusPaid && i.Status != InstallmentStatusPaid {
		d := utils.TruncateToDate(at)
		i.PaidDate = &d
	}
	if to != InstallmentStatusPaid {
		i.PaidDate = nil
	}
	i.Status = to
	return nil
}

func (i *Installment) Clone() *Installment {
	if i == nil {
		return nil
	}
	cp := *i
	if i.PaidDate != nil {
		t := *i.PaidDate
		cp.PaidDate = &t
	}
	if i.OriginalInstallmentID != nil {
		id := *i.OriginalInstallmentID
		cp.OriginalInstallmentID = &id
	}
	return &cp
}
