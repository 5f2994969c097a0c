package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// LoanAggregate is the unit of mutual exclusion: a loan, its installments and the
// owning client's credit fields. Every mutating operation works on a Clone and the
// store persists the clone atomically.
type LoanAggregate struct {
	Client       *Client
	Loan         *Loan
	Installments []*Installment
}

func (a *LoanAggregate) Clone() *LoanAggregate {
	cp := &LoanAggregate{
		Client:       a.Client.Clone(),
		Loan:         a.Loan.Clone(),
		Installments: make([]*Installment, len(a.Installments)),
	}
	for i, inst := range a.Installments {
		cp.Installments[i] = inst.Clone()
	}
	return cp
}

// Installment looks up an installment of this loan by id.
func (a *LoanAggregate) Installment(id uuid.UUID) *Installment {
	for _, inst := range a.Installments {
		if inst.ID == id {
			return inst
		}
	}
	return nil
}

// OpenInstallments returns installments that can still take payments, ordered by due
// date and then installment number.
func (a *LoanAggregate) OpenInstallments() []*Installment {
	open := make([]*Installment, 0, len(a.Installments))
	for _, inst := range a.Installments {
		if inst.Status.Open() {
			open = append(open, inst)
		}
	}
	SortByDueDate(open)
	return open
}

// NextInstallmentNumber returns the number the next appended installment must take.
func (a *LoanAggregate) NextInstallmentNumber() int {
	max := 0
	for _, inst := range a.Installments {
		if inst.InstallmentNumber > max {
			max = inst.InstallmentNumber
		}
	}
	return max + 1
}

// SortByDueDate orders installments by due date, breaking ties by installment number.
func SortByDueDate(items []*Installment) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].DueDate.Equal(items[j].DueDate) {
			return items[i].DueDate.Before(items[j].DueDate)
		}
		return items[i].InstallmentNumber < items[j].InstallmentNumber
	})
}

// DeriveLoanStatus computes the status implied by the installments. Draft and
// terminal lifecycle states (restructured, written_off) are kept as they are.
func (a *LoanAggregate) DeriveLoanStatus() LoanStatus {
	switch a.Loan.Status {
	case LoanStatusDraft, LoanStatusRestructured, LoanStatusWrittenOff:
		return a.Loan.Status
	}

	settled, overdue := true, false
	for _, inst := range a.Installments {
		if inst.Status.Voided() {
			continue
		}
		if inst.Status != InstallmentStatusPaid {
			settled = false
		}
		if inst.Status == InstallmentStatusOverdue {
			overdue = true
		}
	}

	switch {
	case settled:
		return LoanStatusPaid
	case overdue:
		return LoanStatusOverdue
	case a.Loan.TotalPaidAmount.IsPositive():
		return LoanStatusPartiallyPaid
	default:
		return LoanStatusActive
	}
}

// SyncStatuses moves every non-voided installment, then the loan, to the status its
// amounts imply. The moves go through the transition tables under the given cause.
func (a *LoanAggregate) SyncStatuses(cause Cause, at time.Time) error {
	for _, inst := range a.Installments {
		if inst.Status.Voided() {
			continue
		}
		if next := inst.DeriveStatus(); next != inst.Status {
			if err := inst.SetStatus(next, cause, at); err != nil {
				return err
			}
		}
	}
	if next := a.DeriveLoanStatus(); next != a.Loan.Status {
		return a.Loan.SetStatus(next, cause, at)
	}
	return nil
}
